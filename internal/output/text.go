// Package output writes crawl reports.
package output

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ramkansal/fightgraph/pkg/plugin"
)

// TextWriter writes crawl results to a plain text file, mirroring the
// terminal output without ANSI color codes.
type TextWriter struct {
	path  string
	lines []string
	mu    sync.Mutex
}

// NewTextWriter creates a new plain-text output writer.
func NewTextWriter(path string) *TextWriter {
	return &TextWriter{path: path}
}

func (w *TextWriter) Name() string { return "text" }

func (w *TextWriter) WriteResult(url string, extraction *plugin.Extraction, fighter *plugin.Fighter) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f := extraction.Fighter
	head := fmt.Sprintf("  %s (%s) %s", f.Name, fighter.Record, url)
	if details := joinNonEmpty(" | ", f.Nickname, f.WeightClass, f.Nationality); details != "" {
		head += "  [" + details + "]"
	}
	w.lines = append(w.lines, head)

	for _, b := range extraction.Bouts {
		line := fmt.Sprintf("      +-- %s %-10s vs %s", b.Date, b.Result, b.OpponentName)
		if extra := joinNonEmpty(", ", b.Method, rounds(b.ScheduledRounds), b.Venue, b.Location); extra != "" {
			line += " (" + extra + ")"
		}
		w.lines = append(w.lines, line)
	}
	return nil
}

func (w *TextWriter) Finalize(summary *plugin.CrawlSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder

	b.WriteString("\n  FIGHTGRAPH\n")
	b.WriteString("  Fighter graph crawl report\n")
	b.WriteString("  " + strings.Repeat("-", 58) + "\n\n")

	b.WriteString(fmt.Sprintf("  Run:     %s\n", summary.RunID))
	b.WriteString(fmt.Sprintf("  Started: %s\n\n", summary.StartedAt.Format(time.RFC1123)))

	for _, line := range w.lines {
		b.WriteString(line + "\n")
	}

	b.WriteString("\n  " + strings.Repeat("-", 50) + "\n")
	b.WriteString(fmt.Sprintf("  Crawl %s in %s\n", summary.State, FormatDuration(summary.Elapsed)))
	b.WriteString(fmt.Sprintf("    Targets: %d processed, %d persisted, %d failed, %d not fighters\n",
		summary.Processed, summary.Persisted, summary.Failed, summary.NotFighter))
	b.WriteString(fmt.Sprintf("    Queue:   %d remaining\n", summary.QueueRemaining))
	if summary.AbortReason != "" {
		b.WriteString(fmt.Sprintf("    Reason:  %s\n", summary.AbortReason))
	}
	b.WriteString("\n")

	return os.WriteFile(w.path, []byte(b.String()), 0644)
}

// ---------- helpers ----------

func rounds(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("%d rds", n)
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// FormatDuration renders d the way crawl progress is reported.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
