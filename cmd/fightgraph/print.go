package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ramkansal/fightgraph/internal/fetcher"
	"github.com/ramkansal/fightgraph/internal/output"
	"github.com/ramkansal/fightgraph/pkg/plugin"
)

var useColor = true

func printPlan(plan crawlPlan, mode fetcher.Mode) {
	target := strings.Join(plan.seeds, ", ")
	if plan.top > 0 {
		target = fmt.Sprintf("top %d from %s", plan.top, cfg.RatingsURL)
	}
	limit := "none"
	if plan.maxNodes > 0 {
		limit = fmt.Sprintf("%d", plan.maxNodes)
	}
	fmt.Printf("\n  %s %s\n", clr("cyan", "Target:"), target)
	fmt.Printf("  %s %s  %s %s  %s %s  %s %s\n\n",
		clr("dim", "Mode:"), plan.mode,
		clr("dim", "Max:"), limit,
		clr("dim", "Fetcher:"), string(mode),
		clr("dim", "Delay:"), cfg.Delay,
	)
}

func handleEvent(event plugin.CrawlEvent) {
	switch event.Type {
	case plugin.EventPageStarted:
		if verbose {
			fmt.Printf("  %s %s\n", clr("dim", "→"), clr("dim", event.URL))
		}

	case plugin.EventPageDone:
		if event.Fighter == nil || event.Extraction == nil {
			return
		}
		f := event.Fighter
		fmt.Printf("  %s %s %s %s %s\n",
			clr("green", "●"),
			clr("bold", f.Name),
			clr("cyan", "("+f.Record.String()+")"),
			event.URL,
			clr("dim", fmt.Sprintf("[bouts:%d]", len(event.Extraction.Bouts))),
		)
		if !verbose {
			return
		}
		for _, b := range event.Extraction.Bouts {
			fmt.Printf("      %s %s vs %s\n",
				clr("dim", "├─ "+b.Date),
				resultColor(b.Result),
				b.OpponentName,
			)
		}

	case plugin.EventPageSkipped:
		fmt.Printf("  %s %s %s\n", clr("yellow", "–"), event.URL, clr("dim", "("+event.Message+")"))

	case plugin.EventPageError:
		fmt.Printf("  %s %s\n", clr("red", "✗"), event.Message)
	}
}

func resultColor(r plugin.Result) string {
	switch r {
	case plugin.ResultWin:
		return clr("green", string(r))
	case plugin.ResultLoss:
		return clr("red", string(r))
	case plugin.ResultDraw, plugin.ResultNoContest:
		return clr("yellow", string(r))
	}
	return clr("dim", string(r))
}

func printSummary(sum *plugin.CrawlSummary, statePath string) {
	if sum == nil {
		return
	}
	mark, color := "✓", "green"
	if sum.State == plugin.StateAborted {
		mark, color = "!", "yellow"
	}
	fmt.Println()
	fmt.Printf("  %s Crawl %s in %s\n", clr(color, mark), sum.State, output.FormatDuration(sum.Elapsed))

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Processed", "Persisted", "Failed", "Not fighters", "Queued"})
	t.AppendRow(table.Row{sum.Processed, sum.Persisted, sum.Failed, sum.NotFighter, sum.QueueRemaining})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if sum.AbortReason != "" {
		fmt.Printf("    %s %s\n", clr("dim", "Reason:"), sum.AbortReason)
	}
	if statePath != "" && sum.QueueRemaining > 0 {
		fmt.Printf("    %s %s\n", clr("dim", "Resume:"), statePath)
	}
	if cfg.Output != "" {
		fmt.Printf("    %s %s\n", clr("dim", "Output:"), clr("green", cfg.Output))
	}
	fmt.Println()
}

func printBanner() {
	banner := `
   ___ _      _   _                         _
  | __(_)__ _| |_| |_ __ _ _ _ __ _ _ __| |_
  | _|| / _' | ' \  _/ _' | '_/ _' | '_ \ ' \
  |_| |_\__, |_||_\__\__, |_| \__,_| .__/_||_|
        |___/        |___/         |_|`
	fmt.Println(clr("cyan", banner))
	fmt.Printf("  %s  %s\n", clr("dim", "Fighter and bout graph crawler"), clr("dim", "v"+version))
	fmt.Printf("  %s\n", clr("dim", strings.Repeat("─", 46)))
}

func clr(color, text string) string {
	if !useColor {
		return text
	}
	codes := map[string]string{
		"red":    "\033[31m",
		"green":  "\033[32m",
		"yellow": "\033[33m",
		"cyan":   "\033[36m",
		"dim":    "\033[2m",
		"bold":   "\033[1m",
		"reset":  "\033[0m",
	}
	c, ok := codes[color]
	if !ok {
		return text
	}
	return c + text + codes["reset"]
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\n  %s %s\n\n", clr("red", "ERROR:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}
