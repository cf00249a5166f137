// Package plugin defines the public types and interfaces of fightgraph.
// External tools can import this package to plug in their own browsing
// contexts, stores or output writers without forking the project.
package plugin

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ---------- Core Data Types ----------

// PageData represents a fully loaded page.
type PageData struct {
	URL           string        `json:"url"`
	FinalURL      string        `json:"final_url"`
	StatusCode    int           `json:"status_code"`
	HTML          string        `json:"-"`
	ContentType   string        `json:"content_type"`
	FetchedAt     time.Time     `json:"fetched_at"`
	FetchDuration time.Duration `json:"fetch_duration"`
	FetcherUsed   string        `json:"fetcher_used"`
	Error         string        `json:"error,omitempty"`
}

// BaseURL returns the URL relative links on the page resolve against.
func (p *PageData) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// FighterRecord is the fighter data extracted from one profile page.
// Every field except Name is optional.
type FighterRecord struct {
	Name        string `json:"name"`
	Nickname    string `json:"nickname,omitempty"`
	WeightClass string `json:"weight_class,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	// RecordText is the raw win-loss-draw text as found on the page.
	RecordText string `json:"record,omitempty"`
	SourceURL  string `json:"source_url"`
}

// BoutRecord is one row of a fighter's fight history.
type BoutRecord struct {
	Date            string `json:"date"`
	OpponentName    string `json:"opponent_name"`
	OpponentURL     string `json:"opponent_url,omitempty"`
	Result          Result `json:"result"`
	Method          string `json:"method,omitempty"`
	ScheduledRounds int    `json:"scheduled_rounds,omitempty"`
	Venue           string `json:"venue,omitempty"`
	Location        string `json:"location,omitempty"`
}

// Result is the outcome of a bout from the point of view of the fighter
// whose page listed it.
type Result string

const (
	ResultWin       Result = "WIN"
	ResultLoss      Result = "LOSS"
	ResultDraw      Result = "DRAW"
	ResultNoContest Result = "NO_CONTEST"
	ResultUnknown   Result = "UNKNOWN"
)

// Extraction is everything pulled out of a single fighter page.
type Extraction struct {
	Fighter       FighterRecord `json:"fighter"`
	Bouts         []BoutRecord  `json:"bouts"`
	OpponentLinks []string      `json:"opponent_links"`
}

// ---------- Persisted Types ----------

// Fighter is a fighter as held by a Store.
type Fighter struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Nickname    string    `json:"nickname,omitempty"`
	WeightClass string    `json:"weight_class,omitempty"`
	Nationality string    `json:"nationality,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Record      Record    `json:"record"`
	SourceURL   string    `json:"source_url,omitempty"`
	Placeholder bool      `json:"placeholder"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NameKey is the case-insensitive identity of a fighter name. Stores key
// fighters by it and reconcilers cache ids under it.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Outcome is the stored result of a bout, relative to the fixed fighter slots.
type Outcome string

const (
	OutcomeFighter1Win Outcome = "FIGHTER1_WIN"
	OutcomeFighter2Win Outcome = "FIGHTER2_WIN"
	OutcomeDraw        Outcome = "DRAW"
	OutcomeNoContest   Outcome = "NO_CONTEST"
	OutcomePending     Outcome = "PENDING"
)

// Bout is a bout as held by a Store.
type Bout struct {
	ID              int64     `json:"id"`
	Fighter1ID      int64     `json:"fighter1_id"`
	Fighter2ID      int64     `json:"fighter2_id"`
	Date            time.Time `json:"date"`
	Outcome         Outcome   `json:"outcome"`
	WinnerID        int64     `json:"winner_id,omitempty"`
	Method          string    `json:"method,omitempty"`
	ScheduledRounds int       `json:"scheduled_rounds,omitempty"`
	Venue           string    `json:"venue,omitempty"`
	Location        string    `json:"location,omitempty"`
	SourceURL       string    `json:"source_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ---------- Crawl Summary ----------

// CrawlState is the state of a crawl run.
type CrawlState string

const (
	StateIdle      CrawlState = "idle"
	StateRunning   CrawlState = "running"
	StateCompleted CrawlState = "completed"
	StateExhausted CrawlState = "exhausted"
	StateAborted   CrawlState = "aborted"
)

// FrontierSnapshot captures the queue and visited set so a later run can
// resume where this one stopped.
type FrontierSnapshot struct {
	Queue   []string `json:"queue"`
	Visited []string `json:"visited"`
}

// CrawlSummary is the final report of a crawl run.
type CrawlSummary struct {
	RunID          string           `json:"run_id"`
	State          CrawlState       `json:"state"`
	Processed      int              `json:"processed"`
	Persisted      int              `json:"persisted"`
	Failed         int              `json:"failed"`
	NotFighter     int              `json:"not_fighter"`
	QueueRemaining int              `json:"queue_remaining"`
	StartedAt      time.Time        `json:"started_at"`
	Elapsed        time.Duration    `json:"elapsed"`
	AbortReason    string           `json:"abort_reason,omitempty"`
	Frontier       FrontierSnapshot `json:"frontier"`
}

// ---------- Event Types ----------

// CrawlEvent represents a real-time event emitted by the crawler.
type CrawlEvent struct {
	Type       EventType
	URL        string
	Stage      string
	Extraction *Extraction
	Fighter    *Fighter
	Error      error
	Summary    *CrawlSummary
	Message    string
}

// EventType identifies the kind of event.
type EventType int

const (
	EventPageQueued EventType = iota
	EventPageStarted
	EventPageDone
	EventPageSkipped
	EventPageError
	EventCrawlStarted
	EventCrawlFinished
)

// ---------- Plugin Interfaces ----------

// Fetcher defines how pages are retrieved.
type Fetcher interface {
	// Name returns a human-readable identifier for this fetcher.
	Name() string

	// Fetch loads the page at the given URL.
	Fetch(ctx context.Context, url string) (*PageData, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// LoginForm describes a form based login.
type LoginForm struct {
	URL              string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
	Username         string
	Password         string
}

// Browser is a Fetcher that owns a cookie bearing browsing context and can
// submit a login form in it.
type Browser interface {
	Fetcher

	// SubmitLogin fills in and submits the login form, returning the page
	// the submission navigated to.
	SubmitLogin(ctx context.Context, form LoginForm) (*PageData, error)

	// Cookies returns every cookie currently held by the browsing context.
	Cookies(ctx context.Context) ([]*http.Cookie, error)

	// SetCookies installs cookies into the browsing context.
	SetCookies(ctx context.Context, cookies []*http.Cookie) error
}

// Store is the storage collaborator the reconciler writes through.
// Lookups return (nil, nil) when nothing matches.
type Store interface {
	FindFighterByName(ctx context.Context, name string) (*Fighter, error)
	FindFightersByNameFragment(ctx context.Context, fragment string) ([]Fighter, error)
	CreateFighter(ctx context.Context, f *Fighter) error
	UpdateFighter(ctx context.Context, f *Fighter) error
	FindBoutInWindow(ctx context.Context, fighterA, fighterB int64, date time.Time, window time.Duration) (*Bout, error)
	CreateBout(ctx context.Context, b *Bout) error
}

// OutputWriter defines how per-fighter crawl results are reported.
type OutputWriter interface {
	// Name returns a human-readable identifier for this writer.
	Name() string

	// WriteResult records a single processed page (called incrementally).
	WriteResult(url string, extraction *Extraction, fighter *Fighter) error

	// Finalize writes the final summary and closes resources.
	Finalize(summary *CrawlSummary) error
}
