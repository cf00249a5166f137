// Package crawler walks the fighter graph breadth first: it fetches each
// profile, extracts it, reconciles it into the store and queues the
// opponents it links to.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ramkansal/fightgraph/internal/extractor"
	"github.com/ramkansal/fightgraph/internal/reconcile"
	"github.com/ramkansal/fightgraph/internal/session"
	"github.com/ramkansal/fightgraph/pkg/plugin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("fightgraph/crawler")

// Session keeps the browsing context authenticated.
type Session interface {
	Ensure(ctx context.Context) error
	LoggedOut(page *plugin.PageData) bool
	Invalidate()
}

// Extractor turns fetched pages into fighter data.
type Extractor interface {
	Extract(page *plugin.PageData) (*plugin.Extraction, error)
	IsProfileURL(rawURL string) bool
	ProfileLinks(page *plugin.PageData) ([]string, error)
}

// Reconciler persists extracted fighters and bouts.
type Reconciler interface {
	Reconcile(ctx context.Context, fighter plugin.FighterRecord, bouts []plugin.BoutRecord) (*reconcile.Result, error)
}

// Components are the collaborators a Crawler drives. Writer and Logger
// are optional.
type Components struct {
	Browser    plugin.Browser
	Session    Session
	Extractor  Extractor
	Reconciler Reconciler
	Writer     plugin.OutputWriter
	Logger     *slog.Logger
}

// Crawler is the core engine that orchestrates fetching, extracting, and
// persisting. A Crawler runs once.
type Crawler struct {
	config     *Config
	browser    plugin.Browser
	session    Session
	extract    Extractor
	reconciler Reconciler
	writer     plugin.OutputWriter
	logger     *slog.Logger
	events     chan plugin.CrawlEvent

	frontier *frontier
	summary  plugin.CrawlSummary

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a new Crawler with the given configuration.
func New(config *Config, c Components) *Crawler {
	if config == nil {
		config = DefaultConfig()
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		config:     config,
		browser:    c.Browser,
		session:    c.Session,
		extract:    c.Extractor,
		reconciler: c.Reconciler,
		writer:     c.Writer,
		logger:     logger,
		events:     make(chan plugin.CrawlEvent, max(config.EventBuffer, 1)),
		frontier:   newFrontier(),
		summary:    plugin.CrawlSummary{State: plugin.StateIdle},
		stop:       make(chan struct{}),
	}
}

// Events returns the event channel for the CLI or other consumers. It is
// closed when Run returns.
func (c *Crawler) Events() <-chan plugin.CrawlEvent {
	return c.events
}

// Restore seeds the frontier from a snapshot of an earlier run. Call it
// before Run.
func (c *Crawler) Restore(s plugin.FrontierSnapshot) {
	c.frontier.restore(s)
}

// Stop signals the crawler to stop after the current target.
func (c *Crawler) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Run crawls from seeds until the queue is empty (completed), maxNodes
// targets have been processed (exhausted, 0 means no limit), or it is
// cancelled or cannot authenticate (aborted). The summary is returned in
// every case; the error is non-nil only for authentication failures.
func (c *Crawler) Run(ctx context.Context, seeds []string, maxNodes int) (*plugin.CrawlSummary, error) {
	ctx, span := tracer.Start(ctx, "Crawl")
	defer span.End()
	defer close(c.events)

	sum := &c.summary
	sum.RunID = uuid.NewString()
	sum.State = plugin.StateRunning
	sum.StartedAt = time.Now()
	span.SetAttributes(attribute.String("run_id", sum.RunID), attribute.Int("max_nodes", maxNodes))

	for _, seed := range seeds {
		c.enqueue(seed)
	}

	c.emit(plugin.CrawlEvent{
		Type:    plugin.EventCrawlStarted,
		Message: fmt.Sprintf("Starting crawl of %d target(s)", c.frontier.len()),
	})
	c.logger.Info("crawl started", "run", sum.RunID, "queued", c.frontier.len(), "max_nodes", maxNodes)

	var runErr error
	for c.frontier.len() > 0 {
		if maxNodes > 0 && sum.Processed >= maxNodes {
			break
		}
		if err := c.interrupted(ctx); err != nil {
			c.abort(err)
			break
		}

		target, _ := c.frontier.pop()
		if c.frontier.isVisited(target) {
			continue
		}
		if !c.extract.IsProfileURL(target) {
			c.emit(plugin.CrawlEvent{Type: plugin.EventPageSkipped, URL: target, Message: "not a fighter profile URL"})
			continue
		}

		c.frontier.visit(target)
		sum.Processed++

		if err := c.process(ctx, target); err != nil {
			var authErr *session.AuthError
			if errors.As(err, &authErr) {
				runErr = err
			}
			// not processed: keep it for a resumed run
			c.frontier.requeue(target)
			sum.Processed--
			c.abort(err)
			break
		}

		more := c.frontier.len() > 0 && (maxNodes <= 0 || sum.Processed < maxNodes)
		if more && c.config.Delay > 0 {
			if err := c.wait(ctx, c.config.Delay); err != nil {
				c.abort(err)
				break
			}
		}
	}

	if sum.State == plugin.StateRunning {
		if c.frontier.len() == 0 {
			sum.State = plugin.StateCompleted
		} else {
			sum.State = plugin.StateExhausted
		}
	}
	sum.QueueRemaining = c.frontier.len()
	sum.Elapsed = time.Since(sum.StartedAt)
	sum.Frontier = c.frontier.snapshot()

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	result := *sum
	if c.writer != nil {
		if err := c.writer.Finalize(&result); err != nil {
			c.logger.Warn("could not write report", "output", c.writer.Name(), "err", err)
		}
	}

	c.logger.Info("crawl finished",
		"run", sum.RunID,
		"state", sum.State,
		"processed", sum.Processed,
		"persisted", sum.Persisted,
		"failed", sum.Failed,
		"remaining", sum.QueueRemaining,
	)
	c.emit(plugin.CrawlEvent{
		Type:    plugin.EventCrawlFinished,
		Summary: &result,
		Message: fmt.Sprintf("Crawl %s. %d processed, %d persisted, %d failed.", sum.State, sum.Processed, sum.Persisted, sum.Failed),
	})
	return &result, runErr
}

// DiscoverTop loads a ratings page and returns up to limit fighter
// profile links from it, in page order.
func (c *Crawler) DiscoverTop(ctx context.Context, ratingsURL string, limit int) ([]string, error) {
	page, err := c.fetch(ctx, ratingsURL)
	if err != nil {
		return nil, err
	}
	links, err := c.extract.ProfileLinks(page)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, URL: ratingsURL, Err: err}
	}
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	c.logger.Info("discovered top fighters", "url", ratingsURL, "count", len(links))
	return links, nil
}

// enqueue normalizes target and queues it unless it was seen before.
func (c *Crawler) enqueue(target string) {
	normalized := extractor.NormalizeURL(target)
	if normalized == "" {
		c.logger.Debug("ignoring target", "url", target)
		return
	}
	if c.frontier.push(normalized) {
		c.emit(plugin.CrawlEvent{Type: plugin.EventPageQueued, URL: normalized})
	}
}

// process runs one target through fetch, extract and persist. Stage
// failures are counted and swallowed; only authentication failures and
// cancellation are returned.
func (c *Crawler) process(ctx context.Context, target string) error {
	ctx, span := tracer.Start(ctx, "ProcessFighter", trace.WithAttributes(attribute.String("url", target)))
	defer span.End()

	c.emit(plugin.CrawlEvent{Type: plugin.EventPageStarted, URL: target})

	page, err := c.fetch(ctx, target)
	if err != nil {
		var stageErr *StageError
		if !errors.As(err, &stageErr) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		c.fail(span, stageErr)
		return nil
	}

	extraction, err := c.extract.Extract(page)
	if errors.Is(err, extractor.ErrNotFighterPage) {
		c.summary.NotFighter++
		c.logger.Info("not a fighter page", "url", target)
		c.emit(plugin.CrawlEvent{Type: plugin.EventPageSkipped, URL: target, Message: "not a fighter page"})
		return nil
	}
	if err != nil {
		c.fail(span, &StageError{Stage: StageExtract, URL: target, Err: err})
		return nil
	}

	res, err := c.reconciler.Reconcile(ctx, extraction.Fighter, extraction.Bouts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.fail(span, &StageError{Stage: StagePersist, URL: target, Err: err})
		return nil
	}
	c.summary.Persisted++

	if c.writer != nil {
		if err := c.writer.WriteResult(target, extraction, res.Fighter); err != nil {
			c.logger.Warn("could not write result", "url", target, "output", c.writer.Name(), "err", err)
		}
	}

	c.emit(plugin.CrawlEvent{
		Type:       plugin.EventPageDone,
		URL:        target,
		Extraction: extraction,
		Fighter:    res.Fighter,
		Message: fmt.Sprintf("%s (%s): %d bouts, %d new",
			res.Fighter.Name, res.Fighter.Record, len(extraction.Bouts), res.BoutsCreated),
	})

	if c.config.FollowOpponents {
		for _, link := range extraction.OpponentLinks {
			c.enqueue(link)
		}
	}
	return nil
}

// fetch loads target with an authenticated session. A page that turns
// out to be an auth wall triggers one re-login and one refetch.
func (c *Crawler) fetch(ctx context.Context, target string) (*plugin.PageData, error) {
	if err := c.session.Ensure(ctx); err != nil {
		return nil, err
	}

	page, err := c.browser.Fetch(ctx, target)
	if err == nil && c.session.LoggedOut(page) {
		c.logger.Info("session expired, logging in again", "url", target)
		c.session.Invalidate()
		if err := c.session.Ensure(ctx); err != nil {
			return nil, err
		}
		page, err = c.browser.Fetch(ctx, target)
		if err == nil && c.session.LoggedOut(page) {
			err = errors.New("still logged out after logging in again")
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &StageError{Stage: StageFetch, URL: target, Err: err}
	}
	return page, nil
}

func (c *Crawler) fail(span trace.Span, err *StageError) {
	c.summary.Failed++
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Warn("target failed", "url", err.URL, "stage", err.Stage, "err", err.Err)
	c.emit(plugin.CrawlEvent{
		Type:    plugin.EventPageError,
		URL:     err.URL,
		Stage:   string(err.Stage),
		Error:   err,
		Message: err.Error(),
	})
}

func (c *Crawler) abort(err error) {
	c.summary.State = plugin.StateAborted
	c.summary.AbortReason = err.Error()
	c.logger.Warn("crawl aborted", "err", err)
}

func (c *Crawler) interrupted(ctx context.Context) error {
	select {
	case <-c.stop:
		return ErrStopped
	default:
		return ctx.Err()
	}
}

// wait pauses for d unless the crawl is cancelled or stopped first.
func (c *Crawler) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-c.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emit sends an event to the event channel (non-blocking).
func (c *Crawler) emit(event plugin.CrawlEvent) {
	select {
	case c.events <- event:
	default:
		// the consumer is too slow; the crawl does not wait for it
	}
}

// Close releases the browsing context.
func (c *Crawler) Close() error {
	if c.browser != nil {
		return c.browser.Close()
	}
	return nil
}
