package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ramkansal/fightgraph/internal/extractor"
	"github.com/ramkansal/fightgraph/internal/reconcile"
	"github.com/ramkansal/fightgraph/internal/session"
	"github.com/ramkansal/fightgraph/internal/storage"
	"github.com/ramkansal/fightgraph/pkg/plugin"
	"github.com/stretchr/testify/require"
)

const loginWall = `<html><body><div class="login-wall"><form action="/en/login"></form></div></body></html>`

func profileURL(id int) string {
	return fmt.Sprintf("https://boxrec.com/en/proboxer/%d", id)
}

type bout struct {
	id     int
	name   string
	date   string
	result string
}

func profilePage(name, record string, bouts ...bout) string {
	var rows strings.Builder
	for _, b := range bouts {
		fmt.Fprintf(&rows, `<tr><td>%s</td><td><a href="/en/proboxer/%d">%s</a></td><td><div class="boutResult">%s</div></td><td>UD</td></tr>`,
			b.date, b.id, b.name, b.result)
	}
	return fmt.Sprintf(`<html><head><title>%[1]s - BoxRec</title></head><body>
<nav><a href="/en/logout">Logout</a></nav>
<h1>%[1]s</h1>
<table class="profileTable"><tr><td>division</td><td>Lightweight</td></tr></table>
<div class="profileWLD">%[2]s</div>
<table class="dataTable">%[3]s</table>
</body></html>`, name, record, rows.String())
}

type fakeBrowser struct {
	pages     map[string]string
	walls     map[string]int
	fetches   map[string]int
	fetchedAt []time.Time
	onFetch   func(url string)
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		pages:   make(map[string]string),
		walls:   make(map[string]int),
		fetches: make(map[string]int),
	}
}

func (b *fakeBrowser) Name() string { return "fake" }
func (b *fakeBrowser) Close() error { return nil }

func (b *fakeBrowser) Fetch(ctx context.Context, url string) (*plugin.PageData, error) {
	b.fetches[url]++
	b.fetchedAt = append(b.fetchedAt, time.Now())
	if b.onFetch != nil {
		b.onFetch(url)
	}
	page := &plugin.PageData{URL: url, FinalURL: url, StatusCode: http.StatusOK}
	if b.walls[url] > 0 {
		b.walls[url]--
		page.HTML = loginWall
		return page, nil
	}
	html, ok := b.pages[url]
	if !ok {
		page.StatusCode = http.StatusNotFound
		return page, errors.New("Not Found")
	}
	page.HTML = html
	return page, nil
}

func (b *fakeBrowser) SubmitLogin(ctx context.Context, form plugin.LoginForm) (*plugin.PageData, error) {
	return &plugin.PageData{URL: form.URL}, nil
}

func (b *fakeBrowser) Cookies(ctx context.Context) ([]*http.Cookie, error) { return nil, nil }

func (b *fakeBrowser) SetCookies(ctx context.Context, cookies []*http.Cookie) error { return nil }

type fakeSession struct {
	err           error
	ensures       int
	invalidations int
}

func (s *fakeSession) Ensure(ctx context.Context) error {
	s.ensures++
	return s.err
}

func (s *fakeSession) LoggedOut(page *plugin.PageData) bool {
	return strings.Contains(page.HTML, "login-wall")
}

func (s *fakeSession) Invalidate() { s.invalidations++ }

type harness struct {
	browser *fakeBrowser
	session *fakeSession
	store   *storage.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &harness{browser: newFakeBrowser(), session: &fakeSession{}, store: store}
}

func (h *harness) crawler(t *testing.T, cfg *Config) *Crawler {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
		cfg.Delay = 0
	}
	ext, err := extractor.New(extractor.DefaultOptions())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec, err := reconcile.New(h.store, reconcile.DefaultOptions(), logger)
	require.NoError(t, err)
	return New(cfg, Components{
		Browser:    h.browser,
		Session:    h.session,
		Extractor:  ext,
		Reconciler: rec,
		Logger:     logger,
	})
}

func TestRunStopsAtBudget(t *testing.T) {
	h := newHarness(t)

	var opponents []bout
	for id := 2; id <= 6; id++ {
		name := fmt.Sprintf("Opp Number%d", id)
		date := fmt.Sprintf("2020-01-0%d", id)
		opponents = append(opponents, bout{id, name, date, "W"})
		h.browser.pages[profileURL(id)] = profilePage(name, "5-1-0", bout{1, "Jane Doe", date, "L"})
	}
	h.browser.pages[profileURL(1)] = profilePage("Jane Doe", "10-2-1", opponents...)

	c := h.crawler(t, nil)
	sum, err := c.Run(context.Background(), []string{profileURL(1)}, 3)
	require.NoError(t, err)
	require.Equal(t, plugin.StateExhausted, sum.State)
	require.Equal(t, 3, sum.Processed)
	require.Equal(t, 3, sum.Persisted)
	require.Equal(t, 3, sum.QueueRemaining)
	require.Equal(t, []string{profileURL(4), profileURL(5), profileURL(6)}, sum.Frontier.Queue)
	require.NotEmpty(t, sum.RunID)

	ctx := context.Background()
	fighters, err := h.store.ListFighters(ctx)
	require.NoError(t, err)
	require.Len(t, fighters, 6)
	placeholders := 0
	for _, f := range fighters {
		if f.Placeholder {
			placeholders++
		}
	}
	require.Equal(t, 3, placeholders)

	bouts, err := h.store.ListBouts(ctx)
	require.NoError(t, err)
	require.Len(t, bouts, 5)
}

func TestRunCompletesAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.browser.pages[profileURL(1)] = profilePage("Jane Doe", "10-2-1", bout{2, "John Roe", "2020-05-06", "W"})
	h.browser.pages[profileURL(2)] = profilePage("John Roe", "5-1-0",
		bout{1, "Jane Doe", "2020-05-06", "L"},
		bout{3, "Ann Smith", "2019-02-02", "D"},
	)
	h.browser.pages[profileURL(3)] = profilePage("Ann Smith", "1-0-1", bout{2, "John Roe", "2019-02-02", "D"})

	ctx := context.Background()
	sum, err := h.crawler(t, nil).Run(ctx, []string{profileURL(1) + "/#top", profileURL(1)}, 0)
	require.NoError(t, err)
	require.Equal(t, plugin.StateCompleted, sum.State)
	require.Equal(t, 3, sum.Processed)
	require.Equal(t, 3, sum.Persisted)
	require.Zero(t, sum.QueueRemaining)
	require.ElementsMatch(t, []string{profileURL(1), profileURL(2), profileURL(3)}, sum.Frontier.Visited)

	// every target fetched exactly once
	for id := 1; id <= 3; id++ {
		require.Equal(t, 1, h.browser.fetches[profileURL(id)], profileURL(id))
	}

	jane, err := h.store.FindFighterByName(ctx, "Jane Doe")
	require.NoError(t, err)
	require.Equal(t, "10-2-1", jane.Record.String())
	john, err := h.store.FindFighterByName(ctx, "John Roe")
	require.NoError(t, err)
	require.False(t, john.Placeholder)
	require.Equal(t, "5-1-0", john.Record.String())

	bouts, err := h.store.ListBouts(ctx)
	require.NoError(t, err)
	require.Len(t, bouts, 2)
	for _, b := range bouts {
		if b.Date.Format("2006-01-02") == "2020-05-06" {
			require.Equal(t, jane.ID, b.WinnerID)
		}
	}

	// a second crawl over the same store changes nothing
	sum, err = h.crawler(t, nil).Run(ctx, []string{profileURL(1)}, 0)
	require.NoError(t, err)
	require.Equal(t, 3, sum.Persisted)

	fighters, err := h.store.ListFighters(ctx)
	require.NoError(t, err)
	require.Len(t, fighters, 3)
	bouts, err = h.store.ListBouts(ctx)
	require.NoError(t, err)
	require.Len(t, bouts, 2)
}

func TestRunNotFighterPage(t *testing.T) {
	h := newHarness(t)
	h.browser.pages[profileURL(1)] = `<html><body><nav><a href="/en/logout">Logout</a></nav><h1>Search</h1></body></html>`

	sum, err := h.crawler(t, nil).Run(context.Background(), []string{profileURL(1)}, 0)
	require.NoError(t, err)
	require.Equal(t, plugin.StateCompleted, sum.State)
	require.Equal(t, 1, sum.Processed)
	require.Equal(t, 1, sum.NotFighter)
	require.Zero(t, sum.Persisted)
	require.Zero(t, sum.Failed)

	fighters, err := h.store.ListFighters(context.Background())
	require.NoError(t, err)
	require.Empty(t, fighters)
}

func TestRunCountsFetchFailures(t *testing.T) {
	h := newHarness(t)
	h.browser.pages[profileURL(1)] = profilePage("Jane Doe", "10-2-1", bout{2, "John Roe", "2020-05-06", "W"})

	c := h.crawler(t, nil)
	sum, err := c.Run(context.Background(), []string{profileURL(1)}, 0)
	require.NoError(t, err)
	require.Equal(t, plugin.StateCompleted, sum.State)
	require.Equal(t, 2, sum.Processed)
	require.Equal(t, 1, sum.Persisted)
	require.Equal(t, 1, sum.Failed)

	var stageErr *StageError
	for ev := range c.Events() {
		if ev.Type == plugin.EventPageError {
			require.ErrorAs(t, ev.Error, &stageErr)
		}
	}
	require.NotNil(t, stageErr)
	require.Equal(t, StageFetch, stageErr.Stage)
	require.Equal(t, profileURL(2), stageErr.URL)
}

func TestRunAbortsOnAuthFailure(t *testing.T) {
	h := newHarness(t)
	h.browser.pages[profileURL(1)] = profilePage("Jane Doe", "10-2-1")
	h.session.err = &session.AuthError{Reason: session.MissingCredentials}

	sum, err := h.crawler(t, nil).Run(context.Background(), []string{profileURL(1)}, 0)

	var authErr *session.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, plugin.StateAborted, sum.State)
	require.Zero(t, sum.Processed)
	require.Equal(t, 1, sum.QueueRemaining)
	require.Equal(t, []string{profileURL(1)}, sum.Frontier.Queue)
	require.Empty(t, sum.Frontier.Visited)
	require.Zero(t, h.browser.fetches[profileURL(1)])
}

func TestRunReauthenticatesOnLoginWall(t *testing.T) {
	h := newHarness(t)
	h.browser.pages[profileURL(1)] = profilePage("Jane Doe", "10-2-1")
	h.browser.walls[profileURL(1)] = 1

	sum, err := h.crawler(t, nil).Run(context.Background(), []string{profileURL(1)}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Persisted)
	require.Equal(t, 1, h.session.invalidations)
	require.Equal(t, 2, h.session.ensures)
	require.Equal(t, 2, h.browser.fetches[profileURL(1)])
}

func TestRunGivesUpOnPersistentLoginWall(t *testing.T) {
	h := newHarness(t)
	h.browser.pages[profileURL(1)] = profilePage("Jane Doe", "10-2-1")
	h.browser.walls[profileURL(1)] = 2

	sum, err := h.crawler(t, nil).Run(context.Background(), []string{profileURL(1)}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Failed)
	require.Zero(t, sum.Persisted)
	require.Equal(t, 2, h.browser.fetches[profileURL(1)])
}

func TestRunSkipsNonProfileSeeds(t *testing.T) {
	h := newHarness(t)

	sum, err := h.crawler(t, nil).Run(context.Background(), []string{
		"https://boxrec.com/en/ratings",
		"mailto:someone@example.com",
	}, 0)
	require.NoError(t, err)
	require.Equal(t, plugin.StateCompleted, sum.State)
	require.Zero(t, sum.Processed)
	require.Empty(t, h.browser.fetches)
}

func TestRunStopAndCancel(t *testing.T) {
	h := newHarness(t)
	h.browser.pages[profileURL(1)] = profilePage("Jane Doe", "10-2-1")

	c := h.crawler(t, nil)
	c.Stop()
	c.Stop()
	sum, err := c.Run(context.Background(), []string{profileURL(1)}, 0)
	require.NoError(t, err)
	require.Equal(t, plugin.StateAborted, sum.State)
	require.Equal(t, ErrStopped.Error(), sum.AbortReason)
	require.Zero(t, sum.Processed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err = h.crawler(t, nil).Run(ctx, []string{profileURL(1)}, 0)
	require.NoError(t, err)
	require.Equal(t, plugin.StateAborted, sum.State)
	require.Equal(t, 1, sum.QueueRemaining)
}

func TestRunDelaysBetweenTargets(t *testing.T) {
	h := newHarness(t)
	// profile 1 is missing and fails to fetch
	h.browser.pages[profileURL(2)] = profilePage("John Roe", "5-1-0")

	cfg := DefaultConfig()
	cfg.Delay = 20 * time.Millisecond
	cfg.FollowOpponents = false
	sum, err := h.crawler(t, cfg).Run(context.Background(), []string{profileURL(1), profileURL(2)}, 0)
	require.NoError(t, err)
	require.Equal(t, plugin.StateCompleted, sum.State)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, 1, sum.Persisted)

	require.Len(t, h.browser.fetchedAt, 2)
	require.GreaterOrEqual(t, h.browser.fetchedAt[1].Sub(h.browser.fetchedAt[0]), cfg.Delay)
}

func TestRunStopDuringDelay(t *testing.T) {
	h := newHarness(t)
	h.browser.pages[profileURL(1)] = profilePage("Jane Doe", "10-2-1")
	h.browser.pages[profileURL(2)] = profilePage("John Roe", "5-1-0")

	cfg := DefaultConfig()
	cfg.Delay = time.Hour
	c := h.crawler(t, cfg)
	h.browser.onFetch = func(string) { c.Stop() }

	type result struct {
		sum *plugin.CrawlSummary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := c.Run(context.Background(), []string{profileURL(1), profileURL(2)}, 0)
		done <- result{sum, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.Equal(t, plugin.StateAborted, r.sum.State)
		require.Equal(t, ErrStopped.Error(), r.sum.AbortReason)
		require.Equal(t, 1, r.sum.Processed)
		require.Equal(t, 1, r.sum.QueueRemaining)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not interrupt the delay")
	}
	require.Zero(t, h.browser.fetches[profileURL(2)])
}

func TestRunResumesFromSnapshot(t *testing.T) {
	h := newHarness(t)
	h.browser.pages[profileURL(1)] = profilePage("Jane Doe", "10-2-1", bout{2, "John Roe", "2020-05-06", "W"})
	h.browser.pages[profileURL(2)] = profilePage("John Roe", "5-1-0", bout{1, "Jane Doe", "2020-05-06", "L"})

	c := h.crawler(t, nil)
	c.Restore(plugin.FrontierSnapshot{
		Queue:   []string{profileURL(2)},
		Visited: []string{profileURL(1)},
	})
	sum, err := c.Run(context.Background(), []string{profileURL(1)}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Processed)
	require.Zero(t, h.browser.fetches[profileURL(1)])
	require.Equal(t, 1, h.browser.fetches[profileURL(2)])
}

func TestRunWithoutFollowingOpponents(t *testing.T) {
	h := newHarness(t)
	h.browser.pages[profileURL(1)] = profilePage("Jane Doe", "10-2-1", bout{2, "John Roe", "2020-05-06", "W"})

	cfg := DefaultConfig()
	cfg.Delay = 0
	cfg.FollowOpponents = false
	sum, err := h.crawler(t, cfg).Run(context.Background(), []string{profileURL(1)}, 0)
	require.NoError(t, err)
	require.Equal(t, plugin.StateCompleted, sum.State)
	require.Equal(t, 1, sum.Processed)
	require.Zero(t, h.browser.fetches[profileURL(2)])
}

func TestDiscoverTop(t *testing.T) {
	h := newHarness(t)
	ratings := "https://boxrec.com/en/ratings"
	var links strings.Builder
	for id := 1; id <= 5; id++ {
		fmt.Fprintf(&links, `<tr><td><a href="/en/proboxer/%d">Fighter %d</a></td></tr>`, id, id)
	}
	h.browser.pages[ratings] = `<html><body><table>` + links.String() + `</table></body></html>`

	got, err := h.crawler(t, nil).DiscoverTop(context.Background(), ratings, 3)
	require.NoError(t, err)
	require.Equal(t, []string{profileURL(1), profileURL(2), profileURL(3)}, got)

	_, err = h.crawler(t, nil).DiscoverTop(context.Background(), "https://boxrec.com/en/missing", 3)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, StageFetch, stageErr.Stage)
}

func TestFrontier(t *testing.T) {
	f := newFrontier()
	require.True(t, f.push("a"))
	require.False(t, f.push("a"))
	require.True(t, f.push("b"))
	require.False(t, f.push(""))

	got, ok := f.pop()
	require.True(t, ok)
	require.Equal(t, "a", got)
	f.visit("a")
	require.False(t, f.push("a"))

	f.requeue("a")
	require.False(t, f.isVisited("a"))
	require.Equal(t, []string{"a", "b"}, f.snapshot().Queue)

	restored := newFrontier()
	restored.restore(plugin.FrontierSnapshot{Queue: []string{"x", "y", "x"}, Visited: []string{"y"}})
	require.Equal(t, []string{"x"}, restored.snapshot().Queue)
	require.Equal(t, []string{"y"}, restored.snapshot().Visited)
}
