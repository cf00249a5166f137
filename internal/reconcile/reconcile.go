// Package reconcile maps extracted fighter pages onto stored fighters and
// bouts without creating duplicates.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ramkansal/fightgraph/pkg/plugin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("fightgraph/reconcile")

// Options tunes reconciliation.
type Options struct {
	// DateWindow is how far apart two dates of the same pairing may be and
	// still count as the same bout.
	DateWindow time.Duration
	// SimilarityThreshold is the Jaro-Winkler score a substring candidate
	// needs when several candidates remain.
	SimilarityThreshold float64
	// MinFragmentLen is the shortest opponent name the substring fallback
	// is tried with.
	MinFragmentLen int
	// CacheSize bounds the name to id cache used for opponents.
	CacheSize int
}

// DefaultOptions returns the standard reconciliation options.
func DefaultOptions() Options {
	return Options{
		DateWindow:          30 * 24 * time.Hour,
		SimilarityThreshold: 0.88,
		MinFragmentLen:      3,
		CacheSize:           4096,
	}
}

// Result describes what a reconciliation wrote.
type Result struct {
	Fighter       *plugin.Fighter
	Created       bool
	BoutsCreated  int
	BoutsExisting int
	BoutsFailed   int
	Placeholders  int
}

// Reconciler writes extracted records through a plugin.Store.
type Reconciler struct {
	store  plugin.Store
	opts   Options
	ids    *lru.Cache[string, int64]
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Reconciler. A nil logger uses slog.Default().
func New(store plugin.Store, opts Options, logger *slog.Logger) (*Reconciler, error) {
	if opts.DateWindow <= 0 {
		opts.DateWindow = DefaultOptions().DateWindow
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultOptions().CacheSize
	}
	cache, err := lru.New[string, int64](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:  store,
		opts:   opts,
		ids:    cache,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Reconcile upserts the fighter and then each of its bouts. Bout writes
// are best effort: a failing bout is logged and the rest still run. Only
// a failure to upsert the fighter itself is returned.
func (r *Reconciler) Reconcile(ctx context.Context, rec plugin.FighterRecord, bouts []plugin.BoutRecord) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("fighter", rec.Name), attribute.Int("bouts", len(bouts)))

	fighter, created, err := r.upsertFighter(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res := &Result{Fighter: fighter, Created: created}
	for _, b := range bouts {
		saved, placeholder, err := r.reconcileBout(ctx, fighter, b)
		if placeholder {
			res.Placeholders++
		}
		switch {
		case err != nil:
			res.BoutsFailed++
			r.logger.Warn("bout not saved",
				"fighter", fighter.Name,
				"opponent", b.OpponentName,
				"date", b.Date,
				"err", err,
			)
		case saved:
			res.BoutsCreated++
		default:
			res.BoutsExisting++
		}
	}

	r.logger.Debug("reconciled fighter",
		"fighter", fighter.Name,
		"id", fighter.ID,
		"created", created,
		"bouts_created", res.BoutsCreated,
		"bouts_existing", res.BoutsExisting,
		"bouts_failed", res.BoutsFailed,
	)
	return res, nil
}

func (r *Reconciler) upsertFighter(ctx context.Context, rec plugin.FighterRecord) (*plugin.Fighter, bool, error) {
	name := strings.Join(strings.Fields(rec.Name), " ")
	if name == "" {
		return nil, false, errors.New("fighter has no name")
	}
	now := r.now()

	existing, err := r.store.FindFighterByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("look up fighter %q: %w", name, err)
	}

	record, hasRecord := plugin.ParseRecord(rec.RecordText)

	if existing == nil {
		f := &plugin.Fighter{
			Name:        name,
			Nickname:    rec.Nickname,
			WeightClass: rec.WeightClass,
			Nationality: rec.Nationality,
			ImageURL:    rec.ImageURL,
			Record:      record,
			SourceURL:   rec.SourceURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := r.store.CreateFighter(ctx, f); err != nil {
			return nil, false, fmt.Errorf("create fighter %q: %w", name, err)
		}
		r.ids.Add(plugin.NameKey(name), f.ID)
		return f, true, nil
	}

	f := existing
	setIfPresent(&f.Nickname, rec.Nickname)
	setIfPresent(&f.WeightClass, rec.WeightClass)
	setIfPresent(&f.Nationality, rec.Nationality)
	setIfPresent(&f.ImageURL, rec.ImageURL)
	setIfPresent(&f.SourceURL, rec.SourceURL)
	if hasRecord {
		f.Record = record
	}
	f.Placeholder = false
	f.UpdatedAt = now
	if err := r.store.UpdateFighter(ctx, f); err != nil {
		return nil, false, fmt.Errorf("update fighter %q: %w", name, err)
	}
	r.ids.Add(plugin.NameKey(name), f.ID)
	return f, false, nil
}

func setIfPresent(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// reconcileBout stores one bout unless the same pairing already has a bout
// within the date window. The fighter whose page listed the bout always
// takes slot 1.
func (r *Reconciler) reconcileBout(ctx context.Context, fighter *plugin.Fighter, b plugin.BoutRecord) (saved, placeholder bool, err error) {
	date, err := time.Parse(time.DateOnly, b.Date)
	if err != nil {
		return false, false, fmt.Errorf("bout date %q is not normalized", b.Date)
	}
	if strings.TrimSpace(b.OpponentName) == "" {
		return false, false, errors.New("bout has no opponent")
	}

	opponentID, placeholder, err := r.resolveOpponent(ctx, fighter, b)
	if err != nil {
		return false, false, err
	}
	if opponentID == fighter.ID {
		return false, placeholder, fmt.Errorf("opponent %q resolved to the fighter itself", b.OpponentName)
	}

	existing, err := r.store.FindBoutInWindow(ctx, fighter.ID, opponentID, date, r.opts.DateWindow)
	if err != nil {
		return false, placeholder, err
	}
	if existing != nil {
		return false, placeholder, nil
	}

	outcome, winner := outcomeFor(b.Result, fighter.ID, opponentID)
	bout := &plugin.Bout{
		Fighter1ID:      fighter.ID,
		Fighter2ID:      opponentID,
		Date:            date,
		Outcome:         outcome,
		WinnerID:        winner,
		Method:          b.Method,
		ScheduledRounds: b.ScheduledRounds,
		Venue:           b.Venue,
		Location:        b.Location,
		SourceURL:       fighter.SourceURL,
		CreatedAt:       r.now(),
	}
	if err := r.store.CreateBout(ctx, bout); err != nil {
		return false, placeholder, err
	}
	return true, placeholder, nil
}

// outcomeFor maps a result, read from fighter 1's page, onto the fixed
// slots.
func outcomeFor(result plugin.Result, fighter1, fighter2 int64) (plugin.Outcome, int64) {
	switch result {
	case plugin.ResultWin:
		return plugin.OutcomeFighter1Win, fighter1
	case plugin.ResultLoss:
		return plugin.OutcomeFighter2Win, fighter2
	case plugin.ResultDraw:
		return plugin.OutcomeDraw, 0
	case plugin.ResultNoContest:
		return plugin.OutcomeNoContest, 0
	default:
		return plugin.OutcomePending, 0
	}
}
