package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/ramkansal/fightgraph/internal/storage"
	"github.com/ramkansal/fightgraph/pkg/plugin"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T) (*Reconciler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r, err := New(store, DefaultOptions(), nil)
	require.NoError(t, err)
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r, store
}

var janeDoe = plugin.FighterRecord{
	Name:        "Jane Doe",
	Nickname:    "The Hammer",
	WeightClass: "Lightweight",
	Nationality: "United States",
	RecordText:  "10-2-1",
	SourceURL:   "https://boxrec.com/en/proboxer/111",
}

var janeBouts = []plugin.BoutRecord{{
	Date:            "2020-05-06",
	OpponentName:    "John Roe",
	OpponentURL:     "https://boxrec.com/en/proboxer/222",
	Result:          plugin.ResultWin,
	Method:          "UD",
	ScheduledRounds: 10,
}}

func TestReconcileNewFighterAndPlaceholder(t *testing.T) {
	r, store := newTestReconciler(t)
	ctx := context.Background()

	res, err := r.Reconcile(ctx, janeDoe, janeBouts)
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, 1, res.BoutsCreated)
	require.Equal(t, 1, res.Placeholders)

	jane := res.Fighter
	require.Equal(t, "10-2-1", jane.Record.String())
	require.False(t, jane.Placeholder)

	john, err := store.FindFighterByName(ctx, "John Roe")
	require.NoError(t, err)
	require.NotNil(t, john)
	require.True(t, john.Placeholder)
	require.Equal(t, "0-0-0", john.Record.String())
	require.Equal(t, "Lightweight", john.WeightClass)
	require.Equal(t, "https://boxrec.com/en/proboxer/222", john.SourceURL)

	bouts, err := store.ListBouts(ctx)
	require.NoError(t, err)
	require.Len(t, bouts, 1)
	b := bouts[0]
	require.Equal(t, jane.ID, b.Fighter1ID)
	require.Equal(t, john.ID, b.Fighter2ID)
	require.Equal(t, plugin.OutcomeFighter1Win, b.Outcome)
	require.Equal(t, jane.ID, b.WinnerID)
	require.Equal(t, "2020-05-06", b.Date.Format(time.DateOnly))
	require.Equal(t, 10, b.ScheduledRounds)
}

func TestReconcileIsIdempotent(t *testing.T) {
	r, store := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, janeDoe, janeBouts)
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, janeDoe, janeBouts)
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, 0, res.BoutsCreated)
	require.Equal(t, 1, res.BoutsExisting)

	fighters, err := store.ListFighters(ctx)
	require.NoError(t, err)
	require.Len(t, fighters, 2)
	bouts, err := store.ListBouts(ctx)
	require.NoError(t, err)
	require.Len(t, bouts, 1)
}

func TestReconcileOtherSideOfBout(t *testing.T) {
	r, store := newTestReconciler(t)
	ctx := context.Background()

	first, err := r.Reconcile(ctx, janeDoe, janeBouts)
	require.NoError(t, err)

	// John's own page lists the same bout a day off and from his side.
	res, err := r.Reconcile(ctx, plugin.FighterRecord{
		Name:        "john roe",
		WeightClass: "Lightweight",
		RecordText:  "5-1-0",
	}, []plugin.BoutRecord{{
		Date:         "2020-05-07",
		OpponentName: "Jane Doe",
		Result:       plugin.ResultLoss,
	}})
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, 0, res.BoutsCreated)
	require.Equal(t, 1, res.BoutsExisting)

	john := res.Fighter
	require.Equal(t, "John Roe", john.Name)
	require.False(t, john.Placeholder)
	require.Equal(t, "5-1-0", john.Record.String())
	require.Equal(t, "https://boxrec.com/en/proboxer/222", john.SourceURL)

	bouts, err := store.ListBouts(ctx)
	require.NoError(t, err)
	require.Len(t, bouts, 1)
	require.Equal(t, first.Fighter.ID, bouts[0].Fighter1ID)
}

func TestReconcileKeepsFieldsMissingFromPage(t *testing.T) {
	r, _ := newTestReconciler(t)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, janeDoe, nil)
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, plugin.FighterRecord{Name: "JANE DOE", Nationality: "Canada"}, nil)
	require.NoError(t, err)
	require.False(t, res.Created)

	f := res.Fighter
	require.Equal(t, "Jane Doe", f.Name)
	require.Equal(t, "The Hammer", f.Nickname)
	require.Equal(t, "Lightweight", f.WeightClass)
	require.Equal(t, "Canada", f.Nationality)
	require.Equal(t, "10-2-1", f.Record.String())
}

func TestReconcileSkipsBadBouts(t *testing.T) {
	r, store := newTestReconciler(t)
	ctx := context.Background()

	res, err := r.Reconcile(ctx, janeDoe, []plugin.BoutRecord{
		{Date: "", OpponentName: "John Roe", Result: plugin.ResultWin},
		{Date: "2021-01-01", OpponentName: "  ", Result: plugin.ResultWin},
		{Date: "2021-02-02", OpponentName: "jane doe", Result: plugin.ResultWin},
		{Date: "2022-03-03", OpponentName: "Ann Smith", Result: plugin.ResultUnknown},
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.BoutsFailed)
	require.Equal(t, 1, res.BoutsCreated)

	bouts, err := store.ListBouts(ctx)
	require.NoError(t, err)
	require.Len(t, bouts, 1)
	require.Equal(t, plugin.OutcomePending, bouts[0].Outcome)
	require.Zero(t, bouts[0].WinnerID)
}

func TestReconcileLossOutcome(t *testing.T) {
	r, store := newTestReconciler(t)
	ctx := context.Background()

	res, err := r.Reconcile(ctx, janeDoe, []plugin.BoutRecord{
		{Date: "2019-03-14", OpponentName: "Ann Smith", Result: plugin.ResultLoss, Method: "TKO"},
		{Date: "2018-01-01", OpponentName: "Bea Lee", Result: plugin.ResultDraw},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.BoutsCreated)

	ann, err := store.FindFighterByName(ctx, "Ann Smith")
	require.NoError(t, err)

	bouts, err := store.ListBouts(ctx)
	require.NoError(t, err)
	require.Len(t, bouts, 2)
	require.Equal(t, plugin.OutcomeDraw, bouts[0].Outcome)
	require.Zero(t, bouts[0].WinnerID)
	require.Equal(t, plugin.OutcomeFighter2Win, bouts[1].Outcome)
	require.Equal(t, ann.ID, bouts[1].WinnerID)
}

func TestResolveOpponentBySubstring(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	seed := func(t *testing.T, store *storage.Store, fighters ...plugin.Fighter) {
		t.Helper()
		for _, f := range fighters {
			f.CreatedAt, f.UpdatedAt = now, now
			require.NoError(t, store.CreateFighter(ctx, &f))
		}
	}
	bout := func(opponent string) []plugin.BoutRecord {
		return []plugin.BoutRecord{{Date: "2020-01-01", OpponentName: opponent, Result: plugin.ResultWin}}
	}

	t.Run("single candidate", func(t *testing.T) {
		r, store := newTestReconciler(t)
		seed(t, store, plugin.Fighter{Name: "Roy Jones Jr", WeightClass: "Lightweight"})

		res, err := r.Reconcile(ctx, janeDoe, bout("Jones"))
		require.NoError(t, err)
		require.Equal(t, 0, res.Placeholders)

		roy, err := store.FindFighterByName(ctx, "Roy Jones Jr")
		require.NoError(t, err)
		bouts, err := store.ListBouts(ctx)
		require.NoError(t, err)
		require.Equal(t, roy.ID, bouts[0].Fighter2ID)
	})

	t.Run("weight class conflict", func(t *testing.T) {
		r, store := newTestReconciler(t)
		seed(t, store, plugin.Fighter{Name: "Tom Jones", WeightClass: "Heavyweight"})

		res, err := r.Reconcile(ctx, janeDoe, bout("Jones"))
		require.NoError(t, err)
		require.Equal(t, 1, res.Placeholders)
	})

	t.Run("ambiguous", func(t *testing.T) {
		r, store := newTestReconciler(t)
		seed(t, store,
			plugin.Fighter{Name: "Roy Jones Jr", WeightClass: "Lightweight"},
			plugin.Fighter{Name: "Tom Jones", WeightClass: "Lightweight"},
		)

		res, err := r.Reconcile(ctx, janeDoe, bout("Jones"))
		require.NoError(t, err)
		require.Equal(t, 1, res.Placeholders)

		placeholder, err := store.FindFighterByName(ctx, "Jones")
		require.NoError(t, err)
		require.NotNil(t, placeholder)
		require.True(t, placeholder.Placeholder)
	})

	t.Run("clear best match", func(t *testing.T) {
		r, store := newTestReconciler(t)
		seed(t, store,
			plugin.Fighter{Name: "Roy Jones", WeightClass: "Lightweight"},
			plugin.Fighter{Name: "Roy Jones Jr", WeightClass: "Lightweight"},
		)

		res, err := r.Reconcile(ctx, janeDoe, bout("Roy Jone"))
		require.NoError(t, err)
		require.Equal(t, 0, res.Placeholders)

		roy, err := store.FindFighterByName(ctx, "Roy Jones")
		require.NoError(t, err)
		bouts, err := store.ListBouts(ctx)
		require.NoError(t, err)
		require.Equal(t, roy.ID, bouts[0].Fighter2ID)
	})

	t.Run("never matches self", func(t *testing.T) {
		r, store := newTestReconciler(t)

		res, err := r.Reconcile(ctx, janeDoe, bout("Doe"))
		require.NoError(t, err)
		require.Equal(t, 1, res.Placeholders)

		doe, err := store.FindFighterByName(ctx, "Doe")
		require.NoError(t, err)
		require.NotNil(t, doe)
	})
}
