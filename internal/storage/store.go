// Package storage is the sqlite backed store fighters and bouts are
// reconciled into.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramkansal/fightgraph/pkg/plugin"

	_ "modernc.org/sqlite"
)

const dateLayout = time.DateOnly

// Store implements plugin.Store on top of a sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one writer, and in-memory databases are per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

const fighterColumns = `id, name, nickname, weight_class, nationality, image_url,
	wins, losses, draws, source_url, placeholder, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanFighter(row scanner) (plugin.Fighter, error) {
	var (
		f                plugin.Fighter
		placeholder      int
		created, updated int64
	)
	err := row.Scan(
		&f.ID, &f.Name, &f.Nickname, &f.WeightClass, &f.Nationality, &f.ImageURL,
		&f.Record.Wins, &f.Record.Losses, &f.Record.Draws,
		&f.SourceURL, &placeholder, &created, &updated,
	)
	if err != nil {
		return f, err
	}
	f.Placeholder = placeholder != 0
	f.CreatedAt = time.Unix(created, 0)
	f.UpdatedAt = time.Unix(updated, 0)
	return f, nil
}

func (s *Store) FindFighterByName(ctx context.Context, name string) (*plugin.Fighter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fighterColumns+` FROM fighters WHERE name_key = ?`,
		plugin.NameKey(name),
	)
	f, err := scanFighter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find fighter %q: %w", name, err)
	}
	return &f, nil
}

func (s *Store) FindFightersByNameFragment(ctx context.Context, fragment string) ([]plugin.Fighter, error) {
	key := plugin.NameKey(fragment)
	if key == "" {
		return nil, nil
	}
	return s.queryFighters(ctx,
		`SELECT `+fighterColumns+` FROM fighters WHERE instr(name_key, ?) > 0 ORDER BY id`,
		key,
	)
}

// ListFighters returns every stored fighter ordered by name.
func (s *Store) ListFighters(ctx context.Context) ([]plugin.Fighter, error) {
	return s.queryFighters(ctx, `SELECT `+fighterColumns+` FROM fighters ORDER BY name_key`)
}

func (s *Store) queryFighters(ctx context.Context, query string, args ...any) ([]plugin.Fighter, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []plugin.Fighter
	for rows.Next() {
		f, err := scanFighter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) CreateFighter(ctx context.Context, f *plugin.Fighter) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO fighters (name, name_key, nickname, weight_class, nationality, image_url,
			record, wins, losses, draws, source_url, placeholder, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, plugin.NameKey(f.Name), f.Nickname, f.WeightClass, f.Nationality, f.ImageURL,
		f.Record.String(), f.Record.Wins, f.Record.Losses, f.Record.Draws,
		f.SourceURL, boolInt(f.Placeholder), f.CreatedAt.Unix(), f.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create fighter %q: %w", f.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = id
	return nil
}

func (s *Store) UpdateFighter(ctx context.Context, f *plugin.Fighter) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE fighters SET nickname = ?, weight_class = ?, nationality = ?, image_url = ?,
			record = ?, wins = ?, losses = ?, draws = ?, source_url = ?, placeholder = ?, updated_at = ?
		WHERE id = ?`,
		f.Nickname, f.WeightClass, f.Nationality, f.ImageURL,
		f.Record.String(), f.Record.Wins, f.Record.Losses, f.Record.Draws,
		f.SourceURL, boolInt(f.Placeholder), f.UpdatedAt.Unix(),
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("update fighter %d: %w", f.ID, err)
	}
	return nil
}

const boutColumns = `id, fighter1_id, fighter2_id, date, outcome, winner_id, method,
	scheduled_rounds, venue, location, source_url, created_at`

func scanBout(row scanner) (plugin.Bout, error) {
	var (
		b       plugin.Bout
		date    string
		outcome string
		winner  sql.NullInt64
		created int64
	)
	err := row.Scan(
		&b.ID, &b.Fighter1ID, &b.Fighter2ID, &date, &outcome, &winner, &b.Method,
		&b.ScheduledRounds, &b.Venue, &b.Location, &b.SourceURL, &created,
	)
	if err != nil {
		return b, err
	}
	b.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return b, fmt.Errorf("bout %d: bad date %q: %w", b.ID, date, err)
	}
	b.Outcome = plugin.Outcome(outcome)
	if winner.Valid {
		b.WinnerID = winner.Int64
	}
	b.CreatedAt = time.Unix(created, 0)
	return b, nil
}

// FindBoutInWindow finds a bout between the two fighters, in either slot
// order, dated within window of date.
func (s *Store) FindBoutInWindow(ctx context.Context, fighterA, fighterB int64, date time.Time, window time.Duration) (*plugin.Bout, error) {
	days := window.Hours() / 24
	row := s.db.QueryRowContext(ctx,
		`SELECT `+boutColumns+` FROM bouts
		WHERE ((fighter1_id = ?1 AND fighter2_id = ?2) OR (fighter1_id = ?2 AND fighter2_id = ?1))
			AND abs(julianday(date) - julianday(?3)) <= ?4
		ORDER BY id LIMIT 1`,
		fighterA, fighterB, date.Format(dateLayout), days,
	)
	b, err := scanBout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find bout %d vs %d: %w", fighterA, fighterB, err)
	}
	return &b, nil
}

func (s *Store) CreateBout(ctx context.Context, b *plugin.Bout) error {
	var winner sql.NullInt64
	if b.WinnerID != 0 {
		winner = sql.NullInt64{Int64: b.WinnerID, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bouts (fighter1_id, fighter2_id, date, outcome, winner_id, method,
			scheduled_rounds, venue, location, source_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Fighter1ID, b.Fighter2ID, b.Date.Format(dateLayout), string(b.Outcome), winner, b.Method,
		b.ScheduledRounds, b.Venue, b.Location, b.SourceURL, b.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create bout %d vs %d: %w", b.Fighter1ID, b.Fighter2ID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

// ListBouts returns every stored bout ordered by date.
func (s *Store) ListBouts(ctx context.Context) ([]plugin.Bout, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+boutColumns+` FROM bouts ORDER BY date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []plugin.Bout
	for rows.Next() {
		b, err := scanBout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
