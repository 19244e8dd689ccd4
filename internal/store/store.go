// Package store persists user-defined events in a local SQLite database.
// It is the only stateful component of the engine and owns serialization of
// model.CustomEvent.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	applog "daycount/internal/log"
	"daycount/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS custom_events (
	id            TEXT PRIMARY KEY,
	category      TEXT NOT NULL,
	name          TEXT NOT NULL,
	month         INTEGER NOT NULL,
	day           INTEGER NOT NULL,
	lunar         BOOLEAN NOT NULL DEFAULT 0,
	one_time_year INTEGER,
	UNIQUE (category, name)
);`

// Store is a SQLite-backed repository of custom events. Writes are
// serialized through an internal mutex so that read-modify-write cycles
// (duplicate check, then append) cannot lose an insert when callers race.
type Store struct {
	db *sqlx.DB

	// wmu serializes ReplaceAll and Mutate.
	wmu sync.Mutex
}

// Open opens (creating if necessary) the database at path and applies the
// schema. The parent directory is created when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply event store schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// eventRow is the storage representation of model.CustomEvent.
type eventRow struct {
	ID          string `db:"id"`
	Category    string `db:"category"`
	Name        string `db:"name"`
	Month       int    `db:"month"`
	Day         int    `db:"day"`
	Lunar       bool   `db:"lunar"`
	OneTimeYear *int   `db:"one_time_year"`
}

func toRow(ev model.CustomEvent) eventRow {
	return eventRow{
		ID:          ev.ID,
		Category:    string(ev.Category),
		Name:        ev.Name,
		Month:       ev.Spec.Month,
		Day:         ev.Spec.Day,
		Lunar:       ev.Spec.Lunar,
		OneTimeYear: ev.OneTimeYear,
	}
}

func fromRow(r eventRow) model.CustomEvent {
	return model.CustomEvent{
		ID:          r.ID,
		Category:    model.Category(r.Category),
		Name:        r.Name,
		Spec:        model.CalendarSpec{Month: r.Month, Day: r.Day, Lunar: r.Lunar},
		OneTimeYear: r.OneTimeYear,
	}
}

// List returns every persisted custom event. An empty store yields an empty
// slice. Read failures (a corrupted database file, rows that no longer
// scan) are logged and degrade to an empty list: this is user-facing local
// state with no server-side copy, and the user re-adding events beats the
// application crashing.
func (s *Store) List(ctx context.Context) ([]model.CustomEvent, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, category, name, month, day, lunar, one_time_year
		 FROM custom_events ORDER BY category, name`)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		applog.Error("event store read failed, treating as empty", err)
		return []model.CustomEvent{}, nil
	}

	events := make([]model.CustomEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, fromRow(r))
	}
	return events, nil
}

// ReplaceAll overwrites the persisted set with events in one transaction,
// so concurrent readers observe either the old list or the new one, never a
// torn write.
func (s *Store) ReplaceAll(ctx context.Context, events []model.CustomEvent) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.replaceAllLocked(ctx, events)
}

func (s *Store) replaceAllLocked(ctx context.Context, events []model.CustomEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM custom_events`); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	for _, ev := range events {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO custom_events (id, category, name, month, day, lunar, one_time_year)
			 VALUES (:id, :category, :name, :month, :day, :lunar, :one_time_year)`,
			toRow(ev))
		if err != nil {
			return fmt.Errorf("insert event %q: %w", ev.Name, err)
		}
	}

	return tx.Commit()
}

// Mutate runs fn over the current event list under the writer lock and
// persists whatever fn returns. Errors from fn abort the mutation and are
// returned unchanged, so sentinel errors (duplicate name, not found) pass
// through to the caller.
func (s *Store) Mutate(ctx context.Context, fn func([]model.CustomEvent) ([]model.CustomEvent, error)) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	current, err := s.List(ctx)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return s.replaceAllLocked(ctx, next)
}
