// Package sqlite stores the migration state in a local SQLite file, so it survives restarts.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/trezcool/masomodb/core/state"
)

const schema = `
CREATE TABLE IF NOT EXISTS migration_state (
	key        TEXT PRIMARY KEY,
	value      INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`

const upsert = `
INSERT INTO migration_state (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

var (
	pragmas = []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}

	nowFunc = time.Now
)

type Tracker struct {
	db *sqlx.DB
}

var _ state.Tracker = (*Tracker)(nil)

// Open opens (creating if needed) the state database at path.
func Open(path string) (*Tracker, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening state database")
	}
	// one writer; keeps WAL semantics simple for a handful of keys
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "setting %q", pragma)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating migration_state table")
	}
	return &Tracker{db: db}, nil
}

func (t *Tracker) Close() error {
	return t.db.Close()
}

func (t *Tracker) get(ctx context.Context, key string) (int, error) {
	var value int
	err := t.db.GetContext(ctx, &value, "SELECT value FROM migration_state WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", key)
	}
	return value, nil
}

func (t *Tracker) set(ctx context.Context, key string, value int) error {
	if _, err := t.db.ExecContext(ctx, upsert, key, value, nowFunc().UTC().Format(time.RFC3339Nano)); err != nil {
		return errors.Wrapf(err, "writing %s", key)
	}
	return nil
}

func (t *Tracker) GetFlag(ctx context.Context, flag state.Flag) (bool, error) {
	value, err := t.get(ctx, string(flag))
	return value != 0, err
}

func (t *Tracker) SetFlag(ctx context.Context, flag state.Flag, value bool) error {
	var v int
	if value {
		v = 1
	}
	return t.set(ctx, string(flag), v)
}

func (t *Tracker) GetVersion(ctx context.Context) (int, error) {
	return t.get(ctx, state.VersionKey)
}

func (t *Tracker) SetVersion(ctx context.Context, version int) error {
	return t.set(ctx, state.VersionKey, version)
}

// ClearAll deletes every key in one transaction.
func (t *Tracker) ClearAll(ctx context.Context) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM migration_state"); err != nil {
		return errors.Wrap(err, "clearing migration state")
	}
	return errors.Wrap(tx.Commit(), "committing migration state reset")
}
