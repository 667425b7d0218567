package database

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

const migrationsDir = "migrations"

var (
	//go:embed migrations/*.sql
	migrationsFS embed.FS

	// mockable
	sleepFunc = sleepCtx
)

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Open opens a connection pool. It does not wait for the server; see WaitReady.
func Open(driver, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", driver)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// WaitReady waits for the database to be ready. Waits 100ms longer between each attempt.
func WaitReady(ctx context.Context, db Pinger, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		if serr := sleepFunc(ctx, time.Duration(attempt)*100*time.Millisecond); serr != nil {
			return errors.Wrap(err, "DB ping interrupted")
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunMigrations runs a goose command (up, down, status, ...) over the embedded Postgres migrations.
func RunMigrations(command string, db *sql.DB, args ...string) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Run(command, db, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "goose %s", command)
	}
	return nil
}

// Migrate brings the schema up to date.
func Migrate(db *sql.DB) error {
	return RunMigrations("up", db)
}
