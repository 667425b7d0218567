package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomodb/apps/shared"
	"github.com/trezcool/masomodb/core"
	logsvc "github.com/trezcool/masomodb/services/logger"
	"github.com/trezcool/masomodb/storage/database"
	"github.com/trezcool/masomodb/storage/remote/sqlstore"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.New(conf, os.Stderr).With("component", "admin")

	stack, err := shared.NewStack(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal("setting up", err)
	}

	cli := commandLine{
		conf:   conf,
		orch:   stack.Orchestrator,
		users:  stack.Gateway,
		openDB: func() (*sql.DB, error) { return openRemoteDB(conf) },
		out:    os.Stdout,
		now:    time.Now,
	}
	err = cli.run(os.Args)
	if cerr := stack.Close(); cerr != nil {
		logger.Error("closing", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(err.Error(), err)
		}
		os.Exit(1)
	}
}

// openRemoteDB connects to the remote store for schema migrations, which are written for Postgres.
func openRemoteDB(conf *core.Config) (*sql.DB, error) {
	u, err := url.Parse(conf.Remote.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing remote url")
	}
	driver, dsn, err := sqlstore.DSN(u, conf.Remote.Key)
	if err != nil {
		return nil, err
	}
	if driver != "postgres" {
		return nil, errors.Errorf("migrations need a Postgres remote store, got %q", u.Scheme)
	}
	db, err := database.Open(driver, dsn, 1)
	if err != nil {
		return nil, err
	}
	timeout := conf.Remote.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := database.WaitReady(ctx, db, conf.Remote.ConnectAttempts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db.DB, nil
}
