// Command migrate manages the Postgres schema: it applies pending
// migrations, rolls back the latest one, loads seed data, and prints
// the applied history.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"atrium.org/internal/migrate"
)

const usageText = `usage: migrate [flags] <command>

commands:
  up      apply all pending migrations
  down    roll back the most recent migration
  seed    load seed data (idempotent)
  status  print applied migrations in order

flags:
`

func main() {
	dsn := flag.String("dsn", os.Getenv("ATRIUM_PG_DSN"), "PostgreSQL DSN (defaults to ATRIUM_PG_DSN)")
	dir := flag.String("dir", "ops/migrations", "directory holding sql/ and seeds/")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	quiet := flag.Bool("quiet", false, "suppress per-file logging")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	if err := run(command, *dsn, *dir, *timeout, *quiet); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", command, err)
		os.Exit(1)
	}
}

func run(command, dsn, dir string, timeout time.Duration, quiet bool) error {
	if dsn == "" {
		return errors.New("no DSN: set -dsn or ATRIUM_PG_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	logger := zap.NewNop()
	if !quiet {
		if logger, err = zap.NewProduction(); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	mgr := migrate.NewManager(db,
		filepath.Join(dir, "sql"),
		filepath.Join(dir, "seeds"),
		migrate.WithLogger(logger))

	switch command {
	case "up":
		return mgr.Up(ctx)
	case "down":
		return mgr.Down(ctx)
	case "seed":
		return mgr.Seed(ctx)
	case "status":
		applied, err := mgr.Status(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("no migrations applied")
			return nil
		}
		for _, name := range applied {
			fmt.Println(name)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
