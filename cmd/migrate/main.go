// Command migrate applies and authors the fees database schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/infrastructure/config"
	"github.com/schoolfees/backend/internal/infrastructure/logger"
	"github.com/schoolfees/backend/internal/infrastructure/migration"
	"github.com/schoolfees/backend/migrations"
)

const usage = `School fees schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands that need the database:
  up                    apply every pending migration
  down                  roll back every migration
  step <n>              apply n migrations, negative n rolls back
  goto <version>        migrate to a version
  version               print the applied version
  force <version>       mark a version as applied without running it
  drop -confirm         drop every object in the database

Commands that only touch files:
  create <name> [desc]  write a new up/down pair into -dir
  list                  list migrations in the selected source

Flags:
  -dir string           read migrations from this directory instead of the
                        schema compiled into the binary
  -log-level string     debug, info, warn or error (default info)

The database is configured like the server (config.toml, FEES_DATABASE_*).`

type command struct {
	needsDB bool
	minArgs int
	run     func(env *env, args []string) error
}

type env struct {
	log      *zap.Logger
	dir      string
	migrator *migration.Migrator
}

var commands = map[string]command{
	"up":   {needsDB: true, run: func(e *env, _ []string) error { return e.migrator.Up() }},
	"down": {needsDB: true, run: func(e *env, _ []string) error { return e.migrator.Down() }},
	"step": {needsDB: true, minArgs: 1, run: func(e *env, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("step count %q: %w", args[0], err)
		}
		return e.migrator.Steps(n)
	}},
	"goto": {needsDB: true, minArgs: 1, run: func(e *env, args []string) error {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("version %q: %w", args[0], err)
		}
		return e.migrator.GoTo(uint(v))
	}},
	"version": {needsDB: true, run: func(e *env, _ []string) error {
		v, dirty, err := e.migrator.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			e.log.Info("no migrations applied")
			return nil
		}
		e.log.Info("schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
	"force": {needsDB: true, minArgs: 1, run: func(e *env, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("version %q: %w", args[0], err)
		}
		e.log.Warn("forcing schema version", zap.Int("version", v))
		return e.migrator.Force(v)
	}},
	"drop": {needsDB: true, minArgs: 1, run: func(e *env, args []string) error {
		if args[0] != "-confirm" && args[0] != "--confirm" {
			return errors.New("drop needs -confirm")
		}
		return e.migrator.Drop()
	}},
	"create": {minArgs: 1, run: func(e *env, args []string) error {
		if e.dir == "" {
			return errors.New("create needs -dir pointing at the migrations directory")
		}
		desc := ""
		if len(args) > 1 {
			desc = args[1]
		}
		mf, err := migration.CreateMigration(e.dir, args[0], desc)
		if err != nil {
			return err
		}
		e.log.Info("migration created", zap.String("up", mf.UpPath), zap.String("down", mf.DownPath))
		return nil
	}},
	"list": {run: func(e *env, _ []string) error {
		names, err := migration.ListMigrations(e.source())
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}},
}

func (e *env) source() fs.FS {
	if e.dir != "" {
		return os.DirFS(e.dir)
	}
	return migrations.FS
}

func main() {
	dir := flag.String("dir", "", "migrations directory (default: embedded schema)")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok || len(args)-1 < cmd.minArgs {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *logLevel, Format: "console", Output: "stdout", TimeFormat: "15:04:05"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	e := &env{log: log, dir: *dir}
	if cmd.needsDB {
		closeDB, err := e.connect()
		if err != nil {
			log.Fatal("cannot open migrator", zap.Error(err))
		}
		defer closeDB()
	}

	if err := cmd.run(e, args[1:]); err != nil {
		log.Fatal("migrate "+args[0]+" failed", zap.Error(err))
	}
}

// connect opens the configured PostgreSQL database and a migrator over the
// selected source
func (e *env) connect() (func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if e.dir != "" {
		e.migrator, err = migration.New(db, e.dir, e.log)
	} else {
		e.migrator, err = migration.NewFromFS(db, e.source(), e.log)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	e.log.Info("migrator ready", zap.String("host", cfg.Database.Host), zap.String("dbname", cfg.Database.DBName))
	return func() {
		_ = e.migrator.Close()
		_ = db.Close()
	}, nil
}
