package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/radarprecios/radarprecios-backend/pkg/config"
	"github.com/radarprecios/radarprecios-backend/pkg/db"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command>

commands:
  up | down | redo | status   apply goose migrations
  to <version>                move the schema to YYYYMMDDHHMMSS
  create <name>               write an empty migration
  validate                    lint filenames and goose annotations
`

func main() {
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, arg := args[0], ""
	if len(args) > 1 {
		arg = args[1]
	}

	// create and validate never need the database or the full config.
	switch command {
	case "create":
		if arg == "" {
			fail("create needs a migration name")
		}
		path, err := migrate.CreateSQLMigration(*dir, arg)
		if err != nil {
			fail(err.Error())
		}
		fmt.Println(path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail(err.Error())
		}
		fmt.Println("migrations ok")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fail("load config: " + err.Error())
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": command,
		"dir": *dir,
	})

	if err := run(ctx, cfg, logg, *dir, command, arg); err != nil {
		logg.Error(ctx, "migrate.aborted", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate.done")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, dir, command, arg string) error {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()

	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, dir, logg)
	if err != nil {
		return err
	}

	if command == "to" {
		if arg == "" {
			return fmt.Errorf("to needs a target version")
		}
		return runner.To(ctx, arg)
	}
	return runner.Apply(ctx, command)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "migrate:", msg)
	os.Exit(1)
}
