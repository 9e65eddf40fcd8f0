// Command migrate manages the TERRA schema with goose.
//
//	migrate -cmd up|down|status            apply, roll back or list migrations
//	migrate -cmd version -version <v>      move the schema to exactly <v>
//	migrate -cmd create -name "add x"      scaffold a new migration file
//	migrate -cmd validate                  lint migration files offline
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/terra-sneakers/terra-backend/pkg/config"
	"github.com/terra-sneakers/terra-backend/pkg/db"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "migrate"}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd, "dir": *dir})
	fail := func(msg string, err error) {
		logg.Error(ctx, msg, err)
		os.Exit(1)
	}

	offline := map[string]func() error{
		"create": func() error {
			if *name == "" {
				return fmt.Errorf("-name is required")
			}
			path, err := migrate.CreateSQLMigration(*dir, *name)
			if err == nil {
				fmt.Println("created migration:", path)
			}
			return err
		},
		"validate": func() error {
			if err := migrate.ValidateDir(*dir); err != nil {
				return err
			}
			fmt.Println("migration validation passed")
			return nil
		},
	}
	if run, ok := offline[*cmd]; ok {
		if err := run(); err != nil {
			fail("migrate "+*cmd+" failed", err)
		}
		return
	}

	online := map[string]func(*sql.DB) error{
		"up":     func(s *sql.DB) error { return migrate.Run(ctx, s, *dir, "up") },
		"down":   func(s *sql.DB) error { return migrate.Run(ctx, s, *dir, "down") },
		"status": func(s *sql.DB) error { return migrate.Run(ctx, s, *dir, "status") },
		"version": func(s *sql.DB) error {
			if *target == "" {
				return fmt.Errorf("-version is required")
			}
			return migrate.MigrateToVersion(ctx, s, *dir, *target)
		},
	}
	run, ok := online[*cmd]
	if !ok {
		fail("unknown command", fmt.Errorf("-cmd %q", *cmd))
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail("failed to bootstrap database", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail("failed to open sql handle", err)
	}
	if err := run(sqlDB); err != nil {
		_ = dbClient.Close()
		fail("migrate "+*cmd+" failed", err)
	}
	logg.Info(ctx, "migrate "+*cmd+" complete")
}
