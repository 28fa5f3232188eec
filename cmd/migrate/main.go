// Package main применяет миграции схемы и завершается.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/magabrotheeeer/study-notes/internal/config"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/migrations"
	"github.com/magabrotheeeer/study-notes/internal/storage/repository"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	path := flag.String("path", cfg.MigrationsPath, "directory with migration files")
	flag.Parse()

	if err := run(cfg.StorageConnectionString, *path); err != nil {
		logger.Error("failed to apply migrations", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("migrations applied", slog.String("path", *path))
}

func run(dsn, path string) error {
	db, err := repository.New(dsn)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	return migrations.Run(db.DB, path)
}
