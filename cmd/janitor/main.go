// Package main запускает фоновые задачи очистки и пересчёта статистики.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/study-notes/internal/app/janitor"
	"github.com/magabrotheeeer/study-notes/internal/config"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)
	logger.Info("starting janitor", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := janitor.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize janitor", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("janitor stopped with error", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("janitor stopped gracefully")
}
