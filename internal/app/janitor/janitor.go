// Package janitor собирает процесс фоновых задач: очистку артефактов и журнала
// активности, пересчёт снимков статистики и служебный HTTP для метрик.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/study-notes/internal/cache"
	"github.com/magabrotheeeer/study-notes/internal/config"
	"github.com/magabrotheeeer/study-notes/internal/http/handlers/health"
	"github.com/magabrotheeeer/study-notes/internal/http/handlers/janitor/runjob"
	"github.com/magabrotheeeer/study-notes/internal/lib/clock"
	"github.com/magabrotheeeer/study-notes/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/study-notes/internal/services/aggregate"
	janitorservice "github.com/magabrotheeeer/study-notes/internal/services/janitor"
	"github.com/magabrotheeeer/study-notes/internal/storage/repository"
)

// App представляет приложение фоновых задач.
type App struct {
	scheduler *janitorservice.Scheduler
	server    *http.Server
	db        *repository.Storage
	cache     *cache.Cache
	conn      *amqp.Connection
	ch        *amqp.Channel
	logger    *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения фоновых задач.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(ctx, logger, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.MaintenanceExchange, rabbitmq.GetMaintenanceQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	clk := clock.Real{}
	aggregates := aggregate.NewCache(db, db, cacheRedis, clk, aggregate.Options{
		FreshnessWindow: cfg.FreshnessWindow,
		WeekWindow:      cfg.WeekWindow,
		ResponseTTL:     cfg.ResponseTTL,
	}, logger)

	j := janitorservice.New(db, db, db, aggregates,
		rabbitmq.NewPublisher(ch, rabbitmq.MaintenanceExchange),
		clk, janitorservice.Options{
			ActivityRetention: cfg.ActivityRetention,
			ActiveWindow:      cfg.ActiveWindow,
			BatchSize:         cfg.BatchSize,
		}, logger)

	scheduler := janitorservice.NewScheduler(clk, logger, j.Jobs(janitorservice.ScheduleHours{
		Artifacts: cfg.ArtifactHour,
		Activity:  cfg.ActivityHour,
		Snapshots: cfg.SnapshotHour,
	})...)

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.Recoverer)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", health.New(logger, map[string]health.Checker{
		"postgres": db.DB.PingContext,
		"redis":    func(ctx context.Context) error { return cacheRedis.Db.Ping(ctx).Err() },
		"rabbitmq": func(context.Context) error {
			if conn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		},
	}).ServeHTTP)
	router.Post("/jobs/{job}/run", runjob.New(logger, scheduler).ServeHTTP)

	return &App{
		scheduler: scheduler,
		server: &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           router,
			ReadHeaderTimeout: cfg.TimeoutHTTP,
		},
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
		logger: logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", slog.Any("err", err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", slog.Any("err", err))
		}
	}
}

// Run запускает планировщик и служебный HTTP до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.scheduler.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("janitor service HTTP starting on", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}
	stop()

	a.logger.Info("shutting down janitor service")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", slog.Any("err", err))
	}
	wg.Wait()

	closeResources(a.ch, a.conn, a.logger)
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", slog.Any("err", err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", slog.Any("err", err))
	}
	return runErr
}
