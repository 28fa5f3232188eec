package usageapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/study-notes/internal/cache"
	"github.com/magabrotheeeer/study-notes/internal/config"
	"github.com/magabrotheeeer/study-notes/internal/http/handlers/health"
	"github.com/magabrotheeeer/study-notes/internal/http/handlers/tools/proxy"
	"github.com/magabrotheeeer/study-notes/internal/http/middlewarectx"
	"github.com/magabrotheeeer/study-notes/internal/lib/clock"
	"github.com/magabrotheeeer/study-notes/internal/lib/jwt"
	"github.com/magabrotheeeer/study-notes/internal/migrations"
	"github.com/magabrotheeeer/study-notes/internal/models"
	"github.com/magabrotheeeer/study-notes/internal/services/aggregate"
	"github.com/magabrotheeeer/study-notes/internal/services/guest"
	"github.com/magabrotheeeer/study-notes/internal/services/quota"
	"github.com/magabrotheeeer/study-notes/internal/services/usage"
	"github.com/magabrotheeeer/study-notes/internal/storage/repository"
	"github.com/magabrotheeeer/study-notes/internal/storage/session"
)

// App HTTP API движка учёта использования.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
}

// New поднимает хранилища, применяет миграции и собирает движок.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	tools, err := proxy.New(logger, cfg.UpstreamToolURL)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, err
	}

	clk := clock.Real{}
	ledger := quota.NewLedger(db, models.QuotaLimits{
		Daily:   cfg.DailyLimit,
		Monthly: cfg.MonthlyLimit,
	}, clk, logger)
	tracker := guest.NewTracker(
		session.NewRedisStore(cacheRedis.Db, cfg.SessionTTL),
		guest.Limits{PerTool: cfg.ToolLimit, Notes: cfg.NoteLimit},
		logger,
	)
	aggregates := aggregate.NewCache(db, db, cacheRedis, clk, aggregate.Options{
		FreshnessWindow: cfg.FreshnessWindow,
		WeekWindow:      cfg.WeekWindow,
		ResponseTTL:     cfg.ResponseTTL,
	}, logger)
	engine := usage.NewEngine(ledger, tracker, db, aggregates, clk, cfg.ArtifactTTL, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Engine:  engine,
		Tokens:  jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Limiter: middlewarectx.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		Tools:   tools,
		Health: map[string]health.Checker{
			"postgres": db.DB.PingContext,
			"redis":    func(ctx context.Context) error { return cacheRedis.Db.Ping(ctx).Err() },
		},
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", slog.Any("err", err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", slog.Any("err", err))
	}
}
