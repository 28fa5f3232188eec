// Package aggregate реализует AggregateCache: снимок производной статистики
// принципала с ограниченным окном свежести, пересчитываемый из журнала событий
// при чтении устаревшего или инвалидированного снимка.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/study-notes/internal/lib/clock"
	"github.com/magabrotheeeer/study-notes/internal/lib/metrics"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// SnapshotStore хранилище снимков, по одной строке на принципала.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, principalID string) (*models.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
	InvalidateSnapshot(ctx context.Context, principalID string) error
}

// Sources исходные данные для пересчёта снимка.
type Sources interface {
	EventStats(ctx context.Context, principalID string, weekStart, asOf time.Time) (models.EventStats, error)
	NoteStats(ctx context.Context, ownerID string, weekStart, asOf time.Time) (int, int, error)
	ActivityStats(ctx context.Context, principalID string, asOf time.Time) (int, *time.Time, error)
}

// ResponseCache короткоживущий кеш ответов перед Dashboard.
type ResponseCache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Options параметры кеша.
type Options struct {
	FreshnessWindow time.Duration
	WeekWindow      time.Duration
	ResponseTTL     time.Duration
}

// Cache реализует чтение и инвалидацию агрегированной статистики.
type Cache struct {
	store     SnapshotStore
	sources   Sources
	responses ResponseCache
	clock     clock.Clock
	opts      Options
	log       *slog.Logger
}

// NewCache создаёт Cache. responses может быть nil, тогда Dashboard читает напрямую через Get.
func NewCache(store SnapshotStore, sources Sources, responses ResponseCache, clk clock.Clock,
	opts Options, log *slog.Logger) *Cache {
	return &Cache{
		store:     store,
		sources:   sources,
		responses: responses,
		clock:     clk,
		opts:      opts,
		log:       log,
	}
}

func dashboardKey(principalID string) string {
	return "aggregate:dashboard:" + principalID
}

// Get возвращает снимок принципала и признак того, что он отдан без пересчёта.
// Если пересчёт упирается в несогласованные данные, отдаётся последний сохранённый снимок.
func (c *Cache) Get(ctx context.Context, principalID string) (models.Snapshot, bool, error) {
	const op = "aggregate.Get"
	log := c.log.With(slog.String("op", op), slog.String("principal_id", principalID))
	now := c.clock.Now()

	stored, err := c.store.GetSnapshot(ctx, principalID)
	if err != nil && !errors.Is(err, models.ErrRecordNotFound) {
		return models.Snapshot{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if stored != nil && stored.FreshAt(now, c.opts.FreshnessWindow) {
		metrics.AggregateReads.WithLabelValues("fresh").Inc()
		return *stored, true, nil
	}

	snap, err := c.recompute(ctx, principalID, now)
	if err != nil {
		if stored != nil && errors.Is(err, models.ErrComputeInconsistency) {
			log.Warn("recompute inconsistent, serving last known snapshot", sl.Err(err))
			metrics.AggregateReads.WithLabelValues("stale").Inc()
			return *stored, false, nil
		}
		return models.Snapshot{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		return models.Snapshot{}, false, fmt.Errorf("%s: %w", op, err)
	}
	metrics.AggregateReads.WithLabelValues("recomputed").Inc()
	return snap, false, nil
}

// Invalidate помечает снимок как требующий пересчёта и сбрасывает кеш ответа.
func (c *Cache) Invalidate(ctx context.Context, principalID string) error {
	const op = "aggregate.Invalidate"

	if err := c.store.InvalidateSnapshot(ctx, principalID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.dropResponse(ctx, principalID)
	return nil
}

// Refresh пересчитывает и сохраняет снимок независимо от его свежести.
func (c *Cache) Refresh(ctx context.Context, principalID string) error {
	const op = "aggregate.Refresh"

	snap, err := c.recompute(ctx, principalID, c.clock.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.dropResponse(ctx, principalID)
	return nil
}

// Dashboard основной путь чтения статистики с кешем ответа на ResponseTTL.
// Сбои кеша ответа не влияют на результат.
func (c *Cache) Dashboard(ctx context.Context, principalID string) (models.Dashboard, error) {
	const op = "aggregate.Dashboard"
	log := c.log.With(slog.String("op", op), slog.String("principal_id", principalID))
	key := dashboardKey(principalID)

	if c.responses != nil {
		var cached models.Dashboard
		found, err := c.responses.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("response cache read failed", sl.Err(err))
		}
		if found {
			return cached, nil
		}
	}

	snap, fresh, err := c.Get(ctx, principalID)
	if err != nil {
		return models.Dashboard{}, fmt.Errorf("%s: %w", op, err)
	}
	dashboard := models.Dashboard{Snapshot: snap, ServedFresh: fresh}

	if c.responses != nil {
		if err := c.responses.Set(ctx, key, dashboard, c.opts.ResponseTTL); err != nil {
			log.Warn("response cache write failed", sl.Err(err))
		}
	}
	return dashboard, nil
}

func (c *Cache) dropResponse(ctx context.Context, principalID string) {
	if c.responses == nil {
		return
	}
	if err := c.responses.Invalidate(ctx, dashboardKey(principalID)); err != nil {
		c.log.Warn("response cache invalidate failed",
			slog.String("principal_id", principalID), sl.Err(err))
	}
}
