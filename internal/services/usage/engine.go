// Package usage связывает компоненты движка учёта во внешние интерфейсы:
// допуск, подтверждение использования, гостевой режим и чтение агрегатов.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/study-notes/internal/lib/clock"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// Ledger QuotaLedger.
type Ledger interface {
	CheckAndReserve(ctx context.Context, principalID string, tool models.ToolKind) (models.Admission, error)
	Commit(ctx context.Context, reservation models.Reservation, tokens int64) (*models.QuotaRecord, error)
	Release(ctx context.Context, reservation models.Reservation) error
	Remaining(ctx context.Context, principalID string) (models.QuotaView, error)
	SetLimits(ctx context.Context, principalID string, limits models.QuotaLimits) error
}

// Trials GuestTrialTracker.
type Trials interface {
	Initialize(ctx context.Context, session string) (models.GuestState, error)
	Require(ctx context.Context, session string) error
	CanUse(ctx context.Context, session string, tool models.ToolKind) (models.TrialStatus, error)
	Increment(ctx context.Context, session string, tool models.ToolKind) (int, error)
	CanCreateNote(ctx context.Context, session string) (models.TrialStatus, error)
	IncrementNote(ctx context.Context, session string) (int, error)
	ClearOnUpgrade(ctx context.Context, session string) error
}

// EventLog журнал событий использования и связанные с ним записи.
type EventLog interface {
	AppendEvent(ctx context.Context, event models.UsageEvent) (int64, error)
	CreateArtifact(ctx context.Context, artifact models.ExpiringArtifact) (int64, error)
	AppendActivity(ctx context.Context, entry models.ActivityEntry) (int64, error)
	RecordNote(ctx context.Context, ownerID, title string, createdAt time.Time) (int64, error)
}

// Aggregates AggregateCache.
type Aggregates interface {
	Get(ctx context.Context, principalID string) (models.Snapshot, bool, error)
	Invalidate(ctx context.Context, principalID string) error
	Dashboard(ctx context.Context, principalID string) (models.Dashboard, error)
}

// Engine фасад движка учёта использования.
type Engine struct {
	ledger      Ledger
	trials      Trials
	events      EventLog
	aggregates  Aggregates
	clock       clock.Clock
	artifactTTL time.Duration
	log         *slog.Logger
}

// NewEngine создаёт Engine. artifactTTL <= 0 заменяется на models.DefaultArtifactTTL.
func NewEngine(ledger Ledger, trials Trials, events EventLog, aggregates Aggregates,
	clk clock.Clock, artifactTTL time.Duration, log *slog.Logger) *Engine {
	if artifactTTL <= 0 {
		artifactTTL = models.DefaultArtifactTTL
	}
	return &Engine{
		ledger:      ledger,
		trials:      trials,
		events:      events,
		aggregates:  aggregates,
		clock:       clk,
		artifactTTL: artifactTTL,
		log:         log,
	}
}

// CheckAdmission проверяет и резервирует допуск аутентифицированного принципала.
func (e *Engine) CheckAdmission(ctx context.Context, principalID string, tool models.ToolKind) (models.Admission, error) {
	const op = "usage.CheckAdmission"
	if !tool.Valid() {
		return models.Admission{}, fmt.Errorf("%s: %w: %q", op, models.ErrUnknownTool, tool)
	}
	admission, err := e.ledger.CheckAndReserve(ctx, principalID, tool)
	if err != nil {
		return models.Admission{}, fmt.Errorf("%s: %w", op, err)
	}
	return admission, nil
}

// CommitUsage фиксирует успешно выполненную операцию: событие в журнале,
// артефакт со сроком жизни, запись активности, подтверждение квоты
// и инвалидация агрегата принципала.
func (e *Engine) CommitUsage(ctx context.Context, reservation models.Reservation, tokens int64, content string) error {
	const op = "usage.CommitUsage"
	log := e.log.With(slog.String("op", op), slog.String("principal_id", reservation.PrincipalID))
	now := e.clock.Now()

	eventID, err := e.events.AppendEvent(ctx, models.UsageEvent{
		PrincipalID: reservation.PrincipalID,
		Category:    reservation.Tool,
		Tokens:      tokens,
		CreatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := e.ledger.Commit(ctx, reservation, tokens); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := e.events.CreateArtifact(ctx, models.ExpiringArtifact{
		PrincipalID: reservation.PrincipalID,
		Content:     content,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.artifactTTL),
	}); err != nil {
		log.Error("failed to store artifact", slog.Int64("event_id", eventID), sl.Err(err))
	}
	if _, err := e.events.AppendActivity(ctx, models.ActivityEntry{
		PrincipalID: reservation.PrincipalID,
		Action:      "tool." + string(reservation.Tool),
		Details:     fmt.Sprintf("tokens=%d", tokens),
		CreatedAt:   now,
	}); err != nil {
		log.Error("failed to append activity", slog.Int64("event_id", eventID), sl.Err(err))
	}

	if err := e.aggregates.Invalidate(ctx, reservation.PrincipalID); err != nil {
		log.Error("failed to invalidate aggregate", sl.Err(err))
	}
	log.Debug("usage committed", slog.Int64("event_id", eventID), slog.Int64("tokens", tokens))
	return nil
}

// ReleaseUsage возвращает резерв операции, которая не была выполнена.
func (e *Engine) ReleaseUsage(ctx context.Context, reservation models.Reservation) error {
	const op = "usage.ReleaseUsage"
	if err := e.ledger.Release(ctx, reservation); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Remaining возвращает остаток квоты принципала.
func (e *Engine) Remaining(ctx context.Context, principalID string) (models.QuotaView, error) {
	const op = "usage.Remaining"
	view, err := e.ledger.Remaining(ctx, principalID)
	if err != nil {
		return models.QuotaView{}, fmt.Errorf("%s: %w", op, err)
	}
	return view, nil
}

// SetLimits заменяет лимиты принципала.
func (e *Engine) SetLimits(ctx context.Context, principalID string, limits models.QuotaLimits) error {
	const op = "usage.SetLimits"
	if err := e.ledger.SetLimits(ctx, principalID, limits); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAggregate возвращает снимок статистики принципала.
func (e *Engine) GetAggregate(ctx context.Context, principalID string) (models.Snapshot, bool, error) {
	const op = "usage.GetAggregate"
	snap, fresh, err := e.aggregates.Get(ctx, principalID)
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return snap, fresh, nil
}

// InvalidateAggregate помечает снимок принципала как устаревший.
func (e *Engine) InvalidateAggregate(ctx context.Context, principalID string) error {
	const op = "usage.InvalidateAggregate"
	if err := e.aggregates.Invalidate(ctx, principalID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Dashboard основной путь чтения статистики.
func (e *Engine) Dashboard(ctx context.Context, principalID string) (models.Dashboard, error) {
	const op = "usage.Dashboard"
	dashboard, err := e.aggregates.Dashboard(ctx, principalID)
	if err != nil {
		return models.Dashboard{}, fmt.Errorf("%s: %w", op, err)
	}
	return dashboard, nil
}
