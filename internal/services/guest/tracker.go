// Package guest реализует GuestTrialTracker: одноразовые пробные счётчики
// анонимных сессий. Гостевое использование не попадает в журнал событий,
// в квоты и в агрегированную статистику.
package guest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/study-notes/internal/lib/metrics"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// SessionStore хранилище состояния гостевых сессий, адресуемое токеном сессии.
type SessionStore interface {
	InitGuest(ctx context.Context, session, guestID string) (models.GuestState, bool, error)
	Get(ctx context.Context, session string) (models.GuestState, error)
	IncrTool(ctx context.Context, session string, tool models.ToolKind) (int, error)
	IncrNotes(ctx context.Context, session string) (int, error)
	Delete(ctx context.Context, session string) (bool, error)
}

// Limits пробные лимиты гостя.
type Limits struct {
	PerTool int
	Notes   int
}

// Tracker управляет пробным режимом.
type Tracker struct {
	store  SessionStore
	limits Limits
	log    *slog.Logger
}

// NewTracker создаёт Tracker.
func NewTracker(store SessionStore, limits Limits, log *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		limits: limits,
		log:    log,
	}
}

// Initialize помечает сессию как гостевую и возвращает guest id.
// Повторный вызов возвращает существующее состояние без сброса счётчиков.
func (t *Tracker) Initialize(ctx context.Context, session string) (models.GuestState, error) {
	const op = "guest.Initialize"

	state, created, err := t.store.InitGuest(ctx, session, uuid.NewString())
	if err != nil {
		return models.GuestState{}, fmt.Errorf("%s: %w", op, err)
	}
	if created {
		t.log.Info("guest session initialized", slog.String("op", op), slog.String("guest_id", state.GuestID))
	}
	return state, nil
}

// Require возвращает models.ErrNotGuest, если сессия не инициализирована
// как гостевая или уже переведена в принципала.
func (t *Tracker) Require(ctx context.Context, session string) error {
	const op = "guest.Require"

	if session == "" {
		return fmt.Errorf("%s: %w", op, models.ErrNotGuest)
	}
	state, err := t.store.Get(ctx, session)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !state.IsGuest {
		return fmt.Errorf("%s: %w", op, models.ErrNotGuest)
	}
	return nil
}

// CanUse проверяет пробный лимит инструмента.
// Для не гостевой сессии всегда разрешено: решение принимает QuotaLedger.
func (t *Tracker) CanUse(ctx context.Context, session string, tool models.ToolKind) (models.TrialStatus, error) {
	const op = "guest.CanUse"

	state, err := t.store.Get(ctx, session)
	if err != nil {
		return models.TrialStatus{}, fmt.Errorf("%s: %w", op, err)
	}
	if !state.IsGuest {
		return models.TrialStatus{Tool: tool, Allowed: true}, nil
	}

	usage := state.ToolAttempts[tool]
	status := models.TrialStatus{
		Tool:         tool,
		Usage:        usage,
		Limit:        t.limits.PerTool,
		LimitReached: usage >= t.limits.PerTool,
	}
	status.Allowed = !status.LimitReached
	recordTrial(tool, status.Allowed)
	return status, nil
}

// Increment учитывает одну попытку инструмента. Не гостевые сессии игнорируются.
func (t *Tracker) Increment(ctx context.Context, session string, tool models.ToolKind) (int, error) {
	const op = "guest.Increment"

	state, err := t.store.Get(ctx, session)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if !state.IsGuest {
		return 0, nil
	}
	n, err := t.store.IncrTool(ctx, session, tool)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// CanCreateNote проверяет лимит гостевых заметок.
func (t *Tracker) CanCreateNote(ctx context.Context, session string) (models.TrialStatus, error) {
	const op = "guest.CanCreateNote"

	state, err := t.store.Get(ctx, session)
	if err != nil {
		return models.TrialStatus{}, fmt.Errorf("%s: %w", op, err)
	}
	if !state.IsGuest {
		return models.TrialStatus{Allowed: true}, nil
	}
	status := models.TrialStatus{
		Usage:        state.NoteCount,
		Limit:        t.limits.Notes,
		LimitReached: state.NoteCount >= t.limits.Notes,
	}
	status.Allowed = !status.LimitReached
	return status, nil
}

// IncrementNote учитывает созданную гостем заметку.
func (t *Tracker) IncrementNote(ctx context.Context, session string) (int, error) {
	const op = "guest.IncrementNote"

	state, err := t.store.Get(ctx, session)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if !state.IsGuest {
		return 0, nil
	}
	n, err := t.store.IncrNotes(ctx, session)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// ClearOnUpgrade удаляет все гостевые ключи сессии при переходе к аутентифицированному принципалу.
// Возвращает models.ErrNotGuest, если сессия не была гостевой или уже очищена.
func (t *Tracker) ClearOnUpgrade(ctx context.Context, session string) error {
	const op = "guest.ClearOnUpgrade"

	deleted, err := t.store.Delete(ctx, session)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !deleted {
		return fmt.Errorf("%s: %w", op, models.ErrNotGuest)
	}
	t.log.Info("guest session upgraded", slog.String("op", op))
	return nil
}

func recordTrial(tool models.ToolKind, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "exhausted"
	}
	metrics.TrialDecisions.WithLabelValues(string(tool), outcome).Inc()
}
