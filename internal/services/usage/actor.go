package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// Actor субъект запроса: аутентифицированный принципал или гостевая сессия.
type Actor struct {
	PrincipalID string
	Session     string
}

// IsGuest сообщает, что запрос пришёл без аутентификации.
func (a Actor) IsGuest() bool {
	return a.PrincipalID == ""
}

// Decision результат допуска для любого вида субъекта.
type Decision struct {
	Allowed   bool
	Admission models.Admission
	Trial     *models.TrialStatus
}

// Err возвращает ошибку отказа, пригодную для errors.Is/errors.As, или nil.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Trial != nil:
		return &models.TrialError{Tool: d.Trial.Tool, Usage: d.Trial.Usage, Limit: d.Trial.Limit}
	case d.Admission.Denial != nil:
		return d.Admission.Denial
	default:
		return models.ErrAdmissionDenied
	}
}

// Admit направляет гостя в пробный режим, а принципала в QuotaLedger.
// Анонимная сессия без гостевого состояния получает models.ErrNotGuest.
func (e *Engine) Admit(ctx context.Context, actor Actor, tool models.ToolKind) (Decision, error) {
	const op = "usage.Admit"
	if !tool.Valid() {
		return Decision{}, fmt.Errorf("%s: %w: %q", op, models.ErrUnknownTool, tool)
	}

	if actor.IsGuest() {
		if err := e.trials.Require(ctx, actor.Session); err != nil {
			return Decision{}, fmt.Errorf("%s: %w", op, err)
		}
		status, err := e.trials.CanUse(ctx, actor.Session, tool)
		if err != nil {
			return Decision{}, fmt.Errorf("%s: %w", op, err)
		}
		return Decision{Allowed: status.Allowed, Trial: &status}, nil
	}

	admission, err := e.CheckAdmission(ctx, actor.PrincipalID, tool)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	return Decision{Allowed: admission.Allowed, Admission: admission}, nil
}

// Finish учитывает успешную операцию, допущенную Admit.
func (e *Engine) Finish(ctx context.Context, actor Actor, decision Decision, tool models.ToolKind,
	tokens int64, content string) error {
	const op = "usage.Finish"
	if actor.IsGuest() {
		if _, err := e.trials.Increment(ctx, actor.Session, tool); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	if err := e.CommitUsage(ctx, decision.Admission.Reservation, tokens, content); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Abort отменяет допуск операции, которая не была выполнена.
func (e *Engine) Abort(ctx context.Context, actor Actor, decision Decision) error {
	if actor.IsGuest() || !decision.Allowed {
		return nil
	}
	return e.ReleaseUsage(ctx, decision.Admission.Reservation)
}

// RecordNote фиксирует создание заметки: гостю в пределах пробного лимита,
// принципалу с инвалидацией его агрегата.
func (e *Engine) RecordNote(ctx context.Context, actor Actor, title string) (int64, error) {
	const op = "usage.RecordNote"

	if actor.IsGuest() {
		if err := e.trials.Require(ctx, actor.Session); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		status, err := e.trials.CanCreateNote(ctx, actor.Session)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		if !status.Allowed {
			return 0, fmt.Errorf("%s: %w", op, &models.TrialError{Usage: status.Usage, Limit: status.Limit})
		}
		if _, err := e.trials.IncrementNote(ctx, actor.Session); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		return 0, nil
	}

	id, err := e.events.RecordNote(ctx, actor.PrincipalID, title, e.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := e.aggregates.Invalidate(ctx, actor.PrincipalID); err != nil {
		e.log.Error("failed to invalidate aggregate", slog.String("op", op), sl.Err(err))
	}
	return id, nil
}

// GuestInit инициализирует гостевую сессию.
func (e *Engine) GuestInit(ctx context.Context, session string) (models.GuestState, error) {
	return e.trials.Initialize(ctx, session)
}

// GuestCheck проверяет пробный лимит инструмента.
func (e *Engine) GuestCheck(ctx context.Context, session string, tool models.ToolKind) (models.TrialStatus, error) {
	if !tool.Valid() {
		return models.TrialStatus{}, fmt.Errorf("usage.GuestCheck: %w: %q", models.ErrUnknownTool, tool)
	}
	return e.trials.CanUse(ctx, session, tool)
}

// GuestIncrement учитывает пробную попытку.
func (e *Engine) GuestIncrement(ctx context.Context, session string, tool models.ToolKind) (int, error) {
	return e.trials.Increment(ctx, session, tool)
}

// GuestClear удаляет гостевое состояние сессии.
func (e *Engine) GuestClear(ctx context.Context, session string) error {
	return e.trials.ClearOnUpgrade(ctx, session)
}

// UpgradeGuest переводит гостевую сессию в аутентифицированного принципала.
// Сессия, уже не являющаяся гостевой, не считается ошибкой.
// Дальнейший допуск принципала определяет только QuotaLedger.
func (e *Engine) UpgradeGuest(ctx context.Context, session, principalID string) error {
	const op = "usage.UpgradeGuest"
	err := e.trials.ClearOnUpgrade(ctx, session)
	if err != nil && !errors.Is(err, models.ErrNotGuest) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err == nil {
		e.log.Info("guest upgraded", slog.String("op", op), slog.String("principal_id", principalID))
	}
	return nil
}
