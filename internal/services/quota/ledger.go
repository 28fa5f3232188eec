// Package quota реализует QuotaLedger: дневные и месячные счётчики допуска
// с ленивым сбросом на границе суток UTC.
//
// Допуск выдаётся в два шага. CheckAndReserve в одной транзакции над строкой
// принципала применяет ленивый сброс, проверяет лимиты с учётом незавершённых
// резервов и занимает слот. Commit переводит слот в использованный,
// Release возвращает его, если защищаемая операция не удалась.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/study-notes/internal/lib/clock"
	"github.com/magabrotheeeer/study-notes/internal/lib/metrics"
	"github.com/magabrotheeeer/study-notes/internal/lib/period"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// Store хранилище записей квот с атомарным чтением-изменением-записью одной строки.
type Store interface {
	// UpdateQuota создаёт запись из defaults при её отсутствии, блокирует её,
	// применяет fn и сохраняет результат. Ошибка fn отменяет изменения.
	UpdateQuota(ctx context.Context, principalID string, defaults models.QuotaRecord,
		fn func(rec *models.QuotaRecord) error) (*models.QuotaRecord, error)
	// GetQuota возвращает запись или models.ErrRecordNotFound.
	GetQuota(ctx context.Context, principalID string) (*models.QuotaRecord, error)
}

// Ledger реализует проверку и учёт допусков.
type Ledger struct {
	store  Store
	limits models.QuotaLimits
	clock  clock.Clock
	log    *slog.Logger
}

// NewLedger создаёт Ledger; limits применяются к вновь создаваемым записям.
func NewLedger(store Store, limits models.QuotaLimits, clk clock.Clock, log *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		limits: limits,
		clock:  clk,
		log:    log,
	}
}

func (l *Ledger) defaults(principalID string) models.QuotaRecord {
	now := l.clock.Now()
	return models.QuotaRecord{
		PrincipalID:   principalID,
		DailyLimit:    l.limits.Daily,
		MonthlyLimit:  l.limits.Monthly,
		LastResetDate: period.DayStart(now),
		UpdatedAt:     now,
	}
}

// resetIfStale переводит запись прошедшего дня в текущий.
// Незавершённые резервы прошлого дня сгорают вместе с дневным счётчиком.
func resetIfStale(rec *models.QuotaRecord, today time.Time) bool {
	if !rec.IsStale(today) {
		return false
	}
	if !period.SameMonth(rec.LastResetDate, today) {
		rec.MonthlyUsed = 0
	}
	rec.DailyUsed = 0
	rec.Reserved = 0
	rec.LastResetDate = today
	return true
}

func evaluate(rec *models.QuotaRecord) *models.DenialError {
	denial := &models.DenialError{
		DailyUsed:    rec.DailyUsed + rec.Reserved,
		DailyLimit:   rec.DailyLimit,
		MonthlyUsed:  rec.MonthlyUsed + rec.Reserved,
		MonthlyLimit: rec.MonthlyLimit,
	}
	switch {
	case denial.DailyUsed >= rec.DailyLimit:
		denial.Reason = models.ReasonDailyLimit
	case denial.MonthlyUsed >= rec.MonthlyLimit:
		denial.Reason = models.ReasonMonthlyLimit
	default:
		return nil
	}
	return denial
}

// CheckAndReserve решает, может ли принципал выполнить операцию tool.
// Отказ не является ошибкой: он возвращается в Admission.Denial.
func (l *Ledger) CheckAndReserve(ctx context.Context, principalID string, tool models.ToolKind) (models.Admission, error) {
	const op = "quota.CheckAndReserve"
	log := l.log.With(slog.String("op", op), slog.String("principal_id", principalID))

	var admission models.Admission
	now := l.clock.Now()
	today := period.DayStart(now)

	rec, err := l.store.UpdateQuota(ctx, principalID, l.defaults(principalID), func(rec *models.QuotaRecord) error {
		if resetIfStale(rec, today) {
			log.Debug("daily counters reset", slog.Time("reset_date", today))
		}
		rec.UpdatedAt = now
		admission = models.Admission{}
		if denial := evaluate(rec); denial != nil {
			admission.Denial = denial
			return nil
		}
		rec.Reserved++
		admission.Allowed = true
		admission.Reservation = models.Reservation{
			ID:          uuid.NewString(),
			PrincipalID: principalID,
			Tool:        tool,
			ReservedAt:  now,
		}
		return nil
	})
	if err != nil {
		return models.Admission{}, fmt.Errorf("%s: %w", op, err)
	}

	admission.RemainingDaily = rec.RemainingDaily()
	admission.RemainingMonthly = rec.RemainingMonthly()
	if admission.Allowed {
		metrics.AdmissionDecisions.WithLabelValues(string(tool), "allowed").Inc()
	} else {
		metrics.AdmissionDecisions.WithLabelValues(string(tool), "denied").Inc()
		log.Info("admission denied", slog.String("reason", admission.Denial.Reason))
	}
	return admission, nil
}

// Commit учитывает успешно выполненную операцию: слот резерва переходит
// в дневной и месячный счётчики, tokens добавляются к общему расходу.
//
// Резерв прошлого дня уже сгорел при сбросе, поэтому такой вызов не трогает
// дневной счётчик, а месячный увеличивает только в пределах лимита.
func (l *Ledger) Commit(ctx context.Context, reservation models.Reservation, tokens int64) (*models.QuotaRecord, error) {
	const op = "quota.Commit"
	if tokens < 0 {
		tokens = 0
	}
	now := l.clock.Now()
	today := period.DayStart(now)
	reservedDay := period.DayStart(reservation.ReservedAt)

	rec, err := l.store.UpdateQuota(ctx, reservation.PrincipalID, l.defaults(reservation.PrincipalID),
		func(rec *models.QuotaRecord) error {
			resetIfStale(rec, today)
			switch {
			case reservedDay.Equal(rec.LastResetDate):
				rec.Reserved = max(0, rec.Reserved-1)
				rec.DailyUsed++
				rec.MonthlyUsed++
			case period.SameMonth(reservedDay, rec.LastResetDate) &&
				rec.MonthlyUsed+rec.Reserved < rec.MonthlyLimit:
				rec.MonthlyUsed++
			}
			rec.TotalTokensUsed += tokens
			rec.UpdatedAt = now
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.CommittedTokens.WithLabelValues(string(reservation.Tool)).Add(float64(tokens))
	return rec, nil
}

// Release возвращает неиспользованный слот резерва.
func (l *Ledger) Release(ctx context.Context, reservation models.Reservation) error {
	const op = "quota.Release"
	now := l.clock.Now()
	today := period.DayStart(now)
	reservedDay := period.DayStart(reservation.ReservedAt)

	_, err := l.store.UpdateQuota(ctx, reservation.PrincipalID, l.defaults(reservation.PrincipalID),
		func(rec *models.QuotaRecord) error {
			resetIfStale(rec, today)
			if reservedDay.Equal(rec.LastResetDate) {
				rec.Reserved = max(0, rec.Reserved-1)
			}
			rec.UpdatedAt = now
			return nil
		})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Remaining возвращает состояние квоты без изменения записи.
// Ленивый сброс применяется к копии в памяти.
func (l *Ledger) Remaining(ctx context.Context, principalID string) (models.QuotaView, error) {
	const op = "quota.Remaining"

	rec, err := l.store.GetQuota(ctx, principalID)
	if errors.Is(err, models.ErrRecordNotFound) {
		d := l.defaults(principalID)
		rec = &d
	} else if err != nil {
		return models.QuotaView{}, fmt.Errorf("%s: %w", op, err)
	}
	resetIfStale(rec, period.DayStart(l.clock.Now()))

	return models.QuotaView{
		DailyUsed:        rec.DailyUsed,
		DailyLimit:       rec.DailyLimit,
		MonthlyUsed:      rec.MonthlyUsed,
		MonthlyLimit:     rec.MonthlyLimit,
		RemainingDaily:   rec.RemainingDaily(),
		RemainingMonthly: rec.RemainingMonthly(),
		TotalTokensUsed:  rec.TotalTokensUsed,
	}, nil
}

// SetLimits заменяет лимиты принципала. Текущие счётчики не меняются.
func (l *Ledger) SetLimits(ctx context.Context, principalID string, limits models.QuotaLimits) error {
	const op = "quota.SetLimits"
	if limits.Daily < 0 || limits.Monthly < 0 {
		return fmt.Errorf("%s: negative limit", op)
	}
	now := l.clock.Now()

	_, err := l.store.UpdateQuota(ctx, principalID, l.defaults(principalID), func(rec *models.QuotaRecord) error {
		resetIfStale(rec, period.DayStart(now))
		rec.DailyLimit = limits.Daily
		rec.MonthlyLimit = limits.Monthly
		rec.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	l.log.Info("quota limits updated",
		slog.String("op", op),
		slog.String("principal_id", principalID),
		slog.Int("daily_limit", limits.Daily),
		slog.Int("monthly_limit", limits.Monthly))
	return nil
}
