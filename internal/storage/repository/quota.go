package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/study-notes/internal/models"
)

const quotaColumns = `principal_id, daily_limit, daily_used, monthly_limit, monthly_used,
	reserved, last_reset_date, total_tokens_used, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuota(row rowScanner) (*models.QuotaRecord, error) {
	var rec models.QuotaRecord
	if err := row.Scan(&rec.PrincipalID, &rec.DailyLimit, &rec.DailyUsed, &rec.MonthlyLimit,
		&rec.MonthlyUsed, &rec.Reserved, &rec.LastResetDate, &rec.TotalTokensUsed, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.LastResetDate = rec.LastResetDate.UTC()
	return &rec, nil
}

// UpdateQuota выполняет атомарное чтение-изменение-запись одной строки quota_records.
//
// Если записи нет, она создаётся из defaults (INSERT ... ON CONFLICT DO NOTHING),
// затем строка блокируется SELECT ... FOR UPDATE, к ней применяется fn
// и результат записывается в той же транзакции. Ошибка fn откатывает транзакцию.
func (s *Storage) UpdateQuota(ctx context.Context, principalID string, defaults models.QuotaRecord,
	fn func(rec *models.QuotaRecord) error) (*models.QuotaRecord, error) {
	const op = "storage.UpdateQuota"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO quota_records
			      (principal_id, daily_limit, monthly_limit, last_reset_date, updated_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (principal_id) DO NOTHING`,
		principalID, defaults.DailyLimit, defaults.MonthlyLimit, defaults.LastResetDate, defaults.UpdatedAt)
	if err != nil {
		return nil, storeErr(op, err)
	}

	rec, err := scanQuota(tx.QueryRowContext(ctx,
		`SELECT `+quotaColumns+` FROM quota_records WHERE principal_id = $1 FOR UPDATE`, principalID))
	if err != nil {
		return nil, storeErr(op, err)
	}

	if err := fn(rec); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE quota_records
			  SET daily_limit = $2, daily_used = $3, monthly_limit = $4, monthly_used = $5,
			      reserved = $6, last_reset_date = $7, total_tokens_used = $8, updated_at = $9
			  WHERE principal_id = $1`,
		rec.PrincipalID, rec.DailyLimit, rec.DailyUsed, rec.MonthlyLimit, rec.MonthlyUsed,
		rec.Reserved, rec.LastResetDate, rec.TotalTokensUsed, rec.UpdatedAt)
	if err != nil {
		return nil, storeErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr(op, err)
	}
	return rec, nil
}

// GetQuota возвращает запись квоты без блокировки.
func (s *Storage) GetQuota(ctx context.Context, principalID string) (*models.QuotaRecord, error) {
	const op = "storage.GetQuota"

	rec, err := scanQuota(s.DB.QueryRowContext(ctx,
		`SELECT `+quotaColumns+` FROM quota_records WHERE principal_id = $1`, principalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrRecordNotFound)
	}
	if err != nil {
		return nil, storeErr(op, err)
	}
	return rec, nil
}
