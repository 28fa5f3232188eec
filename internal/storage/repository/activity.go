package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/study-notes/internal/models"
)

// AppendActivity добавляет запись в журнал активности.
func (s *Storage) AppendActivity(ctx context.Context, entry models.ActivityEntry) (int64, error) {
	const op = "storage.AppendActivity"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO activity_log (principal_id, action, details, created_at)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var id int64
	if err := s.DB.QueryRowContext(ctx, query,
		entry.PrincipalID, entry.Action, entry.Details, entry.CreatedAt).Scan(&id); err != nil {
		return 0, storeErr(op, err)
	}
	return id, nil
}

// ActivityStats возвращает число записей активности принципала и время последней из них.
func (s *Storage) ActivityStats(ctx context.Context, principalID string, asOf time.Time) (int, *time.Time, error) {
	const op = "storage.ActivityStats"

	var (
		count int
		last  sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*), MAX(created_at)
			  FROM activity_log
			  WHERE principal_id = $1 AND created_at <= $2`, principalID, asOf).Scan(&count, &last)
	if err != nil {
		return 0, nil, storeErr(op, err)
	}
	if !last.Valid {
		return count, nil, nil
	}
	t := last.Time.UTC()
	return count, &t, nil
}

// ListActivityBefore возвращает ID записей активности старше cutoff с ID больше afterID.
func (s *Storage) ListActivityBefore(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]int64, error) {
	const op = "storage.ListActivityBefore"
	return s.listIDs(ctx, op, `SELECT id FROM activity_log
			  WHERE created_at < $1 AND id > $2
			  ORDER BY id
			  LIMIT $3`, cutoff, afterID, limit)
}

// DeleteActivity удаляет записи активности по ID, не трогая записи новее cutoff.
func (s *Storage) DeleteActivity(ctx context.Context, ids []int64, cutoff time.Time) (int, error) {
	const op = "storage.DeleteActivity"
	return s.deleteIDs(ctx, op, `DELETE FROM activity_log WHERE id = ANY($1) AND created_at < $2`, ids, cutoff)
}

func (s *Storage) listIDs(ctx context.Context, op, query string, args ...any) ([]int64, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr(op, err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return result, nil
}

func (s *Storage) deleteIDs(ctx context.Context, op, query string, ids []int64, cutoff time.Time) (int, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := s.DB.ExecContext(ctx, query, ids, cutoff)
	if err != nil {
		return 0, storeErr(op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr(op, err)
	}
	return int(rowsAffected), nil
}
