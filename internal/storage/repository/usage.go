package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/study-notes/internal/models"
)

// AppendEvent добавляет событие использования в журнал и возвращает его ID.
func (s *Storage) AppendEvent(ctx context.Context, event models.UsageEvent) (int64, error) {
	const op = "storage.AppendEvent"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO usage_events (principal_id, category, tokens, created_at)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var id int64
	if err := s.DB.QueryRowContext(ctx, query,
		event.PrincipalID, string(event.Category), event.Tokens, event.CreatedAt).Scan(&id); err != nil {
		return 0, storeErr(op, err)
	}
	return id, nil
}

// EventStats считает события принципала по категориям одним запросом,
// ограниченным сверху моментом asOf; week-поля учитывают события не раньше weekStart.
func (s *Storage) EventStats(ctx context.Context, principalID string, weekStart, asOf time.Time) (models.EventStats, error) {
	const op = "storage.EventStats"
	stats := models.EventStats{
		Counts:     make(map[string]int),
		WeekCounts: make(map[string]int),
	}
	select {
	case <-ctx.Done():
		return stats, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT category,
			      COUNT(*),
			      COUNT(*) FILTER (WHERE created_at >= $2),
			      COALESCE(SUM(tokens), 0),
			      COALESCE(SUM(tokens) FILTER (WHERE created_at >= $2), 0),
			      MAX(created_at)
			  FROM usage_events
			  WHERE principal_id = $1 AND created_at <= $3
			  GROUP BY category`
	rows, err := s.DB.QueryContext(ctx, query, principalID, weekStart, asOf)
	if err != nil {
		return stats, storeErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			category           string
			count, weekCount   int
			tokens, weekTokens int64
			lastEvent          sql.NullTime
		)
		if err := rows.Scan(&category, &count, &weekCount, &tokens, &weekTokens, &lastEvent); err != nil {
			return stats, storeErr(op, err)
		}
		stats.Counts[category] = count
		stats.WeekCounts[category] = weekCount
		stats.Tokens += tokens
		stats.WeekTokens += weekTokens
		if lastEvent.Valid && (stats.LastEventAt == nil || lastEvent.Time.After(*stats.LastEventAt)) {
			t := lastEvent.Time.UTC()
			stats.LastEventAt = &t
		}
	}
	if err := rows.Err(); err != nil {
		return stats, storeErr(op, err)
	}
	return stats, nil
}

// ListActivePrincipals возвращает принципалов, у которых уже есть снимок
// или были события использования начиная с since.
func (s *Storage) ListActivePrincipals(ctx context.Context, since time.Time) ([]string, error) {
	const op = "storage.ListActivePrincipals"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT principal_id FROM aggregate_snapshots
			  UNION
			  SELECT DISTINCT principal_id FROM usage_events WHERE created_at >= $1
			  ORDER BY principal_id`
	rows, err := s.DB.QueryContext(ctx, query, since)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []string
	for rows.Next() {
		var id string
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
