package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/study-notes/internal/models"
)

// GetSnapshot возвращает сохранённый агрегированный снимок принципала.
func (s *Storage) GetSnapshot(ctx context.Context, principalID string) (*models.Snapshot, error) {
	const op = "storage.GetSnapshot"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		snap                    models.Snapshot
		categoryRaw, weekRaw    []byte
		lastActivity, refreshed sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, `SELECT principal_id, category_counts, week_counts,
			      notes_total, notes_this_week, activity_total, last_activity_at,
			      tokens_total, tokens_this_week, computed_at, last_refreshed_at
			  FROM aggregate_snapshots
			  WHERE principal_id = $1`, principalID).Scan(
		&snap.PrincipalID, &categoryRaw, &weekRaw,
		&snap.NotesTotal, &snap.NotesThisWeek, &snap.ActivityTotal, &lastActivity,
		&snap.TokensTotal, &snap.TokensThisWeek, &snap.ComputedAt, &refreshed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrRecordNotFound)
	}
	if err != nil {
		return nil, storeErr(op, err)
	}

	if err := json.Unmarshal(categoryRaw, &snap.CategoryCounts); err != nil {
		return nil, fmt.Errorf("%s: decode category_counts: %w", op, err)
	}
	if err := json.Unmarshal(weekRaw, &snap.WeekCounts); err != nil {
		return nil, fmt.Errorf("%s: decode week_counts: %w", op, err)
	}
	snap.ComputedAt = snap.ComputedAt.UTC()
	if lastActivity.Valid {
		t := lastActivity.Time.UTC()
		snap.LastActivityAt = &t
	}
	if refreshed.Valid {
		t := refreshed.Time.UTC()
		snap.LastRefreshedAt = &t
	}
	return &snap, nil
}

// SaveSnapshot записывает снимок целиком одним UPSERT.
func (s *Storage) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	const op = "storage.SaveSnapshot"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	categoryRaw, err := json.Marshal(snap.CategoryCounts)
	if err != nil {
		return fmt.Errorf("%s: encode category_counts: %w", op, err)
	}
	weekRaw, err := json.Marshal(snap.WeekCounts)
	if err != nil {
		return fmt.Errorf("%s: encode week_counts: %w", op, err)
	}

	_, err = s.DB.ExecContext(ctx, `INSERT INTO aggregate_snapshots
			      (principal_id, category_counts, week_counts, notes_total, notes_this_week,
			       activity_total, last_activity_at, tokens_total, tokens_this_week,
			       computed_at, last_refreshed_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  ON CONFLICT (principal_id) DO UPDATE SET
			      category_counts = EXCLUDED.category_counts,
			      week_counts = EXCLUDED.week_counts,
			      notes_total = EXCLUDED.notes_total,
			      notes_this_week = EXCLUDED.notes_this_week,
			      activity_total = EXCLUDED.activity_total,
			      last_activity_at = EXCLUDED.last_activity_at,
			      tokens_total = EXCLUDED.tokens_total,
			      tokens_this_week = EXCLUDED.tokens_this_week,
			      computed_at = EXCLUDED.computed_at,
			      last_refreshed_at = EXCLUDED.last_refreshed_at`,
		snap.PrincipalID, string(categoryRaw), string(weekRaw), snap.NotesTotal, snap.NotesThisWeek,
		snap.ActivityTotal, snap.LastActivityAt, snap.TokensTotal, snap.TokensThisWeek,
		snap.ComputedAt, snap.LastRefreshedAt)
	if err != nil {
		return storeErr(op, err)
	}
	return nil
}

// InvalidateSnapshot сбрасывает отметку свежести снимка; отсутствие снимка не ошибка.
func (s *Storage) InvalidateSnapshot(ctx context.Context, principalID string) error {
	const op = "storage.InvalidateSnapshot"

	_, err := s.DB.ExecContext(ctx,
		`UPDATE aggregate_snapshots SET last_refreshed_at = NULL WHERE principal_id = $1`, principalID)
	if err != nil {
		return storeErr(op, err)
	}
	return nil
}
