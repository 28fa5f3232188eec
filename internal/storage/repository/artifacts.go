package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/study-notes/internal/models"
)

// CreateArtifact сохраняет артефакт и возвращает его ID.
func (s *Storage) CreateArtifact(ctx context.Context, artifact models.ExpiringArtifact) (int64, error) {
	const op = "storage.CreateArtifact"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO expiring_artifacts (principal_id, content, created_at, expires_at)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var id int64
	if err := s.DB.QueryRowContext(ctx, query,
		artifact.PrincipalID, artifact.Content, artifact.CreatedAt, artifact.ExpiresAt).Scan(&id); err != nil {
		return 0, storeErr(op, err)
	}
	return id, nil
}

// ListExpiredArtifacts возвращает ID артефактов с expires_at < now и ID больше afterID.
func (s *Storage) ListExpiredArtifacts(ctx context.Context, now time.Time, afterID int64, limit int) ([]int64, error) {
	const op = "storage.ListExpiredArtifacts"
	return s.listIDs(ctx, op, `SELECT id FROM expiring_artifacts
			  WHERE expires_at < $1 AND id > $2
			  ORDER BY id
			  LIMIT $3`, now, afterID, limit)
}

// DeleteArtifacts удаляет артефакты по ID, только если они истекли к моменту now.
func (s *Storage) DeleteArtifacts(ctx context.Context, ids []int64, now time.Time) (int, error) {
	const op = "storage.DeleteArtifacts"
	return s.deleteIDs(ctx, op, `DELETE FROM expiring_artifacts WHERE id = ANY($1) AND expires_at < $2`, ids, now)
}
