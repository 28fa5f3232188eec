package repository

import (
	"context"
	"time"
)

// NoteStats возвращает общее число заметок владельца и число созданных не раньше weekStart.
func (s *Storage) NoteStats(ctx context.Context, ownerID string, weekStart, asOf time.Time) (int, int, error) {
	const op = "storage.NoteStats"

	var total, recent int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at >= $2)
			  FROM notes
			  WHERE owner_id = $1 AND created_at <= $3`, ownerID, weekStart, asOf).Scan(&total, &recent)
	if err != nil {
		return 0, 0, storeErr(op, err)
	}
	return total, recent, nil
}

// RecordNote добавляет заметку владельца; используется гостевым и основным путём создания заметок.
func (s *Storage) RecordNote(ctx context.Context, ownerID, title string, createdAt time.Time) (int64, error) {
	const op = "storage.RecordNote"

	var id int64
	err := s.DB.QueryRowContext(ctx, `INSERT INTO notes (owner_id, title, created_at)
			  VALUES ($1, $2, $3) RETURNING id`, ownerID, title, createdAt).Scan(&id)
	if err != nil {
		return 0, storeErr(op, err)
	}
	return id, nil
}
