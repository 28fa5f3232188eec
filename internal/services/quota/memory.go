package quota

import (
	"context"
	"fmt"
	"sync"

	"github.com/magabrotheeeer/study-notes/internal/models"
)

// MemoryStore хранит записи квот в памяти процесса.
// Используется в тестах и локальном режиме без PostgreSQL.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]models.QuotaRecord
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.QuotaRecord)}
}

// UpdateQuota применяет fn к копии записи под общей блокировкой.
func (m *MemoryStore) UpdateQuota(_ context.Context, principalID string, defaults models.QuotaRecord,
	fn func(rec *models.QuotaRecord) error) (*models.QuotaRecord, error) {
	const op = "quota.MemoryStore.UpdateQuota"
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[principalID]
	if !ok {
		rec = defaults
		rec.PrincipalID = principalID
	}
	if err := fn(&rec); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.records[principalID] = rec
	out := rec
	return &out, nil
}

// GetQuota возвращает копию записи.
func (m *MemoryStore) GetQuota(_ context.Context, principalID string) (*models.QuotaRecord, error) {
	const op = "quota.MemoryStore.GetQuota"
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[principalID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, models.ErrRecordNotFound)
	}
	return &rec, nil
}
