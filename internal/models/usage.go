package models

import "time"

// DefaultArtifactTTL срок жизни артефакта, созданного вместе с событием использования.
const DefaultArtifactTTL = 30 * 24 * time.Hour

// UsageEvent неизменяемый факт завершённого вызова инструмента.
type UsageEvent struct {
	ID          int64
	PrincipalID string
	Category    ToolKind
	Tokens      int64
	CreatedAt   time.Time
}

// ActivityEntry запись человекочитаемого журнала активности (хранится 90 дней).
type ActivityEntry struct {
	ID          int64
	PrincipalID string
	Action      string
	Details     string
	CreatedAt   time.Time
}

// ExpiringArtifact результат работы инструмента, удаляемый после ExpiresAt.
type ExpiringArtifact struct {
	ID          int64
	PrincipalID string
	Content     string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// EventStats сводка по событиям использования принципала на момент пересчёта.
// Week-поля учитывают только события начиная с начала недельного окна.
type EventStats struct {
	Counts      map[string]int
	WeekCounts  map[string]int
	Tokens      int64
	WeekTokens  int64
	LastEventAt *time.Time
}
