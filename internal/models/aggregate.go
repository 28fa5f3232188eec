package models

import "time"

// Snapshot агрегированная статистика принципала, пересчитанная целиком в момент ComputedAt.
// LastRefreshedAt == nil означает, что снимок инвалидирован.
type Snapshot struct {
	PrincipalID     string           `json:"principal_id"`
	CategoryCounts  map[ToolKind]int `json:"category_counts"`
	WeekCounts      map[ToolKind]int `json:"week_counts"`
	NotesTotal      int              `json:"notes_total"`
	NotesThisWeek   int              `json:"notes_this_week"`
	ActivityTotal   int              `json:"activity_total"`
	LastActivityAt  *time.Time       `json:"last_activity_at,omitempty"`
	TokensTotal     int64            `json:"tokens_total"`
	TokensThisWeek  int64            `json:"tokens_this_week"`
	ComputedAt      time.Time        `json:"computed_at"`
	LastRefreshedAt *time.Time       `json:"last_refreshed_at,omitempty"`
}

// FreshAt сообщает, можно ли отдать снимок без пересчёта.
func (s *Snapshot) FreshAt(now time.Time, window time.Duration) bool {
	if s.LastRefreshedAt == nil {
		return false
	}
	return now.Sub(*s.LastRefreshedAt) <= window
}

// Dashboard ответ основного пути чтения статистики.
type Dashboard struct {
	Snapshot    Snapshot `json:"snapshot"`
	ServedFresh bool     `json:"served_fresh"`
}
