package models

import "time"

// QuotaLimits лимиты, которыми инициализируется новая запись квоты.
type QuotaLimits struct {
	Daily   int `json:"daily_limit" validate:"gte=0"`
	Monthly int `json:"monthly_limit" validate:"gte=0"`
}

// QuotaRecord счётчики допуска одного принципала.
// DailyUsed имеет смысл только относительно LastResetDate.
// Reserved хранит число выданных, но ещё не подтверждённых допусков.
type QuotaRecord struct {
	PrincipalID     string
	DailyLimit      int
	DailyUsed       int
	MonthlyLimit    int
	MonthlyUsed     int
	Reserved        int
	LastResetDate   time.Time
	TotalTokensUsed int64
	UpdatedAt       time.Time
}

// IsStale сообщает, что запись относится к прошедшему UTC-дню.
func (r *QuotaRecord) IsStale(today time.Time) bool {
	return r.LastResetDate.Before(today)
}

// RemainingDaily остаток на сегодня с учётом незавершённых резервов.
func (r *QuotaRecord) RemainingDaily() int {
	return max(0, r.DailyLimit-r.DailyUsed-r.Reserved)
}

// RemainingMonthly остаток на месяц с учётом незавершённых резервов.
func (r *QuotaRecord) RemainingMonthly() int {
	return max(0, r.MonthlyLimit-r.MonthlyUsed-r.Reserved)
}

// Reservation выданный допуск; подтверждается Commit или возвращается Release.
type Reservation struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id"`
	Tool        ToolKind  `json:"tool"`
	ReservedAt  time.Time `json:"reserved_at"`
}

// Admission результат проверки допуска.
type Admission struct {
	Allowed          bool         `json:"allowed"`
	Reservation      Reservation  `json:"reservation"`
	RemainingDaily   int          `json:"remaining_daily"`
	RemainingMonthly int          `json:"remaining_monthly"`
	Denial           *DenialError `json:"denial,omitempty"`
}

// QuotaView состояние квоты для отображения пользователю.
type QuotaView struct {
	DailyUsed        int   `json:"daily_used"`
	DailyLimit       int   `json:"daily_limit"`
	MonthlyUsed      int   `json:"monthly_used"`
	MonthlyLimit     int   `json:"monthly_limit"`
	RemainingDaily   int   `json:"remaining_daily"`
	RemainingMonthly int   `json:"remaining_monthly"`
	TotalTokensUsed  int64 `json:"total_tokens_used"`
}
