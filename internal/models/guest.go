package models

// GuestState эфемерное состояние пробного режима, привязанное к токену сессии.
type GuestState struct {
	IsGuest      bool             `json:"is_guest"`
	GuestID      string           `json:"guest_id"`
	NoteCount    int              `json:"note_count"`
	ToolAttempts map[ToolKind]int `json:"tool_attempts"`
}

// TrialStatus ответ на проверку гостевого лимита.
type TrialStatus struct {
	Tool         ToolKind `json:"tool,omitempty"`
	Allowed      bool     `json:"allowed"`
	LimitReached bool     `json:"limit_reached"`
	Usage        int      `json:"usage"`
	Limit        int      `json:"limit"`
}
