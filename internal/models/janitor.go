package models

import (
	"errors"
	"time"
)

var (
	// ErrUnknownJob задача с таким именем не зарегистрирована.
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobRunning задача уже выполняется.
	ErrJobRunning = errors.New("job is already running")
)

// RunReport итог одного запуска фоновой задачи.
type RunReport struct {
	Job        string    `json:"job"`
	Processed  int       `json:"processed"`
	Errors     int       `json:"errors"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
