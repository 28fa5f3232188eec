package models

import (
	"errors"
	"fmt"
)

var (
	// ErrAdmissionDenied квота исчерпана; ожидаемый исход, а не сбой.
	ErrAdmissionDenied = errors.New("admission denied")
	// ErrTrialExhausted гостевой аналог ErrAdmissionDenied.
	ErrTrialExhausted = errors.New("trial exhausted")
	// ErrRecordNotFound запись не найдена.
	ErrRecordNotFound = errors.New("record not found")
	// ErrTransientStore хранилище недоступно, повтор остаётся на стороне вызывающего.
	ErrTransientStore = errors.New("backing store unavailable")
	// ErrComputeInconsistency пересчёт агрегата не смог согласовать исходные данные.
	ErrComputeInconsistency = errors.New("aggregate recompute inconsistency")
	// ErrUnknownTool вид инструмента не входит в фиксированный набор.
	ErrUnknownTool = errors.New("unknown tool kind")
	// ErrNotGuest сессия не помечена как гостевая.
	ErrNotGuest = errors.New("session is not a guest session")
)

// Причины отказа в допуске.
const (
	ReasonDailyLimit   = "daily_limit_reached"
	ReasonMonthlyLimit = "monthly_limit_reached"
)

// DenialError описывает отказ QuotaLedger и несёт текущие значения использования и лимитов.
type DenialError struct {
	Reason       string `json:"reason"`
	DailyUsed    int    `json:"daily_used"`
	DailyLimit   int    `json:"daily_limit"`
	MonthlyUsed  int    `json:"monthly_used"`
	MonthlyLimit int    `json:"monthly_limit"`
}

func (e *DenialError) Error() string {
	return fmt.Sprintf("%s: daily %d/%d, monthly %d/%d",
		e.Reason, e.DailyUsed, e.DailyLimit, e.MonthlyUsed, e.MonthlyLimit)
}

func (e *DenialError) Unwrap() error { return ErrAdmissionDenied }

// TrialError описывает исчерпание гостевого лимита для инструмента.
type TrialError struct {
	Tool  ToolKind `json:"tool"`
	Usage int      `json:"usage"`
	Limit int      `json:"limit"`
}

func (e *TrialError) Error() string {
	return fmt.Sprintf("trial limit reached for %s: %d/%d", e.Tool, e.Usage, e.Limit)
}

func (e *TrialError) Unwrap() error { return ErrTrialExhausted }
