// Package metrics объявляет Prometheus-метрики движка учёта использования.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionDecisions решения QuotaLedger по инструменту и исходу.
	AdmissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_admission_decisions_total",
		Help: "Admission decisions made by the quota ledger.",
	}, []string{"tool", "outcome"})

	// TrialDecisions решения гостевого пробного режима.
	TrialDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_trial_decisions_total",
		Help: "Guest trial checks by tool and outcome.",
	}, []string{"tool", "outcome"})

	// CommittedTokens сумма подтверждённых токенов по инструменту.
	CommittedTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_committed_tokens_total",
		Help: "Tokens committed to the quota ledger.",
	}, []string{"tool"})

	// AggregateReads чтения AggregateCache с разбивкой по свежести.
	AggregateReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_aggregate_reads_total",
		Help: "Aggregate snapshot reads by freshness.",
	}, []string{"served"})

	// JanitorProcessed обработанные фоновыми задачами записи.
	JanitorProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_janitor_processed_total",
		Help: "Items processed by janitor jobs.",
	}, []string{"job"})

	// JanitorErrors ошибки обработки отдельных записей.
	JanitorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_janitor_errors_total",
		Help: "Per-item failures in janitor jobs.",
	}, []string{"job"})

	// JanitorLastRun время последнего завершения задачи.
	JanitorLastRun = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "usage_janitor_last_run_timestamp_seconds",
		Help: "Unix time of the last finished janitor run.",
	}, []string{"job"})
)
