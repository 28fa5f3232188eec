// Package janitor реализует ScheduledJanitor: периодическое удаление истёкших
// артефактов и старых записей активности, а также полный пересчёт снимков
// статистики активных принципалов.
//
// Сбой обработки отдельной записи или принципала логируется и учитывается
// в отчёте, но не прерывает остаток прогона.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/study-notes/internal/lib/clock"
	"github.com/magabrotheeeer/study-notes/internal/lib/metrics"
	"github.com/magabrotheeeer/study-notes/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// Имена задач в отчётах и метриках.
const (
	JobArtifacts = "artifacts"
	JobActivity  = "activity"
	JobSnapshots = "snapshots"
)

// ArtifactStore хранилище артефактов с ограниченным сроком жизни.
type ArtifactStore interface {
	ListExpiredArtifacts(ctx context.Context, now time.Time, afterID int64, limit int) ([]int64, error)
	DeleteArtifacts(ctx context.Context, ids []int64, now time.Time) (int, error)
}

// ActivityStore журнал активности.
type ActivityStore interface {
	ListActivityBefore(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]int64, error)
	DeleteActivity(ctx context.Context, ids []int64, cutoff time.Time) (int, error)
}

// PrincipalSource перечисляет принципалов для полного пересчёта снимков.
type PrincipalSource interface {
	ListActivePrincipals(ctx context.Context, since time.Time) ([]string, error)
}

// Refresher принудительно пересчитывает снимок принципала.
type Refresher interface {
	Refresh(ctx context.Context, principalID string) error
}

// Reporter публикует отчёты о прогонах.
type Reporter interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Options параметры прогонов.
type Options struct {
	ActivityRetention time.Duration
	ActiveWindow      time.Duration
	BatchSize         int
}

// Janitor выполняет задачи очистки.
type Janitor struct {
	artifacts  ArtifactStore
	activity   ActivityStore
	principals PrincipalSource
	refresher  Refresher
	reporter   Reporter
	clock      clock.Clock
	opts       Options
	log        *slog.Logger
}

// New создаёт Janitor. reporter может быть nil.
func New(artifacts ArtifactStore, activity ActivityStore, principals PrincipalSource, refresher Refresher,
	reporter Reporter, clk clock.Clock, opts Options, log *slog.Logger) *Janitor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &Janitor{
		artifacts:  artifacts,
		activity:   activity,
		principals: principals,
		refresher:  refresher,
		reporter:   reporter,
		clock:      clk,
		opts:       opts,
		log:        log,
	}
}

// CleanupArtifacts удаляет артефакты с expires_at < now.
func (j *Janitor) CleanupArtifacts(ctx context.Context) models.RunReport {
	now := j.clock.Now()
	report := models.RunReport{Job: JobArtifacts, StartedAt: now}

	j.sweep(ctx, &report,
		func(afterID int64) ([]int64, error) {
			return j.artifacts.ListExpiredArtifacts(ctx, now, afterID, j.opts.BatchSize)
		},
		func(ids []int64) (int, error) {
			return j.artifacts.DeleteArtifacts(ctx, ids, now)
		})
	return j.finish(ctx, report)
}

// CleanupActivity удаляет записи активности старше ActivityRetention.
func (j *Janitor) CleanupActivity(ctx context.Context) models.RunReport {
	now := j.clock.Now()
	cutoff := now.Add(-j.opts.ActivityRetention)
	report := models.RunReport{Job: JobActivity, StartedAt: now}

	j.sweep(ctx, &report,
		func(afterID int64) ([]int64, error) {
			return j.activity.ListActivityBefore(ctx, cutoff, afterID, j.opts.BatchSize)
		},
		func(ids []int64) (int, error) {
			return j.activity.DeleteActivity(ctx, ids, cutoff)
		})
	return j.finish(ctx, report)
}

// RefreshSnapshots пересчитывает снимки всех активных принципалов.
func (j *Janitor) RefreshSnapshots(ctx context.Context) models.RunReport {
	const op = "janitor.RefreshSnapshots"
	log := j.log.With(slog.String("op", op))
	now := j.clock.Now()
	report := models.RunReport{Job: JobSnapshots, StartedAt: now}

	principals, err := j.principals.ListActivePrincipals(ctx, now.Add(-j.opts.ActiveWindow))
	if err != nil {
		log.Error("failed to list active principals", sl.Err(err))
		report.Errors++
		return j.finish(ctx, report)
	}

	for _, principalID := range principals {
		if ctx.Err() != nil {
			log.Warn("run interrupted", slog.Int("remaining", len(principals)-report.Processed-report.Errors))
			break
		}
		if err := j.refresher.Refresh(ctx, principalID); err != nil {
			log.Error("failed to refresh snapshot", slog.String("principal_id", principalID), sl.Err(err))
			report.Errors++
			continue
		}
		report.Processed++
	}
	return j.finish(ctx, report)
}

// sweep постранично удаляет записи, выбранные list, по возрастанию ID.
// Если пакетное удаление не удалось, записи пакета удаляются по одной.
func (j *Janitor) sweep(ctx context.Context, report *models.RunReport,
	list func(afterID int64) ([]int64, error), del func(ids []int64) (int, error)) {
	log := j.log.With(slog.String("op", "janitor.sweep"), slog.String("job", report.Job))

	var afterID int64
	for {
		if ctx.Err() != nil {
			log.Warn("run interrupted", sl.Err(ctx.Err()))
			return
		}
		ids, err := list(afterID)
		if err != nil {
			log.Error("failed to list records", slog.Int64("after_id", afterID), sl.Err(err))
			report.Errors++
			return
		}
		if len(ids) == 0 {
			return
		}
		afterID = ids[len(ids)-1]

		n, err := del(ids)
		if err == nil {
			report.Processed += n
		} else {
			log.Warn("batch delete failed, retrying one by one", slog.Int("batch", len(ids)), sl.Err(err))
			for _, id := range ids {
				n, err := del([]int64{id})
				if err != nil {
					log.Error("failed to delete record", slog.Int64("id", id), sl.Err(err))
					report.Errors++
					continue
				}
				report.Processed += n
			}
		}

		if len(ids) < j.opts.BatchSize {
			return
		}
	}
}

func (j *Janitor) finish(ctx context.Context, report models.RunReport) models.RunReport {
	report.FinishedAt = j.clock.Now()
	j.log.Info("janitor run finished",
		slog.String("job", report.Job),
		slog.Int("processed", report.Processed),
		slog.Int("errors", report.Errors),
		slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))

	metrics.JanitorProcessed.WithLabelValues(report.Job).Add(float64(report.Processed))
	metrics.JanitorErrors.WithLabelValues(report.Job).Add(float64(report.Errors))
	metrics.JanitorLastRun.WithLabelValues(report.Job).Set(float64(report.FinishedAt.Unix()))

	if j.reporter != nil {
		if err := j.reporter.Publish(ctx, rabbitmq.JanitorReportKey, report); err != nil {
			j.log.Error("failed to publish run report", slog.String("job", report.Job), sl.Err(err))
		}
	}
	return report
}

// Jobs возвращает задачи с расписанием: артефакты ежедневно, активность по воскресеньям,
// снимки ежедневно, в часы UTC из hours.
func (j *Janitor) Jobs(hours ScheduleHours) []Job {
	return []Job{
		{Name: JobArtifacts, Next: Daily(hours.Artifacts), Run: j.CleanupArtifacts},
		{Name: JobActivity, Next: Weekly(time.Sunday, hours.Activity), Run: j.CleanupActivity},
		{Name: JobSnapshots, Next: Daily(hours.Snapshots), Run: j.RefreshSnapshots},
	}
}
