package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/study-notes/internal/lib/clock"
	"github.com/magabrotheeeer/study-notes/internal/lib/period"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// Trigger вычисляет ближайший момент запуска после now.
type Trigger func(now time.Time) time.Time

// Daily запуск каждый день в hour:00 UTC.
func Daily(hour int) Trigger {
	return func(now time.Time) time.Time { return period.NextDaily(now, hour) }
}

// Weekly запуск раз в неделю в день day в hour:00 UTC.
func Weekly(day time.Weekday, hour int) Trigger {
	return func(now time.Time) time.Time { return period.NextWeekly(now, day, hour) }
}

// ScheduleHours часы запуска задач в UTC.
type ScheduleHours struct {
	Artifacts int
	Activity  int
	Snapshots int
}

// Job задача по расписанию.
type Job struct {
	Name string
	Next Trigger
	Run  func(ctx context.Context) models.RunReport
}

// Scheduler запускает задачи в собственных горутинах, каждую по своему расписанию.
type Scheduler struct {
	jobs    []Job
	running map[string]*sync.Mutex
	clock   clock.Clock
	log     *slog.Logger
}

// NewScheduler создаёт Scheduler.
func NewScheduler(clk clock.Clock, log *slog.Logger, jobs ...Job) *Scheduler {
	running := make(map[string]*sync.Mutex, len(jobs))
	for _, job := range jobs {
		running[job.Name] = &sync.Mutex{}
	}
	return &Scheduler{
		jobs:    jobs,
		running: running,
		clock:   clk,
		log:     log,
	}
}

// Run блокируется до отмены ctx. Запуски одной задачи не пересекаются,
// в том числе с RunNow: плановый запуск дожидается завершения внепланового.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	log := s.log.With(slog.String("job", job.Name))
	for {
		now := s.clock.Now()
		next := job.Next(now)
		log.Info("next run scheduled", slog.Time("at", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("scheduler stopped")
			return
		case <-timer.C:
			mu := s.running[job.Name]
			mu.Lock()
			job.Run(ctx)
			mu.Unlock()
		}
	}
}

// RunNow выполняет задачу с именем name один раз.
// Возвращает models.ErrUnknownJob для незарегистрированной задачи
// и models.ErrJobRunning, если задача уже выполняется.
func (s *Scheduler) RunNow(ctx context.Context, name string) (models.RunReport, error) {
	const op = "janitor.RunNow"
	for _, job := range s.jobs {
		if job.Name != name {
			continue
		}
		mu := s.running[job.Name]
		if !mu.TryLock() {
			return models.RunReport{}, fmt.Errorf("%s: %s: %w", op, name, models.ErrJobRunning)
		}
		defer mu.Unlock()
		return job.Run(ctx), nil
	}
	return models.RunReport{}, fmt.Errorf("%s: %s: %w", op, name, models.ErrUnknownJob)
}
