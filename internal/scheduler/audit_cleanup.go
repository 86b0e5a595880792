// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/mrlokans/bookhive/internal/tasks"
)

// TaskEnqueuer hands a task to the background queue.
type TaskEnqueuer interface {
	Enqueue(task backlite.Task) (string, error)
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// AuditCleanupScheduler periodically removes audit events older than the
// retention period. With a task queue the work is enqueued and retried by
// the queue; without one it runs inline.
type AuditCleanupScheduler struct {
	schedule      string
	retentionDays int
	queue         TaskEnqueuer
	cleaner       tasks.AuditEventCleaner

	cron       *cron.Cron
	parsed     cron.Schedule
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewAuditCleanupScheduler creates a new scheduler instance. queue may be nil.
func NewAuditCleanupScheduler(schedule string, retentionDays int, queue TaskEnqueuer, cleaner tasks.AuditEventCleaner) *AuditCleanupScheduler {
	return &AuditCleanupScheduler{
		schedule:      schedule,
		retentionDays: retentionDays,
		queue:         queue,
		cleaner:       cleaner,
		cron:          cron.New(cron.WithParser(cronParser)),
	}
}

// Start begins the scheduler. An empty schedule disables it.
func (s *AuditCleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if s.schedule == "" {
		log.Info().Msg("Audit cleanup scheduler: disabled")
		return nil
	}

	parsed, err := cronParser.Parse(s.schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}
	s.parsed = parsed
	s.cron.Schedule(parsed, cron.FuncJob(s.RunNow))

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Info().
		Str("schedule", s.schedule).
		Int("retention_days", s.retentionDays).
		Time("next_run", s.nextRunLocked()).
		Msg("Audit cleanup scheduler: started")

	// Monitor for context cancellation
	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job.
func (s *AuditCleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning = false
	s.cancelFunc = nil

	log.Info().Msg("Audit cleanup scheduler: stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *AuditCleanupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the next cleanup will occur, or zero when stopped.
func (s *AuditCleanupScheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.nextRunLocked()
}

func (s *AuditCleanupScheduler) nextRunLocked() time.Time {
	return s.parsed.Next(time.Now())
}

// RunNow performs one cleanup: enqueued when a queue is configured,
// otherwise inline.
func (s *AuditCleanupScheduler) RunNow() {
	task := tasks.CleanupAuditEventsTask{RetentionDays: s.retentionDays}

	if s.queue != nil {
		id, err := s.queue.Enqueue(task)
		if err != nil {
			log.Error().Err(err).Msg("Audit cleanup: failed to enqueue task")
			return
		}
		log.Debug().Str("task_id", id).Msg("Audit cleanup: task enqueued")
		return
	}

	if err := tasks.CleanupAuditEventsProcessor(s.cleaner)(context.Background(), task); err != nil {
		log.Error().Err(err).Msg("Audit cleanup failed")
	}
}
