// Package scheduler runs the sync pipeline at fixed times of day and the
// weekly report on its configured weekday.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ScheduleTime is a time of day in the scheduler's local timezone.
type ScheduleTime struct {
	Hour   int
	Minute int
}

func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses "HH:MM".
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}
	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}
	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// Config holds scheduler configuration. SyncJob runs at every schedule
// time daily; ReportJob additionally runs at the first schedule time on
// ReportWeekday.
type Config struct {
	ScheduleTimes []string
	ReportWeekday time.Weekday
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
	SyncJob       Job
	ReportJob     Job
}

// Scheduler triggers jobs at the configured wall-clock times.
type Scheduler struct {
	workerPool    *WorkerPool
	scheduleTimes []ScheduleTime
	reportWeekday time.Weekday
	runOnStartup  bool
	syncJob       Job
	reportJob     Job
	log           zerolog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastRunKey string
	mu         sync.Mutex
}

func New(config Config, log zerolog.Logger) (*Scheduler, error) {
	scheduleTimes := make([]ScheduleTime, 0, len(config.ScheduleTimes))
	for _, timeStr := range config.ScheduleTimes {
		st, err := ParseScheduleTime(timeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", timeStr, err)
		}
		scheduleTimes = append(scheduleTimes, st)
	}
	if len(scheduleTimes) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}

	log = log.With().Str("component", "scheduler").Logger()

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		workerPool:    NewWorkerPool(config.WorkerCount, config.JobDelay, config.QueueSize, log),
		scheduleTimes: scheduleTimes,
		reportWeekday: config.ReportWeekday,
		runOnStartup:  config.RunOnStartup,
		syncJob:       config.SyncJob,
		reportJob:     config.ReportJob,
		log:           log,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start launches the worker pool and the scheduling loop.
func (s *Scheduler) Start() {
	s.workerPool.Start()

	if s.runOnStartup {
		s.log.Info().Msg("running initial sync on startup")
		s.submit(s.syncJob)
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	s.log.Info().
		Int("schedule_times", len(s.scheduleTimes)).
		Str("report_weekday", s.reportWeekday.String()).
		Msg("scheduler started")
}

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case now := <-ticker.C:
			hit, first := s.shouldRun(now)
			if !hit {
				continue
			}

			s.log.Info().Str("time", now.Format("15:04")).Msg("schedule triggered")
			s.submit(s.syncJob)

			if first && now.Weekday() == s.reportWeekday && s.reportJob != nil {
				s.submit(s.reportJob)
			}
		}
	}
}

// shouldRun reports whether now matches a schedule time not yet fired this
// minute, and whether it is the first schedule time of the day.
func (s *Scheduler) shouldRun(now time.Time) (hit, first bool) {
	key := now.Format("2006-01-02-15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRunKey == key {
		return false, false
	}

	for i, st := range s.scheduleTimes {
		if now.Hour() == st.Hour && now.Minute() == st.Minute {
			s.lastRunKey = key
			return true, i == 0
		}
	}

	return false, false
}

func (s *Scheduler) submit(job Job) {
	if job == nil {
		return
	}
	if err := s.workerPool.Submit(job); err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Msg("failed to submit job")
	}
}

// NextScheduledTime returns the next wall-clock run time.
func (s *Scheduler) NextScheduledTime() time.Time {
	now := time.Now()

	for _, st := range s.scheduleTimes {
		scheduled := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, now.Location())
		if scheduled.After(now) {
			return scheduled
		}
	}

	st := s.scheduleTimes[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), st.Hour, st.Minute, 0, 0, now.Location())
}

// Shutdown stops the loop first, then drains the worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Warn().Msg("timeout waiting for scheduler loop to stop")
	}

	s.workerPool.ShutdownWithTimeout(timeout)
	s.log.Info().Msg("scheduler stopped")
}
