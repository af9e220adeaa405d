package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"finsync/internal/shared/logger"
)

// ScheduleTime is a time of day at which the scheduler fires.
type ScheduleTime struct {
	Hour   int
	Minute int
}

func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses HH:MM.
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

// JobProvider builds the batch of jobs for one run.
type JobProvider func(ctx context.Context) ([]Job, error)

type Config struct {
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
	JobProvider   JobProvider
}

// Scheduler runs a JobProvider at fixed times of day and feeds the jobs to a
// worker pool.
type Scheduler struct {
	pool          *WorkerPool
	scheduleTimes []ScheduleTime
	runOnStartup  bool
	provider      JobProvider
	log           zerolog.Logger
	now           func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun string
}

func New(log zerolog.Logger, cfg Config) (*Scheduler, error) {
	if cfg.JobProvider == nil {
		return nil, errors.New("job provider is required")
	}

	times := make([]ScheduleTime, 0, len(cfg.ScheduleTimes))
	for _, raw := range cfg.ScheduleTimes {
		st, err := ParseScheduleTime(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", raw, err)
		}
		times = append(times, st)
	}
	if len(times) == 0 {
		return nil, errors.New("at least one schedule time is required")
	}
	sort.Slice(times, func(i, j int) bool {
		if times[i].Hour != times[j].Hour {
			return times[i].Hour < times[j].Hour
		}
		return times[i].Minute < times[j].Minute
	})

	log = log.With().Str("component", "scheduler").Logger()
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))

	log.Info().
		Strs("times", cfg.ScheduleTimes).
		Int("workers", cfg.WorkerCount).
		Dur("job_delay", cfg.JobDelay).
		Msg("scheduler configured")

	return &Scheduler{
		pool:          NewWorkerPool(log, cfg.WorkerCount, cfg.JobDelay, cfg.QueueSize),
		scheduleTimes: times,
		runOnStartup:  cfg.RunOnStartup,
		provider:      cfg.JobProvider,
		log:           log,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func (s *Scheduler) Start() {
	s.pool.Start()

	if s.runOnStartup {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJobs()
		}()
	}

	s.wg.Add(1)
	go s.loop()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if s.shouldRun(now) {
				s.log.Info().Str("at", now.Format("15:04")).Msg("scheduled run triggered")
				s.runJobs()
			}
		}
	}
}

// shouldRun reports whether now falls on a schedule time that has not run
// yet this minute.
func (s *Scheduler) shouldRun(now time.Time) bool {
	key := now.Format("2006-01-02T15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRun == key {
		return false
	}
	for _, st := range s.scheduleTimes {
		if now.Hour() == st.Hour && now.Minute() == st.Minute {
			s.lastRun = key
			return true
		}
	}
	return false
}

// runJobs asks the provider for a batch and submits it. It returns the number
// of jobs accepted by the pool.
func (s *Scheduler) runJobs() int {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	jobs, err := s.provider(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to build jobs")
		return 0
	}
	if len(jobs) == 0 {
		s.log.Info().Msg("no jobs to run")
		return 0
	}
	return s.pool.SubmitBatch(jobs)
}

// TriggerNow runs a batch outside the schedule.
func (s *Scheduler) TriggerNow() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJobs()
	}()
}

// Shutdown stops the schedule loop and then drains the pool.
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
		s.log.Warn().Msg("timed out waiting for scheduler loop")
	}

	s.pool.Shutdown(timeout)
	s.log.Info().Msg("scheduler stopped")
}

// NextRun returns the next schedule time after the current time.
func (s *Scheduler) NextRun() time.Time {
	now := s.now()
	for _, st := range s.scheduleTimes {
		t := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, now.Location())
		if t.After(now) {
			return t
		}
	}
	st := s.scheduleTimes[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), st.Hour, st.Minute, 0, 0, now.Location())
}

func (s *Scheduler) ScheduleTimes() []ScheduleTime {
	return s.scheduleTimes
}
