package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pruner drops expired entries and reports how many were removed.
type Pruner interface {
	Prune() int
}

// Scheduler runs cache housekeeping on a cron schedule. It never fetches
// forecasts.
type Scheduler struct {
	pruner     Pruner
	logger     *zap.Logger
	schedule   string
	cron       *cron.Cron
	entryID    cron.EntryID
	running    bool
	mu         sync.Mutex
	lastRun    time.Time
	lastPruned int
	runs       int
}

type Status struct {
	Running    bool      `json:"running"`
	Schedule   string    `json:"schedule"`
	LastRun    time.Time `json:"last_run,omitempty"`
	NextRun    time.Time `json:"next_run,omitempty"`
	LastPruned int       `json:"last_pruned"`
	Runs       int       `json:"runs"`
}

// NewScheduler validates schedule (standard cron or a descriptor such as
// "@every 30m") and returns a stopped scheduler.
func NewScheduler(pruner Pruner, schedule string, logger *zap.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	s := &Scheduler{
		pruner:   pruner,
		logger:   logger,
		schedule: schedule,
		cron:     c,
	}

	id, err := c.AddFunc(schedule, s.RunNow)
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	s.entryID = id
	return s, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()

	s.logger.Info("Scheduler started",
		zap.String("schedule", s.schedule),
		zap.Time("next_run", s.cron.Entry(s.entryID).Next))
}

// Stop halts the schedule and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// RunNow prunes expired cache entries immediately.
func (s *Scheduler) RunNow() {
	start := time.Now()
	removed := s.pruner.Prune()

	s.mu.Lock()
	s.lastRun = start
	s.lastPruned = removed
	s.runs++
	s.mu.Unlock()

	s.logger.Info("Cache prune completed",
		zap.Int("removed", removed),
		zap.Duration("duration", time.Since(start)))
}

func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:    s.running,
		Schedule:   s.schedule,
		LastRun:    s.lastRun,
		LastPruned: s.lastPruned,
		Runs:       s.runs,
	}
	if s.running {
		st.NextRun = s.cron.Entry(s.entryID).Next
	}
	return st
}
