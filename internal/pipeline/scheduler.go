package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/listing-etl/internal/domain"
)

// CycleRunner runs one reconciliation cycle.
type CycleRunner interface {
	Run(ctx context.Context, criteria domain.SearchCriteria) (Report, error)
}

// Scheduler repeats reconciliation cycles at a fixed interval.
type Scheduler struct {
	runner   CycleRunner
	criteria domain.SearchCriteria
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	ready    atomic.Bool
	cycles   atomic.Int64

	mu     sync.Mutex
	status Status
}

// Status describes the most recent finished cycle.
type Status struct {
	Cycles     int64     `json:"cycles"`
	LastRun    time.Time `json:"lastRun,omitzero"`
	LastError  string    `json:"lastError,omitempty"`
	LastReport *Report   `json:"lastReport,omitempty"`
}

// NewScheduler creates a Scheduler that runs a cycle every interval.
func NewScheduler(runner CycleRunner, criteria domain.SearchCriteria, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		runner:   runner,
		criteria: criteria,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// CheckReadiness returns nil once at least one cycle has succeeded.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no reconciliation cycle has completed yet")
	}
	return nil
}

// Cycles returns the number of cycles started so far.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

// Status returns a snapshot of the last finished cycle. LastReport keeps the
// report of the last successful cycle even after a later failure.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Cycles = s.cycles.Load()
	if st.LastReport != nil {
		r := *st.LastReport
		st.LastReport = &r
	}
	return st
}

// Run starts a cycle immediately and then one per interval until ctx is
// cancelled. Cycle failures are logged and do not stop the loop. A cycle that
// overruns the interval delays the next tick instead of overlapping it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval.String())

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n := s.cycles.Add(1)

	report, err := s.runner.Run(ctx, s.criteria)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Info("cycle interrupted", "cycle", n, "error", err)
			return
		}
		s.logger.Error("reconciliation cycle failed", "cycle", n, "error", err)
		s.record(nil, err)
		return
	}
	s.record(&report, nil)
	s.ready.Store(true)
	s.logger.Info("cycle finished",
		"cycle", n,
		"duration", report.Duration.String(),
		"next_run", s.clock.Now().Add(s.interval).Format(time.RFC3339),
	)
}

func (s *Scheduler) record(report *Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastRun = s.clock.Now()
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	if report != nil {
		s.status.LastReport = report
	}
}
