package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"
)

// defaultWindowSpan is the horizon used when a trigger omits the window.
const defaultWindowSpan = 30 * 24 * time.Hour

// CycleRunner is the part of the orchestrator the scheduler needs.
type CycleRunner interface {
	RunCycle(ctx context.Context, start, end time.Time) CycleSummary
}

// Window is the time range a cycle covered.
type Window struct {
	Start time.Time
	End   time.Time
}

// Scheduler owns cycle execution: it serializes cycles (at most one in
// flight process-wide), runs the periodic loop, and accepts on-demand
// triggers that run in the background.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	log      *slog.Logger

	mu         stdsync.Mutex
	inFlight   bool
	lastWindow Window

	wg stdsync.WaitGroup
}

func NewScheduler(runner CycleRunner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		log:      logger,
	}
}

// Trigger starts a cycle in the background and returns the window it will
// cover. Zero start/end fall back to now and now plus thirty days. If a
// cycle is already running it returns ErrCycleRunning without starting
// anything.
func (s *Scheduler) Trigger(ctx context.Context, start, end time.Time) (Window, error) {
	if start.IsZero() {
		start = time.Now()
	}
	if end.IsZero() {
		end = start.Add(defaultWindowSpan)
	}
	w := Window{Start: start, End: end}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return Window{}, ErrCycleRunning
	}
	s.inFlight = true
	s.lastWindow = w
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.inFlight = false
			s.mu.Unlock()
		}()
		s.runner.RunCycle(ctx, w.Start, w.End)
	}()

	return w, nil
}

// InFlight reports whether a cycle is currently executing.
func (s *Scheduler) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// LastWindow returns the window of the most recently started cycle.
func (s *Scheduler) LastWindow() Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWindow
}

// Wait blocks until all started cycles have finished. Used on shutdown
// and in tests.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Run executes an immediate cycle and then one per interval until ctx is
// cancelled. A tick that arrives while a cycle is still running is
// dropped rather than queued.
func (s *Scheduler) Run(ctx context.Context) {
	if _, err := s.Trigger(ctx, time.Time{}, time.Time{}); err != nil {
		s.log.Warn("initial cycle not started", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping", "reason", ctx.Err())
			s.Wait()
			return
		case <-ticker.C:
			if _, err := s.Trigger(ctx, time.Time{}, time.Time{}); err != nil {
				s.log.Debug("tick skipped, cycle still running")
			}
		}
	}
}
