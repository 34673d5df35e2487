package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStoreUnavailable stops the scheduler once the store has rejected every
// write and failed its ping for too many consecutive cycles.
var ErrStoreUnavailable = errors.New("store unavailable")

// CycleRunner is the part of IngestionService the scheduler drives.
type CycleRunner interface {
	RunCycle(ctx context.Context) CycleReport
	Ping(ctx context.Context) error
}

type State int32

const (
	StateWaiting State = iota
	StateFetching
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateFetching:
		return "fetching"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Scheduler evaluates the market-hours gate immediately and then after every
// interval, running one cycle whenever the market is open.
type Scheduler struct {
	runner          CycleRunner
	hours           MarketHours
	interval        time.Duration
	maxFailedCycles int

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	state    atomic.Int32
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewScheduler(runner CycleRunner, hours MarketHours, interval time.Duration, maxFailedCycles int) *Scheduler {
	if maxFailedCycles < 1 {
		maxFailedCycles = 1
	}
	return &Scheduler{
		runner:          runner,
		hours:           hours,
		interval:        interval,
		maxFailedCycles: maxFailedCycles,
		now:             time.Now,
		after:           time.After,
		stopChan:        make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start blocks until Stop is called, ctx is cancelled, or the store is
// declared unavailable, in which case it returns ErrStoreUnavailable.
func (s *Scheduler) Start(ctx context.Context) error {
	defer close(s.done)

	slog.Info("Scheduler started",
		"interval", s.interval,
		"market_open", s.hours.Open,
		"market_close", s.hours.Close,
		"gate_disabled", s.hours.Disabled,
	)

	failedCycles := 0
	for {
		select {
		case <-s.stopChan:
			slog.Info("Scheduler stopped")
			return nil
		case <-ctx.Done():
			slog.Info("Scheduler stopped due to context cancellation")
			return nil
		default:
		}

		now := s.now()
		if s.hours.IsOpen(now) {
			s.state.Store(int32(StateFetching))
			report := s.runner.RunCycle(ctx)
			s.state.Store(int32(StateWaiting))

			if ctx.Err() != nil {
				slog.Info("Scheduler stopped due to context cancellation")
				return nil
			}

			if report.AllStoresFailed() {
				if pingErr := s.runner.Ping(ctx); pingErr != nil {
					failedCycles++
					slog.Error("Store unreachable",
						"cycle_id", report.CycleID,
						"failed_cycles", failedCycles,
						"max_failed_cycles", s.maxFailedCycles,
						"error", pingErr,
					)
					if failedCycles >= s.maxFailedCycles {
						return fmt.Errorf("%w: %d consecutive cycles failed: %v", ErrStoreUnavailable, failedCycles, pingErr)
					}
				} else {
					failedCycles = 0
				}
			} else if report.StoreAttempted() {
				failedCycles = 0
			}
		} else {
			slog.Info("Market closed, waiting", "now", now.In(s.location()).Format(time.RFC3339))
		}

		select {
		case <-s.after(s.interval):
		case <-s.stopChan:
			slog.Info("Scheduler stopped")
			return nil
		case <-ctx.Done():
			slog.Info("Scheduler stopped due to context cancellation")
			return nil
		}
	}
}

// Stop asks the loop to exit after the in-flight cycle, if any, completes.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Done is closed when Start returns.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) location() *time.Location {
	if s.hours.Location != nil {
		return s.hours.Location
	}
	return time.UTC
}
