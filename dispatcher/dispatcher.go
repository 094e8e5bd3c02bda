// Package dispatcher offloads the CPU-heavy DP solve from the supervisory
// tick loop, enforcing single-flight semantics: a new tick cancels any
// still-running solve from a previous tick, and late results are discarded.
package dispatcher

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/devskill-org/battery-optimizer/optimizer"
)

// SolveFunc runs one end-to-end solve for the given tick time: aligning
// forecasts, compressing blocks, solving the DP and mapping the first
// action, returning both the action and the full policy for diagnostics.
// It must check ctx for cancellation at block boundaries, which
// optimizer.Solve already does internally.
type SolveFunc func(ctx context.Context, tick time.Time) (optimizer.Action, optimizer.Policy, error)

// ResultHandler is invoked with the outcome of the most recent accepted
// solve. It is never called with a stale (superseded) result.
type ResultHandler func(tick time.Time, action optimizer.Action, policy optimizer.Policy, err error)

// Dispatcher runs SolveFunc on a fixed cadence, single-flighting solves
// exactly as spec.md §4.8/§5 requires (C8 Async Dispatcher).
type Dispatcher struct {
	solve        SolveFunc
	onResult     ResultHandler
	solveTimeout time.Duration
	logger       *log.Logger

	mu         sync.Mutex
	latestTick time.Time
	cancelFunc context.CancelFunc

	stopChan chan struct{}
}

// New constructs a Dispatcher. solveTimeout bounds each individual solve
// (spec.md's SolveTimeout taxonomy entry); logger follows the teacher's
// convention of an explicit *log.Logger threaded through constructors.
func New(solve SolveFunc, onResult ResultHandler, solveTimeout time.Duration, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		solve:        solve,
		onResult:     onResult,
		solveTimeout: solveTimeout,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Run drives the dispatcher's tick loop until ctx is cancelled or Stop is
// called. It blocks; callers typically run it in its own goroutine, the
// same shape as the teacher's PeriodicTask.run.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	d.logger.Printf("[dispatcher] started with tick interval %v", interval)

	// Fire immediately, then on every tick.
	d.submit(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.submit(ctx)
		case <-ctx.Done():
			d.logger.Printf("[dispatcher] stopped due to context cancellation")
			return
		case <-d.stopChan:
			d.logger.Printf("[dispatcher] stopped due to stop signal")
			return
		}
	}
}

// Stop halts the dispatcher's tick loop and cancels any in-flight solve.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
	d.mu.Unlock()

	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}
}

// submit cancels any previous in-flight solve, starts a new one labelled
// with this tick's timestamp, and discards the result if a newer tick has
// since been submitted (single-flight, per §4.8 and §5 "Ordering").
func (d *Dispatcher) submit(parent context.Context) {
	tick := time.Now()

	d.mu.Lock()
	if d.cancelFunc != nil {
		d.cancelFunc() // supersede: cancel the previous tick's solve
	}
	solveCtx, cancel := context.WithTimeout(parent, d.solveTimeout)
	d.cancelFunc = cancel
	d.latestTick = tick
	d.mu.Unlock()

	go func() {
		defer cancel()
		action, policy, err := d.solve(solveCtx, tick)

		d.mu.Lock()
		isLatest := tick.Equal(d.latestTick)
		d.mu.Unlock()
		if !isLatest {
			d.logger.Printf("[dispatcher] discarding result for superseded tick %s", tick.Format(time.RFC3339))
			return
		}

		if err != nil {
			d.logger.Printf("[dispatcher] solve for tick %s failed: %v", tick.Format(time.RFC3339), err)
		}
		d.onResult(tick, action, policy, err)
	}()
}
