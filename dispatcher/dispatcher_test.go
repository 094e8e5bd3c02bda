package dispatcher

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devskill-org/battery-optimizer/optimizer"
)

func TestDispatcherDiscardsSupersededResults(t *testing.T) {
	var started int32
	release := make(chan struct{})

	solve := func(ctx context.Context, tick time.Time) (optimizer.Action, optimizer.Policy, error) {
		atomic.AddInt32(&started, 1)
		select {
		case <-release:
		case <-ctx.Done():
			return optimizer.Action{}, optimizer.Policy{}, ctx.Err()
		}
		return optimizer.Action{State: optimizer.StateIdle}, optimizer.Policy{}, nil
	}

	var mu sync.Mutex
	var results []optimizer.Action
	onResult := func(tick time.Time, action optimizer.Action, policy optimizer.Policy, err error) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, action)
	}

	d := New(solve, onResult, 5*time.Second, log.New(nopWriter{}, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.submit(ctx) // first tick, blocked on release
	d.submit(ctx) // second tick supersedes the first

	close(release)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 {
		t.Fatalf("expected exactly one accepted result (the superseding tick), got %d", len(results))
	}
}

func TestDispatcherStopCancelsInFlightSolve(t *testing.T) {
	cancelled := make(chan struct{}, 1)
	solve := func(ctx context.Context, tick time.Time) (optimizer.Action, optimizer.Policy, error) {
		<-ctx.Done()
		cancelled <- struct{}{}
		return optimizer.Action{}, optimizer.Policy{}, ctx.Err()
	}

	d := New(solve, func(time.Time, optimizer.Action, optimizer.Policy, error) {}, 5*time.Second, log.New(nopWriter{}, "", 0))

	ctx := context.Background()
	d.submit(ctx)
	d.Stop()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("expected Stop to cancel the in-flight solve")
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
