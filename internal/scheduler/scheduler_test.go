package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsJobOnEachTick(t *testing.T) {
	var calls int32
	job := Job{
		Name:     "test-job",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context, forceRun, dryRun bool) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	New([]Job{job}, nil).Start(ctx)

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&calls)), 2)
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	done := make(chan struct{})
	job := Job{
		Name:     "noop",
		Interval: time.Millisecond,
		Run: func(ctx context.Context, forceRun, dryRun bool) error {
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		New([]Job{job}, nil).Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}

func TestScheduler_RunsMultipleJobsConcurrently(t *testing.T) {
	var callsA, callsB int32
	jobs := []Job{
		{Name: "a", Interval: 5 * time.Millisecond, Run: func(ctx context.Context, forceRun, dryRun bool) error {
			atomic.AddInt32(&callsA, 1)
			return nil
		}},
		{Name: "b", Interval: 5 * time.Millisecond, Run: func(ctx context.Context, forceRun, dryRun bool) error {
			atomic.AddInt32(&callsB, 1)
			return nil
		}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	New(jobs, nil).Start(ctx)

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&callsA)), 2)
	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&callsB)), 2)
}
