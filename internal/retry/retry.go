// Package retry implements the exponential-backoff-with-jitter policy
// shared by the IPFS gateway client and the chain client:
// delay = base*2^(attempt-1) + U[0,1000)ms, capped at maxRetries. The
// retry loop lives in Policy.Do; github.com/cenkalti/backoff/v4 supplies
// only the PermanentError wrapper that marks an error as non-retryable.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Permanent marks an error as non-retryable: policy.Do stops immediately
// and returns the wrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Policy is a reusable retry helper taking an attempt index and producing
// a delay. Every error is retried unless it was wrapped with Permanent.
type Policy struct {
	Base       time.Duration
	MaxRetries int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPolicy builds a Policy with its own jitter source so concurrent
// callers never race on a shared *rand.Rand.
func NewPolicy(base time.Duration, maxRetries int) *Policy {
	return &Policy{
		Base:       base,
		MaxRetries: maxRetries,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the backoff duration for a 1-indexed attempt number.
func (p *Policy) Delay(attempt int) time.Duration {
	p.mu.Lock()
	jitter := time.Duration(p.rng.Int63n(1000)) * time.Millisecond
	p.mu.Unlock()

	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 32 {
		shift = 32 // guard against overflow for pathological attempt counts
	}
	return p.Base*(1<<uint(shift)) + jitter
}

// Do runs fn, retrying retryable errors up to MaxRetries using Delay for
// spacing. fn should wrap non-retryable failures with Permanent. Do
// returns ctx.Err() immediately on cancellation without counting it as a
// failed attempt.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var permErr *backoff.PermanentError
		if errors.As(err, &permErr) {
			return permErr.Err
		}
		lastErr = err

		if attempt > p.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
