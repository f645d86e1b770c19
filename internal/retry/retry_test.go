package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelay_Exponential(t *testing.T) {
	p := NewPolicy(100*time.Millisecond, 5)
	d1 := p.Delay(1)
	d2 := p.Delay(2)
	assert.GreaterOrEqual(t, d1, 100*time.Millisecond)
	assert.Less(t, d1, 1100*time.Millisecond)
	assert.GreaterOrEqual(t, d2, 200*time.Millisecond)
	assert.Less(t, d2, 1200*time.Millisecond)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	p := NewPolicy(time.Millisecond, 3)
	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	p := NewPolicy(time.Millisecond, 5)
	attempts := 0
	sentinel := errors.New("bad request")
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(sentinel)
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
}

func TestDo_ExhaustsMaxRetries(t *testing.T) {
	p := NewPolicy(time.Millisecond, 2)
	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("still failing")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestDo_CancellationStopsWithoutPenalty(t *testing.T) {
	p := NewPolicy(50*time.Millisecond, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func(ctx context.Context) error {
		t.Fatal("fn should not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
