package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	b := NewBackoff(fastConfig())

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	b := NewBackoff(fastConfig())

	calls := 0
	wanted := errors.New("persistent")
	err := b.Retry(context.Background(), func() error {
		calls++
		return wanted
	})

	assert.ErrorIs(t, err, wanted)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancellation(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = time.Second
	b := NewBackoff(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := b.Retry(ctx, func() error {
		calls++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation during the wait must stop further attempts")
}

func TestCalculateDelay_ExponentialGrowthAndCap(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
	})

	assert.Equal(t, 100*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 200*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, 400*time.Millisecond, b.GetNextDelay(3))
	assert.Equal(t, time.Second, b.GetNextDelay(10), "delay is capped at max")
}

func TestCalculateDelay_JitterStaysBounded(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	})

	for i := 0; i < 50; i++ {
		d := b.GetNextDelay(2)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}
