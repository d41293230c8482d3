package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *Config {
	return &Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(), nil, "oauth", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("temporary")
		}
		return "token", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "token", got)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	boom := errors.New("unreachable")
	calls := 0
	_, err := Do(context.Background(), fastConfig(), nil, "oauth", func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	denied := errors.New("invalid consumer credentials")
	calls := 0
	_, err := Do(context.Background(), fastConfig(), nil, "oauth", func(context.Context) (int, error) {
		calls++
		return 0, Permanent(denied)
	})
	assert.Equal(t, denied, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 1}
	calls := 0
	_, err := Do(ctx, cfg, nil, "oauth", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("temporary")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCalculateBackoffCaps(t *testing.T) {
	cfg := &Config{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, BackoffMultiplier: 2}
	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 3*time.Second, calculateBackoff(2, cfg))
}
