package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	val, err := Do(context.Background(), Policy{MaxAttempts: 3}, func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	val, err := Do(context.Background(), Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transient(errors.New("503"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := eris.New("bad request")
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, Transient(errors.New("flaky"), 500)
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls, "budget is fixed, never indefinite")
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{MaxAttempts: 5, InitialBackoff: time.Minute}, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, Transient(errors.New("flaky"), 500)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("parse failure")))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(Transient(errors.New("429"), 429)))
	assert.True(t, IsTransient(eris.Wrap(errors.New("read tcp: i/o timeout"), "judge")))
	assert.True(t, IsTransient(errors.New("dial tcp: connection reset by peer")))
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 404} {
		assert.False(t, RetryableStatus(code), "status %d", code)
	}
}
