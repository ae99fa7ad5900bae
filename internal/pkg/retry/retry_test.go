package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestToRetryOptions_RetriesOnceThenReturnsLastError(t *testing.T) {
	cfg := &RetryConfig{Attempts: 2, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := retry.Do(func() error {
		calls++
		return errTransient
	}, cfg.ToRetryOptions(context.Background(), func(error) bool { return true })...)

	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, calls)
}

func TestToRetryOptions_RetryIfStopsEarly(t *testing.T) {
	cfg := &RetryConfig{Attempts: 2, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := retry.Do(func() error {
		calls++
		return errTransient
	}, cfg.ToRetryOptions(context.Background(), func(error) bool { return false })...)

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestToRetryOptions_ZeroDelay(t *testing.T) {
	cfg := &RetryConfig{Attempts: 2}

	calls := 0
	err := retry.Do(func() error {
		calls++
		if calls == 1 {
			return errTransient
		}
		return nil
	}, cfg.ToRetryOptions(context.Background(), nil)...)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, uint(2), cfg.Attempts)
	assert.Less(t, cfg.Delay, cfg.MaxDelay)
}
