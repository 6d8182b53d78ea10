package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(retries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsAfterTransientError(t *testing.T) {
	// Given: a function that fails twice then succeeds
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	}

	// When: retrying
	err := Retry(context.Background(), fastRetry(3), fn)

	// Then: succeeds on the third attempt
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_FailsAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(2), func() error {
		attempts++
		return errors.New("persistent error")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsOnNonRetryableSearchError(t *testing.T) {
	// Given: a function returning a non-retryable coded error
	attempts := 0
	fn := func() error {
		attempts++
		return New(ErrCodeInvalidKey, "bad key", nil)
	}

	// When: retrying
	err := Retry(context.Background(), fastRetry(5), fn)

	// Then: only one attempt is made and the error is returned as is
	assert.Equal(t, 1, attempts)
	assert.True(t, HasCode(err, ErrCodeInvalidKey))
}

func TestRetry_KeepsRetryingRetryableSearchError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(2), func() error {
		attempts++
		return NotReady("Library not initialized")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, HasCode(err, ErrCodeNotInitialized))
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	// Given: an already cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Retry(ctx, fastRetry(3), func() error {
		called = true
		return nil
	})

	// Then: fn is never invoked
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	attempts := 0
	v, err := RetryWithResult(context.Background(), fastRetry(3), func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("dial failed")
		}
		return "connected", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "connected", v)
}

func TestRetryWithResult_ReturnsZeroOnFailure(t *testing.T) {
	v, err := RetryWithResult(context.Background(), fastRetry(1), func() (int, error) {
		return 42, errors.New("nope")
	})

	assert.Error(t, err)
	assert.Zero(t, v)
}
