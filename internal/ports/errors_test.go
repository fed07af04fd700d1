package ports

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type retryableErr struct{ retry bool }

func (e retryableErr) Error() string     { return "provider failure" }
func (e retryableErr) IsRetryable() bool { return e.retry }

// TestLLMError tests the functionality of the LLMError error type.
// It covers error creation, message formatting, and retryable logic.
func TestLLMError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := NewLLMError("gpt-4o-mini", "Complete", ErrInvalidResponse)

		assert.Equal(t, "LLM error: model=gpt-4o-mini, operation=Complete, err=invalid response", err.Error())
		assert.Equal(t, "gpt-4o-mini", err.Model)
		assert.Equal(t, "Complete", err.Operation)
		assert.True(t, errors.Is(err, ErrInvalidResponse))
	})

	t.Run("with retry after", func(t *testing.T) {
		retryAfter := 30 * time.Second
		err := &LLMError{
			Model:      "gpt-4o-mini",
			Operation:  "Complete",
			Err:        ErrRateLimited,
			RetryAfter: &retryAfter,
		}

		assert.Contains(t, err.Error(), "retry_after=30s")
	})

	t.Run("retryable sentinels", func(t *testing.T) {
		for _, baseErr := range []error{ErrRateLimited, ErrServiceUnavailable, ErrTimeout} {
			err := NewLLMError("test-model", "Test", fmt.Errorf("wrapped: %w", baseErr))
			assert.True(t, err.IsRetryable(), "%v should be retryable", baseErr)
		}

		for _, baseErr := range []error{ErrInvalidResponse, ErrNotFound} {
			err := NewLLMError("test-model", "Test", baseErr)
			assert.False(t, err.IsRetryable(), "%v should not be retryable", baseErr)
		}
	})

	t.Run("delegates to provider classification", func(t *testing.T) {
		assert.True(t, NewLLMError("m", "Complete", retryableErr{retry: true}).IsRetryable())
		assert.False(t, NewLLMError("m", "Complete", retryableErr{retry: false}).IsRetryable())
	})
}

// TestConfigError verifies message formatting and unwrapping of ConfigError.
func TestConfigError(t *testing.T) {
	cause := errors.New("must be positive")
	err := NewConfigError("engine.max_retries", cause)

	assert.Equal(t, "config error: key=engine.max_retries, err=must be positive", err.Error())
	assert.ErrorIs(t, err, cause)
}
