package gambit

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategorizedErrors(t *testing.T) {
	t.Run("transient error carries retry metadata", func(t *testing.T) {
		cause := errors.New("slow down")
		err := NewTransientErrorWithRetry("rate limited", 429, 2*time.Second, cause)

		assert.True(t, IsTransient(err))
		assert.False(t, IsPermanent(err))
		assert.Equal(t, 429, StatusCodeOf(err))
		assert.Equal(t, 2*time.Second, RetryAfterOf(err))
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "rate limited: slow down", err.Error())
	})

	t.Run("categories survive wrapping", func(t *testing.T) {
		err := fmt.Errorf("calling model: %w", NewPermanentError("bad key", 401, nil))

		assert.True(t, IsPermanent(err))
		assert.Equal(t, 401, StatusCodeOf(err))
		assert.Zero(t, RetryAfterOf(err))
	})

	t.Run("plain errors have no category", func(t *testing.T) {
		err := errors.New("boom")

		assert.False(t, IsTransient(err))
		assert.False(t, IsPermanent(err))
		assert.Zero(t, StatusCodeOf(err))
	})
}

func TestCategorizeStatusCode(t *testing.T) {
	tests := []struct {
		code     int
		expected ErrorCategory
	}{
		{429, ErrorTransient},
		{500, ErrorTransient},
		{503, ErrorTransient},
		{400, ErrorUserInput},
		{404, ErrorUserInput},
		{401, ErrorPermanent},
		{403, ErrorPermanent},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeStatusCode(tt.code))
			assert.Equal(t, tt.expected, NewStatusError("x", tt.code, 0, nil).Category())
		})
	}
}

func TestExecutionError(t *testing.T) {
	t.Run("formats kind and message", func(t *testing.T) {
		err := NewExecutionError(KindSecurity, "import of os is not allowed", nil)
		assert.Equal(t, "security_violation: import of os is not allowed", err.Error())
	})

	t.Run("KindOf finds wrapped execution errors", func(t *testing.T) {
		err := fmt.Errorf("step 2: %w", NewExecutionError(KindTimeout, "deadline", nil))
		assert.Equal(t, KindTimeout, KindOf(err))
		assert.Equal(t, ErrorKind(""), KindOf(errors.New("other")))
	})

	t.Run("only step-local kinds are recoverable", func(t *testing.T) {
		for _, k := range []ErrorKind{KindParse, KindValidation, KindSecurity, KindRuntime, KindTimeout, KindTool} {
			assert.True(t, k.Recoverable(), k)
		}
		for _, k := range []ErrorKind{KindModel, KindCancelled, KindBudgetExhausted} {
			assert.False(t, k.Recoverable(), k)
		}
	})
}

func TestClassifyModelError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ModelFailure
	}{
		{"rate limited", NewStatusError("slow down", 429, 0, nil), ModelRateLimited},
		{"server error", NewStatusError("overloaded", 503, 0, nil), ModelTransport},
		{"bad request", NewStatusError("bad", 400, 0, nil), ModelInvalidResponse},
		{"auth", NewPermanentError("no key", 401, nil), ModelInvalidResponse},
		{"uncategorized", errors.New("garbled"), ModelInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyModelError(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}
