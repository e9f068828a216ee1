package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrap(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "Dispatcher", "drain", "publish request")
	require.Error(t, err)
	assert.Equal(t, "Dispatcher.drain: publish request failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.Nil(t, Wrap(nil, "Dispatcher", "drain", "publish request"))
}

func TestClassifiedWrappers(t *testing.T) {
	base := stderrors.New("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "Engine", "HandleMessage", "intake")
			require.Error(t, err)

			var ce *ClassifiedError
			require.True(t, stderrors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "Engine", ce.Component)
			assert.True(t, stderrors.Is(err, base))

			assert.Nil(t, tt.wrap(nil, "Engine", "HandleMessage", "intake"))
		})
	}
}

func TestClassification(t *testing.T) {
	assert.True(t, IsTransient(ErrConnectionLost))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("read: connection reset")))
	assert.False(t, IsTransient(nil))

	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.False(t, IsFatal(ErrConnectionLost))

	assert.True(t, IsInvalid(ErrInvalidTopic))
	assert.True(t, IsInvalid(WrapInvalid(stderrors.New("bad"), "c", "m", "a")))

	assert.Equal(t, ErrorFatal, Classify(ErrMissingConfig))
	assert.Equal(t, ErrorInvalid, Classify(ErrParsingFailed))
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("weird")))
}

func TestRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig()

	assert.True(t, rc.ShouldRetry(ErrConnectionLost, 0))
	assert.False(t, rc.ShouldRetry(ErrConnectionLost, rc.MaxRetries))
	assert.False(t, rc.ShouldRetry(ErrInvalidConfig, 0))
	assert.False(t, rc.ShouldRetry(nil, 0))

	assert.Equal(t, rc.InitialDelay, rc.BackoffDelay(0))
	assert.Equal(t, 200*time.Millisecond, rc.BackoffDelay(1))
	assert.Equal(t, 400*time.Millisecond, rc.BackoffDelay(2))
	assert.Equal(t, rc.MaxDelay, rc.BackoffDelay(20))
}
