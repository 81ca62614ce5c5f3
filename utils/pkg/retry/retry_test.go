package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  50 * time.Millisecond,
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	attempts := 0
	original := errors.New("connection reset")
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return original
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, original)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()

	attempts := 0
	original := errors.New("invalid input")
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return original
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, original, err)
}

func TestDo_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, fastConfig(), func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: false},
		{name: "net timeout", err: &net.OpError{Op: "read", Err: errors.New("i/o timeout")}, want: true},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "connection reset", err: errors.New("connection reset by peer"), want: true},
		{name: "broken pipe", err: errors.New("broken pipe"), want: true},
		{name: "EOF", err: errors.New("unexpected EOF"), want: true},
		{name: "temporary failure", err: errors.New("temporary failure in name resolution"), want: true},
		{name: "plain application error", err: errors.New("invalid input"), want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestBackoff_CappedWithJitter(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	max := 400 * time.Millisecond
	for attempt := 1; attempt <= 5; attempt++ {
		for i := 0; i < 20; i++ {
			d := backoff(base, max, attempt)
			assert.GreaterOrEqual(t, d, base/2)
			assert.LessOrEqual(t, d, max)
		}
	}
}
