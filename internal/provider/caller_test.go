package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// newTestCaller builds a caller whose inter-attempt sleep is a no-op so retry
// tests run instantly.
func newTestCaller(sender Sender, retries int) *Caller {
	c := NewCaller(sender, retries, 0, nil, testLogger())
	c.sleep = func(ctx context.Context, try int) error { return ctx.Err() }
	return c
}

func TestCallerExecute(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		calls := 0
		c := newTestCaller(SenderFunc(func(ctx context.Context, payload map[string]any) (map[string]any, error) {
			calls++
			return map[string]any{"id": "r1"}, nil
		}), 3)

		a := c.Execute(context.Background(), map[string]any{"model": "m"})
		require.Equal(t, AttemptSucceeded, a.Outcome)
		require.Equal(t, 1, a.Attempts)
		require.Equal(t, 1, calls)
		require.Equal(t, "r1", a.Response["id"])
		require.NoError(t, a.Err)
	})

	t.Run("fails twice then succeeds within budget", func(t *testing.T) {
		calls := 0
		c := newTestCaller(SenderFunc(func(ctx context.Context, payload map[string]any) (map[string]any, error) {
			calls++
			if calls <= 2 {
				return nil, fmt.Errorf("transient failure %d", calls)
			}
			return map[string]any{"id": "r3"}, nil
		}), 3)

		a := c.Execute(context.Background(), map[string]any{"model": "m"})
		require.Equal(t, AttemptSucceeded, a.Outcome)
		require.Equal(t, 3, a.Attempts)
		require.NoError(t, a.Err)
	})

	t.Run("budget exhausted reports last error", func(t *testing.T) {
		calls := 0
		c := newTestCaller(SenderFunc(func(ctx context.Context, payload map[string]any) (map[string]any, error) {
			calls++
			return nil, fmt.Errorf("failure %d", calls)
		}), 2)

		a := c.Execute(context.Background(), nil)
		require.Equal(t, AttemptExhausted, a.Outcome)
		require.Equal(t, 3, a.Attempts)
		require.EqualError(t, a.Err, "failure 3")
	})

	t.Run("zero retries means exactly one attempt", func(t *testing.T) {
		calls := 0
		c := newTestCaller(SenderFunc(func(ctx context.Context, payload map[string]any) (map[string]any, error) {
			calls++
			return nil, errors.New("nope")
		}), 0)

		a := c.Execute(context.Background(), nil)
		require.Equal(t, AttemptExhausted, a.Outcome)
		require.Equal(t, 1, calls)
	})

	t.Run("negative retries treated as zero", func(t *testing.T) {
		calls := 0
		c := newTestCaller(SenderFunc(func(ctx context.Context, payload map[string]any) (map[string]any, error) {
			calls++
			return nil, errors.New("nope")
		}), -5)

		_ = c.Execute(context.Background(), nil)
		require.Equal(t, 1, calls)
	})

	t.Run("cancellation stops the loop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		c := newTestCaller(SenderFunc(func(ctx context.Context, payload map[string]any) (map[string]any, error) {
			calls++
			cancel()
			return nil, errors.New("connection reset")
		}), 10)

		a := c.Execute(ctx, nil)
		require.Equal(t, AttemptExhausted, a.Outcome)
		require.Equal(t, 1, calls)
	})

	t.Run("per-attempt timeout counts as a failed attempt", func(t *testing.T) {
		calls := 0
		c := NewCaller(SenderFunc(func(ctx context.Context, payload map[string]any) (map[string]any, error) {
			calls++
			if calls == 1 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return map[string]any{"id": "slowpoke"}, nil
		}), 1, 10*time.Millisecond, nil, testLogger())
		c.sleep = func(ctx context.Context, try int) error { return ctx.Err() }

		a := c.Execute(context.Background(), nil)
		require.Equal(t, AttemptSucceeded, a.Outcome)
		require.Equal(t, 2, a.Attempts)
	})

	t.Run("rate limit raises the shared backoff", func(t *testing.T) {
		backoff := NewBackoff(time.Millisecond, 32*time.Millisecond)
		calls := 0
		c := NewCaller(SenderFunc(func(ctx context.Context, payload map[string]any) (map[string]any, error) {
			calls++
			if calls == 1 {
				return nil, fmt.Errorf("wrapped: %w", &openai.Error{StatusCode: 429})
			}
			return map[string]any{}, nil
		}), 1, 0, backoff, testLogger())
		c.sleep = func(ctx context.Context, try int) error { return ctx.Err() }

		a := c.Execute(context.Background(), nil)
		require.Equal(t, AttemptSucceeded, a.Outcome)
		require.Equal(t, time.Millisecond, backoff.Current())
	})
}

func TestIsRateLimited(t *testing.T) {
	require.True(t, IsRateLimited(&openai.Error{StatusCode: 429}))
	require.True(t, IsRateLimited(fmt.Errorf("send: %w", &openai.Error{StatusCode: 429})))
	require.False(t, IsRateLimited(&openai.Error{StatusCode: 500}))
	require.False(t, IsRateLimited(errors.New("connection refused")))
	require.False(t, IsRateLimited(nil))
}

func TestBackoff(t *testing.T) {
	t.Run("starts at zero", func(t *testing.T) {
		b := NewBackoff(time.Second, 32*time.Second)
		require.Zero(t, b.Current())
	})

	t.Run("raises double up to the cap", func(t *testing.T) {
		b := NewBackoff(time.Second, 8*time.Second)
		b.Raise()
		require.Equal(t, time.Second, b.Current())
		b.Raise()
		require.Equal(t, 2*time.Second, b.Current())
		b.Raise()
		require.Equal(t, 4*time.Second, b.Current())
		b.Raise()
		require.Equal(t, 8*time.Second, b.Current())
		b.Raise()
		require.Equal(t, 8*time.Second, b.Current())
	})

	t.Run("wait with zero delay returns immediately", func(t *testing.T) {
		b := NewBackoff(time.Second, 32*time.Second)
		require.NoError(t, b.Wait(context.Background()))
	})

	t.Run("wait honors cancellation", func(t *testing.T) {
		b := NewBackoff(time.Minute, time.Minute)
		b.Raise()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, b.Wait(ctx), context.Canceled)
	})
}
