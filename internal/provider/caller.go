package provider

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Outcome is the terminal state of one case's request execution.
type Outcome string

const (
	// AttemptSucceeded means an attempt returned a non-error response.
	AttemptSucceeded Outcome = "succeeded"
	// AttemptExhausted means every attempt in the budget failed.
	AttemptExhausted Outcome = "exhausted"
)

// Attempt is the result of executing one case against the provider,
// including however many retries the budget allowed.
type Attempt struct {
	Outcome  Outcome
	Response map[string]any
	Err      error
	// Attempts is the total number of sends performed, retries included.
	Attempts int
	Duration time.Duration
}

// Caller wraps a Sender with a bounded retry loop, a per-attempt deadline,
// and the shared rate-limit backoff. Retry here covers transient transport
// failures only; it is unrelated to the published per-case evaluation-pass
// budget surfaced in the summary.
type Caller struct {
	sender  Sender
	retries int
	timeout time.Duration
	backoff *Backoff
	log     logrus.FieldLogger

	// sleep paces consecutive attempts; replaced in tests.
	sleep func(ctx context.Context, try int) error
}

// NewCaller builds a retry controller. retries is the number of additional
// attempts after the first; a negative value is treated as zero.
func NewCaller(sender Sender, retries int, timeout time.Duration, backoff *Backoff, log logrus.FieldLogger) *Caller {
	if retries < 0 {
		retries = 0
	}
	if backoff == nil {
		backoff = NewBackoff(time.Second, 32*time.Second)
	}
	return &Caller{
		sender:  sender,
		retries: retries,
		timeout: timeout,
		backoff: backoff,
		log:     log,
		sleep:   sleepBetweenAttempts,
	}
}

// Execute runs one case's request until it succeeds or the retry budget is
// exhausted. A deadline breach, transport error, or provider error response
// all count as a failed attempt. Cancellation of ctx stops the loop; callers
// distinguish abandonment by checking ctx.Err.
func (c *Caller) Execute(ctx context.Context, payload map[string]any) Attempt {
	start := time.Now()

	var lastErr error
	attempts := 0
	for try := 0; try <= c.retries; try++ {
		if err := c.backoff.Wait(ctx); err != nil {
			break
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if c.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		resp, err := c.sender.Send(attemptCtx, payload)
		cancel()
		attempts++

		if err == nil {
			return Attempt{
				Outcome:  AttemptSucceeded,
				Response: resp,
				Attempts: attempts,
				Duration: time.Since(start),
			}
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if IsRateLimited(err) {
			c.backoff.Raise()
		}
		if try < c.retries {
			c.log.WithError(err).WithFields(logrus.Fields{
				"attempt": try + 1,
				"budget":  c.retries + 1,
			}).Warn("request failed, retrying")
			if err := c.sleep(ctx, try); err != nil {
				break
			}
		}
	}

	return Attempt{
		Outcome:  AttemptExhausted,
		Err:      lastErr,
		Attempts: attempts,
		Duration: time.Since(start),
	}
}

// sleepBetweenAttempts waits 2^try seconds, capped at 32s, honoring
// cancellation.
func sleepBetweenAttempts(ctx context.Context, try int) error {
	delay := time.Duration(1<<uint(try)) * time.Second
	if delay > 32*time.Second {
		delay = 32 * time.Second
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
