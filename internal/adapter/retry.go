package adapter

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryPolicy controls attempts against an upstream service. Delays grow
// exponentially from Base by Factor, are capped at MaxDelay and carry +/-25% jitter.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      float64
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Base:        2 * time.Second,
		Factor:      2.0,
		MaxDelay:    60 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Factor < 1 {
		p.Factor = 1
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = p.Base
	}
	return p
}

// delay returns the un-jittered wait after the given failed attempt (1-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= p.Factor
	}
	d := time.Duration(float64(p.Base) * multiplier)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Backoff returns the jittered wait after the given failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.normalized().delay(attempt)
	jitter := float64(d) * 0.25 * (rand.Float64()*2 - 1)
	return d + time.Duration(jitter)
}

// Cycle is the worst-case wall time of one failed attempt plus the wait before the
// next one. A pipeline with less budget than this left cannot complete a retry.
func (p RetryPolicy) Cycle(callTimeout time.Duration) time.Duration {
	d := p.normalized().delay(1)
	return callTimeout + d + d/4
}

// run calls fn until it succeeds, fails with a non-retryable error, or attempts are
// exhausted. Each attempt gets its own timeout derived from ctx.
func (p RetryPolicy) run(
	ctx context.Context,
	timeout time.Duration,
	retryable func(context.Context, error) bool,
	fn func(ctx context.Context) error,
) (int, error) {
	p = p.normalized()

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err = fn(attemptCtx)
		cancel()
		if err == nil {
			return attempt, nil
		}

		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if !retryable(ctx, err) {
			return attempt, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := p.Backoff(attempt)
		slog.WarnContext(ctx, "upstream call failed, retrying",
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return p.MaxAttempts, err
}
