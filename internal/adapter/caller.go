package adapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/internal/cache"
	"basegraph.app/assist/internal/model"
)

// Options are shared by the generation and search adapters.
type Options struct {
	Cache       cache.Cache
	Recorder    Recorder
	Retry       RetryPolicy
	CallTimeout time.Duration
	KeyPrefix   string
}

func (o Options) withDefaults() Options {
	if o.Cache == nil {
		o.Cache = cache.NewMemory()
	}
	if o.Recorder == nil {
		o.Recorder = NopRecorder
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = DefaultRetryPolicy()
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
	return o
}

// caller implements the cache-first, coalesced, retried call shared by every adapter.
type caller struct {
	service   string
	opts      Options
	retryable func(context.Context, error) bool
	group     singleflight.Group
}

func newCaller(service string, opts Options, retryable func(context.Context, error) bool) *caller {
	return &caller{
		service: service,
		opts:    opts.withDefaults(),
		retryable: func(ctx context.Context, err error) bool {
			if model.IsValidation(err) {
				return false
			}
			return retryable(ctx, err)
		},
	}
}

type flightResult struct {
	value    []byte
	attempts int
}

// cached returns the payload for key, calling fetch at most once across concurrent
// callers with the same key. A successful payload is cached for ttl.
//
// The shared fetch runs on a context detached from any single caller so that one
// caller disconnecting does not fail the others; it is still bounded by the retry
// policy and per-attempt timeouts. A caller whose own ctx ends stops waiting and gets
// ctx.Err(); the fetch result, if it later succeeds, still populates the cache.
func (c *caller) cached(
	ctx context.Context,
	operation, key string,
	ttl time.Duration,
	fetch func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Service:   logger.Ptr(c.service),
		Component: "assist.adapter." + c.service,
	})
	start := time.Now()
	rec := CallRecord{Service: c.service, Operation: operation, Key: key, At: start}

	if val, ok := c.lookup(ctx, key); ok {
		rec.CacheHit = true
		c.finish(ctx, rec, start, nil)
		return val, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that finished between our lookup and DoChan has already cached.
		if val, ok := c.lookup(detached, key); ok {
			return flightResult{value: val}, nil
		}

		var payload []byte
		attempts, err := c.opts.Retry.run(detached, c.opts.CallTimeout, c.retryable, func(attemptCtx context.Context) error {
			val, err := fetch(attemptCtx)
			if err != nil {
				return err
			}
			payload = val
			return nil
		})
		if err != nil {
			return flightResult{attempts: attempts}, c.unavailable(attempts, err)
		}

		if err := c.opts.Cache.Set(detached, key, payload, ttl); err != nil {
			slog.WarnContext(detached, "cache write failed", "key", key, "error", err)
		}
		return flightResult{value: payload, attempts: attempts}, nil
	})

	select {
	case <-ctx.Done():
		rec.Outcome = OutcomeCancelled
		c.finish(ctx, rec, start, ctx.Err())
		return nil, ctx.Err()
	case res := <-ch:
		fr, _ := res.Val.(flightResult)
		rec.Attempts = fr.attempts
		rec.Coalesced = res.Shared
		c.finish(ctx, rec, start, res.Err)
		if res.Err != nil {
			return nil, res.Err
		}
		return fr.value, nil
	}
}

// direct runs fetch with retries but without caching or coalescing. Used for writes.
func (c *caller) direct(ctx context.Context, operation string, fetch func(ctx context.Context) error) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Service:   logger.Ptr(c.service),
		Component: "assist.adapter." + c.service,
	})
	start := time.Now()
	rec := CallRecord{Service: c.service, Operation: operation, At: start}

	attempts, err := c.opts.Retry.run(ctx, c.opts.CallTimeout, c.retryable, fetch)
	rec.Attempts = attempts
	if err != nil && ctx.Err() == nil {
		err = c.unavailable(attempts, err)
	}
	if ctx.Err() != nil {
		rec.Outcome = OutcomeCancelled
	}
	c.finish(ctx, rec, start, err)
	return err
}

func (c *caller) lookup(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := c.opts.Cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return val, ok
}

func (c *caller) unavailable(attempts int, err error) error {
	var v *model.ValidationError
	if errors.As(err, &v) {
		return err
	}
	return &model.ServiceUnavailableError{Service: c.service, Attempts: attempts, Err: err}
}

func (c *caller) finish(ctx context.Context, rec CallRecord, start time.Time, err error) {
	rec.Duration = time.Since(start)
	if rec.Outcome == "" {
		rec.Outcome = OutcomeSuccess
		if err != nil {
			rec.Outcome = OutcomeFailure
		}
	}
	if err != nil {
		rec.Error = err.Error()
	}
	c.opts.Recorder.Record(ctx, rec)
}

// RetryCycle is the wall time one failed call and the backoff after it can consume.
func (c *caller) RetryCycle() time.Duration {
	return c.opts.Retry.Cycle(c.opts.CallTimeout)
}
