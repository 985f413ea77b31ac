package llm

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/openai/openai-go"
)

// TransientError wraps a failure that is worth retrying: timeouts, connection resets,
// rate limiting and upstream 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError wraps a failure that will not succeed on retry: malformed requests,
// authentication and permission failures.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// Classify wraps err as Transient or Fatal. Already classified errors and context
// errors are returned unchanged.
func Classify(ctx context.Context, err error) error {
	if err == nil || IsTransient(err) || IsFatal(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if IsRetryable(ctx, err) {
		return Transient(err)
	}
	return Fatal(err)
}

// IsRetryable reports whether err is a provider failure that may succeed on retry.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if IsTransient(err) {
		return true
	}
	if IsFatal(err) {
		return false
	}

	// A per-attempt timeout surfaces as DeadlineExceeded; the caller decides whether
	// its own context is still alive.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ctx.Err() == nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			slog.WarnContext(ctx, "llm rate limited, will retry",
				"status_code", apiErr.StatusCode)
			return true
		case apiErr.StatusCode == 408 || apiErr.StatusCode == 409:
			return true
		case apiErr.StatusCode >= 500:
			slog.WarnContext(ctx, "llm server error, will retry",
				"status_code", apiErr.StatusCode)
			return true
		default:
			slog.ErrorContext(ctx, "llm client error, not retryable",
				"status_code", apiErr.StatusCode,
				"error_type", apiErr.Type,
				"error_code", apiErr.Code)
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Unknown transport failures (no API response) are generally retryable
	slog.WarnContext(ctx, "llm transport error, will retry", "error", err)
	return true
}
