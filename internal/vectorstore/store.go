package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Document is a stored text with flat metadata. Metadata values are strings, numbers
// or booleans.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Hit is a search result. Score is a relevance in [0,1], higher is closer.
type Hit struct {
	Document
	Score float64 `json:"score"`
}

// Filter restricts a search or delete to documents whose metadata equals every entry.
type Filter map[string]string

// Store is the similarity-search backend contract.
type Store interface {
	Add(ctx context.Context, docs []Document) ([]string, error)
	// Search runs each query and returns one ranked hit list per query.
	Search(ctx context.Context, queries []string, limit int, filter Filter) ([][]Hit, error)
	// Delete removes documents by id, or every document matching filter when ids is empty.
	Delete(ctx context.Context, ids []string, filter Filter) error
}

// ErrEmptyDelete is returned by Delete when neither ids nor a filter is given.
var ErrEmptyDelete = errors.New("delete requires ids or a filter")

// IsRetryable classifies backend errors: network failures and timeouts are transient,
// everything else is permanent.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ctx.Err() == nil
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429 || statusErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED)
}

// HTTPStatusError carries a non-2xx status from an HTTP backend.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("search backend returned status %d: %s", e.StatusCode, e.Body)
}

func matches(meta map[string]any, filter Filter) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}
