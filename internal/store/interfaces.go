package store

import (
	"context"
	"errors"

	"basegraph.app/assist/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrStaleState is returned by UpdateReview when the stored review state no longer
// matches the state the caller's transition started from.
var ErrStaleState = errors.New("review state changed concurrently")

// ReportStore defines the contract for inspection report persistence
type ReportStore interface {
	Create(ctx context.Context, report *model.InspectionReport) error
	Get(ctx context.Context, id int64) (*model.InspectionReport, error)
	// UpdateReview stores the report's review status only if the stored state still
	// equals expected.
	UpdateReview(ctx context.Context, report *model.InspectionReport, expected model.ReviewState) error
	ListByState(ctx context.Context, state model.ReviewState, limit int) ([]*model.InspectionReport, error)
	ListBySession(ctx context.Context, sessionID string) ([]*model.InspectionReport, error)
}
