package review

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/store"
)

// Service drives inspection reports through review: generated, then submitted, then
// approved or rejected. Approved and rejected reports are final; a correction is a new
// report.
type Service struct {
	reports store.ReportStore
	now     func() time.Time
}

func NewService(reports store.ReportStore) *Service {
	return &Service{reports: reports, now: time.Now}
}

func (s *Service) Get(ctx context.Context, reportID int64) (*model.InspectionReport, error) {
	return s.reports.Get(ctx, reportID)
}

// Pending lists reports awaiting a review decision, oldest first.
func (s *Service) Pending(ctx context.Context, limit int) ([]*model.InspectionReport, error) {
	return s.reports.ListByState(ctx, model.ReviewStateSubmitted, limit)
}

func (s *Service) Submit(ctx context.Context, reportID int64, reviewer string) (*model.InspectionReport, error) {
	if strings.TrimSpace(reviewer) == "" {
		return nil, model.NewValidationError("reviewer", "must not be empty")
	}
	return s.transition(ctx, reportID, model.ReviewActionSubmit, func(r *model.InspectionReport) error {
		switch st := status(r).(type) {
		case model.Generated:
			r.Review = st.Submit(uuid.NewString(), reviewer, s.now())
			return nil
		}
		return stateError(r, model.ReviewActionSubmit)
	})
}

func (s *Service) Approve(ctx context.Context, reportID int64, approver, comments string) (*model.InspectionReport, error) {
	if strings.TrimSpace(approver) == "" {
		return nil, model.NewValidationError("approver", "must not be empty")
	}
	return s.transition(ctx, reportID, model.ReviewActionApprove, func(r *model.InspectionReport) error {
		switch st := status(r).(type) {
		case model.Submitted:
			r.Review = st.Approve(approver, comments, s.now())
			return nil
		}
		return stateError(r, model.ReviewActionApprove)
	})
}

func (s *Service) Reject(ctx context.Context, reportID int64, rejector string, reasons []string) (*model.InspectionReport, error) {
	if strings.TrimSpace(rejector) == "" {
		return nil, model.NewValidationError("rejector", "must not be empty")
	}
	return s.transition(ctx, reportID, model.ReviewActionReject, func(r *model.InspectionReport) error {
		switch st := status(r).(type) {
		case model.Submitted:
			rejected, err := st.Reject(rejector, reasons, s.now())
			if err != nil {
				return err
			}
			r.Review = rejected
			return nil
		}
		return stateError(r, model.ReviewActionReject)
	})
}

// transition loads the report, applies apply and stores the result only if no other
// writer changed the review state in between.
func (s *Service) transition(ctx context.Context, reportID int64, action model.ReviewAction, apply func(*model.InspectionReport) error) (*model.InspectionReport, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{ReportID: logger.Ptr(reportID), Component: "assist.review"})

	report, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	from := report.State()
	if err := apply(report); err != nil {
		return nil, err
	}

	if err := s.reports.UpdateReview(ctx, report, from); err != nil {
		if !errors.Is(err, store.ErrStaleState) {
			return nil, err
		}
		current, getErr := s.reports.Get(ctx, reportID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, stateError(current, action)
	}

	slog.InfoContext(ctx, "review transition", "action", action, "from", from, "to", report.State())
	return report, nil
}

func status(r *model.InspectionReport) model.ReviewStatus {
	if r.Review == nil {
		return model.Generated{}
	}
	return r.Review
}

func stateError(r *model.InspectionReport, action model.ReviewAction) error {
	return &model.ReviewStateError{ReportID: r.ID, From: r.State(), Action: action}
}
