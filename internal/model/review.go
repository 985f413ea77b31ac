package model

import (
	"fmt"
	"time"
)

type ReviewState string

const (
	ReviewStateGenerated ReviewState = "generated"
	ReviewStateSubmitted ReviewState = "submitted"
	ReviewStateApproved  ReviewState = "approved"
	ReviewStateRejected  ReviewState = "rejected"
)

func (s ReviewState) Terminal() bool {
	return s == ReviewStateApproved || s == ReviewStateRejected
}

type ReviewAction string

const (
	ReviewActionSubmit  ReviewAction = "submit"
	ReviewActionApprove ReviewAction = "approve"
	ReviewActionReject  ReviewAction = "reject"
)

// ReviewStatus is a closed set of review states. Each state is its own type and only
// exposes the transitions it allows: Generated.Submit, Submitted.Approve and
// Submitted.Reject. Approved and Rejected have none.
type ReviewStatus interface {
	State() ReviewState
	reviewStatus()
}

type Generated struct{}

type Submitted struct {
	ReviewID    string    `json:"review_id"`
	Reviewer    string    `json:"reviewer"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Approved struct {
	Submission Submitted `json:"submission"`
	Approver   string    `json:"approver"`
	Comments   string    `json:"comments,omitempty"`
	ApprovedAt time.Time `json:"approved_at"`
}

type Rejected struct {
	Submission Submitted `json:"submission"`
	Rejector   string    `json:"rejector"`
	Reasons    []string  `json:"reasons"`
	RejectedAt time.Time `json:"rejected_at"`
}

func (Generated) State() ReviewState { return ReviewStateGenerated }
func (Submitted) State() ReviewState { return ReviewStateSubmitted }
func (Approved) State() ReviewState  { return ReviewStateApproved }
func (Rejected) State() ReviewState  { return ReviewStateRejected }

func (Generated) reviewStatus() {}
func (Submitted) reviewStatus() {}
func (Approved) reviewStatus()  {}
func (Rejected) reviewStatus()  {}

func (Generated) Submit(reviewID, reviewer string, at time.Time) Submitted {
	return Submitted{ReviewID: reviewID, Reviewer: reviewer, SubmittedAt: at}
}

func (s Submitted) Approve(approver, comments string, at time.Time) Approved {
	return Approved{Submission: s, Approver: approver, Comments: comments, ApprovedAt: at}
}

// Reject requires at least one non-empty reason.
func (s Submitted) Reject(rejector string, reasons []string, at time.Time) (Rejected, error) {
	kept := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r != "" {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return Rejected{}, NewValidationError("reasons", "at least one rejection reason is required")
	}
	return Rejected{Submission: s, Rejector: rejector, Reasons: kept, RejectedAt: at}, nil
}

// reviewRecord is the flat wire form of a ReviewStatus.
type reviewRecord struct {
	State       ReviewState `json:"state"`
	ReviewID    string      `json:"review_id,omitempty"`
	Reviewer    string      `json:"reviewer,omitempty"`
	SubmittedAt *time.Time  `json:"submitted_at,omitempty"`
	Approver    string      `json:"approver,omitempty"`
	Comments    string      `json:"comments,omitempty"`
	ApprovedAt  *time.Time  `json:"approved_at,omitempty"`
	Rejector    string      `json:"rejector,omitempty"`
	Reasons     []string    `json:"reasons,omitempty"`
	RejectedAt  *time.Time  `json:"rejected_at,omitempty"`
}

func encodeReview(s ReviewStatus) reviewRecord {
	switch v := s.(type) {
	case Submitted:
		return reviewRecord{State: ReviewStateSubmitted, ReviewID: v.ReviewID, Reviewer: v.Reviewer, SubmittedAt: &v.SubmittedAt}
	case Approved:
		return reviewRecord{
			State: ReviewStateApproved, ReviewID: v.Submission.ReviewID, Reviewer: v.Submission.Reviewer, SubmittedAt: &v.Submission.SubmittedAt,
			Approver: v.Approver, Comments: v.Comments, ApprovedAt: &v.ApprovedAt,
		}
	case Rejected:
		return reviewRecord{
			State: ReviewStateRejected, ReviewID: v.Submission.ReviewID, Reviewer: v.Submission.Reviewer, SubmittedAt: &v.Submission.SubmittedAt,
			Rejector: v.Rejector, Reasons: v.Reasons, RejectedAt: &v.RejectedAt,
		}
	}
	return reviewRecord{State: ReviewStateGenerated}
}

func decodeReview(r reviewRecord) (ReviewStatus, error) {
	deref := func(t *time.Time) time.Time {
		if t == nil {
			return time.Time{}
		}
		return *t
	}
	submitted := Submitted{ReviewID: r.ReviewID, Reviewer: r.Reviewer, SubmittedAt: deref(r.SubmittedAt)}

	switch r.State {
	case "", ReviewStateGenerated:
		return Generated{}, nil
	case ReviewStateSubmitted:
		return submitted, nil
	case ReviewStateApproved:
		return Approved{Submission: submitted, Approver: r.Approver, Comments: r.Comments, ApprovedAt: deref(r.ApprovedAt)}, nil
	case ReviewStateRejected:
		return Rejected{Submission: submitted, Rejector: r.Rejector, Reasons: r.Reasons, RejectedAt: deref(r.RejectedAt)}, nil
	}
	return nil, fmt.Errorf("unknown review state %q", r.State)
}
