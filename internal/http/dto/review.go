package dto

import (
	"time"

	"basegraph.app/assist/internal/model"
)

type SubmitReviewRequest struct {
	Reviewer string `json:"reviewer" binding:"required,max=255"`
}

type ApproveReviewRequest struct {
	Approver string `json:"approver" binding:"required,max=255"`
	Comments string `json:"comments,omitempty" binding:"max=4000"`
}

type RejectReviewRequest struct {
	Rejector string   `json:"rejector" binding:"required,max=255"`
	Reasons  []string `json:"reasons" binding:"required,min=1"`
}

// ReviewResponse flattens a report's review status for the review queue.
type ReviewResponse struct {
	ReportID     int64             `json:"report_id"`
	SessionID    string            `json:"session_id"`
	OverallScore float64           `json:"overall_score"`
	State        model.ReviewState `json:"state"`
	ReviewID     string            `json:"review_id,omitempty"`
	Reviewer     string            `json:"reviewer,omitempty"`
	SubmittedAt  *time.Time        `json:"submitted_at,omitempty"`
	DecidedBy    string            `json:"decided_by,omitempty"`
	DecidedAt    *time.Time        `json:"decided_at,omitempty"`
	Comments     string            `json:"comments,omitempty"`
	Reasons      []string          `json:"reasons,omitempty"`
}

func ToReviewResponse(r *model.InspectionReport) ReviewResponse {
	resp := ReviewResponse{
		ReportID:     r.ID,
		SessionID:    r.SessionID,
		OverallScore: r.OverallScore,
		State:        r.State(),
	}
	submitted := func(s model.Submitted) {
		resp.ReviewID = s.ReviewID
		resp.Reviewer = s.Reviewer
		resp.SubmittedAt = &s.SubmittedAt
	}
	switch s := r.Review.(type) {
	case model.Submitted:
		submitted(s)
	case model.Approved:
		submitted(s.Submission)
		resp.DecidedBy = s.Approver
		resp.DecidedAt = &s.ApprovedAt
		resp.Comments = s.Comments
	case model.Rejected:
		submitted(s.Submission)
		resp.DecidedBy = s.Rejector
		resp.DecidedAt = &s.RejectedAt
		resp.Reasons = s.Reasons
	}
	return resp
}

func ToReviewResponses(reports []*model.InspectionReport) []ReviewResponse {
	out := make([]ReviewResponse, len(reports))
	for i, r := range reports {
		out[i] = ToReviewResponse(r)
	}
	return out
}
