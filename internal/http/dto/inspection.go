package dto

import (
	"basegraph.app/assist/internal/service"
)

type ParseRequest struct {
	Content string `json:"content" binding:"required"`
}

type InspectRequest struct {
	Content   string `json:"content" binding:"required"`
	SessionID string `json:"session_id,omitempty" binding:"omitempty,max=128"`
}

type BatchRequest struct {
	Items []service.BatchItem `json:"items" binding:"required,min=1"`
}

type BatchResponse struct {
	JobIDs []string `json:"job_ids"`
}

type SummaryRequest struct {
	ReportIDs []int64 `json:"report_ids,omitempty"`
	SessionID string  `json:"session_id,omitempty"`
}
