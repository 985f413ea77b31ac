package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/internal/inspector"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/queue"
	"basegraph.app/assist/internal/store"
)

const (
	// MaxConversationBytes bounds one conversation submitted for inspection.
	MaxConversationBytes = 1 << 20
	// MaxBatchSize bounds the number of conversations in one batch request.
	MaxBatchSize = 500
)

// ErrBatchUnavailable is returned when batch inspection is requested without a job
// queue configured.
var ErrBatchUnavailable = errors.New("batch inspection requires REDIS_URL")

type BatchItem struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id,omitempty"`
	Source    string `json:"source,omitempty"`
}

type AudioInspection struct {
	Transcription *llm.Transcription      `json:"transcription"`
	Report        *model.InspectionReport `json:"report"`
}

type InspectionService interface {
	Parse(raw string) (*model.ParsedConversation, error)
	// Inspect parses raw, scores it and stores the report. A non-empty sessionID
	// replaces the derived one.
	Inspect(ctx context.Context, raw, sessionID string) (*model.InspectionReport, error)
	InspectConversation(ctx context.Context, conv *model.ParsedConversation) (*model.InspectionReport, error)
	Transcribe(ctx context.Context, audio io.Reader, filename string) (*llm.Transcription, error)
	// InspectAudio transcribes a labelled recording and inspects the transcript.
	InspectAudio(ctx context.Context, audio io.Reader, filename, sessionID string) (*AudioInspection, error)
	EnqueueBatch(ctx context.Context, items []BatchItem) ([]string, error)
	Report(ctx context.Context, id int64) (*model.InspectionReport, error)
	// Summarize aggregates the given reports, or every report of sessionID when ids
	// is empty.
	Summarize(ctx context.Context, ids []int64, sessionID string) (inspector.Summary, error)
}

// Transcriber converts audio to text; satisfied by adapter.Speech.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (*llm.Transcription, error)
}

type Inspector interface {
	Inspect(ctx context.Context, conv *model.ParsedConversation) (*model.InspectionReport, error)
}

type inspectionService struct {
	inspector Inspector
	speech    Transcriber
	reports   store.ReportStore
	producer  queue.Producer
}

// NewInspectionService builds the inspection service. producer may be nil, in which
// case EnqueueBatch returns ErrBatchUnavailable.
func NewInspectionService(ins Inspector, speech Transcriber, reports store.ReportStore, producer queue.Producer) InspectionService {
	return &inspectionService{inspector: ins, speech: speech, reports: reports, producer: producer}
}

func (s *inspectionService) Parse(raw string) (*model.ParsedConversation, error) {
	if len(raw) > MaxConversationBytes {
		return nil, model.NewValidationError("content", "exceeds %d bytes", MaxConversationBytes)
	}
	return inspector.Parse(raw)
}

func (s *inspectionService) Inspect(ctx context.Context, raw, sessionID string) (*model.InspectionReport, error) {
	conv, err := s.Parse(raw)
	if err != nil {
		return nil, err
	}
	if sessionID != "" {
		conv.SessionID = sessionID
	}
	return s.InspectConversation(ctx, conv)
}

func (s *inspectionService) InspectConversation(ctx context.Context, conv *model.ParsedConversation) (*model.InspectionReport, error) {
	report, err := s.inspector.Inspect(ctx, conv)
	if err != nil {
		return nil, err
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{ReportID: logger.Ptr(report.ID), SessionID: logger.Ptr(report.SessionID)})
	slog.InfoContext(ctx, "inspection report stored",
		"overall_score", report.OverallScore,
		"issues", len(report.Issues),
		"unavailable", report.Unavailable)
	return report, nil
}

func (s *inspectionService) Transcribe(ctx context.Context, audio io.Reader, filename string) (*llm.Transcription, error) {
	return s.speech.Transcribe(ctx, audio, filename)
}

func (s *inspectionService) InspectAudio(ctx context.Context, audio io.Reader, filename, sessionID string) (*AudioInspection, error) {
	tr, err := s.speech.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, err
	}
	report, err := s.Inspect(ctx, tr.Text, sessionID)
	if err != nil {
		return &AudioInspection{Transcription: tr}, err
	}
	return &AudioInspection{Transcription: tr, Report: report}, nil
}

func (s *inspectionService) EnqueueBatch(ctx context.Context, items []BatchItem) ([]string, error) {
	if s.producer == nil {
		return nil, ErrBatchUnavailable
	}
	switch {
	case len(items) == 0:
		return nil, model.NewValidationError("items", "must not be empty")
	case len(items) > MaxBatchSize:
		return nil, model.NewValidationError("items", "at most %d conversations per batch, got %d", MaxBatchSize, len(items))
	}
	for i, item := range items {
		if strings.TrimSpace(item.Content) == "" {
			return nil, model.NewValidationError(fmt.Sprintf("items[%d].content", i), "must not be empty")
		}
		if len(item.Content) > MaxConversationBytes {
			return nil, model.NewValidationError(fmt.Sprintf("items[%d].content", i), "exceeds %d bytes", MaxConversationBytes)
		}
		if !utf8.ValidString(item.Content) {
			return nil, model.NewValidationError(fmt.Sprintf("items[%d].content", i), "must be valid UTF-8")
		}
	}

	var traceID *string
	if t := logger.TraceID(ctx); t != "" {
		traceID = &t
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		job := queue.InspectionJob{
			JobID:     uuid.NewString(),
			Content:   item.Content,
			SessionID: item.SessionID,
			Source:    item.Source,
			TraceID:   traceID,
		}
		if err := s.producer.Enqueue(ctx, job); err != nil {
			return ids, fmt.Errorf("enqueuing batch after %d of %d: %w", len(ids), len(items), err)
		}
		ids = append(ids, job.JobID)
	}
	return ids, nil
}

func (s *inspectionService) Report(ctx context.Context, id int64) (*model.InspectionReport, error) {
	return s.reports.Get(ctx, id)
}

func (s *inspectionService) Summarize(ctx context.Context, ids []int64, sessionID string) (inspector.Summary, error) {
	if len(ids) == 0 {
		if sessionID == "" {
			return inspector.Summary{}, model.NewValidationError("report_ids", "report ids or a session id is required")
		}
		reports, err := s.reports.ListBySession(ctx, sessionID)
		if err != nil {
			return inspector.Summary{}, err
		}
		return inspector.Summarize(reports), nil
	}

	reports := make([]*model.InspectionReport, 0, len(ids))
	for _, id := range ids {
		r, err := s.reports.Get(ctx, id)
		if err != nil {
			return inspector.Summary{}, fmt.Errorf("report %d: %w", id, err)
		}
		reports = append(reports, r)
	}
	return inspector.Summarize(reports), nil
}
