package worker

import (
	"context"
	"fmt"
	"log/slog"

	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/internal/inspector"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/queue"
	"basegraph.app/assist/internal/store"
)

// Inspector scores a parsed conversation; satisfied by inspector.Inspector.
type Inspector interface {
	Inspect(ctx context.Context, conv *model.ParsedConversation) (*model.InspectionReport, error)
}

type Processor struct {
	inspector Inspector
	reports   store.ReportStore
}

func NewProcessor(ins Inspector, reports store.ReportStore) *Processor {
	return &Processor{inspector: ins, reports: reports}
}

func (p *Processor) Process(ctx context.Context, job queue.InspectionJob) (*model.InspectionReport, error) {
	conv, err := inspector.Parse(job.Content)
	if err != nil {
		return nil, err
	}
	if job.SessionID != "" {
		conv.SessionID = job.SessionID
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{SessionID: logger.Ptr(conv.SessionID)})

	report, err := p.inspector.Inspect(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("inspecting: %w", err)
	}
	if err := p.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}

	slog.InfoContext(ctx, "batch inspection stored",
		"report_id", report.ID,
		"overall_score", report.OverallScore,
		"unavailable", report.Unavailable)
	return report, nil
}
