package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/queue"
)

type Config struct {
	MaxAttempts int
	// ErrorBackoff is the pause after a failed read.
	ErrorBackoff time.Duration
}

type Worker struct {
	consumer  Consumer
	processor JobProcessor
	cfg       Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, processor JobProcessor, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{
		consumer:  consumer,
		processor: processor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assist.worker"})

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-time.After(w.cfg.ErrorBackoff):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		// Failures are already routed to requeue or the DLQ.
		_ = w.Handle(ctx, msg)
	}
	return nil
}

// Handle processes msg and acks it on success. A failed job is requeued, or sent to
// the DLQ when the failure is permanent or its attempts are used up. Exported so the
// reclaimer shares the same failure routing.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	msgID := msg.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: &msgID})

	var traceID string
	if msg.TraceID != nil {
		traceID = *msg.TraceID
	}
	span := logger.StartSpanFromTraceID(ctx, traceID, "worker.inspect")
	defer span.End()
	ctx = span.Context()

	if err := w.processSafe(ctx, msg); err != nil {
		span.Fail(err)
		slog.ErrorContext(ctx, "inspection job failed",
			"error", err,
			"job_id", msg.JobID,
			"attempt", msg.Attempt)
		w.handleFailedMessage(ctx, msg, err)
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The reclaimer will redeliver; a duplicate report is the worst case.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}
	return nil
}

func (w *Worker) processSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in job processing", "panic", r, "job_id", msg.JobID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	slog.InfoContext(ctx, "processing inspection job",
		"job_id", msg.JobID,
		"source", msg.Source,
		"attempt", msg.Attempt)

	_, err = w.processor.Process(ctx, msg.InspectionJob)
	return err
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if permanent(err) || msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "sending job to DLQ",
			"job_id", msg.JobID,
			"attempts", msg.Attempt,
			"permanent", permanent(err))
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed job",
		"job_id", msg.JobID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}

// permanent reports failures that retrying the same input cannot fix. Scoring
// failures are always retried: a malformed model reply may not repeat.
func permanent(err error) bool {
	var inspectErr *model.InspectionError
	if errors.As(err, &inspectErr) {
		return false
	}
	var parseErr *model.ParsingError
	return errors.As(err, &parseErr) || model.IsValidation(err)
}
