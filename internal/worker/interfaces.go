package worker

import (
	"context"

	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// JobProcessor turns one queued conversation into a stored report.
type JobProcessor interface {
	Process(ctx context.Context, job queue.InspectionJob) (*model.InspectionReport, error)
}
