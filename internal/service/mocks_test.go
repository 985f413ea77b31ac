package service_test

import (
	"context"
	"io"
	"sync"

	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/queue"
)

type mockInspector struct {
	inspectFn func(ctx context.Context, conv *model.ParsedConversation) (*model.InspectionReport, error)
}

func (m *mockInspector) Inspect(ctx context.Context, conv *model.ParsedConversation) (*model.InspectionReport, error) {
	if m.inspectFn != nil {
		return m.inspectFn(ctx, conv)
	}
	return &model.InspectionReport{ID: 1, SessionID: conv.SessionID, TurnCount: len(conv.Turns), Review: model.Generated{}}, nil
}

type mockTranscriber struct {
	transcribeFn func(ctx context.Context, audio io.Reader, filename string) (*llm.Transcription, error)
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (*llm.Transcription, error) {
	return m.transcribeFn(ctx, audio, filename)
}

type mockProducer struct {
	mu      sync.Mutex
	jobs    []queue.InspectionJob
	failAt  int
	failErr error
}

func (m *mockProducer) Enqueue(_ context.Context, job queue.InspectionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil && len(m.jobs) == m.failAt {
		return m.failErr
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockProducer) Close() error { return nil }
