package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"basegraph.app/assist/internal/model"
)

// MemoryReports is a process-local ReportStore. Reports are stored as JSON so callers
// never share state with the store.
type MemoryReports struct {
	mu      sync.RWMutex
	reports map[int64][]byte
	states  map[int64]model.ReviewState
	seq     map[int64]int64
	next    int64
}

func NewMemoryReports() *MemoryReports {
	return &MemoryReports{
		reports: make(map[int64][]byte),
		states:  make(map[int64]model.ReviewState),
		seq:     make(map[int64]int64),
	}
}

func (m *MemoryReports) Create(_ context.Context, report *model.InspectionReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.ID] = doc
	m.states[report.ID] = report.State()
	m.touch(report.ID)
	return nil
}

func (m *MemoryReports) Get(_ context.Context, id int64) (*model.InspectionReport, error) {
	m.mu.RLock()
	doc, ok := m.reports[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(doc)
}

func (m *MemoryReports) UpdateReview(_ context.Context, report *model.InspectionReport, expected model.ReviewState) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.states[report.ID]
	if !ok {
		return ErrNotFound
	}
	if current != expected {
		return ErrStaleState
	}
	m.reports[report.ID] = doc
	m.states[report.ID] = report.State()
	m.touch(report.ID)
	return nil
}

func (m *MemoryReports) ListByState(_ context.Context, state model.ReviewState, limit int) ([]*model.InspectionReport, error) {
	if limit <= 0 {
		limit = 100
	}
	return m.list(func(id int64) bool { return m.states[id] == state }, limit)
}

func (m *MemoryReports) ListBySession(_ context.Context, sessionID string) ([]*model.InspectionReport, error) {
	all, err := m.list(func(int64) bool { return true }, 0)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// list returns matching reports in update order.
func (m *MemoryReports) list(match func(id int64) bool, limit int) ([]*model.InspectionReport, error) {
	m.mu.RLock()
	ids := make([]int64, 0, len(m.reports))
	for id := range m.reports {
		if match(id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(a, b int) bool { return m.seq[ids[a]] < m.seq[ids[b]] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	docs := make([][]byte, len(ids))
	for i, id := range ids {
		docs[i] = m.reports[id]
	}
	m.mu.RUnlock()

	out := make([]*model.InspectionReport, 0, len(docs))
	for _, doc := range docs {
		r, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryReports) touch(id int64) {
	m.next++
	m.seq[id] = m.next
}

func decode(doc []byte) (*model.InspectionReport, error) {
	var r model.InspectionReport
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
