package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"basegraph.app/assist/common/id"
	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/vectorstore"
)

// Index is the write-through search surface, satisfied by adapter.Search.
type Index interface {
	Search(ctx context.Context, query string, filter vectorstore.Filter, limit int) ([]vectorstore.Hit, error)
	Add(ctx context.Context, docs []vectorstore.Document) ([]string, error)
	Delete(ctx context.Context, ids []string, filter vectorstore.Filter) error
}

type Service struct {
	index Index
	newID func() string
}

func NewService(index Index) *Service {
	return &Service{
		index: index,
		newID: func() string { return strconv.FormatInt(id.New(), 10) },
	}
}

// Add stores items, assigning ids to those without one, and returns the stored ids in
// input order. Re-adding an id replaces the earlier item.
func (s *Service) Add(ctx context.Context, items []Item) ([]string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assist.knowledge"})
	if len(items) == 0 {
		return nil, model.NewValidationError("items", "must not be empty")
	}

	docs := make([]vectorstore.Document, len(items))
	for i, item := range items {
		item.Content = strings.TrimSpace(item.Content)
		if item.Content == "" {
			return nil, model.NewValidationError(fmt.Sprintf("items[%d].content", i), "must not be empty")
		}
		if item.SuccessRate < 0 || item.SuccessRate > 1 {
			return nil, model.NewValidationError(fmt.Sprintf("items[%d].success_rate", i), "must be within [0,1], got %v", item.SuccessRate)
		}
		if item.UsageCount < 0 {
			return nil, model.NewValidationError(fmt.Sprintf("items[%d].usage_count", i), "must not be negative")
		}
		if item.ID == "" {
			item.ID = s.newID()
		}
		if item.Title == "" {
			item.Title = titleFrom(item.Content)
		}
		docs[i] = item.Document()
	}

	ids, err := s.index.Add(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("adding knowledge items: %w", err)
	}
	slog.InfoContext(ctx, "knowledge items added", "count", len(ids))
	return ids, nil
}

// Search returns scripts matching query, limited to category when it is set.
func (s *Service) Search(ctx context.Context, query, category string, limit int) ([]model.CandidateScript, error) {
	var filter vectorstore.Filter
	if category != "" {
		filter = vectorstore.Filter{"category": category}
	}
	hits, err := s.index.Search(ctx, query, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge: %w", err)
	}
	out := make([]model.CandidateScript, len(hits))
	for i, h := range hits {
		out[i] = Candidate(h)
	}
	return out, nil
}

// Delete removes items by id, or every item in category when ids is empty.
func (s *Service) Delete(ctx context.Context, ids []string, category string) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assist.knowledge"})
	var filter vectorstore.Filter
	if len(ids) == 0 {
		if category == "" {
			return model.NewValidationError("ids", "ids or a category is required")
		}
		filter = vectorstore.Filter{"category": category}
	}
	if err := s.index.Delete(ctx, ids, filter); err != nil {
		return fmt.Errorf("deleting knowledge items: %w", err)
	}
	slog.InfoContext(ctx, "knowledge items deleted", "ids", len(ids), "category", category)
	return nil
}

func titleFrom(content string) string {
	line, _, _ := strings.Cut(content, "\n")
	r := []rune(strings.TrimSpace(line))
	if len(r) > 30 {
		r = r[:30]
	}
	return string(r)
}
