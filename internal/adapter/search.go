package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/vectorstore"
)

const ServiceSearch = "search"

type SearchConfig struct {
	MaxQueryLength int
	DefaultLimit   int
	MaxLimit       int
	TTL            time.Duration
}

// Search is the resilient wrapper around the similarity store.
type Search struct {
	*caller
	store vectorstore.Store
	cfg   SearchConfig
}

func NewSearch(store vectorstore.Store, cfg SearchConfig, opts Options) *Search {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 2000
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 5
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 20
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &Search{
		caller: newCaller(ServiceSearch, opts, vectorstore.IsRetryable),
		store:  store,
		cfg:    cfg,
	}
}

// MaxLimit is the largest limit Search accepts.
func (s *Search) MaxLimit() int {
	return s.cfg.MaxLimit
}

// Search returns up to limit hits for query, ordered by descending score. A limit of
// zero selects the default.
func (s *Search) Search(ctx context.Context, query string, filter vectorstore.Filter, limit int) ([]vectorstore.Hit, error) {
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}
	n := utf8.RuneCountInString(query)
	switch {
	case n == 0:
		return nil, model.NewValidationError("query", "must not be empty")
	case n > s.cfg.MaxQueryLength:
		return nil, model.NewValidationError("query", "length %d exceeds limit %d", n, s.cfg.MaxQueryLength)
	case limit < 1 || limit > s.cfg.MaxLimit:
		return nil, model.NewValidationError("limit", "must be within [1,%d], got %d", s.cfg.MaxLimit, limit)
	}

	params := make(map[string]any, len(filter)+1)
	params["limit"] = limit
	for k, v := range filter {
		params["filter."+k] = v
	}
	key, err := Key(s.opts.KeyPrefix, "search", query, params)
	if err != nil {
		return nil, model.NewValidationError("filter", "%v", err)
	}

	raw, err := s.cached(ctx, "search", key, s.cfg.TTL, func(ctx context.Context) ([]byte, error) {
		results, err := s.store.Search(ctx, []string{query}, limit, filter)
		if err != nil {
			return nil, err
		}
		var hits []vectorstore.Hit
		if len(results) > 0 {
			hits = results[0]
		}
		return json.Marshal(hits)
	})
	if err != nil {
		return nil, err
	}

	var hits []vectorstore.Hit
	if err := json.Unmarshal(raw, &hits); err != nil {
		return nil, fmt.Errorf("decoding cached search result: %w", err)
	}
	return hits, nil
}

// Add writes documents through to the store with retries. Cached searches are not
// invalidated; the search TTL bounds staleness.
func (s *Search) Add(ctx context.Context, docs []vectorstore.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, model.NewValidationError("documents", "must not be empty")
	}
	for i, d := range docs {
		if d.ID == "" {
			return nil, model.NewValidationError(fmt.Sprintf("documents[%d].id", i), "must not be empty")
		}
		if d.Content == "" {
			return nil, model.NewValidationError(fmt.Sprintf("documents[%d].content", i), "must not be empty")
		}
	}

	var ids []string
	err := s.direct(ctx, "add", func(ctx context.Context) error {
		out, err := s.store.Add(ctx, docs)
		if err != nil {
			return err
		}
		ids = out
		return nil
	})
	return ids, err
}

func (s *Search) Delete(ctx context.Context, ids []string, filter vectorstore.Filter) error {
	if len(ids) == 0 && len(filter) == 0 {
		return model.NewValidationError("ids", "ids or a filter is required")
	}
	return s.direct(ctx, "delete", func(ctx context.Context) error {
		return s.store.Delete(ctx, ids, filter)
	})
}
