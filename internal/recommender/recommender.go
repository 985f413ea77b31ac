package recommender

import (
	"context"
	"time"

	"basegraph.app/assist/core/config"
	"basegraph.app/assist/internal/adapter"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/session"
	"basegraph.app/assist/internal/vectorstore"
)

// Generator is the slice of the generation adapter the recommender calls.
type Generator interface {
	Generate(ctx context.Context, prompt string, params adapter.GenerateParams) (string, error)
	Defaults() adapter.GenerateParams
	RetryCycle() time.Duration
}

// Searcher is the slice of the search adapter the recommender calls.
type Searcher interface {
	Search(ctx context.Context, query string, filter vectorstore.Filter, limit int) ([]vectorstore.Hit, error)
	MaxLimit() int
}

// PolicySource supplies the current ranking weights.
type PolicySource interface {
	Current() config.Policy
}

type Config struct {
	// Deadline bounds one Recommend call end to end.
	Deadline time.Duration
	// StageReserve is the least budget left for which the next pipeline stage still
	// starts; below it the response degrades.
	StageReserve time.Duration
	// FallbackReserve is the part of Deadline held back for the literal search of a
	// degraded response.
	FallbackReserve time.Duration
	RecentTurns     int
	// DefaultCount is used when a request does not ask for a count.
	DefaultCount int
	// PersonalizeTop is how many of the top-ranked scripts get a model-adapted variant.
	PersonalizeTop int
	Temperature    float64
	MaxTokens      int
	TopP           float64
}

func (c Config) withDefaults() Config {
	if c.Deadline <= 0 {
		c.Deadline = 20 * time.Second
	}
	if c.StageReserve <= 0 {
		c.StageReserve = 2 * time.Second
	}
	if c.FallbackReserve <= 0 || c.FallbackReserve >= c.Deadline {
		c.FallbackReserve = min(3*time.Second, c.Deadline/4)
	}
	if c.RecentTurns <= 0 {
		c.RecentTurns = 10
	}
	if c.DefaultCount <= 0 {
		c.DefaultCount = 3
	}
	if c.PersonalizeTop <= 0 {
		c.PersonalizeTop = 1
	}
	return c
}

// Recommender runs the script recommendation pipeline and its individual stages.
type Recommender struct {
	gen    Generator
	search Searcher
	store  session.Store
	policy PolicySource
	cfg    Config
	now    func() time.Time
}

func New(gen Generator, search Searcher, store session.Store, policy PolicySource, cfg Config) *Recommender {
	return &Recommender{
		gen:    gen,
		search: search,
		store:  store,
		policy: policy,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

// params returns generation parameters for a structured call.
func (r *Recommender) params(system, schemaName string, schema any) adapter.GenerateParams {
	p := r.gen.Defaults()
	if r.cfg.Temperature > 0 {
		p.Temperature = r.cfg.Temperature
	}
	if r.cfg.MaxTokens > 0 {
		p.MaxOutputLength = r.cfg.MaxTokens
	}
	if r.cfg.TopP > 0 {
		p.TopP = r.cfg.TopP
	}
	p.System = system
	p.SchemaName = schemaName
	p.Schema = schema
	return p
}

// Session returns the stored view of a session.
func (r *Recommender) Session(ctx context.Context, sessionID string) (*SessionState, error) {
	state := &SessionState{SessionID: sessionID}

	c, ok, err := r.store.GetContext(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ok {
		state.Context = &c
	}
	history, err := r.store.IntentHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state.Intents = history
	return state, nil
}

func (r *Recommender) EndSession(ctx context.Context, sessionID string) error {
	return r.store.End(ctx, sessionID)
}

type SessionState struct {
	SessionID string                     `json:"session_id"`
	Context   *model.ConversationContext `json:"context,omitempty"`
	Intents   []model.UserIntent         `json:"intents"`
}
