package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"basegraph.app/assist/internal/model"
)

type entry struct {
	mu        sync.Mutex
	evicted   bool
	context   *model.ConversationContext
	intents   []model.UserIntent
	seq       int64
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Each session has its own mutex so writers to
// one session never block writers to another.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	history  int
	now      func() time.Time

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewMemoryStore(ttl time.Duration, historyLimit int) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &MemoryStore{
		sessions:  make(map[string]*entry),
		ttl:       ttl,
		history:   historyLimit,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// WithClock replaces the time source. Used by tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// lockWrite returns the live entry for id, locked, creating it if needed. An entry
// evicted while we waited for its lock is replaced; an expired one starts over.
func (s *MemoryStore) lockWrite(id string) *entry {
	for {
		s.mu.Lock()
		e, ok := s.sessions[id]
		if !ok {
			e = &entry{}
			s.sessions[id] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}
		if s.expired(e) {
			e.context, e.intents, e.seq = nil, nil, 0
		}
		return e
	}
}

// lockRead returns the live entry for id, locked, or nil.
func (s *MemoryStore) lockRead(id string) *entry {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	if e.evicted || s.expired(e) {
		e.mu.Unlock()
		return nil
	}
	return e
}

func (s *MemoryStore) expired(e *entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

func (s *MemoryStore) PutContext(_ context.Context, sessionID string, c model.ConversationContext) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	e := s.lockWrite(sessionID)
	defer e.mu.Unlock()

	c.KeyPoints = append([]string(nil), c.KeyPoints...)
	e.context = &c
	e.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) GetContext(_ context.Context, sessionID string) (model.ConversationContext, bool, error) {
	if err := validateID(sessionID); err != nil {
		return model.ConversationContext{}, false, err
	}
	e := s.lockRead(sessionID)
	if e == nil {
		return model.ConversationContext{}, false, nil
	}
	defer e.mu.Unlock()

	if e.context == nil {
		return model.ConversationContext{}, false, nil
	}
	out := *e.context
	out.KeyPoints = append([]string(nil), e.context.KeyPoints...)
	return out, true, nil
}

func (s *MemoryStore) PutIntent(_ context.Context, sessionID string, intent model.UserIntent) (model.UserIntent, error) {
	if err := validateID(sessionID); err != nil {
		return model.UserIntent{}, err
	}
	e := s.lockWrite(sessionID)
	defer e.mu.Unlock()

	e.seq++
	intent.Sequence = e.seq
	intent.RequiredInfo = append([]string(nil), intent.RequiredInfo...)
	intent.SuggestedActions = append([]string(nil), intent.SuggestedActions...)

	e.intents = append(e.intents, intent)
	if len(e.intents) > s.history {
		e.intents = append([]model.UserIntent(nil), e.intents[len(e.intents)-s.history:]...)
	}
	e.expiresAt = s.now().Add(s.ttl)
	return intent, nil
}

func (s *MemoryStore) GetIntent(_ context.Context, sessionID string) (model.UserIntent, bool, error) {
	if err := validateID(sessionID); err != nil {
		return model.UserIntent{}, false, err
	}
	e := s.lockRead(sessionID)
	if e == nil {
		return model.UserIntent{}, false, nil
	}
	defer e.mu.Unlock()

	if len(e.intents) == 0 {
		return model.UserIntent{}, false, nil
	}
	return e.intents[len(e.intents)-1], true, nil
}

func (s *MemoryStore) IntentHistory(_ context.Context, sessionID string) ([]model.UserIntent, error) {
	if err := validateID(sessionID); err != nil {
		return nil, err
	}
	e := s.lockRead(sessionID)
	if e == nil {
		return nil, nil
	}
	defer e.mu.Unlock()
	return append([]model.UserIntent(nil), e.intents...), nil
}

func (s *MemoryStore) End(_ context.Context, sessionID string) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.evicted = true
		e.mu.Unlock()
	}
	return nil
}

// Sweep evicts expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	var stale []*entry
	for id, e := range s.sessions {
		e.mu.Lock()
		if s.expired(e) {
			e.evicted = true
			stale = append(stale, e)
			delete(s.sessions, id)
		}
		e.mu.Unlock()
	}
	s.mu.Unlock()
	return len(stale)
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps on every interval until Stop is called or ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	defer close(s.stoppedCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.DebugContext(ctx, "evicted expired sessions", "count", n)
			}
		}
	}
}

func (s *MemoryStore) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}
