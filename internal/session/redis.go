package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/assist/internal/model"
)

const maxTxRetries = 8

// RedisStore shares session state across replicas. Each session uses three keys:
// <prefix>session:<id>:context, :intents (newest first) and :seq. Intent writes are
// serialized per session with WATCH on the sequence key.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	history int
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, historyLimit int) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, history: historyLimit}
}

func (s *RedisStore) key(id, part string) string {
	return s.prefix + "session:" + id + ":" + part
}

func (s *RedisStore) keys(id string) []string {
	return []string{s.key(id, "context"), s.key(id, "intents"), s.key(id, "seq")}
}

func (s *RedisStore) PutContext(ctx context.Context, sessionID string, c model.ConversationContext) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sessionID, "context"), raw, s.ttl)
		s.refresh(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing context for %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) GetContext(ctx context.Context, sessionID string) (model.ConversationContext, bool, error) {
	if err := validateID(sessionID); err != nil {
		return model.ConversationContext{}, false, err
	}
	raw, err := s.client.Get(ctx, s.key(sessionID, "context")).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ConversationContext{}, false, nil
	}
	if err != nil {
		return model.ConversationContext{}, false, fmt.Errorf("loading context for %s: %w", sessionID, err)
	}

	var c model.ConversationContext
	if err := json.Unmarshal(raw, &c); err != nil {
		return model.ConversationContext{}, false, fmt.Errorf("decoding context for %s: %w", sessionID, err)
	}
	return c, true, nil
}

func (s *RedisStore) PutIntent(ctx context.Context, sessionID string, intent model.UserIntent) (model.UserIntent, error) {
	if err := validateID(sessionID); err != nil {
		return model.UserIntent{}, err
	}
	seqKey := s.key(sessionID, "seq")
	listKey := s.key(sessionID, "intents")

	txf := func(tx *redis.Tx) error {
		seq, err := tx.Get(ctx, seqKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		intent.Sequence = seq + 1

		raw, err := json.Marshal(intent)
		if err != nil {
			return fmt.Errorf("encoding intent: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, seqKey, intent.Sequence, s.ttl)
			pipe.LPush(ctx, listKey, raw)
			pipe.LTrim(ctx, listKey, 0, int64(s.history-1))
			s.refresh(ctx, pipe, sessionID)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, seqKey)
		if err == nil {
			return intent, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return model.UserIntent{}, fmt.Errorf("storing intent for %s: %w", sessionID, err)
	}
	return model.UserIntent{}, fmt.Errorf("storing intent for %s: too much contention", sessionID)
}

func (s *RedisStore) GetIntent(ctx context.Context, sessionID string) (model.UserIntent, bool, error) {
	if err := validateID(sessionID); err != nil {
		return model.UserIntent{}, false, err
	}
	raw, err := s.client.LIndex(ctx, s.key(sessionID, "intents"), 0).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.UserIntent{}, false, nil
	}
	if err != nil {
		return model.UserIntent{}, false, fmt.Errorf("loading intent for %s: %w", sessionID, err)
	}

	var intent model.UserIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return model.UserIntent{}, false, fmt.Errorf("decoding intent for %s: %w", sessionID, err)
	}
	return intent, true, nil
}

func (s *RedisStore) IntentHistory(ctx context.Context, sessionID string) ([]model.UserIntent, error) {
	if err := validateID(sessionID); err != nil {
		return nil, err
	}
	raws, err := s.client.LRange(ctx, s.key(sessionID, "intents"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("loading intent history for %s: %w", sessionID, err)
	}

	out := make([]model.UserIntent, len(raws))
	for i, raw := range raws {
		// The list is newest first; history is returned oldest first.
		if err := json.Unmarshal([]byte(raw), &out[len(raws)-1-i]); err != nil {
			return nil, fmt.Errorf("decoding intent history for %s: %w", sessionID, err)
		}
	}
	return out, nil
}

func (s *RedisStore) End(ctx context.Context, sessionID string) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.keys(sessionID)...).Err(); err != nil {
		return fmt.Errorf("ending session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) refresh(ctx context.Context, pipe redis.Pipeliner, sessionID string) {
	for _, k := range s.keys(sessionID) {
		pipe.Expire(ctx, k, s.ttl)
	}
}
