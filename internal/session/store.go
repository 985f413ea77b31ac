package session

import (
	"context"

	"basegraph.app/assist/internal/model"
)

// Store keeps the latest derived state per conversation session. Writes overwrite;
// sessions expire after a TTL that is refreshed on every write, or on End.
type Store interface {
	PutContext(ctx context.Context, sessionID string, c model.ConversationContext) error
	GetContext(ctx context.Context, sessionID string) (model.ConversationContext, bool, error)

	// PutIntent stores intent as the session's latest and returns it with its
	// assigned sequence number.
	PutIntent(ctx context.Context, sessionID string, intent model.UserIntent) (model.UserIntent, error)
	GetIntent(ctx context.Context, sessionID string) (model.UserIntent, bool, error)
	// IntentHistory returns retained intents in ascending sequence order.
	IntentHistory(ctx context.Context, sessionID string) ([]model.UserIntent, error)

	End(ctx context.Context, sessionID string) error
}

func validateID(sessionID string) error {
	if sessionID == "" {
		return model.NewValidationError("session_id", "must not be empty")
	}
	if len(sessionID) > 128 {
		return model.NewValidationError("session_id", "must be at most 128 characters")
	}
	return nil
}
