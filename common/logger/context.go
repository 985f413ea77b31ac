package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Handlers and pipelines enrich the context once and every downstream log line carries
// the session, report and request identifiers without passing them around.
type LogFields struct {
	SessionID *string // Conversation session identifier
	ReportID  *int64  // Inspection report ID
	RequestID *string // HTTP request ID (X-Request-Id)
	MessageID *string // Redis stream message ID
	Service   *string // External service an adapter is calling ("generation", "search")
	Component string  // Component name, e.g. "assist.recommender.orchestrator"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.SessionID != nil {
		result.SessionID = new.SessionID
	}
	if new.ReportID != nil {
		result.ReportID = new.ReportID
	}
	if new.RequestID != nil {
		result.RequestID = new.RequestID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.Service != nil {
		result.Service = new.Service
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{SessionID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
// The cut is moved back to a rune boundary so multi-byte text stays valid.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
