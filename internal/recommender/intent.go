package recommender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/internal/model"
)

// RecognizeIntent classifies utterance and stores the result as the session's latest
// intent. When c is nil the stored context, if any, is used.
func (r *Recommender) RecognizeIntent(ctx context.Context, sessionID, utterance string, c *model.ConversationContext) (model.UserIntent, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{SessionID: logger.Ptr(sessionID), Component: "assist.recommender.intent"})
	if strings.TrimSpace(utterance) == "" {
		return model.UserIntent{}, model.NewValidationError("utterance", "must not be empty")
	}
	if c == nil {
		stored, ok, err := r.store.GetContext(ctx, sessionID)
		if err != nil {
			return model.UserIntent{}, fmt.Errorf("loading context: %w", err)
		}
		if ok {
			c = &stored
		}
	}

	out, err := r.gen.Generate(ctx, buildIntentPrompt(utterance, c), r.params(intentSystemPrompt, "user_intent", intentSchema))
	if err != nil {
		return model.UserIntent{}, fmt.Errorf("recognizing intent: %w", err)
	}

	var resp intentResponse
	if err := llm.DecodeStrict(out, &resp); err != nil {
		return model.UserIntent{}, model.NewValidationError("intent_response", "%v", err)
	}
	confidence, err := required("confidence", resp.Confidence)
	if err != nil {
		return model.UserIntent{}, err
	}
	intent := model.UserIntent{
		IntentType:       model.IntentType(resp.IntentType),
		SubIntent:        resp.SubIntent,
		Confidence:       confidence,
		RequiredInfo:     orEmptyList(resp.RequiredInfo),
		SuggestedActions: orEmptyList(resp.SuggestedActions),
		RecognizedAt:     r.now(),
	}
	if !intent.IntentType.Valid() {
		return model.UserIntent{}, model.NewValidationError("intent_type", "unknown intent %q", resp.IntentType)
	}
	if intent.Confidence < 0 || intent.Confidence > 1 {
		return model.UserIntent{}, model.NewValidationError("confidence", "must be within [0,1], got %v", intent.Confidence)
	}

	intent, err = r.store.PutIntent(ctx, sessionID, intent)
	if err != nil {
		return model.UserIntent{}, fmt.Errorf("storing intent: %w", err)
	}

	slog.InfoContext(ctx, "intent recognized",
		"intent_type", intent.IntentType,
		"sub_intent", intent.SubIntent,
		"confidence", intent.Confidence,
		"sequence", intent.Sequence)
	return intent, nil
}

type NextIntentPrediction struct {
	IntentType model.IntentType `json:"intent_type"`
	Confidence float64          `json:"confidence"`
	Reason     string           `json:"reason"`
}

// PredictNextIntent guesses the customer's next intent from the session's intent history.
func (r *Recommender) PredictNextIntent(ctx context.Context, sessionID string) (NextIntentPrediction, error) {
	history, err := r.store.IntentHistory(ctx, sessionID)
	if err != nil {
		return NextIntentPrediction{}, err
	}
	if len(history) == 0 {
		return NextIntentPrediction{}, model.NewValidationError("session_id", "no intents recognized for session %s", sessionID)
	}
	var c *model.ConversationContext
	if stored, ok, err := r.store.GetContext(ctx, sessionID); err != nil {
		return NextIntentPrediction{}, err
	} else if ok {
		c = &stored
	}

	out, err := r.gen.Generate(ctx, buildNextIntentPrompt(history, c), r.params(nextIntentSystemPrompt, "next_intent", nextIntentSchema))
	if err != nil {
		return NextIntentPrediction{}, fmt.Errorf("predicting next intent: %w", err)
	}

	var resp nextIntentResponse
	if err := llm.DecodeStrict(out, &resp); err != nil {
		return NextIntentPrediction{}, model.NewValidationError("next_intent_response", "%v", err)
	}
	confidence, err := required("confidence", resp.Confidence)
	if err != nil {
		return NextIntentPrediction{}, err
	}
	p := NextIntentPrediction{IntentType: model.IntentType(resp.IntentType), Confidence: model.Clamp01(confidence), Reason: resp.Reason}
	if !p.IntentType.Valid() {
		return NextIntentPrediction{}, model.NewValidationError("intent_type", "unknown intent %q", resp.IntentType)
	}
	return p, nil
}

func orEmptyList(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
