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

// AnalyzeContext derives the conversation context from the recent turns and stores it
// as the session's latest.
func (r *Recommender) AnalyzeContext(ctx context.Context, sessionID string, turns []model.ConversationTurn) (model.ConversationContext, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{SessionID: logger.Ptr(sessionID), Component: "assist.recommender.context"})
	if len(turns) == 0 {
		return model.ConversationContext{}, model.NewValidationError("turns", "must not be empty")
	}

	out, err := r.gen.Generate(ctx, buildContextPrompt(model.RecentTurns(turns, r.cfg.RecentTurns)),
		r.params(contextSystemPrompt, "conversation_context", contextSchema))
	if err != nil {
		return model.ConversationContext{}, fmt.Errorf("analyzing context: %w", err)
	}

	var resp contextResponse
	if err := llm.DecodeStrict(out, &resp); err != nil {
		return model.ConversationContext{}, model.NewValidationError("context_response", "%v", err)
	}
	c, err := toContext(resp)
	if err != nil {
		return model.ConversationContext{}, err
	}
	c.AnalyzedAt = r.now()

	if err := r.store.PutContext(ctx, sessionID, c); err != nil {
		return model.ConversationContext{}, fmt.Errorf("storing context: %w", err)
	}

	slog.InfoContext(ctx, "context analyzed", "topic", c.Topic, "stage", c.Stage, "complexity", c.Complexity)
	return c, nil
}

func toContext(resp contextResponse) (model.ConversationContext, error) {
	satisfaction, err := required("satisfaction", resp.Satisfaction)
	if err != nil {
		return model.ConversationContext{}, err
	}
	c := model.ConversationContext{
		Topic:        strings.TrimSpace(resp.Topic),
		Stage:        model.Stage(resp.Stage),
		Complexity:   model.Complexity(resp.Complexity),
		Satisfaction: satisfaction,
		KeyPoints:    resp.KeyPoints,
		Emotion:      model.Emotion(resp.Emotion),
	}
	switch {
	case !c.Stage.Valid():
		return c, model.NewValidationError("stage", "unknown stage %q", resp.Stage)
	case !c.Complexity.Valid():
		return c, model.NewValidationError("complexity", "unknown complexity %q", resp.Complexity)
	case c.Satisfaction < 0 || c.Satisfaction > 1:
		return c, model.NewValidationError("satisfaction", "must be within [0,1], got %v", c.Satisfaction)
	case c.Emotion != "" && !validEmotion(c.Emotion):
		return c, model.NewValidationError("emotion", "unknown emotion %q", resp.Emotion)
	}
	if c.KeyPoints == nil {
		c.KeyPoints = []string{}
	}
	return c, nil
}

type EmotionAnalysis struct {
	Emotion    model.Emotion `json:"emotion"`
	Confidence float64       `json:"confidence"`
	Intensity  float64       `json:"intensity"`
	Traits     []string      `json:"traits"`
}

// ExtractEmotion labels the emotion of a single utterance.
func (r *Recommender) ExtractEmotion(ctx context.Context, text string) (EmotionAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return EmotionAnalysis{}, model.NewValidationError("text", "must not be empty")
	}

	out, err := r.gen.Generate(ctx, "Message: "+text, r.params(emotionSystemPrompt, "emotion_analysis", emotionSchema))
	if err != nil {
		return EmotionAnalysis{}, fmt.Errorf("extracting emotion: %w", err)
	}

	var resp emotionResponse
	if err := llm.DecodeStrict(out, &resp); err != nil {
		return EmotionAnalysis{}, model.NewValidationError("emotion_response", "%v", err)
	}
	e := model.Emotion(resp.Emotion)
	if !validEmotion(e) {
		return EmotionAnalysis{}, model.NewValidationError("emotion", "unknown emotion %q", resp.Emotion)
	}
	confidence, err := required("confidence", resp.Confidence)
	if err != nil {
		return EmotionAnalysis{}, err
	}
	intensity, err := required("intensity", resp.Intensity)
	if err != nil {
		return EmotionAnalysis{}, err
	}
	return EmotionAnalysis{
		Emotion:    e,
		Confidence: model.Clamp01(confidence),
		Intensity:  model.Clamp01(intensity),
		Traits:     resp.Traits,
	}, nil
}

func validEmotion(e model.Emotion) bool {
	for _, v := range model.Emotions {
		if v == e {
			return true
		}
	}
	return false
}
