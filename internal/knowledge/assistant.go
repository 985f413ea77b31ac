package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strings"

	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/internal/adapter"
	"basegraph.app/assist/internal/model"
)

// Generator is the slice of the generation adapter the assistant calls.
type Generator interface {
	Generate(ctx context.Context, prompt string, params adapter.GenerateParams) (string, error)
	Defaults() adapter.GenerateParams
}

type AssistantConfig struct {
	Temperature float64
	MaxTokens   int
	// MinQuestionScore is the quality score below which a generated question is invalid.
	MinQuestionScore float64
	// MaxQuestionRunes bounds the length of a valid generated question.
	MaxQuestionRunes int
	// DuplicateSimilarity drops generated questions at least this similar to the topic
	// or to an earlier question.
	DuplicateSimilarity float64
	// MaxCount caps the count of questions or scripts one call may ask for.
	MaxCount int
}

func (c AssistantConfig) withDefaults() AssistantConfig {
	if c.MinQuestionScore <= 0 {
		c.MinQuestionScore = 0.6
	}
	if c.MaxQuestionRunes <= 0 {
		c.MaxQuestionRunes = 200
	}
	if c.DuplicateSimilarity <= 0 || c.DuplicateSimilarity > 1 {
		c.DuplicateSimilarity = 0.9
	}
	if c.MaxCount <= 0 {
		c.MaxCount = 20
	}
	return c
}

// Assistant curates knowledge-base content with the generation model: it mines
// questions from transcripts, classifies queries and drafts questions and scripts.
type Assistant struct {
	gen Generator
	cfg AssistantConfig
}

func NewAssistant(gen Generator, cfg AssistantConfig) *Assistant {
	return &Assistant{gen: gen, cfg: cfg.withDefaults()}
}

func (a *Assistant) params(system, schemaName string, schema any) adapter.GenerateParams {
	p := a.gen.Defaults()
	if a.cfg.Temperature > 0 {
		p.Temperature = a.cfg.Temperature
	}
	if a.cfg.MaxTokens > 0 {
		p.MaxOutputLength = a.cfg.MaxTokens
	}
	p.System = system
	p.SchemaName = schemaName
	p.Schema = schema
	return p
}

func (a *Assistant) count(field string, n, fallback int) (int, error) {
	if n == 0 {
		return fallback, nil
	}
	if n < 0 || n > a.cfg.MaxCount {
		return 0, model.NewValidationError(field, "must be within [1,%d], got %d", a.cfg.MaxCount, n)
	}
	return n, nil
}

type ExtractedQuestion struct {
	Question string        `json:"question"`
	Context  string        `json:"context"`
	Emotion  model.Emotion `json:"emotion"`
	// Priority runs from 1 (most urgent) to 5.
	Priority int `json:"priority"`
}

type KeyInfo struct {
	CustomerID  string        `json:"customer_id,omitempty"`
	Product     string        `json:"product,omitempty"`
	MainTopic   string        `json:"main_topic"`
	KeyEntities []string      `json:"key_entities"`
	Emotion     model.Emotion `json:"emotion"`
}

type Extraction struct {
	Questions []ExtractedQuestion `json:"questions"`
	KeyInfo   KeyInfo             `json:"key_info"`
}

// ExtractQuestions finds the customer's questions in a transcript, most urgent first,
// together with the key facts of the conversation.
func (a *Assistant) ExtractQuestions(ctx context.Context, conversation string, limit int) (*Extraction, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assist.knowledge.assistant"})
	conversation = strings.TrimSpace(conversation)
	if conversation == "" {
		return nil, model.NewValidationError("conversation", "must not be empty")
	}
	limit, err := a.count("max_questions", limit, 5)
	if err != nil {
		return nil, err
	}

	out, err := a.gen.Generate(ctx, buildExtractPrompt(conversation, limit),
		a.params(extractSystemPrompt, "question_extraction", extractSchema))
	if err != nil {
		return nil, fmt.Errorf("extracting questions: %w", err)
	}
	var resp extractResponse
	if err := llm.DecodeStrict(out, &resp); err != nil {
		return nil, model.NewValidationError("extraction_response", "%v", err)
	}

	ext := &Extraction{
		Questions: make([]ExtractedQuestion, 0, len(resp.Questions)),
		KeyInfo: KeyInfo{
			CustomerID:  strings.TrimSpace(resp.KeyInfo.CustomerID),
			Product:     strings.TrimSpace(resp.KeyInfo.Product),
			MainTopic:   strings.TrimSpace(resp.KeyInfo.MainTopic),
			KeyEntities: nonEmpty(resp.KeyInfo.KeyEntities),
			Emotion:     emotionOrNeutral(resp.KeyInfo.Emotion),
		},
	}
	for i, q := range resp.Questions {
		text := strings.TrimSpace(q.Question)
		if text == "" {
			continue
		}
		if q.Priority == nil {
			return nil, model.NewValidationError(fmt.Sprintf("questions[%d].priority", i), "missing from response")
		}
		if *q.Priority < 1 || *q.Priority > 5 {
			return nil, model.NewValidationError(fmt.Sprintf("questions[%d].priority", i), "must be within [1,5], got %d", *q.Priority)
		}
		ext.Questions = append(ext.Questions, ExtractedQuestion{
			Question: text,
			Context:  strings.TrimSpace(q.Context),
			Emotion:  emotionOrNeutral(q.Emotion),
			Priority: *q.Priority,
		})
	}
	sort.SliceStable(ext.Questions, func(i, j int) bool { return ext.Questions[i].Priority < ext.Questions[j].Priority })
	if len(ext.Questions) > limit {
		ext.Questions = ext.Questions[:limit]
	}

	slog.InfoContext(ctx, "questions extracted", "count", len(ext.Questions), "topic", ext.KeyInfo.MainTopic)
	return ext, nil
}

type Classification struct {
	PrimaryIntent   string  `json:"primary_intent"`
	SecondaryIntent string  `json:"secondary_intent,omitempty"`
	Confidence      float64 `json:"confidence"`
	RewrittenQuery  string  `json:"rewritten_query"`
}

// DefaultCategories are the intent types, used when a classification names no
// categories of its own.
func DefaultCategories() []string {
	out := make([]string, len(model.IntentTypes))
	for i, t := range model.IntentTypes {
		out[i] = string(t)
	}
	return out
}

// ClassifyQuery assigns a search query to one of categories and rewrites it into a
// form that retrieves well.
func (a *Assistant) ClassifyQuery(ctx context.Context, query string, categories []string) (*Classification, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assist.knowledge.assistant"})
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewValidationError("query", "must not be empty")
	}
	categories = nonEmpty(categories)
	if len(categories) == 0 {
		categories = DefaultCategories()
	}

	out, err := a.gen.Generate(ctx, buildClassifyPrompt(query, categories),
		a.params(classifySystemPrompt, "query_classification", classifySchema))
	if err != nil {
		return nil, fmt.Errorf("classifying query: %w", err)
	}
	var resp classifyResponse
	if err := llm.DecodeStrict(out, &resp); err != nil {
		return nil, model.NewValidationError("classification_response", "%v", err)
	}

	c := &Classification{
		PrimaryIntent:   strings.TrimSpace(resp.PrimaryIntent),
		SecondaryIntent: strings.TrimSpace(resp.SecondaryIntent),
		RewrittenQuery:  strings.TrimSpace(resp.RewrittenQuery),
	}
	switch {
	case !slices.Contains(categories, c.PrimaryIntent):
		return nil, model.NewValidationError("primary_intent", "unknown category %q", resp.PrimaryIntent)
	case c.SecondaryIntent == c.PrimaryIntent:
		c.SecondaryIntent = ""
	case c.SecondaryIntent != "" && !slices.Contains(categories, c.SecondaryIntent):
		return nil, model.NewValidationError("secondary_intent", "unknown category %q", resp.SecondaryIntent)
	}
	if resp.Confidence == nil {
		return nil, model.NewValidationError("confidence", "missing from response")
	}
	if math.IsNaN(*resp.Confidence) || *resp.Confidence < 0 || *resp.Confidence > 1 {
		return nil, model.NewValidationError("confidence", "must be within [0,1], got %v", *resp.Confidence)
	}
	c.Confidence = *resp.Confidence
	if c.RewrittenQuery == "" {
		c.RewrittenQuery = query
	}

	slog.InfoContext(ctx, "query classified", "primary", c.PrimaryIntent, "confidence", c.Confidence)
	return c, nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func emotionOrNeutral(s string) model.Emotion {
	e := model.Emotion(strings.TrimSpace(s))
	if slices.Contains(model.Emotions, e) {
		return e
	}
	return model.EmotionNeutral
}
