package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/vectorstore"
)

type QuestionKind string

const (
	QuestionStandard QuestionKind = "standard"
	QuestionSimilar  QuestionKind = "similar"
	QuestionFAQ      QuestionKind = "faq"
)

func (k QuestionKind) Valid() bool {
	return k == QuestionStandard || k == QuestionSimilar || k == QuestionFAQ
}

type QuestionRequest struct {
	// Topic is the subject to ask about, or for QuestionSimilar the question to
	// paraphrase.
	Topic    string
	Kind     QuestionKind
	Count    int
	Category string
}

type QuestionValidation struct {
	Question string `json:"question"`
	Valid    bool   `json:"valid"`
	// Score is the model's quality score, nil when the question was not scored.
	Score  *float64 `json:"score"`
	Reason string   `json:"reason,omitempty"`
}

type QuestionSet struct {
	Topic       string               `json:"topic"`
	Kind        QuestionKind         `json:"kind"`
	Category    string               `json:"category,omitempty"`
	Questions   []string             `json:"questions"`
	Validations []QuestionValidation `json:"validations"`
}

// GenerateQuestions drafts questions about a topic, drops near duplicates and scores
// every remaining one. A scoring failure leaves the questions unscored rather than
// failing the call.
func (a *Assistant) GenerateQuestions(ctx context.Context, req QuestionRequest) (*QuestionSet, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assist.knowledge.assistant"})
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return nil, model.NewValidationError("topic", "must not be empty")
	}
	if req.Kind == "" {
		req.Kind = QuestionStandard
	}
	if !req.Kind.Valid() {
		return nil, model.NewValidationError("question_type", "unknown question type %q", req.Kind)
	}
	count, err := a.count("count", req.Count, 5)
	if err != nil {
		return nil, err
	}

	out, err := a.gen.Generate(ctx, buildQuestionPrompt(req, count),
		a.params(questionSystemPrompt, "question_generation", questionSchema))
	if err != nil {
		return nil, fmt.Errorf("generating questions: %w", err)
	}
	var resp questionResponse
	if err := llm.DecodeStrict(out, &resp); err != nil {
		return nil, model.NewValidationError("question_response", "%v", err)
	}

	set := &QuestionSet{
		Topic:     req.Topic,
		Kind:      req.Kind,
		Category:  strings.TrimSpace(req.Category),
		Questions: a.dedupe(req, resp.Questions, count),
	}
	set.Validations = a.validateQuestions(ctx, req.Topic, set.Questions)

	slog.InfoContext(ctx, "questions generated", "kind", req.Kind, "count", len(set.Questions))
	return set, nil
}

// dedupe normalizes the drafted questions and keeps at most count of them, skipping
// any too similar to an earlier one. Paraphrases that merely repeat the source
// question are skipped too.
func (a *Assistant) dedupe(req QuestionRequest, drafted []string, count int) []string {
	kept := make([]string, 0, count)
	for _, q := range drafted {
		q = trimListMarker(q)
		if q == "" {
			continue
		}
		if req.Kind == QuestionSimilar && vectorstore.Similarity(req.Topic, q) >= a.cfg.DuplicateSimilarity {
			continue
		}
		dup := false
		for _, k := range kept {
			if vectorstore.Similarity(k, q) >= a.cfg.DuplicateSimilarity {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, q)
		if len(kept) == count {
			break
		}
	}
	return kept
}

func trimListMarker(q string) string {
	q = strings.TrimSpace(q)
	q = strings.TrimLeft(q, "-*• ")
	if i := strings.IndexAny(q, ".、)"); i > 0 && i <= 2 && strings.Trim(q[:i], "0123456789") == "" {
		_, size := utf8.DecodeRuneInString(q[i:])
		q = q[i+size:]
	}
	return strings.TrimSpace(q)
}

func (a *Assistant) validateQuestions(ctx context.Context, topic string, questions []string) []QuestionValidation {
	out := make([]QuestionValidation, len(questions))
	var scoreIdx []int
	for i, q := range questions {
		out[i] = QuestionValidation{Question: q}
		if n := utf8.RuneCountInString(q); n > a.cfg.MaxQuestionRunes {
			out[i].Reason = fmt.Sprintf("longer than %d characters", a.cfg.MaxQuestionRunes)
			continue
		}
		scoreIdx = append(scoreIdx, i)
	}
	if len(scoreIdx) == 0 {
		return out
	}

	scores, err := a.scoreQuestions(ctx, topic, questions, scoreIdx)
	if err != nil {
		slog.WarnContext(ctx, "question scoring failed", "error", err)
		for _, i := range scoreIdx {
			out[i].Valid = true
			out[i].Reason = "not scored"
		}
		return out
	}
	for _, i := range scoreIdx {
		s, ok := scores[i]
		if !ok {
			out[i].Valid = true
			out[i].Reason = "not scored"
			continue
		}
		out[i].Score = &s.score
		out[i].Reason = s.reason
		out[i].Valid = s.score >= a.cfg.MinQuestionScore
	}
	return out
}

type questionScore struct {
	score  float64
	reason string
}

// scoreQuestions asks the model to score the questions at idx; the result is keyed by
// question index.
func (a *Assistant) scoreQuestions(ctx context.Context, topic string, questions []string, idx []int) (map[int]questionScore, error) {
	out, err := a.gen.Generate(ctx, buildScorePrompt(topic, questions, idx),
		a.params(scoreSystemPrompt, "question_scores", scoreSchema))
	if err != nil {
		return nil, fmt.Errorf("scoring questions: %w", err)
	}
	var resp scoreResponse
	if err := llm.DecodeStrict(out, &resp); err != nil {
		return nil, model.NewValidationError("score_response", "%v", err)
	}

	wanted := make(map[int]bool, len(idx))
	for _, i := range idx {
		wanted[i] = true
	}
	scores := make(map[int]questionScore, len(resp.Scores))
	for _, s := range resp.Scores {
		if s.Index == nil || !wanted[*s.Index] {
			continue
		}
		if s.Score == nil || math.IsNaN(*s.Score) || *s.Score < 0 || *s.Score > 1 {
			continue
		}
		scores[*s.Index] = questionScore{score: *s.Score, reason: strings.TrimSpace(s.Reason)}
	}
	return scores, nil
}

type ScriptKind string

const (
	ScriptCall       ScriptKind = "call"
	ScriptCollection ScriptKind = "collection"
	ScriptComplaint  ScriptKind = "complaint"
)

func (k ScriptKind) Valid() bool {
	return k == ScriptCall || k == ScriptCollection || k == ScriptComplaint
}

type ScriptRequest struct {
	Kind  ScriptKind
	Count int
	Tone  string
	// Scenario and CustomerType shape call scripts.
	Scenario     string
	CustomerType model.CustomerType
	// OverdueDays and RiskLevel shape collection scripts.
	OverdueDays int
	RiskLevel   string
	// ComplaintType and Emotion shape complaint scripts.
	ComplaintType string
	Emotion       model.Emotion
}

// CallScript is a three-part script for outbound calls and complaint handling.
type CallScript struct {
	Greeting     string             `json:"greeting"`
	MainContent  string             `json:"main_content"`
	Closing      string             `json:"closing"`
	Scenario     string             `json:"scenario"`
	CustomerType model.CustomerType `json:"customer_type,omitempty"`
}

func (s CallScript) Text() string {
	return joinNonEmpty(s.Greeting, s.MainContent, s.Closing)
}

type CollectionScript struct {
	Opening           string `json:"opening"`
	Negotiation       string `json:"negotiation"`
	CommitmentRequest string `json:"commitment_request"`
	RiskLevel         string `json:"risk_level"`
	OverdueDays       int    `json:"overdue_days"`
}

func (s CollectionScript) Text() string {
	return joinNonEmpty(s.Opening, s.Negotiation, s.CommitmentRequest)
}

type ScriptSet struct {
	Kind       ScriptKind         `json:"kind"`
	Tone       string             `json:"tone"`
	Call       []CallScript       `json:"call,omitempty"`
	Collection []CollectionScript `json:"collection,omitempty"`
}

// Items converts the drafted scripts into knowledge items ready for Add.
func (s *ScriptSet) Items(category string) []Item {
	var items []Item
	for _, c := range s.Call {
		items = append(items, Item{Content: c.Text(), Category: category, Tags: []string{string(s.Kind), s.Tone}})
	}
	for _, c := range s.Collection {
		items = append(items, Item{Content: c.Text(), Category: category, Tags: []string{string(s.Kind), c.RiskLevel}})
	}
	return items
}

var collectionRiskLevels = []string{"low_risk", "medium_risk", "high_risk"}

// GenerateScripts drafts agent scripts of one kind.
func (a *Assistant) GenerateScripts(ctx context.Context, req ScriptRequest) (*ScriptSet, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "assist.knowledge.assistant"})
	if !req.Kind.Valid() {
		return nil, model.NewValidationError("script_type", "unknown script type %q", req.Kind)
	}
	count, err := a.count("count", req.Count, 3)
	if err != nil {
		return nil, err
	}
	if req.Tone = strings.TrimSpace(req.Tone); req.Tone == "" {
		req.Tone = "professional"
	}
	switch req.Kind {
	case ScriptCollection:
		if req.OverdueDays < 0 {
			return nil, model.NewValidationError("overdue_days", "must not be negative")
		}
		if req.OverdueDays == 0 {
			req.OverdueDays = 30
		}
		if req.RiskLevel == "" {
			req.RiskLevel = "low_risk"
		}
		if !slices.Contains(collectionRiskLevels, req.RiskLevel) {
			return nil, model.NewValidationError("customer_risk", "unknown risk level %q", req.RiskLevel)
		}
	case ScriptComplaint:
		if req.ComplaintType = strings.TrimSpace(req.ComplaintType); req.ComplaintType == "" {
			req.ComplaintType = "service_quality"
		}
		req.Emotion = emotionOrNeutral(string(req.Emotion))
	case ScriptCall:
		if req.Scenario = strings.TrimSpace(req.Scenario); req.Scenario == "" {
			return nil, model.NewValidationError("scenario", "must not be empty")
		}
	}

	set := &ScriptSet{Kind: req.Kind, Tone: req.Tone}
	if req.Kind == ScriptCollection {
		set.Collection, err = a.collectionScripts(ctx, req, count)
	} else {
		set.Call, err = a.callScripts(ctx, req, count)
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "scripts generated", "kind", req.Kind, "count", len(set.Call)+len(set.Collection))
	return set, nil
}

func (a *Assistant) callScripts(ctx context.Context, req ScriptRequest, count int) ([]CallScript, error) {
	out, err := a.gen.Generate(ctx, buildScriptPrompt(req, count),
		a.params(callScriptSystemPrompt, "call_scripts", callScriptSchema))
	if err != nil {
		return nil, fmt.Errorf("generating %s scripts: %w", req.Kind, err)
	}
	var resp callScriptResponse
	if err := llm.DecodeStrict(out, &resp); err != nil {
		return nil, model.NewValidationError("script_response", "%v", err)
	}

	scenario := req.Scenario
	if req.Kind == ScriptComplaint {
		scenario = req.ComplaintType
	}
	scripts := make([]CallScript, 0, count)
	for _, s := range resp.Scripts {
		c := CallScript{
			Greeting:     strings.TrimSpace(s.Greeting),
			MainContent:  strings.TrimSpace(s.MainContent),
			Closing:      strings.TrimSpace(s.Closing),
			Scenario:     scenario,
			CustomerType: req.CustomerType,
		}
		if c.MainContent == "" {
			continue
		}
		scripts = append(scripts, c)
		if len(scripts) == count {
			break
		}
	}
	if len(scripts) == 0 {
		return nil, model.NewValidationError("scripts", "no usable script in response")
	}
	return scripts, nil
}

func (a *Assistant) collectionScripts(ctx context.Context, req ScriptRequest, count int) ([]CollectionScript, error) {
	out, err := a.gen.Generate(ctx, buildScriptPrompt(req, count),
		a.params(collectionScriptSystemPrompt, "collection_scripts", collectionScriptSchema))
	if err != nil {
		return nil, fmt.Errorf("generating collection scripts: %w", err)
	}
	var resp collectionScriptResponse
	if err := llm.DecodeStrict(out, &resp); err != nil {
		return nil, model.NewValidationError("script_response", "%v", err)
	}

	scripts := make([]CollectionScript, 0, count)
	for _, s := range resp.Scripts {
		c := CollectionScript{
			Opening:           strings.TrimSpace(s.Opening),
			Negotiation:       strings.TrimSpace(s.Negotiation),
			CommitmentRequest: strings.TrimSpace(s.CommitmentRequest),
			RiskLevel:         req.RiskLevel,
			OverdueDays:       req.OverdueDays,
		}
		if c.Negotiation == "" {
			continue
		}
		scripts = append(scripts, c)
		if len(scripts) == count {
			break
		}
	}
	if len(scripts) == 0 {
		return nil, model.NewValidationError("scripts", "no usable script in response")
	}
	return scripts, nil
}

func joinNonEmpty(parts ...string) string {
	return strings.Join(nonEmpty(parts), "\n")
}
