package inspector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"basegraph.app/assist/common/id"
	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/core/config"
	"basegraph.app/assist/internal/adapter"
	"basegraph.app/assist/internal/model"
)

// Generator is the slice of the generation adapter the inspector calls.
type Generator interface {
	Generate(ctx context.Context, prompt string, params adapter.GenerateParams) (string, error)
	Defaults() adapter.GenerateParams
}

// PolicySource supplies the current dimension weights.
type PolicySource interface {
	Current() config.Policy
}

type Config struct {
	Temperature float64
	MaxTokens   int
	// Timeout bounds one inspection across all dimensions.
	Timeout time.Duration
}

type Inspector struct {
	gen    Generator
	policy PolicySource
	cfg    Config
	now    func() time.Time
	newID  func() int64
}

func New(gen Generator, policy PolicySource, cfg Config) *Inspector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Inspector{gen: gen, policy: policy, cfg: cfg, now: time.Now, newID: id.New}
}

type dimensionResult struct {
	score       float64
	issues      []model.QualityIssue
	suggestions []string
	err         error
}

// Inspect scores the conversation on every dimension concurrently. A dimension whose
// call fails is reported unavailable and left out of the overall score; when every
// dimension fails the inspection fails with an InspectionError.
func (in *Inspector) Inspect(ctx context.Context, conv *model.ParsedConversation) (*model.InspectionReport, error) {
	if conv == nil || len(conv.Turns) == 0 {
		return nil, model.NewValidationError("turns", "must not be empty")
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{SessionID: logger.Ptr(conv.SessionID), Component: "assist.inspector"})
	span := logger.StartSpan(ctx, "inspector.inspect")
	defer span.End()
	ctx = span.Context()

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, in.cfg.Timeout)
	defer cancel()

	transcript := formatTranscript(conv.Turns)
	results := make([]dimensionResult, len(model.Dimensions))

	var wg sync.WaitGroup
	for i, d := range model.Dimensions {
		wg.Add(1)
		go func(idx int, d model.Dimension) {
			defer wg.Done()
			results[idx] = in.scoreDimension(ctx, d, transcript, len(conv.Turns))
		}(i, d)
	}
	wg.Wait()

	if err := parent.Err(); err != nil {
		return nil, err
	}

	report := &model.InspectionReport{
		SessionID: conv.SessionID,
		Issues:    []model.QualityIssue{},
		TurnCount: len(conv.Turns),
		CreatedAt: in.now(),
		Review:    model.Generated{},
	}

	weights := in.policy.Current().Dimensions
	failures := make(map[model.Dimension]error)
	var weighted, total, sum float64
	scored := 0
	for i, d := range model.Dimensions {
		res := results[i]
		if res.err != nil {
			failures[d] = res.err
			report.Unavailable = append(report.Unavailable, d)
			slog.WarnContext(ctx, "dimension unavailable", "dimension", d, "error", res.err)
			continue
		}
		score := res.score
		report.SetScore(d, &score)
		report.Issues = append(report.Issues, res.issues...)
		report.Suggestions = appendUnique(report.Suggestions, res.suggestions...)

		w := weights.Weight(string(d))
		weighted += w * score
		total += w
		sum += score
		scored++
	}

	if len(failures) == len(model.Dimensions) {
		err := &model.InspectionError{Failures: failures}
		span.Fail(err)
		return nil, err
	}
	if total > 0 {
		report.OverallScore = model.Round1(weighted / total)
	} else {
		// Only zero-weighted dimensions were scored.
		report.OverallScore = model.Round1(sum / float64(scored))
	}
	report.ID = in.newID()

	slog.InfoContext(ctx, "conversation inspected",
		"report_id", report.ID,
		"overall_score", report.OverallScore,
		"issues", len(report.Issues),
		"unavailable", len(report.Unavailable))
	return report, nil
}

func (in *Inspector) scoreDimension(ctx context.Context, d model.Dimension, transcript string, turnCount int) dimensionResult {
	params := in.gen.Defaults()
	if in.cfg.Temperature > 0 {
		params.Temperature = in.cfg.Temperature
	}
	if in.cfg.MaxTokens > 0 {
		params.MaxOutputLength = in.cfg.MaxTokens
	}
	params.System = dimensionPrompts[d]
	params.SchemaName = "dimension_score"
	params.Schema = dimensionSchema

	out, err := in.gen.Generate(ctx, "Conversation:\n"+transcript, params)
	if err != nil {
		return dimensionResult{err: fmt.Errorf("scoring %s: %w", d, err)}
	}

	var resp dimensionResponse
	if err := llm.DecodeStrict(out, &resp); err != nil {
		return dimensionResult{err: model.NewValidationError(string(d), "%v", err)}
	}
	return resp.validate(d, turnCount)
}

func (r dimensionResponse) validate(d model.Dimension, turnCount int) dimensionResult {
	if r.Score == nil {
		return dimensionResult{err: model.NewValidationError(string(d), "score missing from response")}
	}
	score := *r.Score
	if math.IsNaN(score) || score < 0 || score > 100 {
		return dimensionResult{err: model.NewValidationError(string(d), "score %v outside [0,100]", score)}
	}
	issues := make([]model.QualityIssue, 0, len(r.Issues))
	for _, is := range r.Issues {
		sev := model.Severity(is.Severity)
		if !sev.Valid() {
			return dimensionResult{err: model.NewValidationError(string(d), "unknown severity %q", is.Severity)}
		}
		if is.TurnIndex < 0 || is.TurnIndex >= turnCount {
			return dimensionResult{err: model.NewValidationError(string(d), "turn index %d outside conversation", is.TurnIndex)}
		}
		issues = append(issues, model.QualityIssue{
			Dimension:   d,
			IssueType:   is.IssueType,
			Severity:    sev,
			Description: is.Description,
			TurnIndex:   is.TurnIndex,
			Remedy:      is.Remedy,
		})
	}
	return dimensionResult{score: score, issues: issues, suggestions: r.Suggestions}
}

func formatTranscript(turns []model.ConversationTurn) string {
	var b strings.Builder
	for i, t := range turns {
		label := "Customer"
		if t.Speaker == model.SpeakerAgent {
			label = "Agent"
		}
		fmt.Fprintf(&b, "[%d] %s: %s\n", i, label, t.Text)
	}
	return b.String()
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		dup := false
		for _, d := range dst {
			if d == it {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, it)
		}
	}
	return dst
}
