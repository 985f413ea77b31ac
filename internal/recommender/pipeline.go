package recommender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/internal/model"
)

type RecommendRequest struct {
	SessionID string                   `json:"session_id"`
	Turns     []model.ConversationTurn `json:"turns"`
	Profile   *model.CustomerProfile   `json:"profile,omitempty"`
	Count     int                      `json:"count,omitempty"`
}

type RecommendResponse struct {
	SessionID      string                     `json:"session_id"`
	Degraded       bool                       `json:"degraded"`
	DegradedReason string                     `json:"degraded_reason,omitempty"`
	Context        *model.ConversationContext `json:"context,omitempty"`
	Intent         *model.UserIntent          `json:"intent,omitempty"`
	Scripts        []model.RankedScript       `json:"scripts"`
}

// Recommend runs context analysis, intent recognition, retrieval, ranking and
// personalization in order. Trouble with the generation or search services degrades
// the response to a literal search on the latest customer message instead of failing
// it. Only invalid input and caller cancellation are returned as errors.
func (r *Recommender) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{SessionID: logger.Ptr(req.SessionID), Component: "assist.recommender"})
	span := logger.StartSpan(ctx, "recommender.recommend")
	defer span.End()
	ctx = span.Context()

	utterance, count, err := r.validate(req)
	if err != nil {
		return nil, err
	}
	resp := &RecommendResponse{SessionID: req.SessionID, Scripts: []model.RankedScript{}}

	// The stages run under the deadline minus the fallback reserve, so a degraded
	// answer still finishes within the deadline.
	tctx, cancelTotal := context.WithTimeout(ctx, r.cfg.Deadline)
	defer cancelTotal()
	pctx, cancel := context.WithTimeout(tctx, r.cfg.Deadline-r.cfg.FallbackReserve)
	defer cancel()
	degrade := func(reason string) (*RecommendResponse, error) {
		return r.degrade(ctx, tctx, resp, utterance, count, reason)
	}

	c, err := r.AnalyzeContext(pctx, req.SessionID, req.Turns)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return degrade(degradeReason("context analysis", err))
	}
	resp.Context = &c

	if reason := r.budgetShort(pctx, r.cfg.StageReserve); reason != "" {
		return degrade(reason)
	}
	intent, err := r.RecognizeIntent(pctx, req.SessionID, utterance, &c)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return degrade(degradeReason("intent recognition", err))
	}
	resp.Intent = &intent

	if reason := r.budgetShort(pctx, r.cfg.StageReserve); reason != "" {
		return degrade(reason)
	}
	candidates, err := r.Retrieve(pctx, &c, &intent, utterance, 2*count)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return degrade(degradeReason("retrieval", err))
	}
	if len(candidates) == 0 {
		return degrade("retrieval returned no candidates")
	}

	resp.Scripts = Rank(candidates, r.policy.Current().Ranking, count)
	if req.Profile != nil {
		r.personalizeTop(pctx, resp.Scripts, *req.Profile, &c)
	}

	slog.InfoContext(ctx, "scripts recommended",
		"intent_type", intent.IntentType,
		"candidates", len(candidates),
		"returned", len(resp.Scripts))
	return resp, nil
}

func (r *Recommender) validate(req RecommendRequest) (string, int, error) {
	if req.SessionID == "" {
		return "", 0, model.NewValidationError("session_id", "must not be empty")
	}
	if len(req.Turns) == 0 {
		return "", 0, model.NewValidationError("turns", "must not be empty")
	}
	utterance := model.LastCustomerUtterance(req.Turns)
	if utterance == "" {
		return "", 0, model.NewValidationError("turns", "no customer utterance")
	}

	count := req.Count
	if count == 0 {
		count = r.cfg.DefaultCount
	}
	if count < 0 || count > r.search.MaxLimit() {
		return "", 0, model.NewValidationError("count", "must be within [1,%d], got %d", r.search.MaxLimit(), count)
	}
	return utterance, count, nil
}

// budgetShort returns a reason when less than reserve is left before the pipeline
// deadline.
func (r *Recommender) budgetShort(ctx context.Context, reserve time.Duration) string {
	deadline, ok := ctx.Deadline()
	if !ok {
		return ""
	}
	if left := time.Until(deadline); left < reserve {
		return fmt.Sprintf("pipeline budget nearly exhausted (%s left)", left.Round(time.Millisecond))
	}
	return ""
}

// degrade answers with a literal search on utterance, bounded by the total deadline in
// fctx. Only the caller's own cancellation of ctx is returned as an error; a failed or
// timed out literal search still yields a flagged, empty response.
func (r *Recommender) degrade(ctx, fctx context.Context, resp *RecommendResponse, utterance string, count int, reason string) (*RecommendResponse, error) {
	resp.Degraded = true
	resp.DegradedReason = reason
	slog.WarnContext(ctx, "recommendation degraded", "reason", reason)

	candidates, err := r.retrieve(fctx, utterance, nil, count)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.WarnContext(ctx, "literal fallback search failed", "error", err)
		return resp, nil
	}
	resp.Scripts = Rank(candidates, r.policy.Current().Ranking, count)
	return resp, nil
}

// personalizeTop substitutes placeholders in every script and adapts the top ones
// while the pipeline budget allows one more generation call.
func (r *Recommender) personalizeTop(ctx context.Context, scripts []model.RankedScript, profile model.CustomerProfile, c *model.ConversationContext) {
	for i := range scripts {
		if sub := substitute(scripts[i].Content, profile); sub != scripts[i].Content {
			scripts[i].Personalized = sub
		}
		if i >= r.cfg.PersonalizeTop {
			continue
		}
		if reason := r.budgetShort(ctx, r.gen.RetryCycle()); reason != "" {
			slog.DebugContext(ctx, "skipping personalization", "script_id", scripts[i].ID, "reason", reason)
			continue
		}
		p, err := r.Personalize(ctx, scripts[i].Content, profile, c)
		if err == nil && p.Adapted {
			scripts[i].Personalized = p.Text
		}
	}
}

func degradeReason(stage string, err error) string {
	var unavailable *model.ServiceUnavailableError
	switch {
	case errors.As(err, &unavailable):
		return fmt.Sprintf("%s: %s service unavailable", stage, unavailable.Service)
	case errors.Is(err, context.DeadlineExceeded):
		return stage + ": pipeline deadline exceeded"
	case model.IsValidation(err):
		return stage + ": malformed model response"
	}
	return fmt.Sprintf("%s: %v", stage, err)
}
