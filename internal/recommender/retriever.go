package recommender

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"basegraph.app/assist/internal/knowledge"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/vectorstore"
)

const maxQueryRunes = 500

// Retrieve searches for candidate scripts matching the context and intent. It returns
// up to limit candidates, restricted to the intent's category when it has one.
func (r *Recommender) Retrieve(ctx context.Context, c *model.ConversationContext, intent *model.UserIntent, utterance string, limit int) ([]model.CandidateScript, error) {
	var filter vectorstore.Filter
	if intent != nil {
		if cat := intent.IntentType.Category(); cat != "" {
			filter = vectorstore.Filter{"category": cat}
		}
	}
	return r.retrieve(ctx, synthesizeQuery(c, intent, utterance), filter, limit)
}

func (r *Recommender) retrieve(ctx context.Context, query string, filter vectorstore.Filter, limit int) ([]model.CandidateScript, error) {
	limit = min(limit, r.search.MaxLimit())
	hits, err := r.search.Search(ctx, query, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("retrieving scripts: %w", err)
	}
	out := make([]model.CandidateScript, 0, len(hits))
	for _, h := range hits {
		out = append(out, knowledge.Candidate(h))
	}
	return out, nil
}

// synthesizeQuery joins the utterance, topic, sub-intent and key points into one search
// query, bounded in length. The utterance leads so truncation only drops context.
func synthesizeQuery(c *model.ConversationContext, intent *model.UserIntent, utterance string) string {
	parts := []string{utterance}
	if c != nil {
		parts = append(parts, c.Topic)
	}
	if intent != nil {
		parts = append(parts, strings.ReplaceAll(intent.SubIntent, "_", " "))
	}
	if c != nil {
		parts = append(parts, c.KeyPoints...)
	}

	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	q := strings.Join(kept, " ")
	if utf8.RuneCountInString(q) > maxQueryRunes {
		q = string([]rune(q)[:maxQueryRunes])
	}
	return q
}
