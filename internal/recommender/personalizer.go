package recommender

import (
	"context"
	"log/slog"
	"strings"

	"basegraph.app/assist/internal/model"
)

type Personalization struct {
	Text string `json:"text"`
	// Adapted reports whether the text was rewritten by the model, beyond placeholder
	// substitution.
	Adapted bool `json:"adapted"`
}

// Personalize fills the script's placeholders from the profile and asks the model to
// adapt its tone. The adaptation is best-effort: on failure the substituted script is
// returned.
func (r *Recommender) Personalize(ctx context.Context, script string, profile model.CustomerProfile, c *model.ConversationContext) (Personalization, error) {
	if strings.TrimSpace(script) == "" {
		return Personalization{}, model.NewValidationError("script", "must not be empty")
	}
	text := substitute(script, profile)
	if !worthAdapting(profile) {
		return Personalization{Text: text}, nil
	}

	params := r.params(personalizeSystemPrompt, "", nil)
	out, err := r.gen.Generate(ctx, buildPersonalizePrompt(text, profile, c), params)
	if err != nil {
		slog.WarnContext(ctx, "personalization failed, returning script unchanged", "error", err)
		return Personalization{Text: text}, nil
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return Personalization{Text: text}, nil
	}
	return Personalization{Text: out, Adapted: true}, nil
}

// GenerateGreeting writes an opening line for the customer, falling back to a template
// when the model is unavailable.
func (r *Recommender) GenerateGreeting(ctx context.Context, profile model.CustomerProfile) (Personalization, error) {
	out, err := r.gen.Generate(ctx, buildGreetingPrompt(profile), r.params(greetingSystemPrompt, "", nil))
	if err == nil {
		if out = strings.TrimSpace(out); out != "" {
			return Personalization{Text: out, Adapted: true}, nil
		}
	} else if ctx.Err() != nil {
		return Personalization{}, ctx.Err()
	} else {
		slog.WarnContext(ctx, "greeting generation failed, using template", "error", err)
	}
	return Personalization{Text: "您好，" + orDefault(profile.Name, "客户") + "！"}, nil
}

var placeholderNames = []string{"{name}", "{客户姓名}"}
var placeholderTypes = []string{"{customer_type}", "{客户类型}"}

func substitute(script string, p model.CustomerProfile) string {
	if p.Name != "" {
		for _, ph := range placeholderNames {
			script = strings.ReplaceAll(script, ph, p.Name)
		}
	}
	if p.CustomerType != "" {
		for _, ph := range placeholderTypes {
			script = strings.ReplaceAll(script, ph, string(p.CustomerType))
		}
	}
	return script
}

// worthAdapting reports whether the profile carries anything a rewrite could use
// beyond the placeholders.
func worthAdapting(p model.CustomerProfile) bool {
	return p.Age > 0 || p.Gender != "" || len(p.Preferences) > 0 || p.CustomerType != ""
}
