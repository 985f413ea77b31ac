package adapter

import (
	"context"
	"time"
	"unicode/utf8"

	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/internal/model"
)

const ServiceGeneration = "generation"

// GenerateParams are the sampling and formatting controls of a generation call.
type GenerateParams struct {
	Temperature     float64
	MaxOutputLength int
	TopP            float64
	System          string
	// SchemaName names Schema in the cache key; the schema body is not hashed.
	SchemaName string
	Schema     any
	Extra      map[string]any
}

type GenerationConfig struct {
	MaxPromptLength int
	TTL             time.Duration
	Defaults        GenerateParams
}

// Generation is the resilient wrapper around the text-generation service.
type Generation struct {
	*caller
	gen llm.Generator
	cfg GenerationConfig
}

func NewGeneration(gen llm.Generator, cfg GenerationConfig, opts Options) *Generation {
	if cfg.MaxPromptLength <= 0 {
		cfg.MaxPromptLength = 16000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Defaults.MaxOutputLength == 0 {
		cfg.Defaults.MaxOutputLength = 2048
	}
	if cfg.Defaults.TopP == 0 {
		cfg.Defaults.TopP = 0.9
	}
	return &Generation{
		caller: newCaller(ServiceGeneration, opts, llm.IsRetryable),
		gen:    gen,
		cfg:    cfg,
	}
}

// Defaults returns the configured baseline parameters for callers to adjust.
func (g *Generation) Defaults() GenerateParams {
	return g.cfg.Defaults
}

// Generate returns the model text for prompt. Identical prompt and parameters share
// one cached response for the generation TTL.
func (g *Generation) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	if err := g.validate(prompt, params); err != nil {
		return "", err
	}

	key, err := Key(g.opts.KeyPrefix, "generate", prompt, map[string]any{
		"model":             g.gen.Model(),
		"temperature":       params.Temperature,
		"max_output_length": params.MaxOutputLength,
		"top_p":             params.TopP,
		"system":            params.System,
		"schema":            params.SchemaName,
		"extra":             params.Extra,
	})
	if err != nil {
		return "", model.NewValidationError("parameters", "%v", err)
	}

	out, err := g.cached(ctx, "generate", key, g.cfg.TTL, func(ctx context.Context) ([]byte, error) {
		resp, err := g.gen.Generate(ctx, llm.Request{
			SystemPrompt: params.System,
			UserPrompt:   prompt,
			SchemaName:   params.SchemaName,
			Schema:       params.Schema,
			MaxTokens:    params.MaxOutputLength,
			Temperature:  llm.Float(params.Temperature),
			TopP:         llm.Float(params.TopP),
		})
		if err != nil {
			return nil, err
		}
		return []byte(resp.Content), nil
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (g *Generation) validate(prompt string, p GenerateParams) error {
	n := utf8.RuneCountInString(prompt)
	switch {
	case n == 0:
		return model.NewValidationError("prompt", "must not be empty")
	case n > g.cfg.MaxPromptLength:
		return model.NewValidationError("prompt", "length %d exceeds limit %d", n, g.cfg.MaxPromptLength)
	case p.Temperature < 0 || p.Temperature > 2:
		return model.NewValidationError("temperature", "must be within [0,2], got %v", p.Temperature)
	case p.TopP <= 0 || p.TopP > 1:
		return model.NewValidationError("top_p", "must be within (0,1], got %v", p.TopP)
	case p.MaxOutputLength <= 0:
		return model.NewValidationError("max_output_length", "must be positive, got %d", p.MaxOutputLength)
	}
	return nil
}
