package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Generator produces text completions.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// Embedder turns texts into dense vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Transcriber converts recorded audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (*Transcription, error)
}

// Client is the full capability set of the hosted model provider.
type Client interface {
	Generator
	Embedder
	Transcriber
}

type Request struct {
	SystemPrompt string
	UserPrompt   string
	// SchemaName and Schema request a strict JSON-schema response. Both empty means free text.
	SchemaName  string
	Schema      any
	MaxTokens   int
	Temperature *float64 // nil = model default, explicit 0 = deterministic
	TopP        *float64
}

type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

type Transcription struct {
	Text       string        `json:"text"`
	Language   string        `json:"language,omitempty"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
}

type Config struct {
	APIKey             string
	BaseURL            string
	Model              string
	EmbeddingModel     string
	TranscriptionModel string
	Language           string
}

type client struct {
	openai             openai.Client
	model              string
	embeddingModel     string
	transcriptionModel string
	language           string
}

func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are owned by the service adapters.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	c := &client{
		openai:             openai.NewClient(opts...),
		model:              cfg.Model,
		embeddingModel:     cfg.EmbeddingModel,
		transcriptionModel: cfg.TranscriptionModel,
		language:           cfg.Language,
	}
	if c.model == "" {
		c.model = "gpt-4o-mini"
	}
	if c.embeddingModel == "" {
		c.embeddingModel = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	if c.transcriptionModel == "" {
		c.transcriptionModel = string(openai.AudioModelWhisper1)
	}

	return c, nil
}

func (c *client) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	params := openai.ChatCompletionNewParams{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: openai.Int(int64(maxTokens)),
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.SchemaName,
					Description: openai.String("Structured response schema"),
					Schema:      req.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, Classify(ctx, fmt.Errorf("openai chat: %w", err))
	}

	slog.DebugContext(ctx, "llm generation completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return nil, Transient(fmt.Errorf("no choices in response"))
	}

	return &Response{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func (c *client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.openai.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, Classify(ctx, fmt.Errorf("openai embeddings: %w", err))
	}
	if len(resp.Data) != len(texts) {
		return nil, Transient(fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts)))
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

func (c *client) Transcribe(ctx context.Context, audio io.Reader, filename string) (*Transcription, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, ""),
		Model: openai.AudioModel(c.transcriptionModel),
	}
	if c.language != "" {
		params.Language = openai.String(c.language)
	}

	start := time.Now()
	resp, err := c.openai.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, Classify(ctx, fmt.Errorf("openai transcription: %w", err))
	}

	slog.DebugContext(ctx, "transcription completed",
		"model", c.transcriptionModel,
		"duration_ms", time.Since(start).Milliseconds(),
		"chars", len(resp.Text))

	// The json response format carries no confidence; 0 means "not reported".
	return &Transcription{
		Text:     resp.Text,
		Language: c.language,
	}, nil
}

func (c *client) Model() string {
	return c.model
}

// GenerateSchema reflects T into a strict JSON schema for structured outputs.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func Float(f float64) *float64 {
	return &f
}
