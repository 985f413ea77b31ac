package service

import (
	"context"

	"basegraph.app/assist/internal/adapter"
	"basegraph.app/assist/internal/inspector"
	"basegraph.app/assist/internal/knowledge"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/queue"
	"basegraph.app/assist/internal/recommender"
	"basegraph.app/assist/internal/review"
)

type KnowledgeService interface {
	Add(ctx context.Context, items []knowledge.Item) ([]string, error)
	Search(ctx context.Context, query, category string, limit int) ([]model.CandidateScript, error)
	Delete(ctx context.Context, ids []string, category string) error
}

type KnowledgeAssistant interface {
	ExtractQuestions(ctx context.Context, conversation string, limit int) (*knowledge.Extraction, error)
	ClassifyQuery(ctx context.Context, query string, categories []string) (*knowledge.Classification, error)
	GenerateQuestions(ctx context.Context, req knowledge.QuestionRequest) (*knowledge.QuestionSet, error)
	GenerateScripts(ctx context.Context, req knowledge.ScriptRequest) (*knowledge.ScriptSet, error)
}

type RecommendService interface {
	AnalyzeContext(ctx context.Context, sessionID string, turns []model.ConversationTurn) (model.ConversationContext, error)
	RecognizeIntent(ctx context.Context, sessionID, utterance string, c *model.ConversationContext) (model.UserIntent, error)
	PredictNextIntent(ctx context.Context, sessionID string) (recommender.NextIntentPrediction, error)
	ExtractEmotion(ctx context.Context, text string) (recommender.EmotionAnalysis, error)
	Recommend(ctx context.Context, req recommender.RecommendRequest) (*recommender.RecommendResponse, error)
	Personalize(ctx context.Context, script string, profile model.CustomerProfile, c *model.ConversationContext) (recommender.Personalization, error)
	GenerateGreeting(ctx context.Context, profile model.CustomerProfile) (recommender.Personalization, error)
	Session(ctx context.Context, sessionID string) (*recommender.SessionState, error)
	EndSession(ctx context.Context, sessionID string) error
}

type ReviewService interface {
	Get(ctx context.Context, reportID int64) (*model.InspectionReport, error)
	Pending(ctx context.Context, limit int) ([]*model.InspectionReport, error)
	Submit(ctx context.Context, reportID int64, reviewer string) (*model.InspectionReport, error)
	Approve(ctx context.Context, reportID int64, approver, comments string) (*model.InspectionReport, error)
	Reject(ctx context.Context, reportID int64, rejector string, reasons []string) (*model.InspectionReport, error)
}

// Services owns the long-lived domain services. Adapters are built once so that every
// caller shares their cache and in-flight coalescing.
type Services struct {
	knowledge   *knowledge.Service
	assistant   *knowledge.Assistant
	recommender *recommender.Recommender
	inspector   *inspector.Inspector
	inspection  InspectionService
	reviews     *review.Service
}

// NewServices wires the domain services over infra. producer may be nil when no job
// queue is configured.
func NewServices(infra *Infra, producer queue.Producer) *Services {
	cfg := infra.Config
	opts := infra.AdapterOptions()

	generation := adapter.NewGeneration(infra.LLM, adapter.GenerationConfig{
		MaxPromptLength: cfg.Adapter.MaxPromptLength,
		TTL:             cfg.Adapter.GenerationTTL,
		Defaults: adapter.GenerateParams{
			Temperature:     cfg.Recommender.Temperature,
			MaxOutputLength: cfg.Recommender.MaxTokens,
			TopP:            cfg.Recommender.TopP,
		},
	}, opts)
	search := adapter.NewSearch(infra.Vectors, adapter.SearchConfig{
		MaxQueryLength: cfg.Adapter.MaxQueryLength,
		DefaultLimit:   cfg.Adapter.DefaultLimit,
		MaxLimit:       cfg.Adapter.MaxLimit,
		TTL:            cfg.Adapter.SearchTTL,
	}, opts)
	speech := adapter.NewSpeech(infra.LLM, opts)

	ins := inspector.New(generation, infra.Policy, inspector.Config{
		Temperature: cfg.Inspector.Temperature,
		MaxTokens:   cfg.Inspector.MaxTokens,
		Timeout:     cfg.Inspector.ReviewTimeout,
	})

	return &Services{
		knowledge: knowledge.NewService(search),
		assistant: knowledge.NewAssistant(generation, knowledge.AssistantConfig{
			Temperature:         cfg.Knowledge.Temperature,
			MaxTokens:           cfg.Recommender.MaxTokens,
			MinQuestionScore:    cfg.Knowledge.MinQuestionScore,
			DuplicateSimilarity: cfg.Knowledge.DuplicateSimilarity,
			MaxCount:            cfg.Knowledge.MaxGenerate,
		}),
		recommender: recommender.New(generation, search, infra.Sessions, infra.Policy, recommender.Config{
			Deadline:        cfg.Recommender.Deadline,
			StageReserve:    cfg.Recommender.StageReserve,
			FallbackReserve: cfg.Recommender.FallbackReserve,
			RecentTurns:     cfg.Recommender.RecentTurns,
			Temperature:     cfg.Recommender.Temperature,
			MaxTokens:       cfg.Recommender.MaxTokens,
			TopP:            cfg.Recommender.TopP,
		}),
		inspector:  ins,
		inspection: NewInspectionService(ins, speech, infra.Reports, producer),
		reviews:    review.NewService(infra.Reports),
	}
}

func (s *Services) Knowledge() KnowledgeService {
	return s.knowledge
}

func (s *Services) Assistant() KnowledgeAssistant {
	return s.assistant
}

func (s *Services) Recommender() RecommendService {
	return s.recommender
}

func (s *Services) Inspection() InspectionService {
	return s.inspection
}

func (s *Services) Reviews() ReviewService {
	return s.reviews
}

// Inspector is exposed for the batch worker, which stores reports itself.
func (s *Services) Inspector() *inspector.Inspector {
	return s.inspector
}
