package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"basegraph.app/assist/core/db"
)

type Config struct {
	OTel        OTelConfig
	LLM         LLMConfig
	Search      SearchConfig
	Adapter     AdapterConfig
	Session     SessionConfig
	Recommender RecommenderConfig
	Inspector   InspectorConfig
	Knowledge   KnowledgeConfig
	Queue       QueueConfig
	Kafka       KafkaConfig
	Env         string
	Port        string
	RedisURL    string
	PolicyFile  string
	NodeID      int64
	DB          db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type LLMConfig struct {
	APIKey             string
	BaseURL            string // Optional: for compatible endpoints
	Model              string
	EmbeddingModel     string
	TranscriptionModel string
	Language           string
}

// SearchConfig selects the similarity backend: "typesense", "pgvector" or "memory".
type SearchConfig struct {
	Backend    string
	URL        string
	APIKey     string
	Collection string
	Dimensions int
}

type AdapterConfig struct {
	MaxPromptLength int
	MaxQueryLength  int
	DefaultLimit    int
	MaxLimit        int
	CallTimeout     time.Duration
	GenerationTTL   time.Duration
	SearchTTL       time.Duration
	LongTTL         time.Duration
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffFactor   float64
	MaxBackoff      time.Duration
	CachePrefix     string
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	HistoryLimit  int
}

type RecommenderConfig struct {
	Deadline        time.Duration
	StageReserve    time.Duration
	FallbackReserve time.Duration
	RecentTurns     int
	Temperature     float64
	MaxTokens       int
	TopP            float64
}

type InspectorConfig struct {
	Temperature   float64
	MaxTokens     int
	ReviewTimeout time.Duration
}

type KnowledgeConfig struct {
	Temperature         float64
	MinQuestionScore    float64
	DuplicateSimilarity float64
	MaxGenerate         int
}

type QueueConfig struct {
	Stream       string
	Group        string
	Consumer     string
	DLQStream    string
	MaxAttempts  int
	RequeueDelay time.Duration
	ReclaimIdle  time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeWorker ServiceType = "worker"
	ServiceTypeCLI    ServiceType = "cli"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the API server
//   - .env.worker for the batch inspection worker
//   - .env.cli for the assist command
//
// Falls back to .env if the service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("ASSIST_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:        getEnv("ASSIST_ENV", "development"),
		Port:       getEnv("PORT", "8080"),
		RedisURL:   getEnv("REDIS_URL", ""),
		PolicyFile: getEnv("ASSIST_POLICY_FILE", ""),
		NodeID:     int64(getEnvInt("ASSIST_NODE_ID", 1)),
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 10),
			MinConns: getEnvInt32("DB_MIN_CONNS", 2),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "assist-"+string(serviceType)),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		LLM: LLMConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			Model:              getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			TranscriptionModel: getEnv("OPENAI_TRANSCRIPTION_MODEL", "whisper-1"),
			Language:           getEnv("TRANSCRIPTION_LANGUAGE", "zh"),
		},
		Search: SearchConfig{
			Backend:    getEnv("SEARCH_BACKEND", "memory"),
			URL:        getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:     getEnv("TYPESENSE_API_KEY", ""),
			Collection: getEnv("SEARCH_COLLECTION", "customer_service_scripts"),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),
		},
		Adapter: AdapterConfig{
			MaxPromptLength: getEnvInt("ADAPTER_MAX_PROMPT_LENGTH", 16000),
			MaxQueryLength:  getEnvInt("ADAPTER_MAX_QUERY_LENGTH", 2000),
			DefaultLimit:    getEnvInt("ADAPTER_DEFAULT_TOP_K", 5),
			MaxLimit:        getEnvInt("ADAPTER_MAX_TOP_K", 20),
			CallTimeout:     getEnvDuration("ADAPTER_CALL_TIMEOUT", 10*time.Second),
			GenerationTTL:   getEnvDuration("CACHE_TTL_SHORT", 300*time.Second),
			SearchTTL:       getEnvDuration("CACHE_TTL_DEFAULT", time.Hour),
			LongTTL:         getEnvDuration("CACHE_TTL_LONG", 24*time.Hour),
			MaxAttempts:     getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			BackoffBase:     getEnvDuration("RETRY_BACKOFF_BASE", 2*time.Second),
			BackoffFactor:   getEnvFloat("RETRY_BACKOFF_FACTOR", 2.0),
			MaxBackoff:      getEnvDuration("RETRY_MAX_BACKOFF", 60*time.Second),
			CachePrefix:     getEnv("CACHE_PREFIX", "customer_service_ai:"),
		},
		Session: SessionConfig{
			TTL:           getEnvDuration("SESSION_TTL", 30*time.Minute),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			HistoryLimit:  getEnvInt("SESSION_INTENT_HISTORY", 20),
		},
		Recommender: RecommenderConfig{
			Deadline:        getEnvDuration("RECOMMEND_DEADLINE", 20*time.Second),
			StageReserve:    getEnvDuration("RECOMMEND_STAGE_RESERVE", 2*time.Second),
			FallbackReserve: getEnvDuration("RECOMMEND_FALLBACK_RESERVE", 3*time.Second),
			RecentTurns:     getEnvInt("RECOMMEND_RECENT_TURNS", 10),
			Temperature:     getEnvFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:       getEnvInt("LLM_MAX_TOKENS", 2048),
			TopP:            getEnvFloat("LLM_TOP_P", 0.9),
		},
		Inspector: InspectorConfig{
			Temperature:   getEnvFloat("INSPECTION_TEMPERATURE", 0.2),
			MaxTokens:     getEnvInt("INSPECTION_MAX_TOKENS", 1024),
			ReviewTimeout: getEnvDuration("INSPECTION_TIMEOUT", 60*time.Second),
		},
		Knowledge: KnowledgeConfig{
			Temperature:         getEnvFloat("KNOWLEDGE_TEMPERATURE", 0.8),
			MinQuestionScore:    getEnvFloat("KNOWLEDGE_MIN_QUESTION_SCORE", 0.6),
			DuplicateSimilarity: getEnvFloat("KNOWLEDGE_DUPLICATE_SIMILARITY", 0.9),
			MaxGenerate:         getEnvInt("KNOWLEDGE_MAX_GENERATE", 20),
		},
		Queue: QueueConfig{
			Stream:       getEnv("INSPECTION_STREAM", "assist_inspections"),
			Group:        getEnv("INSPECTION_GROUP", "assist_inspectors"),
			Consumer:     getEnv("INSPECTION_CONSUMER", hostname()),
			DLQStream:    getEnv("INSPECTION_DLQ_STREAM", "assist_inspections_dlq"),
			MaxAttempts:  getEnvInt("INSPECTION_MAX_ATTEMPTS", 3),
			RequeueDelay: getEnvDuration("INSPECTION_REQUEUE_DELAY", 5*time.Second),
			ReclaimIdle:  getEnvDuration("INSPECTION_RECLAIM_IDLE", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_CALL_RECORD_TOPIC", "assist.call_records"),
		},
	}

	if cfg.Search.Backend != "memory" && cfg.Search.Backend != "typesense" && cfg.Search.Backend != "pgvector" {
		return Config{}, fmt.Errorf("SEARCH_BACKEND must be one of memory, typesense, pgvector (got %q)", cfg.Search.Backend)
	}

	if cfg.Search.Backend == "pgvector" && !cfg.DB.Enabled() {
		return Config{}, fmt.Errorf("DATABASE_URL is required for the pgvector search backend")
	}

	if serviceType == ServiceTypeWorker && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL is required for the worker")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("30s") or bare integers as seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if i, err := strconv.Atoi(value); err == nil {
		return time.Duration(i) * time.Second
	}
	return fallback
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "assist-worker"
}
