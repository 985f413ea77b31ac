package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/core/config"
	"basegraph.app/assist/core/db"
	"basegraph.app/assist/internal/adapter"
	"basegraph.app/assist/internal/cache"
	"basegraph.app/assist/internal/session"
	"basegraph.app/assist/internal/store"
	"basegraph.app/assist/internal/vectorstore"
)

// Infra holds the process-wide clients and backends chosen by configuration. With
// REDIS_URL unset the cache and session store are process-local; with DATABASE_URL
// unset reports are kept in memory.
type Infra struct {
	Config   config.Config
	LLM      llm.Client
	Redis    *redis.Client
	DB       *db.DB
	Cache    cache.Cache
	Recorder adapter.Recorder
	Metrics  *prometheus.Registry
	Vectors  vectorstore.Store
	Sessions session.Store
	Reports  store.ReportStore
	Policy   *config.PolicyWatcher

	background []func(ctx context.Context)
	closers    []func()
}

func NewInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{Config: cfg, Metrics: prometheus.NewRegistry()}
	if err := infra.init(ctx); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *Infra) init(ctx context.Context) error {
	cfg := i.Config

	if !cfg.LLM.Enabled() {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	client, err := llm.New(llm.Config{
		APIKey:             cfg.LLM.APIKey,
		BaseURL:            cfg.LLM.BaseURL,
		Model:              cfg.LLM.Model,
		EmbeddingModel:     cfg.LLM.EmbeddingModel,
		TranscriptionModel: cfg.LLM.TranscriptionModel,
		Language:           cfg.LLM.Language,
	})
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}
	i.LLM = client

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing redis url: %w", err)
		}
		i.Redis = redis.NewClient(opts)
		i.closers = append(i.closers, func() { _ = i.Redis.Close() })
		if err := i.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		slog.InfoContext(ctx, "redis connected")
	}

	if cfg.DB.Enabled() {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		i.DB = database
		i.closers = append(i.closers, database.Close)
		if err := database.Migrate(ctx); err != nil {
			return err
		}
		slog.InfoContext(ctx, "database connected")
	}

	if err := i.initRecorder(); err != nil {
		return err
	}
	if err := i.initVectors(ctx); err != nil {
		return err
	}

	if i.Redis != nil {
		i.Cache = cache.NewRedis(i.Redis)
		i.Sessions = session.NewRedisStore(i.Redis, cfg.Adapter.CachePrefix, cfg.Session.TTL, cfg.Session.HistoryLimit)
	} else {
		mem := cache.NewMemory()
		i.Cache = mem
		i.background = append(i.background, func(ctx context.Context) { mem.Run(ctx, cfg.Session.SweepInterval) })

		sessions := session.NewMemoryStore(cfg.Session.TTL, cfg.Session.HistoryLimit)
		i.Sessions = sessions
		i.background = append(i.background, func(ctx context.Context) { sessions.Run(ctx, cfg.Session.SweepInterval) })
	}

	if i.DB != nil {
		i.Reports = store.NewStores(i.DB.Pool()).Reports()
	} else {
		slog.WarnContext(ctx, "DATABASE_URL not set, inspection reports are kept in memory")
		i.Reports = store.NewMemoryReports()
	}

	policy, err := config.NewPolicyWatcher(cfg.PolicyFile)
	if err != nil {
		return err
	}
	i.Policy = policy
	i.closers = append(i.closers, func() { _ = policy.Close() })
	i.background = append(i.background, policy.Run)

	return nil
}

func (i *Infra) initRecorder() error {
	i.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	prom, err := adapter.NewPrometheusRecorder(i.Metrics)
	if err != nil {
		return fmt.Errorf("registering adapter metrics: %w", err)
	}
	recorders := adapter.MultiRecorder{adapter.LogRecorder{}, prom}

	if i.Config.Kafka.Enabled() {
		kafka := adapter.NewKafkaRecorder(i.Config.Kafka.Brokers, i.Config.Kafka.Topic)
		recorders = append(recorders, kafka)
		i.closers = append(i.closers, func() { _ = kafka.Close() })
	}
	i.Recorder = recorders
	return nil
}

func (i *Infra) initVectors(ctx context.Context) error {
	cfg := i.Config.Search
	switch cfg.Backend {
	case "typesense":
		ts := vectorstore.NewTypesense(vectorstore.TypesenseConfig{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: cfg.Collection,
			Timeout:    i.Config.Adapter.CallTimeout,
		})
		if err := ts.EnsureCollection(ctx); err != nil {
			return err
		}
		i.Vectors = ts
	case "pgvector":
		if i.DB == nil {
			return fmt.Errorf("the pgvector search backend requires DATABASE_URL")
		}
		pg := vectorstore.NewPGVector(i.DB, i.LLM, cfg.Collection, cfg.Dimensions)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		i.Vectors = pg
	default:
		slog.WarnContext(ctx, "using the in-memory search backend, ingested scripts are not persisted")
		i.Vectors = vectorstore.NewMemory()
	}
	return nil
}

// AdapterOptions builds the shared adapter options from configuration.
func (i *Infra) AdapterOptions() adapter.Options {
	a := i.Config.Adapter
	return adapter.Options{
		Cache:    i.Cache,
		Recorder: i.Recorder,
		Retry: adapter.RetryPolicy{
			MaxAttempts: a.MaxAttempts,
			Base:        a.BackoffBase,
			Factor:      a.BackoffFactor,
			MaxDelay:    a.MaxBackoff,
		},
		CallTimeout: a.CallTimeout,
		KeyPrefix:   a.CachePrefix,
	}
}

// Start runs the background loops until ctx ends: policy reload and, without Redis,
// the memory sweepers.
func (i *Infra) Start(ctx context.Context) {
	for _, run := range i.background {
		go run(ctx)
	}
}

// Close releases every client in reverse order of creation.
func (i *Infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
	i.closers = nil
}
