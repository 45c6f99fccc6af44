package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/aerodoc/internal/application/orchestrator"
	"github.com/aescanero/aerodoc/internal/application/workers"
	"github.com/aescanero/aerodoc/internal/config"
	"github.com/aescanero/aerodoc/pkg/adapters/agents"
	eventsmem "github.com/aescanero/aerodoc/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/aerodoc/pkg/adapters/events/redis"
	"github.com/aescanero/aerodoc/pkg/adapters/llm"
	"github.com/aescanero/aerodoc/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/aerodoc/pkg/adapters/retrieval"
	storagemem "github.com/aescanero/aerodoc/pkg/adapters/storage/memory"
	storageredis "github.com/aescanero/aerodoc/pkg/adapters/storage/redis"
	"github.com/aescanero/aerodoc/pkg/adapters/websearch"
	"github.com/aescanero/aerodoc/pkg/adapters/websearch/serper"
	"github.com/aescanero/aerodoc/pkg/ports"
)

// app holds the components shared by the commands.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	redisClient *goredis.Client
	eventBus    ports.EventBus
	storage     ports.StateStorage
	metrics     *prometheus.Collector
	engine      *orchestrator.Engine
	manager     *orchestrator.Manager
}

// newApp builds the adapters and the run manager from configuration.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: prometheus.NewCollector()}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}

	w, err := a.buildWorkers()
	if err != nil {
		a.close()
		return nil, err
	}

	a.engine, err = orchestrator.NewEngine(w, orchestrator.Options{
		Logger:       logger,
		Metrics:      a.metrics,
		StageTimeout: cfg.Timeouts.StageTimeout,
		Retry: orchestrator.RetryPolicy{
			MaxAttempts:    cfg.Pipeline.MaxStageAttempts,
			InitialBackoff: cfg.Pipeline.RetryBackoff,
			MaxBackoff:     cfg.Pipeline.MaxRetryBackoff,
			Multiplier:     2.0,
			Jitter:         true,
		},
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	a.manager = orchestrator.NewManager(
		a.engine,
		a.eventBus,
		a.storage,
		a.metrics,
		orchestrator.NewValidator(cfg.Pipeline.MaxQuestionLength),
		logger,
		cfg.Timeouts.RunTimeout,
	)

	return a, nil
}

func (a *app) initStore(ctx context.Context) error {
	if a.cfg.StoreBackend != config.BackendRedis {
		a.eventBus = eventsmem.NewInMemoryEventBus(a.logger)
		a.storage = storagemem.NewInMemoryStateStorage()
		return nil
	}

	r := a.cfg.Redis
	a.redisClient = goredis.NewClient(&goredis.Options{
		Addr:         r.Addr,
		Password:     r.Password,
		DB:           r.DB,
		PoolSize:     r.PoolSize,
		MinIdleConns: r.MinIdleConns,
		MaxRetries:   r.MaxRetries,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
	})

	if err := a.redisClient.Ping(ctx).Err(); err != nil {
		_ = a.redisClient.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.logger.Info("connected to Redis", zap.String("addr", r.Addr))

	a.eventBus = eventsredis.NewStreamsEventBus(a.redisClient, r.StreamMaxLen, a.logger)
	a.storage = storageredis.NewStateStorage(a.redisClient, a.cfg.Pipeline.StateTTL, a.logger)
	return nil
}

func (a *app) buildWorkers() (orchestrator.Workers, error) {
	cfg := a.cfg

	llmClient, err := llm.NewClient(&llm.Config{
		Provider:              cfg.LLM.Provider,
		APIKey:                cfg.LLM.APIKey,
		BaseURL:               cfg.LLM.BaseURL,
		Model:                 cfg.LLM.DefaultModel,
		MaxTokens:             cfg.LLM.DefaultMaxTokens,
		RequestTimeout:        cfg.LLM.RequestTimeout,
		MaxRetries:            cfg.LLM.MaxRetries,
		MaxConcurrentRequests: cfg.LLM.MaxConcurrentRequests,
		Metrics:               a.metrics,
		Logger:                a.logger,
	})
	if err != nil {
		return orchestrator.Workers{}, fmt.Errorf("failed to create LLM client: %w", err)
	}

	var retriever ports.Retriever
	if cfg.Retrieval.URL != "" {
		retriever, err = retrieval.NewHTTPRetriever(retrieval.HTTPConfig{
			URL:     cfg.Retrieval.URL,
			TopK:    cfg.Retrieval.TopK,
			Timeout: cfg.Retrieval.Timeout,
		}, a.logger)
	} else {
		retriever, err = retrieval.LoadStaticRetriever(cfg.Retrieval.PassagesFile)
	}
	if err != nil {
		return orchestrator.Workers{}, fmt.Errorf("failed to create retriever: %w", err)
	}

	var searcher agents.Searcher
	if cfg.WebSearch.SerperAPIKey != "" {
		client, err := serper.NewClient(serper.Config{
			APIKey:   cfg.WebSearch.SerperAPIKey,
			Endpoint: cfg.WebSearch.Endpoint,
			Results:  cfg.WebSearch.Results,
			Timeout:  cfg.WebSearch.Timeout,
		}, a.logger)
		if err != nil {
			return orchestrator.Workers{}, fmt.Errorf("failed to create web search client: %w", err)
		}

		domains := websearch.DefaultTrustedDomains()
		if cfg.WebSearch.TrustedDomainsFile != "" {
			domains, err = websearch.LoadTrustedDomains(cfg.WebSearch.TrustedDomainsFile)
			if err != nil {
				return orchestrator.Workers{}, err
			}
		}
		searcher = websearch.NewTrustedSearcher(client, domains)
	} else {
		a.logger.Warn("SERPER_API_KEY not set, web research runs without search results")
	}

	agentCfg := agents.Config{
		Temperature: cfg.LLM.DefaultTemperature,
		MaxTokens:   cfg.LLM.DefaultMaxTokens,
		Metrics:     a.metrics,
		Logger:      a.logger,
	}

	return orchestrator.Workers{
		RelevanceJudge:    agents.NewJudge(agents.NameRelevanceJudge, llmClient, agentCfg),
		EthicsJudge:       agents.NewJudge(agents.NameEthicsJudge, llmClient, agentCfg),
		KnowledgeAnswerer: agents.NewKnowledgeAnswerer(llmClient, agentCfg),
		WebResearcher:     agents.NewWebResearcher(llmClient, searcher, agentCfg),
		Synthesizer:       agents.NewSynthesizer(llmClient, agentCfg),
		BiasReviewer:      agents.NewBiasReviewer(llmClient, agentCfg),
		Retriever:         retriever,
	}, nil
}

// newPool creates the run executor pool and routes submissions through it.
func (a *app) newPool() *workers.Pool {
	pool := workers.NewPool(
		a.cfg.Workers.PoolSize,
		a.cfg.Workers.QueueSize,
		a.manager.Execute,
		a.metrics,
		a.logger,
		a.cfg.Workers.HealthCheckInterval,
	)
	a.manager.UseDispatcher(pool)
	return pool
}

// close releases the event bus and the Redis connection.
func (a *app) close() {
	if a.eventBus != nil {
		if err := a.eventBus.Close(); err != nil {
			a.logger.Error("event bus close error", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("Redis close error", zap.Error(err))
		}
	}
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
