package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all configuration for the aerodoc orchestrator
type Config struct {
	// Server configuration
	HTTPPort int    `env:"AERODOC_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"AERODOC_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// StoreBackend selects where run records and events live
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`

	// Redis configuration
	Redis RedisConfig

	// LLM configuration
	LLM LLMConfig

	// Knowledge base retrieval
	Retrieval RetrievalConfig

	// Web search
	WebSearch WebSearchConfig

	// Worker configuration
	Workers WorkerConfig

	// Pipeline execution
	Pipeline PipelineConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	// Event streams are trimmed to about this many entries
	StreamMaxLen int64 `env:"REDIS_STREAM_MAX_LEN" envDefault:"10000"`
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	APIKey   string `env:"LLM_API_KEY"`
	BaseURL  string `env:"LLM_BASE_URL"`

	// Rate limiting
	MaxConcurrentRequests int           `env:"LLM_MAX_CONCURRENT_REQUESTS" envDefault:"10"`
	RequestTimeout        time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"120s"`
	MaxRetries            int           `env:"LLM_MAX_RETRIES" envDefault:"2"`

	// Default model settings
	DefaultModel       string  `env:"LLM_DEFAULT_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	DefaultTemperature float64 `env:"LLM_DEFAULT_TEMPERATURE" envDefault:"0.7"`
	DefaultMaxTokens   int     `env:"LLM_DEFAULT_MAX_TOKENS" envDefault:"4096"`
}

// RetrievalConfig selects the knowledge base retriever. URL takes
// precedence over PassagesFile.
type RetrievalConfig struct {
	URL          string        `env:"RETRIEVAL_URL"`
	PassagesFile string        `env:"RETRIEVAL_PASSAGES_FILE"`
	TopK         int           `env:"RETRIEVAL_TOP_K" envDefault:"5"`
	Timeout      time.Duration `env:"RETRIEVAL_TIMEOUT" envDefault:"30s"`
}

// WebSearchConfig holds web search configuration. Without an API key the
// web researcher answers without search results.
type WebSearchConfig struct {
	SerperAPIKey       string        `env:"SERPER_API_KEY"`
	Endpoint           string        `env:"SERPER_ENDPOINT" envDefault:"https://google.serper.dev/search"`
	Results            int           `env:"WEBSEARCH_RESULTS" envDefault:"10"`
	Timeout            time.Duration `env:"WEBSEARCH_TIMEOUT" envDefault:"30s"`
	TrustedDomainsFile string        `env:"WEBSEARCH_TRUSTED_DOMAINS_FILE"`
}

// WorkerConfig holds run executor pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"5"`
	QueueSize           int           `env:"WORKER_QUEUE_SIZE" envDefault:"100"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// PipelineConfig holds stage execution settings
type PipelineConfig struct {
	MaxQuestionLength int           `env:"PIPELINE_MAX_QUESTION_LENGTH" envDefault:"2000"`
	MaxStageAttempts  int           `env:"PIPELINE_MAX_STAGE_ATTEMPTS" envDefault:"3"`
	RetryBackoff      time.Duration `env:"PIPELINE_RETRY_BACKOFF" envDefault:"1s"`
	MaxRetryBackoff   time.Duration `env:"PIPELINE_MAX_RETRY_BACKOFF" envDefault:"30s"`
	StateTTL          time.Duration `env:"PIPELINE_STATE_TTL" envDefault:"24h"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	RunTimeout      time.Duration `env:"TIMEOUT_RUN" envDefault:"900s"`   // 15 minutes
	StageTimeout    time.Duration `env:"TIMEOUT_STAGE" envDefault:"180s"` // 3 minutes
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate storage
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s (must be memory or redis)", c.StoreBackend)
	}

	// Validate LLM config
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required")
	}
	if c.LLM.Provider != "anthropic" {
		return fmt.Errorf("unsupported LLM provider: %s (only 'anthropic' is supported)", c.LLM.Provider)
	}
	if c.LLM.DefaultTemperature < 0 || c.LLM.DefaultTemperature > 1 {
		return fmt.Errorf("LLM temperature must be between 0 and 1")
	}

	// Validate retrieval config
	if c.Retrieval.URL == "" && c.Retrieval.PassagesFile == "" {
		return fmt.Errorf("retrieval URL or passages file is required")
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueSize < 1 {
		return fmt.Errorf("worker queue size must be at least 1")
	}

	// Validate pipeline config
	if c.Pipeline.MaxStageAttempts < 1 {
		return fmt.Errorf("max stage attempts must be at least 1")
	}
	if c.Timeouts.StageTimeout <= 0 || c.Timeouts.RunTimeout <= 0 {
		return fmt.Errorf("stage and run timeouts must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
