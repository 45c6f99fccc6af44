package llm

import (
	"fmt"
	"time"

	"github.com/aescanero/aerodoc/pkg/adapters/llm/anthropic"
	"github.com/aescanero/aerodoc/pkg/ports"
	"go.uber.org/zap"
)

// ProviderAnthropic selects the Anthropic Messages API.
const ProviderAnthropic = "anthropic"

// Config holds LLM client configuration
type Config struct {
	Provider              string
	APIKey                string
	BaseURL               string
	Model                 string
	MaxTokens             int
	RequestTimeout        time.Duration
	MaxRetries            int
	MaxConcurrentRequests int
	Metrics               ports.MetricsCollector
	Logger                *zap.Logger
}

// NewClient creates a new LLM client based on provider
func NewClient(cfg *Config) (ports.LLMClient, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		client, err := anthropic.NewClient(anthropic.Config{
			APIKey:                cfg.APIKey,
			BaseURL:               cfg.BaseURL,
			Model:                 cfg.Model,
			MaxTokens:             cfg.MaxTokens,
			Timeout:               cfg.RequestTimeout,
			MaxRetries:            cfg.MaxRetries,
			MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		}, cfg.Metrics, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
