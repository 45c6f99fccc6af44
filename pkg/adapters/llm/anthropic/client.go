// Package anthropic implements ports.LLMClient on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
)

const workerName = "anthropic"

// Config configures the Anthropic client.
type Config struct {
	APIKey  string
	BaseURL string
	// Model is used when a request does not name one.
	Model     string
	MaxTokens int
	// Timeout bounds each HTTP request made by the SDK.
	Timeout    time.Duration
	MaxRetries int
	// MaxConcurrentRequests bounds in-flight requests; zero means unbounded.
	MaxConcurrentRequests int
}

// Client calls the Anthropic Messages API.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int
	sem       *semaphore.Weighted
	metrics   ports.MetricsCollector
	logger    *zap.Logger
}

// NewClient creates an Anthropic client. metrics may be nil.
func NewClient(cfg Config, metrics ports.MetricsCollector, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	c := &Client{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		metrics:   metrics,
		logger:    logger,
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 4096
	}
	if cfg.MaxConcurrentRequests > 0 {
		c.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentRequests))
	}
	return c, nil
}

// GenerateCompletion sends one Messages API request and returns the text of
// the response.
func (c *Client) GenerateCompletion(ctx context.Context, req *domain.LLMRequest) (*domain.LLMResponse, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, ports.ClassifyError(workerName, err)
		}
		defer c.sem.Release(1)
	}

	params, err := c.buildParams(req)
	if err != nil {
		return nil, ports.NewWorkerError(workerName, ports.WorkerErrorRejected, err)
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	duration := time.Since(start)
	if err != nil {
		we := classify(err)
		c.logger.Warn("anthropic request failed",
			zap.String("model", string(params.Model)),
			zap.String("kind", string(we.Kind)),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, we
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	resp := &domain.LLMResponse{
		Content:      text.String(),
		Model:        string(msg.Model),
		StopReason:   string(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}

	if c.metrics != nil {
		c.metrics.RecordLLMTokens(resp.Model, "input", resp.InputTokens)
		c.metrics.RecordLLMTokens(resp.Model, "output", resp.OutputTokens)
	}

	c.logger.Debug("anthropic request completed",
		zap.String("model", resp.Model),
		zap.String("stop_reason", resp.StopReason),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Duration("duration", duration))

	if strings.TrimSpace(resp.Content) == "" {
		return nil, ports.NewWorkerError(workerName, ports.WorkerErrorMalformed,
			fmt.Errorf("response has no text content (stop reason %q)", resp.StopReason))
	}

	return resp, nil
}

func (c *Client) buildParams(req *domain.LLMRequest) (anthropic.MessageNewParams, error) {
	if req == nil || len(req.Messages) == 0 {
		return anthropic.MessageNewParams{}, errors.New("request has no messages")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case "user":
			messages = append(messages, anthropic.NewUserMessage(block))
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(block))
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params, nil
}

// classify maps SDK errors onto the worker error taxonomy.
func classify(err error) *ports.WorkerError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout, apiErr.StatusCode == http.StatusGatewayTimeout:
			return ports.NewWorkerError(workerName, ports.WorkerErrorTimeout, err)
		case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= 500:
			return ports.NewWorkerError(workerName, ports.WorkerErrorTransport, err)
		default:
			return ports.NewWorkerError(workerName, ports.WorkerErrorRejected, err)
		}
	}
	return ports.ClassifyError(workerName, err)
}
