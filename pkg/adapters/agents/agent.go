package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
)

// Config holds settings shared by all agents.
type Config struct {
	// Model overrides the client default when set.
	Model       string
	Temperature float64
	MaxTokens   int
	Metrics     ports.MetricsCollector
	Logger      *zap.Logger
}

// Agent is an LLM-backed ports.Worker.
type Agent struct {
	name        string
	llm         ports.LLMClient
	system      *template.Template
	prompt      *template.Template
	model       string
	temperature float64
	maxTokens   int
	metrics     ports.MetricsCollector
	logger      *zap.Logger
	// enrich adds derived entries to the input before rendering.
	enrich func(ctx context.Context, input map[string]string) error
}

func newAgent(name string, llm ports.LLMClient, system, prompt string, cfg Config) *Agent {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		name:        name,
		llm:         llm,
		system:      mustParse(name+".system", system),
		prompt:      mustParse(name+".prompt", prompt),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		metrics:     cfg.Metrics,
		logger:      logger.With(zap.String("worker", name)),
	}
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=error").Parse(text))
}

// Name returns the worker name used in logs, metrics and errors.
func (a *Agent) Name() string {
	return a.name
}

// Invoke renders the prompts from input and asks the LLM.
func (a *Agent) Invoke(ctx context.Context, input map[string]string) (string, error) {
	start := time.Now()
	out, err := a.invoke(ctx, input)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		var we *ports.WorkerError
		if errors.As(err, &we) {
			status = string(we.Kind)
		} else {
			status = "error"
		}
		a.logger.Warn("worker call failed", zap.Duration("duration", duration), zap.Error(err))
	} else {
		a.logger.Debug("worker call completed",
			zap.Duration("duration", duration),
			zap.Int("output_length", len(out)))
	}
	if a.metrics != nil {
		a.metrics.RecordWorkerCall(a.name, status, duration)
	}
	return out, err
}

func (a *Agent) invoke(ctx context.Context, input map[string]string) (string, error) {
	vars := make(map[string]string, len(input)+1)
	for k, v := range input {
		vars[k] = v
	}
	if a.enrich != nil {
		if err := a.enrich(ctx, vars); err != nil {
			return "", ports.ClassifyError(a.name, err)
		}
	}

	system, err := render(a.system, vars)
	if err != nil {
		return "", ports.NewWorkerError(a.name, ports.WorkerErrorRejected, err)
	}
	prompt, err := render(a.prompt, vars)
	if err != nil {
		return "", ports.NewWorkerError(a.name, ports.WorkerErrorRejected, err)
	}

	resp, err := a.llm.GenerateCompletion(ctx, &domain.LLMRequest{
		Model:       a.model,
		System:      system,
		Messages:    []domain.Message{{Role: "user", Content: prompt}},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return "", ports.ClassifyError(a.name, err)
	}

	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", ports.NewWorkerError(a.name, ports.WorkerErrorMalformed, errors.New("empty completion"))
	}
	return out, nil
}

func render(t *template.Template, vars map[string]string) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}
