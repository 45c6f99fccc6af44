package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
)

const workerName = "retriever"

// HTTPConfig configures the retrieval service client.
type HTTPConfig struct {
	URL     string
	TopK    int
	Timeout time.Duration
}

// HTTPRetriever asks a retrieval service for passages. The service receives
// {"query": ..., "top_k": ...} and answers with {"passages": [...]}.
type HTTPRetriever struct {
	url        string
	topK       int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPRetriever creates a retrieval service client.
func NewHTTPRetriever(cfg HTTPConfig, logger *zap.Logger) (*HTTPRetriever, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("retrieval URL is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPRetriever{
		url:        cfg.URL,
		topK:       cfg.TopK,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Passages []struct {
		Content string `json:"content"`
		Source  string `json:"source"`
		Trust   string `json:"trust"`
	} `json:"passages"`
}

// Search returns passages for query in the order the service ranked them.
func (r *HTTPRetriever) Search(ctx context.Context, query string) ([]domain.Passage, error) {
	body, err := json.Marshal(searchRequest{Query: query, TopK: r.topK})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, ports.ClassifyError(workerName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, ports.ClassifyError(workerName, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		kind := ports.WorkerErrorRejected
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = ports.WorkerErrorTransport
		}
		return nil, ports.NewWorkerError(workerName, kind,
			fmt.Errorf("retrieval service returned status %d", resp.StatusCode))
	}

	var raw searchResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ports.NewWorkerError(workerName, ports.WorkerErrorMalformed,
			fmt.Errorf("failed to decode response: %w", err))
	}

	passages := make([]domain.Passage, 0, len(raw.Passages))
	for _, p := range raw.Passages {
		passages = append(passages, domain.Passage{
			Content: p.Content,
			Source:  p.Source,
			Trust:   domain.ParseTrust(p.Trust),
		})
	}

	r.logger.Debug("retrieval completed",
		zap.Int("passages", len(passages)),
		zap.Duration("duration", time.Since(start)))

	return passages, nil
}
