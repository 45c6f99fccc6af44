// Package serper implements ports.WebSearcher on the Serper Google search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/aerodoc/pkg/ports"
)

const (
	// DefaultEndpoint is the Serper search endpoint.
	DefaultEndpoint = "https://google.serper.dev/search"
	workerName      = "serper"
)

// Config configures the Serper client.
type Config struct {
	APIKey   string
	Endpoint string
	// Results is the number of organic results requested.
	Results int
	Timeout time.Duration
}

// Client queries the Serper API.
type Client struct {
	apiKey     string
	endpoint   string
	results    int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Serper client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("serper API key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Results <= 0 {
		cfg.Results = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		results:    cfg.Results,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

type searchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}

type searchResponse struct {
	SearchParameters struct {
		Query string `json:"q"`
	} `json:"searchParameters"`
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
	PeopleAlsoAsk []struct {
		Question string `json:"question"`
		Snippet  string `json:"snippet"`
		Link     string `json:"link"`
	} `json:"peopleAlsoAsk"`
	RelatedSearches []struct {
		Query string `json:"query"`
	} `json:"relatedSearches"`
}

// Search runs one query.
func (c *Client) Search(ctx context.Context, query string) (*ports.SearchResponse, error) {
	body, err := json.Marshal(searchRequest{Query: query, Num: c.results})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ports.ClassifyError(workerName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, ports.ClassifyError(workerName, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, data)
	}

	var raw searchResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ports.NewWorkerError(workerName, ports.WorkerErrorMalformed,
			fmt.Errorf("failed to decode response: %w", err))
	}

	out := &ports.SearchResponse{Query: raw.SearchParameters.Query}
	if out.Query == "" {
		out.Query = query
	}
	for _, r := range raw.Organic {
		out.Organic = append(out.Organic, ports.SearchResult{
			Title: r.Title, Link: r.Link, Snippet: r.Snippet, Position: r.Position,
		})
	}
	for _, q := range raw.PeopleAlsoAsk {
		out.PeopleAlsoAsk = append(out.PeopleAlsoAsk, ports.RelatedQuestion{
			Question: q.Question, Snippet: q.Snippet, Link: q.Link,
		})
	}
	for _, r := range raw.RelatedSearches {
		out.RelatedSearches = append(out.RelatedSearches, r.Query)
	}

	c.logger.Debug("web search completed",
		zap.String("query", query),
		zap.Int("organic", len(out.Organic)),
		zap.Duration("duration", time.Since(start)))

	return out, nil
}

func statusError(status int, body []byte) *ports.WorkerError {
	if len(body) > 256 {
		body = body[:256]
	}
	err := fmt.Errorf("serper returned status %d: %s", status, bytes.TrimSpace(body))
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return ports.NewWorkerError(workerName, ports.WorkerErrorTimeout, err)
	case status == http.StatusTooManyRequests, status >= 500:
		return ports.NewWorkerError(workerName, ports.WorkerErrorTransport, err)
	default:
		return ports.NewWorkerError(workerName, ports.WorkerErrorRejected, err)
	}
}
