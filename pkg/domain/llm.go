package domain

// Message is one turn of an LLM conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMRequest is a provider-neutral completion request.
type LLMRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// LLMResponse is a provider-neutral completion response.
type LLMResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	StopReason   string `json:"stop_reason,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}
