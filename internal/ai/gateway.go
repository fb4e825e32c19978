// Package ai is a provider-agnostic completion gateway. The gateway uses it
// to write study recommendations; every caller has a rule-based fallback, so
// running without a provider is a supported configuration.
package ai

import "context"

// TaskType tags a request with what it is for, for logging and metering.
type TaskType int

const (
	TaskAnalysis TaskType = iota
	TaskPersonalization
)

func (t TaskType) String() string {
	switch t {
	case TaskAnalysis:
		return "analysis"
	case TaskPersonalization:
		return "personalization"
	default:
		return "unknown"
	}
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
}

// CompletionResponse is the output of an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider is implemented by every completion backend.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	HealthCheck(ctx context.Context) error
}
