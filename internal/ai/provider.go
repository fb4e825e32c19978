package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOllamaBaseURL     = "http://localhost:11434/v1"
)

// ChatProvider implements Provider for any OpenAI-compatible chat completions
// API. OpenAI, OpenRouter and Ollama differ only in base URL, default model
// and headers.
type ChatProvider struct {
	name         string
	apiKey       string
	baseURL      string
	defaultModel string
	headers      map[string]string
	client       *http.Client
}

// ChatOption configures a ChatProvider.
type ChatOption func(*ChatProvider)

// WithBaseURL sets the base URL of the API.
func WithBaseURL(url string) ChatOption {
	return func(p *ChatProvider) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ChatOption {
	return func(p *ChatProvider) {
		p.client = client
	}
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) ChatOption {
	return func(p *ChatProvider) {
		if model != "" {
			p.defaultModel = model
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) ChatOption {
	return func(p *ChatProvider) {
		p.headers[key] = value
	}
}

func newChatProvider(name, apiKey, baseURL, model string, opts []ChatOption) *ChatProvider {
	p := &ChatProvider{
		name:         name,
		apiKey:       apiKey,
		baseURL:      baseURL,
		defaultModel: model,
		headers:      make(map[string]string),
		client:       http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewOpenAIProvider creates a provider for the OpenAI API.
func NewOpenAIProvider(apiKey string, opts ...ChatOption) *ChatProvider {
	return newChatProvider("openai", apiKey, defaultOpenAIBaseURL, "gpt-4o-mini", opts)
}

// NewOpenRouterProvider creates a provider for OpenRouter, which asks callers
// to identify themselves with referer and title headers.
func NewOpenRouterProvider(apiKey string, opts ...ChatOption) *ChatProvider {
	opts = append([]ChatOption{
		WithHeader("HTTP-Referer", "https://arandu.app"),
		WithHeader("X-Title", "ARANDU"),
	}, opts...)
	return newChatProvider("openrouter", apiKey, defaultOpenRouterBaseURL, "qwen/qwen-2.5-72b-instruct", opts)
}

// NewOllamaProvider creates a provider for a local Ollama server through its
// OpenAI-compatible endpoint. No API key is needed.
func NewOllamaProvider(opts ...ChatOption) *ChatProvider {
	return newChatProvider("ollama", "", defaultOllamaBaseURL, "llama3.2", opts)
}

// Name returns the provider name.
func (p *ChatProvider) Name() string { return p.name }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *ChatProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	chatReq := chatRequest{
		Model:     model,
		Messages:  make([]chatMessage, len(req.Messages)),
		MaxTokens: req.MaxTokens,
	}
	for i, m := range req.Messages {
		chatReq.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		chatReq.Temperature = &temp
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return CompletionResponse{}, fmt.Errorf("%s api error (status %d): %s", p.name, resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return CompletionResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(out.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("no choices in response")
	}

	return CompletionResponse{
		Content:      out.Choices[0].Message.Content,
		Model:        out.Model,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
	}, nil
}

func (p *ChatProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *ChatProvider) setHeaders(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
}
