package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatServer(t *testing.T, check func(r *http.Request, req chatRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if check != nil {
			check(r, req)
		}
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "Repasa variables"}}],
			"model": "` + req.Model + `",
			"usage": {"prompt_tokens": 12, "completion_tokens": 4}
		}`))
	}))
}

func TestChatProvider_Complete(t *testing.T) {
	server := chatServer(t, func(r *http.Request, req chatRequest) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q, want default gpt-4o-mini", req.Model)
		}
		if req.Temperature == nil || *req.Temperature != 0.3 {
			t.Errorf("temperature = %v, want 0.3", req.Temperature)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hola" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
	})
	defer server.Close()

	p := NewOpenAIProvider("test-key", WithBaseURL(server.URL+"/"))
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{{Role: "user", Content: "hola"}},
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Repasa variables" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 4 {
		t.Errorf("tokens = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
}

func TestChatProvider_Presets(t *testing.T) {
	tests := []struct {
		name      string
		provider  func(url string) *ChatProvider
		wantModel string
		wantAuth  string
		wantTitle string
	}{
		{
			name:      "openrouter",
			provider:  func(url string) *ChatProvider { return NewOpenRouterProvider("or-key", WithBaseURL(url)) },
			wantModel: "qwen/qwen-2.5-72b-instruct",
			wantAuth:  "Bearer or-key",
			wantTitle: "ARANDU",
		},
		{
			name:      "ollama",
			provider:  func(url string) *ChatProvider { return NewOllamaProvider(WithBaseURL(url)) },
			wantModel: "llama3.2",
		},
		{
			name: "custom model",
			provider: func(url string) *ChatProvider {
				return NewOpenAIProvider("k", WithBaseURL(url), WithDefaultModel("gpt-4o"))
			},
			wantModel: "gpt-4o",
			wantAuth:  "Bearer k",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, func(r *http.Request, req chatRequest) {
				if req.Model != tt.wantModel {
					t.Errorf("model = %q, want %q", req.Model, tt.wantModel)
				}
				if got := r.Header.Get("Authorization"); got != tt.wantAuth {
					t.Errorf("Authorization = %q, want %q", got, tt.wantAuth)
				}
				if got := r.Header.Get("X-Title"); got != tt.wantTitle {
					t.Errorf("X-Title = %q, want %q", got, tt.wantTitle)
				}
			})
			defer server.Close()

			p := tt.provider(server.URL)
			if _, err := p.Complete(context.Background(), CompletionRequest{}); err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if p.Name() != tt.name && tt.name != "custom model" {
				t.Errorf("Name() = %q", p.Name())
			}
		})
	}
}

func TestChatProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	_, err := NewOpenAIProvider("k", WithBaseURL(server.URL)).Complete(context.Background(), CompletionRequest{})
	if err == nil {
		t.Fatal("Complete() should return error on 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestChatProvider_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	if _, err := NewOpenAIProvider("k", WithBaseURL(server.URL)).Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Fatal("Complete() should return error with no choices")
	}
}

func TestChatProvider_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewOllamaProvider(WithBaseURL(server.URL)).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := NewOllamaProvider(WithBaseURL(server.URL + "/nope")).HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail on 404")
	}
}
