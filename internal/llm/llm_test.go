package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicChat(t *testing.T) {
	var captured anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("missing anthropic-version header")
		}
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q, want /messages", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContentBlock{{Type: "text", Text: "Revenue grew 5%."}},
			Model:   "claude-sonnet-4-20250514",
			Usage:   anthropicUsage{InputTokens: 1200, OutputTokens: 40},
		})
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider("test-key", WithAnthropicBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}

	resp, err := p.Chat(context.Background(), []Message{
		SystemMessage("You are an analyst."),
		UserMessage("What was revenue growth?"),
	}, &ChatOptions{MaxTokens: 512, Temperature: 0.1})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Content != "Revenue grew 5%." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Provider != ProviderAnthropic {
		t.Errorf("Provider = %q", resp.Provider)
	}
	if resp.Usage.TotalTokens != 1240 {
		t.Errorf("TotalTokens = %d, want 1240", resp.Usage.TotalTokens)
	}

	// System message rides the top-level field, not the messages array.
	if captured.System != "You are an analyst." {
		t.Errorf("request System = %q", captured.System)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" {
		t.Errorf("request Messages = %+v, want single user message", captured.Messages)
	}
	if captured.MaxTokens != 512 {
		t.Errorf("request MaxTokens = %d", captured.MaxTokens)
	}
	if captured.Temperature == nil || *captured.Temperature != 0.1 {
		t.Errorf("request Temperature = %v", captured.Temperature)
	}
}

func TestAnthropicErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"invalid x-api-key"}}`, ErrNoAPIKey},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`, ErrRateLimit},
		{"prompt too long", http.StatusBadRequest, `{"error":{"message":"prompt is too long: 250000 tokens"}}`, ErrContextLength},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"overloaded"}}`, ErrProviderDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p, _ := NewAnthropicProvider("test-key", WithAnthropicBaseURL(srv.URL))
			_, err := p.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Chat = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIChat(t *testing.T) {
	var captured openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(openAIChatResponse{
			Model: "gpt-4o",
			Choices: []openAIChoice{{
				Message: openAIMessage{Role: "assistant", Content: "Margins held steady."},
			}},
			Usage: openAIUsage{PromptTokens: 900, CompletionTokens: 30, TotalTokens: 930},
		})
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("test-key", WithOpenAIBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}

	resp, err := p.Chat(context.Background(), []Message{
		SystemMessage("You are an analyst."),
		UserMessage("How did margins move?"),
	}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "Margins held steady." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Provider != ProviderOpenAI {
		t.Errorf("Provider = %q", resp.Provider)
	}
	if resp.Usage.TotalTokens != 930 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}
	// OpenAI keeps the system message inline.
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("request Messages = %+v, want system then user", captured.Messages)
	}
}

func TestOpenAIContextLengthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"too many tokens","code":"context_length_exceeded"}}`))
	}))
	defer srv.Close()

	p, _ := NewOpenAIProvider("test-key", WithOpenAIBaseURL(srv.URL))
	_, err := p.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if !errors.Is(err, ErrContextLength) {
		t.Fatalf("Chat = %v, want ErrContextLength", err)
	}
}

func TestProviderRequiresKey(t *testing.T) {
	if _, err := NewAnthropicProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("NewAnthropicProvider(\"\") = %v, want ErrNoAPIKey", err)
	}
	if _, err := NewOpenAIProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("NewOpenAIProvider(\"\") = %v, want ErrNoAPIKey", err)
	}
}

// fakeProvider is a scriptable Provider for router tests.
type fakeProvider struct {
	name  string
	resp  *Response
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeProvider) Ping(ctx context.Context) error { return f.err }

func TestRouterFallsBackOnProviderDown(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", err: ErrProviderDown}
	fallback := &fakeProvider{name: "openai", resp: &Response{Content: "ok", Provider: "openai"}}

	r := NewRouter("anthropic")
	r.Register(primary)
	r.Register(fallback)
	r.fallbacks = []string{"openai"}

	resp, err := r.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Provider != "openai" {
		t.Errorf("Provider = %q, want fallback openai", resp.Provider)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.calls, fallback.calls)
	}
}

func TestRouterDoesNotRetryRequestErrors(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", err: ErrContextLength}
	fallback := &fakeProvider{name: "openai", resp: &Response{Content: "ok"}}

	r := NewRouter("anthropic")
	r.Register(primary)
	r.Register(fallback)
	r.fallbacks = []string{"openai"}

	_, err := r.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if !errors.Is(err, ErrContextLength) {
		t.Fatalf("Chat = %v, want ErrContextLength", err)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times for a non-retryable error", fallback.calls)
	}
}

func TestRouterAllProvidersFail(t *testing.T) {
	r := NewRouter("anthropic")
	r.Register(&fakeProvider{name: "anthropic", err: ErrProviderDown})
	r.Register(&fakeProvider{name: "openai", err: ErrRateLimit})
	r.fallbacks = []string{"openai"}

	_, err := r.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if !errors.Is(err, ErrRateLimit) {
		t.Fatalf("Chat = %v, want last error wrapping ErrRateLimit", err)
	}
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter("anthropic")
	_, err := r.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("Chat = %v, want ErrNoProviders", err)
	}
}
