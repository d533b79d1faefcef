package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Message struct {
	Role    string
	Content string
}

// Client sends one non-streaming completion to a provider. The model is
// chosen per call so a single client serves every selectable model.
type Client interface {
	Name() string
	Complete(ctx context.Context, model string, messages []Message) (string, error)
}

// ModelLister is implemented by providers that can enumerate installed models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// StatusError reports that a provider answered with a non-success HTTP status.
type StatusError struct {
	Provider string
	Code     int
	Err      error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s returned status %d: %v", e.Provider, e.Code, e.Err)
	}
	return fmt.Sprintf("%s returned status %d", e.Provider, e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }

type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

func NewClient(provider, apiKey string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "ollama":
		return newOllamaClient(o), nil
	case "openai":
		return newOpenAIClient(apiKey, o)
	case "anthropic":
		return newAnthropicClient(apiKey, o)
	case "gemini":
		return newGeminiClient(apiKey, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are ollama, openai, anthropic, gemini", provider)
	}
}

func statusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}
