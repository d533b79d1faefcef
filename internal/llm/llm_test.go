package llm

import (
	"strings"
	"testing"
)

func TestNewClientUnknownProvider(t *testing.T) {
	client, err := NewClient("unknown", "key")
	if err == nil {
		t.Fatalf("expected error for unknown provider, got nil")
	}
	if client != nil {
		t.Fatalf("expected nil client, got %#v", client)
	}
	if !strings.Contains(err.Error(), "unknown LLM provider") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewClientProviders(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
	}{
		{provider: "ollama", wantName: "Ollama"},
		{provider: "openai", wantName: "OpenAI"},
		{provider: "anthropic", wantName: "Anthropic"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			client, err := NewClient(tt.provider, "key")
			if err != nil {
				t.Fatalf("NewClient failed: %v", err)
			}
			if client.Name() != tt.wantName {
				t.Fatalf("expected name %q, got %q", tt.wantName, client.Name())
			}
		})
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Provider: "Ollama", Code: 404}
	if err.Error() != "Ollama returned status 404" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if code, ok := statusCode(err); !ok || code != 404 {
		t.Fatalf("expected status code 404, got %d (ok=%v)", code, ok)
	}
}
