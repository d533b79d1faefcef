package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestOllamaComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gemma3:4b" {
			t.Errorf("expected model gemma3:4b, got %q", req.Model)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if req.System != "be brief" || req.Prompt != "hello" {
			t.Errorf("unexpected prompt fields: system=%q prompt=%q", req.System, req.Prompt)
		}

		_ = json.NewEncoder(w).Encode(generateResponse{Response: " Hi!\n", Done: true})
	}))
	defer server.Close()

	client := newOllamaClient(&clientOptions{baseURL: server.URL + "/"})
	got, err := client.Complete(context.Background(), "gemma3:4b", []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != " Hi!\n" {
		t.Fatalf("expected verbatim response, got %q", got)
	}
}

func TestOllamaCompleteStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := newOllamaClient(&clientOptions{baseURL: server.URL})
	_, err := client.Complete(context.Background(), "missing", []Message{{Role: "user", Content: "hello"}})
	code, ok := statusCode(err)
	if !ok || code != http.StatusNotFound {
		t.Fatalf("expected status 404 error, got %v", err)
	}
}

func TestOllamaCompleteBodyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Error: "out of memory"})
	}))
	defer server.Close()

	client := newOllamaClient(&clientOptions{baseURL: server.URL})
	if _, err := client.Complete(context.Background(), "gemma3:4b", []Message{{Role: "user", Content: "hello"}}); err == nil {
		t.Fatal("expected error for error body")
	}
}

func TestOllamaListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"gemma3:4b"},{"name":"mistral:latest"}]}`))
	}))
	defer server.Close()

	client := newOllamaClient(&clientOptions{baseURL: server.URL})
	got, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"gemma3:4b", "mistral:latest"}) {
		t.Fatalf("unexpected models %v", got)
	}
}
