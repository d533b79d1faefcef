package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultOllamaURL = "http://localhost:11434"

type ollamaClient struct {
	baseURL    string
	httpClient *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func newOllamaClient(opts *clientOptions) *ollamaClient {
	url := strings.TrimRight(opts.baseURL, "/")
	if url == "" {
		url = DefaultOllamaURL
	}
	httpClient := opts.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &ollamaClient{baseURL: url, httpClient: httpClient}
}

func (c *ollamaClient) Name() string { return "Ollama" }

// Complete flattens messages into a single prompt for /api/generate; system
// messages travel in the dedicated system field.
func (c *ollamaClient) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	var system, prompt []string
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		prompt = append(prompt, m.Content)
	}
	if len(prompt) == 0 {
		return "", errors.New("ollama: no prompt provided")
	}

	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: strings.Join(prompt, "\n\n"),
		System: strings.Join(system, "\n\n"),
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Provider: c.Name(), Code: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(msg)))}
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama: %s", result.Error)
	}

	return result.Response, nil
}

// ListModels returns the names of models installed in the Ollama instance.
func (c *ollamaClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: c.Name(), Code: resp.StatusCode}
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	return models, nil
}
