package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type openaiClient struct {
	client *openai.Client
}

func newOpenAIClient(apiKey string, opts *clientOptions) (*openaiClient, error) {
	config := openai.DefaultConfig(apiKey)
	if opts.baseURL != "" {
		config.BaseURL = opts.baseURL
	}
	if opts.httpClient != nil {
		config.HTTPClient = opts.httpClient
	}
	return &openaiClient{client: openai.NewClientWithConfig(config)}, nil
}

func (c *openaiClient) Name() string { return "OpenAI" }

func (c *openaiClient) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{Model: model, Messages: msgs})
	if err != nil {
		return "", c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *openaiClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{Provider: c.Name(), Code: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{Provider: c.Name(), Code: reqErr.HTTPStatusCode, Err: err}
	}
	return fmt.Errorf("openai completion: %w", err)
}
