package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const placeholderAPIKey = "sk-dummy-key-for-local"

// OpenAI talks to any OpenAI-compatible /chat/completions endpoint,
// including self-hosted servers that ignore the key.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(client *http.Client, baseURL, model, apiKey string) *OpenAI {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" || strings.EqualFold(apiKey, "na") {
		apiKey = placeholderAPIKey
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	if client != nil {
		cfg.HTTPClient = client
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", openAIError(o.Name(), err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		if choice.FinishReason == openai.FinishReasonContentFilter {
			return "", &BlockedError{Reason: string(choice.FinishReason)}
		}
		return "", ErrEmptyResponse
	}
	return text, nil
}

func openAIError(backend string, err error) error {
	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
	)
	switch {
	case errors.As(err, &apiErr):
		return &UpstreamError{Backend: backend, StatusCode: apiErr.HTTPStatusCode, Err: err}
	case errors.As(err, &reqErr):
		return &UpstreamError{Backend: backend, StatusCode: reqErr.HTTPStatusCode, Err: err}
	default:
		return &UpstreamError{Backend: backend, Err: err}
	}
}
