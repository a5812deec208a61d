package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Gemini calls generateContent on the Gemini Developer API.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, client *http.Client, baseURL, apiVersion, model, apiKey string) (*Gemini, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: client,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		client: c,
		model:  strings.TrimPrefix(model, "models/"),
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// finish reasons that mean the text was withheld
var blockedFinishReasons = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:            true,
	genai.FinishReasonRecitation:        true,
	genai.FinishReasonBlocklist:         true,
	genai.FinishReasonProhibitedContent: true,
	genai.FinishReasonSPII:              true,
}

func (g *Gemini) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(opts.Temperature)),
		MaxOutputTokens: int32(opts.MaxTokens),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", geminiError(g.Name(), err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", &BlockedError{Reason: string(resp.PromptFeedback.BlockReason)}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		if blockedFinishReasons[candidate.FinishReason] {
			return "", &BlockedError{Reason: string(candidate.FinishReason)}
		}
		return "", ErrEmptyResponse
	}
	return text, nil
}

func geminiError(backend string, err error) error {
	var (
		apiErr    genai.APIError
		apiErrPtr *genai.APIError
	)
	switch {
	case errors.As(err, &apiErr):
		return &UpstreamError{Backend: backend, StatusCode: apiErr.Code, Err: err}
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		return &UpstreamError{Backend: backend, StatusCode: apiErrPtr.Code, Err: err}
	default:
		return &UpstreamError{Backend: backend, Err: err}
	}
}
