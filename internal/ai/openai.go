package ai

import (
	"context"
	"net/http"
	"strings"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// OpenAI talks to any OpenAI-compatible chat/completions endpoint.
type OpenAI struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewOpenAI(model, apiKey, baseURL string) *OpenAI {
	p := Profile{Provider: "openai", Model: model, BaseURL: baseURL}.withDefaults()
	return &OpenAI{model: p.Model, apiKey: apiKey, baseURL: p.BaseURL, httpClient: &http.Client{}}
}

func (o *OpenAI) Name() string { return o.model }

func (o *OpenAI) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	if strings.TrimSpace(o.apiKey) == "" {
		return "", missingKey("OpenAI")
	}
	ctx, cancel := withTimeout(ctx, params.Timeout)
	defer cancel()

	request := openAIRequest{
		Model:       o.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}

	var response openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	if err := postJSON(ctx, o.httpClient, "OpenAI", o.baseURL+"/chat/completions", headers, request, &response); err != nil {
		return "", err
	}

	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return "", malformed("OpenAI", "no response content", nil)
	}
	return response.Choices[0].Message.Content, nil
}
