package ai

import (
	"context"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Anthropic talks to the Messages API.
type Anthropic struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewAnthropic(model, apiKey, baseURL string) *Anthropic {
	p := Profile{Provider: "anthropic", Model: model, BaseURL: baseURL}.withDefaults()
	return &Anthropic{model: p.Model, apiKey: apiKey, baseURL: p.BaseURL, httpClient: &http.Client{}}
}

func (a *Anthropic) Name() string { return a.model }

func (a *Anthropic) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	if strings.TrimSpace(a.apiKey) == "" {
		return "", missingKey("Anthropic")
	}
	ctx, cancel := withTimeout(ctx, params.Timeout)
	defer cancel()

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	reqBody := anthropicRequest{
		Model:       a.model,
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []map[string]any{{"type": "text", "text": prompt}},
		}},
	}

	var parsed anthropicResponse
	headers := map[string]string{
		"x-api-key":         strings.TrimSpace(a.apiKey),
		"anthropic-version": anthropicVersion,
	}
	if err := postJSON(ctx, a.httpClient, "Anthropic", a.baseURL+"/messages", headers, reqBody, &parsed); err != nil {
		return "", err
	}

	for _, c := range parsed.Content {
		if strings.TrimSpace(c.Text) != "" {
			return c.Text, nil
		}
	}
	return "", malformed("Anthropic", "no response content", nil)
}
