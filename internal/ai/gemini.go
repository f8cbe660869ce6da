package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	apperrors "github.com/bgdnvk/resonance/internal/errors"
)

// Gemini calls the Gemini API with an API key. Without one the SDK falls
// back to its environment (GOOGLE_API_KEY, or Vertex AI with Application
// Default Credentials when GOOGLE_GENAI_USE_VERTEXAI is set).
// The SDK client is created on first use.
type Gemini struct {
	model   string
	apiKey  string
	baseURL string

	once   sync.Once
	client *genai.Client
	err    error
}

func NewGemini(_ context.Context, model, apiKey, baseURL string) (*Gemini, error) {
	p := Profile{Provider: "gemini", Model: model}.withDefaults()
	return &Gemini{model: p.Model, apiKey: apiKey, baseURL: baseURL}, nil
}

func (g *Gemini) Name() string { return g.model }

func (g *Gemini) sdk(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		cfg := &genai.ClientConfig{}
		if g.apiKey != "" {
			cfg.APIKey = g.apiKey
			cfg.Backend = genai.BackendGeminiAPI
		}
		if g.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
		}
		g.client, g.err = genai.NewClient(context.WithoutCancel(ctx), cfg)
	})
	return g.client, g.err
}

func (g *Gemini) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return "", missingCredentials(err)
	}
	ctx, cancel := withTimeout(ctx, params.Timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(params.Temperature)),
	}
	if params.MaxTokens > 0 {
		config.MaxOutputTokens = int32(params.MaxTokens)
	}

	content := genai.NewContentFromText(prompt, genai.RoleUser)
	resp, err := client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, config)
	if err != nil {
		return "", classifyGemini(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", malformed("Gemini", "no response candidates", nil)
	}
	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			result.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(result.String()) == "" {
		return "", malformed("Gemini", "empty response text", nil)
	}
	return result.String(), nil
}

func missingCredentials(err error) error {
	return apperrors.New(apperrors.AuthenticationError, "Gemini client could not be initialized", err)
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus("Gemini", apiErr.Code, []byte(fmt.Sprintf("%s %s", apiErr.Status, apiErr.Message)))
	}
	return classifyTransport("Gemini", err)
}
