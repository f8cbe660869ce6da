package ai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Profile describes one configured backend.
type Profile struct {
	Provider   string `mapstructure:"provider" yaml:"provider"`
	Model      string `mapstructure:"model" yaml:"model"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	APIKeyEnv  string `mapstructure:"api_key_env" yaml:"api_key_env,omitempty"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile,omitempty"`
	Region     string `mapstructure:"region" yaml:"region,omitempty"`
}

type providerDefaults struct {
	baseURL string
	model   string
	keyEnv  string
}

var defaultsByProvider = map[string]providerDefaults{
	"openai":     {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini", keyEnv: "OPENAI_API_KEY"},
	"deepseek":   {baseURL: "https://api.deepseek.com/v1", model: "deepseek-chat", keyEnv: "DEEPSEEK_API_KEY"},
	"anthropic":  {baseURL: "https://api.anthropic.com/v1", model: "claude-3-5-sonnet-latest", keyEnv: "ANTHROPIC_API_KEY"},
	"minimax":    {baseURL: "https://api.minimax.io/anthropic", model: "MiniMax-M1", keyEnv: "MINIMAX_API_KEY"},
	"gemini":     {model: "gemini-2.0-flash"},
	"gemini-api": {model: "gemini-2.0-flash", keyEnv: "GEMINI_API_KEY"},
	"bedrock":    {model: "anthropic.claude-3-5-sonnet-20240620-v1:0"},
}

func looksLikeEnvVarName(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return false
	}
	// Must be all caps/underscores/digits and start with a letter.
	for i, r := range s {
		if i == 0 {
			if r < 'A' || r > 'Z' {
				return false
			}
			continue
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			continue
		}
		return false
	}
	return true
}

// resolveEnvVarKeyPointer lets api_key name an environment variable instead
// of holding the secret.
func resolveEnvVarKeyPointer(apiKey string) string {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ""
	}
	if !looksLikeEnvVarName(apiKey) {
		return apiKey
	}
	if v := strings.TrimSpace(os.Getenv(apiKey)); v != "" {
		return v
	}
	return apiKey
}

// ResolvedKey returns the API key from api_key, then api_key_env, then the
// provider's conventional environment variable.
func (p Profile) ResolvedKey() string {
	if key := resolveEnvVarKeyPointer(p.APIKey); key != "" {
		return key
	}
	if p.APIKeyEnv != "" {
		if v := strings.TrimSpace(os.Getenv(p.APIKeyEnv)); v != "" {
			return v
		}
	}
	if d, ok := defaultsByProvider[p.normalizedProvider()]; ok && d.keyEnv != "" {
		return strings.TrimSpace(os.Getenv(d.keyEnv))
	}
	return ""
}

func (p Profile) normalizedProvider() string {
	switch name := strings.ToLower(strings.TrimSpace(p.Provider)); name {
	case "", "openai":
		return "openai"
	case "claude":
		return "bedrock"
	default:
		return name
	}
}

// withDefaults fills model and base URL from the provider table.
func (p Profile) withDefaults() Profile {
	p.Provider = p.normalizedProvider()
	d := defaultsByProvider[p.Provider]
	p.Model = firstNonEmpty(p.Model, d.model)
	p.BaseURL = strings.TrimRight(firstNonEmpty(p.BaseURL, d.baseURL), "/")
	if p.Provider == "bedrock" {
		p.AWSProfile = firstNonEmpty(p.AWSProfile, "default")
		p.Region = firstNonEmpty(p.Region, "us-east-1")
	}
	return p
}

// NewProvider builds the backend described by profile. Missing credentials
// are not an error here; the provider reports AUTHENTICATION_ERROR on use so
// the dispatcher can degrade instead of refusing to start.
func NewProvider(ctx context.Context, profile Profile) (Provider, error) {
	p := profile.withDefaults()
	httpClient := &http.Client{}

	switch p.Provider {
	case "openai", "deepseek":
		return &OpenAI{model: p.Model, apiKey: p.ResolvedKey(), baseURL: p.BaseURL, httpClient: httpClient}, nil
	case "anthropic", "minimax":
		return &Anthropic{model: p.Model, apiKey: p.ResolvedKey(), baseURL: p.BaseURL, httpClient: httpClient}, nil
	case "gemini", "gemini-api":
		return NewGemini(ctx, p.Model, p.ResolvedKey(), p.BaseURL)
	case "bedrock":
		return &Bedrock{model: p.Model, awsProfile: p.AWSProfile, region: p.Region, binary: "aws"}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", profile.Provider)
	}
}
