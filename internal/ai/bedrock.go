package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	apperrors "github.com/bgdnvk/resonance/internal/errors"
)

type claudeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	Messages         []Message `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"content"`
}

// Bedrock invokes Claude models through the aws CLI, which picks up SSO
// sessions that the SDK credential chain does not refresh.
type Bedrock struct {
	model      string
	awsProfile string
	region     string
	binary     string
}

func NewBedrock(model, awsProfile, region string) *Bedrock {
	p := Profile{Provider: "bedrock", Model: model, AWSProfile: awsProfile, Region: region}.withDefaults()
	return &Bedrock{model: p.Model, awsProfile: p.AWSProfile, region: p.Region, binary: "aws"}
}

func (b *Bedrock) Name() string { return b.model }

func (b *Bedrock) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	ctx, cancel := withTimeout(ctx, params.Timeout)
	defer cancel()

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	request := claudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Temperature:      params.Temperature,
		Messages:         []Message{{Role: "user", Content: sanitizeASCII(prompt)}},
	}
	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Request body goes through a file to avoid argv length limits.
	bodyFile, err := os.CreateTemp("", "bedrock-request-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create body temp file: %w", err)
	}
	bodyFilePath := bodyFile.Name()
	defer os.Remove(bodyFilePath)
	if _, err := bodyFile.Write(requestBody); err != nil {
		bodyFile.Close()
		return "", fmt.Errorf("failed to write body temp file: %w", err)
	}
	bodyFile.Close()

	outFile, err := os.CreateTemp("", "bedrock-response-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	outFilePath := outFile.Name()
	outFile.Close()
	defer os.Remove(outFilePath)

	cmd := exec.CommandContext(ctx, b.binary, "bedrock-runtime", "invoke-model",
		"--model-id", b.model,
		"--body", "fileb://"+bodyFilePath,
		"--profile", b.awsProfile,
		"--region", b.region,
		outFilePath)
	cmd.Env = append(os.Environ(), "AWS_PROFILE="+b.awsProfile)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", classifyCLI(ctx, err, string(output))
	}

	responseData, err := os.ReadFile(outFilePath)
	if err != nil {
		return "", malformed("Bedrock", "failed to read response file", err)
	}
	var response claudeResponse
	if err := json.Unmarshal(responseData, &response); err != nil {
		return "", malformed("Bedrock", "failed to unmarshal response", err)
	}
	for _, c := range response.Content {
		if strings.TrimSpace(c.Text) != "" {
			return c.Text, nil
		}
	}
	return "", malformed("Bedrock", "no response content", nil)
}

func classifyCLI(ctx context.Context, err error, output string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.New(apperrors.ProviderTimeout, "Bedrock call exceeded its deadline", ctx.Err())
	}
	out := strings.ToLower(output)
	for _, marker := range []string{"expiredtoken", "unrecognizedclient", "accessdenied", "sso session", "unable to locate credentials"} {
		if strings.Contains(out, marker) {
			return apperrors.New(apperrors.AuthenticationError, "Bedrock credentials rejected: "+truncate(strings.TrimSpace(output), 512), err)
		}
	}
	return apperrors.New(apperrors.ProviderUnavailable, "AWS CLI call failed: "+truncate(strings.TrimSpace(output), 512), err)
}
