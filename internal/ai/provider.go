// Package ai wraps the inference vendors behind a single completion
// interface and maps their failures onto the shared error codes.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/bgdnvk/resonance/internal/errors"
)

// Params tunes one completion call.
type Params struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Provider is an inference backend. Name is the model attribution reported
// to callers.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, params Params) (string, error)
}

// withTimeout applies params.Timeout when set.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// classifyTransport maps a failed call onto the error taxonomy.
func classifyTransport(provider string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.New(apperrors.ProviderTimeout, provider+" call exceeded its deadline", err)
	}
	return apperrors.New(apperrors.ProviderUnavailable, provider+" call failed", err)
}

// classifyStatus maps a non-200 HTTP status onto the error taxonomy.
func classifyStatus(provider string, status int, body []byte) error {
	msg := fmt.Sprintf("%s API request failed with status %d: %s", provider, status, truncate(string(body), 512))
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.New(apperrors.AuthenticationError, msg, nil)
	default:
		return apperrors.New(apperrors.ProviderUnavailable, msg, nil)
	}
}

func malformed(provider, what string, cause error) error {
	return apperrors.New(apperrors.MalformedResponse, provider+": "+what, cause)
}

func missingKey(provider string) error {
	return apperrors.New(apperrors.AuthenticationError, provider+" API key not configured", nil)
}

// postJSON sends body as JSON and decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return classifyTransport(provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(provider, resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return malformed(provider, "failed to unmarshal response", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// sanitizeASCII strips non-ASCII bytes; the aws CLI rejects them in argv and
// request files.
func sanitizeASCII(s string) string {
	allASCII := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 128 {
			allASCII = false
			break
		}
	}
	if allASCII {
		return s
	}
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] < 128 {
			b = append(b, s[i])
		}
	}
	return string(b)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
