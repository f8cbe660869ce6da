package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// azureMaxChars is the per-document limit of the Text Analytics API.
const azureMaxChars = 5120

// AzureAnalyzer calls the Azure Text Analytics v3.1 REST API. The three
// endpoints are queried concurrently.
type AzureAnalyzer struct {
	endpoint   string
	apiKey     string
	language   string
	httpClient *http.Client
}

func NewAzureAnalyzer(endpoint, apiKey string) *AzureAnalyzer {
	return &AzureAnalyzer{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		language:   "en",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type azureDocument struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

type azureRequest struct {
	Documents []azureDocument `json:"documents"`
}

type azureError struct {
	ID    string `json:"id"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type azureSentimentResponse struct {
	Documents []struct {
		ID               string `json:"id"`
		Sentiment        string `json:"sentiment"`
		ConfidenceScores struct {
			Positive float64 `json:"positive"`
			Neutral  float64 `json:"neutral"`
			Negative float64 `json:"negative"`
		} `json:"confidenceScores"`
	} `json:"documents"`
	Errors []azureError `json:"errors"`
}

type azureKeyPhrasesResponse struct {
	Documents []struct {
		ID         string   `json:"id"`
		KeyPhrases []string `json:"keyPhrases"`
	} `json:"documents"`
	Errors []azureError `json:"errors"`
}

type azureEntitiesResponse struct {
	Documents []struct {
		ID       string `json:"id"`
		Entities []struct {
			Text     string `json:"text"`
			Category string `json:"category"`
		} `json:"entities"`
	} `json:"documents"`
	Errors []azureError `json:"errors"`
}

func (a *AzureAnalyzer) AnalyzeText(ctx context.Context, text string) (Analysis, error) {
	if a.endpoint == "" || a.apiKey == "" {
		return Analysis{}, fmt.Errorf("azure text analytics endpoint and key are required")
	}
	text = tail(text, azureMaxChars)

	var (
		sentiment azureSentimentResponse
		phrases   azureKeyPhrasesResponse
		entities  azureEntitiesResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.post(gctx, "/sentiment", text, &sentiment) })
	g.Go(func() error { return a.post(gctx, "/keyPhrases", text, &phrases) })
	g.Go(func() error { return a.post(gctx, "/entities/recognition/general", text, &entities) })
	if err := g.Wait(); err != nil {
		return Analysis{}, err
	}

	if err := firstAzureError(sentiment.Errors, phrases.Errors, entities.Errors); err != nil {
		return Analysis{}, err
	}
	if len(sentiment.Documents) == 0 {
		return Analysis{}, fmt.Errorf("azure sentiment response has no documents")
	}

	scores := sentiment.Documents[0].ConfidenceScores
	out := Analysis{
		Sentiment:  clamp01(scores.Positive + scores.Neutral/2),
		Entities:   []Entity{},
		KeyPhrases: []string{},
	}
	if len(phrases.Documents) > 0 {
		out.KeyPhrases = append(out.KeyPhrases, phrases.Documents[0].KeyPhrases...)
	}
	if len(entities.Documents) > 0 {
		for _, e := range entities.Documents[0].Entities {
			out.Entities = append(out.Entities, Entity{Text: e.Text, Type: e.Category})
		}
	}
	return out, nil
}

func (a *AzureAnalyzer) post(ctx context.Context, path, text string, into any) error {
	body, err := json.Marshal(azureRequest{Documents: []azureDocument{{ID: "1", Language: a.language, Text: text}}})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/text/analytics/v3.1"+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("text analytics %s failed with status %d: %s", path, resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", path, err)
	}
	return nil
}

func firstAzureError(lists ...[]azureError) error {
	for _, errs := range lists {
		if len(errs) > 0 {
			return fmt.Errorf("text analytics rejected document: %s: %s", errs[0].Error.Code, errs[0].Error.Message)
		}
	}
	return nil
}

// tail keeps the last n runes; the current message sits at the end of the
// concatenated conversation.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
