// Package semantic derives the emotional signal of a conversation turn from
// a text-analytics pass over the message and its history.
package semantic

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"github.com/bgdnvk/resonance/internal/lexicon"
)

// Entity is a recognized span of text and its category.
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Analysis is what a text-analytics service reports about a text.
// Sentiment is in [0,1]; 0 is fully negative, 1 fully positive.
type Analysis struct {
	Sentiment  float64  `json:"sentiment"`
	Entities   []Entity `json:"entities"`
	KeyPhrases []string `json:"keyPhrases"`
}

// TextAnalyzer scores sentiment and extracts entities and key phrases.
type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, text string) (Analysis, error)
}

// EntityUrgency tags urgency terms found by the lexicon analyzer.
const EntityUrgency = "Urgency"

var wordRe = regexp.MustCompile(`[a-z0-9']+`)

// LexiconAnalyzer is the offline analyzer: sentiment comes from counting
// positive and negative words, entities are urgency terms, and key phrases
// are the distinct content words.
type LexiconAnalyzer struct {
	positive  map[string]struct{}
	negative  map[string]struct{}
	urgency   map[string]struct{}
	stopwords map[string]struct{}
}

func NewLexiconAnalyzer(lex *lexicon.Lexicon) *LexiconAnalyzer {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &LexiconAnalyzer{
		positive:  lexicon.Set(lex.Positive),
		negative:  lexicon.Set(lex.Negative),
		urgency:   lexicon.Set(lex.Urgency),
		stopwords: lexicon.Set(lex.Stopwords),
	}
}

// AnalyzeText never fails; the context is only checked for cancellation.
func (a *LexiconAnalyzer) AnalyzeText(ctx context.Context, text string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}

	words := wordRe.FindAllString(strings.ToLower(text), -1)
	var pos, neg int
	out := Analysis{Entities: []Entity{}, KeyPhrases: []string{}}
	for _, w := range words {
		w = strings.Trim(w, "'")
		if w == "" {
			continue
		}
		if _, ok := a.positive[w]; ok {
			pos++
		}
		if _, ok := a.negative[w]; ok {
			neg++
		}
		if _, ok := a.urgency[w]; ok && !containsEntity(out.Entities, w) {
			out.Entities = append(out.Entities, Entity{Text: w, Type: EntityUrgency})
		}
		if _, stop := a.stopwords[w]; stop || len(w) < 3 {
			continue
		}
		if !slices.Contains(out.KeyPhrases, w) {
			out.KeyPhrases = append(out.KeyPhrases, w)
		}
	}

	// Laplace smoothing keeps a text with no opinion words at 0.5.
	out.Sentiment = float64(pos+1) / float64(pos+neg+2)
	return out, nil
}

func containsEntity(entities []Entity, text string) bool {
	return slices.ContainsFunc(entities, func(e Entity) bool { return e.Text == text })
}
