package knowledge

import (
	"regexp"
	"strings"

	"github.com/bgdnvk/resonance/internal/lexicon"
)

var termRe = regexp.MustCompile(`[a-z0-9]+`)

// MinTermLength is the shortest token kept as an index term.
const MinTermLength = 2

// Tokenizer normalizes text into index terms. The same tokenizer must be
// used at index and query time.
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer builds a tokenizer with the given stopword list.
func NewTokenizer(stopwords []string) *Tokenizer {
	return &Tokenizer{stopwords: lexicon.Set(stopwords)}
}

// DefaultTokenizer uses the built-in stopword list.
func DefaultTokenizer() *Tokenizer {
	return NewTokenizer(lexicon.Default().Stopwords)
}

// Tokenize lowercases text, extracts [a-z0-9]+ runs and drops short tokens
// and stopwords.
func (t *Tokenizer) Tokenize(text string) []string {
	raw := termRe.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) < MinTermLength {
			continue
		}
		if _, stop := t.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// TermFrequency counts occurrences per token.
func TermFrequency(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf
}
