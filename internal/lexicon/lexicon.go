// Package lexicon holds the keyword tables used for signal extraction,
// routing and tokenization.
package lexicon

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon groups every keyword list the pipeline consults.
type Lexicon struct {
	Urgency       []string `yaml:"urgency"`
	Positive      []string `yaml:"positive"`
	Negative      []string `yaml:"negative"`
	Clarification []string `yaml:"clarification"`
	Creative      []string `yaml:"creative"`
	Technical     []string `yaml:"technical"`
	Stopwords     []string `yaml:"stopwords"`
}

var (
	defaultUrgency = []string{"urgent", "emergency", "asap", "immediately"}

	defaultPositive = []string{
		"thanks", "thank", "great", "awesome", "love", "amazing", "happy", "excellent",
		"perfect", "wonderful", "glad", "appreciate", "helpful", "excited", "good", "nice",
	}

	defaultNegative = []string{
		"angry", "annoyed", "broken", "useless", "terrible", "awful", "hate", "frustrated",
		"frustrating", "worst", "bad", "fail", "failed", "failing", "wrong", "stuck",
		"upset", "ridiculous", "disappointed", "horrible", "sucks", "never", "again",
	}

	defaultClarification = []string{
		"don't understand", "dont understand", "do not understand", "confused", "confusing",
		"what do you mean", "unclear", "makes no sense", "lost me", "can you explain",
	}

	defaultCreative = []string{
		"creative", "write", "story", "emotional", "empathy", "feelings",
		"personal", "relationship", "communication", "soft",
	}

	defaultTechnical = []string{
		"scale", "growth", "strategy", "business", "analysis", "data", "complex",
		"technical", "code", "system", "process", "optimization", "implementation",
	}

	defaultStopwords = []string{
		"a", "about", "above", "after", "again", "against", "all", "am", "an", "and", "any",
		"are", "as", "at", "be", "because", "been", "before", "being", "below", "between",
		"both", "but", "by", "can", "did", "do", "does", "doing", "down", "during", "each",
		"few", "for", "from", "further", "had", "has", "have", "having", "he", "her", "here",
		"hers", "herself", "him", "himself", "his", "how", "i", "if", "in", "into", "is", "it",
		"its", "itself", "just", "me", "more", "most", "my", "myself", "no", "nor", "not",
		"now", "of", "off", "on", "once", "only", "or", "other", "our", "ours", "ourselves",
		"out", "over", "own", "same", "she", "should", "so", "some", "such", "than", "that",
		"the", "their", "theirs", "them", "themselves", "then", "there", "these", "they",
		"this", "those", "through", "to", "too", "under", "until", "up", "very", "was", "we",
		"were", "what", "when", "where", "which", "while", "who", "whom", "why", "will",
		"with", "would", "you", "your", "yours", "yourself", "yourselves",
	}
)

// Default returns a fresh copy of the built-in tables.
func Default() *Lexicon {
	return &Lexicon{
		Urgency:       slices.Clone(defaultUrgency),
		Positive:      slices.Clone(defaultPositive),
		Negative:      slices.Clone(defaultNegative),
		Clarification: slices.Clone(defaultClarification),
		Creative:      slices.Clone(defaultCreative),
		Technical:     slices.Clone(defaultTechnical),
		Stopwords:     slices.Clone(defaultStopwords),
	}
}

// Load reads a YAML override file. Lists present in the file replace the
// defaults; omitted lists keep them. An empty path returns Default().
func Load(path string) (*Lexicon, error) {
	lex := Default()
	if strings.TrimSpace(path) == "" {
		return lex, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}

	var override Lexicon
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon file %s: %w", path, err)
	}

	merge(&lex.Urgency, override.Urgency)
	merge(&lex.Positive, override.Positive)
	merge(&lex.Negative, override.Negative)
	merge(&lex.Clarification, override.Clarification)
	merge(&lex.Creative, override.Creative)
	merge(&lex.Technical, override.Technical)
	merge(&lex.Stopwords, override.Stopwords)
	return lex, nil
}

func merge(dst *[]string, src []string) {
	if len(src) == 0 {
		return
	}
	out := make([]string, 0, len(src))
	for _, s := range src {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

// Clone returns a deep copy.
func (l *Lexicon) Clone() *Lexicon {
	return &Lexicon{
		Urgency:       slices.Clone(l.Urgency),
		Positive:      slices.Clone(l.Positive),
		Negative:      slices.Clone(l.Negative),
		Clarification: slices.Clone(l.Clarification),
		Creative:      slices.Clone(l.Creative),
		Technical:     slices.Clone(l.Technical),
		Stopwords:     slices.Clone(l.Stopwords),
	}
}

// Set builds a lookup set from a word list.
func Set(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// ContainsAny reports whether lowered text contains any term as a substring.
// text must already be lowercase.
func ContainsAny(text string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(text, term) {
			return true
		}
	}
	return false
}
