package semantic

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bgdnvk/resonance/internal/lexicon"
	"github.com/bgdnvk/resonance/internal/model"
)

// DefaultTimeout bounds one analyzer call.
const DefaultTimeout = 2 * time.Second

const (
	urgentConfidence   = 0.9
	confusedConfidence = 0.6
	positiveThreshold  = 0.7
	negativeThreshold  = 0.3
)

// Extractor classifies a conversation turn into an EmotionalSignal.
type Extractor struct {
	analyzer      TextAnalyzer
	urgency       []string
	clarification []string
	timeout       time.Duration
	logger        *zap.Logger
}

type ExtractorOptions struct {
	Lexicon *lexicon.Lexicon
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewExtractor(analyzer TextAnalyzer, opts ExtractorOptions) *Extractor {
	lex := opts.Lexicon
	if lex == nil {
		lex = lexicon.Default()
	}
	if analyzer == nil {
		analyzer = NewLexiconAnalyzer(lex)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Extractor{
		analyzer:      analyzer,
		urgency:       lex.Urgency,
		clarification: lex.Clarification,
		timeout:       opts.Timeout,
		logger:        opts.Logger,
	}
}

// Extract analyzes history followed by text. It never fails: an analyzer
// error or timeout yields the neutral signal.
func (e *Extractor) Extract(ctx context.Context, text string, history []string) model.EmotionalSignal {
	turns := make([]string, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, text)

	actx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	analysis, err := e.analyze(actx, strings.Join(turns, "\n"))
	if err != nil {
		e.logger.Warn("Text analysis failed, using neutral signal", zap.Error(err))
		return model.NeutralSignal()
	}

	signal := e.classify(analysis, text)
	e.logger.Debug("Extracted emotional signal",
		zap.String("emotion", string(signal.Emotion)),
		zap.Float64("confidence", signal.Confidence),
		zap.Int("escalation", signal.EscalationLevel),
		zap.String("tone", signal.SuggestedTone))
	return signal
}

// analyze runs the analyzer in its own goroutine so a collaborator that
// ignores its context still cannot hold the caller past the deadline.
func (e *Extractor) analyze(ctx context.Context, text string) (Analysis, error) {
	type result struct {
		analysis Analysis
		err      error
	}
	done := make(chan result, 1)
	go func() {
		a, err := e.analyzer.AnalyzeText(ctx, text)
		done <- result{a, err}
	}()

	select {
	case r := <-done:
		return r.analysis, r.err
	case <-ctx.Done():
		return Analysis{}, ctx.Err()
	}
}

func (e *Extractor) classify(a Analysis, current string) model.EmotionalSignal {
	switch {
	case e.mentionsUrgency(a):
		return model.NewSignal(model.EmotionUrgent, urgentConfidence)
	case a.Sentiment > positiveThreshold:
		return model.NewSignal(model.EmotionPositive, a.Sentiment)
	case a.Sentiment < negativeThreshold:
		return model.NewSignal(model.EmotionFrustrated, 1-a.Sentiment)
	case lexicon.ContainsAny(strings.ToLower(current), e.clarification):
		return model.NewSignal(model.EmotionConfused, confusedConfidence)
	default:
		return model.NeutralSignal()
	}
}

func (e *Extractor) mentionsUrgency(a Analysis) bool {
	for _, ent := range a.Entities {
		if lexicon.ContainsAny(strings.ToLower(ent.Text), e.urgency) {
			return true
		}
	}
	for _, phrase := range a.KeyPhrases {
		if lexicon.ContainsAny(strings.ToLower(phrase), e.urgency) {
			return true
		}
	}
	return false
}
