// Package routing maps a message and its emotional signal to a backend
// selection through an ordered table of predicates.
package routing

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bgdnvk/resonance/internal/lexicon"
	"github.com/bgdnvk/resonance/internal/model"
)

// DualMinLength is the message length (in characters) a request must exceed
// before both backends are consulted.
const DualMinLength = 200

// DualMinConfidence is the signal confidence a dual request must exceed.
const DualMinConfidence = 0.7

// Input is what every predicate sees. Lower is the lowercased message.
type Input struct {
	Message   string
	Lower     string
	Signal    model.EmotionalSignal
	Preferred model.Backend
}

// Rule pairs a predicate with the decision it produces. When Resolve is set
// it computes the decision from the input instead of using Decision.
type Rule struct {
	ID       string
	Name     string
	Match    func(Input) bool
	Decision model.RoutingDecision
	Resolve  func(Input) model.RoutingDecision
}

func (r Rule) decide(in Input) model.RoutingDecision {
	d := r.Decision
	if r.Resolve != nil {
		d = r.Resolve(in)
	}
	d.Rule = r.ID
	return d
}

// Policy evaluates its rules in order; the first match wins. A Policy holds
// no mutable state and is safe for concurrent use.
type Policy struct {
	rules    []Rule
	fallback Rule
}

// DefaultIntensity is the tier an explicit backend preference runs at when
// no content rule matched.
func DefaultIntensity(b model.Backend) model.Intensity {
	switch b {
	case model.BackendEmpathetic:
		return model.IntensityStandard
	case model.BackendDual:
		return model.IntensityMaximum
	default:
		return model.IntensityIntense
	}
}

// NewPolicy builds the routing table from the creative and technical lists
// of lex.
func NewPolicy(lex *lexicon.Lexicon) *Policy {
	if lex == nil {
		lex = lexicon.Default()
	}
	creative := slices.Clone(lex.Creative)
	technical := slices.Clone(lex.Technical)

	rules := []Rule{
		{
			ID:    "escalation",
			Name:  "High emotional escalation",
			Match: func(in Input) bool { return in.Signal.EscalationLevel >= 2 },
			Decision: model.RoutingDecision{
				Primary:   model.BackendEmpathetic,
				Intensity: model.IntensityStandard,
				Rationale: "high emotional escalation",
			},
		},
		{
			ID:    "creative",
			Name:  "Creative or emotional topic",
			Match: func(in Input) bool { return lexicon.ContainsAny(in.Lower, creative) },
			Decision: model.RoutingDecision{
				Primary:   model.BackendEmpathetic,
				Intensity: model.IntensityStandard,
				Rationale: "creative or emotional topic",
			},
		},
		{
			// Strict specialization of "technical", so it must run first.
			ID:   "dual",
			Name: "Long confident technical request",
			Match: func(in Input) bool {
				return utf8.RuneCountInString(in.Message) > DualMinLength &&
					in.Signal.Confidence > DualMinConfidence &&
					lexicon.ContainsAny(in.Lower, technical)
			},
			Decision: model.RoutingDecision{
				Primary:   model.BackendDual,
				Intensity: model.IntensityMaximum,
				Rationale: "long, high-confidence technical request benefits from both perspectives",
			},
		},
		{
			ID:    "technical",
			Name:  "Technical or business topic",
			Match: func(in Input) bool { return lexicon.ContainsAny(in.Lower, technical) },
			Decision: model.RoutingDecision{
				Primary:   model.BackendAnalytic,
				Intensity: model.IntensityIntense,
				Rationale: "technical or business topic",
			},
		},
		{
			// Only stands in for the default route; never overrides a content rule.
			ID:    "preferred",
			Name:  "Caller backend preference",
			Match: func(in Input) bool { return in.Preferred != "" },
			Resolve: func(in Input) model.RoutingDecision {
				return model.RoutingDecision{
					Primary:   in.Preferred,
					Intensity: DefaultIntensity(in.Preferred),
					Rationale: "caller requested " + string(in.Preferred) + " backend",
				}
			},
		},
	}

	return &Policy{
		rules: rules,
		fallback: Rule{
			ID:    "default",
			Name:  "Default",
			Match: func(Input) bool { return true },
			Decision: model.RoutingDecision{
				Primary:   model.BackendAnalytic,
				Intensity: model.IntensityIntense,
				Rationale: "default route",
			},
		},
	}
}

// Decide is a pure function of its arguments. An unknown preferred backend
// is ignored.
func (p *Policy) Decide(message string, signal model.EmotionalSignal, preferred string) model.RoutingDecision {
	in := Input{
		Message: message,
		Lower:   strings.ToLower(message),
		Signal:  signal,
	}
	if b, ok := model.ParseBackend(strings.ToLower(strings.TrimSpace(preferred))); ok {
		in.Preferred = b
	}

	for _, rule := range p.rules {
		if rule.Match(in) {
			return rule.decide(in)
		}
	}
	return p.fallback.decide(in)
}

// Rules returns the table in evaluation order, ending with the default rule.
func (p *Policy) Rules() []Rule {
	return append(slices.Clone(p.rules), p.fallback)
}
