// Package model defines the value types shared across the orchestration pipeline.
package model

import (
	"slices"
	"time"
)

type Emotion string

const (
	EmotionUrgent     Emotion = "urgent"
	EmotionFrustrated Emotion = "frustrated"
	EmotionConfused   Emotion = "confused"
	EmotionNeutral    Emotion = "neutral"
	EmotionPositive   Emotion = "positive"
)

// escalationTable is the fixed emotion -> escalation mapping. Nothing else
// assigns an escalation level.
var escalationTable = map[Emotion]int{
	EmotionUrgent:     3,
	EmotionFrustrated: 2,
	EmotionConfused:   1,
	EmotionNeutral:    0,
	EmotionPositive:   0,
}

var toneTable = map[Emotion]string{
	EmotionUrgent:     "calm-and-prioritized",
	EmotionFrustrated: "supportive-and-direct",
	EmotionConfused:   "patient-and-clarifying",
	EmotionNeutral:    "balanced",
	EmotionPositive:   "warm-and-encouraging",
}

// EscalationFor returns the table value for emotion. Unknown labels map to 0.
func EscalationFor(e Emotion) int {
	return escalationTable[e]
}

// ToneFor returns the observability hint for emotion.
func ToneFor(e Emotion) string {
	if tone, ok := toneTable[e]; ok {
		return tone
	}
	return toneTable[EmotionNeutral]
}

// EmotionalSignal is derived once per turn and never mutated.
type EmotionalSignal struct {
	Emotion         Emotion `json:"emotion"`
	Confidence      float64 `json:"confidence"`
	EscalationLevel int     `json:"escalationLevel"`
	SuggestedTone   string  `json:"suggestedTone"`
}

// NewSignal builds a signal with the escalation level and tone looked up from
// the fixed tables. Confidence is clamped to [0,1].
func NewSignal(e Emotion, confidence float64) EmotionalSignal {
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}
	return EmotionalSignal{
		Emotion:         e,
		Confidence:      confidence,
		EscalationLevel: EscalationFor(e),
		SuggestedTone:   ToneFor(e),
	}
}

// NeutralSignal is the fail-open default.
func NeutralSignal() EmotionalSignal {
	return NewSignal(EmotionNeutral, 0.5)
}

type Backend string

const (
	BackendAnalytic   Backend = "analytic"
	BackendEmpathetic Backend = "empathetic"
	BackendDual       Backend = "dual"
)

// ParseBackend maps a caller hint onto a Backend. Unknown or empty hints
// report false.
func ParseBackend(s string) (Backend, bool) {
	switch Backend(s) {
	case BackendAnalytic, BackendEmpathetic, BackendDual:
		return Backend(s), true
	default:
		return "", false
	}
}

type Intensity string

const (
	IntensityStandard Intensity = "standard"
	IntensityIntense  Intensity = "intense"
	IntensityMaximum  Intensity = "maximum"
)

// Rank orders intensities: standard < intense < maximum.
func (i Intensity) Rank() int {
	switch i {
	case IntensityStandard:
		return 0
	case IntensityIntense:
		return 1
	case IntensityMaximum:
		return 2
	default:
		return -1
	}
}

type RoutingDecision struct {
	Primary   Backend   `json:"primary"`
	Intensity Intensity `json:"intensity"`
	Rationale string    `json:"rationale"`
	Rule      string    `json:"rule,omitempty"`
}

type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// BackendInvocation lives only for the duration of a dispatch call.
type BackendInvocation struct {
	BackendID string        `json:"backendId"`
	Prompt    string        `json:"-"`
	Timeout   time.Duration `json:"timeout"`
	Outcome   Outcome       `json:"outcome"`
	Result    string        `json:"result,omitempty"`
	Attempts  int           `json:"attempts"`
	Err       error         `json:"-"`
}

type SynthesizedResponse struct {
	Content           string `json:"content"`
	ModelAttribution  string `json:"modelAttribution"`
	EscalationApplied bool   `json:"escalationApplied"`
}

// FallbackModel tags the static apology response.
const FallbackModel = "fallback"

// IsFallback reports whether the response is the static apology.
func (r SynthesizedResponse) IsFallback() bool {
	return r.ModelAttribution == FallbackModel
}

// InboundRequest is the per-turn context object handed to every stage.
type InboundRequest struct {
	Text             string
	history          []string
	CompanionContext string
	PreferredBackend string
}

// NewInboundRequest copies history so later mutation of the caller's slice
// is invisible to the pipeline.
func NewInboundRequest(text string, history []string, companionContext, preferred string) InboundRequest {
	return InboundRequest{
		Text:             text,
		history:          slices.Clone(history),
		CompanionContext: companionContext,
		PreferredBackend: preferred,
	}
}

// History returns a copy of the prior turns, most recent last.
func (r InboundRequest) History() []string {
	return slices.Clone(r.history)
}
