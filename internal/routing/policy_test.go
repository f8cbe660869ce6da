package routing

import (
	"strings"
	"testing"

	"github.com/bgdnvk/resonance/internal/lexicon"
	"github.com/bgdnvk/resonance/internal/model"
)

func longTechnicalMessage() string {
	msg := strings.Repeat("We need a database optimization plan for the nightly batch jobs. ", 4)
	return msg[:250]
}

func TestDecide(t *testing.T) {
	p := NewPolicy(nil)
	neutral := model.NeutralSignal()
	confident := model.NewSignal(model.EmotionNeutral, 0.8)

	tests := []struct {
		name      string
		message   string
		signal    model.EmotionalSignal
		preferred string
		primary   model.Backend
		intensity model.Intensity
		rule      string
	}{
		{
			name:      "urgent escalation",
			message:   "This is an emergency, I need help NOW",
			signal:    model.NewSignal(model.EmotionUrgent, 0.9),
			primary:   model.BackendEmpathetic,
			intensity: model.IntensityStandard,
			rule:      "escalation",
		},
		{
			name:      "frustration overrides technical terms",
			message:   "the code is broken again",
			signal:    model.NewSignal(model.EmotionFrustrated, 0.8),
			primary:   model.BackendEmpathetic,
			intensity: model.IntensityStandard,
			rule:      "escalation",
		},
		{
			name:      "confused is below the escalation threshold",
			message:   "what do you mean by that",
			signal:    model.NewSignal(model.EmotionConfused, 0.6),
			primary:   model.BackendAnalytic,
			intensity: model.IntensityIntense,
			rule:      "default",
		},
		{
			name:      "business analysis",
			message:   "Analyze the quarterly business growth trends and scale strategy",
			signal:    neutral,
			primary:   model.BackendAnalytic,
			intensity: model.IntensityIntense,
			rule:      "technical",
		},
		{
			name:      "creative",
			message:   "Tell me a STORY about a lighthouse",
			signal:    neutral,
			primary:   model.BackendEmpathetic,
			intensity: model.IntensityStandard,
			rule:      "creative",
		},
		{
			name:      "creative wins ties with technical",
			message:   "Help me write a business strategy",
			signal:    neutral,
			primary:   model.BackendEmpathetic,
			intensity: model.IntensityStandard,
			rule:      "creative",
		},
		{
			name:      "long confident technical request",
			message:   longTechnicalMessage(),
			signal:    confident,
			primary:   model.BackendDual,
			intensity: model.IntensityMaximum,
			rule:      "dual",
		},
		{
			name:      "long technical request at default confidence",
			message:   longTechnicalMessage(),
			signal:    neutral,
			primary:   model.BackendAnalytic,
			intensity: model.IntensityIntense,
			rule:      "technical",
		},
		{
			name:      "short confident technical request",
			message:   "database optimization plan",
			signal:    confident,
			primary:   model.BackendAnalytic,
			intensity: model.IntensityIntense,
			rule:      "technical",
		},
		{
			name:      "default",
			message:   "hello there",
			signal:    neutral,
			primary:   model.BackendAnalytic,
			intensity: model.IntensityIntense,
			rule:      "default",
		},
		{
			name:      "preferred dual",
			message:   "hello there",
			signal:    neutral,
			preferred: "Dual",
			primary:   model.BackendDual,
			intensity: model.IntensityMaximum,
			rule:      "preferred",
		},
		{
			name:      "preferred empathetic",
			message:   "how was your weekend",
			signal:    neutral,
			preferred: "empathetic",
			primary:   model.BackendEmpathetic,
			intensity: model.IntensityStandard,
			rule:      "preferred",
		},
		{
			name:      "escalation beats preference",
			message:   "urgent",
			signal:    model.NewSignal(model.EmotionUrgent, 0.9),
			preferred: "analytic",
			primary:   model.BackendEmpathetic,
			intensity: model.IntensityStandard,
			rule:      "escalation",
		},
		{
			name:      "unknown preference ignored",
			message:   "hello",
			signal:    neutral,
			preferred: "gpt-9",
			primary:   model.BackendAnalytic,
			intensity: model.IntensityIntense,
			rule:      "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Decide(tt.message, tt.signal, tt.preferred)
			if got.Primary != tt.primary || got.Intensity != tt.intensity || got.Rule != tt.rule {
				t.Errorf("Decide() = %s/%s via %q, want %s/%s via %q",
					got.Primary, got.Intensity, got.Rule, tt.primary, tt.intensity, tt.rule)
			}
			if got.Rationale == "" {
				t.Error("rationale should not be empty")
			}
		})
	}
}

func TestEscalationRationale(t *testing.T) {
	got := NewPolicy(nil).Decide("help", model.NewSignal(model.EmotionFrustrated, 0.9), "")
	if got.Rationale != "high emotional escalation" {
		t.Errorf("rationale = %q", got.Rationale)
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	p := NewPolicy(nil)
	msg := longTechnicalMessage()
	signal := model.NewSignal(model.EmotionPositive, 0.85)

	first := p.Decide(msg, signal, "")
	for i := 0; i < 100; i++ {
		if got := p.Decide(msg, signal, ""); got != first {
			t.Fatalf("iteration %d: %+v != %+v", i, got, first)
		}
	}
}

func TestDualLengthBoundary(t *testing.T) {
	p := NewPolicy(nil)
	signal := model.NewSignal(model.EmotionNeutral, 0.9)

	exact := "data " + strings.Repeat("x", DualMinLength-5)
	if got := p.Decide(exact, signal, ""); got.Primary != model.BackendAnalytic {
		t.Errorf("%d-char message routed to %s, want analytic", len(exact), got.Primary)
	}
	if got := p.Decide(exact+"x", signal, ""); got.Primary != model.BackendDual {
		t.Errorf("%d-char message routed to %s, want dual", len(exact)+1, got.Primary)
	}
}

func TestRulesOrder(t *testing.T) {
	var ids []string
	for _, r := range NewPolicy(nil).Rules() {
		ids = append(ids, r.ID)
	}
	want := "escalation,creative,dual,technical,preferred,default"
	if got := strings.Join(ids, ","); got != want {
		t.Errorf("rule order = %s, want %s", got, want)
	}
}

func TestPreferenceCannotOverrideContentRules(t *testing.T) {
	p := NewPolicy(nil)
	neutral := model.NeutralSignal()
	confident := model.NewSignal(model.EmotionNeutral, 0.8)

	tests := []struct {
		name    string
		message string
		signal  model.EmotionalSignal
		rule    string
	}{
		{"creative", "Tell me a story about a lighthouse", neutral, "creative"},
		{"dual", longTechnicalMessage(), confident, "dual"},
		{"technical", "Analyze the quarterly business growth trends and scale strategy", neutral, "technical"},
	}
	for _, tt := range tests {
		for _, preferred := range []string{"analytic", "empathetic", "dual"} {
			t.Run(tt.name+"/"+preferred, func(t *testing.T) {
				want := p.Decide(tt.message, tt.signal, "")
				got := p.Decide(tt.message, tt.signal, preferred)
				if got != want {
					t.Errorf("Decide(%q) = %+v, want %+v", preferred, got, want)
				}
				if got.Rule != tt.rule {
					t.Errorf("rule = %q, want %q", got.Rule, tt.rule)
				}
			})
		}
	}
}

func TestPreferenceOnlyReplacesDefault(t *testing.T) {
	p := NewPolicy(nil)
	got := p.Decide("hi", model.NeutralSignal(), "dual")
	if got.Rule != "preferred" || got.Primary != model.BackendDual {
		t.Fatalf("Decide() = %+v", got)
	}
	got = p.Decide("database optimization", model.NeutralSignal(), "dual")
	if got.Rule != "technical" || got.Primary != model.BackendAnalytic {
		t.Errorf("Decide() = %+v, want technical/analytic", got)
	}
}

func TestCustomLexicon(t *testing.T) {
	lex := lexicon.Default()
	lex.Technical = []string{"kubernetes"}
	p := NewPolicy(lex)

	if got := p.Decide("scale the kubernetes cluster", model.NeutralSignal(), ""); got.Rule != "technical" {
		t.Errorf("rule = %q, want technical", got.Rule)
	}
	if got := p.Decide("scale the cluster", model.NeutralSignal(), ""); got.Rule != "default" {
		t.Errorf("rule = %q, want default", got.Rule)
	}
}
