package synth

import (
	"strings"
	"testing"

	"github.com/bgdnvk/resonance/internal/model"
)

func TestApply(t *testing.T) {
	base := model.SynthesizedResponse{Content: "Restart the worker pool.", ModelAttribution: "gpt-test"}

	tests := []struct {
		name       string
		level      int
		wantPrefix string
		wantSuffix string
		applied    bool
	}{
		{"level 3 frames", 3, PriorityFraming + "\n\n", "Restart the worker pool.", true},
		{"level 2 follows up", 2, "Restart the worker pool.", "\n\n" + FollowUp, false},
		{"level 1 passes through", 1, "Restart the worker pool.", "Restart the worker pool.", false},
		{"level 0 passes through", 0, "Restart the worker pool.", "Restart the worker pool.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(base, tt.level)
			if !strings.HasPrefix(got.Content, tt.wantPrefix) {
				t.Errorf("content %q missing prefix %q", got.Content, tt.wantPrefix)
			}
			if !strings.HasSuffix(got.Content, tt.wantSuffix) {
				t.Errorf("content %q missing suffix %q", got.Content, tt.wantSuffix)
			}
			if got.EscalationApplied != tt.applied {
				t.Errorf("EscalationApplied = %v, want %v", got.EscalationApplied, tt.applied)
			}
			if got.ModelAttribution != "gpt-test" {
				t.Errorf("attribution changed to %q", got.ModelAttribution)
			}
		})
	}
}

func TestApplyPassThroughIsUnmodified(t *testing.T) {
	base := model.SynthesizedResponse{Content: "  exact\ncontent  ", ModelAttribution: "m"}
	if got := Apply(base, 1); got != base {
		t.Errorf("Apply() = %+v, want %+v", got, base)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	base := model.SynthesizedResponse{Content: "Here is the plan.", ModelAttribution: "m"}
	for level := 0; level <= 3; level++ {
		once := Apply(base, level)
		twice := Apply(once, level)
		if once != twice {
			t.Errorf("level %d: Apply twice = %+v, once = %+v", level, twice, once)
		}
	}
}

func TestApplyNeverFramesFallback(t *testing.T) {
	for level := 0; level <= 3; level++ {
		got := Apply(Fallback(), level)
		if got.Content != Apology || got.EscalationApplied {
			t.Errorf("level %d: fallback was modified: %+v", level, got)
		}
	}
}

func TestMerge(t *testing.T) {
	got := Merge(Part{Content: "Analytic view.\n", Model: "gpt-test"}, Part{Content: "Empathetic view.", Model: "claude-test"})

	want := "Analytic view." + Delimiter + "Empathetic view."
	if got.Content != want {
		t.Errorf("content = %q, want %q", got.Content, want)
	}
	if got.ModelAttribution != "gpt-test + claude-test" {
		t.Errorf("attribution = %q", got.ModelAttribution)
	}
	if names := Attributions(got); len(names) != 2 || names[0] != "gpt-test" || names[1] != "claude-test" {
		t.Errorf("Attributions() = %v", names)
	}
}

func TestFallback(t *testing.T) {
	fb := Fallback()
	if !fb.IsFallback() || fb.ModelAttribution != "fallback" {
		t.Errorf("Fallback() = %+v", fb)
	}
}
