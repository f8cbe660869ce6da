// Package synth merges backend outputs and applies the escalation overlay.
// Nothing here calls a backend.
package synth

import (
	"strings"

	"github.com/bgdnvk/resonance/internal/model"
)

const (
	// Delimiter separates the two answers of a dual-synthesis response.
	Delimiter = "\n\n---\n**Alternate perspective**\n\n"

	// AttributionSeparator joins the model names of a dual response.
	AttributionSeparator = " + "

	// Apology is returned when no backend produced an answer.
	Apology = "I'm sorry, I wasn't able to put together a response just now. Please try again in a moment."

	// PriorityFraming opens responses at escalation level 3.
	PriorityFraming = "I can see this is urgent, so let's focus on what matters most right now."

	// FollowUp closes responses at escalation level 2.
	FollowUp = "If that doesn't resolve it, tell me what you've already tried and we'll work out the next step together."
)

// Part is one backend's answer.
type Part struct {
	Content string
	Model   string
}

// Fallback is the static apology response.
func Fallback() model.SynthesizedResponse {
	return model.SynthesizedResponse{Content: Apology, ModelAttribution: model.FallbackModel}
}

// Single wraps one backend's answer.
func Single(p Part) model.SynthesizedResponse {
	return model.SynthesizedResponse{Content: p.Content, ModelAttribution: p.Model}
}

// Merge concatenates two answers in the given order and attributes both.
func Merge(first, second Part) model.SynthesizedResponse {
	return model.SynthesizedResponse{
		Content:          strings.TrimSpace(first.Content) + Delimiter + strings.TrimSpace(second.Content),
		ModelAttribution: first.Model + AttributionSeparator + second.Model,
	}
}

// Attributions splits a composite attribution back into model names.
func Attributions(resp model.SynthesizedResponse) []string {
	return strings.Split(resp.ModelAttribution, AttributionSeparator)
}

// Apply overlays escalation framing. Fallback responses pass through
// unchanged so a failure never claims urgency. Applying twice gives the same
// result as applying once.
func Apply(resp model.SynthesizedResponse, level int) model.SynthesizedResponse {
	if resp.IsFallback() {
		resp.EscalationApplied = false
		return resp
	}

	switch {
	case level >= 3:
		if !strings.HasPrefix(resp.Content, PriorityFraming) {
			resp.Content = PriorityFraming + "\n\n" + resp.Content
		}
		resp.EscalationApplied = true
	case level == 2:
		if !strings.HasSuffix(resp.Content, FollowUp) {
			resp.Content = strings.TrimRight(resp.Content, " \n") + "\n\n" + FollowUp
		}
	}
	return resp
}
