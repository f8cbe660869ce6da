package orchestrator

import (
	"fmt"
	"strings"

	"github.com/bgdnvk/resonance/internal/knowledge"
	"github.com/bgdnvk/resonance/internal/model"
)

// BuildPrompt assembles the backend prompt: companion context, grounding
// snippets, prior turns and the current message. Empty sections are left out.
func BuildPrompt(in model.InboundRequest, snippets []knowledge.Snippet) string {
	var sb strings.Builder

	if c := strings.TrimSpace(in.CompanionContext); c != "" {
		sb.WriteString("Companion context:\n")
		sb.WriteString(c)
		sb.WriteString("\n\n")
	}

	if len(snippets) > 0 {
		sb.WriteString("Reference material:\n")
		for i, s := range snippets {
			fmt.Fprintf(&sb, "[%d] %s (%s)\n%s\n", i+1, s.Title, s.Path, strings.TrimSpace(s.Text))
			if i < len(snippets)-1 {
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}

	if history := in.History(); len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, turn := range history {
			sb.WriteString("- ")
			sb.WriteString(strings.TrimSpace(turn))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Message:\n")
	sb.WriteString(in.Text)
	return sb.String()
}
