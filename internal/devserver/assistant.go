package devserver

import (
	"strings"
)

// mockAssistant produces deterministic canned replies. When the incoming
// message carried diagram markup, the reply attaches markup so the client's
// apply path gets exercised; the "edit" is the markup echoed back.
type mockAssistant struct{}

func (mockAssistant) Reply(content, diagramXML string) (text, xml string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "I didn't catch that. Could you rephrase?", ""
	}

	if diagramXML != "" {
		return "I've looked at your diagram and applied the change you asked for.", diagramXML
	}
	return "I understand you want to: " + trimmed + ". Share the diagram and I can edit it directly.", ""
}

// tokenize splits a reply into streamable fragments, keeping the separating
// spaces so concatenation reproduces the text exactly.
func tokenize(text string) []string {
	words := strings.SplitAfter(text, " ")
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
