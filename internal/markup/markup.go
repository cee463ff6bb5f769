// Package markup recognizes diagram-markup code fences inside assistant
// message text so they can be hidden from display once applied.
package markup

import (
	"strings"
)

// AppliedNote replaces a stripped diagram fence in the rendered message.
const AppliedNote = "(diagram changes applied automatically)"

// StripDiagramBlocks removes fenced code blocks that carry diagram markup,
// replacing each with AppliedNote, and reports whether any were found.
// Fenced blocks with other content are preserved verbatim.
func StripDiagramBlocks(content string) (string, bool) {
	if !strings.Contains(content, "```") {
		return content, false
	}

	lines := strings.Split(content, "\n")
	var out []string
	stripped := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !strings.HasPrefix(strings.TrimSpace(line), "```") {
			out = append(out, line)
			continue
		}

		info := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
		var body []string
		end := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "```" {
				end = j
				break
			}
			body = append(body, lines[j])
		}
		if end == -1 {
			// Unterminated fence; keep the rest verbatim.
			out = append(out, lines[i:]...)
			break
		}

		if isDiagramFence(info, strings.Join(body, "\n")) {
			out = append(out, AppliedNote)
			stripped = true
		} else {
			out = append(out, lines[i:end+1]...)
		}
		i = end
	}

	return strings.Join(out, "\n"), stripped
}

func isDiagramFence(info, body string) bool {
	switch strings.ToLower(info) {
	case "xml", "bpmn", "bpmn-xml":
		return true
	}
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "<?xml") || strings.HasPrefix(trimmed, "<bpmn")
}
