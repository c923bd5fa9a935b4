package llm

import "strings"

// CleanCompletion normalizes raw completion output into answer text.
// Models wrap answers in markdown fences or echo the "ANSWER:" label
// despite instructions; both are stripped. Returns an empty string when
// nothing usable remains, which callers treat as a failed completion.
func CleanCompletion(raw string) string {
	text := strings.ReplaceAll(raw, "```text", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	// Drop an echoed answer label, case-insensitively.
	for _, label := range []string{"ANSWER:", "Answer:", "answer:"} {
		if strings.HasPrefix(text, label) {
			text = strings.TrimSpace(strings.TrimPrefix(text, label))
			break
		}
	}

	// Collapse runs of blank lines left by fence removal.
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, trimmed)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
