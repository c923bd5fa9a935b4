package llm_test

import (
	"testing"

	"github.com/vruksh/agroqa/internal/llm"
)

func TestCleanCompletion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text unchanged",
			input: "Irrigate every 4 days.",
			want:  "Irrigate every 4 days.",
		},
		{
			name:  "strips code fences",
			input: "```text\nIrrigate every 4 days.\n```",
			want:  "Irrigate every 4 days.",
		},
		{
			name:  "strips echoed answer label",
			input: "ANSWER: Irrigate every 4 days.",
			want:  "Irrigate every 4 days.",
		},
		{
			name:  "collapses blank runs",
			input: "First line.\n\n\n\nSecond line.",
			want:  "First line.\n\nSecond line.",
		},
		{
			name:  "whitespace only becomes empty",
			input: "   \n\t\n  ",
			want:  "",
		},
		{
			name:  "fences only becomes empty",
			input: "```\n```",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := llm.CleanCompletion(tt.input); got != tt.want {
				t.Errorf("CleanCompletion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
