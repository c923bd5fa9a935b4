package llm_test

import (
	"strings"
	"testing"

	"github.com/vruksh/agroqa/internal/llm"
	"github.com/vruksh/agroqa/pkg/types"
)

func TestAnswerPromptContainsSections(t *testing.T) {
	prompt := llm.AnswerPrompt(
		types.IntentHybrid,
		"Should I spray my cotton this week?",
		"[Source: pest-guide.csv]\npest: bollworm | action: spray at dusk",
		"temperature: 31.0 C, humidity: 65%",
	)

	for _, want := range []string{
		"Should I spray my cotton this week?",
		"pest-guide.csv",
		"temperature: 31.0 C",
		"KNOWLEDGE CONTEXT:",
		"WEATHER DATA:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAnswerPromptMarksMissingContext(t *testing.T) {
	prompt := llm.AnswerPrompt(types.IntentWeather, "rain tomorrow?", "", "")

	if !strings.Contains(prompt, "no relevant knowledge passages") {
		t.Error("empty knowledge context must be marked unavailable")
	}
	if !strings.Contains(prompt, "no weather data available") {
		t.Error("empty weather summary must be marked unavailable")
	}
}

func TestAnswerPromptIntentInstructionsDiffer(t *testing.T) {
	weather := llm.AnswerPrompt(types.IntentWeather, "q", "k", "w")
	advice := llm.AnswerPrompt(types.IntentAgriAdvice, "q", "k", "w")

	if weather == advice {
		t.Error("expected different instructions per intent")
	}
}

func TestAnswerPromptUnlistedIntentFallsBack(t *testing.T) {
	got := llm.AnswerPrompt(types.Intent("bogus"), "q", "k", "w")
	want := llm.AnswerPrompt(types.IntentUnknown, "q", "k", "w")
	if got != want {
		t.Error("unlisted intent must use the unknown-intent instructions")
	}
}

func TestFormatChunkContext(t *testing.T) {
	got := llm.FormatChunkContext([]types.ScoredChunk{
		{Chunk: types.Chunk{DocumentID: "doc-a", Text: "first passage"}, Score: 0.9},
		{Chunk: types.Chunk{DocumentID: "doc-b", Text: "second passage"}, Score: 0.8},
	})

	if !strings.Contains(got, "[Source: doc-a]\nfirst passage") {
		t.Errorf("missing first block in %q", got)
	}
	if !strings.Contains(got, "[Source: doc-b]\nsecond passage") {
		t.Errorf("missing second block in %q", got)
	}
	if llm.FormatChunkContext(nil) != "" {
		t.Error("empty matches must produce empty context")
	}
}
