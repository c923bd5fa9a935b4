// Package llm provides the completion and embedding capabilities for the
// answering pipeline: prompt templates per query intent, provider clients
// for Ollama and OpenAI, and cleanup of raw completion output.
package llm

import (
	"fmt"
	"strings"

	"github.com/vruksh/agroqa/pkg/types"
)

// intentInstructions maps each intent to the answering stance the model
// should take. Unknown intent gets the most conservative instructions.
var intentInstructions = map[types.Intent]string{
	types.IntentWeather: `Focus on the weather data. Interpret the forecast for farming operations:
spraying windows, irrigation need, field workability. Mention concrete numbers
(temperature, humidity, rainfall) where the weather data provides them.`,

	types.IntentAgriAdvice: `Focus on the knowledge context. Give practical, season-aware agronomic
advice a farmer can act on. Prefer recommendations that appear in the
knowledge context over general knowledge.`,

	types.IntentHybrid: `Combine both sources: use the weather data to time or qualify the
agronomic advice from the knowledge context (e.g. delay spraying before rain).`,

	types.IntentUnknown: `Answer cautiously from the knowledge context. If the context does not
cover the question, say so briefly instead of speculating.`,
}

// AnswerPrompt builds the grounded answering prompt for one query.
// knowledgeContext and weatherSummary may be empty; the template marks
// missing sections as unavailable so the model does not invent data.
func AnswerPrompt(intent types.Intent, question, knowledgeContext, weatherSummary string) string {
	instructions, ok := intentInstructions[intent]
	if !ok {
		instructions = intentInstructions[types.IntentUnknown]
	}

	if strings.TrimSpace(knowledgeContext) == "" {
		knowledgeContext = "(no relevant knowledge passages were found)"
	}
	if strings.TrimSpace(weatherSummary) == "" {
		weatherSummary = "(no weather data available)"
	}

	return fmt.Sprintf(`You are an agricultural advisor answering a farmer's question.
Answer ONLY from the context below. Do not invent data that is not present.
Write plain text, no markdown. Keep the answer under 150 words.

%s

KNOWLEDGE CONTEXT:
%s

WEATHER DATA:
%s

QUESTION: %s

ANSWER:`, instructions, knowledgeContext, weatherSummary, question)
}

// FormatChunkContext renders retrieved chunks as the knowledge section of
// the prompt, one block per chunk tagged with its source document so the
// model can ground statements.
func FormatChunkContext(matches []types.ScoredChunk) string {
	if len(matches) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("[Source: %s]\n%s", m.Chunk.DocumentID, m.Chunk.Text))
	}
	return sb.String()
}
