package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/vruksh/agroqa/internal/config"
	"github.com/vruksh/agroqa/internal/llm"
	"github.com/vruksh/agroqa/pkg/types"
)

// contextBudgetTokens bounds the grounding context included in the
// answering prompt. Roughly 4 characters per token.
const contextBudgetTokens = 1800

// Composer turns the gathered evidence for one query into an Answer.
// The LLM writes the text when it can; a deterministic assembly of the
// top chunk and weather fields covers completion failures so a query
// never dies at the last stage.
type Composer struct {
	generator llm.TextGenerator
	cap       float64
	fallback  float64
}

// NewComposer creates a composer. caps come from the pipeline config.
func NewComposer(generator llm.TextGenerator, cfg config.PipelineConfig) *Composer {
	capVal := cfg.ConfidenceCap
	if capVal <= 0 || capVal > 1 {
		capVal = 0.95
	}
	fallback := cfg.FallbackCap
	if fallback <= 0 || fallback > capVal {
		fallback = 0.45
	}
	return &Composer{generator: generator, cap: capVal, fallback: fallback}
}

// Compose builds the Answer for one query from the retrieval matches
// and weather context, either of which may be absent.
func (c *Composer) Compose(ctx context.Context, nq types.NormalizedQuery, intent types.Intent,
	wx *types.WeatherContext, rr *types.RetrievalResult) types.Answer {

	included := selectGroundingChunks(rr, contextBudgetTokens)

	answer := types.Answer{
		QueryID:     nq.ID,
		Intent:      intent,
		Sources:     chunkSources(included),
		Weather:     wx,
		GeneratedAt: time.Now().UTC(),
	}

	// A weather question with a complete context needs no model: the
	// numbers speak for themselves and the answer stays deterministic.
	if intent == types.IntentWeather && wx != nil && wx.FieldCoverage() == 1.0 {
		answer.Text = weatherAnswer(wx)
		answer.Confidence = clampConfidence(scoreConfidence(rr, wx, len(included)), c.cap)
		return answer
	}

	prompt := llm.AnswerPrompt(intent, nq.CanonicalText, llm.FormatChunkContext(included), weatherSummary(wx))

	raw, err := c.generator.Complete(ctx, prompt)
	text := ""
	if err == nil {
		text = llm.CleanCompletion(raw)
	}
	if err != nil || text == "" {
		if err != nil {
			log.Printf("Warning: completion failed, composing fallback answer: %v", err)
		} else {
			log.Printf("Warning: completion returned no usable text, composing fallback answer")
		}
		answer.Text = c.fallbackAnswer(included, wx)
		answer.Fallback = true
		answer.Degradations = append(answer.Degradations, "answer generation unavailable; assembled from sources directly")
		answer.Confidence = clampConfidence(scoreConfidence(rr, wx, len(included)), c.fallback)
		return answer
	}

	answer.Text = text
	answer.Confidence = clampConfidence(scoreConfidence(rr, wx, len(included)), c.cap)
	return answer
}

// selectGroundingChunks picks matches in score order until the token
// budget is spent. At least one chunk is always included when any
// matched.
func selectGroundingChunks(rr *types.RetrievalResult, budget int) []types.ScoredChunk {
	if rr == nil || rr.Empty() {
		return nil
	}
	var included []types.ScoredChunk
	used := 0
	for _, match := range rr.Matches {
		cost := estimateTokens(match.Chunk.Text)
		if len(included) > 0 && used+cost > budget {
			break
		}
		included = append(included, match)
		used += cost
	}
	return included
}

// estimateTokens approximates the token count of text.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func chunkSources(included []types.ScoredChunk) []string {
	seen := make(map[string]struct{}, len(included))
	var sources []string
	for _, match := range included {
		if _, ok := seen[match.Chunk.DocumentID]; ok {
			continue
		}
		seen[match.Chunk.DocumentID] = struct{}{}
		sources = append(sources, match.Chunk.DocumentID)
	}
	return sources
}

// fallbackAnswer assembles a deterministic answer from whatever
// evidence is at hand.
func (c *Composer) fallbackAnswer(included []types.ScoredChunk, wx *types.WeatherContext) string {
	var parts []string
	if len(included) > 0 {
		text := strings.TrimSpace(included[0].Chunk.Text)
		if estimateTokens(text) > 120 {
			text = truncateWords(text, 100)
		}
		parts = append(parts, fmt.Sprintf("From %s: %s", included[0].Chunk.DocumentID, text))
	}
	if summary := weatherSummary(wx); summary != "" {
		parts = append(parts, summary)
	}
	if len(parts) == 0 {
		return "No relevant information was found for this question. Try rephrasing it or naming the crop and location explicitly."
	}
	return strings.Join(parts, "\n\n")
}

// weatherAnswer renders a complete weather context as the answer text,
// with every claim attributed to its provider.
func weatherAnswer(wx *types.WeatherContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Weather for %s, %s to %s:\n", wx.Location,
		wx.Range.Start.Format("2 Jan 2006"), wx.Range.End.Format("2 Jan 2006"))

	type line struct {
		field  types.WeatherField
		label  string
		format string
	}
	lines := []line{
		{types.FieldTemperature, "Temperature", "%.1f°C"},
		{types.FieldHumidity, "Humidity", "%.0f%%"},
		{types.FieldRainfall, "Expected rainfall", "%.1f mm"},
		{types.FieldWindSpeed, "Wind speed", "%.1f m/s"},
		{types.FieldSoilMoisture, "Soil moisture", "%.0f%%"},
	}
	for _, l := range lines {
		if v, ok := wx.Field(l.field); ok {
			fmt.Fprintf(&sb, "- %s: "+l.format+" (%s)\n", l.label, v.Value, v.Provider)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// weatherSummary returns the context's one-line summary, or rebuilds a
// terse one from the primary fields when the summary is missing.
func weatherSummary(wx *types.WeatherContext) string {
	if wx == nil {
		return ""
	}
	if wx.Summary != "" {
		return wx.Summary
	}
	if len(wx.Primary) == 0 {
		return ""
	}
	fields := make([]string, 0, len(wx.Primary))
	for f, v := range wx.Primary {
		fields = append(fields, fmt.Sprintf("%s %.1f", f, v.Value))
	}
	sort.Strings(fields)
	return wx.Location + ": " + strings.Join(fields, ", ")
}

func truncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[:n], " ") + "..."
}
