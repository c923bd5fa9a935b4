package lang

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/vruksh/agroqa/pkg/types"
)

// Normalizer carries queries into the working language and answers back
// out of it. Translation failures never abort the pipeline: the
// original text passes through with the degraded flag set.
type Normalizer struct {
	translator  Translator
	workingLang string
}

// NewNormalizer creates a Normalizer. workingLang is the canonical
// pipeline language every downstream stage operates in.
func NewNormalizer(translator Translator, workingLang string) *Normalizer {
	if workingLang == "" {
		workingLang = "en"
	}
	return &Normalizer{
		translator:  translator,
		workingLang: workingLang,
	}
}

// WorkingLanguage returns the canonical language code.
func (n *Normalizer) WorkingLanguage() string {
	return n.workingLang
}

// Normalize detects the query's language and translates the text into
// the working language when needed.
//
// Empty or whitespace-only input is rejected with ErrInvalidInput before
// any external call. Translation failure passes the original text
// through with TranslationDegraded set instead of failing.
func (n *Normalizer) Normalize(ctx context.Context, q types.Query) (types.NormalizedQuery, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return types.NormalizedQuery{}, fmt.Errorf("%w: query text is empty", types.ErrInvalidInput)
	}

	detected, confidence := DetectLanguage(text)

	// A declared language wins over the script heuristic; agreement
	// between the two raises confidence.
	source := detected
	if q.Language != "" {
		source = q.Language
		if q.Language == detected && confidence < 0.9 {
			confidence = 0.9
		}
	}

	nq := types.NormalizedQuery{
		Query:               q,
		CanonicalText:       text,
		DetectedLanguage:    source,
		DetectionConfidence: confidence,
	}

	if source == n.workingLang {
		return nq, nil
	}

	translated, err := n.translator.Translate(ctx, text, source, n.workingLang)
	if err != nil {
		log.Printf("Warning: translation to %s failed, passing original through: %v", n.workingLang, err)
		nq.TranslationDegraded = true
		return nq, nil
	}

	nq.CanonicalText = translated
	return nq, nil
}

// TranslateBack translates an answer's text to the target language,
// leaving scores, sources, and weather data untouched. The working
// language and unknown targets are no-ops. Failure returns the
// untranslated answer with TranslationDegraded set.
func (n *Normalizer) TranslateBack(ctx context.Context, ans types.Answer, target string) types.Answer {
	if target == "" || target == n.workingLang {
		return ans
	}

	translated, err := n.translator.Translate(ctx, ans.Text, n.workingLang, target)
	if err != nil {
		log.Printf("Warning: back-translation to %s failed, returning working-language answer: %v", target, err)
		ans.TranslationDegraded = true
		ans.Degradations = append(ans.Degradations, "answer translation failed; returned in working language")
		return ans
	}

	ans.Text = translated
	ans.Language = target
	return ans
}
