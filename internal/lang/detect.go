// Package lang provides language detection and translation for the
// answering pipeline: inbound queries are normalized into the working
// language, and final answers are translated back to the query's
// original language.
package lang

import "unicode"

// scriptLanguage maps a Unicode script range to the language code
// assumed for text dominated by that script. Indic scripts map to their
// primary language; this is a heuristic, not a classifier.
var scriptLanguages = []struct {
	ranges *unicode.RangeTable
	code   string
}{
	{unicode.Devanagari, "hi"},
	{unicode.Bengali, "bn"},
	{unicode.Gurmukhi, "pa"},
	{unicode.Gujarati, "gu"},
	{unicode.Oriya, "or"},
	{unicode.Tamil, "ta"},
	{unicode.Telugu, "te"},
	{unicode.Kannada, "kn"},
	{unicode.Malayalam, "ml"},
	{unicode.Arabic, "ar"},
	{unicode.Cyrillic, "ru"},
}

// minScriptLetters is the minimum number of letters a script needs
// before it can determine the language.
const minScriptLetters = 3

// minScriptDominance is the fraction of letters a script must cover to
// determine the language.
const minScriptDominance = 0.3

// DetectLanguage guesses the dominant language of text from its Unicode
// scripts. A non-Latin script wins when it covers at least 30% of the
// letters and at least 3 letters; otherwise Latin text is assumed to be
// English. The confidence is the winning script's letter fraction.
// Empty or letterless input returns ("en", 0).
func DetectLanguage(text string) (string, float64) {
	var totalLetters, latinLetters int
	scriptCounts := make([]int, len(scriptLanguages))

	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		totalLetters++
		if unicode.Is(unicode.Latin, r) {
			latinLetters++
			continue
		}
		for i, s := range scriptLanguages {
			if unicode.Is(s.ranges, r) {
				scriptCounts[i]++
				break
			}
		}
	}

	if totalLetters == 0 {
		return "en", 0
	}

	best := -1
	for i, count := range scriptCounts {
		if count < minScriptLetters {
			continue
		}
		if best == -1 || count > scriptCounts[best] {
			best = i
		}
	}

	if best >= 0 {
		dominance := float64(scriptCounts[best]) / float64(totalLetters)
		if dominance >= minScriptDominance {
			return scriptLanguages[best].code, dominance
		}
	}

	return "en", float64(latinLetters) / float64(totalLetters)
}
