package query

import (
	"regexp"
	"strings"

	"github.com/vruksh/agroqa/pkg/types"
)

// locationPattern catches capitalized place names after a locative
// preposition ("in Mumbai", "near New Delhi"). It deliberately
// over-matches; geocoding later decides which candidates are real.
var locationPattern = regexp.MustCompile(`\b(?:in|at|near|around|for)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)

// locationSuffixPattern catches "<Name> city/district/state" phrasings.
var locationSuffixPattern = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+(?:city|town|village|district|state)\b`)

// stopwords that the capitalized-word heuristic must never treat as a
// place (sentence starts, month names, common query words).
var locationStopwords = map[string]bool{
	"What": true, "When": true, "Where": true, "Why": true, "How": true,
	"Which": true, "Will": true, "Should": true, "Can": true, "Is": true,
	"The": true, "My": true, "Next": true, "This": true, "Today": true,
	"Tomorrow": true, "January": true, "February": true, "March": true,
	"April": true, "May": true, "June": true, "July": true, "August": true,
	"September": true, "October": true, "November": true, "December": true,
}

// cropSynonyms maps surface mentions to the canonical crop name. The
// canonical name is what downstream stages and retrieval see.
var cropSynonyms = map[string]string{
	"corn": "maize", "maize": "maize",
	"wheat": "wheat",
	"rice": "rice", "paddy": "rice",
	"soybean": "soybean", "soybeans": "soybean", "soya": "soybean",
	"cotton":    "cotton",
	"sugarcane": "sugarcane",
	"tomato":    "tomato", "tomatoes": "tomato",
	"potato": "potato", "potatoes": "potato",
	"onion": "onion", "onions": "onion",
	"chickpea": "chickpea", "gram": "chickpea", "chana": "chickpea",
	"mustard":   "mustard",
	"groundnut": "groundnut", "peanut": "groundnut", "peanuts": "groundnut",
	"millet": "millet", "bajra": "millet", "jowar": "sorghum",
	"sorghum": "sorghum",
	"banana":  "banana", "bananas": "banana",
	"mango": "mango", "mangoes": "mango",
	"grape": "grape", "grapes": "grape",
	"chilli": "chilli", "chillies": "chilli", "chili": "chilli",
	"turmeric": "turmeric",
}

// parameterMentions maps query words to the measured field they ask
// about. These become EntityParameter values.
var parameterMentions = map[string]string{
	"temperature": string(types.FieldTemperature),
	"temp":        string(types.FieldTemperature),
	"humidity":    string(types.FieldHumidity),
	"humid":       string(types.FieldHumidity),
	"rain":        string(types.FieldRainfall),
	"rainfall":    string(types.FieldRainfall),
	"rains":       string(types.FieldRainfall),
	"precipitation": string(types.FieldRainfall),
	"wind":          string(types.FieldWindSpeed),
	"windy":         string(types.FieldWindSpeed),
	"moisture":      string(types.FieldSoilMoisture),
}

// ExtractEntities pulls location, crop, and parameter mentions out of
// working-language text. Absence of entities is a valid result: the
// returned set is always non-nil, possibly empty. Multiple location
// candidates are kept in order of appearance; geocoding disambiguates.
func ExtractEntities(text string) types.EntitySet {
	entities := make(types.EntitySet)

	for _, m := range locationPattern.FindAllStringSubmatch(text, -1) {
		if loc := cleanLocation(m[1]); loc != "" {
			entities.Add(types.EntityLocation, loc)
		}
	}
	for _, m := range locationSuffixPattern.FindAllStringSubmatch(text, -1) {
		if loc := cleanLocation(m[1]); loc != "" {
			entities.Add(types.EntityLocation, loc)
		}
	}

	lower := strings.ToLower(text)
	for _, w := range splitWords(lower) {
		if crop, ok := cropSynonyms[w]; ok {
			entities.Add(types.EntityCrop, crop)
		}
		if param, ok := parameterMentions[w]; ok {
			entities.Add(types.EntityParameter, param)
		}
	}
	// "soil moisture" is two words; catch it as a phrase so a bare
	// "moisture" mention and the full phrase land on the same field.
	if strings.Contains(lower, "soil moisture") {
		entities.Add(types.EntityParameter, string(types.FieldSoilMoisture))
	}

	return entities
}

// cleanLocation trims a candidate and drops leading stopwords the
// capitalization heuristic picked up. Returns "" when nothing remains.
func cleanLocation(candidate string) string {
	words := strings.Fields(candidate)
	for len(words) > 0 && locationStopwords[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func splitWords(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}
