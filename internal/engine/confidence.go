package engine

import "github.com/vruksh/agroqa/pkg/types"

// Confidence factor weights. Retrieval similarity dominates; chunk
// support, source diversity, and weather completeness share the rest.
const (
	weightSimilarity = 0.4
	weightSupport    = 0.2
	weightDiversity  = 0.2
	weightWeather    = 0.2

	// multiProviderBonus rewards weather values corroborated by more
	// than one provider.
	multiProviderBonus = 0.05

	// supportSaturation is the chunk count at which the support factor
	// maxes out.
	supportSaturation = 5

	// diversitySaturation is the distinct-document count at which the
	// diversity factor maxes out.
	diversitySaturation = 3
)

// scoreConfidence blends the evidence quality behind an answer into a
// single [0, 1] signal. It orders answers by how well-grounded they
// are; it is not a calibrated probability.
func scoreConfidence(rr *types.RetrievalResult, wx *types.WeatherContext, included int) float64 {
	var similarity, support, diversity float64
	if rr != nil && !rr.Empty() {
		similarity = rr.TopScore()
		support = saturate(included, supportSaturation)
		diversity = saturate(len(rr.Sources()), diversitySaturation)
	}

	weather := wx.FieldCoverage()

	score := weightSimilarity*similarity +
		weightSupport*support +
		weightDiversity*diversity +
		weightWeather*weather

	if wx != nil && len(wx.Readings) > 1 {
		score += multiProviderBonus
	}
	return score
}

// clampConfidence bounds a score to [0, cap].
func clampConfidence(score, cap float64) float64 {
	if score < 0 {
		return 0
	}
	if score > cap {
		return cap
	}
	return score
}

func saturate(n, at int) float64 {
	if n >= at {
		return 1
	}
	if n <= 0 {
		return 0
	}
	return float64(n) / float64(at)
}
