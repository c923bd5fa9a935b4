package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vruksh/agroqa/internal/query"
	"github.com/vruksh/agroqa/pkg/types"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name string
		text string
		want types.Intent
	}{
		{
			name: "pure weather question",
			text: "What is the weather in Mumbai for the next 5 days?",
			want: types.IntentWeather,
		},
		{
			name: "forecast phrasing",
			text: "Will it rain tomorrow in Pune?",
			want: types.IntentWeather,
		},
		{
			name: "pure agronomy question",
			text: "How to control pests on my tomato plants?",
			want: types.IntentAgriAdvice,
		},
		{
			name: "sowing advice",
			text: "When should I sow wheat this season?",
			want: types.IntentAgriAdvice,
		},
		{
			name: "weather plus crop is hybrid",
			text: "Should I irrigate my wheat given the rain forecast?",
			want: types.IntentHybrid,
		},
		{
			name: "no recognizable signal",
			text: "Tell me a story about a king.",
			want: types.IntentUnknown,
		},
		{
			name: "weak single signal leans hybrid",
			text: "Is it too hot right now?",
			want: types.IntentHybrid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := query.ClassifyIntent(tt.text)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid(), "intent must be in the closed set")
		})
	}
}

func TestClassifyNeverErrorsAndAlwaysValid(t *testing.T) {
	for _, text := range []string{
		"", "???", "12345", "ਕਣਕ ਕਦੋਂ ਬੀਜਣੀ ਹੈ", "rain rain rain crop crop crop",
	} {
		intent, entities := query.Classify(text)
		assert.True(t, intent.Valid())
		assert.NotNil(t, entities)
	}
}
