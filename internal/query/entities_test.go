package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vruksh/agroqa/internal/query"
	"github.com/vruksh/agroqa/pkg/types"
)

func TestExtractEntitiesLocations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single location after preposition",
			text: "What is the weather in Mumbai for the next 5 days?",
			want: []string{"Mumbai"},
		},
		{
			name: "multi-word location",
			text: "Rainfall forecast in New Delhi please",
			want: []string{"New Delhi"},
		},
		{
			name: "multiple candidates kept in order",
			text: "Is it raining in Pune or near Nashik?",
			want: []string{"Pune", "Nashik"},
		},
		{
			name: "suffix phrasing",
			text: "Soil moisture for Nagpur district",
			want: []string{"Nagpur"},
		},
		{
			name: "no location",
			text: "when should i sow wheat",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities := query.ExtractEntities(tt.text)
			assert.Equal(t, tt.want, entities.Locations())
		})
	}
}

func TestExtractEntitiesCropsAreCanonical(t *testing.T) {
	entities := query.ExtractEntities("Should I plant corn or paddy after the tomatoes?")

	crops := entities.Crops()
	assert.Contains(t, crops, "maize", "corn normalizes to maize")
	assert.Contains(t, crops, "rice", "paddy normalizes to rice")
	assert.Contains(t, crops, "tomato")
	assert.NotContains(t, crops, "corn")
}

func TestExtractEntitiesParameters(t *testing.T) {
	entities := query.ExtractEntities("What are the temperature, humidity and soil moisture in Indore?")

	params := entities.Parameters()
	assert.Contains(t, params, string(types.FieldTemperature))
	assert.Contains(t, params, string(types.FieldHumidity))
	assert.Contains(t, params, string(types.FieldSoilMoisture))
}

func TestExtractEntitiesEmptyIsValid(t *testing.T) {
	entities := query.ExtractEntities("hello there")
	assert.NotNil(t, entities)
	assert.Empty(t, entities.Locations())
	assert.Empty(t, entities.Crops())
	assert.Empty(t, entities.Parameters())
}
