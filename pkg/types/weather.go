package types

import (
	"sort"
	"time"
)

// WeatherField identifies a measured weather/soil quantity.
type WeatherField string

// Measured field constants. Units are fixed per field so readings from
// different providers are directly comparable after conversion.
const (
	// FieldTemperature is air temperature in degrees Celsius
	FieldTemperature WeatherField = "temperature"

	// FieldHumidity is relative humidity in percent
	FieldHumidity WeatherField = "humidity"

	// FieldRainfall is accumulated precipitation in millimeters
	FieldRainfall WeatherField = "rainfall"

	// FieldWindSpeed is wind speed in meters per second
	FieldWindSpeed WeatherField = "wind_speed"

	// FieldSoilMoisture is topsoil (0-10cm) volumetric moisture in percent
	FieldSoilMoisture WeatherField = "soil_moisture"
)

// AllWeatherFields lists every measured field, used when computing
// completeness of a reconciled context.
var AllWeatherFields = []WeatherField{
	FieldTemperature,
	FieldHumidity,
	FieldRainfall,
	FieldWindSpeed,
	FieldSoilMoisture,
}

// Coordinates is a geocoded point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ProviderReading holds the raw fields one provider returned for a
// location and time range. Entries may be partially populated when the
// provider could not supply every field.
type ProviderReading struct {
	// Provider is the reporting provider's name
	Provider string `json:"provider"`

	// FetchedAt is when the reading was obtained
	FetchedAt time.Time `json:"fetched_at"`

	// Fields maps each measured field to its value
	Fields map[WeatherField]float64 `json:"fields"`
}

// Has reports whether the reading contains the given field.
func (r ProviderReading) Has(f WeatherField) bool {
	_, ok := r.Fields[f]
	return ok
}

// FieldValue is one reconciled field in the primary view, retaining the
// provider it came from for attribution.
type FieldValue struct {
	Value    float64 `json:"value"`
	Provider string  `json:"provider"`
}

// WeatherContext is the fused weather/soil picture for one resolved
// location and time range. Readings hold every provider's raw data;
// Primary is the reconciled view chosen by provider priority. A context
// with some providers missing is valid.
type WeatherContext struct {
	// Location is the resolved location text that geocoded successfully
	Location string `json:"location"`

	// Coordinates is the geocoded point used for provider queries
	Coordinates Coordinates `json:"coordinates"`

	// Range is the time range the readings cover
	Range TimeRange `json:"range"`

	// Readings holds raw per-provider data keyed by provider name
	Readings map[string]ProviderReading `json:"readings"`

	// Primary is the reconciled view, one value per available field
	Primary map[WeatherField]FieldValue `json:"primary"`

	// Summary is a short human-readable description of conditions
	Summary string `json:"summary,omitempty"`

	// FetchedAt is when fusion completed
	FetchedAt time.Time `json:"fetched_at"`
}

// Field returns the reconciled value for f, if present.
func (w *WeatherContext) Field(f WeatherField) (FieldValue, bool) {
	if w == nil || w.Primary == nil {
		return FieldValue{}, false
	}
	v, ok := w.Primary[f]
	return v, ok
}

// Providers returns the names of all providers that contributed raw
// readings, sorted for stable attribution output.
func (w *WeatherContext) Providers() []string {
	if w == nil || len(w.Readings) == 0 {
		return nil
	}
	names := make([]string, 0, len(w.Readings))
	for name := range w.Readings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldCoverage returns the fraction of measured fields present in the
// primary view, in [0, 1].
func (w *WeatherContext) FieldCoverage() float64 {
	if w == nil || len(w.Primary) == 0 {
		return 0
	}
	return float64(len(w.Primary)) / float64(len(AllWeatherFields))
}
