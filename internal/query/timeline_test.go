package query_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vruksh/agroqa/internal/query"
	"github.com/vruksh/agroqa/pkg/types"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestResolveTimeline(t *testing.T) {
	r := query.NewTimelineResolver(1, 120, 1)
	ref := day("2024-01-15")

	tests := []struct {
		name      string
		text      string
		wantStart string
		wantEnd   string
	}{
		{
			name:      "mumbai five day forecast",
			text:      "What is the weather in Mumbai for the next 5 days?",
			wantStart: "2024-01-15",
			wantEnd:   "2024-01-20",
		},
		{
			name:      "today",
			text:      "will it rain today",
			wantStart: "2024-01-15",
			wantEnd:   "2024-01-15",
		},
		{
			name:      "tomorrow",
			text:      "temperature tomorrow",
			wantStart: "2024-01-15",
			wantEnd:   "2024-01-16",
		},
		{
			name:      "spelled number of weeks",
			text:      "forecast for two weeks",
			wantStart: "2024-01-15",
			wantEnd:   "2024-01-29",
		},
		{
			name:      "next week",
			text:      "humidity next week",
			wantStart: "2024-01-15",
			wantEnd:   "2024-01-22",
		},
		{
			name:      "next month",
			text:      "rainfall over the next month",
			wantStart: "2024-01-15",
			wantEnd:   "2024-02-14",
		},
		{
			name:      "explicit single date",
			text:      "weather on 2024-03-01",
			wantStart: "2024-03-01",
			wantEnd:   "2024-03-01",
		},
		{
			name:      "explicit date range",
			text:      "rainfall from 2024-03-01 to 2024-03-10",
			wantStart: "2024-03-01",
			wantEnd:   "2024-03-10",
		},
		{
			name:      "inverted explicit range is swapped",
			text:      "rainfall between 2024-03-10 and 2024-03-01",
			wantStart: "2024-03-01",
			wantEnd:   "2024-03-10",
		},
		{
			name:      "no temporal expression uses default window",
			text:      "best fertilizer for wheat",
			wantStart: "2024-01-15",
			wantEnd:   "2024-01-15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.text, ref)
			assert.Equal(t, day(tt.wantStart), got.Start)
			assert.Equal(t, day(tt.wantEnd), got.End)
			assert.False(t, got.End.Before(got.Start))
		})
	}
}

func TestResolveTimelineClampsToHorizon(t *testing.T) {
	r := query.NewTimelineResolver(1, 120, 1)
	ref := day("2024-01-15")

	got := r.Resolve("forecast for the next 300 days", ref)
	assert.Equal(t, 120, got.Days(), "spans beyond the horizon are clamped, not rejected")
	assert.Equal(t, day("2024-01-15"), got.Start)

	got = r.Resolve("weather this season", ref)
	require.LessOrEqual(t, got.Days(), 120)
}

func TestResolveTimelineZeroReferenceUsesNow(t *testing.T) {
	r := query.NewTimelineResolver(1, 120, 1)

	got := r.Resolve("weather today", time.Time{})
	assert.Equal(t, types.Day(time.Now()), got.Start)
}

func FuzzResolveTimeline(f *testing.F) {
	for _, seed := range []string{
		"weather in Mumbai for the next 5 days",
		"rain 2024-03-10 to 2024-03-01",
		"forecast for 99999 days",
		"next -3 weeks",
		"",
		"इस हफ्ते बारिश",
	} {
		f.Add(seed)
	}

	r := query.NewTimelineResolver(1, 120, 1)
	ref := day("2024-01-15")

	f.Fuzz(func(t *testing.T, text string) {
		got := r.Resolve(text, ref)

		// Whatever the input, the contract holds: start <= end and the
		// span fits the horizon.
		if got.End.Before(got.Start) {
			t.Fatalf("inverted range %v for %q", got, text)
		}
		if d := got.Days(); d < 1 || d > 120 {
			t.Fatalf("span %d outside horizon for %q", d, text)
		}
	})
}
