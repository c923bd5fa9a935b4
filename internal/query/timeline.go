package query

import (
	"regexp"
	"strings"
	"time"

	"github.com/vruksh/agroqa/pkg/types"
)

// TimelineResolver converts natural-language time expressions into an
// absolute inclusive date range anchored at a reference date. Spans are
// clamped into the configured horizon; inverted explicit ranges are
// swapped, never errored.
type TimelineResolver struct {
	// MinDays is the smallest allowed span in days (default 1)
	MinDays int

	// MaxDays is the largest allowed span in days (default 120)
	MaxDays int

	// DefaultDays is the window used when the text carries no temporal
	// expression (default 1, i.e. today)
	DefaultDays int
}

// NewTimelineResolver creates a resolver with the given horizon.
// Non-positive arguments fall back to the defaults 1, 120, 1.
func NewTimelineResolver(minDays, maxDays, defaultDays int) *TimelineResolver {
	if minDays <= 0 {
		minDays = 1
	}
	if maxDays <= 0 {
		maxDays = 120
	}
	if defaultDays <= 0 {
		defaultDays = 1
	}
	if maxDays < minDays {
		minDays, maxDays = maxDays, minDays
	}
	return &TimelineResolver{MinDays: minDays, MaxDays: maxDays, DefaultDays: defaultDays}
}

var (
	isoDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

	// "next 5 days", "in 10 days", "for two weeks", "over the next month"
	spanPattern = regexp.MustCompile(`\b(?:next|in|for|upcoming|over the next|last|past)?\s*(\d+|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|a|an)\s*(day|days|week|weeks|month|months)\b`)
)

var spelledNumbers = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12,
}

// Resolve parses the text's temporal expressions relative to refDate.
// A zero refDate means "now". The result always satisfies
// Start <= End with a span inside [MinDays, MaxDays].
func (r *TimelineResolver) Resolve(text string, refDate time.Time) types.TimeRange {
	if refDate.IsZero() {
		refDate = time.Now()
	}
	ref := types.Day(refDate)
	lower := strings.ToLower(text)

	// Explicit ISO dates win over relative phrasing. One date is a
	// single-day range; two dates bound a range (swapped if inverted).
	if dates := isoDatePattern.FindAllString(lower, 2); len(dates) > 0 {
		start, err1 := time.Parse("2006-01-02", dates[0])
		if err1 == nil {
			end := start
			if len(dates) == 2 {
				if second, err2 := time.Parse("2006-01-02", dates[1]); err2 == nil {
					end = second
				}
			}
			return r.clamp(types.NewTimeRange(start, end))
		}
	}

	if days, ok := r.spanDays(lower); ok {
		return r.clamp(types.NewTimeRange(ref, ref.AddDate(0, 0, days)))
	}

	return r.clamp(types.NewTimeRange(ref, ref.AddDate(0, 0, r.DefaultDays-1)))
}

// spanDays extracts a forward-looking span in days from relative
// phrasing, or reports false when the text has none.
func (r *TimelineResolver) spanDays(lower string) (int, bool) {
	switch {
	case strings.Contains(lower, "today"):
		return 0, true
	case strings.Contains(lower, "tomorrow"):
		return 1, true
	}

	if m := spanPattern.FindStringSubmatch(lower); m != nil {
		n, ok := spelledNumbers[m[1]]
		if !ok {
			n = atoiSafe(m[1])
		}
		if n > 0 {
			switch {
			case strings.HasPrefix(m[2], "day"):
				return n, true
			case strings.HasPrefix(m[2], "week"):
				return n * 7, true
			case strings.HasPrefix(m[2], "month"):
				return n * 30, true
			}
		}
	}

	switch {
	case strings.Contains(lower, "next week"), strings.Contains(lower, "this week"):
		return 7, true
	case strings.Contains(lower, "next month"), strings.Contains(lower, "this month"):
		return 30, true
	case strings.Contains(lower, "this season"), strings.Contains(lower, "next season"),
		strings.Contains(lower, "growing season"), strings.Contains(lower, "crop season"),
		strings.Contains(lower, "planting season"), strings.Contains(lower, "harvest season"):
		// An agricultural season spans roughly four months.
		return 120, true
	}

	return 0, false
}

// clamp bounds the range's span to the horizon, keeping Start fixed.
func (r *TimelineResolver) clamp(tr types.TimeRange) types.TimeRange {
	span := tr.Days()
	if span > r.MaxDays {
		return types.NewTimeRange(tr.Start, tr.Start.AddDate(0, 0, r.MaxDays-1))
	}
	if span < r.MinDays {
		return types.NewTimeRange(tr.Start, tr.Start.AddDate(0, 0, r.MinDays-1))
	}
	return tr
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
		if n > 10000 {
			return 10000
		}
	}
	return n
}
