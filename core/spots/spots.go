package spots

import (
	"sort"
	"strings"
	"time"

	"github.com/ftl/wsprglobe/core"
)

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ResolveInstant parses the raw time of a spot. Strings with an explicit zone are taken as they are, strings without
// a zone are interpreted as UTC wall-clock time.
func ResolveInstant(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsOddCallsign indicates if the callsign starts with 0, 1 or Q. Such callsigns are mostly telemetry or decoding
// artifacts. An empty callsign is not odd.
func IsOddCallsign(callsign string) bool {
	c := strings.ToUpper(strings.TrimSpace(callsign))
	if c == "" {
		return false
	}
	switch c[0] {
	case '0', '1', 'Q':
		return true
	default:
		return false
	}
}

// ExcludeByCallsign indicates if the spot is hidden by the callsign policy.
func ExcludeByCallsign(spot core.Spot, enabled bool) bool {
	if !enabled {
		return false
	}
	return IsOddCallsign(spot.TxSign) || IsOddCallsign(spot.RxSign)
}

// FilterByCallsign returns the spots that pass the callsign policy, in their original order.
func FilterByCallsign(spots []core.Spot, enabled bool) []core.Spot {
	if !enabled {
		return spots
	}
	result := make([]core.Spot, 0, len(spots))
	for _, spot := range spots {
		if !ExcludeByCallsign(spot, true) {
			result = append(result, spot)
		}
	}
	return result
}

// Timed is a spot with its resolved instant.
type Timed struct {
	core.Spot
	At time.Time
}

// Resolve returns the spots with a resolvable instant, in their original order.
func Resolve(spots []core.Spot) []Timed {
	result := make([]Timed, 0, len(spots))
	for _, spot := range spots {
		at, ok := ResolveInstant(spot.Time)
		if !ok {
			continue
		}
		result = append(result, Timed{Spot: spot, At: at})
	}
	return result
}

// SortByTime sorts the spots ascending by their instant. Spots with equal instants keep their order.
func SortByTime(timed []Timed) {
	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].At.Before(timed[j].At)
	})
}

// Span returns the closed range [min, max] of the instants. It is false for no spots.
func Span(timed []Timed) (core.TimeSpan, bool) {
	if len(timed) == 0 {
		return core.TimeSpan{}, false
	}
	result := core.TimeSpan{From: timed[0].At, To: timed[0].At}
	for _, t := range timed[1:] {
		if t.At.Before(result.From) {
			result.From = t.At
		}
		if t.At.After(result.To) {
			result.To = t.At
		}
	}
	return result, true
}

// InSpan returns the spots within the half-open span.
func InSpan(timed []Timed, span core.TimeSpan) []core.Spot {
	result := make([]core.Spot, 0)
	for _, t := range timed {
		if span.Contains(t.At) {
			result = append(result, t.Spot)
		}
	}
	return result
}
