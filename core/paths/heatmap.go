package paths

import (
	"math"
	"sort"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/geo"
	"github.com/ftl/wsprglobe/core/spots"
)

// Heatmap resolution and size, depending on playback.
const (
	StaticGridDegrees  = 1.0
	PlayingGridDegrees = 2.0
	StaticMaxBins      = 200
	PlayingMaxBins     = 150
)

type binKey struct {
	lat, lng float64
}

func (r *Reducer) heatmap(input []core.Spot, arcs arcSet, options Options) []core.HeatBin {
	grid := StaticGridDegrees
	maxBins := StaticMaxBins
	if options.Playing {
		grid = PlayingGridDegrees
		maxBins = PlayingMaxBins
	}

	var sampled map[string]bool
	if arcs.sampled {
		sampled = arcs.sampledPaths()
	}

	counts := make(map[binKey]int)
	var order []binKey
	count := func(p core.LatLng) {
		key := binKey{lat: quantize(p.Lat, grid), lng: quantize(p.Lng, grid)}
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}

	for _, spot := range input {
		if sampled != nil && !sampled[spots.PathKey(spot.TxLoc, spot.RxLoc)] {
			continue
		}
		if !r.plan.IsIncluded(spot.Frequency, options.Bands) {
			continue
		}
		if p, ok := geo.GridToLatLng(spot.TxLoc); ok {
			count(p)
		}
		if p, ok := geo.GridToLatLng(spot.RxLoc); ok {
			count(p)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxBins {
		order = order[:maxBins]
	}

	result := make([]core.HeatBin, len(order))
	for i, key := range order {
		c := counts[key]
		result[i] = core.HeatBin{
			Lat:    key.lat,
			Lng:    key.lng,
			Count:  c,
			Weight: math.Sqrt(float64(c)),
		}
	}
	return result
}

// quantize rounds half up to the grid
func quantize(value, grid float64) float64 {
	return math.Floor(value/grid+0.5) * grid
}
