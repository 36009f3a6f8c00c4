package paths

import (
	"fmt"
	"math"
	"time"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/geo"
	"github.com/ftl/wsprglobe/core/spots"
)

// Beacon trail styling
const (
	BeaconBucket    = 2 * time.Minute
	StartLabelColor = "rgba(100, 180, 255, 0.9)"
	EndLabelColor   = "rgba(255, 100, 100, 0.9)"
)

// gradient from the oldest to the newest position
var gradient = [][3]float64{
	{0, 102, 255},
	{0, 255, 255},
	{0, 255, 0},
	{255, 255, 0},
	{255, 102, 0},
	{255, 0, 0},
}

// TimeColor maps the relative position t in [0,1] onto the blue to red gradient.
func TimeColor(t float64) string {
	if t < 0 {
		t = 0
	}
	idx := t * float64(len(gradient)-1)
	i := int(math.Floor(idx))
	if i >= len(gradient)-1 {
		c := gradient[len(gradient)-1]
		return rgb(c[0], c[1], c[2])
	}
	f := idx - float64(i)
	c1, c2 := gradient[i], gradient[i+1]
	return rgb(
		roundHalfUp(c1[0]+(c2[0]-c1[0])*f),
		roundHalfUp(c1[1]+(c2[1]-c1[1])*f),
		roundHalfUp(c1[2]+(c2[2]-c1[2])*f),
	)
}

func rgb(r, g, b float64) string {
	return fmt.Sprintf("rgb(%d, %d, %d)", int(r), int(g), int(b))
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

type trailPoint struct {
	pos   core.LatLng
	color string
	spot  core.Spot
	at    time.Time
}

func (r *Reducer) beaconTrail(input []core.Spot, options Options, result *core.Payload) {
	timed := spots.Resolve(input)
	spots.SortByTime(timed)
	span, ok := spots.Span(timed)
	if !ok {
		return
	}
	result.Span = &span
	timeRange := span.Duration()
	if timeRange <= 0 {
		timeRange = time.Millisecond
	}

	seen := make(map[string]bool)
	var trail []trailPoint
	for _, t := range timed {
		if !r.plan.IsIncluded(t.Frequency, options.Bands) {
			continue
		}
		pos, ok := geo.GridToLatLng(t.TxLoc)
		if !ok {
			continue
		}
		bucket := t.At.UnixMilli() / BeaconBucket.Milliseconds()
		key := fmt.Sprintf("%s-%d", t.TxLoc, bucket)
		if seen[key] {
			continue
		}
		seen[key] = true

		relative := float64(t.At.Sub(span.From)) / float64(timeRange)
		trail = append(trail, trailPoint{pos: pos, color: TimeColor(relative), spot: t.Spot, at: t.At})
	}

	for i, p := range trail {
		spot := p.spot
		result.Points = append(result.Points, core.Point{
			Lat:    p.pos.Lat,
			Lng:    p.pos.Lng,
			Color:  p.color,
			Radius: BeaconRadius,
			Kind:   core.BeaconPoint,
			Label:  spot.TxSign,
			Spot:   &spot,
		})
		if i == 0 {
			continue
		}
		prev := trail[i-1]
		result.Arcs = append(result.Arcs, core.Arc{
			StartLat: prev.pos.Lat,
			StartLng: prev.pos.Lng,
			EndLat:   p.pos.Lat,
			EndLng:   p.pos.Lng,
			Color:    p.color,
			Spot:     spot,
		})
	}
	result.PathCount = len(trail)

	if len(trail) == 0 {
		return
	}
	first := trail[0]
	result.Labels = append(result.Labels, core.Label{
		Lat:   first.pos.Lat,
		Lng:   first.pos.Lng,
		Text:  fmt.Sprintf("START: %s\n%s", first.spot.TxSign, spots.FormatMinute(first.at)),
		Color: StartLabelColor,
	})
	if len(trail) > 1 {
		last := trail[len(trail)-1]
		result.Labels = append(result.Labels, core.Label{
			Lat:   last.pos.Lat,
			Lng:   last.pos.Lng,
			Text:  fmt.Sprintf("END: %s\n%s", last.spot.TxSign, spots.FormatMinute(last.at)),
			Color: EndLabelColor,
		})
	}
}
