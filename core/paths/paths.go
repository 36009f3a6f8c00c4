package paths

import (
	"math/rand"
	"time"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/bandplan"
	"github.com/ftl/wsprglobe/core/geo"
	"github.com/ftl/wsprglobe/core/spots"
)

// Marker styling
const (
	TxRadius     = 0.18
	RxRadius     = 0.12
	BeaconRadius = 0.15
	RxColor      = "rgba(255, 255, 255, 0.6)"
	arcAlpha     = 0.4
)

// Options control the reduction of spots into a render payload.
type Options struct {
	Mode        core.DisplayMode
	Bands       core.BandSet
	Solid       bool
	MaxDisplay  int // 0 means no limit
	ShowMarkers bool
	Animate     bool
	Playing     bool
}

// OptionsFrom derives the reduction options from the display settings.
func OptionsFrom(display core.Display, playing bool) Options {
	return Options{
		Mode:        display.Mode(),
		Bands:       display.Bands,
		Solid:       display.SolidLines,
		MaxDisplay:  display.MaxDisplay,
		ShowMarkers: display.ShowMarkers,
		Animate:     display.AnimateLines,
		Playing:     playing,
	}
}

// Reducer turns spots into a render payload. A Reducer is not safe for concurrent use.
type Reducer struct {
	plan bandplan.Bandplan
	rand *rand.Rand
}

// NewReducer returns a reducer that samples with a time seeded random source.
func NewReducer(plan bandplan.Bandplan) *Reducer {
	return NewReducerWithRand(plan, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewReducerWithRand returns a reducer that samples with the given random source.
func NewReducerWithRand(plan bandplan.Bandplan, r *rand.Rand) *Reducer {
	return &Reducer{plan: plan, rand: r}
}

// Reduce the given spots according to the options. Callsign filtering is the caller's business.
func (r *Reducer) Reduce(input []core.Spot, options Options) core.Payload {
	result := core.Payload{
		Mode:    options.Mode,
		Arcs:    []core.Arc{},
		Points:  []core.Point{},
		Heatmap: []core.HeatBin{},
		Labels:  []core.Label{},
	}
	if options.Bands.Len() == 0 {
		return result
	}

	switch options.Mode {
	case core.BeaconMode:
		r.beaconTrail(input, options, &result)
	case core.HeatmapMode:
		arcs := r.arcs(input, options)
		result.Heatmap = r.heatmap(input, arcs, options)
		result.PathCount = arcs.unique
		result.Span = r.span(input, options, false)
	default:
		arcs := r.arcs(input, options)
		result.Arcs = arcs.arcs
		if options.ShowMarkers {
			result.Points = arcs.markers()
		}
		result.PathCount = arcs.unique
		result.Style.DashAnimated = options.Animate && !options.Playing
		result.Span = r.span(input, options, true)
	}
	return result
}

func (r *Reducer) span(input []core.Spot, options Options, bandFiltered bool) *core.TimeSpan {
	var relevant []core.Spot
	if bandFiltered {
		relevant = make([]core.Spot, 0, len(input))
		for _, spot := range input {
			if r.plan.IsIncluded(spot.Frequency, options.Bands) {
				relevant = append(relevant, spot)
			}
		}
	} else {
		relevant = input
	}
	span, ok := spots.Span(spots.Resolve(relevant))
	if !ok {
		return nil
	}
	return &span
}

type location struct {
	key   string
	pos   core.LatLng
	color string
	spot  core.Spot
}

type arcSet struct {
	arcs    []core.Arc
	unique  int
	sampled bool
	tx      []location
	rx      []location
}

func (r *Reducer) arcs(input []core.Spot, options Options) arcSet {
	result := arcSet{arcs: []core.Arc{}}
	seen := make(map[string]bool)
	txSeen := make(map[string]bool)
	rxSeen := make(map[string]bool)

	for _, spot := range input {
		if !r.plan.IsIncluded(spot.Frequency, options.Bands) {
			continue
		}
		tx, ok := geo.GridToLatLng(spot.TxLoc)
		if !ok {
			continue
		}
		rx, ok := geo.GridToLatLng(spot.RxLoc)
		if !ok {
			continue
		}
		if spot.TxLoc == spot.RxLoc {
			continue
		}
		key := spots.PathKey(spot.TxLoc, spot.RxLoc)
		if seen[key] {
			continue
		}
		seen[key] = true

		bandColor := r.plan.Color(spot.Frequency)
		if !txSeen[spot.TxLoc] {
			txSeen[spot.TxLoc] = true
			result.tx = append(result.tx, location{key: spot.TxLoc, pos: tx, color: bandColor, spot: spot})
		}
		if !rxSeen[spot.RxLoc] {
			rxSeen[spot.RxLoc] = true
			result.rx = append(result.rx, location{key: spot.RxLoc, pos: rx, spot: spot})
		}

		color := bandColor
		if !options.Solid {
			color = bandplan.RGBA(bandColor, arcAlpha)
		}
		result.arcs = append(result.arcs, core.Arc{
			StartLat: tx.Lat,
			StartLng: tx.Lng,
			EndLat:   rx.Lat,
			EndLng:   rx.Lng,
			Color:    color,
			Spot:     spot,
		})
	}
	result.unique = len(result.arcs)

	if options.MaxDisplay > 0 && len(result.arcs) > options.MaxDisplay {
		r.sample(&result, options.MaxDisplay)
	}
	return result
}

// sample keeps a uniform random sample of the arcs and the locations they touch
func (r *Reducer) sample(set *arcSet, n int) {
	for i := len(set.arcs) - 1; i > 0; i-- {
		j := r.rand.Intn(i + 1)
		set.arcs[i], set.arcs[j] = set.arcs[j], set.arcs[i]
	}
	set.arcs = set.arcs[:n]
	set.sampled = true

	sampledTx := make(map[string]bool)
	sampledRx := make(map[string]bool)
	for _, arc := range set.arcs {
		sampledTx[arc.Spot.TxLoc] = true
		sampledRx[arc.Spot.RxLoc] = true
	}
	set.tx = keepLocations(set.tx, sampledTx)
	set.rx = keepLocations(set.rx, sampledRx)
}

func keepLocations(locations []location, keep map[string]bool) []location {
	result := locations[:0]
	for _, l := range locations {
		if keep[l.key] {
			result = append(result, l)
		}
	}
	return result
}

func (s arcSet) markers() []core.Point {
	result := make([]core.Point, 0, len(s.tx)+len(s.rx))
	txKeys := make(map[string]bool, len(s.tx))
	for _, l := range s.tx {
		txKeys[l.key] = true
		spot := l.spot
		result = append(result, core.Point{
			Lat:    l.pos.Lat,
			Lng:    l.pos.Lng,
			Color:  l.color,
			Radius: TxRadius,
			Kind:   core.TxPoint,
			Label:  spot.TxSign,
			Spot:   &spot,
		})
	}
	for _, l := range s.rx {
		if txKeys[l.key] {
			continue
		}
		spot := l.spot
		result = append(result, core.Point{
			Lat:    l.pos.Lat,
			Lng:    l.pos.Lng,
			Color:  RxColor,
			Radius: RxRadius,
			Kind:   core.RxPoint,
			Label:  spot.RxSign,
			Spot:   &spot,
		})
	}
	return result
}

func (s arcSet) sampledPaths() map[string]bool {
	result := make(map[string]bool, len(s.arcs))
	for _, arc := range s.arcs {
		result[spots.PathKey(arc.Spot.TxLoc, arc.Spot.RxLoc)] = true
	}
	return result
}
