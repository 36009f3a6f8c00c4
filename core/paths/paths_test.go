package paths

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/bandplan"
	"github.com/ftl/wsprglobe/core/spots"
)

func newTestReducer() *Reducer {
	return NewReducerWithRand(bandplan.WSPR, rand.New(rand.NewSource(42)))
}

func arcOptions(bands ...core.BandKey) Options {
	return Options{Mode: core.ArcMode, Bands: core.NewBandSet(bands...), ShowMarkers: true}
}

func TestReduce_ReciprocalPathsRenderOnce(t *testing.T) {
	input := []core.Spot{
		{Time: "2025-01-15 12:00:00", TxSign: "K1ABC", RxSign: "G4XYZ", TxLoc: "FN20", RxLoc: "JO01", Frequency: 14097100},
		{Time: "2025-01-15 12:02:00", TxSign: "G4XYZ", RxSign: "K1ABC", TxLoc: "JO01", RxLoc: "FN20", Frequency: 14097100},
	}

	actual := newTestReducer().Reduce(input, arcOptions("14"))

	require.Len(t, actual.Arcs, 1)
	assert.Equal(t, "K1ABC", actual.Arcs[0].Spot.TxSign, "first seen wins")
	assert.Equal(t, 40.5, actual.Arcs[0].StartLat)
	assert.Equal(t, -75.0, actual.Arcs[0].StartLng)
	assert.Equal(t, "rgba(0, 255, 255, 0.4)", actual.Arcs[0].Color)

	require.Len(t, actual.Points, 2)
	assert.Equal(t, core.TxPoint, actual.Points[0].Kind)
	assert.Equal(t, "#00ffff", actual.Points[0].Color)
	assert.Equal(t, TxRadius, actual.Points[0].Radius)
	assert.Equal(t, "K1ABC", actual.Points[0].Label)
	assert.Equal(t, core.RxPoint, actual.Points[1].Kind)
	assert.Equal(t, RxColor, actual.Points[1].Color)
	assert.Equal(t, RxRadius, actual.Points[1].Radius)
	assert.Equal(t, "G4XYZ", actual.Points[1].Label)

	assert.Empty(t, actual.Heatmap)
	assert.Equal(t, 1, actual.PathCount)
}

func TestReduce_EmptyInput(t *testing.T) {
	for _, mode := range []core.DisplayMode{core.ArcMode, core.BeaconMode, core.HeatmapMode} {
		t.Run(mode.String(), func(t *testing.T) {
			actual := newTestReducer().Reduce(nil, Options{Mode: mode, Bands: bandplan.WSPR.All(), ShowMarkers: true})
			assert.True(t, actual.Empty())
			assert.NotNil(t, actual.Arcs)
			assert.NotNil(t, actual.Heatmap)
		})
	}
}

func TestReduce_NoBandsSelected(t *testing.T) {
	input := []core.Spot{
		{Time: "2025-01-15 12:00:00", TxLoc: "FN20", RxLoc: "JO01", Frequency: 14097100},
	}
	for _, mode := range []core.DisplayMode{core.ArcMode, core.BeaconMode, core.HeatmapMode} {
		t.Run(mode.String(), func(t *testing.T) {
			actual := newTestReducer().Reduce(input, Options{Mode: mode, ShowMarkers: true})
			assert.True(t, actual.Empty())
		})
	}
}

func TestReduce_ArcFilters(t *testing.T) {
	input := []core.Spot{
		{TxLoc: "FN20", RxLoc: "FN20", Frequency: 14097100},
		{TxLoc: "FN20", RxLoc: "", Frequency: 14097100},
		{TxLoc: "XX", RxLoc: "JO01", Frequency: 14097100},
		{TxLoc: "FN20", RxLoc: "JO01", Frequency: 7040100},
		{TxLoc: "FN20", RxLoc: "JO62", Frequency: 14097100},
	}

	actual := newTestReducer().Reduce(input, arcOptions("14"))

	require.Len(t, actual.Arcs, 1)
	assert.Equal(t, "JO62", actual.Arcs[0].Spot.RxLoc)
}

func TestReduce_SolidAndNoMarkers(t *testing.T) {
	input := []core.Spot{
		{TxLoc: "FN20", RxLoc: "JO62", Frequency: 7040100},
	}
	options := arcOptions("7")
	options.Solid = true
	options.ShowMarkers = false
	options.Animate = true

	actual := newTestReducer().Reduce(input, options)

	require.Len(t, actual.Arcs, 1)
	assert.Equal(t, "#00ff00", actual.Arcs[0].Color)
	assert.Empty(t, actual.Points)
	assert.True(t, actual.Style.DashAnimated)
}

func TestReduce_RxMarkerSkippedWhenAlsoTx(t *testing.T) {
	input := []core.Spot{
		{TxSign: "A", RxSign: "B", TxLoc: "FN20", RxLoc: "JO62", Frequency: 14097100},
		{TxSign: "B", RxSign: "C", TxLoc: "JO62", RxLoc: "IO91", Frequency: 14097100},
	}

	actual := newTestReducer().Reduce(input, arcOptions("14"))

	require.Len(t, actual.Arcs, 2)
	kinds := map[core.PointKind]int{}
	for _, p := range actual.Points {
		kinds[p.Kind]++
	}
	assert.Equal(t, 2, kinds[core.TxPoint])
	assert.Equal(t, 1, kinds[core.RxPoint], "JO62 is a tx locus")
}

func manyPaths(n int) []core.Spot {
	result := make([]core.Spot, 0, n)
	for i := 0; i < n; i++ {
		result = append(result, core.Spot{
			TxSign:    fmt.Sprintf("TX%d", i),
			TxLoc:     fmt.Sprintf("FN%d%d", (i/10)%10, i%10),
			RxLoc:     fmt.Sprintf("JO%d%d", (i/100)%10, (i/10)%10),
			Frequency: 14097100,
			Time:      "2025-01-15 12:00:00",
		})
	}
	return result
}

func TestReduce_DisplayCapSamples(t *testing.T) {
	input := manyPaths(100)
	reducer := newTestReducer()
	unique := reducer.Reduce(input, arcOptions("14"))
	require.Len(t, unique.Arcs, 100)

	known := make(map[string]bool)
	for _, arc := range unique.Arcs {
		known[spots.PathKey(arc.Spot.TxLoc, arc.Spot.RxLoc)] = true
	}

	options := arcOptions("14")
	options.MaxDisplay = 10
	for i := 0; i < 5; i++ {
		actual := reducer.Reduce(input, options)
		assert.Len(t, actual.Arcs, 10)
		assert.Equal(t, 100, actual.PathCount)
		seen := make(map[string]bool)
		for _, arc := range actual.Arcs {
			key := spots.PathKey(arc.Spot.TxLoc, arc.Spot.RxLoc)
			assert.True(t, known[key])
			assert.False(t, seen[key], "sampled without replacement")
			seen[key] = true
		}
		for _, p := range actual.Points {
			if p.Kind == core.TxPoint {
				assert.True(t, containsTx(actual.Arcs, p.Spot.TxLoc))
			}
		}
	}
}

func TestReduce_CapAboveCountKeepsAll(t *testing.T) {
	options := arcOptions("14")
	options.MaxDisplay = 500

	actual := newTestReducer().Reduce(manyPaths(20), options)

	assert.Len(t, actual.Arcs, 20)
}

func containsTx(arcs []core.Arc, loc string) bool {
	for _, arc := range arcs {
		if arc.Spot.TxLoc == loc {
			return true
		}
	}
	return false
}

func TestReduce_Heatmap(t *testing.T) {
	input := []core.Spot{
		{TxLoc: "FN20", RxLoc: "JO62", Frequency: 14097100},
		{TxLoc: "FN20", RxLoc: "JO62", Frequency: 14097100},
		{TxLoc: "FN20", RxLoc: "FN20", Frequency: 14097100},
		{TxLoc: "FN20", RxLoc: "", Frequency: 14097100},
		{TxLoc: "FN20", RxLoc: "JO62", Frequency: 7040100},
	}
	options := Options{Mode: core.HeatmapMode, Bands: core.NewBandSet("14")}

	actual := newTestReducer().Reduce(input, options)

	assert.Empty(t, actual.Arcs)
	assert.Empty(t, actual.Points)
	require.Len(t, actual.Heatmap, 2)
	// FN20 (40.5, -75) rounds half up to (41, -75)
	assert.Equal(t, core.HeatBin{Lat: 41, Lng: -75, Count: 5, Weight: 2.23606797749979}, actual.Heatmap[0])
	assert.Equal(t, 53.0, actual.Heatmap[1].Lat)
	assert.Equal(t, 13.0, actual.Heatmap[1].Lng)
	assert.Equal(t, 2, actual.Heatmap[1].Count)
}

func TestReduce_HeatmapWhilePlayingUsesCoarserGrid(t *testing.T) {
	input := []core.Spot{
		{TxLoc: "JO62", RxLoc: "JO73", Frequency: 14097100},
	}
	options := Options{Mode: core.HeatmapMode, Bands: core.NewBandSet("14"), Playing: true}

	actual := newTestReducer().Reduce(input, options)

	// JO62 (52.5, 13) and JO73 (53.5, 15) fall into (52|54, 14|16) on the 2° grid
	require.Len(t, actual.Heatmap, 2)
	assert.Equal(t, core.HeatBin{Lat: 52, Lng: 14, Count: 1, Weight: 1}, actual.Heatmap[0])
	assert.Equal(t, core.HeatBin{Lat: 54, Lng: 16, Count: 1, Weight: 1}, actual.Heatmap[1])
}

func TestReduce_HeatmapBinLimit(t *testing.T) {
	var input []core.Spot
	for lat := 'A'; lat <= 'R'; lat++ {
		for lng := 'A'; lng <= 'R'; lng++ {
			input = append(input, core.Spot{TxLoc: fmt.Sprintf("%c%c55", lng, lat), Frequency: 14097100})
		}
	}
	options := Options{Mode: core.HeatmapMode, Bands: core.NewBandSet("14")}

	actual := newTestReducer().Reduce(input, options)
	assert.Len(t, actual.Heatmap, StaticMaxBins)

	options.Playing = true
	actual = newTestReducer().Reduce(input, options)
	assert.Len(t, actual.Heatmap, PlayingMaxBins)
}

func TestReduce_HeatmapRestrictedToSampledPaths(t *testing.T) {
	input := manyPaths(50)
	options := Options{Mode: core.HeatmapMode, Bands: core.NewBandSet("14"), MaxDisplay: 5}

	actual := newTestReducer().Reduce(input, options)

	total := 0
	for _, bin := range actual.Heatmap {
		total += bin.Count
	}
	assert.Equal(t, 10, total, "two endpoints for each of the five sampled paths")
}

func TestReduce_BeaconTrail(t *testing.T) {
	input := []core.Spot{
		{TxSign: "BALLOON", TxLoc: "JO62", Frequency: 14097100, Time: "2025-01-15 12:10:00"},
		{TxSign: "BALLOON", TxLoc: "JO62", Frequency: 14097100, Time: "2025-01-15 12:00:00"},
		{TxSign: "BALLOON", TxLoc: "JO62", Frequency: 14097100, Time: "2025-01-15 12:01:00"},
		{TxSign: "BALLOON", TxLoc: "JO73", Frequency: 14097100, Time: "2025-01-15 12:05:00"},
		{TxSign: "BALLOON", TxLoc: "JO73", Frequency: 7040100, Time: "2025-01-15 12:06:00"},
		{TxSign: "BALLOON", TxLoc: "", Frequency: 14097100, Time: "2025-01-15 12:07:00"},
		{TxSign: "BALLOON", TxLoc: "JO73", Frequency: 14097100, Time: "broken"},
	}
	options := Options{Mode: core.BeaconMode, Bands: core.NewBandSet("14")}

	actual := newTestReducer().Reduce(input, options)

	require.Len(t, actual.Points, 3)
	assert.Equal(t, "rgb(0, 102, 255)", actual.Points[0].Color)
	assert.Equal(t, "rgb(255, 0, 0)", actual.Points[2].Color)
	assert.Equal(t, 52.5, actual.Points[0].Lat)
	assert.Equal(t, 53.5, actual.Points[1].Lat)

	require.Len(t, actual.Arcs, 2)
	assert.Equal(t, actual.Points[1].Color, actual.Arcs[0].Color, "segment takes the color of its newer end")
	assert.Equal(t, actual.Points[2].Color, actual.Arcs[1].Color)

	require.Len(t, actual.Labels, 2)
	assert.Equal(t, "START: BALLOON\n2025-01-15 12:00 UTC", actual.Labels[0].Text)
	assert.Equal(t, StartLabelColor, actual.Labels[0].Color)
	assert.Equal(t, "END: BALLOON\n2025-01-15 12:10 UTC", actual.Labels[1].Text)
	assert.Equal(t, EndLabelColor, actual.Labels[1].Color)
	assert.Empty(t, actual.Heatmap)
	assert.Equal(t, 3, actual.PathCount)
}

func TestReduce_BeaconSinglePointHasOnlyStartLabel(t *testing.T) {
	input := []core.Spot{
		{TxSign: "BALLOON", TxLoc: "JO62", Frequency: 14097100, Time: "2025-01-15 12:00:00"},
	}

	actual := newTestReducer().Reduce(input, Options{Mode: core.BeaconMode, Bands: core.NewBandSet("14")})

	require.Len(t, actual.Points, 1)
	assert.Equal(t, "rgb(0, 102, 255)", actual.Points[0].Color)
	assert.Empty(t, actual.Arcs)
	require.Len(t, actual.Labels, 1)
}

func TestTimeColor(t *testing.T) {
	tt := []struct {
		t        float64
		expected string
	}{
		{0, "rgb(0, 102, 255)"},
		{0.1, "rgb(0, 179, 255)"},
		{0.2, "rgb(0, 255, 255)"},
		{0.5, "rgb(128, 255, 0)"},
		{0.8, "rgb(255, 102, 0)"},
		{1, "rgb(255, 0, 0)"},
		{1.5, "rgb(255, 0, 0)"},
	}
	for _, tc := range tt {
		t.Run(fmt.Sprintf("%v", tc.t), func(t *testing.T) {
			assert.Equal(t, tc.expected, TimeColor(tc.t))
		})
	}
}
