package timelapse

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/bandplan"
	"github.com/ftl/wsprglobe/core/paths"
)

var dataStart = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func testSpots() []core.Spot {
	return []core.Spot{
		{TxSign: "A", RxSign: "R", TxLoc: "FN20", RxLoc: "JO62", Frequency: 14097100, Time: "2025-01-15 12:00:00"},
		{TxSign: "B", RxSign: "R", TxLoc: "FN31", RxLoc: "JO62", Frequency: 14097100, Time: "2025-01-15 12:05:00"},
		{TxSign: "C", RxSign: "R", TxLoc: "IO91", RxLoc: "JO62", Frequency: 14097100, Time: "2025-01-15 12:20:00"},
		{TxSign: "D", RxSign: "R", TxLoc: "IO91", RxLoc: "FN20", Frequency: 14097100, Time: "2025-01-15 12:30:00"},
		{TxSign: "X", RxSign: "R", TxLoc: "IO91", RxLoc: "FN20", Frequency: 14097100, Time: "garbage"},
	}
}

func testDisplay() core.Display {
	return core.Display{
		Bands:           core.NewBandSet("14"),
		Timelapse:       true,
		TimelapseWindow: 10 * time.Minute,
		TimelapseSpeed:  60,
	}
}

type recordingSink struct {
	payloads []core.Payload
	progress []Progress
}

func (s *recordingSink) ShowPayload(p core.Payload) {
	s.payloads = append(s.payloads, p)
}

func (s *recordingSink) ShowProgress(p Progress) {
	s.progress = append(s.progress, p)
}

func (s *recordingSink) lastPayload() core.Payload {
	return s.payloads[len(s.payloads)-1]
}

func (s *recordingSink) lastProgress() Progress {
	return s.progress[len(s.progress)-1]
}

func newTestEngine(display core.Display, waitFrames int) (*Engine, *recordingSink) {
	sink := new(recordingSink)
	reducer := paths.NewReducerWithRand(bandplan.WSPR, rand.New(rand.NewSource(1)))
	return New(reducer, sink, display, waitFrames), sink
}

func TestInitialize(t *testing.T) {
	e, sink := newTestEngine(testDisplay(), 0)

	e.Load(testSpots())

	require.True(t, e.Initialized())
	assert.Equal(t, core.TimeSpan{From: dataStart, To: dataStart.Add(30 * time.Minute)}, e.DataSpan())
	assert.Equal(t, core.TimeSpan{From: dataStart, To: dataStart.Add(10 * time.Minute)}, e.Window())
	require.Len(t, sink.payloads, 1)
	assert.Len(t, sink.lastPayload().Arcs, 2)
	assert.False(t, sink.lastPayload().Style.DashAnimated)
	assert.Equal(t, 0.0, sink.lastProgress().Percent)
	assert.Equal(t, "2025-01-15 12:00 - 2025-01-15 12:10 UTC", sink.lastProgress().Text)
}

func TestInitialize_NoResolvableSpots(t *testing.T) {
	e, sink := newTestEngine(testDisplay(), 0)

	e.Load([]core.Spot{{Time: "garbage"}})

	assert.False(t, e.Initialized())
	assert.False(t, e.Play(time.Now()))
	assert.Empty(t, sink.payloads)
}

func TestLoad_DisabledDoesNotRender(t *testing.T) {
	display := testDisplay()
	display.Timelapse = false
	e, sink := newTestEngine(display, 0)

	e.Load(testSpots())

	assert.False(t, e.Initialized())
	assert.Empty(t, sink.payloads)
}

func TestPlayAdvancesAndStopsAtTheEnd(t *testing.T) {
	e, sink := newTestEngine(testDisplay(), 0)
	e.Load(testSpots())
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, e.Play(now))
	assert.True(t, e.Playing())

	assert.True(t, e.Tick(now.Add(time.Second)))
	assert.Equal(t, dataStart.Add(time.Minute), e.Window().From)
	require.Len(t, sink.payloads, 2)
	assert.Len(t, sink.lastPayload().Arcs, 1)

	assert.True(t, e.Tick(now.Add(time.Second)), "unchanged window")
	assert.Len(t, sink.payloads, 2)

	assert.True(t, e.Tick(now.Add(1008*time.Millisecond)), "sub-second movement rounds away")
	assert.Len(t, sink.payloads, 2)

	assert.False(t, e.Tick(now.Add(25*time.Second)))
	assert.False(t, e.Playing())
	assert.Equal(t, dataStart.Add(30*time.Minute), e.Window().To, "last window ends at the data maximum")
	require.Len(t, sink.payloads, 3)
	require.Len(t, sink.lastPayload().Arcs, 1)
	assert.Equal(t, "C", sink.lastPayload().Arcs[0].Spot.TxSign)
	assert.False(t, sink.lastProgress().Playing)

	assert.False(t, e.Tick(now.Add(30*time.Second)))
	assert.Len(t, sink.payloads, 3)
}

func TestPlayTicksNeverPassTheEnd(t *testing.T) {
	e, _ := newTestEngine(testDisplay(), 0)
	e.Load(testSpots())
	now := time.Now()
	e.Play(now)

	for i := 0; i < 100 && e.Tick(now.Add(time.Duration(i)*300*time.Millisecond)); i++ {
		assert.False(t, e.Window().To.After(dataStart.Add(30*time.Minute)))
	}
	assert.Equal(t, dataStart.Add(30*time.Minute), e.Window().To)
}

func TestPauseAndReset(t *testing.T) {
	e, sink := newTestEngine(testDisplay(), 0)
	e.Load(testSpots())
	now := time.Now()
	e.Play(now)
	e.Tick(now.Add(5 * time.Second))

	e.Pause()
	assert.False(t, e.Playing())
	assert.False(t, e.Tick(now.Add(6*time.Second)))
	assert.Equal(t, dataStart.Add(5*time.Minute), e.Window().From)

	count := len(sink.payloads)
	e.Reset()
	assert.Equal(t, dataStart, e.Window().From)
	assert.Len(t, sink.payloads, count+1)
}

func TestScrub(t *testing.T) {
	e, sink := newTestEngine(testDisplay(), 0)
	e.Load(testSpots())
	now := time.Now()
	e.Play(now)

	e.BeginScrub()
	assert.False(t, e.Playing())
	assert.True(t, sink.lastProgress().Dragging)

	e.Scrub(50)
	assert.Equal(t, dataStart.Add(10*time.Minute), e.Window().From)
	assert.True(t, sink.lastProgress().Dragging)

	e.Scrub(150)
	assert.Equal(t, dataStart.Add(20*time.Minute), e.Window().From, "clamped to the last window")

	assert.True(t, e.EndScrub(now.Add(time.Minute)))
	assert.True(t, e.Playing())
	assert.False(t, sink.lastProgress().Dragging)
}

func TestScrubWhilePlayingPauses(t *testing.T) {
	e, sink := newTestEngine(testDisplay(), 0)
	e.Load(testSpots())
	now := time.Now()
	e.Play(now)
	e.Tick(now.Add(time.Second))
	require.Equal(t, dataStart.Add(time.Minute), e.Window().From)

	e.Scrub(90)

	assert.False(t, e.Playing())
	assert.False(t, sink.lastProgress().Playing)
	assert.Equal(t, dataStart.Add(18*time.Minute), e.Window().From)
	assert.False(t, e.Tick(now.Add(2*time.Second)))
	assert.Equal(t, dataStart.Add(18*time.Minute), e.Window().From, "the next tick keeps the scrubbed position")
}

func TestShortDataSpan(t *testing.T) {
	e, sink := newTestEngine(testDisplay(), 0)
	e.Load(testSpots()[:2])
	dataEnd := dataStart.Add(5 * time.Minute)

	require.True(t, e.Initialized())
	assert.Equal(t, core.TimeSpan{From: dataStart, To: dataEnd}, e.Window())

	e.Scrub(50)
	assert.Equal(t, core.TimeSpan{From: dataStart, To: dataEnd}, e.Window())
	assert.Equal(t, 0.0, sink.lastProgress().Percent)

	now := time.Now()
	require.True(t, e.Play(now))
	assert.False(t, e.Tick(now.Add(time.Second)))
	assert.False(t, e.Playing())
	assert.Equal(t, core.TimeSpan{From: dataStart, To: dataEnd}, e.Window())
}

func TestScrubWhilePausedDoesNotResume(t *testing.T) {
	e, _ := newTestEngine(testDisplay(), 0)
	e.Load(testSpots())

	e.BeginScrub()
	e.Scrub(25)
	assert.False(t, e.EndScrub(time.Now()))
	assert.Equal(t, dataStart.Add(5*time.Minute), e.Window().From)
}

func TestProgress(t *testing.T) {
	e, _ := newTestEngine(testDisplay(), 0)
	e.Load(testSpots())

	e.Scrub(100)

	assert.InDelta(t, 66.666, e.Progress().Percent, 0.01)
}

func TestHeatmapBackPressure(t *testing.T) {
	display := testDisplay()
	display.Heatmap = true
	e, sink := newTestEngine(display, 2)
	e.Load(testSpots())
	require.Len(t, sink.payloads, 1)
	first := sink.lastPayload()
	require.NotEmpty(t, first.Heatmap)

	now := time.Now()
	e.Play(now)

	_, playing := e.Configure(now, func(d *core.Display) {
		d.Bands = core.NewBandSet("14", "7")
	})
	assert.True(t, playing)
	assert.Len(t, sink.payloads, 1, "new heatmap is held back while the previous one materializes")

	assert.True(t, e.Tick(now.Add(10*time.Second)))
	assert.Len(t, sink.payloads, 1)
	assert.Equal(t, dataStart, e.Window().From, "window does not advance while waiting")

	assert.True(t, e.Tick(now.Add(10*time.Second)))
	require.Len(t, sink.payloads, 2, "pending heatmap swapped in")
	assert.Equal(t, dataStart, e.Window().From)

	e.Tick(now.Add(10 * time.Second))
	e.Tick(now.Add(10 * time.Second))
	assert.Equal(t, dataStart, e.Window().From)

	e.Tick(now.Add(5 * time.Second))
	assert.Equal(t, dataStart.Add(5*time.Minute), e.Window().From)
	require.Len(t, sink.payloads, 3)
	assert.NotEmpty(t, sink.lastPayload().Heatmap)
}

func TestHeatmapModeRendersOnlyHeatmaps(t *testing.T) {
	display := testDisplay()
	display.Heatmap = true
	e, sink := newTestEngine(display, DefaultHeatmapWaitFrames)
	e.Load(testSpots())
	now := time.Now()
	e.Play(now)

	for i := 1; i < 400 && e.Tick(now.Add(time.Duration(i)*100*time.Millisecond)); i++ {
	}

	for _, p := range sink.payloads {
		assert.Empty(t, p.Arcs)
		assert.Empty(t, p.Points)
	}
	assert.False(t, e.Playing())
}

func TestConfigure_WindowChangeReinitializes(t *testing.T) {
	e, _ := newTestEngine(testDisplay(), 0)
	e.Load(testSpots())
	now := time.Now()
	e.Play(now)
	e.Tick(now.Add(5 * time.Second))

	e.Configure(now, func(d *core.Display) {
		d.TimelapseWindow = 5 * time.Minute
	})

	assert.False(t, e.Playing())
	assert.Equal(t, core.TimeSpan{From: dataStart, To: dataStart.Add(5 * time.Minute)}, e.Window())
}

func TestConfigure_SpeedChangeRestartsPlayback(t *testing.T) {
	e, sink := newTestEngine(testDisplay(), 0)
	e.Load(testSpots())
	now := time.Now()
	e.Play(now)
	e.Tick(now.Add(2 * time.Second))
	count := len(sink.payloads)

	_, playing := e.Configure(now.Add(2*time.Second), func(d *core.Display) {
		d.TimelapseSpeed = 120
	})
	require.True(t, playing)

	e.Tick(now.Add(2 * time.Second))
	assert.Len(t, sink.payloads, count, "playback continues from the current window")

	e.Tick(now.Add(3 * time.Second))
	assert.Equal(t, dataStart.Add(4*time.Minute), e.Window().From)
}

func TestConfigure_Exclusivity(t *testing.T) {
	e, _ := newTestEngine(testDisplay(), 0)
	e.Load(testSpots())
	e.Play(time.Now())

	display, playing := e.Configure(time.Now(), func(d *core.Display) {
		d.Beacon = true
	})

	assert.True(t, display.Beacon)
	assert.False(t, display.Timelapse)
	assert.False(t, playing)
	assert.False(t, e.Enabled())
	assert.False(t, e.Initialized())
}

func TestExclusive(t *testing.T) {
	tt := []struct {
		desc     string
		before   core.Display
		after    core.Display
		expected core.Display
	}{
		{
			desc:     "enabling time-lapse disables beacon and animation",
			before:   core.Display{Beacon: true, AnimateLines: true},
			after:    core.Display{Beacon: true, AnimateLines: true, Timelapse: true},
			expected: core.Display{Timelapse: true},
		},
		{
			desc:     "enabling beacon disables time-lapse",
			before:   core.Display{Timelapse: true},
			after:    core.Display{Timelapse: true, Beacon: true},
			expected: core.Display{Beacon: true},
		},
		{
			desc:     "enabling animation disables time-lapse",
			before:   core.Display{Timelapse: true},
			after:    core.Display{Timelapse: true, AnimateLines: true},
			expected: core.Display{AnimateLines: true},
		},
		{
			desc:     "all at once prefers time-lapse",
			before:   core.Display{},
			after:    core.Display{Timelapse: true, AnimateLines: true, Beacon: true},
			expected: core.Display{Timelapse: true},
		},
		{
			desc:     "unrelated change",
			before:   core.Display{Beacon: true},
			after:    core.Display{Beacon: true, Heatmap: true},
			expected: core.Display{Beacon: true, Heatmap: true},
		},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, Exclusive(tc.before, tc.after))
		})
	}
}

func TestCallsignFilterAppliesToWindow(t *testing.T) {
	display := testDisplay()
	display.ExcludeOddCallsigns = true
	e, sink := newTestEngine(display, 0)
	input := testSpots()
	input[0].TxSign = "Q1ODD"

	e.Load(input)

	require.Len(t, sink.payloads, 1)
	require.Len(t, sink.lastPayload().Arcs, 1)
	assert.Equal(t, "B", sink.lastPayload().Arcs[0].Spot.TxSign)
}
