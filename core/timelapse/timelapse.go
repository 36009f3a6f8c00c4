package timelapse

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/metrics"
	"github.com/ftl/wsprglobe/core/paths"
	"github.com/ftl/wsprglobe/core/spots"
)

// Defaults of the time-lapse parameters.
const (
	DefaultWindow = 10 * time.Minute
	DefaultSpeed  = 2000.0
)

// Sink receives everything the engine renders.
type Sink interface {
	ShowPayload(core.Payload)
	ShowProgress(Progress)
}

// Progress of the playback.
type Progress struct {
	Window   core.TimeSpan `json:"window"`
	Percent  float64       `json:"percent"`
	Playing  bool          `json:"playing"`
	Dragging bool          `json:"dragging"`
	Text     string        `json:"text"`
}

// Engine moves a time window over the loaded spots and renders the spots within the window.
// An Engine is not safe for concurrent use, it is owned by the main loop.
type Engine struct {
	reducer *paths.Reducer
	sink    Sink
	display core.Display

	source      []core.Spot
	timed       []spots.Timed
	data        core.TimeSpan
	initialized bool

	windowStart  time.Time
	lastRendered time.Time
	rendered     bool

	playing         bool
	playStart       time.Time
	playWindowStart time.Time

	dragging   bool
	wasPlaying bool

	heatmap backPressure
}

// New returns a new engine. waitFrames is the heatmap frame budget, values below zero select the default.
func New(reducer *paths.Reducer, sink Sink, display core.Display, waitFrames int) *Engine {
	if waitFrames < 0 {
		waitFrames = DefaultHeatmapWaitFrames
	}
	result := &Engine{
		reducer: reducer,
		sink:    sink,
		heatmap: newBackPressure(waitFrames),
	}
	result.display = Exclusive(core.Display{}, display)
	return result
}

// Exclusive enforces that the time-lapse excludes the beacon mode and the dash animation. The option that was
// switched on last wins.
func Exclusive(before, after core.Display) core.Display {
	result := after
	switch {
	case result.Timelapse && !before.Timelapse:
		result.Beacon = false
		result.AnimateLines = false
	case result.Timelapse && result.Beacon && !before.Beacon:
		result.Timelapse = false
	case result.Timelapse && result.AnimateLines && !before.AnimateLines:
		result.Timelapse = false
	}
	if result.Timelapse {
		result.Beacon = false
		result.AnimateLines = false
	}
	return result
}

// Display settings currently used by the engine.
func (e *Engine) Display() core.Display {
	return e.display
}

// Enabled indicates if the time-lapse mode is switched on.
func (e *Engine) Enabled() bool {
	return e.display.Timelapse
}

// Playing indicates if the playback is running.
func (e *Engine) Playing() bool {
	return e.playing
}

// Initialized indicates if the engine has spots to play.
func (e *Engine) Initialized() bool {
	return e.initialized
}

// WindowSize of the time-lapse.
func (e *Engine) WindowSize() time.Duration {
	if e.display.TimelapseWindow <= 0 {
		return DefaultWindow
	}
	return e.display.TimelapseWindow
}

func (e *Engine) speed() float64 {
	if e.display.TimelapseSpeed <= 0 {
		return DefaultSpeed
	}
	return e.display.TimelapseSpeed
}

// Window returns the current half-open time window. It never ends after the last spot.
func (e *Engine) Window() core.TimeSpan {
	end := e.windowStart.Add(e.WindowSize())
	if e.initialized && end.After(e.data.To) {
		end = e.data.To
	}
	return core.TimeSpan{From: e.windowStart, To: end}
}

// DataSpan returns the closed range of the instants of all loaded spots.
func (e *Engine) DataSpan() core.TimeSpan {
	return e.data
}

// maxStart is the last window start. If the data span is shorter than the window, the only window starts at the
// first spot.
func (e *Engine) maxStart() time.Time {
	result := e.data.To.Add(-e.WindowSize())
	if result.Before(e.data.From) {
		return e.data.From
	}
	return result
}

// Load the given spots and initialize the engine if the time-lapse is enabled.
func (e *Engine) Load(all []core.Spot) {
	e.source = all
	e.Pause()
	if e.Enabled() {
		e.Initialize()
	} else {
		e.initialized = false
		e.heatmap.clear()
	}
}

// Initialize the window to the start of the loaded spots and render it.
func (e *Engine) Initialize() {
	e.playing = false
	e.heatmap.clear()
	e.rendered = false

	e.timed = spots.Resolve(e.source)
	spots.SortByTime(e.timed)
	data, ok := spots.Span(e.timed)
	if !ok {
		e.initialized = false
		e.data = core.TimeSpan{}
		return
	}
	e.data = data
	e.initialized = true
	e.windowStart = data.From
	e.render()
}

// Play starts the playback at the given wall-clock time. It returns true if the playback is running.
func (e *Engine) Play(now time.Time) bool {
	if e.playing {
		return true
	}
	if !e.Enabled() || !e.initialized {
		return false
	}
	e.playing = true
	e.playStart = now
	e.playWindowStart = e.windowStart
	e.showProgress()
	return true
}

// Pause the playback and keep the current window.
func (e *Engine) Pause() {
	if !e.playing {
		return
	}
	e.playing = false
	e.showProgress()
}

// Reset pauses the playback and rewinds to the start of the data.
func (e *Engine) Reset() {
	e.Pause()
	if !e.initialized {
		return
	}
	e.windowStart = e.data.From
	e.render()
}

// Tick advances the playback to the given wall-clock time. It returns true as long as further ticks are needed.
func (e *Engine) Tick(now time.Time) bool {
	if !e.playing {
		return false
	}

	if e.display.Mode() == core.HeatmapMode {
		hold, swapped := e.heatmap.tick()
		if swapped != nil {
			metrics.HeatmapSwapped()
			e.sink.ShowPayload(*swapped)
		}
		if hold {
			return true
		}
	}

	elapsed := now.Sub(e.playStart)
	candidate := e.playWindowStart.Add(time.Duration(float64(elapsed) * e.speed()))
	maxStart := e.maxStart()

	if !candidate.Before(maxStart) {
		e.windowStart = maxStart
		e.playing = false
		if !e.rendered || !e.lastRendered.Equal(maxStart) {
			e.render()
		} else {
			e.showProgress()
		}
		log.Printf("time-lapse reached the end at %s", maxStart.Format(time.RFC3339))
		return false
	}

	candidate = candidate.Round(time.Second)
	if candidate.After(maxStart) {
		candidate = maxStart
	}
	if e.rendered && candidate.Equal(e.lastRendered) {
		return true
	}
	e.windowStart = candidate
	e.render()
	return true
}

// BeginScrub pauses the playback while the user drags the position.
func (e *Engine) BeginScrub() {
	if e.dragging {
		return
	}
	e.wasPlaying = e.playing
	e.dragging = true
	e.Pause()
}

// Scrub sets the window start to the given position in percent of the playable range. A running playback is
// paused unless the position is dragged, then EndScrub decides about resuming.
func (e *Engine) Scrub(percent float64) {
	if !e.initialized {
		return
	}
	if !e.dragging {
		e.Pause()
	}
	p := math.Min(100, math.Max(0, percent)) / 100
	maxStart := e.maxStart()
	playable := maxStart.Sub(e.data.From)
	start := e.data.From.Add(time.Duration(float64(playable) * p))
	if start.After(maxStart) {
		start = maxStart
	}
	e.windowStart = start
	e.render()
}

// EndScrub resumes the playback if it was running when the drag began. It returns true if the playback is running.
func (e *Engine) EndScrub(now time.Time) bool {
	resume := e.wasPlaying
	e.dragging = false
	e.wasPlaying = false
	if resume {
		return e.Play(now)
	}
	e.showProgress()
	return e.playing
}

// Configure updates the display settings and applies the consequences to the playback. It returns the effective
// display settings and true if the playback is running afterwards.
func (e *Engine) Configure(now time.Time, update func(*core.Display)) (core.Display, bool) {
	before := e.display
	after := before
	after.Bands = before.Bands.Copy()
	update(&after)
	after = Exclusive(before, after)
	e.display = after

	switch {
	case !after.Timelapse:
		e.Pause()
		e.initialized = false
		e.heatmap.clear()
	case !before.Timelapse:
		e.Initialize()
	case e.windowSizeOf(before) != e.WindowSize():
		e.Pause()
		e.Initialize()
	case before.TimelapseSpeed != after.TimelapseSpeed && e.playing:
		e.Pause()
		e.Play(now)
	case e.initialized:
		e.render()
	}
	return e.display, e.playing
}

func (e *Engine) windowSizeOf(display core.Display) time.Duration {
	if display.TimelapseWindow <= 0 {
		return DefaultWindow
	}
	return display.TimelapseWindow
}

// Render the current window again, e.g. after the spots were filtered differently.
func (e *Engine) Render() {
	if e.initialized {
		e.render()
	}
}

func (e *Engine) render() {
	window := e.Window()
	inWindow := spots.FilterByCallsign(spots.InSpan(e.timed, window), e.display.ExcludeOddCallsigns)
	payload := e.reducer.Reduce(inWindow, paths.OptionsFrom(e.display, e.playing))
	payload.Style.DashAnimated = false
	payload.Span = &window

	e.lastRendered = e.windowStart
	e.rendered = true

	if payload.Mode == core.HeatmapMode {
		if e.playing {
			if !e.heatmap.offer(payload) {
				metrics.HeatmapDeferred()
				e.showProgress()
				return
			}
		} else {
			e.heatmap.show(payload)
		}
	} else {
		e.heatmap.clear()
	}

	metrics.FrameRendered(payload.Mode.String())
	e.sink.ShowPayload(payload)
	e.showProgress()
}

// Progress of the playback.
func (e *Engine) Progress() Progress {
	window := e.Window()
	percent := 0.0
	total := e.data.Duration()
	if total > 0 {
		percent = float64(e.windowStart.Sub(e.data.From)) / float64(total) * 100
		percent = math.Min(100, math.Max(0, percent))
	}
	return Progress{
		Window:   window,
		Percent:  percent,
		Playing:  e.playing,
		Dragging: e.dragging,
		Text:     FormatWindow(window),
	}
}

func (e *Engine) showProgress() {
	if !e.initialized {
		return
	}
	e.sink.ShowProgress(e.Progress())
}

// FormatWindow formats the window as shown next to the position control.
func FormatWindow(window core.TimeSpan) string {
	return fmt.Sprintf("%s - %s UTC", window.From.UTC().Format("2006-01-02 15:04"), window.To.UTC().Format("2006-01-02 15:04"))
}
