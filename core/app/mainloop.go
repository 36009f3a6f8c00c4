package app

import (
	"fmt"
	"log"
	"reflect"
	"time"

	"github.com/pkg/errors"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/bandplan"
	"github.com/ftl/wsprglobe/core/paths"
	"github.com/ftl/wsprglobe/core/spots"
	"github.com/ftl/wsprglobe/core/timelapse"
	"github.com/ftl/wsprglobe/core/wsprlive"
)

func newMainLoop(plan bandplan.Bandplan, defaults core.Settings, framesPerSecond int, heatmapWaitFrames int) *mainLoop {
	if framesPerSecond <= 0 {
		framesPerSecond = 60
	}
	result := &mainLoop{
		plan:          plan,
		reducer:       paths.NewReducer(plan),
		view:          nopView{},
		clock:         time.Now,
		frameInterval: time.Second / time.Duration(framesPerSecond),
		command:       make(chan command, 16),
		stopped:       make(chan struct{}),
	}
	result.engine = timelapse.New(paths.NewReducer(plan), result, defaults.Display, heatmapWaitFrames)
	result.state.Settings = defaults.Copy()
	result.state.Settings.Display = result.engine.Display()
	return result
}

type command func()

type mainLoop struct {
	plan    bandplan.Bandplan
	reducer *paths.Reducer
	engine  *timelapse.Engine
	view    View
	clock   func() time.Time

	state      State
	generation int

	frameInterval time.Duration
	frames        *time.Ticker
	frameC        <-chan time.Time
	command       chan command
	stopped       chan struct{}
}

func (m *mainLoop) Run(stop chan struct{}) {
	defer log.Print("main loop shutdown")
	defer close(m.stopped)
	for {
		select {
		case <-m.frameC:
			m.syncFrames(m.engine.Tick(m.clock()))
		case command := <-m.command:
			command()
		case <-stop:
			m.syncFrames(false)
			return
		}
	}
}

// q enqueues the command without waiting for it. The command is dropped if the queue is full.
func (m *mainLoop) q(cmd command) {
	select {
	case m.command <- cmd:
	default:
		log.Print("Mainloop.q hangs")
	}
}

// do executes the command on the main loop and waits until it is done.
func (m *mainLoop) do(cmd command) error {
	done := make(chan struct{})
	select {
	case m.command <- func() {
		defer close(done)
		cmd()
	}:
	case <-m.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-m.stopped:
		return ErrStopped
	}
}

func (m *mainLoop) syncFrames(playing bool) {
	m.state.Playing = playing
	switch {
	case playing && m.frames == nil:
		m.frames = time.NewTicker(m.frameInterval)
		m.frameC = m.frames.C
	case !playing && m.frames != nil:
		m.frames.Stop()
		m.frames = nil
		m.frameC = nil
	}
}

// ShowPayload is called by the time-lapse engine.
func (m *mainLoop) ShowPayload(payload core.Payload) {
	m.state.Payload = payload
	m.view.ShowPayload(payload)
}

// ShowProgress is called by the time-lapse engine.
func (m *mainLoop) ShowProgress(progress timelapse.Progress) {
	m.state.Progress = &progress
	m.view.ShowProgress(progress)
}

func (m *mainLoop) showStatus(kind core.StatusKind, format string, args ...interface{}) {
	m.state.Status = core.Status{Kind: kind, Message: fmt.Sprintf(format, args...)}
	m.view.ShowStatus(m.state.Status)
}

func (m *mainLoop) showStats() {
	display := m.state.Settings.Display
	m.state.Stats = spots.Summarize(m.state.Spots, m.plan, display.Bands, display.ExcludeOddCallsigns)
	m.view.ShowStats(m.state.Stats)
}

func (m *mainLoop) prepareLoad(now time.Time) (int, string, error) {
	settings := m.state.Settings
	if settings.Display.Bands.Len() == 0 {
		m.showStatus(core.StatusError, "Please select at least one frequency band")
		return 0, "", ErrNoBands
	}
	m.generation++
	statement := wsprlive.BuildQuery(settings.Query, settings.Display.ExcludeOddCallsigns, m.plan.QueryRanges(settings.Display.Bands), now)
	m.showStatus(core.StatusLoading, "Loading WSPR spots...")
	log.Printf("loading spots: %s", statement)
	return m.generation, statement, nil
}

func (m *mainLoop) applyLoad(generation int, result []core.Spot, fetchErr error) error {
	if generation != m.generation {
		log.Printf("discarding %d spots of an outdated load", len(result))
		return nil
	}
	if fetchErr != nil {
		m.showStatus(core.StatusError, "Error: %v", fetchErr)
		m.clear()
		return errors.Wrap(fetchErr, "cannot load spots")
	}
	if len(result) == 0 {
		m.showStatus(core.StatusError, "No spots found")
		m.clear()
		return ErrNoSpots
	}

	m.state.Spots = spots.FilterByCallsign(result, m.state.Settings.Display.ExcludeOddCallsigns)
	m.state.Loaded = true
	m.state.Progress = nil
	m.engine.Load(m.state.Spots)
	m.syncFrames(false)
	if !m.engine.Enabled() {
		m.renderStatic()
	}
	m.showStats()

	count, beacon := visibleCount(m.state.Payload)
	if beacon {
		m.showStatus(core.StatusSuccess, "Loaded %d beacon positions from %d spots", count, len(result))
	} else {
		m.showStatus(core.StatusSuccess, "Loaded %d unique paths from %d spots", count, len(result))
	}
	return nil
}

func (m *mainLoop) clear() {
	m.state.Spots = nil
	m.state.Loaded = false
	m.state.Progress = nil
	m.engine.Load(nil)
	m.syncFrames(false)
	m.ShowPayload(emptyPayload(m.state.Settings.Display.Mode()))
	m.showStats()
}

func (m *mainLoop) updateSettings(update func(*core.Settings)) core.Settings {
	before := m.state.Settings
	after := before.Copy()
	update(&after)

	display, playing := m.engine.Configure(m.clock(), func(d *core.Display) {
		*d = after.Display
	})
	after.Display = display
	m.state.Settings = after
	m.syncFrames(playing)

	if !sameDisplay(before.Display, after.Display) {
		m.rerender()
	}
	return after.Copy()
}

// rerender shows the loaded spots again with the current display settings.
func (m *mainLoop) rerender() {
	if !m.state.Loaded || len(m.state.Spots) == 0 {
		return
	}
	if m.engine.Enabled() {
		minutes := int(m.engine.WindowSize() / time.Minute)
		m.showStatus(core.StatusSuccess, "Time-lapse ready: %d spots, %d-minute windows", len(m.state.Spots), minutes)
		m.showStats()
		return
	}

	m.state.Progress = nil
	m.renderStatic()
	count, beacon := visibleCount(m.state.Payload)
	if beacon {
		m.showStatus(core.StatusSuccess, "Showing %d beacon positions (filtered from %d spots)", count, len(m.state.Spots))
	} else {
		m.showStatus(core.StatusSuccess, "Showing %d unique paths (filtered from %d spots)", count, len(m.state.Spots))
	}
	m.showStats()
}

func (m *mainLoop) renderStatic() {
	display := m.state.Settings.Display
	visible := spots.FilterByCallsign(m.state.Spots, display.ExcludeOddCallsigns)
	m.ShowPayload(m.reducer.Reduce(visible, paths.OptionsFrom(display, false)))
}

func (m *mainLoop) play() {
	m.syncFrames(m.engine.Play(m.clock()))
}

func (m *mainLoop) pause() {
	m.engine.Pause()
	m.syncFrames(false)
}

func (m *mainLoop) snapshot() State {
	result := m.state
	result.Settings = m.state.Settings.Copy()
	if m.state.Progress != nil {
		progress := *m.state.Progress
		result.Progress = &progress
	}
	return result
}

// visibleCount returns the number of shown paths or, in beacon mode, beacon positions.
func visibleCount(payload core.Payload) (int, bool) {
	switch payload.Mode {
	case core.BeaconMode:
		return len(payload.Points), true
	case core.HeatmapMode:
		return payload.PathCount, false
	default:
		return len(payload.Arcs), false
	}
}

func emptyPayload(mode core.DisplayMode) core.Payload {
	return core.Payload{
		Mode:    mode,
		Arcs:    []core.Arc{},
		Points:  []core.Point{},
		Heatmap: []core.HeatBin{},
		Labels:  []core.Label{},
	}
}

func sameDisplay(a, b core.Display) bool {
	a.Bands = a.Bands.Copy()
	b.Bands = b.Bands.Copy()
	return reflect.DeepEqual(a, b)
}

type nopView struct{}

func (nopView) ShowPayload(core.Payload)        {}
func (nopView) ShowProgress(timelapse.Progress) {}
func (nopView) ShowStatus(core.Status)          {}
func (nopView) ShowStats(spots.Stats)           {}
