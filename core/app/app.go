package app

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/bandplan"
	"github.com/ftl/wsprglobe/core/metrics"
	"github.com/ftl/wsprglobe/core/share"
	"github.com/ftl/wsprglobe/core/spots"
	"github.com/ftl/wsprglobe/core/timelapse"
)

// Errors reported by the controller.
var (
	ErrNoBands = errors.New("no frequency band selected")
	ErrNoSpots = errors.New("no spots found")
	ErrStopped = errors.New("application is not running")
)

// New returns a new controller for the given configuration that loads its spots with the given fetcher.
func New(configuration core.Configuration, fetcher Fetcher) *Controller {
	return &Controller{
		configuration: configuration,
		fetcher:       fetcher,
		loop:          newMainLoop(bandplan.WSPR, configuration.Defaults, configuration.FramesPerSecond, configuration.HeatmapWaitFrames),
		subProcesses:  new(sync.WaitGroup),
	}
}

// Fetcher runs a query against the spot database.
type Fetcher interface {
	Fetch(ctx context.Context, statement string) ([]core.Spot, error)
}

// View receives everything that is shown to the user. All methods are called from the main loop.
type View interface {
	ShowPayload(core.Payload)
	ShowProgress(timelapse.Progress)
	ShowStatus(core.Status)
	ShowStats(spots.Stats)
}

// State of the application. Slices are shared with the main loop and must not be modified.
type State struct {
	Settings core.Settings       `json:"settings"`
	Spots    []core.Spot         `json:"-"`
	Loaded   bool                `json:"loaded"`
	Payload  core.Payload        `json:"-"`
	Stats    spots.Stats         `json:"stats"`
	Status   core.Status         `json:"status"`
	Progress *timelapse.Progress `json:"progress,omitempty"`
	Playing  bool                `json:"playing"`
}

// Controller for the application.
type Controller struct {
	configuration core.Configuration
	fetcher       Fetcher
	loop          *mainLoop

	done         chan struct{}
	subProcesses *sync.WaitGroup
}

// SetView sets the view. It must be called before Startup.
func (c *Controller) SetView(view View) {
	c.loop.view = view
}

// Configuration of the application.
func (c *Controller) Configuration() core.Configuration {
	return c.configuration
}

// Plan returns the bandplan in use.
func (c *Controller) Plan() bandplan.Bandplan {
	return c.loop.plan
}

// Startup the application.
func (c *Controller) Startup() {
	c.done = make(chan struct{})
	c.subProcesses.Add(1)
	go func() {
		defer c.subProcesses.Done()
		c.loop.Run(c.done)
	}()
}

// Shutdown the application.
func (c *Controller) Shutdown() {
	close(c.done)
	c.subProcesses.Wait()
}

// Settings returns the current settings.
func (c *Controller) Settings() (core.Settings, error) {
	var result core.Settings
	err := c.loop.do(func() {
		result = c.loop.state.Settings.Copy()
	})
	return result, err
}

// UpdateSettings applies the given update to the current settings and shows the loaded spots accordingly.
// It returns the effective settings, which may differ from the requested ones as the time-lapse mode cannot be
// combined with the beacon mode or animated lines.
func (c *Controller) UpdateSettings(update func(*core.Settings)) (core.Settings, error) {
	var result core.Settings
	err := c.loop.do(func() {
		result = c.loop.updateSettings(update)
	})
	return result, err
}

// ApplyLink restores the settings from the parameters of a share link, based on the configured defaults.
// It returns true if the spots should be loaded right away.
func (c *Controller) ApplyLink(values url.Values) (core.Settings, bool, error) {
	decoded, autoLoad := share.Decode(values, c.configuration.Defaults, c.loop.plan)
	settings, err := c.UpdateSettings(func(s *core.Settings) {
		*s = decoded
	})
	return settings, autoLoad, err
}

// Load the spots for the current settings. The query runs in the caller's goroutine, only the result is applied
// on the main loop. A load that is overtaken by a later one is discarded.
func (c *Controller) Load(ctx context.Context) error {
	var generation int
	var statement string
	var err error
	if doErr := c.loop.do(func() {
		generation, statement, err = c.loop.prepareLoad(c.loop.clock())
	}); doErr != nil {
		return doErr
	}
	if err != nil {
		return err
	}

	start := time.Now()
	result, fetchErr := c.fetcher.Fetch(ctx, statement)
	duration := time.Since(start)
	if fetchErr != nil {
		metrics.FetchFailed(duration)
		log.Printf("loading spots failed after %v: %v", duration, fetchErr)
	} else {
		metrics.SpotsLoaded(len(result), duration)
	}

	if doErr := c.loop.do(func() {
		err = c.loop.applyLoad(generation, result, fetchErr)
	}); doErr != nil {
		return doErr
	}
	return err
}

// Play the time-lapse.
func (c *Controller) Play() error {
	return c.loop.do(c.loop.play)
}

// Pause the time-lapse.
func (c *Controller) Pause() error {
	return c.loop.do(c.loop.pause)
}

// TogglePlay switches between play and pause.
func (c *Controller) TogglePlay() error {
	return c.loop.do(func() {
		if c.loop.engine.Playing() {
			c.loop.pause()
		} else {
			c.loop.play()
		}
	})
}

// Reset the time-lapse to the start of the loaded spots.
func (c *Controller) Reset() error {
	return c.loop.do(func() {
		c.loop.engine.Reset()
		c.loop.syncFrames(false)
	})
}

// BeginScrub starts dragging the time-lapse position.
func (c *Controller) BeginScrub() error {
	return c.loop.do(func() {
		c.loop.engine.BeginScrub()
		c.loop.syncFrames(false)
	})
}

// Scrub moves the time-lapse to the given position in percent. Without BeginScrub a running playback is paused.
// Positions are dropped if the main loop is busy.
func (c *Controller) Scrub(percent float64) {
	c.loop.q(func() {
		c.loop.engine.Scrub(percent)
		c.loop.syncFrames(c.loop.engine.Playing())
	})
}

// EndScrub finishes dragging and resumes the playback if it was running before.
func (c *Controller) EndScrub() error {
	return c.loop.do(func() {
		c.loop.syncFrames(c.loop.engine.EndScrub(c.loop.clock()))
	})
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() (State, error) {
	var result State
	err := c.loop.do(func() {
		result = c.loop.snapshot()
	})
	return result, err
}

// ShareURL returns the share link for the current settings.
func (c *Controller) ShareURL() (string, error) {
	settings, err := c.Settings()
	if err != nil {
		return "", err
	}
	return share.URL(c.configuration.PublicURL, settings, c.configuration.Defaults, c.loop.plan)
}
