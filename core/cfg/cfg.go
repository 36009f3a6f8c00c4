package cfg

import (
	"strings"
	"time"

	"github.com/ftl/hamradio/cfg"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/bandplan"
	"github.com/ftl/wsprglobe/core/timelapse"
	"github.com/ftl/wsprglobe/core/wsprlive"
)

const (
	httpAddr          cfg.Key = "wsprglobe.httpAddr"
	apiURL            cfg.Key = "wsprglobe.apiURL"
	publicURL         cfg.Key = "wsprglobe.publicURL"
	shortlinkDB       cfg.Key = "wsprglobe.shortlinkDB"
	framesPerSecond   cfg.Key = "wsprglobe.framesPerSecond"
	heatmapWaitFrames cfg.Key = "wsprglobe.heatmapWaitFrames"

	defaultWindow          cfg.Key = "wsprglobe.defaults.window"
	defaultMaxSpots        cfg.Key = "wsprglobe.defaults.maxSpots"
	defaultMaxLines        cfg.Key = "wsprglobe.defaults.maxLines"
	defaultBands           cfg.Key = "wsprglobe.defaults.bands"
	defaultShowMarkers     cfg.Key = "wsprglobe.defaults.showMarkers"
	defaultExcludeOdd      cfg.Key = "wsprglobe.defaults.excludeOddCallsigns"
	defaultTerminator      cfg.Key = "wsprglobe.defaults.terminator"
	defaultTimelapseWindow cfg.Key = "wsprglobe.defaults.timelapseWindow"
	defaultTimelapseSpeed  cfg.Key = "wsprglobe.defaults.timelapseSpeed"
)

// Load the configuration from the default location of the hamradio configuration file.
func Load() (core.Configuration, error) {
	configuration, err := cfg.LoadDefault()
	if err != nil {
		return core.Configuration{}, err
	}

	static := Static()
	defaults := static.Defaults
	result := core.Configuration{
		HTTPAddress:       configuration.Get(httpAddr, static.HTTPAddress).(string),
		APIURL:            configuration.Get(apiURL, static.APIURL).(string),
		PublicURL:         configuration.Get(publicURL, static.PublicURL).(string),
		ShortlinkDB:       configuration.Get(shortlinkDB, static.ShortlinkDB).(string),
		FramesPerSecond:   int(configuration.Get(framesPerSecond, float64(static.FramesPerSecond)).(float64)),
		HeatmapWaitFrames: int(configuration.Get(heatmapWaitFrames, float64(static.HeatmapWaitFrames)).(float64)),
		Defaults: core.Settings{
			Query: core.Query{
				WindowMinutes: int(configuration.Get(defaultWindow, float64(defaults.Query.WindowMinutes)).(float64)),
				MaxSpots:      int(configuration.Get(defaultMaxSpots, float64(defaults.Query.MaxSpots)).(float64)),
			},
			Display: core.Display{
				MaxDisplay:          int(configuration.Get(defaultMaxLines, float64(defaults.Display.MaxDisplay)).(float64)),
				Bands:               ParseBands(configuration.Get(defaultBands, "").(string), bandplan.WSPR),
				ShowMarkers:         configuration.Get(defaultShowMarkers, defaults.Display.ShowMarkers).(bool),
				ExcludeOddCallsigns: configuration.Get(defaultExcludeOdd, defaults.Display.ExcludeOddCallsigns).(bool),
				Terminator:          configuration.Get(defaultTerminator, defaults.Display.Terminator).(bool),
				TimelapseWindow:     time.Duration(configuration.Get(defaultTimelapseWindow, defaults.Display.TimelapseWindow.Minutes()).(float64)) * time.Minute,
				TimelapseSpeed:      configuration.Get(defaultTimelapseSpeed, defaults.Display.TimelapseSpeed).(float64),
			},
		},
	}

	return Normalized(result), nil
}

// Static returns the built-in configuration.
func Static() core.Configuration {
	return core.Configuration{
		HTTPAddress:       ":8080",
		APIURL:            wsprlive.DefaultURL,
		PublicURL:         "http://localhost:8080/",
		ShortlinkDB:       "wsprglobe.db",
		FramesPerSecond:   60,
		HeatmapWaitFrames: timelapse.DefaultHeatmapWaitFrames,
		Defaults: core.Settings{
			Query: core.Query{
				WindowMinutes: 15,
				MaxSpots:      wsprlive.DefaultMaxSpots,
			},
			Display: core.Display{
				Bands:               bandplan.WSPR.All(),
				ShowMarkers:         true,
				ExcludeOddCallsigns: true,
				TimelapseWindow:     timelapse.DefaultWindow,
				TimelapseSpeed:      timelapse.DefaultSpeed,
			},
		},
	}
}

// Normalized replaces unusable values with the built-in ones.
func Normalized(c core.Configuration) core.Configuration {
	static := Static()
	if c.FramesPerSecond <= 0 {
		c.FramesPerSecond = static.FramesPerSecond
	}
	if c.HeatmapWaitFrames < 0 {
		c.HeatmapWaitFrames = static.HeatmapWaitFrames
	}
	if c.Defaults.Query.WindowMinutes <= 0 {
		c.Defaults.Query.WindowMinutes = static.Defaults.Query.WindowMinutes
	}
	if c.Defaults.Query.MaxSpots <= 0 {
		c.Defaults.Query.MaxSpots = static.Defaults.Query.MaxSpots
	}
	if c.Defaults.Display.MaxDisplay < 0 {
		c.Defaults.Display.MaxDisplay = 0
	}
	if c.Defaults.Display.Bands.Len() == 0 {
		c.Defaults.Display.Bands = static.Defaults.Display.Bands
	}
	if c.Defaults.Display.TimelapseWindow <= 0 {
		c.Defaults.Display.TimelapseWindow = static.Defaults.Display.TimelapseWindow
	}
	if c.Defaults.Display.TimelapseSpeed <= 0 {
		c.Defaults.Display.TimelapseSpeed = static.Defaults.Display.TimelapseSpeed
	}
	return c
}

// ParseBands parses a comma separated list of band keys. Unknown keys are ignored, an empty list selects all bands.
func ParseBands(s string, plan bandplan.Bandplan) core.BandSet {
	result := core.NewBandSet()
	for _, token := range strings.Split(s, ",") {
		key := core.BandKey(strings.TrimSpace(token))
		if _, ok := plan.ByKey(key); ok {
			result[key] = true
		}
	}
	if result.Len() == 0 {
		return plan.All()
	}
	return result
}
