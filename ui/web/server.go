/*
Package web serves the HTTP API of the globe: settings, loading, time-lapse controls, the event stream that carries
the render payloads, and the share links.
*/
package web

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/ftl/wsprglobe/core"
	"github.com/ftl/wsprglobe/core/app"
	"github.com/ftl/wsprglobe/core/geo"
	"github.com/ftl/wsprglobe/core/metrics"
	"github.com/ftl/wsprglobe/core/share"
	"github.com/ftl/wsprglobe/core/spots"
	"github.com/ftl/wsprglobe/core/timelapse"
)

// TerminatorSegments is the default number of points of the day/night boundary.
const TerminatorSegments = 180

// Controller of the application.
type Controller interface {
	Settings() (core.Settings, error)
	ApplyLink(url.Values) (core.Settings, bool, error)
	Load(context.Context) error
	Play() error
	Pause() error
	TogglePlay() error
	Reset() error
	BeginScrub() error
	Scrub(float64)
	EndScrub() error
	Snapshot() (app.State, error)
	ShareURL() (string, error)
}

// Shortener keeps short links.
type Shortener interface {
	Shorten(ctx context.Context, target string, now time.Time) (string, error)
	Resolve(ctx context.Context, code string) (string, error)
}

// Server of the HTTP API.
type Server struct {
	controller Controller
	stream     *Stream
	shortener  Shortener
	publicURL  string
	clock      func() time.Time
}

// NewServer returns a new server. shortener may be nil, then short links are not available.
func NewServer(controller Controller, stream *Stream, shortener Shortener, publicURL string) *Server {
	return &Server{
		controller: controller,
		stream:     stream,
		shortener:  shortener,
		publicURL:  publicURL,
		clock:      time.Now,
	}
}

// Handler returns the router with all routes.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger(), observe(), cors())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/s/:code", s.resolveShortLink)

	api := r.Group("/api/v1")
	{
		api.GET("/settings", s.getSettings)
		api.PUT("/settings", s.putSettings)
		api.POST("/load", s.load)
		api.GET("/payload", s.getPayload)
		api.GET("/stats", s.getStats)
		api.GET("/stream", s.stream.Serve)
		api.POST("/click", s.click)
		api.GET("/terminator", s.terminator)

		playback := api.Group("/timelapse")
		{
			playback.POST("/play", s.control(s.controller.Play))
			playback.POST("/pause", s.control(s.controller.Pause))
			playback.POST("/toggle", s.control(s.controller.TogglePlay))
			playback.POST("/reset", s.control(s.controller.Reset))
			playback.POST("/scrub", s.scrub)
			playback.POST("/scrub/begin", s.control(s.controller.BeginScrub))
			playback.POST("/scrub/end", s.control(s.controller.EndScrub))
		}

		shareLinks := api.Group("/share")
		{
			shareLinks.GET("", s.getShareURL)
			shareLinks.GET("/qr", s.getQRCode)
			shareLinks.POST("/short", s.shorten)
		}
	}
	return r
}

func (s *Server) getSettings(c *gin.Context) {
	settings, err := s.controller.Settings()
	if err != nil {
		unavailable(c, err)
		return
	}
	success(c, settings)
}

type settingsResult struct {
	Settings  core.Settings `json:"settings"`
	AutoLoad  bool          `json:"autoLoad"`
	LoadError string        `json:"loadError,omitempty"`
}

func (s *Server) putSettings(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		badRequest(c, "invalid parameters")
		return
	}
	settings, autoLoad, err := s.controller.ApplyLink(c.Request.Form)
	if err != nil {
		internalError(c, err.Error())
		return
	}
	result := settingsResult{Settings: settings, AutoLoad: autoLoad}
	if autoLoad {
		if err := s.controller.Load(c.Request.Context()); err != nil {
			result.LoadError = err.Error()
		}
	}
	success(c, result)
}

type loadResult struct {
	Status core.Status `json:"status"`
	Stats  spots.Stats `json:"stats"`
}

func (s *Server) load(c *gin.Context) {
	err := s.controller.Load(c.Request.Context())
	switch errors.Cause(err) {
	case nil:
		state, err := s.controller.Snapshot()
		if err != nil {
			unavailable(c, err)
			return
		}
		success(c, loadResult{Status: state.Status, Stats: state.Stats})
	case app.ErrNoBands:
		badRequest(c, "Please select at least one frequency band")
	case app.ErrNoSpots:
		notFound(c, "No spots found")
	case app.ErrStopped:
		unavailable(c, err)
	default:
		state, stateErr := s.controller.Snapshot()
		if stateErr != nil {
			unavailable(c, stateErr)
			return
		}
		fail(c, http.StatusBadGateway, state.Status.Message)
	}
}

func (s *Server) getPayload(c *gin.Context) {
	state, err := s.controller.Snapshot()
	if err != nil {
		unavailable(c, err)
		return
	}
	success(c, state.Payload)
}

func (s *Server) getStats(c *gin.Context) {
	state, err := s.controller.Snapshot()
	if err != nil {
		unavailable(c, err)
		return
	}
	success(c, state.Stats)
}

type playbackResult struct {
	Playing  bool                `json:"playing"`
	Progress *timelapse.Progress `json:"progress,omitempty"`
}

func (s *Server) control(action func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := action(); err != nil {
			unavailable(c, err)
			return
		}
		state, err := s.controller.Snapshot()
		if err != nil {
			unavailable(c, err)
			return
		}
		success(c, playbackResult{Playing: state.Playing, Progress: state.Progress})
	}
}

func (s *Server) scrub(c *gin.Context) {
	percent, err := strconv.ParseFloat(c.Query("percent"), 64)
	if err != nil || percent < 0 || percent > 100 {
		badRequest(c, "percent must be a number between 0 and 100")
		return
	}
	s.controller.Scrub(percent)
	c.Status(http.StatusAccepted)
}

func (s *Server) click(c *gin.Context) {
	var spot core.Spot
	if err := c.ShouldBindJSON(&spot); err != nil {
		badRequest(c, "invalid spot")
		return
	}
	success(c, spots.Describe(spot))
}

type terminatorResult struct {
	Time     time.Time     `json:"time"`
	Subsolar core.LatLng   `json:"subsolar"`
	Line     []core.LatLng `json:"line"`
	Grid     string        `json:"grid,omitempty"`
	Daylight *bool         `json:"daylight,omitempty"`
}

func (s *Server) terminator(c *gin.Context) {
	at := s.clock().UTC()
	if v := c.Query("time"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, "time must be RFC 3339")
			return
		}
		at = parsed.UTC()
	}
	segments := TerminatorSegments
	if v := c.Query("segments"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 4 || n > 3600 {
			badRequest(c, "segments must be between 4 and 3600")
			return
		}
		segments = n
	}
	result := terminatorResult{
		Time:     at,
		Subsolar: geo.SubsolarPoint(at),
		Line:     geo.Terminator(at, segments),
	}
	if grid := strings.ToUpper(c.Query("grid")); grid != "" {
		position, ok := geo.GridToLatLng(grid)
		if !ok {
			badRequest(c, "invalid grid locator")
			return
		}
		daylight := geo.IsDaylight(position, at)
		result.Grid = grid
		result.Daylight = &daylight
	}
	success(c, result)
}

func (s *Server) getShareURL(c *gin.Context) {
	link, err := s.controller.ShareURL()
	if err != nil {
		shareError(c, err)
		return
	}
	success(c, gin.H{"url": link})
}

func (s *Server) getQRCode(c *gin.Context) {
	link, err := s.controller.ShareURL()
	if err != nil {
		shareError(c, err)
		return
	}
	size := share.DefaultQRSize
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 1024 {
			badRequest(c, "size must be between 64 and 1024")
			return
		}
		size = n
	}
	png, err := share.QRCode(link, size)
	if err != nil {
		internalError(c, err.Error())
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) shorten(c *gin.Context) {
	if s.shortener == nil {
		fail(c, http.StatusServiceUnavailable, "short links are not available")
		return
	}
	link, err := s.controller.ShareURL()
	if err != nil {
		shareError(c, err)
		return
	}
	code, err := s.shortener.Shorten(c.Request.Context(), link, s.clock())
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, gin.H{"code": code, "url": s.shortURL(code), "target": link})
}

func shareError(c *gin.Context, err error) {
	if errors.Cause(err) == app.ErrStopped {
		unavailable(c, err)
		return
	}
	internalError(c, err.Error())
}

func (s *Server) shortURL(code string) string {
	return strings.TrimRight(s.publicURL, "/") + "/s/" + code
}

func (s *Server) resolveShortLink(c *gin.Context) {
	if s.shortener == nil {
		notFound(c, "short links are not available")
		return
	}
	target, err := s.shortener.Resolve(c.Request.Context(), c.Param("code"))
	if err == share.ErrNotFound {
		notFound(c, "unknown short link")
		return
	}
	if err != nil {
		internalError(c, err.Error())
		return
	}
	c.Redirect(http.StatusFound, target)
}
