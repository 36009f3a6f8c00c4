package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Frequency represents a frequency in Hz.
type Frequency float64

func (f Frequency) String() string {
	return fmt.Sprintf("%.2fHz", f)
}

// MHz returns the frequency in MHz.
func (f Frequency) MHz() float64 {
	return float64(f) / 1000000.0
}

// UnmarshalJSON accepts plain numbers and quoted numbers, as 64 bit integers are quoted in ClickHouse JSON output.
func (f *Frequency) UnmarshalJSON(data []byte) error {
	value, err := flexibleFloat(data)
	if err != nil {
		return err
	}
	*f = Frequency(value)
	return nil
}

// FrequencyRange represents a range of frequencies.
type FrequencyRange struct {
	From, To Frequency
}

func (r FrequencyRange) String() string {
	return fmt.Sprintf("[%v,%v]", r.From, r.To)
}

// Contains the given frequency, both ends inclusive.
func (r FrequencyRange) Contains(f Frequency) bool {
	return f >= r.From && f <= r.To
}

// DB represents decibel (dB).
type DB float64

func (f DB) String() string {
	return fmt.Sprintf("%.0fdB", f)
}

// UnmarshalJSON accepts plain and quoted numbers.
func (f *DB) UnmarshalJSON(data []byte) error {
	value, err := flexibleFloat(data)
	if err != nil {
		return err
	}
	*f = DB(value)
	return nil
}

// Number is a plain JSON number that may also arrive quoted.
type Number float64

// UnmarshalJSON accepts plain and quoted numbers.
func (n *Number) UnmarshalJSON(data []byte) error {
	value, err := flexibleFloat(data)
	if err != nil {
		return err
	}
	*n = Number(value)
	return nil
}

func flexibleFloat(data []byte) (float64, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return 0, nil
	}
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}
	var value float64
	err := json.Unmarshal(data, &value)
	return value, err
}

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p LatLng) String() string {
	return fmt.Sprintf("(%.4f,%.4f)", p.Lat, p.Lng)
}

// Spot is one reception report as delivered by the data API. The time is kept in its raw textual form.
type Spot struct {
	TxSign    string    `json:"tx_sign"`
	RxSign    string    `json:"rx_sign"`
	TxLoc     string    `json:"tx_loc"`
	RxLoc     string    `json:"rx_loc"`
	Frequency Frequency `json:"frequency"`
	SNR       DB        `json:"snr"`
	Power     Number    `json:"power"`
	Drift     Number    `json:"drift"`
	Time      string    `json:"time"`
}

func (s Spot) String() string {
	return fmt.Sprintf("%s (%s) -> %s (%s) @ %v", s.TxSign, s.TxLoc, s.RxSign, s.RxLoc, s.Frequency)
}

// BandKey identifies a band by its center frequency in MHz, e.g. "14" or "0.475".
type BandKey string

// BandSet is the set of selected bands.
type BandSet map[BandKey]bool

// NewBandSet returns a set containing the given keys.
func NewBandSet(keys ...BandKey) BandSet {
	result := make(BandSet, len(keys))
	for _, key := range keys {
		result[key] = true
	}
	return result
}

// Contains the given band.
func (s BandSet) Contains(key BandKey) bool {
	return s[key]
}

// Len returns the number of selected bands.
func (s BandSet) Len() int {
	result := 0
	for _, selected := range s {
		if selected {
			result++
		}
	}
	return result
}

// Copy returns an independent copy of the set.
func (s BandSet) Copy() BandSet {
	result := make(BandSet, len(s))
	for key, selected := range s {
		if selected {
			result[key] = true
		}
	}
	return result
}

// Query parameters for loading spots.
type Query struct {
	RxCall        string `json:"rx"`
	TxCall        string `json:"tx"`
	WindowMinutes int    `json:"window"`
	DaysAgo       int    `json:"days"`
	HoursAgo      int    `json:"hours"`
	MaxSpots      int    `json:"maxSpots"`
}

// Display parameters that control how the loaded spots are shown.
type Display struct {
	// MaxDisplay limits the number of shown paths, 0 means all.
	MaxDisplay          int           `json:"maxLines"`
	Bands               BandSet       `json:"bands"`
	AnimateLines        bool          `json:"animateLines"`
	SolidLines          bool          `json:"solidLines"`
	ShowMarkers         bool          `json:"showMarkers"`
	Heatmap             bool          `json:"heatmap"`
	Beacon              bool          `json:"beacon"`
	ExcludeOddCallsigns bool          `json:"excludeOddCallsigns"`
	Timelapse           bool          `json:"timelapse"`
	TimelapseWindow     time.Duration `json:"timelapseWindow"`
	TimelapseSpeed      float64       `json:"timelapseSpeed"`
	Terminator          bool          `json:"terminator"`
}

// Mode derives the display mode. Beacon mode takes precedence over the heatmap.
func (d Display) Mode() DisplayMode {
	switch {
	case d.Beacon:
		return BeaconMode
	case d.Heatmap:
		return HeatmapMode
	default:
		return ArcMode
	}
}

// Settings combine query and display parameters.
type Settings struct {
	Query   Query   `json:"query"`
	Display Display `json:"display"`
}

// Copy returns a deep copy of the settings.
func (s Settings) Copy() Settings {
	result := s
	result.Display.Bands = s.Display.Bands.Copy()
	return result
}

// DisplayMode selects the path reduction.
type DisplayMode int

// All display modes.
const (
	ArcMode DisplayMode = iota
	BeaconMode
	HeatmapMode
)

func (m DisplayMode) String() string {
	switch m {
	case ArcMode:
		return "arcs"
	case BeaconMode:
		return "beacon"
	case HeatmapMode:
		return "heatmap"
	default:
		return "unknown"
	}
}

// Arc is a great-circle path between two stations.
type Arc struct {
	StartLat float64 `json:"startLat"`
	StartLng float64 `json:"startLng"`
	EndLat   float64 `json:"endLat"`
	EndLng   float64 `json:"endLng"`
	Color    string  `json:"color"`
	Spot     Spot    `json:"spot"`
}

// PointKind classifies points on the globe.
type PointKind string

// All point kinds.
const (
	TxPoint     PointKind = "tx"
	RxPoint     PointKind = "rx"
	BeaconPoint PointKind = "beacon"
)

// Point is a marker on the globe.
type Point struct {
	Lat    float64   `json:"lat"`
	Lng    float64   `json:"lng"`
	Color  string    `json:"color"`
	Radius float64   `json:"radius"`
	Kind   PointKind `json:"kind"`
	Label  string    `json:"label,omitempty"`
	Spot   *Spot     `json:"spot,omitempty"`
}

// HeatBin is one cell of the activity heatmap.
type HeatBin struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Count  int     `json:"count"`
	Weight float64 `json:"weight"`
}

// Label is a text annotation on the globe.
type Label struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
}

// Style hints for the renderer.
type Style struct {
	DashAnimated bool `json:"dashAnimated"`
}

// TimeSpan is a half-open interval of instants.
type TimeSpan struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (s TimeSpan) String() string {
	return fmt.Sprintf("[%s,%s)", s.From.Format(time.RFC3339), s.To.Format(time.RFC3339))
}

// Duration of the span.
func (s TimeSpan) Duration() time.Duration {
	return s.To.Sub(s.From)
}

// Contains the given instant.
func (s TimeSpan) Contains(t time.Time) bool {
	return !t.Before(s.From) && t.Before(s.To)
}

// Payload is everything the renderer needs for one frame. Depending on the mode only some layers are populated.
type Payload struct {
	Mode    DisplayMode `json:"-"`
	Arcs    []Arc       `json:"arcs"`
	Points  []Point     `json:"points"`
	Heatmap []HeatBin   `json:"heatmap"`
	Labels  []Label     `json:"labels"`
	Style   Style       `json:"style"`
	Span    *TimeSpan   `json:"span,omitempty"`

	// PathCount is the number of unique paths or beacon positions before sampling.
	PathCount int `json:"pathCount"`
}

// Empty indicates that the payload draws nothing.
func (p Payload) Empty() bool {
	return len(p.Arcs) == 0 && len(p.Points) == 0 && len(p.Heatmap) == 0 && len(p.Labels) == 0
}

// StatusKind classifies status messages.
type StatusKind string

// All status kinds.
const (
	StatusInfo    StatusKind = "info"
	StatusLoading StatusKind = "loading"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status line shown to the user.
type Status struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
}

func (s Status) String() string {
	return fmt.Sprintf("%s: %s", s.Kind, s.Message)
}

// Configuration parameters of the application.
type Configuration struct {
	HTTPAddress       string
	APIURL            string
	PublicURL         string
	ShortlinkDB       string
	FramesPerSecond   int
	HeatmapWaitFrames int
	Defaults          Settings
}
