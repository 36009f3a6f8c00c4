package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsprglobe_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wsprglobe_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	spotsLoadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wsprglobe_spots_loaded_total",
			Help: "Total number of spots loaded from the data API.",
		},
	)

	fetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wsprglobe_fetch_duration_seconds",
			Help:    "Duration of data API queries in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	fetchErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wsprglobe_fetch_errors_total",
			Help: "Total number of failed data API queries.",
		},
	)

	framesRenderedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsprglobe_frames_rendered_total",
			Help: "Total number of rendered payloads by display mode.",
		},
		[]string{"mode"},
	)

	heatmapFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsprglobe_heatmap_frames_total",
			Help: "Heatmap payloads that were deferred or swapped in by the back-pressure.",
		},
		[]string{"result"},
	)

	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wsprglobe_stream_clients",
			Help: "Number of connected event stream clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(spotsLoadedTotal)
	prometheus.MustRegister(fetchDurationSeconds)
	prometheus.MustRegister(fetchErrorsTotal)
	prometheus.MustRegister(framesRenderedTotal)
	prometheus.MustRegister(heatmapFramesTotal)
	prometheus.MustRegister(streamClients)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one HTTP request. path must be a route pattern, not the raw URL path.
func ObserveRequest(path, method string, code int, duration time.Duration) {
	if path == "" {
		path = "other"
	}
	httpRequestsTotal.WithLabelValues(path, method, strconv.Itoa(code)).Inc()
	httpDurationSeconds.WithLabelValues(path, method).Observe(duration.Seconds())
}

// SpotsLoaded records a successful query.
func SpotsLoaded(count int, duration time.Duration) {
	spotsLoadedTotal.Add(float64(count))
	fetchDurationSeconds.Observe(duration.Seconds())
}

// FetchFailed records a failed query.
func FetchFailed(duration time.Duration) {
	fetchErrorsTotal.Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// FrameRendered records a payload sent to the view.
func FrameRendered(mode string) {
	framesRenderedTotal.WithLabelValues(mode).Inc()
}

// HeatmapDeferred records a heatmap payload held back as pending.
func HeatmapDeferred() {
	heatmapFramesTotal.WithLabelValues("deferred").Inc()
}

// HeatmapSwapped records a pending heatmap payload that was swapped in.
func HeatmapSwapped() {
	heatmapFramesTotal.WithLabelValues("swapped").Inc()
}

// StreamConnected records a new event stream client.
func StreamConnected() {
	streamClients.Inc()
}

// StreamDisconnected records a closed event stream.
func StreamDisconnected() {
	streamClients.Dec()
}
