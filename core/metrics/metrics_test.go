package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest_EmptyPathIsOther(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "404"))

	ObserveRequest("", "GET", 404, time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "404")))
}

func TestHeatmapCounters(t *testing.T) {
	deferred := testutil.ToFloat64(heatmapFramesTotal.WithLabelValues("deferred"))
	swapped := testutil.ToFloat64(heatmapFramesTotal.WithLabelValues("swapped"))

	HeatmapDeferred()
	HeatmapDeferred()
	HeatmapSwapped()

	assert.Equal(t, deferred+2, testutil.ToFloat64(heatmapFramesTotal.WithLabelValues("deferred")))
	assert.Equal(t, swapped+1, testutil.ToFloat64(heatmapFramesTotal.WithLabelValues("swapped")))
}

func TestSpotsLoaded(t *testing.T) {
	before := testutil.ToFloat64(spotsLoadedTotal)

	SpotsLoaded(42, 300*time.Millisecond)

	assert.Equal(t, before+42, testutil.ToFloat64(spotsLoadedTotal))
}

func TestStreamClients(t *testing.T) {
	before := testutil.ToFloat64(streamClients)

	StreamConnected()
	StreamConnected()
	StreamDisconnected()

	assert.Equal(t, before+1, testutil.ToFloat64(streamClients))
}
