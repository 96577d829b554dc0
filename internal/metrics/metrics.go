// ABOUTME: Prometheus metrics for session and transfer accounting
// ABOUTME: Counters shared by the pipeline plus an HTTP handler for scraping
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiotap_sessions_started_total",
		Help: "Total number of recording sessions started",
	})
	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiotap_sessions_completed_total",
		Help: "Total number of recording sessions that ended cleanly",
	})
	SessionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiotap_sessions_failed_total",
		Help: "Total number of recording sessions ended by a fault",
	})
	BlocksCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiotap_blocks_captured_total",
		Help: "Total number of sample blocks read from the capture device",
	})
	PCMBytesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiotap_pcm_bytes_recorded_total",
		Help: "Total PCM bytes appended to recording files",
	})
	PlaybackShortWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiotap_playback_short_writes_total",
		Help: "Total playback writes that accepted fewer samples than requested",
	})
	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "audiotap_session_duration_seconds",
		Help:    "Recording session durations in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
