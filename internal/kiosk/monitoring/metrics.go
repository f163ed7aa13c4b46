// Package monitoring exposes Prometheus metrics for ticket issuance and
// synchronization. The kiosk does not serve /metrics itself; the host
// process decides whether and where to expose the default registry.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_tickets_issued_total",
			Help: "Ticket issuance attempts by outcome",
		},
		[]string{"result"},
	)

	syncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_sync_runs_total",
			Help: "Sync runs by outcome",
		},
		[]string{"result"},
	)

	syncUploadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_sync_upload_failures_total",
			Help: "Pending tickets that failed to upload during sync",
		},
	)

	syncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiosk_sync_duration_seconds",
			Help:    "Duration of completed sync runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)

// TicketIssued records one issuance attempt: "ok", "duplicate" or "error".
func TicketIssued(result string) {
	ticketsIssued.WithLabelValues(result).Inc()
}

// SyncRun records one sync run: "ok", "partial", "error", "skipped",
// "offline" or "busy".
func SyncRun(result string) {
	syncRuns.WithLabelValues(result).Inc()
}

// UploadFailed records one ticket left pending after its upload attempt.
func UploadFailed() {
	syncUploadFailures.Inc()
}

// ObserveSyncDuration records how long a completed run took.
func ObserveSyncDuration(d time.Duration) {
	syncDuration.Observe(d.Seconds())
}
