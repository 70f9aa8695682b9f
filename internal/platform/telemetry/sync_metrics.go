package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// SyncMetrics exposes reconciliation counters to Prometheus.
type SyncMetrics struct {
	runs      *prometheus.CounterVec
	conflicts prometheus.Counter
	added     prometheus.Counter
}

// NewSyncMetrics creates the sync counters and registers them with reg.
func NewSyncMetrics(reg prometheus.Registerer) (*SyncMetrics, error) {
	m := &SyncMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quote_sync_runs_total",
			Help: "Sync runs by outcome.",
		}, []string{"outcome"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quote_sync_conflicts_total",
			Help: "Local quotes overwritten by server data.",
		}),
		added: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quote_sync_added_total",
			Help: "Server quotes appended to the local store.",
		}),
	}

	for _, c := range []prometheus.Collector{m.runs, m.conflicts, m.added} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordSync implements ports.SyncMetrics.
func (m *SyncMetrics) RecordSync(outcome ports.SyncOutcome, conflicts, added int) {
	m.runs.WithLabelValues(string(outcome)).Inc()
	m.conflicts.Add(float64(conflicts))
	m.added.Add(float64(added))
}
