// Package metrics exposes Prometheus counters for the sync pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so wiring it is optional in tests.
type Metrics struct {
	syncRuns     *prometheus.CounterVec
	rowsTouched  *prometheus.CounterVec
	lastSyncTime *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		syncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domaindesk_sync_runs_total",
			Help: "Sync runs by kind and outcome.",
		}, []string{"kind", "status"}),
		rowsTouched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domaindesk_sync_rows_total",
			Help: "Domain rows inserted or updated by sync kind.",
		}, []string{"kind", "op"}),
		lastSyncTime: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "domaindesk_last_sync_timestamp_seconds",
			Help: "Unix time of the last successful sync by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) RecordRun(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.syncRuns.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) AddRows(kind, op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.rowsTouched.WithLabelValues(kind, op).Add(float64(n))
}

func (m *Metrics) SetLastSync(kind string, unixSeconds float64) {
	if m == nil {
		return
	}
	m.lastSyncTime.WithLabelValues(kind).Set(unixSeconds)
}
