// Package stats provides the client's Prometheus metrics: connection pool
// occupancy, bytes moved per item I/O engine, and lock acquire latency.
// Modeled on the teacher's `stats` package (Prometheus variant) but scoped
// to one client process rather than a cluster daemon's per-target/per-proxy
// registries.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a per-Client metric set, registered against the caller-supplied
// registry so multiple clients in one process don't collide.
type Stats struct {
	ConnIdle     *prometheus.GaugeVec
	ConnInUse    *prometheus.GaugeVec
	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter
	LockAcquireSeconds prometheus.Histogram
	DataCreates  prometheus.Counter
}

// New registers and returns a fresh metric set. Pass prometheus.NewRegistry()
// for test isolation, or prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Stats {
	s := &Stats{
		ConnIdle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "julea",
			Subsystem: "connpool",
			Name:      "idle_connections",
			Help:      "idle connections currently queued, by server",
		}, []string{"server"}),
		ConnInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "julea",
			Subsystem: "connpool",
			Name:      "in_use_connections",
			Help:      "connections currently borrowed, by server",
		}, []string{"server"}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "julea",
			Subsystem: "item",
			Name:      "bytes_read_total",
			Help:      "total bytes read across all item read operations",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "julea",
			Subsystem: "item",
			Name:      "bytes_written_total",
			Help:      "total bytes written across all item write operations",
		}),
		LockAcquireSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "julea",
			Subsystem: "dlock",
			Name:      "acquire_seconds",
			Help:      "time spent in each Lock.Acquire attempt, excluding backoff sleeps between retries",
			Buckets:   prometheus.DefBuckets,
		}),
		DataCreates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "julea",
			Subsystem: "item",
			Name:      "data_creates_total",
			Help:      "DATA_CREATE messages sent (one per item per server per process)",
		}),
	}
	reg.MustRegister(s.ConnIdle, s.ConnInUse, s.BytesRead, s.BytesWritten, s.LockAcquireSeconds, s.DataCreates)
	return s
}

// Noop returns a Stats backed by an isolated registry, for callers (and
// tests) that don't want to touch prometheus.DefaultRegisterer.
func Noop() *Stats {
	return New(prometheus.NewRegistry())
}
