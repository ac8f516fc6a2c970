// Package metrics exposes prometheus counters for cache efficiency, catalog
// traffic, mirror probing, and download outcomes. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics owns a private registry so tests and embedded callers never collide
// with the default global registry.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups     *prometheus.CounterVec
	catalogRequests  *prometheus.CounterVec
	catalogLatency   *prometheus.HistogramVec
	mirrorProbes     *prometheus.CounterVec
	downloads        *prometheus.CounterVec
	downloadAttempts prometheus.Counter
	downloadBytes    prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "romgrab_cache_lookups_total",
			Help: "Cache lookups by namespace and result (hit, miss, expired, corrupt)",
		}, []string{"namespace", "result"}),
		catalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "romgrab_catalog_requests_total",
			Help: "Catalog API requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		catalogLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "romgrab_catalog_request_duration_seconds",
			Help:    "Catalog API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		mirrorProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "romgrab_mirror_probes_total",
			Help: "Mirror probes by resulting status",
		}, []string{"status"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "romgrab_downloads_total",
			Help: "Terminal download tasks by kind (rom, boxart) and outcome",
		}, []string{"kind", "outcome"}),
		downloadAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "romgrab_download_attempts_total",
			Help: "Transfer attempts and failed probes across all tasks",
		}),
		downloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "romgrab_download_bytes_total",
			Help: "Bytes written by completed downloads",
		}),
	}
	m.registry.MustRegister(
		m.cacheLookups,
		m.catalogRequests,
		m.catalogLatency,
		m.mirrorProbes,
		m.downloads,
		m.downloadAttempts,
		m.downloadBytes,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry for exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CacheLookup(namespace, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(namespace, result).Inc()
}

func (m *Metrics) CatalogRequest(endpoint, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.catalogRequests.WithLabelValues(endpoint, outcome).Inc()
	m.catalogLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

func (m *Metrics) MirrorProbe(status string) {
	if m == nil {
		return
	}
	m.mirrorProbes.WithLabelValues(status).Inc()
}

// Download records one terminal task.
func (m *Metrics) Download(kind, outcome string, attempts int, bytes int64) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(kind, outcome).Inc()
	if attempts > 0 {
		m.downloadAttempts.Add(float64(attempts))
	}
	if bytes > 0 {
		m.downloadBytes.Add(float64(bytes))
	}
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
