// Package metrics exposes Prometheus collectors for the cluster engine, the
// queue consumers and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements cluster.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	linksCreated    *prometheus.CounterVec
	clusterUpdates  prometheus.Counter
	clusterSize     prometheus.Histogram
	autoMergeGroups *prometheus.CounterVec
	autoMergeLinks  prometheus.Counter
	queueMessages   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.init()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) init() {
	m.linksCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyweb_links_created_total",
			Help: "Links written by users and jobs",
		},
		[]string{"type"},
	)
	m.clusterUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storyweb_cluster_updates_total",
		Help: "Cluster recomputations",
	})
	m.clusterSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storyweb_cluster_size",
		Help:    "Number of tags in a recomputed cluster",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	m.autoMergeGroups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyweb_automerge_groups_total",
			Help: "Fingerprint groups handled by auto-merge",
		},
		[]string{"status"}, // merged, skipped, failed
	)
	m.autoMergeLinks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storyweb_automerge_links_total",
		Help: "SAME links created by auto-merge",
	})
	m.queueMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyweb_queue_messages_total",
			Help: "Queue messages by outcome",
		},
		[]string{"queue", "status"}, // ack, retry, dead
	)
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyweb_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "path", "status_code"},
	)
	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyweb_http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.linksCreated,
		m.clusterUpdates,
		m.clusterSize,
		m.autoMergeGroups,
		m.autoMergeLinks,
		m.queueMessages,
		m.httpRequests,
		m.httpDuration,
	}
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) LinkCreated(linkType string) {
	m.linksCreated.WithLabelValues(linkType).Inc()
}

func (m *Metrics) ClusterUpdated(members int) {
	m.clusterUpdates.Inc()
	m.clusterSize.Observe(float64(members))
}

func (m *Metrics) AutoMergeGroup(status string, links int) {
	m.autoMergeGroups.WithLabelValues(status).Inc()
	if links > 0 {
		m.autoMergeLinks.Add(float64(links))
	}
}

func (m *Metrics) QueueMessage(queue, status string) {
	m.queueMessages.WithLabelValues(queue, status).Inc()
}

func (m *Metrics) HTTPRequest(method, path string, status int, took time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(took.Seconds())
}
