// Package observability holds the Prometheus metrics of the service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a registry and the metrics registered on it. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	StoreQueries  *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec

	PipelineRuns     *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	RowsLoaded       *prometheus.CounterVec

	GraphNodes prometheus.Gauge
	GraphLinks prometheus.Gauge
}

// NewCollector creates a collector with its own registry, so tests can create
// as many as they need.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StoreQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_queries_total",
			Help:      "Total number of graph store calls",
		}, []string{"operation", "status"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_query_duration_seconds",
			Help:      "Graph store call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of reload pipeline runs by outcome",
		}, []string{"outcome"}),
		PipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_step_duration_seconds",
			Help:      "Reload pipeline step duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"step"}),
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_rows_loaded_total",
			Help:      "Total number of dataset rows written to the store",
		}, []string{"kind"}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the last assembled visualization graph",
		}),
		GraphLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_links",
			Help:      "Links in the last assembled visualization graph",
		}),
	}

	c.registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration,
		c.StoreQueries, c.StoreDuration,
		c.PipelineRuns, c.PipelineDuration, c.RowsLoaded,
		c.GraphNodes, c.GraphLinks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveQuery records one graph store call.
func (c *Collector) ObserveQuery(operation string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.StoreQueries.WithLabelValues(operation, status(err)).Inc()
	c.StoreDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveStep records the duration of one reload pipeline step.
func (c *Collector) ObserveStep(step string, d time.Duration) {
	if c == nil {
		return
	}
	c.PipelineDuration.WithLabelValues(step).Observe(d.Seconds())
}

// CountRun records the outcome of a reload pipeline run.
func (c *Collector) CountRun(outcome string) {
	if c == nil {
		return
	}
	c.PipelineRuns.WithLabelValues(outcome).Inc()
}

// AddRows records dataset rows written to the store.
func (c *Collector) AddRows(kind string, n int) {
	if c == nil {
		return
	}
	c.RowsLoaded.WithLabelValues(kind).Add(float64(n))
}

// SetGraphSize records the size of the last assembled graph.
func (c *Collector) SetGraphSize(nodes, links int) {
	if c == nil {
		return
	}
	c.GraphNodes.Set(float64(nodes))
	c.GraphLinks.Set(float64(links))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
