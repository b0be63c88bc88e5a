// Package metrics exposes Prometheus collectors for extraction, sync and
// series rebuilds.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledger"

// Collector implements the extraction, ingest and recurring observers.
type Collector struct {
	registry *prometheus.Registry

	extractions        *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec

	syncMessages *prometheus.CounterVec
	syncDuration prometheus.Histogram

	rebuilds        prometheus.Counter
	seriesCount     prometheus.Gauge
	skippedRows     prometheus.Counter
	rebuildDuration prometheus.Histogram
}

// New registers every collector on a fresh registry. Go runtime and process
// collectors are included when withRuntime is set.
func New(withRuntime bool) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "messages_total",
			Help:      "Messages run through the extraction chain, by parser and outcome.",
		}, []string{"parser", "parsed"}),
		extractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "duration_seconds",
			Help:      "Time spent extracting a single message.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
		}, []string{"parser"}),
		syncMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "messages_total",
			Help:      "Messages handled by batch sync, by result.",
		}, []string{"result"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one sync batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recurring",
			Name:      "rebuilds_total",
			Help:      "Completed recurring series rebuilds.",
		}),
		seriesCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recurring",
			Name:      "series",
			Help:      "Series produced by the last rebuild.",
		}),
		skippedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recurring",
			Name:      "skipped_rows_total",
			Help:      "Corrupt transactions skipped during rebuilds.",
		}),
		rebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recurring",
			Name:      "rebuild_duration_seconds",
			Help:      "Wall time of a series rebuild.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		c.extractions, c.extractionDuration,
		c.syncMessages, c.syncDuration,
		c.rebuilds, c.seriesCount, c.skippedRows, c.rebuildDuration,
	)
	if withRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// ObserveExtraction records one message leaving the extraction chain
func (c *Collector) ObserveExtraction(parser string, parsed bool, elapsed time.Duration) {
	if parser == "" {
		parser = "none"
	}
	c.extractions.WithLabelValues(parser, strconv.FormatBool(parsed)).Inc()
	c.extractionDuration.WithLabelValues(parser).Observe(elapsed.Seconds())
}

// ObserveSync records one sync batch
func (c *Collector) ObserveSync(newCount, duplicateCount, failedCount int, elapsed time.Duration) {
	c.syncMessages.WithLabelValues("new").Add(float64(newCount))
	c.syncMessages.WithLabelValues("duplicate").Add(float64(duplicateCount))
	c.syncMessages.WithLabelValues("failed").Add(float64(failedCount))
	c.syncDuration.Observe(elapsed.Seconds())
}

// ObserveRebuild records one series rebuild
func (c *Collector) ObserveRebuild(series, skipped int, elapsed time.Duration) {
	c.rebuilds.Inc()
	c.seriesCount.Set(float64(series))
	c.skippedRows.Add(float64(skipped))
	c.rebuildDuration.Observe(elapsed.Seconds())
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
