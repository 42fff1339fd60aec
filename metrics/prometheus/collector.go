// Package prometheus exports blobcache operation metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc := blobprom.NewCollector("myapp")
//	reg.MustRegister(mc)
//	cache := blobcache.New(engine, blobcache.WithMetricsCollector(mc))
package prometheus

import (
	"time"

	"github.com/hupe1980/blobcache"
	"github.com/prometheus/client_golang/prometheus"
)

var _ blobcache.MetricsCollector = (*Collector)(nil)

// Collector implements blobcache.MetricsCollector and prometheus.Collector.
type Collector struct {
	opLatency *prometheus.HistogramVec
	ops       *prometheus.CounterVec
	savedByte prometheus.Counter
	loads     *prometheus.CounterVec
}

// NewCollector creates a Collector whose metric names start with namespace
// (e.g. "myapp" yields myapp_blobcache_operations_total).
func NewCollector(namespace string) *Collector {
	return &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "blobcache",
			Name:      "operation_latency_seconds",
			Help:      "Latency of blobcache operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blobcache",
			Name:      "operations_total",
			Help:      "Total blobcache operations",
		}, []string{"op", "status"}),
		savedByte: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blobcache",
			Name:      "saved_bytes_total",
			Help:      "Total payload bytes successfully saved",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blobcache",
			Name:      "loads_total",
			Help:      "Successful loads by result",
		}, []string{"result"}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordOpen implements blobcache.MetricsCollector.
func (c *Collector) RecordOpen(d time.Duration, err error) {
	c.observe("open", d, err)
}

// RecordSave implements blobcache.MetricsCollector.
func (c *Collector) RecordSave(d time.Duration, size int, err error) {
	c.observe("save", d, err)
	if err == nil {
		c.savedByte.Add(float64(size))
	}
}

// RecordLoad implements blobcache.MetricsCollector.
func (c *Collector) RecordLoad(d time.Duration, hit bool, err error) {
	c.observe("load", d, err)
	if err != nil {
		return
	}
	if hit {
		c.loads.WithLabelValues("hit").Inc()
	} else {
		c.loads.WithLabelValues("miss").Inc()
	}
}

// RecordRemove implements blobcache.MetricsCollector.
func (c *Collector) RecordRemove(d time.Duration, err error) {
	c.observe("remove", d, err)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.opLatency.Describe(ch)
	c.ops.Describe(ch)
	c.savedByte.Describe(ch)
	c.loads.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.opLatency.Collect(ch)
	c.ops.Collect(ch)
	c.savedByte.Collect(ch)
	c.loads.Collect(ch)
}
