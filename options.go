package blobcache

import "time"

const (
	// DefaultStoreName is the engine store the cache opens unless WithStoreName is given.
	DefaultStoreName = "FilesCache"

	defaultProbeTimeout = 10 * time.Second
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	storeName        string
	probeTimeout     time.Duration
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		storeName:        DefaultStoreName,
		probeTimeout:     defaultProbeTimeout,
	}
}

// Option configures a BlobCache.
type Option func(*options)

// WithLogger sets the logger for diagnostics and timing.
//
// If nil is passed, logging is disabled (the default).
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the collector that observes every operation.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithStoreName sets the engine store name. Empty names are ignored.
func WithStoreName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.storeName = name
		}
	}
}

// WithProbeTimeout bounds the availability probe New runs against the engine.
// A zero or negative value waits without limit.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.probeTimeout = d
	}
}
