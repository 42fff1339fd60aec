package blobcache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems.
// The metrics/prometheus package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordOpen is called once, after the single engine open attempt resolves.
	RecordOpen(duration time.Duration, err error)

	// RecordSave is called after each save operation.
	// size is the payload length in bytes, err is nil if successful.
	RecordSave(duration time.Duration, size int, err error)

	// RecordLoad is called after each load operation.
	// hit reports whether the id was present.
	RecordLoad(duration time.Duration, hit bool, err error)

	// RecordRemove is called after each remove operation.
	RecordRemove(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOpen(time.Duration, error)       {}
func (NoopMetricsCollector) RecordSave(time.Duration, int, error)  {}
func (NoopMetricsCollector) RecordLoad(time.Duration, bool, error) {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	OpenCount      atomic.Int64
	OpenErrors     atomic.Int64
	SaveCount      atomic.Int64
	SaveErrors     atomic.Int64
	SaveBytes      atomic.Int64
	SaveTotalNanos atomic.Int64
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadHits       atomic.Int64
	LoadTotalNanos atomic.Int64
	RemoveCount    atomic.Int64
	RemoveErrors   atomic.Int64
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(duration time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(duration time.Duration, size int, err error) {
	b.SaveCount.Add(1)
	b.SaveTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SaveErrors.Add(1)
		return
	}
	b.SaveBytes.Add(int64(size))
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, hit bool, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	if hit {
		b.LoadHits.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(duration time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		OpenCount:    b.OpenCount.Load(),
		OpenErrors:   b.OpenErrors.Load(),
		SaveCount:    b.SaveCount.Load(),
		SaveErrors:   b.SaveErrors.Load(),
		SaveBytes:    b.SaveBytes.Load(),
		SaveAvgNanos: avgNanos(b.SaveTotalNanos.Load(), b.SaveCount.Load()),
		LoadCount:    b.LoadCount.Load(),
		LoadErrors:   b.LoadErrors.Load(),
		LoadHits:     b.LoadHits.Load(),
		LoadAvgNanos: avgNanos(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		RemoveCount:  b.RemoveCount.Load(),
		RemoveErrors: b.RemoveErrors.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	OpenCount    int64
	OpenErrors   int64
	SaveCount    int64
	SaveErrors   int64
	SaveBytes    int64
	SaveAvgNanos int64
	LoadCount    int64
	LoadErrors   int64
	LoadHits     int64
	LoadAvgNanos int64
	RemoveCount  int64
	RemoveErrors int64
}
