package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by goSession APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricLoginSuccess counts password logins that produced a profile.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts password logins rejected or failed.
	MetricLoginFailure
	// MetricProfileFetchSuccess counts profiles fetched and applied.
	MetricProfileFetchSuccess
	// MetricProfileFetchFailure counts profile fetches that yielded no profile.
	MetricProfileFetchFailure
	// MetricStaleDiscarded counts responses discarded because the session was reset while they were in flight.
	MetricStaleDiscarded
	// MetricOAuthClientRegistered counts oAuth applications registered.
	MetricOAuthClientRegistered
	// MetricOAuthClientFailure counts oAuth application registrations that failed.
	MetricOAuthClientFailure
	// MetricCodeExchangeSuccess counts authorization codes exchanged for tokens.
	MetricCodeExchangeSuccess
	// MetricCodeExchangeFailure counts authorization code exchanges that failed.
	MetricCodeExchangeFailure
	// MetricRefreshSuccess counts refresh exchanges that produced a new access token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh exchanges that failed.
	MetricRefreshFailure
	// MetricRefreshCoalesced counts refresh calls served by an exchange already in flight.
	MetricRefreshCoalesced
	// MetricLogout counts logouts.
	MetricLogout
	// MetricLogoutTransportFailure counts logouts whose server call failed.
	MetricLogoutTransportFailure
	// MetricSessionReset counts reset broadcasts.
	MetricSessionReset
	// MetricCheckAuthenticated counts checks that found an authenticated user.
	MetricCheckAuthenticated
	// MetricCheckAnonymous counts checks that found an anonymous user.
	MetricCheckAnonymous
	// MetricFanOutDispatched counts dependent fetches dispatched after a profile fetch.
	MetricFanOutDispatched
	// MetricFanOutFailure counts dependent fetches whose dispatch failed.
	MetricFanOutFailure
	// MetricPersistFailure counts credential persistence writes that failed.
	MetricPersistFailure
	// MetricExchangeLatency is the only histogram metric.
	MetricExchangeLatency
	metricIDCount
)
const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free set of engine counters and one latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by goSession APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a metrics set. Disabled metrics accept every call and
// record nothing.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Add adds n to counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram of id. Only MetricExchangeLatency has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricExchangeLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot may return an error when input validation, dependency calls, or security checks fail.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricExchangeLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricExchangeLatency].buckets[i])
		}
		s.Histograms[MetricExchangeLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
