package goSession

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/session"
	"github.com/stretchr/testify/require"
)

const benchProfileBody = `{"id":7,"username":"alice","full_username":"alice@music.example",` +
	`"permissions":{"library":true,"moderation":true,"settings":false},` +
	`"tokens":{"listen":"lt"}}`

func benchProfile(b *testing.B) *ProfileData {
	b.Helper()
	data, err := session.DecodeProfileData([]byte(benchProfileBody))
	require.NoError(b, err)
	return data
}

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricCheckAuthenticated)
	}
}

func BenchmarkMetricsIncDisabled(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricCheckAuthenticated)
	}
}

func BenchmarkMetricsObserveExchangeLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 12 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricExchangeLatency, d)
		}
	})
}

// BenchmarkApplyProfileFanOut measures applying a profile plus the dependent
// fetch fan-out, counters included.
func BenchmarkApplyProfileFanOut(b *testing.B) {
	srv := newFakeInstance(b)
	engine, _ := buildTestEngine(b, srv, func(builder *Builder) {
		builder.WithDispatcher(DispatcherFunc(func(context.Context, Action) error { return nil }))
	})
	data := benchProfile(b)
	ctx := WithCorrelationID(context.Background(), "bench")
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := engine.ApplyProfile(ctx, data); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()

	counters := engine.MetricsSnapshot().Counters
	if counters[MetricFanOutDispatched] == 0 {
		b.Fatal("expected dependent fetches to be dispatched")
	}
}

// BenchmarkApplyProfileWithResets interleaves resets so every other apply
// runs against a fresh generation.
func BenchmarkApplyProfileWithResets(b *testing.B) {
	state := session.NewState(nil)
	data := benchProfile(b)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := state.ApplyProfile(state.Generation(), data); err != nil {
			b.Fatal(err)
		}
		if i%2 == 1 {
			state.Reset()
		}
	}
}

func BenchmarkAuthorizationHeaderValueParallel(b *testing.B) {
	srv := newFakeInstance(b)
	srv.AddUser("carol", "pw", nil)
	engine, _ := buildTestEngine(b, srv, nil)
	oauthLogin(b, engine, "/")
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, ok := engine.AuthorizationHeaderValue(); !ok {
				b.Error("expected a bearer header")
				return
			}
		}
	})
}

// BenchmarkRefreshOAuthTokenCoalescedParallel runs concurrent refreshes
// against the fake instance; most callers should join an exchange already in
// flight.
func BenchmarkRefreshOAuthTokenCoalescedParallel(b *testing.B) {
	srv := newFakeInstance(b)
	srv.AddUser("carol", "pw", nil)
	engine, _ := buildTestEngine(b, srv, nil)
	oauthLogin(b, engine, "/")
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := engine.RefreshOAuthToken(context.Background()); err != nil {
				b.Error(err)
				return
			}
		}
	})
	b.StopTimer()

	counters := engine.MetricsSnapshot().Counters
	b.ReportMetric(float64(counters[MetricRefreshCoalesced])/float64(b.N), "coalesced/op")
}
