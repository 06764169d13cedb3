package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"github.com/MrEthical07/goSession/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no metrics source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
	Snapshot() goSession.Snapshot
}

// sessionModes are the credential variants reported by gosession_session_mode.
var sessionModes = []session.Mode{session.ModeNone, session.ModePasswordToken, session.ModeOAuth}

type counterInstrument struct {
	id  goSession.MetricID
	ins metric.Int64ObservableCounter
}

// latencyInstrument publishes one histogram as a cumulative bucket gauge keyed
// by the "le" attribute, plus a sample count.
type latencyInstrument struct {
	id      goSession.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine counters, latency buckets and the live session
// state as observable instruments on a caller-owned meter.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters      []counterInstrument
	latencies     []latencyInstrument
	auditDropped  metric.Int64ObservableCounter
	authenticated metric.Int64ObservableGauge
	mode          metric.Int64ObservableGauge

	// Precomputed so collection does not allocate attribute sets.
	bucketAttrs [8]metric.ObserveOption
	modeAttrs   []metric.ObserveOption
}

// NewOTelExporter registers instruments reading from engine.
func NewOTelExporter(meter metric.Meter, engine *goSession.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments reading from source. One
// callback observes every instrument from a single collection pass.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	for i := range e.bucketAttrs {
		le := "+Inf"
		if i < len(internaldefs.HistogramUpperBounds) {
			le = strconv.FormatFloat(internaldefs.HistogramUpperBounds[i], 'f', -1, 64)
		}
		e.bucketAttrs[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}
	for _, m := range sessionModes {
		e.modeAttrs = append(e.modeAttrs, metric.WithAttributeSet(attribute.NewSet(attribute.String("mode", m.String()))))
	}

	observables, err := e.createInstruments(meter)
	if err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) createInstruments(meter metric.Meter) ([]metric.Observable, error) {
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."),
			metric.WithUnit("{sample}"))
		if err != nil {
			return nil, fmt.Errorf("create bucket gauge %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."),
			metric.WithUnit("{sample}"))
		if err != nil {
			return nil, fmt.Errorf("create count gauge %s: %w", def.Name, err)
		}
		e.latencies = append(e.latencies, latencyInstrument{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	var err error
	e.auditDropped, err = meter.Int64ObservableCounter("gosession_audit_dropped_total",
		metric.WithDescription("Audit events dropped by the dispatcher."))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.authenticated, err = meter.Int64ObservableGauge("gosession_session_authenticated",
		metric.WithDescription("1 while a profile is applied to the session, else 0."))
	if err != nil {
		return nil, fmt.Errorf("create authenticated gauge: %w", err)
	}
	e.mode, err = meter.Int64ObservableGauge("gosession_session_mode",
		metric.WithDescription("1 for the active credential mode, 0 for the others."))
	if err != nil {
		return nil, fmt.Errorf("create mode gauge: %w", err)
	}
	return append(observables, e.auditDropped, e.authenticated, e.mode), nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.ins, int64(snapshot.Counters[c.id]))
	}
	for _, l := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[l.id]))
		for i, n := range cumulative {
			observer.ObserveInt64(l.buckets, int64(n), e.bucketAttrs[i])
		}
		observer.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	sess := e.source.Snapshot()
	observer.ObserveInt64(e.authenticated, boolGauge(sess.Authenticated))
	for i, m := range sessionModes {
		observer.ObserveInt64(e.mode, boolGauge(sess.Mode == m), e.modeAttrs[i])
	}
	return nil
}

func boolGauge(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// Close unregisters the callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
