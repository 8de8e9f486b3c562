package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	FlowEventsName    = "gosession.flow.events"
	LatencyBucketName = "gosession.upstream.latency.bucket"
	LatencyCountName  = "gosession.upstream.latency.count"
	AuditEventsName   = "gosession.audit.events"
	AuditPendingName  = "gosession.audit.pending"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditTally() goSession.AuditTally
	AuditPending() int
}

type flowPoint struct {
	id    goSession.MetricID
	attrs metric.ObserveOption
}

// OTelExporter publishes manager snapshots. One callback reads a single
// snapshot per collection cycle.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	flows         metric.Int64ObservableCounter
	flowPoints    []flowPoint
	latencyBucket metric.Int64ObservableGauge
	latencyCount  metric.Int64ObservableCounter
	bucketAttrs   []metric.ObserveOption
	auditEvents   metric.Int64ObservableCounter
	auditPending  metric.Int64ObservableGauge
}

// NewOTelExporter registers instruments on meter for the given manager.
func NewOTelExporter(meter metric.Meter, m *goSession.Manager) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, m)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:      source,
		flowPoints:  make([]flowPoint, 0, len(internaldefs.CounterDefs)),
		bucketAttrs: make([]metric.ObserveOption, 0, len(internaldefs.HistogramBoundSuffix)),
	}
	for _, def := range internaldefs.CounterDefs {
		e.flowPoints = append(e.flowPoints, flowPoint{
			id: def.ID,
			attrs: metric.WithAttributeSet(attribute.NewSet(
				attribute.String("flow", def.Flow),
				attribute.String("outcome", def.Outcome),
			)),
		})
	}
	for _, le := range bucketLabels() {
		e.bucketAttrs = append(e.bucketAttrs, metric.WithAttributes(attribute.String("le", le)))
	}

	var err error
	if e.flows, err = meter.Int64ObservableCounter(FlowEventsName,
		metric.WithDescription("Session lifecycle events by flow and outcome."),
	); err != nil {
		return nil, fmt.Errorf("create %s: %w", FlowEventsName, err)
	}
	if e.latencyBucket, err = meter.Int64ObservableGauge(LatencyBucketName,
		metric.WithDescription("Cumulative upstream auth call count at or below le seconds."),
	); err != nil {
		return nil, fmt.Errorf("create %s: %w", LatencyBucketName, err)
	}
	if e.latencyCount, err = meter.Int64ObservableCounter(LatencyCountName,
		metric.WithDescription("Upstream auth calls observed."),
	); err != nil {
		return nil, fmt.Errorf("create %s: %w", LatencyCountName, err)
	}
	if e.auditEvents, err = meter.Int64ObservableCounter(AuditEventsName,
		metric.WithDescription("Audit events by event type and disposition."),
	); err != nil {
		return nil, fmt.Errorf("create %s: %w", AuditEventsName, err)
	}
	if e.auditPending, err = meter.Int64ObservableGauge(AuditPendingName,
		metric.WithDescription("Audit events buffered but not yet delivered."),
	); err != nil {
		return nil, fmt.Errorf("create %s: %w", AuditPendingName, err)
	}

	registration, err := meter.RegisterCallback(e.observe,
		e.flows, e.latencyBucket, e.latencyCount, e.auditEvents, e.auditPending)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, p := range e.flowPoints {
		o.ObserveInt64(e.flows, int64(snapshot.Counters[p.id]), p.attrs)
	}

	cumulative := internaldefs.CumulativeBuckets(
		internaldefs.NormalizeBuckets(snapshot.Histograms[goSession.MetricUpstreamLatency]),
	)
	for i, attrs := range e.bucketAttrs {
		o.ObserveInt64(e.latencyBucket, int64(cumulative[i]), attrs)
	}
	o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))

	tally := e.source.AuditTally()
	observeTally(o, e.auditEvents, "delivered", tally.Delivered)
	observeTally(o, e.auditEvents, "dropped", tally.Dropped)
	o.ObserveInt64(e.auditPending, int64(e.source.AuditPending()))
	return nil
}

func observeTally(o metric.Observer, ins metric.Int64ObservableCounter, disposition string, counts map[string]uint64) {
	for eventType, n := range counts {
		o.ObserveInt64(ins, int64(n), metric.WithAttributes(
			attribute.String("event_type", eventType),
			attribute.String("disposition", disposition),
		))
	}
}

// bucketLabels renders the finite bounds the way Prometheus prints le,
// followed by +Inf.
func bucketLabels() []string {
	out := make([]string, 0, len(internaldefs.HistogramUpperBounds)+1)
	for _, b := range internaldefs.HistogramUpperBounds {
		out = append(out, strconv.FormatFloat(b, 'f', -1, 64))
	}
	out = append(out, "+Inf")
	return out
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
