package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	otelexport "github.com/MrEthical07/goSession/metrics/export/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/MrEthical07/goSession"

// otelPoint is one collected data point as served on /otel-metrics.
type otelPoint struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      int64             `json:"value"`
}

// otelMetrics owns the meter provider behind /otel-metrics. Collection is
// pull based: each request runs the exporter callback through a manual reader.
type otelMetrics struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	exporter *otelexport.OTelExporter
}

func newOTelMetrics(m *goSession.Manager) (*otelMetrics, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", "storefront"))),
	)
	exporter, err := otelexport.NewOTelExporter(provider.Meter(meterName), m)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("register otel instruments: %w", err)
	}
	return &otelMetrics{reader: reader, provider: provider, exporter: exporter}, nil
}

func (o *otelMetrics) collect(ctx context.Context) ([]otelPoint, error) {
	var rm metricdata.ResourceMetrics
	if err := o.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	var out []otelPoint
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			var points []metricdata.DataPoint[int64]
			switch data := metric.Data.(type) {
			case metricdata.Sum[int64]:
				points = data.DataPoints
			case metricdata.Gauge[int64]:
				points = data.DataPoints
			}
			for _, dp := range points {
				p := otelPoint{Name: metric.Name, Value: dp.Value}
				if dp.Attributes.Len() > 0 {
					p.Attributes = make(map[string]string, dp.Attributes.Len())
					for _, kv := range dp.Attributes.ToSlice() {
						p.Attributes[string(kv.Key)] = kv.Value.Emit()
					}
				}
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// Handler serves the current collection as a JSON array of points.
func (o *otelMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		points, err := o.collect(r.Context())
		if err != nil {
			http.Error(w, "collect failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(points)
	})
}

// Shutdown unregisters the exporter and stops the provider.
func (o *otelMetrics) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	return errors.Join(o.exporter.Close(), o.provider.Shutdown(ctx))
}
