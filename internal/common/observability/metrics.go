package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// Observability records engine-level OpenTelemetry instruments. The zero value
// is usable and records nothing.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	runCounter    otelmetric.Int64Counter
	runDuration   otelmetric.Float64Histogram
	requirements  otelmetric.Int64Histogram
}

func New(serviceName string, log *zap.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		if log != nil {
			log.Warn("failed to create prometheus exporter", zap.Error(err))
		}
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	runCounter, _ := meter.Int64Counter(
		"engine.runs",
		otelmetric.WithDescription("Number of derivation runs"),
	)

	runDuration, _ := meter.Float64Histogram(
		"engine.run.duration",
		otelmetric.WithDescription("Derivation run duration"),
		otelmetric.WithUnit("ms"),
	)

	requirements, _ := meter.Int64Histogram(
		"engine.run.requirements",
		otelmetric.WithDescription("Requirements emitted per run"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		runCounter:    runCounter,
		runDuration:   runDuration,
		requirements:  requirements,
	}
}

// RecordRun records one derivation run. status is "ok" or "degraded".
func (o *Observability) RecordRun(ctx context.Context, registryVersion, status string, duration time.Duration, count int) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("status", status),
		attribute.String("registry_version", registryVersion),
	)
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, attrs)
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
	if o.requirements != nil {
		o.requirements.Record(ctx, int64(count), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
