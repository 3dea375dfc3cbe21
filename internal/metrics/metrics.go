package metrics

import (
	"context"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/leafsii/kv-resave/internal/resave"
)

type Metrics struct {
	KeysScanned   metric.Int64Counter
	KeysRewritten metric.Int64Counter
	KeysSkipped   metric.Int64Counter
	BatchDuration metric.Float64Histogram
	PacingSleep   metric.Float64Histogram
	Runs          metric.Int64Counter

	provider *sdkmetric.MeterProvider
}

// Setup creates the instruments on a fresh Prometheus registry and returns
// the handler that exposes it
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{provider: provider}

	m.KeysScanned, err = meter.Int64Counter(
		"kvr_keys_scanned_total",
		metric.WithDescription("Total number of keys returned by keyspace scans"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.KeysRewritten, err = meter.Int64Counter(
		"kvr_keys_rewritten_total",
		metric.WithDescription("Total number of keys written back"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.KeysSkipped, err = meter.Int64Counter(
		"kvr_keys_skipped_total",
		metric.WithDescription("Total number of scanned keys that were not written back"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.BatchDuration, err = meter.Float64Histogram(
		"kvr_batch_duration_seconds",
		metric.WithDescription("Time spent scanning and processing one batch in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PacingSleep, err = meter.Float64Histogram(
		"kvr_pacing_sleep_seconds",
		metric.WithDescription("Pause chosen after each batch in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Runs, err = meter.Int64Counter(
		"kvr_runs_total",
		metric.WithDescription("Total number of finished runs by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

// RecordBatch implements resave.Recorder
func (m *Metrics) RecordBatch(ctx context.Context, b resave.BatchStats) {
	labels := metric.WithAttributes(attribute.Bool("dry_run", b.DryRun))

	m.KeysScanned.Add(ctx, int64(b.Keys), labels)
	m.KeysRewritten.Add(ctx, int64(b.Rewritten), labels)
	m.KeysSkipped.Add(ctx, int64(b.Skipped), labels)
	m.BatchDuration.Record(ctx, b.Elapsed.Seconds(), labels)
	m.PacingSleep.Record(ctx, b.Sleep.Seconds(), labels)
}

// RecordRun counts a finished run; outcome is "complete", "interrupted" or
// "failed"
func (m *Metrics) RecordRun(ctx context.Context, outcome string, dryRun bool) {
	m.Runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("dry_run", dryRun),
	))
}

// Shutdown flushes and stops the meter provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
