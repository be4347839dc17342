package infrastructure

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"

	"bondtape/pkg/contracts/domain"
)

const (
	ServiceName    = "bondtape-cleaner"
	ServiceVersion = "1.0.0"
	MeterName      = "bondtape"
)

// Metrics holds the meter provider and the batch-level instruments. The
// three event counters mirror the per-batch cleaning statistics so operators
// can watch drop rates across a whole run.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	logger   *slog.Logger

	// Handler serves the Prometheus scrape endpoint.
	Handler http.Handler

	eventsRaw        metric.Int64Counter
	eventsPostFilter metric.Int64Counter
	eventsReconciled metric.Int64Counter
	batchesProcessed metric.Int64Counter
	batchesFailed    metric.Int64Counter
}

// InitializeMetrics sets up an OTel meter provider backed by the Prometheus
// exporter and registers the pipeline instruments.
func InitializeMetrics(logger *slog.Logger) (*Metrics, error) {
	if logger == nil {
		logger = slog.Default()
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(MeterName)

	m := &Metrics{
		provider: provider,
		logger:   logger,
		Handler:  promhttp.Handler(),
	}

	if m.eventsRaw, err = meter.Int64Counter("bondtape.events.raw",
		metric.WithDescription("Trade events fetched from the feed, pre-filter")); err != nil {
		return nil, err
	}
	if m.eventsPostFilter, err = meter.Int64Counter("bondtape.events.post_volume_filter",
		metric.WithDescription("Trade events surviving the minimum-volume screen")); err != nil {
		return nil, err
	}
	if m.eventsReconciled, err = meter.Int64Counter("bondtape.events.reconciled",
		metric.WithDescription("Trade events in the reconciled ledger")); err != nil {
		return nil, err
	}
	if m.batchesProcessed, err = meter.Int64Counter("bondtape.batches.processed",
		metric.WithDescription("Completed instrument batches")); err != nil {
		return nil, err
	}
	if m.batchesFailed, err = meter.Int64Counter("bondtape.batches.failed",
		metric.WithDescription("Batches abandoned after a non-fatal error")); err != nil {
		return nil, err
	}

	logger.Info("metrics initialized",
		slog.String("service", ServiceName),
		slog.String("exporter", "prometheus"))

	return m, nil
}

// RecordBatch records one batch's cleaning counters.
func (m *Metrics) RecordBatch(ctx context.Context, stats domain.CleaningStats) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("passthrough", stats.Passthrough))
	m.eventsRaw.Add(ctx, int64(stats.Raw), attrs)
	m.eventsPostFilter.Add(ctx, int64(stats.PostVolumeFilter), attrs)
	m.eventsReconciled.Add(ctx, int64(stats.PostReconcile), attrs)
	m.batchesProcessed.Add(ctx, 1)
}

// RecordBatchFailure counts a batch abandoned after a non-fatal error.
func (m *Metrics) RecordBatchFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.batchesFailed.Add(ctx, 1)
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
