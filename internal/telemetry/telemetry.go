// Package telemetry exposes searchsync measurements as Prometheus metrics.
//
// Latency and throughput instruments go through an OpenTelemetry meter
// backed by the Prometheus exporter; simple failure counters are native
// Prometheus vectors on the same registry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	prometheusotel "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/custodia-labs/searchsync/internal/core/ports/driven"
	"github.com/custodia-labs/searchsync/internal/logger"
)

const namespace = "searchsync"

// Verify interface compliance.
var _ driven.Metrics = (*Telemetry)(nil)

// Telemetry implements driven.Metrics.
type Telemetry struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	searches      metric.Int64Counter
	searchLatency metric.Float64Histogram
	searchResults metric.Int64Histogram
	syncPasses    metric.Int64Counter
	syncLatency   metric.Float64Histogram
	docsSynced    metric.Int64Counter

	sourceFailures *prometheus.CounterVec
	queryLogDrops  *prometheus.CounterVec
	lastSync       *prometheus.GaugeVec
}

// New builds a registry with Go and process collectors and registers
// every searchsync instrument on it.
func New() (*Telemetry, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := prometheusotel.New(prometheusotel.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(namespace)

	t := &Telemetry{
		registry: registry,
		provider: provider,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	var errs []error
	record := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	t.searches, err = meter.Int64Counter(namespace+"_search_requests",
		metric.WithDescription("Search operations executed"))
	record(err)
	t.searchLatency, err = meter.Float64Histogram(namespace+"_search_latency",
		metric.WithDescription("Latency of search operations"), metric.WithUnit("ms"))
	record(err)
	t.searchResults, err = meter.Int64Histogram(namespace+"_search_results",
		metric.WithDescription("Total hits reported per search"))
	record(err)
	t.syncPasses, err = meter.Int64Counter(namespace+"_sync_passes",
		metric.WithDescription("Sync passes executed"))
	record(err)
	t.syncLatency, err = meter.Float64Histogram(namespace+"_sync_duration",
		metric.WithDescription("Duration of sync passes"), metric.WithUnit("ms"))
	record(err)
	t.docsSynced, err = meter.Int64Counter(namespace+"_sync_documents",
		metric.WithDescription("Documents processed by sync passes"))
	record(err)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}

	t.sourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "autocomplete_source_failures_total",
		Help:      "Suggestion sources skipped because they failed",
	}, []string{"source"})
	t.queryLogDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_log_dropped_total",
		Help:      "Query log entries dropped on a full queue",
	}, []string{"kind"})
	t.lastSync = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_sync_timestamp_seconds",
		Help:      "Unix time of the last successful sync pass",
	}, []string{"mode"})
	registry.MustRegister(t.sourceFailures, t.queryLogDrops, t.lastSync)

	logger.Debug("telemetry initialized")
	return t, nil
}

// Registry returns the underlying Prometheus registry.
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	return t.handler
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// SearchCompleted implements driven.Metrics.
func (t *Telemetry) SearchCompleted(entities string, d time.Duration, results int, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("entities", entities),
		attribute.String("status", status(err)),
	)
	t.searches.Add(ctx, 1, attrs)
	t.searchLatency.Record(ctx, millis(d), attrs)
	if err == nil {
		t.searchResults.Record(ctx, int64(results), metric.WithAttributes(attribute.String("entities", entities)))
	}
}

// AutocompleteSourceFailed implements driven.Metrics.
func (t *Telemetry) AutocompleteSourceFailed(source string) {
	t.sourceFailures.WithLabelValues(source).Inc()
}

// DocumentsSynced implements driven.Metrics.
func (t *Telemetry) DocumentsSynced(mode, entity string, synced, failed int) {
	ctx := context.Background()
	if synced > 0 {
		t.docsSynced.Add(ctx, int64(synced), metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("entity", entity),
			attribute.String("outcome", "synced"),
		))
	}
	if failed > 0 {
		t.docsSynced.Add(ctx, int64(failed), metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("entity", entity),
			attribute.String("outcome", "failed"),
		))
	}
}

// SyncPassCompleted implements driven.Metrics.
func (t *Telemetry) SyncPassCompleted(mode string, d time.Duration, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status(err)),
	)
	t.syncPasses.Add(ctx, 1, attrs)
	t.syncLatency.Record(ctx, millis(d), attrs)
	if err == nil {
		t.lastSync.WithLabelValues(mode).SetToCurrentTime()
	}
}

// QueryLogDropped implements driven.Metrics.
func (t *Telemetry) QueryLogDropped(kind string) {
	t.queryLogDrops.WithLabelValues(kind).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
