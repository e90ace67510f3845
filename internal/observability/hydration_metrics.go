package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HydrationMetrics holds custom metrics for hydration runs and attached-collection fetches.
type HydrationMetrics struct {
	runCounter      metric.Int64Counter
	runErrors       metric.Int64Counter
	runDuration     metric.Float64Histogram
	inputRows       metric.Int64Histogram
	outputEntities  metric.Int64Histogram
	fetchDuration   metric.Float64Histogram
	fetchParentRows metric.Int64Histogram
	fetchChildren   metric.Int64Histogram
	fetchErrors     metric.Int64Counter
}

// InitHydrationMetrics initializes hydration metrics on the global meter provider.
func InitHydrationMetrics(logger *slog.Logger) (*HydrationMetrics, error) {
	meter := otel.Meter("rowhydrate")

	runCounter, err := meter.Int64Counter(
		"hydrate.runs.total",
		metric.WithDescription("Total number of hydration runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hydration run counter: %w", err)
	}

	runErrors, err := meter.Int64Counter(
		"hydrate.runs.errors.total",
		metric.WithDescription("Total number of failed hydration runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hydration error counter: %w", err)
	}

	runDuration, err := meter.Float64Histogram(
		"hydrate.run.duration",
		metric.WithDescription("Duration of hydration runs in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hydration duration histogram: %w", err)
	}

	inputRows, err := meter.Int64Histogram(
		"hydrate.run.input_rows",
		metric.WithDescription("Number of flat rows passed to a hydration run"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input rows histogram: %w", err)
	}

	outputEntities, err := meter.Int64Histogram(
		"hydrate.run.output_entities",
		metric.WithDescription("Number of top-level entities produced by a hydration run"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create output entities histogram: %w", err)
	}

	fetchDuration, err := meter.Float64Histogram(
		"hydrate.fetch.duration",
		metric.WithDescription("Duration of attached-collection fetches in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch duration histogram: %w", err)
	}

	fetchParentRows, err := meter.Int64Histogram(
		"hydrate.fetch.parent_rows",
		metric.WithDescription("Number of parent rows handed to an attached-collection fetch"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch parent rows histogram: %w", err)
	}

	fetchChildren, err := meter.Int64Histogram(
		"hydrate.fetch.children",
		metric.WithDescription("Number of child entities returned by an attached-collection fetch"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch children histogram: %w", err)
	}

	fetchErrors, err := meter.Int64Counter(
		"hydrate.fetch.errors.total",
		metric.WithDescription("Total number of failed attached-collection fetches"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch error counter: %w", err)
	}

	if logger != nil {
		logger.Info("hydration metrics initialized")
	}

	return &HydrationMetrics{
		runCounter:      runCounter,
		runErrors:       runErrors,
		runDuration:     runDuration,
		inputRows:       inputRows,
		outputEntities:  outputEntities,
		fetchDuration:   fetchDuration,
		fetchParentRows: fetchParentRows,
		fetchChildren:   fetchChildren,
		fetchErrors:     fetchErrors,
	}, nil
}

// RecordRun records one hydration run. mode is "many" or "one".
func (m *HydrationMetrics) RecordRun(ctx context.Context, duration time.Duration, mode string, rows, entities int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.runCounter.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, float64(duration.Microseconds())/1000.0, attrs)
	m.inputRows.Record(ctx, int64(rows), attrs)
	if err != nil {
		m.runErrors.Add(ctx, 1, attrs)
		return
	}
	m.outputEntities.Record(ctx, int64(entities), attrs)
}

// RecordFetch records one attached-collection fetch.
func (m *HydrationMetrics) RecordFetch(ctx context.Context, duration time.Duration, collection string, parentRows, children int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("collection", collection))
	m.fetchDuration.Record(ctx, float64(duration.Microseconds())/1000.0, attrs)
	m.fetchParentRows.Record(ctx, int64(parentRows), attrs)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, attrs)
		return
	}
	m.fetchChildren.Record(ctx, int64(children), attrs)
}

type hydrationMetricsContextKey struct{}

// ContextWithHydrationMetrics stores hydration metrics in the provided context.
func ContextWithHydrationMetrics(ctx context.Context, metrics *HydrationMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, hydrationMetricsContextKey{}, metrics)
}

// HydrationMetricsFromContext retrieves hydration metrics from the context.
func HydrationMetricsFromContext(ctx context.Context) *HydrationMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(hydrationMetricsContextKey{}).(*HydrationMetrics)
	return metrics
}
