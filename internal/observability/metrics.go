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

// ViewMetrics holds custom metrics for named view runs.
type ViewMetrics struct {
	runDuration  metric.Float64Histogram
	runCounter   metric.Int64Counter
	errorCounter metric.Int64Counter
	activeRuns   metric.Int64UpDownCounter
	sourceRows   metric.Int64Histogram
	resultsCount metric.Int64Histogram
}

// InitViewMetrics initializes view metrics on the global meter provider.
func InitViewMetrics() (*ViewMetrics, error) {
	meter := otel.Meter("rowhydrate")

	runDuration, err := meter.Float64Histogram(
		"view.run.duration",
		metric.WithDescription("Duration of view runs in milliseconds, query and hydration included"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create view duration histogram: %w", err)
	}

	runCounter, err := meter.Int64Counter(
		"view.runs.total",
		metric.WithDescription("Total number of view runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create view run counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"view.errors.total",
		metric.WithDescription("Total number of failed view runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create view error counter: %w", err)
	}

	activeRuns, err := meter.Int64UpDownCounter(
		"view.runs.active",
		metric.WithDescription("Number of view runs in progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active runs counter: %w", err)
	}

	sourceRows, err := meter.Int64Histogram(
		"view.source.rows",
		metric.WithDescription("Number of flat rows read by a view query"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create source rows histogram: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"view.results.count",
		metric.WithDescription("Number of top-level entities returned by a view run"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results count histogram: %w", err)
	}

	return &ViewMetrics{
		runDuration:  runDuration,
		runCounter:   runCounter,
		errorCounter: errorCounter,
		activeRuns:   activeRuns,
		sourceRows:   sourceRows,
		resultsCount: resultsCount,
	}, nil
}

// RecordRun records one view run with its duration and outcome.
func (m *ViewMetrics) RecordRun(ctx context.Context, view string, duration time.Duration, rows, results int, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("view", view),
		attribute.Bool("has_errors", err != nil),
	}

	m.runDuration.Record(ctx, float64(duration.Microseconds())/1000.0, metric.WithAttributes(attrs...))
	m.runCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.sourceRows.Record(ctx, int64(rows), metric.WithAttributes(attribute.String("view", view)))

	if err != nil {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("view", view)))
		return
	}
	m.resultsCount.Record(ctx, int64(results), metric.WithAttributes(attribute.String("view", view)))
}

// IncrementActiveRuns increments the active runs counter
func (m *ViewMetrics) IncrementActiveRuns(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRuns.Add(ctx, 1)
}

// DecrementActiveRuns decrements the active runs counter
func (m *ViewMetrics) DecrementActiveRuns(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRuns.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics.
func InitMetrics(logger *slog.Logger) (*ViewMetrics, *HydrationMetrics, error) {
	views, err := InitViewMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize view metrics: %w", err)
	}
	hydration, err := InitHydrationMetrics(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize hydration metrics: %w", err)
	}

	logger.Info("custom view metrics initialized")
	return views, hydration, nil
}
