// Package hydrate turns flat, scope-prefixed join rows into nested entities.
//
// A Spec declares one entity level: the fields that identify it, the fields it
// outputs, nested collections found under a scope prefix in the same rows, and
// attached collections fetched separately, once per hydration. Hydrate groups
// rows by identity at every level, resolves each relation by its cardinality,
// and returns entities in first-seen order unless an ordering is declared.
package hydrate

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rowhydrate/internal/logging"
	"rowhydrate/internal/observability"
)

// Option tunes a single Hydrate call.
type Option func(*options)

type options struct {
	sortRoot bool
	logger   *slog.Logger
}

// WithRootOrdering applies the root spec's ordering to the top-level result.
// Without it, top-level entities stay in first-seen order and only nested
// levels are sorted.
func WithRootOrdering() Option {
	return func(o *options) {
		o.sortRoot = true
	}
}

// WithLogger sends the per-call debug summary to logger instead of the logger
// carried by the context.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(ctx context.Context, opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = logging.FromContext(ctx).Logger
	}
	return o
}

// Hydrate builds one entity per distinct keyBy tuple found in rows. Rows whose
// root identity is null are skipped.
func Hydrate(ctx context.Context, rows []Row, def Definition, opts ...Option) ([]any, error) {
	spec := def.definition()
	o := buildOptions(ctx, opts)

	ctx, span := startSpan(ctx, "hydrate",
		attribute.String("hydrate.mode", "many"),
		attribute.Int("hydrate.rows", len(rows)),
	)
	defer span.End()
	started := time.Now()

	out, err := hydrateMany(ctx, spec, rows, o)

	observability.HydrationMetricsFromContext(ctx).RecordRun(ctx, time.Since(started), "many", len(rows), len(out), err)
	finishSpan(span, err)
	logger := o.logger
	if err != nil {
		logger.Debug("hydration failed", "rows", len(rows), "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("hydrate.entities", len(out)))
	logger.Debug("hydration completed",
		"rows", len(rows),
		"entities", len(out),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return out, nil
}

func hydrateMany(ctx context.Context, spec *Spec, rows []Row, o options) ([]any, error) {
	idx, err := runJobs(ctx, collectJobs(spec, "", rows, nil))
	if err != nil {
		return nil, err
	}
	a := &assembler{attached: idx, sortRoot: o.sortRoot}
	return a.many(level{spec: spec}, rows, true)
}

// HydrateOne builds exactly one entity from row. Unlike Hydrate, a null root
// identity does not skip the row.
func HydrateOne(ctx context.Context, row Row, def Definition, opts ...Option) (any, error) {
	spec := def.definition()
	o := buildOptions(ctx, opts)

	ctx, span := startSpan(ctx, "hydrate", attribute.String("hydrate.mode", "one"))
	defer span.End()
	started := time.Now()

	out, err := hydrateOne(ctx, spec, row)

	entities := 1
	if err != nil {
		entities = 0
	}
	observability.HydrationMetricsFromContext(ctx).RecordRun(ctx, time.Since(started), "one", 1, entities, err)
	finishSpan(span, err)
	if err != nil {
		o.logger.Debug("single-row hydration failed", "error", err)
		return nil, err
	}
	return out, nil
}

func hydrateOne(ctx context.Context, spec *Spec, row Row) (any, error) {
	rows := []Row{row}
	idx, err := runJobs(ctx, collectJobs(spec, "", rows, nil))
	if err != nil {
		return nil, err
	}
	a := &assembler{attached: idx}
	e, err := a.one(level{spec: spec}, row, rows)
	if err != nil {
		return nil, err
	}
	return output(spec, e), nil
}
