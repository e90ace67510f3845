// Package views runs named views: a SQL query whose rows are hydrated with a
// compiled spec document.
package views

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rowhydrate/hydrate"
	"rowhydrate/internal/config"
	"rowhydrate/internal/logging"
	"rowhydrate/internal/observability"
	"rowhydrate/internal/specdoc"
	"rowhydrate/internal/sqlsource"
)

// ErrUnknownView is returned for a view name the registry does not hold.
var ErrUnknownView = errors.New("unknown view")

// Querier loads the flat rows of a view.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sqlsource.Result, error)
}

type view struct {
	cfg  config.ViewConfig
	spec *specdoc.Compiled
}

// Registry holds the configured views.
type Registry struct {
	source  Querier
	metrics *observability.ViewMetrics
	views   map[string]*view
	order   []string
}

// NewRegistry pairs every view with its compiled spec.
func NewRegistry(cfgs []config.ViewConfig, specs map[string]*specdoc.Compiled, source Querier, metrics *observability.ViewMetrics) (*Registry, error) {
	r := &Registry{
		source:  source,
		metrics: metrics,
		views:   make(map[string]*view, len(cfgs)),
	}
	for _, c := range cfgs {
		spec, ok := specs[c.Spec]
		if !ok {
			return nil, fmt.Errorf("view %q: unknown spec %q", c.Name, c.Spec)
		}
		if _, dup := r.views[c.Name]; dup {
			return nil, fmt.Errorf("view %q: duplicate name", c.Name)
		}
		r.views[c.Name] = &view{cfg: c, spec: spec}
		r.order = append(r.order, c.Name)
	}
	return r, nil
}

// Names returns view names in configuration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Config returns the configuration of the named view.
func (r *Registry) Config(name string) (config.ViewConfig, bool) {
	v, ok := r.views[name]
	if !ok {
		return config.ViewConfig{}, false
	}
	return v.cfg, true
}

// Describe summarizes the spec of the named view.
func (r *Registry) Describe(name string) (string, error) {
	v, ok := r.views[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	return v.spec.Describe(), nil
}

// Run executes the named view. Single views behave like RunOne; other views
// return a list.
func (r *Registry) Run(ctx context.Context, name string) (any, error) {
	v, ok := r.views[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	return r.run(ctx, v, v.cfg.Single)
}

// RunOne hydrates only the first row of the named view. It returns nil when
// the query yields no rows. Nested collections see that row alone, so
// children of single-entity views are usually attached rather than joined.
func (r *Registry) RunOne(ctx context.Context, name string) (any, error) {
	v, ok := r.views[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	return r.run(ctx, v, true)
}

func (r *Registry) run(ctx context.Context, v *view, single bool) (out any, err error) {
	ctx, span := otel.Tracer("rowhydrate/views").Start(ctx, "view.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("view.name", v.cfg.Name),
		attribute.Bool("view.single", single),
	)
	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}

	logger := logging.FromContext(ctx).WithFields("view", v.cfg.Name)
	r.metrics.IncrementActiveRuns(ctx)
	defer r.metrics.DecrementActiveRuns(ctx)
	started := time.Now()
	rows, results := 0, 0
	defer func() {
		r.metrics.RecordRun(ctx, v.cfg.Name, time.Since(started), rows, results, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("view run failed", "error", err)
			return
		}
		span.SetAttributes(attribute.Int("view.rows", rows), attribute.Int("view.results", results))
		logger.Debug("view run completed",
			"rows", rows,
			"results", results,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}()

	res, err := r.source.Query(ctx, v.cfg.SQL, v.cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("view %q: %w", v.cfg.Name, err)
	}
	rows = len(res.Rows)
	def := v.spec.Definition(res.Columns)

	opts := []hydrate.Option{hydrate.WithLogger(logger.Logger)}
	if v.cfg.SortRoot {
		opts = append(opts, hydrate.WithRootOrdering())
	}

	if single {
		if len(res.Rows) == 0 {
			return nil, nil
		}
		entity, err := hydrate.HydrateOne(ctx, res.Rows[0], def, opts...)
		if err != nil {
			return nil, fmt.Errorf("view %q: %w", v.cfg.Name, err)
		}
		results = 1
		return entity, nil
	}

	list, err := hydrate.Hydrate(ctx, res.Rows, def, opts...)
	if err != nil {
		return nil, fmt.Errorf("view %q: %w", v.cfg.Name, err)
	}
	results = len(list)
	return list, nil
}
