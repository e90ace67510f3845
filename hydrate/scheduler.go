package hydrate

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"rowhydrate/internal/observability"
	"rowhydrate/internal/prefix"
)

// fetchJob is one attached collection at one node of the spec tree. path is
// the node's absolute scope prefix followed by the collection key, which
// keeps same-named collections at different depths apart.
type fetchJob struct {
	path  string
	entry attachedEntry
	rows  []Row
}

// attachedIndex maps a fetch path to its children grouped by encoded match key.
type attachedIndex map[string]map[string][]any

func (idx attachedIndex) lookup(path string, key []any) []any {
	groups := idx[path]
	if groups == nil {
		return nil
	}
	return groups[encodeKey(key)]
}

// collectJobs walks spec and every nested spec below it. rows are the rows of
// the current level with absPrefix already stripped.
func collectJobs(spec *Spec, absPrefix string, rows []Row, jobs []fetchJob) []fetchJob {
	for _, entry := range spec.attached {
		jobs = append(jobs, fetchJob{
			path:  absPrefix + entry.key,
			entry: entry,
			rows:  rows,
		})
	}
	for _, n := range spec.nested {
		childRows := scopedRows(rows, n.prefix, n.child.keyBy)
		jobs = collectJobs(n.child, absPrefix+n.prefix, childRows, jobs)
	}
	return jobs
}

// scopedRows materializes the sub-rows under scope, dropping rows whose child
// identity is null. Duplicates produced by sibling joins are kept.
func scopedRows(rows []Row, scope string, keyBy []string) []Row {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		view := prefix.NewView(row, scope)
		if len(keyBy) > 0 {
			if _, ok := tupleOf(keyBy, view.Value); !ok {
				continue
			}
		}
		out = append(out, view.Materialize())
	}
	return out
}

// runJobs invokes every fetch concurrently, exactly once each, and indexes the
// results. The first failure cancels the context handed to the others.
func runJobs(ctx context.Context, jobs []fetchJob) (attachedIndex, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	metrics := observability.HydrationMetricsFromContext(ctx)
	results := make([][]any, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			fctx, span := startSpan(gctx, "hydrate.fetch",
				attribute.String("hydrate.collection", job.path),
				attribute.Int("hydrate.parent_rows", len(job.rows)),
			)
			started := time.Now()
			children, err := job.entry.fetch(fctx, job.rows)
			metrics.RecordFetch(fctx, time.Since(started), job.path, len(job.rows), len(children), err)
			finishSpan(span, err)
			span.End()
			if err != nil {
				return fmt.Errorf("attached collection %q: %w", job.path, err)
			}
			results[i] = children
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := make(attachedIndex, len(jobs))
	for i, job := range jobs {
		idx[job.path] = groupChildren(results[i], job.entry.match.Child)
	}
	return idx, nil
}

// groupChildren buckets children by their match fields, keeping fetch order
// within each bucket. Children with a null match field are unreachable.
func groupChildren(children []any, fields []string) map[string][]any {
	groups := make(map[string][]any)
	for _, child := range children {
		tuple, ok := tupleOf(fields, func(f string) any { return entityField(child, f) })
		if !ok {
			continue
		}
		k := encodeKey(tuple)
		groups[k] = append(groups[k], child)
	}
	return groups
}
