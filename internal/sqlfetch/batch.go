// Package sqlfetch builds attached-collection fetchers that load children
// with one batched IN query per hydration.
package sqlfetch

import (
	"context"
	"fmt"
	"slices"

	sq "github.com/Masterminds/squirrel"

	"rowhydrate/hydrate"
	"rowhydrate/internal/dbexec"
	"rowhydrate/internal/logging"
	"rowhydrate/internal/sqlsource"
	"rowhydrate/internal/sqlutil"
)

// DefaultMaxInClause bounds the number of parent tuples per query.
const DefaultMaxInClause = 1000

// Batch describes how to load one attached collection from a table.
//
// The parent values are read from ParentFields of the rows handed to the
// fetcher and matched against MatchColumns of Table. Fetched rows are
// hydrated with Child, so a child spec may carry its own nested and attached
// collections. The match columns are always selected and, when Child is a
// *hydrate.Spec, always output so the children can be routed back to their
// parents.
type Batch struct {
	Exec         dbexec.QueryExecutor
	Table        string
	Columns      []string
	MatchColumns []string
	ParentFields []string
	// Where is an optional extra condition ANDed with the IN list.
	Where     string
	WhereArgs []any
	OrderBy   []string
	// MaxInClause caps tuples per query; zero means DefaultMaxInClause.
	MaxInClause int
	Child       hydrate.Definition
}

// Match returns the hydrate.Match that pairs the fetched children with parents.
func (b Batch) Match() hydrate.Match {
	return hydrate.Match{Child: slices.Clone(b.MatchColumns), Parent: slices.Clone(b.ParentFields)}
}

func (b Batch) validate() error {
	if b.Exec == nil {
		return fmt.Errorf("batch fetch for %q requires an executor", b.Table)
	}
	if b.Table == "" {
		return fmt.Errorf("batch fetch requires a table")
	}
	if len(b.MatchColumns) == 0 {
		return fmt.Errorf("batch fetch for %q requires at least one match column", b.Table)
	}
	if len(b.ParentFields) != 0 && len(b.ParentFields) != len(b.MatchColumns) {
		return fmt.Errorf("batch fetch for %q: %d match columns but %d parent fields",
			b.Table, len(b.MatchColumns), len(b.ParentFields))
	}
	if b.Child == nil {
		return fmt.Errorf("batch fetch for %q requires a child spec", b.Table)
	}
	return nil
}

// Attach returns the fetcher and match for use with Spec.AttachMany and friends.
// parentKeyBy fills ParentFields when they are not set.
func (b Batch) Attach(parentKeyBy []string) (hydrate.FetchFunc, hydrate.Match, error) {
	if len(b.ParentFields) == 0 {
		b.ParentFields = slices.Clone(parentKeyBy)
	}
	fetch, err := b.FetchFunc()
	if err != nil {
		return nil, hydrate.Match{}, err
	}
	return fetch, b.Match(), nil
}

// FetchFunc validates b and returns a hydrate.FetchFunc that runs it.
func (b Batch) FetchFunc() (hydrate.FetchFunc, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	if len(b.ParentFields) == 0 {
		return nil, fmt.Errorf("batch fetch for %q requires parent fields", b.Table)
	}

	child := b.Child
	if s, ok := child.(*hydrate.Spec); ok {
		for _, col := range b.MatchColumns {
			s = s.EnsureField(col)
		}
		child = s
	}
	limit := b.MaxInClause
	if limit <= 0 {
		limit = DefaultMaxInClause
	}

	return func(ctx context.Context, rows []hydrate.Row) ([]any, error) {
		tuples := parentTuples(rows, b.ParentFields)
		if len(tuples) == 0 {
			return nil, nil
		}

		logger := logging.FromContext(ctx)
		var fetched []hydrate.Row
		for chunk := range slices.Chunk(tuples, limit) {
			query, args, err := b.buildQuery(chunk)
			if err != nil {
				return nil, err
			}
			res, err := sqlsource.Query(ctx, b.Exec, query, args...)
			if err != nil {
				return nil, fmt.Errorf("batch fetch from %q: %w", b.Table, err)
			}
			logger.Debug("batch fetch chunk",
				"table", b.Table,
				"parents", len(chunk),
				"rows", len(res.Rows),
			)
			fetched = append(fetched, res.Rows...)
		}

		return hydrate.Hydrate(ctx, fetched, child, hydrate.WithRootOrdering())
	}, nil
}

func (b Batch) buildQuery(tuples [][]any) (string, []any, error) {
	builder := sq.Select(b.selectColumns()...).
		From(sqlutil.QuoteIdentifier(b.Table)).
		Where(sqlutil.TupleIn{Columns: b.MatchColumns, Tuples: tuples})
	if b.Where != "" {
		builder = builder.Where(sq.Expr(b.Where, b.WhereArgs...))
	}
	if len(b.OrderBy) > 0 {
		builder = builder.OrderBy(b.OrderBy...)
	}
	return builder.PlaceholderFormat(sq.Question).ToSql()
}

func (b Batch) selectColumns() []string {
	if len(b.Columns) == 0 {
		return []string{"*"}
	}
	cols := slices.Clone(b.Columns)
	for _, m := range b.MatchColumns {
		if !slices.Contains(cols, m) {
			cols = append(cols, m)
		}
	}
	return sqlutil.QuoteIdentifiers(cols)
}

// parentTuples collects distinct non-null parent tuples in first-seen order.
func parentTuples(rows []hydrate.Row, fields []string) [][]any {
	values := hydrate.UniqueValues(rows, fields...)
	out := make([][]any, len(values))
	for i, v := range values {
		if len(fields) == 1 {
			out[i] = []any{v}
		} else {
			out[i] = v.([]any)
		}
	}
	return out
}
