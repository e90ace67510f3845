// Package sqlsource reads flat join rows for hydration. Column labels are kept
// verbatim, so a query that aliases `c.body AS "comments$$body"` yields rows
// that a spec with a "comments" scope can hydrate directly.
package sqlsource

import (
	"context"
	"errors"
	"fmt"

	"rowhydrate/hydrate"
	"rowhydrate/internal/dbexec"
)

// ErrTooManyRows is returned when a query produces more rows than the source allows.
var ErrTooManyRows = errors.New("row limit exceeded")

// Result holds the rows of one query and the column labels in select order.
type Result struct {
	Columns []string
	Rows    []hydrate.Row
}

// Source runs queries through an executor and converts rows to hydrate rows.
type Source struct {
	exec    dbexec.QueryExecutor
	maxRows int
}

// New creates a source. maxRows caps the rows a single query may return;
// zero or less disables the cap.
func New(exec dbexec.QueryExecutor, maxRows int) *Source {
	return &Source{exec: exec, maxRows: maxRows}
}

// Query runs query and scans every row into a hydrate.Row keyed by column label.
func (s *Source) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	if err := checkLabels(columns); err != nil {
		return nil, err
	}

	out, err := scanRows(rows, columns, s.maxRows)
	if err != nil {
		return nil, err
	}
	return &Result{Columns: columns, Rows: out}, nil
}

// Query is a convenience for a one-off uncapped query.
func Query(ctx context.Context, exec dbexec.QueryExecutor, query string, args ...any) (*Result, error) {
	return New(exec, 0).Query(ctx, query, args...)
}

func checkLabels(columns []string) error {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate column label %q; alias each selected column uniquely", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

func scanRows(rows dbexec.Rows, columns []string, maxRows int) ([]hydrate.Row, error) {
	var results []hydrate.Row

	for rows.Next() {
		if maxRows > 0 && len(results) >= maxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrTooManyRows, maxRows)
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(hydrate.Row, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return results, nil
}

func convertValue(val any) any {
	if val == nil {
		return nil
	}

	// Convert []byte to string; the driver reuses the buffer between rows.
	if b, ok := val.([]byte); ok {
		return string(b)
	}

	return val
}
