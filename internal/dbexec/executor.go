// Package dbexec provides the read-only query execution abstraction used to
// source flat rows for hydration.
package dbexec

import (
	"context"
	"database/sql"
)

// Rows abstracts sql.Rows so sources can scan by column label.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor runs read queries. Hydration never writes, so there is no Exec.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// StandardExecutor executes queries directly against a database handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor that runs queries directly against the database.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}

// ExecutorFunc adapts a function to QueryExecutor.
type ExecutorFunc func(ctx context.Context, query string, args ...any) (Rows, error)

func (f ExecutorFunc) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return f(ctx, query, args...)
}
