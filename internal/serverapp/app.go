// Package serverapp wires configuration, database, views and the HTTP
// surface into one runnable application.
package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/graphql-go/graphql"

	"rowhydrate/internal/config"
	"rowhydrate/internal/dbexec"
	"rowhydrate/internal/logging"
	"rowhydrate/internal/observability"
	"rowhydrate/internal/views"
)

// App owns runtime resources for the rowhydrate server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	effectiveDatabase string
	dsnPresent        bool

	meterProvider    *observability.MeterProvider
	viewMetrics      *observability.ViewMetrics
	hydrationMetrics *observability.HydrationMetrics
	tracerProvider   *observability.TracerProvider

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }

	queryExecutor dbexec.QueryExecutor
	registry      *views.Registry
	schema        *graphql.Schema

	mux     *http.ServeMux
	handler http.Handler

	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	effectiveDatabase, err := cfg.Database.EffectiveDatabaseName()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve effective database configuration: %w", err)
	}

	return &App{
		cfg:               cfg,
		logger:            logger,
		effectiveDatabase: effectiveDatabase,
		dsnPresent:        strings.TrimSpace(cfg.Database.ConnectionString) != "",
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Registry returns the view registry. It is nil until Init completes.
func (a *App) Registry() *views.Registry {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.registry
}

// Handler returns the instrumented HTTP handler. It is nil until Init completes.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}

// withMetrics attaches hydration metrics to ctx for hydrate runs below it.
func (a *App) withMetrics(ctx context.Context) context.Context {
	if a.hydrationMetrics == nil {
		return ctx
	}
	return observability.ContextWithHydrationMetrics(ctx, a.hydrationMetrics)
}
