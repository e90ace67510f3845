package serverapp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowhydrate/internal/config"
	"rowhydrate/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.Discard()
}

func TestWaitForStop_SignalWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	stop <- syscall.SIGTERM

	reason, err := app.WaitForStop(context.Background(), stop, serverErrors)
	require.NoError(t, err)
	assert.Equal(t, "signal", reason)
}

func TestWaitForStop_ServerErrorWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)
	serverErrors <- errors.New("boom")

	reason, err := app.WaitForStop(context.Background(), stop, serverErrors)
	require.Error(t, err)
	assert.Equal(t, "server_error", reason)
	assert.ErrorContains(t, err, "boom")
}

func TestWaitForStop_ContextDone(t *testing.T) {
	app := &App{logger: testLogger()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reason, err := app.WaitForStop(ctx, nil, make(chan error))
	require.NoError(t, err)
	assert.Equal(t, "context", reason)
}

func TestWaitForStop_NothingToWaitFor(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.WaitForStop(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestShutdown_Idempotent(t *testing.T) {
	app := &App{logger: testLogger()}
	var calls int32
	app.cleanup.push("test", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, app.Shutdown(ctx))
	require.NoError(t, app.Shutdown(ctx))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCleanupStack_LIFOAndJoinedErrors(t *testing.T) {
	var order []string
	var s cleanupStack
	s.push("first", func(context.Context) error { order = append(order, "first"); return errors.New("a") })
	s.push("second", func(context.Context) error { order = append(order, "second"); return nil })
	s.push("third", func(context.Context) error { order = append(order, "third"); return errors.New("c") })

	err := s.run(context.Background(), testLogger())
	assert.Equal(t, []string{"third", "second", "first"}, order)
	require.Error(t, err)
	assert.ErrorContains(t, err, "third: c")
	assert.ErrorContains(t, err, "first: a")

	assert.NoError(t, s.run(context.Background(), testLogger()), "stack is emptied after a run")
}

func TestStart_BeforeInit_Fails(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.Start()
	assert.Error(t, err)
}

func TestStartAndShutdown_HappyPath(t *testing.T) {
	app := &App{
		cfg:        &config.Config{},
		logger:     testLogger(),
		serverAddr: "127.0.0.1:0",
		srv: &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: http.NewServeMux(),
		},
		initialized: true,
	}
	app.cleanup.push("HTTP server", func(ctx context.Context) error {
		return app.srv.Shutdown(ctx)
	})

	first, err := app.Start()
	require.NoError(t, err)
	second, err := app.Start()
	require.NoError(t, err)
	assert.Equal(t, first, second, "second start returns the running server's channel")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
}

func TestNew_RejectsDatabaseMismatch(t *testing.T) {
	_, err := New(&config.Config{Database: config.DatabaseConfig{
		ConnectionString: "root@tcp(localhost:3306)/one",
		Database:         "two",
	}}, testLogger())
	assert.ErrorContains(t, err, "database mismatch")

	_, err = New(nil, testLogger())
	assert.Error(t, err)
}

func TestInitFailure_DoesNotMarkInitialized(t *testing.T) {
	appCfg := &config.Config{
		Database: config.DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     1,
			User:     "root",
			Password: "invalid",
			Database: "test",
			Pool: config.PoolConfig{
				MaxOpen:     1,
				MaxIdle:     1,
				MaxLifetime: time.Second,
			},
			ConnectionTimeout:       0,
			ConnectionRetryInterval: 10 * time.Millisecond,
		},
		Server: config.ServerConfig{
			Port:               18089,
			ReadTimeout:        time.Second,
			WriteTimeout:       time.Second,
			IdleTimeout:        time.Second,
			ShutdownTimeout:    time.Second,
			HealthCheckTimeout: time.Second,
		},
		Observability: config.ObservabilityConfig{
			ServiceName:    "rowhydrate",
			ServiceVersion: "test",
			Environment:    "test",
			Logging:        config.LoggingConfig{Level: "info", Format: "text"},
		},
	}

	app, err := New(appCfg, testLogger())
	require.NoError(t, err)

	require.Error(t, app.Init(context.Background()), "unreachable database")

	app.stateMu.Lock()
	initialized := app.initialized
	app.stateMu.Unlock()
	assert.False(t, initialized, "app should not be marked initialized after failed Init")
	assert.Nil(t, app.Registry())
}
