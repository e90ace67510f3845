package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Start launches the HTTP server goroutine. It requires Init to have completed.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
	a.started = true
	return a.serverErrors, nil
}

// WaitForStop blocks until an OS signal arrives, the server fails, or ctx is
// done. A nil serverErrors falls back to the channel returned by Start.
func (a *App) WaitForStop(ctx context.Context, stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil && ctx.Done() == nil {
		return "", fmt.Errorf("nothing to wait for: stop, serverErrors and ctx are all unset")
	}

	// Receiving from a nil channel blocks forever, so unset sources drop out of the select.
	select {
	case err := <-serverErrors:
		if err == nil {
			return "server_error", fmt.Errorf("server stopped unexpectedly")
		}
		return "server_error", fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		if a.logger != nil {
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		}
		return "signal", nil
	case <-ctx.Done():
		return "context", nil
	}
}
