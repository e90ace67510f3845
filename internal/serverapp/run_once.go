package serverapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"rowhydrate/internal/encode"
	"rowhydrate/internal/views"
)

// RunView initializes the app if needed, runs one view and writes the
// encoded result to w. The HTTP server is not started.
func (a *App) RunView(ctx context.Context, name string, format encode.Format, w io.Writer) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	registry := a.Registry()
	if _, ok := registry.Config(name); !ok {
		return fmt.Errorf("%w: %q (configured: %v)", views.ErrUnknownView, name, registry.Names())
	}

	result, err := registry.Run(a.withMetrics(ctx), name)
	if err != nil {
		return err
	}
	if err := encode.Encode(w, format, result); err != nil {
		return err
	}
	a.logger.Debug("view written", slog.String("view", name), slog.String("format", string(format)))
	return nil
}
