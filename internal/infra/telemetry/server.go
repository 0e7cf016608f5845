package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type HTTPServerOptions struct {
	Addr    string
	Handler http.Handler
}

// RunHTTPServer serves opts.Handler until ctx is done, then shuts down gracefully.
func RunHTTPServer(ctx context.Context, opts HTTPServerOptions, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Handler == nil {
		return errors.New("http server requires a handler")
	}
	addr := opts.Addr
	if addr == "" {
		addr = "0.0.0.0:8000"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           opts.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed to start: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
			return err
		}
		logger.Info("http server stopped")
		return nil
	}
}
