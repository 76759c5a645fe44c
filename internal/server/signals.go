package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// SignalHandler manages graceful shutdown of the HTTP server
type SignalHandler struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
	onShutdown      []func()
}

// NewSignalHandler creates a new signal handler. onShutdown hooks run after the server
// has stopped accepting requests, in order.
func NewSignalHandler(server *http.Server, shutdownTimeout time.Duration, logger *slog.Logger, onShutdown ...func()) *SignalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignalHandler{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
		onShutdown:      onShutdown,
	}
}

// Run serves until ctx is cancelled or the listener fails, then shuts down gracefully
func (sh *SignalHandler) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		sh.logger.Info("Starting server", "addr", sh.server.Addr)
		if err := sh.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	sh.logger.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sh.shutdownTimeout)
	defer cancel()

	err := sh.server.Shutdown(shutdownCtx)
	if err != nil {
		sh.logger.Warn("Server forced to shutdown due to timeout", "error", err)
	} else {
		sh.logger.Info("Server gracefully shut down")
	}

	for _, hook := range sh.onShutdown {
		hook()
	}
	return err
}

// HandleSignals starts the server and blocks until SIGINT or SIGTERM
func HandleSignals(server *http.Server, shutdownTimeout time.Duration, logger *slog.Logger, onShutdown ...func()) error {
	// SIGKILL cannot be caught; the process dies without cleanup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return NewSignalHandler(server, shutdownTimeout, logger, onShutdown...).Run(ctx)
}
