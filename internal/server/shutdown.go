package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// shutdownGrace is how long in-flight requests get to finish. A journey
// stop pipeline (stats + image upload + badges) fits comfortably inside it.
const shutdownGrace = 5 * time.Second

// GracefulShutdown blocks until SIGINT/SIGTERM, drains the HTTP server and
// signals done when the drain finishes.
func GracefulShutdown(srv *http.Server, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("Shutdown signal received, draining requests",
		zap.Duration("grace", shutdownGrace))

	stop() // a second signal now kills the process

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Drain exceeded grace period, forcing shutdown", zap.Error(err))
	}

	logger.Info("HTTP server stopped")
	done <- true
}
