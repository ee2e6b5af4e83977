package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// GracefulShutdown waits for SIGINT/SIGTERM and then drains every server in
// turn, giving in-flight requests up to ten seconds in total.
func GracefulShutdown(logger *zap.Logger, done chan<- struct{}, servers ...*http.Server) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}

	logger.Info("Server exiting")
	close(done)
}
