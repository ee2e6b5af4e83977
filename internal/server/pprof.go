package server

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StartPprofServer serves /debug/pprof on its own listener so profiling is
// never reachable through the public port.
func StartPprofServer(addr string, logger *zap.Logger) *http.Server {
	pprofRouter := gin.New()
	pprof.Register(pprofRouter)

	srv := &http.Server{Addr: addr, Handler: pprofRouter}
	go func() {
		logger.Info("Starting pprof server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("pprof server stopped", zap.Error(err))
		}
	}()
	return srv
}
