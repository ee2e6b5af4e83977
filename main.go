package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/pkg/config"
	"github.com/FACorreiaa/go-tourbook/internal/routes"
	"github.com/FACorreiaa/go-tourbook/internal/server"
	"github.com/FACorreiaa/go-tourbook/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logger.Init(logger.ParseLevel(cfg.Observability.LogLevel),
		zap.String("service", cfg.Observability.ServiceName)); err != nil {
		return err
	}
	l := logger.Log
	defer func() { _ = l.Sync() }()

	otelShutdown, err := server.InitObservability(cfg.Observability, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			l.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	srv, err := server.New(context.Background(), cfg, l)
	if err != nil {
		return err
	}
	defer srv.Close()

	router := server.SetupRouter(routes.Dependencies{
		Pool:       srv.GetDBPool(),
		Config:     cfg,
		Logger:     l,
		Publisher:  srv.Publisher(),
		CacheStore: srv.CacheStore(),
	})
	srv.SetRouter(router)

	pprofServer := server.StartPprofServer(cfg.Observability.PprofAddr, l)
	httpServer := srv.HTTPServer()

	done := make(chan struct{})
	go server.GracefulShutdown(l, done, httpServer, pprofServer)

	l.Info("Server starting", zap.String("port", cfg.ServerPort))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("Server error", zap.Error(err))
		return err
	}

	<-done
	l.Info("Graceful shutdown complete")
	return nil
}
