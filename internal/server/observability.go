package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-tourbook/internal/app/observability/tracer"
	"github.com/FACorreiaa/go-tourbook/internal/pkg/config"
)

// ObservabilityShutdownFunc is the function type returned by InitObservability
type ObservabilityShutdownFunc func(context.Context) error

// InitObservability registers the tracer and meter providers, then creates the
// application instruments against them.
func InitObservability(cfg config.ObservabilityConfig, logger *zap.Logger) (ObservabilityShutdownFunc, error) {
	otelShutdown, err := tracer.InitOtelProviders(tracer.Options{
		ServiceName:     cfg.ServiceName,
		OTLPEndpoint:    cfg.OTLPEndpoint,
		MetricsAddr:     cfg.MetricsAddr,
		TracingDisabled: cfg.TracingDisabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics.InitAppMetrics()
	logger.Info("Observability initialized",
		zap.String("service", cfg.ServiceName),
		zap.String("metrics_endpoint", cfg.MetricsAddr+"/metrics"),
		zap.Bool("tracing_disabled", cfg.TracingDisabled))

	return otelShutdown, nil
}
