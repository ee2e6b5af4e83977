package tracer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

type Options struct {
	ServiceName     string
	OTLPEndpoint    string
	MetricsAddr     string
	TracingDisabled bool
}

// InitOtelProviders wires the tracer provider (OTLP over HTTP) and the meter
// provider (Prometheus exporter served on MetricsAddr). The returned function
// shuts all of it down.
func InitOtelProviders(opts Options) (func(context.Context) error, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion("1.0.0"),
	)

	var tp *sdktrace.TracerProvider
	if opts.TracingDisabled {
		tp = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	} else {
		traceExporter, err := otlptracehttp.New(context.Background(),
			otlptracehttp.WithEndpoint(opts.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			log.Printf("Warning: Failed to create OTLP trace exporter, using NoOp: %v", err)
			tp = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		} else {
			tp = sdktrace.NewTracerProvider(
				sdktrace.WithResource(res),
				sdktrace.WithBatcher(traceExporter),
			)
		}
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(mp)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: opts.MetricsAddr, Handler: mux}
	go func() {
		log.Printf("Starting Prometheus metrics server on %s", opts.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	shutdown := func(ctx context.Context) error {
		var shutdownErr error
		if err := metricsServer.Shutdown(ctx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("metrics server shutdown error: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("OTel Meter Provider shutdown error: %w", err))
		}
		if err := tp.Shutdown(ctx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("OTel Tracer Provider shutdown error: %w", err))
		}
		return shutdownErr
	}

	return shutdown, nil
}
