package server

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FACorreiaa/go-tourbook/internal/app/middleware"
	"github.com/FACorreiaa/go-tourbook/internal/routes"
)

// SetupRouter configures and returns the Gin router with all middleware and routes
func SetupRouter(deps routes.Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(middleware.OTELGinMiddleware(deps.Config.Observability.ServiceName))
	r.Use(ginzap.GinzapWithConfig(deps.Logger, &ginzap.Config{
		UTC:        true,
		TimeFormat: time.RFC3339,
		Context:    zapContextFunc(),
		SkipPaths:  []string{"/health"},
	}))
	r.Use(ginzap.RecoveryWithZap(deps.Logger, true))
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SecurityMiddleware())

	routes.Setup(r, deps)

	return r
}

// zapContextFunc attaches request and trace identifiers to access logs.
func zapContextFunc() ginzap.Fn {
	return func(c *gin.Context) []zapcore.Field {
		fields := []zapcore.Field{}

		if requestID := c.Writer.Header().Get("X-Request-Id"); requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}

		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			fields = append(fields,
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.String("span_id", span.SpanContext().SpanID().String()),
			)
		}

		return fields
	}
}
