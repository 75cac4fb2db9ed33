// Package logging builds the zap logger of the service and the gin middleware that writes one
// log entry per HTTP request.
package logging

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HeaderRequestID is the HTTP header that carries the id of a request.
const HeaderRequestID = "X-Request-ID"

// contextKeyRequestID is the key under which the request id is stored in the gin context.
const contextKeyRequestID = "requestID"

// New returns a JSON logger for the modes "prod" and "production", and a human readable
// development logger for every other mode.
func New(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}

// Middleware logs method, path, status, latency and client address of every request. A request
// without an X-Request-ID header gets a new random id, which is echoed in the response. If an
// OpenTelemetry span is active the trace id is logged as well.
func Middleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(contextKeyRequestID, requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", requestID),
		}
		if spanContext := trace.SpanContextFromContext(c.Request.Context()); spanContext.IsValid() {
			fields = append(fields, zap.String("trace_id", spanContext.TraceID().String()))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// RequestID returns the id that the middleware assigned to the request, or an empty string.
func RequestID(c *gin.Context) string {
	return c.GetString(contextKeyRequestID)
}
