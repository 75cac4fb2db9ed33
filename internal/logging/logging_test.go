package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newRouter builds a gin engine with the logging middleware and a few test endpoints.
func newRouter(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(Middleware(logger))
	router.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})
	router.GET("/missing", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})
	router.GET("/broken", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	return router
}

// TestMiddlewareAssignsRequestID verifies that a new request id is generated, stored in the
// context, returned as header, and written to the log.
func TestMiddlewareAssignsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := newRouter(zap.New(core))

	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest("GET", "/ok?limit=5", nil)
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	requestID := recorder.Header().Get(HeaderRequestID)
	_, err := uuid.Parse(requestID)
	require.NoError(t, err)
	assert.Equal(t, requestID, recorder.Body.String())

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/ok", fields["path"])
	assert.Equal(t, "limit=5", fields["query"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, requestID, fields["request_id"])
}

// TestMiddlewareKeepsRequestID verifies that an id supplied by the client is kept.
func TestMiddlewareKeepsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := newRouter(zap.New(core))

	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest("GET", "/ok", nil)
	request.Header.Set(HeaderRequestID, "abc-123")
	router.ServeHTTP(recorder, request)

	assert.Equal(t, "abc-123", recorder.Header().Get(HeaderRequestID))
	assert.Equal(t, "abc-123", logs.All()[0].ContextMap()["request_id"])
}

// TestMiddlewareLevels verifies that client errors are logged as warnings and server errors as
// errors.
func TestMiddlewareLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := newRouter(zap.New(core))

	for _, path := range []string{"/missing", "/broken"} {
		request, _ := http.NewRequest("GET", path, nil)
		router.ServeHTTP(httptest.NewRecorder(), request)
	}

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
}

// TestNew builds loggers for both modes.
func TestNew(t *testing.T) {
	for _, mode := range []string{"production", "PROD", "development", ""} {
		logger, err := New(mode)
		require.NoError(t, err, "mode: "+mode)
		assert.NotNil(t, logger)
	}
}

// TestMiddlewareLogsTraceID verifies that the trace id of an active span ends up in the log.
func TestMiddlewareLogsTraceID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := newRouter(zap.New(core))

	spanContext := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b},
		SpanID:     trace.SpanID{0x01},
		TraceFlags: trace.FlagsSampled,
	})
	request, _ := http.NewRequest("GET", "/ok", nil)
	request = request.WithContext(trace.ContextWithSpanContext(request.Context(), spanContext))
	router.ServeHTTP(httptest.NewRecorder(), request)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, spanContext.TraceID().String(), logs.All()[0].ContextMap()["trace_id"])
}
