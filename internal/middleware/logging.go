package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/metrics"
)

const (
	RequestIDHeader     = "X-Request-ID"
	RequestIDContextKey = "request_id"
	LoggerContextKey    = "logger"
)

// RequestID tags each request with an id, reusing one supplied by the
// client
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(RequestIDContextKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger logs request details and attaches a request-scoped logger
func Logger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		reqLogger := logger.WithRequestID(c.GetString(RequestIDContextKey))
		c.Set(LoggerContextKey, reqLogger)

		c.Next()

		reqLogger.LogHTTPRequest(logging.HTTPRequest{
			Method:   c.Request.Method,
			Route:    c.FullPath(),
			Path:     path,
			ClientIP: c.ClientIP(),
			Status:   c.Writer.Status(),
			Bytes:    c.Writer.Size(),
			Duration: time.Since(start),
		})
	}
}

// GetLogger returns the request-scoped logger, or fallback when none is set
func GetLogger(c *gin.Context, fallback *logging.Logger) *logging.Logger {
	if v, ok := c.Get(LoggerContextKey); ok {
		if l, ok := v.(*logging.Logger); ok {
			return l
		}
	}
	return fallback
}

// Metrics records request counts and latency by route template
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}
