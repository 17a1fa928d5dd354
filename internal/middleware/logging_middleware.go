package middleware

import (
	"net/http"
	"time"

	"github.com/annel0/mmo-gates/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

var logger = logging.GetComponentLogger("http")

// TraceIDKey ключ trace-ID в gin.Context и заголовок ответа
const (
	TraceIDKey    = "trace_id"
	TraceIDHeader = "X-Trace-Id"
)

// RequestLogger выдаёт каждому запросу trace-ID и пишет строку итога.
// Уровень строки зависит от ответа: 5xx ERROR, 4xx WARN, остальное INFO.
// Служебные /health и /metrics опрашиваются часто и идут в DEBUG.
type RequestLogger struct{}

func NewRequestLogger() *RequestLogger { return &RequestLogger{} }

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := requestTraceID(c)
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if q := c.Request.URL.RawQuery; q != "" {
			route += "?" + q
		}
		status := c.Writer.Status()
		const line = "[HTTP] %s %s %d %s trace=%s"
		args := []interface{}{c.Request.Method, route, status, time.Since(start), traceID}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("❌ "+line, args...)
		case status >= http.StatusBadRequest:
			logger.Warn("⚠️ "+line, args...)
		case ResourceOf(c.FullPath()) == ResourceSystem:
			logger.Debug(line, args...)
		default:
			logger.Info(line, args...)
		}
	}
}

// requestTraceID trace-ID из span otelgin или новый UUID
func requestTraceID(c *gin.Context) string {
	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}
