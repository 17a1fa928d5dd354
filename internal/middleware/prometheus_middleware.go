package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace общий префикс метрик сервиса врат
const MetricsNamespace = "gates"

// Ресурсы отладочного API: первая часть маршрута после /api
const (
	ResourceUnmatched = "unmatched"
	ResourceSystem    = "system" // /health, /metrics
)

// HTTPMetrics метрики отладочного API врат (gates_<subsystem>_*):
//
//   - http_request_duration_seconds{resource,route,method,class}: histogram
//   - http_requests_inflight: gauge
//   - http_request_errors_total{resource,class}: counter (4xx/5xx)
//   - position_queries_total{resource,result}: counter, исход запросов
//     /api/lookup и /api/adjacent (hit, miss, invalid)
//
// Маршрут берётся из шаблона gin, поэтому /api/gates/:id не плодит ряды
// по идентификаторам врат; несуществующие пути сводятся в "unmatched".
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	errors   *prometheus.CounterVec
	queries  *prometheus.CounterVec
}

// NewHTTPMetrics создаёт метрики и регистрирует их в reg
func NewHTTPMetrics(subsystem string, reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность запросов к отладочному API врат.",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"resource", "route", "method", "class"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystem,
			Name:      "http_requests_inflight",
			Help:      "Запросы к API врат в обработке.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystem,
			Name:      "http_request_errors_total",
			Help:      "Запросы к API врат с ответом 4xx/5xx.",
		}, []string{"resource", "class"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystem,
			Name:      "position_queries_total",
			Help:      "Запросы занятости позиций по исходу.",
		}, []string{"resource", "result"}),
	}

	reg.MustRegister(m.duration, m.inflight, m.errors, m.queries)
	return m
}

// Handler возвращает gin.HandlerFunc для router.Use()
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.inflight.Inc()
		c.Next()
		m.inflight.Dec()

		route := c.FullPath()
		resource := ResourceOf(route)
		if route == "" {
			route = ResourceUnmatched
		}
		code := c.Writer.Status()
		class := StatusClass(code)

		m.duration.WithLabelValues(resource, route, c.Request.Method, class).Observe(time.Since(start).Seconds())
		if code >= http.StatusBadRequest {
			m.errors.WithLabelValues(resource, class).Inc()
		}
		if resource == "lookup" || resource == "adjacent" {
			m.queries.WithLabelValues(resource, queryResult(code)).Inc()
		}
	}
}

// ResourceOf относит шаблон маршрута gin к ресурсу API:
// "/api/gates/:id" -> "gates", "/health" -> "system", "" -> "unmatched".
func ResourceOf(route string) string {
	if route == "" {
		return ResourceUnmatched
	}
	rest, ok := strings.CutPrefix(route, "/api/")
	if !ok {
		return ResourceSystem
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// StatusClass 200 -> "2xx"
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return string(rune('0'+code/100)) + "xx"
}

func queryResult(code int) string {
	switch {
	case code == http.StatusNotFound:
		return "miss"
	case code >= http.StatusBadRequest:
		return "invalid"
	default:
		return "hit"
	}
}

// RegisterMetricsEndpoint добавляет GET /metrics, отдающий метрики из g
func RegisterMetricsEndpoint(r gin.IRoutes, g prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}
