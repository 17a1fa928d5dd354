package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/mmo-gates/internal/gate"
	"github.com/annel0/mmo-gates/internal/logging"
	"github.com/annel0/mmo-gates/internal/middleware"
	"github.com/annel0/mmo-gates/internal/portal"
	"github.com/annel0/mmo-gates/internal/vec"
	"github.com/annel0/mmo-gates/internal/world/block"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var logger = logging.GetComponentLogger("api")

// FormatSource каталог форматов
type FormatSource interface {
	All() []*gate.Format
	Get(name string) (*gate.Format, bool)
}

// GateSource зарегистрированные врата и индекс. Возвращает копии:
// обработчики gin работают параллельно с горутиной симуляции.
type GateSource interface {
	Len() int
	Snapshots() []portal.Snapshot
	Snapshot(id string) (portal.Snapshot, bool)
	LookupSnapshot(pos vec.Vec3, roles ...gate.Role) (portal.Snapshot, gate.Role, bool)
	AdjacentSnapshots(pos vec.Vec3, role gate.Role) []portal.Snapshot
	IndexSize() map[gate.Role]int
}

// Config содержит конфигурацию отладочного REST сервера
type Config struct {
	Port      string          // адрес, например ":8088"
	Formats   FormatSource    // каталог форматов
	Gates     GateSource      // врата
	Materials *block.Registry // имена материалов для ответов
	Registry  *prometheus.Registry
	Service   string // имя сервиса для otelgin
}

// RestServer отладочный REST API (только чтение)
type RestServer struct {
	router    *gin.Engine
	formats   FormatSource
	gates     GateSource
	materials *block.Registry
	port      string
	metrics   *ServerMetrics
	server    *http.Server
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Service == "" {
		config.Service = "gates-api"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Materials == nil {
		config.Materials = block.NewDefaultRegistry()
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.Service))
	router.Use(middleware.NewRequestLogger().Handler())

	httpMetrics := middleware.NewHTTPMetrics("api", config.Registry)
	router.Use(httpMetrics.Handler())
	middleware.RegisterMetricsEndpoint(router, config.Registry)

	rs := &RestServer{
		router:    router,
		formats:   config.Formats,
		gates:     config.Gates,
		materials: config.Materials,
		port:      config.Port,
		metrics:   NewServerMetrics(),
	}
	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/formats", rs.handleFormats)
		api.GET("/formats/:name", rs.handleFormat)
		api.GET("/gates", rs.handleGates)
		api.GET("/gates/:id", rs.handleGate)
		api.GET("/lookup", rs.handleLookup)
		api.GET("/adjacent", rs.handleAdjacent)
	}
}

// Router возвращает gin.Engine (для тестов через httptest)
func (rs *RestServer) Router() *gin.Engine {
	return rs.router
}

// Start запускает HTTP сервер. Неблокирующий.
func (rs *RestServer) Start() {
	rs.server = &http.Server{Addr: rs.port, Handler: rs.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("🌐 Отладочный API запущен на %s", rs.port)
		if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("❌ Ошибка HTTP сервера: %v", err)
		}
	}()
}

// Shutdown останавливает HTTP сервер
func (rs *RestServer) Shutdown(ctx context.Context) error {
	if rs.server == nil {
		return nil
	}
	return rs.server.Shutdown(ctx)
}

func (rs *RestServer) fail(c *gin.Context, status int, message string) {
	c.JSON(status, GenericResponse{Success: false, Message: message})
}

func (rs *RestServer) ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: message, Data: data})
}

// handleHealth проверка живости
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"formats": len(rs.formats.All()),
		"gates":   rs.gates.Len(),
		"time":    time.Now().Unix(),
	})
}

// handleStats сводка по процессу и индексу
func (rs *RestServer) handleStats(c *gin.Context) {
	index := make(map[string]int)
	for role, n := range rs.gates.IndexSize() {
		index[role.String()] = n
	}
	rs.ok(c, "Статистика получена", gin.H{
		"process": rs.metrics.Snapshot(),
		"formats": len(rs.formats.All()),
		"gates":   rs.gates.Len(),
		"index":   index,
	})
}

func (rs *RestServer) handleFormats(c *gin.Context) {
	formats := rs.formats.All()
	out := make([]FormatView, 0, len(formats))
	for _, f := range formats {
		out = append(out, rs.formatView(f, false))
	}
	rs.ok(c, "Форматы получены", out)
}

func (rs *RestServer) handleFormat(c *gin.Context) {
	f, ok := rs.formats.Get(c.Param("name"))
	if !ok {
		rs.fail(c, http.StatusNotFound, "Формат не найден")
		return
	}
	rs.ok(c, "Формат получен", rs.formatView(f, true))
}

func (rs *RestServer) handleGates(c *gin.Context) {
	rs.ok(c, "Врата получены", gateViews(rs.gates.Snapshots()))
}

func (rs *RestServer) handleGate(c *gin.Context) {
	s, ok := rs.gates.Snapshot(c.Param("id"))
	if !ok {
		rs.fail(c, http.StatusNotFound, "Врата не найдены")
		return
	}
	rs.ok(c, "Врата получены", gateView(s))
}

// handleLookup GET /api/lookup?x=&y=&z=[&role=frame,iris]
func (rs *RestServer) handleLookup(c *gin.Context) {
	pos, err := queryPos(c)
	if err != nil {
		rs.fail(c, http.StatusBadRequest, err.Error())
		return
	}
	roles, err := queryRoles(c.Query("role"))
	if err != nil {
		rs.fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s, role, found := rs.gates.LookupSnapshot(pos, roles...)
	if !found {
		rs.fail(c, http.StatusNotFound, "Позиция не занята")
		return
	}
	rs.ok(c, "Позиция занята", LookupView{Role: role.String(), Pos: pos, Gate: gateView(s)})
}

// handleAdjacent GET /api/adjacent?x=&y=&z=&role=iris
func (rs *RestServer) handleAdjacent(c *gin.Context) {
	pos, err := queryPos(c)
	if err != nil {
		rs.fail(c, http.StatusBadRequest, err.Error())
		return
	}
	role := gate.RoleIris
	if s := c.Query("role"); s != "" {
		if role, err = gate.ParseRole(s); err != nil {
			rs.fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	rs.ok(c, "Соседние врата получены", gateViews(rs.gates.AdjacentSnapshots(pos, role)))
}

func queryPos(c *gin.Context) (vec.Vec3, error) {
	var coords [3]int
	for i, key := range [3]string{"x", "y", "z"} {
		raw := c.Query(key)
		if raw == "" {
			return vec.Vec3{}, errors.New("missing coordinate " + key)
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return vec.Vec3{}, errors.New("invalid coordinate " + key)
		}
		coords[i] = n
	}
	return vec.New(coords[0], coords[1], coords[2]), nil
}

func queryRoles(raw string) ([]gate.Role, error) {
	if raw == "" {
		return nil, nil
	}
	var roles []gate.Role
	for _, part := range strings.Split(raw, ",") {
		role, err := gate.ParseRole(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}
