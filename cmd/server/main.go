package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/mmo-gates/internal/api"
	"github.com/annel0/mmo-gates/internal/config"
	"github.com/annel0/mmo-gates/internal/eventbus"
	"github.com/annel0/mmo-gates/internal/gate"
	"github.com/annel0/mmo-gates/internal/gate/catalog"
	"github.com/annel0/mmo-gates/internal/logging"
	"github.com/annel0/mmo-gates/internal/metrics"
	"github.com/annel0/mmo-gates/internal/observability"
	"github.com/annel0/mmo-gates/internal/portal"
	"github.com/annel0/mmo-gates/internal/storage"
	"github.com/annel0/mmo-gates/internal/world"
	"github.com/annel0/mmo-gates/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "Путь к YAML конфигурации (по умолчанию $GATES_CONFIG)")
	demo := flag.Bool("demo", true, "Построить по одним вратам каждого формата в демо-мире")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	level := logging.INFO
	if cfg.Logging.Level != "" {
		if level, err = logging.ParseLevel(cfg.Logging.Level); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}
	if err := logging.InitDefaultLogger("server", level); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	if err := logging.ConfigureComponents(cfg.Logging.Components); err != nil {
		log.Fatalf("❌ %v", err)
	}

	if err := run(cfg, *demo); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(cfg *config.Config, demo bool) error {
	logging.Info("🚪 Запуск сервера врат...")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === МАТЕРИАЛЫ И МИР ===
	registry := block.NewDefaultRegistry()
	for tag, names := range cfg.Materials.Tags {
		if err := registry.DefineTag(tag, names...); err != nil {
			return fmt.Errorf("материалы: тег %s: %w", tag, err)
		}
	}
	signs, err := registry.ResolveSet(cfg.Materials.Sign)
	if err != nil {
		return fmt.Errorf("материалы табличек: %w", err)
	}
	buttons, err := registry.ResolveSet(cfg.Materials.Button)
	if err != nil {
		return fmt.Errorf("материалы кнопок: %w", err)
	}

	minY, maxY := cfg.World.HeightBounds(world.DefaultMinY, world.DefaultMaxY)
	w := world.New(registry, minY, maxY)

	// === МЕТРИКИ ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	gateMetrics := metrics.New("gates", reg)

	// === КАТАЛОГ ===
	cat, report, err := catalog.LoadDir(ctx, cfg.Gates.Dir, registry, cfg.Gates.Workers)
	if err != nil {
		return err
	}
	gateMetrics.RecordCatalogLoad(len(report.Loaded), len(report.Failed), cat.Len())

	// === ХРАНИЛИЩЕ ===
	store, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	// === ШИНА СОБЫТИЙ ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()
	eventbus.Init(bus)

	exporter := eventbus.NewMetricsExporter(bus, reg)
	exporter.Start(5 * time.Second)
	defer exporter.Stop()

	if sub, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️ LoggingListener не запущен: %v", err)
	} else {
		defer sub.Unsubscribe()
	}

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			logging.Warn("⚠️ OpenTelemetry не инициализирован: %v", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}

	// === ВРАТА ===
	builder := portal.NewBuilder(w, cat, portal.Options{
		Matcher:  gate.NewMatcher(signs, buttons),
		AlwaysOn: cfg.Gates.AlwaysOn,
		Store:    store,
		Bus:      bus,
		Metrics:  gateMetrics,
	})

	var anchors []demoAnchor
	if demo {
		anchors = seedDemoWorld(w, cat.All())
	}
	restored, err := builder.Restore(ctx)
	if err != nil {
		return fmt.Errorf("восстановление врат: %w", err)
	}
	logging.Info("♻️ Восстановлено врат: %d", restored)
	buildDemoGates(ctx, builder, anchors)

	// === HTTP ===
	restServer := api.NewRestServer(api.Config{
		Port:      fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		Formats:   cat,
		Gates:     builder,
		Materials: registry,
		Registry:  reg,
	})
	restServer.Start()

	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logging.Info("📈 Prometheus метрики на %s/metrics", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка сервера метрик: %v", err)
		}
	}()

	logging.Info("✅ Все сервисы запущены: форматов %d, врат %d", cat.Len(), builder.Len())
	logging.Info("   ❤️  Health check: http://localhost:%d/health", cfg.Server.GetRESTPort())

	<-ctx.Done()
	logging.Info("📡 Получен сигнал завершения, остановка...")

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := restServer.Shutdown(sctx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := metricsServer.Shutdown(sctx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}
	return nil
}

// openStore открывает хранилище записей врат выбранного типа
func openStore(cfg config.StorageConfig) (portal.Store, func() error, error) {
	switch cfg.Backend {
	case "redis":
		store, err := storage.NewRedisGateStore(storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "memory":
		logging.Warn("⚠️ Записи врат хранятся в памяти и не переживут перезапуск")
		store := portal.NewMemoryStore()
		return store, func() error { return nil }, nil
	default:
		store, err := storage.NewGateStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}

// openBus подключает JetStream, если задан URL, иначе шину в памяти
func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("📭 NATS не настроен, используется шина в памяти")
		return eventbus.NewMemoryBus(1024), nil
	}
	retention := time.Duration(cfg.Retention) * time.Hour
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, retention)
	if err != nil {
		return nil, fmt.Errorf("шина событий: %w", err)
	}
	return bus, nil
}
