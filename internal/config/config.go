package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера врат
type Config struct {
	Gates     GatesConfig     `yaml:"gates"`
	Materials MaterialsConfig `yaml:"materials"`
	World     WorldConfig     `yaml:"world"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GatesConfig каталог форматов врат
type GatesConfig struct {
	Dir      string `yaml:"dir"`
	Workers  int    `yaml:"workers"`
	AlwaysOn bool   `yaml:"always_on"`
}

// MaterialsConfig материалы табличек, кнопок и дополнительные теги
type MaterialsConfig struct {
	Sign   []string            `yaml:"sign"`
	Button []string            `yaml:"button"`
	Tags   map[string][]string `yaml:"tags"`
}

// WorldConfig границы высоты мира
type WorldConfig struct {
	MinY *int `yaml:"min_y"`
	MaxY *int `yaml:"max_y"`
}

// StorageConfig хранилище записей врат: badger (по умолчанию), redis или memory
type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level      string            `yaml:"level"`
	Components map[string]string `yaml:"components"` // компонент -> уровень
}

// Значения по умолчанию
const (
	DefaultGatesDir    = "gates"
	DefaultStoragePath = "data/gates"
	DefaultBackend     = "badger"
	DefaultStream      = "GATES"
	DefaultServiceName = "mmo-gates"
)

var (
	DefaultSignMaterials   = []string{"wall_sign"}
	DefaultButtonMaterials = []string{"stone_button", "wood_button"}
)

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Gates.Dir == "" {
		c.Gates.Dir = DefaultGatesDir
	}
	if len(c.Materials.Sign) == 0 {
		c.Materials.Sign = append([]string(nil), DefaultSignMaterials...)
	}
	if len(c.Materials.Button) == 0 {
		c.Materials.Button = append([]string(nil), DefaultButtonMaterials...)
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if c.EventBus.Stream == "" {
		c.EventBus.Stream = DefaultStream
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.Gates.Workers < 0 {
		return fmt.Errorf("gates.workers must not be negative, got %d", c.Gates.Workers)
	}
	if c.World.MinY != nil && c.World.MaxY != nil && *c.World.MinY > *c.World.MaxY {
		return fmt.Errorf("world.min_y (%d) is above world.max_y (%d)", *c.World.MinY, *c.World.MaxY)
	}
	switch c.Storage.Backend {
	case "badger", "memory":
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.EventBus.Retention < 0 {
		return fmt.Errorf("eventbus.retention_hours must not be negative")
	}
	return nil
}

// HeightBounds возвращает границы высоты с подстановкой значений по умолчанию
func (w WorldConfig) HeightBounds(defMin, defMax int) (int, int) {
	minY, maxY := defMin, defMax
	if w.MinY != nil {
		minY = *w.MinY
	}
	if w.MaxY != nil {
		maxY = *w.MaxY
	}
	return minY, maxY
}

// GetRESTPort возвращает порт отладочного API с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GATES_REST_PORT", 8088)
}

// GetMetricsPort возвращает порт метрик Prometheus с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GATES_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", берёт путь из ENV GATES_CONFIG; если и он пуст,
// возвращает конфигурацию по умолчанию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GATES_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse разбирает YAML и подставляет значения по умолчанию
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
