package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
gates:
  dir: /srv/gates
  workers: 4
materials:
  sign: [wall_sign]
  button: [stone_button]
  tags:
    frames: [obsidian, glowstone]
world:
  min_y: 0
  max_y: 255
storage:
  path: /var/lib/gates
eventbus:
  url: nats://localhost:4222
  retention_hours: 24
server:
  rest_port: 9000
telemetry:
  enabled: true
logging:
  level: info
  components:
    portal: debug
    api: warn
`

func TestParseConfig(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "/srv/gates", cfg.Gates.Dir)
	assert.Equal(t, map[string]string{"portal": "debug", "api": "warn"}, cfg.Logging.Components)
	assert.Equal(t, 4, cfg.Gates.Workers)
	assert.Equal(t, []string{"stone_button"}, cfg.Materials.Button)
	assert.Equal(t, []string{"obsidian", "glowstone"}, cfg.Materials.Tags["frames"])
	assert.Equal(t, "nats://localhost:4222", cfg.EventBus.URL)
	assert.Equal(t, DefaultStream, cfg.EventBus.Stream, "значение по умолчанию")
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, DefaultServiceName, cfg.Telemetry.ServiceName)

	minY, maxY := cfg.World.HeightBounds(-64, 319)
	assert.Equal(t, 0, minY)
	assert.Equal(t, 255, maxY)
	assert.Equal(t, 9000, cfg.Server.GetRESTPort())
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultGatesDir, cfg.Gates.Dir)
	assert.Equal(t, DefaultSignMaterials, cfg.Materials.Sign)
	assert.Equal(t, DefaultButtonMaterials, cfg.Materials.Button)

	minY, maxY := cfg.World.HeightBounds(-64, 319)
	assert.Equal(t, -64, minY)
	assert.Equal(t, 319, maxY)
}

func TestValidateRejectsInvertedBounds(t *testing.T) {
	_, err := Parse([]byte("world:\n  min_y: 100\n  max_y: 10\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("gates:\n  workers: -1\n"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	t.Setenv("GATES_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/gates", cfg.Storage.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPortFallback(t *testing.T) {
	t.Setenv("GATES_METRICS_PORT", "3000")
	s := ServerConfig{}
	assert.Equal(t, 3000, s.GetMetricsPort())
	assert.Equal(t, 8088, s.GetRESTPort())

	s.MetricsPort = 4000
	assert.Equal(t, 4000, s.GetMetricsPort())
}

func TestStorageBackend(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultBackend, cfg.Storage.Backend)

	cfg, err := Parse([]byte("storage:\n  backend: redis\n  redis:\n    addr: localhost:6379\n    db: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 2, cfg.Storage.Redis.DB)

	_, err = Parse([]byte("storage:\n  backend: redis\n"))
	assert.Error(t, err, "redis без адреса")

	_, err = Parse([]byte("storage:\n  backend: sqlite\n"))
	assert.Error(t, err)
}
