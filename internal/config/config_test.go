package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "нет.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "editor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: badger\n"), 0o644))
	t.Setenv("MAPEDITOR_CONFIG", path)
	t.Setenv("MAPEDITOR_STORAGE", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Storage.GetBackend())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "editor.yaml")
	yaml := `
editor:
  otbm_version: 2
  default_width: 512
logging:
  level: DEBUG
eventbus:
  url: nats://localhost:4222
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Editor.Version)
	assert.Equal(t, 512, cfg.Editor.DefaultWidth)
	assert.Equal(t, 2048, cfg.Editor.DefaultHeight, "незаданные поля берутся из Default")
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "MAPEDITOR", cfg.EventBus.Stream)
	assert.Equal(t, "nats://localhost:4222", cfg.EventBus.URL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"битый yaml", "editor: [\n"},
		{"версия вне диапазона", "editor:\n  otbm_version: 7\n"},
		{"неизвестный бэкенд", "storage:\n  backend: floppy\n"},
		{"карта шире u16", "editor:\n  default_width: 70000\n"},
	}
	t.Setenv("MAPEDITOR_STORAGE", "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("MAPEDITOR_METRICS_PORT", "9100")
	t.Setenv("MAPEDITOR_CATALOG", "/tmp/items.json")

	cfg := Default()
	assert.Equal(t, 9100, cfg.Metrics.GetMetricsPort())
	assert.Equal(t, "/tmp/items.json", cfg.Editor.CatalogPath())

	cfg.Metrics.Port = 2112
	cfg.Editor.Catalog = "items.json"
	assert.Equal(t, 2112, cfg.Metrics.GetMetricsPort(), "значение из конфига приоритетнее env")
	assert.Equal(t, "items.json", cfg.Editor.CatalogPath())

	t.Setenv("MAPEDITOR_METRICS_PORT", "abc")
	cfg.Metrics.Port = 0
	assert.Equal(t, 0, cfg.Metrics.GetMetricsPort())
}
