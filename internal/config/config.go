package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации редактора.
type Config struct {
	Editor    EditorConfig    `yaml:"editor"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type EditorConfig struct {
	// Catalog путь к JSON каталогу предметов; пусто - встроенный каталог
	Catalog       string `yaml:"catalog"`
	DefaultWidth  int    `yaml:"default_width"`
	DefaultHeight int    `yaml:"default_height"`
	// Version версия OTBM для новых карт (1..4)
	Version int  `yaml:"otbm_version"`
	Backup  bool `yaml:"backup"`
}

type StorageConfig struct {
	// Backend memory | badger | redis | maria | mongo
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPassword string `yaml:"redis_password"`
	MariaDSN      string `yaml:"maria_dsn"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	Compression   bool   `yaml:"compression"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			DefaultWidth:  2048,
			DefaultHeight: 2048,
			Version:       4,
			Backup:        true,
		},
		Storage: StorageConfig{
			Backend:       "memory",
			Path:          "data/archive",
			RedisAddr:     "localhost:6379",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "mapeditor",
			Compression:   true,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "mapeditor",
		},
		EventBus: EventBusConfig{
			Stream:    "MAPEDITOR",
			Retention: 24,
		},
	}
}

// CatalogPath возвращает путь к каталогу предметов: config -> env -> встроенный
func (e *EditorConfig) CatalogPath() string {
	if e.Catalog != "" {
		return e.Catalog
	}
	return os.Getenv("MAPEDITOR_CATALOG")
}

// GetMetricsPort возвращает порт /metrics; 0 - endpoint выключен
func (m *MetricsConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(m.Port, "MAPEDITOR_METRICS_PORT", 0)
}

// GetBackend возвращает бэкенд архива с учётом MAPEDITOR_STORAGE
func (s *StorageConfig) GetBackend() string {
	if env := os.Getenv("MAPEDITOR_STORAGE"); env != "" {
		return env
	}
	if s.Backend == "" {
		return "memory"
	}
	return s.Backend
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

// Validate проверяет значения, которые нельзя исправить молча
func (c *Config) Validate() error {
	if c.Editor.Version < 1 || c.Editor.Version > 4 {
		return fmt.Errorf("editor.otbm_version: ожидается 1..4, получено %d", c.Editor.Version)
	}
	if c.Editor.DefaultWidth <= 0 || c.Editor.DefaultHeight <= 0 ||
		c.Editor.DefaultWidth > math.MaxUint16 || c.Editor.DefaultHeight > math.MaxUint16 {
		return fmt.Errorf("editor: недопустимый размер карты %dx%d", c.Editor.DefaultWidth, c.Editor.DefaultHeight)
	}
	switch c.Storage.GetBackend() {
	case "memory", "badger", "redis", "maria", "mongo":
	default:
		return fmt.Errorf("storage.backend: неизвестный бэкенд %q", c.Storage.Backend)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берётся ENV MAPEDITOR_CONFIG; отсутствующий файл даёт Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("MAPEDITOR_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
