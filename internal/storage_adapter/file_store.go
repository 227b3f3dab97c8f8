package storage_adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/annel0/map-editor/internal/eventbus"
	"github.com/annel0/map-editor/internal/observability"
	"github.com/annel0/map-editor/internal/otbm"
	"github.com/annel0/map-editor/internal/world"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BackupSuffix суффикс резервной копии предыдущей версии файла
const BackupSuffix = ".bak"

// FileStore загружает и сохраняет .otbm файлы.
// Сохранение атомарно: временный файл + rename, при ошибке исходный файл не меняется.
type FileStore struct {
	options
	backup bool
}

// NewFileStore создаёт файловое хранилище; backup включает .bak копию
func NewFileStore(backup bool, opts ...Option) *FileStore {
	return &FileStore{options: newOptions(opts), backup: backup}
}

type savedPayload struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
	Tiles int    `json:"tiles"`
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Load читает и декодирует файл карты
func (s *FileStore) Load(ctx context.Context, path string) (m *world.Map, err error) {
	_, span := observability.Tracer().Start(ctx, "FileStore.Load",
		trace.WithAttributes(attribute.String("otbm.path", path)))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение %s: %w", path, err)
	}

	m, err = otbm.Unmarshal(data, s.catalog)
	if err != nil {
		return nil, fmt.Errorf("загрузка %s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	tiles := m.TileCount()
	span.SetAttributes(attribute.Int("otbm.bytes", len(data)), attribute.Int("otbm.tiles", tiles))
	s.metrics.ObserveLoad(time.Since(start), len(data), tiles)
	s.log.Info("📂 Загружена карта %s: %dx%d, %d тайлов", path, m.Width(), m.Height(), tiles)
	return m, nil
}

// Save кодирует карту и атомарно заменяет файл path.
// Возвращает число записанных байт.
func (s *FileStore) Save(ctx context.Context, path string, m *world.Map) (n int, err error) {
	ctx, span := observability.Tracer().Start(ctx, "FileStore.Save",
		trace.WithAttributes(attribute.String("otbm.path", path)))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	// Кодирование целиком в памяти: ошибка кодека не трогает диск
	data, err := otbm.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("сохранение %s: %w", path, err)
	}

	if err := s.writeAtomic(path, data); err != nil {
		return 0, err
	}

	tiles := m.TileCount()
	span.SetAttributes(attribute.Int("otbm.bytes", len(data)), attribute.Int("otbm.tiles", tiles))
	s.metrics.ObserveSave(time.Since(start), len(data), tiles)
	s.log.Info("💾 Сохранена карта %s: %d байт, %d тайлов", path, len(data), tiles)
	s.publish(ctx, eventbus.TypeMapSaved, savedPayload{Path: path, Bytes: len(data), Tiles: tiles})
	return len(data), nil
}

func (s *FileStore) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("каталог %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("временный файл: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("запись %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("закрытие %s: %w", tmpName, err)
	}

	backup := ""
	if s.backup {
		if _, err := os.Stat(path); err == nil {
			backup = path + BackupSuffix
			if err := os.Rename(path, backup); err != nil {
				cleanup()
				return fmt.Errorf("резервная копия %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			cleanup()
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		if backup != "" {
			_ = os.Rename(backup, path)
		}
		return fmt.Errorf("замена %s: %w", path, err)
	}
	return nil
}
