package storage

import (
	"context"
	"fmt"

	"github.com/annel0/map-editor/internal/config"
	"github.com/annel0/map-editor/internal/logging"
	si "github.com/annel0/map-editor/internal/storage_interface"
)

// Open открывает архив ревизий по storage.backend
func Open(ctx context.Context, cfg config.StorageConfig) (si.MapArchive, error) {
	backend := cfg.GetBackend()

	var (
		archive si.MapArchive
		err     error
	)
	switch backend {
	case "memory":
		archive, err = NewMemoryArchive(cfg.Compression)
	case "badger":
		archive, err = NewBadgerArchive(cfg.Path, cfg.Compression)
	case "redis":
		archive, err = NewRedisArchive(ctx, &RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: "mapeditor:",
			Compress:  cfg.Compression,
		})
	case "maria":
		archive, err = NewMariaArchive(ctx, cfg.MariaDSN, cfg.Compression)
	case "mongo":
		archive, err = NewMongoArchive(ctx, MongoConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Compress: cfg.Compression,
		})
	default:
		return nil, fmt.Errorf("неизвестный бэкенд архива %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("архив %s: %w", backend, err)
	}

	logging.Info("🗄️ Архив ревизий: %s", backend)
	return archive, nil
}
