package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	si "github.com/annel0/map-editor/internal/storage_interface"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс для ключей
	Compress  bool
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "mapeditor:",
		Compress:  true,
	}
}

// RedisArchive хранит ревизии карт в Redis:
// <prefix>rev:<id> JSON, <prefix>blob:<id> содержимое, <prefix>name:<name> ZSET seq -> id
type RedisArchive struct {
	client *redis.Client
	prefix string
	codec  *blobCodec
}

// NewRedisArchive подключается к Redis и проверяет соединение
func NewRedisArchive(ctx context.Context, config *RedisConfig) (*RedisArchive, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	codec, err := newBlobCodec(config.Compress)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &RedisArchive{client: client, prefix: config.KeyPrefix, codec: codec}, nil
}

func (r *RedisArchive) revKey(id string) string    { return r.prefix + "rev:" + id }
func (r *RedisArchive) blobKey(id string) string   { return r.prefix + "blob:" + id }
func (r *RedisArchive) nameKey(name string) string { return r.prefix + "name:" + name }
func (r *RedisArchive) seqKey() string             { return r.prefix + "seq" }

func (r *RedisArchive) Put(ctx context.Context, name string, data []byte, meta map[string]string) (si.Revision, error) {
	if err := validName(name); err != nil {
		return si.Revision{}, err
	}

	seq, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return si.Revision{}, fmt.Errorf("счётчик ревизий: %w", err)
	}

	rev, stored := r.codec.pack(name, data, meta)
	rev.Seq = uint64(seq)

	record, err := json.Marshal(rev)
	if err != nil {
		return si.Revision{}, fmt.Errorf("ошибка сериализации ревизии: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.revKey(rev.ID), record, 0)
		pipe.Set(ctx, r.blobKey(rev.ID), stored, 0)
		pipe.ZAdd(ctx, r.nameKey(name), &redis.Z{Score: float64(rev.Seq), Member: rev.ID})
		return nil
	})
	if err != nil {
		return si.Revision{}, fmt.Errorf("ошибка сохранения в Redis: %w", err)
	}
	return rev, nil
}

func (r *RedisArchive) loadRevision(ctx context.Context, id string) (si.Revision, error) {
	raw, err := r.client.Get(ctx, r.revKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return si.Revision{}, si.ErrNotFound
	}
	if err != nil {
		return si.Revision{}, fmt.Errorf("ошибка чтения из Redis: %w", err)
	}
	var rev si.Revision
	if err := json.Unmarshal(raw, &rev); err != nil {
		return si.Revision{}, fmt.Errorf("ошибка десериализации ревизии %s: %w", id, err)
	}
	return rev, nil
}

func (r *RedisArchive) Get(ctx context.Context, id string) (si.Revision, []byte, error) {
	rev, err := r.loadRevision(ctx, id)
	if err != nil {
		return si.Revision{}, nil, err
	}

	stored, err := r.client.Get(ctx, r.blobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return si.Revision{}, nil, fmt.Errorf("ревизия %s без содержимого: %w", id, si.ErrCorrupted)
	}
	if err != nil {
		return si.Revision{}, nil, fmt.Errorf("ошибка чтения из Redis: %w", err)
	}

	data, err := r.codec.unpack(rev, stored)
	if err != nil {
		return si.Revision{}, nil, err
	}
	return rev, data, nil
}

func (r *RedisArchive) Latest(ctx context.Context, name string) (si.Revision, []byte, error) {
	ids, err := r.client.ZRevRange(ctx, r.nameKey(name), 0, 0).Result()
	if err != nil {
		return si.Revision{}, nil, fmt.Errorf("ошибка чтения индекса Redis: %w", err)
	}
	if len(ids) == 0 {
		return si.Revision{}, nil, si.ErrNotFound
	}
	return r.Get(ctx, ids[0])
}

func (r *RedisArchive) List(ctx context.Context, name string) ([]si.Revision, error) {
	ids, err := r.client.ZRevRange(ctx, r.nameKey(name), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения индекса Redis: %w", err)
	}

	out := make([]si.Revision, 0, len(ids))
	for _, id := range ids {
		rev, err := r.loadRevision(ctx, id)
		if errors.Is(err, si.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, nil
}

func (r *RedisArchive) Delete(ctx context.Context, id string) error {
	rev, err := r.loadRevision(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.revKey(id), r.blobKey(id))
		pipe.ZRem(ctx, r.nameKey(rev.Name), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisArchive) Close() error {
	r.codec.close()
	return r.client.Close()
}
