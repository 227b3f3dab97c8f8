package storage_interface

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound ревизия или документ не найдены
	ErrNotFound = errors.New("ревизия не найдена")
	// ErrCorrupted содержимое ревизии не совпадает с дайджестом
	ErrCorrupted = errors.New("ревизия повреждена")
	// ErrClosed архив уже закрыт
	ErrClosed = errors.New("архив закрыт")
)

// Revision описание сохранённой версии документа карты
type Revision struct {
	ID      string    `json:"id" bson:"_id"`
	Seq     uint64    `json:"seq" bson:"seq"` // монотонный номер внутри архива
	Name    string    `json:"name" bson:"name"`
	Created time.Time `json:"created" bson:"created"`
	// Size размер исходного OTBM, Stored - размер в хранилище
	Size       int               `json:"size" bson:"size"`
	Stored     int               `json:"stored" bson:"stored"`
	Compressed bool              `json:"compressed" bson:"compressed"`
	Digest     string            `json:"digest" bson:"digest"` // blake2b-256, hex
	Meta       map[string]string `json:"meta,omitempty" bson:"meta,omitempty"`
}

// MapArchive хранилище ревизий сохранённых карт.
// List возвращает ревизии от новых к старым.
type MapArchive interface {
	Put(ctx context.Context, name string, data []byte, meta map[string]string) (Revision, error)
	Get(ctx context.Context, id string) (Revision, []byte, error)
	Latest(ctx context.Context, name string) (Revision, []byte, error)
	List(ctx context.Context, name string) ([]Revision, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
