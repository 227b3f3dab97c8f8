package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	si "github.com/annel0/map-editor/internal/storage_interface"
	"github.com/dgraph-io/badger/v3"
)

// Ключи BadgerDB:
//
//	rev:<id>                 JSON описания ревизии
//	blob:<id>                содержимое (zstd при сжатии)
//	name:<name>\x00<seq BE>  индекс ревизий документа -> id
var (
	revPrefix  = []byte("rev:")
	blobPrefix = []byte("blob:")
	namePrefix = []byte("name:")
	seqKey     = []byte("seq:revision")
)

// BadgerArchive хранит ревизии карт во встроенной BadgerDB
type BadgerArchive struct {
	db     *badger.DB
	seq    *badger.Sequence
	codec  *blobCodec
	mutex  sync.RWMutex
	closed bool
}

// NewBadgerArchive открывает архив в каталоге path.
// Пустой path открывает BadgerDB в памяти.
func NewBadgerArchive(path string, compress bool) (*BadgerArchive, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог архива %s: %w", path, err)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	seq, err := db.GetSequence(seqKey, 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось получить счётчик ревизий: %w", err)
	}

	codec, err := newBlobCodec(compress)
	if err != nil {
		seq.Release()
		db.Close()
		return nil, err
	}

	return &BadgerArchive{db: db, seq: seq, codec: codec}, nil
}

func revKey(id string) []byte  { return append(append([]byte{}, revPrefix...), id...) }
func blobKey(id string) []byte { return append(append([]byte{}, blobPrefix...), id...) }

func nameIndexPrefix(name string) []byte {
	key := append(append([]byte{}, namePrefix...), name...)
	return append(key, 0)
}

func nameIndexKey(name string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nameIndexPrefix(name), seq)
}

func (a *BadgerArchive) Put(ctx context.Context, name string, data []byte, meta map[string]string) (si.Revision, error) {
	if err := ctx.Err(); err != nil {
		return si.Revision{}, err
	}
	if err := validName(name); err != nil {
		return si.Revision{}, err
	}

	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.closed {
		return si.Revision{}, si.ErrClosed
	}

	n, err := a.seq.Next()
	if err != nil {
		return si.Revision{}, fmt.Errorf("счётчик ревизий: %w", err)
	}

	rev, stored := a.codec.pack(name, data, meta)
	rev.Seq = n + 1

	record, err := json.Marshal(rev)
	if err != nil {
		return si.Revision{}, fmt.Errorf("ошибка сериализации ревизии: %w", err)
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(revKey(rev.ID), record); err != nil {
			return err
		}
		if err := txn.Set(blobKey(rev.ID), stored); err != nil {
			return err
		}
		return txn.Set(nameIndexKey(name, rev.Seq), []byte(rev.ID))
	})
	if err != nil {
		return si.Revision{}, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return rev, nil
}

func (a *BadgerArchive) Get(ctx context.Context, id string) (si.Revision, []byte, error) {
	if err := ctx.Err(); err != nil {
		return si.Revision{}, nil, err
	}

	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.closed {
		return si.Revision{}, nil, si.ErrClosed
	}

	var (
		rev    si.Revision
		stored []byte
	)
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(revKey(id))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rev)
		}); err != nil {
			return err
		}

		item, err = txn.Get(blobKey(id))
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return si.Revision{}, nil, si.ErrNotFound
	}
	if err != nil {
		return si.Revision{}, nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	data, err := a.codec.unpack(rev, stored)
	if err != nil {
		return si.Revision{}, nil, err
	}
	return rev, data, nil
}

func (a *BadgerArchive) Latest(ctx context.Context, name string) (si.Revision, []byte, error) {
	if err := ctx.Err(); err != nil {
		return si.Revision{}, nil, err
	}

	a.mutex.RLock()
	if a.closed {
		a.mutex.RUnlock()
		return si.Revision{}, nil, si.ErrClosed
	}

	prefix := nameIndexPrefix(name)
	var id string
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Обратный обход начинается с ключа не меньше любого seq документа
		it.Seek(append(append([]byte{}, prefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF))
		if !it.ValidForPrefix(prefix) {
			return badger.ErrKeyNotFound
		}
		val, err := it.Item().ValueCopy(nil)
		id = string(val)
		return err
	})
	a.mutex.RUnlock()

	if errors.Is(err, badger.ErrKeyNotFound) {
		return si.Revision{}, nil, si.ErrNotFound
	}
	if err != nil {
		return si.Revision{}, nil, fmt.Errorf("ошибка чтения индекса BadgerDB: %w", err)
	}
	return a.Get(ctx, id)
}

func (a *BadgerArchive) List(ctx context.Context, name string) ([]si.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.closed {
		return nil, si.ErrClosed
	}

	prefix := nameIndexPrefix(name)
	var out []si.Revision
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(revKey(string(id)))
			if err != nil {
				return err
			}
			var rev si.Revision
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rev)
			}); err != nil {
				return err
			}
			out = append(out, rev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения индекса BadgerDB: %w", err)
	}

	// Индекс упорядочен по возрастанию seq
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (a *BadgerArchive) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.closed {
		return si.ErrClosed
	}

	err := a.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(revKey(id))
		if err != nil {
			return err
		}
		var rev si.Revision
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rev)
		}); err != nil {
			return err
		}

		for _, key := range [][]byte{revKey(id), blobKey(id), nameIndexKey(rev.Name, rev.Seq)} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return si.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// Close закрывает хранилище данных
func (a *BadgerArchive) Close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.codec.close()

	return errors.Join(a.seq.Release(), a.db.Close())
}
