package storage

import (
	"context"
	"sort"
	"sync"

	si "github.com/annel0/map-editor/internal/storage_interface"
)

// MemoryArchive реализует MapArchive в памяти.
// Используется для CI и локальной работы без БД.
// ВНИМАНИЕ: ревизии теряются при завершении процесса!
type MemoryArchive struct {
	mu     sync.RWMutex
	codec  *blobCodec
	seq    uint64
	revs   map[string]si.Revision
	blobs  map[string][]byte
	closed bool
}

// NewMemoryArchive создаёт архив в памяти
func NewMemoryArchive(compress bool) (*MemoryArchive, error) {
	codec, err := newBlobCodec(compress)
	if err != nil {
		return nil, err
	}
	return &MemoryArchive{
		codec: codec,
		revs:  make(map[string]si.Revision),
		blobs: make(map[string][]byte),
	}, nil
}

func (a *MemoryArchive) Put(ctx context.Context, name string, data []byte, meta map[string]string) (si.Revision, error) {
	if err := ctx.Err(); err != nil {
		return si.Revision{}, err
	}
	if err := validName(name); err != nil {
		return si.Revision{}, err
	}
	rev, stored := a.codec.pack(name, data, meta)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return si.Revision{}, si.ErrClosed
	}
	a.seq++
	rev.Seq = a.seq
	a.revs[rev.ID] = rev
	a.blobs[rev.ID] = stored
	return rev, nil
}

func (a *MemoryArchive) Get(ctx context.Context, id string) (si.Revision, []byte, error) {
	if err := ctx.Err(); err != nil {
		return si.Revision{}, nil, err
	}
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return si.Revision{}, nil, si.ErrClosed
	}
	rev, ok := a.revs[id]
	stored := a.blobs[id]
	a.mu.RUnlock()
	if !ok {
		return si.Revision{}, nil, si.ErrNotFound
	}

	data, err := a.codec.unpack(rev, stored)
	if err != nil {
		return si.Revision{}, nil, err
	}
	return rev, data, nil
}

func (a *MemoryArchive) Latest(ctx context.Context, name string) (si.Revision, []byte, error) {
	revs, err := a.List(ctx, name)
	if err != nil {
		return si.Revision{}, nil, err
	}
	if len(revs) == 0 {
		return si.Revision{}, nil, si.ErrNotFound
	}
	return a.Get(ctx, revs[0].ID)
}

func (a *MemoryArchive) List(ctx context.Context, name string) ([]si.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, si.ErrClosed
	}

	var out []si.Revision
	for _, rev := range a.revs {
		if rev.Name == name {
			out = append(out, rev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out, nil
}

func (a *MemoryArchive) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return si.ErrClosed
	}
	if _, ok := a.revs[id]; !ok {
		return si.ErrNotFound
	}
	delete(a.revs, id)
	delete(a.blobs, id)
	return nil
}

// Count количество ревизий во всех документах
func (a *MemoryArchive) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.revs)
}

func (a *MemoryArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.codec.close()
	return nil
}
