package storage_adapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/annel0/map-editor/internal/eventbus"
	"github.com/annel0/map-editor/internal/observability"
	"github.com/annel0/map-editor/internal/otbm"
	si "github.com/annel0/map-editor/internal/storage_interface"
	"github.com/annel0/map-editor/internal/world"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ArchiveStore сохраняет карты ревизиями в MapArchive
type ArchiveStore struct {
	options
	archive si.MapArchive
}

// NewArchiveStore оборачивает архив кодеком OTBM
func NewArchiveStore(archive si.MapArchive, opts ...Option) *ArchiveStore {
	return &ArchiveStore{options: newOptions(opts), archive: archive}
}

type archivedPayload struct {
	Name     string `json:"name"`
	Revision string `json:"revision"`
	Seq      uint64 `json:"seq"`
	Size     int    `json:"size"`
	Stored   int    `json:"stored"`
}

// Archive кодирует карту и сохраняет её новой ревизией документа name
func (s *ArchiveStore) Archive(ctx context.Context, name string, m *world.Map, meta map[string]string) (rev si.Revision, err error) {
	ctx, span := observability.Tracer().Start(ctx, "ArchiveStore.Archive",
		trace.WithAttributes(attribute.String("archive.name", name)))
	defer func() {
		s.metrics.ObserveArchive("put", err)
		endSpan(span, err)
	}()

	start := time.Now()
	data, err := otbm.Marshal(m)
	if err != nil {
		return si.Revision{}, fmt.Errorf("архивирование %q: %w", name, err)
	}
	s.metrics.ObserveSave(time.Since(start), len(data), m.TileCount())

	full := map[string]string{
		"width":  strconv.Itoa(m.Width()),
		"height": strconv.Itoa(m.Height()),
		"tiles":  strconv.Itoa(m.TileCount()),
		"otbm":   m.Version.OTBM.String(),
	}
	for k, v := range meta {
		full[k] = v
	}

	rev, err = s.archive.Put(ctx, name, data, full)
	if err != nil {
		return si.Revision{}, fmt.Errorf("архивирование %q: %w", name, err)
	}

	span.SetAttributes(attribute.String("archive.revision", rev.ID), attribute.Int("archive.stored", rev.Stored))
	s.log.Info("🗃️ Ревизия %s документа %q: %d → %d байт", rev.ID, name, rev.Size, rev.Stored)
	s.publish(ctx, eventbus.TypeMapArchived, archivedPayload{
		Name: name, Revision: rev.ID, Seq: rev.Seq, Size: rev.Size, Stored: rev.Stored,
	})
	return rev, nil
}

// Restore загружает последнюю ревизию документа
func (s *ArchiveStore) Restore(ctx context.Context, name string) (*world.Map, si.Revision, error) {
	return s.restore(ctx, "latest", func(ctx context.Context) (si.Revision, []byte, error) {
		return s.archive.Latest(ctx, name)
	})
}

// RestoreRevision загружает конкретную ревизию
func (s *ArchiveStore) RestoreRevision(ctx context.Context, id string) (*world.Map, si.Revision, error) {
	return s.restore(ctx, "get", func(ctx context.Context) (si.Revision, []byte, error) {
		return s.archive.Get(ctx, id)
	})
}

func (s *ArchiveStore) restore(ctx context.Context, op string, fetch func(context.Context) (si.Revision, []byte, error)) (m *world.Map, rev si.Revision, err error) {
	ctx, span := observability.Tracer().Start(ctx, "ArchiveStore.Restore",
		trace.WithAttributes(attribute.String("archive.op", op)))
	defer func() {
		s.metrics.ObserveArchive(op, err)
		endSpan(span, err)
	}()

	rev, data, err := fetch(ctx)
	if err != nil {
		return nil, si.Revision{}, err
	}

	start := time.Now()
	m, err = otbm.Unmarshal(data, s.catalog)
	if err != nil {
		return nil, si.Revision{}, fmt.Errorf("ревизия %s: %w", rev.ID, err)
	}
	m.Name = rev.Name
	s.metrics.ObserveLoad(time.Since(start), len(data), m.TileCount())

	span.SetAttributes(attribute.String("archive.revision", rev.ID))
	return m, rev, nil
}

// Revisions ревизии документа от новых к старым
func (s *ArchiveStore) Revisions(ctx context.Context, name string) ([]si.Revision, error) {
	revs, err := s.archive.List(ctx, name)
	s.metrics.ObserveArchive("list", err)
	return revs, err
}

// Drop удаляет ревизию
func (s *ArchiveStore) Drop(ctx context.Context, id string) error {
	err := s.archive.Delete(ctx, id)
	s.metrics.ObserveArchive("delete", err)
	return err
}
