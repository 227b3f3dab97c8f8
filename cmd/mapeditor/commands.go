package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/annel0/map-editor/internal/editor"
	"github.com/annel0/map-editor/internal/logging"
	"github.com/annel0/map-editor/internal/otbm"
	"github.com/annel0/map-editor/internal/storage"
	"github.com/annel0/map-editor/internal/storage_adapter"
	"github.com/annel0/map-editor/internal/world"
	"github.com/annel0/map-editor/internal/world/itemtype"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// run выполняет команду
func (a *app) run(ctx context.Context, opts options) error {
	switch opts.Command {
	case "new":
		return a.cmdNew(ctx, opts)
	case "info":
		return a.cmdInfo(ctx, opts)
	case "fill":
		return a.cmdFill(ctx, opts)
	case "generate":
		return a.cmdGenerate(ctx, opts)
	case "convert":
		return a.cmdConvert(ctx, opts)
	case "archive":
		return a.cmdArchive(ctx, opts)
	case "restore":
		return a.cmdRestore(ctx, opts)
	case "revisions":
		return a.cmdRevisions(ctx, opts)
	case "stats":
		return a.cmdStats(ctx, opts)
	default:
		return fmt.Errorf("неизвестная команда %q (доступны: %s)", opts.Command, commands)
	}
}

func (o options) output() string {
	if o.Out != "" {
		return o.Out
	}
	return o.In
}

func (o options) requireIn() error {
	if o.In == "" {
		return errors.New("не задан -in")
	}
	return nil
}

// formatVersion версия OTBM из флага или конфигурации
func (a *app) formatVersion(v int) (world.FormatVersion, error) {
	if v == 0 {
		v = a.cfg.Editor.Version
	}
	if v < 1 || v > 4 {
		return 0, fmt.Errorf("версия OTBM должна быть 1..4, получено %d", v)
	}
	return world.FormatVersion(v - 1), nil
}

func (a *app) newEditor(m *world.Map) *editor.MapEditor {
	return editor.New(m,
		editor.WithCatalog(a.catalog),
		editor.WithEventBus(a.bus),
		editor.WithSource("mapeditor"),
		editor.WithLogger(a.editorLog),
	)
}

func (a *app) save(ctx context.Context, path string, m *world.Map) error {
	n, err := a.files.Save(ctx, path, m)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "💾 %s: %s, %s тайлов\n", path, humanize.Bytes(uint64(n)), humanize.Comma(int64(m.TileCount())))
	return nil
}

func (a *app) cmdNew(ctx context.Context, opts options) error {
	if opts.Out == "" {
		return errors.New("не задан -out")
	}
	version, err := a.formatVersion(opts.Version)
	if err != nil {
		return err
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = a.cfg.Editor.DefaultWidth
	}
	if height <= 0 {
		height = a.cfg.Editor.DefaultHeight
	}

	m := world.NewMap(width, height)
	defer m.Release()
	m.Version.OTBM = version
	m.Version.ItemsMajor, m.Version.ItemsMinor = a.catalog.Versions()
	return a.save(ctx, opts.Out, m)
}

type fileInfo struct {
	path   string
	size   int64
	header otbm.Header
	tiles  int
	towns  int
}

// cmdInfo печатает сводку по файлам, читая их параллельно
func (a *app) cmdInfo(ctx context.Context, opts options) error {
	paths := opts.Args
	if opts.In != "" {
		paths = append([]string{opts.In}, paths...)
	}
	if len(paths) == 0 {
		return errors.New("не заданы файлы: -in или аргументы")
	}

	results := make([]fileInfo, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			header, err := otbm.ReadHeader(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			m, err := a.files.Load(gctx, path)
			if err != nil {
				return err
			}
			defer m.Release()
			results[i] = fileInfo{
				path:   path,
				size:   int64(len(data)),
				header: header,
				tiles:  m.TileCount(),
				towns:  len(m.Towns()),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, info := range results {
		h := info.header
		fmt.Fprintf(a.out, "🗺️ %s (%s)\n", info.path, humanize.Bytes(uint64(info.size)))
		fmt.Fprintf(a.out, "   версия: %s, предметы %d.%d\n", h.Version.OTBM, h.Version.ItemsMajor, h.Version.ItemsMinor)
		fmt.Fprintf(a.out, "   размер: %dx%d, тайлов: %s, городов: %d\n",
			h.Width, h.Height, humanize.Comma(int64(info.tiles)), info.towns)
		if h.Description != "" {
			fmt.Fprintf(a.out, "   описание: %s\n", h.Description)
		}
	}
	return nil
}

func (a *app) cmdFill(ctx context.Context, opts options) error {
	if err := opts.requireIn(); err != nil {
		return err
	}
	id := itemtype.ID(opts.Item)
	if !a.catalog.Valid(id) {
		return fmt.Errorf("предмет %d отсутствует в каталоге", opts.Item)
	}

	m, err := a.files.Load(ctx, opts.In)
	if err != nil {
		return err
	}
	e := a.newEditor(m)
	defer e.Map().Release()

	before := m.TileCount()
	if err := e.FillRegion(opts.From, opts.To, id); err != nil {
		return err
	}
	logging.Info("🖌️ Заполнено %v..%v предметом %d (тайлов %d → %d)", opts.From, opts.To, id, before, m.TileCount())
	return a.save(ctx, opts.output(), m)
}

func (a *app) cmdGenerate(ctx context.Context, opts options) error {
	var (
		m   *world.Map
		err error
	)
	if opts.In != "" {
		if m, err = a.files.Load(ctx, opts.In); err != nil {
			return err
		}
	} else {
		width, height := opts.Width, opts.Height
		if width <= 0 {
			width = a.cfg.Editor.DefaultWidth
		}
		if height <= 0 {
			height = a.cfg.Editor.DefaultHeight
		}
		m = world.NewMap(width, height)
	}
	if opts.output() == "" {
		m.Release()
		return errors.New("не задан -out")
	}

	e := a.newEditor(m)
	defer e.Map().Release()

	gen := editor.NewTerrainGenerator(opts.Seed)
	n, err := e.Generate(gen, opts.From, opts.To)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "🌍 seed=%d, сгенерировано тайлов: %s\n", opts.Seed, humanize.Comma(int64(n)))
	return a.save(ctx, opts.output(), m)
}

func (a *app) cmdConvert(ctx context.Context, opts options) error {
	if err := opts.requireIn(); err != nil {
		return err
	}
	if opts.Version == 0 {
		return errors.New("не задана -version")
	}
	version, err := a.formatVersion(opts.Version)
	if err != nil {
		return err
	}

	m, err := a.files.Load(ctx, opts.In)
	if err != nil {
		return err
	}
	defer m.Release()

	from := m.Version.OTBM
	m.Version.OTBM = version
	logging.Info("🔁 %s: %s → %s", opts.In, from, version)
	return a.save(ctx, opts.output(), m)
}

func (a *app) archiveStore(ctx context.Context) (*storage_adapter.ArchiveStore, func(), error) {
	archive, err := storage.Open(ctx, a.cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	store := storage_adapter.NewArchiveStore(archive,
		storage_adapter.WithCatalog(a.catalog),
		storage_adapter.WithMetrics(a.metrics),
		storage_adapter.WithEventBus(a.bus),
		storage_adapter.WithSource("mapeditor"),
		storage_adapter.WithLogger(a.storeLog),
	)
	return store, func() { _ = archive.Close() }, nil
}

func (o options) documentName(m *world.Map) string {
	if o.Name != "" {
		return o.Name
	}
	return m.Name
}

func (a *app) cmdArchive(ctx context.Context, opts options) error {
	if err := opts.requireIn(); err != nil {
		return err
	}
	m, err := a.files.Load(ctx, opts.In)
	if err != nil {
		return err
	}
	defer m.Release()

	store, closeStore, err := a.archiveStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rev, err := store.Archive(ctx, opts.documentName(m), m, map[string]string{"source": opts.In})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "🗃️ %s #%d %s: %s → %s\n", rev.Name, rev.Seq, rev.ID,
		humanize.Bytes(uint64(rev.Size)), humanize.Bytes(uint64(rev.Stored)))
	return nil
}

func (a *app) cmdRestore(ctx context.Context, opts options) error {
	if opts.Out == "" {
		return errors.New("не задан -out")
	}
	if opts.Name == "" && opts.ID == "" {
		return errors.New("нужен -name или -id")
	}

	store, closeStore, err := a.archiveStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var m *world.Map
	if opts.ID != "" {
		m, _, err = store.RestoreRevision(ctx, opts.ID)
	} else {
		m, _, err = store.Restore(ctx, opts.Name)
	}
	if err != nil {
		return err
	}
	defer m.Release()
	return a.save(ctx, opts.Out, m)
}

func (a *app) cmdRevisions(ctx context.Context, opts options) error {
	if opts.Name == "" {
		return errors.New("не задано -name")
	}
	store, closeStore, err := a.archiveStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	revs, err := store.Revisions(ctx, opts.Name)
	if err != nil {
		return err
	}
	if len(revs) == 0 {
		fmt.Fprintf(a.out, "📭 ревизий документа %q нет\n", opts.Name)
		return nil
	}
	for _, rev := range revs {
		fmt.Fprintf(a.out, "#%-4d %s  %-10s %-10s %s (%s)\n", rev.Seq, rev.ID,
			humanize.Bytes(uint64(rev.Size)), rev.Meta["otbm"], humanize.Time(rev.Created),
			rev.Created.Local().Format(time.DateTime))
	}
	return nil
}

// cmdStats загружает файлы (если заданы) и печатает метрики Prometheus
func (a *app) cmdStats(ctx context.Context, opts options) error {
	if opts.In != "" || len(opts.Args) > 0 {
		if err := a.cmdInfo(ctx, opts); err != nil {
			return err
		}
	}
	return a.metrics.WriteText(a.out)
}
