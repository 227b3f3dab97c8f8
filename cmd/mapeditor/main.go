package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/map-editor/internal/config"
	"github.com/annel0/map-editor/internal/eventbus"
	"github.com/annel0/map-editor/internal/logging"
	"github.com/annel0/map-editor/internal/observability"
	"github.com/annel0/map-editor/internal/storage_adapter"
	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world/itemtype"
)

const commands = "new, info, fill, generate, convert, archive, restore, revisions, stats"

// options параметры командной строки
type options struct {
	Command string
	In      string
	Out     string
	Name    string
	ID      string
	Item    int
	From    vec.Position
	To      vec.Position
	Seed    int64
	Version int
	Width   int
	Height  int
	Args    []string
}

// app окружение команд
type app struct {
	cfg     *config.Config
	catalog *itemtype.Catalog
	metrics *observability.Metrics
	bus     eventbus.EventBus
	files   *storage_adapter.FileStore
	out     io.Writer

	storeLog  *logging.Logger
	editorLog *logging.Logger
}

func main() {
	var (
		configPath = flag.String("config", "", "Путь к YAML конфигурации (или MAPEDITOR_CONFIG)")
		command    = flag.String("cmd", "info", "Команда: "+commands)
		in         = flag.String("in", "", "Входной .otbm файл")
		out        = flag.String("out", "", "Выходной .otbm файл (по умолчанию -in)")
		name       = flag.String("name", "", "Имя документа в архиве")
		id         = flag.String("id", "", "ID ревизии для restore")
		item       = flag.Int("item", int(itemtype.GrassID), "ID предмета для fill")
		from       = flag.String("from", "0,0,7", "Начало прямоугольника x,y,z")
		to         = flag.String("to", "0,0,7", "Конец прямоугольника x,y,z")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Сид генератора")
		version    = flag.Int("version", 0, "Версия OTBM 1..4 (по умолчанию из конфигурации)")
		width      = flag.Int("width", 0, "Ширина новой карты")
		height     = flag.Int("height", 0, "Высота новой карты")
		level      = flag.String("log", "", "Уровень логирования (TRACE..ERROR)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *level != "" {
		cfg.Logging.Level = *level
	}

	if err := logging.InitDefaultLogger("mapeditor", cfg.Logging.Dir, logging.ParseLevel(cfg.Logging.Level)); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	logging.GetLoggerManager().SetDir(cfg.Logging.Dir)
	defer logging.GetLoggerManager().CloseAll()

	opts := options{
		Command: *command,
		In:      *in,
		Out:     *out,
		Name:    *name,
		ID:      *id,
		Item:    *item,
		Seed:    *seed,
		Version: *version,
		Width:   *width,
		Height:  *height,
		Args:    flag.Args(),
	}
	if opts.From, err = parsePosition(*from); err != nil {
		log.Fatalf("❌ -from: %v", err)
	}
	if opts.To, err = parsePosition(*to); err != nil {
		log.Fatalf("❌ -to: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := setup(ctx, cfg, os.Stdout)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer cleanup()

	if err := a.run(ctx, opts); err != nil {
		logging.Error("❌ %s: %v", opts.Command, err)
		cleanup()
		_ = logging.GetLoggerManager().CloseAll()
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

// setup поднимает каталог, телеметрию, метрики и шину событий
func setup(ctx context.Context, cfg *config.Config, out io.Writer) (*app, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}

	catalog := itemtype.Default()
	if path := cfg.Editor.CatalogPath(); path != "" {
		c, err := itemtype.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		catalog = c
		logging.Info("📦 Каталог предметов %s: %d типов", path, c.Len())
	}

	shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return nil, nil, fmt.Errorf("телеметрия: %w", err)
	}
	closers = append(closers, func() { _ = shutdown(context.Background()) })

	metrics, err := observability.NewMetrics()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("метрики: %w", err)
	}

	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		js, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream,
			time.Duration(cfg.EventBus.Retention)*time.Hour)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("шина событий: %w", err)
		}
		closers = append(closers, func() { _ = js.Close() })
		bus = js
	} else {
		bus = eventbus.NewMemoryBus()
	}
	eventbus.Init(bus)

	if sub, err := eventbus.StartLoggingListener(bus, logging.Default()); err == nil {
		closers = append(closers, sub.Unsubscribe)
	}
	if sub, err := metrics.Attach(bus); err == nil {
		closers = append(closers, sub.Unsubscribe)
	} else {
		logging.Warn("метрики шины не подключены: %v", err)
	}

	if port := cfg.Metrics.GetMetricsPort(); port > 0 {
		go func() {
			if err := metrics.Serve(ctx, port); err != nil {
				logging.Error("❌ /metrics: %v", err)
			}
		}()
	}

	a := &app{
		cfg:     cfg,
		catalog: catalog,
		metrics: metrics,
		bus:     bus,
		out:     out,

		storeLog:  componentLogger("storage", cfg.Logging.Level),
		editorLog: componentLogger("editor", cfg.Logging.Level),
	}
	a.files = storage_adapter.NewFileStore(cfg.Editor.Backup,
		storage_adapter.WithCatalog(catalog),
		storage_adapter.WithLogger(a.storeLog),
		storage_adapter.WithMetrics(metrics),
		storage_adapter.WithEventBus(bus),
		storage_adapter.WithSource("mapeditor"),
	)
	return a, cleanup, nil
}

// componentLogger логгер компонента с уровнем консоли из конфигурации
func componentLogger(component, level string) *logging.Logger {
	l := logging.GetComponentLogger(component)
	l.SetLevels(logging.ParseLevel(level), logging.TRACE)
	return l
}

// parsePosition разбирает "x,y,z"
func parsePosition(s string) (vec.Position, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return vec.Position{}, fmt.Errorf("ожидается x,y,z, получено %q", s)
	}
	var xyz [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return vec.Position{}, fmt.Errorf("координата %q: %w", p, err)
		}
		xyz[i] = v
	}
	return vec.NewPosition(xyz[0], xyz[1], xyz[2]), nil
}
