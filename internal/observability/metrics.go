package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/annel0/map-editor/internal/eventbus"
	"github.com/annel0/map-editor/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"github.com/shirou/gopsutil/v3/process"
)

// Metrics метрики редактора на собственном реестре.
// Все методы допускают nil-получатель.
type Metrics struct {
	Registry *prometheus.Registry

	commits   prometheus.Counter
	undos     prometheus.Counter
	redos     prometheus.Counter
	replaced  prometheus.Counter
	tiles     prometheus.Gauge
	otbmBytes *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	archive   *prometheus.CounterVec

	bus *eventbus.MetricsExporter
}

// NewMetrics создаёт реестр и регистрирует в нём все метрики
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mapeditor",
			Name:      "history_commits_total",
			Help:      "Зафиксированные действия истории.",
		}),
		undos: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mapeditor",
			Name:      "history_undo_total",
			Help:      "Отменённые группы.",
		}),
		redos: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mapeditor",
			Name:      "history_redo_total",
			Help:      "Повторённые группы.",
		}),
		replaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mapeditor",
			Name:      "map_replaced_total",
			Help:      "Замены документа в редакторе.",
		}),
		tiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mapeditor",
			Name:      "map_tiles",
			Help:      "Тайлов в последнем загруженном или сохранённом документе.",
		}),
		otbmBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapeditor",
			Name:      "otbm_bytes_total",
			Help:      "Байт OTBM прочитано и записано.",
		}, []string{"direction"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mapeditor",
			Name:      "otbm_duration_seconds",
			Help:      "Длительность загрузки и сохранения карт.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"op"}),
		archive: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapeditor",
			Name:      "archive_operations_total",
			Help:      "Операции с архивом ревизий.",
		}, []string{"op", "result"}),
	}

	rss := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "mapeditor",
		Name:      "process_rss_bytes",
		Help:      "Резидентная память процесса (gopsutil).",
	}, processRSS)

	for _, c := range []prometheus.Collector{
		m.commits, m.undos, m.redos, m.replaced, m.tiles,
		m.otbmBytes, m.duration, m.archive, rss,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func processRSS() float64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return 0
	}
	return float64(info.RSS)
}

// ObserveLoad учитывает прочитанный документ
func (m *Metrics) ObserveLoad(d time.Duration, bytes, tiles int) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues("load").Observe(d.Seconds())
	m.otbmBytes.WithLabelValues("read").Add(float64(bytes))
	m.tiles.Set(float64(tiles))
}

// ObserveSave учитывает записанный документ
func (m *Metrics) ObserveSave(d time.Duration, bytes, tiles int) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues("save").Observe(d.Seconds())
	m.otbmBytes.WithLabelValues("write").Add(float64(bytes))
	m.tiles.Set(float64(tiles))
}

// ObserveArchive учитывает операцию с архивом
func (m *Metrics) ObserveArchive(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.archive.WithLabelValues(op, result).Inc()
}

// Attach подписывает метрики на события шины и экспортирует её статистику
func (m *Metrics) Attach(bus eventbus.EventBus) (eventbus.Subscription, error) {
	exporter, err := eventbus.NewMetricsExporter(bus, m.Registry)
	if err != nil {
		return nil, err
	}
	m.bus = exporter

	filter := eventbus.Filter{Types: []string{
		eventbus.TypeHistoryCommit,
		eventbus.TypeHistoryUndo,
		eventbus.TypeHistoryRedo,
		eventbus.TypeMapReplaced,
	}}
	return bus.Subscribe(context.Background(), filter, func(_ context.Context, ev *eventbus.Envelope) {
		switch ev.EventType {
		case eventbus.TypeHistoryCommit:
			m.commits.Inc()
		case eventbus.TypeHistoryUndo:
			m.undos.Inc()
		case eventbus.TypeHistoryRedo:
			m.redos.Inc()
		case eventbus.TypeMapReplaced:
			m.replaced.Inc()
		}
	})
}

// WriteText выводит текущее состояние реестра в текстовом формате Prometheus
func (m *Metrics) WriteText(w io.Writer) error {
	if m.bus != nil {
		m.bus.Update()
	}
	families, err := m.Registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// Serve поднимает HTTP /metrics до отмены ctx
func (m *Metrics) Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	handler := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if m.bus != nil {
			m.bus.Update()
		}
		handler.ServeHTTP(w, r)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info("📊 Prometheus метрики на :%d/metrics", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
