package storage_adapter

import (
	"context"

	"github.com/annel0/map-editor/internal/eventbus"
	"github.com/annel0/map-editor/internal/logging"
	"github.com/annel0/map-editor/internal/observability"
	"github.com/annel0/map-editor/internal/world/itemtype"
)

type options struct {
	catalog *itemtype.Catalog
	metrics *observability.Metrics
	bus     eventbus.EventBus
	source  string
	log     *logging.Logger
}

// Option настраивает FileStore и ArchiveStore
type Option func(*options)

// WithCatalog каталог предметов для загрузки; по умолчанию встроенный
func WithCatalog(c *itemtype.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithMetrics учитывать размеры и длительности в метриках
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEventBus шина для событий map.saved и map.archived; по умолчанию глобальная
func WithEventBus(bus eventbus.EventBus) Option {
	return func(o *options) { o.bus = bus }
}

// WithSource имя источника событий
func WithSource(source string) Option {
	return func(o *options) { o.source = source }
}

// WithLogger логгер компонента
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.log = l }
}

func newOptions(opts []Option) options {
	o := options{source: "storage"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.catalog == nil {
		o.catalog = itemtype.Default()
	}
	if o.log == nil {
		o.log = logging.Default()
	}
	return o
}

func (o *options) publish(ctx context.Context, eventType string, payload any) {
	ev, err := eventbus.NewEnvelope(o.source, eventType, payload)
	if err != nil {
		o.log.Warn("storage: событие %s не создано: %v", eventType, err)
		return
	}
	if o.bus != nil {
		err = o.bus.Publish(ctx, ev)
	} else {
		err = eventbus.Publish(ctx, ev)
	}
	if err != nil {
		o.log.Warn("storage: событие %s не опубликовано: %v", eventType, err)
	}
}
