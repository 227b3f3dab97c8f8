// Package editor предоставляет операции редактирования карты поверх истории изменений.
package editor

import (
	"context"
	"errors"
	"iter"
	"slices"

	"github.com/annel0/map-editor/internal/eventbus"
	"github.com/annel0/map-editor/internal/history"
	"github.com/annel0/map-editor/internal/logging"
	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world"
	"github.com/annel0/map-editor/internal/world/itemtype"
)

// MapEditor редактор одного документа: запросы, мутации, выделение и история.
// Не потокобезопасен: все вызовы из одного логического потока.
type MapEditor struct {
	m         *world.Map
	history   *history.History
	catalog   *itemtype.Catalog
	selection map[vec.Position]struct{}
	bus       eventbus.EventBus
	source    string
	log       *logging.Logger
}

// Option настраивает редактор
type Option func(*MapEditor)

// WithCatalog задаёт каталог типов предметов
func WithCatalog(c *itemtype.Catalog) Option {
	return func(e *MapEditor) { e.catalog = c }
}

// WithEventBus задаёт шину событий; без неё используется глобальная
func WithEventBus(bus eventbus.EventBus) Option {
	return func(e *MapEditor) { e.bus = bus }
}

// WithSource задаёт имя источника событий (обычно имя файла)
func WithSource(source string) Option {
	return func(e *MapEditor) { e.source = source }
}

// WithLogger задаёт логгер
func WithLogger(l *logging.Logger) Option {
	return func(e *MapEditor) { e.log = l }
}

// New создаёт редактор документа m
func New(m *world.Map, opts ...Option) *MapEditor {
	e := &MapEditor{
		catalog: itemtype.Default(),
		source:  "mapeditor",
		log:     logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.attach(m)
	return e
}

func (e *MapEditor) attach(m *world.Map) {
	e.m = m
	e.selection = make(map[vec.Position]struct{})
	e.history = history.New(m)
	e.history.Subscribe(e.onHistory)

	for tile := range m.Tiles() {
		if tile.HasSelection() {
			e.selection[tile.Position()] = struct{}{}
		}
	}
}

// Map текущий документ
func (e *MapEditor) Map() *world.Map { return e.m }

// History история документа
func (e *MapEditor) History() *history.History { return e.history }

// Catalog каталог типов предметов
func (e *MapEditor) Catalog() *itemtype.Catalog { return e.catalog }

// ReplaceMap заменяет документ (например, после загрузки).
// История и выделение сбрасываются, прежний документ освобождается.
func (e *MapEditor) ReplaceMap(m *world.Map) {
	old := e.m
	e.history.Clear()
	e.attach(m)
	if old != nil && old != m {
		old.Release()
	}
	e.publish(eventbus.TypeMapReplaced, mapReplacedPayload{
		Width:  m.Width(),
		Height: m.Height(),
		Tiles:  m.TileCount(),
	})
}

//>>>> Запросы

// GetTile возвращает тайл позиции или nil
func (e *MapEditor) GetTile(pos vec.Position) *world.Tile {
	return e.m.Get(pos)
}

// Region перечисляет созданные слоты прямоугольника from..to
func (e *MapEditor) Region(from, to vec.Position) iter.Seq[*world.TileLocation] {
	return e.m.Region(from, to)
}

// IsEmpty true если в позиции нет предметов
func (e *MapEditor) IsEmpty(pos vec.Position) bool {
	return e.m.IsEmpty(pos)
}

// MapBounds границы непустых тайлов карты
func (e *MapEditor) MapBounds() (vec.Position, vec.Position, bool) {
	return e.m.Bounds()
}

//>>>> Управление историей

// StartGroup открывает группу действий
func (e *MapEditor) StartGroup(kind history.GroupKind) error {
	return e.history.StartGroup(kind)
}

// EndGroup закрывает группу действий
func (e *MapEditor) EndGroup(kind history.GroupKind) error {
	return e.history.EndGroup(kind)
}

// Commit применяет действие
func (e *MapEditor) Commit(a history.Action) error {
	return e.history.Commit(a)
}

// Undo отменяет последнюю группу
func (e *MapEditor) Undo() error {
	return e.history.Undo()
}

// Redo повторяет последнюю отменённую группу
func (e *MapEditor) Redo() error {
	return e.history.Redo()
}

// Update выполняет f внутри группы kind. Группа закрывается и при ошибке f.
func (e *MapEditor) Update(kind history.GroupKind, f func() error) error {
	if err := e.history.StartGroup(kind); err != nil {
		return err
	}
	err := f()
	return errors.Join(err, e.history.EndGroup(kind))
}

// group выполняет fn в группе kind, либо в уже открытой внешней группе
func (e *MapEditor) group(kind history.GroupKind, fn func() error) error {
	if e.history.State() == history.InGroup {
		return fn()
	}
	return e.Update(kind, fn)
}

//>>>> Выделение

// Selection позиции тайлов, на которых что-то выделено, в порядке этаж, строка, столбец
func (e *MapEditor) Selection() []vec.Position {
	out := make([]vec.Position, 0, len(e.selection))
	for pos := range e.selection {
		out = append(out, pos)
	}
	slices.SortFunc(out, func(a, b vec.Position) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
	return out
}

// HasSelection есть ли выделение
func (e *MapEditor) HasSelection() bool { return len(e.selection) > 0 }

// onHistory синхронизирует набор выделенных позиций и публикует событие
func (e *MapEditor) onHistory(ev history.Event) {
	for _, pos := range ev.Positions {
		if tile := e.m.Get(pos); tile != nil && tile.HasSelection() {
			e.selection[pos] = struct{}{}
		} else {
			delete(e.selection, pos)
		}
	}

	var eventType string
	switch ev.Kind {
	case history.EventCommit:
		eventType = eventbus.TypeHistoryCommit
	case history.EventUndo:
		eventType = eventbus.TypeHistoryUndo
	default:
		eventType = eventbus.TypeHistoryRedo
	}
	e.publish(eventType, historyPayload{Group: ev.Group.String(), Positions: ev.Positions})
}

type historyPayload struct {
	Group     string         `json:"group"`
	Positions []vec.Position `json:"positions"`
}

type mapReplacedPayload struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Tiles  int `json:"tiles"`
}

func (e *MapEditor) publish(eventType string, payload any) {
	ev, err := eventbus.NewEnvelope(e.source, eventType, payload)
	if err != nil {
		e.log.Warn("editor: событие %s не создано: %v", eventType, err)
		return
	}

	if e.bus != nil {
		err = e.bus.Publish(context.Background(), ev)
	} else {
		err = eventbus.Publish(context.Background(), ev)
	}
	if err != nil {
		e.log.Warn("editor: событие %s не опубликовано: %v", eventType, err)
	}
}
