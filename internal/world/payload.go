package world

import (
	"errors"

	"github.com/annel0/map-editor/internal/vec"
)

var (
	// ErrContainerFull контейнер заполнен до вместимости
	ErrContainerFull = errors.New("контейнер заполнен")
	// ErrIndexOutOfRange индекс за пределами списка предметов
	ErrIndexOutOfRange = errors.New("индекс вне диапазона")
	// ErrNotContainer предмет не является контейнером
	ErrNotContainer = errors.New("предмет не является контейнером")
	// ErrContainerCycle контейнер вкладывается сам в себя или в своего потомка
	ErrContainerCycle = errors.New("контейнер нельзя вложить в себя")
)

// Payload дополнительные данные экземпляра предмета.
// Набор вариантов закрыт: Container, Teleport, HouseDoor, Depot.
type Payload interface {
	clonePayload() Payload
	equalPayload(other Payload) bool
}

// Teleport хранит точку назначения телепорта
type Teleport struct {
	Destination vec.Position
}

func (t *Teleport) clonePayload() Payload { c := *t; return &c }

func (t *Teleport) equalPayload(other Payload) bool {
	o, ok := other.(*Teleport)
	return ok && *o == *t
}

// HouseDoor хранит номер двери дома
type HouseDoor struct {
	DoorID uint8
}

func (d *HouseDoor) clonePayload() Payload { c := *d; return &c }

func (d *HouseDoor) equalPayload(other Payload) bool {
	o, ok := other.(*HouseDoor)
	return ok && *o == *d
}

// Depot хранит номер депо
type Depot struct {
	DepotID uint16
}

func (d *Depot) clonePayload() Payload { c := *d; return &c }

func (d *Depot) equalPayload(other Payload) bool {
	o, ok := other.(*Depot)
	return ok && *o == *d
}

// ParentKind вид логического родителя контейнера
type ParentKind uint8

const (
	ParentNone ParentKind = iota
	ParentTile
	ParentContainer
)

// ParentRef невладеющая ссылка на родителя контейнера.
// Разрешается только через документ (Map.ResolveParent), никогда напрямую.
type ParentRef struct {
	Kind      ParentKind
	Position  vec.Position // позиция тайла, на котором лежит верхний контейнер
	Container Guid         // guid родительского контейнера для ParentContainer
}

// Container владеет упорядоченным списком вложенных предметов
type Container struct {
	owner  Guid
	volume int
	items  []*Item
	Parent ParentRef
}

func (c *Container) clonePayload() Payload {
	out := &Container{owner: c.owner, volume: c.volume, Parent: c.Parent}
	if len(c.items) > 0 {
		out.items = make([]*Item, len(c.items))
		for i, item := range c.items {
			out.items[i] = item.Copy()
		}
	}
	return out
}

func (c *Container) equalPayload(other Payload) bool {
	o, ok := other.(*Container)
	if !ok || len(o.items) != len(c.items) {
		return false
	}
	for i := range c.items {
		if !c.items[i].Equal(o.items[i]) {
			return false
		}
	}
	return true
}

// Items возвращает вложенные предметы; срез нельзя изменять
func (c *Container) Items() []*Item { return c.items }

// Len количество вложенных предметов
func (c *Container) Len() int { return len(c.items) }

// Volume вместимость контейнера (0: без ограничения)
func (c *Container) Volume() int { return c.volume }

// Full проверяет, заполнен ли контейнер
func (c *Container) Full() bool {
	return c.volume > 0 && len(c.items) >= c.volume
}

// At возвращает предмет по индексу
func (c *Container) At(index int) (*Item, bool) {
	if index < 0 || index >= len(c.items) {
		return nil, false
	}
	return c.items[index], true
}

// Insert вставляет предмет на позицию index (-1: в конец)
func (c *Container) Insert(item *Item, index int) error {
	if holds(item, c) {
		return ErrContainerCycle
	}
	if c.Full() {
		return ErrContainerFull
	}
	if index < 0 || index > len(c.items) {
		index = len(c.items)
	}

	c.items = append(c.items, nil)
	copy(c.items[index+1:], c.items[index:])
	c.items[index] = item

	item.attach(ParentRef{Kind: ParentContainer, Position: c.Parent.Position, Container: c.owner})
	return nil
}

// Remove извлекает предмет, владение переходит вызывающему
func (c *Container) Remove(index int) (*Item, error) {
	if index < 0 || index >= len(c.items) {
		return nil, ErrIndexOutOfRange
	}
	item := c.items[index]
	c.items = append(c.items[:index], c.items[index+1:]...)
	item.attach(ParentRef{})
	return item, nil
}

// MoveTo перемещает предмет from в контейнер dst на позицию to
func (c *Container) MoveTo(dst *Container, from, to int) error {
	if from < 0 || from >= len(c.items) {
		return ErrIndexOutOfRange
	}
	if holds(c.items[from], dst) {
		return ErrContainerCycle
	}
	if dst != c && dst.Full() {
		return ErrContainerFull
	}

	item, err := c.Remove(from)
	if err != nil {
		return err
	}
	return dst.Insert(item, to)
}

// holds проверяет, является ли c контейнером item или одного из вложенных в него предметов
func holds(item *Item, c *Container) bool {
	own := item.Container()
	if own == nil {
		return false
	}
	if own == c {
		return true
	}
	for _, child := range own.items {
		if holds(child, c) {
			return true
		}
	}
	return false
}

// setPosition обновляет позицию тайла во всей ветке вложенных контейнеров
func (c *Container) setPosition(pos vec.Position) {
	c.Parent.Position = pos
	for _, item := range c.items {
		if child := item.Container(); child != nil {
			child.setPosition(pos)
		}
	}
}
