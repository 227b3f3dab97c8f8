package history

import (
	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world"
)

// Change обратимое изменение документа.
// Набор вариантов закрыт; применение и откат выполняются в apply/revert через switch по типу.
type Change interface {
	isChange()
}

// SetTile устанавливает снимок тайла в его позицию.
// После применения хранит прежний снимок (nil: тайла не было), повторный обмен откатывает изменение.
type SetTile struct {
	pos  vec.Position
	tile *world.Tile
}

// NewSetTile создаёт изменение, устанавливающее снимок tile
func NewSetTile(tile *world.Tile) *SetTile {
	return &SetTile{pos: tile.Position(), tile: tile}
}

// RemoveTile удаляет тайл позиции; после применения хранит удалённый тайл
type RemoveTile struct {
	pos  vec.Position
	tile *world.Tile
}

// NewRemoveTile создаёт изменение, удаляющее тайл позиции
func NewRemoveTile(pos vec.Position) *RemoveTile {
	return &RemoveTile{pos: pos}
}

// Move переносит содержимое тайла from в позицию to: целиком или только выделенное
type Move struct {
	From   vec.Position
	To     vec.Position
	Entire bool
}

// MoveEntire переносит весь тайл
func MoveEntire(from, to vec.Position) Move {
	return Move{From: from, To: to, Entire: true}
}

// MoveSelected переносит только выделенные сущности тайла
func MoveSelected(from, to vec.Position) Move {
	return Move{From: from, To: to}
}

// MultiMove набор переносов, применяемых согласованно к исходному состоянию.
// Реализован как набор пар снимков: никаких изменений на месте.
type MultiMove struct {
	moves     []Move
	snapshots []tileSnapshot
}

type tileSnapshot struct {
	pos  vec.Position
	tile *world.Tile
}

// NewMultiMove создаёт перенос набора позиций
func NewMultiMove(moves ...Move) *MultiMove {
	return &MultiMove{moves: moves}
}

// Add добавляет перенос
func (mm *MultiMove) Add(m Move) {
	mm.moves = append(mm.moves, m)
}

// Len количество переносов
func (mm *MultiMove) Len() int { return len(mm.moves) }

// SelectionTarget что выделяется на каждой позиции
type SelectionTarget uint8

const (
	TargetFullTile SelectionTarget = iota
	TargetTopItem
)

// Selection выделяет или снимает выделение на наборе позиций.
// Прообраз: маска выделения каждого тайла до применения.
type Selection struct {
	positions []vec.Position
	target    SelectionTarget
	selected  bool
	masks     [][]bool
}

// SelectMultiple выделяет (selected=true) или снимает выделение с тайлов позиций
func SelectMultiple(positions []vec.Position, selected bool) *Selection {
	return &Selection{positions: positions, target: TargetFullTile, selected: selected}
}

// SelectTile выделяет весь тайл
func SelectTile(pos vec.Position) *Selection {
	return SelectMultiple([]vec.Position{pos}, true)
}

// DeselectTile снимает выделение с тайла
func DeselectTile(pos vec.Position) *Selection {
	return SelectMultiple([]vec.Position{pos}, false)
}

// SelectTopItem выделяет верхний предмет тайла
func SelectTopItem(pos vec.Position) *Selection {
	return &Selection{positions: []vec.Position{pos}, target: TargetTopItem, selected: true}
}

// DeselectTopItem снимает выделение с верхнего предмета
func DeselectTopItem(pos vec.Position) *Selection {
	return &Selection{positions: []vec.Position{pos}, target: TargetTopItem, selected: false}
}

// Positions позиции, затрагиваемые изменением
func (s *Selection) Positions() []vec.Position { return s.positions }

// GroundIndex индекс земли для SetCount
const GroundIndex = -1

// SetCount меняет количество/подтип предмета тайла; обмен значений симметричен
type SetCount struct {
	pos   vec.Position
	index int
	value uint8
}

// NewSetCount создаёт изменение количества предмета index (GroundIndex: земля)
func NewSetCount(pos vec.Position, index int, count uint8) *SetCount {
	return &SetCount{pos: pos, index: index, value: count}
}

func (*SetTile) isChange()    {}
func (*RemoveTile) isChange() {}
func (*MultiMove) isChange()  {}
func (*Selection) isChange()  {}
func (*SetCount) isChange()   {}
