package world

import (
	"errors"
	"fmt"

	"github.com/annel0/map-editor/internal/vec"
)

// ErrPositionMismatch тайл устанавливается в слот с другой позицией
var ErrPositionMismatch = errors.New("позиция тайла не совпадает с позицией слота")

// TileLocation стабильный слот индекса, владеющий не более чем одним тайлом.
// Слоты создаются индексом лениво и никогда не удаляются по отдельности.
type TileLocation struct {
	position vec.Position
	tile     *Tile
}

// Position возвращает позицию слота
func (l *TileLocation) Position() vec.Position { return l.position }

// Tile возвращает тайл слота или nil
func (l *TileLocation) Tile() *Tile { return l.tile }

// HasTile true если в слоте есть тайл
func (l *TileLocation) HasTile() bool { return l.tile != nil }

// SetTile устанавливает тайл в слот, переводя его в позицию слота.
// Прежний тайл освобождается.
func (l *TileLocation) SetTile(t *Tile) {
	if t != nil {
		t.relocate(l.position)
	}
	old := l.tile
	l.tile = t
	if old != nil {
		old.Release()
	}
}

// ReplaceTile заменяет тайл тайлом той же позиции; прежний освобождается
func (l *TileLocation) ReplaceTile(t *Tile) error {
	if t.Position() != l.position {
		return fmt.Errorf("%w: слот %s, тайл %s", ErrPositionMismatch, l.position, t.Position())
	}
	l.SetTile(t)
	return nil
}

// SwapTile устанавливает t (может быть nil) и возвращает прежний тайл вызывающему
func (l *TileLocation) SwapTile(t *Tile) (*Tile, error) {
	if t != nil && t.Position() != l.position {
		return nil, fmt.Errorf("%w: слот %s, тайл %s", ErrPositionMismatch, l.position, t.Position())
	}
	old := l.tile
	l.tile = t
	return old, nil
}

// DropTile извлекает тайл, владение переходит вызывающему
func (l *TileLocation) DropTile() *Tile {
	t := l.tile
	l.tile = nil
	return t
}

// RemoveTile удаляет и освобождает тайл
func (l *TileLocation) RemoveTile() {
	if t := l.DropTile(); t != nil {
		t.Release()
	}
}
