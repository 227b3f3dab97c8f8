package history

import (
	"fmt"

	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world"
)

// apply применяет изменение к карте и возвращает затронутые позиции.
// Изменение запоминает прообраз, поэтому revert восстанавливает состояние точно.
func apply(m *world.Map, c Change) ([]vec.Position, error) {
	switch c := c.(type) {
	case *SetTile:
		prev, err := swap(m, c.pos, c.tile)
		if err != nil {
			return nil, err
		}
		c.tile = prev
		return []vec.Position{c.pos}, nil

	case *RemoveTile:
		loc := m.Location(c.pos)
		if loc != nil {
			c.tile = loc.DropTile()
		}
		return []vec.Position{c.pos}, nil

	case *MultiMove:
		if c.snapshots == nil {
			c.snapshots = planMoves(m, c.moves)
		}
		return swapAll(m, c.snapshots)

	case *Selection:
		c.masks = make([][]bool, len(c.positions))
		for i, pos := range c.positions {
			tile := m.Get(pos)
			if tile == nil {
				continue
			}
			c.masks[i] = tile.SelectionMask()
			switch {
			case c.target == TargetTopItem && c.selected:
				tile.SelectTopItem()
			case c.target == TargetTopItem:
				tile.DeselectTopItem()
			case c.selected:
				tile.SelectAll()
			default:
				tile.DeselectAll()
			}
		}
		return c.positions, nil

	case *SetCount:
		item := countTarget(m, c)
		if item == nil {
			return nil, fmt.Errorf("%w: нет предмета %d в %s", ErrInvalidChange, c.index, c.pos)
		}
		prev := item.Subtype()
		item.SetSubtype(c.value)
		c.value = prev
		return []vec.Position{c.pos}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownChange, c)
	}
}

// revert откатывает ранее применённое изменение
func revert(m *world.Map, c Change) ([]vec.Position, error) {
	switch c := c.(type) {
	case *SetTile:
		// обмен симметричен
		return apply(m, c)

	case *RemoveTile:
		if c.tile != nil {
			if _, err := m.GetOrCreateLocation(c.pos).SwapTile(c.tile); err != nil {
				return nil, err
			}
			c.tile = nil
		}
		return []vec.Position{c.pos}, nil

	case *MultiMove:
		return swapAll(m, c.snapshots)

	case *Selection:
		for i := len(c.positions) - 1; i >= 0; i-- {
			if tile := m.Get(c.positions[i]); tile != nil && c.masks[i] != nil {
				tile.RestoreSelection(c.masks[i])
			}
		}
		return c.positions, nil

	case *SetCount:
		return apply(m, c)

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownChange, c)
	}
}

// discard освобождает снимки, которые изменение держит вне карты
func discard(c Change) {
	switch c := c.(type) {
	case *SetTile:
		if c.tile != nil {
			c.tile.Release()
			c.tile = nil
		}
	case *RemoveTile:
		if c.tile != nil {
			c.tile.Release()
			c.tile = nil
		}
	case *MultiMove:
		for i := range c.snapshots {
			if t := c.snapshots[i].tile; t != nil {
				t.Release()
				c.snapshots[i].tile = nil
			}
		}
	}
}

func swap(m *world.Map, pos vec.Position, tile *world.Tile) (*world.Tile, error) {
	loc := m.GetOrCreateLocation(pos)
	if loc == nil {
		return nil, fmt.Errorf("%w: этаж %d", ErrInvalidChange, pos.Z)
	}
	return loc.SwapTile(tile)
}

// swapAll обменивает снимки с содержимым карты; после обмена снимки хранят прежнее состояние
func swapAll(m *world.Map, snapshots []tileSnapshot) ([]vec.Position, error) {
	positions := make([]vec.Position, 0, len(snapshots))
	for i := range snapshots {
		prev, err := swap(m, snapshots[i].pos, snapshots[i].tile)
		if err != nil {
			return nil, err
		}
		snapshots[i].tile = prev
		positions = append(positions, snapshots[i].pos)
	}
	return positions, nil
}

// planMoves строит новые снимки всех затронутых позиций по исходному состоянию карты:
// сначала из источников извлекается переносимое, затем оно добавляется в назначения.
func planMoves(m *world.Map, moves []Move) []tileSnapshot {
	next := make(map[vec.Position]*world.Tile)
	var order []vec.Position

	state := func(pos vec.Position) *world.Tile {
		if t, ok := next[pos]; ok {
			return t
		}
		var t *world.Tile
		if cur := m.Get(pos); cur != nil {
			t = cur.DeepCopy()
		}
		next[pos] = t
		order = append(order, pos)
		return t
	}

	moved := make([]*world.Tile, len(moves))
	for i, mv := range moves {
		src := state(mv.From)
		if src == nil {
			continue
		}
		if mv.Entire {
			src.SelectAll()
		}
		content := world.NewTile(mv.To)
		src.MoveSelected(content)
		content.Flags = src.Flags
		if mv.Entire {
			src.Release()
			next[mv.From] = nil
		}
		moved[i] = content
	}

	for i, mv := range moves {
		content := moved[i]
		if content == nil {
			continue
		}
		dst := state(mv.To)
		if dst == nil {
			dst = world.NewTile(mv.To)
			next[mv.To] = dst
		}
		content.SelectAll()
		content.MoveSelected(dst)
		if mv.Entire {
			dst.Flags |= content.Flags
		}
	}

	snapshots := make([]tileSnapshot, 0, len(order))
	for _, pos := range order {
		t := next[pos]
		if t != nil && t.IsEmpty() && t.Flags == 0 && t.HouseID == 0 {
			t.Release()
			t = nil
		}
		snapshots = append(snapshots, tileSnapshot{pos: pos, tile: t})
	}
	return snapshots
}

func countTarget(m *world.Map, c *SetCount) *world.Item {
	tile := m.Get(c.pos)
	if tile == nil {
		return nil
	}
	if c.index == GroundIndex {
		return tile.Ground()
	}
	if c.index < 0 || c.index >= len(tile.Items()) {
		return nil
	}
	return tile.Items()[c.index]
}
