package editor

import (
	"slices"

	"github.com/annel0/map-editor/internal/history"
	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world"
	"github.com/annel0/map-editor/internal/world/itemtype"
)

// validPosition проверяет, что позиция в объявленных границах карты и на допустимом этаже
func (e *MapEditor) validPosition(op string, pos vec.Position) bool {
	if !e.m.InBounds(pos) {
		e.log.Debug("editor: %s: позиция %s вне карты %dx%d, пропущено", op, pos, e.m.Width(), e.m.Height())
		return false
	}
	return true
}

func (e *MapEditor) itemType(op string, id itemtype.ID) (*itemtype.ItemType, bool) {
	t, ok := e.catalog.Get(id)
	if !ok {
		e.log.Debug("editor: %s: неизвестный тип предмета %d, пропущено", op, id)
	}
	return t, ok
}

// snapshot копия текущего тайла позиции или новый пустой тайл
func (e *MapEditor) snapshot(pos vec.Position) *world.Tile {
	if tile := e.m.Get(pos); tile != nil {
		return tile.DeepCopy()
	}
	return world.NewTile(pos)
}

// AddItem добавляет предмет типа id в позицию.
// Неизвестный тип или позиция вне карты: молчаливый no-op.
func (e *MapEditor) AddItem(pos vec.Position, id itemtype.ID) error {
	t, ok := e.itemType("AddItem", id)
	if !ok || !e.validPosition("AddItem", pos) {
		return nil
	}

	tile := e.snapshot(pos)
	tile.AddItem(world.NewItem(t))
	return e.group(history.GroupAddMapItem, func() error {
		return e.history.CommitChange(history.ActionSetTile, history.NewSetTile(tile))
	})
}

// RemoveItemsAt удаляет предметы тайла по индексам стопки
func (e *MapEditor) RemoveItemsAt(pos vec.Position, indices []int) error {
	current := e.m.Get(pos)
	if current == nil || len(indices) == 0 {
		return nil
	}

	// удаление с конца не сдвигает оставшиеся индексы
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	tile := current.DeepCopy()
	removed := 0
	for i := len(sorted) - 1; i >= 0; i-- {
		index := sorted[i]
		switch {
		case index == history.GroundIndex && tile.Ground() != nil:
			tile.RemoveGround()
			removed++
		case index >= 0 && index < len(tile.Items()):
			tile.RemoveItem(index)
			removed++
		}
	}
	if removed == 0 {
		tile.Release()
		return nil
	}
	return e.group(history.GroupRemoveMapItem, func() error {
		return e.history.CommitChange(history.ActionRemoveTile, history.NewSetTile(tile))
	})
}

// RemoveSelectedItems удаляет выделенные предметы и выделенную землю тайла
func (e *MapEditor) RemoveSelectedItems(pos vec.Position) error {
	current := e.m.Get(pos)
	if current == nil || !current.HasSelection() {
		return nil
	}

	tile := current.DeepCopy()
	tile.RemoveItemsIf(func(it *world.Item) bool { return it.Selected })
	if g := tile.Ground(); g != nil && g.Selected {
		tile.RemoveGround()
	}
	return e.group(history.GroupRemoveMapItem, func() error {
		return e.history.CommitChange(history.ActionModifyTile, history.NewSetTile(tile))
	})
}

// RemoveItems удаляет предметы стопки, удовлетворяющие pred. Если ничего не удалено, изменение не записывается.
func (e *MapEditor) RemoveItems(pos vec.Position, pred func(*world.Item) bool) error {
	current := e.m.Get(pos)
	if current == nil {
		return nil
	}

	tile := current.DeepCopy()
	if tile.RemoveItemsIf(pred) == 0 {
		tile.Release()
		return nil
	}
	return e.group(history.GroupRemoveMapItem, func() error {
		return e.history.CommitChange(history.ActionModifyTile, history.NewSetTile(tile))
	})
}

// InsertTile устанавливает тайл в его позицию, заменяя прежний
func (e *MapEditor) InsertTile(tile *world.Tile) error {
	if tile == nil || !e.validPosition("InsertTile", tile.Position()) {
		return nil
	}
	return e.group(history.GroupAddMapItem, func() error {
		return e.history.CommitChange(history.ActionSetTile, history.NewSetTile(tile))
	})
}

// RemoveTile удаляет тайл позиции
func (e *MapEditor) RemoveTile(pos vec.Position) error {
	if e.m.Get(pos) == nil {
		return nil
	}
	return e.group(history.GroupRemoveMapItem, func() error {
		return e.history.CommitChange(history.ActionRemoveTile, history.NewRemoveTile(pos))
	})
}

// ModifyTile применяет f к копии тайла позиции и записывает результат
func (e *MapEditor) ModifyTile(pos vec.Position, f func(*world.Tile)) error {
	if !e.validPosition("ModifyTile", pos) {
		return nil
	}
	tile := e.snapshot(pos)
	f(tile)
	return e.group(history.GroupModifyItem, func() error {
		return e.history.CommitChange(history.ActionModifyTile, history.NewSetTile(tile))
	})
}

// SetItemCount меняет количество (подтип) предмета index тайла; GroundIndex: земля
func (e *MapEditor) SetItemCount(pos vec.Position, index int, count uint8) error {
	tile := e.m.Get(pos)
	if tile == nil {
		return nil
	}
	var item *world.Item
	if index == history.GroundIndex {
		item = tile.Ground()
	} else if index >= 0 && index < len(tile.Items()) {
		item = tile.Items()[index]
	}
	if item == nil || !item.Type.UsesSubtype() || item.Subtype() == count {
		return nil
	}
	return e.group(history.GroupModifyItem, func() error {
		return e.history.CommitChange(history.ActionModifyItem, history.NewSetCount(pos, index, count))
	})
}

// MoveSelection переносит всё выделенное на delta одним действием.
// Полностью выделенные тайлы переносятся целиком. Если хоть одна цель вне карты, перенос не выполняется.
func (e *MapEditor) MoveSelection(delta vec.Position) error {
	if len(e.selection) == 0 || delta.IsZero() {
		return nil
	}

	mm := history.NewMultiMove()
	for _, from := range e.Selection() {
		tile := e.m.Get(from)
		if tile == nil || !tile.HasSelection() {
			continue
		}
		to := from.Add(delta)
		if !e.validPosition("MoveSelection", to) {
			return nil
		}
		if tile.AllSelected() {
			mm.Add(history.MoveEntire(from, to))
		} else {
			mm.Add(history.MoveSelected(from, to))
		}
	}
	if mm.Len() == 0 {
		return nil
	}

	return e.group(history.GroupMoveItems, func() error {
		return e.history.CommitChange(history.ActionMoveItems, mm)
	})
}

// DeleteSelectedItems удаляет всё выделенное: полностью выделенные тайлы удаляются целиком
func (e *MapEditor) DeleteSelectedItems() error {
	if len(e.selection) == 0 {
		return nil
	}
	positions := e.Selection()
	return e.group(history.GroupRemoveMapItem, func() error {
		for _, pos := range positions {
			tile := e.m.Get(pos)
			if tile == nil {
				continue
			}
			var err error
			if tile.AllSelected() {
				err = e.RemoveTile(pos)
			} else {
				err = e.RemoveSelectedItems(pos)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SelectRegion выделяет все непустые тайлы прямоугольника
func (e *MapEditor) SelectRegion(from, to vec.Position) error {
	var positions []vec.Position
	for loc := range e.m.Region(from, to) {
		if tile := loc.Tile(); tile != nil && !tile.IsEmpty() {
			positions = append(positions, loc.Position())
		}
	}
	if len(positions) == 0 {
		return nil
	}
	return e.group(history.GroupSelection, func() error {
		return e.history.CommitChange(history.ActionSelection, history.SelectMultiple(positions, true))
	})
}

// ClearSelection снимает всё выделение
func (e *MapEditor) ClearSelection() error {
	if len(e.selection) == 0 {
		return nil
	}
	positions := e.Selection()
	return e.group(history.GroupSelection, func() error {
		return e.history.CommitChange(history.ActionSelection, history.SelectMultiple(positions, false))
	})
}

func (e *MapEditor) selectChange(pos vec.Position, c *history.Selection) error {
	if tile := e.m.Get(pos); tile == nil || tile.IsEmpty() {
		return nil
	}
	return e.group(history.GroupSelection, func() error {
		return e.history.CommitChange(history.ActionSelection, c)
	})
}

// SelectTile выделяет весь тайл
func (e *MapEditor) SelectTile(pos vec.Position) error {
	return e.selectChange(pos, history.SelectTile(pos))
}

// DeselectTile снимает выделение с тайла
func (e *MapEditor) DeselectTile(pos vec.Position) error {
	return e.selectChange(pos, history.DeselectTile(pos))
}

// SelectTopItem выделяет верхний предмет тайла
func (e *MapEditor) SelectTopItem(pos vec.Position) error {
	return e.selectChange(pos, history.SelectTopItem(pos))
}

// DeselectTopItem снимает выделение с верхнего предмета
func (e *MapEditor) DeselectTopItem(pos vec.Position) error {
	return e.selectChange(pos, history.DeselectTopItem(pos))
}

// RemoveItemsInRegion удаляет предметы, удовлетворяющие pred, во всех тайлах прямоугольника
func (e *MapEditor) RemoveItemsInRegion(from, to vec.Position, pred func(*world.Item) bool) error {
	var positions []vec.Position
	for loc := range e.m.Region(from, to) {
		if loc.HasTile() {
			positions = append(positions, loc.Position())
		}
	}
	return e.group(history.GroupRemoveMapItem, func() error {
		for _, pos := range positions {
			if err := e.RemoveItems(pos, pred); err != nil {
				return err
			}
		}
		return nil
	})
}

// FillRegion добавляет предмет id в каждую позицию прямоугольника одной группой
func (e *MapEditor) FillRegion(from, to vec.Position, id itemtype.ID) error {
	if _, ok := e.itemType("FillRegion", id); !ok {
		return nil
	}
	return e.group(history.GroupFill, func() error {
		for pos := range vec.Area(from, to) {
			if err := e.AddItem(pos, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// PaintLine добавляет предмет id вдоль отрезка from..to на этаже from
func (e *MapEditor) PaintLine(from, to vec.Position, id itemtype.ID) error {
	if _, ok := e.itemType("PaintLine", id); !ok {
		return nil
	}
	return e.group(history.GroupPaint, func() error {
		for pos := range vec.Line(from, to) {
			if err := e.AddItem(pos, id); err != nil {
				return err
			}
		}
		return nil
	})
}
