package world

import (
	"github.com/annel0/map-editor/internal/vec"
)

// Tile содержимое одной позиции карты: земля и упорядоченный стек предметов.
// selectionCount всегда равен числу выделенных сущностей тайла.
type Tile struct {
	position       vec.Position
	ground         *Item
	items          []*Item
	selectionCount int

	Flags   uint32 // флаги тайла (зона защиты и т.п.)
	HouseID uint32 // 0: тайл не принадлежит дому
}

// NewTile создаёт пустой тайл
func NewTile(pos vec.Position) *Tile {
	return &Tile{position: pos}
}

// Position возвращает позицию тайла
func (t *Tile) Position() vec.Position { return t.position }

// Ground возвращает землю или nil
func (t *Tile) Ground() *Item { return t.ground }

// Items возвращает стек предметов снизу вверх; срез нельзя изменять
func (t *Tile) Items() []*Item { return t.items }

// SelectionCount возвращает количество выделенных сущностей
func (t *Tile) SelectionCount() int { return t.selectionCount }

// AddItem добавляет предмет, соблюдая порядок стека:
// земля < бордюры < обычные предметы < always-on-top.
func (t *Tile) AddItem(item *Item) {
	if item.IsGround() {
		t.ReplaceGround(item)
		return
	}

	index := len(t.items)
	replace := false

	if item.Type.AlwaysOnTop {
		for index = 0; index < len(t.items); index++ {
			current := t.items[index].Type
			if !current.AlwaysOnTop {
				break
			}
			if item.Type.GroundBorder {
				if !current.GroundBorder {
					break
				}
			} else if !current.GroundBorder {
				replace = true
				break
			}
		}
	}

	if replace {
		t.ReplaceItem(index, item)
		return
	}

	item.attach(ParentRef{Kind: ParentTile, Position: t.position})
	if item.Selected {
		t.selectionCount++
	}
	t.items = append(t.items, nil)
	copy(t.items[index+1:], t.items[index:])
	t.items[index] = item
}

// AppendItem кладёт предмет на верх стопки как есть, без правил упорядочивания.
// Используется при загрузке, где порядок уже задан файлом.
func (t *Tile) AppendItem(item *Item) {
	item.attach(ParentRef{Kind: ParentTile, Position: t.position})
	if item.Selected {
		t.selectionCount++
	}
	t.items = append(t.items, item)
}

// ReplaceGround заменяет землю; прежняя земля освобождается
func (t *Tile) ReplaceGround(ground *Item) {
	old := t.ground
	t.adjustSelection(old != nil && old.Selected, ground != nil && ground.Selected)
	if ground != nil {
		ground.attach(ParentRef{Kind: ParentTile, Position: t.position})
	}
	t.ground = ground
	if old != nil {
		old.Release()
	}
}

// ReplaceItem заменяет предмет по индексу; прежний предмет освобождается
func (t *Tile) ReplaceItem(index int, item *Item) {
	old := t.items[index]
	t.adjustSelection(old.Selected, item.Selected)
	item.attach(ParentRef{Kind: ParentTile, Position: t.position})
	t.items[index] = item
	old.Release()
}

func (t *Tile) adjustSelection(before, after bool) {
	switch {
	case before && !after:
		t.selectionCount--
	case !before && after:
		t.selectionCount++
	}
}

// RemoveItem удаляет и освобождает предмет по индексу
func (t *Tile) RemoveItem(index int) {
	t.DropItem(index).Release()
}

// DropItem удаляет предмет по индексу и возвращает владение им
func (t *Tile) DropItem(index int) *Item {
	item := t.items[index]
	t.items = append(t.items[:index], t.items[index+1:]...)
	if item.Selected {
		t.selectionCount--
	}
	item.attach(ParentRef{})
	return item
}

// DropGround извлекает землю, владение переходит вызывающему
func (t *Tile) DropGround() *Item {
	ground := t.ground
	if ground == nil {
		return nil
	}
	if ground.Selected {
		t.selectionCount--
	}
	t.ground = nil
	ground.attach(ParentRef{})
	return ground
}

// RemoveGround удаляет и освобождает землю
func (t *Tile) RemoveGround() {
	if ground := t.DropGround(); ground != nil {
		ground.Release()
	}
}

// RemoveItemsIf удаляет предметы стека, удовлетворяющие предикату.
// Возвращает количество удалённых предметов.
func (t *Tile) RemoveItemsIf(pred func(*Item) bool) int {
	removed := 0
	kept := t.items[:0]
	for _, item := range t.items {
		if pred(item) {
			if item.Selected {
				t.selectionCount--
			}
			item.Release()
			removed++
			continue
		}
		kept = append(kept, item)
	}
	for i := len(kept); i < len(t.items); i++ {
		t.items[i] = nil
	}
	t.items = kept
	return removed
}

// MoveSelected переносит выделенные сущности в other.
// Выделенная земля заменяет землю other и очищает его стек.
func (t *Tile) MoveSelected(other *Tile) {
	if t.ground != nil && t.ground.Selected {
		other.clearItems()
		other.ReplaceGround(t.DropGround())
	}

	for i := 0; i < len(t.items); {
		if t.items[i].Selected {
			other.AddItem(t.DropItem(i))
			continue
		}
		i++
	}
}

func (t *Tile) clearItems() {
	for _, item := range t.items {
		if item.Selected {
			t.selectionCount--
		}
		item.Release()
	}
	t.items = nil
}

// SelectAll выделяет землю и все предметы
func (t *Tile) SelectAll() {
	count := 0
	if t.ground != nil {
		t.ground.Selected = true
		count++
	}
	for _, item := range t.items {
		item.Selected = true
	}
	t.selectionCount = count + len(t.items)
}

// DeselectAll снимает выделение со всех сущностей
func (t *Tile) DeselectAll() {
	if t.ground != nil {
		t.ground.Selected = false
	}
	for _, item := range t.items {
		item.Selected = false
	}
	t.selectionCount = 0
}

// SelectItem выделяет предмет по индексу
func (t *Tile) SelectItem(index int) {
	if item := t.items[index]; !item.Selected {
		item.Selected = true
		t.selectionCount++
	}
}

// DeselectItem снимает выделение с предмета по индексу
func (t *Tile) DeselectItem(index int) {
	if item := t.items[index]; item.Selected {
		item.Selected = false
		t.selectionCount--
	}
}

// SetItemSelected выделяет или снимает выделение с предмета
func (t *Tile) SetItemSelected(index int, selected bool) {
	if selected {
		t.SelectItem(index)
	} else {
		t.DeselectItem(index)
	}
}

// SelectGround выделяет землю
func (t *Tile) SelectGround() {
	if t.ground != nil && !t.ground.Selected {
		t.ground.Selected = true
		t.selectionCount++
	}
}

// DeselectGround снимает выделение с земли
func (t *Tile) DeselectGround() {
	if t.ground != nil && t.ground.Selected {
		t.ground.Selected = false
		t.selectionCount--
	}
}

// SelectTopItem выделяет верхний предмет (или землю, если стек пуст)
func (t *Tile) SelectTopItem() {
	if len(t.items) == 0 {
		t.SelectGround()
		return
	}
	t.SelectItem(len(t.items) - 1)
}

// DeselectTopItem снимает выделение с верхнего предмета (или земли)
func (t *Tile) DeselectTopItem() {
	if len(t.items) == 0 {
		t.DeselectGround()
		return
	}
	t.DeselectItem(len(t.items) - 1)
}

// SelectionMask возвращает флаги выделения: сначала земля (если есть), затем стек
func (t *Tile) SelectionMask() []bool {
	mask := make([]bool, 0, t.EntityCount())
	if t.ground != nil {
		mask = append(mask, t.ground.Selected)
	}
	for _, item := range t.items {
		mask = append(mask, item.Selected)
	}
	return mask
}

// RestoreSelection восстанавливает выделение из маски SelectionMask.
// Маска другой длины игнорируется.
func (t *Tile) RestoreSelection(mask []bool) {
	if len(mask) != t.EntityCount() {
		return
	}
	i := 0
	count := 0
	if t.ground != nil {
		t.ground.Selected = mask[0]
		i++
	}
	for _, item := range t.items {
		item.Selected = mask[i]
		i++
	}
	for _, selected := range mask {
		if selected {
			count++
		}
	}
	t.selectionCount = count
}

// TopItem возвращает верхний предмет стека или землю
func (t *Tile) TopItem() *Item {
	if len(t.items) > 0 {
		return t.items[len(t.items)-1]
	}
	return t.ground
}

// TopItemSelected сообщает, выделен ли верхний предмет
func (t *Tile) TopItemSelected() bool {
	top := t.TopItem()
	if top == nil {
		return false
	}
	return t.AllSelected() || top.Selected
}

// EntityCount количество сущностей на тайле (земля + стек)
func (t *Tile) EntityCount() int {
	n := len(t.items)
	if t.ground != nil {
		n++
	}
	return n
}

// IsEmpty true если на тайле нет ни земли, ни предметов
func (t *Tile) IsEmpty() bool {
	return t.ground == nil && len(t.items) == 0
}

// AllSelected true если выделены все сущности тайла
func (t *Tile) AllSelected() bool {
	return t.selectionCount == t.EntityCount()
}

// HasSelection true если выделена хотя бы одна сущность
func (t *Tile) HasSelection() bool {
	return t.selectionCount != 0
}

// TopElevation суммарная высота предметов стека
func (t *Tile) TopElevation() int {
	elevation := 0
	for _, item := range t.items {
		elevation += item.Type.Elevation
	}
	return elevation
}

// DeepCopy создаёт независимую копию тайла с сохранением guid, атрибутов и выделения
func (t *Tile) DeepCopy() *Tile {
	return t.CopyAt(t.position)
}

// CopyAt создаёт глубокую копию тайла, расположенную в позиции pos
func (t *Tile) CopyAt(pos vec.Position) *Tile {
	out := &Tile{
		position:       pos,
		selectionCount: t.selectionCount,
		Flags:          t.Flags,
		HouseID:        t.HouseID,
	}
	if t.ground != nil {
		out.ground = t.ground.Copy()
		out.ground.attach(ParentRef{Kind: ParentTile, Position: pos})
	}
	if len(t.items) > 0 {
		out.items = make([]*Item, len(t.items))
		for i, item := range t.items {
			out.items[i] = item.Copy()
			out.items[i].attach(ParentRef{Kind: ParentTile, Position: pos})
		}
	}
	return out
}

// Release освобождает все предметы тайла
func (t *Tile) Release() {
	if t.ground != nil {
		t.ground.Release()
	}
	for _, item := range t.items {
		item.Release()
	}
}

// Equal сравнивает наблюдаемое состояние тайлов: позицию, предметы, атрибуты и выделение
func (t *Tile) Equal(other *Tile) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.position != other.position || t.Flags != other.Flags || t.HouseID != other.HouseID {
		return false
	}
	if t.selectionCount != other.selectionCount || len(t.items) != len(other.items) {
		return false
	}
	if !t.ground.Equal(other.ground) {
		return false
	}
	for i := range t.items {
		if !t.items[i].Equal(other.items[i]) {
			return false
		}
	}
	return true
}

// FindByGuid ищет предмет (включая вложенные в контейнеры) по guid
func (t *Tile) FindByGuid(g Guid) *Item {
	if t.ground != nil {
		if found := t.ground.FindByGuid(g); found != nil {
			return found
		}
	}
	for _, item := range t.items {
		if found := item.FindByGuid(g); found != nil {
			return found
		}
	}
	return nil
}

// relocate меняет позицию тайла при установке в другой слот
func (t *Tile) relocate(pos vec.Position) {
	if t.position == pos {
		return
	}
	t.position = pos
	if t.ground != nil {
		t.ground.attach(ParentRef{Kind: ParentTile, Position: pos})
	}
	for _, item := range t.items {
		item.attach(ParentRef{Kind: ParentTile, Position: pos})
	}
}
