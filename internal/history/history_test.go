package history

import (
	"math/rand"
	"testing"

	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world"
	"github.com/annel0/map-editor/internal/world/itemtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTile(t *testing.T, pos vec.Position, ids ...itemtype.ID) *world.Tile {
	t.Helper()
	tile := world.NewTile(pos)
	for _, id := range ids {
		typ, ok := itemtype.Get(id)
		require.True(t, ok, "тип %d должен быть в каталоге", id)
		tile.AddItem(world.NewItem(typ))
	}
	return tile
}

// snapshot копирует все непустые тайлы карты для сравнения состояния
func snapshot(m *world.Map) map[vec.Position]*world.Tile {
	out := make(map[vec.Position]*world.Tile)
	for tile := range m.Tiles() {
		out[tile.Position()] = tile.DeepCopy()
	}
	return out
}

func assertSameState(t *testing.T, want map[vec.Position]*world.Tile, m *world.Map) {
	t.Helper()
	got := snapshot(m)
	require.Len(t, got, len(want), "количество тайлов должно совпадать")
	for pos, tile := range want {
		assert.True(t, tile.Equal(got[pos]), "тайл %s отличается", pos)
	}
}

func ids(tile *world.Tile) []itemtype.ID {
	var out []itemtype.ID
	if tile.Ground() != nil {
		out = append(out, tile.Ground().ServerID())
	}
	for _, item := range tile.Items() {
		out = append(out, item.ServerID())
	}
	return out
}

var (
	p1 = vec.NewPosition(100, 100, 7)
	p2 = vec.NewPosition(101, 100, 7)
	p3 = vec.NewPosition(102, 100, 7)
)

func TestHistory_CommitUndoRedo(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)

	require.NoError(t, h.CommitChange(ActionSetTile, NewSetTile(makeTile(t, p1, itemtype.GrassID, itemtype.ShovelID))))
	assert.Equal(t, []itemtype.ID{itemtype.GrassID, itemtype.ShovelID}, ids(m.Get(p1)))
	assert.True(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	require.NoError(t, h.Undo())
	assert.Nil(t, m.Get(p1), "после отмены тайла быть не должно")
	assert.True(t, h.CanRedo())

	require.NoError(t, h.Redo())
	assert.Equal(t, []itemtype.ID{itemtype.GrassID, itemtype.ShovelID}, ids(m.Get(p1)))

	assert.ErrorIs(t, h.Redo(), ErrNothingToRedo)
	require.NoError(t, h.Undo())
	assert.ErrorIs(t, h.Undo(), ErrNothingToUndo)
}

func TestHistory_GroupAtomicity(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)
	m.GetOrCreateTile(p3).AddItem(world.NewItem(mustGet(t, itemtype.SandID)))
	before := snapshot(m)

	require.NoError(t, h.StartGroup(GroupAddMapItem))
	assert.Equal(t, InGroup, h.State())
	require.NoError(t, h.CommitChange(ActionSetTile, NewSetTile(makeTile(t, p1, itemtype.GrassID))))
	require.NoError(t, h.Commit(NewAction(ActionSetTile,
		NewSetTile(makeTile(t, p2, itemtype.WaterID)),
		NewRemoveTile(p3),
	)))
	assert.ErrorIs(t, h.Undo(), ErrInGroup)
	require.NoError(t, h.EndGroup(GroupAddMapItem))

	assert.Equal(t, 1, h.UndoDepth(), "группа: одна запись отмены")
	assert.Nil(t, m.Get(p3))

	require.NoError(t, h.Undo())
	assertSameState(t, before, m)

	require.NoError(t, h.Redo())
	assert.NotNil(t, m.Get(p1))
	assert.NotNil(t, m.Get(p2))
	assert.Nil(t, m.Get(p3))
}

func TestHistory_GroupErrors(t *testing.T) {
	h := New(world.NewMap(10, 10))

	assert.ErrorIs(t, h.EndGroup(GroupSelection), ErrNoGroup)
	require.NoError(t, h.StartGroup(GroupSelection))
	assert.ErrorIs(t, h.StartGroup(GroupPaint), ErrNestedGroup)
	assert.ErrorIs(t, h.EndGroup(GroupPaint), ErrGroupMismatch)
	assert.ErrorIs(t, h.Redo(), ErrInGroup)

	require.NoError(t, h.EndGroup(GroupSelection))
	assert.Equal(t, Idle, h.State())
	assert.False(t, h.CanUndo(), "пустая группа не попадает в историю")
}

func TestHistory_CommitClearsRedo(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)

	require.NoError(t, h.CommitChange(ActionSetTile, NewSetTile(makeTile(t, p1, itemtype.GrassID))))
	require.NoError(t, h.Undo())
	require.True(t, h.CanRedo())

	require.NoError(t, h.CommitChange(ActionSetTile, NewSetTile(makeTile(t, p2, itemtype.SandID))))
	assert.False(t, h.CanRedo(), "новое действие очищает стек повтора")
	assert.Nil(t, m.Get(p1))
}

func TestHistory_DiscardReleasesGuids(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)

	tile := makeTile(t, p1, itemtype.ShovelID)
	guid := tile.Items()[0].Guid()
	require.NoError(t, h.CommitChange(ActionSetTile, NewSetTile(tile)))
	require.NoError(t, h.Undo())
	assert.Equal(t, 1, world.Guids.Refs(guid), "снимок в стеке повтора держит guid")

	require.NoError(t, h.CommitChange(ActionSetTile, NewSetTile(makeTile(t, p2, itemtype.SandID))))
	assert.Equal(t, 0, world.Guids.Refs(guid), "очистка повтора освобождает guid")
}

func TestHistory_ClearReleasesGuids(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)

	first := makeTile(t, p1, itemtype.ShovelID)
	guid := first.Items()[0].Guid()
	require.NoError(t, h.CommitChange(ActionSetTile, NewSetTile(first)))
	require.NoError(t, h.CommitChange(ActionSetTile, NewSetTile(makeTile(t, p1, itemtype.SandID))))
	assert.Equal(t, 1, world.Guids.Refs(guid), "снимок в стеке отмены держит guid")

	require.NoError(t, h.StartGroup(GroupFill))
	second := makeTile(t, p2, itemtype.ShovelID)
	openGuid := second.Items()[0].Guid()
	require.NoError(t, h.CommitChange(ActionSetTile, NewSetTile(second)))
	require.NoError(t, h.CommitChange(ActionSetTile, NewSetTile(makeTile(t, p2, itemtype.SandID))))
	assert.Equal(t, 1, world.Guids.Refs(openGuid), "снимок открытой группы держит guid")

	h.Clear()
	assert.Zero(t, world.Guids.Refs(guid), "стек отмены освобождён")
	assert.Zero(t, world.Guids.Refs(openGuid), "открытая группа освобождена")
	assert.Equal(t, Idle, h.State())
	assert.False(t, h.CanUndo())
}

func TestHistory_FailedCommit(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)

	err := h.Commit(NewAction(ActionModifyItem,
		NewSetTile(makeTile(t, p1, itemtype.GrassID)),
		NewSetCount(p2, 0, 5),
	))
	assert.ErrorIs(t, err, ErrInvalidChange)
	assert.Nil(t, m.Get(p1), "частично применённое действие откатывается")
	assert.False(t, h.CanUndo())

	assert.NoError(t, h.Commit(Action{}), "пустое действие ничего не делает")
	assert.False(t, h.CanUndo())
}

func TestHistory_RemoveTile(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)
	m.GetOrCreateLocation(p1).SetTile(makeTile(t, p1, itemtype.GrassID, itemtype.TableID))
	before := snapshot(m)

	require.NoError(t, h.CommitChange(ActionRemoveTile, NewRemoveTile(p1)))
	assert.Nil(t, m.Get(p1))
	require.NoError(t, h.Undo())
	assertSameState(t, before, m)

	// удаление несуществующего тайла допустимо
	require.NoError(t, h.CommitChange(ActionRemoveTile, NewRemoveTile(p3)))
	require.NoError(t, h.Undo())
	assertSameState(t, before, m)
}

func TestHistory_Selection(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)
	m.GetOrCreateLocation(p1).SetTile(makeTile(t, p1, itemtype.GrassID, itemtype.ShovelID, itemtype.GoldCoinID))
	m.Get(p1).SelectItem(0)
	before := snapshot(m)

	require.NoError(t, h.CommitChange(ActionSelection, SelectMultiple([]vec.Position{p1, p2}, true)))
	assert.True(t, m.Get(p1).AllSelected())
	assert.Equal(t, 3, m.Get(p1).SelectionCount())

	require.NoError(t, h.Undo())
	assertSameState(t, before, m)

	require.NoError(t, h.CommitChange(ActionSelection, SelectTopItem(p1)))
	assert.True(t, m.Get(p1).TopItemSelected())
	require.NoError(t, h.CommitChange(ActionSelection, DeselectTile(p1)))
	assert.False(t, m.Get(p1).HasSelection())

	require.NoError(t, h.Undo())
	require.NoError(t, h.Undo())
	assertSameState(t, before, m)
}

func TestHistory_SetCount(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)
	m.GetOrCreateLocation(p1).SetTile(makeTile(t, p1, itemtype.GrassID, itemtype.GoldCoinID))

	require.NoError(t, h.CommitChange(ActionModifyItem, NewSetCount(p1, 0, 42)))
	assert.Equal(t, uint8(42), m.Get(p1).Items()[0].Subtype())

	require.NoError(t, h.Undo())
	assert.Equal(t, uint8(1), m.Get(p1).Items()[0].Subtype())
	require.NoError(t, h.Redo())
	assert.Equal(t, uint8(42), m.Get(p1).Items()[0].Subtype())

	require.NoError(t, h.CommitChange(ActionModifyItem, NewSetCount(p1, GroundIndex, 3)))
	assert.Equal(t, uint8(3), m.Get(p1).Ground().Subtype())
}

func TestHistory_MultiMoveSwap(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)
	m.GetOrCreateLocation(p1).SetTile(makeTile(t, p1, itemtype.GrassID, itemtype.ShovelID))
	m.GetOrCreateLocation(p2).SetTile(makeTile(t, p2, itemtype.SandID, itemtype.TableID))
	before := snapshot(m)

	mm := NewMultiMove(MoveEntire(p1, p2), MoveEntire(p2, p1))
	require.NoError(t, h.CommitChange(ActionMoveItems, mm))

	assert.Equal(t, []itemtype.ID{itemtype.SandID, itemtype.TableID}, ids(m.Get(p1)))
	assert.Equal(t, []itemtype.ID{itemtype.GrassID, itemtype.ShovelID}, ids(m.Get(p2)))

	require.NoError(t, h.Undo())
	assertSameState(t, before, m)
}

func TestHistory_MoveSelectedLeavesRest(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)
	src := makeTile(t, p1, itemtype.GrassID, itemtype.ShovelID, itemtype.TableID)
	src.SelectItem(1)
	m.GetOrCreateLocation(p1).SetTile(src)
	before := snapshot(m)

	require.NoError(t, h.CommitChange(ActionMoveItems, NewMultiMove(MoveSelected(p1, p3))))
	assert.Equal(t, []itemtype.ID{itemtype.GrassID, itemtype.ShovelID}, ids(m.Get(p1)))
	assert.Equal(t, []itemtype.ID{itemtype.TableID}, ids(m.Get(p3)))
	assert.Equal(t, 1, m.Get(p3).SelectionCount(), "перенесённое остаётся выделенным")

	require.NoError(t, h.Undo())
	assertSameState(t, before, m)
}

func TestHistory_MoveEntireRemovesSource(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)
	m.GetOrCreateLocation(p1).SetTile(makeTile(t, p1, itemtype.GrassID))

	require.NoError(t, h.CommitChange(ActionMoveItems, NewMultiMove(MoveEntire(p1, p2))))
	assert.Nil(t, m.Get(p1))
	assert.Equal(t, []itemtype.ID{itemtype.GrassID}, ids(m.Get(p2)))
}

func TestHistory_Observer(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)

	var events []Event
	h.Subscribe(func(ev Event) { events = append(events, ev) })

	require.NoError(t, h.StartGroup(GroupPaint))
	require.NoError(t, h.CommitChange(ActionSetTile, NewSetTile(makeTile(t, p1, itemtype.GrassID))))
	require.NoError(t, h.EndGroup(GroupPaint))
	require.NoError(t, h.Undo())
	require.NoError(t, h.Redo())

	require.Len(t, events, 3)
	assert.Equal(t, EventCommit, events[0].Kind)
	assert.Equal(t, GroupPaint, events[0].Group)
	assert.Equal(t, []vec.Position{p1}, events[0].Positions)
	assert.Equal(t, EventUndo, events[1].Kind)
	assert.Equal(t, EventRedo, events[2].Kind)
}

// Случайная последовательность действий, затем полная отмена возвращает исходное состояние,
// а полный повтор воспроизводит конечное.
func TestHistory_UndoExactness(t *testing.T) {
	m := world.NewMap(256, 256)
	h := New(m)
	rng := rand.New(rand.NewSource(7))

	pick := []itemtype.ID{itemtype.GrassID, itemtype.SandID, itemtype.ShovelID, itemtype.GoldCoinID, itemtype.GrassBorderID, itemtype.TableID}
	positions := []vec.Position{p1, p2, p3, vec.NewPosition(100, 101, 7), vec.NewPosition(100, 100, 6)}

	initial := snapshot(m)
	for step := 0; step < 200; step++ {
		pos := positions[rng.Intn(len(positions))]
		var c Change
		switch rng.Intn(5) {
		case 0:
			c = NewRemoveTile(pos)
		case 1:
			c = SelectMultiple([]vec.Position{pos}, rng.Intn(2) == 0)
		case 2:
			c = NewMultiMove(MoveEntire(pos, positions[rng.Intn(len(positions))]))
		default:
			next := world.NewTile(pos)
			if cur := m.Get(pos); cur != nil {
				next = cur.DeepCopy()
			}
			typ, _ := itemtype.Get(pick[rng.Intn(len(pick))])
			next.AddItem(world.NewItem(typ))
			c = NewSetTile(next)
		}
		require.NoError(t, h.CommitChange(ActionModifyTile, c), "шаг %d", step)
	}
	final := snapshot(m)

	for h.CanUndo() {
		require.NoError(t, h.Undo())
	}
	assertSameState(t, initial, m)

	for h.CanRedo() {
		require.NoError(t, h.Redo())
	}
	assertSameState(t, final, m)
}

func mustGet(t *testing.T, id itemtype.ID) *itemtype.ItemType {
	t.Helper()
	typ, ok := itemtype.Get(id)
	require.True(t, ok)
	return typ
}
