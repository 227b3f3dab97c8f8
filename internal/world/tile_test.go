package world

import (
	"math/rand"
	"testing"

	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world/itemtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPos = vec.Position{X: 1032, Y: 1032, Z: 7}

func serverIDs(tile *Tile) []itemtype.ID {
	ids := make([]itemtype.ID, 0, len(tile.Items()))
	for _, item := range tile.Items() {
		ids = append(ids, item.ServerID())
	}
	return ids
}

// countSelected пересчитывает выделение перебором: эталон для проверки счётчика
func countSelected(tile *Tile) int {
	n := 0
	if tile.Ground() != nil && tile.Ground().Selected {
		n++
	}
	for _, item := range tile.Items() {
		if item.Selected {
			n++
		}
	}
	return n
}

func TestTile_AddItemOrdering(t *testing.T) {
	tile := NewTile(testPos)

	tile.AddItem(newTestItem(t, itemtype.ShovelID))
	tile.AddItem(newTestItem(t, itemtype.GrassID))
	tile.AddItem(newTestItem(t, itemtype.WallLampID))
	tile.AddItem(newTestItem(t, itemtype.GrassBorderID))
	tile.AddItem(newTestItem(t, itemtype.SandBorderID))
	tile.AddItem(newTestItem(t, itemtype.GoldCoinID))

	require.NotNil(t, tile.Ground())
	assert.Equal(t, itemtype.GrassID, tile.Ground().ServerID(), "Земля не попадает в стек")
	assert.Equal(t, []itemtype.ID{
		itemtype.GrassBorderID,
		itemtype.SandBorderID,
		itemtype.WallLampID,
		itemtype.ShovelID,
		itemtype.GoldCoinID,
	}, serverIDs(tile), "Бордюры ниже always-on-top, обычные предметы в конце")

	t.Run("always-on-top заменяет предмет того же класса", func(t *testing.T) {
		lamp := tile.Items()[2]
		g := lamp.Guid()

		tile.AddItem(newTestItem(t, itemtype.LadderID))
		assert.Equal(t, itemtype.LadderID, tile.Items()[2].ServerID())
		assert.Len(t, tile.Items(), 5, "Замена не увеличивает стек")
		assert.Equal(t, 0, Guids.Refs(g), "Заменённый предмет освобождён")
	})

	t.Run("новая земля заменяет старую", func(t *testing.T) {
		tile.AddItem(newTestItem(t, itemtype.SandID))
		assert.Equal(t, itemtype.SandID, tile.Ground().ServerID())
		assert.Equal(t, itemtype.GoldCoinID, tile.TopItem().ServerID())
	})
}

func TestTile_SelectionCounter(t *testing.T) {
	tile := NewTile(testPos)
	tile.AddItem(newTestItem(t, itemtype.GrassID))
	for i := 0; i < 3; i++ {
		tile.AddItem(newTestItem(t, itemtype.ShovelID))
	}

	tile.SelectAll()
	assert.Equal(t, 4, tile.SelectionCount())
	assert.True(t, tile.AllSelected())

	tile.DeselectItem(1)
	tile.DeselectItem(1)
	assert.Equal(t, 3, tile.SelectionCount(), "Повторное снятие выделения не меняет счётчик")
	assert.False(t, tile.AllSelected())

	tile.DeselectAll()
	assert.False(t, tile.HasSelection())

	tile.SelectTopItem()
	assert.True(t, tile.Items()[2].Selected)
	assert.True(t, tile.TopItemSelected())

	t.Run("случайная последовательность операций", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		for step := 0; step < 500; step++ {
			switch rng.Intn(11) {
			case 0:
				tile.SelectAll()
			case 1:
				tile.DeselectAll()
			case 2:
				if len(tile.Items()) > 0 {
					tile.SelectItem(rng.Intn(len(tile.Items())))
				}
			case 3:
				if len(tile.Items()) > 0 {
					tile.DeselectItem(rng.Intn(len(tile.Items())))
				}
			case 4:
				tile.SelectGround()
			case 5:
				tile.DeselectGround()
			case 6:
				tile.SelectTopItem()
			case 7:
				tile.DeselectTopItem()
			case 8:
				item := newTestItem(t, itemtype.ShovelID)
				item.Selected = rng.Intn(2) == 0
				tile.AddItem(item)
			case 9:
				if len(tile.Items()) > 0 {
					tile.RemoveItem(rng.Intn(len(tile.Items())))
				}
			case 10:
				ground := newTestItem(t, itemtype.GrassID)
				ground.Selected = rng.Intn(2) == 0
				tile.ReplaceGround(ground)
			}
			require.Equal(t, countSelected(tile), tile.SelectionCount(), "шаг %d", step)
		}
	})
}

func TestTile_SelectionMask(t *testing.T) {
	tile := NewTile(testPos)
	tile.AddItem(newTestItem(t, itemtype.GrassID))
	tile.AddItem(newTestItem(t, itemtype.ShovelID))
	tile.AddItem(newTestItem(t, itemtype.ShovelID))
	tile.SelectGround()
	tile.SelectItem(1)

	mask := tile.SelectionMask()
	assert.Equal(t, []bool{true, false, true}, mask)

	tile.SelectAll()
	tile.RestoreSelection(mask)
	assert.Equal(t, mask, tile.SelectionMask())
	assert.Equal(t, 2, tile.SelectionCount())

	tile.RestoreSelection([]bool{true})
	assert.Equal(t, mask, tile.SelectionMask(), "Маска другой длины игнорируется")
}

func TestTile_DropAndRemove(t *testing.T) {
	tile := NewTile(testPos)
	tile.AddItem(newTestItem(t, itemtype.GrassID))
	tile.AddItem(newTestItem(t, itemtype.ShovelID))
	tile.AddItem(newTestItem(t, itemtype.GoldCoinID))
	tile.SelectAll()

	dropped := tile.DropItem(0)
	assert.Equal(t, itemtype.ShovelID, dropped.ServerID())
	assert.Equal(t, 1, Guids.Refs(dropped.Guid()), "Извлечённый предмет остаётся живым")
	assert.Equal(t, 2, tile.SelectionCount())

	ground := tile.DropGround()
	require.NotNil(t, ground)
	assert.Nil(t, tile.Ground())
	assert.Equal(t, 1, tile.SelectionCount())

	assert.Equal(t, 1, tile.RemoveItemsIf(func(item *Item) bool { return item.Type.Stackable }))
	assert.True(t, tile.IsEmpty())
	assert.Equal(t, 0, tile.SelectionCount())
	assert.True(t, tile.AllSelected(), "Пустой тайл считается полностью выделенным")
	assert.Nil(t, tile.TopItem())
	assert.False(t, tile.TopItemSelected())
}

func TestTile_DeepCopy(t *testing.T) {
	tile := NewTile(testPos)
	tile.Flags = 1
	tile.AddItem(newTestItem(t, itemtype.GrassID))
	shovel := newTestItem(t, itemtype.ShovelID)
	shovel.SetAttribute(AttrText, StringAttribute("dig"))
	tile.AddItem(shovel)
	tile.AddItem(newTestItem(t, itemtype.LadderID))
	tile.SelectItem(1)

	copied := tile.DeepCopy()
	assert.True(t, tile.Equal(copied), "Копия наблюдаемо идентична")
	assert.Equal(t, tile.SelectionCount(), copied.SelectionCount())
	assert.Equal(t, shovel.Guid(), copied.Items()[1].Guid())
	assert.Equal(t, 2, Guids.Refs(shovel.Guid()))

	copied.Items()[1].SetAttribute(AttrText, StringAttribute("changed"))
	text, _ := shovel.Attribute(AttrText)
	s, _ := text.AsString()
	assert.Equal(t, "dig", s, "Атрибуты оригинала не меняются")

	copied.RemoveItem(1)
	assert.Len(t, tile.Items(), 2)
	assert.Equal(t, 1, Guids.Refs(shovel.Guid()))
}

func TestTile_MoveSelected(t *testing.T) {
	from := NewTile(testPos)
	from.AddItem(newTestItem(t, itemtype.GrassID))
	from.AddItem(newTestItem(t, itemtype.ShovelID))
	from.AddItem(newTestItem(t, itemtype.GoldCoinID))
	from.SelectItem(1)

	to := NewTile(testPos.Add(vec.Position{X: 1}))
	to.AddItem(newTestItem(t, itemtype.SandID))

	from.MoveSelected(to)
	assert.Equal(t, []itemtype.ID{itemtype.ShovelID}, serverIDs(from))
	assert.Equal(t, []itemtype.ID{itemtype.GoldCoinID}, serverIDs(to))
	assert.Equal(t, itemtype.SandID, to.Ground().ServerID(), "Невыделенная земля не переносится")
	assert.Equal(t, 0, from.SelectionCount())
	assert.Equal(t, 1, to.SelectionCount())

	t.Run("выделенная земля очищает стек назначения", func(t *testing.T) {
		from.SelectAll()
		from.MoveSelected(to)
		assert.True(t, from.IsEmpty())
		assert.Equal(t, itemtype.GrassID, to.Ground().ServerID())
		assert.Equal(t, []itemtype.ID{itemtype.ShovelID}, serverIDs(to))
		assert.Equal(t, countSelected(to), to.SelectionCount())
	})
}

func TestTile_TopElevation(t *testing.T) {
	tile := NewTile(testPos)
	tile.AddItem(newTestItem(t, itemtype.TableID))
	tile.AddItem(newTestItem(t, itemtype.TableID))
	tile.AddItem(newTestItem(t, itemtype.ShovelID))
	assert.Equal(t, 16, tile.TopElevation())
	assert.Equal(t, 3, tile.EntityCount())
}

func TestTileLocation(t *testing.T) {
	m := NewMap(100, 100)
	loc := m.GetOrCreateLocation(vec.Position{X: 5, Y: 5, Z: 7})

	tile := NewTile(vec.Position{X: 5, Y: 5, Z: 7})
	tile.AddItem(newTestItem(t, itemtype.GrassID))
	require.NoError(t, loc.ReplaceTile(tile))
	assert.True(t, loc.HasTile())

	err := loc.ReplaceTile(NewTile(vec.Position{X: 6, Y: 5, Z: 7}))
	assert.ErrorIs(t, err, ErrPositionMismatch)
	assert.Same(t, tile, loc.Tile(), "Ошибка не меняет слот")

	_, err = loc.SwapTile(NewTile(vec.Position{X: 1, Y: 1, Z: 7}))
	assert.ErrorIs(t, err, ErrPositionMismatch)

	old, err := loc.SwapTile(nil)
	require.NoError(t, err)
	assert.Same(t, tile, old)
	assert.False(t, loc.HasTile())

	other := NewTile(vec.Position{X: 9, Y: 9, Z: 7})
	loc.SetTile(other)
	assert.Equal(t, loc.Position(), other.Position(), "SetTile переносит тайл в позицию слота")

	assert.Same(t, other, loc.DropTile())
	assert.Nil(t, loc.Tile())
}
