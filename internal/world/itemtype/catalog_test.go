package itemtype

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Greater(t, c.Len(), 10, "Встроенный каталог должен содержать предметы")
	assert.Len(t, c.Digest(), 64, "Digest должен быть hex blake2b-256")

	major, minor := c.Versions()
	assert.Equal(t, uint32(3), major)
	assert.Equal(t, uint32(57), minor)

	shovel, ok := Get(ShovelID)
	require.True(t, ok, "Лопата должна быть в каталоге")
	assert.Equal(t, "shovel", shovel.Name)
	assert.Equal(t, uint16(3457), shovel.ClientID)

	grass, _ := Get(GrassID)
	assert.True(t, grass.Ground)

	border, _ := Get(GrassBorderID)
	assert.True(t, border.AlwaysOnTop)
	assert.True(t, border.GroundBorder)

	coin, _ := Get(GoldCoinID)
	assert.True(t, coin.UsesSubtype(), "Монеты хранят количество")

	bag, _ := Get(BagID)
	assert.True(t, bag.IsContainer())
	assert.Equal(t, 8, bag.Volume)

	assert.False(t, IsValidID(1), "ID 1 не зарегистрирован")
}

func TestLoadJSON(t *testing.T) {
	t.Run("корректный каталог", func(t *testing.T) {
		c, err := LoadJSON(strings.NewReader(`{
			"major_version": 1, "minor_version": 2,
			"items": [{"id": 100, "name": "rock", "ground": true}, {"id": 101, "name": "chest", "kind": "container", "volume": 4}]
		}`))
		require.NoError(t, err)
		assert.Equal(t, 2, c.Len())
		assert.Equal(t, []ID{100, 101}, c.IDs())

		chest, ok := c.Get(101)
		require.True(t, ok)
		assert.Equal(t, KindContainer, chest.Kind)
	})

	t.Run("нарушение схемы", func(t *testing.T) {
		_, err := LoadJSON(strings.NewReader(`{"items": [{"id": 0, "name": "bad"}]}`))
		assert.Error(t, err, "ID 0 запрещён схемой")

		_, err = LoadJSON(strings.NewReader(`{"items": [{"id": 5, "name": "x", "unknown_flag": true}]}`))
		assert.Error(t, err, "Неизвестные поля запрещены схемой")
	})

	t.Run("дубликат ID", func(t *testing.T) {
		_, err := LoadJSON(strings.NewReader(`{"items": [{"id": 7, "name": "a"}, {"id": 7, "name": "b"}]}`))
		assert.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("не JSON", func(t *testing.T) {
		_, err := LoadJSON(strings.NewReader(`items: []`))
		assert.Error(t, err)
	})
}
