package vec

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosition_Arithmetic(t *testing.T) {
	p := NewPosition(10, 20, GroundFloor)
	delta := Position{X: 1, Y: -2, Z: 0}

	assert.Equal(t, Position{X: 11, Y: 18, Z: 7}, p.Add(delta), "Сложение позиций")
	assert.Equal(t, delta, p.Add(delta).Sub(p), "Вычитание должно вернуть смещение")
	assert.True(t, p.Equals(Position{X: 10, Y: 20, Z: 7}))
	assert.Equal(t, Vec2{X: 10, Y: 20}, p.XY())
}

func TestPosition_Validity(t *testing.T) {
	tests := []struct {
		name  string
		pos   Position
		valid bool
	}{
		{"обычная", Position{X: 100, Y: 100, Z: 7}, true},
		{"нулевая", Position{}, true},
		{"отрицательный X", Position{X: -1, Y: 5, Z: 7}, false},
		{"отрицательный Y", Position{X: 5, Y: -1, Z: 7}, false},
		{"этаж за пределами", Position{X: 5, Y: 5, Z: MaxFloor}, false},
		{"отрицательный этаж", Position{X: 5, Y: 5, Z: -1}, false},
		{"больше 16 бит", Position{X: MaxCoord + 1, Y: 0, Z: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.pos.IsValid())
		})
	}

	assert.False(t, Position{X: 50, Y: 10, Z: 7}.InBounds(50, 50), "X == width вне карты")
	assert.True(t, Position{X: 49, Y: 49, Z: 7}.InBounds(50, 50))
}

func TestPosition_Less(t *testing.T) {
	positions := []Position{
		{X: 1, Y: 0, Z: 8},
		{X: 5, Y: 1, Z: 7},
		{X: 9, Y: 0, Z: 7},
		{X: 0, Y: 1, Z: 7},
	}
	slices.SortFunc(positions, func(a, b Position) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})

	assert.Equal(t, []Position{
		{X: 9, Y: 0, Z: 7},
		{X: 0, Y: 1, Z: 7},
		{X: 5, Y: 1, Z: 7},
		{X: 1, Y: 0, Z: 8},
	}, positions)
}

func TestArea(t *testing.T) {
	got := slices.Collect(Area(Position{X: 2, Y: 1, Z: 7}, Position{X: 1, Y: 0, Z: 7}))

	assert.Equal(t, []Position{
		{X: 1, Y: 0, Z: 7},
		{X: 2, Y: 0, Z: 7},
		{X: 1, Y: 1, Z: 7},
		{X: 2, Y: 1, Z: 7},
	}, got, "Обход должен идти по строкам после нормализации углов")
	assert.Equal(t, 4, AreaSize(Position{X: 2, Y: 1, Z: 7}, Position{X: 1, Y: 0, Z: 7}))
}

func TestLine(t *testing.T) {
	t.Run("горизонталь", func(t *testing.T) {
		got := slices.Collect(Line(Position{X: 0, Y: 0, Z: 7}, Position{X: 3, Y: 0, Z: 7}))
		assert.Len(t, got, 4)
		assert.Equal(t, Position{X: 3, Y: 0, Z: 7}, got[3])
	})

	t.Run("диагональ в обратную сторону", func(t *testing.T) {
		got := slices.Collect(Line(Position{X: 3, Y: 3, Z: 6}, Position{X: 0, Y: 0, Z: 6}))
		assert.Equal(t, []Position{
			{X: 3, Y: 3, Z: 6}, {X: 2, Y: 2, Z: 6}, {X: 1, Y: 1, Z: 6}, {X: 0, Y: 0, Z: 6},
		}, got)
	})

	t.Run("одна точка", func(t *testing.T) {
		got := slices.Collect(Line(Position{X: 5, Y: 5, Z: 7}, Position{X: 5, Y: 5, Z: 7}))
		assert.Equal(t, []Position{{X: 5, Y: 5, Z: 7}}, got)
	})
}

func TestVec2_AreaCoords(t *testing.T) {
	v := Vec2{X: 1032, Y: 300}
	assert.Equal(t, Vec2{X: 1024, Y: 256}, v.ToAreaCoords())
	assert.Equal(t, Vec2{X: 8, Y: 44}, v.LocalInArea())
}
