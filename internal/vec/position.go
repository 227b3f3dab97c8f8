package vec

import "fmt"

const (
	// MaxFloor количество этажей карты, допустимые значения Z: [0, MaxFloor)
	MaxFloor = 16
	// GroundFloor этаж уровня земли
	GroundFloor = 7
	// MaxCoord максимальная координата, представимая в файле карты
	MaxCoord = 0xFFFF
)

// Position представляет позицию на карте: X, Y и этаж Z.
// Значение неизменяемо и может использоваться как ключ map.
type Position struct {
	X int
	Y int
	Z int
}

// NewPosition создаёт позицию
func NewPosition(x, y, z int) Position {
	return Position{X: x, Y: y, Z: z}
}

// Add складывает две позиции (используется для смещений)
func (p Position) Add(delta Position) Position {
	return Position{X: p.X + delta.X, Y: p.Y + delta.Y, Z: p.Z + delta.Z}
}

// Sub возвращает смещение от other до p
func (p Position) Sub(other Position) Position {
	return Position{X: p.X - other.X, Y: p.Y - other.Y, Z: p.Z - other.Z}
}

// Equals проверяет равенство позиций
func (p Position) Equals(other Position) bool {
	return p == other
}

// XY возвращает проекцию позиции на этаж
func (p Position) XY() Vec2 {
	return Vec2{X: p.X, Y: p.Y}
}

// IsZero true для нулевого смещения
func (p Position) IsZero() bool {
	return p == Position{}
}

// ValidFloor проверяет, что этаж лежит в диапазоне [0, MaxFloor)
func (p Position) ValidFloor() bool {
	return p.Z >= 0 && p.Z < MaxFloor
}

// IsValid проверяет, что позиция может храниться в документе:
// неотрицательные X/Y в пределах 16 бит и корректный этаж.
func (p Position) IsValid() bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= MaxCoord && p.Y <= MaxCoord && p.ValidFloor()
}

// InBounds проверяет, что позиция лежит внутри карты width x height
func (p Position) InBounds(width, height int) bool {
	return p.IsValid() && p.X < width && p.Y < height
}

// Neighbors возвращает четыре соседние позиции на том же этаже
func (p Position) Neighbors() [4]Position {
	return [4]Position{
		{X: p.X, Y: p.Y - 1, Z: p.Z}, // север
		{X: p.X + 1, Y: p.Y, Z: p.Z}, // восток
		{X: p.X, Y: p.Y + 1, Z: p.Z}, // юг
		{X: p.X - 1, Y: p.Y, Z: p.Z}, // запад
	}
}

// Less задаёт порядок обхода: этаж, затем строка (Y), затем столбец (X)
func (p Position) Less(other Position) bool {
	if p.Z != other.Z {
		return p.Z < other.Z
	}
	if p.Y != other.Y {
		return p.Y < other.Y
	}
	return p.X < other.X
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

// MinMax нормализует прямоугольник, заданный двумя углами
func MinMax(a, b Position) (Position, Position) {
	lo := Position{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
	hi := Position{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
	return lo, hi
}
