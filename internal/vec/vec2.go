package vec

import "math"

// Vec2 представляет 2D координаты в пределах одного этажа
type Vec2 struct {
	X, Y int
}

// ToAreaCoords возвращает базовые координаты области 256x256, в которую попадает точка
func (v Vec2) ToAreaCoords() Vec2 {
	return Vec2{X: v.X & 0xFF00, Y: v.Y & 0xFF00}
}

// LocalInArea возвращает локальные координаты внутри области 256x256
func (v Vec2) LocalInArea() Vec2 {
	return Vec2{X: v.X & 0xFF, Y: v.Y & 0xFF}
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// WithFloor превращает точку в позицию на указанном этаже
func (v Vec2) WithFloor(z int) Position {
	return Position{X: v.X, Y: v.Y, Z: z}
}
