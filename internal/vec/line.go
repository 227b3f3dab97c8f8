package vec

import "iter"

// Line перечисляет позиции отрезка from -> to на этаже from.Z по алгоритму Брезенхэма.
// Обе конечные точки включаются.
func Line(from, to Position) iter.Seq[Position] {
	return func(yield func(Position) bool) {
		x, y := from.X, from.Y
		dx := abs(to.X - x)
		dy := -abs(to.Y - y)
		sx, sy := 1, 1
		if x > to.X {
			sx = -1
		}
		if y > to.Y {
			sy = -1
		}
		err := dx + dy

		for {
			if !yield(Position{X: x, Y: y, Z: from.Z}) {
				return
			}
			if x == to.X && y == to.Y {
				return
			}
			e2 := 2 * err
			if e2 >= dy {
				err += dy
				x += sx
			}
			if e2 <= dx {
				err += dx
				y += sy
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
