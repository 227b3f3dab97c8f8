package vec

import "iter"

// Area перечисляет все позиции прямоугольного параллелепипеда между from и to
// (включительно) в порядке: этаж, строка, столбец.
func Area(from, to Position) iter.Seq[Position] {
	lo, hi := MinMax(from, to)
	return func(yield func(Position) bool) {
		for z := lo.Z; z <= hi.Z; z++ {
			for y := lo.Y; y <= hi.Y; y++ {
				for x := lo.X; x <= hi.X; x++ {
					if !yield(Position{X: x, Y: y, Z: z}) {
						return
					}
				}
			}
		}
	}
}

// AreaSize возвращает количество позиций в Area(from, to)
func AreaSize(from, to Position) int {
	lo, hi := MinMax(from, to)
	return (hi.X - lo.X + 1) * (hi.Y - lo.Y + 1) * (hi.Z - lo.Z + 1)
}
