package world

import (
	"iter"
	"sort"

	"github.com/annel0/map-editor/internal/vec"
)

const (
	// floorBits младшие биты X/Y, индексируемые внутри Floor напрямую
	floorBits = 2
	// FloorSize сторона квадрата слотов одного Floor
	FloorSize = 1 << floorBits
	floorMask = FloorSize - 1

	// levelBits биты X и Y, потребляемые одним уровнем дерева
	levelBits = 2
	// ChildrenPerNode количество детей внутреннего узла
	ChildrenPerNode = 1 << (2 * levelBits)
	levelMask       = (1 << levelBits) - 1

	coordBits = 32
	// TreeDepth количество внутренних уровней от корня до листа
	TreeDepth = (coordBits - floorBits) / levelBits
)

// Floor квадрат FloorSize x FloorSize слотов одного этажа внутри листа
type Floor struct {
	baseX, baseY, z int
	locations       [FloorSize * FloorSize]TileLocation
}

func newFloor(baseX, baseY, z int) *Floor {
	f := &Floor{baseX: baseX, baseY: baseY, z: z}
	for dy := 0; dy < FloorSize; dy++ {
		for dx := 0; dx < FloorSize; dx++ {
			f.locations[dy*FloorSize+dx].position = vec.Position{X: baseX + dx, Y: baseY + dy, Z: z}
		}
	}
	return f
}

// Location возвращает слот по локальным координатам
func (f *Floor) Location(dx, dy int) *TileLocation {
	return &f.locations[(dy&floorMask)*FloorSize+(dx&floorMask)]
}

type nodeKind uint8

const (
	nodeInternal nodeKind = iota
	nodeLeaf
)

// node узел дерева: либо внутренний (children), либо лист (floors).
// Ветви создаются по требованию.
type node struct {
	kind     nodeKind
	children *[ChildrenPerNode]*node
	floors   *[vec.MaxFloor]*Floor
}

func newInternal() *node {
	return &node{kind: nodeInternal, children: new([ChildrenPerNode]*node)}
}

func newLeaf() *node {
	return &node{kind: nodeLeaf, floors: new([vec.MaxFloor]*Floor)}
}

func childIndex(ux, uy uint32, shift uint) int {
	return int((uy>>shift)&levelMask)<<levelBits | int((ux>>shift)&levelMask)
}

// quadTree пространственный индекс карты.
// Координаты рассматриваются как беззнаковые 32-битные, поэтому индекс
// принимает любые позиции, включая отрицательные.
type quadTree struct {
	root *node
}

func newQuadTree() quadTree {
	return quadTree{root: newInternal()}
}

// leaf спускается до листа; при create=false ничего не выделяет
func (q *quadTree) leaf(x, y int, create bool) *node {
	ux, uy := uint32(x), uint32(y)
	n := q.root
	for shift := uint(coordBits - levelBits); shift >= floorBits; shift -= levelBits {
		idx := childIndex(ux, uy, shift)
		child := n.children[idx]
		if child == nil {
			if !create {
				return nil
			}
			if shift == floorBits {
				child = newLeaf()
			} else {
				child = newInternal()
			}
			n.children[idx] = child
		}
		n = child
	}
	return n
}

func (q *quadTree) floor(pos vec.Position, create bool) *Floor {
	if !pos.ValidFloor() {
		return nil
	}
	leaf := q.leaf(pos.X, pos.Y, create)
	if leaf == nil {
		return nil
	}
	f := leaf.floors[pos.Z]
	if f == nil && create {
		f = newFloor(pos.X&^floorMask, pos.Y&^floorMask, pos.Z)
		leaf.floors[pos.Z] = f
	}
	return f
}

// location возвращает слот без выделения памяти
func (q *quadTree) location(pos vec.Position) *TileLocation {
	f := q.floor(pos, false)
	if f == nil {
		return nil
	}
	return f.Location(pos.X, pos.Y)
}

// getOrCreateLocation возвращает слот, создавая недостающие узлы
func (q *quadTree) getOrCreateLocation(pos vec.Position) *TileLocation {
	f := q.floor(pos, true)
	if f == nil {
		return nil
	}
	return f.Location(pos.X, pos.Y)
}

type leafRef struct {
	x, y int
	node *node
}

// collectLeaves собирает выделенные листья, пересекающие прямоугольник lo..hi
func (q *quadTree) collectLeaves(n *node, ux, uy uint32, shift uint, lo, hi vec.Position, out []leafRef) []leafRef {
	for idx, child := range n.children {
		if child == nil {
			continue
		}
		cx := ux | uint32(idx&levelMask)<<shift
		cy := uy | uint32(idx>>levelBits)<<shift
		span := int64(1) << shift

		// блоки выровнены и не пересекают границу знака, поэтому сравнение в знаковых координатах корректно
		sx, sy := int64(int32(cx)), int64(int32(cy))
		if sx > int64(hi.X) || sx+span-1 < int64(lo.X) || sy > int64(hi.Y) || sy+span-1 < int64(lo.Y) {
			continue
		}

		if child.kind == nodeLeaf {
			out = append(out, leafRef{x: int(sx), y: int(sy), node: child})
			continue
		}
		out = q.collectLeaves(child, cx, cy, shift-levelBits, lo, hi, out)
	}
	return out
}

// region перечисляет выделенные слоты прямоугольника в порядке этаж, строка, столбец
func (q *quadTree) region(from, to vec.Position) iter.Seq[*TileLocation] {
	lo, hi := vec.MinMax(from, to)
	lo.Z = max(lo.Z, 0)
	hi.Z = min(hi.Z, vec.MaxFloor-1)

	return func(yield func(*TileLocation) bool) {
		leaves := q.collectLeaves(q.root, 0, 0, coordBits-levelBits, lo, hi, nil)
		sort.Slice(leaves, func(i, j int) bool {
			if leaves[i].y != leaves[j].y {
				return leaves[i].y < leaves[j].y
			}
			return leaves[i].x < leaves[j].x
		})

		for z := lo.Z; z <= hi.Z; z++ {
			for start := 0; start < len(leaves); {
				end := start
				for end < len(leaves) && leaves[end].y == leaves[start].y {
					end++
				}
				row := leaves[start:end]
				start = end

				baseY := row[0].y
				for y := max(lo.Y, baseY); y <= min(hi.Y, baseY+FloorSize-1); y++ {
					for _, l := range row {
						f := l.node.floors[z]
						if f == nil {
							continue
						}
						for x := max(lo.X, l.x); x <= min(hi.X, l.x+FloorSize-1); x++ {
							if !yield(f.Location(x, y)) {
								return
							}
						}
					}
				}
			}
		}
	}
}

// all перечисляет все выделенные слоты в порядке обхода дерева
func (q *quadTree) all() iter.Seq[*TileLocation] {
	return func(yield func(*TileLocation) bool) {
		q.walk(q.root, yield)
	}
}

func (q *quadTree) walk(n *node, yield func(*TileLocation) bool) bool {
	if n.kind == nodeLeaf {
		for _, f := range n.floors {
			if f == nil {
				continue
			}
			for i := range f.locations {
				if !yield(&f.locations[i]) {
					return false
				}
			}
		}
		return true
	}
	for _, child := range n.children {
		if child != nil && !q.walk(child, yield) {
			return false
		}
	}
	return true
}
