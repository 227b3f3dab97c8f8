package world

import (
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/annel0/map-editor/internal/vec"
)

// FormatVersion версия формата OTBM, в которой документ сохраняется
type FormatVersion uint32

const (
	OTBM1 FormatVersion = iota
	OTBM2
	OTBM3
	OTBM4
)

func (v FormatVersion) String() string {
	return fmt.Sprintf("OTBM%d", uint32(v)+1)
}

// Version версия документа: формат файла и схема предметов
type Version struct {
	OTBM       FormatVersion
	ItemsMajor uint32
	ItemsMinor uint32
}

// Town именованная область карты с позицией храма
type Town struct {
	ID     uint32
	Name   string
	Temple vec.Position
}

// ErrDuplicateTown город с таким ID уже существует
var ErrDuplicateTown = errors.New("город с таким ID уже существует")

const (
	DefaultSpawnFile = "map-spawn.xml"
	DefaultHouseFile = "map-house.xml"
)

// Map документ карты: пространственный индекс тайлов и метаданные
type Map struct {
	Name        string
	Description string
	SpawnFile   string
	HouseFile   string
	Version     Version

	width  int
	height int
	towns  map[uint32]*Town
	tree   quadTree
}

// NewMap создаёт пустую карту указанного размера
func NewMap(width, height int) *Map {
	return &Map{
		SpawnFile: DefaultSpawnFile,
		HouseFile: DefaultHouseFile,
		Version:   Version{OTBM: OTBM4},
		width:     width,
		height:    height,
		towns:     make(map[uint32]*Town),
		tree:      newQuadTree(),
	}
}

// Width ширина карты
func (m *Map) Width() int { return m.width }

// Height высота карты
func (m *Map) Height() int { return m.height }

// Depth количество этажей
func (m *Map) Depth() int { return vec.MaxFloor }

// SetSize меняет объявленные размеры карты
func (m *Map) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// InBounds проверяет, что позиция лежит в объявленных границах карты
func (m *Map) InBounds(pos vec.Position) bool {
	return pos.InBounds(m.width, m.height)
}

// Get возвращает тайл позиции или nil. Память не выделяется.
func (m *Map) Get(pos vec.Position) *Tile {
	loc := m.tree.location(pos)
	if loc == nil {
		return nil
	}
	return loc.tile
}

// Location возвращает слот позиции, если он уже создан
func (m *Map) Location(pos vec.Position) *TileLocation {
	return m.tree.location(pos)
}

// GetOrCreateLocation возвращает слот позиции, создавая его при необходимости.
// Повторные вызовы возвращают тот же слот. Для этажа вне [0, MaxFloor) возвращает nil.
func (m *Map) GetOrCreateLocation(pos vec.Position) *TileLocation {
	return m.tree.getOrCreateLocation(pos)
}

// GetOrCreateTile возвращает тайл позиции, создавая пустой при необходимости
func (m *Map) GetOrCreateTile(pos vec.Position) *Tile {
	loc := m.GetOrCreateLocation(pos)
	if loc == nil {
		return nil
	}
	if loc.tile == nil {
		loc.tile = NewTile(pos)
	}
	return loc.tile
}

// IsEmpty true если в позиции нет тайла или тайл пуст
func (m *Map) IsEmpty(pos vec.Position) bool {
	t := m.Get(pos)
	return t == nil || t.IsEmpty()
}

// Region лениво перечисляет созданные слоты прямоугольника from..to
// в порядке этаж, строка, столбец. Каждый вызов даёт новую последовательность.
func (m *Map) Region(from, to vec.Position) iter.Seq[*TileLocation] {
	return m.tree.region(from, to)
}

// Locations перечисляет все созданные слоты в порядке обхода дерева
func (m *Map) Locations() iter.Seq[*TileLocation] {
	return m.tree.all()
}

// Tiles перечисляет все непустые тайлы
func (m *Map) Tiles() iter.Seq[*Tile] {
	return func(yield func(*Tile) bool) {
		for loc := range m.tree.all() {
			if loc.tile == nil || loc.tile.IsEmpty() {
				continue
			}
			if !yield(loc.tile) {
				return
			}
		}
	}
}

// TileCount количество непустых тайлов
func (m *Map) TileCount() int {
	n := 0
	for range m.Tiles() {
		n++
	}
	return n
}

// Bounds возвращает ограничивающий прямоугольник непустых тайлов
func (m *Map) Bounds() (vec.Position, vec.Position, bool) {
	var lo, hi vec.Position
	found := false
	for t := range m.Tiles() {
		p := t.Position()
		if !found {
			lo, hi, found = p, p, true
			continue
		}
		lo, _ = vec.MinMax(lo, p)
		_, hi = vec.MinMax(hi, p)
	}
	return lo, hi, found
}

// AddTown добавляет город
func (m *Map) AddTown(t Town) error {
	if _, exists := m.towns[t.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateTown, t.ID)
	}
	m.towns[t.ID] = &t
	return nil
}

// Town возвращает город по ID
func (m *Map) Town(id uint32) (*Town, bool) {
	t, ok := m.towns[id]
	return t, ok
}

// RemoveTown удаляет город
func (m *Map) RemoveTown(id uint32) {
	delete(m.towns, id)
}

// Towns возвращает города, отсортированные по ID
func (m *Map) Towns() []*Town {
	out := make([]*Town, 0, len(m.towns))
	for _, t := range m.towns {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ResolveParent разрешает ссылку на родителя контейнера через документ.
// Для ParentTile возвращает тайл, для ParentContainer: тайл и предмет-контейнер.
func (m *Map) ResolveParent(ref ParentRef) (*Tile, *Item, bool) {
	if ref.Kind == ParentNone {
		return nil, nil, false
	}
	tile := m.Get(ref.Position)
	if tile == nil {
		return nil, nil, false
	}
	if ref.Kind == ParentTile {
		return tile, nil, true
	}
	item := tile.FindByGuid(ref.Container)
	if item == nil || item.Container() == nil {
		return tile, nil, false
	}
	return tile, item, true
}

// Release освобождает все предметы документа
func (m *Map) Release() {
	for loc := range m.tree.all() {
		loc.RemoveTile()
	}
}
