package editor

import (
	"math/rand"

	"github.com/annel0/map-editor/internal/history"
	"github.com/annel0/map-editor/internal/util"
	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world"
	"github.com/annel0/map-editor/internal/world/itemtype"
)

// Пороги высот для генерации
const (
	WaterMax    = 0.30 // Ниже - вода
	SandMax     = 0.38 // Ниже - песчаный берег
	MountainMin = 0.78 // Выше - горы
)

// TerrainGenerator генерирует землю прямоугольника по шуму Перлина
type TerrainGenerator struct {
	Seed        int64   // Сид для генерации шума
	NoiseScale  float64 // Масштаб основного шума (высота)
	DetailScale float64 // Масштаб шума деталей
	Decoration  float64 // Вероятность предмета-украшения на траве

	height *util.Noise
	detail *util.Noise
}

// NewTerrainGenerator создаёт генератор с настройками по умолчанию
func NewTerrainGenerator(seed int64) *TerrainGenerator {
	return &TerrainGenerator{
		Seed:        seed,
		NoiseScale:  0.05, // Настройка сглаженности ландшафта
		DetailScale: 0.20,
		Decoration:  0.02,
		height:      util.NewNoise(seed),
		detail:      util.NewNoise(seed + 42),
	}
}

// GroundAt возвращает id земли для позиции
func (g *TerrainGenerator) GroundAt(x, y int) itemtype.ID {
	h := g.height.Noise2D(float64(x)*g.NoiseScale, float64(y)*g.NoiseScale)
	switch {
	case h < WaterMax:
		return itemtype.WaterID
	case h < SandMax:
		return itemtype.SandID
	case h >= MountainMin:
		return itemtype.MountainID
	default:
		return itemtype.GrassID
	}
}

// borderFor кромка, которую получает тайл рядом с другой землёй
func borderFor(ground itemtype.ID) (itemtype.ID, bool) {
	switch ground {
	case itemtype.GrassID:
		return itemtype.GrassBorderID, true
	case itemtype.SandID:
		return itemtype.SandBorderID, true
	default:
		return 0, false
	}
}

// tileAt строит содержимое тайла позиции
func (g *TerrainGenerator) tileAt(pos vec.Position, cat *itemtype.Catalog, rng *rand.Rand) *world.Tile {
	ground := g.GroundAt(pos.X, pos.Y)
	t, ok := cat.Get(ground)
	if !ok {
		return nil
	}
	tile := world.NewTile(pos)
	tile.AddItem(world.NewItem(t))

	// кромка, если хоть один сосед другого типа
	if border, ok := borderFor(ground); ok {
		for _, n := range pos.Neighbors() {
			if g.GroundAt(n.X, n.Y) != ground {
				if bt, ok := cat.Get(border); ok {
					tile.AddItem(world.NewItem(bt))
				}
				break
			}
		}
	}

	if ground == itemtype.GrassID && g.detail.Noise2D(float64(pos.X)*g.DetailScale, float64(pos.Y)*g.DetailScale) > 0.5 && rng.Float64() < g.Decoration {
		if dt, ok := cat.Get(itemtype.ShovelID); ok {
			tile.AddItem(world.NewItem(dt))
		}
	}
	return tile
}

// Generate заполняет прямоугольник from..to (этаж from.Z) сгенерированной землёй одной группой.
// Существующие тайлы заменяются. Результат детерминирован для сида.
func (e *MapEditor) Generate(gen *TerrainGenerator, from, to vec.Position) (int, error) {
	lo, hi := vec.MinMax(from, to)
	lo.Z, hi.Z = from.Z, from.Z
	rng := rand.New(rand.NewSource(gen.Seed + int64(lo.X*31) + int64(lo.Y*17)))

	action := history.NewAction(history.ActionSetTile)
	for pos := range vec.Area(lo, hi) {
		if !e.validPosition("Generate", pos) {
			continue
		}
		if tile := gen.tileAt(pos, e.catalog, rng); tile != nil {
			action.Add(history.NewSetTile(tile))
		}
	}
	if len(action.Changes) == 0 {
		return 0, nil
	}

	err := e.group(history.GroupGenerate, func() error {
		return e.history.Commit(action)
	})
	if err != nil {
		return 0, err
	}
	e.log.Info("🌍 Сгенерировано %d тайлов (сид %d)", len(action.Changes), gen.Seed)
	return len(action.Changes), nil
}
