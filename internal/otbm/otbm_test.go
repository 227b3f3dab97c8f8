package otbm

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world"
	"github.com/annel0/map-editor/internal/world/itemtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItem(t *testing.T, id itemtype.ID) *world.Item {
	t.Helper()
	typ, ok := itemtype.Get(id)
	require.True(t, ok, "тип %d должен быть в каталоге", id)
	return world.NewItem(typ)
}

// itemSignature описывает наблюдаемое содержимое предмета без guid и выделения
func itemSignature(item *world.Item) string {
	if item == nil {
		return "-"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d", item.ServerID(), item.Subtype())
	for _, key := range item.Attributes().Keys() {
		fmt.Fprintf(&b, " %s=%s", key, item.Attributes()[key])
	}
	switch {
	case item.Teleport() != nil:
		fmt.Fprintf(&b, " tp%s", item.Teleport().Destination)
	case item.HouseDoor() != nil:
		fmt.Fprintf(&b, " door%d", item.HouseDoor().DoorID)
	case item.Depot() != nil:
		fmt.Fprintf(&b, " depot%d", item.Depot().DepotID)
	case item.Container() != nil:
		b.WriteString(" [")
		for _, child := range item.Container().Items() {
			b.WriteString(itemSignature(child) + ";")
		}
		b.WriteString("]")
	}
	return b.String()
}

func tileSignature(tile *world.Tile) string {
	if tile == nil {
		return "<nil>"
	}
	parts := []string{fmt.Sprintf("%s f=%d h=%d g=%s", tile.Position(), tile.Flags, tile.HouseID, itemSignature(tile.Ground()))}
	for _, item := range tile.Items() {
		parts = append(parts, itemSignature(item))
	}
	return strings.Join(parts, " | ")
}

func mapSignature(m *world.Map) []string {
	var out []string
	for tile := range m.Tiles() {
		out = append(out, tileSignature(tile))
	}
	return out
}

func buildSampleMap(t *testing.T) *world.Map {
	t.Helper()
	m := world.NewMap(2048, 2048)
	m.Description = "тестовая карта"
	m.Version.ItemsMajor, m.Version.ItemsMinor = 3, 57

	pos := vec.NewPosition(1032, 1032, 7)
	tile := m.GetOrCreateTile(pos)
	tile.AddItem(newItem(t, itemtype.GrassID))
	tile.AddItem(newItem(t, itemtype.GrassBorderID))
	tile.AddItem(newItem(t, itemtype.LadderID))
	tile.AddItem(newItem(t, itemtype.TableID))

	coins := newItem(t, itemtype.GoldCoinID)
	coins.SetSubtype(37)
	coins.SetAttribute(world.AttrActionID, world.IntAttribute(1000))
	coins.SetAttribute("weight", world.DoubleAttribute(0.25))
	coins.SetAttribute("magic", world.BoolAttribute(true))
	coins.SetAttribute(world.AttrText, world.StringAttribute("привет"))
	tile.AddItem(coins)

	bag := newItem(t, itemtype.BagID)
	inner := newItem(t, itemtype.BagID)
	vial := newItem(t, itemtype.VialID)
	vial.SetSubtype(7)
	require.NoError(t, inner.Container().Insert(vial, -1))
	require.NoError(t, bag.Container().Insert(inner, -1))
	require.NoError(t, bag.Container().Insert(newItem(t, itemtype.ShovelID), -1))
	tile.AddItem(bag)

	house := m.GetOrCreateTile(vec.NewPosition(1033, 1032, 7))
	house.HouseID = 0xFEFF01
	house.Flags = 0x0D
	house.AddItem(newItem(t, itemtype.SandID))
	door := newItem(t, itemtype.DoorID)
	door.HouseDoor().DoorID = 0xFE
	house.AddItem(door)

	tp := m.GetOrCreateTile(vec.NewPosition(300, 255, 6))
	teleport := newItem(t, itemtype.TeleportID)
	teleport.Teleport().Destination = vec.NewPosition(1000, 1001, 7)
	tp.AddItem(teleport)
	depot := newItem(t, itemtype.DepotID)
	depot.Depot().DepotID = 0xFFFD
	tp.AddItem(depot)

	// земля с атрибутами пишется узлом
	ground := newItem(t, itemtype.WaterID)
	ground.SetAttribute(world.AttrUniqueID, world.IntAttribute(4242))
	m.GetOrCreateTile(vec.NewPosition(2000, 2000, 0)).AddItem(ground)

	require.NoError(t, m.AddTown(world.Town{ID: 1, Name: "Тисовый", Temple: vec.NewPosition(1032, 1033, 7)}))
	require.NoError(t, m.AddTown(world.Town{ID: 254, Name: "Порт", Temple: vec.NewPosition(255, 254, 7)}))
	return m
}

func TestWriter_Escaping(t *testing.T) {
	var w nodeWriter
	w.writeU16(0xFEFD)
	w.writeU8(0xFF)
	w.writeU8(0x10)
	assert.Equal(t, []byte{0xFD, 0xFD, 0xFD, 0xFE, 0xFD, 0xFF, 0x10}, w.bytes())

	require.NoError(t, w.writeString(""))
	assert.ErrorIs(t, w.writeString(strings.Repeat("x", 65536)), ErrStringTooLong)
}

func TestParseTree(t *testing.T) {
	var w nodeWriter
	w.startNode(NodeRoot)
	w.writeU32(0xFFFEFDFC)
	w.startNode(NodeMapData)
	w.endNode()
	w.endNode()

	data := append([]byte("OTBM"), w.bytes()...)
	root, err := ParseTree(data)
	require.NoError(t, err)
	assert.Equal(t, NodeRoot, root.Type)
	assert.Equal(t, []byte{0xFC, 0xFD, 0xFE, 0xFF}, root.Data, "экранирование снимается")
	require.Len(t, root.Children, 1)
	assert.Equal(t, NodeMapData, root.Children[0].Type)

	zeroIdent := append([]byte{0, 0, 0, 0}, w.bytes()...)
	_, err = ParseTree(zeroIdent)
	assert.NoError(t, err, "нулевой идентификатор допустим")

	cases := map[string][]byte{
		"идентификатор": append([]byte("XXXX"), w.bytes()...),
		"короткий":      []byte("OT"),
		"незакрытый":    data[:len(data)-1],
		"хвост":         append(append([]byte{}, data...), 0x01),
		"второй корень": append(append([]byte{}, data...), w.bytes()...),
		"экранирование": []byte{'O', 'T', 'B', 'M', NodeStart, 0x00, NodeEscape},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTree(input)
			assert.Error(t, err)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	m := buildSampleMap(t)
	m.Get(vec.NewPosition(1032, 1032, 7)).SelectAll()

	data, err := Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, []byte("OTBM"), data[:4])

	loaded, err := Unmarshal(data, nil)
	require.NoError(t, err)

	assert.Equal(t, mapSignature(m), mapSignature(loaded))
	assert.Equal(t, m.Width(), loaded.Width())
	assert.Equal(t, m.Height(), loaded.Height())
	assert.Equal(t, m.Version, loaded.Version)
	assert.Equal(t, "тестовая карта", loaded.Description, "баннер отбрасывается")
	assert.Equal(t, world.DefaultSpawnFile, loaded.SpawnFile)
	assert.Equal(t, world.DefaultHouseFile, loaded.HouseFile)

	require.Len(t, loaded.Towns(), 2)
	assert.Equal(t, *m.Towns()[0], *loaded.Towns()[0])
	assert.Equal(t, *m.Towns()[1], *loaded.Towns()[1])

	tile := loaded.Get(vec.NewPosition(1032, 1032, 7))
	require.NotNil(t, tile)
	assert.False(t, tile.HasSelection(), "выделение не сохраняется")

	bag := tile.Items()[len(tile.Items())-1]
	require.NotNil(t, bag.Container())
	inner := bag.Container().Items()[0]
	require.NotNil(t, inner.Container())
	cTile, cItem, ok := loaded.ResolveParent(inner.Container().Parent)
	require.True(t, ok, "родитель вложенного контейнера разрешается через карту")
	assert.Same(t, tile, cTile)
	assert.Same(t, bag, cItem)

	again, err := Marshal(loaded)
	require.NoError(t, err)
	assert.Equal(t, data, again, "повторное сохранение побайтно совпадает")
}

func TestVersionGates(t *testing.T) {
	m := buildSampleMap(t)
	pos := vec.NewPosition(1032, 1032, 7)
	coinSig := func(m *world.Map) string {
		for _, item := range m.Get(pos).Items() {
			if item.ServerID() == itemtype.GoldCoinID {
				return itemSignature(item)
			}
		}
		return ""
	}

	t.Run("OTBM3 legacy атрибуты", func(t *testing.T) {
		m.Version.OTBM = world.OTBM3
		data, err := Marshal(m)
		require.NoError(t, err)
		loaded, err := Unmarshal(data, nil)
		require.NoError(t, err)
		assert.Equal(t, `2148/37 aid=1000 text="привет"`, coinSig(loaded), "неизвестные ключи не пишутся до OTBM4")
		assert.Equal(t, world.OTBM3, loaded.Version.OTBM)
	})

	t.Run("OTBM1 без количества", func(t *testing.T) {
		m.Version.OTBM = world.OTBM1
		data, err := Marshal(m)
		require.NoError(t, err)
		loaded, err := Unmarshal(data, nil)
		require.NoError(t, err)
		assert.Equal(t, `2148/1 aid=1000 text="привет"`, coinSig(loaded))
	})

	t.Run("неподдерживаемая версия", func(t *testing.T) {
		m.Version.OTBM = world.FormatVersion(9)
		_, err := Marshal(m)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})
}

func TestMapSizeOutOfRange(t *testing.T) {
	for _, size := range [][2]int{{65536, 16}, {16, 70000}, {-1, 16}} {
		m := world.NewMap(size[0], size[1])
		data, err := Marshal(m)
		assert.ErrorIs(t, err, ErrMapSize, "размер %dx%d", size[0], size[1])
		assert.Nil(t, data)
		m.Release()
	}

	m := world.NewMap(65535, 65535)
	defer m.Release()
	data, err := Marshal(m)
	require.NoError(t, err)
	h, err := ReadHeader(data)
	require.NoError(t, err)
	assert.Equal(t, 65535, h.Width)
	assert.Equal(t, 65535, h.Height)
}

func TestStringTooLong(t *testing.T) {
	m := buildSampleMap(t)
	m.Description = strings.Repeat("a", 70000)

	data, err := Marshal(m)
	assert.ErrorIs(t, err, ErrStringTooLong)
	assert.Nil(t, data)

	var buf bytes.Buffer
	n, err := Encode(&buf, m)
	assert.ErrorIs(t, err, ErrStringTooLong)
	assert.Zero(t, n)
	assert.Zero(t, buf.Len(), "при ошибке ничего не пишется")

	// строковые значения карты атрибутов длинные и ограничение 16 бит их не касается
	m.Description = ""
	item := newItem(t, itemtype.ShovelID)
	item.SetAttribute(world.AttrText, world.StringAttribute(strings.Repeat("b", 70000)))
	m.GetOrCreateTile(vec.NewPosition(5, 5, 7)).AddItem(item)
	data, err = Marshal(m)
	require.NoError(t, err)
	loaded, err := Unmarshal(data, nil)
	require.NoError(t, err)
	text, ok := loaded.Get(vec.NewPosition(5, 5, 7)).TopItem().Attribute(world.AttrText)
	require.True(t, ok)
	s, _ := text.AsString()
	assert.Len(t, s, 70000)
}

func TestTileAreaBoundary(t *testing.T) {
	m := world.NewMap(1024, 1024)
	a := vec.NewPosition(0, 0, 7)
	b := vec.NewPosition(256, 0, 7)
	m.GetOrCreateTile(a).AddItem(newItem(t, itemtype.GrassID))
	m.GetOrCreateTile(b).AddItem(newItem(t, itemtype.SandID))

	data, err := Marshal(m)
	require.NoError(t, err)

	root, err := ParseTree(data)
	require.NoError(t, err)
	var areas []*Node
	for _, child := range root.Children[0].Children {
		if child.Type == NodeTileArea {
			areas = append(areas, child)
		}
	}
	require.Len(t, areas, 2, "тайлы разных блоков 256x256 попадают в разные области")
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x07}, areas[0].Data)
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x00, 0x07}, areas[1].Data)

	loaded, err := Unmarshal(data, nil)
	require.NoError(t, err)
	require.NotNil(t, loaded.Get(a))
	require.NotNil(t, loaded.Get(b))
	assert.Equal(t, itemtype.GrassID, loaded.Get(a).Ground().ServerID())
	assert.Equal(t, itemtype.SandID, loaded.Get(b).Ground().ServerID())
	assert.Equal(t, 2, loaded.TileCount())
}

func TestAreaSplitByFloor(t *testing.T) {
	m := world.NewMap(100, 100)
	m.GetOrCreateTile(vec.NewPosition(10, 10, 7)).AddItem(newItem(t, itemtype.GrassID))
	m.GetOrCreateTile(vec.NewPosition(10, 10, 6)).AddItem(newItem(t, itemtype.GrassID))
	m.GetOrCreateTile(vec.NewPosition(11, 10, 7)).AddItem(newItem(t, itemtype.GrassID))

	data, err := Marshal(m)
	require.NoError(t, err)
	root, err := ParseTree(data)
	require.NoError(t, err)

	areas := 0
	for _, child := range root.Children[0].Children {
		if child.Type == NodeTileArea {
			areas++
		}
	}
	assert.Equal(t, 2, areas, "смена этажа открывает новую область, одинаковые тайлы этажа идут подряд")
}

func TestReaderErrors(t *testing.T) {
	t.Run("неизвестный предмет", func(t *testing.T) {
		m := buildSampleMap(t)
		data, err := Marshal(m)
		require.NoError(t, err)

		cat := itemtype.NewCatalog()
		grass, _ := itemtype.Get(itemtype.GrassID)
		require.NoError(t, cat.Register(grass))
		_, err = Unmarshal(data, cat)
		assert.ErrorIs(t, err, ErrUnknownItem)
	})

	t.Run("тайл вне границ", func(t *testing.T) {
		m := world.NewMap(300, 300)
		m.GetOrCreateTile(vec.NewPosition(280, 10, 7)).AddItem(newItem(t, itemtype.GrassID))
		m.SetSize(100, 100)
		data, err := Marshal(m)
		require.NoError(t, err)
		_, err = Unmarshal(data, nil)
		assert.ErrorIs(t, err, ErrOutOfBounds)
	})

	t.Run("схема предметов новее", func(t *testing.T) {
		m := world.NewMap(10, 10)
		m.Version.ItemsMajor = 99
		data, err := Marshal(m)
		require.NoError(t, err)
		_, err = Unmarshal(data, nil)
		assert.ErrorIs(t, err, ErrItemsTooNew)
	})

	rootWith := func(version uint32, build func(w *nodeWriter)) []byte {
		var w nodeWriter
		w.startNode(NodeRoot)
		w.writeU32(version)
		w.writeU16(10)
		w.writeU16(10)
		w.writeU32(3)
		w.writeU32(57)
		w.startNode(NodeMapData)
		build(&w)
		w.endNode()
		w.endNode()
		return append([]byte("OTBM"), w.bytes()...)
	}

	t.Run("неподдерживаемая версия", func(t *testing.T) {
		_, err := Unmarshal(rootWith(7, func(*nodeWriter) {}), nil)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("неизвестный узел", func(t *testing.T) {
		data := rootWith(3, func(w *nodeWriter) {
			w.startNode(NodeType(0x42))
			w.endNode()
		})
		_, err := Unmarshal(data, nil)
		assert.ErrorIs(t, err, ErrUnknownNode)
	})

	t.Run("неизвестный атрибут", func(t *testing.T) {
		data := rootWith(3, func(w *nodeWriter) {
			w.startNode(NodeTileArea)
			w.writeU16(0)
			w.writeU16(0)
			w.writeU8(7)
			w.startNode(NodeTile)
			w.writeU8(1)
			w.writeU8(1)
			w.writeU8(0x55)
			w.endNode()
			w.endNode()
		})
		_, err := Unmarshal(data, nil)
		assert.ErrorIs(t, err, ErrUnknownAttribute)
	})

	t.Run("обрезанные данные", func(t *testing.T) {
		data := rootWith(3, func(w *nodeWriter) {
			w.startNode(NodeTileArea)
			w.writeU16(0)
			w.endNode()
		})
		_, err := Unmarshal(data, nil)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("вложения в не контейнер", func(t *testing.T) {
		data := rootWith(3, func(w *nodeWriter) {
			w.startNode(NodeTileArea)
			w.writeU16(0)
			w.writeU16(0)
			w.writeU8(7)
			w.startNode(NodeTile)
			w.writeU8(1)
			w.writeU8(1)
			w.startNode(NodeItem)
			w.writeU16(uint16(itemtype.ShovelID))
			w.startNode(NodeItem)
			w.writeU16(uint16(itemtype.ShovelID))
			w.endNode()
			w.endNode()
			w.endNode()
			w.endNode()
		})
		_, err := Unmarshal(data, nil)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestFailedDecodeReleasesGuids(t *testing.T) {
	m := world.NewMap(300, 300)
	m.GetOrCreateTile(vec.NewPosition(10, 10, 7)).AddItem(newItem(t, itemtype.GrassID))
	m.GetOrCreateTile(vec.NewPosition(280, 10, 7)).AddItem(newItem(t, itemtype.GrassID))
	m.SetSize(100, 100)
	data, err := Marshal(m)
	require.NoError(t, err)

	live := world.Guids.Live()
	_, err = Unmarshal(data, nil)
	require.Error(t, err)
	assert.Equal(t, live, world.Guids.Live(), "частично загруженные предметы освобождаются")
}

func TestReadHeader(t *testing.T) {
	m := buildSampleMap(t)
	m.HouseFile = "houses.xml"
	data, err := Marshal(m)
	require.NoError(t, err)

	h, err := ReadHeader(data)
	require.NoError(t, err)
	assert.Equal(t, 2048, h.Width)
	assert.Equal(t, 2048, h.Height)
	assert.Equal(t, world.OTBM4, h.Version.OTBM)
	assert.Equal(t, uint32(57), h.Version.ItemsMinor)
	assert.Equal(t, "тестовая карта", h.Description)
	assert.Equal(t, "houses.xml", h.HouseFile)
}

func TestDecode_Reader(t *testing.T) {
	m := buildSampleMap(t)
	var buf bytes.Buffer
	n, err := Encode(&buf, m)
	require.NoError(t, err)
	assert.Equal(t, buf.Len(), n)

	loaded, err := Decode(&buf, itemtype.Default())
	require.NoError(t, err)
	assert.Equal(t, m.TileCount(), loaded.TileCount())
}
