package otbm

import (
	"fmt"
	"io"
	"strings"

	"github.com/annel0/map-editor/internal/logging"
	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world"
	"github.com/annel0/map-editor/internal/world/itemtype"
)

// Header заголовок документа: корневой узел и метаданные MapData
type Header struct {
	Version     world.Version
	Width       int
	Height      int
	Description string
	SpawnFile   string
	HouseFile   string
}

// Unmarshal строит новую карту из байтов файла. Каталог nil означает встроенный.
func Unmarshal(data []byte, cat *itemtype.Catalog) (*world.Map, error) {
	if cat == nil {
		cat = itemtype.Default()
	}
	root, err := ParseTree(data)
	if err != nil {
		return nil, err
	}

	d := &decoder{cat: cat}
	m, err := d.decode(root)
	if err != nil {
		if m != nil {
			m.Release()
		}
		return nil, err
	}
	logging.Debug("otbm: загружено %d тайлов, %d предметов (%s)", d.tiles, d.items, m.Version.OTBM)
	return m, nil
}

// Decode читает файл из r целиком и строит карту
func Decode(r io.Reader, cat *itemtype.Catalog) (*world.Map, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("чтение данных: %w", err)
	}
	return Unmarshal(data, cat)
}

// ReadHeader разбирает только заголовок документа
func ReadHeader(data []byte) (Header, error) {
	root, err := ParseTree(data)
	if err != nil {
		return Header{}, err
	}
	d := &decoder{}
	h, _, err := d.header(root)
	return h, err
}

type decoder struct {
	cat   *itemtype.Catalog
	m     *world.Map
	tiles int
	items int
}

func (d *decoder) header(root *Node) (Header, *Node, error) {
	var h Header
	if root.Type != NodeRoot && root.Type != NodeRootAlt {
		return h, nil, fmt.Errorf("%w: корень %#02x", ErrUnknownNode, byte(root.Type))
	}

	r := newPropReader(root)
	version, err := r.readU32()
	if err != nil {
		return h, nil, err
	}
	if version > uint32(world.OTBM4) {
		return h, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version+1)
	}
	width, err := r.readU16()
	if err != nil {
		return h, nil, err
	}
	height, err := r.readU16()
	if err != nil {
		return h, nil, err
	}
	major, err := r.readU32()
	if err != nil {
		return h, nil, err
	}
	minor, err := r.readU32()
	if err != nil {
		return h, nil, err
	}

	h.Version = world.Version{OTBM: world.FormatVersion(version), ItemsMajor: major, ItemsMinor: minor}
	h.Width, h.Height = int(width), int(height)

	if len(root.Children) != 1 || root.Children[0].Type != NodeMapData {
		return h, nil, fmt.Errorf("%w: корень должен содержать один узел MapData", ErrMalformed)
	}
	mapData := root.Children[0]

	r = newPropReader(mapData)
	for r.remaining() > 0 {
		attr, _ := r.readU8()
		switch attr {
		case attrDescription:
			s, err := r.readString()
			if err != nil {
				return h, nil, err
			}
			if strings.HasPrefix(s, bannerPrefix) {
				continue
			}
			if h.Description != "" {
				h.Description += "\n"
			}
			h.Description += s
		case attrExtSpawnFile:
			if h.SpawnFile, err = r.readString(); err != nil {
				return h, nil, err
			}
		case attrExtHouseFile:
			if h.HouseFile, err = r.readString(); err != nil {
				return h, nil, err
			}
		default:
			return h, nil, fmt.Errorf("%w: %#02x в MapData", ErrUnknownAttribute, attr)
		}
	}
	return h, mapData, nil
}

func (d *decoder) decode(root *Node) (*world.Map, error) {
	h, mapData, err := d.header(root)
	if err != nil {
		return nil, err
	}
	if major, _ := d.cat.Versions(); major != 0 && h.Version.ItemsMajor > major {
		return nil, fmt.Errorf("%w: файл %d, каталог %d", ErrItemsTooNew, h.Version.ItemsMajor, major)
	}

	m := world.NewMap(h.Width, h.Height)
	m.Version = h.Version
	m.Description = h.Description
	m.SpawnFile = h.SpawnFile
	m.HouseFile = h.HouseFile
	d.m = m

	for _, child := range mapData.Children {
		switch child.Type {
		case NodeTileArea:
			err = d.decodeArea(child)
		case NodeTowns:
			err = d.decodeTowns(child)
		default:
			err = fmt.Errorf("%w: %s(%#02x)@%d в MapData", ErrUnknownNode, child.Type, byte(child.Type), child.Offset)
		}
		if err != nil {
			return m, err
		}
	}
	return m, nil
}

func (d *decoder) decodeArea(area *Node) error {
	r := newPropReader(area)
	baseX, err := r.readU16()
	if err != nil {
		return err
	}
	baseY, err := r.readU16()
	if err != nil {
		return err
	}
	z, err := r.readU8()
	if err != nil {
		return err
	}
	if int(z) >= vec.MaxFloor {
		return fmt.Errorf("%w: этаж %d в TileArea@%d", ErrMalformed, z, area.Offset)
	}

	for _, child := range area.Children {
		if child.Type != NodeTile && child.Type != NodeHouseTile {
			return fmt.Errorf("%w: %s(%#02x)@%d в TileArea", ErrUnknownNode, child.Type, byte(child.Type), child.Offset)
		}
		if err := d.decodeTile(child, int(baseX), int(baseY), int(z)); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) decodeTile(node *Node, baseX, baseY, z int) error {
	r := newPropReader(node)
	lx, err := r.readU8()
	if err != nil {
		return err
	}
	ly, err := r.readU8()
	if err != nil {
		return err
	}
	pos := vec.NewPosition(baseX+int(lx), baseY+int(ly), z)
	if !d.m.InBounds(pos) {
		return fmt.Errorf("%w: %s при размере %dx%d", ErrOutOfBounds, pos, d.m.Width(), d.m.Height())
	}

	loc := d.m.GetOrCreateLocation(pos)
	if loc.HasTile() {
		return fmt.Errorf("%w: тайл %s встречается дважды", ErrMalformed, pos)
	}
	tile := world.NewTile(pos)
	loc.SetTile(tile)

	if node.Type == NodeHouseTile {
		if tile.HouseID, err = r.readU32(); err != nil {
			return err
		}
	}

	for r.remaining() > 0 {
		attr, _ := r.readU8()
		switch attr {
		case attrTileFlags:
			if tile.Flags, err = r.readU32(); err != nil {
				return err
			}
		case attrItem:
			id, err := r.readU16()
			if err != nil {
				return err
			}
			item, err := d.newItem(id)
			if err != nil {
				return fmt.Errorf("тайл %s: %w", pos, err)
			}
			placeItem(tile, item)
		default:
			return fmt.Errorf("%w: %#02x в тайле %s", ErrUnknownAttribute, attr, pos)
		}
	}

	for _, child := range node.Children {
		if child.Type != NodeItem {
			return fmt.Errorf("%w: %s(%#02x)@%d в тайле %s", ErrUnknownNode, child.Type, byte(child.Type), child.Offset, pos)
		}
		item, err := d.decodeItem(child)
		if err != nil {
			return fmt.Errorf("тайл %s: %w", pos, err)
		}
		placeItem(tile, item)
	}
	d.tiles++
	return nil
}

// placeItem первая земля становится землёй тайла, остальное идёт в стопку в порядке файла
func placeItem(tile *world.Tile, item *world.Item) {
	if item.IsGround() && tile.Ground() == nil {
		tile.ReplaceGround(item)
		return
	}
	tile.AppendItem(item)
}

func (d *decoder) newItem(id uint16) (*world.Item, error) {
	t, ok := d.cat.Get(itemtype.ID(id))
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownItem, id)
	}
	d.items++
	return world.NewItem(t), nil
}

func (d *decoder) decodeItem(node *Node) (*world.Item, error) {
	r := newPropReader(node)
	id, err := r.readU16()
	if err != nil {
		return nil, err
	}
	item, err := d.newItem(id)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*world.Item, error) {
		item.Release()
		return nil, err
	}

	for r.remaining() > 0 {
		attr, _ := r.readU8()
		if err := d.decodeItemAttribute(r, item, attr); err != nil {
			return fail(err)
		}
	}

	if len(node.Children) == 0 {
		return item, nil
	}
	c := item.Container()
	if c == nil {
		return fail(fmt.Errorf("%w: предмет %d не контейнер, но содержит узлы", ErrMalformed, id))
	}
	for _, child := range node.Children {
		if child.Type != NodeItem {
			return fail(fmt.Errorf("%w: %s(%#02x)@%d в контейнере", ErrUnknownNode, child.Type, byte(child.Type), child.Offset))
		}
		nested, err := d.decodeItem(child)
		if err != nil {
			return fail(err)
		}
		if err := c.Insert(nested, -1); err != nil {
			nested.Release()
			return fail(fmt.Errorf("контейнер %d: %w", id, err))
		}
	}
	return item, nil
}

func (d *decoder) decodeItemAttribute(r *propReader, item *world.Item, attr byte) error {
	switch attr {
	case attrCount:
		v, err := r.readU8()
		if err != nil {
			return err
		}
		item.SetSubtype(v)

	case attrActionID, attrUniqueID:
		v, err := r.readU16()
		if err != nil {
			return err
		}
		key := world.AttrActionID
		if attr == attrUniqueID {
			key = world.AttrUniqueID
		}
		item.SetAttribute(key, world.IntAttribute(int32(v)))

	case attrText, attrDesc:
		s, err := r.readString()
		if err != nil {
			return err
		}
		key := world.AttrText
		if attr == attrDesc {
			key = world.AttrDescription
		}
		item.SetAttribute(key, world.StringAttribute(s))

	case attrTeleDest:
		x, err := r.readU16()
		if err != nil {
			return err
		}
		y, err := r.readU16()
		if err != nil {
			return err
		}
		z, err := r.readU8()
		if err != nil {
			return err
		}
		item.SetData(&world.Teleport{Destination: vec.NewPosition(int(x), int(y), int(z))})

	case attrHouseDoorID:
		v, err := r.readU8()
		if err != nil {
			return err
		}
		item.SetData(&world.HouseDoor{DoorID: v})

	case attrDepotID:
		v, err := r.readU16()
		if err != nil {
			return err
		}
		item.SetData(&world.Depot{DepotID: v})

	case attrAttributeMap:
		return d.decodeAttributeMap(r, item)

	default:
		return fmt.Errorf("%w: %#02x у предмета %d", ErrUnknownAttribute, attr, item.ServerID())
	}
	return nil
}

func (d *decoder) decodeAttributeMap(r *propReader, item *world.Item) error {
	count, err := r.readU16()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		key, err := r.readString()
		if err != nil {
			return err
		}
		typ, err := r.readU8()
		if err != nil {
			return err
		}

		var a world.Attribute
		switch world.AttributeType(typ) {
		case world.AttrTypeString:
			s, err := r.readLongString()
			if err != nil {
				return err
			}
			a = world.StringAttribute(s)
		case world.AttrTypeInteger:
			v, err := r.readU32()
			if err != nil {
				return err
			}
			a = world.IntAttribute(int32(v))
		case world.AttrTypeDouble:
			v, err := r.readF64()
			if err != nil {
				return err
			}
			a = world.DoubleAttribute(v)
		case world.AttrTypeBoolean:
			v, err := r.readU8()
			if err != nil {
				return err
			}
			a = world.BoolAttribute(v != 0)
		default:
			return fmt.Errorf("%w: тип значения %d атрибута %q", ErrUnknownAttribute, typ, key)
		}
		item.SetAttribute(world.AttributeKey(key), a)
	}
	return nil
}

func (d *decoder) decodeTowns(node *Node) error {
	for _, child := range node.Children {
		if child.Type != NodeTown {
			return fmt.Errorf("%w: %s(%#02x)@%d в Towns", ErrUnknownNode, child.Type, byte(child.Type), child.Offset)
		}
		r := newPropReader(child)
		id, err := r.readU32()
		if err != nil {
			return err
		}
		name, err := r.readString()
		if err != nil {
			return err
		}
		x, err := r.readU16()
		if err != nil {
			return err
		}
		y, err := r.readU16()
		if err != nil {
			return err
		}
		z, err := r.readU8()
		if err != nil {
			return err
		}
		town := world.Town{ID: id, Name: name, Temple: vec.NewPosition(int(x), int(y), int(z))}
		if err := d.m.AddTown(town); err != nil {
			return err
		}
	}
	return nil
}
