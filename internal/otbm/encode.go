package otbm

import (
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/annel0/map-editor/internal/logging"
	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world"
)

// Marshal кодирует карту в байты в версии формата m.Version.OTBM.
// При ошибке результат не возвращается целиком.
func Marshal(m *world.Map) ([]byte, error) {
	e := &encoder{m: m, version: m.Version.OTBM}
	if err := e.encode(); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(Identifier)+e.w.buf.Len())
	out = append(out, Identifier[:]...)
	return append(out, e.w.bytes()...), nil
}

// Encode кодирует карту и пишет результат в w. Ничего не пишет, если кодирование не удалось.
func Encode(w io.Writer, m *world.Map) (int, error) {
	data, err := Marshal(m)
	if err != nil {
		return 0, err
	}
	return w.Write(data)
}

type encoder struct {
	m       *world.Map
	version world.FormatVersion
	w       nodeWriter
	tiles   int
	items   int
}

func (e *encoder) encode() error {
	if e.version > world.OTBM4 {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, e.version)
	}
	width, height := e.m.Width(), e.m.Height()
	if width < 0 || width > math.MaxUint16 || height < 0 || height > math.MaxUint16 {
		return fmt.Errorf("%w: %dx%d", ErrMapSize, width, height)
	}
	w := &e.w

	w.startNode(NodeRoot)
	w.writeU32(uint32(e.version))
	w.writeU16(uint16(width))
	w.writeU16(uint16(height))
	w.writeU32(e.m.Version.ItemsMajor)
	w.writeU32(e.m.Version.ItemsMinor)

	w.startNode(NodeMapData)
	w.writeU8(attrDescription)
	if err := w.writeString(Banner); err != nil {
		return err
	}
	w.writeU8(attrDescription)
	if err := w.writeString(e.m.Description); err != nil {
		return fmt.Errorf("описание карты: %w", err)
	}
	w.writeU8(attrExtSpawnFile)
	if err := w.writeString(e.m.SpawnFile); err != nil {
		return fmt.Errorf("файл спавнов: %w", err)
	}
	w.writeU8(attrExtHouseFile)
	if err := w.writeString(e.m.HouseFile); err != nil {
		return fmt.Errorf("файл домов: %w", err)
	}

	if err := e.encodeTiles(); err != nil {
		return err
	}
	if err := e.encodeTowns(); err != nil {
		return err
	}

	w.endNode() // MapData
	w.endNode() // Root

	logging.Debug("otbm: закодировано %d тайлов, %d предметов, %d байт (%s)", e.tiles, e.items, w.buf.Len(), e.version)
	return nil
}

// sortedTiles упорядочивает тайлы так, чтобы тайлы одной области шли подряд
func (e *encoder) sortedTiles() []*world.Tile {
	var tiles []*world.Tile
	for t := range e.m.Tiles() {
		tiles = append(tiles, t)
	}
	slices.SortFunc(tiles, func(a, b *world.Tile) int {
		pa, pb := a.Position(), b.Position()
		aa, ab := pa.XY().ToAreaCoords(), pb.XY().ToAreaCoords()
		switch {
		case pa.Z != pb.Z:
			return pa.Z - pb.Z
		case aa.Y != ab.Y:
			return aa.Y - ab.Y
		case aa.X != ab.X:
			return aa.X - ab.X
		case pa.Y != pb.Y:
			return pa.Y - pb.Y
		default:
			return pa.X - pb.X
		}
	})
	return tiles
}

func (e *encoder) encodeTiles() error {
	w := &e.w
	open := false
	var area vec.Vec2
	z := -1

	for _, tile := range e.sortedTiles() {
		pos := tile.Position()
		if !pos.IsValid() {
			logging.Warn("otbm: тайл %s вне допустимых координат пропущен", pos)
			continue
		}
		a := pos.XY().ToAreaCoords()
		if !open || a != area || pos.Z != z {
			if open {
				w.endNode()
			}
			w.startNode(NodeTileArea)
			w.writeU16(uint16(a.X))
			w.writeU16(uint16(a.Y))
			w.writeU8(uint8(pos.Z))
			area, z, open = a, pos.Z, true
		}
		if err := e.encodeTile(tile); err != nil {
			return fmt.Errorf("тайл %s: %w", pos, err)
		}
	}
	if open {
		w.endNode()
	}
	return nil
}

func (e *encoder) encodeTile(tile *world.Tile) error {
	w := &e.w
	local := tile.Position().XY()

	if tile.HouseID != 0 {
		w.startNode(NodeHouseTile)
		w.writeU8(uint8(local.X & 0xFF))
		w.writeU8(uint8(local.Y & 0xFF))
		w.writeU32(tile.HouseID)
	} else {
		w.startNode(NodeTile)
		w.writeU8(uint8(local.X & 0xFF))
		w.writeU8(uint8(local.Y & 0xFF))
	}

	if tile.Flags != 0 {
		w.writeU8(attrTileFlags)
		w.writeU32(tile.Flags)
	}

	ground := tile.Ground()
	if ground != nil {
		if e.isPlain(ground) {
			w.writeU8(attrItem)
			w.writeU16(uint16(ground.ServerID()))
			e.items++
		} else if err := e.encodeItem(ground); err != nil {
			return err
		}
	}
	for _, item := range tile.Items() {
		if err := e.encodeItem(item); err != nil {
			return err
		}
	}

	w.endNode()
	e.tiles++
	return nil
}

// isPlain true если предмет описывается одним id
func (e *encoder) isPlain(item *world.Item) bool {
	if item.HasAttributes() || item.Data() != nil {
		return false
	}
	return !(e.version >= world.OTBM2 && item.Type.UsesSubtype())
}

func (e *encoder) encodeItem(item *world.Item) error {
	w := &e.w
	w.startNode(NodeItem)
	w.writeU16(uint16(item.ServerID()))
	e.items++

	if e.version >= world.OTBM2 && item.Type.UsesSubtype() {
		w.writeU8(attrCount)
		w.writeU8(item.Subtype())
	}

	switch {
	case item.Teleport() != nil:
		dst := item.Teleport().Destination
		w.writeU8(attrTeleDest)
		w.writeU16(uint16(dst.X))
		w.writeU16(uint16(dst.Y))
		w.writeU8(uint8(dst.Z))
	case item.HouseDoor() != nil:
		w.writeU8(attrHouseDoorID)
		w.writeU8(item.HouseDoor().DoorID)
	case item.Depot() != nil:
		w.writeU8(attrDepotID)
		w.writeU16(item.Depot().DepotID)
	}

	if item.HasAttributes() {
		if err := e.encodeAttributes(item); err != nil {
			return fmt.Errorf("предмет %d: %w", item.ServerID(), err)
		}
	}

	if c := item.Container(); c != nil {
		for _, child := range c.Items() {
			if err := e.encodeItem(child); err != nil {
				return err
			}
		}
	}

	w.endNode()
	return nil
}

func (e *encoder) encodeAttributes(item *world.Item) error {
	if e.version >= world.OTBM4 {
		return e.encodeAttributeMap(item.Attributes())
	}
	return e.encodeLegacyAttributes(item.Attributes())
}

func (e *encoder) encodeAttributeMap(attrs world.Attributes) error {
	w := &e.w
	keys := attrs.Keys()
	if len(keys) > maxAttributeMap {
		logging.Warn("otbm: атрибутов %d, записано только %d", len(keys), maxAttributeMap)
		keys = keys[:maxAttributeMap]
	}

	w.writeU8(attrAttributeMap)
	w.writeU16(uint16(len(keys)))
	for _, key := range keys {
		a := attrs[key]
		if err := w.writeString(string(key)); err != nil {
			return fmt.Errorf("ключ атрибута: %w", err)
		}
		w.writeU8(uint8(a.Type()))
		switch a.Type() {
		case world.AttrTypeString:
			s, _ := a.AsString()
			if err := w.writeLongString(s); err != nil {
				return fmt.Errorf("атрибут %q: %w", key, err)
			}
		case world.AttrTypeInteger:
			i, _ := a.AsInt()
			w.writeU32(uint32(i))
		case world.AttrTypeDouble:
			f, _ := a.AsDouble()
			w.writeF64(f)
		case world.AttrTypeBoolean:
			b, _ := a.AsBool()
			if b {
				w.writeU8(1)
			} else {
				w.writeU8(0)
			}
		}
	}
	return nil
}

// encodeLegacyAttributes пишет известные атрибуты отдельными полями (до OTBM4)
func (e *encoder) encodeLegacyAttributes(attrs world.Attributes) error {
	w := &e.w
	for _, key := range attrs.Keys() {
		a := attrs[key]
		switch key {
		case world.AttrActionID, world.AttrUniqueID:
			i, ok := a.AsInt()
			if !ok {
				logging.Debug("otbm: атрибут %q не целый, пропущен", key)
				continue
			}
			if key == world.AttrActionID {
				w.writeU8(attrActionID)
			} else {
				w.writeU8(attrUniqueID)
			}
			w.writeU16(uint16(i))
		case world.AttrText, world.AttrDescription:
			s, ok := a.AsString()
			if !ok {
				logging.Debug("otbm: атрибут %q не строка, пропущен", key)
				continue
			}
			if key == world.AttrText {
				w.writeU8(attrText)
			} else {
				w.writeU8(attrDesc)
			}
			if err := w.writeString(s); err != nil {
				return fmt.Errorf("атрибут %q: %w", key, err)
			}
		default:
			logging.Debug("otbm: атрибут %q не поддерживается в %s, пропущен", key, e.version)
		}
	}
	return nil
}

func (e *encoder) encodeTowns() error {
	w := &e.w
	w.startNode(NodeTowns)
	for _, town := range e.m.Towns() {
		w.startNode(NodeTown)
		w.writeU32(town.ID)
		if err := w.writeString(town.Name); err != nil {
			return fmt.Errorf("город %d: %w", town.ID, err)
		}
		w.writeU16(uint16(town.Temple.X))
		w.writeU16(uint16(town.Temple.Y))
		w.writeU8(uint8(town.Temple.Z))
		w.endNode()
	}
	w.endNode()
	return nil
}
