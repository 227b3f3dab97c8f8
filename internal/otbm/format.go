// Package otbm читает и пишет документ карты в узловом бинарном формате OTBM.
package otbm

import "errors"

// Управляющие байты потока
const (
	NodeStart  byte = 0xFE
	NodeEnd    byte = 0xFF
	NodeEscape byte = 0xFD
)

// Identifier первые четыре байта файла
var Identifier = [4]byte{'O', 'T', 'B', 'M'}

// NodeType тип узла
type NodeType byte

const (
	NodeRoot      NodeType = 0x00
	NodeRootAlt   NodeType = 0x01
	NodeMapData   NodeType = 0x02
	NodeTileArea  NodeType = 0x04
	NodeTile      NodeType = 0x05
	NodeItem      NodeType = 0x06
	NodeTowns     NodeType = 0x0C
	NodeTown      NodeType = 0x0D
	NodeHouseTile NodeType = 0x0E
)

func (t NodeType) String() string {
	switch t {
	case NodeRoot, NodeRootAlt:
		return "Root"
	case NodeMapData:
		return "MapData"
	case NodeTileArea:
		return "TileArea"
	case NodeTile:
		return "Tile"
	case NodeItem:
		return "Item"
	case NodeTowns:
		return "Towns"
	case NodeTown:
		return "Town"
	case NodeHouseTile:
		return "HouseTile"
	default:
		return "Unknown"
	}
}

// Атрибуты узлов
const (
	attrDescription  byte = 0x01
	attrTileFlags    byte = 0x03
	attrActionID     byte = 0x04
	attrUniqueID     byte = 0x05
	attrText         byte = 0x06
	attrDesc         byte = 0x07
	attrTeleDest     byte = 0x08
	attrItem         byte = 0x09
	attrDepotID      byte = 0x0A
	attrExtSpawnFile byte = 0x0B
	attrExtHouseFile byte = 0x0D
	attrHouseDoorID  byte = 0x0E
	attrCount        byte = 0x0F
	attrAttributeMap byte = 0x80
)

const (
	maxShortString  = 0xFFFF
	maxLongString   = 0xFFFFFFFF
	maxAttributeMap = 0xFFFF

	bannerPrefix = "Saved by "
	// Banner строка, которой помечаются сохранённые файлы
	Banner = bannerPrefix + "mapeditor"
)

var (
	// ErrStringTooLong строка не помещается в поле длины
	ErrStringTooLong = errors.New("строка превышает допустимую длину")
	// ErrBadIdentifier неверная сигнатура файла
	ErrBadIdentifier = errors.New("неверный идентификатор файла")
	// ErrMalformed нарушена структура потока узлов
	ErrMalformed = errors.New("повреждённый поток узлов")
	// ErrTruncated данных узла меньше, чем требуется
	ErrTruncated = errors.New("недостаточно данных")
	// ErrUnknownNode неожиданный тип узла
	ErrUnknownNode = errors.New("неизвестный тип узла")
	// ErrUnknownAttribute неизвестный атрибут
	ErrUnknownAttribute = errors.New("неизвестный атрибут")
	// ErrUnknownItem id предмета нет в каталоге
	ErrUnknownItem = errors.New("неизвестный тип предмета")
	// ErrUnsupportedVersion версия формата не поддерживается
	ErrUnsupportedVersion = errors.New("неподдерживаемая версия формата")
	// ErrItemsTooNew файл сохранён с более новой схемой предметов, чем каталог
	ErrItemsTooNew = errors.New("схема предметов файла новее каталога")
	// ErrOutOfBounds тайл вне объявленных размеров карты
	ErrOutOfBounds = errors.New("тайл вне границ карты")
	// ErrMapSize размер карты не помещается в поле u16
	ErrMapSize = errors.New("размер карты вне диапазона 0..65535")
)
