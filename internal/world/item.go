package world

import (
	"fmt"

	"github.com/annel0/map-editor/internal/world/itemtype"
)

// Item экземпляр предмета на карте.
// Тип предмета принадлежит внешнему каталогу, экземпляр владеет только своим состоянием.
type Item struct {
	Type       *itemtype.ItemType
	guid       Guid
	subtype    uint8
	attributes Attributes
	data       Payload

	Selected bool
}

// NewItem создаёт экземпляр предмета указанного типа с новым guid
func NewItem(t *itemtype.ItemType) *Item {
	item := &Item{Type: t, guid: Guids.Acquire()}
	if t.Stackable {
		item.subtype = 1
	}

	switch t.Kind {
	case itemtype.KindContainer:
		item.data = &Container{owner: item.guid, volume: t.Volume}
	case itemtype.KindTeleport:
		item.data = &Teleport{}
	case itemtype.KindDoor:
		item.data = &HouseDoor{}
	case itemtype.KindDepot:
		item.data = &Depot{}
	}
	return item
}

// ServerID возвращает идентификатор типа предмета
func (it *Item) ServerID() itemtype.ID { return it.Type.ID }

// Guid возвращает guid экземпляра
func (it *Item) Guid() Guid { return it.guid }

// IsGround true для предметов-земли
func (it *Item) IsGround() bool { return it.Type.Ground }

// Subtype возвращает байт количества/подтипа
func (it *Item) Subtype() uint8 { return it.subtype }

// SetSubtype задаёт байт количества/подтипа
func (it *Item) SetSubtype(v uint8) { it.subtype = v }

// Count возвращает количество для стекуемых предметов и 1 для остальных
func (it *Item) Count() int {
	if it.Type.Stackable {
		return int(it.subtype)
	}
	return 1
}

// HasAttributes сообщает, есть ли у предмета атрибуты
func (it *Item) HasAttributes() bool { return len(it.attributes) > 0 }

// Attributes возвращает карту атрибутов; изменять её можно только через SetAttribute
func (it *Item) Attributes() Attributes { return it.attributes }

// Attribute возвращает атрибут по имени
func (it *Item) Attribute(key AttributeKey) (Attribute, bool) {
	a, ok := it.attributes[key]
	return a, ok
}

// SetAttribute устанавливает атрибут
func (it *Item) SetAttribute(key AttributeKey, value Attribute) {
	if it.attributes == nil {
		it.attributes = make(Attributes)
	}
	it.attributes[key] = value
}

// RemoveAttribute удаляет атрибут
func (it *Item) RemoveAttribute(key AttributeKey) {
	delete(it.attributes, key)
	if len(it.attributes) == 0 {
		it.attributes = nil
	}
}

// ActionID возвращает action id (0 если не задан)
func (it *Item) ActionID() uint16 {
	if v, ok := it.attributes[AttrActionID].AsInt(); ok {
		return uint16(v)
	}
	return 0
}

// UniqueID возвращает unique id (0 если не задан)
func (it *Item) UniqueID() uint16 {
	if v, ok := it.attributes[AttrUniqueID].AsInt(); ok {
		return uint16(v)
	}
	return 0
}

// Data возвращает дополнительные данные предмета (nil если нет)
func (it *Item) Data() Payload { return it.data }

// SetData заменяет дополнительные данные предмета
func (it *Item) SetData(p Payload) {
	if c, ok := p.(*Container); ok {
		c.owner = it.guid
	}
	it.data = p
}

// Container возвращает содержимое контейнера или nil
func (it *Item) Container() *Container {
	c, _ := it.data.(*Container)
	return c
}

// Teleport возвращает данные телепорта или nil
func (it *Item) Teleport() *Teleport {
	t, _ := it.data.(*Teleport)
	return t
}

// HouseDoor возвращает данные двери или nil
func (it *Item) HouseDoor() *HouseDoor {
	d, _ := it.data.(*HouseDoor)
	return d
}

// Depot возвращает данные депо или nil
func (it *Item) Depot() *Depot {
	d, _ := it.data.(*Depot)
	return d
}

// Copy создаёт глубокую копию предмета.
// guid не меняется, трекер получает новую ссылку.
func (it *Item) Copy() *Item {
	Guids.Retain(it.guid)

	out := &Item{
		Type:       it.Type,
		guid:       it.guid,
		subtype:    it.subtype,
		attributes: it.attributes.Clone(),
		Selected:   it.Selected,
	}
	if it.data != nil {
		out.data = it.data.clonePayload()
	}
	return out
}

// Release освобождает ссылку экземпляра на guid (рекурсивно для содержимого)
func (it *Item) Release() {
	if c := it.Container(); c != nil {
		for _, child := range c.items {
			child.Release()
		}
	}
	Guids.Release(it.guid)
}

// Equal сравнивает наблюдаемое состояние двух экземпляров
func (it *Item) Equal(other *Item) bool {
	if it == nil || other == nil {
		return it == other
	}
	if it.Type != other.Type || it.guid != other.guid || it.subtype != other.subtype || it.Selected != other.Selected {
		return false
	}
	if !it.attributes.Equal(other.attributes) {
		return false
	}
	if it.data == nil || other.data == nil {
		return it.data == nil && other.data == nil
	}
	return it.data.equalPayload(other.data)
}

// FindByGuid ищет предмет с указанным guid среди себя и вложенных предметов
func (it *Item) FindByGuid(g Guid) *Item {
	if it.guid == g {
		return it
	}
	if c := it.Container(); c != nil {
		for _, child := range c.items {
			if found := child.FindByGuid(g); found != nil {
				return found
			}
		}
	}
	return nil
}

// attach привязывает контейнер (если он есть) к новому логическому родителю
func (it *Item) attach(parent ParentRef) {
	c := it.Container()
	if c == nil {
		return
	}
	c.Parent = parent
	c.setPosition(parent.Position)
}

func (it *Item) String() string {
	return fmt.Sprintf("Item{id=%d guid=%d subtype=%d}", it.Type.ID, it.guid, it.subtype)
}
