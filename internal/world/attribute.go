package world

import (
	"fmt"
	"sort"
)

// AttributeKey имя атрибута предмета
type AttributeKey string

// Известные атрибуты предметов
const (
	AttrActionID    AttributeKey = "aid"
	AttrUniqueID    AttributeKey = "uid"
	AttrText        AttributeKey = "text"
	AttrDescription AttributeKey = "desc"
)

// AttributeType тег типа значения атрибута (совпадает с тегом в файле карты)
type AttributeType uint8

const (
	AttrTypeString  AttributeType = 1
	AttrTypeInteger AttributeType = 2
	AttrTypeDouble  AttributeType = 3
	AttrTypeBoolean AttributeType = 4
)

// Attribute типизированное значение атрибута
type Attribute struct {
	typ AttributeType
	s   string
	i   int32
	f   float64
	b   bool
}

// StringAttribute создаёт строковый атрибут
func StringAttribute(s string) Attribute { return Attribute{typ: AttrTypeString, s: s} }

// IntAttribute создаёт целочисленный атрибут
func IntAttribute(i int32) Attribute { return Attribute{typ: AttrTypeInteger, i: i} }

// DoubleAttribute создаёт атрибут с плавающей точкой
func DoubleAttribute(f float64) Attribute { return Attribute{typ: AttrTypeDouble, f: f} }

// BoolAttribute создаёт логический атрибут
func BoolAttribute(b bool) Attribute { return Attribute{typ: AttrTypeBoolean, b: b} }

// Type возвращает тег типа значения
func (a Attribute) Type() AttributeType { return a.typ }

// AsString возвращает строковое значение
func (a Attribute) AsString() (string, bool) { return a.s, a.typ == AttrTypeString }

// AsInt возвращает целочисленное значение
func (a Attribute) AsInt() (int32, bool) { return a.i, a.typ == AttrTypeInteger }

// AsDouble возвращает значение с плавающей точкой
func (a Attribute) AsDouble() (float64, bool) { return a.f, a.typ == AttrTypeDouble }

// AsBool возвращает логическое значение
func (a Attribute) AsBool() (bool, bool) { return a.b, a.typ == AttrTypeBoolean }

func (a Attribute) String() string {
	switch a.typ {
	case AttrTypeString:
		return fmt.Sprintf("%q", a.s)
	case AttrTypeInteger:
		return fmt.Sprintf("%d", a.i)
	case AttrTypeDouble:
		return fmt.Sprintf("%g", a.f)
	case AttrTypeBoolean:
		return fmt.Sprintf("%t", a.b)
	default:
		return "<invalid>"
	}
}

// Attributes разреженная карта атрибутов предмета
type Attributes map[AttributeKey]Attribute

// Clone возвращает независимую копию карты (nil для пустой)
func (a Attributes) Clone() Attributes {
	if len(a) == 0 {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Keys возвращает имена атрибутов в детерминированном порядке
func (a Attributes) Keys() []AttributeKey {
	keys := make([]AttributeKey, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Equal сравнивает карты атрибутов по значению
func (a Attributes) Equal(other Attributes) bool {
	if len(a) != len(other) {
		return false
	}
	for k, v := range a {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
