package itemtype

// ID представляет серверный идентификатор типа предмета
type ID uint16

// Kind определяет, какие дополнительные данные несёт экземпляр предмета
type Kind uint8

const (
	KindNone Kind = iota
	KindContainer
	KindTeleport
	KindDoor
	KindDepot
)

// String возвращает строковое представление вида предмета
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindContainer:
		return "container"
	case KindTeleport:
		return "teleport"
	case KindDoor:
		return "door"
	case KindDepot:
		return "depot"
	default:
		return "unknown"
	}
}

// ParseKind разбирает вид предмета из строки каталога
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "", "none":
		return KindNone, true
	case "container":
		return KindContainer, true
	case "teleport":
		return KindTeleport, true
	case "door":
		return KindDoor, true
	case "depot":
		return KindDepot, true
	default:
		return KindNone, false
	}
}

// ItemType описывает статические свойства типа предмета.
// Экземпляры принадлежат каталогу и не изменяются после регистрации.
type ItemType struct {
	ID       ID
	ClientID uint16
	Name     string
	Kind     Kind

	Ground       bool // предмет является землёй тайла
	AlwaysOnTop  bool // держится поверх обычных предметов
	GroundBorder bool // бордюр земли, лежит ниже прочих always-on-top
	Stackable    bool
	Fluid        bool
	Splash       bool

	Elevation int // на сколько пикселей поднимает предметы сверху
	Volume    int // вместимость контейнера
}

// UsesSubtype сообщает, хранит ли предмет количество/подтип
func (t *ItemType) UsesSubtype() bool {
	return t.Stackable || t.Fluid || t.Splash
}

// IsContainer true для контейнеров
func (t *ItemType) IsContainer() bool {
	return t.Kind == KindContainer
}
