package history

import "github.com/annel0/map-editor/internal/vec"

// ActionKind вид действия
type ActionKind uint8

const (
	ActionSetTile ActionKind = iota
	ActionRemoveTile
	ActionModifyTile
	ActionSelection
	ActionMoveItems
	ActionModifyItem
)

func (k ActionKind) String() string {
	switch k {
	case ActionSetTile:
		return "SetTile"
	case ActionRemoveTile:
		return "RemoveTile"
	case ActionModifyTile:
		return "ModifyTile"
	case ActionSelection:
		return "Selection"
	case ActionMoveItems:
		return "MoveItems"
	case ActionModifyItem:
		return "ModifyItem"
	default:
		return "Unknown"
	}
}

// GroupKind вид пользовательской операции
type GroupKind uint8

const (
	GroupNone GroupKind = iota
	GroupAddMapItem
	GroupRemoveMapItem
	GroupSelection
	GroupMoveItems
	GroupModifyItem
	GroupPaint
	GroupFill
	GroupGenerate
)

func (k GroupKind) String() string {
	switch k {
	case GroupNone:
		return "None"
	case GroupAddMapItem:
		return "AddMapItem"
	case GroupRemoveMapItem:
		return "RemoveMapItem"
	case GroupSelection:
		return "Selection"
	case GroupMoveItems:
		return "MoveItems"
	case GroupModifyItem:
		return "ModifyItem"
	case GroupPaint:
		return "Paint"
	case GroupFill:
		return "Fill"
	case GroupGenerate:
		return "Generate"
	default:
		return "Unknown"
	}
}

// Action упорядоченный набор изменений, применяемых и откатываемых вместе
type Action struct {
	Kind    ActionKind
	Changes []Change
}

// NewAction создаёт действие из изменений
func NewAction(kind ActionKind, changes ...Change) Action {
	return Action{Kind: kind, Changes: changes}
}

// Add добавляет изменение в действие
func (a *Action) Add(c Change) {
	a.Changes = append(a.Changes, c)
}

// Group набор действий одной пользовательской операции
type Group struct {
	Kind    GroupKind
	Actions []Action
}

// Len количество изменений группы
func (g *Group) Len() int {
	n := 0
	for _, a := range g.Actions {
		n += len(a.Changes)
	}
	return n
}

func (g *Group) discard() {
	for _, a := range g.Actions {
		for _, c := range a.Changes {
			discard(c)
		}
	}
}

// EventKind вид события истории
type EventKind uint8

const (
	EventCommit EventKind = iota
	EventUndo
	EventRedo
)

func (k EventKind) String() string {
	switch k {
	case EventCommit:
		return "commit"
	case EventUndo:
		return "undo"
	case EventRedo:
		return "redo"
	default:
		return "unknown"
	}
}

// Event уведомление о применении изменений
type Event struct {
	Kind      EventKind
	Group     GroupKind
	Positions []vec.Position
}

// Observer получает уведомления после каждого commit/undo/redo
type Observer func(ev Event)
