package history

import (
	"errors"
	"fmt"

	"github.com/annel0/map-editor/internal/logging"
	"github.com/annel0/map-editor/internal/vec"
	"github.com/annel0/map-editor/internal/world"
)

var (
	// ErrNestedGroup StartGroup внутри открытой группы
	ErrNestedGroup = errors.New("вложенные группы не поддерживаются")
	// ErrNoGroup EndGroup без открытой группы
	ErrNoGroup = errors.New("нет открытой группы")
	// ErrGroupMismatch EndGroup с другим видом группы
	ErrGroupMismatch = errors.New("вид группы не совпадает")
	// ErrInGroup undo/redo внутри открытой группы
	ErrInGroup = errors.New("операция недоступна внутри группы")
	// ErrNothingToUndo стек отмены пуст
	ErrNothingToUndo = errors.New("нечего отменять")
	// ErrNothingToRedo стек повтора пуст
	ErrNothingToRedo = errors.New("нечего повторять")
	// ErrInvalidChange изменение не может быть применено
	ErrInvalidChange = errors.New("некорректное изменение")
	// ErrUnknownChange неизвестный вид изменения
	ErrUnknownChange = errors.New("неизвестный вид изменения")
)

// State состояние истории
type State uint8

const (
	Idle State = iota
	InGroup
)

func (s State) String() string {
	if s == InGroup {
		return "InGroup"
	}
	return "Idle"
}

// History транзакционная история документа: commit, undo, redo.
// Не потокобезопасна: документ изменяется из одного логического потока.
type History struct {
	m         *world.Map
	undo      []*Group
	redo      []*Group
	current   *Group
	observers []Observer
}

// New создаёт историю для карты
func New(m *world.Map) *History {
	return &History{m: m}
}

// Map возвращает документ истории
func (h *History) Map() *world.Map { return h.m }

// State возвращает текущее состояние
func (h *History) State() State {
	if h.current != nil {
		return InGroup
	}
	return Idle
}

// Subscribe добавляет наблюдателя
func (h *History) Subscribe(o Observer) {
	h.observers = append(h.observers, o)
}

// CanUndo есть ли что отменять
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo есть ли что повторять
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// UndoDepth размер стека отмены
func (h *History) UndoDepth() int { return len(h.undo) }

// RedoDepth размер стека повтора
func (h *History) RedoDepth() int { return len(h.redo) }

// StartGroup открывает группу действий
func (h *History) StartGroup(kind GroupKind) error {
	if h.current != nil {
		return fmt.Errorf("%w: открыта %s, запрошена %s", ErrNestedGroup, h.current.Kind, kind)
	}
	h.current = &Group{Kind: kind}
	return nil
}

// EndGroup закрывает группу и помещает её в стек отмены (пустые группы отбрасываются)
func (h *History) EndGroup(kind GroupKind) error {
	if h.current == nil {
		return fmt.Errorf("%w: EndGroup(%s)", ErrNoGroup, kind)
	}
	if h.current.Kind != kind {
		return fmt.Errorf("%w: открыта %s, закрывается %s", ErrGroupMismatch, h.current.Kind, kind)
	}

	group := h.current
	h.current = nil
	if len(group.Actions) > 0 {
		h.undo = append(h.undo, group)
		logging.Debug("history: группа %s (%d изменений) помещена в стек отмены", group.Kind, group.Len())
	}
	return nil
}

// Commit применяет действие и записывает его в историю.
// Вне группы действие образует отдельную группу. Стек повтора очищается.
func (h *History) Commit(a Action) error {
	if len(a.Changes) == 0 {
		return nil
	}

	positions := make([]vec.Position, 0, len(a.Changes))
	for i, c := range a.Changes {
		touched, err := apply(h.m, c)
		if err != nil {
			// откатываем уже применённые изменения действия
			for j := i - 1; j >= 0; j-- {
				if _, rerr := revert(h.m, a.Changes[j]); rerr != nil {
					logging.Error("history: откат после ошибки не удался: %v", rerr)
				}
			}
			return fmt.Errorf("commit %s: %w", a.Kind, err)
		}
		positions = append(positions, touched...)
	}

	h.clearRedo()

	kind := GroupNone
	if h.current != nil {
		h.current.Actions = append(h.current.Actions, a)
		kind = h.current.Kind
	} else {
		h.undo = append(h.undo, &Group{Kind: GroupNone, Actions: []Action{a}})
	}

	h.notify(Event{Kind: EventCommit, Group: kind, Positions: positions})
	return nil
}

// CommitChange применяет одно изменение как отдельное действие
func (h *History) CommitChange(kind ActionKind, c Change) error {
	return h.Commit(NewAction(kind, c))
}

// Undo откатывает последнюю группу
func (h *History) Undo() error {
	if h.current != nil {
		return ErrInGroup
	}
	if len(h.undo) == 0 {
		return ErrNothingToUndo
	}

	group := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]

	var positions []vec.Position
	for i := len(group.Actions) - 1; i >= 0; i-- {
		changes := group.Actions[i].Changes
		for j := len(changes) - 1; j >= 0; j-- {
			touched, err := revert(h.m, changes[j])
			if err != nil {
				return fmt.Errorf("undo %s: %w", group.Kind, err)
			}
			positions = append(positions, touched...)
		}
	}

	h.redo = append(h.redo, group)
	h.notify(Event{Kind: EventUndo, Group: group.Kind, Positions: positions})
	return nil
}

// Redo повторно применяет последнюю отменённую группу
func (h *History) Redo() error {
	if h.current != nil {
		return ErrInGroup
	}
	if len(h.redo) == 0 {
		return ErrNothingToRedo
	}

	group := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]

	var positions []vec.Position
	for _, a := range group.Actions {
		for _, c := range a.Changes {
			touched, err := apply(h.m, c)
			if err != nil {
				return fmt.Errorf("redo %s: %w", group.Kind, err)
			}
			positions = append(positions, touched...)
		}
	}

	h.undo = append(h.undo, group)
	h.notify(Event{Kind: EventRedo, Group: group.Kind, Positions: positions})
	return nil
}

// Clear очищает историю, освобождая снимки всех групп
func (h *History) Clear() {
	h.clearRedo()
	for _, g := range h.undo {
		g.discard()
	}
	h.undo = nil
	if h.current != nil {
		h.current.discard()
		h.current = nil
	}
}

func (h *History) clearRedo() {
	for _, g := range h.redo {
		g.discard()
	}
	h.redo = nil
}

func (h *History) notify(ev Event) {
	for _, o := range h.observers {
		o(ev)
	}
}
