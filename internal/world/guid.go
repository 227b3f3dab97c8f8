package world

import "sync"

// Guid глобальный идентификатор экземпляра предмета.
// Используется внешними подписчиками (анимации, трекинг) и сохраняется при копировании.
type Guid uint32

// GuidTracker выдаёт guid и считает ссылки на них.
// Каждый живой экземпляр Item держит ровно одну ссылку на свой guid.
type GuidTracker struct {
	mu   sync.Mutex
	next Guid
	refs map[Guid]int
}

// NewGuidTracker создаёт пустой трекер
func NewGuidTracker() *GuidTracker {
	return &GuidTracker{refs: make(map[Guid]int)}
}

// Guids трекер, используемый всеми предметами процесса
var Guids = NewGuidTracker()

// Acquire выдаёт новый guid с одной ссылкой
func (t *GuidTracker) Acquire() Guid {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	g := t.next
	t.refs[g] = 1
	return g
}

// Retain добавляет ссылку на guid (копирование предмета)
func (t *GuidTracker) Retain(g Guid) {
	t.mu.Lock()
	t.refs[g]++
	t.mu.Unlock()
}

// Release снимает ссылку; guid освобождается, когда ссылок не осталось
func (t *GuidTracker) Release(g Guid) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.refs[g]
	if !ok {
		return
	}
	if n <= 1 {
		delete(t.refs, g)
		return
	}
	t.refs[g] = n - 1
}

// Refs возвращает количество живых ссылок на guid
func (t *GuidTracker) Refs(g Guid) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refs[g]
}

// Live возвращает количество guid с живыми ссылками
func (t *GuidTracker) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.refs)
}
