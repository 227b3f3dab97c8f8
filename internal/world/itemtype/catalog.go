package itemtype

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateID возвращается при повторной регистрации типа
var ErrDuplicateID = errors.New("тип предмета уже зарегистрирован")

// Catalog хранит типы предметов по идентификатору.
// Каталог является внешним по отношению к карте: документ лишь ссылается на типы.
type Catalog struct {
	mu    sync.RWMutex
	types map[ID]*ItemType

	majorVersion uint32
	minorVersion uint32
	digest       string
}

// NewCatalog создаёт пустой каталог
func NewCatalog() *Catalog {
	return &Catalog{types: make(map[ID]*ItemType)}
}

// Register добавляет тип предмета в каталог
func (c *Catalog) Register(t *ItemType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.types[t.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, t.ID)
	}
	c.types[t.ID] = t
	return nil
}

// Get возвращает тип предмета по ID
func (c *Catalog) Get(id ID) (*ItemType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, exists := c.types[id]
	return t, exists
}

// Valid проверяет, является ли ID допустимым идентификатором типа
func (c *Catalog) Valid(id ID) bool {
	_, exists := c.Get(id)
	return exists
}

// Len возвращает количество зарегистрированных типов
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.types)
}

// IDs возвращает отсортированный список идентификаторов
func (c *Catalog) IDs() []ID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]ID, 0, len(c.types))
	for id := range c.types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Versions возвращает версию схемы предметов (major, minor)
func (c *Catalog) Versions() (uint32, uint32) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.majorVersion, c.minorVersion
}

// SetVersions задаёт версию схемы предметов
func (c *Catalog) SetVersions(major, minor uint32) {
	c.mu.Lock()
	c.majorVersion = major
	c.minorVersion = minor
	c.mu.Unlock()
}

// Digest возвращает blake2b-хэш исходного JSON каталога (пусто для ручных каталогов)
func (c *Catalog) Digest() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.digest
}

var (
	defaultCatalog *Catalog
	defaultOnce    sync.Once
)

// Default возвращает встроенный каталог предметов
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := loadBuiltin()
		if err != nil {
			panic(fmt.Sprintf("встроенный каталог предметов повреждён: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Get возвращает тип из встроенного каталога
func Get(id ID) (*ItemType, bool) {
	return Default().Get(id)
}

// IsValidID проверяет ID по встроенному каталогу
func IsValidID(id ID) bool {
	return Default().Valid(id)
}
