package itemtype

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/crypto/blake2b"
)

//go:embed data/items.json
var builtinItems []byte

//go:embed data/catalog.schema.json
var catalogSchemaJSON []byte

const catalogSchemaURL = "catalog.schema.json"

var (
	catalogSchema     *jsonschema.Schema
	catalogSchemaErr  error
	catalogSchemaOnce sync.Once
)

// catalogFile формат JSON-файла каталога
type catalogFile struct {
	MajorVersion uint32      `json:"major_version"`
	MinorVersion uint32      `json:"minor_version"`
	Items        []itemEntry `json:"items"`
}

type itemEntry struct {
	ID           uint16 `json:"id"`
	ClientID     uint16 `json:"client_id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Ground       bool   `json:"ground"`
	AlwaysOnTop  bool   `json:"always_on_top"`
	GroundBorder bool   `json:"ground_border"`
	Stackable    bool   `json:"stackable"`
	Fluid        bool   `json:"fluid"`
	Splash       bool   `json:"splash"`
	Elevation    int    `json:"elevation"`
	Volume       int    `json:"volume"`
}

func compiledSchema() (*jsonschema.Schema, error) {
	catalogSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(catalogSchemaURL, bytes.NewReader(catalogSchemaJSON)); err != nil {
			catalogSchemaErr = err
			return
		}
		catalogSchema, catalogSchemaErr = compiler.Compile(catalogSchemaURL)
	})
	return catalogSchema, catalogSchemaErr
}

// LoadFile читает каталог из JSON-файла
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения каталога %s: %w", path, err)
	}
	return parseCatalog(data)
}

// LoadJSON читает каталог из потока и проверяет его по JSON-схеме
func LoadJSON(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения каталога: %w", err)
	}
	return parseCatalog(data)
}

func loadBuiltin() (*Catalog, error) {
	return parseCatalog(builtinItems)
}

func parseCatalog(data []byte) (*Catalog, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("ошибка компиляции схемы каталога: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("каталог не является корректным JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("каталог не прошёл проверку схемы: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ошибка разбора каталога: %w", err)
	}

	c := NewCatalog()
	c.SetVersions(file.MajorVersion, file.MinorVersion)
	for _, e := range file.Items {
		kind, ok := ParseKind(e.Kind)
		if !ok {
			return nil, fmt.Errorf("неизвестный вид предмета %q у %d", e.Kind, e.ID)
		}
		t := &ItemType{
			ID:           ID(e.ID),
			ClientID:     e.ClientID,
			Name:         e.Name,
			Kind:         kind,
			Ground:       e.Ground,
			AlwaysOnTop:  e.AlwaysOnTop,
			GroundBorder: e.GroundBorder,
			Stackable:    e.Stackable,
			Fluid:        e.Fluid,
			Splash:       e.Splash,
			Elevation:    e.Elevation,
			Volume:       e.Volume,
		}
		if err := c.Register(t); err != nil {
			return nil, err
		}
	}

	sum := blake2b.Sum256(data)
	c.digest = hex.EncodeToString(sum[:])
	return c, nil
}
