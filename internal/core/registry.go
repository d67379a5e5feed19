package core

import (
	"fmt"
	"sync"
)

// EntitySchema declares how one entity kind is browsed: which columns may be
// shown, which are shown by default, and which get filter widgets.
type EntitySchema struct {
	Kind  Kind   `yaml:"-"`
	Title string `yaml:"title"`

	// Columns is the display allowlist in canonical order.
	Columns []string `yaml:"columns"`

	// Defaults are shown when the user has not customized the table.
	Defaults []string `yaml:"defaults"`

	// Filters get select widgets, in this order.
	Filters []string `yaml:"filters"`

	// MultiValue columns hold comma or semicolon joined lists.
	// They filter with substring AND semantics instead of equality.
	MultiValue []string `yaml:"multi_value"`
}

// IsMultiValue reports whether col holds joined lists.
func (s EntitySchema) IsMultiValue(col string) bool {
	for _, c := range s.MultiValue {
		if c == col {
			return true
		}
	}
	return false
}

var (
	registry   = make(map[Kind]EntitySchema)
	registryMu sync.RWMutex
)

// Register adds an entity schema to the registry.
// Panics if the kind is already registered or is not an entity kind.
func Register(schema EntitySchema) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[schema.Kind]; exists {
		panic(fmt.Sprintf("schema already registered: %s", schema.Kind))
	}
	register(schema)
}

// Replace registers schema, overwriting any existing registration for its kind.
// Readers see either the old or the new schema, never neither.
func Replace(schema EntitySchema) {
	registryMu.Lock()
	defer registryMu.Unlock()
	register(schema)
}

// register stores schema. The caller holds registryMu.
func register(schema EntitySchema) {
	if !schema.Kind.IsEntity() {
		panic(fmt.Sprintf("not an entity kind: %q", schema.Kind))
	}

	// Defaults fall back to the whole allowlist
	if len(schema.Defaults) == 0 {
		schema.Defaults = append([]string(nil), schema.Columns...)
	}

	registry[schema.Kind] = schema
}

// Get returns the schema for a kind.
// Returns false if not found.
func Get(kind Kind) (EntitySchema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	schema, ok := registry[kind]
	return schema, ok
}

// All returns all registered schemas in tab order.
func All() []EntitySchema {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntitySchema, 0, len(registry))
	for _, k := range EntityKinds {
		if schema, ok := registry[k]; ok {
			result = append(result, schema)
		}
	}
	return result
}

// Clear removes all registered schemas.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[Kind]EntitySchema)
}
