package core

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SchemaFile is the on-disk override format for entity schemas:
//
//	entities:
//	  project:
//	    columns: [name_or_title, osf_link, license]
//	    defaults: [name_or_title, license]
//	    filters: [license]
//	    multi_value: [add_ons]
//
// Kinds not listed keep their built-in schema. Within a listed kind, an empty
// list keeps the built-in value for that field.
type SchemaFile struct {
	Entities map[string]EntitySchema `yaml:"entities"`
}

// LoadSchemaFile reads and applies schema overrides from path.
func LoadSchemaFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	return ApplySchemaYAML(data)
}

// ApplySchemaYAML parses overrides and merges them into the registry.
// Nothing is applied if any entry is invalid.
func ApplySchemaYAML(data []byte) error {
	var file SchemaFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return fmt.Errorf("parse schema file: %w", err)
	}

	merged := make([]EntitySchema, 0, len(file.Entities))
	for name, override := range file.Entities {
		kind, ok := ParseKind(name)
		if !ok || !kind.IsEntity() {
			return fmt.Errorf("parse schema file: %w: %q", ErrUnknownEntity, name)
		}
		base, _ := Get(kind)
		base.Kind = kind
		if override.Title != "" {
			base.Title = override.Title
		}
		if len(override.Columns) > 0 {
			base.Columns = override.Columns
			base.Defaults = nil
		}
		if len(override.Defaults) > 0 {
			base.Defaults = override.Defaults
		}
		if len(override.Filters) > 0 {
			base.Filters = override.Filters
		}
		if len(override.MultiValue) > 0 {
			base.MultiValue = override.MultiValue
		}
		merged = append(merged, base)
	}

	for _, schema := range merged {
		Replace(schema)
	}
	return nil
}
