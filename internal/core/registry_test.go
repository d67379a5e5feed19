package core

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

// ----------------------------------------------------------------------------
// Registry Tests
// ----------------------------------------------------------------------------

func TestRegistry_BuiltinSchemas(t *testing.T) {
	all := All()
	if len(all) != len(EntityKinds) {
		t.Fatalf("All() = %d schemas, want %d", len(all), len(EntityKinds))
	}
	for i, schema := range all {
		if schema.Kind != EntityKinds[i] {
			t.Errorf("All()[%d] = %s, want %s", i, schema.Kind, EntityKinds[i])
		}
		if len(schema.Defaults) == 0 {
			t.Errorf("%s has no defaults", schema.Kind)
		}
	}

	project, ok := Get(KindProject)
	if !ok {
		t.Fatal("project schema not registered")
	}
	if !project.IsMultiValue("add_ons") || project.IsMultiValue("license") {
		t.Errorf("MultiValue = %v", project.MultiValue)
	}
}

func TestRegistry_RegisterPanics(t *testing.T) {
	t.Cleanup(ResetSchemas)

	tests := []struct {
		name   string
		schema EntitySchema
	}{
		{name: "duplicate", schema: EntitySchema{Kind: KindProject}},
		{name: "not an entity", schema: EntitySchema{Kind: KindSummary}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("Register(%s) did not panic", tt.schema.Kind)
				}
			}()
			Register(tt.schema)
		})
	}
}

func TestRegistry_DefaultsFallBackToColumns(t *testing.T) {
	t.Cleanup(ResetSchemas)

	Replace(EntitySchema{Kind: KindPreprint, Columns: []string{"a", "b"}})
	got, _ := Get(KindPreprint)
	if !reflect.DeepEqual(got.Defaults, []string{"a", "b"}) {
		t.Errorf("Defaults = %v, want [a b]", got.Defaults)
	}
}

func TestRegistry_ReplaceNeverLeavesGap(t *testing.T) {
	t.Cleanup(ResetSchemas)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if _, ok := Get(KindProject); !ok {
				t.Error("Get(project) found no schema during Replace")
				return
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		Replace(EntitySchema{Kind: KindProject, Title: "Projects", Columns: []string{"a"}})
	}
	close(done)
	wg.Wait()
}

func TestColumnLabel(t *testing.T) {
	tests := []struct {
		col  string
		want string
	}{
		{ColNameOrTitle, "Name / Title"},
		{"storage_region", "Storage region"},
		{"month_last_login", "Month Last Login"},
		{"x", "X"},
	}
	for _, tt := range tests {
		if got := ColumnLabel(tt.col); got != tt.want {
			t.Errorf("ColumnLabel(%q) = %q, want %q", tt.col, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// Schema File Tests
// ----------------------------------------------------------------------------

func TestApplySchemaYAML(t *testing.T) {
	t.Cleanup(ResetSchemas)

	err := ApplySchemaYAML([]byte(`
entities:
  Project:
    title: Research Projects
    columns: [name_or_title, license, funder_name]
    filters: [license]
  preprint:
    defaults: [name_or_title]
`))
	if err != nil {
		t.Fatalf("ApplySchemaYAML: %v", err)
	}

	project, _ := Get(KindProject)
	if project.Title != "Research Projects" {
		t.Errorf("Title = %q", project.Title)
	}
	if !reflect.DeepEqual(project.Defaults, project.Columns) {
		t.Errorf("new columns without defaults should default to all: %v", project.Defaults)
	}
	if !project.IsMultiValue("funder_name") {
		t.Error("unset multi_value should keep the built-in list")
	}

	preprint, _ := Get(KindPreprint)
	if !reflect.DeepEqual(preprint.Defaults, []string{"name_or_title"}) {
		t.Errorf("preprint defaults = %v", preprint.Defaults)
	}
	if preprint.Title != "Preprints" {
		t.Errorf("preprint title = %q, want built-in", preprint.Title)
	}
}

func TestApplySchemaYAML_Invalid(t *testing.T) {
	t.Cleanup(ResetSchemas)

	tests := []struct {
		name    string
		yaml    string
		unknown bool
	}{
		{name: "unknown kind", yaml: "entities:\n  widget:\n    title: W\n", unknown: true},
		{name: "summary kind", yaml: "entities:\n  summary:\n    title: S\n", unknown: true},
		{name: "unknown field", yaml: "entities:\n  project:\n    colums: [a]\n"},
		{name: "malformed", yaml: "entities: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ApplySchemaYAML([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.unknown && !errors.Is(err, ErrUnknownEntity) {
				t.Errorf("error = %v, want ErrUnknownEntity", err)
			}
		})
	}

	// Nothing from a rejected file is applied.
	err := ApplySchemaYAML([]byte("entities:\n  project:\n    title: Changed\n  widget:\n    title: W\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if project, _ := Get(KindProject); project.Title != "Projects" {
		t.Errorf("partial apply: Title = %q", project.Title)
	}
}

func TestLoadSchemaFile(t *testing.T) {
	t.Cleanup(ResetSchemas)

	path := filepath.Join(t.TempDir(), "schemas.yaml")
	if err := os.WriteFile(path, []byte("entities:\n  user:\n    filters: [department, orcid_id]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadSchemaFile(path); err != nil {
		t.Fatalf("LoadSchemaFile: %v", err)
	}
	user, _ := Get(KindUser)
	if !reflect.DeepEqual(user.Filters, []string{"department", "orcid_id"}) {
		t.Errorf("Filters = %v", user.Filters)
	}

	if err := LoadSchemaFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
