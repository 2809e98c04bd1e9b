// Package schema reconciles publisher-specific column names into canonical
// fields using a priority-ordered synonym table.
package schema

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/ppiankov/integridade/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed synonyms.yaml
var defaultTable []byte

// Entry maps one canonical field to its known spellings, highest priority first
type Entry struct {
	Field    model.Field `yaml:"field"`
	Synonyms []string    `yaml:"synonyms"`
}

// Table is the versionable synonym table
type Table struct {
	Version  int     `yaml:"version"`
	Contract []Entry `yaml:"contract"`
	Entity   []Entry `yaml:"entity"`
}

// Default returns the built-in table
func Default() *Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("schema: embedded synonym table is invalid: %v", err))
	}
	return t
}

// Parse decodes and validates a YAML synonym table
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode synonym table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Load returns the default table extended with the YAML file at path.
// An empty path returns the default table.
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonym table: %w", err)
	}

	var ext Table
	if err := yaml.Unmarshal(data, &ext); err != nil {
		return nil, fmt.Errorf("decode synonym table %s: %w", path, err)
	}
	t.Extend(&ext)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Extend merges another table into t. Synonyms for a known field are placed
// ahead of the existing ones; unknown fields are appended.
func (t *Table) Extend(other *Table) {
	if other == nil {
		return
	}
	t.Contract = extendEntries(t.Contract, other.Contract)
	t.Entity = extendEntries(t.Entity, other.Entity)
	if other.Version > t.Version {
		t.Version = other.Version
	}
}

func extendEntries(base, add []Entry) []Entry {
	for _, e := range add {
		idx := -1
		for i := range base {
			if base[i].Field == e.Field {
				idx = i
				break
			}
		}
		if idx < 0 {
			base = append(base, Entry{Field: e.Field, Synonyms: append([]string(nil), e.Synonyms...)})
			continue
		}

		seen := make(map[string]bool)
		merged := make([]string, 0, len(e.Synonyms)+len(base[idx].Synonyms))
		for _, s := range append(append([]string(nil), e.Synonyms...), base[idx].Synonyms...) {
			k := strictKey(s)
			if !seen[k] {
				seen[k] = true
				merged = append(merged, s)
			}
		}
		base[idx].Synonyms = merged
	}
	return base
}

// Validate rejects blank fields, fields without synonyms and repeated fields
func (t *Table) Validate() error {
	sections := []struct {
		name    string
		entries []Entry
	}{{"contract", t.Contract}, {"entity", t.Entity}}

	for _, sec := range sections {
		name, entries := sec.name, sec.entries
		seen := make(map[model.Field]bool)
		for i, e := range entries {
			if e.Field == "" {
				return &model.ConfigError{Field: fmt.Sprintf("schema.%s[%d].field", name, i), Value: "", Reason: "must not be empty"}
			}
			if len(e.Synonyms) == 0 {
				return &model.ConfigError{Field: fmt.Sprintf("schema.%s.%s", name, e.Field), Value: 0, Reason: "needs at least one synonym"}
			}
			if seen[e.Field] {
				return &model.ConfigError{Field: fmt.Sprintf("schema.%s.%s", name, e.Field), Value: e.Field, Reason: "declared twice"}
			}
			seen[e.Field] = true
		}
	}
	return nil
}

// Fields lists the canonical contract fields in priority order
func (t *Table) Fields() []model.Field {
	out := make([]model.Field, 0, len(t.Contract))
	for _, e := range t.Contract {
		out = append(out, e.Field)
	}
	return out
}
