package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/integridade/internal/model"
)

// Binding ties one raw source column to a canonical field
type Binding struct {
	Column  string      `json:"column"`
	Index   int         `json:"index"`
	Field   model.Field `json:"field"`
	Synonym string      `json:"synonym"`
}

// Mapping is the outcome of resolving a header against a synonym table
type Mapping struct {
	Bindings []Binding
	Unmapped []string
}

// Column returns the raw column index bound to f
func (m *Mapping) Column(f model.Field) (int, bool) {
	for _, b := range m.Bindings {
		if b.Field == f {
			return b.Index, true
		}
	}
	return -1, false
}

// Renames returns the raw column → canonical field rename
func (m *Mapping) Renames() map[string]model.Field {
	out := make(map[string]model.Field, len(m.Bindings))
	for _, b := range m.Bindings {
		out[b.Column] = b.Field
	}
	return out
}

// Fields returns the bound canonical fields in binding order
func (m *Mapping) Fields() []model.Field {
	out := make([]model.Field, 0, len(m.Bindings))
	for _, b := range m.Bindings {
		out = append(out, b.Field)
	}
	return out
}

// Missing returns the fields of entries that found no column
func (m *Mapping) Missing(entries []Entry) []model.Field {
	var out []model.Field
	for _, e := range entries {
		if _, ok := m.Column(e.Field); !ok {
			out = append(out, e.Field)
		}
	}
	return out
}

// Resolve binds raw columns to canonical fields. A column already named
// after a canonical field binds to it first, so an exported dataset resolves
// back onto the same fields. The remaining fields are visited in table order
// and synonyms in priority order; the first unbound raw column whose key
// matches wins. A bound column is never reconsidered.
func Resolve(columns []string, entries []Entry) *Mapping {
	type colKey struct {
		strict, loose string
	}
	keys := make([]colKey, len(columns))
	for i, c := range columns {
		keys[i] = colKey{strict: strictKey(c), loose: looseKey(c)}
	}

	bound := make([]bool, len(columns))
	done := make(map[model.Field]bool, len(entries))
	m := &Mapping{}
	bind := func(i int, f model.Field, syn string) {
		bound[i] = true
		done[f] = true
		m.Bindings = append(m.Bindings, Binding{Column: columns[i], Index: i, Field: f, Synonym: syn})
	}

	for _, e := range entries {
		name := strictKey(string(e.Field))
		for i := range columns {
			if !bound[i] && keys[i].strict == name {
				bind(i, e.Field, string(e.Field))
				break
			}
		}
	}

	for _, e := range entries {
		if done[e.Field] {
			continue
		}
	synonyms:
		for _, syn := range e.Synonyms {
			s, l := strictKey(syn), looseKey(syn)
			for i := range columns {
				if bound[i] {
					continue
				}
				if keys[i].strict == s || keys[i].loose == l {
					bind(i, e.Field, syn)
					break synonyms
				}
			}
		}
	}

	for i, c := range columns {
		if !bound[i] {
			m.Unmapped = append(m.Unmapped, c)
		}
	}
	return m
}

// strictKey lower-cases, folds diacritics and drops spaces and hyphens,
// keeping underscores
func strictKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.NewReplacer(" ", "", "-", "").Replace(foldDiacritics(s))
}

// foldDiacritics maps "designação" to "designacao"
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// looseKey is strictKey without underscores
func looseKey(s string) string {
	return strings.ReplaceAll(strictKey(s), "_", "")
}
