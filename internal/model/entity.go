package model

// EntityRecord is an awarding body or a supplier as registered with the tax
// authority. TaxID is the natural key.
type EntityRecord struct {
	TaxID   string `json:"tax_id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// EntitySet holds entities keyed by tax id, preserving first-seen order.
// A repeated tax id replaces the earlier record in place (last write wins).
type EntitySet struct {
	order []string
	byID  map[string]EntityRecord

	// Conflicts counts replacements whose address differed from the earlier record
	Conflicts int
}

// NewEntitySet builds a set from records, skipping blank tax ids
func NewEntitySet(records []EntityRecord) *EntitySet {
	s := &EntitySet{byID: make(map[string]EntityRecord, len(records))}
	for _, r := range records {
		s.Add(r)
	}
	return s
}

// Add inserts or replaces an entity. The zero EntitySet is ready to use.
func (s *EntitySet) Add(r EntityRecord) {
	if r.TaxID == "" {
		return
	}
	if s.byID == nil {
		s.byID = make(map[string]EntityRecord)
	}
	if prev, ok := s.byID[r.TaxID]; ok {
		if prev.Address != r.Address {
			s.Conflicts++
		}
	} else {
		s.order = append(s.order, r.TaxID)
	}
	s.byID[r.TaxID] = r
}

// Records returns the entities in first-seen order
func (s *EntitySet) Records() []EntityRecord {
	if s == nil {
		return nil
	}
	out := make([]EntityRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of distinct entities
func (s *EntitySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Canonical fields of an entity register
const (
	FieldTaxID   Field = "nif"
	FieldName    Field = "designacao"
	FieldAddress Field = "morada"
)
