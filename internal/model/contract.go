package model

import (
	"sort"
	"time"
)

// Field is a canonical, publisher-independent column identifier
type Field string

const (
	FieldEntityID        Field = "nipc_adjudicante"
	FieldEntityName      Field = "nome_adjudicante"
	FieldSupplierID      Field = "nipc_adjudicatario"
	FieldSupplierName    Field = "nome_adjudicatario"
	FieldProcedureType   Field = "tipo_procedimento"
	FieldObject          Field = "objeto"
	FieldPrice           Field = "preco"
	FieldAwardDate       Field = "data_celebracao"
	FieldContractType    Field = "tipo_contrato"
	FieldExecutionPlace  Field = "local_execucao"
	FieldEffectivePrice  Field = "preco_efetivo"
	FieldPublicationDate Field = "data_publicacao"

	// FieldAwardMonth is derived from FieldAwardDate, never bound to a column
	FieldAwardMonth Field = "mes_celebracao"
)

// Amount is a price cell: either a valid number or missing
type Amount struct {
	value float64
	valid bool
}

// ValidAmount wraps a parsed number
func ValidAmount(v float64) Amount { return Amount{value: v, valid: true} }

// MissingAmount marks an absent or unparseable number
func MissingAmount() Amount { return Amount{} }

// Get returns the value and whether it is valid
func (a Amount) Get() (float64, bool) { return a.value, a.valid }

// Valid reports whether the amount holds a number
func (a Amount) Valid() bool { return a.valid }

// Date is a calendar date cell: either valid or missing
type Date struct {
	value time.Time
	valid bool
}

// ValidDate wraps a parsed date, truncated to the calendar day in UTC
func ValidDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{value: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), valid: true}
}

// MissingDate marks an absent or unparseable date
func MissingDate() Date { return Date{} }

// Get returns the date and whether it is valid
func (d Date) Get() (time.Time, bool) { return d.value, d.valid }

// Valid reports whether the date is set
func (d Date) Valid() bool { return d.valid }

// ContractRecord is one awarded contract after schema normalization.
// Records are never mutated once built.
type ContractRecord struct {
	EntityID        string
	EntityName      string
	SupplierID      string
	SupplierName    string
	ProcedureType   string
	Object          string
	ContractType    string
	ExecutionPlace  string
	Price           Amount
	EffectivePrice  Amount
	AwardDate       Date
	PublicationDate Date
}

// Text returns the string value of a canonical text field.
// Empty values are reported as missing.
func (r ContractRecord) Text(f Field) (string, bool) {
	var v string
	switch f {
	case FieldEntityID:
		v = r.EntityID
	case FieldEntityName:
		v = r.EntityName
	case FieldSupplierID:
		v = r.SupplierID
	case FieldSupplierName:
		v = r.SupplierName
	case FieldProcedureType:
		v = r.ProcedureType
	case FieldObject:
		v = r.Object
	case FieldContractType:
		v = r.ContractType
	case FieldExecutionPlace:
		v = r.ExecutionPlace
	case FieldAwardMonth:
		if t, ok := r.AwardDate.Get(); ok {
			return MonthKey(t.Month()), true
		}
		return "", false
	default:
		return "", false
	}
	return v, v != ""
}

// Number returns the value of a canonical numeric field
func (r ContractRecord) Number(f Field) (float64, bool) {
	switch f {
	case FieldPrice:
		return r.Price.Get()
	case FieldEffectivePrice:
		return r.EffectivePrice.Get()
	default:
		return 0, false
	}
}

// MonthKey renders a month as a zero-padded, sortable key ("01".."12")
func MonthKey(m time.Month) string {
	return string([]byte{'0' + byte(m)/10, '0' + byte(m)%10})
}

// Dataset is the canonical dataset: ordered records plus the canonical
// fields that were bound to a source column.
type Dataset struct {
	Records []ContractRecord
	Fields  map[Field]bool
}

// NewDataset builds a dataset with the given bound fields
func NewDataset(records []ContractRecord, fields ...Field) *Dataset {
	set := make(map[Field]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return &Dataset{Records: records, Fields: set}
}

// Has reports whether every given field is bound
func (d *Dataset) Has(fields ...Field) bool {
	if d == nil {
		return false
	}
	for _, f := range fields {
		if f == FieldAwardMonth {
			f = FieldAwardDate
		}
		if !d.Fields[f] {
			return false
		}
	}
	return true
}

// FirstOf returns the first bound field among candidates
func (d *Dataset) FirstOf(candidates ...Field) (Field, bool) {
	for _, f := range candidates {
		if d.Has(f) {
			return f, true
		}
	}
	return "", false
}

// BoundFields returns the bound fields in sorted order
func (d *Dataset) BoundFields() []Field {
	if d == nil {
		return nil
	}
	out := make([]Field, 0, len(d.Fields))
	for f, ok := range d.Fields {
		if ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of records
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Table is a decoded tabular source: header plus rows of raw cells.
// Produced by a loader, consumed by the schema normalizer.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}
