package schema

import (
	"strings"

	"github.com/ppiankov/integridade/internal/model"
)

// Normalize resolves the table header against the contract synonyms and
// builds the canonical dataset, one record per source row.
func Normalize(tbl model.Table, t *Table) (*model.Dataset, *Mapping) {
	m := Resolve(tbl.Columns, t.Contract)
	return Apply(tbl, m), m
}

// Apply builds canonical records from raw rows using a resolved mapping
func Apply(tbl model.Table, m *Mapping) *model.Dataset {
	cell := cellReader(m)

	records := make([]model.ContractRecord, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		text := func(f model.Field) string { return cell(row, f) }
		records = append(records, model.ContractRecord{
			EntityID:        text(model.FieldEntityID),
			EntityName:      text(model.FieldEntityName),
			SupplierID:      text(model.FieldSupplierID),
			SupplierName:    text(model.FieldSupplierName),
			ProcedureType:   text(model.FieldProcedureType),
			Object:          text(model.FieldObject),
			ContractType:    text(model.FieldContractType),
			ExecutionPlace:  text(model.FieldExecutionPlace),
			Price:           ParseAmount(text(model.FieldPrice)),
			EffectivePrice:  ParseAmount(text(model.FieldEffectivePrice)),
			AwardDate:       ParseDate(text(model.FieldAwardDate)),
			PublicationDate: ParseDate(text(model.FieldPublicationDate)),
		})
	}

	return model.NewDataset(records, m.Fields()...)
}

// NormalizeEntities resolves an entity register and returns its records.
// Rows without a tax id are dropped; duplicates resolve last-write-wins.
func NormalizeEntities(tbl model.Table, t *Table) (*model.EntitySet, *Mapping) {
	m := Resolve(tbl.Columns, t.Entity)
	cell := cellReader(m)

	set := model.NewEntitySet(nil)
	for _, row := range tbl.Rows {
		set.Add(model.EntityRecord{
			TaxID:   cell(row, model.FieldTaxID),
			Name:    cell(row, model.FieldName),
			Address: cell(row, model.FieldAddress),
		})
	}
	return set, m
}

func cellReader(m *Mapping) func(row []string, f model.Field) string {
	index := make(map[model.Field]int, len(m.Bindings))
	for _, b := range m.Bindings {
		index[b.Field] = b.Index
	}
	return func(row []string, f model.Field) string {
		i, ok := index[f]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
}
