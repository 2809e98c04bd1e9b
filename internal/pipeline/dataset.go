package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ppiankov/integridade/internal/model"
)

// datasetFields fixes the column order of the dataset export
var datasetFields = []model.Field{
	model.FieldEntityID, model.FieldEntityName,
	model.FieldSupplierID, model.FieldSupplierName,
	model.FieldProcedureType, model.FieldContractType,
	model.FieldObject, model.FieldExecutionPlace,
	model.FieldPrice, model.FieldEffectivePrice,
	model.FieldAwardDate, model.FieldPublicationDate,
}

// RenderDataset writes the canonical dataset as CSV
func (r *Renderer) RenderDataset(ds *model.Dataset, path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := r.WriteDataset(f, ds); err != nil {
		return err
	}
	return f.Close()
}

// WriteDataset streams the canonical dataset to w: UTF-8 with BOM, ';'
// separated, one column per bound canonical field named after the field.
// Missing prices and dates are written as empty cells, numbers with a '.'
// decimal point and dates as 2006-01-02.
func (r *Renderer) WriteDataset(w io.Writer, ds *model.Dataset) error {
	var fields []model.Field
	for _, f := range datasetFields {
		if ds.Has(f) {
			fields = append(fields, f)
		}
	}

	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = string(f)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write dataset header: %w", err)
	}

	row := make([]string, len(fields))
	for _, rec := range ds.Records {
		for i, f := range fields {
			row[i] = cellOf(rec, f)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write dataset row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func cellOf(rec model.ContractRecord, f model.Field) string {
	switch f {
	case model.FieldPrice, model.FieldEffectivePrice:
		if v, ok := rec.Number(f); ok {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		return ""
	case model.FieldAwardDate:
		return dateCell(rec.AwardDate)
	case model.FieldPublicationDate:
		return dateCell(rec.PublicationDate)
	}
	v, _ := rec.Text(f)
	return v
}

func dateCell(d model.Date) string {
	if t, ok := d.Get(); ok {
		return t.Format("2006-01-02")
	}
	return ""
}
