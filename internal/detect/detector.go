// Package detect holds the anomaly detectors. Each detector reads the
// canonical dataset (or the entity register), never mutates it, and returns
// its alerts in a deterministic order.
package detect

import (
	"math"

	"github.com/ppiankov/integridade/internal/model"
)

// Input is what every detector may read
type Input struct {
	Dataset  *model.Dataset
	Entities *model.EntitySet
}

// Detector turns the canonical input into ordered alerts.
// A missing canonical field is reported as *model.MissingFieldError.
type Detector interface {
	Name() string
	Kind() model.AlertKind
	Detect(in Input) ([]model.Alert, error)
}

// HistogramProvider is implemented by detectors that also publish the
// informational global month distribution
type HistogramProvider interface {
	Histogram(ds *model.Dataset) *model.MonthHistogram
}

// All returns every detector configured from thresholds, in report order
func All(th model.ThresholdsConfig) []Detector {
	return []Detector{
		NewFragmentation(th.Fragmentation),
		NewTemporal(th.Temporal),
		NewDominant(th.Dominant),
		NewSharedAddress(th.Address),
		NewDateSequence(th.DateSequence),
	}
}

// entityKeys returns the bound fields that identify an awarding entity
func entityKeys(ds *model.Dataset) []model.Field {
	return boundOf(ds, model.FieldEntityID, model.FieldEntityName)
}

// supplierKeys returns the bound fields that identify a supplier
func supplierKeys(ds *model.Dataset) []model.Field {
	return boundOf(ds, model.FieldSupplierID, model.FieldSupplierName)
}

func boundOf(ds *model.Dataset, candidates ...model.Field) []model.Field {
	var out []model.Field
	for _, f := range candidates {
		if ds.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// requireFields reports the fields that are not bound
func requireFields(name string, ds *model.Dataset, fields ...model.Field) error {
	var missing []model.Field
	for _, f := range fields {
		if !ds.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &model.MissingFieldError{Detector: name, Fields: missing}
	}
	return nil
}

// requireAny fails when none of the candidates is bound
func requireAny(name string, ds *model.Dataset, candidates ...model.Field) error {
	if len(boundOf(ds, candidates...)) == 0 {
		return &model.MissingFieldError{Detector: name, Fields: candidates}
	}
	return nil
}

// subjectOf fills a subject from a group key tuple
func subjectOf(fields []model.Field, key []string) model.Subject {
	var s model.Subject
	for i, f := range fields {
		if i >= len(key) {
			break
		}
		switch f {
		case model.FieldEntityID:
			s.EntityID = key[i]
		case model.FieldEntityName:
			s.EntityName = key[i]
		case model.FieldSupplierID:
			s.SupplierID = key[i]
		case model.FieldSupplierName:
			s.SupplierName = key[i]
		}
	}
	return s
}

func entityLabel(s model.Subject) string {
	if s.EntityName != "" {
		return s.EntityName
	}
	return s.EntityID
}

func supplierLabel(s model.Subject) string {
	if s.SupplierName != "" {
		return s.SupplierName
	}
	return s.SupplierID
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
