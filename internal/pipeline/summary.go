package pipeline

import (
	"math"
	"sort"

	"github.com/ppiankov/integridade/internal/aggregate"
	"github.com/ppiankov/integridade/internal/model"
)

// maxProcedures caps the procedure breakdown
const maxProcedures = 8

// Summarize computes the dataset statistics shown ahead of the alerts.
// top caps the supplier ranking; 0 disables it.
func Summarize(ds *model.Dataset, top int) model.Summary {
	s := model.Summary{
		Records:     ds.Len(),
		BoundFields: ds.BoundFields(),
	}
	if ds.Len() == 0 {
		return s
	}

	if ds.Has(model.FieldPrice) {
		prices := make([]float64, 0, ds.Len())
		for _, r := range ds.Records {
			if v, ok := r.Price.Get(); ok {
				prices = append(prices, v)
				s.TotalValue += v
			} else {
				s.InvalidPrices++
			}
		}
		s.MedianPrice = median(prices)
	}

	if ds.Has(model.FieldAwardDate) {
		for _, r := range ds.Records {
			t, ok := r.AwardDate.Get()
			if !ok {
				s.InvalidDates++
				continue
			}
			if s.PeriodStart == nil || t.Before(*s.PeriodStart) {
				start := t
				s.PeriodStart = &start
			}
			if s.PeriodEnd == nil || t.After(*s.PeriodEnd) {
				end := t
				s.PeriodEnd = &end
			}
		}
	}

	if ds.Has(model.FieldProcedureType) {
		for _, g := range topGroups(aggregate.Count(ds.Records, []model.Field{model.FieldProcedureType}), func(g aggregate.Group) float64 {
			return float64(g.Count)
		}, maxProcedures) {
			s.Procedures = append(s.Procedures, model.LabelCount{Label: g.Key[0], Count: g.Count})
		}
	}

	if f, ok := ds.FirstOf(model.FieldSupplierName, model.FieldSupplierID); ok && top > 0 && ds.Has(model.FieldPrice) {
		for _, g := range topGroups(aggregate.Aggregate(ds.Records, []model.Field{f}, model.FieldPrice), func(g aggregate.Group) float64 {
			return g.Sum
		}, top) {
			s.TopSuppliers = append(s.TopSuppliers, model.SupplierTotal{Name: g.Key[0], Count: g.Count, Total: round2(g.Sum)})
		}
	}

	return s
}

// topGroups returns the n groups with the largest rank, ties by key
func topGroups(groups []aggregate.Group, rank func(aggregate.Group) float64, n int) []aggregate.Group {
	sort.SliceStable(groups, func(i, j int) bool {
		ri, rj := rank(groups[i]), rank(groups[j])
		if ri != rj {
			return ri > rj
		}
		return aggregate.JoinKey(groups[i].Key...) < aggregate.JoinKey(groups[j].Key...)
	})
	if len(groups) > n {
		groups = groups[:n]
	}
	return groups
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
