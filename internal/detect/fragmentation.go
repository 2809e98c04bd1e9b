package detect

import (
	"fmt"
	"strings"

	"github.com/ppiankov/integridade/internal/aggregate"
	"github.com/ppiankov/integridade/internal/model"
)

// Fragmentation finds (entity, supplier) pairs with repeated direct awards
// below the competitive-procedure ceiling: possible contract splitting.
type Fragmentation struct {
	cfg   model.FragmentationConfig
	terms []string
}

// NewFragmentation creates the detector
func NewFragmentation(cfg model.FragmentationConfig) *Fragmentation {
	terms := make([]string, 0, len(cfg.DirectAwardTerms))
	for _, t := range cfg.DirectAwardTerms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	return &Fragmentation{cfg: cfg, terms: terms}
}

func (d *Fragmentation) Name() string          { return "fragmentation" }
func (d *Fragmentation) Kind() model.AlertKind { return model.KindFragmentation }

// Detect runs the rule: direct award AND price < ceiling, grouped by pair,
// count >= MinCount, ranked by total value.
func (d *Fragmentation) Detect(in Input) ([]model.Alert, error) {
	ds := in.Dataset
	if err := requireFields(d.Name(), ds, model.FieldPrice, model.FieldProcedureType); err != nil {
		return nil, err
	}
	if err := requireAny(d.Name(), ds, model.FieldEntityID, model.FieldEntityName); err != nil {
		return nil, err
	}
	if err := requireAny(d.Name(), ds, model.FieldSupplierID, model.FieldSupplierName); err != nil {
		return nil, err
	}

	ceiling := d.cfg.PriceCeiling
	candidates := make([]model.ContractRecord, 0)
	for _, r := range ds.Records {
		price, ok := r.Price.Get()
		if !ok || price >= ceiling {
			continue
		}
		if !d.isDirectAward(r.ProcedureType) {
			continue
		}
		candidates = append(candidates, r)
	}

	keys := append(entityKeys(ds), supplierKeys(ds)...)
	groups := aggregate.Aggregate(candidates, keys, model.FieldPrice)

	var alerts []model.Alert
	for _, g := range groups {
		if g.Count < d.cfg.MinCount {
			continue
		}

		subject := subjectOf(keys, g.Key)
		alert := model.Alert{
			Kind:    model.KindFragmentation,
			Subject: subject,
			Metrics: model.Metrics{
				model.MetricCount:   float64(g.Count),
				model.MetricTotal:   round2(g.Sum),
				model.MetricMean:    round2(g.Mean),
				model.MetricMin:     g.Min,
				model.MetricMax:     g.Max,
				model.MetricCeiling: ceiling,
			},
			Description: fmt.Sprintf("%d direct awards below €%.0f from %s to %s, €%.2f in total (mean €%.2f)",
				g.Count, ceiling, entityLabel(subject), supplierLabel(subject), g.Sum, g.Mean),
		}
		if g.Max < ceiling && g.Min > d.cfg.NearRatio*ceiling {
			alert.Flags = append(alert.Flags, model.FlagNearThreshold)
		}
		alerts = append(alerts, alert)
	}

	model.SortAlerts(alerts, model.MetricTotal)
	return alerts, nil
}

// isDirectAward matches the procedure text against the direct-award terms
func (d *Fragmentation) isDirectAward(procedure string) bool {
	p := strings.ToLower(procedure)
	for _, t := range d.terms {
		if strings.Contains(p, t) {
			return true
		}
	}
	return false
}
