package detect

import (
	"fmt"

	"github.com/ppiankov/integridade/internal/aggregate"
	"github.com/ppiankov/integridade/internal/model"
)

// Dominant finds suppliers holding a large share of one entity's spend
type Dominant struct {
	cfg model.DominantConfig
}

// NewDominant creates the detector
func NewDominant(cfg model.DominantConfig) *Dominant {
	return &Dominant{cfg: cfg}
}

func (d *Dominant) Name() string          { return "dominant_supplier" }
func (d *Dominant) Kind() model.AlertKind { return model.KindDominantSupplier }

// Detect computes quota = pair total / entity total * 100 (one decimal) and
// keeps pairs at or above QuotaThreshold. Entities whose priced total is not
// positive are excluded.
func (d *Dominant) Detect(in Input) ([]model.Alert, error) {
	ds := in.Dataset
	if err := requireFields(d.Name(), ds, model.FieldPrice); err != nil {
		return nil, err
	}
	if err := requireAny(d.Name(), ds, model.FieldEntityID, model.FieldEntityName); err != nil {
		return nil, err
	}
	if err := requireAny(d.Name(), ds, model.FieldSupplierID, model.FieldSupplierName); err != nil {
		return nil, err
	}

	eKeys := entityKeys(ds)
	keys := append(append([]model.Field(nil), eKeys...), supplierKeys(ds)...)

	entities := aggregate.Index(aggregate.Aggregate(ds.Records, eKeys, model.FieldPrice))
	pairs := aggregate.Aggregate(ds.Records, keys, model.FieldPrice)

	var alerts []model.Alert
	for _, p := range pairs {
		entity, ok := entities[aggregate.JoinKey(p.Key[:len(eKeys)]...)]
		if !ok || entity.Sum <= 0 {
			continue
		}

		quota := round1(p.Sum / entity.Sum * 100)
		if quota < d.cfg.QuotaThreshold {
			continue
		}

		subject := subjectOf(keys, p.Key)
		alert := model.Alert{
			Kind:    model.KindDominantSupplier,
			Subject: subject,
			Metrics: model.Metrics{
				model.MetricCount:       float64(p.Count),
				model.MetricTotal:       round2(p.Sum),
				model.MetricEntityTotal: round2(entity.Sum),
				model.MetricQuota:       quota,
			},
			Description: fmt.Sprintf("%s holds %.1f%% of %s spend (€%.2f of €%.2f, %d contracts)",
				supplierLabel(subject), quota, entityLabel(subject), p.Sum, entity.Sum, p.Count),
		}
		if quota > 50 {
			alert.Flags = append(alert.Flags, model.FlagMajority)
		}
		alerts = append(alerts, alert)
	}

	model.SortAlerts(alerts, model.MetricQuota)
	return alerts, nil
}
