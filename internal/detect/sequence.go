package detect

import (
	"fmt"

	"github.com/ppiankov/integridade/internal/model"
)

// DateSequence flags contracts celebrated before they were published
type DateSequence struct {
	cfg model.DateSequenceConfig
}

// NewDateSequence creates the detector
func NewDateSequence(cfg model.DateSequenceConfig) *DateSequence {
	return &DateSequence{cfg: cfg}
}

func (d *DateSequence) Name() string          { return "date_sequence" }
func (d *DateSequence) Kind() model.AlertKind { return model.KindDateSequence }

// Detect emits one alert per contract whose award date precedes its
// publication date by at least MinGapDays. Largest gaps first. The subject
// carries the record position so identical-looking contracts stay distinct.
func (d *DateSequence) Detect(in Input) ([]model.Alert, error) {
	if !d.cfg.Enabled {
		return nil, nil
	}
	ds := in.Dataset
	if err := requireFields(d.Name(), ds, model.FieldAwardDate, model.FieldPublicationDate); err != nil {
		return nil, err
	}

	minGap := d.cfg.MinGapDays
	if minGap < 1 {
		minGap = 1
	}

	var alerts []model.Alert
	for i, r := range ds.Records {
		awarded, ok := r.AwardDate.Get()
		if !ok {
			continue
		}
		published, ok := r.PublicationDate.Get()
		if !ok {
			continue
		}

		gap := int(published.Sub(awarded).Hours() / 24)
		if gap < minGap {
			continue
		}

		subject := model.Subject{
			EntityID:     r.EntityID,
			EntityName:   r.EntityName,
			SupplierID:   r.SupplierID,
			SupplierName: r.SupplierName,
			Object:       r.Object,
			Record:       i + 1,
		}
		metrics := model.Metrics{model.MetricGapDays: float64(gap)}
		if price, ok := r.Price.Get(); ok {
			metrics[model.MetricTotal] = price
		}

		alerts = append(alerts, model.Alert{
			Kind:    model.KindDateSequence,
			Subject: subject,
			Metrics: metrics,
			Description: fmt.Sprintf("contract celebrated on %s but published on %s (%d days later)",
				awarded.Format("2006-01-02"), published.Format("2006-01-02"), gap),
		})
	}

	model.SortAlerts(alerts, model.MetricGapDays)
	return alerts, nil
}
