package detect

import (
	"fmt"
	"strconv"

	"github.com/ppiankov/integridade/internal/aggregate"
	"github.com/ppiankov/integridade/internal/model"
)

// Temporal finds entities whose awards cluster in a single calendar month
type Temporal struct {
	cfg model.TemporalConfig
}

// NewTemporal creates the detector
func NewTemporal(cfg model.TemporalConfig) *Temporal {
	return &Temporal{cfg: cfg}
}

func (d *Temporal) Name() string          { return "temporal_concentration" }
func (d *Temporal) Kind() model.AlertKind { return model.KindTemporalConcentration }

// Detect flags entities with at least MinEntityRows dated awards whose modal
// month holds more than ShareThreshold percent of them. Ties for the modal
// month resolve to the earliest month.
func (d *Temporal) Detect(in Input) ([]model.Alert, error) {
	ds := in.Dataset
	if err := requireFields(d.Name(), ds, model.FieldAwardDate); err != nil {
		return nil, err
	}
	if err := requireAny(d.Name(), ds, model.FieldEntityID, model.FieldEntityName); err != nil {
		return nil, err
	}

	keys := entityKeys(ds)
	cells := aggregate.Count(ds.Records, append(append([]model.Field(nil), keys...), model.FieldAwardMonth))

	type tally struct {
		key    []string
		total  int
		months [13]int
	}
	var order []string
	byEntity := make(map[string]*tally)
	for _, c := range cells {
		entity := c.Key[:len(keys)]
		id := aggregate.JoinKey(entity...)
		t, ok := byEntity[id]
		if !ok {
			t = &tally{key: entity}
			byEntity[id] = t
			order = append(order, id)
		}
		month, err := strconv.Atoi(c.Key[len(keys)])
		if err != nil || month < 1 || month > 12 {
			continue
		}
		t.months[month] += c.Count
		t.total += c.Count
	}

	var alerts []model.Alert
	for _, id := range order {
		t := byEntity[id]
		if t.total < d.cfg.MinEntityRows {
			continue
		}

		modal := 0
		for m := 1; m <= 12; m++ {
			if modal == 0 || t.months[m] > t.months[modal] {
				modal = m
			}
		}
		share := float64(t.months[modal]) / float64(t.total) * 100
		if share <= d.cfg.ShareThreshold {
			continue
		}

		subject := subjectOf(keys, t.key)
		alert := model.Alert{
			Kind:    model.KindTemporalConcentration,
			Subject: subject,
			Metrics: model.Metrics{
				model.MetricMonth:      float64(modal),
				model.MetricMonthCount: float64(t.months[modal]),
				model.MetricCount:      float64(t.total),
				model.MetricPercent:    round1(share),
			},
			Description: fmt.Sprintf("%s awarded %d of %d contracts (%.1f%%) in month %02d",
				entityLabel(subject), t.months[modal], t.total, share, modal),
		}
		if modal >= 11 {
			alert.Flags = append(alert.Flags, model.FlagYearEnd)
		}
		alerts = append(alerts, alert)
	}

	model.SortAlerts(alerts, model.MetricPercent)
	return alerts, nil
}

// Histogram returns the global per-month distribution of award dates.
// Percent is relative to the mean over months that have at least one award.
// Returns nil when no award date is bound or none parses.
func (d *Temporal) Histogram(ds *model.Dataset) *model.MonthHistogram {
	if !ds.Has(model.FieldAwardDate) {
		return nil
	}

	var counts [13]int
	for _, r := range ds.Records {
		if t, ok := r.AwardDate.Get(); ok {
			counts[t.Month()]++
		}
	}

	total, observed := 0, 0
	for m := 1; m <= 12; m++ {
		if counts[m] > 0 {
			total += counts[m]
			observed++
		}
	}
	if observed == 0 {
		return nil
	}

	mean := float64(total) / float64(observed)
	h := &model.MonthHistogram{Mean: round2(mean)}
	for m := 1; m <= 12; m++ {
		if counts[m] == 0 {
			continue
		}
		pct := float64(counts[m]) / mean * 100
		h.Months = append(h.Months, model.MonthCount{
			Month:   m,
			Count:   counts[m],
			Percent: round1(pct),
			Spike:   pct > d.cfg.SpikePercent,
		})
	}
	return h
}
