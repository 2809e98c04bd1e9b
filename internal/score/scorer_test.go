package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/integridade/internal/model"
)

func TestScorer_Apply_Fragmentation(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Thresholds)

	alerts := []model.Alert{
		{
			Kind:    model.KindFragmentation,
			Subject: model.Subject{EntityName: "E", SupplierName: "S"},
			Metrics: model.Metrics{
				model.MetricCount:   12,
				model.MetricMean:    17450,
				model.MetricCeiling: 20000,
			},
			Flags: []model.AlertFlag{model.FlagNearThreshold},
		},
		{
			Kind:    model.KindFragmentation,
			Subject: model.Subject{EntityName: "E", SupplierName: "T"},
			Metrics: model.Metrics{
				model.MetricCount:   5,
				model.MetricMean:    2000,
				model.MetricCeiling: 20000,
			},
		},
	}

	scorer.Apply(alerts)

	// min(12/5*25, 50) = 50, +30 near, + 17450/20000*20 = 17.45
	assert.Equal(t, 97, alerts[0].Score)
	assert.Equal(t, model.SeverityCritical, alerts[0].Severity)
	assert.NotEmpty(t, alerts[0].Formula)

	// 25 + 0 + 2
	assert.Equal(t, 27, alerts[1].Score)
	assert.Equal(t, model.SeverityLow, alerts[1].Severity)
}

func TestScorer_Apply_Temporal(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Thresholds)

	alerts := []model.Alert{{
		Kind:    model.KindTemporalConcentration,
		Subject: model.Subject{EntityName: "Cascais"},
		Metrics: model.Metrics{model.MetricPercent: 60, model.MetricCount: 100},
		Flags:   []model.AlertFlag{model.FlagYearEnd},
	}}
	scorer.Apply(alerts)

	// 36 + 20 + min(100/20*5, 20)
	assert.Equal(t, 76, alerts[0].Score)
	assert.Equal(t, model.SeverityHigh, alerts[0].Severity)
}

func TestScorer_Apply_Dominant(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Thresholds)

	alerts := []model.Alert{{
		Kind:    model.KindDominantSupplier,
		Metrics: model.Metrics{model.MetricQuota: 40, model.MetricCount: 3},
	}}
	scorer.Apply(alerts)

	assert.Equal(t, 31, alerts[0].Score)
	assert.Equal(t, model.SeverityLow, alerts[0].Severity)
}

func TestScorer_Apply_SharedAddressCapped(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Thresholds)

	alerts := []model.Alert{
		{Kind: model.KindSharedAddress, Metrics: model.Metrics{model.MetricMembers: 3}},
		{Kind: model.KindSharedAddress, Metrics: model.Metrics{model.MetricMembers: 9}},
	}
	scorer.Apply(alerts)

	assert.Equal(t, 60, alerts[0].Score)
	assert.Equal(t, 100, alerts[1].Score)
	assert.Equal(t, model.SeverityCritical, alerts[1].Severity)
}

func TestScorer_Apply_DateSequenceAtLeastHigh(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Thresholds)

	alerts := []model.Alert{{Kind: model.KindDateSequence, Metrics: model.Metrics{model.MetricGapDays: 1}}}
	scorer.Apply(alerts)

	assert.Equal(t, 60, alerts[0].Score)
	assert.Equal(t, model.SeverityHigh, alerts[0].Severity)
}

func TestScorer_Apply_Empty(t *testing.T) {
	scorer := NewScorer(model.DefaultConfig().Thresholds)
	assert.NotPanics(t, func() { scorer.Apply(nil) })
}

func TestFingerprint_StableAndEvidenceSensitive(t *testing.T) {
	a := model.Alert{
		Kind:    model.KindDominantSupplier,
		Subject: model.Subject{EntityName: "E", SupplierName: "S"},
		Metrics: model.Metrics{model.MetricQuota: 60, model.MetricCount: 2},
	}
	b := a
	b.Metrics = model.Metrics{model.MetricCount: 2, model.MetricQuota: 60}

	fp := Fingerprint(a)
	require.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint(b))

	b.Metrics = model.Metrics{model.MetricCount: 3, model.MetricQuota: 60}
	assert.NotEqual(t, fp, Fingerprint(b))

	c := a
	c.Kind = model.KindFragmentation
	assert.NotEqual(t, fp, Fingerprint(c))
}

func TestFingerprint_PerRecordSubjects(t *testing.T) {
	a := model.Alert{
		Kind:    model.KindDateSequence,
		Subject: model.Subject{EntityName: "E", SupplierName: "S", Object: "Servicos", Record: 4},
		Metrics: model.Metrics{model.MetricGapDays: 10, model.MetricTotal: 5000},
	}
	b := a
	b.Subject.Record = 9

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.Equal(t, Fingerprint(a), Fingerprint(a))
}
