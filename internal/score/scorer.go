package score

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ppiankov/integridade/internal/model"
)

// Scorer grades alerts for triage. Scores are 0-100; severity follows the
// score. Scoring never adds or removes alerts.
type Scorer struct {
	thresholds model.ThresholdsConfig
}

// NewScorer creates a scorer bound to the thresholds the detectors ran with
func NewScorer(th model.ThresholdsConfig) *Scorer {
	return &Scorer{thresholds: th}
}

// Apply fills Score, Severity, Formula and Fingerprint on every alert in place
func (s *Scorer) Apply(alerts []model.Alert) {
	for i := range alerts {
		a := &alerts[i]
		score, formula := s.calculate(*a)
		a.Score = clamp(score)
		a.Formula = formula
		a.Severity = s.severityFor(a.Kind, a.Score)
		a.Fingerprint = Fingerprint(*a)
	}
}

func (s *Scorer) calculate(a model.Alert) (int, string) {
	switch a.Kind {
	case model.KindFragmentation:
		return s.fragmentation(a)
	case model.KindTemporalConcentration:
		return s.temporal(a)
	case model.KindDominantSupplier:
		return s.dominant(a)
	case model.KindSharedAddress:
		return s.sharedAddress(a)
	case model.KindDateSequence:
		return s.dateSequence(a)
	default:
		return 0, "unscored"
	}
}

// fragmentation: repetition (0-50), near-ceiling cluster (30), closeness of the mean to the ceiling (0-20)
func (s *Scorer) fragmentation(a model.Alert) (int, string) {
	minCount := math.Max(float64(s.thresholds.Fragmentation.MinCount), 1)
	repetition := math.Min(a.Metric(model.MetricCount)/minCount*25, 50)

	cluster := 0.0
	if a.HasFlag(model.FlagNearThreshold) {
		cluster = 30
	}

	closeness := 0.0
	if ceiling := a.Metric(model.MetricCeiling); ceiling > 0 {
		closeness = math.Min(a.Metric(model.MetricMean)/ceiling*20, 20)
	}

	return int(repetition + cluster + closeness),
		"min(count / min_count * 25, 50) + 30 * near_threshold + min(mean / ceiling * 20, 20)"
}

// temporal: share of the modal month (0-60), year-end rush (20), sample size (0-20)
func (s *Scorer) temporal(a model.Alert) (int, string) {
	share := math.Min(a.Metric(model.MetricPercent), 100) * 6 / 10

	yearEnd := 0.0
	if a.HasFlag(model.FlagYearEnd) {
		yearEnd = 20
	}

	minRows := math.Max(float64(s.thresholds.Temporal.MinEntityRows), 1)
	sample := math.Min(a.Metric(model.MetricCount)/minRows*5, 20)

	return int(share + yearEnd + sample),
		"min(percent, 100) * 0.6 + 20 * year_end + min(count / min_entity_rows * 5, 20)"
}

// dominant: quota (0-70), majority share (15), number of contracts (0-15)
func (s *Scorer) dominant(a model.Alert) (int, string) {
	quota := math.Min(a.Metric(model.MetricQuota), 100) * 7 / 10

	majority := 0.0
	if a.HasFlag(model.FlagMajority) {
		majority = 15
	}

	contracts := math.Min(a.Metric(model.MetricCount), 15)

	return int(quota + majority + contracts),
		"min(quota, 100) * 0.7 + 15 * majority_share + min(count, 15)"
}

// sharedAddress: 20 points per distinct entity at the address
func (s *Scorer) sharedAddress(a model.Alert) (int, string) {
	return int(a.Metric(model.MetricMembers) * 20), "min(members * 20, 100)"
}

// dateSequence: flat base for the sequence break plus one point per 3 days of gap
func (s *Scorer) dateSequence(a model.Alert) (int, string) {
	gap := math.Min(a.Metric(model.MetricGapDays)/3, 30)
	return int(60 + gap), "60 + min(gap_days / 3, 30)"
}

// severityFor maps a score to a severity. A date sequence break is never
// below high: it is a procedural violation rather than a statistical signal.
func (s *Scorer) severityFor(kind model.AlertKind, score int) model.Severity {
	sev := severityOf(score)
	if kind == model.KindDateSequence && rank(sev) < rank(model.SeverityHigh) {
		return model.SeverityHigh
	}
	return sev
}

func severityOf(score int) model.Severity {
	switch {
	case score >= 85:
		return model.SeverityCritical
	case score >= 60:
		return model.SeverityHigh
	case score >= 35:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func rank(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return 3
	case model.SeverityHigh:
		return 2
	case model.SeverityMedium:
		return 1
	default:
		return 0
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Fingerprint identifies an alert across runs: SHA-256 over the subject,
// the kind and the canonical JSON of its metrics. Metrics maps marshal with
// sorted keys, so equal evidence always yields the same digest.
func Fingerprint(a model.Alert) string {
	payload, err := json.Marshal(a.Metrics)
	if err != nil {
		payload = []byte(fmt.Sprint(a.Metrics))
	}
	sum := sha256.Sum256([]byte(a.Subject.Key() + ":" + string(a.Kind) + ":" + string(payload)))
	return hex.EncodeToString(sum[:])
}
