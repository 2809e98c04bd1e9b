package model

import (
	"fmt"
	"sort"
	"strings"
)

// AlertKind identifies the detector rule that produced an alert
type AlertKind string

const (
	KindFragmentation         AlertKind = "FRAGMENTATION"          // Repeated low-value direct awards
	KindTemporalConcentration AlertKind = "TEMPORAL_CONCENTRATION" // Awards clustered in one month
	KindDominantSupplier      AlertKind = "DOMINANT_SUPPLIER"      // Supplier share of an entity's spend
	KindSharedAddress         AlertKind = "SHARED_ADDRESS"         // Distinct legal entities at one address
	KindDateSequence          AlertKind = "DATE_SEQUENCE"          // Celebrated before published
)

// Severity grades an alert for triage; it never changes which alerts fire
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertFlag is a boolean strong-pattern marker
type AlertFlag string

const (
	// FlagNearThreshold: every value sits between 60% of the ceiling and the ceiling
	FlagNearThreshold AlertFlag = "near_threshold"
	// FlagYearEnd: the modal month is November or December
	FlagYearEnd AlertFlag = "year_end"
	// FlagMajority: the supplier holds more than half of the entity's spend
	FlagMajority AlertFlag = "majority_share"
)

// Metric keys
const (
	MetricCount       = "count"
	MetricTotal       = "total"
	MetricMean        = "mean"
	MetricMin         = "min"
	MetricMax         = "max"
	MetricCeiling     = "ceiling"
	MetricMonth       = "month"
	MetricMonthCount  = "month_count"
	MetricPercent     = "percent"
	MetricEntityTotal = "entity_total"
	MetricQuota       = "quota"
	MetricMembers     = "members"
	MetricGapDays     = "gap_days"
)

// Metrics carries the numeric evidence behind an alert
type Metrics map[string]float64

// Subject names who an alert is about
type Subject struct {
	EntityID     string         `json:"entity_id,omitempty"`
	EntityName   string         `json:"entity_name,omitempty"`
	SupplierID   string         `json:"supplier_id,omitempty"`
	SupplierName string         `json:"supplier_name,omitempty"`
	Address      string         `json:"address,omitempty"`
	Object       string         `json:"object,omitempty"`
	Members      []EntityRecord `json:"members,omitempty"`
	Record       int            `json:"record,omitempty"` // 1-based source row of a per-contract alert
}

// Key renders the subject as a stable string used for tie-breaking and fingerprints
func (s Subject) Key() string {
	parts := []string{s.EntityID, s.EntityName, s.SupplierID, s.SupplierName, s.Address, s.Object}
	for _, m := range s.Members {
		parts = append(parts, m.TaxID)
	}
	if s.Record > 0 {
		// zero-padded so ties sort in row order
		parts = append(parts, fmt.Sprintf("#%09d", s.Record))
	}
	return strings.Join(parts, "\x1f")
}

// Alert is one finding emitted by a detector
type Alert struct {
	Kind        AlertKind   `json:"kind"`
	Subject     Subject     `json:"subject"`
	Metrics     Metrics     `json:"metrics"`
	Flags       []AlertFlag `json:"flags,omitempty"`
	Description string      `json:"description"`

	// Filled by the scorer after detection
	Severity    Severity `json:"severity,omitempty"`
	Score       int      `json:"score,omitempty"`
	Formula     string   `json:"formula,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}

// Metric returns a metric value or 0 when absent
func (a Alert) Metric(key string) float64 {
	return a.Metrics[key]
}

// HasFlag reports whether the alert carries the given marker
func (a Alert) HasFlag(f AlertFlag) bool {
	for _, x := range a.Flags {
		if x == f {
			return true
		}
	}
	return false
}

// SortAlerts orders alerts by the ranking metric descending, then by subject key
func SortAlerts(alerts []Alert, metric string) {
	sort.SliceStable(alerts, func(i, j int) bool {
		vi, vj := alerts[i].Metrics[metric], alerts[j].Metrics[metric]
		if vi != vj {
			return vi > vj
		}
		return alerts[i].Subject.Key() < alerts[j].Subject.Key()
	})
}
