package model

import "time"

// Report is the complete result of one analysis run
type Report struct {
	ID          string    `json:"id"`           // Run identifier
	Source      string    `json:"source"`       // Dataset name or path
	GeneratedAt time.Time `json:"generated_at"` // When the run finished

	Summary   Summary           `json:"summary"`             // Dataset statistics
	Months    *MonthHistogram   `json:"months,omitempty"`    // Informational global month distribution
	Detectors []DetectorOutcome `json:"detectors"`           // One entry per detector, in run order
	Entities  int               `json:"entities,omitempty"`  // Entity records examined for shared addresses

	Principles Principles `json:"principles"`

	LLM *LLMSummary `json:"llm,omitempty"` // Optional narrative (separate, never affects alerts)
}

// Alerts returns the alerts of one kind, in detector order
func (r *Report) Alerts(kind AlertKind) []Alert {
	for _, d := range r.Detectors {
		if d.Kind == kind {
			return d.Alerts
		}
	}
	return nil
}

// AlertCount returns the total number of alerts across detectors
func (r *Report) AlertCount() int {
	n := 0
	for _, d := range r.Detectors {
		n += len(d.Alerts)
	}
	return n
}

// DetectorStatus records how a detector run ended
type DetectorStatus string

const (
	StatusOK      DetectorStatus = "ok"
	StatusSkipped DetectorStatus = "skipped" // A required canonical field is absent
	StatusFailed  DetectorStatus = "failed"  // Isolated error or panic
)

// DetectorOutcome holds the ordered alerts of one detector
type DetectorOutcome struct {
	Name       string         `json:"name"`
	Kind       AlertKind      `json:"kind"`
	Status     DetectorStatus `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Alerts     []Alert        `json:"alerts"`
	DurationMS int64          `json:"duration_ms"`
}

// Summary describes the canonical dataset
type Summary struct {
	Records       int             `json:"records"`
	TotalValue    float64         `json:"total_value"`
	MedianPrice   float64         `json:"median_price"`
	InvalidPrices int             `json:"invalid_prices"`
	InvalidDates  int             `json:"invalid_dates"`
	PeriodStart   *time.Time      `json:"period_start,omitempty"`
	PeriodEnd     *time.Time      `json:"period_end,omitempty"`
	Procedures    []LabelCount    `json:"procedures,omitempty"`
	TopSuppliers  []SupplierTotal `json:"top_suppliers,omitempty"`
	BoundFields   []Field         `json:"bound_fields"`
	MissingFields []Field         `json:"missing_fields,omitempty"`
}

// LabelCount is a value with its number of occurrences
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SupplierTotal ranks a supplier by contracted value
type SupplierTotal struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// MonthHistogram is the global per-month distribution of award dates
type MonthHistogram struct {
	Mean   float64      `json:"mean"`
	Months []MonthCount `json:"months"`
}

// MonthCount is one calendar month in the histogram
type MonthCount struct {
	Month   int     `json:"month"`   // 1..12
	Count   int     `json:"count"`   // Awards dated in this month
	Percent float64 `json:"percent"` // Count relative to the monthly mean
	Spike   bool    `json:"spike"`   // Percent above the spike threshold
}

// Spikes returns the months flagged as spiking
func (h *MonthHistogram) Spikes() []int {
	if h == nil {
		return nil
	}
	var out []int
	for _, m := range h.Months {
		if m.Spike {
			out = append(out, m.Month)
		}
	}
	return out
}

// Principles documents how findings must be read
type Principles struct {
	Statistical   bool `json:"statistical"`   // Signals, not proof of wrongdoing
	Transparent   bool `json:"transparent"`   // Every alert carries its metrics
	Deterministic bool `json:"deterministic"` // Same input, same ordered output
}

// DefaultPrinciples returns the standard principles
func DefaultPrinciples() Principles {
	return Principles{
		Statistical:   true,
		Transparent:   true,
		Deterministic: true,
	}
}

// LLMSummary contains an optional LLM-generated narrative
// It never changes alerts, scores or ordering
type LLMSummary struct {
	Enabled        bool     `json:"enabled"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
	StrictEvidence bool     `json:"strict_evidence"` // Only known alert references may be cited
	SummaryMD      string   `json:"summary_md,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}
