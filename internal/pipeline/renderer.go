package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/integridade/internal/model"
)

// Renderer writes reports as JSON, Markdown, CSV and console text
type Renderer struct {
	cfg model.OutputConfig
}

// NewRenderer creates a renderer
func NewRenderer(cfg model.OutputConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// RenderJSON writes the full report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the human-readable report
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// RenderLLMMarkdown writes the separate narrative file
func (r *Renderer) RenderLLMMarkdown(markdown, path string) error {
	return writeFile(path, []byte(markdown))
}

// RenderCSV writes one row per alert across all detectors
func (r *Renderer) RenderCSV(report *model.Report, path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := r.WriteCSV(f, report); err != nil {
		return err
	}
	return f.Close()
}

// csvMetrics fixes the metric column order of the alert export
var csvMetrics = []string{
	model.MetricCount, model.MetricTotal, model.MetricMean, model.MetricMin, model.MetricMax,
	model.MetricMonth, model.MetricMonthCount, model.MetricPercent,
	model.MetricEntityTotal, model.MetricQuota, model.MetricMembers, model.MetricGapDays,
}

// WriteCSV streams the alert export to w
func (r *Renderer) WriteCSV(w io.Writer, report *model.Report) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	header := []string{"kind", "rank", "severity", "score", "entity_id", "entity", "supplier_id", "supplier", "address", "members", "record"}
	header = append(header, csvMetrics...)
	header = append(header, "flags", "description", "fingerprint")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, d := range report.Detectors {
		for i, a := range d.Alerts {
			members := make([]string, len(a.Subject.Members))
			for j, m := range a.Subject.Members {
				members[j] = m.TaxID
			}
			flags := make([]string, len(a.Flags))
			for j, f := range a.Flags {
				flags[j] = string(f)
			}

			row := []string{
				string(a.Kind),
				strconv.Itoa(i + 1),
				string(a.Severity),
				strconv.Itoa(a.Score),
				a.Subject.EntityID,
				a.Subject.EntityName,
				a.Subject.SupplierID,
				a.Subject.SupplierName,
				a.Subject.Address,
				strings.Join(members, ","),
				record(a.Subject.Record),
			}
			for _, k := range csvMetrics {
				if v, ok := a.Metrics[k]; ok {
					row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
				} else {
					row = append(row, "")
				}
			}
			row = append(row, strings.Join(flags, ","), a.Description, a.Fingerprint)

			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write CSV row: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func record(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// Markdown renders the report; each detector lists at most Top alerts
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder
	s := report.Summary

	fmt.Fprintf(&b, "# Procurement integrity report\n\n")
	fmt.Fprintf(&b, "- **Source:** %s\n", report.Source)
	fmt.Fprintf(&b, "- **Run:** `%s`\n", report.ID)
	fmt.Fprintf(&b, "- **Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("## Dataset\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Contracts | %s |\n", formatInt(s.Records))
	fmt.Fprintf(&b, "| Total value | %s |\n", formatEUR(s.TotalValue))
	fmt.Fprintf(&b, "| Median price | %s |\n", formatEUR(s.MedianPrice))
	if s.PeriodStart != nil && s.PeriodEnd != nil {
		fmt.Fprintf(&b, "| Period | %s to %s |\n", s.PeriodStart.Format("2006-01-02"), s.PeriodEnd.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "| Unparseable prices | %d |\n", s.InvalidPrices)
	fmt.Fprintf(&b, "| Unparseable dates | %d |\n", s.InvalidDates)
	if report.Entities > 0 {
		fmt.Fprintf(&b, "| Registered entities | %d |\n", report.Entities)
	}
	if len(s.MissingFields) > 0 {
		fmt.Fprintf(&b, "| Missing fields | %s |\n", joinFields(s.MissingFields))
	}
	b.WriteString("\n")

	if len(s.Procedures) > 0 {
		b.WriteString("### Procedures\n\n| Procedure | Contracts |\n|---|---|\n")
		for _, p := range s.Procedures {
			fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(p.Label), formatInt(p.Count))
		}
		b.WriteString("\n")
	}

	if len(s.TopSuppliers) > 0 {
		b.WriteString("### Top suppliers by value\n\n| # | Supplier | Contracts | Total |\n|---|---|---|---|\n")
		for i, t := range s.TopSuppliers {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, escapeCell(t.Name), formatInt(t.Count), formatEUR(t.Total))
		}
		b.WriteString("\n")
	}

	if h := report.Months; h != nil {
		fmt.Fprintf(&b, "### Awards per month (mean %.1f)\n\n| Month | Contracts | vs mean |\n|---|---|---|\n", h.Mean)
		for _, m := range h.Months {
			marker := ""
			if m.Spike {
				marker = " **spike**"
			}
			fmt.Fprintf(&b, "| %02d | %d | %.0f%%%s |\n", m.Month, m.Count, m.Percent, marker)
		}
		b.WriteString("\n")
	}

	for _, d := range report.Detectors {
		fmt.Fprintf(&b, "## %s\n\n", detectorTitle(d.Kind))
		switch d.Status {
		case model.StatusSkipped:
			fmt.Fprintf(&b, "_Not applicable: %s_\n\n", d.Reason)
			continue
		case model.StatusFailed:
			fmt.Fprintf(&b, "_Failed: %s_\n\n", d.Reason)
			continue
		}
		if len(d.Alerts) == 0 {
			b.WriteString("No alerts.\n\n")
			continue
		}

		fmt.Fprintf(&b, "%d alert(s).\n\n", len(d.Alerts))
		b.WriteString("| # | Severity | Score | Finding | Flags |\n|---|---|---|---|---|\n")
		for i, a := range r.top(d.Alerts) {
			fmt.Fprintf(&b, "| %d | %s | %d | %s | %s |\n",
				i+1, a.Severity, a.Score, escapeCell(a.Description), formatFlags(a.Flags))
		}
		b.WriteString("\n")
	}

	if report.LLM != nil && report.LLM.Enabled {
		b.WriteString("## Narrative summary\n\n")
		b.WriteString(report.LLM.SummaryMD)
		b.WriteString("\n\n")
	}

	if r.cfg.IncludeFooter {
		b.WriteString("---\n\n")
		b.WriteString("_Alerts are statistical signals for further review, not evidence of wrongdoing. ")
		b.WriteString("Every alert lists the metrics it was computed from; the same input always yields the same ordered output._\n")
	}

	return b.String()
}

// RenderSummary prints the console summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	s := report.Summary
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 70))
	fmt.Fprintf(w, "  %s\n", report.Source)
	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 70))
	fmt.Fprintf(w, "  Contracts:     %s\n", formatInt(s.Records))
	fmt.Fprintf(w, "  Total value:   %s\n", formatEUR(s.TotalValue))
	fmt.Fprintf(w, "  Median price:  %s\n", formatEUR(s.MedianPrice))
	if s.PeriodStart != nil && s.PeriodEnd != nil {
		fmt.Fprintf(w, "  Period:        %s to %s\n", s.PeriodStart.Format("2006-01-02"), s.PeriodEnd.Format("2006-01-02"))
	}
	if spikes := report.Months.Spikes(); len(spikes) > 0 {
		months := make([]string, len(spikes))
		for i, m := range spikes {
			months[i] = fmt.Sprintf("%02d", m)
		}
		fmt.Fprintf(w, "  Spike months:  %s\n", strings.Join(months, ", "))
	}
	fmt.Fprintln(w)

	for _, d := range report.Detectors {
		switch d.Status {
		case model.StatusSkipped:
			fmt.Fprintf(w, "  [-] %-28s skipped (%s)\n", detectorTitle(d.Kind), d.Reason)
			continue
		case model.StatusFailed:
			fmt.Fprintf(w, "  [!] %-28s failed (%s)\n", detectorTitle(d.Kind), d.Reason)
			continue
		}
		fmt.Fprintf(w, "  [%d] %s\n", len(d.Alerts), detectorTitle(d.Kind))
		if !r.cfg.Verbose {
			continue
		}
		for i, a := range r.top(d.Alerts) {
			fmt.Fprintf(w, "      %2d. [%-8s %3d] %s\n", i+1, a.Severity, a.Score, a.Description)
		}
	}

	fmt.Fprintf(w, "\n  %d alert(s) in total. Signals, not proof.\n", report.AlertCount())
}

func (r *Renderer) top(alerts []model.Alert) []model.Alert {
	if r.cfg.Top > 0 && len(alerts) > r.cfg.Top {
		return alerts[:r.cfg.Top]
	}
	return alerts
}

func detectorTitle(k model.AlertKind) string {
	switch k {
	case model.KindFragmentation:
		return "Contract fragmentation"
	case model.KindTemporalConcentration:
		return "Temporal concentration"
	case model.KindDominantSupplier:
		return "Dominant suppliers"
	case model.KindSharedAddress:
		return "Shared addresses"
	case model.KindDateSequence:
		return "Date sequence anomalies"
	default:
		return string(k)
	}
}

func formatFlags(flags []model.AlertFlag) string {
	if len(flags) == 0 {
		return ""
	}
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

func joinFields(fields []model.Field) string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return strings.Join(out, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

// formatInt groups thousands with a space: 1 234 567
func formatInt(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// formatEUR renders an amount as "€1 234 567.89"
func formatEUR(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	n, _ := strconv.Atoi(whole)
	return "€" + formatInt(n) + "." + frac
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}
