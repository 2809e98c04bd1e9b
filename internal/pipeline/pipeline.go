package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/integridade/internal/detect"
	"github.com/ppiankov/integridade/internal/llm"
	"github.com/ppiankov/integridade/internal/logger"
	"github.com/ppiankov/integridade/internal/model"
	"github.com/ppiankov/integridade/internal/schema"
	"github.com/ppiankov/integridade/internal/score"
)

// Narrator produces the optional narrative summary of a finished report
type Narrator interface {
	IsEnabled() bool
	GenerateSummary(ctx context.Context, report model.Report) (*model.LLMSummary, error)
}

// Pipeline orchestrates one analysis run: detectors, scoring, summary
type Pipeline struct {
	detectors []detect.Detector
	scorer    *score.Scorer
	renderer  *Renderer
	synonyms  *schema.Table
	narrator  Narrator // nil if disabled
	config    *model.Config
	log       *logger.Logger
	now       func() time.Time
}

// Option customizes a pipeline
type Option func(*Pipeline)

// WithNarrator attaches a narrative summarizer
func WithNarrator(n Narrator) Option {
	return func(p *Pipeline) { p.narrator = n }
}

// WithDetectors replaces the default detector set
func WithDetectors(ds ...detect.Detector) Option {
	return func(p *Pipeline) { p.detectors = ds }
}

// WithClock overrides the report timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline validates the configuration and builds a pipeline. An invalid
// threshold is the only hard failure: it returns a *model.ConfigError.
func NewPipeline(cfg *model.Config, log *logger.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	synonyms, err := schema.Load(cfg.Schema.SynonymsFile)
	if err != nil {
		return nil, fmt.Errorf("load synonym table: %w", err)
	}

	p := &Pipeline{
		detectors: detect.All(cfg.Thresholds),
		scorer:    score.NewScorer(cfg.Thresholds),
		renderer:  NewRenderer(cfg.Output),
		synonyms:  synonyms,
		config:    cfg,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(p)
	}

	if p.narrator == nil && cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM, cfg.Proxy))
		if err != nil {
			log.Warn("llm.init_failed", "provider", cfg.LLM.Provider, "error", err)
		} else {
			p.narrator = s
		}
	}
	return p, nil
}

// Normalize maps a decoded contract table onto canonical records
func (p *Pipeline) Normalize(tbl model.Table) (*model.Dataset, *schema.Mapping) {
	ds, m := schema.Normalize(tbl, p.synonyms)
	p.log.Debug("schema.resolved",
		"table", tbl.Name,
		"bound", len(m.Bindings),
		"unmapped", len(m.Unmapped),
	)
	return ds, m
}

// NormalizeEntities maps a decoded entity register onto entity records
func (p *Pipeline) NormalizeEntities(tbl model.Table) *model.EntitySet {
	set, m := schema.NormalizeEntities(tbl, p.synonyms)
	if missing := m.Missing(p.synonyms.Entity); len(missing) > 0 {
		p.log.Warn("schema.entity_fields_missing", "table", tbl.Name, "fields", missing)
	}
	if set.Conflicts > 0 {
		p.log.Warn("entities.conflicting_duplicates", "table", tbl.Name, "conflicts", set.Conflicts)
	}
	return set
}

// Input is one dataset ready for analysis
type Input struct {
	Source   string
	Dataset  *model.Dataset
	Entities *model.EntitySet
	Mapping  *schema.Mapping // Contract header resolution, used for the missing-field summary
}

// Analyze runs every detector over the input and assembles the report.
// A detector that errors or panics is recorded as failed; the others run.
func (p *Pipeline) Analyze(ctx context.Context, in Input) (*model.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()

	ds := in.Dataset
	if ds == nil {
		ds = model.NewDataset(nil)
	}
	dIn := detect.Input{Dataset: ds, Entities: in.Entities}

	outcomes := make([]model.DetectorOutcome, len(p.detectors))
	workers := p.config.Concurrency.Detectors
	if workers <= 1 {
		for i, d := range p.detectors {
			outcomes[i] = p.runDetector(d, dIn)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, d := range p.detectors {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcomes[i] = p.runDetector(d, dIn)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	for i := range outcomes {
		p.scorer.Apply(outcomes[i].Alerts)
	}

	summary := Summarize(ds, p.config.Output.Top)
	if in.Mapping != nil {
		summary.MissingFields = in.Mapping.Missing(p.synonyms.Contract)
	}

	report := &model.Report{
		ID:          uuid.NewString(),
		Source:      in.Source,
		GeneratedAt: p.now(),
		Summary:     summary,
		Detectors:   outcomes,
		Entities:    in.Entities.Len(),
		Principles:  model.DefaultPrinciples(),
	}
	for _, d := range p.detectors {
		if hp, ok := d.(detect.HistogramProvider); ok {
			report.Months = hp.Histogram(ds)
			break
		}
	}

	// Narrative comes last and never alters alerts
	if p.narrator != nil && p.narrator.IsEnabled() {
		s, err := p.narrator.GenerateSummary(ctx, *report)
		if err != nil {
			p.log.Warn("llm.summary_failed", "error", err)
		} else if s != nil {
			report.LLM = s
		}
	}

	p.log.Info("analysis.completed",
		"report_id", report.ID,
		"source", in.Source,
		"records", ds.Len(),
		"alerts", report.AlertCount(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report, nil
}

// runDetector isolates one detector: a missing field skips it, any other
// error or a panic marks it failed
func (p *Pipeline) runDetector(d detect.Detector, in detect.Input) (out model.DetectorOutcome) {
	started := time.Now()
	out = model.DetectorOutcome{Name: d.Name(), Kind: d.Kind(), Status: model.StatusOK}

	defer func() {
		if r := recover(); r != nil {
			out.Status = model.StatusFailed
			out.Reason = fmt.Sprintf("panic: %v", r)
			out.Alerts = []model.Alert{}
			p.log.Error("detector.panic", "detector", d.Name(), "panic", r)
		}
		out.DurationMS = time.Since(started).Milliseconds()
	}()

	alerts, err := d.Detect(in)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrMissingField):
		out.Status = model.StatusSkipped
		out.Reason = err.Error()
		alerts = nil
		p.log.Debug("detector.skipped", "detector", d.Name(), "reason", err.Error())
	default:
		out.Status = model.StatusFailed
		out.Reason = err.Error()
		alerts = nil
		p.log.Error("detector.failed", "detector", d.Name(), "error", err)
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	out.Alerts = alerts

	p.log.Debug("detector.completed",
		"detector", d.Name(),
		"status", string(out.Status),
		"alerts", len(alerts),
	)
	return out
}

// Outputs selects the files a report is rendered to
type Outputs struct {
	JSON     string
	Markdown string
	CSV      string
}

// RenderReport writes the report to the requested outputs
func (p *Pipeline) RenderReport(report *model.Report, out Outputs) error {
	if out.JSON != "" {
		if err := p.renderer.RenderJSON(report, out.JSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		p.log.Debug("report.written", "format", "json", "path", out.JSON)
	}

	if out.Markdown != "" {
		if err := p.renderer.RenderMarkdown(report, out.Markdown); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		p.log.Debug("report.written", "format", "markdown", "path", out.Markdown)

		if report.LLM != nil && report.LLM.Enabled {
			llmPath := strings.TrimSuffix(out.Markdown, ".md") + ".llm.md"
			if err := p.renderer.RenderLLMMarkdown(llm.RenderSeparateMarkdown(report.LLM), llmPath); err != nil {
				p.log.Warn("report.llm_write_failed", "path", llmPath, "error", err)
			}
		}
	}

	if out.CSV != "" {
		if err := p.renderer.RenderCSV(report, out.CSV); err != nil {
			return fmt.Errorf("render CSV: %w", err)
		}
		p.log.Debug("report.written", "format", "csv", "path", out.CSV)
	}

	return nil
}

// ExportDataset writes the normalized dataset as CSV
func (p *Pipeline) ExportDataset(ds *model.Dataset, path string) error {
	if err := p.renderer.RenderDataset(ds, path); err != nil {
		return fmt.Errorf("export dataset: %w", err)
	}
	p.log.Debug("dataset.written", "path", path, "records", ds.Len())
	return nil
}

// Renderer exposes the pipeline's renderer for console output
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}
