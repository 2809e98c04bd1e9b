package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/integridade/internal/ingest"
	"github.com/ppiankov/integridade/internal/logger"
	"github.com/ppiankov/integridade/internal/model"
	"github.com/ppiankov/integridade/internal/pipeline"
)

// analysisFlags are shared by analyze, batch, fetch and demo
type analysisFlags struct {
	entities    string
	outJSON     string
	outMD       string
	outCSV      string
	outDataset  string
	timeout     time.Duration
	noFooter    bool
	top         int
	parallel    int
	ceiling     float64
	minCount    int
	quota       float64
	canonical   bool
	llmProvider string
	llmModel    string
}

func (f *analysisFlags) register(cmd *cobra.Command, outputs bool) {
	cmd.Flags().StringVar(&f.entities, "entities", "", "entity register (nif, designação, morada) for the shared address detector")
	if outputs {
		cmd.Flags().StringVar(&f.outJSON, "json", "", "output JSON path")
		cmd.Flags().StringVar(&f.outMD, "md", "", "output Markdown path")
		cmd.Flags().StringVar(&f.outCSV, "csv", "", "output CSV path (one row per alert)")
		cmd.Flags().StringVar(&f.outDataset, "dataset-csv", "", "export the normalized dataset as CSV")
	}
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Minute, "overall timeout")
	cmd.Flags().BoolVar(&f.noFooter, "no-footer", false, "disable footer in Markdown reports")
	cmd.Flags().IntVar(&f.top, "top", 0, "alerts shown per detector (default from config)")
	cmd.Flags().IntVar(&f.parallel, "parallel", 0, "detectors run in parallel (1 = sequential)")
	cmd.Flags().Float64Var(&f.ceiling, "ceiling", 0, "direct award price ceiling in EUR")
	cmd.Flags().IntVar(&f.minCount, "min-count", 0, "awards per entity/supplier pair before a fragmentation alert")
	cmd.Flags().Float64Var(&f.quota, "quota", 0, "dominant supplier share threshold (percent)")
	cmd.Flags().BoolVar(&f.canonical, "canonical-address", false, "fold case, whitespace and punctuation when comparing addresses")
	cmd.Flags().StringVar(&f.llmProvider, "llm", "", "LLM provider for an optional narrative summary (openai, ollama)")
	cmd.Flags().StringVar(&f.llmModel, "llm-model", "", "LLM model name")
}

// apply overrides cfg with the flags the user actually set
func (f *analysisFlags) apply(cfg *model.Config) {
	if f.top > 0 {
		cfg.Output.Top = f.top
	}
	if f.parallel > 0 {
		cfg.Concurrency.Detectors = f.parallel
	}
	if f.ceiling > 0 {
		cfg.Thresholds.Fragmentation.PriceCeiling = f.ceiling
	}
	if f.minCount > 0 {
		cfg.Thresholds.Fragmentation.MinCount = f.minCount
	}
	if f.quota > 0 {
		cfg.Thresholds.Dominant.QuotaThreshold = f.quota
	}
	if f.canonical {
		cfg.Thresholds.Address.Canonicalize = true
	}
	if f.noFooter {
		cfg.Output.IncludeFooter = false
	}
	if f.llmProvider != "" {
		cfg.LLM.Provider = f.llmProvider
	}
	if f.llmModel != "" {
		cfg.LLM.Model = f.llmModel
	}
	applyLLMEnv(cfg)
}

func (f *analysisFlags) outputs() pipeline.Outputs {
	return pipeline.Outputs{JSON: f.outJSON, Markdown: f.outMD, CSV: f.outCSV}
}

var analyzeOpts analysisFlags

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <contracts-file>",
	Short: "Analyze one CSV or XLSX contracts file",
	Long: `Analyze loads a contracts file, maps its columns onto canonical fields
and runs every detector:
- Fragmentation: repeated direct awards below the legal ceiling
- Temporal concentration: an entity's awards bunched into one month
- Dominant supplier: a supplier's share of an entity's spend
- Shared address: distinct entities registered at one address (needs --entities)
- Date sequence: contracts celebrated before their publication date

Example:
  integridade analyze dados_base/portal_base.csv
  integridade analyze contratos2024.xlsx --json report.json --md report.md
  integridade analyze contratos2024.xlsx --dataset-csv resultado.csv
  integridade analyze portal_base.csv --entities entidades.csv --quota 30`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeOpts.register(analyzeCmd, true)
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	analyzeOpts.apply(cfg)

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeOpts.timeout)
	defer cancel()

	return analyzeAndRender(ctx, cmd, cfg, log, args[0], &analyzeOpts)
}

// fileAnalyzer loads and analyzes dataset files with one shared pipeline
// and entity register
type fileAnalyzer struct {
	pipeline *pipeline.Pipeline
	entities *model.EntitySet
	log      *logger.Logger
}

func newFileAnalyzer(cfg *model.Config, log *logger.Logger, entitiesPath string) (*fileAnalyzer, error) {
	p, err := pipeline.NewPipeline(cfg, log)
	if err != nil {
		return nil, err
	}
	a := &fileAnalyzer{pipeline: p, log: log}

	if entitiesPath != "" {
		f, err := ingest.Load(entitiesPath)
		if err != nil {
			return nil, fmt.Errorf("load entities: %w", err)
		}
		a.entities = p.NormalizeEntities(f.Table)
		log.Info("entities.loaded", "path", entitiesPath, "records", a.entities.Len())
	}
	return a, nil
}

// AnalyzeFile implements worker.Analyzer
func (a *fileAnalyzer) AnalyzeFile(ctx context.Context, path string) (*model.Report, error) {
	report, _, err := a.analyze(ctx, path)
	return report, err
}

// analyze also returns the normalized dataset for export
func (a *fileAnalyzer) analyze(ctx context.Context, path string) (*model.Report, *model.Dataset, error) {
	f, err := ingest.Load(path)
	if err != nil {
		return nil, nil, err
	}
	a.log.Info("dataset.loaded",
		"path", path,
		"format", f.Format,
		"encoding", f.Encoding,
		"rows", len(f.Table.Rows),
		"columns", len(f.Table.Columns),
	)

	ds, mapping := a.pipeline.Normalize(f.Table)
	report, err := a.pipeline.Analyze(ctx, pipeline.Input{
		Source:   path,
		Dataset:  ds,
		Entities: a.entities,
		Mapping:  mapping,
	})
	return report, ds, err
}

// reportBaseName derives an output file stem from a dataset path
func reportBaseName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	replacer := strings.NewReplacer(" ", "-", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	base = replacer.Replace(base)
	if len(base) > 100 {
		base = base[:100]
	}
	if base == "" || base == "." {
		base = "report"
	}
	return base
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
