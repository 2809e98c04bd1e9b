package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ppiankov/integridade/internal/pipeline"
	"github.com/ppiankov/integridade/internal/worker"
)

var (
	batchOpts   analysisFlags
	concurrency int
	outputDir   string
	listFile    string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [file|dir]...",
	Short: "Analyze many dataset files in parallel",
	Long: `Batch analyzes several contracts files concurrently (for example the
yearly Portal BASE xlsx files):
- Arguments may be files or directories (every .csv and .xlsx inside)
- --list reads paths from a file, one per line (# starts a comment)
- Each file gets its own JSON, Markdown and CSV report in --output-dir

Example:
  integridade batch dados_base/
  integridade batch contratos2023.xlsx contratos2024.xlsx --concurrency 2
  integridade batch --list ficheiros.txt --output-dir ./relatorios`,
	RunE: runBatch,
}

func init() {
	batchOpts.register(batchCmd, false)
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of files analyzed at once")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./integridade-reports", "output directory for reports")
	batchCmd.Flags().StringVar(&listFile, "list", "", "file listing dataset paths, one per line")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths, err := worker.ExpandInputs(args)
	if err != nil {
		return err
	}
	if listFile != "" {
		listed, err := worker.ReadPathsFromFile(listFile)
		if err != nil {
			return fmt.Errorf("read list: %w", err)
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no dataset files given")
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	batchOpts.apply(cfg)
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.Workers = concurrency
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := ensureDir(outputDir); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchOpts.timeout)
	defer cancel()

	a, err := newFileAnalyzer(cfg, log, batchOpts.entities)
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "\n  Integridade batch: %d files, %d workers, output %s\n\n", len(paths), cfg.Concurrency.Workers, outputDir)

	processor := worker.NewBatchProcessor(a, cfg.Concurrency.Workers)
	results := processor.ProcessFiles(ctx, paths)

	var failures int
	used := make(map[string]int)
	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(out, "  x %s: %v\n", result.Path, result.Error)
			continue
		}

		stem := reportBaseName(result.Path)
		if n := used[stem]; n > 0 {
			stem = fmt.Sprintf("%s-%d", stem, n+1)
		}
		used[reportBaseName(result.Path)]++

		outputs := pipeline.Outputs{
			JSON:     filepath.Join(outputDir, stem+".json"),
			Markdown: filepath.Join(outputDir, stem+".md"),
			CSV:      filepath.Join(outputDir, stem+".alerts.csv"),
		}
		if err := a.pipeline.RenderReport(result.Report, outputs); err != nil {
			failures++
			fmt.Fprintf(out, "  x %s: %v\n", result.Path, err)
			continue
		}
		fmt.Fprintf(out, "  ok %s: %d contracts, %d alerts\n", result.Path, result.Report.Summary.Records, result.Report.AlertCount())
	}

	fmt.Fprintf(out, "\n  Total: %d  Success: %d  Failures: %d\n\n", len(results), len(results)-failures, failures)
	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, len(results))
	}
	return nil
}
