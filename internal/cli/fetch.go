package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/integridade/internal/cache"
	"github.com/ppiankov/integridade/internal/logger"
	"github.com/ppiankov/integridade/internal/model"
	"github.com/ppiankov/integridade/internal/source"
	"github.com/ppiankov/integridade/internal/util"
	"github.com/ppiankov/integridade/internal/worker"
)

var (
	fetchOpts    analysisFlags
	fetchDir     string
	fetchBaseURL string
	noRobots     bool
	noCache      bool
	fetchAnalyze bool
	httpProxy    string
	httpsProxy   string
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the Portal BASE contracts dataset",
	Long: `Fetch obtains the contracts dataset republished by the SNS transparency
portal, trying in order:
1. An existing .csv (then .xlsx) larger than 1 kB in --dir
2. The complete CSV download
3. The export API (up to 10 000 records)
4. The paged records API, rebuilt as a ';' separated CSV

Example:
  integridade fetch
  integridade fetch --dir dados_base --analyze --md relatorio.md`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchOpts.register(fetchCmd, true)
	fetchCmd.Flags().StringVar(&fetchDir, "dir", "", "data directory (default from config: dados_base)")
	fetchCmd.Flags().StringVar(&fetchBaseURL, "base-url", "", "portal base URL")
	fetchCmd.Flags().BoolVar(&fetchAnalyze, "analyze", false, "analyze the dataset once obtained")
	addNetworkFlags(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}

func addNetworkFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&noRobots, "no-robots", false, "do not consult robots.txt")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
	cmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

func applyNetworkFlags(cfg *model.Config) {
	if noRobots {
		cfg.Source.RespectRobots = false
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if httpProxy != "" {
		cfg.Proxy.HTTP = httpProxy
	}
	if httpsProxy != "" {
		cfg.Proxy.HTTPS = httpsProxy
	}
}

// newFetcher wires robots.txt, the per-host limiter and the cache around
// the HTTP client
func newFetcher(cfg *model.Config, log *logger.Logger) *source.Fetcher {
	opts := []source.Option{
		source.WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)),
		source.WithCache(cache.New(cfg.Cache), cfg.Cache.DiskTTL),
		source.WithLogger(log),
	}
	if cfg.Source.RespectRobots {
		client := util.NewHTTPClient(15*time.Second, cfg.Proxy)
		opts = append(opts, source.WithRobots(util.NewRobotsChecker(cfg.Source.UserAgent, client)))
	}
	return source.NewFetcher(cfg.Source.Timeout, cfg.Source.UserAgent, cfg.Source.MaxBytes, cfg.Proxy, opts...)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	fetchOpts.apply(cfg)
	applyNetworkFlags(cfg)
	if fetchDir != "" {
		cfg.Source.Dir = fetchDir
	}
	if fetchBaseURL != "" {
		cfg.Source.BaseURL = fetchBaseURL
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), fetchOpts.timeout)
	defer cancel()

	client := source.NewClient(cfg.Source, newFetcher(cfg, log), log)
	res, err := client.Obtain(ctx, cfg.Source.Dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %.1f MB)\n", res.Path, res.Strategy, float64(res.Bytes)/1e6)

	if !fetchAnalyze {
		return nil
	}
	return analyzeAndRender(ctx, cmd, cfg, log, res.Path, &fetchOpts)
}

func analyzeAndRender(ctx context.Context, cmd *cobra.Command, cfg *model.Config, log *logger.Logger, path string, opts *analysisFlags) error {
	a, err := newFileAnalyzer(cfg, log, opts.entities)
	if err != nil {
		return err
	}
	report, ds, err := a.analyze(ctx, path)
	if err != nil {
		return err
	}
	if err := a.pipeline.RenderReport(report, opts.outputs()); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if opts.outDataset != "" {
		if err := a.pipeline.ExportDataset(ds, opts.outDataset); err != nil {
			return err
		}
	}
	a.pipeline.Renderer().RenderSummary(cmd.OutOrStdout(), report)
	return nil
}
