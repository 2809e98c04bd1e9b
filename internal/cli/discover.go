package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/integridade/internal/source"
)

var (
	discoverDownload bool
	discoverDir      string
	discoverFormat   string
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover [dataset-page-url]",
	Short: "List the CSV and XLSX files linked from a dataset page",
	Long: `Discover reads an open-data dataset page (by default the Portal BASE
contracts dataset on dados.gov.pt) and lists the data files it links to.

Example:
  integridade discover
  integridade discover --download --format xlsx --dir dados_base`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverDownload, "download", false, "download every listed file")
	discoverCmd.Flags().StringVar(&discoverDir, "dir", "", "download directory (default from config: dados_base)")
	discoverCmd.Flags().StringVar(&discoverFormat, "format", "", "only csv or xlsx")
	addNetworkFlags(discoverCmd)
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	applyNetworkFlags(cfg)
	if discoverDir != "" {
		cfg.Source.Dir = discoverDir
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	page := source.DatasetPage
	if len(args) == 1 {
		page = args[0]
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Source.Timeout)
	defer cancel()

	fetcher := newFetcher(cfg, log)
	resources, err := source.Discover(ctx, fetcher, page)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	var selected []source.Resource
	for _, r := range resources {
		if discoverFormat == "" || r.Format == discoverFormat {
			selected = append(selected, r)
		}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tTITLE\tURL")
	for _, r := range selected {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Format, r.Title, r.URL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !discoverDownload {
		return nil
	}
	if err := ensureDir(cfg.Source.Dir); err != nil {
		return err
	}
	for _, r := range selected {
		path, err := source.DownloadResource(ctx, fetcher, r, cfg.Source.Dir)
		if err != nil {
			log.Error("download.failed", "url", r.URL, "error", err)
			continue
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "  saved %s\n", path)
	}
	return nil
}
