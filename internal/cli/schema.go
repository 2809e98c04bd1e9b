package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/integridade/internal/ingest"
	"github.com/ppiankov/integridade/internal/schema"
)

var schemaEntities bool

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema [file]",
	Short: "Show the synonym table, or how a file's columns resolve",
	Long: `Without arguments, schema prints the effective synonym table (built-in
entries extended by schema.synonyms_file). With a file, it shows which
column each canonical field is read from, which fields are missing and
which columns are ignored.

Example:
  integridade schema
  integridade schema dados_base/portal_base.csv
  integridade schema entidades.csv --entities`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaEntities, "entities", false, "resolve the file as an entity register")
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	table, err := schema.Load(cfg.Schema.SynonymsFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(table); err != nil {
			return fmt.Errorf("encode synonym table: %w", err)
		}
		return enc.Close()
	}

	f, err := ingest.Load(args[0])
	if err != nil {
		return err
	}
	entries := table.Contract
	if schemaEntities {
		entries = table.Entity
	}
	m := schema.Resolve(f.Table.Columns, entries)

	fmt.Fprintf(out, "%s: %s, %s, %d rows\n\n", args[0], f.Format, f.Encoding, len(f.Table.Rows))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tCOLUMN\tMATCHED")
	for _, b := range m.Bindings {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Field, b.Column, b.Synonym)
	}
	for _, field := range m.Missing(entries) {
		fmt.Fprintf(tw, "%s\t-\tmissing\n", field)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(m.Unmapped) > 0 {
		fmt.Fprintf(out, "\nIgnored columns: %d\n", len(m.Unmapped))
		for _, c := range m.Unmapped {
			fmt.Fprintf(out, "  %s\n", c)
		}
	}
	return nil
}
