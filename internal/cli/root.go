package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/integridade/internal/logger"
	"github.com/ppiankov/integridade/internal/model"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "0.1.0"

var (
	cfgFile  string
	verbose  bool
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "integridade",
	Short: "Integridade - procurement integrity signals from open contract data (non-normative)",
	Long: `Integridade reads public procurement contract records (Portal BASE and
compatible exports) and flags statistical patterns associated with
integrity risk: repeated direct awards just below the legal ceiling,
awards bunched into one month, suppliers holding a large share of an
entity's spend, and distinct companies registered at one address.

It does not determine wrongdoing. Every alert is a pattern worth a human
look, computed only from public data, with the numbers behind it.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "integridade v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.integridade/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// INTEGRIDADE_THRESHOLDS_DOMINANT_QUOTA_THRESHOLD=30 and so on
	viper.SetEnvPrefix("INTEGRIDADE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(versionCmd)
}

// initConfig locates the config file
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".integridade"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and environment over base
func loadConfig(base *model.Config) (*model.Config, error) {
	cfg := base
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	for _, key := range configKeys(cfg) {
		_ = viper.BindEnv(key)
	}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyLLMEnv(cfg)

	if verbose {
		cfg.Output.Verbose = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// configKeys lists the dotted keys of cfg so AutomaticEnv can see values
// that are absent from the config file
func configKeys(cfg *model.Config) []string {
	flat := viper.New()
	_ = flat.MergeConfigMap(structToMap(cfg))
	// omitempty fields never show up in the marshaled form
	return append(flat.AllKeys(), "llm.api_key", "llm.base_url", "proxy.http", "proxy.https", "proxy.no_proxy")
}

// applyLLMEnv fills provider credentials from their conventional variables
func applyLLMEnv(cfg *model.Config) {
	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

func newLogger(cfg *model.Config) (*logger.Logger, error) {
	level := cfg.Log.Level
	if verbose && level == "info" {
		level = "debug"
	}
	return logger.New(cfg.Log.Mode, level)
}
