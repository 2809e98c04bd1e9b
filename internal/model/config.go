package model

import (
	"runtime"
	"time"
)

// Config is the full configuration tree.
// Hierarchy (highest first): CLI flags, INTEGRIDADE_* env vars, config file, defaults.
type Config struct {
	Thresholds   ThresholdsConfig   `yaml:"thresholds" mapstructure:"thresholds"`
	Schema       SchemaConfig       `yaml:"schema" mapstructure:"schema"`
	Source       SourceConfig       `yaml:"source" mapstructure:"source"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig    `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Proxy        ProxyConfig        `yaml:"proxy" mapstructure:"proxy"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// ThresholdsConfig groups the detector parameters
type ThresholdsConfig struct {
	Fragmentation FragmentationConfig `yaml:"fragmentation" mapstructure:"fragmentation"`
	Temporal      TemporalConfig      `yaml:"temporal" mapstructure:"temporal"`
	Dominant      DominantConfig      `yaml:"dominant" mapstructure:"dominant"`
	Address       AddressConfig       `yaml:"address" mapstructure:"address"`
	DateSequence  DateSequenceConfig  `yaml:"date_sequence" mapstructure:"date_sequence"`
}

// FragmentationConfig parameterizes the contract-splitting rule
type FragmentationConfig struct {
	PriceCeiling     float64  `yaml:"price_ceiling" mapstructure:"price_ceiling"`           // Legal direct-award ceiling (EUR)
	MinCount         int      `yaml:"min_count" mapstructure:"min_count"`                   // Awards per pair before alerting
	NearRatio        float64  `yaml:"near_ratio" mapstructure:"near_ratio"`                 // Lower bound of the near-ceiling band
	DirectAwardTerms []string `yaml:"direct_award_terms" mapstructure:"direct_award_terms"` // Case-insensitive substrings
}

// TemporalConfig parameterizes the month concentration rule
type TemporalConfig struct {
	MinEntityRows  int     `yaml:"min_entity_rows" mapstructure:"min_entity_rows"`
	ShareThreshold float64 `yaml:"share_threshold" mapstructure:"share_threshold"` // Percent of an entity's awards in its modal month
	SpikePercent   float64 `yaml:"spike_percent" mapstructure:"spike_percent"`     // Global month vs mean, informational
}

// DominantConfig parameterizes the supplier share rule
type DominantConfig struct {
	QuotaThreshold float64 `yaml:"quota_threshold" mapstructure:"quota_threshold"` // Percent of entity spend
}

// AddressConfig parameterizes the shared address rule
type AddressConfig struct {
	MinEntities  int  `yaml:"min_entities" mapstructure:"min_entities"`
	Canonicalize bool `yaml:"canonicalize" mapstructure:"canonicalize"` // Opt-in whitespace/punctuation folding
}

// DateSequenceConfig parameterizes the celebrated-before-published rule
type DateSequenceConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	MinGapDays int  `yaml:"min_gap_days" mapstructure:"min_gap_days"`
}

// SchemaConfig points at an optional synonym table override
type SchemaConfig struct {
	SynonymsFile string `yaml:"synonyms_file" mapstructure:"synonyms_file"`
}

// SourceConfig configures the open-data downloader
type SourceConfig struct {
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
	Dataset       string        `yaml:"dataset" mapstructure:"dataset"`
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBytes      int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	ExportLimit   int           `yaml:"export_limit" mapstructure:"export_limit"`
	PageSize      int           `yaml:"page_size" mapstructure:"page_size"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CacheConfig configures the download cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig limits requests per host
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ProxyConfig routes outbound HTTP. Empty values fall back to the
// HTTP_PROXY, HTTPS_PROXY and NO_PROXY environment variables.
type ProxyConfig struct {
	HTTP    string `yaml:"http,omitempty" mapstructure:"http"`
	HTTPS   string `yaml:"https,omitempty" mapstructure:"https"`
	NoProxy string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ConcurrencyConfig sizes worker pools
type ConcurrencyConfig struct {
	Workers   int `yaml:"workers" mapstructure:"workers"`     // Files analyzed in parallel by batch
	Detectors int `yaml:"detectors" mapstructure:"detectors"` // Detectors run in parallel (1 = sequential)
}

// OutputConfig controls rendering
type OutputConfig struct {
	Top           int  `yaml:"top" mapstructure:"top"` // Alerts shown per detector in console/Markdown
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// LLMConfig configures the optional narrative summary
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, ollama, "" (disabled)
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LogConfig selects the logger mode
type LogConfig struct {
	Mode  string `yaml:"mode" mapstructure:"mode"`   // development, production
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// DefaultConfig returns the defaults used for full-dataset runs
func DefaultConfig() *Config {
	return &Config{
		Thresholds: ThresholdsConfig{
			Fragmentation: FragmentationConfig{
				PriceCeiling:     20000,
				MinCount:         5,
				NearRatio:        0.6,
				DirectAwardTerms: []string{"direto", "directo", "simplif"},
			},
			Temporal: TemporalConfig{
				MinEntityRows:  20,
				ShareThreshold: 25,
				SpikePercent:   150,
			},
			Dominant: DominantConfig{
				QuotaThreshold: 25,
			},
			Address: AddressConfig{
				MinEntities: 3,
			},
			DateSequence: DateSequenceConfig{
				Enabled:    true,
				MinGapDays: 1,
			},
		},
		Source: SourceConfig{
			BaseURL:       "https://transparencia.sns.gov.pt",
			Dataset:       "portal-base",
			Dir:           "dados_base",
			UserAgent:     "Integridade/0.1 (+https://github.com/ppiankov/integridade)",
			Timeout:       5 * time.Minute,
			MaxBytes:      2 << 30,
			ExportLimit:   10000,
			PageSize:      100,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".integridade-cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Concurrency: ConcurrencyConfig{
			Workers:   runtime.NumCPU(),
			Detectors: 1,
		},
		Output: OutputConfig{
			Top:           15,
			IncludeFooter: true,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 1000,
		},
		Log: LogConfig{
			Mode:  "development",
			Level: "info",
		},
	}
}

// DemoConfig returns the thresholds used for the illustrative demo dataset
func DemoConfig() *Config {
	cfg := DefaultConfig()
	cfg.Thresholds.Fragmentation.MinCount = 10
	cfg.Thresholds.Dominant.QuotaThreshold = 30
	return cfg
}

// Validate checks detector parameters. Data quality never fails validation;
// only caller misuse does.
func (c *Config) Validate() error {
	return c.Thresholds.Validate()
}

// Validate checks every threshold group
func (t ThresholdsConfig) Validate() error {
	f := t.Fragmentation
	switch {
	case f.PriceCeiling <= 0:
		return &ConfigError{Field: "thresholds.fragmentation.price_ceiling", Value: f.PriceCeiling, Reason: "must be positive"}
	case f.MinCount < 1:
		return &ConfigError{Field: "thresholds.fragmentation.min_count", Value: f.MinCount, Reason: "must be at least 1"}
	case f.NearRatio <= 0 || f.NearRatio >= 1:
		return &ConfigError{Field: "thresholds.fragmentation.near_ratio", Value: f.NearRatio, Reason: "must be between 0 and 1"}
	case len(f.DirectAwardTerms) == 0:
		return &ConfigError{Field: "thresholds.fragmentation.direct_award_terms", Value: f.DirectAwardTerms, Reason: "must not be empty"}
	}

	tm := t.Temporal
	switch {
	case tm.MinEntityRows < 1:
		return &ConfigError{Field: "thresholds.temporal.min_entity_rows", Value: tm.MinEntityRows, Reason: "must be at least 1"}
	case tm.ShareThreshold <= 0 || tm.ShareThreshold > 100:
		return &ConfigError{Field: "thresholds.temporal.share_threshold", Value: tm.ShareThreshold, Reason: "must be in (0, 100]"}
	case tm.SpikePercent <= 0:
		return &ConfigError{Field: "thresholds.temporal.spike_percent", Value: tm.SpikePercent, Reason: "must be positive"}
	}

	if q := t.Dominant.QuotaThreshold; q <= 0 || q > 100 {
		return &ConfigError{Field: "thresholds.dominant.quota_threshold", Value: q, Reason: "must be in (0, 100]"}
	}
	if n := t.Address.MinEntities; n < 2 {
		return &ConfigError{Field: "thresholds.address.min_entities", Value: n, Reason: "must be at least 2"}
	}
	if g := t.DateSequence.MinGapDays; g < 1 {
		return &ConfigError{Field: "thresholds.date_sequence.min_gap_days", Value: g, Reason: "must be at least 1"}
	}
	return nil
}
