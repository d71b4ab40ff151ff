// Package config assembles the CLI configuration from viper (config file,
// MONTHEND_ environment variables and bound flags) and turns it into the
// component configurations the service, store, logger and reporter take.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/matcher"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/monthend"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/parsers"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/reporter"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/rules"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "MONTHEND"

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// EvaluateConfig controls rule evaluation
type EvaluateConfig struct {
	Workers int `mapstructure:"workers"`
}

// MatchConfig controls statement matching. Profile picks the base policy and
// every non-zero field overrides it. Tolerances are decimal strings.
type MatchConfig struct {
	Workers                 int     `mapstructure:"workers"`
	ExactAmountTolerance    string  `mapstructure:"exact_amount_tolerance"`
	RelativeAmountTolerance string  `mapstructure:"relative_amount_tolerance"`
	NearDateDays            int     `mapstructure:"near_date_days"`
	MatchedThreshold        float64 `mapstructure:"matched_threshold"`
	AmbiguousThreshold      float64 `mapstructure:"ambiguous_threshold"`
	Profile                 string  `mapstructure:"profile"`
}

// ParsingConfig controls the statement and transaction CSV readers
type ParsingConfig struct {
	Delimiter        string `mapstructure:"delimiter"`
	ValidateEncoding bool   `mapstructure:"validate_encoding"`
	MaxErrors        int    `mapstructure:"max_errors"`
}

// StoreConfig locates the result database; an empty path disables persistence
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Format          string `mapstructure:"format"`
	File            string `mapstructure:"file"`
	IncludeEvidence bool   `mapstructure:"include_evidence"`
	MaxItems        int    `mapstructure:"max_items"`
}

// Config is the complete CLI configuration
type Config struct {
	Verbose  bool           `mapstructure:"verbose"`
	Quiet    bool           `mapstructure:"quiet"`
	Log      LogConfig      `mapstructure:"log"`
	Evaluate EvaluateConfig `mapstructure:"evaluate"`
	Match    MatchConfig    `mapstructure:"match"`
	Parsing  ParsingConfig  `mapstructure:"parsing"`
	Store    StoreConfig    `mapstructure:"store"`
	Output   OutputConfig   `mapstructure:"output"`
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	parsing := parsers.DefaultParseConfig()

	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("log.level", string(logger.InfoLevel))
	v.SetDefault("log.format", string(logger.TextFormat))
	v.SetDefault("log.file", "")
	v.SetDefault("evaluate.workers", rules.DefaultConfig().Workers)
	v.SetDefault("match.profile", "default")

	// Zero match overrides keep the profile's value; they are registered so
	// that environment variables are picked up by Unmarshal.
	v.SetDefault("match.workers", 0)
	v.SetDefault("match.exact_amount_tolerance", "")
	v.SetDefault("match.relative_amount_tolerance", "")
	v.SetDefault("match.near_date_days", 0)
	v.SetDefault("match.matched_threshold", 0.0)
	v.SetDefault("match.ambiguous_threshold", 0.0)
	v.SetDefault("parsing.delimiter", string(parsing.Delimiter))
	v.SetDefault("parsing.validate_encoding", parsing.ValidateEncoding)
	v.SetDefault("parsing.max_errors", parsing.MaxErrors)
	v.SetDefault("store.path", "")
	v.SetDefault("output.format", string(reporter.FormatConsole))
	v.SetDefault("output.file", "")
	v.SetDefault("output.include_evidence", false)
	v.SetDefault("output.max_items", reporter.DefaultReportConfig().MaxItems)
}

// NewViper returns a viper instance with defaults and environment binding
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration from v and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section by building the component configurations
func (c *Config) Validate() error {
	if _, err := c.LoggerConfig(); err != nil {
		return err
	}
	svc, err := c.ServiceConfig()
	if err != nil {
		return err
	}
	if err := svc.Validate(); err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if err := c.ReportConfig().Validate(); err != nil {
		return fmt.Errorf("invalid output configuration: %w", err)
	}
	return nil
}

// LoggerConfig builds the logger configuration. Verbose switches to debug
// level with caller info; quiet discards all log output.
func (c *Config) LoggerConfig() (*logger.Config, error) {
	if c.Verbose && c.Quiet {
		return nil, fmt.Errorf("verbose and quiet cannot both be set")
	}
	if c.Quiet {
		return logger.NopConfig(), nil
	}

	cfg := logger.DefaultConfig()
	if c.Verbose {
		cfg = logger.DebugConfig()
	} else {
		cfg.Level = logger.Level(strings.ToLower(c.Log.Level))
	}
	cfg.Format = logger.Format(strings.ToLower(c.Log.Format))
	if c.Log.File != "" {
		cfg.Output = logger.FileOutput
		cfg.File = c.Log.File
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid log configuration: %w", err)
	}
	return cfg, nil
}

// MatchingConfig builds the matcher configuration from the named profile and
// the explicit overrides
func (c *Config) MatchingConfig() (*matcher.MatchingConfig, error) {
	var mc *matcher.MatchingConfig
	switch strings.ToLower(c.Match.Profile) {
	case "", "default":
		mc = matcher.DefaultMatchingConfig()
	case "strict":
		mc = matcher.StrictMatchingConfig()
	case "relaxed":
		mc = matcher.RelaxedMatchingConfig()
	default:
		return nil, fmt.Errorf("unknown match profile %q: use default, strict or relaxed", c.Match.Profile)
	}

	if c.Match.Workers != 0 {
		mc.Workers = c.Match.Workers
	}
	if c.Match.NearDateDays != 0 {
		mc.NearDateDays = c.Match.NearDateDays
	}
	if c.Match.MatchedThreshold != 0 {
		mc.MatchedThreshold = c.Match.MatchedThreshold
	}
	if c.Match.AmbiguousThreshold != 0 {
		mc.AmbiguousThreshold = c.Match.AmbiguousThreshold
	}
	if c.Match.ExactAmountTolerance != "" {
		d, err := decimal.NewFromString(c.Match.ExactAmountTolerance)
		if err != nil {
			return nil, fmt.Errorf("invalid match.exact_amount_tolerance %q: %w", c.Match.ExactAmountTolerance, err)
		}
		mc.ExactAmountTolerance = d
	}
	if c.Match.RelativeAmountTolerance != "" {
		d, err := decimal.NewFromString(c.Match.RelativeAmountTolerance)
		if err != nil {
			return nil, fmt.Errorf("invalid match.relative_amount_tolerance %q: %w", c.Match.RelativeAmountTolerance, err)
		}
		mc.RelativeAmountTolerance = d
	}
	return mc, nil
}

// ServiceConfig builds the monthend service configuration
func (c *Config) ServiceConfig() (*monthend.Config, error) {
	mc, err := c.MatchingConfig()
	if err != nil {
		return nil, err
	}
	rc := rules.DefaultConfig()
	if c.Evaluate.Workers != 0 {
		rc.Workers = c.Evaluate.Workers
	}
	parsing, err := c.ParseConfig()
	if err != nil {
		return nil, err
	}
	return &monthend.Config{Rules: rc, Matching: mc, Parsing: parsing}, nil
}

// ParseConfig builds the CSV reader configuration
func (c *Config) ParseConfig() (*parsers.ParseConfig, error) {
	pc := parsers.DefaultParseConfig()
	if c.Parsing.Delimiter != "" {
		runes := []rune(c.Parsing.Delimiter)
		if c.Parsing.Delimiter == `\t` {
			runes = []rune{'\t'}
		}
		if len(runes) != 1 {
			return nil, fmt.Errorf("parsing.delimiter must be a single character, got %q", c.Parsing.Delimiter)
		}
		pc.Delimiter = runes[0]
	}
	pc.ValidateEncoding = c.Parsing.ValidateEncoding
	pc.MaxErrors = c.Parsing.MaxErrors
	return pc, nil
}

// ReportConfig builds the reporter configuration for the output format
func (c *Config) ReportConfig() *reporter.ReportConfig {
	rc := reporter.DefaultReportConfig()
	rc.Format = reporter.OutputFormat(strings.ToLower(c.Output.Format))
	rc.IncludeEvidence = c.Output.IncludeEvidence
	rc.MaxItems = c.Output.MaxItems

	switch rc.Format {
	case reporter.FormatJSON:
		rc.IncludeMatched = false
	case reporter.FormatCSV:
		rc.IncludeMatched = true
		rc.CSVHeaders = true
	}
	return rc
}
