package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Vitaliy77/month-end-dashboard-sub000/cmd/monthend/config"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/monthend"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/reporter"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/store"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

var (
	cfgFile string
	v       = config.NewViper()
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "monthend",
	Short: "Month-end rule evaluation and statement reconciliation",
	Long: `Monthend checks a month's financial reports against a set of detection
rules and reconciles bank or card statement lines against the accounting
platform's transactions.

Examples:
  monthend evaluate --rules rules.yaml --current pnl_march.json --prior pnl_february.json
  monthend match --statements statement.csv --transactions transactions.csv --output-format json
  monthend inspect --report pnl_march.json`,
	Version:       getVersionString(),
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewCLIErrorHandler().HandleError(err)
	}
	return 0
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.BoolP("quiet", "q", false, "discard log output")
	flags.StringP("output-format", "f", "console", "output format: console, json, csv")
	flags.StringP("output-file", "o", "", "output file path (default: stdout)")
	flags.String("store", "", "SQLite database that records runs and findings")
	flags.String("log-level", "info", "log level: debug, info, warn, error")

	bindFlag(rootCmd, "verbose", "verbose")
	bindFlag(rootCmd, "quiet", "quiet")
	bindFlag(rootCmd, "output.format", "output-format")
	bindFlag(rootCmd, "output.file", "output-file")
	bindFlag(rootCmd, "store.path", "store")
	bindFlag(rootCmd, "log.level", "log-level")
}

func bindFlag(c *cobra.Command, key, flag string) {
	f := c.PersistentFlags().Lookup(flag)
	if f == nil {
		f = c.Flags().Lookup(flag)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// initConfig reads in the config file when one is given
func initConfig() error {
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "config_file", cfgFile, err).
			WithSuggestion("Check the config file path and syntax")
	}
	if v.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
	}
	return nil
}

// environment is what every subcommand needs to run
type environment struct {
	config  *config.Config
	log     logger.Logger
	store   *store.Store
	service *monthend.Service
}

func (e *environment) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.log.WithError(err).Warn("Failed to close store")
		}
	}
}

// setup loads the configuration, installs the logger and opens the store
func setup() (*environment, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "monthend", nil, err).
			WithSuggestion("Run 'monthend --help' to see the accepted values")
	}

	logCfg, err := cfg.LoggerConfig()
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "log", nil, err)
	}
	log, err := logger.NewLogger(logCfg)
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "log", nil, err)
	}
	logger.SetGlobalLogger(log)

	env := &environment{config: cfg, log: log}

	svcCfg, err := cfg.ServiceConfig()
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "monthend", nil, err)
	}

	var results monthend.ResultStore
	if cfg.Store.Path != "" {
		st, err := store.Open(cfg.Store.Path, log)
		if err != nil {
			return nil, err
		}
		env.store = st
		results = st
	}

	env.service, err = monthend.NewService(svcCfg, results, log)
	if err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// writeResult renders result to the configured output file or stdout
func (e *environment) writeResult(result any) error {
	generator, err := reporter.NewSafeGenerator(e.config.ReportConfig(), e.log)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if path := e.config.Output.File; path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return apperrors.FileError(apperrors.CodeFileNotFound, dir, err).
					WithSuggestion("Create the output directory first")
			}
		}
		file, err := os.Create(path)
		if err != nil {
			return apperrors.FileError(apperrors.CodeFilePermission, path, err)
		}
		defer file.Close()
		out = file
	}
	return generator.Write(result, out)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(ver, c, d string) {
	version = ver
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
