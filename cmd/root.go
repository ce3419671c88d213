// =============================================================================
// Statement Normalizer - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (normalizer)
//   ├── processCmd  (normalizer process)
//   ├── importCmd   (normalizer import FILE)
//   ├── validateCmd (normalizer validate)
//   ├── previewCmd  (normalizer preview FILE)
//   ├── summaryCmd  (normalizer summary LEDGER)
//   └── versionCmd  (normalizer version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Reading the main configuration through viper
//   3. Setting up the zap logger
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/statement-normalizer/internal/adapter"
	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging.
var verbose bool

// v holds the main configuration source: defaults, file and environment.
var v = config.NewViper()

// mainConfig and logger are set by the root command's PersistentPreRunE
// before any subcommand runs.
var (
	mainConfig *config.MainConfig
	logger     = zap.NewNop()
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "normalizer",
	Short: "Statement Normalizer - Turn bank and broker exports into a canonical ledger",
	Long: `Statement Normalizer reads spreadsheet exports (XLSX or CSV) from banks and
brokers and converts them into a single canonical transaction ledger.

Key Features:
  - One adapter per institution: column mappings, date format, cleaning rules
  - Automatic institution detection from file names and table layout
  - Decimal-exact amounts and calendar dates, no floating point
  - Balance continuity, duplicate and future-date checks
  - JSONL, JSON or XML output, with archiving of processed files

Example Usage:
  normalizer process                       # Import every file in the input directory
  normalizer import statement.xlsx --bank IBI
  normalizer preview statement.csv         # Show how a file is read and detected
  normalizer validate                      # Check configuration without importing`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return setup()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)

	cobra.OnInitialize(initConfig)
}

// initConfig points viper at the config file. A missing file is fine:
// defaults and NORMALIZER_* environment variables still apply.
func initConfig() {
	if cfgFile == "" {
		return
	}
	if _, err := os.Stat(cfgFile); err != nil {
		return
	}
	v.SetConfigFile(cfgFile)
}

// setup reads the main configuration and builds the logger.
func setup() error {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}
	mainConfig = cfg

	l, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Verbose: verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logger = l
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", zap.String("path", used))
	}
	return nil
}

// loadInstitutions reads the institution files from the configs directory
// and merges them with the built-in adapters' defaults.
func loadInstitutions() ([]*config.Institution, error) {
	configured, err := config.LoadInstitutions(mainConfig.ConfigsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load institution configs: %w", err)
	}
	insts := adapter.Resolve(configured)
	logger.Debug("loaded institutions",
		zap.Int("configured", len(configured)),
		zap.Int("total", len(insts)))
	return insts, nil
}

// findInstitution returns the institution with the given name, compared
// case-insensitively.
func findInstitution(insts []*config.Institution, name string) (*config.Institution, error) {
	key := (&config.Institution{Name: name}).Key()
	for _, inst := range insts {
		if inst.Key() == key {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("unknown institution %q (known: %s)", name, strings.Join(institutionNames(insts), ", "))
}
