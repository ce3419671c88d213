// =============================================================================
// Statement Normalizer - Configuration Module
// =============================================================================
//
// This module loads and validates all configuration.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): global application settings, read through
//      viper so every key can be overridden by a NORMALIZER_* env variable.
//   2. Institution Configs (configs/*.yaml, *.yml, *.toml): one file per bank
//      or broker export format, describing column mappings, date format,
//      cleaning rules and transformations.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides of the main config.
const EnvPrefix = "NORMALIZER"

// Supported output formats.
const (
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
	FormatXML   = "xml"
)

// ErrInvalidConfig is wrapped by every main-config validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for statement exports to import.
	// Default: "./input"
	InputDir string `yaml:"input_dir" mapstructure:"input_dir"`

	// OutputDir receives the normalized ledgers.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`

	// InputArchiveDir receives source files after a successful import.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir" mapstructure:"input_archive_dir"`

	// OutputArchiveDir receives a copy of every ledger written.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir" mapstructure:"output_archive_dir"`

	// ConfigsDir holds the institution configuration files.
	// Default: "./configs"
	ConfigsDir string `yaml:"configs_dir" mapstructure:"configs_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is an optional log file. Logs always go to stderr as well.
	LogFile string `yaml:"log_file" mapstructure:"log_file"`

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputFormat is "jsonl", "json" or "xml".
	// Default: "jsonl"
	OutputFormat string `yaml:"output_format" mapstructure:"output_format"`

	// UUIDFormat is the output file name template.
	// Placeholders:
	//   {uuid}      - a random UUID
	//   {timestamp} - current time (YYYYMMDD_HHMMSS)
	//   {bank}      - institution name
	//   {original}  - source file name without extension
	// Default: "{bank}_{timestamp}_{uuid}"
	UUIDFormat string `yaml:"uuid_format" mapstructure:"uuid_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds the number of files imported at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`

	// ContinueOnError keeps the batch going when one file fails.
	// Default: true
	ContinueOnError bool `yaml:"continue_on_error" mapstructure:"continue_on_error"`

	// ArchiveOnSuccess moves imported files to InputArchiveDir.
	// Default: true
	ArchiveOnSuccess bool `yaml:"archive_on_success" mapstructure:"archive_on_success"`

	// TreatWarningsAsErrors fails an import when ledger validation warns.
	// Default: false
	TreatWarningsAsErrors bool `yaml:"treat_warnings_as_errors" mapstructure:"treat_warnings_as_errors"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// NewViper returns a viper instance with the defaults and env binding used
// by the main configuration.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("input_dir", "./input")
	v.SetDefault("output_dir", "./output")
	v.SetDefault("input_archive_dir", "./input_archive")
	v.SetDefault("output_archive_dir", "./output_archive")
	v.SetDefault("configs_dir", "./configs")
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("output_format", FormatJSONL)
	v.SetDefault("uuid_format", "{bank}_{timestamp}_{uuid}")
	v.SetDefault("max_concurrency", 4)
	v.SetDefault("continue_on_error", true)
	v.SetDefault("archive_on_success", true)
	v.SetDefault("treat_warnings_as_errors", false)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// LoadMainConfig reads the main configuration file. A missing file is not
// an error: defaults and environment overrides still apply.
//
// PARAMETERS:
//   - configPath: path to the YAML/TOML config file, may be empty.
//
// RETURNS:
//   - the validated configuration.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	v := NewViper()
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates a main configuration.
func FromViper(v *viper.Viper) (*MainConfig, error) {
	var cfg MainConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyMainConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyMainConfigDefaults covers values that decode to their zero value.
func applyMainConfigDefaults(cfg *MainConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = FormatJSONL
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	if cfg.UUIDFormat == "" {
		cfg.UUIDFormat = "{bank}_{timestamp}_{uuid}"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
}

// Validate checks the option values. Directories are not touched here; see
// EnsureDirectories.
func (c *MainConfig) Validate() error {
	switch c.OutputFormat {
	case FormatJSONL, FormatJSON, FormatXML:
	default:
		return fmt.Errorf("%w: unknown output_format %q", ErrInvalidConfig, c.OutputFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// EnsureDirectories creates the working directories if they do not exist.
func (c *MainConfig) EnsureDirectories() error {
	for _, dir := range []string{c.InputDir, c.OutputDir, c.InputArchiveDir, c.OutputArchiveDir, c.ConfigsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
