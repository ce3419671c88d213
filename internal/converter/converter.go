// =============================================================================
// Statement Normalizer - Conversion Orchestrator
// =============================================================================
//
// This module runs the full pipeline for one input file:
//
//   1. Read the export (XLSX or CSV) into a raw table
//   2. Pick the institution: explicit, or detected from the candidates
//   3. Build the institution's adapter and transform the table
//   4. Validate the ledger (balances, duplicates, ...)
//   5. Write the ledger (JSONL, JSON or XML) to the output directory
//   6. Archive the input and the output
//
// One Converter handles one file. Converters share nothing, so a batch can
// run any number of them in parallel.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/statement-normalizer/internal/adapter"
	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/csvparser"
	"github.com/ginjaninja78/statement-normalizer/internal/ledger"
	"github.com/ginjaninja78/statement-normalizer/internal/logging"
	"github.com/ginjaninja78/statement-normalizer/internal/table"
	"github.com/ginjaninja78/statement-normalizer/internal/validation"
	"github.com/ginjaninja78/statement-normalizer/internal/xlsxparser"
	"github.com/ginjaninja78/statement-normalizer/internal/xmlwriter"
	"github.com/ginjaninja78/statement-normalizer/pkg/utils"
)

// ErrUnsupportedFile is returned for an input with an unknown extension.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Error types recorded in Result.ErrorType and the error log.
const (
	ErrorTypeRead       = "read"
	ErrorTypeDetection  = "detection"
	ErrorTypeStructural = "structural"
	ErrorTypeValidation = "validation"
	ErrorTypeOutput     = "output"
	ErrorTypeCanceled   = "canceled"
)

// =============================================================================
// RESULT
// =============================================================================

// Result is the outcome of converting one file.
type Result struct {
	FilePath    string
	Institution string
	OutputFile  string
	ArchivePath string

	Success   bool
	Error     error
	ErrorType string

	// Outcome is the import outcome, nil when the file could not be read or
	// no institution matched.
	Outcome *ledger.Outcome

	Stats ProcessingStats
}

// ProcessingStats contains statistics about one conversion.
type ProcessingStats struct {
	RowsRead            int
	TransactionsCreated int
	Warnings            int
	ValidationIssues    int
	ProcessingTime      time.Duration
}

// ErrorLogEntries turns a failed result into error log entries.
func (r Result) ErrorLogEntries() []utils.ErrorLogEntry {
	if r.Success {
		return nil
	}
	now := time.Now()
	entry := func(msg string) utils.ErrorLogEntry {
		return utils.ErrorLogEntry{
			Timestamp:    now,
			FileName:     filepath.Base(r.FilePath),
			Bank:         r.Institution,
			ErrorType:    r.ErrorType,
			ErrorMessage: msg,
		}
	}
	if r.Outcome != nil && len(r.Outcome.Errors()) > 0 {
		var out []utils.ErrorLogEntry
		for _, msg := range r.Outcome.Errors() {
			out = append(out, entry(msg))
		}
		return out
	}
	if r.Error != nil {
		return []utils.ErrorLogEntry{entry(r.Error.Error())}
	}
	return nil
}

// =============================================================================
// CONVERTER
// =============================================================================

// Converter handles the conversion of a single statement export.
type Converter struct {
	path         string
	institutions []*config.Institution
	institution  *config.Institution
	mainConfig   *config.MainConfig
	files        *utils.FileManager
	validation   validation.ValidationOptions
	dryRun       bool
	log          *zap.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithInstitution skips detection and uses inst.
func WithInstitution(inst *config.Institution) Option {
	return func(c *Converter) { c.institution = inst }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Converter) { c.log = log }
}

// WithFileManager enables archiving through fm.
func WithFileManager(fm *utils.FileManager) Option {
	return func(c *Converter) { c.files = fm }
}

// WithValidationOptions overrides the validation options. The main config's
// TreatWarningsAsErrors still applies.
func WithValidationOptions(opts validation.ValidationOptions) Option {
	return func(c *Converter) { c.validation = opts }
}

// WithDryRun runs every step except writing and archiving.
func WithDryRun() Option {
	return func(c *Converter) { c.dryRun = true }
}

// New creates a Converter for path. institutions are the detection
// candidates; mainConfig supplies output and archive settings.
func New(path string, institutions []*config.Institution, mainConfig *config.MainConfig, opts ...Option) *Converter {
	c := &Converter{
		path:         path,
		institutions: institutions,
		mainConfig:   mainConfig,
		validation:   validation.DefaultValidationOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrNop(c.log).With(zap.String("file", filepath.Base(path)))
	return c
}

// Run executes the conversion. ctx is checked between steps; a canceled
// run returns without writing anything.
func (c *Converter) Run(ctx context.Context) (result Result) {
	start := time.Now()
	result = Result{FilePath: c.path}
	defer func() { result.Stats.ProcessingTime = time.Since(start) }()

	fail := func(kind string, err error) Result {
		result.Error = err
		result.ErrorType = kind
		c.log.Warn("conversion failed", zap.String("type", kind), zap.Error(err))
		return result
	}

	c.log.Info("processing file")

	inst := c.institution
	t, err := ReadTable(c.path, inst)
	if err != nil {
		return fail(ErrorTypeRead, err)
	}
	if inst == nil {
		cand, err := adapter.Detect(c.path, t, c.institutions, c.log)
		if err != nil {
			return fail(ErrorTypeDetection, fmt.Errorf("%s: %w", filepath.Base(c.path), err))
		}
		inst = cand.Institution
		c.log.Info("detected institution",
			zap.String("bank", inst.Name),
			zap.Float64("score", cand.Score),
			zap.String("reason", cand.Reason))
		if needsReread(c.path, inst, t) {
			if t, err = ReadTable(c.path, inst); err != nil {
				return fail(ErrorTypeRead, err)
			}
		}
	}
	result.Institution = inst.Name
	result.Stats.RowsRead = t.Len()

	if err := ctx.Err(); err != nil {
		return fail(ErrorTypeCanceled, err)
	}

	a, err := adapter.New(inst, c.log)
	if err != nil {
		return fail(ErrorTypeStructural, err)
	}
	out := a.Transform(t)
	result.Outcome = out
	if !out.Success() {
		return fail(ErrorTypeStructural, fmt.Errorf("import failed: %s", strings.Join(out.Errors(), "; ")))
	}

	l := out.Ledger()
	result.Stats.TransactionsCreated = l.Len()

	vopts := c.validation
	vopts.TreatWarningsAsErrors = vopts.TreatWarningsAsErrors || c.mainConfig.TreatWarningsAsErrors
	vr := validation.NewValidatorWithOptions(vopts).ValidateAll(l)
	result.Stats.ValidationIssues = len(vr.Errors)
	vr.ApplyTo(out, vopts.TreatWarningsAsErrors)
	result.Stats.Warnings = len(out.Warnings())
	if !out.Success() {
		return fail(ErrorTypeValidation, fmt.Errorf("validation failed with %d issue(s)", len(vr.Errors)))
	}

	if err := ctx.Err(); err != nil {
		return fail(ErrorTypeCanceled, err)
	}
	if c.dryRun {
		result.Success = true
		return result
	}

	outputPath, err := c.writeOutput(l)
	if err != nil {
		return fail(ErrorTypeOutput, err)
	}
	result.OutputFile = outputPath
	c.log.Info("wrote ledger",
		zap.String("output", outputPath),
		zap.Int("transactions", l.Len()),
		zap.Int("warnings", result.Stats.Warnings))

	if archived, err := c.archiveFiles(outputPath); err != nil {
		c.log.Warn("failed to archive files", zap.Error(err))
	} else {
		result.ArchivePath = archived
	}

	result.Success = true
	return result
}

// writeOutput writes the ledger in the configured format and returns the
// output path.
func (c *Converter) writeOutput(l *ledger.Ledger) (string, error) {
	format := c.mainConfig.OutputFormat
	name := utils.GenerateOutputFileName(c.mainConfig.UUIDFormat, map[string]string{
		"bank":     l.Metadata().Bank,
		"original": strings.TrimSuffix(filepath.Base(c.path), filepath.Ext(c.path)),
	}, Extension(format))

	if err := os.MkdirAll(c.mainConfig.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(c.mainConfig.OutputDir, name)

	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteLedger(f, l, format); err != nil {
		f.Close()
		os.Remove(outputPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close output file: %w", err)
	}
	return outputPath, nil
}

// archiveFiles moves the input and copies the output into the archives.
func (c *Converter) archiveFiles(outputPath string) (string, error) {
	if c.files == nil || !c.mainConfig.ArchiveOnSuccess {
		return "", nil
	}
	archived, err := c.files.ArchiveInputFile(c.path)
	if err != nil {
		return "", fmt.Errorf("input archive: %w", err)
	}
	if _, err := c.files.ArchiveOutputFile(outputPath); err != nil {
		return archived, fmt.Errorf("output archive: %w", err)
	}
	return archived, nil
}

// =============================================================================
// READING AND WRITING
// =============================================================================

// ReadTable reads an input file into a raw table using the institution's
// sheet, delimiter and encoding. inst may be nil, in which case the first
// sheet is read and CSV encoding is detected.
func ReadTable(path string, inst *config.Institution) (*table.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		sheet := ""
		if inst != nil {
			sheet = inst.Sheet
		}
		return xlsxparser.Read(path, sheet)
	case ".csv":
		settings := csvparser.Settings{Encoding: "auto"}
		if inst != nil {
			settings.Delimiter = inst.Delimiter
			if inst.Encoding != "" {
				settings.Encoding = inst.Encoding
			}
		}
		return csvparser.Read(path, settings)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(path))
	}
}

// needsReread reports whether a table read with detection defaults must be
// read again with the detected institution's settings.
func needsReread(path string, inst *config.Institution, t *table.Table) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		if inst.Delimiter != "" && inst.Delimiter != "," {
			return true
		}
		enc := strings.ToLower(strings.TrimSpace(inst.Encoding))
		return enc != "" && enc != "auto" && enc != strings.ToLower(t.Encoding)
	default:
		return inst.Sheet != "" && inst.Sheet != t.Sheet
	}
}

// Extension returns the file extension for an output format.
func Extension(format string) string {
	switch format {
	case config.FormatJSON:
		return ".json"
	case config.FormatXML:
		return ".xml"
	default:
		return ".jsonl"
	}
}

// WriteLedger encodes the ledger in the given format.
func WriteLedger(w io.Writer, l *ledger.Ledger, format string) error {
	var err error
	switch format {
	case config.FormatJSON:
		err = ledger.EncodeJSON(w, l)
	case config.FormatXML:
		err = xmlwriter.Write(w, l, xmlwriter.DefaultGenerateOptions())
	case config.FormatJSONL, "":
		err = ledger.EncodeJSONL(w, l)
	default:
		return fmt.Errorf("%w: unknown output format %q", config.ErrInvalidConfig, format)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s output: %w", format, err)
	}
	return nil
}
