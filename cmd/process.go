// =============================================================================
// Statement Normalizer - Process Command
// =============================================================================
//
// This file defines the 'process' command, the batch entry point. It imports
// every supported file in the input directory.
//
// COMMAND USAGE:
//   normalizer process [flags]
//
// FLAGS:
//   --dry-run    : Run every step except writing and archiving
//   --bank       : Skip detection and import every file as this institution
//   --pattern    : Only process files whose name matches this glob
//   --recursive  : Also scan subdirectories of the input directory
//   --retention  : Remove archived files older than this duration
//
// PROCESSING PIPELINE:
//   1. Load the main configuration and the institution configurations
//   2. Discover XLSX/CSV files in the input directory
//   3. For each file (concurrently, bounded by max_concurrency):
//      a. Read the file into a raw table
//      b. Detect the institution
//      c. Transform the table into a ledger
//      d. Validate the ledger
//      e. Write the ledger to the output directory
//      f. Archive the input and the output
//   4. Write the summary report and the error log
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/converter"
	"github.com/ginjaninja78/statement-normalizer/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	dryRun    bool
	bankName  string
	pattern   string
	recursive bool
	retention time.Duration
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Import every statement in the input directory",
	Long: `The process command scans the input directory for XLSX and CSV exports,
detects the institution of each one and converts it into a canonical ledger.

Files are processed concurrently. A failure in one file does not affect the
others unless continue_on_error is false.

On success:
  - The ledger is written to the output directory
  - The source file is moved to the input archive
  - A summary report is written

On error:
  - The reason is written to an error log in the output directory
  - The source file stays in the input directory`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run every step except writing and archiving")
	processCmd.Flags().StringVar(&bankName, "bank", "", "Import every file as this institution instead of detecting it")
	processCmd.Flags().StringVar(&pattern, "pattern", "", "Only process files matching this glob (e.g. \"*IBI*\")")
	processCmd.Flags().BoolVar(&recursive, "recursive", false, "Also scan subdirectories of the input directory")
	processCmd.Flags().DurationVar(&retention, "retention", 0, "Remove archived files older than this (e.g. 720h); 0 keeps everything")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	insts, err := loadInstitutions()
	if err != nil {
		return err
	}
	var forced *config.Institution
	if bankName != "" {
		if forced, err = findInstitution(insts, bankName); err != nil {
			return err
		}
	}

	if err := mainConfig.EnsureDirectories(); err != nil {
		return err
	}
	fm := newFileManager(mainConfig)

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if recursive {
		inputFiles, err = fm.DiscoverInputFilesRecursive()
		inputFiles = filterByPattern(inputFiles, pattern)
	} else {
		inputFiles, err = fm.DiscoverInputFiles(pattern)
	}
	if err != nil {
		return fmt.Errorf("failed to discover input files: %w", err)
	}
	if len(inputFiles) == 0 {
		logger.Info("no input files found", zap.String("dir", mainConfig.InputDir))
		return nil
	}
	logger.Info("found input files",
		zap.Int("count", len(inputFiles)),
		zap.Int("institutions", len(insts)))

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================

	opts := []converter.Option{converter.WithLogger(logger), converter.WithFileManager(fm)}
	if forced != nil {
		opts = append(opts, converter.WithInstitution(forced))
	}
	if dryRun {
		opts = append(opts, converter.WithDryRun())
	}
	results := processFiles(ctx, inputFiles, insts, mainConfig, opts...)

	// =========================================================================
	// STEP 4: SUMMARY, ERROR LOG AND RETENTION
	// =========================================================================

	summary := buildSummary(results, startTime)
	printSummary(summary)

	var entries []utils.ErrorLogEntry
	for _, r := range results {
		entries = append(entries, r.ErrorLogEntries()...)
	}

	if !dryRun {
		if path, err := utils.WriteSummaryLog(summary, mainConfig.OutputDir); err != nil {
			logger.Warn("failed to write summary log", zap.Error(err))
		} else {
			logger.Info("wrote summary log", zap.String("path", path))
		}
		if path, err := utils.WriteErrorLog(entries, mainConfig.OutputDir); err != nil {
			logger.Warn("failed to write error log", zap.Error(err))
		} else if path != "" {
			logger.Info("wrote error log", zap.String("path", path))
		}
		if retention > 0 {
			cleanArchives(retention)
		}
	}

	if summary.FailedFiles > 0 && !mainConfig.ContinueOnError {
		return fmt.Errorf("%d file(s) failed", summary.FailedFiles)
	}
	return nil
}

// processFiles converts files concurrently, at most cfg.MaxConcurrency at a
// time. Results come back in input order. When ContinueOnError is false the
// first failure cancels the files that have not started yet.
func processFiles(ctx context.Context, files []string, insts []*config.Institution, cfg *config.MainConfig, opts ...converter.Option) []converter.Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	type indexed struct {
		i   int
		res converter.Result
	}
	done := make(chan indexed, len(files))

	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				done <- indexed{i, converter.Result{
					FilePath:  path,
					Error:     ctx.Err(),
					ErrorType: converter.ErrorTypeCanceled,
				}}
				return
			}

			res := converter.New(path, insts, cfg, opts...).Run(ctx)
			if !res.Success && !cfg.ContinueOnError {
				cancel()
			}
			done <- indexed{i, res}
		}(i, file)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	results := make([]converter.Result, len(files))
	for r := range done {
		results[r.i] = r.res
	}
	return results
}

// buildSummary collects the results into the run summary.
func buildSummary(results []converter.Result, start time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		StartTime:  start,
		EndTime:    time.Now(),
		TotalFiles: len(results),
	}
	for _, r := range results {
		if !r.Success {
			summary.FailedFiles++
			msg := ""
			if r.Error != nil {
				msg = r.Error.Error()
			}
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    filepath.Base(r.FilePath),
				ErrorMessage: msg,
				ErrorType:    r.ErrorType,
			})
			continue
		}

		summary.SuccessfulFiles++
		summary.TotalTransactions += r.Stats.TransactionsCreated
		summary.TotalWarnings += r.Stats.Warnings

		info := utils.ProcessedFileInfo{
			InputFile:    filepath.Base(r.FilePath),
			OutputFile:   r.OutputFile,
			ArchivePath:  r.ArchivePath,
			Bank:         r.Institution,
			Transactions: r.Stats.TransactionsCreated,
			Warnings:     r.Stats.Warnings,
			ProcessTime:  r.Stats.ProcessingTime,
		}
		if r.Outcome != nil {
			if l := r.Outcome.Ledger(); l != nil {
				info.DateRange = l.DateRange().String()
				info.NetAmount = formatMoney(l.TotalAmount(), l.Metadata().Currency)
			}
		}
		summary.ProcessedFiles = append(summary.ProcessedFiles, info)
	}
	return summary
}

func printSummary(s utils.ProcessingSummary) {
	for _, pf := range s.ProcessedFiles {
		out := pf.OutputFile
		if out == "" {
			out = "(dry run)"
		}
		fmt.Printf("  %s %s -> %s %s\n", okMark, pf.InputFile, out, muted.Render(fmt.Sprintf("(%s, %d transactions)", pf.Bank, pf.Transactions)))
	}
	for _, ff := range s.FailedFilesList {
		fmt.Printf("  %s %s: %s\n", failMark, ff.InputFile, ff.ErrorMessage)
	}

	fmt.Println(heading.Render("\n=== Processing Complete ==="))
	fmt.Printf("Total files:     %d\n", s.TotalFiles)
	fmt.Printf("Successful:      %d\n", s.SuccessfulFiles)
	fmt.Printf("Errors:          %d\n", s.FailedFiles)
	fmt.Printf("Transactions:    %d\n", s.TotalTransactions)
	fmt.Printf("Time elapsed:    %s\n", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func newFileManager(cfg *config.MainConfig) *utils.FileManager {
	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	fm.ArchiveOnSuccess = cfg.ArchiveOnSuccess
	return fm
}

// filterByPattern keeps the files whose base name matches a glob. An empty
// pattern keeps everything.
func filterByPattern(files []string, glob string) []string {
	if glob == "" {
		return files
	}
	var out []string
	for _, f := range files {
		if ok, _ := filepath.Match(glob, filepath.Base(f)); ok {
			out = append(out, f)
		}
	}
	return out
}

func cleanArchives(maxAge time.Duration) {
	for _, dir := range []string{mainConfig.InputArchiveDir, mainConfig.OutputArchiveDir} {
		n, err := utils.CleanOldArchives(dir, maxAge)
		if err != nil {
			logger.Warn("failed to clean archive", zap.String("dir", dir), zap.Error(err))
			continue
		}
		if n > 0 {
			logger.Info("removed old archives", zap.String("dir", dir), zap.Int("files", n))
		}
	}
}
