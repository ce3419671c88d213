package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/converter"
)

var (
	importBank   string
	importOutput string
	importFormat string
	importDry    bool
)

// importCmd imports a single file, wherever it lives. Nothing is archived.
var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a single statement file",
	Long: `Import one XLSX or CSV export and write its ledger.

The institution is detected unless --bank is given. The ledger goes to the
output directory, or to --output ("-" for stdout).

Examples:
  normalizer import ./downloads/tnuot.xlsx
  normalizer import export.csv --bank "IBI Securities" --format json -o -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importBank, "bank", "", "Institution name; skips detection")
	importCmd.Flags().StringVarP(&importOutput, "output", "o", "", "Output file, \"-\" for stdout (default: a new file in the output directory)")
	importCmd.Flags().StringVar(&importFormat, "format", "", "Output format: jsonl, json or xml (default: output_format)")
	importCmd.Flags().BoolVar(&importDry, "dry-run", false, "Parse and validate without writing")
}

func runImport(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	insts, err := loadInstitutions()
	if err != nil {
		return err
	}

	cfg := *mainConfig
	cfg.ArchiveOnSuccess = false
	if importFormat != "" {
		cfg.OutputFormat = importFormat
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	opts := []converter.Option{converter.WithLogger(logger)}
	if importBank != "" {
		inst, err := findInstitution(insts, importBank)
		if err != nil {
			return err
		}
		opts = append(opts, converter.WithInstitution(inst))
	}
	// An explicit output path is written here rather than by the converter.
	if importDry || importOutput != "" {
		opts = append(opts, converter.WithDryRun())
	}

	res := converter.New(path, insts, &cfg, opts...).Run(ctx)
	if res.Outcome != nil {
		for _, w := range res.Outcome.Warnings() {
			fmt.Fprintf(os.Stderr, "%s %s\n", warnText.Render("warning:"), w)
		}
	}
	if !res.Success {
		if res.Outcome != nil {
			for _, e := range res.Outcome.Errors() {
				fmt.Fprintf(os.Stderr, "error: %s\n", e)
			}
		}
		return fmt.Errorf("import of %s failed: %w", path, res.Error)
	}

	if importOutput != "" && !importDry {
		if err := writeTo(importOutput, res, cfg.OutputFormat); err != nil {
			return err
		}
		res.OutputFile = importOutput
	}

	logger.Info("import complete",
		zap.String("bank", res.Institution),
		zap.Int("transactions", res.Stats.TransactionsCreated),
		zap.Int("warnings", res.Stats.Warnings),
		zap.Duration("elapsed", res.Stats.ProcessingTime))
	if res.OutputFile != "" && res.OutputFile != "-" {
		fmt.Println(res.OutputFile)
	}
	return nil
}

func writeTo(path string, res converter.Result, format string) error {
	l := res.Outcome.Ledger()
	if path == "-" {
		return converter.WriteLedger(os.Stdout, l, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := converter.WriteLedger(f, l, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// institutionNames lists names for help and error output.
func institutionNames(insts []*config.Institution) []string {
	names := make([]string, len(insts))
	for i, inst := range insts {
		names[i] = inst.Name
	}
	return names
}
