package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/statement-normalizer/internal/adapter"
	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/converter"
	"github.com/ginjaninja78/statement-normalizer/internal/table"
	"github.com/ginjaninja78/statement-normalizer/internal/xlsxparser"
	"github.com/ginjaninja78/statement-normalizer/pkg/utils"
)

var (
	previewBank string
	previewRows int
)

// previewCmd shows how a file is read and which institution it matches,
// without writing anything. Useful when writing a new institution config.
var previewCmd = &cobra.Command{
	Use:   "preview FILE",
	Short: "Show the raw rows, detection scores and parsed transactions of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreview(args[0])
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringVar(&previewBank, "bank", "", "Institution to parse with (default: best detected)")
	previewCmd.Flags().IntVarP(&previewRows, "rows", "n", 10, "Number of rows to show")
}

func runPreview(path string) error {
	size, err := utils.GetFileSize(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	fmt.Printf("File:     %s (%d bytes)\n", filepath.Base(path), size)

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".xlsx" || ext == ".xlsm" {
		info, err := xlsxparser.Info(path, "")
		if err != nil {
			return err
		}
		fmt.Printf("Sheets:   %s\n", strings.Join(info.Sheets, ", "))
		fmt.Printf("Sheet:    %s (%d rows x %d columns)\n", info.Sheet, info.Rows, info.Columns)
	}

	t, err := converter.ReadTable(path, nil)
	if err != nil {
		return err
	}
	if t.Sheet == "" {
		fmt.Printf("Encoding: %s (%d rows x %d columns)\n", t.Encoding, t.Len(), t.Width())
	}

	fmt.Println(heading.Render("\nRaw rows:"))
	printRows(t, previewRows)

	insts, err := loadInstitutions()
	if err != nil {
		return err
	}
	ranked := adapter.Rank(path, t, insts, logger)
	fmt.Println(heading.Render("\nDetection:"))
	for _, c := range ranked {
		mark := " "
		if c.Score >= adapter.MinScore {
			mark = okMark
		}
		fmt.Printf("  %s %-20s %.2f  %s\n", mark, c.Institution.Name, c.Score, c.Reason)
	}

	var inst *config.Institution
	switch {
	case previewBank != "":
		if inst, err = findInstitution(insts, previewBank); err != nil {
			return err
		}
	case len(ranked) > 0 && ranked[0].Score >= adapter.MinScore:
		inst = ranked[0].Institution
	default:
		fmt.Println("\nNo institution matches this file.")
		return nil
	}

	if t, err = converter.ReadTable(path, inst); err != nil {
		return err
	}
	a, err := adapter.New(inst, logger)
	if err != nil {
		return err
	}
	out := a.Transform(t)

	fmt.Printf("\nParsed as %s: %s\n", inst.Name, out.State())
	for _, e := range out.Errors() {
		fmt.Printf("  %s   %s\n", failMark, e)
	}
	for _, w := range out.Warnings() {
		fmt.Printf("  %s %s\n", warnText.Render("warning:"), w)
	}
	if l := out.Ledger(); l != nil {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tAMOUNT\tBALANCE\tDESCRIPTION")
		for i, tx := range l.Transactions() {
			if i == previewRows {
				break
			}
			bal := ""
			if b, ok := tx.Balance(); ok {
				bal = b.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tx.Date(), tx.Amount(), bal, tx.Description())
		}
		w.Flush()
		fmt.Printf("%d transaction(s), %s\n", l.Len(), l.DateRange())
	}
	return nil
}

func printRows(t *table.Table, n int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for i, r := range t.Rows() {
		if i == n {
			break
		}
		cells := make([]string, len(r.Cells))
		for j, c := range r.Cells {
			cells[j] = strings.TrimSpace(c.String())
		}
		fmt.Fprintf(w, "%d\t%s\n", r.Number, strings.Join(cells, "\t"))
	}
	w.Flush()
}
