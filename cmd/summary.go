package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/statement-normalizer/internal/ledger"
)

var summaryCurrency string

// summaryCmd prints totals for a ledger written by process or import.
var summaryCmd = &cobra.Command{
	Use:   "summary LEDGER",
	Short: "Print totals for a ledger file (.jsonl or .json)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := readLedger(args[0])
		if err != nil {
			return err
		}
		return writeLedgerSummary(os.Stdout, l, summaryCurrency)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().StringVar(&summaryCurrency, "currency", "", "ISO currency code for display (default: from the ledger, when stored)")
}

func readLedger(path string) (*ledger.Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	var l *ledger.Ledger
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		l, err = ledger.DecodeJSON(f)
	default:
		l, err = ledger.DecodeJSONL(f, ledger.Metadata{SourceFile: filepath.Base(path)})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", path, err)
	}
	return l, nil
}

func writeLedgerSummary(w io.Writer, l *ledger.Ledger, currency string) error {
	meta := l.Metadata()
	if currency == "" {
		currency = meta.Currency
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Bank:          %s\n", meta.Bank)
	if meta.Account != "" {
		fmt.Fprintf(&b, "Account:       %s\n", meta.Account)
	}
	fmt.Fprintf(&b, "Transactions:  %d\n", l.Len())
	if r := l.DateRange(); r.IsSet() {
		fmt.Fprintf(&b, "Date Range:    %s\n", r)
	}
	fmt.Fprintf(&b, "Credits:       %s\n", formatMoney(l.Credits(), currency))
	fmt.Fprintf(&b, "Debits:        %s\n", formatMoney(l.Debits(), currency))
	fmt.Fprintf(&b, "Net:           %s\n", formatMoney(l.TotalAmount(), currency))

	cats := l.Categories()
	if len(cats) > 1 || (len(cats) == 1 && cats[0].Category != "") {
		b.WriteString("\nBy category:\n")
		for _, c := range cats {
			name := c.Category
			if name == "" {
				name = "(none)"
			}
			fmt.Fprintf(&b, "  %-24s %4d  %s\n", name, c.Count, formatMoney(c.Total, currency))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
