package adapter

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/ledger"
	"github.com/ginjaninja78/statement-normalizer/internal/table"
)

// =============================================================================
// GENERIC
// =============================================================================

// Generic is an adapter described entirely by its configuration.
type Generic struct {
	*Base
}

// NewGeneric builds a configuration-only adapter.
func NewGeneric(cfg *config.Institution, log *zap.Logger) (Adapter, error) {
	b, err := NewBase(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Generic{Base: b}, nil
}

// =============================================================================
// IBI BANK ACCOUNT
// =============================================================================

// ibiFooterKeywords mark the summary rows IBI appends after the data.
var ibiFooterKeywords = []string{"סה\u05f4כ", "סה\"כ", "סהכ", "סך הכל", "Total", "סיכום"}

var (
	ibiAccountRe = regexp.MustCompile(`חשבון.*?(\d{6,})`)
	ibiBranchRe  = regexp.MustCompile(`סניף.*?(\d{3,})`)
)

// IBIDefaults is the layout of the IBI current-account export: positional
// columns, one header row and a summary footer.
func IBIDefaults() *config.Institution {
	return &config.Institution{
		Name:    "IBI",
		Adapter: "ibi",
		ColumnMappings: map[string]string{
			FieldDate:        "0",
			FieldDescription: "1",
			FieldReference:   "3",
			FieldAmount:      "4",
			FieldBalance:     "5",
		},
		DateFormat:     "DD/MM/YYYY",
		SkipRows:       config.Rows(1),
		Encoding:       "utf-8",
		Currency:       "ILS",
		FooterKeywords: ibiFooterKeywords,
	}
}

// IBI reads IBI current-account exports.
type IBI struct {
	*Base
}

// NewIBI builds the IBI account adapter. cfg overrides the defaults and may
// be nil.
func NewIBI(cfg *config.Institution, log *zap.Logger) (Adapter, error) {
	b, err := NewBase(cfg.Overlay(IBIDefaults()), log)
	if err != nil {
		return nil, err
	}
	return &IBI{Base: b}, nil
}

// Transform runs the pipeline.
func (a *IBI) Transform(t *table.Table) *ledger.Outcome {
	return a.Run(a, t)
}

// AccountInfo reads the account and branch numbers from the rows above the
// first transaction.
func (a *IBI) AccountInfo(t *table.Table) AccountInfo {
	var info AccountInfo
	anchor, _ := a.mapping.Column(a.cfg.AnchorField)
	n := 0
	for i, r := range t.Rows() {
		if c, ok := r.Lookup(anchor); ok && anchorIsDate(c, a.shape) {
			n = i
			break
		}
		n = i + 1
	}
	for _, line := range t.Preamble(n) {
		if info.Number == "" {
			if m := ibiAccountRe.FindStringSubmatch(line); m != nil {
				info.Number = m[1]
			}
		}
		if info.Branch == "" {
			if m := ibiBranchRe.FindStringSubmatch(line); m != nil {
				info.Branch = m[1]
			}
		}
	}
	return info
}

// Sniff requires at least five columns before applying the common score.
func (a *IBI) Sniff(t *table.Table) float64 {
	if t.Width() < 5 {
		return 0
	}
	return a.Base.Sniff(t)
}
