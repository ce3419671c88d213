package adapter

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/fields"
	"github.com/ginjaninja78/statement-normalizer/internal/ledger"
	"github.com/ginjaninja78/statement-normalizer/internal/table"
)

// =============================================================================
// IBI SECURITIES (BROKERAGE)
// =============================================================================

// FieldTransactionType is the broker's action column ("קניה", "דיבידנד"...).
const FieldTransactionType = "transaction_type"

// IBISecuritiesDefaults is the layout of the IBI brokerage export: one
// labelled header row, one line per trade, dividend, fee or tax.
func IBISecuritiesDefaults() *config.Institution {
	header := 0
	return &config.Institution{
		Name:    "IBI Securities",
		Adapter: "ibi-securities",
		ColumnMappings: map[string]string{
			FieldDate:                    "תאריך",
			FieldDescription:             "שם נייר",
			FieldAmount:                  "תמורה בשקלים",
			FieldBalance:                 "יתרה שקלית",
			FieldReference:               "מס' נייר / סימבול",
			FieldTransactionType:         "סוג פעולה",
			"quantity":                   "כמות",
			"execution_price":            "שער ביצוע",
			"currency":                   "מטבע",
			"transaction_fee":            "עמלת פעולה",
			"additional_fees":            "עמלות נלוות",
			"amount_foreign_currency":    "תמורה במט\"ח",
			"capital_gains_tax_estimate": "אומדן מס רווחי הון",
		},
		DateFormat:     "DD/MM/YYYY",
		HeaderRow:      &header,
		Encoding:       "utf-8",
		Currency:       "ILS",
		FooterKeywords: ibiFooterKeywords,
	}
}

// IBISecurities reads IBI brokerage exports. The description is the action
// followed by the security name, and the category is derived from the action.
type IBISecurities struct {
	*Base
}

// NewIBISecurities builds the brokerage adapter. cfg overrides the defaults
// and may be nil.
func NewIBISecurities(cfg *config.Institution, log *zap.Logger) (Adapter, error) {
	b, err := NewBase(cfg.Overlay(IBISecuritiesDefaults()), log)
	if err != nil {
		return nil, err
	}
	return &IBISecurities{Base: b}, nil
}

// Transform runs the pipeline with the brokerage row rules.
func (a *IBISecurities) Transform(t *table.Table) *ledger.Outcome {
	return a.Run(a, t)
}

// ParseRow parses the common fields, then folds the action into the
// description and classifies it.
func (a *IBISecurities) ParseRow(row table.Row) (ledger.Transaction, error) {
	e, err := a.ParseEntry(row)
	if err != nil {
		return ledger.Transaction{}, err
	}
	action, err := a.optionalText(row, FieldTransactionType)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if action != "" {
		e.Description = fields.CleanDescription(action + " " + e.Description)
		if e.Category == "" {
			e.Category = string(Classify(action))
		}
	}
	return newTransaction(row, e)
}

// Sniff requires the action column in addition to the common checks.
func (a *IBISecurities) Sniff(t *table.Table) float64 {
	col, _ := a.mapping.Column(FieldTransactionType)
	if !a.prepare(t).HasColumn(strings.TrimSpace(col)) {
		return 0
	}
	return a.Base.Sniff(t)
}
