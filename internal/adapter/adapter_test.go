package adapter

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/table"
)

func testBank() *config.Institution {
	return &config.Institution{
		Name: "Test Bank",
		ColumnMappings: map[string]string{
			"date":        "Date",
			"description": "Details",
			"amount":      "Amount",
			"balance":     "Balance",
		},
		DateFormat: "DD/MM/YYYY",
	}
}

func statement(rows ...[]string) *table.Table {
	return table.FromStrings("statement.csv", rows)
}

func TestNewRejectsMissingAmountMapping(t *testing.T) {
	cfg := testBank()
	delete(cfg.ColumnMappings, "amount")

	a, err := NewGeneric(cfg, nil)
	require.Error(t, err)
	assert.Nil(t, a)

	var se *StructuralError
	assert.True(t, errors.As(err, &se))
	assert.True(t, errors.Is(err, config.ErrMissingMapping))
}

func TestTransformGeneric(t *testing.T) {
	a, err := NewGeneric(testBank(), nil)
	require.NoError(t, err)

	out := a.Transform(statement(
		[]string{"Account statement", "", "", ""},
		[]string{"Date", "Details", "Amount", "Balance"},
		[]string{"01/03/2024", "  Coffee   shop ", "-12.50", "987.50"},
		[]string{"", "", "", ""},
		[]string{"02/03/2024", "Salary", "1,000.00", "1,987.50"},
		[]string{"Total", "", "987.50", ""},
	))
	require.True(t, out.Success(), out.Errors())
	assert.Empty(t, out.Warnings())

	l := out.Ledger()
	require.NotNil(t, l)
	require.Equal(t, 2, l.Len())
	assert.Equal(t, 2, l.Metadata().TotalTransactions)
	assert.Equal(t, "Test Bank", l.Metadata().Bank)
	assert.Equal(t, "statement.csv", l.Metadata().SourceFile)

	txs := l.Transactions()
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 1}, txs[0].Date())
	assert.Equal(t, "Coffee shop", txs[0].Description())
	assert.True(t, txs[0].Amount().Equal(decimal.RequireFromString("-12.50")))
	bal, ok := txs[0].Balance()
	assert.True(t, ok)
	assert.True(t, bal.Equal(decimal.RequireFromString("987.50")))
	assert.True(t, l.TotalAmount().Equal(decimal.RequireFromString("987.50")))
}

func TestTransformDateNotations(t *testing.T) {
	tests := []struct {
		name   string
		format string
		first  string
		second string
	}{
		{"token", "DD/MM/YYYY", "01/03/2024", "02/03/2024"},
		{"go layout", "2006-01-02", "2024-03-01", "2024-03-02"},
		{"strftime month name", "%d-%b-%Y", "01-Mar-2024", "02-Mar-2024"},
		{"token month name", "DD MMM YYYY", "1 Mar 2024", "2 Mar 2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testBank()
			cfg.DateFormat = tt.format
			a, err := NewGeneric(cfg, nil)
			require.NoError(t, err)

			out := a.Transform(statement(
				[]string{"Date", "Details", "Amount", "Balance"},
				[]string{tt.first, "Coffee", "-12.50", ""},
				[]string{tt.second, "Salary", "100", ""},
				[]string{"Total", "", "87.50", ""},
			))
			require.True(t, out.Success(), out.Errors())
			assert.Empty(t, out.Warnings())

			txs := out.Ledger().Transactions()
			require.Len(t, txs, 2)
			assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 1}, txs[0].Date())
			assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 2}, txs[1].Date())
		})
	}
}

func TestTransformSkipsBadRow(t *testing.T) {
	a, err := NewGeneric(testBank(), nil)
	require.NoError(t, err)

	out := a.Transform(statement(
		[]string{"Date", "Details", "Amount", "Balance"},
		[]string{"01/03/2024", "Coffee", "abc", ""},
		[]string{"02/03/2024", "Salary", "100", ""},
	))
	require.True(t, out.Success())
	require.Len(t, out.Warnings(), 1)
	assert.Contains(t, out.Warnings()[0], "row 2")
	assert.Equal(t, 1, out.Ledger().Len())
}

// failingRules rejects every value of the listed fields.
type failingRules map[string]bool

func (r failingRules) Has(field string) bool { return r[field] }

func (r failingRules) Apply(field, value string, _ map[string]string) (string, error) {
	return "", errors.New("rejected")
}

func TestOptionalFieldErrorsReportFirstField(t *testing.T) {
	cfg := testBank()
	cfg.ColumnMappings["reference"] = "Ref"
	cfg.ColumnMappings["category"] = "Category"
	cfg.ColumnMappings["account"] = "Account"
	a, err := NewGeneric(cfg, nil)
	require.NoError(t, err)
	a.(*Generic).rules = failingRules{FieldAccount: true, FieldCategory: true, FieldReference: true}

	raw := statement(
		[]string{"Date", "Details", "Amount", "Balance", "Ref", "Category", "Account"},
		[]string{"01/03/2024", "Coffee", "-3", "", "r1", "food", "123"},
	)
	for i := 0; i < 20; i++ {
		out := a.Transform(raw)
		require.True(t, out.Success())
		require.Len(t, out.Warnings(), 1)
		assert.Contains(t, out.Warnings()[0], "field reference")
	}
}

func TestTransformWarnsWhenNoRowsRemain(t *testing.T) {
	a, err := NewGeneric(testBank(), nil)
	require.NoError(t, err)

	out := a.Transform(statement(
		[]string{"Date", "Details", "Amount", "Balance"},
		[]string{"Total", "", "0", ""},
	))
	require.True(t, out.Success())
	assert.Equal(t, 0, out.Ledger().Len())
	assert.Equal(t, []string{"no transaction rows found among 2 rows"}, out.Warnings())
}

func TestTransformUnreadableBalanceIsAbsent(t *testing.T) {
	a, err := NewGeneric(testBank(), nil)
	require.NoError(t, err)

	out := a.Transform(statement(
		[]string{"Date", "Details", "Amount", "Balance"},
		[]string{"01/03/2024", "Coffee", "-3", "n/a"},
	))
	require.True(t, out.Success())
	_, ok := out.Ledger().Transactions()[0].Balance()
	assert.False(t, ok)
}

func TestTransformEmptyTable(t *testing.T) {
	a, err := NewGeneric(testBank(), nil)
	require.NoError(t, err)

	out := a.Transform(table.New("empty.csv", nil))
	require.True(t, out.Success())
	assert.Equal(t, 0, out.Ledger().Len())
	assert.Equal(t, 0, out.Ledger().Metadata().TotalTransactions)
}

func TestTransformMissingColumnFails(t *testing.T) {
	a, err := NewGeneric(testBank(), nil)
	require.NoError(t, err)

	out := a.Transform(statement(
		[]string{"Date", "Details", "Balance"},
		[]string{"01/03/2024", "Coffee", "10"},
	))
	assert.False(t, out.Success())
	assert.Nil(t, out.Ledger())
	require.NotEmpty(t, out.Errors())
	assert.Contains(t, out.Errors()[0], "Amount")
}

func TestExtractFieldMissingColumn(t *testing.T) {
	a, err := NewGeneric(testBank(), nil)
	require.NoError(t, err)

	_, err = a.ExtractField(table.Row{Cells: []table.Cell{table.TextCell("x")}}, "date")
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = a.ExtractField(table.Row{}, "category")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestDebitCreditColumns(t *testing.T) {
	cfg := &config.Institution{
		Name: "Split Bank",
		ColumnMappings: map[string]string{
			"date":        "0",
			"description": "1",
			"amount":      "3",
		},
		AmountColumns: &config.AmountColumns{Debit: "2", Credit: "3"},
		SkipRows:      config.Rows(1),
	}
	a, err := NewGeneric(cfg, nil)
	require.NoError(t, err)

	out := a.Transform(statement(
		[]string{"date", "memo", "debit", "credit"},
		[]string{"05/01/2024", "Rent", "1,200.00", ""},
		[]string{"06/01/2024", "Refund", "", "40.10"},
		[]string{"07/01/2024", "Nothing", "", ""},
	))
	require.True(t, out.Success())
	assert.Len(t, out.Warnings(), 1)

	txs := out.Ledger().Transactions()
	require.Len(t, txs, 2)
	assert.True(t, txs[0].Amount().Equal(decimal.RequireFromString("-1200")))
	assert.True(t, txs[1].Amount().Equal(decimal.RequireFromString("40.10")))
}

func TestTransformationsApplyBeforeParsing(t *testing.T) {
	cfg := testBank()
	cfg.Transformations = []config.TransformationRule{
		{Field: "amount", Actions: []config.TransformationAction{{Type: "remove_chars", Value: "NIS "}}},
		{Field: "reference", Actions: []config.TransformationAction{{Type: "if_empty_use_default", Value: "none"}}},
	}
	cfg.ColumnMappings["reference"] = "Ref"
	a, err := NewGeneric(cfg, nil)
	require.NoError(t, err)

	out := a.Transform(statement(
		[]string{"Date", "Details", "Amount", "Balance", "Ref"},
		[]string{"01/03/2024", "Coffee", "NIS 12", "", ""},
	))
	require.True(t, out.Success(), out.Errors())
	tx := out.Ledger().Transactions()[0]
	assert.True(t, tx.Amount().Equal(decimal.NewFromInt(12)))
	assert.Equal(t, "none", tx.Reference())
}

func TestIBI(t *testing.T) {
	a, err := NewIBI(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "IBI", a.Name())

	raw := statement(
		[]string{"תנועות בחשבון 123456789", "", "", "", "", ""},
		[]string{"סניף 012", "", "", "", "", ""},
		[]string{"תאריך", "תיאור", "תאריך ערך", "אסמכתא", "סכום", "יתרה"},
		[]string{"01/02/2024", "משכורת", "01/02/2024", "1001", "₪10,000.00", "10,000.00"},
		[]string{"03/02/2024", "העברה לחשבון 987654321", "03/02/2024", "1002", "(2,500.50)", "7,499.50"},
		[]string{"", "", "", "", "", ""},
		[]string{"סה\"כ", "", "", "", "7,499.50", ""},
	)
	require.Greater(t, a.(Sniffer).Sniff(raw), MinScore)

	out := a.Transform(raw)
	require.True(t, out.Success(), out.Errors())
	assert.Empty(t, out.Warnings())

	l := out.Ledger()
	require.Equal(t, 2, l.Len())
	assert.Equal(t, "012-123456789", l.Metadata().Account)
	assert.Equal(t, "ILS", l.Metadata().Currency)

	txs := l.Transactions()
	assert.Equal(t, "1001", txs[0].Reference())
	assert.Equal(t, "012-123456789", txs[0].Account())
	assert.True(t, txs[1].Amount().Equal(decimal.RequireFromString("-2500.50")))
	assert.True(t, l.TotalAmount().Equal(decimal.RequireFromString("7499.50")))
}

func TestIBIOverrides(t *testing.T) {
	a, err := NewIBI(&config.Institution{Name: "IBI Joint", DateFormat: "YYYY-MM-DD"}, nil)
	require.NoError(t, err)

	ibi := a.(*IBI)
	assert.Equal(t, "IBI Joint", ibi.Name())
	assert.Equal(t, "YYYY-MM-DD", ibi.Config().DateFormat)
	assert.Equal(t, 1, ibi.Config().Skip())
}

func TestIBIOverrideWithoutPreamble(t *testing.T) {
	a, err := NewIBI(&config.Institution{SkipRows: config.Rows(0)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, a.(*IBI).Config().Skip())

	out := a.Transform(statement(
		[]string{"01/02/2024", "משכורת", "01/02/2024", "1001", "100.00", "100.00"},
		[]string{"02/02/2024", "מכולת", "02/02/2024", "1002", "-20", "80.00"},
	))
	require.True(t, out.Success(), out.Errors())
	assert.Equal(t, 2, out.Ledger().Len())
}

func TestIBISecurities(t *testing.T) {
	a, err := NewIBISecurities(nil, nil)
	require.NoError(t, err)

	header := []string{
		"תאריך", "סוג פעולה", "שם נייר", "מס' נייר / סימבול", "כמות", "שער ביצוע",
		"מטבע", "עמלת פעולה", "עמלות נלוות", "תמורה במט\"ח", "תמורה בשקלים", "יתרה שקלית",
		"אומדן מס רווחי הון",
	}
	raw := statement(
		header,
		[]string{"10/01/2024", "קניה", "TEVA", "629014", "10", "40", "ILS", "5", "0", "", "-405", "9,595", "0"},
		[]string{"15/01/2024", "דיבידנד", "TEVA", "629014", "", "", "ILS", "", "", "", "12.30", "9,607.30", "3.1"},
		[]string{"31/01/2024", "דמי ניהול", "", "", "", "", "ILS", "", "", "", "-15", "9,592.30", ""},
	)
	require.Greater(t, a.(Sniffer).Sniff(raw), MinScore)

	out := a.Transform(raw)
	require.True(t, out.Success(), out.Errors())
	txs := out.Ledger().Transactions()
	require.Len(t, txs, 3)

	assert.Equal(t, "קניה TEVA", txs[0].Description())
	assert.Equal(t, "stocks", txs[0].Category())
	assert.Equal(t, "629014", txs[0].Reference())
	assert.Equal(t, "dividend", txs[1].Category())
	assert.Equal(t, "דמי ניהול", txs[2].Description())
	assert.Equal(t, "fee", txs[2].Category())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"קניה", CategoryStocks},
		{"קנייה חול", CategoryStocks},
		{"מכירה", CategoryStocks},
		{"דיבידנד", CategoryDividend},
		{"עמלת קניה", CategoryStocks},
		{"דמי ניהול", CategoryFee},
		{"מס במקור", CategoryTax},
		{"ריבית זכות", CategoryInterest},
		{"הפקדה", CategoryDeposit},
		{"משיכה", CategoryWithdrawal},
		{"העברה", CategoryTransfer},
		{"Dividend", CategoryDividend},
		{"Commission", CategoryFee},
		{"", CategoryOther},
		{"שונות", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"generic", "ibi", "ibi-securities"}, Variants())

	a, err := New(&config.Institution{Name: "IBI", Adapter: "ibi"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &IBI{}, a)

	a, err = New(testBank(), nil)
	require.NoError(t, err)
	assert.IsType(t, &Generic{}, a)

	_, err = New(&config.Institution{Name: "X", Adapter: "nope"}, nil)
	var se *StructuralError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	builtin := Builtin()
	require.Len(t, builtin, 2)
	assert.Equal(t, "IBI", builtin[0].Name)
	assert.Equal(t, "IBI Securities", builtin[1].Name)
}

func TestResolveOverlaysBuiltins(t *testing.T) {
	custom := &config.Institution{Name: "IBI", Adapter: "ibi", FileMatchingPatterns: []string{"ibi_*.xlsx"}}
	out := Resolve([]*config.Institution{custom, testBank()})
	require.Len(t, out, 3)

	assert.Equal(t, "IBI", out[0].Name)
	assert.Equal(t, "0", out[0].ColumnMappings["date"])
	assert.Equal(t, []string{"ibi_*.xlsx"}, out[0].FileMatchingPatterns)
	assert.Equal(t, "Test Bank", out[1].Name)
	assert.Equal(t, "IBI Securities", out[2].Name)
}
