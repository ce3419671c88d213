package converter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/statement-normalizer/internal/adapter"
	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/ledger"
	"github.com/ginjaninja78/statement-normalizer/internal/validation"
	"github.com/ginjaninja78/statement-normalizer/pkg/utils"
)

const statementCSV = `Date,Details,Amount,Balance
01/03/2024,Coffee shop,-12.50,987.50
02/03/2024,Salary,"1,000.00","1,987.50"
`

func testBank() *config.Institution {
	return &config.Institution{
		Name:                 "Test Bank",
		FileMatchingPatterns: []string{"teststatement*.csv"},
		ColumnMappings: map[string]string{
			"date":        "Date",
			"description": "Details",
			"amount":      "Amount",
			"balance":     "Balance",
		},
		DateFormat: "DD/MM/YYYY",
	}
}

func testMainConfig(t *testing.T) *config.MainConfig {
	dir := t.TempDir()
	return &config.MainConfig{
		InputDir:         filepath.Join(dir, "input"),
		OutputDir:        filepath.Join(dir, "output"),
		InputArchiveDir:  filepath.Join(dir, "input_archive"),
		OutputArchiveDir: filepath.Join(dir, "output_archive"),
		OutputFormat:     config.FormatJSONL,
		UUIDFormat:       "{bank}_{original}",
		MaxConcurrency:   1,
	}
}

func writeInput(t *testing.T, dir, name, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunWritesLedger(t *testing.T) {
	mc := testMainConfig(t)
	path := writeInput(t, mc.InputDir, "teststatement_march.csv", statementCSV)

	res := New(path, nil, mc, WithInstitution(testBank())).Run(context.Background())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Test Bank", res.Institution)
	assert.Equal(t, 2, res.Stats.TransactionsCreated)
	assert.Equal(t, 3, res.Stats.RowsRead)
	assert.Zero(t, res.Stats.Warnings)
	assert.Equal(t, filepath.Join(mc.OutputDir, "Test_Bank_teststatement_march.jsonl"), res.OutputFile)
	assert.Empty(t, res.ErrorLogEntries())

	f, err := os.Open(res.OutputFile)
	require.NoError(t, err)
	defer f.Close()
	l, err := ledger.DecodeJSONL(f, ledger.Metadata{})
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())
	assert.Equal(t, "Test Bank", l.Metadata().Bank)
	assert.True(t, l.TotalAmount().Equal(decimal.RequireFromString("987.50")))

	// input stays in place when archiving is off
	assert.FileExists(t, path)
}

func TestRunDetectsInstitution(t *testing.T) {
	mc := testMainConfig(t)
	path := writeInput(t, mc.InputDir, "teststatement.csv", statementCSV)

	res := New(path, []*config.Institution{testBank()}, mc, WithDryRun()).Run(context.Background())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Test Bank", res.Institution)
	assert.Empty(t, res.OutputFile)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, 2, res.Outcome.Ledger().Len())

	_, err := os.Stat(mc.OutputDir)
	assert.True(t, os.IsNotExist(err), "dry run must not create output")
}

func TestRunNoMatchingInstitution(t *testing.T) {
	mc := testMainConfig(t)
	path := writeInput(t, mc.InputDir, "unknown.csv", "a,b\n1,2\n")

	res := New(path, nil, mc).Run(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, ErrorTypeDetection, res.ErrorType)
	assert.True(t, errors.Is(res.Error, adapter.ErrNoMatch))
	assert.Nil(t, res.Outcome)

	entries := res.ErrorLogEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "unknown.csv", entries[0].FileName)
}

func TestRunStructuralFailure(t *testing.T) {
	mc := testMainConfig(t)
	path := writeInput(t, mc.InputDir, "teststatement.csv", "Date,Details,Balance\n01/03/2024,Coffee,987.50\n")

	res := New(path, nil, mc, WithInstitution(testBank())).Run(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, ErrorTypeStructural, res.ErrorType)
	require.NotNil(t, res.Outcome)
	assert.Nil(t, res.Outcome.Ledger())
	assert.Contains(t, res.Error.Error(), "Amount")

	entries := res.ErrorLogEntries()
	require.NotEmpty(t, entries)
	assert.Equal(t, "Test Bank", entries[0].Bank)
	assert.Equal(t, ErrorTypeStructural, entries[0].ErrorType)
}

func TestRunValidationWarningsAsErrors(t *testing.T) {
	mc := testMainConfig(t)
	mc.TreatWarningsAsErrors = true
	// the second balance does not follow from the first
	body := "Date,Details,Amount,Balance\n01/03/2024,Coffee,-12.50,987.50\n02/03/2024,Salary,100.00,5000.00\n"
	path := writeInput(t, mc.InputDir, "teststatement.csv", body)

	res := New(path, nil, mc, WithInstitution(testBank())).Run(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, ErrorTypeValidation, res.ErrorType)
	assert.Positive(t, res.Stats.ValidationIssues)
	assert.Empty(t, res.OutputFile)
}

func TestRunValidationOptions(t *testing.T) {
	mc := testMainConfig(t)
	mc.TreatWarningsAsErrors = true
	body := "Date,Details,Amount,Balance\n01/03/2024,Coffee,-12.50,987.50\n02/03/2024,Salary,100.00,5000.00\n"
	path := writeInput(t, mc.InputDir, "teststatement.csv", body)

	opts := validation.DefaultValidationOptions()
	opts.Disabled = []string{validation.CheckBalance}
	res := New(path, nil, mc, WithInstitution(testBank()), WithValidationOptions(opts), WithDryRun()).Run(context.Background())
	require.True(t, res.Success, res.Error)
	assert.Zero(t, res.Stats.ValidationIssues)
}

func TestRunArchivesOnSuccess(t *testing.T) {
	mc := testMainConfig(t)
	mc.ArchiveOnSuccess = true
	path := writeInput(t, mc.InputDir, "teststatement.csv", statementCSV)
	fm := utils.NewFileManager(mc.InputDir, mc.OutputDir, mc.InputArchiveDir, mc.OutputArchiveDir)

	res := New(path, nil, mc, WithInstitution(testBank()), WithFileManager(fm)).Run(context.Background())
	require.True(t, res.Success, res.Error)
	assert.NoFileExists(t, path)
	assert.FileExists(t, res.ArchivePath)
	assert.True(t, strings.HasPrefix(res.ArchivePath, mc.InputArchiveDir))
	assert.FileExists(t, res.OutputFile)

	archived, err := os.ReadDir(mc.OutputArchiveDir)
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestRunCanceled(t *testing.T) {
	mc := testMainConfig(t)
	path := writeInput(t, mc.InputDir, "teststatement.csv", statementCSV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New(path, nil, mc, WithInstitution(testBank())).Run(ctx)
	assert.False(t, res.Success)
	assert.Equal(t, ErrorTypeCanceled, res.ErrorType)
	assert.True(t, errors.Is(res.Error, context.Canceled))
}

func TestReadTable(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadTable(filepath.Join(dir, "statement.pdf"), nil)
	assert.True(t, errors.Is(err, ErrUnsupportedFile))

	path := writeInput(t, dir, "semi.csv", "Date;Details;Amount\n01/03/2024;Coffee;-1\n")
	inst := testBank()
	inst.Delimiter = ";"
	tbl, err := ReadTable(path, inst)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Width())
	assert.True(t, needsReread(path, inst, tbl))
	assert.False(t, needsReread(path, testBank(), tbl))

	inst = testBank()
	inst.Encoding = "windows-1255"
	assert.True(t, needsReread(path, inst, tbl))
	inst.Encoding = "UTF-8"
	assert.False(t, needsReread(path, inst, tbl))
}

func testLedger(t *testing.T) *ledger.Ledger {
	tx, err := ledger.NewTransaction(ledger.Entry{
		Date:        civil.Date{Year: 2024, Month: 3, Day: 1},
		Description: "Coffee <shop>",
		Amount:      decimal.RequireFromString("-12.50"),
		Bank:        "Test Bank",
	})
	require.NoError(t, err)
	l, err := ledger.New([]ledger.Transaction{tx}, ledger.Metadata{Bank: "Test Bank", SourceFile: "s.csv"})
	require.NoError(t, err)
	return l
}

func TestWriteLedgerFormats(t *testing.T) {
	l := testLedger(t)

	tests := []struct {
		format string
		want   string
	}{
		{config.FormatJSONL, `"description":"Coffee <shop>"`},
		{config.FormatJSON, `"transactions"`},
		{config.FormatXML, "Coffee &lt;shop&gt;"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteLedger(&buf, l, tt.format))
			assert.Contains(t, buf.String(), tt.want)
		})
	}

	err := WriteLedger(&bytes.Buffer{}, l, "yaml")
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".jsonl", Extension(config.FormatJSONL))
	assert.Equal(t, ".json", Extension(config.FormatJSON))
	assert.Equal(t, ".xml", Extension(config.FormatXML))
	assert.Equal(t, ".jsonl", Extension(""))
}
