package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/table"
)

func ibiExport() *table.Table {
	return statement(
		[]string{"תאריך", "תיאור", "תאריך ערך", "אסמכתא", "סכום", "יתרה"},
		[]string{"01/02/2024", "משכורת", "01/02/2024", "1001", "10,000.00", "10,000.00"},
		[]string{"03/02/2024", "מכולת", "03/02/2024", "1002", "-250", "9,750.00"},
	)
}

func TestDetectByFileName(t *testing.T) {
	custom := testBank()
	custom.FileMatchingPatterns = []string{"testbank_*.csv"}

	c, err := Detect("/in/TestBank_2024-03.csv", table.New("x", nil), []*config.Institution{custom}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Test Bank", c.Institution.Name)
	assert.Equal(t, 1.0, c.Score)
}

func TestDetectByLayout(t *testing.T) {
	insts := append(Builtin(), testBank())
	ranked := Rank("export.csv", ibiExport(), insts, nil)
	require.Len(t, ranked, 3)
	assert.Equal(t, "IBI", ranked[0].Institution.Name)
	assert.Equal(t, "layout", ranked[0].Reason)

	c, err := Detect("export.csv", ibiExport(), insts, nil)
	require.NoError(t, err)
	assert.Equal(t, "IBI", c.Institution.Name)
}

func TestDetectNoMatch(t *testing.T) {
	raw := statement([]string{"hello", "world"}, []string{"1", "2"})
	_, err := Detect("notes.csv", raw, []*config.Institution{testBank()}, nil)
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = Detect("notes.csv", raw, nil, nil)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestHeaderSimilarity(t *testing.T) {
	raw := statement([]string{"date", " Amount "}, []string{"01/01/2024", "1"})

	assert.InDelta(t, 1.0, HeaderSimilarity([]string{"Date", "Amount"}, raw), 1e-9)
	assert.InDelta(t, 0.9, HeaderSimilarity([]string{"Dates", "Amount"}, raw), 1e-9)
	assert.Equal(t, 0.0, HeaderSimilarity(nil, raw))
	assert.Equal(t, 0.0, HeaderSimilarity([]string{"Date"}, table.New("x", nil)))
}

func TestDetectByHeaderSimilarity(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		found  bool
	}{
		{"near miss", []string{"Date", "Detail", "Amount", "Balance"}, true},
		{"reworded", []string{"Posted", "Memo", "Amount", "Balance"}, false},
		{"label missing", []string{"Date", "Amount", "Balance"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := statement(tt.header, []string{"01/03/2024", "Coffee", "-3", "97"})
			c, err := Detect("export.csv", raw, []*config.Institution{testBank()}, nil)
			if !tt.found {
				assert.ErrorIs(t, err, ErrNoMatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Test Bank", c.Institution.Name)
			assert.Equal(t, "header similarity", c.Reason)
			assert.GreaterOrEqual(t, c.Score, MinScore)
		})
	}
}

func TestHeaderScore(t *testing.T) {
	raw := statement([]string{"Date", "Detail", "Amount"}, []string{"01/01/2024", "x", "1"})

	strong := headerScore([]string{"Date", "Details", "Amount"}, raw)
	assert.GreaterOrEqual(t, strong, MinScore)
	assert.InDelta(t, 0.4+0.6*HeaderSimilarity([]string{"Date", "Details", "Amount"}, raw), strong, 1e-9)

	weak := headerScore([]string{"Date", "Narrative", "Amount"}, raw)
	assert.Less(t, weak, MinScore)
	assert.Equal(t, 0.0, headerScore(nil, raw))
}
