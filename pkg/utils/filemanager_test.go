package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func newManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "archive", "input"),
		filepath.Join(root, "archive", "output"),
	)
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func TestDiscoverInputFiles(t *testing.T) {
	fm := newManager(t)
	for _, name := range []string{"b.xlsx", "a.CSV", "c.xlsm", "notes.txt", "~$b.xlsx", ".hidden.csv"} {
		touch(t, filepath.Join(fm.InputDir, name))
	}
	touch(t, filepath.Join(fm.InputDir, "nested", "d.xlsx"))

	files, err := fm.DiscoverInputFiles("")
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"a.CSV", "b.xlsx", "c.xlsm"}, names)

	files, err = fm.DiscoverInputFiles("*.xlsx")
	require.NoError(t, err)
	assert.Len(t, files, 1)

	files, err = fm.DiscoverInputFilesRecursive()
	require.NoError(t, err)
	assert.Len(t, files, 4)
}

func TestArchiveInputFile(t *testing.T) {
	fm := newManager(t)
	src := filepath.Join(fm.InputDir, "ibi.xlsx")
	touch(t, src)

	archived, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "ibi.xlsx"), archived)
	assert.False(t, FileExists(src))
	assert.True(t, FileExists(archived))

	touch(t, src)
	second, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.NotEqual(t, archived, second)
	assert.Regexp(t, `ibi_[0-9a-f]{8}\.xlsx$`, second)
}

func TestArchiveOutputFileCopies(t *testing.T) {
	fm := newManager(t)
	fm.UseTimestampSubdirs = true
	src := filepath.Join(fm.OutputDir, "ledger.jsonl")
	touch(t, src)

	archived, err := fm.ArchiveOutputFile(src)
	require.NoError(t, err)
	assert.True(t, FileExists(src))
	assert.True(t, FileExists(archived))
	assert.Contains(t, archived, time.Now().Format("2006"))
}

func TestArchiveDisabled(t *testing.T) {
	fm := newManager(t)
	fm.ArchiveOnSuccess = false
	src := filepath.Join(fm.InputDir, "x.csv")
	touch(t, src)

	got, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, src, got)
	assert.True(t, FileExists(src))
}

func TestGenerateOutputFileName(t *testing.T) {
	name := GenerateOutputFileName("{bank}_{original}_{uuid}", map[string]string{
		"bank":     "IBI Securities",
		"original": "תנועות 2024",
	}, "jsonl")
	assert.Regexp(t, regexp.MustCompile(`^IBI_Securities_תנועות_2024_[0-9a-f-]{36}\.jsonl$`), name)

	assert.Equal(t, "fixed.xml", GenerateOutputFileName("fixed.xml", nil, ".xml"))
	assert.Regexp(t, `^\d{8}_\d{6}$`, GenerateOutputFileName("{timestamp}", nil, ""))
}

func TestWriteErrorLog(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteErrorLog(nil, dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = WriteErrorLog([]ErrorLogEntry{{
		Timestamp:    time.Now(),
		FileName:     "ibi.xlsx",
		Bank:         "IBI",
		ErrorType:    "structural",
		ErrorMessage: "required column missing",
		RowNumber:    4,
	}}, dir)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Total Errors: 1")
	assert.Contains(t, string(data), "Row Number:     4")
}

func TestSummary(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	summary := ProcessingSummary{
		StartTime:         start,
		EndTime:           start.Add(2 * time.Second),
		TotalFiles:        2,
		SuccessfulFiles:   1,
		FailedFiles:       1,
		TotalTransactions: 12,
		ProcessedFiles:    []ProcessedFileInfo{{InputFile: "a.xlsx", OutputFile: "a.jsonl", Bank: "IBI", Transactions: 12, NetAmount: "₪100.00"}},
		FailedFilesList:   []FailedFileInfo{{InputFile: "b.csv", ErrorMessage: "no matching institution"}},
	}

	var buf bytes.Buffer
	require.NoError(t, FormatSummary(&buf, summary))
	out := buf.String()
	assert.Contains(t, out, "Duration:       2s")
	assert.Contains(t, out, "Net Amount:   ₪100.00")
	assert.Contains(t, out, "no matching institution")

	path, err := WriteSummaryLog(summary, t.TempDir())
	require.NoError(t, err)
	assert.True(t, FileExists(path))
}

func TestCleanOldArchives(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.xlsx")
	fresh := filepath.Join(dir, "fresh.xlsx")
	touch(t, old)
	touch(t, fresh)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	removed, err := CleanOldArchives(dir, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, FileExists(old))
	assert.True(t, FileExists(fresh))
}
