package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const captures = "user_name,follower_count,posts_count\n" +
	"ann,\"1,200\",12\n" +
	"bob,80,\n" +
	"cy,300,3\n"

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func setup(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "captures.csv", []byte(captures), 0o644))
	return fs
}

func execute(t *testing.T, fs afero.Fs, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, fs, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestDefaults(t *testing.T) {
	opts := &viewOptions{}
	cmd := newRootCmd(opts, afero.NewMemMapFs())
	require.NoError(t, cmd.ParseFlags(nil))
	assert.Equal(t, "captures.csv", opts.csvPath)
	assert.Equal(t, 20, opts.head)
	assert.Equal(t, "alpha", opts.sortMode)
	assert.False(t, opts.desc)
}

func TestOverviewAndPreview(t *testing.T) {
	out, errOut, err := execute(t, setup(t), "--head", "2")
	require.NoError(t, err)
	assert.Empty(t, errOut)
	assert.Contains(t, out, "=== Columns ===\n  user_name\n  follower_count\n  posts_count\n")
	assert.Contains(t, out, "=== Row count ===\n  3\n")
	assert.Contains(t, out, "  posts_count: 1\n")
	assert.Contains(t, out, "=== Preview (2 of 3 rows) ===\n")
	assert.Contains(t, out, "ann        1,200           12\nbob        80\n... 1 more row(s)\n")
}

func TestFilterSortAndExport(t *testing.T) {
	fs := setup(t)
	out, errOut, err := execute(t, fs,
		"--columns", "user_name,follower_count",
		"--where", "follower_count > 100",
		"--sort", "follower_count", "--sort-mode", "numeric", "--desc",
		"--head", "1",
		"--export-csv", "out/view.csv",
		"--export-excel", "out/view",
	)
	require.NoError(t, err)
	assert.Empty(t, errOut)
	assert.Contains(t, out, "=== Preview (1 of 2 rows) ===\nuser_name  follower_count\nann        1,200\n")
	assert.Contains(t, out, "Exported 2 row(s) to CSV: out/view.csv\n")
	assert.Contains(t, out, "Exported 2 row(s) to Excel: out/view.xlsx\n")

	data, err := afero.ReadFile(fs, "out/view.csv")
	require.NoError(t, err)
	assert.Equal(t, "user_name,follower_count\nann,\"1,200\"\ncy,300\n", string(data))

	data, err = afero.ReadFile(fs, "out/view.xlsx")
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"user_name", "follower_count"}, {"ann", "1,200"}, {"cy", "300"}}, rows)
}

func TestQueryProblemsAreWarnings(t *testing.T) {
	out, errOut, err := execute(t, setup(t), "--columns", "user_name,nope", "--where", "user_name ==", "--sort", "missing")
	require.NoError(t, err)
	assert.Contains(t, errOut, "warning: missing columns ignored: nope\n")
	assert.Contains(t, errOut, "warning: invalid filter expression")
	assert.Contains(t, errOut, "warning: sort column \"missing\" not found")
	assert.Contains(t, out, "=== Preview (3 of 3 rows) ===\nuser_name\nann\nbob\ncy\n")
}

func TestMissingCSV(t *testing.T) {
	_, _, err := execute(t, afero.NewMemMapFs(), "--csv", "nope.csv")
	assert.EqualError(t, err, "CSV file not found: nope.csv")
}

func TestUnknownSortMode(t *testing.T) {
	_, _, err := execute(t, setup(t), "--sort", "user_name", "--sort-mode", "size")
	assert.ErrorContains(t, err, "unknown sort mode")
}

func TestExcelFailureIsReported(t *testing.T) {
	fs := afero.NewReadOnlyFs(setup(t))
	out, errOut, err := execute(t, fs, "--export-excel", "view.xlsx")
	require.NoError(t, err)
	assert.Contains(t, errOut, "warning: failed to export Excel")
	assert.NotContains(t, out, "Exported")
}
