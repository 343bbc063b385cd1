package cfpsmerge

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func datasetTable(t *testing.T) *Table {
	tbl, err := NewTable(
		newSeries("year", []int64{2018, 2018, 2020}, nil),
		newSeries("pid", []int64{101, 102, 0}, []bool{false, false, true}),
		newSeries("income", []float64{1200.25, math.NaN(), -3}, []bool{false, true, false}),
		newSeries("provcd", []string{"北京", "", "31"}, []bool{false, true, false}),
	)
	require.NoError(t, err)
	return tbl
}

func TestParseFormat(t *testing.T) {

	f, err := ParseFormat("Parquet")
	require.NoError(t, err)
	require.Equal(t, FormatParquet, f)
	require.Equal(t, "parquet", f.Ext())

	f, err = FormatOf("/tmp/out/cfps_demo.csv")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)

	_, err = ParseFormat("feather")
	require.Error(t, err)
	_, err = FormatOf("cfps_demo")
	require.Error(t, err)
}

func TestParquetRoundTrip(t *testing.T) {

	tbl := datasetTable(t)
	path := filepath.Join(t.TempDir(), "demo.parquet")
	require.NoError(t, WriteDatasetFile(path, tbl, FormatParquet))

	got, err := ReadDatasetFile(path)
	require.NoError(t, err)
	require.Equal(t, tbl.Names(), got.Names())
	require.Equal(t, 3, got.NumRows())
	require.Equal(t, tbl.Fingerprint(), got.Fingerprint())

	require.Equal(t, []bool{false, false, true}, got.Column("pid").Missing())
	require.Equal(t, []string{"北京", "", "31"}, got.Column("provcd").Data().([]string))
}

func TestCSVRoundTrip(t *testing.T) {

	tbl := datasetTable(t)
	path := filepath.Join(t.TempDir(), "demo.csv")
	require.NoError(t, WriteDatasetFile(path, tbl, FormatCSV))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "year,pid,income,provcd\n2018,101,1200.25,北京\n2018,102,,\n2020,,-3,31\n", string(b))

	got, err := ReadDatasetFile(path)
	require.NoError(t, err)
	require.Equal(t, tbl.Names(), got.Names())
	require.Equal(t, []int64{2018, 2018, 2020}, ints(t, got, "year"))
	require.Equal(t, []float64{101, 102, -999}, floats(t, got, "pid"))
	require.Equal(t, []float64{1200.25, -999, -3}, floats(t, got, "income"))

	// provcd is read back as text, with the empty cell missing.
	p := got.Column("provcd")
	require.Equal(t, []string{"北京", "", "31"}, p.Data().([]string))
	require.Equal(t, []bool{false, true, false}, p.Missing())
}

func TestWriteDatasetErrors(t *testing.T) {

	dir := t.TempDir()
	tbl := datasetTable(t)

	err := WriteDatasetFile(filepath.Join(dir, "demo.xlsx"), tbl, Format("xlsx"))
	require.Error(t, err)

	// Unwritable location
	err = WriteDatasetFile(filepath.Join(dir, "nodir", "demo.csv"), tbl, FormatCSV)
	require.Error(t, err)

	bad, err := NewTable(newSeries("t", []int32{1}, nil))
	require.NoError(t, err)
	err = WriteDatasetFile(filepath.Join(dir, "bad.parquet"), bad, FormatParquet)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
