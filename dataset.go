package cfpsmerge

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kshedden/datareader"
	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// Format is the file format of a merged dataset.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// ParseFormat converts "parquet" or "csv" to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatParquet:
		return FormatParquet, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", errors.Errorf("unknown output format %q", s)
	}
}

// Ext returns the file name extension for the format, without a dot.
func (f Format) Ext() string {
	return string(f)
}

// FormatOf determines the format of a dataset file from its name.
func FormatOf(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// WriteDatasetFile writes the table to path in the given format.  The
// data are first written to a temporary file in the same directory,
// which is renamed to path when complete.
func WriteDatasetFile(path string, tbl *Table, format Format) error {

	tmp := path + ".tmp"

	var err error
	switch format {
	case FormatParquet:
		err = writeParquet(tmp, tbl)
	case FormatCSV:
		err = writeCSV(tmp, tbl)
	default:
		err = errors.Errorf("unknown output format %q", format)
	}
	if err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "writing %s", path)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "renaming output file")
	}

	return nil
}

// parquetSchema returns the parquet-go CSV writer metadata for the
// columns of the table.  All columns are optional.
func parquetSchema(tbl *Table) ([]string, error) {

	md := make([]string, tbl.NumCols())
	for j, c := range tbl.Columns() {
		var tp string
		switch c.Data().(type) {
		case []int64:
			tp = "type=INT64"
		case []float64:
			tp = "type=DOUBLE"
		case []string:
			tp = "type=BYTE_ARRAY, convertedtype=UTF8"
		default:
			return nil, errors.Errorf("column %q has unsupported type %T", c.Name, c.Data())
		}
		md[j] = fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", c.Name, tp)
	}

	return md, nil
}

func writeParquet(path string, tbl *Table) error {

	md, err := parquetSchema(tbl)
	if err != nil {
		return err
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return errors.Wrap(err, "creating parquet file")
	}
	defer fw.Close()

	pw, err := writer.NewCSVWriter(md, fw, 4)
	if err != nil {
		return errors.Wrap(err, "creating parquet writer")
	}
	pw.RowGroupSize = 128 * 1024 * 1024 //128M
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	cols := tbl.Columns()
	for i := 0; i < tbl.NumRows(); i++ {

		// The writer keeps the record until the row group is flushed.
		rec := make([]interface{}, len(cols))
		for j, c := range cols {
			if isMissing(c.Missing(), i) {
				continue
			}
			switch x := c.Data().(type) {
			case []int64:
				rec[j] = x[i]
			case []float64:
				if !math.IsNaN(x[i]) {
					rec[j] = x[i]
				}
			case []string:
				rec[j] = x[i]
			}
		}

		if err := pw.Write(rec); err != nil {
			return errors.Wrapf(err, "writing row %d", i)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return errors.Wrap(err, "finishing parquet file")
	}

	return nil
}

func writeCSV(path string, tbl *Table) error {

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tbl.Names()); err != nil {
		return err
	}

	cols := tbl.Columns()
	row := make([]string, len(cols))
	for i := 0; i < tbl.NumRows(); i++ {
		for j, c := range cols {
			row[j] = ""
			if isMissing(c.Missing(), i) {
				continue
			}
			switch x := c.Data().(type) {
			case []int64:
				row[j] = strconv.FormatInt(x[i], 10)
			case []float64:
				if !math.IsNaN(x[i]) {
					row[j] = strconv.FormatFloat(x[i], 'f', -1, 64)
				}
			case []string:
				row[j] = x[i]
			default:
				return errors.Errorf("column %q has unsupported type %T", c.Name, c.Data())
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	return f.Close()
}

// ReadDatasetFile reads a dataset written by WriteDatasetFile.  The
// format is taken from the file name extension.
func ReadDatasetFile(path string) (*Table, error) {

	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	var tbl *Table
	switch format {
	case FormatParquet:
		tbl, err = readParquet(path)
	case FormatCSV:
		tbl, err = readCSV(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	return tbl, nil
}

func readParquet(path string) (*Table, error) {

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, 4)
	if err != nil {
		return nil, err
	}
	defer pr.ReadStop()

	n := pr.GetNumRows()
	leaves := pr.Footer.Schema[1:]
	if len(leaves) != len(pr.SchemaHandler.ValueColumns) {
		return nil, errors.New("nested parquet schemas are not supported")
	}

	// The reader renames the footer schema, the names written to the
	// file are kept in the schema handler.
	var cols []*datareader.Series
	for j, el := range leaves {
		name := pr.SchemaHandler.Infos[j+1].ExName
		vals, _, _, err := pr.ReadColumnByPath(pr.SchemaHandler.ValueColumns[j], n)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", name)
		}
		s, err := parquetSeries(name, el.GetType(), vals)
		if err != nil {
			return nil, err
		}
		cols = append(cols, s)
	}

	return NewTable(cols...)
}

// parquetSeries converts the values of a flat parquet column to a
// Series.  Null values are missing.
func parquetSeries(name string, tp parquet.Type, vals []interface{}) (*datareader.Series, error) {

	n := len(vals)
	miss := make([]bool, n)
	switch tp {
	case parquet.Type_INT32, parquet.Type_INT64, parquet.Type_BOOLEAN:
		x := make([]int64, n)
		for i, v := range vals {
			switch v := v.(type) {
			case nil:
				miss[i] = true
			case int32:
				x[i] = int64(v)
			case int64:
				x[i] = v
			case bool:
				if v {
					x[i] = 1
				}
			default:
				return nil, errors.Errorf("column %s: unexpected value type %T", name, v)
			}
		}
		return newSeries(name, x, miss), nil
	case parquet.Type_FLOAT, parquet.Type_DOUBLE:
		x := make([]float64, n)
		for i, v := range vals {
			switch v := v.(type) {
			case nil:
				miss[i] = true
				x[i] = math.NaN()
			case float32:
				x[i] = float64(v)
			case float64:
				x[i] = v
			default:
				return nil, errors.Errorf("column %s: unexpected value type %T", name, v)
			}
		}
		return newSeries(name, x, miss), nil
	case parquet.Type_BYTE_ARRAY, parquet.Type_FIXED_LEN_BYTE_ARRAY:
		x := make([]string, n)
		for i, v := range vals {
			switch v := v.(type) {
			case nil:
				miss[i] = true
			case string:
				x[i] = v
			default:
				return nil, errors.Errorf("column %s: unexpected value type %T", name, v)
			}
		}
		return newSeries(name, x, miss), nil
	default:
		return nil, errors.Errorf("column %s: unsupported parquet type %v", name, tp)
	}
}

// readCSV reads a CSV dataset.  Column types are inferred by the
// datareader CSV reader, and empty strings are missing.  The year
// column is converted to integers.
func readCSV(path string) (*Table, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rdr := datareader.NewCSVReader(f)
	data, err := rdr.Read(-1)
	if err != nil {
		return nil, err
	}

	cols := make([]*datareader.Series, len(data))
	for j, s := range data {
		switch x := s.Data().(type) {
		case []string:
			cols[j] = s.NullStringMissing()
		case []float64:
			miss := s.Missing()
			for i := range x {
				if isMissing(miss, i) {
					x[i] = math.NaN()
				}
			}
			if s.Name == YearColumnName {
				cols[j] = keySeries(s)
			} else {
				cols[j] = s
			}
		default:
			return nil, errors.Errorf("column %s: unexpected type %T", s.Name, s.Data())
		}
	}

	return NewTable(cols...)
}
