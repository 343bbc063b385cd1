package cfpsmerge

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/kshedden/datareader"
	"github.com/pkg/errors"
)

// MissingCodes are the CFPS non-response codes (not applicable,
// refused, don't know, ...).  They are recoded to missing values in
// every numeric column.
var MissingCodes = []float64{-10, -9, -8, -2, -1}

// ReadStatus classifies the outcome of reading a source file.
type ReadStatus int

const (
	// ReadOK means that at least one row was read.
	ReadOK ReadStatus = iota

	// ReadEmpty means that the file was read but held no rows.
	ReadEmpty

	// ReadFailed means that the file could not be read, the reason
	// is in ReadResult.Err.
	ReadFailed
)

func (s ReadStatus) String() string {
	switch s {
	case ReadOK:
		return "ok"
	case ReadEmpty:
		return "empty"
	case ReadFailed:
		return "failed"
	default:
		return fmt.Sprintf("ReadStatus(%d)", int(s))
	}
}

// ReadResult is the outcome of ColumnReader.ReadColumns.  Table is
// nil when Status is ReadFailed.
type ReadResult struct {
	Status ReadStatus
	Table  *Table
	Err    error
}

// A ColumnReader reads a set of named columns from a source file.
type ColumnReader interface {
	ReadColumns(path string, columns []string) ReadResult
}

// Statfile is satisfied by the datareader Stata and SAS readers.
type Statfile interface {
	ColumnNames() []string
	RowCount() int
	Read(int) ([]*datareader.Series, error)
}

// StatReader reads columns from Stata dta and SAS7BDAT files.  The
// file type is determined from the file name extension.  Categorical
// columns are returned as their numeric codes and dates are not
// converted.
type StatReader struct {

	// Number of rows to read at a time.
	ChunkSize int

	Logger *slog.Logger
}

// NewStatReader returns a StatReader reading chunkSize rows at a time.
func NewStatReader(chunkSize int, logger *slog.Logger) *StatReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatReader{
		ChunkSize: chunkSize,
		Logger:    logger,
	}
}

// ReadColumns reads the given columns from the file at path, and
// normalizes them with Normalize.  Columns are returned in the
// requested order, with repeated names read once.
func (sr *StatReader) ReadColumns(path string, columns []string) ReadResult {

	tbl, err := sr.read(path, columns)
	if err != nil {
		return ReadResult{Status: ReadFailed, Err: err}
	}
	sr.logger().Debug("source file read", "path", path, "columns", tbl.NumCols(), "rows", tbl.NumRows())

	if tbl.NumRows() == 0 {
		return ReadResult{Status: ReadEmpty, Table: tbl}
	}

	return ReadResult{Status: ReadOK, Table: tbl}
}

func (sr *StatReader) logger() *slog.Logger {
	if sr.Logger == nil {
		return slog.Default()
	}
	return sr.Logger
}

// OpenStatfile returns a reader for a Stata dta or SAS7BDAT file,
// based on the file name extension.  If decode is true, dates are
// converted and Stata value labels are inserted, otherwise the stored
// codes are returned.
func OpenStatfile(r io.ReadSeeker, fname string, decode bool) (Statfile, error) {

	switch strings.ToLower(filepath.Ext(fname)) {
	case ".dta":
		stata, err := datareader.NewStataReader(r)
		if err != nil {
			return nil, err
		}
		stata.InsertCategoryLabels = decode
		stata.ConvertDates = decode
		stata.InsertStrls = true
		return stata, nil
	case ".sas7bdat":
		sas, err := datareader.NewSAS7BDATReader(r)
		if err != nil {
			return nil, err
		}
		sas.ConvertDates = decode
		sas.TrimStrings = true
		return sas, nil
	default:
		return nil, errors.Errorf("%s: file type cannot be read", fname)
	}
}

func (sr *StatReader) read(path string, columns []string) (*Table, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rdr, err := OpenStatfile(f, path, false)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	pos := make(map[string]int)
	for j, na := range rdr.ColumnNames() {
		if _, ok := pos[na]; !ok {
			pos[na] = j
		}
	}

	var names []string
	var idx []int
	var notFound []string
	seen := make(map[string]bool)
	for _, na := range columns {
		if seen[na] {
			continue
		}
		seen[na] = true
		j, ok := pos[na]
		if !ok {
			notFound = append(notFound, na)
			continue
		}
		names = append(names, na)
		idx = append(idx, j)
	}
	if len(notFound) > 0 {
		return nil, errors.Errorf("%s: columns not found: %s", path, strings.Join(notFound, ", "))
	}

	chunkSize := sr.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 10000
	}

	acc := make([]*datareader.Series, len(idx))
	for {
		chunk, err := rdr.Read(chunkSize)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		if len(chunk) == 0 || chunk[0].Length() == 0 {
			break
		}

		for k, j := range idx {
			s, err := Normalize(chunk[j])
			if err != nil {
				return nil, errors.Wrapf(err, "%s", path)
			}
			acc[k] = appendSeries(acc[k], s)
		}
	}

	for k := range acc {
		if acc[k] == nil {
			acc[k] = newSeries(names[k], []float64{}, []bool{})
		}
	}

	return NewTable(acc...)
}

// appendSeries appends the values of src to dst.  If dst is nil, src
// is returned.  Both Series must hold the same type.
func appendSeries(dst, src *datareader.Series) *datareader.Series {

	if dst == nil {
		return src
	}

	miss := appendMissing(nil, dst.Missing(), dst.Length())
	miss = appendMissing(miss, src.Missing(), src.Length())

	switch x := dst.Data().(type) {
	case []float64:
		return newSeries(dst.Name, append(x, src.Data().([]float64)...), miss)
	case []string:
		return newSeries(dst.Name, append(x, src.Data().([]string)...), miss)
	default:
		panic(fmt.Sprintf("unexpected type %T in appendSeries", dst.Data()))
	}
}

// Normalize widens a numeric Series to float64 and replaces the CFPS
// missing codes, as well as values that are missing in the source
// file, with NaN flagged as missing.  String Series are returned
// unchanged.
func Normalize(s *datareader.Series) (*datareader.Series, error) {

	switch s.Data().(type) {
	case []string:
		return s, nil
	case []float64, []float32, []int64, []int32, []int16, []int8:
		// numeric, handled below
	default:
		return nil, errors.Errorf("column %s has unsupported type %T", s.Name, s.Data())
	}

	up := s.UpcastNumeric()
	data, miss, err := up.AsFloat64Slice()
	if err != nil {
		return nil, err
	}

	ndata := make([]float64, len(data))
	nmiss := make([]bool, len(data))
	copy(nmiss, miss)
	for i, v := range data {
		if nmiss[i] || isMissingCode(v) {
			ndata[i] = math.NaN()
			nmiss[i] = true
		} else {
			ndata[i] = v
		}
	}

	return newSeries(s.Name, ndata, nmiss), nil
}

func isMissingCode(v float64) bool {
	for _, c := range MissingCodes {
		if v == c {
			return true
		}
	}
	return false
}
