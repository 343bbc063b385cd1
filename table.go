package cfpsmerge

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/kshedden/datareader"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

// A Table is an ordered collection of equal-length Series.  Every
// column of a Table built by this package holds []int64, []float64
// or []string data.
type Table struct {
	cols []*datareader.Series
	nrow int
}

// NewTable returns a Table holding the given columns.  The columns
// must have distinct names and equal lengths.  The Series are not
// copied.
func NewTable(cols ...*datareader.Series) (*Table, error) {

	t := &Table{}
	seen := make(map[string]bool)
	for j, c := range cols {
		if seen[c.Name] {
			return nil, errors.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		if j == 0 {
			t.nrow = c.Length()
		} else if c.Length() != t.nrow {
			return nil, errors.Errorf("column %q has %d rows, expected %d", c.Name, c.Length(), t.nrow)
		}
	}
	t.cols = cols

	return t, nil
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	return t.nrow
}

// NumCols returns the number of columns in the table.
func (t *Table) NumCols() int {
	return len(t.cols)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for j, c := range t.cols {
		names[j] = c.Name
	}
	return names
}

// Columns returns the columns of the table.
func (t *Table) Columns() []*datareader.Series {
	return t.cols
}

// Column returns the named column, or nil if there is no such column.
func (t *Table) Column(name string) *datareader.Series {
	for _, c := range t.cols {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Has returns true if the table has a column with the given name.
func (t *Table) Has(name string) bool {
	return t.Column(name) != nil
}

// Select returns a table with the named columns, in the given order.
// Names that are not columns of t are ignored.
func (t *Table) Select(names ...string) *Table {
	var cols []*datareader.Series
	for _, na := range names {
		if c := t.Column(na); c != nil {
			cols = append(cols, c)
		}
	}
	return &Table{cols: cols, nrow: t.nrow}
}

// YearCount is the number of rows of a table for one year.
type YearCount struct {
	Year  int
	Count int
}

// YearCounts tabulates the values of an integer year column, in
// ascending year order.  Missing values are not counted.
func (t *Table) YearCounts(col string) ([]YearCount, error) {

	c := t.Column(col)
	if c == nil {
		return nil, errors.Errorf("no column %q", col)
	}

	counts := make(map[int]int)
	miss := c.Missing()
	switch x := c.Data().(type) {
	case []int64:
		for i, v := range x {
			if miss == nil || !miss[i] {
				counts[int(v)]++
			}
		}
	case []float64:
		for i, v := range x {
			if (miss == nil || !miss[i]) && !math.IsNaN(v) {
				counts[int(v)]++
			}
		}
	default:
		return nil, errors.Errorf("column %q is not numeric", col)
	}

	var rslt []YearCount
	for y, n := range counts {
		rslt = append(rslt, YearCount{Year: y, Count: n})
	}
	sort.Slice(rslt, func(i, j int) bool { return rslt[i].Year < rslt[j].Year })

	return rslt, nil
}

type columnKind int

const (
	intKind columnKind = iota
	floatKind
	stringKind
)

func kindOf(s *datareader.Series) (columnKind, error) {
	switch s.Data().(type) {
	case []int64:
		return intKind, nil
	case []float64:
		return floatKind, nil
	case []string:
		return stringKind, nil
	default:
		return 0, errors.Errorf("column %q has unsupported type %T", s.Name, s.Data())
	}
}

func isMissing(miss []bool, i int) bool {
	return miss != nil && miss[i]
}

// newSeries wraps datareader.NewSeries for the slice types used in
// this package, which NewSeries always accepts.
func newSeries(name string, data interface{}, miss []bool) *datareader.Series {
	s, err := datareader.NewSeries(name, data, miss)
	if err != nil {
		panic(fmt.Sprintf("%v", err))
	}
	return s
}

// Concat stacks tables vertically.  The result has the union of the
// columns, ordered by first appearance.  Rows from a table lacking a
// column are missing in that column.  A column that is a string
// column in any table becomes a string column, otherwise a column
// that is floating point in any table becomes floating point.
func Concat(tables ...*Table) (*Table, error) {

	var names []string
	kinds := make(map[string]columnKind)
	total := 0
	for _, t := range tables {
		total += t.nrow
		for _, c := range t.cols {
			k, err := kindOf(c)
			if err != nil {
				return nil, err
			}
			old, ok := kinds[c.Name]
			if !ok {
				names = append(names, c.Name)
				kinds[c.Name] = k
			} else if k > old {
				kinds[c.Name] = k
			}
		}
	}

	cols := make([]*datareader.Series, len(names))
	for j, na := range names {
		miss := make([]bool, 0, total)
		switch kinds[na] {
		case intKind:
			data := make([]int64, 0, total)
			for _, t := range tables {
				c := t.Column(na)
				if c == nil {
					data = append(data, make([]int64, t.nrow)...)
					miss = appendTrue(miss, t.nrow)
					continue
				}
				data = append(data, c.Data().([]int64)...)
				miss = appendMissing(miss, c.Missing(), t.nrow)
			}
			cols[j] = newSeries(na, data, miss)
		case floatKind:
			data := make([]float64, 0, total)
			for _, t := range tables {
				c := t.Column(na)
				if c == nil {
					for i := 0; i < t.nrow; i++ {
						data = append(data, math.NaN())
					}
					miss = appendTrue(miss, t.nrow)
					continue
				}
				switch x := c.Data().(type) {
				case []float64:
					data = append(data, x...)
				case []int64:
					for _, v := range x {
						data = append(data, float64(v))
					}
				}
				miss = appendMissing(miss, c.Missing(), t.nrow)
			}
			cols[j] = newSeries(na, data, miss)
		case stringKind:
			data := make([]string, 0, total)
			for _, t := range tables {
				c := t.Column(na)
				if c == nil {
					data = append(data, make([]string, t.nrow)...)
					miss = appendTrue(miss, t.nrow)
					continue
				}
				cm := c.Missing()
				switch x := c.Data().(type) {
				case []string:
					data = append(data, x...)
				case []float64:
					for i, v := range x {
						if isMissing(cm, i) {
							data = append(data, "")
						} else {
							data = append(data, strconv.FormatFloat(v, 'f', -1, 64))
						}
					}
				case []int64:
					for i, v := range x {
						if isMissing(cm, i) {
							data = append(data, "")
						} else {
							data = append(data, strconv.FormatInt(v, 10))
						}
					}
				}
				miss = appendMissing(miss, cm, t.nrow)
			}
			cols[j] = newSeries(na, data, miss)
		}
	}

	return &Table{cols: cols, nrow: total}, nil
}

func appendTrue(miss []bool, n int) []bool {
	for i := 0; i < n; i++ {
		miss = append(miss, true)
	}
	return miss
}

func appendMissing(miss, src []bool, n int) []bool {
	if src == nil {
		return append(miss, make([]bool, n)...)
	}
	return append(miss, src...)
}

// Fingerprint returns a hash of the column names, types and values
// of the table.  Tables with equal contents have equal fingerprints.
// Missing values hash the same regardless of the underlying data.
func (t *Table) Fingerprint() uint64 {

	h := xxh3.New()
	var buf []byte
	for _, c := range t.cols {
		buf = buf[:0]
		buf = append(buf, c.Name...)
		buf = append(buf, 0)
		buf = append(buf, fmt.Sprintf("%T", c.Data())...)
		buf = append(buf, 0)
		h.Write(buf)

		miss := c.Missing()
		for i := 0; i < t.nrow; i++ {
			buf = buf[:0]
			if isMissing(miss, i) {
				buf = append(buf, 0)
				h.Write(buf)
				continue
			}
			buf = append(buf, 1)
			switch x := c.Data().(type) {
			case []int64:
				buf = binary.LittleEndian.AppendUint64(buf, uint64(x[i]))
			case []float64:
				buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(x[i]))
			case []string:
				buf = binary.LittleEndian.AppendUint64(buf, uint64(len(x[i])))
				buf = append(buf, x[i]...)
			}
			h.Write(buf)
		}
	}

	return h.Sum64()
}
