package cfpsmerge

import (
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kshedden/datareader"
	"github.com/pkg/errors"
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	variableHeader = "variable"
	labelSuffix    = "-label"
)

// Text values treated as empty cells in a catalog file.
var nullStrings = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"NULL": true,
	"null": true,
	"None": true,
}

type cellState int

const (
	// not collected in this year
	cellNull cellState = iota

	// coded as 0, the variable is not used in this year
	cellUnused

	cellColumn
)

type yearCell struct {
	state  cellState
	column string

	// If not empty, replaces column.
	label string
}

type catalogEntry struct {
	name  string
	cells map[int]yearCell
}

// column returns the physical column holding the variable in the
// given year.
func (e *catalogEntry) column(year int) (string, bool) {
	c, ok := e.cells[year]
	if !ok || c.state != cellColumn {
		return "", false
	}
	if c.label != "" {
		return c.label, true
	}
	return c.column, true
}

// A Catalog maps logical variable names to the physical column names
// used in each survey year.  A Catalog is not modified after it is
// loaded.
type Catalog struct {
	names   []string
	entries map[string]*catalogEntry
	years   []int
	logger  *slog.Logger
}

type catalogOptions struct {
	encoding string
	logger   *slog.Logger
}

// A CatalogOption configures LoadCatalog.
type CatalogOption func(*catalogOptions)

// WithEncoding sets the text encoding of the catalog file, using the
// WHATWG encoding names, e.g. "gbk".  The default is UTF-8, with or
// without a byte order mark.
func WithEncoding(name string) CatalogOption {
	return func(o *catalogOptions) {
		o.encoding = name
	}
}

// WithCatalogLogger sets the logger used to report unknown and
// unavailable variables.
func WithCatalogLogger(logger *slog.Logger) CatalogOption {
	return func(o *catalogOptions) {
		o.logger = logger
	}
}

// LoadCatalogFile loads a catalog from a CSV file.
func LoadCatalogFile(path string, opts ...CatalogOption) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &CatalogLoadError{Source: path, Err: err}
	}
	defer f.Close()

	cat, err := loadCatalog(f, opts)
	if err != nil {
		return nil, &CatalogLoadError{Source: path, Err: err}
	}

	return cat, nil
}

// LoadCatalog loads a catalog from CSV text.  The first row is a
// header, which must contain a "variable" column.  Columns whose
// header is a year hold the physical column names for that year,
// where an empty cell means the variable was not collected and 0 means
// that it is not used.  An optional "{year}-label" column holds a
// column name that replaces the one in the year column.  Other
// columns are ignored.
func LoadCatalog(r io.Reader, opts ...CatalogOption) (*Catalog, error) {
	cat, err := loadCatalog(r, opts)
	if err != nil {
		return nil, &CatalogLoadError{Source: "<reader>", Err: err}
	}
	return cat, nil
}

func decoder(name string) (*xencoding.Decoder, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return unicode.UTF8.NewDecoder(), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %q", name)
	}
	return enc.NewDecoder(), nil
}

func loadCatalog(r io.Reader, opts []CatalogOption) (*Catalog, error) {

	o := &catalogOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	dec, err := decoder(o.encoding)
	if err != nil {
		return nil, err
	}
	b, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(dec)))
	if err != nil {
		return nil, errors.Wrap(err, "decoding")
	}

	cols, err := parseCSV(b)
	if err != nil {
		return nil, err
	}

	return buildCatalog(cols, o.logger)
}

// parseCSV reads every column of the CSV text as strings.
func parseCSV(b []byte) (cols []*datareader.Series, err error) {

	hdr, err := csv.NewReader(bytes.NewReader(b)).Read()
	if err == io.EOF {
		return nil, errors.New("file is empty")
	} else if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}

	// Type inference only looks at the first rows of the file, force
	// every column to be read as text.
	hints := make([]string, len(hdr))
	for j := range hints {
		hints[j] = "string"
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("malformed catalog: %v", r)
		}
	}()

	rdr := datareader.NewCSVReader(bytes.NewReader(b))
	rdr.TypeHintsPos = hints
	return rdr.Read(-1)
}

func buildCatalog(cols []*datareader.Series, logger *slog.Logger) (*Catalog, error) {

	var varcol *datareader.Series
	yearcols := make(map[int]*datareader.Series)
	labelcols := make(map[int]*datareader.Series)
	for _, c := range cols {
		hd := strings.TrimSpace(c.Name)
		switch {
		case hd == variableHeader:
			if varcol != nil {
				return nil, errors.New("duplicate variable column")
			}
			varcol = c
		case strings.HasSuffix(hd, labelSuffix):
			y, err := strconv.Atoi(strings.TrimSuffix(hd, labelSuffix))
			if err != nil {
				continue
			}
			if _, ok := labelcols[y]; ok {
				return nil, errors.Errorf("duplicate column %q", hd)
			}
			labelcols[y] = c
		default:
			y, err := strconv.Atoi(hd)
			if err != nil {
				continue
			}
			if _, ok := yearcols[y]; ok {
				return nil, errors.Errorf("duplicate column %q", hd)
			}
			yearcols[y] = c
		}
	}

	if varcol == nil {
		return nil, errors.Errorf("no %q column", variableHeader)
	}
	if len(yearcols) == 0 {
		return nil, errors.New("no year columns")
	}

	cat := &Catalog{
		entries: make(map[string]*catalogEntry),
		logger:  logger,
	}
	for y := range yearcols {
		cat.years = append(cat.years, y)
	}
	sort.Ints(cat.years)

	for i := 0; i < varcol.Length(); i++ {

		// Line numbers in messages count the header.
		line := i + 2

		name, ok := cellText(varcol, i)
		if !ok {
			return nil, errors.Errorf("line %d: empty variable name", line)
		}
		if _, ok := cat.entries[name]; ok {
			return nil, errors.Errorf("line %d: variable %q is listed twice", line, name)
		}

		ent := &catalogEntry{
			name:  name,
			cells: make(map[int]yearCell),
		}
		for y, c := range yearcols {
			var cell yearCell
			if v, ok := cellText(c, i); ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil && f == 0 {
					cell.state = cellUnused
				} else {
					cell.state = cellColumn
					cell.column = v
				}
			}
			if lc, ok := labelcols[y]; ok {
				if v, ok := cellText(lc, i); ok {
					cell.label = v
				}
			}
			ent.cells[y] = cell
		}

		cat.names = append(cat.names, name)
		cat.entries[name] = ent
	}

	return cat, nil
}

// cellText returns the trimmed text in row i of the column, and false
// if the cell is empty.
func cellText(s *datareader.Series, i int) (string, bool) {

	if isMissing(s.Missing(), i) {
		return "", false
	}

	switch x := s.Data().(type) {
	case []string:
		v := strings.TrimSpace(x[i])
		if nullStrings[v] {
			return "", false
		}
		return v, true
	case []float64:
		if math.IsNaN(x[i]) {
			return "", false
		}
		return strconv.FormatFloat(x[i], 'f', -1, 64), true
	default:
		return "", false
	}
}

// Variables returns the logical variable names in the order they
// appear in the catalog file.
func (c *Catalog) Variables() []string {
	names := make([]string, len(c.names))
	copy(names, c.names)
	return names
}

// Years returns the years that have a column in the catalog file, in
// ascending order.
func (c *Catalog) Years() []int {
	years := make([]int, len(c.years))
	copy(years, c.years)
	return years
}

// Has returns true if the catalog contains the variable.
func (c *Catalog) Has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// Availability returns the years in which the variable can be read, in
// ascending order.  The second return value is false if the variable is
// not in the catalog.
func (c *Catalog) Availability(name string) ([]int, bool) {
	ent, ok := c.entries[name]
	if !ok {
		return nil, false
	}

	var years []int
	for _, y := range c.years {
		if _, ok := ent.column(y); ok {
			years = append(years, y)
		}
	}

	return years, true
}

// YearColumn is the physical column of a variable in one year.
type YearColumn struct {
	Year   int
	Column string
}

// VariableMapping holds the physical columns of one logical variable,
// for the years in which it is available.
type VariableMapping struct {
	Variable string
	Columns  []YearColumn
}

// Unavailable is a variable that cannot be read in a given year.
type Unavailable struct {
	Variable string
	Year     int
}

// Mapping is the result of Catalog.Resolve.
type Mapping struct {

	// The variables found in the catalog, in the requested order.
	Variables []VariableMapping

	// Requested variables that are not in the catalog.
	Unknown []string

	// Requested (variable, year) pairs that are not available.
	Unavailable []Unavailable
}

// Column returns the physical column for a variable in a year.
func (m *Mapping) Column(variable string, year int) (string, bool) {
	for _, vm := range m.Variables {
		if vm.Variable != variable {
			continue
		}
		for _, yc := range vm.Columns {
			if yc.Year == year {
				return yc.Column, true
			}
		}
		return "", false
	}
	return "", false
}

// Years returns the years in which a variable is available, in the
// requested order.
func (m *Mapping) Years(variable string) []int {
	for _, vm := range m.Variables {
		if vm.Variable == variable {
			years := make([]int, len(vm.Columns))
			for i, yc := range vm.Columns {
				years[i] = yc.Year
			}
			return years
		}
	}
	return nil
}

// Resolve finds the physical column of each variable in each year.
// Unknown variables, and variables that are not available in a year,
// are logged and left out of the mapping.  Repeated variables or years
// are resolved once.
func (c *Catalog) Resolve(variables []string, years []int) *Mapping {

	m := &Mapping{}
	seen := make(map[string]bool)
	for _, v := range variables {
		if seen[v] {
			continue
		}
		seen[v] = true

		ent, ok := c.entries[v]
		if !ok {
			c.logger.Warn("variable not found in catalog", "variable", v)
			m.Unknown = append(m.Unknown, v)
			continue
		}

		vm := VariableMapping{Variable: v}
		yseen := make(map[int]bool)
		for _, y := range years {
			if yseen[y] {
				continue
			}
			yseen[y] = true

			col, ok := ent.column(y)
			if !ok {
				c.logger.Warn("variable not available", "variable", v, "year", y)
				m.Unavailable = append(m.Unavailable, Unavailable{Variable: v, Year: y})
				continue
			}
			vm.Columns = append(vm.Columns, YearColumn{Year: y, Column: col})
		}
		m.Variables = append(m.Variables, vm)
	}

	return m
}
