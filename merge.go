package cfpsmerge

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/kshedden/datareader"
	"github.com/pkg/errors"
)

// YearColumnName is the name of the survey year column in merged
// datasets.
const YearColumnName = "year"

// A Generator builds merged datasets from the CFPS archive.
type Generator struct {
	cfg     *Config
	catalog *Catalog
	reader  ColumnReader
	logger  *slog.Logger
}

// An Option configures a Generator.
type Option func(*Generator)

// WithReader sets the reader used for the source files.  The default
// is a StatReader.
func WithReader(r ColumnReader) Option {
	return func(g *Generator) {
		g.reader = r
	}
}

// WithLogger sets the logger for progress and diagnostic messages.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator returns a Generator for the given configuration and
// variable catalog.
func NewGenerator(cfg *Config, cat *Catalog, opts ...Option) (*Generator, error) {

	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if cat == nil {
		return nil, errors.New("nil catalog")
	}

	g := &Generator{
		cfg:     cfg,
		catalog: cat,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.reader == nil {
		g.reader = NewStatReader(cfg.ChunkSize, g.logger)
	}

	return g, nil
}

// Catalog returns the variable catalog of the Generator.
func (g *Generator) Catalog() *Catalog {
	return g.catalog
}

// Config returns the configuration of the Generator.
func (g *Generator) Config() *Config {
	return g.cfg
}

// checkYears returns an error listing every year that is not
// supported.
func (g *Generator) checkYears(years []int) error {
	var bad []int
	for _, y := range years {
		if !g.cfg.SupportsYear(y) {
			bad = append(bad, y)
		}
	}
	if len(bad) > 0 {
		return &UnsupportedYearError{Years: bad}
	}
	return nil
}

// Build reads the variables for the given years and returns them as a
// single table in long format, with columns year, the key column, and
// the variables that are available in at least one year, in the
// requested order.  Years are processed in the requested order, and a
// repeated year or variable is used once.
func (g *Generator) Build(years []int, variables []string) (*Table, error) {

	if err := g.checkYears(years); err != nil {
		return nil, err
	}

	years = distinctInts(years)
	variables = g.dataVariables(distinct(variables))
	mapping := g.catalog.Resolve(variables, years)

	var parts []*Table
	for _, year := range years {
		tbl, err := g.buildYear(year, variables, mapping)
		if err != nil {
			return nil, err
		}
		if tbl != nil {
			parts = append(parts, tbl)
		}
	}

	if len(parts) == 0 {
		return nil, ErrNoData
	}

	return Concat(parts...)
}

// dataVariables drops the requested variables that would collide with
// the year or key column of the output.
func (g *Generator) dataVariables(variables []string) []string {
	var r []string
	for _, v := range variables {
		if v == YearColumnName || v == g.cfg.KeyColumn {
			g.logger.Warn("variable has the name of an output key column, ignored", "variable", v)
			continue
		}
		r = append(r, v)
	}
	return r
}

// buildYear returns the table for one year, or nil if the year is
// skipped.
func (g *Generator) buildYear(year int, variables []string, mapping *Mapping) (*Table, error) {

	logger := g.logger.With("year", year)
	logger.Info("processing year")

	path, err := ResolvePath(g.cfg, year, Adult)
	if err != nil {
		logger.Warn("cannot locate data file", "error", err)
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("data file not found, skipping year", "path", path)
		return nil, nil
	}

	key := g.cfg.KeyColumn
	columns := []string{key}
	for _, v := range variables {
		if col, ok := mapping.Column(v, year); ok {
			columns = append(columns, col)
		}
	}

	res := g.reader.ReadColumns(path, columns)
	switch res.Status {
	case ReadFailed:
		if g.cfg.StrictReads {
			return nil, errors.Wrapf(res.Err, "year %d", year)
		}
		logger.Error("cannot read data file, skipping year", "path", path, "error", res.Err)
		return nil, nil
	case ReadEmpty:
		logger.Warn("no data read, skipping year", "path", path)
		return nil, nil
	}
	src := res.Table

	keycol := src.Column(key)
	if keycol == nil {
		return nil, errors.Errorf("year %d: reader did not return column %q", year, key)
	}

	n := src.NumRows()
	yv := make([]int64, n)
	for i := range yv {
		yv[i] = int64(year)
	}

	cols := []*datareader.Series{
		newSeries(YearColumnName, yv, make([]bool, n)),
		keySeries(keycol),
	}

	// Two variables may share a physical column, so each variable
	// gets its own renamed Series.
	for _, v := range variables {
		col, ok := mapping.Column(v, year)
		if !ok {
			continue
		}
		s := src.Column(col)
		if s == nil {
			return nil, errors.Errorf("year %d: reader did not return column %q", year, col)
		}
		cols = append(cols, newSeries(v, s.Data(), s.Missing()))
	}

	tbl, err := NewTable(cols...)
	if err != nil {
		return nil, errors.Wrapf(err, "year %d", year)
	}

	logger.Info("year complete", "records", tbl.NumRows(), "variables", tbl.NumCols()-2)

	return tbl, nil
}

// keySeries converts a numeric person identifier column to int64
// when all of its values are whole numbers.
func keySeries(s *datareader.Series) *datareader.Series {

	x, ok := s.Data().([]float64)
	if !ok {
		return s
	}

	miss := s.Missing()
	iv := make([]int64, len(x))
	for i, v := range x {
		if isMissing(miss, i) {
			continue
		}
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return s
		}
		iv[i] = int64(v)
	}

	return newSeries(s.Name, iv, miss)
}

// Generate builds the dataset with Build and writes it to the output
// directory as {outputName}.{format}.  It returns the path of the
// written file.  No file is written if Build fails.
func (g *Generator) Generate(years []int, variables []string, outputName string) (string, error) {

	if err := checkOutputName(outputName); err != nil {
		return "", err
	}

	g.logger.Info("generating dataset", "years", fmt.Sprint(years),
		"variables", strings.Join(variables, ","), "name", outputName)

	tbl, err := g.Build(years, variables)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(g.cfg.OutputDir, 0755); err != nil {
		return "", errors.Wrap(err, "creating output directory")
	}

	path := filepath.Join(g.cfg.OutputDir, outputName+"."+g.cfg.Format.Ext())
	if err := WriteDatasetFile(path, tbl, g.cfg.Format); err != nil {
		return "", err
	}

	counts, err := tbl.YearCounts(YearColumnName)
	if err != nil {
		return "", err
	}
	dist := make([]string, len(counts))
	for i, yc := range counts {
		dist[i] = fmt.Sprintf("%d:%d", yc.Year, yc.Count)
	}
	g.logger.Info("dataset written", "path", path, "records", tbl.NumRows(),
		"distribution", strings.Join(dist, " "),
		"fingerprint", fmt.Sprintf("%016x", tbl.Fingerprint()))

	return path, nil
}

func checkOutputName(name string) error {
	if name == "" {
		return errors.New("output name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.Errorf("output name %q must be a plain file name", name)
	}
	return nil
}

// distinct returns the strings in order of first appearance.
func distinct(x []string) []string {
	seen := make(map[string]bool)
	var r []string
	for _, v := range x {
		if !seen[v] {
			seen[v] = true
			r = append(r, v)
		}
	}
	return r
}

// distinctInts returns the values in order of first appearance.
func distinctInts(x []int) []int {
	seen := make(map[int]bool)
	var r []int
	for _, v := range x {
		if !seen[v] {
			seen[v] = true
			r = append(r, v)
		}
	}
	return r
}
