// Package summary computes grouped statistics of merged CFPS datasets
// and draws them as box plots.  Rows are split by respondent gender
// when the dataset has a gender column.
package summary

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/kshedden/cfpsmerge"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNothingToPlot is returned by Summarize when none of the variables
// of a figure, or none of its years, are in the dataset.
var ErrNothingToPlot = errors.New("no variables or years to plot")

// Group names, in plotting order.
const (
	Male   = "Male"
	Female = "Female"
	All    = "All"
)

// A FigureSpec describes one figure: a grid of box plots with a row
// per year and a column per variable.
type FigureSpec struct {
	Name      string
	Title     string
	File      string
	Variables []string
	Years     []int
}

// InternetFigures returns the figures drawn for the internet use
// dataset.
func InternetFigures() []FigureSpec {
	years := make([]int, len(cfpsmerge.DefaultYears))
	copy(years, cfpsmerge.DefaultYears)

	return []FigureSpec{
		{
			Name:  "usage",
			Title: "Internet usage frequency by gender",
			File:  "internet_usage_gender_differences.pdf",
			Variables: []string{"internetLearn", "internetWork", "internetSocial",
				"internetEntertain", "internetCommercial"},
			Years: years,
		},
		{
			Name:  "importance",
			Title: "Importance of the internet by gender",
			File:  "internet_importance_gender_differences.pdf",
			Variables: []string{"internetImportLearn", "internetImportWork", "internetImportSocial",
				"internetImportEntertain", "internetImportCommercial"},
			Years: years,
		},
		{
			Name:      "info",
			Title:     "Information sources by gender",
			File:      "internet_info_gender_differences.pdf",
			Variables: []string{"infoInternet", "infoTV", "infoNews", "infoRadio", "infoMobile"},
			Years:     years,
		},
	}
}

// BoxStats are the statistics shown in a box plot.
type BoxStats struct {
	N      int
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
	Mean   float64
}

// GroupStats holds the non-missing values of a variable for one group
// in one year, sorted.
type GroupStats struct {
	Group  string
	Values []float64
	Stats  BoxStats
}

// Label returns the axis label of the group, e.g. "Male (n=120)".
func (g *GroupStats) Label() string {
	return fmt.Sprintf("%s (n=%d)", g.Group, g.Stats.N)
}

// A Cell is one panel of a figure.
type Cell struct {
	Year     int
	Variable string

	// Groups with at least one value, in plotting order.
	Groups []GroupStats

	// Two sample t-test p-value comparing the groups, NaN if there
	// are not two groups with enough data.
	PValue float64
}

// HasData returns true if some group has a value.
func (c *Cell) HasData() bool {
	return len(c.Groups) > 0
}

// A Figure holds the summaries for a FigureSpec.  Cells[i][j] is the
// panel for Years[i] and Variables[j].
type Figure struct {
	Spec      FigureSpec
	Years     []int
	Variables []string
	Cells     [][]Cell
}

// GroupColumn returns the name of the first numeric column whose name
// contains "gender" or "sex", ignoring case.  It returns "" if there
// is no such column.
func GroupColumn(t *cfpsmerge.Table) string {
	for _, c := range t.Columns() {
		na := strings.ToLower(c.Name)
		if !strings.Contains(na, "gender") && !strings.Contains(na, "sex") {
			continue
		}
		if _, _, ok := numeric(t, c.Name); ok {
			return c.Name
		}
	}
	return ""
}

// numeric returns the values and missing flags of a numeric column as
// float64.
func numeric(t *cfpsmerge.Table, name string) ([]float64, []bool, bool) {

	c := t.Column(name)
	if c == nil {
		return nil, nil, false
	}

	miss := make([]bool, c.Length())
	if m := c.Missing(); m != nil {
		copy(miss, m)
	}

	switch x := c.Data().(type) {
	case []float64:
		for i, v := range x {
			if math.IsNaN(v) {
				miss[i] = true
			}
		}
		return x, miss, true
	case []int64:
		f := make([]float64, len(x))
		for i, v := range x {
			f[i] = float64(v)
		}
		return f, miss, true
	default:
		return nil, nil, false
	}
}

// groups assigns each row to a group, "" means that the row is not
// used.
func groups(t *cfpsmerge.Table) ([]string, []string) {

	n := t.NumRows()
	grp := make([]string, n)

	gcol := GroupColumn(t)
	if gcol == "" {
		for i := range grp {
			grp[i] = All
		}
		return grp, []string{All}
	}

	x, miss, _ := numeric(t, gcol)
	for i, v := range x {
		switch {
		case miss[i]:
		case v == 1:
			grp[i] = Male
		case v == 0:
			grp[i] = Female
		}
	}

	return grp, []string{Male, Female}
}

// Summarize computes the panels of a figure.  Variables that are not
// numeric columns of t, and years with no rows in t, are left out.
func Summarize(t *cfpsmerge.Table, spec FigureSpec) (*Figure, error) {

	yv, ymiss, ok := numeric(t, cfpsmerge.YearColumnName)
	if !ok {
		return nil, errors.Errorf("dataset has no numeric %q column", cfpsmerge.YearColumnName)
	}

	fig := &Figure{Spec: spec}
	for _, v := range spec.Variables {
		if _, _, ok := numeric(t, v); ok {
			fig.Variables = append(fig.Variables, v)
		}
	}

	present := make(map[int]bool)
	for i, y := range yv {
		if !ymiss[i] {
			present[int(y)] = true
		}
	}
	for _, y := range spec.Years {
		if present[y] {
			fig.Years = append(fig.Years, y)
		}
	}

	if len(fig.Variables) == 0 || len(fig.Years) == 0 {
		return nil, ErrNothingToPlot
	}

	grp, order := groups(t)

	fig.Cells = make([][]Cell, len(fig.Years))
	for i, year := range fig.Years {
		fig.Cells[i] = make([]Cell, len(fig.Variables))
		for j, v := range fig.Variables {
			x, miss, _ := numeric(t, v)
			vals := make(map[string][]float64)
			for r := range x {
				if ymiss[r] || int(yv[r]) != year || grp[r] == "" || miss[r] {
					continue
				}
				vals[grp[r]] = append(vals[grp[r]], x[r])
			}

			cell := Cell{Year: year, Variable: v, PValue: math.NaN()}
			for _, g := range order {
				if len(vals[g]) == 0 {
					continue
				}
				cell.Groups = append(cell.Groups, newGroupStats(g, vals[g]))
			}
			if len(cell.Groups) == 2 {
				cell.PValue = TTest(cell.Groups[0].Values, cell.Groups[1].Values)
			}
			fig.Cells[i][j] = cell
		}
	}

	return fig, nil
}

func newGroupStats(name string, x []float64) GroupStats {

	sort.Float64s(x)
	return GroupStats{
		Group:  name,
		Values: x,
		Stats: BoxStats{
			N:      len(x),
			Min:    x[0],
			Q1:     stat.Quantile(0.25, stat.Empirical, x, nil),
			Median: stat.Quantile(0.5, stat.Empirical, x, nil),
			Q3:     stat.Quantile(0.75, stat.Empirical, x, nil),
			Max:    x[len(x)-1],
			Mean:   stat.Mean(x, nil),
		},
	}
}

// TTest returns the two sided p-value of the two sample t-test with
// pooled variance.  It returns NaN when the test is not defined.
func TTest(x, y []float64) float64 {

	n1, n2 := float64(len(x)), float64(len(y))
	df := n1 + n2 - 2
	if len(x) == 0 || len(y) == 0 || df < 1 {
		return math.NaN()
	}

	ss := func(z []float64) float64 {
		if len(z) < 2 {
			return 0
		}
		return stat.Variance(z, nil) * float64(len(z)-1)
	}

	sp2 := (ss(x) + ss(y)) / df
	if sp2 <= 0 {
		return math.NaN()
	}

	tstat := (stat.Mean(x, nil) - stat.Mean(y, nil)) / math.Sqrt(sp2*(1/n1+1/n2))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}

	return 2 * dist.Survival(math.Abs(tstat))
}

// SummarizeAll summarizes the figures concurrently.  The result is
// aligned with specs, with a nil entry for a figure that has nothing
// to plot.
func SummarizeAll(t *cfpsmerge.Table, specs []FigureSpec) ([]*Figure, error) {

	figs := make([]*Figure, len(specs))

	var g errgroup.Group
	for i := range specs {
		i := i
		g.Go(func() error {
			fig, err := Summarize(t, specs[i])
			if errors.Is(err, ErrNothingToPlot) {
				return nil
			} else if err != nil {
				return errors.Wrapf(err, "figure %s", specs[i].Name)
			}
			figs[i] = fig
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return figs, nil
}

// WriteText writes the statistics of the figure as a table.
func (f *Figure) WriteText(w io.Writer) error {

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", f.Spec.Title)
	fmt.Fprintf(tw, "year\tvariable\tgroup\tn\tmean\tmin\tq1\tmedian\tq3\tmax\tp\n")
	for i := range f.Cells {
		for _, c := range f.Cells[i] {
			if !c.HasData() {
				fmt.Fprintf(tw, "%d\t%s\t-\t0\t\t\t\t\t\t\t\n", c.Year, c.Variable)
				continue
			}
			for k, g := range c.Groups {
				p := ""
				if k == 0 && !math.IsNaN(c.PValue) {
					p = fmt.Sprintf("%.3f", c.PValue)
				}
				s := g.Stats
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.3f\t%g\t%g\t%g\t%g\t%g\t%s\n", c.Year, c.Variable,
					g.Group, s.N, s.Mean, s.Min, s.Q1, s.Median, s.Q3, s.Max, p)
			}
		}
	}

	return tw.Flush()
}
