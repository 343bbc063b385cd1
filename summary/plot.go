package summary

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/kshedden/cfpsmerge"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"
)

// Size of one panel
const (
	panelWidth  = 4 * vg.Inch
	panelHeight = 3 * vg.Inch
	titleHeight = 0.6 * vg.Inch
)

var groupColors = map[string]color.Color{
	Male:   color.RGBA{R: 173, G: 216, B: 230, A: 255}, // lightblue
	Female: color.RGBA{R: 255, G: 182, B: 193, A: 255}, // lightpink
	All:    color.RGBA{R: 211, G: 211, B: 211, A: 255}, // lightgray
}

// panel returns the box plot for one cell.
func panel(c *Cell) (*plot.Plot, error) {

	p := plot.New()
	p.Y.Label.Text = "value"

	if !c.HasData() {
		p.Title.Text = fmt.Sprintf("%s (%d) - no data", c.Variable, c.Year)
		p.HideAxes()
		return p, nil
	}
	p.Title.Text = fmt.Sprintf("%s (%d)", c.Variable, c.Year)
	p.Add(plotter.NewGrid())

	names := make([]string, len(c.Groups))
	for k := range c.Groups {
		g := &c.Groups[k]
		box, err := plotter.NewBoxPlot(vg.Points(30), float64(k), plotter.Values(g.Values))
		if err != nil {
			return nil, errors.Wrapf(err, "%s %d", c.Variable, c.Year)
		}
		box.FillColor = groupColors[g.Group]
		p.Add(box)
		names[k] = g.Label()
	}
	p.NominalX(names...)

	if !math.IsNaN(c.PValue) {
		p.X.Label.Text = fmt.Sprintf("p=%.3f", c.PValue)
	}

	return p, nil
}

// Render draws the figure to a PDF file, with one panel per year and
// variable.
func (f *Figure) Render(path string) error {

	rows, cols := len(f.Years), len(f.Variables)
	if rows == 0 || cols == 0 {
		return ErrNothingToPlot
	}

	plots := make([][]*plot.Plot, rows)
	for i := range plots {
		plots[i] = make([]*plot.Plot, cols)
		for j := range plots[i] {
			var err error
			if plots[i][j], err = panel(&f.Cells[i][j]); err != nil {
				return err
			}
		}
	}

	img := vgpdf.New(vg.Length(cols)*panelWidth, vg.Length(rows)*panelHeight+titleHeight)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:   rows,
		Cols:   cols,
		PadX:   vg.Millimeter,
		PadY:   vg.Millimeter,
		PadTop: titleHeight,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		for j := range plots[i] {
			plots[i][j].Draw(canvases[i][j])
		}
	}

	sty := plots[0][0].Title.TextStyle
	sty.Font.Size = vg.Points(16)
	sty.XAlign = draw.XCenter
	sty.YAlign = draw.YCenter
	dc.FillText(sty, vg.Point{X: dc.Center().X, Y: dc.Max.Y - titleHeight/2}, f.Spec.Title)

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := img.WriteTo(out); err != nil {
		out.Close()
		return errors.Wrapf(err, "writing %s", path)
	}

	return out.Close()
}

// Analyze summarizes the figures and renders each one to its file in
// outDir.  Figures with nothing to plot are skipped.  It returns the
// paths of the files that were written.
func Analyze(t *cfpsmerge.Table, specs []FigureSpec, outDir string, logger *slog.Logger) ([]string, error) {

	if logger == nil {
		logger = slog.Default()
	}

	if GroupColumn(t) == "" {
		logger.Warn("no gender column found, using all rows as one group")
	}

	figs, err := SummarizeAll(t, specs)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating output directory")
	}

	var files []string
	for i, fig := range figs {
		if fig == nil {
			logger.Warn("skipping figure, no data", "figure", specs[i].Name)
			continue
		}
		path := filepath.Join(outDir, specs[i].File)
		if err := fig.Render(path); err != nil {
			return nil, errors.Wrapf(err, "figure %s", specs[i].Name)
		}
		logger.Info("figure written", "figure", specs[i].Name, "path", path,
			"years", len(fig.Years), "variables", len(fig.Variables))
		files = append(files, path)
	}

	return files, nil
}
