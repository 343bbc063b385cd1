package summary

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kshedden/cfpsmerge"
	"github.com/kshedden/datareader"
	"github.com/stretchr/testify/require"
)

func series(t *testing.T, name string, data interface{}, miss []bool) *datareader.Series {
	s, err := datareader.NewSeries(name, data, miss)
	require.NoError(t, err)
	return s
}

func testTable(t *testing.T) *cfpsmerge.Table {
	nan := math.NaN()
	tbl, err := cfpsmerge.NewTable(
		series(t, "year", []int64{2018, 2018, 2018, 2018, 2018, 2020, 2020, 2020}, nil),
		series(t, "pid", []int64{1, 2, 3, 4, 5, 1, 2, 3}, nil),
		series(t, "gender", []float64{1, 1, 0, 0, 5, 1, nan, 1}, []bool{false, false, false, false, false, false, true, false}),
		series(t, "internetWork", []float64{1, 2, 3, 5, 4, 2, 2, nan}, []bool{false, false, false, false, false, false, false, true}),
		series(t, "internetLearn", []float64{nan, nan, nan, nan, nan, 1, 3, 2}, []bool{true, true, true, true, true, false, false, false}),
		series(t, "provcd", []string{"a", "b", "c", "d", "e", "f", "g", "h"}, nil),
	)
	require.NoError(t, err)
	return tbl
}

func testSpec() FigureSpec {
	return FigureSpec{
		Name:      "usage",
		Title:     "Internet usage",
		File:      "usage.pdf",
		Variables: []string{"internetLearn", "provcd", "internetWork", "internetSocial"},
		Years:     []int{2016, 2018, 2020},
	}
}

func TestGroupColumn(t *testing.T) {

	require.Equal(t, "gender", GroupColumn(testTable(t)))

	tbl, err := cfpsmerge.NewTable(
		series(t, "year", []int64{2018}, nil),
		series(t, "sexlabel", []string{"m"}, nil),
		series(t, "Respondent_Sex", []float64{1}, nil),
	)
	require.NoError(t, err)
	require.Equal(t, "Respondent_Sex", GroupColumn(tbl))

	tbl, err = cfpsmerge.NewTable(series(t, "year", []int64{2018}, nil))
	require.NoError(t, err)
	require.Equal(t, "", GroupColumn(tbl))
}

func TestSummarize(t *testing.T) {

	fig, err := Summarize(testTable(t), testSpec())
	require.NoError(t, err)

	require.Equal(t, []int{2018, 2020}, fig.Years)
	require.Equal(t, []string{"internetLearn", "internetWork"}, fig.Variables)

	// No values for internetLearn in 2018
	c := fig.Cells[0][0]
	require.False(t, c.HasData())
	require.True(t, math.IsNaN(c.PValue))

	// internetWork in 2018, the row with gender 5 is dropped.
	c = fig.Cells[0][1]
	require.Len(t, c.Groups, 2)
	require.Equal(t, Male, c.Groups[0].Group)
	require.Equal(t, []float64{1, 2}, c.Groups[0].Values)
	require.Equal(t, "Male (n=2)", c.Groups[0].Label())
	require.Equal(t, Female, c.Groups[1].Group)
	require.Equal(t, []float64{3, 5}, c.Groups[1].Values)
	require.Equal(t, 4.0, c.Groups[1].Stats.Mean)
	require.Equal(t, 3.0, c.Groups[1].Stats.Min)
	require.Equal(t, 5.0, c.Groups[1].Stats.Max)
	require.False(t, math.IsNaN(c.PValue))

	// internetLearn in 2020 has only male respondents.
	c = fig.Cells[1][0]
	require.Len(t, c.Groups, 1)
	require.Equal(t, []float64{1, 2}, c.Groups[0].Values)
	require.True(t, math.IsNaN(c.PValue))
}

func TestSummarizeWithoutGender(t *testing.T) {

	tbl, err := cfpsmerge.NewTable(
		series(t, "year", []int64{2018, 2018, 2018}, nil),
		series(t, "internetWork", []float64{3, 1, 2}, nil),
	)
	require.NoError(t, err)

	fig, err := Summarize(tbl, testSpec())
	require.NoError(t, err)
	c := fig.Cells[0][0]
	require.Len(t, c.Groups, 1)
	require.Equal(t, All, c.Groups[0].Group)
	require.Equal(t, BoxStats{N: 3, Min: 1, Q1: 1, Median: 2, Q3: 3, Max: 3, Mean: 2}, c.Groups[0].Stats)
}

func TestSummarizeNothingToPlot(t *testing.T) {

	spec := testSpec()
	spec.Variables = []string{"infoTV"}
	_, err := Summarize(testTable(t), spec)
	require.ErrorIs(t, err, ErrNothingToPlot)

	spec = testSpec()
	spec.Years = []int{2010}
	_, err = Summarize(testTable(t), spec)
	require.ErrorIs(t, err, ErrNothingToPlot)

	tbl, err := cfpsmerge.NewTable(series(t, "internetWork", []float64{1}, nil))
	require.NoError(t, err)
	_, err = Summarize(tbl, testSpec())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNothingToPlot)
}

func TestTTest(t *testing.T) {

	// Reference values from a pooled two sample t-test.
	p := TTest([]float64{1, 2, 3, 4, 5}, []float64{3, 4, 5, 6, 7})
	require.InDelta(t, 0.0805, p, 1e-4)

	p = TTest([]float64{1, 2}, []float64{3, 5})
	require.InDelta(t, 0.1548, p, 1e-3)

	require.True(t, math.IsNaN(TTest([]float64{1}, []float64{2})))
	require.True(t, math.IsNaN(TTest([]float64{1, 1}, []float64{1, 1})))
	require.True(t, math.IsNaN(TTest(nil, []float64{1, 2})))
}

func TestSummarizeAll(t *testing.T) {

	empty := testSpec()
	empty.Name = "empty"
	empty.Variables = []string{"infoTV"}

	figs, err := SummarizeAll(testTable(t), []FigureSpec{testSpec(), empty, testSpec()})
	require.NoError(t, err)
	require.Len(t, figs, 3)
	require.NotNil(t, figs[0])
	require.Nil(t, figs[1])
	require.Equal(t, figs[0].Years, figs[2].Years)
}

func TestInternetFigures(t *testing.T) {
	specs := InternetFigures()
	require.Len(t, specs, 3)
	for _, s := range specs {
		require.Len(t, s.Variables, 5)
		require.Equal(t, cfpsmerge.DefaultYears, s.Years)
	}
}

func TestWriteText(t *testing.T) {

	fig, err := Summarize(testTable(t), testSpec())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, fig.WriteText(&buf))
	out := buf.String()
	require.Contains(t, out, "Internet usage")
	require.Contains(t, out, "internetWork")
	require.Contains(t, out, "Female")
}

func TestAnalyze(t *testing.T) {

	dir := filepath.Join(t.TempDir(), "figures")
	empty := testSpec()
	empty.Name = "empty"
	empty.File = "empty.pdf"
	empty.Variables = []string{"infoTV"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	files, err := Analyze(testTable(t), []FigureSpec{testSpec(), empty}, dir, logger)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "usage.pdf")}, files)

	b, err := os.ReadFile(files[0])
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(b, []byte("%PDF")))

	_, err = os.Stat(filepath.Join(dir, "empty.pdf"))
	require.True(t, os.IsNotExist(err))
}
