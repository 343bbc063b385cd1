package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kshedden/cfpsmerge"
	"github.com/kshedden/cfpsmerge/summary"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	internetName = "cfps_internet_2010_2022"
	analysisName = "cfps_internet_analysis"
)

// internetVars are the variables of the internet use dataset.
var internetVars = []string{
	"gender",
	"internetLearn", "internetWork", "internetSocial", "internetEntertain", "internetCommercial",
	"internetLearn20201", "internetLearn20202", "internetLearn20221", "internetLearn20222",
	"game", "gameFreq", "shopping", "shoppingFreq", "video", "videoFreq", "wechat", "wechatFreq",
	"internetImportLearn", "internetImportWork", "internetImportSocial",
	"internetImportEntertain", "internetImportCommercial",
	"infoInternet", "infoTV", "infoNews", "infoRadio", "infoMobile",
}

func fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	os.Exit(1)
}

// Action holds the state shared by the commands.
type Action struct {
	cmd    *cobra.Command
	out    io.Writer
	logger *slog.Logger
}

func newAction(cmd *cobra.Command) *Action {
	a := &Action{cmd: cmd, out: cmd.OutOrStdout()}
	level := slog.LevelInfo
	if a.getBool("verbose") {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return a
}

func (a *Action) getBool(name string) bool {
	result, _ := a.cmd.Flags().GetBool(name)
	return result
}

func (a *Action) getInt(name string) int {
	result, _ := a.cmd.Flags().GetInt(name)
	return result
}

func (a *Action) getIntSlice(name string) []int {
	result, _ := a.cmd.Flags().GetIntSlice(name)
	return result
}

func (a *Action) getString(name string) string {
	result, _ := a.cmd.Flags().GetString(name)
	return result
}

func (a *Action) getStringSlice(name string) []string {
	result, _ := a.cmd.Flags().GetStringSlice(name)
	var r []string
	for _, s := range result {
		if s = strings.TrimSpace(s); s != "" {
			r = append(r, s)
		}
	}
	return r
}

// loadConfig reads the config file if one is given, then applies the
// flags that were set on the command line.
func (a *Action) loadConfig() (*cfpsmerge.Config, error) {

	cfg := cfpsmerge.DefaultConfig()
	if fname := a.getString("config"); fname != "" {
		var err error
		if cfg, err = cfpsmerge.LoadConfig(fname); err != nil {
			return nil, err
		}
	}

	flags := a.cmd.Flags()
	if flags.Changed("base-dir") {
		cfg.BaseDir = a.getString("base-dir")
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = a.getString("output-dir")
	}
	if flags.Changed("format") {
		f, err := cfpsmerge.ParseFormat(a.getString("format"))
		if err != nil {
			return nil, err
		}
		cfg.Format = f
	}
	if flags.Changed("strict") {
		cfg.StrictReads = a.getBool("strict")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (a *Action) config() *cfpsmerge.Config {
	cfg, err := a.loadConfig()
	if err != nil {
		fatal("%v", err)
	}
	return cfg
}

func (a *Action) catalog() *cfpsmerge.Catalog {
	cat, err := cfpsmerge.LoadCatalogFile(a.getString("catalog"),
		cfpsmerge.WithEncoding(a.getString("catalog-encoding")),
		cfpsmerge.WithCatalogLogger(a.logger))
	if err != nil {
		fatal("%v", err)
	}
	return cat
}

func (a *Action) generator(cfg *cfpsmerge.Config) *cfpsmerge.Generator {
	g, err := cfpsmerge.NewGenerator(cfg, a.catalog(), cfpsmerge.WithLogger(a.logger))
	if err != nil {
		fatal("%v", err)
	}
	return g
}

// years returns the --years flag, or all configured years.
func (a *Action) years(cfg *cfpsmerge.Config) []int {
	if y := a.getIntSlice("years"); len(y) > 0 {
		return y
	}
	return cfg.Years
}

func listVariables(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	cat := action.catalog()

	names := cat.Variables()
	if n := action.getInt("limit"); n > 0 && n < len(names) {
		names = names[:n]
	}

	tw := tabwriter.NewWriter(action.out, 0, 4, 2, ' ', 0)
	for _, na := range names {
		years, _ := cat.Availability(na)
		fmt.Fprintf(tw, "%s\t%s\n", na, joinInts(years))
	}
	tw.Flush()
	fmt.Fprintf(action.out, "%d of %d variables\n", len(names), len(cat.Variables()))
}

func showMapping(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	cfg := action.config()
	m := action.catalog().Resolve(action.getStringSlice("vars"), action.years(cfg))

	tw := tabwriter.NewWriter(action.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "variable\tyear\tcolumn\n")
	for _, vm := range m.Variables {
		for _, yc := range vm.Columns {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", vm.Variable, yc.Year, yc.Column)
		}
	}
	for _, u := range m.Unavailable {
		fmt.Fprintf(tw, "%s\t%d\t-\n", u.Variable, u.Year)
	}
	tw.Flush()

	if len(m.Unknown) > 0 {
		fmt.Fprintf(action.out, "not in catalog: %s\n", strings.Join(m.Unknown, ", "))
	}
}

func showPath(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	cfg := action.config()

	dt, err := cfpsmerge.ParseDataType(action.getString("type"))
	if err != nil {
		fatal("%v", err)
	}
	path, err := cfpsmerge.ResolvePath(cfg, action.getInt("year"), dt)
	if err != nil {
		fatal("%v", err)
	}

	status := "exists"
	if _, err := os.Stat(path); err != nil {
		status = "missing"
	}
	fmt.Fprintf(action.out, "%s (%s)\n", path, status)
}

func generate(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	cfg := action.config()
	g := action.generator(cfg)

	path, err := g.Generate(action.years(cfg), action.getStringSlice("vars"), action.getString("name"))
	if err != nil {
		fatal("%v", err)
	}
	fmt.Fprintln(action.out, path)
}

func demo(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	g := action.generator(action.config())

	path, err := g.Generate([]int{2018, 2020}, []string{"gender", "hukou", "education"}, "cfps_demo")
	if err != nil {
		fatal("%v", err)
	}
	fmt.Fprintln(action.out, path)
}

func internet(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	cfg := action.config()
	g := action.generator(cfg)

	m := g.Catalog().Resolve(internetVars, cfg.Years)
	for _, vm := range m.Variables {
		action.logger.Debug("variable mapping", "variable", vm.Variable, "years", len(vm.Columns))
	}

	path, err := g.Generate(cfg.Years, internetVars, action.internetName())
	if err != nil {
		fatal("%v", err)
	}
	fmt.Fprintln(action.out, path)

	if action.getBool("analyze") {
		action.analyzeFile(path, cfg.OutputDir, false)
	}
}

// internetName returns the output name of the internet command.  When
// the figures are drawn as well, the default is the name that analyze
// reads.
func (a *Action) internetName() string {
	if a.getBool("analyze") && !a.cmd.Flags().Changed("name") {
		return analysisName
	}
	return a.getString("name")
}

func analyze(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	cfg := action.config()

	path := filepath.Join(cfg.OutputDir, analysisName+"."+cfg.Format.Ext())
	if len(args) > 0 {
		path = args[0]
	}

	out := action.getString("out")
	if out == "" {
		out = cfg.OutputDir
	}

	action.analyzeFile(path, out, action.getBool("text"))
}

func (a *Action) analyzeFile(path, outDir string, text bool) {

	tbl, err := cfpsmerge.ReadDatasetFile(path)
	if err != nil {
		fatal("%v", err)
	}
	a.logger.Info("dataset loaded", "path", path, "records", tbl.NumRows())

	specs := summary.InternetFigures()
	files, err := summary.Analyze(tbl, specs, outDir, a.logger)
	if err != nil {
		fatal("%v", err)
	}
	for _, f := range files {
		fmt.Fprintln(a.out, f)
	}

	if !text {
		return
	}
	figs, err := summary.SummarizeAll(tbl, specs)
	if err != nil {
		fatal("%v", err)
	}
	for _, fig := range figs {
		if fig == nil {
			continue
		}
		if err := fig.WriteText(a.out); err != nil {
			fatal("%v", err)
		}
		fmt.Fprintln(a.out)
	}
}

func inspect(cmd *cobra.Command, args []string) {
	action := newAction(cmd)

	fname := args[0]
	f, err := os.Open(fname)
	if err != nil {
		fatal("%v", err)
	}
	defer f.Close()

	rdr, err := cfpsmerge.OpenStatfile(f, fname, true)
	if err != nil {
		fatal("%v", err)
	}

	if action.getBool("csv") {
		err = writeCSV(action.out, rdr)
	} else {
		err = listColumns(action.out, rdr)
	}
	if err != nil {
		fatal("%v", err)
	}
}

// listColumns writes the name and storage type of each column.
func listColumns(w io.Writer, rdr cfpsmerge.Statfile) error {

	names := rdr.ColumnNames()
	types := make([]string, len(names))

	chunk, err := rdr.Read(1)
	if err != nil && err != io.EOF {
		return err
	}
	for j := range types {
		if j < len(chunk) {
			types[j] = fmt.Sprintf("%T", chunk[j].Data())
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for j, na := range names {
		fmt.Fprintf(tw, "%s\t%s\n", na, strings.TrimPrefix(types[j], "[]"))
	}
	fmt.Fprintf(tw, "%d columns, %d rows\n", len(names), rdr.RowCount())

	return tw.Flush()
}

// writeCSV writes the contents of the file as CSV, reading 1000 rows
// at a time.  Missing values are written as empty cells.
func writeCSV(out io.Writer, rdr cfpsmerge.Statfile) error {

	w := csv.NewWriter(out)

	ncol := len(rdr.ColumnNames())
	if err := w.Write(rdr.ColumnNames()); err != nil {
		return err
	}

	row := make([]string, ncol)
	for {
		chunk, err := rdr.Read(1000)
		if err != nil && err != io.EOF {
			return err
		} else if chunk == nil || err == io.EOF {
			break
		}

		for j := range chunk {
			chunk[j] = chunk[j].UpcastNumeric()
		}

		nrow := chunk[0].Length()
		for i := 0; i < nrow; i++ {
			for j := 0; j < ncol; j++ {
				row[j] = ""
				if miss := chunk[j].Missing(); miss != nil && miss[i] {
					continue
				}
				switch x := chunk[j].Data().(type) {
				case []float64:
					row[j] = strconv.FormatFloat(x[i], 'f', -1, 64)
				case []string:
					row[j] = x[i]
				case []time.Time:
					row[j] = x[i].Format("2006-01-02")
				default:
					return errors.Errorf("column %s: unknown type %T", chunk[j].Name, x)
				}
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

func joinInts(x []int) string {
	s := make([]string, len(x))
	for i, v := range x {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ",")
}
