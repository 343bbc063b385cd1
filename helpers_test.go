package cfpsmerge

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kshedden/cfpsmerge/internal/dtatest"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bufferLogger returns a logger writing text records to the returned
// buffer.
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func testConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	dir := t.TempDir()
	cfg.BaseDir = filepath.Join(dir, "cfps")
	cfg.OutputDir = filepath.Join(dir, "output")
	return cfg
}

func mustCatalog(t *testing.T, text string) *Catalog {
	cat, err := LoadCatalog(strings.NewReader(text), WithCatalogLogger(discardLogger()))
	require.NoError(t, err)
	return cat
}

// writeAdult writes the adult file of a year below cfg.BaseDir.
func writeAdult(t *testing.T, cfg *Config, year int, cols []dtatest.Column) string {
	path, err := ResolvePath(cfg, year, Adult)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, dtatest.WriteFile(path, cols))
	return path
}

// floats returns the data of a float64 column with missing values
// replaced by -999.
func floats(t *testing.T, tbl *Table, name string) []float64 {
	c := tbl.Column(name)
	require.NotNil(t, c, name)
	x, ok := c.Data().([]float64)
	require.True(t, ok, "column %s has type %T", name, c.Data())
	r := make([]float64, len(x))
	for i, v := range x {
		if isMissing(c.Missing(), i) {
			r[i] = -999
		} else {
			r[i] = v
		}
	}
	return r
}

func ints(t *testing.T, tbl *Table, name string) []int64 {
	c := tbl.Column(name)
	require.NotNil(t, c, name)
	x, ok := c.Data().([]int64)
	require.True(t, ok, "column %s has type %T", name, c.Data())
	return x
}
