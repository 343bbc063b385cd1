package cfpsmerge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "cfps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {

	path := writeConfig(t, `
base_dir: /archive/cfps
years: [2018, 2020]
format: csv
strict_reads: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/archive/cfps", cfg.BaseDir)
	require.Equal(t, []int{2018, 2020}, cfg.Years)
	require.Equal(t, FormatCSV, cfg.Format)
	require.True(t, cfg.StrictReads)

	// Defaults are kept for settings not in the file.
	require.Equal(t, "output", cfg.OutputDir)
	require.Equal(t, "pid", cfg.KeyColumn)
	require.Equal(t, 10000, cfg.ChunkSize)
}

func TestLoadConfigEmpty(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigInvalid(t *testing.T) {

	for _, text := range []string{
		"base_dir: [\n",
		"basedir: /tmp\n",
		"years: []\n",
		"years: [2010, 2010]\n",
		"format: xlsx\n",
		"chunk_size: 0\n",
		"key_column: \"\"\n",
	} {
		_, err := LoadConfig(writeConfig(t, text))
		require.Error(t, err, text)
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSupportsYear(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.SupportsYear(2010))
	require.True(t, cfg.SupportsYear(2022))
	require.False(t, cfg.SupportsYear(2011))
	require.False(t, cfg.SupportsYear(2024))
}
