package cfpsmerge

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the settings that are fixed when a Generator is
// created.  The zero value is not usable, start from DefaultConfig.
type Config struct {

	// Root directory of the CFPS archive.
	BaseDir string `yaml:"base_dir"`

	// Directory where merged datasets are written.
	OutputDir string `yaml:"output_dir"`

	// The survey years that may be requested.
	Years []int `yaml:"years"`

	// Output file format, "parquet" or "csv".
	Format Format `yaml:"format"`

	// Name of the person identifier column in the source files.
	KeyColumn string `yaml:"key_column"`

	// Number of rows read from a source file at a time.
	ChunkSize int `yaml:"chunk_size"`

	// If true, a source file that exists but cannot be read aborts
	// generation instead of skipping the year.
	StrictReads bool `yaml:"strict_reads"`
}

// DefaultYears are the CFPS survey waves.
var DefaultYears = []int{2010, 2012, 2014, 2016, 2018, 2020, 2022}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	years := make([]int, len(DefaultYears))
	copy(years, DefaultYears)
	return &Config{
		BaseDir:   filepath.Join("data", "cfps"),
		OutputDir: "output",
		Years:     years,
		Format:    FormatParquet,
		KeyColumn: "pid",
		ChunkSize: 10000,
	}
}

// LoadConfig reads a YAML configuration file.  Settings missing from
// the file keep their default values.
func LoadConfig(path string) (*Config, error) {

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}

	return cfg, nil
}

// Validate checks that the configuration can be used.
func (cfg *Config) Validate() error {

	if cfg.BaseDir == "" {
		return errors.New("base_dir is required")
	}
	if cfg.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	if len(cfg.Years) == 0 {
		return errors.New("at least one survey year is required")
	}

	seen := make(map[int]bool)
	for _, y := range cfg.Years {
		if seen[y] {
			return errors.Errorf("year %d is listed twice", y)
		}
		seen[y] = true
	}

	if _, err := ParseFormat(string(cfg.Format)); err != nil {
		return err
	}
	if cfg.KeyColumn == "" {
		return errors.New("key_column is required")
	}
	if cfg.ChunkSize <= 0 {
		return errors.Errorf("chunk_size must be positive, got %d", cfg.ChunkSize)
	}

	return nil
}

// SupportsYear returns true if y is one of the configured survey years.
func (cfg *Config) SupportsYear(y int) bool {
	for _, v := range cfg.Years {
		if v == y {
			return true
		}
	}
	return false
}
