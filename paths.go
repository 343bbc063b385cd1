package cfpsmerge

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// DataType identifies one of the CFPS data files.
type DataType string

const (
	Adult       DataType = "adult"
	Child       DataType = "child"
	FamEcon     DataType = "famecon"
	FamConf     DataType = "famconf"
	CrossYear   DataType = "crossyear"
	CrossYearID DataType = "crossyearid"
	Community   DataType = "community"
)

// DataTypes lists all known data types.
var DataTypes = []DataType{Adult, Child, FamEcon, FamConf, CrossYear, CrossYearID, Community}

// Some files were only released for a single wave.  The year
// argument of ResolvePath is ignored for these.
var fixedFiles = map[DataType]struct {
	year int
	name string
}{
	CrossYear:   {2018, "cfps2018_crossyear.dta"},
	CrossYearID: {2020, "cfps2020_crossyearid.dta"},
	Community:   {2010, "cfps2010_comm.dta"},
}

// ParseDataType converts a name such as "adult" to a DataType.
func ParseDataType(s string) (DataType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, dt := range DataTypes {
		if string(dt) == s {
			return dt, nil
		}
	}
	return "", errors.Wrapf(ErrInvalidDataType, "%q", s)
}

// ResolvePath returns the location of the file holding the given
// data type for the given year.  It does not check that the file
// exists.
func ResolvePath(cfg *Config, year int, dt DataType) (string, error) {

	if f, ok := fixedFiles[dt]; ok {
		return filepath.Join(cfg.BaseDir, fmt.Sprintf("%d", f.year), f.name), nil
	}

	if !cfg.SupportsYear(year) {
		return "", &InvalidYearError{Year: year}
	}

	ys := fmt.Sprintf("%d", year)
	fname := fmt.Sprintf("cfps%d_%s.dta", year, dt)

	switch dt {
	case Adult, FamEcon, FamConf:
		return filepath.Join(cfg.BaseDir, ys, fname), nil
	case Child:
		// The child files sit at the top of the archive.
		return filepath.Join(cfg.BaseDir, fname), nil
	default:
		return "", errors.Wrapf(ErrInvalidDataType, "%q", string(dt))
	}
}
