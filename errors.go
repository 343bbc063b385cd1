package cfpsmerge

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNoData is returned by Generate and Build when none of the
	// requested years contributed any rows.
	ErrNoData = errors.New("no data was read for any requested year")

	// ErrInvalidDataType is returned when a path is requested for an
	// unknown data type.
	ErrInvalidDataType = errors.New("invalid data type")
)

// CatalogLoadError reports that a variable catalog could not be
// parsed into the expected shape.
type CatalogLoadError struct {
	Source string
	Err    error
}

func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("cannot load variable catalog %s: %v", e.Source, e.Err)
}

func (e *CatalogLoadError) Unwrap() error {
	return e.Err
}

// UnsupportedYearError lists every requested year that is not in the
// configured set of survey years.
type UnsupportedYearError struct {
	Years []int
}

func (e *UnsupportedYearError) Error() string {
	s := make([]string, len(e.Years))
	for i, y := range e.Years {
		s[i] = fmt.Sprintf("%d", y)
	}
	return fmt.Sprintf("unsupported years: [%s]", strings.Join(s, ", "))
}

// InvalidYearError is returned by ResolvePath for a year outside the
// configured survey years.
type InvalidYearError struct {
	Year int
}

func (e *InvalidYearError) Error() string {
	return fmt.Sprintf("invalid year: %d", e.Year)
}
