// Package dtatest writes small Stata dta files (format 115) for
// testing code that reads CFPS survey files.
package dtatest

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
)

// A Column is one variable of a generated file.  Data must be one of
// []float64, []float32, []int32, []int16, []int8 or []string.  Rows
// flagged in Missing are written as the Stata system missing value.
type Column struct {
	Name    string
	Data    interface{}
	Missing []bool
}

func (c *Column) length() int {
	switch x := c.Data.(type) {
	case []float64:
		return len(x)
	case []float32:
		return len(x)
	case []int32:
		return len(x)
	case []int16:
		return len(x)
	case []int8:
		return len(x)
	case []string:
		return len(x)
	}
	return -1
}

// typeCode returns the dta 115 type byte for the column.
func (c *Column) typeCode() (byte, error) {
	switch x := c.Data.(type) {
	case []float64:
		return 255, nil
	case []float32:
		return 254, nil
	case []int32:
		return 253, nil
	case []int16:
		return 252, nil
	case []int8:
		return 251, nil
	case []string:
		w := 1
		for _, s := range x {
			if len(s) > w {
				w = len(s)
			}
		}
		if w > 244 {
			return 0, errors.Errorf("column %s: strings longer than 244 bytes", c.Name)
		}
		return byte(w), nil
	}
	return 0, errors.Errorf("column %s: unsupported type %T", c.Name, c.Data)
}

func (c *Column) missing(i int) bool {
	return c.Missing != nil && c.Missing[i]
}

// fixed returns s as a null padded field of n bytes.
func fixed(s string, n int) []byte {
	b := make([]byte, n)
	copy(b[:n-1], s)
	return b
}

// Write writes the columns as a little endian dta 115 file.
func Write(w io.Writer, cols []Column) error {

	nrow := 0
	for j := range cols {
		n := cols[j].length()
		if n < 0 {
			return errors.Errorf("column %s: unsupported type %T", cols[j].Name, cols[j].Data)
		}
		if j == 0 {
			nrow = n
		} else if n != nrow {
			return errors.Errorf("column %s has %d rows, expected %d", cols[j].Name, n, nrow)
		}
		if len(cols[j].Name) > 32 {
			return errors.Errorf("column name %s is too long", cols[j].Name)
		}
	}

	types := make([]byte, len(cols))
	for j := range cols {
		var err error
		if types[j], err = cols[j].typeCode(); err != nil {
			return err
		}
	}

	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	put := func(v interface{}) {
		binary.Write(bw, le, v)
	}

	// Header
	put([]byte{115, 2, 1, 0})
	put(int16(len(cols)))
	put(int32(nrow))
	bw.Write(fixed("", 81))
	bw.Write(fixed("18 Oct 2026 12:00", 18))

	// Descriptors
	bw.Write(types)
	for _, c := range cols {
		bw.Write(fixed(c.Name, 33))
	}
	bw.Write(make([]byte, 2*(len(cols)+1)))
	for _, t := range types {
		f := "%9.0g"
		if t <= 244 {
			f = fmt.Sprintf("%%%ds", t)
		}
		bw.Write(fixed(f, 49))
	}
	for range cols {
		bw.Write(fixed("", 33))
	}
	for _, c := range cols {
		bw.Write(fixed(c.Name, 81))
	}

	// Expansion fields
	put(byte(0))
	put(int32(0))

	for i := 0; i < nrow; i++ {
		for j := range cols {
			c := &cols[j]
			switch x := c.Data.(type) {
			case []float64:
				v := x[i]
				if c.missing(i) {
					v = math.MaxFloat64
				}
				put(v)
			case []float32:
				v := x[i]
				if c.missing(i) {
					v = math.MaxFloat32
				}
				put(v)
			case []int32:
				v := x[i]
				if c.missing(i) {
					v = 2147483621
				}
				put(v)
			case []int16:
				v := x[i]
				if c.missing(i) {
					v = 32741
				}
				put(v)
			case []int8:
				v := x[i]
				if c.missing(i) {
					v = 101
				}
				put(v)
			case []string:
				v := ""
				if !c.missing(i) {
					v = x[i]
				}
				b := make([]byte, types[j])
				copy(b, v)
				bw.Write(b)
			}
		}
	}

	return bw.Flush()
}

// WriteFile writes the columns to a dta file at path.
func WriteFile(path string, cols []Column) error {

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Write(f, cols); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
