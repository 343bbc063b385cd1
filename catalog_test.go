package cfpsmerge

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const testCatalog = `variable,2010,2012,2018,2018-label,2020,description
gender,gender,cfps_gender,gender,QA2,gender,Sex of respondent
hukou,qa301,qa302,0,,hukou_2020,
education,cfps2010edu,,edu2018,,NA,
income,,,0,income_2018,income,
`

func TestCatalogLoad(t *testing.T) {

	cat := mustCatalog(t, testCatalog)

	require.Equal(t, []string{"gender", "hukou", "education", "income"}, cat.Variables())
	require.Equal(t, []int{2010, 2012, 2018, 2020}, cat.Years())
	require.True(t, cat.Has("gender"))
	require.False(t, cat.Has("description"))
	require.False(t, cat.Has("Sex of respondent"))

	for _, tc := range []struct {
		name  string
		years []int
	}{
		{"gender", []int{2010, 2012, 2018, 2020}},
		{"hukou", []int{2010, 2012, 2020}},
		{"education", []int{2010, 2018}},
		{"income", []int{2020}},
	} {
		years, ok := cat.Availability(tc.name)
		require.True(t, ok)
		require.Equal(t, tc.years, years, tc.name)
	}

	_, ok := cat.Availability("wage")
	require.False(t, ok)
}

func TestCatalogResolve(t *testing.T) {

	logger, buf := bufferLogger()
	cat, err := LoadCatalog(strings.NewReader(testCatalog), WithCatalogLogger(logger))
	require.NoError(t, err)

	m := cat.Resolve([]string{"gender", "wage", "hukou", "gender"}, []int{2018, 2010, 2018})

	require.Equal(t, []string{"wage"}, m.Unknown)
	require.Len(t, m.Variables, 2)
	require.Equal(t, "gender", m.Variables[0].Variable)
	require.Equal(t, "hukou", m.Variables[1].Variable)

	// The label column replaces the year column.
	col, ok := m.Column("gender", 2018)
	require.True(t, ok)
	require.Equal(t, "QA2", col)

	col, ok = m.Column("gender", 2010)
	require.True(t, ok)
	require.Equal(t, "gender", col)

	_, ok = m.Column("hukou", 2018)
	require.False(t, ok)
	require.Equal(t, []Unavailable{{Variable: "hukou", Year: 2018}}, m.Unavailable)

	require.Equal(t, []int{2018, 2010}, m.Years("gender"))
	require.Equal(t, []int{2010}, m.Years("hukou"))
	require.Nil(t, m.Years("wage"))

	out := buf.String()
	require.Contains(t, out, "variable not found in catalog")
	require.Contains(t, out, "variable=wage")
	require.Contains(t, out, "variable not available")
	require.Equal(t, 1, strings.Count(out, "variable=wage"))
}

func TestCatalogUnusedWithLabel(t *testing.T) {

	// A label does not make an unused variable available.
	cat := mustCatalog(t, testCatalog)
	m := cat.Resolve([]string{"income"}, []int{2018, 2020})

	_, ok := m.Column("income", 2018)
	require.False(t, ok)
	col, ok := m.Column("income", 2020)
	require.True(t, ok)
	require.Equal(t, "income", col)
}

func TestCatalogByteOrderMark(t *testing.T) {
	cat := mustCatalog(t, "\ufeffvariable,2010\nage,qa1age\n")
	require.Equal(t, []string{"age"}, cat.Variables())
	years, _ := cat.Availability("age")
	require.Equal(t, []int{2010}, years)
}

func TestCatalogNumericColumn(t *testing.T) {

	// Columns of numbers are still read as text.
	cat := mustCatalog(t, "variable,2010,2012\nq1,101,0\nq2,102,0.0\n")

	m := cat.Resolve([]string{"q1", "q2"}, []int{2010, 2012})
	col, ok := m.Column("q2", 2010)
	require.True(t, ok)
	require.Equal(t, "102", col)
	require.Len(t, m.Unavailable, 2)
}

func TestCatalogGBK(t *testing.T) {

	text := "variable,2010\n性别,qa1\n户口,qa301\n"
	b, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, b, 0644))

	cat, err := LoadCatalogFile(path, WithEncoding("gbk"), WithCatalogLogger(discardLogger()))
	require.NoError(t, err)
	require.Equal(t, []string{"性别", "户口"}, cat.Variables())

	_, err = LoadCatalogFile(path, WithEncoding("no-such-encoding"))
	require.Error(t, err)
}

func TestCatalogLoadErrors(t *testing.T) {

	for _, text := range []string{
		"",
		"name,2010\nage,qa1\n",
		"variable,2010\nage,qa1\nage,qa2\n",
		"variable,2010\n,qa1\n",
		"variable,variable,2010\nage,age,qa1\n",
		"variable,2010,2010\nage,qa1,qa2\n",
		"variable,2010\n\"age,qa1\n",
		"variable,notes\ngender,x\n",
		"variable,2018-label\ngender,QA2\n",
	} {
		_, err := LoadCatalog(bytes.NewReader([]byte(text)))
		var cerr *CatalogLoadError
		require.ErrorAs(t, err, &cerr, "%q", text)
	}

	_, err := LoadCatalogFile(filepath.Join(t.TempDir(), "missing.csv"))
	var cerr *CatalogLoadError
	require.ErrorAs(t, err, &cerr)
	require.Contains(t, cerr.Error(), "missing.csv")
}
