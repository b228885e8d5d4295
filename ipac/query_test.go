package ipac_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/ipac"
)

func column(t *testing.T, tbl *ipac.Table, name string) []interface{} {
	t.Helper()
	i := tbl.ColumnIndex(name)
	require.GreaterOrEqual(t, i, 0, "column %s", name)
	var out []interface{}
	for _, r := range tbl.Rows() {
		out = append(out, r.Values[i])
	}
	return out
}

func TestQueryFilterAndSort(t *testing.T) {
	src := ipac.NewTable(ipac.NewColumn("col1", ipac.Integer), ipac.NewColumn("col2", ipac.Double))
	src.AddRow(int64(1), 0.5)
	src.AddRow(int64(2), 1.5)
	src.AddRow(int64(3), 3.0)

	f, err := ipac.ParseFilter("col2 > 1.0")
	require.NoError(t, err)

	out, err := ipac.NewQuery().AddFilter(f).OrderBy(ipac.Desc, "col2").Run(src)
	require.NoError(t, err)

	assert.Equal(t, []interface{}{3.0, 1.5}, column(t, out, "col2"))
	assert.Equal(t, []interface{}{int64(3), int64(2)}, column(t, out, "col1"))

	assert.Equal(t, 3, src.Len(), "source is untouched")
	assert.Equal(t, []interface{}{0.5, 1.5, 3.0}, column(t, src, "col2"))
}

func galaxies() *ipac.Table {
	tbl := ipac.NewTable(
		ipac.NewColumn("name", ipac.String),
		ipac.NewColumn("mag", ipac.Double),
		ipac.NewColumn("band", ipac.String),
	)
	tbl.SetAttribute("catalog", "messier")
	tbl.AddRow("M31", 3.4, "V")
	tbl.AddRow("M33", 5.7, "V")
	tbl.AddRow("M51", nil, "B")
	tbl.AddRow("M101", 7.9, "R")
	return tbl
}

func TestQueryOperators(t *testing.T) {
	tests := []struct {
		expr     string
		expected []interface{}
	}{
		{"mag < 5", []interface{}{"M31"}},
		{"mag >= 5.7", []interface{}{"M33", "M101"}},
		{"mag <= 5.7", []interface{}{"M31", "M33"}},
		{"mag = 7.9", []interface{}{"M101"}},
		{"mag != 3.4", []interface{}{"M33", "M101"}},
		{"band = v", []interface{}{"M31", "M33"}},
		{"name like m3", []interface{}{"M31", "M33"}},
		{"band IN (B, R)", []interface{}{"M51", "M101"}},
		{"ROW_IDX < 2", []interface{}{"M31", "M33"}},
		{"ROW_IDX IN (0, 3)", []interface{}{"M31", "M101"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := ipac.ParseFilter(tt.expr)
			require.NoError(t, err)

			out, err := ipac.NewQuery().AddFilter(f).Run(galaxies())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, column(t, out, "name"))
		})
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ipac.ParseFilter(`"ra" >= 10.5`)
	require.NoError(t, err)
	assert.Equal(t, ipac.DataFilter{Column: "ra", Op: ipac.GE, Value: "10.5"}, f)

	f, err = ipac.ParseFilter("band in ('J', 'H')")
	require.NoError(t, err)
	assert.Equal(t, ipac.IN, f.Op)
	assert.Equal(t, []string{"J", "H"}, f.Values)

	_, err = ipac.ParseFilter("nonsense")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFormat))
}

func TestQuerySortNulls(t *testing.T) {
	out, err := ipac.NewQuery().OrderBy(ipac.Asc, "mag").Run(galaxies())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"M51", "M31", "M33", "M101"}, column(t, out, "name"))

	out, err = ipac.NewQuery().OrderBy(ipac.Desc, "mag").Run(galaxies())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"M101", "M33", "M31", "M51"}, column(t, out, "name"))
}

func TestQuerySortStable(t *testing.T) {
	out, err := ipac.NewQuery().OrderBy(ipac.Asc, "band").Run(galaxies())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"M51", "M101", "M31", "M33"}, column(t, out, "name"))
}

func TestQuerySelect(t *testing.T) {
	out, err := ipac.NewQuery().Select("band", 0).Run(galaxies())
	require.NoError(t, err)
	require.Len(t, out.Columns, 2)
	assert.Equal(t, "band", out.Columns[0].Name)
	assert.Equal(t, "name", out.Columns[1].Name)
	assert.Equal(t, []interface{}{"V", "M31"}, out.Row(0).Values)

	v, ok := out.Attribute("catalog")
	require.True(t, ok)
	assert.Equal(t, "messier", v)
}

func TestQueryHeaderFilter(t *testing.T) {
	out, err := ipac.NewQuery().AddHeaderFilter(ipac.HeaderFilter{Key: "catalog", Op: ipac.EQ, Value: "MESSIER"}).Run(galaxies())
	require.NoError(t, err)
	assert.Equal(t, 4, out.Len())

	out, err = ipac.NewQuery().AddHeaderFilter(ipac.HeaderFilter{Key: "catalog", Op: ipac.EQ, Value: "ngc"}).Run(galaxies())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Len(t, out.Columns, 3)
}

func TestQueryRowFilter(t *testing.T) {
	out, err := ipac.NewQuery().AddRowFilter(func(i int, r *ipac.Row) bool {
		return r.Values[1] == nil
	}).Run(galaxies())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"M51"}, column(t, out, "name"))
}

func TestQueryNotFound(t *testing.T) {
	tests := map[string]*ipac.Query{
		"filter": ipac.NewQuery().AddFilter(ipac.DataFilter{Column: "nope", Op: ipac.EQ, Value: "1"}),
		"sort":   ipac.NewQuery().OrderBy(ipac.Asc, "nope"),
		"select": ipac.NewQuery().Select("nope"),
		"index":  ipac.NewQuery().Select(7),
	}
	for name, q := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := q.Run(galaxies())
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrNotFound))
		})
	}
}

func TestQueryKeepsFormatting(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ipac.Write(&buf, galaxies()))

	parsed, err := ipac.Parse(&buf)
	require.NoError(t, err)

	out, err := ipac.NewQuery().OrderBy(ipac.Desc, "name").Run(parsed)
	require.NoError(t, err)

	var written bytes.Buffer
	require.NoError(t, ipac.Write(&written, out))
	lines := strings.Split(written.String(), "\n")
	assert.True(t, strings.HasPrefix(lines[2], " M51 "), lines[2])
}

func TestTableDef(t *testing.T) {
	src := ipac.NewTable(ipac.NewColumn("id", ipac.Integer), ipac.NewColumn("v", ipac.Double))
	src.SetAttribute("fixlen", "T")
	for i := 0; i < 5; i++ {
		src.AddRow(int64(i), float64(i)*1.5)
	}

	var buf bytes.Buffer
	require.NoError(t, ipac.Write(&buf, src))
	r := bytes.NewReader(buf.Bytes())

	def, err := ipac.GetMetaInfo(r)
	require.NoError(t, err)
	assert.Equal(t, int64(5), def.RowCount)
	assert.Equal(t, 1, def.LineSepLength)
	require.Len(t, def.Columns, 2)
	assert.Equal(t, []ipac.Attribute{{Key: "fixlen", Value: "T"}}, def.Attributes)

	page, err := ipac.ReadRows(r, def, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(2), int64(3)}, column(t, page, "id"))
	assert.Equal(t, []interface{}{3.0, 4.5}, column(t, page, "v"))

	rest, err := ipac.ReadRows(r, def, 3, -1)
	require.NoError(t, err)
	assert.Equal(t, 2, rest.Len())

	past, err := ipac.ReadRows(r, def, 9, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, past.Len())
}

func TestQuerySortNaN(t *testing.T) {
	tbl := ipac.NewTable(
		ipac.NewColumn("name", ipac.String),
		ipac.NewColumn("mag", ipac.Double),
	)
	tbl.AddRow("a", 3.0)
	tbl.AddRow("b", math.NaN())
	tbl.AddRow("c", 1.0)
	tbl.AddRow("d", nil)
	tbl.AddRow("e", math.NaN())
	tbl.AddRow("f", 2.0)

	out, err := ipac.NewQuery().OrderBy(ipac.Asc, "mag").Run(tbl)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"d", "b", "e", "c", "f", "a"}, column(t, out, "name"))

	out, err = ipac.NewQuery().OrderBy(ipac.Desc, "mag").Run(tbl)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "f", "c"}, column(t, out, "name")[:3])

	f, err := ipac.ParseFilter("mag < 5")
	require.NoError(t, err)
	out, err = ipac.NewQuery().AddFilter(f).Run(tbl)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "c", "f"}, column(t, out, "name"))
}
