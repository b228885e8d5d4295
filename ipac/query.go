package ipac

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rickbassham/fitscore/errors"
)

// RowIndexColumn names the pseudo-column that filters by 0-based row index.
const RowIndexColumn = "ROW_IDX"

// Op is a filter comparison.
type Op string

const (
	GT   Op = ">"
	LT   Op = "<"
	EQ   Op = "="
	NE   Op = "!="
	GE   Op = ">="
	LE   Op = "<="
	IN   Op = "IN"
	LIKE Op = "LIKE"
)

// SortDir is the direction of a query sort.
type SortDir int

const (
	NoSort SortDir = iota
	Asc
	Desc
)

// DataFilter matches rows by the content of one column, or by row index
// when Column is RowIndexColumn.
type DataFilter struct {
	Column string
	Op     Op
	Value  string
	// Values holds the list for IN.
	Values []string
}

// HeaderFilter matches a table keyword.
type HeaderFilter struct {
	Key   string
	Op    Op
	Value string
}

// RowFilter is an arbitrary row predicate.
type RowFilter func(i int, r *Row) bool

var (
	wordOpRegex   = regexp.MustCompile(`(?i)^\s*(\S+)\s+(IN|LIKE)\s+(.+?)\s*$`)
	symbolOpRegex = regexp.MustCompile(`^\s*([^<>=!\s]+)\s*(>=|<=|!=|=|>|<)\s*(.*?)\s*$`)
)

// ParseFilter reads a filter such as "col2 > 1.0", "name LIKE m31" or
// "band IN (J, H, K)".
func ParseFilter(expr string) (DataFilter, error) {
	if m := wordOpRegex.FindStringSubmatch(expr); m != nil {
		f := DataFilter{Column: unquote(m[1]), Op: Op(strings.ToUpper(m[2])), Value: unquote(m[3])}
		if f.Op == IN {
			list := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(m[3]), "("), ")")
			for _, v := range strings.Split(list, ",") {
				f.Values = append(f.Values, unquote(strings.TrimSpace(v)))
			}
		}
		return f, nil
	}
	if m := symbolOpRegex.FindStringSubmatch(expr); m != nil {
		return DataFilter{Column: unquote(m[1]), Op: Op(m[2]), Value: unquote(m[3])}, nil
	}
	return DataFilter{}, errors.Formatf("cannot parse filter %q", expr)
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func (f DataFilter) String() string {
	if f.Op == IN {
		return fmt.Sprintf("%s IN (%s)", f.Column, strings.Join(f.Values, ","))
	}
	return fmt.Sprintf("%s %s %s", f.Column, f.Op, f.Value)
}

// Query filters, sorts and projects a table into a new one. The source
// table is never modified.
type Query struct {
	filters       []DataFilter
	headerFilters []HeaderFilter
	rowFilters    []RowFilter
	selects       []interface{}
	sortCols      []string
	sortDir       SortDir
}

func NewQuery() *Query {
	return &Query{}
}

func (q *Query) AddFilter(f DataFilter) *Query {
	q.filters = append(q.filters, f)
	return q
}

func (q *Query) AddHeaderFilter(f HeaderFilter) *Query {
	q.headerFilters = append(q.headerFilters, f)
	return q
}

func (q *Query) AddRowFilter(f RowFilter) *Query {
	q.rowFilters = append(q.rowFilters, f)
	return q
}

// Select projects the result onto columns given by name (string) or
// position (int), in the order given.
func (q *Query) Select(cols ...interface{}) *Query {
	q.selects = append(q.selects, cols...)
	return q
}

// OrderBy sorts by cols, compared left to right.
func (q *Query) OrderBy(dir SortDir, cols ...string) *Query {
	q.sortDir = dir
	q.sortCols = cols
	return q
}

// Run applies the query to t.
func (q *Query) Run(t *Table) (*Table, error) {
	type indexed struct {
		idx int
		row *Row
	}

	filterCols := make([]int, len(q.filters))
	for i, f := range q.filters {
		if f.Column == RowIndexColumn {
			filterCols[i] = -1
			continue
		}
		if filterCols[i] = t.ColumnIndex(f.Column); filterCols[i] < 0 {
			return nil, errors.NotFoundf("filter column %s not found", f.Column)
		}
	}

	sortCols := make([]int, len(q.sortCols))
	for i, name := range q.sortCols {
		if sortCols[i] = t.ColumnIndex(name); sortCols[i] < 0 {
			return nil, errors.NotFoundf("sort column %s not found", name)
		}
	}

	projection, err := q.projection(t)
	if err != nil {
		return nil, err
	}

	var matched []indexed
	if q.headerMatches(t) {
		for i, r := range t.rows {
			if q.rowMatches(t, filterCols, i, r) {
				matched = append(matched, indexed{idx: i, row: r})
			}
		}
	}

	if q.sortDir != NoSort && len(sortCols) > 0 {
		sign := 1
		if q.sortDir == Desc {
			sign = -1
		}
		sort.SliceStable(matched, func(a, b int) bool {
			for _, c := range sortCols {
				if cmp := compareValues(matched[a].row.Values[c], matched[b].row.Values[c]); cmp != 0 {
					return cmp*sign < 0
				}
			}
			return false
		})
	}

	out := &Table{}
	out.copyAttrs(t)
	for _, p := range projection {
		out.Columns = append(out.Columns, t.Columns[p].clone())
	}
	for _, m := range matched {
		r := &Row{Values: make([]interface{}, len(projection))}
		if m.row.Formatted != nil {
			r.Formatted = make([]string, len(projection))
		}
		for j, p := range projection {
			r.Values[j] = m.row.Values[p]
			if r.Formatted != nil && p < len(m.row.Formatted) {
				r.Formatted[j] = m.row.Formatted[p]
			}
		}
		out.addRow(r)
	}
	return out, nil
}

func (q *Query) projection(t *Table) ([]int, error) {
	if len(q.selects) == 0 {
		all := make([]int, len(t.Columns))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	var out []int
	for _, s := range q.selects {
		switch s := s.(type) {
		case string:
			i := t.ColumnIndex(s)
			if i < 0 {
				return nil, errors.NotFoundf("select column %s not found", s)
			}
			out = append(out, i)
		case int:
			if s < 0 || s >= len(t.Columns) {
				return nil, errors.NotFoundf("select column %d out of range", s)
			}
			out = append(out, s)
		default:
			return nil, errors.AssertionFailedf("select takes column names or positions, got %T", s)
		}
	}
	return out, nil
}

func (q *Query) headerMatches(t *Table) bool {
	for _, f := range q.headerFilters {
		v, ok := t.Attribute(f.Key)
		if !ok {
			return false
		}
		if !matchValue(v, String, DataFilter{Op: f.Op, Value: f.Value}) {
			return false
		}
	}
	return true
}

func (q *Query) rowMatches(t *Table, cols []int, i int, r *Row) bool {
	for k, f := range q.filters {
		if cols[k] < 0 {
			if !matchValue(int64(i), Long, f) {
				return false
			}
			continue
		}
		if !matchValue(r.Values[cols[k]], t.Columns[cols[k]].Type, f) {
			return false
		}
	}
	for _, rf := range q.rowFilters {
		if !rf(i, r) {
			return false
		}
	}
	return true
}

func matchValue(v interface{}, t DataType, f DataFilter) bool {
	if v == nil {
		return false
	}
	if x, ok := v.(float64); ok && math.IsNaN(x) {
		return false
	}

	switch f.Op {
	case LIKE:
		return strings.Contains(strings.ToLower(formatAny(v)), strings.ToLower(f.Value))
	case IN:
		for _, want := range f.Values {
			if compareFilter(v, t, want) == 0 {
				return true
			}
		}
		return false
	}

	cmp := compareFilter(v, t, f.Value)
	switch f.Op {
	case GT:
		return cmp > 0
	case LT:
		return cmp < 0
	case EQ:
		return cmp == 0
	case NE:
		return cmp != 0
	case GE:
		return cmp >= 0
	case LE:
		return cmp <= 0
	}
	panic(errors.AssertionFailedf("unknown filter operator %q", f.Op))
}

// compareFilter compares a cell with a filter operand: numerically for
// numeric cells, otherwise case-insensitively.
func compareFilter(v interface{}, t DataType, operand string) int {
	if n, ok := toFloat(v); ok && (t.IsNumeric() || t == Unresolved) {
		if x, err := strconv.ParseFloat(strings.TrimSpace(operand), 64); err == nil {
			return compareFloat(n, x)
		}
	}
	return strings.Compare(strings.ToLower(formatAny(v)), strings.ToLower(operand))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// compareFloat orders NaN before every number so sorting stays total.
func compareFloat(a, b float64) int {
	switch an, bn := math.IsNaN(a), math.IsNaN(b); {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareValues orders two cells for sorting. Nulls sort first, then NaN.
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return compareFloat(x, y)
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	}
	if x, ok := a.(bool); ok {
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
