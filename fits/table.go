package fits

import (
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
)

// BinaryTable holds the first row of a BINTABLE extension. Lookup tables
// such as the -TAB spectral coordinate arrays store each array in one
// cell of a single row.
type BinaryTable struct {
	Name    string
	Header  *common.Header
	Columns []string
	Rows    int64

	first map[string][]float64
}

// Float64Column returns the cell of the first row for the named column,
// flattened to float64. Names match case-insensitively.
func (t *BinaryTable) Float64Column(name string) ([]float64, error) {
	v, ok := t.first[strings.ToUpper(name)]
	if !ok {
		return nil, errors.NotFoundf("column %s not found in table %s", name, t.Name)
	}
	if v == nil {
		return nil, errors.Unsupportedf("column %s of table %s is not numeric", name, t.Name)
	}
	return v, nil
}

// ReadBinaryTable finds the BINTABLE whose EXTNAME is extname.
func ReadBinaryTable(r io.Reader, extname string) (*BinaryTable, error) {
	fit, err := open(r)
	if err != nil {
		return nil, err
	}
	defer fit.Close()

	for i, hdu := range fit.HDUs() {
		if hdu.Type() != fitsio.BINARY_TBL {
			continue
		}
		hdr := convertHeader(hdu.Header())
		if name, _ := hdr.String("EXTNAME"); name != extname {
			continue
		}
		tbl, ok := hdu.(*fitsio.Table)
		if !ok {
			return nil, errors.Formatf("HDU %d is not a table", i)
		}
		return readBinaryTable(tbl, extname, hdr)
	}

	return nil, errors.NotFoundf("no binary table with EXTNAME %s", extname)
}

type binColumn struct {
	name    string
	numeric bool
	typ     reflect.Type
}

func readBinaryTable(tbl *fitsio.Table, name string, hdr *common.Header) (*BinaryTable, error) {
	bt := &BinaryTable{Name: name, Header: hdr, Rows: tbl.NumRows(), first: map[string][]float64{}}

	nfields := int(hdr.IntOr("TFIELDS", 0))
	var cols []binColumn
	for i := 0; i < nfields; i++ {
		n := strconv.Itoa(i + 1)
		cname, _ := hdr.String("TTYPE" + n)
		if cname == "" {
			cname = "COL" + n
		}
		bt.Columns = append(bt.Columns, cname)
		bt.first[strings.ToUpper(cname)] = nil

		form, _ := hdr.String("TFORM" + n)
		typ, numeric, err := columnType(form)
		if errors.Is(err, errors.ErrUnsupported) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", cname)
		}
		cols = append(cols, binColumn{name: cname, numeric: numeric, typ: typ})
	}
	if bt.Rows == 0 || len(cols) == 0 {
		return bt, nil
	}

	// Only the readable columns are scanned, through a struct whose fits
	// tags name them.
	fields := make([]reflect.StructField, len(cols))
	for i, c := range cols {
		fields[i] = reflect.StructField{
			Name: "F" + strconv.Itoa(i),
			Type: c.typ,
			Tag:  reflect.StructTag(`fits:"` + c.name + `"`),
		}
	}
	row := reflect.New(reflect.StructOf(fields))

	rows, err := tbl.Read(0, 1)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to read table %s", name), errors.ErrFormat)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(row.Interface()); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "failed to read table %s", name), errors.ErrFormat)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to read table %s", name), errors.ErrFormat)
	}

	for i, c := range cols {
		if c.numeric {
			bt.first[strings.ToUpper(c.name)] = flatten(row.Elem().Field(i))
		}
	}
	return bt, nil
}

var binaryTypes = map[byte]reflect.Type{
	'L': reflect.TypeOf(false),
	'B': reflect.TypeOf(uint8(0)),
	'I': reflect.TypeOf(int16(0)),
	'J': reflect.TypeOf(int32(0)),
	'K': reflect.TypeOf(int64(0)),
	'E': reflect.TypeOf(float32(0)),
	'D': reflect.TypeOf(float64(0)),
	'C': reflect.TypeOf(complex64(0)),
	'M': reflect.TypeOf(complex128(0)),
}

// columnType maps a TFORM such as "1024D" to the Go type fitsio scans it
// into. Fixed repeats become arrays.
func columnType(form string) (reflect.Type, bool, error) {
	form = strings.TrimSpace(form)
	j := strings.IndexAny(form, "ABCDEIJKLMPQX")
	if j < 0 {
		return nil, false, errors.Formatf("invalid TFORM %q", form)
	}

	repeat := 1
	if j > 0 {
		r, err := strconv.Atoi(form[:j])
		if err != nil {
			return nil, false, errors.Formatf("invalid TFORM %q", form)
		}
		repeat = r
	}

	code := form[j]
	if code == 'A' {
		return reflect.TypeOf(""), false, nil
	}

	typ, ok := binaryTypes[code]
	if !ok || repeat < 1 {
		return nil, false, errors.Unsupportedf("unsupported TFORM %q", form)
	}

	numeric := code != 'L' && code != 'C' && code != 'M'
	if repeat > 1 {
		typ = reflect.ArrayOf(repeat, typ)
	}
	return typ, numeric, nil
}

func flatten(v reflect.Value) []float64 {
	if v.Kind() == reflect.Array || v.Kind() == reflect.Slice {
		out := make([]float64, v.Len())
		for i := range out {
			out[i] = scalar(v.Index(i))
		}
		return out
	}
	return []float64{scalar(v)}
}

func scalar(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return float64(v.Int())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return 0
}
