// Package parquet exposes Parquet files through the same table and report
// shapes as the other formats.
package parquet

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/ipac"
)

const (
	KeyRows    = "PARQUET_ROWS"
	KeyColumns = "PARQUET_COLUMNS"
)

type reader struct {
	f  *os.File
	pf *file.Reader
	fr *pqarrow.FileReader
}

func open(path string) (*reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	pf, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Mark(errors.Wrapf(err, "failed to read parquet file %s", path), errors.ErrFormat)
	}

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		pf.Close()
		f.Close()
		return nil, errors.Mark(errors.Wrap(err, "failed to create arrow reader"), errors.ErrFormat)
	}

	return &reader{f: f, pf: pf, fr: fr}, nil
}

func (r *reader) Close() error {
	err := r.pf.Close()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadTable reads up to limit rows of the Parquet file at path. A limit
// of zero or less reads every row.
func ReadTable(ctx context.Context, path string, limit int) (*ipac.Table, error) {
	r, err := open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	tbl, err := r.fr.ReadTable(ctx)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to read parquet data"), errors.ErrFormat)
	}
	defer tbl.Release()

	schema := tbl.Schema()
	cols := make([]*ipac.Column, schema.NumFields())
	for i, f := range schema.Fields() {
		cols[i] = ipac.NewColumn(f.Name, dataType(f.Type))
		cols[i].Nullable = f.Nullable
	}

	out := ipac.NewTable(cols...)
	out.SetAttribute(KeyRows, strconv.FormatInt(tbl.NumRows(), 10))
	out.SetAttribute(KeyColumns, strconv.Itoa(len(cols)))

	tr := array.NewTableReader(tbl, 1024)
	defer tr.Release()

	for tr.Next() {
		rec := tr.Record()
		for i := 0; i < int(rec.NumRows()); i++ {
			if limit > 0 && out.Len() >= limit {
				return out, nil
			}
			values := make([]interface{}, len(cols))
			for j, col := range rec.Columns() {
				values[j] = value(col, i)
			}
			out.AddRow(values...)
		}
	}
	if err := tr.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading table")
	}

	return out, nil
}

func dataType(t arrow.DataType) ipac.DataType {
	switch t.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.UINT8, arrow.UINT16:
		return ipac.Integer
	case arrow.INT64, arrow.UINT32:
		return ipac.Long
	case arrow.FLOAT32:
		return ipac.Float
	case arrow.FLOAT64:
		return ipac.Double
	case arrow.BOOL:
		return ipac.Boolean
	default:
		return ipac.String
	}
}

func value(col arrow.Array, i int) interface{} {
	if col.IsNull(i) {
		return nil
	}

	switch c := col.(type) {
	case *array.Int8:
		return int64(c.Value(i))
	case *array.Int16:
		return int64(c.Value(i))
	case *array.Int32:
		return int64(c.Value(i))
	case *array.Int64:
		return c.Value(i)
	case *array.Uint8:
		return int64(c.Value(i))
	case *array.Uint16:
		return int64(c.Value(i))
	case *array.Uint32:
		return int64(c.Value(i))
	case *array.Float32:
		return float64(c.Value(i))
	case *array.Float64:
		return c.Value(i)
	case *array.Boolean:
		return c.Value(i)
	case *array.String:
		return c.Value(i)
	default:
		return col.ValueStr(i)
	}
}

// Analyze reports the row and column counts of a Parquet file. At Details
// depth the part carries the column schema.
func Analyze(path string, depth common.Depth) (*common.Report, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	r, err := open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	schema, err := r.fr.Schema()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to read parquet schema"), errors.ErrFormat)
	}

	part := common.Part{
		Index: 0,
		Kind:  common.Table,
		Desc:  "Parquet",
		Rows:  r.pf.NumRows(),
		Cols:  schema.NumFields(),
	}
	if depth == common.Details {
		cards := make([]common.Card, 0, schema.NumFields())
		for _, f := range schema.Fields() {
			comment := ""
			if f.Nullable {
				comment = "nullable"
			}
			cards = append(cards, common.Card{Key: f.Name, Value: f.Type.String(), Comment: comment})
		}
		part.Header = common.HeaderTable("Schema", common.NewHeader(cards...))
	}

	return &common.Report{
		FilePath: path,
		FileName: filepath.Base(path),
		FileSize: st.Size(),
		Format:   "parquet",
		Type:     "Table",
		Depth:    depth,
		Parts:    []common.Part{part},
	}, nil
}
