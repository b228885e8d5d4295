package parquet_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	pq "github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/ipac"
	"github.com/rickbassham/fitscore/parquet"
)

func writeFixture(t *testing.T) string {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "flux", Type: arrow.PrimitiveTypes.Float64},
		{Name: "band", Type: arrow.PrimitiveTypes.Int32},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "good", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)

	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{0.5, 1.25, 2}, nil)
	b.Field(2).(*array.Int32Builder).AppendValues([]int32{7, 8, 9}, nil)
	b.Field(3).(*array.StringBuilder).AppendValues([]string{"m31", "", "ngc 224"}, []bool{true, false, true})
	b.Field(4).(*array.BooleanBuilder).AppendValues([]bool{true, false, true}, nil)

	rec := b.NewRecord()
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "sources.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := pqarrow.NewFileWriter(schema, f, pq.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	return path
}

func TestReadTable(t *testing.T) {
	path := writeFixture(t)

	tbl, err := parquet.ReadTable(context.Background(), path, 0)
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())

	types := make([]ipac.DataType, len(tbl.Columns))
	for i, c := range tbl.Columns {
		types[i] = c.Type
	}
	assert.Equal(t, []ipac.DataType{ipac.Long, ipac.Double, ipac.Integer, ipac.String, ipac.Boolean}, types)
	assert.True(t, tbl.Column("name").Nullable)

	assert.Equal(t, []interface{}{int64(1), 0.5, int64(7), "m31", true}, tbl.Row(0).Values)
	assert.Nil(t, tbl.Row(1).Values[3])

	rows, _ := tbl.Attribute(parquet.KeyRows)
	assert.Equal(t, "3", rows)
	cols, _ := tbl.Attribute(parquet.KeyColumns)
	assert.Equal(t, "5", cols)
}

func TestReadTableLimit(t *testing.T) {
	tbl, err := parquet.ReadTable(context.Background(), writeFixture(t), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	rows, _ := tbl.Attribute(parquet.KeyRows)
	assert.Equal(t, "3", rows)
}

func TestAnalyze(t *testing.T) {
	path := writeFixture(t)

	r, err := parquet.Analyze(path, common.Normal)
	require.NoError(t, err)
	assert.Equal(t, "parquet", r.Format)
	assert.Equal(t, "sources.parquet", r.FileName)
	require.Len(t, r.Parts, 1)
	assert.Equal(t, common.Table, r.Parts[0].Kind)
	assert.Equal(t, int64(3), r.Parts[0].Rows)
	assert.Equal(t, 5, r.Parts[0].Cols)
	assert.Nil(t, r.Parts[0].Header)

	r, err = parquet.Analyze(path, common.Details)
	require.NoError(t, err)
	require.NotNil(t, r.Parts[0].Header)
	assert.Equal(t, 5, r.Parts[0].Header.Len())
	assert.Equal(t, "id", r.Parts[0].Header.Row(0).Values[0])
}

func TestNotParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.parquet")
	require.NoError(t, os.WriteFile(path, []byte("not a parquet file at all"), 0o644))

	_, err := parquet.ReadTable(context.Background(), path, 0)
	assert.True(t, errors.Is(err, errors.ErrFormat))

	_, err = parquet.Analyze(filepath.Join(t.TempDir(), "missing.parquet"), common.Brief)
	assert.Error(t, err)
}
