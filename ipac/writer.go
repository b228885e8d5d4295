package ipac

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/rickbassham/fitscore/errors"
)

// WriteOption configures Write.
type WriteOption func(*writer)

// WithRowID makes a null cell in the named column render as the row's
// ordinal index.
func WithRowID(column string) WriteOption {
	return func(w *writer) {
		w.rowID = column
	}
}

type writer struct {
	rowID string
}

// WriteFile writes t to path.
func WriteFile(path string, t *Table, opts ...WriteOption) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := Write(f, t, opts...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write serializes t: keywords, then comments, then the column header
// lines, then one line per row.
func Write(w io.Writer, t *Table, opts ...WriteOption) error {
	wr := &writer{}
	for _, o := range opts {
		o(wr)
	}

	bw := bufio.NewWriter(w)

	for _, a := range t.Keywords() {
		bw.WriteString("\\" + a.Key + " = " + a.Value + "\n")
	}
	for _, a := range t.Comments() {
		bw.WriteString("\\ " + a.Value + "\n")
	}

	formats := wr.resolveFormats(t)

	writeHeader(bw, t, formats, func(_ FormatInfo, c *Column) string { return c.Name })
	writeHeader(bw, t, formats, func(f FormatInfo, c *Column) string { return c.Type.Desc(f.Width) })
	if hasUnits(t) {
		writeHeader(bw, t, formats, func(_ FormatInfo, c *Column) string { return c.Unit })
		writeHeader(bw, t, formats, func(f FormatInfo, c *Column) string {
			if c.NullString == "" && f.Width >= len("null") {
				return "null"
			}
			return c.NullString
		})
	}

	for i, r := range t.rows {
		bw.WriteString(wr.formatRow(t, formats, r, i))
		bw.WriteString("\n")
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "failed to write table")
	}
	return nil
}

// hasUnits reports whether the unit and null header lines are written.
func hasUnits(t *Table) bool {
	for _, c := range t.Columns {
		if c.Unit != "" || c.NullString != "" {
			return true
		}
	}
	return false
}

func writeHeader(bw *bufio.Writer, t *Table, formats []FormatInfo, text func(FormatInfo, *Column) string) {
	var sb strings.Builder
	for i, c := range t.Columns {
		sb.WriteString("|")
		sb.WriteString(formats[i].FormatHeader(text(formats[i], c)))
	}
	sb.WriteString("|\n")
	bw.WriteString(sb.String())
}

func (wr *writer) formatRow(t *Table, formats []FormatInfo, r *Row, idx int) string {
	var sb strings.Builder
	for i, c := range t.Columns {
		sb.WriteString(" ")
		sb.WriteString(wr.formatCell(formats[i], c, r, i, idx))
	}
	sb.WriteString(" ")
	return sb.String()
}

func (wr *writer) formatCell(f FormatInfo, c *Column, r *Row, i, idx int) string {
	v := r.Values[i]
	if v == nil && wr.rowID != "" && c.Name == wr.rowID {
		return f.FormatData(int64(idx))
	}
	if r.Formatted != nil && i < len(r.Formatted) {
		return f.pad(r.Formatted[i], Left)
	}
	if v == nil {
		return f.pad(c.NullString, f.DataAlign)
	}
	return f.FormatData(v)
}

// resolveFormats sizes columns without a declared width from their content.
func (wr *writer) resolveFormats(t *Table) []FormatInfo {
	formats := make([]FormatInfo, len(t.Columns))
	for i, c := range t.Columns {
		f := c.Format
		if f.Width <= 0 {
			f.Width = wr.contentWidth(t, c, i)
		}
		formats[i] = f
	}
	return formats
}

func (wr *writer) contentWidth(t *Table, c *Column, i int) int {
	width := max(len(c.Name), len(c.Unit), len(c.NullString), c.Type.minWidth(), 1)

	f := c.Format
	f.Width = 0
	for idx, r := range t.rows {
		var s string
		switch {
		case r.Values[i] == nil && wr.rowID != "" && c.Name == wr.rowID:
			s = f.FormatData(int64(idx))
		case r.Formatted != nil && i < len(r.Formatted):
			s = r.Formatted[i]
		default:
			s = f.FormatData(r.Values[i])
		}
		width = max(width, len(s))
	}
	return width
}
