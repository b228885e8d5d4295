package ipac

import (
	"bufio"
	"io"

	"github.com/rickbassham/fitscore/errors"
)

// TableDef holds the byte layout of a table file so rows can be read
// without parsing the whole file.
type TableDef struct {
	Columns        []*Column
	Attributes     []Attribute
	LineWidth      int64
	RowStartOffset int64
	LineSepLength  int
	RowCount       int64
}

// GetMetaInfo reads the attributes and column headers of a table and
// measures the first data line. Every data line is assumed to be as long
// as the first one.
func GetMetaInfo(r io.ReadSeeker, opts ...ParseOption) (*TableDef, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "failed to seek table")
	}

	p := newParser(opts)
	t := &Table{}
	def := &TableDef{}

	var offset int64
	lineNo := 0
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "failed to read table header")
		}
		if len(raw) == 0 {
			break
		}

		lineNo++
		line := trimEOL(raw)
		start := offset
		offset += int64(len(raw))

		if len(line) > 0 && line[0] != '\\' && line[0] != '|' {
			def.RowStartOffset = start
			def.LineWidth = int64(len(raw))
			def.LineSepLength = len(raw) - len(line)
			break
		}
		switch {
		case len(line) == 0:
		case line[0] == '\\':
			parseAttribute(t, line)
		default:
			if perr := p.headerLine(line, lineNo, start); perr != nil {
				return nil, perr
			}
		}
		if err == io.EOF {
			break
		}
	}

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "failed to seek table")
	}

	if def.LineWidth == 0 {
		def.RowStartOffset = size
	} else {
		// the last line may lack its separator
		def.RowCount = (size - def.RowStartOffset + int64(def.LineSepLength)) / def.LineWidth
	}
	def.Columns = p.cols
	def.Attributes = t.Attributes()
	return def, nil
}

// ReadRows reads count rows starting at row start using the layout in def.
// A count below zero reads to the end of the file.
func ReadRows(r io.ReadSeeker, def *TableDef, start, count int, opts ...ParseOption) (*Table, error) {
	t := &Table{attrs: append([]Attribute(nil), def.Attributes...)}

	p := newParser(opts)
	for _, c := range def.Columns {
		p.cols = append(p.cols, c.clone())
	}

	if def.LineWidth == 0 || int64(start) >= def.RowCount {
		t.Columns = p.cols
		return t, nil
	}

	skip := def.RowStartOffset + int64(start)*def.LineWidth
	if _, err := r.Seek(skip, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "failed to seek table")
	}

	var rows []rawRow
	offset := skip
	lineNo := start
	br := bufio.NewReader(r)
	for count < 0 || len(rows) < count {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "failed to read table rows")
		}
		if len(raw) == 0 {
			break
		}
		lineNo++
		line := trimEOL(raw)
		if len(line) > 0 {
			row, perr := p.splitRow(line, lineNo, offset)
			if perr != nil {
				return nil, perr
			}
			rows = append(rows, row)
		}
		offset += int64(len(raw))
		if err == io.EOF {
			break
		}
	}

	if err := p.finish(t, rows); err != nil {
		return nil, err
	}
	return t, nil
}
