package ipac

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rickbassham/fitscore/errors"
)

// ParseError reports a line that does not fit the table layout.
type ParseError struct {
	Line   int
	Offset int64
	Text   string
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d (offset %d): %s", e.Line, e.Offset, e.Msg)
}

// Is makes every ParseError match errors.ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == errors.ErrParse
}

// ParseOption configures Parse.
type ParseOption func(*parser)

// Strict makes short rows and unconvertible cells fatal. The default is
// lenient: missing trailing columns and bad cells become null.
func Strict(strict bool) ParseOption {
	return func(p *parser) {
		p.strict = strict
	}
}

// KeepFormatted keeps the raw text of each cell so a table written back
// out is byte-identical. Enabled by default.
func KeepFormatted(keep bool) ParseOption {
	return func(p *parser) {
		p.keepFormatted = keep
	}
}

func WithLogger(l *zap.SugaredLogger) ParseOption {
	return func(p *parser) {
		if l != nil {
			p.log = l
		}
	}
}

var keywordRegex = regexp.MustCompile(`^\\([^\s=]+)\s*=(.*)$`)

type rawRow struct {
	cells   []string
	present int
	line    int
	offset  int64
}

type parser struct {
	strict        bool
	keepFormatted bool
	log           *zap.SugaredLogger

	cols        []*Column
	headerLines int
}

func newParser(opts []ParseOption) *parser {
	p := &parser{keepFormatted: true, log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ReadFile parses the table stored at path.
func ReadFile(path string, opts ...ParseOption) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	t, err := Parse(f, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return t, nil
}

// Parse reads a fixed-width IPAC table.
func Parse(r io.Reader, opts ...ParseOption) (*Table, error) {
	p := newParser(opts)
	t := &Table{}

	var rows []rawRow
	var offset int64
	lineNo := 0

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "failed to read table")
		}
		if len(line) == 0 && err == io.EOF {
			break
		}

		lineNo++
		start := offset
		offset += int64(len(line))
		line = trimEOL(line)

		switch {
		case len(line) == 0:
		case line[0] == '\\':
			parseAttribute(t, line)
		case line[0] == '|':
			if len(rows) > 0 {
				return nil, &ParseError{Line: lineNo, Offset: start, Text: line, Msg: "column header after data rows"}
			}
			if perr := p.headerLine(line, lineNo, start); perr != nil {
				return nil, perr
			}
		default:
			row, perr := p.splitRow(line, lineNo, start)
			if perr != nil {
				return nil, perr
			}
			rows = append(rows, row)
		}

		if err == io.EOF {
			break
		}
	}

	if err := p.finish(t, rows); err != nil {
		return nil, err
	}

	p.log.Debugw("parsed table", "columns", len(t.Columns), "rows", t.Len())
	return t, nil
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

func parseAttribute(t *Table, line string) {
	if m := keywordRegex.FindStringSubmatch(line); m != nil {
		t.SetAttribute(m[1], strings.TrimSpace(m[2]))
		return
	}
	text := line[1:]
	text = strings.TrimPrefix(text, " ")
	t.AddComment(text)
}

// splitHeader returns the raw segments between pipes.
func splitHeader(line string) []string {
	segs := strings.Split(line[1:], "|")
	if len(segs) > 0 && segs[len(segs)-1] == "" {
		segs = segs[:len(segs)-1]
	}
	return segs
}

func (p *parser) headerLine(line string, lineNo int, offset int64) error {
	segs := splitHeader(line)
	p.headerLines++

	if p.headerLines == 1 {
		for _, seg := range segs {
			c := NewColumn(strings.TrimSpace(seg), Unresolved)
			c.Format.Width = len(seg)
			p.cols = append(p.cols, c)
		}
		return nil
	}

	if p.headerLines > 4 {
		return &ParseError{Line: lineNo, Offset: offset, Text: line, Msg: "more than 4 column header lines"}
	}
	if len(segs) != len(p.cols) && p.strict {
		return &ParseError{Line: lineNo, Offset: offset, Text: line,
			Msg: fmt.Sprintf("header line has %d fields, expected %d", len(segs), len(p.cols))}
	}

	for i, seg := range segs {
		if i >= len(p.cols) {
			break
		}
		v := strings.TrimSpace(seg)
		c := p.cols[i]
		switch p.headerLines {
		case 2:
			w := c.Format.Width
			c.Type = ParseDataType(v)
			c.Format = DefaultFormat(c.Type)
			c.Format.Width = w
		case 3:
			c.Unit = v
		case 4:
			if v != "" {
				c.NullString = v
			}
			c.Nullable = true
		}
	}
	return nil
}

func (p *parser) splitRow(line string, lineNo int, offset int64) (rawRow, error) {
	if len(p.cols) == 0 {
		return rawRow{}, &ParseError{Line: lineNo, Offset: offset, Text: line, Msg: "data row before column header"}
	}
	if line[0] != ' ' {
		return rawRow{}, &ParseError{Line: lineNo, Offset: offset, Text: line, Msg: "data row must start with a space"}
	}

	row := rawRow{cells: make([]string, len(p.cols)), line: lineNo, offset: offset}
	pos := 0
	for i, c := range p.cols {
		if pos >= len(line) {
			if p.strict {
				return rawRow{}, &ParseError{Line: lineNo, Offset: offset + int64(pos), Text: line,
					Msg: fmt.Sprintf("row ends before column %s", c.Name)}
			}
			break
		}
		end := pos + c.Format.Width + 1
		if end > len(line) {
			end = len(line)
		}
		row.cells[i] = line[pos+1 : end]
		row.present = i + 1
		pos += c.Format.Width + 1
	}
	return row, nil
}

func (p *parser) isNull(c *Column, text string) bool {
	return text == "" || text == "null" || (c.NullString != "" && text == c.NullString)
}

func (p *parser) finish(t *Table, rows []rawRow) error {
	t.Columns = p.cols

	for i, c := range p.cols {
		sample, found := p.firstValue(c, i, rows)
		if c.Type == Unresolved {
			c.Type = inferType(strings.TrimSpace(sample), found)
		}
		if c.Format.IsDefault {
			c.Format = guessFormat(c.Type, c.Format.Width, sample)
		}
		if strings.EqualFold(c.Unit, "html") || markupRegex.MatchString(strings.TrimSpace(sample)) {
			c.Sortable = false
			c.Filterable = false
		}
	}

	for _, raw := range rows {
		r := &Row{Values: make([]interface{}, len(p.cols))}
		if p.keepFormatted {
			r.Formatted = make([]string, len(p.cols))
			copy(r.Formatted, raw.cells)
		}
		for i, c := range p.cols {
			if i >= raw.present {
				continue
			}
			text := strings.TrimSpace(raw.cells[i])
			if p.isNull(c, text) {
				continue
			}
			v, err := convert(c.Type, text)
			if err != nil {
				if p.strict {
					return &ParseError{Line: raw.line, Offset: raw.offset, Text: text,
						Msg: fmt.Sprintf("column %s: cannot read %q as %s", c.Name, text, c.Type)}
				}
				p.log.Debugw("dropping unreadable cell", "line", raw.line, "column", c.Name, "text", text)
				continue
			}
			r.Values[i] = v
		}
		t.addRow(r)
	}
	return nil
}

func (p *parser) firstValue(c *Column, i int, rows []rawRow) (string, bool) {
	for _, r := range rows {
		if i >= r.present {
			continue
		}
		if !p.isNull(c, strings.TrimSpace(r.cells[i])) {
			return r.cells[i], true
		}
	}
	return "", false
}

func inferType(v string, found bool) DataType {
	if !found {
		return String
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n > math.MaxInt32 || n < math.MinInt32 {
			return Long
		}
		return Integer
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return Double
	}
	return String
}

func convert(t DataType, text string) (interface{}, error) {
	switch {
	case t.IsInteger():
		return strconv.ParseInt(text, 10, 64)
	case t.IsFloating():
		return strconv.ParseFloat(text, 64)
	case t == Boolean:
		return strconv.ParseBool(text)
	}
	return text, nil
}
