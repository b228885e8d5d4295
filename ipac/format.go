package ipac

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Align is the padding side of a fixed-width cell.
type Align int

const (
	Left Align = iota
	Right
)

// FormatInfo describes how a column's cells are rendered.
type FormatInfo struct {
	Width        int
	HeaderAlign  Align
	DataAlign    Align
	HeaderFormat string
	DataFormat   string
	// IsDefault is set when the format was inferred rather than declared.
	IsDefault bool
}

// DefaultFormat returns the inferred format for a type. Width 0 means the
// writer sizes the column from its content.
func DefaultFormat(t DataType) FormatInfo {
	f := FormatInfo{
		HeaderAlign:  Left,
		DataAlign:    Left,
		HeaderFormat: "%s",
		DataFormat:   "%s",
		IsDefault:    true,
	}
	switch {
	case t.IsInteger():
		f.DataFormat = "%d"
		f.DataAlign = Right
	case t.IsFloating():
		f.DataAlign = Right
	}
	return f
}

// FormatData renders v with DataFormat, padded and truncated to Width.
// A nil value renders as an empty string before padding.
func (f FormatInfo) FormatData(v interface{}) string {
	return f.pad(f.render(v), f.DataAlign)
}

// FormatHeader renders a header cell padded and truncated to Width.
func (f FormatInfo) FormatHeader(s string) string {
	format := f.HeaderFormat
	if format == "" {
		format = "%s"
	}
	return f.pad(fmt.Sprintf(format, s), f.HeaderAlign)
}

func (f FormatInfo) pad(s string, a Align) string {
	if f.Width <= 0 {
		return s
	}
	if len(s) > f.Width {
		return s[:f.Width]
	}
	if a == Right {
		return fmt.Sprintf("%*s", f.Width, s)
	}
	return fmt.Sprintf("%-*s", f.Width, s)
}

func (f FormatInfo) render(v interface{}) string {
	if v == nil {
		return ""
	}
	format := f.DataFormat
	if format == "" || format == "%s" {
		return formatAny(v)
	}

	verb := format[len(format)-1]
	switch verb {
	case 'd':
		switch n := v.(type) {
		case int64:
			return fmt.Sprintf(format, n)
		case float64:
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return formatAny(n)
			}
			return fmt.Sprintf(format, int64(n))
		}
	case 'f', 'e', 'E', 'g', 'G':
		switch n := v.(type) {
		case float64:
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return formatAny(n)
			}
			return fmt.Sprintf(format, n)
		case int64:
			return fmt.Sprintf(format, float64(n))
		}
	}
	return formatAny(v)
}

func formatAny(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(v)
}

var (
	scientificRegex = regexp.MustCompile(`^[+-]?\d*(\.(\d*))?([eE])[+-]?\d+$`)
	decimalRegex    = regexp.MustCompile(`^[+-]?\d*\.(\d*)$`)
	integerRegex    = regexp.MustCompile(`^[+-]?\d+$`)
	markupRegex     = regexp.MustCompile(`^<[^>]+>.*`)
)

// guessFormat infers a format from a sampled raw cell of a column of type t.
func guessFormat(t DataType, width int, raw string) FormatInfo {
	f := DefaultFormat(t)
	f.Width = width

	if strings.HasPrefix(raw, " ") {
		f.DataAlign = Right
	} else {
		f.DataAlign = Left
	}

	v := strings.TrimSpace(raw)
	if !t.IsNumeric() {
		f.DataFormat = "%s"
		return f
	}

	if m := scientificRegex.FindStringSubmatch(v); m != nil {
		f.DataFormat = fmt.Sprintf("%%.%d%s", len(m[2]), m[3])
	} else if m := decimalRegex.FindStringSubmatch(v); m != nil {
		f.DataFormat = fmt.Sprintf("%%.%df", len(m[1]))
	} else if integerRegex.MatchString(v) {
		if t.IsFloating() {
			f.DataFormat = "%.0f"
		} else {
			f.DataFormat = "%d"
		}
	} else {
		f.DataFormat = "%s"
	}
	return f
}
