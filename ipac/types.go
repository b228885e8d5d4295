package ipac

import "strings"

// DataType is the semantic type of a column.
type DataType int

const (
	Unresolved DataType = iota
	Boolean
	String
	Double
	Float
	Integer
	Short
	Long
	Byte
	HREF
)

type typeDesc struct {
	long  string
	short string
}

var typeDescs = map[DataType]typeDesc{
	Boolean:    {long: "bool"},
	String:     {long: "char", short: "c"},
	Double:     {long: "double", short: "d"},
	Float:      {long: "float", short: "f"},
	Integer:    {long: "int", short: "i"},
	Short:      {long: "short"},
	Long:       {long: "long", short: "l"},
	Byte:       {long: "byte"},
	HREF:       {long: "href"},
	Unresolved: {long: "char", short: "c"},
}

// shortFormWidth is the column width below which the one-letter type
// descriptor is written.
const shortFormWidth = 6

// Desc returns the type descriptor written in the type header line for a
// column of the given width.
func (d DataType) Desc(width int) string {
	td := typeDescs[d]
	if width < shortFormWidth && td.short != "" {
		return td.short
	}
	return td.long
}

// minWidth is the narrowest column able to hold a descriptor of d.
func (d DataType) minWidth() int {
	td := typeDescs[d]
	if td.short != "" {
		return len(td.short)
	}
	return len(td.long)
}

func (d DataType) String() string {
	switch d {
	case Boolean:
		return "boolean"
	case String:
		return "string"
	case Double:
		return "double"
	case Float:
		return "float"
	case Integer:
		return "integer"
	case Short:
		return "short"
	case Long:
		return "long"
	case Byte:
		return "byte"
	case HREF:
		return "href"
	default:
		return "unresolved"
	}
}

// ParseDataType maps a type header descriptor to a DataType. Unknown or
// empty descriptors are Unresolved.
func ParseDataType(s string) DataType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "char", "string", "date", "s":
		return String
	case "d", "double", "r", "real":
		return Double
	case "f", "float":
		return Float
	case "i", "int", "integer":
		return Integer
	case "l", "long":
		return Long
	case "short":
		return Short
	case "byte":
		return Byte
	case "b", "bool", "boolean":
		return Boolean
	case "href", "location":
		return HREF
	}
	return Unresolved
}

// IsNumeric reports whether values of d compare as numbers.
func (d DataType) IsNumeric() bool {
	return d.IsInteger() || d.IsFloating()
}

func (d DataType) IsInteger() bool {
	return d == Integer || d == Short || d == Long || d == Byte
}

func (d DataType) IsFloating() bool {
	return d == Double || d == Float
}
