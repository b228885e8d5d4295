package common

import (
	"strings"

	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/ipac"
)

// HDUKind classifies one part of a file.
type HDUKind int

const (
	Unknown HDUKind = iota
	Image
	Table
	HeaderOnly
)

func (k HDUKind) String() string {
	switch k {
	case Image:
		return "Image"
	case Table:
		return "Table"
	case HeaderOnly:
		return "HeaderOnly"
	default:
		return "Unknown"
	}
}

// MarshalText lets reports encode the kind by name.
func (k HDUKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Depth controls how much an analysis captures.
type Depth int

const (
	// Brief stops after the first part.
	Brief Depth = iota
	// Normal lists every part.
	Normal
	// Details also captures every header card of every part.
	Details
)

func (d Depth) String() string {
	switch d {
	case Brief:
		return "brief"
	case Details:
		return "details"
	default:
		return "normal"
	}
}

func (d Depth) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDepth accepts brief, normal or details in any case.
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "brief":
		return Brief, nil
	case "", "normal":
		return Normal, nil
	case "details":
		return Details, nil
	}
	return Normal, errors.Unsupportedf("unknown analysis depth %q", s)
}

// Part describes one header-data unit or table of an analysed file.
type Part struct {
	Index      int         `json:"index" yaml:"index"`
	Kind       HDUKind     `json:"type" yaml:"type"`
	Desc       string      `json:"desc" yaml:"desc"`
	Rows       int64       `json:"rows,omitempty" yaml:"rows,omitempty"`
	Cols       int         `json:"cols,omitempty" yaml:"cols,omitempty"`
	Naxis      []int       `json:"naxis,omitempty" yaml:"naxis,omitempty"`
	Plane      *int        `json:"plane,omitempty" yaml:"plane,omitempty"`
	Wavelength *float64    `json:"wavelength,omitempty" yaml:"wavelength,omitempty"`
	Header     *ipac.Table `json:"-" yaml:"-"`
}

// Report lists the parts of one file in file order.
type Report struct {
	FilePath string `json:"filePath" yaml:"filePath"`
	FileName string `json:"fileName" yaml:"fileName"`
	FileSize int64  `json:"fileSize" yaml:"fileSize"`
	Format   string `json:"format" yaml:"format"`
	Type     string `json:"type" yaml:"type"`
	Depth    Depth  `json:"depth" yaml:"depth"`
	Parts    []Part `json:"parts" yaml:"parts"`
}

// HeaderTable converts a header into a key/value/comment table.
func HeaderTable(title string, h *Header) *ipac.Table {
	t := ipac.NewTable(
		ipac.NewColumn("key", ipac.String),
		ipac.NewColumn("value", ipac.String),
		ipac.NewColumn("comment", ipac.String),
	)
	t.SetAttribute("title", title)
	for _, c := range h.Cards() {
		t.AddRow(c.Key, FormatValue(c.Value), c.Comment)
	}
	return t
}
