package format

// Format is the content type of an input file.
type Format int

const (
	Unknown Format = iota
	IPACTable
	CSV
	TSV
	FITS
	JSON
	PDF
	TAR
	HTML
	PNG
	Parquet
	XISF
	VOTable
	VOTableTabledata
	VOTableBinary
	VOTableBinary2
	VOTableFITS
	Region
	UWS
	FixedTargets
)

type formatInfo struct {
	tag string
	ext string
}

var formats = map[Format]formatInfo{
	Unknown:          {"unknown", ""},
	IPACTable:        {"ipac", ".tbl"},
	CSV:              {"csv", ".csv"},
	TSV:              {"tsv", ".tsv"},
	FITS:             {"fits", ".fits"},
	JSON:             {"json", ".json"},
	PDF:              {"pdf", ".pdf"},
	TAR:              {"tar", ".tar"},
	HTML:             {"html", ".html"},
	PNG:              {"png", ".png"},
	Parquet:          {"parquet", ".parquet"},
	XISF:             {"xisf", ".xisf"},
	VOTable:          {"votable", ".xml"},
	VOTableTabledata: {"votable-tabledata", ".vot"},
	VOTableBinary:    {"votable-binary-inline", ".vot"},
	VOTableBinary2:   {"votable-binary2-inline", ".vot"},
	VOTableFITS:      {"votable-fits-inline", ".vot"},
	Region:           {"reg", ".reg"},
	UWS:              {"uws", ".xml"},
	FixedTargets:     {"fixed-targets", ".tbl"},
}

func (f Format) String() string {
	if fi, ok := formats[f]; ok {
		return fi.tag
	}
	return formats[Unknown].tag
}

// Ext returns the conventional file name extension, including the dot.
func (f Format) Ext() string {
	return formats[f].ext
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// IsVOTable reports whether f is any VOTable serialization.
func (f Format) IsVOTable() bool {
	return f >= VOTable && f <= VOTableFITS
}

// Compression is the stream compression wrapped around a file.
type Compression int

const (
	None Compression = iota
	Gzip
	Xz
	Zstd
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Xz:
		return "xz"
	case Zstd:
		return "zstd"
	}
	return "none"
}

func (c Compression) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
