package format

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/xisf"
)

// DefaultSampleSize is how much of a file is read to guess its format.
const DefaultSampleSize = 32 * 1024

// readAhead is the number of leading text lines examined.
const readAhead = 10

var (
	regionPrefixes = []string{
		"circle", "box", "diamond", "cross", "x", "arrow", "annulus", "point", "polygon",
		"j2000", "galactic", "image", "physical", "global", "boxcircle",
	}
	fixedTargetPrefixes = []string{"COORD_SYSTEM: ", "EQUINOX: ", "NAME-RESOLVER: "}
	uwsJobRegex         = regexp.MustCompile(`^<(.+:)?job .*$`)
)

// Result is the outcome of DetectFile.
type Result struct {
	Format      Format      `json:"format" yaml:"format"`
	Compression Compression `json:"compression" yaml:"compression"`
	MIME        string      `json:"mime" yaml:"mime"`
}

// Detector guesses the format of a file from its name and its leading
// bytes.
type Detector struct {
	log        *zap.SugaredLogger
	sampleSize int
}

type Option func(*Detector)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

// WithSampleSize sets how many bytes are sampled. Non-positive values keep
// the default.
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

func NewDetector(opts ...Option) *Detector {
	d := &Detector{log: zap.NewNop().Sugar(), sampleSize: DefaultSampleSize}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Detect returns the format of the file at path, or Unknown when it
// cannot be read or recognised.
func (d *Detector) Detect(path string) Format {
	res, err := d.DetectFile(path)
	if err != nil {
		d.log.Debugw("format detection failed", "path", path, "error", err)
		return Unknown
	}
	return res.Format
}

// DetectFile is Detect with the compression and MIME type of the file.
// An error is returned only when the file cannot be opened.
func (d *Detector) DetectFile(path string) (Result, error) {
	if isTarName(path) {
		return Result{Format: TAR, MIME: "application/x-tar"}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	res := d.detect(path, f)
	d.log.Debugw("detected format", "path", path, "format", res.Format, "compression", res.Compression, "mime", res.MIME)
	return res, nil
}

// DetectReader guesses the format of a stream.
func (d *Detector) DetectReader(r io.Reader) Format {
	return d.detect("", r).Format
}

func (d *Detector) detect(name string, r io.Reader) Result {
	sample := readSample(r, d.sampleSize)
	m := mimetype.Detect(sample)
	res := Result{MIME: m.String()}

	if c := compressionOf(m); c != None {
		res.Compression = c
		rc, _, err := OpenReader(bytes.NewReader(sample))
		if err != nil {
			d.log.Debugw("cannot decompress sample", "name", name, "error", err)
			return res
		}
		sample = readSample(rc, d.sampleSize)
		rc.Close()

		if isTarName(trimCompressionExt(name)) {
			res.Format = TAR
			return res
		}
		m = mimetype.Detect(sample)
		res.MIME = m.String()
	}

	res.Format = classify(m, sample, len(sample) == d.sampleSize)
	return res
}

func readSample(r io.Reader, n int) []byte {
	buf := make([]byte, n)
	got, _ := io.ReadFull(r, buf)
	return buf[:got]
}

func isTarName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".tar")
}

func trimCompressionExt(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".gz", ".xz", ".zst"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

func compressionOf(m *mimetype.MIME) Compression {
	switch {
	case m.Is("application/gzip"):
		return Gzip
	case m.Is("application/x-xz"):
		return Xz
	case m.Is("application/zstd"):
		return Zstd
	}
	return None
}

func classify(m *mimetype.MIME, sample []byte, truncated bool) Format {
	switch {
	case m.Is("application/fits"):
		return FITS
	case m.Is("application/vnd.apache.parquet"):
		return Parquet
	case m.Is("application/pdf"):
		return PDF
	case m.Is("image/png"):
		return PNG
	case m.Is("application/x-tar"):
		return TAR
	case m.Is("application/json"):
		return JSON
	case bytes.HasPrefix(sample, []byte(xisf.Signature)):
		return XISF
	}

	if f := sampleContent(sample, truncated); f != Unknown {
		return f
	}

	if m.Is("text/html") {
		return HTML
	}
	return Unknown
}

func sampleLines(sample []byte, truncated bool) []string {
	text := string(sample)
	if truncated {
		// the last line may be cut short
		if i := strings.LastIndexByte(text, '\n'); i > 0 {
			text = text[:i]
		}
	}
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines
}

// sampleContent guesses a text format from the leading lines.
func sampleContent(sample []byte, truncated bool) Format {
	lines := sampleLines(sample, truncated)
	if len(lines) == 0 {
		return Unknown
	}

	first := lines[0]
	switch {
	case strings.HasPrefix(first, "{"):
		return JSON
	case strings.HasPrefix(first, "SIMPLE  = "):
		return FITS
	}

	var csvCounts, tsvCounts []int
	regions := 0
	for row, line := range lines {
		if row >= readAhead || strings.TrimSpace(line) == "" {
			break
		}

		switch {
		case strings.HasPrefix(line, "|") || strings.HasPrefix(line, "\\"):
			return IPACTable
		case hasAnyPrefix(line, fixedTargetPrefixes):
			return FixedTargets
		case strings.HasPrefix(line, "<VOTABLE") || (strings.Contains(line, "<?xml") && strings.Contains(line, "<VOTABLE ")):
			return voTableVariant(sample)
		case isUWS(line):
			return UWS
		case row == 0 && strings.Index(strings.ToLower(line), "pdf") > 0:
			return PDF
		case isRegionLine(line):
			regions++
			if regions > 5 {
				return Region
			}
		}

		csvCounts = append(csvCounts, fieldCount(line, ','))
		tsvCounts = append(tsvCounts, fieldCount(line, '\t'))
	}

	if len(csvCounts) < readAhead && regions > 1 {
		return Region
	}

	c, csvOK := consistent(csvCounts)
	t, tsvOK := consistent(tsvCounts)
	switch {
	case csvOK && tsvOK:
		if t > c {
			return TSV
		}
		return CSV
	case csvOK:
		return CSV
	case tsvOK:
		return TSV
	}
	return Unknown
}

// voTableVariant refines a VOTable by the serialization of its first
// table.
func voTableVariant(sample []byte) Format {
	s := string(sample)
	switch {
	case strings.Contains(s, "<TABLEDATA"):
		return VOTableTabledata
	case strings.Contains(s, "<BINARY2"):
		return VOTableBinary2
	case strings.Contains(s, "<BINARY"):
		return VOTableBinary
	case strings.Contains(s, "<FITS"):
		return VOTableFITS
	}
	return VOTable
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isUWS(line string) bool {
	line = strings.ToLower(strings.TrimSpace(line))
	return strings.Contains(line, "www.ivoa.net/xml/uws") && uwsJobRegex.MatchString(line)
}

func isRegionLine(line string) bool {
	line = strings.ToLower(strings.TrimSpace(line))
	return line != "" && hasAnyPrefix(line, regionPrefixes)
}

// fieldCount returns the number of fields of line split by delim, or -1
// when the line is not a valid record.
func fieldCount(line string, delim rune) int {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = delim == '\t'
	rec, err := r.Read()
	if err != nil {
		return -1
	}
	return len(rec)
}

// consistent reports whether every line has the same field count and
// that count describes more than one column.
func consistent(counts []int) (int, bool) {
	if len(counts) == 0 || counts[0] <= 1 {
		return 0, false
	}
	for _, n := range counts[1:] {
		if n != counts[0] {
			return 0, false
		}
	}
	return counts[0], true
}
