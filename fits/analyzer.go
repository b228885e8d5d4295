package fits

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/astrogo/fitsio"
	"go.uber.org/zap"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/format"
)

// Analyzer describes the header-data units of FITS files.
type Analyzer struct {
	log *zap.SugaredLogger
}

type Option func(*Analyzer)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}

func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze reports on the file at path. Compressed files are read
// transparently.
func (a *Analyzer) Analyze(path string, depth common.Depth) (*common.Report, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	rc, _, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, err := a.AnalyzeReader(rc, path, depth)
	if err != nil {
		return nil, err
	}
	r.FileSize = st.Size()
	return r, nil
}

// AnalyzeReader reports on a FITS stream. name is used in the report and
// in errors.
func (a *Analyzer) AnalyzeReader(rdr io.Reader, name string, depth common.Depth) (*common.Report, error) {
	fit, err := open(rdr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	defer fit.Close()

	if len(fit.HDUs()) == 0 {
		return nil, errors.Formatf("failed to read %s: no header-data unit found", name)
	}

	report := &common.Report{
		FilePath: name,
		FileName: filepath.Base(name),
		Format:   format.FITS.String(),
		Depth:    depth,
	}

	for i, hdu := range fit.HDUs() {
		part := describe(i, hdu)
		if depth == common.Details {
			part.Header = common.HeaderTable("HDU "+strconv.Itoa(i), convertHeader(hdu.Header()))
		}
		a.log.Debugw("analyzed HDU", "file", name, "index", i, "kind", part.Kind, "desc", part.Desc)
		report.Parts = append(report.Parts, part)

		if depth == common.Brief {
			break
		}
	}

	report.Type = reportType(report.Parts)
	return report, nil
}

func reportType(parts []common.Part) string {
	for _, p := range parts {
		switch p.Kind {
		case common.Table:
			return "Table"
		case common.Image:
			return "Image"
		}
	}
	return "HeaderOnly"
}

// describe classifies one HDU.
func describe(index int, hdu fitsio.HDU) common.Part {
	hdr := convertHeader(hdu.Header())
	part := common.Part{Index: index, Desc: partName(index, hdr)}

	switch hdu.Type() {
	case fitsio.IMAGE_HDU:
		part.Naxis = hdu.Header().Axes()
		part.Kind = imageKind(part.Naxis)
	case fitsio.BINARY_TBL, fitsio.ASCII_TBL:
		if zimage, _ := hdr.Bool("ZIMAGE"); zimage {
			part.Naxis = compressedAxes(hdr)
			part.Kind = imageKind(part.Naxis)
			break
		}
		if index == 0 {
			part.Kind = common.HeaderOnly
			break
		}
		part.Kind = common.Table
		part.Rows = hdr.IntOr("NAXIS2", 0)
		part.Cols = int(hdr.IntOr("TFIELDS", 0))
		if t, ok := hdu.(*fitsio.Table); ok {
			part.Rows = t.NumRows()
			part.Cols = t.NumCols()
		}
		part.Desc += fmt.Sprintf(" (%d cols x %d rows)", part.Cols, part.Rows)
	default:
		part.Kind = common.Unknown
	}
	return part
}

// imageKind is Image for displayable data. A single axis cannot be shown
// as an image and, like an empty data unit, is HeaderOnly.
func imageKind(naxis []int) common.HDUKind {
	if len(naxis) < 2 {
		return common.HeaderOnly
	}
	for _, n := range naxis {
		if n == 0 {
			return common.HeaderOnly
		}
	}
	return common.Image
}

func compressedAxes(hdr *common.Header) []int {
	n := int(hdr.IntOr("ZNAXIS", 0))
	axes := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		axes = append(axes, int(hdr.IntOr("ZNAXIS"+strconv.Itoa(i), 0)))
	}
	return axes
}

func partName(index int, hdr *common.Header) string {
	if index == 0 {
		return "Primary"
	}
	for _, key := range []string{"EXTNAME", "HDUNAME", "NAME"} {
		if s, ok := hdr.String(key); ok && s != "" {
			return s
		}
	}
	if zimage, _ := hdr.Bool("ZIMAGE"); zimage {
		return "CompressedImage"
	}
	return "NoName"
}
