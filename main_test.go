package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/fits"
	"github.com/rickbassham/fitscore/ipac"
)

func run(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

// writeImage writes a single float image HDU with extra cards to a file.
func writeImage(t *testing.T, path string, naxis []int, cards ...fitsio.Card) {
	t.Helper()

	n := 1
	for _, a := range naxis {
		n *= a
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i)
	}

	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	require.NoError(t, err)
	im := fitsio.NewImage(-32, naxis)
	require.NoError(t, im.Header().Append(cards...))
	require.NoError(t, im.Write(data))
	require.NoError(t, f.Write(im))
	require.NoError(t, im.Close())
	require.NoError(t, f.Close())

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

var spectralCards = []fitsio.Card{
	{Name: "OBJECT", Value: "M31"},
	{Name: "CTYPE3", Value: "WAVE"},
	{Name: "CRVAL3", Value: 500.0},
	{Name: "CDELT3", Value: 2.0},
	{Name: "CRPIX1", Value: 1.0},
	{Name: "CRPIX2", Value: 1.0},
	{Name: "CRPIX3", Value: 1.0},
	{Name: "PC3_1", Value: 0.0},
	{Name: "PC3_2", Value: 0.0},
	{Name: "PC3_3", Value: 1.0},
}

func TestScanForTokens(t *testing.T) {
	tokens := scanForTokens("{OBJECT}_{EXPTIME:%0.1f}s.fits")
	assert.Equal(t, []token{
		{header: "OBJECT"},
		{raw: true, header: "_"},
		{header: "EXPTIME", format: "%0.1f"},
		{raw: true, header: "s.fits"},
	}, tokens)
}

func TestTemplateRender(t *testing.T) {
	hdr := common.NewHeader(
		common.Card{Key: "OBJECT", Value: "M 31 "},
		common.Card{Key: "EXPOSURE", Value: 120.0},
		common.Card{Key: "DATE-OBS", Value: "2020-01-02T03:04:05"},
		common.Card{Key: "GAIN", Value: int64(139)},
	)

	tmpl := newTemplate("{OBJECT}_{EXPTIME:%03d}_{DATE-OBS:date20060102}_{GAIN:%0.1f}", nil, nil, true)
	name, err := tmpl.render(hdr)
	require.NoError(t, err)
	assert.Equal(t, "M_31_120_20200102_139.0", name)

	t.Run("missing", func(t *testing.T) {
		_, err := newTemplate("{FILTER}", nil, nil, false).render(hdr)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("defaults and overrides", func(t *testing.T) {
		defaults := defaultMap{}
		require.NoError(t, defaults.Set("FILTER=Ha;OBJECT=ignored"))
		overrides := defaultMap{}
		require.NoError(t, overrides.Set("GAIN=0"))

		name, err := newTemplate("{OBJECT}-{FILTER}-{GAIN}", defaults, overrides, false).render(hdr)
		require.NoError(t, err)
		assert.Equal(t, "M 31-Ha-0", name)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := newTemplate("{OBJECT:dateunix}", nil, nil, false).render(hdr)
		assert.True(t, errors.Is(err, errors.ErrFormat))
	})
}

func TestDefaultMapSet(t *testing.T) {
	d := defaultMap{}
	assert.Error(t, d.Set("FILTER"))
	require.NoError(t, d.Set("A=1;B=x=y"))
	assert.Equal(t, defaultMap{"A": "1", "B": "x=y"}, d)
}

func TestGetFileNumberPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.fits")
	assert.Equal(t, path, getFileNumberPath(path, "_%03d", nil))

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "a_000.fits"), getFileNumberPath(path, "_%03d", nil))

	taken := map[string]bool{filepath.Join(dir, "a_000.fits"): true}
	assert.Equal(t, filepath.Join(dir, "a_001.fits"), getFileNumberPath(path, "_%03d", taken))
}

func TestSelectImage(t *testing.T) {
	cube := &fits.ImageHDU{
		Index:  1,
		Header: common.NewHeader(),
		Naxis:  []int{2, 1, 3},
		Pixels: []float64{0, 1, 2, 3, 4, 5},
	}

	img, err := selectImage([]*fits.ImageHDU{cube}, -1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5}, img.Pixels)

	_, err = selectImage([]*fits.ImageHDU{cube}, -1, 3)
	assert.True(t, errors.Is(err, errors.ErrPixelBounds))

	_, err = selectImage([]*fits.ImageHDU{cube}, 0, 0)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSplitCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cube.fits")
	writeImage(t, src, []int{4, 3, 5}, spectralCards...)

	outDir := filepath.Join(dir, "planes")
	out := run(t, "split", "--out-dir", outDir, src)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, filepath.Join(outDir, "M31_000.fits"), lines[0])
	assert.Equal(t, filepath.Join(outDir, "M31_004.fits"), lines[4])

	images, err := readImages(lines[3])
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, []int{4, 3}, images[0].Naxis)
	assert.Equal(t, int64(3), images[0].Header.IntOr("SPOT_PL", -1))
	assert.Equal(t, 506.0, images[0].Header.FloatOr("SPOT_WL", 0))
	assert.Equal(t, 36.0, images[0].Pixels[0])
}

func TestStretchCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ramp.fits")
	writeImage(t, src, []int{4, 2})
	dst := filepath.Join(dir, "ramp.png")

	out := run(t, "stretch", "--algorithm", "linear", "--lower", "absolute:0", "--upper", "absolute:7", "--out", dst, src)
	assert.Contains(t, out, "low=0\thigh=7")

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	im, err := png.Decode(f)
	require.NoError(t, err)

	gray, ok := im.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 4, 2), gray.Bounds())
	assert.Equal(t, uint8(254), gray.GrayAt(3, 0).Y, "top row is the last FITS row")
	assert.Equal(t, uint8(0), gray.GrayAt(0, 1).Y)
}

func TestWavelengthCommand(t *testing.T) {
	src := filepath.Join(t.TempDir(), "cube.fits")
	writeImage(t, src, []int{4, 3, 5}, spectralCards...)

	out := run(t, "wavelength", "--x", "1.5", "--y", "1.5", "--plane", "2", src)
	assert.Equal(t, "502\n", out)
}

func TestAnalyzeCommand(t *testing.T) {
	src := filepath.Join(t.TempDir(), "cube.fits")
	writeImage(t, src, []int{4, 3, 5}, spectralCards...)

	out := run(t, "analyze", "--output", "json", src)

	var reports []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "fits", reports[0]["format"])
	assert.Equal(t, "cube.fits", reports[0]["fileName"])
}

func TestTableCommand(t *testing.T) {
	tbl := ipac.NewTable(
		ipac.NewColumn("name", ipac.String),
		ipac.NewColumn("mag", ipac.Double),
		ipac.NewColumn("band", ipac.String),
	)
	tbl.AddRow("M31", 3.4, "V")
	tbl.AddRow("M33", 5.7, "V")
	tbl.AddRow("M101", 7.9, "R")

	src := filepath.Join(t.TempDir(), "messier.tbl")
	require.NoError(t, ipac.WriteFile(src, tbl))

	out := run(t, "table", "--filter", "mag < 6", "--sort", "mag", "--desc", "--select", "name,mag", src)

	res, err := ipac.Parse(strings.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	require.Len(t, res.Columns, 2)
	assert.Equal(t, "M33", res.Row(0).Values[0])
	assert.Equal(t, "M31", res.Row(1).Values[0])
}

func TestConfigShow(t *testing.T) {
	out := run(t, "config", "show", "--format", "yaml")
	assert.Contains(t, out, "algorithm: linear")
	assert.Contains(t, out, "percentage:1")
}
