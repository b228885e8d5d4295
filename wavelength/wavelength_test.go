package wavelength_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/fits"
	"github.com/rickbassham/fitscore/wavelength"
)

func header(ctype string, extra ...common.Card) *common.Header {
	cards := []common.Card{
		{Key: "NAXIS", Value: int64(3)},
		{Key: "NAXIS1", Value: int64(10)},
		{Key: "NAXIS2", Value: int64(10)},
		{Key: "NAXIS3", Value: int64(8)},
		{Key: "CTYPE3", Value: ctype},
		{Key: "CRVAL3", Value: 500.0},
		{Key: "CDELT3", Value: 2.0},
		{Key: "CRPIX1", Value: 1.0},
		{Key: "CRPIX2", Value: 1.0},
		{Key: "CRPIX3", Value: 1.0},
		{Key: "PC3_1", Value: 0.0},
		{Key: "PC3_2", Value: 0.0},
		{Key: "PC3_3", Value: 1.0},
	}
	b := common.NewBuilder(common.NewHeader(cards...))
	for _, c := range extra {
		b.Set(c.Key, c.Value, c.Comment)
	}
	return b.Build()
}

func without(h *common.Header, keys ...string) *common.Header {
	return common.NewBuilder(h).Delete(keys...).Build()
}

func newResolver(t *testing.T, hdr *common.Header, opts ...wavelength.Option) *wavelength.Resolver {
	t.Helper()
	opts = append(opts, wavelength.WithLogger(zaptest.NewLogger(t).Sugar()))
	r, err := wavelength.NewResolver(hdr, opts...)
	require.NoError(t, err)
	return r
}

func TestParseAlgorithm(t *testing.T) {
	tests := map[string]wavelength.Algorithm{
		"WAVE":     wavelength.Linear,
		"AWAV":     wavelength.Linear,
		"WAVE-LOG": wavelength.Log,
		"WAVE-F2W": wavelength.F2W,
		"WAVE-V2W": wavelength.V2W,
		"AWAV-TAB": wavelength.Tab,
		"wave-log": wavelength.Log,
	}
	for in, want := range tests {
		got, err := wavelength.ParseAlgorithm(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := wavelength.ParseAlgorithm("WAVE-GRI")
	assert.True(t, errors.Is(err, errors.ErrUnsupported))
}

func TestLinear(t *testing.T) {
	r := newResolver(t, header("WAVE"))
	assert.Equal(t, wavelength.Linear, r.Algorithm())

	lambda, err := r.Calculate([]float64{0, 0, 5})
	require.NoError(t, err)
	assert.Equal(t, 508.0, lambda)

	lambda, err = r.Wavelength(0.5, 0.5, 5)
	require.NoError(t, err)
	assert.Equal(t, 508.0, lambda)
}

func TestPlaneFromHeader(t *testing.T) {
	r := newResolver(t, header("WAVE", common.Card{Key: "SPOT_PL", Value: int64(5)}))

	p, err := r.PixelCoords(3.2, 4.7, -1)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 5}, p)

	lambda, err := r.Wavelength(3.2, 4.7, -1)
	require.NoError(t, err)
	assert.Equal(t, 508.0, lambda)
}

func TestNonLinear(t *testing.T) {
	p := []float64{0, 0, 5}

	lambda, err := newResolver(t, header("WAVE-F2W")).Calculate(p)
	require.NoError(t, err)
	assert.InDelta(t, 500.0*500/492, lambda, 1e-9)

	hdr := header("WAVE-V2W", common.Card{Key: "RESTWAV", Value: 656.3})
	lambda, err = newResolver(t, hdr).Calculate(p)
	require.NoError(t, err)
	l0, lr, omega := 656.3, 500.0, 8.0
	b := (math.Pow(lr, 4) - math.Pow(l0, 4) + 4*l0*l0*lr*omega) / math.Pow(l0*l0+lr*lr, 2)
	assert.InDelta(t, l0-math.Sqrt((1+b)/(1-b)), lambda, 1e-9)

	lambda, err = newResolver(t, header("WAVE-LOG")).Calculate(p)
	require.NoError(t, err)
	omega = 2 * math.Ln10 * (5 - math.Ln10)
	assert.InDelta(t, 500*math.Exp(omega/500), lambda, 1e-9)
}

func TestAirWavelength(t *testing.T) {
	r := newResolver(t, header("AWAV"))

	lambda, err := r.Wavelength(0.5, 0.5, 5)
	require.NoError(t, err)
	assert.InDelta(t, wavelength.AirToVacuum(508), lambda, 1e-12)
	assert.Less(t, lambda, 508.0)

	r = newResolver(t, header("FREQ"))
	_, err = r.Wavelength(0.5, 0.5, 5)
	assert.True(t, errors.Is(err, errors.ErrUnsupported))
}

func TestRoundTrip(t *testing.T) {
	extra := []common.Card{
		{Key: "PC3_1", Value: 0.25},
		{Key: "CRPIX3", Value: 3.5},
	}

	for _, ctype := range []string{"WAVE", "WAVE-LOG"} {
		t.Run(ctype, func(t *testing.T) {
			r := newResolver(t, header(ctype, extra...))

			for _, plane := range []float64{0, 1, 2.5, 7} {
				p := []float64{4, 6, plane}
				lambda, err := r.Calculate(p)
				require.NoError(t, err)

				got, err := r.PixelFromWavelength(lambda, p)
				require.NoError(t, err)
				assert.InDelta(t, plane, got, 1e-9)
			}
		})
	}

	_, err := newResolver(t, header("WAVE-F2W")).PixelFromWavelength(508, []float64{0, 0, 0})
	assert.True(t, errors.Is(err, errors.ErrUnsupported))
}

func TestMissingKeywords(t *testing.T) {
	tests := []struct {
		name string
		hdr  *common.Header
		msg  string
	}{
		{"CRPIX", without(header("WAVE"), "CRPIX2"), "CRPIX2 is not defined"},
		{"PC", without(header("WAVE"), "PC3_1"), "either PC3_1 or CD3_1 has to be defined"},
		{"CTYPE3", without(header("WAVE"), "CTYPE3"), "CTYPE3 is not defined"},
		{"CRVAL3", without(header("WAVE"), "CRVAL3"), "CRVAL3 is not defined"},
		{"CDELT3", without(header("WAVE"), "CDELT3"), "CDELT3 is not defined"},
		{"CDELT3 log", without(header("WAVE-LOG"), "CDELT3"), "CDELT3 is not defined"},
		{"CDELT3 f2w", without(header("WAVE-F2W"), "CDELT3"), "CDELT3 is not defined"},
		{"dimension", without(header("WAVE"), "NAXIS"), "NAXIS or WCSAXES"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := wavelength.NewResolver(tc.hdr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrFormat))
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestCDFallback(t *testing.T) {
	hdr := without(header("WAVE"), "PC3_1", "PC3_2", "PC3_3")
	hdr = common.NewBuilder(hdr).
		Set("CD3_1", 0.0, "").
		Set("CD3_2", 0.0, "").
		Set("CD3_3", 1.0, "").
		Build()

	lambda, err := newResolver(t, hdr).Calculate([]float64{0, 0, 5})
	require.NoError(t, err)
	assert.Equal(t, 508.0, lambda)
}

func TestWCSAXES(t *testing.T) {
	hdr := header("WAVE",
		common.Card{Key: "WCSAXES", Value: int64(4)},
		common.Card{Key: "CRPIX4", Value: 1.0},
		common.Card{Key: "PC3_4", Value: 0.0},
	)
	r := newResolver(t, hdr)

	p, err := r.PixelCoords(1, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 5, 0}, p)

	_, err = r.Calculate([]float64{0, 0, 5})
	assert.True(t, errors.Is(err, errors.ErrFormat))
}

func TestPixelBounds(t *testing.T) {
	r := newResolver(t, header("WAVE"))

	for _, pt := range [][2]float64{{-1, 1}, {1, -1}, {10.6, 1}, {1, 10.6}} {
		_, err := r.Wavelength(pt[0], pt[1], 0)
		assert.True(t, errors.Is(err, errors.ErrPixelBounds), "%v", pt)
		assert.False(t, errors.Is(err, errors.ErrFormat))
	}

	_, err := r.Wavelength(9.9, 0.5, 0)
	assert.NoError(t, err)
}

type columns map[string][]float64

func (c columns) Float64Column(name string) ([]float64, error) {
	v, ok := c[name]
	if !ok {
		return nil, errors.NotFoundf("column %s not found", name)
	}
	return v, nil
}

func tabHeader(cdelt float64, withIndex bool) *common.Header {
	cards := []common.Card{
		{Key: "NAXIS", Value: int64(3)},
		{Key: "NAXIS1", Value: int64(4)},
		{Key: "NAXIS2", Value: int64(3)},
		{Key: "CTYPE3", Value: "WAVE-TAB"},
		{Key: "CRVAL3", Value: 1.0},
		{Key: "CDELT3", Value: cdelt},
		{Key: "CRPIX1", Value: 1.0},
		{Key: "CRPIX2", Value: 1.0},
		{Key: "CRPIX3", Value: 1.0},
		{Key: "PC3_3", Value: 1.0},
		{Key: "PS3_0", Value: "WCS-TAB"},
		{Key: "PS3_1", Value: "COORDS"},
	}
	if withIndex {
		cards = append(cards, common.Card{Key: "PS3_2", Value: "INDEX"})
	}
	return common.NewHeader(cards...)
}

var coords = []float64{400, 410, 420, 430, 440}

func TestTabAscending(t *testing.T) {
	tbl := columns{"COORDS": coords, "INDEX": {1, 2, 3, 4, 5}}
	r := newResolver(t, tabHeader(1, true), wavelength.WithTable(tbl))

	name, ok := r.TableName()
	assert.True(t, ok)
	assert.Equal(t, "WCS-TAB", name)

	tests := []struct {
		plane int
		want  float64
	}{
		{1, 400},
		{2, 410},
		{3, 420},
		{5, 440},
	}
	for _, tc := range tests {
		lambda, err := r.Wavelength(0.5, 0.5, tc.plane)
		require.NoError(t, err)
		assert.Equal(t, tc.want, lambda, "plane %d", tc.plane)
	}

	r = newResolver(t, tabHeader(0.5, true), wavelength.WithTable(tbl))
	lambda, err := r.Wavelength(0.5, 0.5, 2)
	require.NoError(t, err)
	assert.Equal(t, 405.0, lambda)

	_, err = r.Wavelength(0.5, 0.5, 20)
	assert.True(t, errors.Is(err, errors.ErrPixelBounds))
}

func TestTabDescending(t *testing.T) {
	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	require.NoError(t, err)

	im := fitsio.NewImage(8, []int{1, 1})
	require.NoError(t, im.Write([]uint8{0}))
	require.NoError(t, f.Write(im))
	require.NoError(t, im.Close())

	tbl, err := fitsio.NewTable("WCS-TAB", []fitsio.Column{
		{Name: "COORDS", Format: "5D"},
		{Name: "INDEX", Format: "5D"},
	}, fitsio.BINARY_TBL)
	require.NoError(t, err)
	c := [5]float64{400, 410, 420, 430, 440}
	idx := [5]float64{5, 4, 3, 2, 1}
	require.NoError(t, tbl.Write(&c, &idx))
	require.NoError(t, f.Write(tbl))
	require.NoError(t, tbl.Close())
	require.NoError(t, f.Close())

	bt, err := fits.ReadBinaryTable(bytes.NewReader(buf.Bytes()), "WCS-TAB")
	require.NoError(t, err)

	r := newResolver(t, tabHeader(1, true), wavelength.WithTable(bt))
	lambda, err := r.Wavelength(0.5, 0.5, 2)
	require.NoError(t, err)
	assert.Equal(t, 430.0, lambda)

	lambda, err = r.Wavelength(0.5, 0.5, 5)
	require.NoError(t, err)
	assert.Equal(t, 400.0, lambda)
}

func TestTabNotMonotonic(t *testing.T) {
	tbl := columns{"COORDS": coords, "INDEX": {1, 3, 2, 4, 5}}
	r := newResolver(t, tabHeader(1, true), wavelength.WithTable(tbl))

	_, err := r.Wavelength(0.5, 0.5, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFormat))
	assert.Contains(t, err.Error(), "either ascending or descending")
}

func TestTabWithoutIndex(t *testing.T) {
	r := newResolver(t, tabHeader(1, false), wavelength.WithTable(columns{"COORDS": coords}))

	lambda, err := r.Wavelength(0.5, 0.5, 2)
	require.NoError(t, err)
	assert.Equal(t, 420.0, lambda)

	_, err = r.Wavelength(0.5, 0.5, 6)
	assert.True(t, errors.Is(err, errors.ErrPixelBounds))
}

func TestTabMissingTable(t *testing.T) {
	r := newResolver(t, tabHeader(1, true))

	_, err := r.Wavelength(0.5, 0.5, 2)
	assert.True(t, errors.Is(err, errors.ErrFormat))

	r = newResolver(t, tabHeader(1, true), wavelength.WithTable(columns{"COORDS": coords}))
	_, err = r.Wavelength(0.5, 0.5, 2)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
