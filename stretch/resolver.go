package stretch

import (
	"math"
	"strings"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
)

// RangeResolver turns RangeValues bounds into raw DN values for one
// pixel array. It is not safe for concurrent use.
type RangeResolver struct {
	pixels []float64
	nx, ny int
	hist   *Histogram
	bscale float64
	bzero  float64
	blank  *float64

	// magnitude conversion for Palomar Transient Factory images
	ptf      bool
	exptime  float64
	imagezpt float64
	extinct  float64
	airmass  float64

	zscaleKey *zscaleParams
	z1, z2    float64
}

const ptfOrigin = "Palomar Transient Factory"

type zscaleParams struct {
	contrast       float64
	samples        int
	samplesPerLine int
}

// NewRangeResolver reads the scaling keywords from hdr. A nil hist is
// built from pixels.
func NewRangeResolver(pixels []float64, nx, ny int, hist *Histogram, hdr *common.Header) *RangeResolver {
	r := &RangeResolver{
		pixels: pixels,
		nx:     nx,
		ny:     ny,
		bscale: hdr.FloatOr("BSCALE", 1),
		bzero:  hdr.FloatOr("BZERO", 0),
		blank:  blankValue(hdr),
	}
	if r.bscale == 0 {
		r.bscale = 1
	}
	if origin, ok := hdr.String("ORIGIN"); ok && strings.HasPrefix(origin, ptfOrigin) {
		r.ptf = true
		r.exptime = hdr.FloatOr("EXPTIME", 1)
		r.imagezpt = hdr.FloatOr("IMAGEZPT", 0)
		r.extinct = hdr.FloatOr("EXTINCT", 0)
		r.airmass = hdr.FloatOr("AIRMASS", 0)
	}
	if hist == nil {
		hist = NewHistogram(pixels, r.blank)
	}
	r.hist = hist
	return r
}

func blankValue(hdr *common.Header) *float64 {
	if v, ok := hdr.Float("BLANK"); ok {
		return &v
	}
	return nil
}

func (r *RangeResolver) Histogram() *Histogram {
	return r.hist
}

// Slow returns the raw DN of the lower bound.
func (r *RangeResolver) Slow(rv RangeValues) float64 {
	return r.resolve(rv, rv.Lower, false)
}

// Shigh returns the raw DN of the upper bound.
func (r *RangeResolver) Shigh(rv RangeValues) float64 {
	return r.resolve(rv, rv.Upper, true)
}

func (r *RangeResolver) resolve(rv RangeValues, b Bound, upper bool) float64 {
	switch b.Kind {
	case BoundAbsolute:
		return (b.Value - r.bzero) / r.bscale
	case BoundPercentage:
		return r.hist.GetPct(b.Value, upper)
	case BoundSigma:
		return r.hist.GetSigma(b.Value, upper)
	case BoundZscale:
		z1, z2 := r.zscale(rv)
		if upper {
			return z2
		}
		return z1
	default:
		panic(errors.AssertionFailedf("unknown bound kind %d", int(b.Kind)))
	}
}

func (r *RangeResolver) zscale(rv RangeValues) (float64, float64) {
	p := zscaleParams{
		contrast:       rv.ZscaleContrast,
		samples:        rv.ZscaleSamples,
		samplesPerLine: rv.ZscaleSamplesPerLine,
	}
	if r.zscaleKey != nil && *r.zscaleKey == p {
		return r.z1, r.z2
	}
	r.z1, r.z2 = Zscale(r.pixels, r.nx, r.ny, r.blank, p.contrast/100, p.samples, p.samplesPerLine)
	r.zscaleKey = &p
	return r.z1, r.z2
}

// Flux converts a raw DN to a physical value. PTF images give a
// magnitude instead. NaN and BLANK give NaN.
func (r *RangeResolver) Flux(dn float64) float64 {
	if math.IsNaN(dn) || (r.blank != nil && dn == *r.blank) {
		return math.NaN()
	}
	if r.ptf {
		// 0.43429 converts ln to log10
		return -2.5*0.43429*math.Log(dn/r.exptime) + r.imagezpt + r.extinct*r.airmass
	}
	return dn*r.bscale + r.bzero
}

// IsBlank reports whether dn is NaN or equal to the BLANK keyword.
func (r *RangeResolver) IsBlank(dn float64) bool {
	return math.IsNaN(dn) || (r.blank != nil && dn == *r.blank)
}
