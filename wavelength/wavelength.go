// Package wavelength resolves the spectral coordinate of an image pixel
// from the FITS WCS keywords of its third axis.
//
// The algorithm is taken from the suffix of CTYPE3: none for linear,
// -LOG, the non-linear -F2W and -V2W, and -TAB for a lookup table stored
// in a binary table extension.
package wavelength

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
)

type Algorithm int

const (
	Linear Algorithm = iota
	Log
	F2W
	V2W
	Tab
)

func (a Algorithm) String() string {
	switch a {
	case Linear:
		return "LINEAR"
	case Log:
		return "LOG"
	case F2W:
		return "F2W"
	case V2W:
		return "V2W"
	case Tab:
		return "TAB"
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm selects the algorithm from a CTYPE3 value such as
// "WAVE", "WAVE-LOG" or "AWAV-TAB".
func ParseAlgorithm(ctype string) (Algorithm, error) {
	parts := strings.Split(strings.TrimSpace(ctype), "-")
	if len(parts) == 1 {
		return Linear, nil
	}
	switch suffix := strings.ToUpper(strings.TrimSpace(parts[len(parts)-1])); suffix {
	case "LOG":
		return Log, nil
	case "F2W":
		return F2W, nil
	case "V2W":
		return V2W, nil
	case "TAB":
		return Tab, nil
	default:
		return Linear, errors.Unsupportedf("spectral algorithm %q of CTYPE3 %q is not supported", suffix, ctype)
	}
}

// LookupTable supplies the coordinate and index arrays of a -TAB axis.
// *fits.BinaryTable implements it.
type LookupTable interface {
	Float64Column(name string) ([]float64, error)
}

// Resolver computes wavelengths for one image header. The header is
// read once by NewResolver.
type Resolver struct {
	log *zap.SugaredLogger

	ctype   string
	algo    Algorithm
	n       int
	naxis1  int64
	naxis2  int64
	plane   int64
	crval   float64
	cdelt   float64
	hasStep bool
	restwav float64

	crpix []float64
	pc    []float64

	table     LookupTable
	tableName string
	coordCol  string
	indexCol  string
}

type Option func(*Resolver)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// WithTable supplies the lookup table of a -TAB header.
func WithTable(t LookupTable) Option {
	return func(r *Resolver) {
		r.table = t
	}
}

// NewResolver validates the WCS keywords of hdr. A missing keyword is an
// ErrFormat error naming it.
func NewResolver(hdr *common.Header, opts ...Option) (*Resolver, error) {
	r := &Resolver{log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(r)
	}

	var ok bool
	r.ctype, ok = hdr.String("CTYPE3")
	if !ok {
		return nil, errors.Formatf("CTYPE3 is not defined")
	}
	algo, err := ParseAlgorithm(r.ctype)
	if err != nil {
		return nil, err
	}
	r.algo = algo

	n, ok := hdr.Int("WCSAXES")
	if !ok {
		if n, ok = hdr.Int("NAXIS"); !ok {
			return nil, errors.Formatf("dimension is not available, set either NAXIS or WCSAXES")
		}
	}
	if n < 3 {
		return nil, errors.Formatf("a spectral axis needs 3 dimensions, header has %d", n)
	}
	r.n = int(n)

	r.naxis1 = hdr.IntOr("NAXIS1", 0)
	r.naxis2 = hdr.IntOr("NAXIS2", 0)
	r.plane = hdr.IntOr("SPOT_PL", 0)

	if r.crval, ok = hdr.Float("CRVAL3"); !ok {
		return nil, errors.Formatf("CRVAL3 is not defined")
	}
	r.cdelt, r.hasStep = hdr.Float("CDELT3")
	if !r.hasStep && r.algo != Tab {
		return nil, errors.Formatf("CDELT3 is not defined")
	}
	r.restwav = hdr.FloatOr("RESTWAV", 0)

	r.crpix = make([]float64, r.n)
	r.pc = make([]float64, r.n)
	for j := 1; j <= r.n; j++ {
		crpix, ok := hdr.Float(fmt.Sprintf("CRPIX%d", j))
		if !ok {
			return nil, errors.Formatf("CRPIX%d is not defined", j)
		}
		pc, ok := hdr.Float(fmt.Sprintf("PC3_%d", j))
		if !ok {
			pc, ok = hdr.Float(fmt.Sprintf("CD3_%d", j))
		}
		if !ok {
			// lookup tables written by some tools omit zero terms
			if r.algo != Tab {
				return nil, errors.Formatf("either PC3_%d or CD3_%d has to be defined", j, j)
			}
			pc = 0
		}
		if r.algo == Log {
			crpix *= math.Ln10
			pc *= math.Ln10
		}
		r.crpix[j-1] = crpix
		r.pc[j-1] = pc
	}

	if r.algo == Tab {
		r.tableName, _ = hdr.String("PS3_0")
		r.coordCol = "COORDS"
		if s, ok := hdr.String("PS3_1"); ok && s != "" {
			r.coordCol = s
		}
		if hdr.Has("PS3_2") {
			r.indexCol = "INDEX"
			if s, ok := hdr.String("PS3_2"); ok && s != "" {
				r.indexCol = s
			}
		}
	}

	r.log.Debugw("spectral axis resolved",
		"ctype", r.ctype,
		"algorithm", r.algo,
		"axes", r.n,
	)

	return r, nil
}

func (r *Resolver) Algorithm() Algorithm {
	return r.algo
}

// TableName returns the EXTNAME of the lookup table a -TAB header
// refers to.
func (r *Resolver) TableName() (string, bool) {
	return r.tableName, r.algo == Tab && r.tableName != ""
}

// PixelCoords converts an image point to the pixel coordinates used by
// the wavelength solution. A negative plane selects SPOT_PL from the
// header.
func (r *Resolver) PixelCoords(x, y float64, plane int) ([]float64, error) {
	p0 := math.Round(x - 0.5)
	p1 := math.Round(y - 0.5)
	p2 := float64(plane)
	if plane < 0 {
		p2 = float64(r.plane)
	}

	if p0 < 0 || p0 >= float64(r.naxis1) || p1 < 0 || p1 >= float64(r.naxis2) {
		return nil, errors.PixelBoundsf("location %g %g %g not on the image", p0, p1, p2)
	}

	p := make([]float64, r.n)
	p[0], p[1], p[2] = p0, p1, p2
	return p, nil
}

// Wavelength returns the wavelength at an image point. AWAV axes are
// converted with the refractive index of air.
func (r *Resolver) Wavelength(x, y float64, plane int) (float64, error) {
	p, err := r.PixelCoords(x, y, plane)
	if err != nil {
		return 0, err
	}
	lambda, err := r.Calculate(p)
	if err != nil {
		return 0, err
	}

	switch ctype := strings.ToUpper(r.ctype); {
	case strings.HasPrefix(ctype, "WAVE"):
		return lambda, nil
	case strings.HasPrefix(ctype, "AWAV"):
		return AirToVacuum(lambda), nil
	default:
		return 0, errors.Unsupportedf("spectral type %s is not supported", r.ctype)
	}
}

// AirToVacuum divides lambda by the refractive index of air.
func AirToVacuum(lambda float64) float64 {
	l2 := lambda * lambda
	n := 1 + 1e-6*(287.6155+1.62887/l2+0.01360/(l2*l2))
	return lambda / n
}

// Calculate evaluates the wavelength solution at pixel coordinates p.
func (r *Resolver) Calculate(p []float64) (float64, error) {
	if len(p) < r.n {
		return 0, errors.Formatf("need %d pixel coordinates, got %d", r.n, len(p))
	}

	switch r.algo {
	case Linear:
		return r.crval + r.omega(p), nil
	case Log:
		return r.crval * math.Exp(r.omega(p)/r.crval), nil
	case F2W:
		return r.crval * r.crval / (r.crval - r.omega(p)), nil
	case V2W:
		l0 := r.restwav
		lr := r.crval
		b := (math.Pow(lr, 4) - math.Pow(l0, 4) + 4*l0*l0*lr*r.omega(p)) /
			math.Pow(l0*l0+lr*lr, 2)
		return l0 - math.Sqrt((1+b)/(1-b)), nil
	case Tab:
		return r.lookup(p)
	default:
		panic(errors.AssertionFailedf("unknown spectral algorithm %d", int(r.algo)))
	}
}

// omega is CDELT3 * sum_j m3_j * (p_j - r_j).
func (r *Resolver) omega(p []float64) float64 {
	return r.cdelt * r.intermediate(p)
}

func (r *Resolver) intermediate(p []float64) float64 {
	var sum float64
	for j := 0; j < r.n; j++ {
		sum += r.pc[j] * (p[j] - r.crpix[j])
	}
	return sum
}

// PixelFromWavelength solves the LINEAR or LOG solution for the third
// pixel coordinate, holding the others at p.
func (r *Resolver) PixelFromWavelength(lambda float64, p []float64) (float64, error) {
	if len(p) < r.n {
		return 0, errors.Formatf("need %d pixel coordinates, got %d", r.n, len(p))
	}

	var omega float64
	switch r.algo {
	case Linear:
		omega = lambda - r.crval
	case Log:
		if lambda <= 0 || r.crval <= 0 {
			return 0, errors.Formatf("log wavelength %g outside the solution domain", lambda)
		}
		omega = r.crval * math.Log(lambda/r.crval)
	default:
		return 0, errors.Unsupportedf("inverting the %s algorithm is not supported", r.algo)
	}

	if r.cdelt == 0 || r.pc[2] == 0 {
		return 0, errors.Formatf("CDELT3 and PC3_3 must be non-zero to invert the solution")
	}

	rest := 0.0
	for j := 0; j < r.n; j++ {
		if j != 2 {
			rest += r.pc[j] * (p[j] - r.crpix[j])
		}
	}
	return r.crpix[2] + (omega/r.cdelt-rest)/r.pc[2], nil
}
