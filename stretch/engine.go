package stretch

import (
	"math"

	"go.uber.org/zap"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
)

// MaxDisplay is the largest byte a stretched pixel takes. 255 is left
// for the blank sentinel.
const MaxDisplay = 254

// Engine maps pixel arrays to display bytes. It holds no per-image state
// and may be shared between goroutines.
type Engine struct {
	log *zap.SugaredLogger
}

type Option func(*Engine)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Stretch maps an nx by ny image to display bytes. Blank pixels become
// blank and every other pixel lands in [0, MaxDisplay].
func (e *Engine) Stretch(pixels []float64, hdr *common.Header, nx, ny int, rv RangeValues, blank byte) ([]byte, error) {
	if nx <= 0 || ny <= 0 || len(pixels) != nx*ny {
		return nil, errors.Formatf("pixel array of length %d does not match %dx%d", len(pixels), nx, ny)
	}
	if err := rv.Validate(); err != nil {
		return nil, err
	}

	res := NewRangeResolver(pixels, nx, ny, nil, hdr)
	return e.StretchWith(pixels, res, rv, blank), nil
}

// StretchWith stretches pixels using a resolver the caller already
// built, so its histogram and zscale result can be reused.
func (e *Engine) StretchWith(pixels []float64, res *RangeResolver, rv RangeValues, blank byte) []byte {
	slow, shigh := res.Slow(rv), res.Shigh(rv)
	e.log.Debugw("resolved stretch bounds",
		"algorithm", rv.Algorithm,
		"lower", rv.Lower,
		"upper", rv.Upper,
		"slow", slow,
		"shigh", shigh,
	)

	out := make([]byte, len(pixels))
	e.apply(pixels, out, res, rv, slow, shigh, blank)
	return out
}

// HistogramColors returns the display byte of every histogram bin under
// rv. It backs the colour bar drawn under a histogram plot.
func (e *Engine) HistogramColors(res *RangeResolver, rv RangeValues) []byte {
	values := res.Histogram().BinValues()
	out := make([]byte, len(values))
	e.apply(values, out, res, rv, res.Slow(rv), res.Shigh(rv), 0)
	return out
}

func (e *Engine) apply(pixels []float64, out []byte, res *RangeResolver, rv RangeValues, slow, shigh float64, blank byte) {
	if rv.Algorithm == Asinh {
		e.applyAsinh(pixels, out, res, rv, slow, shigh, blank)
		return
	}

	sdiff := shigh - slow
	if slow == shigh {
		sdiff = 1
	}

	var dtbl [256]float64
	switch rv.Algorithm {
	case Linear, PowerLawGamma:
	case Log, LogLog:
		dtbl = logTable(sdiff, slow, rv.Algorithm == LogLog)
	case Equal:
		dtbl = res.Histogram().EqualizationTable()
	case Squared, Sqrt:
		dtbl = squaredTable(sdiff, slow, rv.Algorithm == Squared)
	default:
		panic(errors.AssertionFailedf("unknown stretch algorithm %d", int(rv.Algorithm)))
	}

	delta := 64
	if sdiff < 0 {
		delta = -64
	}

	for i, v := range pixels {
		if res.IsBlank(v) {
			out[i] = blank
			continue
		}

		var b byte
		switch rv.Algorithm {
		case Linear:
			b = clampByte((v - slow) * MaxDisplay / sdiff)
		case PowerLawGamma:
			b = clampByte(powerLawGamma(v, rv.Gamma, slow, shigh))
		default:
			b = clampByte(float64(tableSearch(v, &dtbl, delta)))
		}
		out[i] = biasContrast(b, rv.Bias, rv.Contrast)
	}
}

// clampByte truncates v into [0, MaxDisplay]. NaN gives 0.
func clampByte(v float64) byte {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > MaxDisplay:
		return MaxDisplay
	}
	return byte(v)
}

// logTable builds the lookup table of the log stretches. Entry j is the
// raw value displayed as byte j.
func logTable(sdiff, slow float64, loglog bool) [256]float64 {
	var dtbl [256]float64
	for j := 0; j < 255; j++ {
		a := math.Pow(10, float64(j)/254)
		if loglog {
			a = math.Pow(10, (a-1)/9)
		}
		dtbl[j] = (a-1)/9*sdiff + slow
	}
	dtbl[255] = math.MaxFloat64
	return dtbl
}

func squaredTable(sdiff, slow float64, squared bool) [256]float64 {
	var dtbl [256]float64
	for j := 0; j < 255; j++ {
		if squared {
			dtbl[j] = math.Sqrt(sdiff*sdiff/254*float64(j)) + slow
		} else {
			dd := math.Sqrt(sdiff) / 254 * float64(j)
			dtbl[j] = dd*dd + slow
		}
	}
	dtbl[255] = math.MaxFloat64
	return dtbl
}

// tableSearch locates v in dtbl with seven halving steps from the middle
// entry, giving the largest j with dtbl[j] < v, or 0.
func tableSearch(v float64, dtbl *[256]float64, delta int) int {
	p := 128
	for step := 0; step < 7; step++ {
		if dtbl[p] < v {
			p += delta
		} else {
			p -= delta
		}
		delta >>= 1
	}
	if dtbl[p] >= v {
		p--
	}
	return p
}

func powerLawGamma(x, gamma, zp, mp float64) float64 {
	if x <= zp {
		return 0
	}
	if x >= mp {
		return MaxDisplay
	}
	nsd := math.Pow(x-zp, 1/gamma) / math.Pow(mp-zp, 1/gamma)
	return 255 * nsd
}

// biasContrast shifts and scales a display byte. The defaults, bias 0.5
// and contrast 1, leave it unchanged.
func biasContrast(b byte, bias, contrast float64) byte {
	if bias == 0.5 && contrast == 1 {
		return b
	}
	offset := 127 * (bias - 0.5) * -4
	shift := 127 * (1 - contrast)
	return clampByte(offset + float64(b)*contrast + shift)
}

// applyAsinh maps flux with the asinh curve. Bias and contrast are not
// applied to its output.
func (e *Engine) applyAsinh(pixels []float64, out []byte, res *RangeResolver, rv RangeValues, slow, shigh float64, blank byte) {
	beta := rv.Beta
	if beta < 1e-10 {
		beta = 0.1
	} else if beta > 1e10 {
		beta = 1e10
	}

	minFlux := res.Flux(slow)
	maxFlux := res.Flux(shigh)
	if invalidFlux(minFlux) {
		lo, _ := finiteRange(pixels)
		minFlux = res.Flux(lo)
	}
	if invalidFlux(maxFlux) {
		// The array maximum lands in minFlux, leaving maxFlux invalid.
		// Every pixel then maps to 0. Kept for output compatibility.
		_, hi := finiteRange(pixels)
		minFlux = res.Flux(hi)
		e.log.Warnw("asinh upper bound is not finite", "shigh", shigh)
	}

	for i, v := range pixels {
		flux := res.Flux(v)
		if math.IsNaN(flux) {
			out[i] = blank
			continue
		}
		out[i] = clampByte(asinhValue(flux, minFlux, maxFlux, beta))
	}
}

func invalidFlux(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

func asinhValue(flux, minFlux, maxFlux, beta float64) float64 {
	if flux <= minFlux {
		return 0
	}
	if flux >= maxFlux {
		return MaxDisplay
	}
	return 255 * math.Asinh((flux-minFlux)/beta) / math.Asinh((maxFlux-minFlux)/beta)
}

// finiteRange returns the smallest and largest finite values.
func finiteRange(pixels []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range pixels {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// ComputeSigma returns the standard deviation of the non-zero finite
// pixels, or 1 when there are no more than five of them.
func ComputeSigma(pixels []float64, blank *float64) float64 {
	var n int
	var sum float64
	for _, v := range pixels {
		if valid(v, blank) && v != 0 {
			n++
			sum += v
		}
	}
	if n <= 5 {
		return 1
	}
	mean := sum / float64(n)
	var sq float64
	for _, v := range pixels {
		if valid(v, blank) && v != 0 {
			sq += (v - mean) * (v - mean)
		}
	}
	return math.Sqrt(sq / float64(n))
}
