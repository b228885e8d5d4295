package stretch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rickbassham/fitscore/errors"
)

// Algorithm selects how raw values between the bounds map to bytes.
type Algorithm int

const (
	Linear Algorithm = iota
	Log
	LogLog
	Equal
	Squared
	Sqrt
	PowerLawGamma
	Asinh
)

var algorithmNames = map[Algorithm]string{
	Linear:        "linear",
	Log:           "log",
	LogLog:        "loglog",
	Equal:         "equal",
	Squared:       "squared",
	Sqrt:          "sqrt",
	PowerLawGamma: "powerlaw_gamma",
	Asinh:         "asinh",
}

func (a Algorithm) String() string {
	if s, ok := algorithmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseAlgorithm accepts the names printed by Algorithm.String. Case,
// dashes and underscores are ignored.
func ParseAlgorithm(s string) (Algorithm, error) {
	key := normalizeName(s)
	for a, name := range algorithmNames {
		if normalizeName(name) == key {
			return a, nil
		}
	}
	return Linear, errors.Formatf("unknown stretch algorithm %q", s)
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}

// BoundKind selects how a Bound value is turned into a raw DN.
type BoundKind int

const (
	// BoundAbsolute is a physical value, converted through BSCALE/BZERO.
	BoundAbsolute BoundKind = iota
	// BoundPercentage is a histogram percentile in [0,100].
	BoundPercentage
	// BoundSigma is a multiple of the standard deviation from the mean.
	BoundSigma
	// BoundZscale uses the IRAF zscale bounds. The value is ignored.
	BoundZscale
)

var boundNames = map[BoundKind]string{
	BoundAbsolute:   "absolute",
	BoundPercentage: "percentage",
	BoundSigma:      "sigma",
	BoundZscale:     "zscale",
}

func (k BoundKind) String() string {
	if s, ok := boundNames[k]; ok {
		return s
	}
	return fmt.Sprintf("BoundKind(%d)", int(k))
}

func (k BoundKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func ParseBoundKind(s string) (BoundKind, error) {
	key := normalizeName(s)
	switch key {
	case "abs":
		return BoundAbsolute, nil
	case "pct", "percent":
		return BoundPercentage, nil
	}
	for k, name := range boundNames {
		if name == key {
			return k, nil
		}
	}
	return BoundPercentage, errors.Formatf("unknown bound kind %q", s)
}

// Bound is one end of the stretch range.
type Bound struct {
	Kind  BoundKind `json:"kind" yaml:"kind"`
	Value float64   `json:"value" yaml:"value"`
}

func (b Bound) String() string {
	if b.Kind == BoundZscale {
		return b.Kind.String()
	}
	return b.Kind.String() + ":" + strconv.FormatFloat(b.Value, 'g', -1, 64)
}

// ParseBound parses "kind:value", for example "percentage:99.5" or
// "sigma:-2". The value may be omitted for zscale.
func ParseBound(s string) (Bound, error) {
	kind, val, hasVal := strings.Cut(s, ":")
	k, err := ParseBoundKind(kind)
	if err != nil {
		return Bound{}, err
	}
	b := Bound{Kind: k}
	if !hasVal {
		if k != BoundZscale {
			return Bound{}, errors.Formatf("bound %q has no value", s)
		}
		return b, nil
	}
	b.Value, err = strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return Bound{}, errors.Mark(errors.Wrapf(err, "bound %q", s), errors.ErrFormat)
	}
	return b, nil
}

// RangeValues is the complete stretch configuration. It is a value type
// and is never modified after NewRangeValues returns it.
type RangeValues struct {
	Algorithm            Algorithm
	Lower                Bound
	Upper                Bound
	Gamma                float64
	Beta                 float64
	ZscaleContrast       float64
	ZscaleSamples        int
	ZscaleSamplesPerLine int
	Bias                 float64
	Contrast             float64
}

type RangeOption func(*RangeValues)

func WithAlgorithm(a Algorithm) RangeOption {
	return func(rv *RangeValues) { rv.Algorithm = a }
}

func WithBounds(lower, upper Bound) RangeOption {
	return func(rv *RangeValues) {
		rv.Lower = lower
		rv.Upper = upper
	}
}

func WithGamma(g float64) RangeOption {
	return func(rv *RangeValues) { rv.Gamma = g }
}

// WithBeta sets the asinh softening parameter.
func WithBeta(b float64) RangeOption {
	return func(rv *RangeValues) { rv.Beta = b }
}

// WithZscale sets the zscale contrast (in percent) and sampling sizes.
func WithZscale(contrast float64, samples, samplesPerLine int) RangeOption {
	return func(rv *RangeValues) {
		rv.ZscaleContrast = contrast
		rv.ZscaleSamples = samples
		rv.ZscaleSamplesPerLine = samplesPerLine
	}
}

func WithBiasContrast(bias, contrast float64) RangeOption {
	return func(rv *RangeValues) {
		rv.Bias = bias
		rv.Contrast = contrast
	}
}

// DefaultRangeValues is a linear stretch between the 1st and 99th
// percentiles.
func DefaultRangeValues() RangeValues {
	return RangeValues{
		Algorithm:            Linear,
		Lower:                Bound{Kind: BoundPercentage, Value: 1},
		Upper:                Bound{Kind: BoundPercentage, Value: 99},
		Gamma:                2,
		Beta:                 0.1,
		ZscaleContrast:       25,
		ZscaleSamples:        600,
		ZscaleSamplesPerLine: 120,
		Bias:                 0.5,
		Contrast:             1,
	}
}

// NewRangeValues applies opts over DefaultRangeValues and validates the
// result.
func NewRangeValues(opts ...RangeOption) (RangeValues, error) {
	rv := DefaultRangeValues()
	for _, o := range opts {
		o(&rv)
	}
	if err := rv.Validate(); err != nil {
		return RangeValues{}, err
	}
	return rv, nil
}

func (rv RangeValues) Validate() error {
	if _, ok := algorithmNames[rv.Algorithm]; !ok {
		return errors.Formatf("unknown stretch algorithm %d", int(rv.Algorithm))
	}
	for _, b := range []Bound{rv.Lower, rv.Upper} {
		if _, ok := boundNames[b.Kind]; !ok {
			return errors.Formatf("unknown bound kind %d", int(b.Kind))
		}
		if b.Kind == BoundPercentage && (b.Value < 0 || b.Value > 100) {
			return errors.Formatf("percentage bound %g is outside [0,100]", b.Value)
		}
	}
	if rv.Gamma <= 0 {
		return errors.Formatf("gamma must be positive, got %g", rv.Gamma)
	}
	if rv.Contrast <= 0 {
		return errors.Formatf("contrast must be positive, got %g", rv.Contrast)
	}
	if rv.ZscaleSamples <= 0 || rv.ZscaleSamplesPerLine <= 0 {
		return errors.Formatf("zscale sample sizes must be positive, got %d and %d",
			rv.ZscaleSamples, rv.ZscaleSamplesPerLine)
	}
	return nil
}

func (rv RangeValues) String() string {
	return fmt.Sprintf("%s %s..%s", rv.Algorithm, rv.Lower, rv.Upper)
}
