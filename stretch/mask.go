package stretch

import (
	"math"

	"github.com/rickbassham/fitscore/errors"
)

// MaxMasks is the number of masks a single byte plane can index.
const MaxMasks = 255

// Mask is a named set of bits in an integer mask plane.
type Mask struct {
	Name string
	Bits int64
}

// Matches reports whether any of m's bits are set in v.
func (m Mask) Matches(v int64) bool {
	return v&m.Bits != 0
}

// CombineMasks returns a mask holding every bit of masks.
func CombineMasks(masks []Mask) Mask {
	var c Mask
	for _, m := range masks {
		c.Bits |= m.Bits
	}
	return c
}

// StretchMask maps a mask plane to palette indices. A pixel gets the
// index of the first mask it matches, or len(masks) when it matches
// none. NaN pixels get blank. hist counts how many pixels received each
// index and has len(masks)+1 entries.
func (e *Engine) StretchMask(pixels []float64, masks []Mask, blank byte) (out []byte, hist []int, err error) {
	if len(masks) > MaxMasks {
		return nil, nil, errors.Formatf("%d masks given, at most %d fit a byte plane", len(masks), MaxMasks)
	}

	out = make([]byte, len(pixels))
	hist = make([]int, len(masks)+1)
	combined := CombineMasks(masks)

	for i, v := range pixels {
		if math.IsNaN(v) {
			out[i] = blank
			continue
		}
		idx := len(masks)
		if bits := int64(v); combined.Matches(bits) {
			for j, m := range masks {
				if m.Matches(bits) {
					idx = j
					break
				}
			}
		}
		out[i] = byte(idx)
		hist[idx]++
	}
	return out, hist, nil
}
