// Package stretch maps raw pixel values to display bytes.
//
// A stretch runs in three steps. A Histogram is built once over the
// pixel array. A RangeResolver turns the configured RangeValues bounds
// into raw DN values. An Engine then maps each pixel to a byte in
// [0,254], reserving a caller-chosen byte for blank pixels.
package stretch

import (
	"math"
)

// HistogramSize is the number of bins in a Histogram.
const HistogramSize = 4096

// Histogram bins the finite, non-blank values of a pixel array. It is
// read-only after construction.
type Histogram struct {
	bins    [HistogramSize]int
	min     float64
	max     float64
	binsize float64
	goodpix int
	mean    float64
	stddev  float64
}

// NewHistogram builds a histogram over pixels. Values equal to *blank,
// NaN and infinities are skipped.
func NewHistogram(pixels []float64, blank *float64) *Histogram {
	h := &Histogram{binsize: 1}

	first := true
	var sum float64
	for _, v := range pixels {
		if !valid(v, blank) {
			continue
		}
		if first {
			h.min, h.max = v, v
			first = false
		}
		h.min = math.Min(h.min, v)
		h.max = math.Max(h.max, v)
		sum += v
		h.goodpix++
	}
	if h.goodpix == 0 {
		return h
	}

	if d := (h.max - h.min) / HistogramSize; d > 0 {
		h.binsize = d
	}
	h.mean = sum / float64(h.goodpix)

	var sq float64
	for _, v := range pixels {
		if !valid(v, blank) {
			continue
		}
		h.bins[h.bin(v)]++
		d := v - h.mean
		sq += d * d
	}
	h.stddev = math.Sqrt(sq / float64(h.goodpix))

	return h
}

func valid(v float64, blank *float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return blank == nil || v != *blank
}

func (h *Histogram) bin(v float64) int {
	i := int((v - h.min) / h.binsize)
	if i < 0 {
		return 0
	}
	if i >= HistogramSize {
		return HistogramSize - 1
	}
	return i
}

// Min returns the smallest valid value.
func (h *Histogram) Min() float64 { return h.min }

// Max returns the largest valid value.
func (h *Histogram) Max() float64 { return h.max }

// GoodPixels returns the number of binned values.
func (h *Histogram) GoodPixels() int { return h.goodpix }

func (h *Histogram) Mean() float64 { return h.mean }

// Stddev is the population standard deviation of the binned values.
func (h *Histogram) Stddev() float64 { return h.stddev }

// DN returns the lower edge of bin.
func (h *Histogram) DN(bin int) float64 {
	return float64(bin)*h.binsize + h.min
}

// Bin returns the bin holding v, clamped to the histogram range.
func (h *Histogram) Bin(v float64) int {
	return h.bin(v)
}

func (h *Histogram) Count(bin int) int {
	if bin < 0 || bin >= HistogramSize {
		return 0
	}
	return h.bins[bin]
}

// Cumulative returns the number of values in bins 0 through bin.
func (h *Histogram) Cumulative(bin int) int {
	if bin >= HistogramSize {
		bin = HistogramSize - 1
	}
	n := 0
	for i := 0; i <= bin; i++ {
		n += h.bins[i]
	}
	return n
}

// GetPct returns the DN at cumulative percentile p. The bin's upper edge
// is used when roundUp is set, which is how upper bounds are resolved.
func (h *Histogram) GetPct(p float64, roundUp bool) float64 {
	if h.goodpix == 0 {
		return 0
	}
	if p <= 0 {
		return h.min
	}
	if p >= 100 {
		return h.max
	}

	goal := int(float64(h.goodpix) * p / 100)
	i, sum := 0, h.bins[0]
	for sum < goal && i < HistogramSize-1 {
		i++
		sum += h.bins[i]
	}

	v := h.DN(i)
	if roundUp {
		v = h.DN(i + 1)
	}
	return math.Max(h.min, math.Min(h.max, v))
}

// GetSigma returns mean + s*stddev. A negative s gives a value below
// the mean. roundUp has no effect.
func (h *Histogram) GetSigma(s float64, roundUp bool) float64 {
	return h.mean + s*h.stddev
}

// EqualizationTable returns the lookup table for histogram equalization:
// entry j is the DN at which the cumulative count first reaches
// goodpix*j/255. The last entry is math.MaxFloat64.
func (h *Histogram) EqualizationTable() [256]float64 {
	var tbl [256]float64

	step := float64(h.goodpix) / 255
	tbl[0] = h.min
	n, goal := 1, step
	i, accum := 0, 0
	for i < HistogramSize && n < 255 {
		if float64(accum) >= goal {
			tbl[n] = h.DN(i)
			n++
			goal += step
		} else {
			accum += h.bins[i]
			i++
		}
	}
	for ; n < 255; n++ {
		tbl[n] = h.DN(i)
	}
	tbl[255] = math.MaxFloat64
	return tbl
}

// BinValues returns the DN of every bin, for colouring a histogram plot.
func (h *Histogram) BinValues() []float64 {
	out := make([]float64, HistogramSize)
	for i := range out {
		out[i] = h.DN(i)
	}
	return out
}
