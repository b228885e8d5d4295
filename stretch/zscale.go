package stretch

import (
	"math"
	"sort"
)

const (
	zscaleMinPixels  = 5
	zscaleMaxReject  = 0.5
	zscaleKRej       = 2.5
	zscaleMaxIter    = 5
	zscaleSlopeFloor = 0.001
)

// Zscale computes IRAF-style display bounds. Up to optSize pixels are
// sampled on a regular grid of lines, at most lenStdLine per line. A
// line is fitted to the sorted sample with iterative k-sigma rejection
// and the bounds are derived from its slope divided by contrast.
//
// The returned bounds always lie within the range of the sample. An
// image with no valid pixel gives (0, 0).
func Zscale(pixels []float64, nx, ny int, blank *float64, contrast float64, optSize, lenStdLine int) (z1, z2 float64) {
	sample := zscaleSample(pixels, nx, ny, blank, optSize, lenStdLine)
	npix := len(sample)
	if npix == 0 {
		return 0, 0
	}
	sort.Float64s(sample)

	zmin, zmax := sample[0], sample[npix-1]
	center := max(1, (npix+1)/2)
	left := center - 1

	median := sample[left]
	if npix%2 == 0 && center < npix {
		median = (sample[left] + sample[left+1]) / 2
	}

	minpix := max(zscaleMinPixels, int(float64(npix)*zscaleMaxReject))
	ngrow := max(1, int(math.Round(float64(npix)*0.01)))

	ngood, _, slope := fitLine(sample, zscaleKRej, ngrow, zscaleMaxIter)
	if ngood < minpix {
		return zmin, zmax
	}

	if contrast > 0 {
		slope /= contrast
	}
	z1 = math.Max(zmin, median-float64(center-1)*slope)
	z2 = math.Min(zmax, median+float64(npix-center)*slope)
	return z1, z2
}

func zscaleSample(pixels []float64, nx, ny int, blank *float64, optSize, lenStdLine int) []float64 {
	if nx <= 0 || ny <= 0 || optSize <= 0 || lenStdLine <= 0 || len(pixels) < nx*ny {
		return nil
	}

	optPerLine := max(1, min(nx, lenStdLine))
	colStep := max(2, (nx+optPerLine-1)/optPerLine)
	perLine := max(1, (nx+colStep-1)/colStep)

	minLines := max(1, optSize/lenStdLine)
	optLines := max(minLines, min(ny, (optSize+perLine-1)/perLine))
	lineStep := max(2, ny/optLines)

	// A single-line image still contributes its only line.
	first := min((lineStep+1)/2, ny-1)

	sample := make([]float64, 0, optSize)
	for line := first; line < ny; line += lineStep {
		row := pixels[line*nx : (line+1)*nx]
		for i, taken := 0, 0; i < nx && taken < perLine; i, taken = i+colStep, taken+1 {
			if v := row[i]; valid(v, blank) {
				sample = append(sample, v)
			}
		}
		if len(sample) >= optSize {
			break
		}
	}
	return sample
}

type pixelState uint8

const (
	pixelGood pixelState = iota
	pixelBad
	// rejected pixels stay in the fit sums but not in the sigma
	pixelRejected
)

// fitLine fits z = z0 + dz*x to data over x normalized to [-1,1],
// rejecting points whose residual exceeds krej sigma. Rejection grows
// by ngrow neighbours.
func fitLine(data []float64, krej float64, ngrow, maxIter int) (ngood int, zstart, zslope float64) {
	npix := len(data)
	switch npix {
	case 0:
		return 1, 0, 0
	case 1:
		return 1, data[0], 0
	}

	xscale := 2.0 / float64(npix-1)
	normx := make([]float64, npix)
	state := make([]pixelState, npix)

	var sumxsqr, sumxz, sumx, sumz float64
	for i := range data {
		x := float64(i)*xscale - 1
		normx[i] = x
		sumxsqr += x * x
		sumxz += data[i] * x
		sumx += x
		sumz += data[i]
	}

	z0 := sumz / float64(npix)
	dz := sumxz / sumxsqr
	initial := dz

	ngood = npix
	minpix := max(zscaleMinPixels, int(float64(npix)*zscaleMaxReject))
	flat := make([]float64, npix)

	for iter := 0; iter < maxIter; iter++ {
		last := ngood

		for i := range data {
			flat[i] = data[i] - (normx[i]*dz + z0)
		}
		threshold := krej * residualSigma(flat, state)

		ngood = npix
		for i := 0; i < npix; i++ {
			if state[i] == pixelBad {
				ngood--
				continue
			}
			if r := flat[i]; r >= -threshold && r <= threshold {
				continue
			}
			for j := max(0, i-ngrow); j < min(npix, i+ngrow); j++ {
				if state[j] == pixelBad {
					continue
				}
				if j > i {
					state[j] = pixelRejected
					continue
				}
				x, z := normx[j], data[j]
				sumxsqr -= x * x
				sumxz -= z * x
				sumx -= x
				sumz -= z
				state[j] = pixelBad
				ngood--
			}
		}

		if ngood > 0 {
			rowrat := sumx / sumxsqr
			z0 = (sumz - rowrat*sumxz) / (float64(ngood) - rowrat*sumx)
			dz = (sumxz - z0*sumx) / sumxsqr
		}
		if ngood >= last || ngood < minpix {
			break
		}
	}

	zstart = z0 - dz
	zslope = dz * xscale
	if math.Abs(zslope) < zscaleSlopeFloor {
		zslope = initial * xscale
	}
	return ngood, zstart, zslope
}

// residualSigma is the sample standard deviation of the good residuals.
func residualSigma(flat []float64, state []pixelState) float64 {
	var n int
	var sum, sumsq float64
	for i, v := range flat {
		if state[i] != pixelGood {
			continue
		}
		n++
		sum += v
		sumsq += v * v
	}
	if n < 2 {
		return 0
	}
	nf := float64(n)
	temp := sumsq/(nf-1) - sum*sum/(nf*(nf-1))
	if temp < 0 {
		return 0
	}
	return math.Sqrt(temp)
}
