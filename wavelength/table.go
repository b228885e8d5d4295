package wavelength

import (
	"github.com/rickbassham/fitscore/errors"
)

type order int

const (
	unordered order = iota
	ascending
	descending
)

func (r *Resolver) lookup(p []float64) (float64, error) {
	if r.table == nil {
		return 0, errors.Formatf("the lookup table %s is not provided", r.tableName)
	}

	psi := r.crval + r.intermediate(p)
	if r.hasStep {
		psi = r.crval + r.cdelt*r.intermediate(p)
	}

	coords, err := r.table.Float64Column(r.coordCol)
	if err != nil {
		return 0, err
	}

	if r.indexCol == "" {
		i := int(psi)
		if psi < 0 || i >= len(coords) {
			return 0, errors.PixelBoundsf("table position %g outside the %d coordinates", psi, len(coords))
		}
		return coords[i], nil
	}

	index, err := r.table.Float64Column(r.indexCol)
	if err != nil {
		return 0, err
	}
	if len(index) > len(coords) {
		return 0, errors.Formatf("index array has %d entries for %d coordinates", len(index), len(coords))
	}

	k, err := bracket(index, psi)
	if err != nil {
		return 0, err
	}

	// fractional position of psi between index[k-1] and index[k]
	frac := (psi - index[k-1]) / (index[k] - index[k-1])
	return coords[k-1] + frac*(coords[k]-coords[k-1]), nil
}

// bracket returns the first k with psi between index[k-1] and index[k].
func bracket(index []float64, psi float64) (int, error) {
	dir := sortOrder(index)
	if dir == unordered {
		return 0, errors.Formatf("the index array has to be either ascending or descending")
	}

	for k := 1; k < len(index); k++ {
		lo, hi := index[k-1], index[k]
		if dir == descending {
			lo, hi = hi, lo
		}
		if lo <= psi && psi <= hi {
			return k, nil
		}
	}
	return 0, errors.PixelBoundsf("index value %g is outside the index array", psi)
}

// sortOrder reports whether index is strictly ascending or descending.
func sortOrder(index []float64) order {
	if len(index) < 2 {
		return unordered
	}
	asc, desc := true, true
	for i := 1; i < len(index); i++ {
		if index[i] <= index[i-1] {
			asc = false
		}
		if index[i] >= index[i-1] {
			desc = false
		}
	}
	switch {
	case asc:
		return ascending
	case desc:
		return descending
	}
	return unordered
}
