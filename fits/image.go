package fits

import (
	"encoding/binary"
	"io"
	"math"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
)

// ImageHDU is the header and decoded pixels of one image HDU. Pixels are
// raw values in FITS order (NAXIS1 fastest); BSCALE and BZERO are not
// applied. Integer pixels equal to BLANK are NaN.
type ImageHDU struct {
	Index  int
	Header *common.Header
	Naxis  []int
	Bitpix int
	Pixels []float64
}

// Width is NAXIS1.
func (img *ImageHDU) Width() int {
	if len(img.Naxis) < 1 {
		return 0
	}
	return img.Naxis[0]
}

// Height is NAXIS2.
func (img *ImageHDU) Height() int {
	if len(img.Naxis) < 2 {
		return 1
	}
	return img.Naxis[1]
}

// Part describes the image the way an analysis report does, including the
// plane and wavelength of a split cube plane.
func (img *ImageHDU) Part() common.Part {
	p := common.Part{Index: img.Index, Kind: imageKind(img.Naxis), Desc: partName(img.Index, img.Header), Naxis: img.Naxis}
	if pl, ok := img.Header.Int("SPOT_PL"); ok {
		plane := int(pl)
		p.Plane = &plane
	}
	if wl, ok := img.Header.Float("SPOT_WL"); ok {
		p.Wavelength = &wl
	}
	return p
}

// ReadImages decodes every image HDU that carries data.
func ReadImages(r io.Reader) ([]*ImageHDU, error) {
	fit, err := open(r)
	if err != nil {
		return nil, err
	}
	defer fit.Close()

	var out []*ImageHDU
	for i, hdu := range fit.HDUs() {
		if hdu.Type() != fitsio.IMAGE_HDU {
			continue
		}
		im, ok := hdu.(fitsio.Image)
		if !ok {
			continue
		}

		naxis := hdu.Header().Axes()
		if imageKind(naxis) != common.Image {
			continue
		}

		hdr := convertHeader(hdu.Header())
		pixels, err := decodePixels(im.Raw(), hdu.Header().Bitpix(), npix(naxis), hdr)
		if err != nil {
			return nil, errors.Wrapf(err, "HDU %d", i)
		}

		out = append(out, &ImageHDU{
			Index:  i,
			Header: hdr,
			Naxis:  naxis,
			Bitpix: hdu.Header().Bitpix(),
			Pixels: pixels,
		})
	}
	return out, nil
}

func npix(naxis []int) int {
	n := 1
	for _, a := range naxis {
		n *= a
	}
	return n
}

// decodePixels converts big-endian raw data to float64 by BITPIX.
func decodePixels(raw []byte, bitpix, n int, hdr *common.Header) ([]float64, error) {
	size := bitpix / 8
	if size < 0 {
		size = -size
	}
	if size == 0 {
		return nil, errors.Formatf("invalid BITPIX %d", bitpix)
	}
	if len(raw) < n*size {
		return nil, errors.Formatf("data unit holds %d bytes, expected %d", len(raw), n*size)
	}

	blank, hasBlank := hdr.Int("BLANK")
	hasBlank = hasBlank && bitpix > 0

	out := make([]float64, n)
	be := binary.BigEndian
	for i := 0; i < n; i++ {
		b := raw[i*size:]
		var iv int64
		switch bitpix {
		case 8:
			iv = int64(b[0])
		case 16:
			iv = int64(int16(be.Uint16(b)))
		case 32:
			iv = int64(int32(be.Uint32(b)))
		case 64:
			iv = int64(be.Uint64(b))
		case -32:
			out[i] = float64(math.Float32frombits(be.Uint32(b)))
			continue
		case -64:
			out[i] = math.Float64frombits(be.Uint64(b))
			continue
		default:
			return nil, errors.Formatf("invalid BITPIX %d", bitpix)
		}

		if hasBlank && iv == blank {
			out[i] = math.NaN()
			continue
		}
		out[i] = float64(iv)
	}
	return out, nil
}

// IsCube reports whether img has more than one plane along NAXIS3.
func IsCube(img *ImageHDU) bool {
	return len(img.Naxis) > 2 && img.Naxis[2] > 1
}

// SplitCube returns one single-plane image per plane of a cube. A
// non-cube is returned unchanged. The source header is not modified.
func SplitCube(img *ImageHDU) ([]*ImageHDU, error) {
	if !IsCube(img) {
		return []*ImageHDU{img}, nil
	}
	for _, n := range img.Naxis[3:] {
		if n != 1 {
			return nil, errors.Unsupportedf("cannot split a cube with NAXIS4 = %d", n)
		}
	}

	nx, ny, nplanes := img.Naxis[0], img.Naxis[1], img.Naxis[2]
	planeSize := nx * ny
	if len(img.Pixels) < planeSize*nplanes {
		return nil, errors.Formatf("cube holds %d pixels, expected %d", len(img.Pixels), planeSize*nplanes)
	}

	ctype, _ := img.Header.String("CTYPE3")
	spectral := strings.HasPrefix(ctype, "WAVE") || strings.HasPrefix(ctype, "AWAV")

	out := make([]*ImageHDU, 0, nplanes)
	for i := 0; i < nplanes; i++ {
		b := common.NewBuilder(img.Header.Clone()).
			Delete("NAXIS3", "NAXIS4", "BLANK", "DATAMIN", "DATAMAX").
			Set("NAXIS", int64(2), "").
			Set("BITPIX", int64(-32), "").
			Set("SPOT_PL", int64(i), "Plane of FITS cube")

		if spectral {
			b.Set("SPOT_WL", planeWavelength(img.Header, i), "Wavelength of cube plane")
		}

		pixels := make([]float64, planeSize)
		copy(pixels, img.Pixels[i*planeSize:(i+1)*planeSize])

		out = append(out, &ImageHDU{
			Index:  img.Index,
			Header: b.Build(),
			Naxis:  []int{nx, ny},
			Bitpix: -32,
			Pixels: pixels,
		})
	}
	return out, nil
}

// planeWavelength is the linear wavelength of the 0-based plane i.
func planeWavelength(hdr *common.Header, i int) float64 {
	crval := hdr.FloatOr("CRVAL3", 0)
	cdelt := hdr.FloatOr("CDELT3", 0)
	crpix := hdr.FloatOr("CRPIX3", 0)
	return crval + cdelt*(float64(i+1)-crpix)
}

// structural keywords are written by fitsio itself.
var structural = map[string]bool{
	"SIMPLE": true, "XTENSION": true, "BITPIX": true, "NAXIS": true, "EXTEND": true,
	"PCOUNT": true, "GCOUNT": true, "END": true, "COMMENT": true, "HISTORY": true, "": true,
}

func isStructural(key string) bool {
	if structural[key] {
		return true
	}
	return strings.HasPrefix(key, "NAXIS")
}

// WriteImages writes the images as float32 HDUs, the first one primary.
func WriteImages(w io.Writer, hdus []*ImageHDU) error {
	if len(hdus) == 0 {
		return errors.AssertionFailedf("no images to write")
	}

	fit, err := fitsio.Create(w)
	if err != nil {
		return errors.Wrap(err, "failed to create FITS stream")
	}
	defer fit.Close()

	for _, img := range hdus {
		if err := writeImage(fit, img); err != nil {
			return err
		}
	}

	return nil
}

func writeImage(fit *fitsio.File, img *ImageHDU) error {
	im := fitsio.NewImage(-32, img.Naxis)
	defer im.Close()

	var cards []fitsio.Card
	for _, c := range img.Header.Cards() {
		if isStructural(c.Key) || c.Value == nil {
			continue
		}
		v := c.Value
		if n, ok := v.(int64); ok {
			v = int(n)
		}
		cards = append(cards, fitsio.Card{Name: c.Key, Value: v, Comment: c.Comment})
	}
	if err := im.Header().Append(cards...); err != nil {
		return errors.Wrap(err, "failed to write header")
	}

	data := make([]float32, len(img.Pixels))
	for i, v := range img.Pixels {
		data[i] = float32(v)
	}
	if err := im.Write(data); err != nil {
		return errors.Wrap(err, "failed to write pixels")
	}

	return errors.Wrap(fit.Write(im), "failed to write HDU")
}
