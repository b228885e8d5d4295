package fits

import (
	"io"
	"strconv"

	"github.com/astrogo/fitsio"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
)

type Decoder struct {
	rdr io.Reader
}

func NewDecoder(rdr io.Reader) *Decoder {
	return &Decoder{rdr: rdr}
}

// ReadHeader returns the primary header.
func (d *Decoder) ReadHeader() (*common.Header, error) {
	hdrs, err := d.ReadHeaders()
	if err != nil {
		return nil, err
	}

	return hdrs[0], nil
}

// ReadHeaders returns the header of every HDU in file order.
func (d *Decoder) ReadHeaders() ([]*common.Header, error) {
	fit, err := open(d.rdr)
	if err != nil {
		return nil, err
	}
	defer fit.Close()

	var out []*common.Header
	for _, hdu := range fit.HDUs() {
		out = append(out, convertHeader(hdu.Header()))
	}

	if len(out) == 0 {
		return nil, errors.Formatf("no header-data unit found")
	}

	return out, nil
}

func open(r io.Reader) (*fitsio.File, error) {
	fit, err := fitsio.Open(r)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid FITS stream"), errors.ErrFormat)
	}
	return fit, nil
}

// convertHeader copies a fitsio header. BITPIX and the NAXIS keywords
// lead the result whether or not fitsio lists them as cards.
func convertHeader(hdr *fitsio.Header) *common.Header {
	axes := hdr.Axes()

	cards := []common.Card{
		{Key: "BITPIX", Value: int64(hdr.Bitpix())},
		{Key: "NAXIS", Value: int64(len(axes))},
	}
	for i, n := range axes {
		cards = append(cards, common.Card{Key: "NAXIS" + strconv.Itoa(i+1), Value: int64(n)})
	}

	for _, key := range hdr.Keys() {
		c := hdr.Get(key)
		if c == nil {
			continue
		}
		cards = append(cards, common.Card{Key: key, Value: c.Value, Comment: c.Comment})
	}

	return common.NewHeader(cards...)
}
