package xisf

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
)

// Signature opens every monolithic XISF 1.0 file.
const Signature = "XISF0100"

var stringRegex = regexp.MustCompile(`^\'.*?\'$`)
var integerRegex = regexp.MustCompile(`^[\+\-]?\d+$`)

type FITSKeyword struct {
	XMLName xml.Name `xml:"FITSKeyword"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr"`
	Comment string   `xml:"comment,attr"`
}

type Image struct {
	XMLName      xml.Name      `xml:"Image"`
	Geometry     string        `xml:"geometry,attr"`
	SampleFormat string        `xml:"sampleFormat,attr"`
	ColorSpace   string        `xml:"colorSpace,attr"`
	FITSKeywords []FITSKeyword `xml:"FITSKeyword"`
}

type Xisf struct {
	XMLName xml.Name `xml:"xisf"`
	Images  []Image  `xml:"Image"`
}

type Decoder struct {
	rdr io.Reader
}

func NewDecoder(rdr io.Reader) *Decoder {
	return &Decoder{rdr: rdr}
}

func (d *Decoder) checkSignature() error {
	signature := make([]byte, len(Signature))
	if _, err := io.ReadFull(d.rdr, signature); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid signature length"), errors.ErrFormat)
	}

	if !bytes.Equal([]byte(Signature), signature) {
		return errors.Formatf("invalid signature content")
	}

	return nil
}

func (d *Decoder) getHeaderLength() (uint32, error) {
	headerLengthBytes := make([]byte, 4)
	if _, err := io.ReadFull(d.rdr, headerLengthBytes); err != nil {
		return 0, errors.Mark(errors.Wrap(err, "invalid header length"), errors.ErrFormat)
	}

	return binary.LittleEndian.Uint32(headerLengthBytes), nil
}

func (d *Decoder) skipReserved(count int64) error {
	n, err := io.CopyN(io.Discard, d.rdr, count)
	if err != nil || n != count {
		return errors.Formatf("invalid header length")
	}

	return nil
}

// ReadXML reads the signature and returns the decoded XML header.
func (d *Decoder) ReadXML() (*Xisf, error) {
	if err := d.checkSignature(); err != nil {
		return nil, err
	}

	headerLen, err := d.getHeaderLength()
	if err != nil {
		return nil, err
	}

	if err := d.skipReserved(4); err != nil {
		return nil, err
	}

	rawHeader := make([]byte, headerLen)
	if _, err := io.ReadFull(d.rdr, rawHeader); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid header length"), errors.ErrFormat)
	}

	img := &Xisf{}
	if err := xml.Unmarshal(bytes.TrimRight(rawHeader, "\x00"), img); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid xml header"), errors.ErrFormat)
	}

	return img, nil
}

// ReadHeader returns the FITS keywords of the first image.
func (d *Decoder) ReadHeader() (*common.Header, error) {
	img, err := d.ReadXML()
	if err != nil {
		return nil, err
	}

	if len(img.Images) == 0 {
		return common.NewHeader(), nil
	}
	return Header(img.Images[0]), nil
}

// Header converts the FITS keywords of an image, in file order.
func Header(img Image) *common.Header {
	cards := make([]common.Card, 0, len(img.FITSKeywords))

	for _, kw := range img.FITSKeywords {
		cards = append(cards, common.Card{Key: kw.Name, Value: keywordValue(kw.Value), Comment: kw.Comment})
	}

	return common.NewHeader(cards...)
}

func keywordValue(v string) interface{} {
	if len(v) == 0 {
		return nil
	}

	if stringRegex.MatchString(v) {
		return strings.TrimRight(v[1:len(v)-1], " ")
	} else if integerRegex.MatchString(v) {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	} else if v == "T" {
		return true
	} else if v == "F" {
		return false
	}

	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}

	return v
}

// Geometry parses an Image geometry attribute such as "4096:4096:1".
func Geometry(g string) ([]int, error) {
	if g == "" {
		return nil, nil
	}

	var out []int
	for _, s := range strings.Split(g, ":") {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, errors.Formatf("invalid image geometry %q", g)
		}
		out = append(out, n)
	}
	return out, nil
}

// Analyze reports one Image part per image of an XISF stream.
func Analyze(r io.Reader, depth common.Depth) (*common.Report, error) {
	doc, err := NewDecoder(r).ReadXML()
	if err != nil {
		return nil, err
	}

	report := &common.Report{Format: "xisf", Type: "Image", Depth: depth}
	for i, img := range doc.Images {
		naxis, err := Geometry(img.Geometry)
		if err != nil {
			return nil, err
		}

		part := common.Part{Index: i, Kind: common.Image, Desc: "Image", Naxis: naxis}
		if len(naxis) == 0 {
			part.Kind = common.HeaderOnly
		}
		if depth == common.Details {
			part.Header = common.HeaderTable("Image "+strconv.Itoa(i), Header(img))
		}
		report.Parts = append(report.Parts, part)

		if depth == common.Brief {
			break
		}
	}

	if len(report.Parts) == 0 {
		report.Type = "HeaderOnly"
	}
	return report, nil
}
