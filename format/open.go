package format

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/rickbassham/fitscore/errors"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

func sniffCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	case bytes.HasPrefix(head, xzMagic):
		return Xz
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	}
	return None
}

type readCloser struct {
	io.Reader
	closers []func() error
}

// Close closes the decompressor and then the underlying file.
func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path and transparently decompresses gzip, xz and zstd
// content. Closing the returned reader closes the file as well.
func Open(path string) (io.ReadCloser, Compression, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, None, errors.Wrapf(err, "failed to open %s", path)
	}

	rc, c, err := wrap(f)
	if err != nil {
		f.Close()
		return nil, None, errors.Wrapf(err, "failed to open %s", path)
	}
	rc.closers = append(rc.closers, f.Close)
	return rc, c, nil
}

// OpenReader is Open for a stream. Closing the result does not close r.
func OpenReader(r io.Reader) (io.ReadCloser, Compression, error) {
	rc, c, err := wrap(r)
	if err != nil {
		return nil, None, err
	}
	return rc, c, nil
}

func wrap(r io.Reader) (*readCloser, Compression, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(xzMagic))

	c := sniffCompression(head)
	switch c {
	case Gzip:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, c, errors.Mark(errors.Wrap(err, "gzip decompress"), errors.ErrFormat)
		}
		return &readCloser{Reader: gzr, closers: []func() error{gzr.Close}}, c, nil
	case Xz:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, c, errors.Mark(errors.Wrap(err, "xz decompress"), errors.ErrFormat)
		}
		return &readCloser{Reader: xzr}, c, nil
	case Zstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, c, errors.Mark(errors.Wrap(err, "zstd decompress"), errors.ErrFormat)
		}
		return &readCloser{Reader: zr, closers: []func() error{func() error {
			zr.Close()
			return nil
		}}}, c, nil
	}
	return &readCloser{Reader: br}, None, nil
}
