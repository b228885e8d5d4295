package format_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/format"
)

func TestOpen(t *testing.T) {
	payload := []byte("|a|\n 1 \n")

	tests := []struct {
		name     string
		data     []byte
		expected format.Compression
	}{
		{"plain", payload, format.None},
		{"gzip", gzipped(t, payload), format.Gzip},
		{"xz", xzipped(t, payload), format.Xz},
		{"zstd", zstded(t, payload), format.Zstd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, c, err := format.Open(writeFile(t, "f", tt.data))
			require.NoError(t, err)
			defer rc.Close()

			assert.Equal(t, tt.expected, c)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestOpenReaderCorrupt(t *testing.T) {
	_, _, err := format.OpenReader(bytes.NewReader([]byte{0x1f, 0x8b, 0x00}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFormat))
}

func TestOpenMissing(t *testing.T) {
	_, _, err := format.Open("/nonexistent/file.fits")
	assert.Error(t, err)
}
