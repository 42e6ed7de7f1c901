package compress

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressor_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("INSERT INTO users VALUES (1, 'alice');\n"), 2000)

	tests := []struct {
		algo   Algorithm
		reader func(r io.Reader) (io.Reader, error)
	}{
		{Gzip, func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }},
		{Lz4, func(r io.Reader) (io.Reader, error) { return lz4.NewReader(r), nil }},
		{Zstd, func(r io.Reader) (io.Reader, error) { return zstd.NewReader(r) }},
		{None, func(r io.Reader) (io.Reader, error) { return r, nil }},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			var buf bytes.Buffer
			c, err := New(&buf, tt.algo)
			require.NoError(t, err)

			_, err = c.Write(payload)
			require.NoError(t, err)
			require.NoError(t, c.Close())

			if tt.algo != None {
				assert.Less(t, buf.Len(), len(payload), "compressed output should shrink repetitive input")
			}

			r, err := tt.reader(&buf)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestCompressor_DefaultsToLz4(t *testing.T) {
	var buf bytes.Buffer
	c, err := New(&buf, "")
	require.NoError(t, err)
	_, err = c.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	got, err := io.ReadAll(lz4.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
}

func TestCompressor_UnsupportedAlgo(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(&buf, "brotli")
	assert.Error(t, err)
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, ".gz", Suffix(Gzip))
	assert.Equal(t, ".lz4", Suffix(Lz4))
	assert.Equal(t, ".zst", Suffix(Zstd))
	assert.Equal(t, "", Suffix(None))
}
