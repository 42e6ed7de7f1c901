package compress

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type Algorithm string

const (
	Gzip Algorithm = "gzip"
	Lz4  Algorithm = "lz4"
	Zstd Algorithm = "zstd"
	None Algorithm = "none"
)

func ErrUnsupportedAlgo(algo Algorithm) error {
	return fmt.Errorf("unsupported compression algorithm: %s", algo)
}

// Suffix returns the filename extension for the algorithm, "" for None.
func Suffix(algo Algorithm) string {
	switch algo {
	case Gzip:
		return ".gz"
	case Lz4:
		return ".lz4"
	case Zstd:
		return ".zst"
	}
	return ""
}

// Compressor wraps a writer with the selected streaming codec. Close
// flushes the codec but leaves the underlying writer open; the caller
// owns it.
type Compressor struct {
	Writer io.Writer

	compWriter io.Writer
	closer     io.Closer
	algo       Algorithm
}

func New(w io.Writer, algo Algorithm) (*Compressor, error) {
	if algo == "" {
		algo = Lz4
	}

	c := &Compressor{
		algo:   algo,
		Writer: w,
	}

	switch algo {
	case None:
		return c, nil
	case Gzip:
		gz := gzip.NewWriter(w)
		c.compWriter = gz
		c.closer = gz
	case Lz4:
		l := lz4.NewWriter(w)
		c.compWriter = l
		c.closer = l
	case Zstd:
		z, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		c.compWriter = z
		c.closer = z
	default:
		return nil, ErrUnsupportedAlgo(algo)
	}

	return c, nil
}

func (c *Compressor) Write(p []byte) (int, error) {
	if c.algo == None {
		return c.Writer.Write(p)
	}
	return c.compWriter.Write(p)
}

func (c *Compressor) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
