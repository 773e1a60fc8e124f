package sizes

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// DefaultGzipLevel matches the level gzip-size reports use.
const DefaultGzipLevel = gzip.BestCompression

// Compressor measures the compressed size of a byte slice. Implementations
// must be deterministic for identical input.
type Compressor interface {
	Name() string
	Size(b []byte) int64
}

// Gzip compresses with gzip at a fixed level. The header carries no name or
// timestamp so equal input always has equal size.
type Gzip struct {
	Level int
}

// Name returns "gzip".
func (Gzip) Name() string { return "gzip" }

// Size returns the gzip-compressed length of b.
func (g Gzip) Size(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var w countingWriter
	zw, err := gzip.NewWriterLevel(&w, g.Level)
	if err != nil {
		zw = gzip.NewWriter(&w)
	}
	_, _ = zw.Write(b)
	_ = zw.Close()
	return w.n
}

// Brotli compresses with brotli at a fixed quality.
type Brotli struct {
	Quality int
}

// Name returns "brotli".
func (Brotli) Name() string { return "brotli" }

// Size returns the brotli-compressed length of b.
func (c Brotli) Size(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var w countingWriter
	bw := brotli.NewWriterLevel(&w, c.Quality)
	_, _ = bw.Write(b)
	_ = bw.Close()
	return w.n
}

// NewCompressor returns the compressor registered under name. An empty name
// selects gzip.
func NewCompressor(name string) (Compressor, error) {
	switch name {
	case "", "gzip":
		return Gzip{Level: DefaultGzipLevel}, nil
	case "brotli":
		return Brotli{Quality: brotli.BestCompression}, nil
	default:
		return nil, fmt.Errorf("unknown compression algorithm %q", name)
	}
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

var _ io.Writer = (*countingWriter)(nil)
