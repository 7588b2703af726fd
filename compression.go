package pmtiles

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the byte-stream compression applied to a
// directory, the JSON metadata section, or a tile payload. The numeric
// values are part of the archive's on-disk header layout and must not
// change.
type Compression uint8

const (
	CompressionUnknown Compression = iota
	CompressionNone
	CompressionGZIP
	CompressionBrotli
	CompressionZstd
)

const (
	brotliQuality = 11
	brotliWindow  = 24
)

var compressionOptions = map[Compression]string{
	CompressionUnknown: "unknown",
	CompressionNone:    "none",
	CompressionGZIP:    "gzip",
	CompressionBrotli:  "brotli",
	CompressionZstd:    "zstd",
}

func (c Compression) String() string {
	return compressionOptions[c]
}

func (c Compression) MarshalJSON() ([]byte, error) {
	str, ok := compressionOptions[c]
	if !ok {
		str = compressionOptions[CompressionUnknown]
	}
	return json.Marshal(str)
}

// ContentEncoding returns the value an HTTP Content-Encoding header should
// carry when serving bytes compressed with c, or "" if there is none.
func (c Compression) ContentEncoding() string {
	switch c {
	case CompressionGZIP:
		return "gzip"
	case CompressionBrotli:
		return "br"
	case CompressionZstd:
		return "zstd"
	default:
		return ""
	}
}

// DecompressFunc matches Decompress's signature; Source accepts one so
// callers can substitute an instrumented or cached decompressor.
type DecompressFunc = func(r io.Reader, compression Compression) (io.Reader, error)

// Decompress wraps r in a streaming decoder for compression. None is a
// pass-through. Unknown always fails: a writer must commit to a concrete
// compression before its output can be read back.
func Decompress(r io.Reader, compression Compression) (io.Reader, error) {
	switch compression {
	case CompressionNone:
		return r, nil

	case CompressionGZIP:
		if _, ok := r.(io.ByteReader); !ok {
			r = bufio.NewReader(r)
		}
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip.NewReader: %w", err)
		}
		// gzip.Reader is also an io.ReadCloser, so callers can Close() when done.
		return gr, nil

	case CompressionBrotli:
		return brotli.NewReader(r), nil

	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd.NewReader: %w", err)
		}
		return &zstdReadCloser{Decoder: zr}, nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCompression, compression)
	}
}

// zstdReadCloser adapts *zstd.Decoder's Close (which returns no error) to
// io.ReadCloser so callers can treat every decompressor uniformly.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// Compress wraps w in a streaming encoder for compression. The returned
// writer must be closed to flush buffered bytes and, for Brotli and Zstd,
// to finalize the stream; this stands in for the drop-flushes semantics of
// the reference implementation, which Go has no equivalent of.
func Compress(w io.Writer, compression Compression) (io.WriteCloser, error) {
	switch compression {
	case CompressionNone:
		return nopWriteCloser{w}, nil

	case CompressionGZIP:
		return gzip.NewWriter(w), nil

	case CompressionBrotli:
		bw := brotli.NewWriterOptions(w, brotli.WriterOptions{
			Quality: brotliQuality,
			LGWin:   brotliWindow,
		})
		return bw, nil

	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd.NewWriter: %w", err)
		}
		return zw, nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCompression, compression)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// DecompressAll is a one-shot helper: decompress data fully into memory.
func DecompressAll(compression Compression, data []byte) ([]byte, error) {
	r, err := Decompress(bytes.NewReader(data), compression)
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decompressed data: %w", err)
	}
	if closer, ok := r.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			return nil, fmt.Errorf("closing decompressor: %w", cerr)
		}
	}
	return out, nil
}

// CompressAll is a one-shot helper: compress data fully into memory.
func CompressAll(compression Compression, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := Compress(&buf, compression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("writing to compressor: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing compressor: %w", err)
	}
	return buf.Bytes(), nil
}
