package pmtiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Ranger describes a byte range request: an offset and a length, both in
// bytes from the start of the underlying resource.
type Ranger interface {
	Offset() uint64
	Length() uint64
	Validate() error
}

const (
	indexOffset = 0
	indexLength = 1
)

// Range is the simplest Ranger: a fixed (offset, length) pair.
type Range [2]uint64

func (r Range) Offset() uint64 {
	return r[indexOffset]
}

func (r Range) Length() uint64 {
	return r[indexLength]
}

func (r Range) Validate() error {
	if r.Length() == 0 {
		return errors.New("invalid range: length must be a positive integer")
	}
	return nil
}

func NewRange(offset, length uint64) Range {
	var r Range
	r[indexOffset] = offset
	r[indexLength] = length
	return r
}

// RangeReader is a random-access byte source: a local file, an object in
// cloud storage, or anything else that can serve arbitrary byte ranges.
type RangeReader interface {
	ReadRange(ctx context.Context, ranger Ranger) ([]byte, error)
}

// OpenRangeReader opens a RangeReader for uri, dispatching on its scheme:
// a bare path or file:// URI opens a FileRangeReader, an s3:// URI opens an
// S3RangeReader using the default AWS config for credentials and region
// resolution.
func OpenRangeReader(ctx context.Context, uri string) (RangeReader, error) {
	u, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	switch u.scheme {
	case FileScheme:
		return NewFileRangeReader(u.FullPath())
	case S3Scheme:
		return NewDefaultS3RangeReader(ctx, u.Host(), u.Path())
	default:
		return nil, fmt.Errorf("unsupported URI scheme %q", u.Scheme())
	}
}

func NewFileRangeReader(path string) (*FileRangeReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file at path %s: %w", path, err)
	}

	return &FileRangeReader{file: f}, nil
}

// FileRangeReader reads byte ranges from a local file via ReadAt, so
// concurrent reads on the same handle don't race over a shared offset.
type FileRangeReader struct {
	file io.ReaderAt
}

func (f *FileRangeReader) ReadRange(_ context.Context, ranger Ranger) ([]byte, error) {
	if err := ranger.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ranger: %w", err)
	}

	offset := ranger.Offset()
	length := ranger.Length()
	buf := make([]byte, length)

	n, err := f.file.ReadAt(buf, int64(offset)) //nolint:gosec
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("reading file range: %w", err)
	}

	return buf[:n], nil
}

// SourceConfig holds the tunables a Source can be constructed with.
type SourceConfig struct {
	decompress DecompressFunc
}

type SourceConfigOption = func(config *SourceConfig)

// WithCustomDecompressFunc overrides the decompressor Source uses for
// metadata and tile payloads, e.g. to instrument or cache decompression.
func WithCustomDecompressFunc(decompressFn DecompressFunc) SourceConfigOption {
	return func(config *SourceConfig) {
		config.decompress = decompressFn
	}
}

// Source is the read-side convenience wrapper around a RangeReader: it
// reads the header and metadata once at construction, then resolves
// individual tiles on demand through a cached, singleflight-coalesced
// Repository.
type Source struct {
	reader     RangeReader
	header     HeaderV3
	meta       Metadata
	config     *SourceConfig
	repository *Repository
}

func NewSource(reader RangeReader, options ...SourceConfigOption) (*Source, error) {
	s := &Source{
		reader: reader,
		header: HeaderV3{},
		meta:   Metadata{},
	}

	config := &SourceConfig{
		decompress: Decompress,
	}

	for _, o := range options {
		o(config)
	}
	s.config = config

	if err := s.header.ReadFrom(s.reader); err != nil {
		return nil, err
	}

	if err := s.meta.ReadFrom(context.Background(), s.header, s.reader, s.config.decompress); err != nil {
		return nil, err
	}

	repo, err := NewRepository()
	if err != nil {
		return nil, err
	}

	s.repository = repo

	return s, nil
}

func (s *Source) Tile(ctx context.Context, z, x, y uint64) ([]byte, error) {
	return s.repository.Tile(ctx, s.header, s.reader, s.config.decompress, z, x, y)
}

func (s *Source) Header() HeaderV3 {
	return s.header
}

func (s *Source) Meta() Metadata {
	return s.meta
}

// Close releases the Source's directory cache. The underlying RangeReader
// is owned by the caller and is not closed.
func (s *Source) Close() {
	s.repository.Close()
}

const singleFlightKeyTemplate = "%s:%d:%d:%d" // etag:z:x:y

// buildSingleflightKey builds the coalescing key for a (etag, z, x, y)
// tile lookup without paying fmt.Sprintf's reflection overhead on the hot
// path; it must produce output identical to
// fmt.Sprintf(singleFlightKeyTemplate, etag, z, x, y).
func buildSingleflightKey(etag string, z, x, y uint64) string {
	var buf [64]byte
	b := buf[:0]
	b = append(b, etag...)
	b = append(b, ':')
	b = appendUint(b, z)
	b = append(b, ':')
	b = appendUint(b, x)
	b = append(b, ':')
	b = appendUint(b, y)
	return string(b)
}

func appendUint(b []byte, v uint64) []byte {
	if v == 0 {
		return append(b, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(b, tmp[i:]...)
}
