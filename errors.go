package pmtiles

import "errors"

var (
	// ErrUnsupportedCompression is returned when Compression is Unknown and
	// a caller attempts to compress or decompress with it.
	ErrUnsupportedCompression = errors.New("pmtiles: unsupported compression")

	// ErrMissingReader is returned by TileManager.GetTile when an
	// OffsetLength reference needs to be resolved but no source reader was
	// attached to the manager.
	ErrMissingReader = errors.New("pmtiles: tile ref requires a reader, none attached")

	// ErrCorruptDirectory is returned by directory decoding when the wire
	// format is structurally invalid (e.g. an offset column whose first
	// value has no predecessor to be relative to).
	ErrCorruptDirectory = errors.New("pmtiles: corrupt directory encoding")

	// ErrUnsupportedZoom is returned by the tile-ID inverse mapping when no
	// zoom level below the maximum could contain the given ID, and by
	// Repository.Tile when z lies outside the archive's zoom range.
	ErrUnsupportedZoom = errors.New("pmtiles: tile id has no valid zoom level")

	// ErrNotFound is returned when a tile ID has no matching directory
	// entry or tile reference.
	ErrNotFound = errors.New("pmtiles: tile not found")

	// ErrBadMagic is returned when a header does not begin with the
	// PMTiles magic bytes.
	ErrBadMagic = errors.New("pmtiles: bad magic, not a PMTiles archive")

	// ErrUnsupportedVersion is returned when a header's spec version is
	// not 3 (v1/v2 archives are explicitly rejected, not translated).
	ErrUnsupportedVersion = errors.New("pmtiles: unsupported spec version")
)
