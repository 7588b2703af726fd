package pmtiles

import (
	"context"
	"fmt"
	"io"
)

// Archive is an in-memory PMTiles v3 archive under construction or fully
// loaded for editing: a header, a metadata blob, and a TileManager
// holding every addressed tile. It is the orchestrator tying together the
// directory codec, the root/leaf splitter, and the compression
// multiplexer into the read (FromReader) and write (ToWriter) paths.
type Archive struct {
	header       HeaderV3
	meta         Metadata
	tiles        *TileManager
	compr        Compression // internal (directory/metadata) compression
	tileCmp      Compression // tile content compression
	zoomRangeSet bool
}

// NewArchive starts a fresh archive with the given internal and tile
// compressions; everything else falls back to DefaultHeader's values
// until AddTile/SetMetadata/SetBounds are called.
func NewArchive(internalCompression, tileCompression Compression, tileType TileType) *Archive {
	h := DefaultHeader()
	h.InternalCompression = internalCompression
	h.TileCompression = tileCompression
	h.TileType = tileType

	return &Archive{
		header:  h,
		meta:    Metadata{Raw: []byte(`{}`)},
		tiles:   NewTileManager(nil, Decompress, tileCompression),
		compr:   internalCompression,
		tileCmp: tileCompression,
	}
}

// FromReader loads every tile reference (not tile content) out of an
// existing archive so it can be edited: added to, removed from, or
// rewritten with a different directory layout.
func FromReader(ctx context.Context, r RangeReader) (*Archive, error) {
	return fromReaderFiltered(ctx, r, TileIDFilter{})
}

// FromReaderFiltered is FromReader restricted to the inclusive
// [minTileID, maxTileID] tile ID range, letting a caller load a spatial
// subset of a large archive without resolving every leaf directory.
func FromReaderFiltered(ctx context.Context, r RangeReader, minTileID, maxTileID uint64) (*Archive, error) {
	return fromReaderFiltered(ctx, r, TileIDFilter{Enabled: true, Start: minTileID, End: maxTileID})
}

func fromReaderFiltered(ctx context.Context, r RangeReader, filter TileIDFilter) (*Archive, error) {
	var header HeaderV3
	if err := header.ReadFrom(r); err != nil {
		return nil, err
	}

	var meta Metadata
	if err := meta.ReadFrom(ctx, header, r, Decompress); err != nil {
		return nil, err
	}

	resolved, err := ReadDirectories(ctx, r, header, Decompress, filter)
	if err != nil {
		return nil, err
	}

	tm := NewTileManager(r, Decompress, header.TileCompression)
	for id, ol := range resolved {
		tm.AddOffsetTile(id, header.TileDataOffset+ol.Offset, uint32(ol.Length)) //nolint:gosec
	}

	return &Archive{
		header:  header,
		meta:    meta,
		tiles:   tm,
		compr:   header.InternalCompression,
		tileCmp: header.TileCompression,
	}, nil
}

// AddTile stages raw (already-compressed per the archive's TileCompression)
// tile content for (z, x, y), replacing any previous content at that
// coordinate.
func (a *Archive) AddTile(z, x, y uint64, data []byte) error {
	id, err := ZXYToHilbertTileID(z, x, y)
	if err != nil {
		return fmt.Errorf("resolving tile id for z:%d x:%d y:%d: %w", z, x, y, err)
	}
	a.tiles.AddTile(id, data)
	if !a.zoomRangeSet {
		a.header.MinZoom = uint8(z) //nolint:gosec
		a.header.MaxZoom = uint8(z) //nolint:gosec
		a.zoomRangeSet = true
		return nil
	}
	if z < uint64(a.header.MinZoom) {
		a.header.MinZoom = uint8(z) //nolint:gosec
	}
	if z > uint64(a.header.MaxZoom) {
		a.header.MaxZoom = uint8(z) //nolint:gosec
	}
	return nil
}

// RemoveTile drops the tile at (z, x, y), if any.
func (a *Archive) RemoveTile(z, x, y uint64) error {
	id, err := ZXYToHilbertTileID(z, x, y)
	if err != nil {
		return fmt.Errorf("resolving tile id for z:%d x:%d y:%d: %w", z, x, y, err)
	}
	a.tiles.RemoveTile(id)
	return nil
}

// GetTile returns the tile content at (z, x, y), decompressing if needed.
func (a *Archive) GetTile(ctx context.Context, z, x, y uint64) ([]byte, error) {
	id, err := ZXYToHilbertTileID(z, x, y)
	if err != nil {
		return nil, fmt.Errorf("resolving tile id for z:%d x:%d y:%d: %w", z, x, y, err)
	}
	return a.tiles.GetTile(ctx, id)
}

// NumTiles returns the number of distinct addressed tile coordinates.
func (a *Archive) NumTiles() int {
	return a.tiles.NumAddressedTiles()
}

// SetMetadata replaces the archive's metadata object, marshaled to JSON.
func (a *Archive) SetMetadata(v any) error {
	data, err := EncodeMetadata(v)
	if err != nil {
		return err
	}
	a.meta.Raw = data
	return nil
}

func (a *Archive) Metadata() Metadata {
	return a.meta
}

func (a *Archive) Header() HeaderV3 {
	return a.header
}

// SetBounds sets the archive's geographic bounding box. The center
// position is left unchanged.
func (a *Archive) SetBounds(minLon, minLat, maxLon, maxLat float64) {
	a.header.SetMinPos(minLon, minLat)
	a.header.SetMaxPos(maxLon, maxLat)
}

// ToWriter finalizes the archive and writes it as a complete PMTiles v3
// file: header, root directory, metadata, leaf directories (if any), then
// tile data, in the on-disk section order the header's offsets describe.
// The archive is always written clustered, since Finish lays tile data
// out in tile-ID order.
func (a *Archive) ToWriter(ctx context.Context, w io.Writer) error {
	result, err := a.tiles.Finish(ctx)
	if err != nil {
		return fmt.Errorf("finishing tile manager: %w", err)
	}

	metaCompressed, err := CompressAll(a.compr, a.meta.Raw)
	if err != nil {
		return fmt.Errorf("compressing metadata: %w", err)
	}

	dirs, err := WriteDirectories(result.Directory, a.compr, 0)
	if err != nil {
		return fmt.Errorf("laying out directories: %w", err)
	}

	h := a.header
	h.Clustered = true
	h.AddressedTilesCount = result.NumAddressedTiles
	h.TileEntriesCount = result.NumTileEntries
	h.TileContentsCount = result.NumTileContentItems

	h.RootOffset = HeaderSizeBytes
	h.RootLength = uint64(len(dirs.Root))
	h.MetadataOffset = h.RootOffset + h.RootLength
	h.MetadataLength = uint64(len(metaCompressed))
	h.LeafDirectoryOffset = h.MetadataOffset + h.MetadataLength
	h.LeafDirectoryLength = uint64(len(dirs.Leaves))
	h.TileDataOffset = h.LeafDirectoryOffset + h.LeafDirectoryLength
	h.TileDataLength = uint64(len(result.Data))

	if err := h.Encode(w); err != nil {
		return err
	}
	if _, err := w.Write(dirs.Root); err != nil {
		return fmt.Errorf("writing root directory: %w", err)
	}
	if _, err := w.Write(metaCompressed); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	if len(dirs.Leaves) > 0 {
		if _, err := w.Write(dirs.Leaves); err != nil {
			return fmt.Errorf("writing leaf directories: %w", err)
		}
	}
	if _, err := w.Write(result.Data); err != nil {
		return fmt.Errorf("writing tile data: %w", err)
	}

	a.header = h

	return nil
}
