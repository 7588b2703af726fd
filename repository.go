package pmtiles

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/brunomvsouza/singleflight"
	"github.com/dgraph-io/ristretto/v2"
)

// Repository is the cached, request-coalescing read path shared by every
// Source: it keeps decoded directories in a Ristretto cache keyed by
// (etag, offset, length) and coalesces concurrent lookups of the same
// tile behind a singleflight group so a cache stampede on a popular tile
// costs one directory walk, not N.
type Repository struct {
	cache *ristretto.Cache[string, *Directory]
	tiles singleflight.Group[string, []byte]
}

// NewRepository builds a Repository backed by the default directory
// cache (tunable via the PMTILES_RISTRETTO_* environment variables, see
// NewDefaultCache).
func NewRepository() (*Repository, error) {
	cache, err := NewDefaultCache()
	if err != nil {
		return nil, fmt.Errorf("creating directory cache: %w", err)
	}

	return &Repository{cache: cache}, nil
}

// DirectoryAt returns the decoded directory at ranger, fetching and
// decompressing it through reader on a cache miss.
func (d *Repository) DirectoryAt(
	ctx context.Context,
	header HeaderV3,
	reader RangeReader,
	ranger Ranger,
	decompress DecompressFunc,
) (*Directory, error) {
	key := fmt.Sprintf(cacheKeyTemplate, header.Etag, ranger.Offset(), ranger.Length())
	if dir, ok := d.cache.Get(key); ok {
		return dir, nil
	}

	dir, err := NewDirectory(ctx, header, reader, ranger, decompress)
	if err != nil {
		return &Directory{}, err
	}

	// Ristretto admission is probabilistic: a rejected Set just means the
	// next lookup for this key pays another decode, not an error.
	_ = d.cache.Set(key, dir, 1)

	return dir, nil
}

// Tile resolves the tile at (z, x, y) by walking the directory tree
// starting at the root, descending through at most two leaf levels per
// the spec's bounded directory depth.
func (d *Repository) Tile(
	ctx context.Context,
	header HeaderV3,
	reader RangeReader,
	decompress DecompressFunc,
	z, x, y uint64,
) ([]byte, error) {
	if z < uint64(header.MinZoom) || z > uint64(header.MaxZoom) {
		return nil, fmt.Errorf(
			"%w: zoom %d outside archive range [%d,%d]",
			ErrUnsupportedZoom, z, header.MinZoom, header.MaxZoom,
		)
	}

	key := buildSingleflightKey(header.Etag, z, x, y)
	data, err, _ := d.tiles.Do(key, func() ([]byte, error) {
		return d.resolveTile(ctx, header, reader, decompress, z, x, y)
	})
	return data, err
}

func (d *Repository) resolveTile(
	ctx context.Context,
	header HeaderV3,
	reader RangeReader,
	decompress DecompressFunc,
	z, x, y uint64,
) ([]byte, error) {
	tileID, err := ZXYToHilbertTileID(z, x, y)
	if err != nil {
		return nil, fmt.Errorf("resolving hilbert tile id from z:%d x:%d y:%d: %w", z, x, y, err)
	}

	dirOffset := header.RootOffset
	dirLength := header.RootLength

	const maxDirectoryDepth = 3
	for range maxDirectoryDepth {
		dir, err := d.DirectoryAt(ctx, header, reader, NewRange(dirOffset, dirLength), decompress)
		if err != nil {
			return nil, err
		}

		entry, err := dir.FindTile(tileID)
		if err != nil {
			return nil, err
		}

		if !entry.IsLeafDirEntry() {
			data, err := reader.ReadRange(ctx, NewRange(header.TileDataOffset+entry.Offset, entry.Length))
			if err != nil {
				return nil, fmt.Errorf("reading tile data: %w", err)
			}

			decompReader, err := decompress(bytes.NewReader(data), header.TileCompression)
			if err != nil {
				return nil, fmt.Errorf("decompressing tile: %w", err)
			}

			tileData, err := io.ReadAll(decompReader)
			if err != nil {
				return nil, fmt.Errorf("reading decompressed tile: %w", err)
			}

			if closer, ok := decompReader.(io.Closer); ok {
				if cerr := closer.Close(); cerr != nil {
					return nil, fmt.Errorf("closing tile decompressor: %w", cerr)
				}
			}

			return tileData, nil
		}

		dirOffset = header.LeafDirectoryOffset + entry.Offset
		dirLength = entry.Length
	}

	return nil, fmt.Errorf("%w: maximum directory depth exceeded", ErrCorruptDirectory)
}

func (d *Repository) Flush() {
	d.cache.Clear()
}

func (d *Repository) Close() {
	d.cache.Close()
}
