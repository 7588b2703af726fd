package pmtiles

import (
	"context"
	"fmt"
)

// OffsetLength is a resolved (offset, length) byte range into the
// tile-data section, the flattened result of walking a directory tree
// down to its tile-holding leaves.
type OffsetLength struct {
	Offset uint64
	Length uint64
}

// TileIDFilter restricts ReadDirectories to the inclusive [Start, End]
// tile ID range; a zero-value filter (Start == End == 0 with Enabled
// false) matches everything.
type TileIDFilter struct {
	Enabled bool
	Start   uint64
	End     uint64
}

func (f TileIDFilter) excludes(entry Entry) bool {
	if !f.Enabled {
		return false
	}
	first, _ := entry.TileIDRange()
	return first > f.End
}

// ReadDirectories walks the root directory and every leaf directory it
// points to, returning every addressed tile ID mapped to its resolved
// byte range in the tile-data section. Leaves entirely past filter.End
// are skipped without being fetched.
func ReadDirectories(
	ctx context.Context,
	reader RangeReader,
	header HeaderV3,
	decompress DecompressFunc,
	filter TileIDFilter,
) (map[uint64]OffsetLength, error) {
	out := make(map[uint64]OffsetLength)

	root, err := NewDirectory(ctx, header, reader, NewRange(header.RootOffset, header.RootLength), decompress)
	if err != nil {
		return nil, fmt.Errorf("reading root directory: %w", err)
	}

	if err := readDirRec(ctx, reader, header, decompress, root, filter, out); err != nil {
		return nil, err
	}

	return out, nil
}

func readDirRec(
	ctx context.Context,
	reader RangeReader,
	header HeaderV3,
	decompress DecompressFunc,
	dir *Directory,
	filter TileIDFilter,
	out map[uint64]OffsetLength,
) error {
	for entry := range dir.IterEntries() {
		if filter.excludes(entry) {
			continue
		}

		if entry.IsLeafDirEntry() {
			leaf, err := NewDirectory(
				ctx, header, reader,
				NewRange(header.LeafDirectoryOffset+entry.Offset, entry.Length),
				decompress,
			)
			if err != nil {
				return fmt.Errorf("reading leaf directory at tile id %d: %w", entry.TileID, err)
			}
			if err := readDirRec(ctx, reader, header, decompress, leaf, filter, out); err != nil {
				return err
			}
			continue
		}

		first, last := entry.TileIDRange()
		for id := first; id <= last; id++ {
			if filter.Enabled && (id < filter.Start || id > filter.End) {
				continue
			}
			out[id] = OffsetLength{Offset: entry.Offset, Length: entry.Length}
		}
	}

	return nil
}
