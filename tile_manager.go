package pmtiles

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"sort"
)

// tileRef is what a TileManager knows about one addressed tile ID: either
// its content has been staged in memory and deduplicated by content hash,
// or it was added as a pass-through reference into an existing archive's
// tile-data section.
type tileRef struct {
	hash         uint64
	hasHash      bool
	offset       uint64
	length       uint32
	hasOffsetLen bool
}

// FinishResult is the output of TileManager.Finish: the assembled tile
// data blob plus the directory entries addressing it, and the counters
// that end up in the archive header.
type FinishResult struct {
	Data                []byte
	NumAddressedTiles   uint64
	NumTileEntries      uint64
	NumTileContentItems uint64
	Directory           []Entry
}

// TileManager accumulates tiles for a PMTiles archive under construction:
// it deduplicates identical tile content by a 64-bit content hash, merges
// runs of identical adjacent tiles into a single directory entry, and
// produces the final tile-data blob and directory on Finish.
type TileManager struct {
	tileByID    map[uint64]tileRef
	dataByHash  map[uint64][]byte
	idsByHash   map[uint64]map[uint64]struct{}
	reader      RangeReader
	decompress  DecompressFunc
	compression Compression
}

// NewTileManager returns an empty TileManager. reader/decompress/tileComp
// are only needed if AddOffsetTile references will later be resolved
// through GetTile; a manager used purely for writing can pass a nil
// reader.
func NewTileManager(reader RangeReader, decompress DecompressFunc, tileCompression Compression) *TileManager {
	return &TileManager{
		tileByID:    make(map[uint64]tileRef),
		dataByHash:  make(map[uint64][]byte),
		idsByHash:   make(map[uint64]map[uint64]struct{}),
		reader:      reader,
		decompress:  decompress,
		compression: tileCompression,
	}
}

func contentHash(data []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64()
}

// AddTile stages data under tileID, deduplicating against any tile
// already holding identical content. Any prior reference for tileID
// (hash-backed or offset-backed) is replaced.
func (m *TileManager) AddTile(tileID uint64, data []byte) {
	m.RemoveTile(tileID)

	hash := contentHash(data)
	m.tileByID[tileID] = tileRef{hash: hash, hasHash: true}

	if _, ok := m.dataByHash[hash]; !ok {
		m.dataByHash[hash] = data
	}
	if m.idsByHash[hash] == nil {
		m.idsByHash[hash] = make(map[uint64]struct{})
	}
	m.idsByHash[hash][tileID] = struct{}{}
}

// AddOffsetTile registers tileID as addressing an existing
// (offset, length) range in a source archive's tile-data section,
// without staging its content in memory. No hash is computed here; the
// content is hashed and deduplicated against other tiles only in Finish.
func (m *TileManager) AddOffsetTile(tileID, offset uint64, length uint32) {
	m.RemoveTile(tileID)
	m.tileByID[tileID] = tileRef{offset: offset, length: length, hasOffsetLen: true}
}

// RemoveTile drops any reference held for tileID, cleaning up the hash
// indexes if this was the last tile referencing that content.
func (m *TileManager) RemoveTile(tileID uint64) {
	ref, ok := m.tileByID[tileID]
	if !ok {
		return
	}
	delete(m.tileByID, tileID)

	if !ref.hasHash {
		return
	}

	ids := m.idsByHash[ref.hash]
	delete(ids, tileID)
	if len(ids) == 0 {
		delete(m.idsByHash, ref.hash)
		delete(m.dataByHash, ref.hash)
	}
}

// GetTile returns the (possibly decompressed) content of tileID. Staged
// tiles are returned as-is; offset-backed tiles are fetched and
// decompressed through the manager's reader, which must have been set via
// NewTileManager.
func (m *TileManager) GetTile(ctx context.Context, tileID uint64) ([]byte, error) {
	ref, ok := m.tileByID[tileID]
	if !ok {
		return nil, fmt.Errorf("%w: tile id %d", ErrNotFound, tileID)
	}

	if ref.hasHash {
		return m.dataByHash[ref.hash], nil
	}

	if m.reader == nil {
		return nil, ErrMissingReader
	}

	raw, err := m.reader.ReadRange(ctx, NewRange(ref.offset, uint64(ref.length)))
	if err != nil {
		return nil, fmt.Errorf("reading referenced tile: %w", err)
	}

	r, err := m.decompress(bytes.NewReader(raw), m.compression)
	if err != nil {
		return nil, fmt.Errorf("decompressing referenced tile: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decompressed tile: %w", err)
	}
	if closer, ok := r.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			return nil, fmt.Errorf("closing tile decompressor: %w", cerr)
		}
	}
	return out, nil
}

// TileIDs returns every addressed tile ID, unsorted.
func (m *TileManager) TileIDs() []uint64 {
	ids := make([]uint64, 0, len(m.tileByID))
	for id := range m.tileByID {
		ids = append(ids, id)
	}
	return ids
}

// NumAddressedTiles returns the number of distinct tile IDs held.
func (m *TileManager) NumAddressedTiles() int {
	return len(m.tileByID)
}

// Finish sorts every addressed tile by ID, assembles the deduplicated
// tile-data blob, and produces the run-length-merged directory entries
// addressing it.
func (m *TileManager) Finish(ctx context.Context) (*FinishResult, error) {
	ids := m.TileIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var data bytes.Buffer
	offsetByIdentity := make(map[uint64]uint64) // content hash -> offset already written
	var entries []Entry
	numTileContentItems := uint64(0)

	for _, id := range ids {
		ref := m.tileByID[id]

		var offset uint64
		var length uint32

		switch {
		case ref.hasHash:
			content := m.dataByHash[ref.hash]
			if off, ok := offsetByIdentity[ref.hash]; ok {
				offset = off
				length = uint32(len(content)) //nolint:gosec
			} else {
				offset = uint64(data.Len())
				if _, err := data.Write(content); err != nil {
					return nil, fmt.Errorf("writing tile content: %w", err)
				}
				offsetByIdentity[ref.hash] = offset
				length = uint32(len(content)) //nolint:gosec
				numTileContentItems++
			}
		case ref.hasOffsetLen:
			// Copy the stored bytes as they are, so the blob keeps the
			// archive's tile compression.
			if m.reader == nil {
				return nil, ErrMissingReader
			}
			raw, err := m.reader.ReadRange(ctx, NewRange(ref.offset, uint64(ref.length)))
			if err != nil {
				return nil, fmt.Errorf("reading referenced tile: %w", err)
			}
			hash := contentHash(raw)
			if off, ok := offsetByIdentity[hash]; ok {
				offset = off
				length = uint32(len(raw)) //nolint:gosec
			} else {
				offset = uint64(data.Len())
				if _, err := data.Write(raw); err != nil {
					return nil, fmt.Errorf("writing tile content: %w", err)
				}
				offsetByIdentity[hash] = offset
				length = uint32(len(raw)) //nolint:gosec
				numTileContentItems++
			}
		default:
			return nil, fmt.Errorf("%w: tile id %d has no content reference", ErrCorruptDirectory, id)
		}

		entries = pushEntry(entries, Entry{TileID: id, Offset: offset, Length: uint64(length), RunLength: 1})
	}

	return &FinishResult{
		Data:                data.Bytes(),
		NumAddressedTiles:   uint64(len(ids)),
		NumTileEntries:      uint64(len(entries)),
		NumTileContentItems: numTileContentItems,
		Directory:           entries,
	}, nil
}

// pushEntry appends next to entries, extending the previous entry's run
// length in place when next is the immediate successor tile ID pointing
// at the same (Offset, Length) byte range - the run-length merge that
// keeps directories compact for runs of adjacent identical tiles.
func pushEntry(entries []Entry, next Entry) []Entry {
	if len(entries) > 0 {
		prev := &entries[len(entries)-1]
		if prev.TileID+uint64(prev.RunLength) == next.TileID &&
			prev.Offset == next.Offset && prev.Length == next.Length {
			prev.RunLength++
			return entries
		}
	}
	return append(entries, next)
}
