package pmtiles

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"sort"
)

// Entry is one row of a directory: the tile IDs [TileID, TileID+RunLength)
// all resolve to the same (Offset, Length) byte range in the tile-data
// section, or, when RunLength is 0, Offset/Length instead address a leaf
// directory.
type Entry struct {
	TileID    uint64 `json:"tile_id"`
	Offset    uint64 `json:"offset"`
	Length    uint64 `json:"length"`
	RunLength uint32 `json:"run_length"`
}

func (e Entry) String() string {
	jsonBytes, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return `{"error": "failed to marshal entry"}`
	}
	return string(jsonBytes)
}

// TileIDRange returns the inclusive [first, last] tile IDs this entry
// addresses.
func (e Entry) TileIDRange() (first, last uint64) {
	if e.RunLength == 0 {
		return e.TileID, e.TileID
	}
	return e.TileID, e.TileID + uint64(e.RunLength) - 1
}

// IsLeafDirEntry reports whether Offset/Length point at a leaf directory
// rather than tile data.
func (e Entry) IsLeafDirEntry() bool {
	return e.RunLength == 0
}

// Entries is a directory's entry list, decoded from the columnar varint
// wire format shared by root and leaf directories.
type Entries []Entry

// deserialize decodes br into e, replacing its contents.
func (e *Entries) deserialize(br *bufio.Reader) error {
	entries, err := readEntries(br)
	if err != nil {
		return fmt.Errorf("cannot deserialize entries: %w", err)
	}
	*e = entries
	return nil
}

// readEntries decodes the four-column varint layout described in the wire
// format: a count, then TileID deltas, then run lengths, then tile
// lengths, then offsets (each stored +1, with 0 meaning "immediately
// follows the previous entry").
func readEntries(br *bufio.Reader) ([]Entry, error) {
	count, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("reading entry count: %w", err)
	}

	entries := make([]Entry, count)

	var lastID uint64
	for i := range entries {
		delta, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("reading tile id delta at %d: %w", i, err)
		}
		entries[i].TileID = lastID + delta
		lastID = entries[i].TileID
	}

	for i := range entries {
		runLength, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("reading run length at %d: %w", i, err)
		}
		entries[i].RunLength = uint32(runLength) //nolint:gosec
	}

	for i := range entries {
		length, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("reading length at %d: %w", i, err)
		}
		entries[i].Length = length
	}

	for i := range entries {
		offset, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("reading offset at %d: %w", i, err)
		}
		if offset == 0 && i > 0 {
			entries[i].Offset = entries[i-1].Offset + entries[i-1].Length
		} else {
			if offset == 0 {
				return nil, fmt.Errorf("%w: first entry offset has no predecessor", ErrCorruptDirectory)
			}
			entries[i].Offset = offset - 1
		}
	}

	return entries, nil
}

// writeEntries encodes entries in the same columnar varint layout
// readEntries decodes, mirroring Directory entries' to_writer in the
// reference implementation.
func writeEntries(w io.Writer, entries []Entry) error {
	var tmp [binary.MaxVarintLen64]byte
	putUvarint := func(v uint64) error {
		n := binary.PutUvarint(tmp[:], v)
		_, err := w.Write(tmp[:n])
		return err
	}

	if err := putUvarint(uint64(len(entries))); err != nil {
		return fmt.Errorf("writing entry count: %w", err)
	}

	var lastID uint64
	for _, e := range entries {
		if err := putUvarint(e.TileID - lastID); err != nil {
			return fmt.Errorf("writing tile id delta: %w", err)
		}
		lastID = e.TileID
	}

	for _, e := range entries {
		if err := putUvarint(uint64(e.RunLength)); err != nil {
			return fmt.Errorf("writing run length: %w", err)
		}
	}

	for _, e := range entries {
		if err := putUvarint(e.Length); err != nil {
			return fmt.Errorf("writing length: %w", err)
		}
	}

	for i, e := range entries {
		if i > 0 && e.Offset == entries[i-1].Offset+entries[i-1].Length {
			if err := putUvarint(0); err != nil {
				return fmt.Errorf("writing offset: %w", err)
			}
			continue
		}
		if err := putUvarint(e.Offset + 1); err != nil {
			return fmt.Errorf("writing offset: %w", err)
		}
	}

	return nil
}

func NewDirectory(
	ctx context.Context,
	header HeaderV3,
	reader RangeReader,
	ranger Ranger,
	decompress DecompressFunc,
) (dir *Directory, err error) {
	data, err := reader.ReadRange(ctx, ranger)
	if err != nil {
		return &Directory{}, fmt.Errorf("reading directory from source: %w", err)
	}

	decompReader, err := decompress(bytes.NewReader(data), header.InternalCompression)
	if err != nil {
		return &Directory{}, fmt.Errorf("decompressing directory: %w", err)
	}
	if closer, ok := decompReader.(io.Closer); ok {
		defer func() {
			if cerr := closer.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing decompressed reader: %w", cerr)
			}
		}()
	}

	dir = &Directory{}
	if err := dir.deserialize(decompReader); err != nil {
		return &Directory{}, fmt.Errorf("deserializing directory: %w", err)
	}

	dir.key = fmt.Sprintf(cacheKeyTemplate, header.Etag, ranger.Offset(), ranger.Length())

	return dir, nil
}

// Directory is a decoded root or leaf directory: a sorted list of Entry
// rows keyed by tile ID, searchable in O(log n).
type Directory struct {
	key     string
	size    uint64
	entries []Entry
}

func (d *Directory) Key() string {
	return d.key
}

func (d *Directory) Size() uint64 {
	return d.size
}

func (d *Directory) IterEntries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, v := range d.entries {
			if !yield(v) {
				return
			}
		}
	}
}

// FindTile returns the entry covering tileID, if any.
func (d *Directory) FindTile(tileID uint64) (*Entry, error) {
	i := sort.Search(len(d.entries), func(i int) bool {
		return d.entries[i].TileID > tileID
	})

	if i == 0 {
		return nil, fmt.Errorf("%w: tile id %d", ErrNotFound, tileID)
	}

	e := d.entries[i-1]
	if e.IsLeafDirEntry() {
		// A leaf pointer addresses every tile id from e.TileID up to (but
		// not including) the next entry's TileID, not just e.TileID
		// itself; sort.Search above already guarantees tileID falls in
		// that span, so any tileID >= e.TileID here is a match.
		return &e, nil
	}

	_, last := e.TileIDRange()
	if tileID >= e.TileID && tileID <= last {
		return &e, nil
	}
	return nil, fmt.Errorf("%w: tile id %d", ErrNotFound, tileID)
}

func (d *Directory) deserialize(r io.Reader) error {
	br := bufio.NewReader(r)
	var entries Entries
	if err := entries.deserialize(br); err != nil {
		return err
	}
	d.entries = entries
	d.size = uint64(len(entries))
	return nil
}

// Encode writes the directory's columnar wire format to w.
func (d *Directory) Encode(w io.Writer) error {
	return writeEntries(w, d.entries)
}
