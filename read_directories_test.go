package pmtiles

import (
	"bytes"
	"context"
	"testing"
)

// memRangeReader serves byte ranges out of an in-memory buffer, letting
// directory-tree tests build a whole tiny archive layout without a file.
type memRangeReader struct {
	buf []byte
}

func (m *memRangeReader) ReadRange(_ context.Context, r Ranger) ([]byte, error) {
	end := r.Offset() + r.Length()
	if end > uint64(len(m.buf)) {
		end = uint64(len(m.buf))
	}
	return m.buf[r.Offset():end], nil
}

func buildTestArchiveBuffer(t *testing.T, rootEntries, leafEntries []Entry) (*memRangeReader, HeaderV3) {
	t.Helper()

	leafBytes, err := encodeDirectory(leafEntries, CompressionGZIP)
	if err != nil {
		t.Fatalf("encoding leaf directory: %v", err)
	}

	patchedRoot := make([]Entry, len(rootEntries))
	copy(patchedRoot, rootEntries)
	for i := range patchedRoot {
		patchedRoot[i].Length = uint64(len(leafBytes))
	}

	rootBytes, err := encodeDirectory(patchedRoot, CompressionGZIP)
	if err != nil {
		t.Fatalf("encoding root directory: %v", err)
	}

	var buf bytes.Buffer
	buf.Write(rootBytes)
	leafOffset := uint64(buf.Len())
	buf.Write(leafBytes)

	header := HeaderV3{
		Etag:                "test",
		InternalCompression: CompressionGZIP,
		RootOffset:          0,
		RootLength:          uint64(len(rootBytes)),
		LeafDirectoryOffset: leafOffset,
		LeafDirectoryLength: uint64(len(leafBytes)),
	}

	return &memRangeReader{buf: buf.Bytes()}, header
}

func TestReadDirectoriesFlatRoot(t *testing.T) {
	entries := []Entry{
		{TileID: 0, Offset: 0, Length: 10, RunLength: 1},
		{TileID: 1, Offset: 10, Length: 20, RunLength: 2},
		{TileID: 5, Offset: 30, Length: 5, RunLength: 1},
	}

	header := HeaderV3{Etag: "t", InternalCompression: CompressionGZIP}
	encoded, err := encodeDirectory(entries, CompressionGZIP)
	if err != nil {
		t.Fatalf("encodeDirectory: %v", err)
	}
	header.RootLength = uint64(len(encoded))

	reader := &memRangeReader{buf: encoded}

	got, err := ReadDirectories(t.Context(), reader, header, Decompress, TileIDFilter{})
	if err != nil {
		t.Fatalf("ReadDirectories: %v", err)
	}

	want := map[uint64]OffsetLength{
		0: {Offset: 0, Length: 10},
		1: {Offset: 10, Length: 20},
		2: {Offset: 10, Length: 20},
		5: {Offset: 30, Length: 5},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d resolved tile ids, got %d", len(want), len(got))
	}
	for id, ol := range want {
		if got[id] != ol {
			t.Errorf("tile %d: got %+v, want %+v", id, got[id], ol)
		}
	}
}

func TestReadDirectoriesWithLeaf(t *testing.T) {
	rootEntries := []Entry{
		{TileID: 0, Offset: 0, Length: 0, RunLength: 0}, // leaf pointer, Length patched below
	}
	leafEntries := []Entry{
		{TileID: 0, Offset: 100, Length: 50, RunLength: 1},
		{TileID: 3, Offset: 200, Length: 10, RunLength: 1},
	}

	reader, header := buildTestArchiveBuffer(t, rootEntries, leafEntries)

	got, err := ReadDirectories(t.Context(), reader, header, Decompress, TileIDFilter{})
	if err != nil {
		t.Fatalf("ReadDirectories: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 resolved tiles, got %d", len(got))
	}
	if got[0] != (OffsetLength{Offset: 100, Length: 50}) {
		t.Errorf("tile 0 mismatch: %+v", got[0])
	}
	if got[3] != (OffsetLength{Offset: 200, Length: 10}) {
		t.Errorf("tile 3 mismatch: %+v", got[3])
	}
}

func TestReadDirectoriesFilterBoundsWithinEntry(t *testing.T) {
	entries := []Entry{
		{TileID: 5, Offset: 0, Length: 10, RunLength: 10}, // covers ids 5..14
	}

	header := HeaderV3{Etag: "t", InternalCompression: CompressionGZIP}
	encoded, err := encodeDirectory(entries, CompressionGZIP)
	if err != nil {
		t.Fatalf("encodeDirectory: %v", err)
	}
	header.RootLength = uint64(len(encoded))

	reader := &memRangeReader{buf: encoded}

	got, err := ReadDirectories(t.Context(), reader, header, Decompress, TileIDFilter{Enabled: true, Start: 8, End: 12})
	if err != nil {
		t.Fatalf("ReadDirectories: %v", err)
	}

	want := map[uint64]OffsetLength{
		8:  {Offset: 0, Length: 10},
		9:  {Offset: 0, Length: 10},
		10: {Offset: 0, Length: 10},
		11: {Offset: 0, Length: 10},
		12: {Offset: 0, Length: 10},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d resolved tile ids within [8,12], got %d: %+v", len(want), len(got), got)
	}
	for id, ol := range want {
		if got[id] != ol {
			t.Errorf("tile %d: got %+v, want %+v", id, got[id], ol)
		}
	}
	if _, ok := got[5]; ok {
		t.Errorf("tile 5 is below filter.Start and should have been excluded")
	}
	if _, ok := got[14]; ok {
		t.Errorf("tile 14 is above filter.End and should have been excluded")
	}
}

func TestReadDirectoriesFilterPrunesLeaf(t *testing.T) {
	rootEntries := []Entry{
		{TileID: 0, Offset: 0, Length: 0, RunLength: 0},
		{TileID: 1000, Offset: 0, Length: 0, RunLength: 0},
	}
	leafEntries := []Entry{
		{TileID: 1000, Offset: 999, Length: 1, RunLength: 1},
	}

	reader, header := buildTestArchiveBuffer(t, rootEntries, leafEntries)

	got, err := ReadDirectories(t.Context(), reader, header, Decompress, TileIDFilter{Enabled: true, Start: 0, End: 5})
	if err != nil {
		t.Fatalf("ReadDirectories: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected filter to prune the out-of-range leaf entirely, got %d resolved tiles", len(got))
	}
}
