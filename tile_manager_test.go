package pmtiles

import (
	"bytes"
	"errors"
	"testing"
)

func newTestTileManager() *TileManager {
	return NewTileManager(nil, nil, CompressionNone)
}

func TestTileManagerGetTileNone(t *testing.T) {
	m := newTestTileManager()
	if _, err := m.GetTile(t.Context(), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTileManagerGetTileSome(t *testing.T) {
	m := newTestTileManager()
	m.AddTile(1, []byte("hello"))

	got, err := m.GetTile(t.Context(), 1)
	if err != nil {
		t.Fatalf("GetTile: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestTileManagerAddTile(t *testing.T) {
	m := newTestTileManager()
	m.AddTile(1, []byte("a"))

	if m.NumAddressedTiles() != 1 {
		t.Errorf("expected 1 addressed tile, got %d", m.NumAddressedTiles())
	}
}

func TestTileManagerAddTileDedup(t *testing.T) {
	m := newTestTileManager()
	m.AddTile(1, []byte("same"))
	m.AddTile(2, []byte("same"))

	if len(m.dataByHash) != 1 {
		t.Errorf("expected identical content to dedup to one hash bucket, got %d", len(m.dataByHash))
	}
	if m.NumAddressedTiles() != 2 {
		t.Errorf("expected 2 addressed tiles, got %d", m.NumAddressedTiles())
	}
}

func TestTileManagerAddTileUpdate(t *testing.T) {
	m := newTestTileManager()
	m.AddTile(1, []byte("first"))
	m.AddTile(1, []byte("second"))

	got, err := m.GetTile(t.Context(), 1)
	if err != nil {
		t.Fatalf("GetTile: %v", err)
	}
	if !bytes.Equal(got, []byte("second")) {
		t.Errorf("expected updated content %q, got %q", "second", got)
	}
	if len(m.dataByHash) != 1 {
		t.Errorf("expected old content to be cleaned up, got %d hash buckets", len(m.dataByHash))
	}
}

func TestTileManagerRemoveTile(t *testing.T) {
	m := newTestTileManager()
	m.AddTile(1, []byte("x"))
	m.RemoveTile(1)

	if m.NumAddressedTiles() != 0 {
		t.Errorf("expected 0 addressed tiles after remove, got %d", m.NumAddressedTiles())
	}
	if len(m.dataByHash) != 0 {
		t.Errorf("expected hash index cleaned up, got %d", len(m.dataByHash))
	}
}

func TestTileManagerRemoveTileNonExistent(t *testing.T) {
	m := newTestTileManager()
	m.RemoveTile(999) // must not panic
}

func TestTileManagerRemoveTileDupe(t *testing.T) {
	m := newTestTileManager()
	m.AddTile(1, []byte("same"))
	m.AddTile(2, []byte("same"))
	m.RemoveTile(1)

	if m.NumAddressedTiles() != 1 {
		t.Errorf("expected 1 addressed tile remaining, got %d", m.NumAddressedTiles())
	}
	if len(m.dataByHash) != 1 {
		t.Errorf("expected shared content to survive removal of one referent, got %d", len(m.dataByHash))
	}
}

func TestTileManagerFinish(t *testing.T) {
	m := newTestTileManager()
	m.AddTile(0, []byte("aaa"))
	m.AddTile(1, []byte("bbb"))

	result, err := m.Finish(t.Context())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if result.NumAddressedTiles != 2 {
		t.Errorf("expected 2 addressed tiles, got %d", result.NumAddressedTiles)
	}
	if result.NumTileEntries != 2 {
		t.Errorf("expected 2 directory entries, got %d", result.NumTileEntries)
	}
	if result.NumTileContentItems != 2 {
		t.Errorf("expected 2 distinct content items, got %d", result.NumTileContentItems)
	}
	if len(result.Data) != 6 {
		t.Errorf("expected 6 bytes of tile data, got %d", len(result.Data))
	}
}

func TestTileManagerFinishDupes(t *testing.T) {
	m := newTestTileManager()
	m.AddTile(0, []byte("aaa"))
	m.AddTile(1, []byte("bbb"))
	m.AddTile(2, []byte("aaa"))

	result, err := m.Finish(t.Context())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(result.Data) != 6 {
		t.Errorf("expected deduplicated data length 6, got %d", len(result.Data))
	}
	if len(result.Directory) != 3 {
		t.Fatalf("expected 3 directory entries, got %d", len(result.Directory))
	}
	if result.NumTileContentItems != 2 {
		t.Errorf("expected 2 distinct content items, got %d", result.NumTileContentItems)
	}
	if result.Directory[0].Offset != result.Directory[2].Offset {
		t.Errorf("expected tile 0 and tile 2 to share an offset, got %d and %d",
			result.Directory[0].Offset, result.Directory[2].Offset)
	}
}

func TestTileManagerFinishRunLength(t *testing.T) {
	m := newTestTileManager()
	m.AddTile(0, []byte("same"))
	m.AddTile(1, []byte("same"))
	m.AddTile(2, []byte("same"))

	result, err := m.Finish(t.Context())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(result.Directory) != 1 {
		t.Fatalf("expected a single run-length-merged entry, got %d", len(result.Directory))
	}
	if result.Directory[0].RunLength != 3 {
		t.Errorf("expected run length 3, got %d", result.Directory[0].RunLength)
	}
	if result.NumTileEntries != 1 {
		t.Errorf("expected 1 tile entry, got %d", result.NumTileEntries)
	}
	if result.NumAddressedTiles != 3 {
		t.Errorf("expected 3 addressed tiles, got %d", result.NumAddressedTiles)
	}
}

func TestTileManagerFinishClustered(t *testing.T) {
	m := newTestTileManager()
	m.AddTile(5, []byte("e"))
	m.AddTile(1, []byte("a"))
	m.AddTile(3, []byte("c"))

	result, err := m.Finish(t.Context())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(result.Directory) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(result.Directory))
	}
	for i := 1; i < len(result.Directory); i++ {
		if result.Directory[i].TileID <= result.Directory[i-1].TileID {
			t.Errorf("expected directory sorted by tile id ascending, got %+v", result.Directory)
		}
	}
}
