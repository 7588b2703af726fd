package pmtiles

import (
	"testing"
)

func TestZXYToHilbertTileIDFixtures(t *testing.T) {
	tests := []struct {
		z, x, y uint64
		want    uint64
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{1, 0, 1, 2},
		{1, 1, 1, 3},
		{1, 1, 0, 4},
		{2, 0, 0, 5},
	}

	for _, tc := range tests {
		got, err := ZXYToHilbertTileID(tc.z, tc.x, tc.y)
		if err != nil {
			t.Fatalf("ZXYToHilbertTileID(%d,%d,%d): %v", tc.z, tc.x, tc.y, err)
		}
		if got != tc.want {
			t.Errorf("ZXYToHilbertTileID(%d,%d,%d) = %d, want %d", tc.z, tc.x, tc.y, got, tc.want)
		}
	}
}

func TestZXYFromHilbertTileIDFixture(t *testing.T) {
	out, err := ZXYFromHilbertTileID(19078479)
	if err != nil {
		t.Fatalf("ZXYFromHilbertTileID: %v", err)
	}
	want := [3]uint64{12, 3423, 1763}
	if out != want {
		t.Errorf("ZXYFromHilbertTileID(19078479) = %v, want %v", out, want)
	}
}

func TestZXYToHilbertTileIDRejectsExcessiveZoom(t *testing.T) {
	if _, err := ZXYToHilbertTileID(MaxZ+1, 0, 0); err == nil {
		t.Errorf("expected error for zoom exceeding MaxZ")
	}
}

func TestZXYToHilbertTileIDAllowsMaxZ(t *testing.T) {
	if _, err := ZXYToHilbertTileID(MaxZ, 0, 0); err != nil {
		t.Errorf("expected zoom %d to be within bounds: %v", MaxZ, err)
	}
}

func TestFastMatchesOriginal(t *testing.T) {
	t.Parallel()

	inputs := [][3]uint64{
		{3, 1, 3},
		{5, 7, 12},
		{10, 205, 342},
	}

	for _, in := range inputs {
		z, x, y := in[0], in[1], in[2]

		origID, err := ZXYToHilbertTileID(z, x, y)
		if err != nil {
			t.Errorf("original ZXYToHilbertTileID(%d, %d, %d) returned error: %v", z, x, y, err)
			continue
		}
		fastID, err := FastZXYToHilbertTileID(z, x, y)
		if err != nil {
			t.Errorf("FastZXYToHilbertTileID(%d, %d, %d) returned error: %v", z, x, y, err)
			continue
		}
		if origID != fastID {
			t.Errorf("encode mismatch for (%d, %d, %d): original=%d fast=%d", z, x, y, origID, fastID)
		}

		// Test decoding
		origOut, err := ZXYFromHilbertTileID(origID)
		if err != nil {
			t.Errorf("original ZXYFromHilbertTileID(%d) returned error: %v", origID, err)
			continue
		}

		fastOut, err := FastZXYfromHilbertTileID(fastID)
		if err != nil {
			t.Errorf("fast FastZXYFromHilbertTileID(%d) returned error: %v", fastID, err)
			continue
		}

		if origOut != fastOut {
			t.Errorf("decode mismatch for ID %d: original=%v fast=%v", origID, origOut, fastOut)
			continue
		}

		if fastOut != in {
			t.Errorf("decode mismatch for ID %d: input=%v fast=%v", origID, in, fastOut)
			continue
		}
		if origOut != in {
			t.Errorf("decode mismatch for ID %d: input=%v original=%v", origID, in, origOut)
			continue
		}
	}
}
