package pmtiles

import (
	"bytes"
	"context"
	"strconv"
	"testing"
)

func TestMetadataReadFromEmpty(t *testing.T) {
	header := HeaderV3{MetadataLength: 0}
	var m Metadata

	if err := m.ReadFrom(context.Background(), header, &mockRangeReader{}, Decompress); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if m.String() != "{}" {
		t.Errorf("expected empty metadata to render as {}, got %s", m.String())
	}
}

func TestMetadataReadFromAndWellKnown(t *testing.T) {
	payload := []byte(`{"name":"test layer","description":"d","vector_layers":[{"id":"roads"}]}`)
	compressed, err := CompressAll(CompressionGZIP, payload)
	if err != nil {
		t.Fatalf("CompressAll: %v", err)
	}

	reader := &mockRangeReader{data: map[string][]byte{
		"0:" + strconv.Itoa(len(compressed)): compressed,
	}}

	header := HeaderV3{
		MetadataOffset:      0,
		MetadataLength:      uint64(len(compressed)),
		InternalCompression: CompressionGZIP,
	}

	var m Metadata
	if err := m.ReadFrom(context.Background(), header, reader, Decompress); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	wk, err := m.WellKnown()
	if err != nil {
		t.Fatalf("WellKnown: %v", err)
	}
	if wk.Name != "test layer" {
		t.Errorf("expected name %q, got %q", "test layer", wk.Name)
	}
	if len(wk.VectorLayers) != 1 {
		t.Errorf("expected 1 vector layer, got %d", len(wk.VectorLayers))
	}
}

func TestEncodeMetadataRoundtrip(t *testing.T) {
	wk := WellKnownMetadata{Name: "x", Description: "y"}
	data, err := EncodeMetadata(wk)
	if err != nil {
		t.Fatalf("EncodeMetadata: %v", err)
	}

	var m Metadata
	m.Raw = data
	out, err := m.WellKnown()
	if err != nil {
		t.Fatalf("WellKnown: %v", err)
	}
	if out.Name != "x" || out.Description != "y" {
		t.Errorf("roundtrip mismatch: %+v", out)
	}
}

func TestEncodeMetadataNil(t *testing.T) {
	data, err := EncodeMetadata(nil)
	if err != nil {
		t.Fatalf("EncodeMetadata: %v", err)
	}
	if !bytes.Equal(data, []byte(`{}`)) {
		t.Errorf("expected {}, got %s", data)
	}
}
