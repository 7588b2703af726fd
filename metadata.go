package pmtiles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Metadata is the archive's metadata section: an arbitrary JSON object.
// PMTiles does not constrain its shape beyond "a JSON object", so callers
// that want a typed view should decode Raw into their own struct, or use
// WellKnown for the handful of keys most tools agree on.
type Metadata struct {
	Raw json.RawMessage
}

func (m *Metadata) ReadFrom(
	ctx context.Context,
	header HeaderV3,
	r RangeReader,
	decompress DecompressFunc,
) error {
	if header.MetadataLength == 0 {
		m.Raw = json.RawMessage(`{}`)
		return nil
	}

	data, err := r.ReadRange(ctx, NewRange(header.MetadataOffset, header.MetadataLength))
	if err != nil {
		return fmt.Errorf("reading metadata range: %w", err)
	}

	decompReader, err := decompress(bytes.NewReader(data), header.InternalCompression)
	if err != nil {
		return fmt.Errorf("decompressing metadata: %w", err)
	}

	jsonData, err := io.ReadAll(decompReader)
	if err != nil {
		return fmt.Errorf("reading decompressed metadata: %w", err)
	}

	if closer, ok := decompReader.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			return fmt.Errorf("closing decompression reader: %w", cerr)
		}
	}

	if !json.Valid(jsonData) {
		return fmt.Errorf("metadata section is not valid JSON")
	}

	m.Raw = json.RawMessage(jsonData)
	return nil
}

// Decode unmarshals the metadata's raw JSON into v, e.g. a caller-defined
// struct or WellKnownMetadata.
func (m Metadata) Decode(v any) error {
	if len(m.Raw) == 0 {
		return json.Unmarshal([]byte(`{}`), v)
	}
	return json.Unmarshal(m.Raw, v)
}

// WellKnown decodes the metadata into the subset of fields most PMTiles
// producers agree on (name, description, attribution, vector_layers...).
// Any keys outside this set are silently ignored; use Raw/Decode for
// producer-specific extensions.
func (m Metadata) WellKnown() (WellKnownMetadata, error) {
	var w WellKnownMetadata
	err := m.Decode(&w)
	return w, err
}

func (m Metadata) String() string {
	if len(m.Raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, m.Raw, "", "  "); err != nil {
		return string(m.Raw)
	}
	return buf.String()
}

// WellKnownMetadata is the conventional, but not spec-mandated, shape of
// a PMTiles metadata object as produced by tippecanoe and go-pmtiles.
type WellKnownMetadata struct {
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	Attribution  string `json:"attribution,omitempty"`
	Type         string `json:"type,omitempty"`
	Version      string `json:"version,omitempty"`
	VectorLayers []any  `json:"vector_layers,omitempty"`
}

// EncodeMetadata marshals v to compact JSON, the form an archive writer
// stores in the metadata section (before compression).
func EncodeMetadata(v any) ([]byte, error) {
	if v == nil {
		return []byte(`{}`), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return data, nil
}
