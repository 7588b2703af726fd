package pmtiles

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/segmentio/ksuid"
)

const (
	HeaderOffset    = 0
	HeaderSizeBytes = 127

	latLonFactor = 1e7
)

func NewHeader(r io.Reader) (*HeaderV3, error) {
	h := &HeaderV3{}
	d := make([]byte, HeaderSizeBytes)
	_, err := io.ReadFull(r, d)
	if err != nil {
		return h, fmt.Errorf("reading header: %w", err)
	}
	if err := h.deserialize(d); err != nil {
		return h, err
	}
	return h, nil
}

// DefaultHeader returns the construction defaults a fresh archive starts
// from before AddTile/metadata/bounds are set: spec version 3, GZip for
// directories and metadata, no tile compression, unknown tile type, and
// the full-earth bounding box.
func DefaultHeader() HeaderV3 {
	h := HeaderV3{
		SpecVersion:         3,
		InternalCompression: CompressionGZIP,
		TileCompression:     CompressionNone,
		TileType:            TileTypeUnknown,
	}
	h.SetMinPos(-180, -85)
	h.SetMaxPos(180, 85)
	return h
}

func (h *HeaderV3) ReadFrom(r RangeReader) (err error) {
	b, err := r.ReadRange(
		context.Background(),
		NewRange(HeaderOffset, HeaderSizeBytes),
	)
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	newHeader, err := NewHeader(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if newHeader.Etag == "" {
		newHeader.Etag = ksuid.New().String()
	}

	*h = *newHeader

	return
}

func (h HeaderV3) String() string {
	jsonBytes, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return `{"error": "failed to marshal HeaderV3"}`
	}
	return string(jsonBytes)
}

func (h *HeaderV3) deserialize(d []byte) error {
	// 1) magic
	if string(d[0:7]) != "PMTiles" {
		return ErrBadMagic
	}

	// 2) version
	ver, err := h.version(d[7])
	if err != nil {
		return err
	}
	h.SpecVersion = ver

	// 3) big‑grained fields
	h.RootOffset = binary.LittleEndian.Uint64(d[8:16])
	h.RootLength = binary.LittleEndian.Uint64(d[16:24])
	h.MetadataOffset = binary.LittleEndian.Uint64(d[24:32])
	h.MetadataLength = binary.LittleEndian.Uint64(d[32:40])
	h.LeafDirectoryOffset = binary.LittleEndian.Uint64(d[40:48])
	h.LeafDirectoryLength = binary.LittleEndian.Uint64(d[48:56])
	h.TileDataOffset = binary.LittleEndian.Uint64(d[56:64])
	h.TileDataLength = binary.LittleEndian.Uint64(d[64:72])
	h.AddressedTilesCount = binary.LittleEndian.Uint64(d[72:80])
	h.TileEntriesCount = binary.LittleEndian.Uint64(d[80:88])
	h.TileContentsCount = binary.LittleEndian.Uint64(d[88:96])

	// 4) flags & enums
	h.Clustered = (d[96] == 0x1)
	h.InternalCompression = Compression(d[97])
	h.TileCompression = Compression(d[98])
	h.TileType = TileType(d[99])

	// 5) zoom & bounds
	h.MinZoom = d[100]
	h.MaxZoom = d[101]
	h.MinLonE7 = int32(binary.LittleEndian.Uint32(d[102:106])) //nolint:gosec
	h.MinLatE7 = int32(binary.LittleEndian.Uint32(d[106:110])) //nolint:gosec
	h.MaxLonE7 = int32(binary.LittleEndian.Uint32(d[110:114])) //nolint:gosec
	h.MaxLatE7 = int32(binary.LittleEndian.Uint32(d[114:118])) //nolint:gosec

	// 6) center point
	h.CenterZoom = d[118]
	h.CenterLonE7 = int32(binary.LittleEndian.Uint32(d[119:123])) //nolint:gosec
	h.CenterLatE7 = int32(binary.LittleEndian.Uint32(d[123:127])) //nolint:gosec

	return nil
}

// Encode writes the header's exact 127-byte on-disk layout to w. This is
// the write-side counterpart to deserialize.
func (h HeaderV3) Encode(w io.Writer) error {
	d := make([]byte, HeaderSizeBytes)

	copy(d[0:7], "PMTiles")
	d[7] = 3

	binary.LittleEndian.PutUint64(d[8:16], h.RootOffset)
	binary.LittleEndian.PutUint64(d[16:24], h.RootLength)
	binary.LittleEndian.PutUint64(d[24:32], h.MetadataOffset)
	binary.LittleEndian.PutUint64(d[32:40], h.MetadataLength)
	binary.LittleEndian.PutUint64(d[40:48], h.LeafDirectoryOffset)
	binary.LittleEndian.PutUint64(d[48:56], h.LeafDirectoryLength)
	binary.LittleEndian.PutUint64(d[56:64], h.TileDataOffset)
	binary.LittleEndian.PutUint64(d[64:72], h.TileDataLength)
	binary.LittleEndian.PutUint64(d[72:80], h.AddressedTilesCount)
	binary.LittleEndian.PutUint64(d[80:88], h.TileEntriesCount)
	binary.LittleEndian.PutUint64(d[88:96], h.TileContentsCount)

	if h.Clustered {
		d[96] = 0x1
	}
	d[97] = byte(h.InternalCompression)
	d[98] = byte(h.TileCompression)
	d[99] = byte(h.TileType)

	d[100] = h.MinZoom
	d[101] = h.MaxZoom
	binary.LittleEndian.PutUint32(d[102:106], uint32(h.MinLonE7)) //nolint:gosec
	binary.LittleEndian.PutUint32(d[106:110], uint32(h.MinLatE7)) //nolint:gosec
	binary.LittleEndian.PutUint32(d[110:114], uint32(h.MaxLonE7)) //nolint:gosec
	binary.LittleEndian.PutUint32(d[114:118], uint32(h.MaxLatE7)) //nolint:gosec

	d[118] = h.CenterZoom
	binary.LittleEndian.PutUint32(d[119:123], uint32(h.CenterLonE7)) //nolint:gosec
	binary.LittleEndian.PutUint32(d[123:127], uint32(h.CenterLatE7)) //nolint:gosec

	if _, err := w.Write(d); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

func (h *HeaderV3) version(d byte) (uint8, error) {
	switch d {
	case 1, 2:
		return 0, fmt.Errorf("%w: spec version %d", ErrUnsupportedVersion, d)
	case 3:
		return 3, nil
	default:
		return 0, fmt.Errorf("%w: unknown version %d", ErrUnsupportedVersion, d)
	}
}

// HeaderV3 is the in-memory form of a PMTiles v3 archive header: 127
// fixed-width bytes covering section offsets/lengths, counts, compression
// and tile-type tags, zoom range, and lat/lng bounds. Longitude and
// latitude are stored in their on-disk fixed-point representation
// (degrees * 1e7, rounded to int32); use the Lon/Lat accessors to work
// in degrees.
type HeaderV3 struct {
	Etag                string
	SpecVersion         uint8
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

func encodeE7(degrees float64) int32 {
	return int32(math.Round(degrees * latLonFactor)) //nolint:gosec
}

func decodeE7(v int32) float64 {
	return float64(v) / latLonFactor
}

func (h HeaderV3) MinLon() float64    { return decodeE7(h.MinLonE7) }
func (h HeaderV3) MinLat() float64    { return decodeE7(h.MinLatE7) }
func (h HeaderV3) MaxLon() float64    { return decodeE7(h.MaxLonE7) }
func (h HeaderV3) MaxLat() float64    { return decodeE7(h.MaxLatE7) }
func (h HeaderV3) CenterLon() float64 { return decodeE7(h.CenterLonE7) }
func (h HeaderV3) CenterLat() float64 { return decodeE7(h.CenterLatE7) }

func (h *HeaderV3) SetMinPos(lon, lat float64) {
	h.MinLonE7, h.MinLatE7 = encodeE7(lon), encodeE7(lat)
}

func (h *HeaderV3) SetMaxPos(lon, lat float64) {
	h.MaxLonE7, h.MaxLatE7 = encodeE7(lon), encodeE7(lat)
}

func (h *HeaderV3) SetCenterPos(lon, lat float64) {
	h.CenterLonE7, h.CenterLatE7 = encodeE7(lon), encodeE7(lat)
}

// HTTPContentType returns the Content-Type value appropriate for tiles of
// this header's TileType, or "" if unknown.
func (h HeaderV3) HTTPContentType() string {
	return h.TileType.ContentType()
}

// HTTPContentEncoding returns the Content-Encoding value appropriate for
// tiles compressed with this header's TileCompression, or "" if none.
func (h HeaderV3) HTTPContentEncoding() string {
	return h.TileCompression.ContentEncoding()
}
