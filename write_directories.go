package pmtiles

import (
	"bytes"
	"fmt"
	"io"
)

// MaxRootDirLength is the largest a compressed root directory may be and
// still guarantee the header plus root directory fit inside the first
// 16KiB of the archive, keeping the common "fetch header + root" request
// to a single HTTP range read.
const MaxRootDirLength = 16384 - HeaderSizeBytes

// defaultLeafSize is the starting number of entries per leaf directory
// when a root directory must be split; doubled on each retry until the
// root fits within MaxRootDirLength.
const defaultLeafSize = 4096

// WriteDirectoryResult is everything the caller needs to finish writing
// an archive once WriteDirectories has picked a layout: the encoded,
// compressed root bytes, the concatenated encoded+compressed leaf bytes
// (empty if no split was needed), and the number of leaf directories
// produced.
type WriteDirectoryResult struct {
	Root       []byte
	Leaves     []byte
	NumLeaves  int
	LeafLength []uint64
}

// WriteDirectories lays out entries as a root directory, falling back to
// a root-of-pointers plus leaf directories when the root would not fit in
// MaxRootDirLength once encoded and compressed. startLeafSize overrides
// the initial leaf size used by the overflow strategy; pass 0 to use
// defaultLeafSize.
func WriteDirectories(entries []Entry, compression Compression, startLeafSize int) (*WriteDirectoryResult, error) {
	root, err := encodeDirectory(entries, compression)
	if err != nil {
		return nil, err
	}

	if len(root) <= MaxRootDirLength {
		return &WriteDirectoryResult{Root: root}, nil
	}

	leafSize := startLeafSize
	if leafSize <= 0 {
		leafSize = defaultLeafSize
	}

	for {
		result, err := splitIntoLeaves(entries, compression, leafSize)
		if err != nil {
			return nil, err
		}
		if len(result.Root) <= MaxRootDirLength {
			return result, nil
		}
		leafSize *= 2
	}
}

func splitIntoLeaves(entries []Entry, compression Compression, leafSize int) (*WriteDirectoryResult, error) {
	var leavesBuf bytes.Buffer
	var rootEntries []Entry
	leafLengths := make([]uint64, 0)

	for start := 0; start < len(entries); start += leafSize {
		end := min(start+leafSize, len(entries))
		chunk := entries[start:end]

		leafBytes, err := encodeDirectory(chunk, compression)
		if err != nil {
			return nil, err
		}

		rootEntries = append(rootEntries, Entry{
			TileID:    chunk[0].TileID,
			Offset:    uint64(leavesBuf.Len()),
			Length:    uint64(len(leafBytes)),
			RunLength: 0,
		})
		leafLengths = append(leafLengths, uint64(len(leafBytes)))

		if _, err := leavesBuf.Write(leafBytes); err != nil {
			return nil, fmt.Errorf("writing leaf directory: %w", err)
		}
	}

	root, err := encodeDirectory(rootEntries, compression)
	if err != nil {
		return nil, err
	}

	return &WriteDirectoryResult{
		Root:       root,
		Leaves:     leavesBuf.Bytes(),
		NumLeaves:  len(rootEntries),
		LeafLength: leafLengths,
	}, nil
}

func encodeDirectory(entries []Entry, compression Compression) ([]byte, error) {
	var raw bytes.Buffer
	if err := writeEntries(&raw, entries); err != nil {
		return nil, fmt.Errorf("encoding directory: %w", err)
	}

	var compressed bytes.Buffer
	w, err := Compress(&compressed, compression)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(w, &raw); err != nil {
		return nil, fmt.Errorf("compressing directory: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing directory compressor: %w", err)
	}

	return compressed.Bytes(), nil
}
