// Package pmtiles reads and writes PMTiles v3 archives: a single-file,
// cloud-optimized store for map tiles keyed by a (z, x, y) coordinate,
// laid out so that any one tile can be fetched with a single random-access
// read and the whole archive can be served from an object store via HTTP
// range requests.
//
// The package covers the archive codec and data plane only: header and
// directory encoding, the Hilbert tile-ID mapping, content-addressed tile
// deduplication, and the root/leaf directory split on write. It does not
// serve tiles over HTTP, render maps, or provide a CLI — those are left to
// callers.
package pmtiles
