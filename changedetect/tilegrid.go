// Package changedetect implements the tile-hash change detector
// (component C4): splitting a captured framebuffer into 64×64 tiles,
// hashing each one, and merging the tiles that changed since the prior
// capture into a bounded set of dirty rectangles.
package changedetect

import (
	"crypto/md5" //nolint:gosec // used only as a 128-bit content fingerprint, not for anything security-sensitive.

	"github.com/brightloom/vncd/rfb"
)

// TileSize is the fixed tile dimension spec.md §4.4 and the GLOSSARY
// define for the change detector.
const TileSize = 64

// MaxRectangles bounds how many dirty rectangles one Detect call may
// emit; spec.md §4.4 calls this "a small constant (e.g., 32)".
const MaxRectangles = 32

// FullUpdateDirtyFraction is the fraction of dirty tiles above which
// Detect emits a single whole-framebuffer rectangle instead of a tile
// merge, per spec.md §4.4's adaptive strategy.
const FullUpdateDirtyFraction = 0.75

// TileGrid tracks the last-seen hash of every tile in a framebuffer of
// fixed dimensions. It is not safe for concurrent use; callers serialize
// captures the way a single ClientSession's scheduler does.
type TileGrid struct {
	width, height int
	cols, rows    int
	hashes        [][16]byte
	seeded        []bool
}

// NewTileGrid allocates a grid sized for a width×height framebuffer.
// No tile is seeded until the first Detect call, so that call always
// reports every tile dirty.
func NewTileGrid(width, height int) *TileGrid {
	cols := (width + TileSize - 1) / TileSize
	rows := (height + TileSize - 1) / TileSize
	return &TileGrid{
		width: width, height: height,
		cols: cols, rows: rows,
		hashes: make([][16]byte, cols*rows),
		seeded: make([]bool, cols*rows),
	}
}

// Detect hashes every tile of the BGRA framebuffer bgra (stride
// width*4 bytes, width/height matching the grid), classifies dirty
// tiles, updates the stored hashes, and returns the merged dirty
// rectangles (spec.md §4.4 steps 1-4 plus the adaptive full-update
// rule). The returned slice is never longer than MaxRectangles, unless
// it is the single full-framebuffer rectangle emitted for dirty
// fractions above FullUpdateDirtyFraction.
func (g *TileGrid) Detect(bgra []byte) []rfb.Rectangle {
	dirty := make([]bool, g.cols*g.rows)
	dirtyCount := 0

	for ty := 0; ty < g.rows; ty++ {
		for tx := 0; tx < g.cols; tx++ {
			idx := ty*g.cols + tx
			h := g.hashTile(bgra, tx, ty)
			isDirty := !g.seeded[idx] || h != g.hashes[idx]
			dirty[idx] = isDirty
			g.hashes[idx] = h
			g.seeded[idx] = true
			if isDirty {
				dirtyCount++
			}
		}
	}

	if len(dirty) > 0 && float64(dirtyCount)/float64(len(dirty)) > FullUpdateDirtyFraction {
		return []rfb.Rectangle{{X: 0, Y: 0, W: uint16(g.width), H: uint16(g.height)}}
	}

	rects := mergeDirtyTiles(dirty, g.cols, g.rows)
	return capRectangles(rects, MaxRectangles)
}

// tileBounds returns the clipped pixel bounds of tile (tx,ty): right and
// bottom tiles may be narrower/shorter than TileSize when the
// framebuffer dimensions are not exact multiples.
func (g *TileGrid) tileBounds(tx, ty int) (x0, y0, w, h int) {
	x0 = tx * TileSize
	y0 = ty * TileSize
	w = TileSize
	if x0+w > g.width {
		w = g.width - x0
	}
	h = TileSize
	if y0+h > g.height {
		h = g.height - y0
	}
	return
}

func (g *TileGrid) hashTile(bgra []byte, tx, ty int) [16]byte {
	x0, y0, w, h := g.tileBounds(tx, ty)
	stride := g.width * 4

	buf := make([]byte, 0, w*h*4)
	for row := 0; row < h; row++ {
		rowStart := (y0+row)*stride + x0*4
		buf = append(buf, bgra[rowStart:rowStart+w*4]...)
	}
	return md5.Sum(buf)
}
