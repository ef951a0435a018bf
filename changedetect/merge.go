package changedetect

import (
	"github.com/brightloom/vncd/rfb"
)

// mergeDirtyTiles runs a 4-neighbour connected-component pass over the
// dirty bitmap (cols×rows) and returns each component's axis-aligned
// bounding box in pixel coordinates, per spec.md §4.4 step 4.
func mergeDirtyTiles(dirty []bool, cols, rows int) []rfb.Rectangle {
	visited := make([]bool, len(dirty))
	var rects []rfb.Rectangle

	for start := 0; start < len(dirty); start++ {
		if !dirty[start] || visited[start] {
			continue
		}

		minTx, minTy := start%cols, start/cols
		maxTx, maxTy := minTx, minTy

		stack := []int{start}
		visited[start] = true
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			tx, ty := idx%cols, idx/cols
			if tx < minTx {
				minTx = tx
			}
			if tx > maxTx {
				maxTx = tx
			}
			if ty < minTy {
				minTy = ty
			}
			if ty > maxTy {
				maxTy = ty
			}

			for _, n := range neighbours(tx, ty, cols, rows) {
				if dirty[n] && !visited[n] {
					visited[n] = true
					stack = append(stack, n)
				}
			}
		}

		rects = append(rects, rfb.Rectangle{
			X: uint16(minTx * TileSize),
			Y: uint16(minTy * TileSize),
			W: uint16((maxTx - minTx + 1) * TileSize),
			H: uint16((maxTy - minTy + 1) * TileSize),
		})
	}

	return mergeOverlapping(rects)
}

func neighbours(tx, ty, cols, rows int) []int {
	var out []int
	if tx > 0 {
		out = append(out, ty*cols+tx-1)
	}
	if tx < cols-1 {
		out = append(out, ty*cols+tx+1)
	}
	if ty > 0 {
		out = append(out, (ty-1)*cols+tx)
	}
	if ty < rows-1 {
		out = append(out, (ty+1)*cols+tx)
	}
	return out
}

// mergeOverlapping repeatedly unions any two rectangles whose bounds
// overlap, since component bounding boxes can overlap even though the
// underlying tile sets did not touch (spec.md §4.4: "if two components'
// bounding boxes overlap after expansion, merge them").
func mergeOverlapping(rects []rfb.Rectangle) []rfb.Rectangle {
	for {
		merged := false
		for i := 0; i < len(rects); i++ {
			for j := i + 1; j < len(rects); j++ {
				if rects[i].Overlaps(rects[j]) {
					rects[i] = rects[i].Union(rects[j])
					rects = append(rects[:j], rects[j+1:]...)
					merged = true
					break
				}
			}
			if merged {
				break
			}
		}
		if !merged {
			break
		}
	}
	return rects
}

// capRectangles merges the smallest-gap pair of rectangles repeatedly
// until at most max remain, per spec.md §4.4's rectangle cap.
func capRectangles(rects []rfb.Rectangle, max int) []rfb.Rectangle {
	for len(rects) > max {
		bi, bj := 0, 1
		best := gap(rects[0], rects[1])
		for i := 0; i < len(rects); i++ {
			for j := i + 1; j < len(rects); j++ {
				g := gap(rects[i], rects[j])
				if g < best {
					best, bi, bj = g, i, j
				}
			}
		}
		rects[bi] = rects[bi].Union(rects[bj])
		rects = append(rects[:bj], rects[bj+1:]...)
	}
	return rects
}

// gap measures the Manhattan distance between two rectangles' nearest
// edges (0 if they already overlap or touch).
func gap(a, b rfb.Rectangle) int {
	dx := 0
	if int(a.X) >= int(b.X)+int(b.W) {
		dx = int(a.X) - (int(b.X) + int(b.W))
	} else if int(b.X) >= int(a.X)+int(a.W) {
		dx = int(b.X) - (int(a.X) + int(a.W))
	}
	dy := 0
	if int(a.Y) >= int(b.Y)+int(b.H) {
		dy = int(a.Y) - (int(b.Y) + int(b.H))
	} else if int(b.Y) >= int(a.Y)+int(a.H) {
		dy = int(b.Y) - (int(a.Y) + int(a.H))
	}
	return dx + dy
}
