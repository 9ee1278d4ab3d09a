package spatialindex

import (
	"github.com/dhconnelly/rtreego"

	"github.com/twpayne/go-voxelize/geo"
)

// A PointMatch is a value found in a PointIndex.
type PointMatch[V any] struct {
	Cell  geo.GridCell
	Value V
}

type pointEntry[V any] struct {
	PointMatch[V]
}

// Bounds implements rtreego.Spatial.
func (e *pointEntry[V]) Bounds() rtreego.Rect {
	return rtreego.Point{float64(e.Cell.X), float64(e.Cell.Z)}.ToRect(0.5)
}

// A PointIndex answers nearest-neighbor queries over grid cells using an
// R-tree.
type PointIndex[V any] struct {
	rtree *rtreego.Rtree
	n     int
}

// NewPointIndex returns a new, empty PointIndex.
func NewPointIndex[V any]() *PointIndex[V] {
	return &PointIndex[V]{
		rtree: rtreego.NewTree(2, 25, 50),
	}
}

// Insert adds value at cell.
func (idx *PointIndex[V]) Insert(cell geo.GridCell, value V) {
	idx.rtree.Insert(&pointEntry[V]{
		PointMatch: PointMatch[V]{Cell: cell, Value: value},
	})
	idx.n++
}

// Len returns the number of values in idx.
func (idx *PointIndex[V]) Len() int {
	return idx.n
}

// Nearest returns up to k values closest to cell, nearest first.
func (idx *PointIndex[V]) Nearest(cell geo.GridCell, k int) []PointMatch[V] {
	if idx.n == 0 || k < 1 {
		return nil
	}
	spatials := idx.rtree.NearestNeighbors(k, rtreego.Point{float64(cell.X), float64(cell.Z)})
	matches := make([]PointMatch[V], 0, len(spatials))
	for _, spatial := range spatials {
		entry, ok := spatial.(*pointEntry[V])
		if !ok || entry == nil {
			continue
		}
		matches = append(matches, entry.PointMatch)
	}
	return matches
}
