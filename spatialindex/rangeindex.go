// Package spatialindex provides the ordered geographic range index used to
// correlate features and the nearest-point index used by signage.
package spatialindex

import (
	"iter"

	"github.com/google/btree"

	"github.com/twpayne/go-voxelize/geo"
)

const btreeDegree = 16

type latRow[V any] struct {
	lat   float64
	longs *btree.BTreeG[*longEntry[V]]
}

type longEntry[V any] struct {
	long   float64
	values []V
}

// A RangeIndex is an ordered two-level map keyed by latitude then longitude.
// Several values may share a point. The zero value is not usable; create one
// with NewRangeIndex.
type RangeIndex[V any] struct {
	lats *btree.BTreeG[*latRow[V]]
	n    int
}

// NewRangeIndex returns a new, empty RangeIndex.
func NewRangeIndex[V any]() *RangeIndex[V] {
	return &RangeIndex[V]{
		lats: btree.NewG(btreeDegree, func(a, b *latRow[V]) bool {
			return a.lat < b.lat
		}),
	}
}

// Insert adds value at p.
func (idx *RangeIndex[V]) Insert(p geo.GeoPoint, value V) {
	row, ok := idx.lats.Get(&latRow[V]{lat: p.Lat})
	if !ok {
		row = &latRow[V]{
			lat: p.Lat,
			longs: btree.NewG(btreeDegree, func(a, b *longEntry[V]) bool {
				return a.long < b.long
			}),
		}
		idx.lats.ReplaceOrInsert(row)
	}
	entry, ok := row.longs.Get(&longEntry[V]{long: p.Long})
	if !ok {
		entry = &longEntry[V]{long: p.Long}
		row.longs.ReplaceOrInsert(entry)
	}
	entry.values = append(entry.values, value)
	idx.n++
}

// Len returns the number of values in idx.
func (idx *RangeIndex[V]) Len() int {
	return idx.n
}

// RangeQuery returns the values whose points lie within the inclusive
// bounding box, ordered by latitude then longitude. The sequence is lazy: the
// index is walked only as far as the caller consumes it.
func (idx *RangeIndex[V]) RangeQuery(latMin, latMax, longMin, longMax float64) iter.Seq2[geo.GeoPoint, V] {
	return func(yield func(geo.GeoPoint, V) bool) {
		if latMin > latMax || longMin > longMax {
			return
		}
		idx.lats.AscendGreaterOrEqual(&latRow[V]{lat: latMin}, func(row *latRow[V]) bool {
			if row.lat > latMax {
				return false
			}
			more := true
			row.longs.AscendGreaterOrEqual(&longEntry[V]{long: longMin}, func(entry *longEntry[V]) bool {
				if entry.long > longMax {
					return false
				}
				for _, value := range entry.values {
					if !yield(geo.GeoPoint{Lat: row.lat, Long: entry.long}, value) {
						more = false
						return false
					}
				}
				return true
			})
			return more
		})
	}
}

// All returns every value in idx, ordered by latitude then longitude.
func (idx *RangeIndex[V]) All() iter.Seq2[geo.GeoPoint, V] {
	return func(yield func(geo.GeoPoint, V) bool) {
		idx.lats.Ascend(func(row *latRow[V]) bool {
			more := true
			row.longs.Ascend(func(entry *longEntry[V]) bool {
				for _, value := range entry.values {
					if !yield(geo.GeoPoint{Lat: row.lat, Long: entry.long}, value) {
						more = false
						return false
					}
				}
				return true
			})
			return more
		})
	}
}
