package spatialindex_test

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/spatialindex"
)

func TestPointIndex_Nearest(t *testing.T) {
	idx := spatialindex.NewPointIndex[int]()
	assert.Zero(t, idx.Nearest(geo.GridCell{}, 2))

	for i := range 10 {
		idx.Insert(geo.GridCell{X: 10 * i, Z: 0}, i)
	}
	assert.Equal(t, 10, idx.Len())

	matches := idx.Nearest(geo.GridCell{X: 42, Z: 3}, 2)
	assert.Equal(t, 2, len(matches))
	assert.Equal(t, 4, matches[0].Value)
	assert.Equal(t, geo.GridCell{X: 40, Z: 0}, matches[0].Cell)
	assert.Equal(t, 5, matches[1].Value)

	assert.Equal(t, 10, len(idx.Nearest(geo.GridCell{}, 20)))
}
