package render

import (
	"cmp"
	"iter"
	"maps"
	"slices"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
)

// A Record describes a grid cell claimed by a road.
type Record struct {
	// Height is the y coordinate of the road surface, fixed by the first
	// road to claim the cell.
	Height int
	// Owners are the road segments that cover the cell, sorted and without
	// duplicates.
	Owners []feature.SegmentRef
	// Sidewalk is set if the cell is drawn as sidewalk rather than
	// carriageway.
	Sidewalk bool
	// Crossing is set if a pedestrian crossing is painted on the cell.
	Crossing bool
	// Feature is the road whose material the cell shows.
	Feature int64
	// Identity is the identity of Feature.
	Identity string
	// Width is the carriageway width of Feature, in cells.
	Width int
	// Layer is the layer of Feature.
	Layer int
}

// MultiOwner returns whether more than one segment covers the cell.
func (r *Record) MultiOwner() bool {
	return len(r.Owners) > 1
}

// addOwner adds owner to r's owners if it is not already present.
func (r *Record) addOwner(owner feature.SegmentRef) {
	index, found := slices.BinarySearchFunc(r.Owners, owner, feature.SegmentRef.Compare)
	if !found {
		r.Owners = slices.Insert(r.Owners, index, owner)
	}
}

// An OccupancyMap records which cells of the grid have been claimed during a
// rendering pass. Only a Renderer modifies it.
type OccupancyMap struct {
	records   map[geo.GridCell]*Record
	buildings map[geo.GridCell]int64
	barriers  map[geo.GridCell]struct{}
	signs     map[geo.GridCell]struct{}
}

// NewOccupancyMap returns a new, empty OccupancyMap.
func NewOccupancyMap() *OccupancyMap {
	return &OccupancyMap{
		records:   make(map[geo.GridCell]*Record),
		buildings: make(map[geo.GridCell]int64),
		barriers:  make(map[geo.GridCell]struct{}),
		signs:     make(map[geo.GridCell]struct{}),
	}
}

// Record returns the road record at cell. The returned record must not be
// modified.
func (m *OccupancyMap) Record(cell geo.GridCell) (*Record, bool) {
	record, ok := m.records[cell]
	return record, ok
}

// IsRoad returns whether cell is claimed by a road, including sidewalks.
func (m *OccupancyMap) IsRoad(cell geo.GridCell) bool {
	_, ok := m.records[cell]
	return ok
}

// IsMultiOwner returns whether cell is covered by more than one segment.
func (m *OccupancyMap) IsMultiOwner(cell geo.GridCell) bool {
	record, ok := m.records[cell]
	return ok && record.MultiOwner()
}

// Building returns the ID of the building painted at cell.
func (m *OccupancyMap) Building(cell geo.GridCell) (int64, bool) {
	id, ok := m.buildings[cell]
	return id, ok
}

// Occupied returns whether anything has been placed at cell.
func (m *OccupancyMap) Occupied(cell geo.GridCell) bool {
	if _, ok := m.records[cell]; ok {
		return true
	}
	if _, ok := m.buildings[cell]; ok {
		return true
	}
	if _, ok := m.barriers[cell]; ok {
		return true
	}
	_, ok := m.signs[cell]
	return ok
}

// HasSign returns whether an address sign is mounted at cell.
func (m *OccupancyMap) HasSign(cell geo.GridCell) bool {
	_, ok := m.signs[cell]
	return ok
}

// Len returns the number of road cells in m.
func (m *OccupancyMap) Len() int {
	return len(m.records)
}

// Cells returns the road cells of m in row-major order, north to south then
// west to east.
func (m *OccupancyMap) Cells() iter.Seq2[geo.GridCell, *Record] {
	return func(yield func(geo.GridCell, *Record) bool) {
		for _, cell := range slices.SortedFunc(maps.Keys(m.records), compareCells) {
			if !yield(cell, m.records[cell]) {
				return
			}
		}
	}
}

func compareCells(a, b geo.GridCell) int {
	return cmp.Or(cmp.Compare(a.Z, b.Z), cmp.Compare(a.X, b.X))
}
