// Package topology finds road intersections in an occupancy map.
package topology

import (
	"cmp"
	"iter"
	"maps"
	"slices"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/render"
)

var (
	intersectionsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_topology_intersections_total",
		Help: "The total number of intersections detected",
	})
	regionsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_topology_regions_dropped_total",
		Help: "The total number of multi-owner regions dropped because they belong to a single road",
	})
)

// An Occupancy is a read-only view of road cells.
type Occupancy interface {
	Record(cell geo.GridCell) (*render.Record, bool)
	Cells() iter.Seq2[geo.GridCell, *render.Record]
}

// A RoadLookup returns roads by ID. *feature.Repository implements RoadLookup.
type RoadLookup interface {
	Road(id int64) (*feature.RoadFeature, bool)
}

// An Intersection is a connected region of cells covered by more than one
// road segment.
type Intersection struct {
	Bounds   geo.Rect
	Segments []feature.SegmentRef
	Cells    []geo.GridCell
}

// Contains returns whether cell is part of i.
func (i *Intersection) Contains(cell geo.GridCell) bool {
	if !i.Bounds.Contains(cell) {
		return false
	}
	_, found := slices.BinarySearchFunc(i.Cells, cell, compareCells)
	return found
}

// Center returns the center of i's bounds.
func (i *Intersection) Center() geo.GridCell {
	return i.Bounds.Center()
}

// A Detector detects intersections.
type Detector struct {
	occupancy Occupancy
	roads     RoadLookup
}

// An Option sets an option on a Detector.
type Option func(*Detector)

// WithRoads sets the lookup used to find road identities. Without it, every
// feature is its own road.
func WithRoads(roads RoadLookup) Option {
	return func(d *Detector) {
		d.roads = roads
	}
}

// NewDetector returns a new Detector over occupancy.
func NewDetector(occupancy Occupancy, options ...Option) *Detector {
	d := &Detector{
		occupancy: occupancy,
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Probe flood fills the multi-owner region containing seed. It returns false
// if seed is not covered by at least two segments.
func (d *Detector) Probe(seed geo.GridCell) (*Intersection, bool) {
	record, ok := d.occupancy.Record(seed)
	if !ok || !record.MultiOwner() {
		return nil, false
	}

	visited := map[geo.GridCell]struct{}{seed: {}}
	segments := make(map[feature.SegmentRef]struct{})
	intersection := &Intersection{
		Bounds: geo.RectAround(seed),
	}
	stack := []geo.GridCell{seed}
	for len(stack) > 0 {
		cell := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		record, _ := d.occupancy.Record(cell)
		for _, owner := range record.Owners {
			segments[owner] = struct{}{}
		}
		intersection.Cells = append(intersection.Cells, cell)
		intersection.Bounds = intersection.Bounds.Extend(cell)
		for _, neighbor := range cell.Neighbors4() {
			if _, ok := visited[neighbor]; ok {
				continue
			}
			visited[neighbor] = struct{}{}
			if record, ok := d.occupancy.Record(neighbor); ok && record.MultiOwner() {
				stack = append(stack, neighbor)
			}
		}
	}

	slices.SortFunc(intersection.Cells, compareCells)
	intersection.Segments = slices.SortedFunc(maps.Keys(segments), feature.SegmentRef.Compare)
	return intersection, true
}

// DetectAll returns every intersection in row-major order of the first cell
// found. Regions whose segments all belong to the same road, such as bends,
// are dropped.
func (d *Detector) DetectAll() []*Intersection {
	var intersections []*Intersection
	absorbed := make(map[geo.GridCell]struct{})
	for cell, record := range d.occupancy.Cells() {
		if !record.MultiOwner() {
			continue
		}
		if _, ok := absorbed[cell]; ok {
			continue
		}
		intersection, ok := d.Probe(cell)
		if !ok {
			continue
		}
		for _, cell := range intersection.Cells {
			absorbed[cell] = struct{}{}
		}
		if len(d.Identities(intersection)) < 2 {
			regionsDropped.Inc()
			continue
		}
		intersectionsDetected.Inc()
		intersections = append(intersections, intersection)
	}
	return intersections
}

// Identities returns the sorted distinct road identities of intersection's
// segments.
func (d *Detector) Identities(intersection *Intersection) []string {
	identities := make(map[string]struct{})
	for _, segment := range intersection.Segments {
		identities[d.identity(segment.Feature)] = struct{}{}
	}
	return slices.Sorted(maps.Keys(identities))
}

func (d *Detector) identity(id int64) string {
	if d.roads != nil {
		if road, ok := d.roads.Road(id); ok {
			return road.Identity()
		}
	}
	return "#" + strconv.FormatInt(id, 10)
}

func compareCells(a, b geo.GridCell) int {
	return cmp.Or(cmp.Compare(a.Z, b.Z), cmp.Compare(a.X, b.X))
}
