package topology_test

import (
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/render"
	"github.com/twpayne/go-voxelize/topology"
	"github.com/twpayne/go-voxelize/world"
)

type testRoad struct {
	road *feature.RoadFeature
	path []geo.GridCell
}

func cell(x, z int) geo.GridCell {
	return geo.GridCell{X: x, Z: z}
}

func renderRoads(t *testing.T, roads ...testRoad) (*render.OccupancyMap, *feature.Repository) {
	t.Helper()
	converter, err := geo.NewConverter([]geo.Anchor{{}})
	assert.NoError(t, err)
	occupancy := render.NewOccupancyMap()
	renderer := render.NewRenderer(converter, world.NewMemoryStore(world.Flat(64)), occupancy)
	features := make([]*feature.RoadFeature, 0, len(roads))
	for _, road := range roads {
		assert.NoError(t, renderer.RenderRoadPath(context.Background(), road.road, road.path))
		features = append(features, road.road)
	}
	return occupancy, feature.NewRepository(features, nil, nil, nil, nil)
}

func crossRoads(t *testing.T) (*render.OccupancyMap, *feature.Repository) {
	t.Helper()
	return renderRoads(t,
		testRoad{
			road: &feature.RoadFeature{ID: 1, Name: "Mill Road"},
			path: []geo.GridCell{cell(-10, 0), cell(0, 0), cell(10, 0)},
		},
		testRoad{
			road: &feature.RoadFeature{ID: 2, Name: "Church Street"},
			path: []geo.GridCell{cell(0, -10), cell(0, 0), cell(0, 10)},
		},
	)
}

func TestProbe(t *testing.T) {
	occupancy, roads := crossRoads(t)
	detector := topology.NewDetector(occupancy, topology.WithRoads(roads))

	var expectedCells []geo.GridCell
	for z := -2; z <= 1; z++ {
		for x := -2; x <= 1; x++ {
			expectedCells = append(expectedCells, cell(x, z))
		}
	}
	expected := &topology.Intersection{
		Bounds: geo.Rect{Min: cell(-2, -2), Max: cell(1, 1)},
		Segments: []feature.SegmentRef{
			{Feature: 1, Segment: 0},
			{Feature: 1, Segment: 1},
			{Feature: 2, Segment: 0},
			{Feature: 2, Segment: 1},
		},
		Cells: expectedCells,
	}

	// Every arm of the crossing finds the same intersection.
	for _, seed := range []geo.GridCell{cell(-2, 0), cell(1, 0), cell(0, -2), cell(0, 1), cell(0, 0)} {
		intersection, ok := detector.Probe(seed)
		assert.True(t, ok)
		assert.Equal(t, "", cmp.Diff(expected, intersection), "seed %s", seed)
	}

	assert.Equal(t, []string{"Church Street", "Mill Road"}, detector.Identities(expected))
	assert.Equal(t, cell(-1, -1), expected.Center())
	assert.True(t, expected.Contains(cell(1, -2)))
	assert.False(t, expected.Contains(cell(2, 0)))
}

func TestProbe_NotMultiOwner(t *testing.T) {
	occupancy, _ := crossRoads(t)
	detector := topology.NewDetector(occupancy)
	for _, seed := range []geo.GridCell{cell(-8, 0), cell(0, 8), cell(20, 20)} {
		_, ok := detector.Probe(seed)
		assert.False(t, ok)
	}
}

func TestDetectAll(t *testing.T) {
	occupancy, roads := crossRoads(t)
	intersections := topology.NewDetector(occupancy, topology.WithRoads(roads)).DetectAll()
	assert.Equal(t, 1, len(intersections))
	assert.Equal(t, geo.Rect{Min: cell(-2, -2), Max: cell(1, 1)}, intersections[0].Bounds)
}

func TestDetectAll_Bend(t *testing.T) {
	occupancy, roads := renderRoads(t, testRoad{
		road: &feature.RoadFeature{ID: 1, Name: "Crooked Lane"},
		path: []geo.GridCell{cell(0, 0), cell(10, 0), cell(10, 10)},
	})
	detector := topology.NewDetector(occupancy, topology.WithRoads(roads))

	// The bend is a multi-owner region.
	_, ok := detector.Probe(cell(10, 0))
	assert.True(t, ok)

	// It is not an intersection.
	assert.Equal(t, 0, len(detector.DetectAll()))
}

func TestDetectAll_SameNameDifferentFeatures(t *testing.T) {
	occupancy, roads := renderRoads(t,
		testRoad{
			road: &feature.RoadFeature{ID: 1, Name: "High Street"},
			path: []geo.GridCell{cell(0, 0), cell(10, 0)},
		},
		testRoad{
			road: &feature.RoadFeature{ID: 2, Name: "High Street"},
			path: []geo.GridCell{cell(10, 0), cell(20, 0)},
		},
	)
	assert.Equal(t, 0, len(topology.NewDetector(occupancy, topology.WithRoads(roads)).DetectAll()))

	// Without the road lookup the features are distinct roads.
	assert.Equal(t, 1, len(topology.NewDetector(occupancy).DetectAll()))
}

func TestDetectAll_Ordered(t *testing.T) {
	occupancy, roads := renderRoads(t,
		testRoad{
			road: &feature.RoadFeature{ID: 1, Name: "North Road"},
			path: []geo.GridCell{cell(-10, -20), cell(30, -20)},
		},
		testRoad{
			road: &feature.RoadFeature{ID: 2, Name: "South Road"},
			path: []geo.GridCell{cell(-10, 20), cell(30, 20)},
		},
		testRoad{
			road: &feature.RoadFeature{ID: 3, Name: "West Road"},
			path: []geo.GridCell{cell(0, -30), cell(0, 30)},
		},
		testRoad{
			road: &feature.RoadFeature{ID: 4, Name: "East Road"},
			path: []geo.GridCell{cell(20, -30), cell(20, 30)},
		},
	)
	intersections := topology.NewDetector(occupancy, topology.WithRoads(roads)).DetectAll()
	assert.Equal(t, 4, len(intersections))
	var centers []geo.GridCell
	for _, intersection := range intersections {
		centers = append(centers, intersection.Center())
		assert.Equal(t, 2, len(intersection.Segments))
	}
	assert.Equal(t, []geo.GridCell{cell(-1, -21), cell(19, -21), cell(-1, 19), cell(19, 19)}, centers)
}
