package placement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/placement"
	"github.com/twpayne/go-voxelize/render"
	"github.com/twpayne/go-voxelize/topology"
	"github.com/twpayne/go-voxelize/world"
)

type testEnv struct {
	converter    *geo.Converter
	store        *world.MemoryStore
	occupancy    *render.OccupancyMap
	roads        *feature.Repository
	intersection *topology.Intersection
	placer       *placement.Placer
}

func cell(x, z int) geo.GridCell {
	return geo.GridCell{X: x, Z: z}
}

func geoPoint(t *testing.T, converter *geo.Converter, c geo.GridCell) geo.GeoPoint {
	t.Helper()
	p, err := converter.ToGeo(c)
	assert.NoError(t, err)
	return p
}

// newCrossroads renders Mill Road running east-west and Church Street running
// north-south, crossing at the origin.
func newCrossroads(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	converter, err := geo.NewConverter([]geo.Anchor{{}})
	assert.NoError(t, err)
	path := func(cells ...geo.GridCell) []geo.GeoPoint {
		points := make([]geo.GeoPoint, len(cells))
		for i, c := range cells {
			points[i] = geoPoint(t, converter, c)
		}
		return points
	}
	roads := feature.NewRepository([]*feature.RoadFeature{
		{ID: 1, Name: "Mill Road", Geometry: path(cell(-10, 0), cell(0, 0), cell(10, 0))},
		{ID: 2, Name: "Church Street", Geometry: path(cell(0, -10), cell(0, 0), cell(0, 10))},
	}, nil, nil, nil, nil)

	store := world.NewMemoryStore(world.Flat(64))
	occupancy := render.NewOccupancyMap()
	renderer := render.NewRenderer(converter, store, occupancy)
	for _, road := range roads.Roads {
		assert.NoError(t, renderer.RenderRoad(ctx, road))
	}
	intersections := topology.NewDetector(occupancy, topology.WithRoads(roads)).DetectAll()
	assert.Equal(t, 1, len(intersections))

	return &testEnv{
		converter:    converter,
		store:        store,
		occupancy:    occupancy,
		roads:        roads,
		intersection: intersections[0],
		placer:       placement.NewPlacer(converter, store, occupancy, roads),
	}
}

func TestApproaches(t *testing.T) {
	e := newCrossroads(t)
	approaches, err := e.placer.Approaches(e.intersection)
	assert.NoError(t, err)
	assert.Equal(t, []placement.Approach{
		{Segment: feature.SegmentRef{Feature: 1, Segment: 0}, Name: "Mill Road", Identity: "Mill Road", Bearing: 174},
		{Segment: feature.SegmentRef{Feature: 1, Segment: 1}, Name: "Mill Road", Identity: "Mill Road", Bearing: 5},
		{Segment: feature.SegmentRef{Feature: 2, Segment: 0}, Name: "Church Street", Identity: "Church Street", Bearing: 276},
		{Segment: feature.SegmentRef{Feature: 2, Segment: 1}, Name: "Church Street", Identity: "Church Street", Bearing: 85},
	}, approaches)
}

func TestPlaceIntersection_StreetNameSigns(t *testing.T) {
	ctx := context.Background()
	e := newCrossroads(t)
	placements, err := e.placer.PlaceIntersection(ctx, e.intersection)
	assert.NoError(t, err)
	expected := []placement.Placement{
		{
			Pos:        world.Pos{X: -3, Y: 66, Z: -3},
			Attachment: world.Attachment{Kind: world.StreetNameSign, Orientation: geo.West, Payload: "Church Street"},
		},
		{
			Pos:        world.Pos{X: 2, Y: 66, Z: 2},
			Attachment: world.Attachment{Kind: world.StreetNameSign, Orientation: geo.East, Payload: "Church Street"},
		},
		{
			Pos:        world.Pos{X: 2, Y: 66, Z: -3},
			Attachment: world.Attachment{Kind: world.StreetNameSign, Orientation: geo.North, Payload: "Mill Road"},
		},
		{
			Pos:        world.Pos{X: -3, Y: 66, Z: 2},
			Attachment: world.Attachment{Kind: world.StreetNameSign, Orientation: geo.South, Payload: "Mill Road"},
		},
	}
	assert.Equal(t, "", cmp.Diff(expected, placements))

	for _, p := range placements {
		pos := p.Pos
		assert.False(t, e.occupancy.Occupied(cell(pos.X, pos.Z)))
		block, err := e.store.Block(ctx, pos.X, pos.Y-1, pos.Z)
		assert.NoError(t, err)
		assert.Equal(t, world.Post, block.Material)
	}
	assert.Equal(t, 4, len(e.store.Attachments()))
}

func TestPlaceIntersection_Lights(t *testing.T) {
	ctx := context.Background()
	e := newCrossroads(t)
	signal := &feature.SignFeature{ID: 9, Point: geoPoint(t, e.converter, cell(0, 0)), Kind: feature.SignTrafficSignals}
	assert.NoError(t, e.placer.AddSignal(signal))

	placements, err := e.placer.PlaceIntersection(ctx, e.intersection)
	assert.NoError(t, err)
	expected := []placement.Placement{
		{Pos: world.Pos{X: -3, Y: 69, Z: -3}, Attachment: world.Attachment{Kind: world.TrafficLight, Orientation: geo.North}},
		{Pos: world.Pos{X: 2, Y: 69, Z: 2}, Attachment: world.Attachment{Kind: world.TrafficLight, Orientation: geo.South}},
		{Pos: world.Pos{X: 2, Y: 69, Z: -3}, Attachment: world.Attachment{Kind: world.TrafficLight, Orientation: geo.East}},
		{Pos: world.Pos{X: -3, Y: 69, Z: 2}, Attachment: world.Attachment{Kind: world.TrafficLight, Orientation: geo.West}},
	}
	assert.Equal(t, "", cmp.Diff(expected, placements))

	// The signal has been used for the lights.
	_, placed, err := e.placer.PlaceSign(ctx, signal)
	assert.NoError(t, err)
	assert.False(t, placed)
}

func TestPlaceIntersection_DistantSignal(t *testing.T) {
	ctx := context.Background()
	e := newCrossroads(t)
	signal := &feature.SignFeature{ID: 9, Point: geoPoint(t, e.converter, cell(8, 0)), Kind: feature.SignTrafficSignals}
	assert.NoError(t, e.placer.AddSignal(signal))
	placements, err := e.placer.PlaceIntersection(ctx, e.intersection)
	assert.NoError(t, err)
	assert.Equal(t, 4, len(placements))
	for _, p := range placements {
		assert.Equal(t, world.StreetNameSign, p.Attachment.Kind)
	}
}

func TestPlaceSign(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name     string
		cell     geo.GridCell
		kind     feature.SignKind
		expected placement.Placement
	}{
		{
			name: "free",
			cell: cell(3, 4),
			kind: feature.SignStop,
			expected: placement.Placement{
				Pos:        world.Pos{X: 3, Y: 66, Z: 4},
				Attachment: world.Attachment{Kind: world.StopSign, Orientation: geo.West},
			},
		},
		{
			name: "on_road",
			cell: cell(0, 5),
			kind: feature.SignBusStop,
			expected: placement.Placement{
				Pos:        world.Pos{X: 2, Y: 66, Z: 5},
				Attachment: world.Attachment{Kind: world.BusStopSign, Orientation: geo.West},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newCrossroads(t)
			sign := &feature.SignFeature{ID: 1, Point: geoPoint(t, e.converter, tc.cell), Kind: tc.kind}
			actual, placed, err := e.placer.PlaceSign(ctx, sign)
			assert.NoError(t, err)
			assert.True(t, placed)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestPlaceSign_InvalidCoordinate(t *testing.T) {
	e := newCrossroads(t)
	_, placed, err := e.placer.PlaceSign(context.Background(), &feature.SignFeature{ID: 1, Point: geo.GeoPoint{Lat: 90}})
	assert.False(t, placed)
	var errInvalidCoordinate *geo.ErrInvalidCoordinate
	assert.True(t, errors.As(err, &errInvalidCoordinate))
}
