package feature_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
)

const testRepositoryJSON = `{
	"roads": [
		{
			"id": 1,
			"name": "High Street",
			"geometry": [{"lat": 51.5, "long": -0.13}, {"lat": 51.5, "long": -0.12}],
			"lanes": 3,
			"surface": "concrete",
			"sidewalk": "both"
		},
		{
			"id": 2,
			"name": "High Street",
			"geometry": [{"lat": 51.5, "long": -0.12}, {"lat": 51.5, "long": -0.11}]
		},
		{
			"id": 3,
			"geometry": [{"lat": 51.49, "long": -0.125}, {"lat": 51.51, "long": -0.125}],
			"crossing": "zebra",
			"layer": 1
		}
	],
	"buildings": [
		{
			"id": 10,
			"footprint": [
				{"lat": 51.4999, "long": -0.1210},
				{"lat": 51.4999, "long": -0.1208},
				{"lat": 51.4997, "long": -0.1208},
				{"lat": 51.4999, "long": -0.1210}
			],
			"street": "High  Street",
			"house_number": "12",
			"stories": 3
		}
	],
	"signs": [
		{"id": 20, "point": {"lat": 51.5, "long": -0.125}, "kind": "traffic_signals"}
	],
	"barriers": [
		{"id": 30, "geometry": [{"lat": 51.5, "long": -0.1}], "kind": "hedge"}
	]
}`

func TestLoadRepository(t *testing.T) {
	r, err := feature.LoadRepository(strings.NewReader(testRepositoryJSON))
	assert.NoError(t, err)

	assert.Equal(t, 3, len(r.Roads))
	assert.Equal(t, 3, r.Roads[0].LaneCount())
	assert.Equal(t, feature.SurfaceConcrete, r.Roads[0].Surface)
	assert.Equal(t, feature.SidewalkBoth, r.Roads[0].Sidewalk)
	assert.Equal(t, feature.DefaultLanes, r.Roads[1].LaneCount())
	assert.Equal(t, feature.SurfaceAsphalt, r.Roads[1].Surface)
	assert.Equal(t, feature.CrossingZebra, r.Roads[2].Crossing)
	assert.Equal(t, 1, r.Roads[2].LayerValue())
	assert.Equal(t, 0, r.Roads[0].LayerValue())

	assert.Equal(t, 2, len(r.RoadsNamed("High Street")))
	groups := r.RoadsByName()
	assert.Equal(t, 2, len(groups))
	assert.Equal(t, 1, len(groups["#3"]))

	road, ok := r.Road(3)
	assert.True(t, ok)
	assert.Equal(t, "#3", road.Identity())

	building, ok := r.BuildingByAddress("12", "high street")
	assert.True(t, ok)
	assert.Equal(t, int64(10), building.ID)
	assert.Equal(t, "12 High  Street", building.Address())

	assert.Equal(t, feature.SignTrafficSignals, r.Signs[0].Kind)
	assert.Equal(t, feature.BarrierHedge, r.Barriers[0].Kind)
	assert.True(t, errors.Is(r.Barriers[0].Validate(), feature.ErrDegenerateFeature))
}

func TestLoadRepository_UnknownEnum(t *testing.T) {
	_, err := feature.LoadRepository(strings.NewReader(`{"roads": [{"id": 1, "surface": "lava"}]}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `surface: unknown value "lava"`)
}

func TestRoadFeature_Validate(t *testing.T) {
	road := &feature.RoadFeature{ID: 7, Geometry: []geo.GeoPoint{{Lat: 1, Long: 1}}}
	assert.IsError(t, road.Validate(), feature.ErrDegenerateFeature)
	assert.Equal(t, 0, road.Segments())
	road.Geometry = append(road.Geometry, geo.GeoPoint{Lat: 1, Long: 2}, geo.GeoPoint{Lat: 2, Long: 2})
	assert.NoError(t, road.Validate())
	assert.Equal(t, 2, road.Segments())
}

func TestSidewalkSides(t *testing.T) {
	for _, tc := range []struct {
		sides       feature.SidewalkSides
		left, right bool
		count       int
	}{
		{sides: feature.SidewalkNone},
		{sides: feature.SidewalkLeft, left: true, count: 1},
		{sides: feature.SidewalkRight, right: true, count: 1},
		{sides: feature.SidewalkBoth, left: true, right: true, count: 2},
	} {
		t.Run(tc.sides.String(), func(t *testing.T) {
			assert.Equal(t, tc.left, tc.sides.Left())
			assert.Equal(t, tc.right, tc.sides.Right())
			assert.Equal(t, tc.count, tc.sides.Count())
		})
	}
}

func TestSegmentRef_Compare(t *testing.T) {
	a := feature.SegmentRef{Feature: 1, Segment: 2}
	assert.True(t, a.Compare(feature.SegmentRef{Feature: 2, Segment: 0}) < 0)
	assert.True(t, a.Compare(feature.SegmentRef{Feature: 1, Segment: 1}) > 0)
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, "1/2", a.String())
}

func TestAddressKey(t *testing.T) {
	assert.Equal(t, "12a high street", feature.AddressKey(" 12A ", "High   Street"))
}
