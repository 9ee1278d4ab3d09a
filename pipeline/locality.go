package pipeline

import (
	"math"
	"strconv"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/spatialindex"
)

// localityScale is the number of locality buckets per degree.
const localityScale = 100

// LocalityKey returns p quantized to the locality grid.
func LocalityKey(p geo.GeoPoint) geo.GeoPoint {
	return geo.GeoPoint{
		Lat:  math.Floor(p.Lat*localityScale) / localityScale,
		Long: math.Floor(p.Long*localityScale) / localityScale,
	}
}

// OrderRoads returns roads grouped by identity, with groups ordered by the
// locality key of their first point, south to north then west to east.
// Groups with the same key and roads within a group keep their input order.
func OrderRoads(roads []*feature.RoadFeature) []*feature.RoadFeature {
	return orderByLocality(roads, (*feature.RoadFeature).Identity, func(road *feature.RoadFeature) []geo.GeoPoint {
		return road.Geometry
	})
}

// OrderBuildings returns buildings ordered by the locality key of their first
// footprint point.
func OrderBuildings(buildings []*feature.BuildingFeature) []*feature.BuildingFeature {
	return orderByLocality(buildings, func(building *feature.BuildingFeature) string {
		return strconv.FormatInt(building.ID, 10)
	}, func(building *feature.BuildingFeature) []geo.GeoPoint {
		return building.Footprint
	})
}

// OrderBarriers returns barriers ordered by the locality key of their first
// point.
func OrderBarriers(barriers []*feature.BarrierFeature) []*feature.BarrierFeature {
	return orderByLocality(barriers, func(barrier *feature.BarrierFeature) string {
		return strconv.FormatInt(barrier.ID, 10)
	}, func(barrier *feature.BarrierFeature) []geo.GeoPoint {
		return barrier.Geometry
	})
}

func orderByLocality[T any](items []T, groupKey func(T) string, points func(T) []geo.GeoPoint) []T {
	groups := make(map[string][]T)
	idx := spatialindex.NewRangeIndex[string]()
	for _, item := range items {
		key := groupKey(item)
		if _, ok := groups[key]; !ok {
			var point geo.GeoPoint
			if itemPoints := points(item); len(itemPoints) > 0 {
				point = itemPoints[0]
			}
			idx.Insert(LocalityKey(point), key)
		}
		groups[key] = append(groups[key], item)
	}
	ordered := make([]T, 0, len(items))
	for _, key := range idx.All() {
		ordered = append(ordered, groups[key]...)
	}
	return ordered
}
