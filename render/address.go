package render

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/raster"
	"github.com/twpayne/go-voxelize/spatialindex"
	"github.com/twpayne/go-voxelize/world"
)

const (
	// colinearTolerance is the turn angle, in degrees, below which a
	// footprint vertex lies on a straight wall and is not a corner.
	colinearTolerance = 15
	// maxWallSearch bounds the walk from the reference point out of a
	// building.
	maxWallSearch = 64
	signHeight    = 2
)

// PlaceAddressSign attaches an address sign to the wall of building that faces
// the nearest of roads, which should be the roads named after building's
// street. It returns whether a sign was placed.
func (r *Renderer) PlaceAddressSign(ctx context.Context, building *feature.BuildingFeature, roads []*feature.RoadFeature) (bool, error) {
	if !building.HasAddress() || len(roads) == 0 {
		return false, nil
	}
	if err := building.Validate(); err != nil {
		return false, err
	}
	index, err := r.roadIndex(building.Street, roads)
	if err != nil {
		return false, fmt.Errorf("building %d: %w", building.ID, err)
	}
	if index.Len() == 0 {
		return false, nil
	}
	footprint, err := r.convertPath(building.Footprint)
	if err != nil {
		return false, fmt.Errorf("building %d: %w", building.ID, err)
	}

	centroid := centroidCell(footprint)
	nearest := index.Nearest(centroid, 1)[0].Cell

	var reference geo.GridCell
	if building.Primary != nil {
		if reference, err = r.converter.ToGrid(*building.Primary); err != nil {
			return false, fmt.Errorf("building %d: %w", building.ID, err)
		}
	} else {
		reference = nearestCorner(footprint, nearest)
	}

	foot := footOfPerpendicular(reference, index.Nearest(reference, 2))
	facing, ok := cardinal(r2.Sub(foot, vec(reference)))
	if !ok {
		if facing, ok = cardinal(r2.Sub(vec(nearest), vec(centroid))); !ok {
			return false, nil
		}
	}

	cell, ok := r.signCell(reference, facing)
	if !ok || r.occupancy.HasSign(cell) {
		return false, nil
	}

	height, err := r.store.ColumnHeight(ctx, cell.X, cell.Z)
	if err != nil {
		return false, fmt.Errorf("building %d: %w", building.ID, err)
	}
	if err := r.store.Attach(ctx, cell.X, min(height+signHeight, world.MaxHeight), cell.Z, world.Attachment{
		Kind:        world.AddressSign,
		Orientation: facing,
		Payload:     building.Address(),
	}); err != nil {
		return false, fmt.Errorf("building %d: %w", building.ID, err)
	}
	r.occupancy.signs[cell] = struct{}{}
	return true, nil
}

// signCell returns the first cell outside the building wall walking from
// reference toward facing. A reference that is not inside a wall is its own
// sign cell.
func (r *Renderer) signCell(reference geo.GridCell, facing geo.Direction) (geo.GridCell, bool) {
	dx, dz := facing.Delta()
	wall := false
	cell := reference
	for range maxWallSearch {
		_, building := r.occupancy.Building(cell)
		switch {
		case building:
			wall = true
		case wall:
			return cell, true
		}
		cell = cell.Add(dx, dz)
	}
	if _, building := r.occupancy.Building(reference); wall || building {
		return geo.GridCell{}, false
	}
	return reference, true
}

// roadIndex returns the index of centerline cells of roads, cached by name.
func (r *Renderer) roadIndex(name string, roads []*feature.RoadFeature) (*spatialindex.PointIndex[int64], error) {
	if index, ok := r.roadIndexes[name]; ok {
		return index, nil
	}
	index := spatialindex.NewPointIndex[int64]()
	seen := make(map[geo.GridCell]struct{})
	for _, road := range roads {
		if road.Validate() != nil {
			continue
		}
		path, err := r.convertPath(road.Geometry)
		if err != nil {
			return nil, err
		}
		for i := range len(path) - 1 {
			for span := range raster.Line(path[i], path[i+1], 1) {
				if _, ok := seen[span.Cell]; ok {
					continue
				}
				seen[span.Cell] = struct{}{}
				index.Insert(span.Cell, road.ID)
			}
		}
	}
	r.roadIndexes[name] = index
	return index, nil
}

// nearestCorner returns the corner of footprint nearest to target. Vertices
// in the middle of straight walls are not corners.
func nearestCorner(footprint []geo.GridCell, target geo.GridCell) geo.GridCell {
	vertices := footprint
	if n := len(vertices); n > 1 && vertices[0] == vertices[n-1] {
		vertices = vertices[:n-1]
	}
	var corners []geo.GridCell
	for i, vertex := range vertices {
		prev := vertices[(i+len(vertices)-1)%len(vertices)]
		next := vertices[(i+1)%len(vertices)]
		if turnAngle(prev, vertex, next) >= colinearTolerance {
			corners = append(corners, vertex)
		}
	}
	if len(corners) == 0 {
		corners = vertices
	}
	best := corners[0]
	bestDistance2 := r2.Norm2(r2.Sub(vec(best), vec(target)))
	for _, corner := range corners[1:] {
		if distance2 := r2.Norm2(r2.Sub(vec(corner), vec(target))); distance2 < bestDistance2 {
			best, bestDistance2 = corner, distance2
		}
	}
	return best
}

// turnAngle returns the change of direction at b of the path a, b, c, in
// degrees. Degenerate walls turn by 0°.
func turnAngle(a, b, c geo.GridCell) float64 {
	u, v := r2.Sub(vec(b), vec(a)), r2.Sub(vec(c), vec(b))
	nu, nv := r2.Norm(u), r2.Norm(v)
	if nu == 0 || nv == 0 {
		return 0
	}
	cos := max(-1, min(1, r2.Dot(u, v)/(nu*nv)))
	return math.Acos(cos) * 180 / math.Pi
}

// footOfPerpendicular returns the projection of p onto the line through the
// first two matches, or the first match if there is no line.
func footOfPerpendicular(p geo.GridCell, matches []spatialindex.PointMatch[int64]) r2.Vec {
	a := vec(matches[0].Cell)
	if len(matches) < 2 || matches[1].Cell == matches[0].Cell {
		return a
	}
	ab := r2.Sub(vec(matches[1].Cell), a)
	t := r2.Dot(r2.Sub(vec(p), a), ab) / r2.Norm2(ab)
	return r2.Add(a, r2.Scale(t, ab))
}

// cardinal returns the cardinal direction of v's dominant axis, with v.Y
// along grid z.
func cardinal(v r2.Vec) (geo.Direction, bool) {
	switch {
	case v.X == 0 && v.Y == 0:
		return 0, false
	case math.Abs(v.X) >= math.Abs(v.Y) && v.X > 0:
		return geo.East, true
	case math.Abs(v.X) >= math.Abs(v.Y):
		return geo.West, true
	case v.Y > 0:
		return geo.South, true
	default:
		return geo.North, true
	}
}

func centroidCell(cells []geo.GridCell) geo.GridCell {
	var sum r2.Vec
	for _, cell := range cells {
		sum = r2.Add(sum, vec(cell))
	}
	c := r2.Scale(1/float64(len(cells)), sum)
	return geo.GridCell{X: int(math.Round(c.X)), Z: int(math.Round(c.Y))}
}

func vec(cell geo.GridCell) r2.Vec {
	return r2.Vec{X: float64(cell.X), Y: float64(cell.Z)}
}
