// Package geo contains the coordinate types shared by the voxelize packages,
// the planar projection of geographic coordinates and the multi-anchor
// conversion from planar meters to grid cells.
package geo

import "fmt"

// A GeoPoint is a WGS-84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.7f, %.7f)", p.Lat, p.Long)
}

// A GridCell is a column of the voxel world. X grows eastward and Z grows
// southward.
type GridCell struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// Add returns c translated by dx, dz.
func (c GridCell) Add(dx, dz int) GridCell {
	return GridCell{X: c.X + dx, Z: c.Z + dz}
}

// Neighbors4 returns the four edge-adjacent cells of c in east, south, west,
// north order.
func (c GridCell) Neighbors4() [4]GridCell {
	return [4]GridCell{
		{X: c.X + 1, Z: c.Z},
		{X: c.X, Z: c.Z + 1},
		{X: c.X - 1, Z: c.Z},
		{X: c.X, Z: c.Z - 1},
	}
}

func (c GridCell) String() string {
	return fmt.Sprintf("[%d, %d]", c.X, c.Z)
}

// An Anchor binds a known geographic point to a known grid cell.
type Anchor struct {
	Geo  GeoPoint `json:"geo"`
	Cell GridCell `json:"cell"`
}

// A Rect is an inclusive rectangle of grid cells.
type Rect struct {
	Min GridCell `json:"min"`
	Max GridCell `json:"max"`
}

// RectAround returns the rectangle containing only c.
func RectAround(c GridCell) Rect {
	return Rect{Min: c, Max: c}
}

// Contains returns whether c is inside r.
func (r Rect) Contains(c GridCell) bool {
	return r.Min.X <= c.X && c.X <= r.Max.X && r.Min.Z <= c.Z && c.Z <= r.Max.Z
}

// Extend returns the smallest rectangle containing both r and c.
func (r Rect) Extend(c GridCell) Rect {
	return Rect{
		Min: GridCell{X: min(r.Min.X, c.X), Z: min(r.Min.Z, c.Z)},
		Max: GridCell{X: max(r.Max.X, c.X), Z: max(r.Max.Z, c.Z)},
	}
}

// Expand returns r grown by margin cells on every side.
func (r Rect) Expand(margin int) Rect {
	return Rect{
		Min: r.Min.Add(-margin, -margin),
		Max: r.Max.Add(margin, margin),
	}
}

// Center returns the cell at the center of r, rounding toward Min.
func (r Rect) Center() GridCell {
	return GridCell{
		X: r.Min.X + (r.Max.X-r.Min.X)/2,
		Z: r.Min.Z + (r.Max.Z-r.Min.Z)/2,
	}
}
