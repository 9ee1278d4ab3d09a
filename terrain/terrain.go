// Package terrain samples digital elevation models stored as tiled GeoTIFFs
// and turns them into column heights for the voxel world.
package terrain

import "context"

// A Coord is a coordinate in a raster's projected CRS, in meters.
type Coord struct {
	X int
	Y int
}

// A TileCoord is a tile coordinate.
type TileCoord struct {
	C int // Column.
	R int // Row.
}

// A Raster returns samples at coordinates. Missing samples are NaN.
type Raster interface {
	Samples(ctx context.Context, coords []Coord) ([]float64, error)
	Scale() (int, int)
}
