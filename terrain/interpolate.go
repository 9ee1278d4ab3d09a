package terrain

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// InterpolateBilinear returns the bilinear interpolation of raster at points,
// which are in raster's CRS. Any missing corner sample makes the result NaN.
func InterpolateBilinear(ctx context.Context, raster Raster, points []r2.Vec) ([]float64, error) {
	scaleX, scaleY := raster.Scale()
	origin := func(p r2.Vec) (int, int) {
		return scaleX * int(math.Floor(p.X/float64(scaleX))), scaleY * int(math.Floor(p.Y/float64(scaleY)))
	}

	rasterCoords := make([]Coord, 0, 4*len(points))
	for _, p := range points {
		x0, y0 := origin(p)
		x1, y1 := x0+scaleX, y0+scaleY
		rasterCoords = append(rasterCoords,
			Coord{X: x0, Y: y0},
			Coord{X: x1, Y: y0},
			Coord{X: x0, Y: y1},
			Coord{X: x1, Y: y1},
		)
	}
	samples, err := raster.Samples(ctx, rasterCoords)
	if err != nil {
		return nil, err
	}

	result := make([]float64, len(points))
	for i, p := range points {
		x0, y0 := origin(p)
		dx := (p.X - float64(x0)) / float64(scaleX)
		dy := (p.Y - float64(y0)) / float64(scaleY)
		result[i] = samples[4*i+0]*(1-dx)*(1-dy) +
			samples[4*i+1]*dx*(1-dy) +
			samples[4*i+2]*(1-dx)*dy +
			samples[4*i+3]*dx*dy
	}
	return result, nil
}
