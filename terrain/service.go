package terrain

import (
	"context"
	"fmt"
	"io/fs"
	"math"

	"github.com/twpayne/go-proj/v10"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/twpayne/go-voxelize/geo"
)

// An ElevationService returns elevations in meters at geographic points.
// Unknown elevations are NaN.
type ElevationService interface {
	Elevations(ctx context.Context, points []geo.GeoPoint) ([]float64, error)
}

// A RasterElevationService interpolates a Raster in a projected CRS.
type RasterElevationService struct {
	raster Raster
	pj     *proj.PJ
}

// NewRasterElevationService returns a new RasterElevationService that
// reprojects points from EPSG:4326 to EPSG:srid before sampling raster.
func NewRasterElevationService(raster Raster, srid int) (*RasterElevationService, error) {
	pj, err := proj.NewCRSToCRS("epsg:4326", fmt.Sprintf("epsg:%d", srid), nil)
	if err != nil {
		return nil, err
	}
	return &RasterElevationService{
		raster: raster,
		pj:     pj,
	}, nil
}

// NewEUDEMElevationService returns a RasterElevationService for the EU-DEM
// tiles in fsys.
func NewEUDEMElevationService(fsys fs.FS, options ...TileSetOption) (*RasterElevationService, error) {
	tileSet, err := NewEUDEM(fsys, options...)
	if err != nil {
		return nil, err
	}
	return NewRasterElevationService(tileSet, EUDEMSRID)
}

// Elevations implements ElevationService.
func (s *RasterElevationService) Elevations(ctx context.Context, points []geo.GeoPoint) ([]float64, error) {
	projected := make([]r2.Vec, len(points))
	for i, p := range points {
		// EPSG:4326 is latitude first and EPSG:3035 is northing first.
		coord, err := s.pj.Forward(proj.NewCoord(p.Lat, p.Long, 0, 0))
		if err != nil {
			return nil, err
		}
		projected[i] = r2.Vec{X: coord[1], Y: coord[0]}
	}
	return InterpolateBilinear(ctx, s.raster, projected)
}

// GridHeightSource defaults.
const (
	DefaultSeaLevel      = 64
	DefaultVerticalScale = 1
)

// A GridHeightSource turns elevations into column heights of the voxel world.
// It implements world.HeightSource.
type GridHeightSource struct {
	converter     *geo.Converter
	elevations    ElevationService
	seaLevel      int
	verticalScale float64
	baseElevation float64
}

// A GridHeightSourceOption sets an option on a GridHeightSource.
type GridHeightSourceOption func(*GridHeightSource)

// WithSeaLevel sets the world height of the base elevation.
func WithSeaLevel(seaLevel int) GridHeightSourceOption {
	return func(s *GridHeightSource) {
		s.seaLevel = seaLevel
	}
}

// WithVerticalScale sets the number of blocks per meter of elevation.
func WithVerticalScale(verticalScale float64) GridHeightSourceOption {
	return func(s *GridHeightSource) {
		s.verticalScale = verticalScale
	}
}

// WithBaseElevation sets the elevation in meters that maps to sea level.
func WithBaseElevation(baseElevation float64) GridHeightSourceOption {
	return func(s *GridHeightSource) {
		s.baseElevation = baseElevation
	}
}

// NewGridHeightSource returns a new GridHeightSource.
func NewGridHeightSource(converter *geo.Converter, elevations ElevationService, options ...GridHeightSourceOption) *GridHeightSource {
	s := &GridHeightSource{
		converter:     converter,
		elevations:    elevations,
		seaLevel:      DefaultSeaLevel,
		verticalScale: DefaultVerticalScale,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Height returns the column height at cell. Cells without elevation data are
// at sea level.
func (s *GridHeightSource) Height(ctx context.Context, cell geo.GridCell) (int, error) {
	p, err := s.converter.ToGeo(cell)
	if err != nil {
		return 0, err
	}
	elevations, err := s.elevations.Elevations(ctx, []geo.GeoPoint{p})
	if err != nil {
		return 0, err
	}
	if math.IsNaN(elevations[0]) {
		return s.seaLevel, nil
	}
	return s.seaLevel + int(math.Round((elevations[0]-s.baseElevation)*s.verticalScale)), nil
}
