package geo

import (
	"math"

	"github.com/twpayne/go-proj/v10"
	"gonum.org/v1/gonum/spatial/r2"
)

// EarthRadius is the sphere radius used by the planar projection, in meters.
const EarthRadius = 6378137

// A Projector maps geographic coordinates to planar meters and back.
type Projector interface {
	Project(p GeoPoint) (r2.Vec, error)
	Unproject(v r2.Vec) (GeoPoint, error)
}

// PlanarX returns the planar easting of long, in meters.
func PlanarX(long float64) float64 {
	return long * math.Pi / 180 * EarthRadius
}

// PlanarY returns the planar northing of lat, in meters. lat must satisfy
// |lat| < 90.
func PlanarY(lat float64) float64 {
	return math.Log(math.Tan((lat/2+45)*math.Pi/180)) * EarthRadius
}

// A MercatorProjector projects with the spherical Mercator formulas.
type MercatorProjector struct{}

// Project implements Projector.
func (MercatorProjector) Project(p GeoPoint) (r2.Vec, error) {
	if err := checkGeoPoint(p); err != nil {
		return r2.Vec{}, err
	}
	return r2.Vec{X: PlanarX(p.Long), Y: PlanarY(p.Lat)}, nil
}

// Unproject implements Projector.
func (MercatorProjector) Unproject(v r2.Vec) (GeoPoint, error) {
	lat := (2*math.Atan(math.Exp(v.Y/EarthRadius)) - math.Pi/2) * 180 / math.Pi
	long := v.X / EarthRadius * 180 / math.Pi
	return GeoPoint{Lat: lat, Long: long}, nil
}

// A PROJProjector projects to EPSG:3857 using PROJ. The result matches
// MercatorProjector up to floating point rounding.
type PROJProjector struct {
	pj *proj.PJ
}

// NewPROJProjector returns a new PROJProjector.
func NewPROJProjector() (*PROJProjector, error) {
	pj, err := proj.NewCRSToCRS("epsg:4326", "epsg:3857", nil)
	if err != nil {
		return nil, err
	}
	return &PROJProjector{
		pj: pj,
	}, nil
}

// Project implements Projector.
func (p *PROJProjector) Project(g GeoPoint) (r2.Vec, error) {
	if err := checkGeoPoint(g); err != nil {
		return r2.Vec{}, err
	}
	// EPSG:4326 uses latitude, longitude axis order.
	coord, err := p.pj.Forward(proj.NewCoord(g.Lat, g.Long, 0, 0))
	if err != nil {
		return r2.Vec{}, err
	}
	return r2.Vec{X: coord[0], Y: coord[1]}, nil
}

// Unproject implements Projector.
func (p *PROJProjector) Unproject(v r2.Vec) (GeoPoint, error) {
	coord, err := p.pj.Inverse(proj.NewCoord(v.X, v.Y, 0, 0))
	if err != nil {
		return GeoPoint{}, err
	}
	return GeoPoint{Lat: coord[0], Long: coord[1]}, nil
}

func checkGeoPoint(p GeoPoint) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Long) || math.Abs(p.Lat) >= 90 || math.Abs(p.Long) > 180 {
		return &ErrInvalidCoordinate{Lat: p.Lat, Long: p.Long}
	}
	return nil
}
