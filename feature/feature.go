// Package feature defines the classified map records consumed by the
// renderer and the repository that groups them.
package feature

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/twpayne/go-voxelize/geo"
)

// DefaultLanes is the lane count of a road without a lanes attribute.
const DefaultLanes = 2

// ErrDegenerateFeature indicates a feature whose geometry cannot be rendered,
// for example a polyline with a single point.
var ErrDegenerateFeature = errors.New("degenerate feature")

// A RoadFeature is a classified road, path or crossing way.
type RoadFeature struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name,omitempty"`
	Geometry []geo.GeoPoint `json:"geometry"`
	Lanes    *int           `json:"lanes,omitempty"`
	Surface  Surface        `json:"surface"`
	Sidewalk SidewalkSides  `json:"sidewalk"`
	Crossing CrossingKind   `json:"crossing"`
	Layer    *int           `json:"layer,omitempty"`
}

// A SegmentRef identifies edge Segment, from point Segment to point Segment+1,
// of road Feature.
type SegmentRef struct {
	Feature int64 `json:"feature"`
	Segment int   `json:"segment"`
}

func (s SegmentRef) String() string {
	return fmt.Sprintf("%d/%d", s.Feature, s.Segment)
}

// Compare orders segment refs by feature then segment.
func (s SegmentRef) Compare(other SegmentRef) int {
	switch {
	case s.Feature < other.Feature:
		return -1
	case s.Feature > other.Feature:
		return 1
	default:
		return s.Segment - other.Segment
	}
}

// Identity returns the key under which r is considered the same road as
// another feature: its name, or its ID if unnamed.
func (r *RoadFeature) Identity() string {
	if r.Name != "" {
		return r.Name
	}
	return "#" + strconv.FormatInt(r.ID, 10)
}

// LaneCount returns r's lane count.
func (r *RoadFeature) LaneCount() int {
	if r.Lanes == nil || *r.Lanes < 1 {
		return DefaultLanes
	}
	return *r.Lanes
}

// LayerValue returns r's layer, zero when absent.
func (r *RoadFeature) LayerValue() int {
	if r.Layer == nil {
		return 0
	}
	return *r.Layer
}

// Segments returns the number of edges in r's geometry.
func (r *RoadFeature) Segments() int {
	return max(len(r.Geometry)-1, 0)
}

// Validate returns an error if r cannot be rendered.
func (r *RoadFeature) Validate() error {
	if len(r.Geometry) < 2 {
		return fmt.Errorf("road %d: %d points: %w", r.ID, len(r.Geometry), ErrDegenerateFeature)
	}
	return nil
}

// A BuildingFeature is a building footprint with its address attributes.
// Footprint is a closed ring.
type BuildingFeature struct {
	ID          int64          `json:"id"`
	Footprint   []geo.GeoPoint `json:"footprint"`
	Street      string         `json:"street,omitempty"`
	HouseNumber string         `json:"house_number,omitempty"`
	Amenity     string         `json:"amenity,omitempty"`
	Stories     int            `json:"stories,omitempty"`
	Primary     *geo.GeoPoint  `json:"primary,omitempty"`
}

// HasAddress returns whether b has both a street and a house number.
func (b *BuildingFeature) HasAddress() bool {
	return b.Street != "" && b.HouseNumber != ""
}

// Address returns b's address as "number street".
func (b *BuildingFeature) Address() string {
	return b.HouseNumber + " " + b.Street
}

// Ring returns b's footprint as an orb.Ring in (long, lat) order.
func (b *BuildingFeature) Ring() orb.Ring {
	ring := make(orb.Ring, len(b.Footprint))
	for i, p := range b.Footprint {
		ring[i] = orb.Point{p.Long, p.Lat}
	}
	return ring
}

// Validate returns an error if b cannot be rendered.
func (b *BuildingFeature) Validate() error {
	if len(b.Footprint) < 3 {
		return fmt.Errorf("building %d: %d points: %w", b.ID, len(b.Footprint), ErrDegenerateFeature)
	}
	return nil
}

// A SignFeature is a point sign or street furniture.
type SignFeature struct {
	ID    int64        `json:"id"`
	Point geo.GeoPoint `json:"point"`
	Kind  SignKind     `json:"kind"`
}

// A BarrierFeature is a linear barrier such as a fence.
type BarrierFeature struct {
	ID       int64          `json:"id"`
	Geometry []geo.GeoPoint `json:"geometry"`
	Kind     BarrierKind    `json:"kind"`
}

// Validate returns an error if b cannot be rendered.
func (b *BarrierFeature) Validate() error {
	if len(b.Geometry) < 2 {
		return fmt.Errorf("barrier %d: %d points: %w", b.ID, len(b.Geometry), ErrDegenerateFeature)
	}
	return nil
}

// An AddressPoint is a stand-alone address node.
type AddressPoint struct {
	Point       geo.GeoPoint `json:"point"`
	Street      string       `json:"street"`
	HouseNumber string       `json:"house_number"`
}

// AddressKey returns the normalized join key for an address.
func AddressKey(houseNumber, street string) string {
	return strings.ToLower(strings.TrimSpace(houseNumber) + " " + strings.Join(strings.Fields(street), " "))
}
