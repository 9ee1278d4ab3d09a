package placement

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/topology"
	"github.com/twpayne/go-voxelize/world"
)

// DefaultMaxSteps is the default limit of each leg of a mount point search.
const DefaultMaxSteps = 8

const (
	maxLightSegments = 4
	signalMargin     = 2
	signHeight       = 2
	lightHeight      = 5
)

var (
	signsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_placement_signs_total",
		Help: "The total number of signs placed",
	})
	lightsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_placement_lights_total",
		Help: "The total number of overhead lights placed",
	})
	mountFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_placement_mount_failures_total",
		Help: "The total number of signs that could not be mounted",
	})
)

var signAttachmentKinds = map[feature.SignKind]world.AttachmentKind{
	feature.SignStop:           world.StopSign,
	feature.SignGiveWay:        world.GiveWaySign,
	feature.SignTrafficSignals: world.TrafficLight,
	feature.SignBusStop:        world.BusStopSign,
	feature.SignStreetLamp:     world.StreetLamp,
}

// An Occupancy reports which cells are taken.
type Occupancy interface {
	IsRoad(cell geo.GridCell) bool
	Occupied(cell geo.GridCell) bool
}

// An Approach is a road segment leading away from an intersection.
type Approach struct {
	Segment  feature.SegmentRef
	Name     string
	Identity string
	Bearing  int
}

// A Placement is an attachment placed in the world.
type Placement struct {
	Pos        world.Pos
	Attachment world.Attachment
}

// A Placer places signs and lights. It is not safe for concurrent use.
type Placer struct {
	converter *geo.Converter
	store     world.Store
	occupancy Occupancy
	roads     topology.RoadLookup
	maxSteps  int
	paths     map[int64][]geo.GridCell
	signals   map[geo.GridCell]int64
	consumed  map[int64]struct{}
	used      map[geo.GridCell]struct{}
}

// An Option sets an option on a Placer.
type Option func(*Placer)

// WithMaxSteps sets the limit of each leg of a mount point search.
func WithMaxSteps(maxSteps int) Option {
	return func(p *Placer) {
		p.maxSteps = maxSteps
	}
}

// NewPlacer returns a new Placer.
func NewPlacer(converter *geo.Converter, store world.Store, occupancy Occupancy, roads topology.RoadLookup, options ...Option) *Placer {
	p := &Placer{
		converter: converter,
		store:     store,
		occupancy: occupancy,
		roads:     roads,
		maxSteps:  DefaultMaxSteps,
		paths:     make(map[int64][]geo.GridCell),
		signals:   make(map[geo.GridCell]int64),
		consumed:  make(map[int64]struct{}),
		used:      make(map[geo.GridCell]struct{}),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// AddSignal records sign as a candidate controller for overhead lights. Signs
// of other kinds are ignored.
func (p *Placer) AddSignal(sign *feature.SignFeature) error {
	if sign.Kind != feature.SignTrafficSignals {
		return nil
	}
	cell, err := p.converter.ToGrid(sign.Point)
	if err != nil {
		return fmt.Errorf("sign %d: %w", sign.ID, err)
	}
	if _, ok := p.signals[cell]; !ok {
		p.signals[cell] = sign.ID
	}
	return nil
}

// Approaches returns the approaches of intersection. Segments of the same
// road leaving in the same compass direction are reported once.
func (p *Placer) Approaches(intersection *topology.Intersection) ([]Approach, error) {
	type approachKey struct {
		identity  string
		direction geo.Direction
	}

	center := intersection.Center()
	seen := make(map[approachKey]struct{})
	var approaches []Approach
	for _, ref := range intersection.Segments {
		road, ok := p.roads.Road(ref.Feature)
		if !ok {
			continue
		}
		path, err := p.path(road)
		if err != nil {
			return nil, err
		}
		if ref.Segment < 0 || ref.Segment+1 >= len(path) {
			continue
		}
		bearing := BearingFromIntersection(center, path[ref.Segment], path[ref.Segment+1])
		key := approachKey{identity: road.Identity(), direction: QuantizeBearing(bearing)}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		approaches = append(approaches, Approach{
			Segment:  ref,
			Name:     road.Name,
			Identity: road.Identity(),
			Bearing:  bearing,
		})
	}
	return approaches, nil
}

// CrossNames returns the sorted names of the roads crossing approaches[i].
// The approach's own road and roads across the street from it are excluded.
func CrossNames(approaches []Approach, i int) []string {
	own := approaches[i]
	names := make(map[string]struct{})
	for j, other := range approaches {
		switch {
		case j == i:
		case other.Name == "" || other.Name == own.Name:
		case AcrossTheStreet(own.Bearing, other.Bearing):
		default:
			names[other.Name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(names))
}

// PlaceIntersection places overhead lights or street name signs around
// intersection.
func (p *Placer) PlaceIntersection(ctx context.Context, intersection *topology.Intersection) ([]Placement, error) {
	approaches, err := p.Approaches(intersection)
	if err != nil {
		return nil, err
	}
	if len(approaches) == 0 {
		return nil, nil
	}
	if signalID, ok := p.lightsEligible(intersection, approaches); ok {
		p.consumed[signalID] = struct{}{}
		return p.placeLights(ctx, intersection, approaches)
	}
	return p.placeStreetNameSigns(ctx, intersection, approaches)
}

// lightsEligible returns the ID of the traffic signal controlling
// intersection if every approach is axis-aligned.
func (p *Placer) lightsEligible(intersection *topology.Intersection, approaches []Approach) (int64, bool) {
	if len(intersection.Segments) > maxLightSegments {
		return 0, false
	}
	for _, approach := range approaches {
		if !QuantizeBearing(approach.Bearing).IsCardinal() {
			return 0, false
		}
	}
	bounds := intersection.Bounds.Expand(signalMargin)
	var signalID int64
	found := false
	for _, cell := range slices.SortedFunc(maps.Keys(p.signals), compareCells) {
		if bounds.Contains(cell) {
			signalID, found = p.signals[cell], true
			break
		}
	}
	return signalID, found
}

func (p *Placer) placeLights(ctx context.Context, intersection *topology.Intersection, approaches []Approach) ([]Placement, error) {
	var placements []Placement
	for _, approach := range approaches {
		rotated := normalize(approach.Bearing + 90)
		facing := snapCardinal(QuantizeBearing(rotated))
		bestAngle := math.MaxInt
		for _, cross := range approaches {
			if cross.Identity == approach.Identity {
				continue
			}
			if angle := AngleBetween(rotated, cross.Bearing); angle < bestAngle {
				facing, bestAngle = snapCardinal(QuantizeBearing(cross.Bearing)), angle
			}
		}
		cell, ok := p.mountPoint(intersection, approach.Bearing)
		if !ok {
			mountFailures.Inc()
			continue
		}
		placement, err := p.mount(ctx, cell, lightHeight, world.Attachment{
			Kind:        world.TrafficLight,
			Orientation: facing,
		})
		if err != nil {
			return placements, err
		}
		lightsPlaced.Inc()
		placements = append(placements, placement)
	}
	return placements, nil
}

func (p *Placer) placeStreetNameSigns(ctx context.Context, intersection *topology.Intersection, approaches []Approach) ([]Placement, error) {
	var placements []Placement
	for i, approach := range approaches {
		names := CrossNames(approaches, i)
		if len(names) == 0 {
			continue
		}
		cell, ok := p.mountPoint(intersection, approach.Bearing)
		if !ok {
			mountFailures.Inc()
			continue
		}
		placement, err := p.mount(ctx, cell, signHeight, world.Attachment{
			Kind:        world.StreetNameSign,
			Orientation: QuantizeBearing(approach.Bearing),
			Payload:     strings.Join(names, " / "),
		})
		if err != nil {
			return placements, err
		}
		signsPlaced.Inc()
		placements = append(placements, placement)
	}
	return placements, nil
}

// PlaceSign places a stand-alone sign at its own cell or, if that cell is
// taken, at the nearest free cell next to a road. Traffic signals already used
// for overhead lights are skipped.
func (p *Placer) PlaceSign(ctx context.Context, sign *feature.SignFeature) (Placement, bool, error) {
	if _, ok := p.consumed[sign.ID]; ok {
		return Placement{}, false, nil
	}
	cell, err := p.converter.ToGrid(sign.Point)
	if err != nil {
		return Placement{}, false, fmt.Errorf("sign %d: %w", sign.ID, err)
	}
	if !p.converter.IsValidCell(cell) {
		return Placement{}, false, nil
	}
	if !p.free(cell) {
		var ok bool
		if cell, ok = p.nearest(cell, p.mountable); !ok {
			mountFailures.Inc()
			return Placement{}, false, nil
		}
	}
	facing := geo.North
	if road, ok := p.nearest(cell, p.occupancy.IsRoad); ok {
		facing = snapCardinal(QuantizeBearing(Bearing(cell, road)))
	}
	placement, err := p.mount(ctx, cell, signHeight, world.Attachment{
		Kind:        signAttachmentKinds[sign.Kind],
		Orientation: facing,
	})
	if err != nil {
		return Placement{}, false, fmt.Errorf("sign %d: %w", sign.ID, err)
	}
	signsPlaced.Inc()
	return placement, true, nil
}

// mountPoint walks from the center of intersection along bearing until it
// leaves the intersection, then searches sideways toward the right of the
// bearing and back toward the center for a free cell next to a road.
func (p *Placer) mountPoint(intersection *topology.Intersection, bearing int) (geo.GridCell, bool) {
	radians := float64(bearing) * math.Pi / 180
	ux, uz := math.Cos(radians), math.Sin(radians)
	center := intersection.Center()
	bounds := intersection.Bounds
	limit := bounds.Max.X - bounds.Min.X + bounds.Max.Z - bounds.Min.Z + 2

	exit := center
	for step := 1; step <= limit && intersection.Contains(exit); step++ {
		exit = geo.GridCell{
			X: center.X + int(math.Round(float64(step)*ux)),
			Z: center.Z + int(math.Round(float64(step)*uz)),
		}
	}

	// The rotated bearing is (-uz, ux).
	var majorX, majorZ, minorX, minorZ int
	if math.Abs(ux) >= math.Abs(uz) {
		majorX, minorZ = sign(ux), sign(ux)
	} else {
		majorZ, minorX = sign(uz), sign(-uz)
	}

	for back := 0; back <= p.maxSteps; back++ {
		for side := 1; side <= p.maxSteps; side++ {
			cell := exit.Add(side*minorX-back*majorX, side*minorZ-back*majorZ)
			if p.mountable(cell) {
				return cell, true
			}
		}
	}
	return geo.GridCell{}, false
}

// mount places a post of height blocks at cell with attachment on top.
func (p *Placer) mount(ctx context.Context, cell geo.GridCell, height int, attachment world.Attachment) (Placement, error) {
	base, err := p.store.ColumnHeight(ctx, cell.X, cell.Z)
	if err != nil {
		return Placement{}, err
	}
	top := min(base+height, world.MaxHeight)
	for y := base + 1; y < top; y++ {
		if err := p.store.SetBlock(ctx, cell.X, y, cell.Z, world.Block{Material: world.Post}); err != nil {
			return Placement{}, err
		}
	}
	if err := p.store.Attach(ctx, cell.X, top, cell.Z, attachment); err != nil {
		return Placement{}, err
	}
	p.used[cell] = struct{}{}
	return Placement{
		Pos:        world.Pos{X: cell.X, Y: top, Z: cell.Z},
		Attachment: attachment,
	}, nil
}

func (p *Placer) free(cell geo.GridCell) bool {
	if _, ok := p.used[cell]; ok {
		return false
	}
	return p.converter.IsValidCell(cell) && !p.occupancy.Occupied(cell)
}

func (p *Placer) mountable(cell geo.GridCell) bool {
	if !p.free(cell) {
		return false
	}
	for _, neighbor := range cell.Neighbors4() {
		if p.occupancy.IsRoad(neighbor) {
			return true
		}
	}
	return false
}

// nearest returns the cell closest to cell that satisfies f, searching rings
// of increasing Chebyshev distance.
func (p *Placer) nearest(cell geo.GridCell, f func(geo.GridCell) bool) (geo.GridCell, bool) {
	for radius := 1; radius <= p.maxSteps; radius++ {
		var best geo.GridCell
		bestDistance2 := math.MaxInt
		for candidate := range ring(cell, radius) {
			if d := distance2(cell, candidate); d < bestDistance2 && f(candidate) {
				best, bestDistance2 = candidate, d
			}
		}
		if bestDistance2 != math.MaxInt {
			return best, true
		}
	}
	return geo.GridCell{}, false
}

func (p *Placer) path(road *feature.RoadFeature) ([]geo.GridCell, error) {
	if path, ok := p.paths[road.ID]; ok {
		return path, nil
	}
	path := make([]geo.GridCell, 0, len(road.Geometry))
	for _, point := range road.Geometry {
		cell, err := p.converter.ToGrid(point)
		if err != nil {
			return nil, fmt.Errorf("road %d: %w", road.ID, err)
		}
		path = append(path, cell)
	}
	p.paths[road.ID] = path
	return path, nil
}

// ring returns the cells at Chebyshev distance radius from center in
// row-major order.
func ring(center geo.GridCell, radius int) iter.Seq[geo.GridCell] {
	return func(yield func(geo.GridCell) bool) {
		for dz := -radius; dz <= radius; dz++ {
			step := 2 * radius
			if dz == -radius || dz == radius {
				step = 1
			}
			for dx := -radius; dx <= radius; dx += step {
				if !yield(center.Add(dx, dz)) {
					return
				}
			}
		}
	}
}

func sign(v float64) int {
	if v < -1e-9 {
		return -1
	}
	return 1
}

func compareCells(a, b geo.GridCell) int {
	if a.Z != b.Z {
		return a.Z - b.Z
	}
	return a.X - b.X
}
