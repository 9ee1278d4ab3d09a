// Package render draws roads, buildings and barriers into a voxel world and
// records the road cells it claims in an OccupancyMap.
package render

import (
	"context"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/spatialindex"
	"github.com/twpayne/go-voxelize/world"
)

// Defaults.
const (
	DefaultLaneWidth     = 2
	DefaultSidewalkWidth = 1
	DefaultClearance     = 4
	DefaultFlushEvery    = 64
)

const (
	minBuildingHeight = 6
	storyHeight       = 4
)

var (
	cellsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_render_cells_claimed_total",
		Help: "The total number of road cells claimed",
	})
	cellsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_render_cells_merged_total",
		Help: "The total number of road cells shared with another segment",
	})
	cellsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_render_cells_skipped_total",
		Help: "The total number of cells skipped because they were already occupied",
	})
	cellsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_render_cells_dropped_total",
		Help: "The total number of cells dropped because they were outside the world",
	})
	featuresRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_render_features_total",
		Help: "The total number of features rendered",
	})
)

var defaultWallMaterials = map[string]world.Material{
	"":                 world.Brick,
	"hospital":         world.Quartz,
	"place_of_worship": world.Sandstone,
	"retail":           world.Glass,
	"school":           world.Brick,
	"shop":             world.Glass,
	"townhall":         world.Quartz,
}

var surfaceMaterials = map[feature.Surface]world.Material{
	feature.SurfaceAsphalt:  world.Asphalt,
	feature.SurfaceConcrete: world.Concrete,
	feature.SurfacePaving:   world.Paving,
	feature.SurfaceGravel:   world.Gravel,
	feature.SurfaceDirt:     world.Dirt,
	feature.SurfaceWood:     world.Planks,
}

// A Renderer draws features into a world.Store and an OccupancyMap. It is not
// safe for concurrent use.
type Renderer struct {
	converter      *geo.Converter
	store          world.Store
	occupancy      *OccupancyMap
	laneWidth      int
	sidewalkWidth  int
	clearance      int
	maxBuildHeight int
	flushEvery     int
	wallMaterials  map[string]world.Material
	features       int
	roadIndexes    map[string]*spatialindex.PointIndex[int64]
}

// An Option sets an option on a Renderer.
type Option func(*Renderer)

// WithLaneWidth sets the width of a lane in cells.
func WithLaneWidth(laneWidth int) Option {
	return func(r *Renderer) {
		r.laneWidth = laneWidth
	}
}

// WithSidewalkWidth sets the width of a sidewalk in cells.
func WithSidewalkWidth(sidewalkWidth int) Option {
	return func(r *Renderer) {
		r.sidewalkWidth = sidewalkWidth
	}
}

// WithClearance sets the number of blocks cleared above a newly claimed road
// cell.
func WithClearance(clearance int) Option {
	return func(r *Renderer) {
		r.clearance = clearance
	}
}

// WithMaxBuildHeight sets the maximum height of building roofs.
func WithMaxBuildHeight(maxBuildHeight int) Option {
	return func(r *Renderer) {
		r.maxBuildHeight = maxBuildHeight
	}
}

// WithFlushEvery sets the number of features rendered between store flushes.
// Zero disables periodic flushing.
func WithFlushEvery(flushEvery int) Option {
	return func(r *Renderer) {
		r.flushEvery = flushEvery
	}
}

// WithWallMaterials overrides the wall material of buildings by amenity. The
// empty amenity sets the default.
func WithWallMaterials(wallMaterials map[string]world.Material) Option {
	return func(r *Renderer) {
		for amenity, material := range wallMaterials {
			r.wallMaterials[amenity] = material
		}
	}
}

// NewRenderer returns a new Renderer.
func NewRenderer(converter *geo.Converter, store world.Store, occupancy *OccupancyMap, options ...Option) *Renderer {
	r := &Renderer{
		converter:      converter,
		store:          store,
		occupancy:      occupancy,
		laneWidth:      DefaultLaneWidth,
		sidewalkWidth:  DefaultSidewalkWidth,
		clearance:      DefaultClearance,
		maxBuildHeight: world.MaxHeight,
		flushEvery:     DefaultFlushEvery,
		wallMaterials:  make(map[string]world.Material, len(defaultWallMaterials)),
		roadIndexes:    make(map[string]*spatialindex.PointIndex[int64]),
	}
	for amenity, material := range defaultWallMaterials {
		r.wallMaterials[amenity] = material
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Features returns the number of features r has rendered.
func (r *Renderer) Features() int {
	return r.features
}

// AdjustedWidth returns width scaled by the secant of the angle between the
// line from from to to and its dominant axis, so that diagonal bands look as
// wide as axis-aligned ones.
func AdjustedWidth(width int, from, to geo.GridCell) int {
	dx, dz := math.Abs(float64(to.X-from.X)), math.Abs(float64(to.Z-from.Z))
	major := max(dx, dz)
	if major == 0 {
		return width
	}
	secant := math.Hypot(dx, dz) / major
	return max(int(math.Round(float64(width)*secant)), 1)
}

func (r *Renderer) convertPath(points []geo.GeoPoint) ([]geo.GridCell, error) {
	path := make([]geo.GridCell, len(points))
	for i, p := range points {
		cell, err := r.converter.ToGrid(p)
		if err != nil {
			return nil, err
		}
		path[i] = cell
	}
	return path, nil
}

func (r *Renderer) featureDone(ctx context.Context) error {
	r.features++
	featuresRendered.Inc()
	if r.flushEvery > 0 && r.features%r.flushEvery == 0 {
		if err := r.store.Flush(ctx); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
	}
	return nil
}

func (r *Renderer) wallMaterial(amenity string) world.Material {
	if material, ok := r.wallMaterials[amenity]; ok {
		return material
	}
	return r.wallMaterials[""]
}
