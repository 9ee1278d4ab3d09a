package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/placement"
	"github.com/twpayne/go-voxelize/render"
	"github.com/twpayne/go-voxelize/terrain"
	"github.com/twpayne/go-voxelize/world"
)

const maxConfigSize = 1 << 20

// Projector names accepted by Config.Projector.
const (
	ProjectorMercator = "mercator"
	ProjectorPROJ     = "proj"
)

// A Config is the configuration of a run. It is read from a JSON file that
// may contain comments and trailing commas. Absent fields take their defaults
// from the GetXxx methods.
type Config struct {
	Anchors        []geo.Anchor      `json:"anchors"`
	Bounds         *geo.Rect         `json:"bounds,omitempty"`
	Projector      *string           `json:"projector,omitempty"`
	ScaleFactor    *float64          `json:"scale_factor,omitempty"`
	LaneWidth      *int              `json:"lane_width,omitempty"`
	SidewalkWidth  *int              `json:"sidewalk_width,omitempty"`
	Clearance      *int              `json:"clearance,omitempty"`
	MaxBuildHeight *int              `json:"max_build_height,omitempty"`
	FlushEvery     *int              `json:"flush_every,omitempty"`
	MaxSignSteps   *int              `json:"max_sign_steps,omitempty"`
	WallMaterials  map[string]string `json:"wall_materials,omitempty"`
	Stories        map[string]int    `json:"stories,omitempty"`
	SeaLevel       *int              `json:"sea_level,omitempty"`
	VerticalScale  *float64          `json:"vertical_scale,omitempty"`
	BaseElevation  *float64          `json:"base_elevation,omitempty"`
	ChunkCacheSize *int              `json:"chunk_cache_size,omitempty"`
}

// LoadConfig reads and validates the config file at path.
func LoadConfig(path string) (*Config, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fileInfo.Size() > maxConfigSize {
		return nil, fmt.Errorf("%s: config file too large: %d bytes (max %d)", path, fileInfo.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// ParseConfig parses and validates a config.
func ParseConfig(data []byte) (*Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	config := &Config{}
	if err := json.Unmarshal(standardized, config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Validate returns an error if c is invalid.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Anchors) == 0 {
		errs = append(errs, geo.ErrNoAnchors)
	}
	if c.Bounds != nil && (c.Bounds.Min.X > c.Bounds.Max.X || c.Bounds.Min.Z > c.Bounds.Max.Z) {
		errs = append(errs, fmt.Errorf("bounds: min %s is not below max %s", c.Bounds.Min, c.Bounds.Max))
	}
	switch projector := c.GetProjector(); projector {
	case ProjectorMercator, ProjectorPROJ:
	default:
		errs = append(errs, fmt.Errorf("projector: unknown projector %q", projector))
	}
	if c.ScaleFactor != nil && *c.ScaleFactor <= 0 {
		errs = append(errs, fmt.Errorf("scale_factor must be positive, got %f", *c.ScaleFactor))
	}
	for name, value := range map[string]*int{
		"lane_width":       c.LaneWidth,
		"sidewalk_width":   c.SidewalkWidth,
		"max_sign_steps":   c.MaxSignSteps,
		"chunk_cache_size": c.ChunkCacheSize,
	} {
		if value != nil && *value < 1 {
			errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", name, *value))
		}
	}
	for name, value := range map[string]*int{
		"clearance":   c.Clearance,
		"flush_every": c.FlushEvery,
	} {
		if value != nil && *value < 0 {
			errs = append(errs, fmt.Errorf("%s must be non-negative, got %d", name, *value))
		}
	}
	for name, value := range map[string]*int{
		"max_build_height": c.MaxBuildHeight,
		"sea_level":        c.SeaLevel,
	} {
		if value != nil && (*value < world.MinHeight || *value > world.MaxHeight) {
			errs = append(errs, fmt.Errorf("%s must be between %d and %d, got %d", name, world.MinHeight, world.MaxHeight, *value))
		}
	}
	for amenity, name := range c.WallMaterials {
		if _, err := world.ParseMaterial(name); err != nil {
			errs = append(errs, fmt.Errorf("wall_materials: %q: %w", amenity, err))
		}
	}
	return errors.Join(errs...)
}

// GetProjector returns the name of the planar projector.
func (c *Config) GetProjector() string {
	if c.Projector == nil {
		return ProjectorMercator
	}
	return *c.Projector
}

// GetScaleFactor returns the converter scale factor.
func (c *Config) GetScaleFactor() float64 {
	if c.ScaleFactor == nil {
		return geo.DefaultScaleFactor
	}
	return *c.ScaleFactor
}

func (c *Config) GetLaneWidth() int {
	if c.LaneWidth == nil {
		return render.DefaultLaneWidth
	}
	return *c.LaneWidth
}

func (c *Config) GetSidewalkWidth() int {
	if c.SidewalkWidth == nil {
		return render.DefaultSidewalkWidth
	}
	return *c.SidewalkWidth
}

func (c *Config) GetClearance() int {
	if c.Clearance == nil {
		return render.DefaultClearance
	}
	return *c.Clearance
}

func (c *Config) GetMaxBuildHeight() int {
	if c.MaxBuildHeight == nil {
		return world.MaxHeight
	}
	return *c.MaxBuildHeight
}

func (c *Config) GetFlushEvery() int {
	if c.FlushEvery == nil {
		return render.DefaultFlushEvery
	}
	return *c.FlushEvery
}

func (c *Config) GetMaxSignSteps() int {
	if c.MaxSignSteps == nil {
		return placement.DefaultMaxSteps
	}
	return *c.MaxSignSteps
}

func (c *Config) GetSeaLevel() int {
	if c.SeaLevel == nil {
		return terrain.DefaultSeaLevel
	}
	return *c.SeaLevel
}

func (c *Config) GetVerticalScale() float64 {
	if c.VerticalScale == nil {
		return terrain.DefaultVerticalScale
	}
	return *c.VerticalScale
}

func (c *Config) GetBaseElevation() float64 {
	if c.BaseElevation == nil {
		return 0
	}
	return *c.BaseElevation
}

func (c *Config) GetChunkCacheSize() int {
	if c.ChunkCacheSize == nil {
		return world.DefaultChunkCacheSize
	}
	return *c.ChunkCacheSize
}

// NewConverter returns the converter described by c.
func (c *Config) NewConverter(options ...geo.ConverterOption) (*geo.Converter, error) {
	converterOptions := []geo.ConverterOption{
		geo.WithScaleFactor(c.GetScaleFactor()),
	}
	if c.Bounds != nil {
		converterOptions = append(converterOptions, geo.WithBounds(*c.Bounds))
	}
	if c.GetProjector() == ProjectorPROJ {
		projector, err := geo.NewPROJProjector()
		if err != nil {
			return nil, err
		}
		converterOptions = append(converterOptions, geo.WithProjector(projector))
	}
	return geo.NewConverter(c.Anchors, append(converterOptions, options...)...)
}

// RendererOptions returns the renderer options described by c.
func (c *Config) RendererOptions() []render.Option {
	options := []render.Option{
		render.WithLaneWidth(c.GetLaneWidth()),
		render.WithSidewalkWidth(c.GetSidewalkWidth()),
		render.WithClearance(c.GetClearance()),
		render.WithMaxBuildHeight(c.GetMaxBuildHeight()),
		render.WithFlushEvery(c.GetFlushEvery()),
	}
	if len(c.WallMaterials) > 0 {
		wallMaterials := make(map[string]world.Material, len(c.WallMaterials))
		for amenity, name := range c.WallMaterials {
			// Names were checked by Validate.
			wallMaterials[amenity], _ = world.ParseMaterial(name)
		}
		options = append(options, render.WithWallMaterials(wallMaterials))
	}
	return options
}

// PlacerOptions returns the placer options described by c.
func (c *Config) PlacerOptions() []placement.Option {
	return []placement.Option{
		placement.WithMaxSteps(c.GetMaxSignSteps()),
	}
}

// GridHeightSourceOptions returns the terrain height options described by c.
func (c *Config) GridHeightSourceOptions() []terrain.GridHeightSourceOption {
	return []terrain.GridHeightSourceOption{
		terrain.WithSeaLevel(c.GetSeaLevel()),
		terrain.WithVerticalScale(c.GetVerticalScale()),
		terrain.WithBaseElevation(c.GetBaseElevation()),
	}
}

// StoryAugmenter returns the story table of c, or nil if it has none.
func (c *Config) StoryAugmenter() feature.StoryAugmenter {
	if len(c.Stories) == 0 {
		return nil
	}
	table := make(feature.StoryTable, len(c.Stories))
	for address, stories := range c.Stories {
		table[address] = stories
	}
	return table
}
