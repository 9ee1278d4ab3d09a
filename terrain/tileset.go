package terrain

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	missingTileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_terrain_missing_tile_cache_hits_total",
		Help: "The total number of hits on the missing DEM tile cache",
	})
	missingTileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_terrain_missing_tile_cache_misses_total",
		Help: "The total number of misses on the missing DEM tile cache",
	})
	tileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_terrain_tile_cache_hits_total",
		Help: "The total number of hits on the DEM tile cache",
	})
	tileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_terrain_tile_cache_misses_total",
		Help: "The total number of misses on the DEM tile cache",
	})
	tileCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_terrain_tile_cache_evictions_total",
		Help: "The total number of evictions from the DEM tile cache",
	})
)

// A TileCoordFunc returns the coordinate of the tile containing a coordinate.
type TileCoordFunc func(Coord) (TileCoord, bool)

// A TileFilenameFunc returns the filename of a tile.
type TileFilenameFunc func(TileCoord) string

// A TileSet is a Raster made of GeoTIFF tiles that are opened on demand.
type TileSet struct {
	mutex            sync.Mutex
	fsys             fs.FS
	srid             int
	tileCoordFunc    TileCoordFunc
	tileFilenameFunc TileFilenameFunc
	missingTiles     sync.Map
	tileOptions      []TileOption
	cacheSize        int
	scaleX           int
	scaleY           int
	tileCache        *lru.Cache[TileCoord, *Tile]
}

// A TileSetOption sets an option on a TileSet.
type TileSetOption func(*TileSet)

// NewTileSet returns a new TileSet with the given options.
func NewTileSet(options ...TileSetOption) (*TileSet, error) {
	s := &TileSet{
		cacheSize: 32,
	}
	for _, option := range options {
		option(s)
	}
	if s.fsys == nil || s.tileCoordFunc == nil || s.tileFilenameFunc == nil {
		return nil, errors.New("terrain: tile set requires a filesystem, tile coord func, and filename func")
	}

	var err error
	s.tileCache, err = lru.NewWithEvict(s.cacheSize, func(_ TileCoord, tile *Tile) {
		_ = tile.Close()
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// WithCacheSize sets the maximum number of open tiles.
func WithCacheSize(cacheSize int) TileSetOption {
	return func(s *TileSet) {
		s.cacheSize = cacheSize
	}
}

// WithFS sets the filesystem containing the tiles.
func WithFS(fsys fs.FS) TileSetOption {
	return func(s *TileSet) {
		s.fsys = fsys
	}
}

// WithTileOptions sets the options used to open each tile.
func WithTileOptions(tileOptions ...TileOption) TileSetOption {
	return func(s *TileSet) {
		s.tileOptions = tileOptions
	}
}

// WithTileCoordFunc sets the function that locates tiles.
func WithTileCoordFunc(tileCoordFunc TileCoordFunc) TileSetOption {
	return func(s *TileSet) {
		s.tileCoordFunc = tileCoordFunc
	}
}

// WithSRID sets the EPSG code of the tiles' CRS.
func WithSRID(srid int) TileSetOption {
	return func(s *TileSet) {
		s.srid = srid
	}
}

// WithScale sets the size of a pixel in meters.
func WithScale(scaleX, scaleY int) TileSetOption {
	return func(s *TileSet) {
		s.scaleX = scaleX
		s.scaleY = scaleY
	}
}

// WithTileFilenameFunc sets the function that names tiles.
func WithTileFilenameFunc(tileFilenameFunc TileFilenameFunc) TileSetOption {
	return func(s *TileSet) {
		s.tileFilenameFunc = tileFilenameFunc
	}
}

// Samples implements Raster.Samples.
func (s *TileSet) Samples(ctx context.Context, coords []Coord) ([]float64, error) {
	samples := make([]float64, len(coords))

	type group struct {
		coords  []Coord
		indexes []int
	}
	groupsByTileCoord := make(map[TileCoord]*group)
	for index, coord := range coords {
		tileCoord, ok := s.tileCoordFunc(coord)
		if !ok {
			samples[index] = math.NaN()
			continue
		}
		g, ok := groupsByTileCoord[tileCoord]
		if !ok {
			g = &group{}
			groupsByTileCoord[tileCoord] = g
		}
		g.coords = append(g.coords, coord)
		g.indexes = append(g.indexes, index)
	}

	for tileCoord, g := range groupsByTileCoord {
		tile, err := s.getTileCached(tileCoord)
		if err != nil {
			return nil, err
		}
		if tile == nil {
			for _, index := range g.indexes {
				samples[index] = math.NaN()
			}
			continue
		}
		tileSamples, err := tile.Samples(ctx, g.coords)
		if err != nil {
			return nil, err
		}
		for i, index := range g.indexes {
			samples[index] = tileSamples[i]
		}
	}

	return samples, nil
}

// SRID returns s's SRID.
func (s *TileSet) SRID() int {
	return s.srid
}

// Scale implements Raster.Scale.
func (s *TileSet) Scale() (int, int) {
	return s.scaleX, s.scaleY
}

// Close closes all open tiles.
func (s *TileSet) Close() {
	s.tileCache.Purge()
}

func (s *TileSet) getTile(tileCoord TileCoord) (*Tile, error) {
	filename := s.tileFilenameFunc(tileCoord)
	tileOptions := s.tileOptions
	if s.srid != 0 {
		tileOptions = append(slices.Clip(tileOptions), WithExpectedSRID(s.srid))
	}
	switch tile, err := OpenTile(s.fsys, filename, tileOptions...); {
	case errors.Is(err, fs.ErrNotExist):
		s.missingTiles.Store(tileCoord, struct{}{})
		missingTileCacheMisses.Inc()
		return nil, nil
	case err != nil:
		return nil, err
	default:
		return tile, nil
	}
}

// getTileCached returns the tile at tileCoord, or nil if it does not exist.
func (s *TileSet) getTileCached(tileCoord TileCoord) (*Tile, error) {
	if _, ok := s.missingTiles.Load(tileCoord); ok {
		missingTileCacheHits.Inc()
		return nil, nil
	}

	if tile, ok := s.tileCache.Get(tileCoord); ok {
		tileCacheHits.Inc()
		return tile, nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.missingTiles.Load(tileCoord); ok {
		missingTileCacheHits.Inc()
		return nil, nil
	}

	if tile, ok := s.tileCache.Get(tileCoord); ok {
		tileCacheHits.Inc()
		return tile, nil
	}

	tileCacheMisses.Inc()

	tile, err := s.getTile(tileCoord)
	if err != nil || tile == nil {
		return nil, err
	}

	if eviction := s.tileCache.Add(tileCoord, tile); eviction {
		tileCacheEvictions.Inc()
	}

	return tile, nil
}
