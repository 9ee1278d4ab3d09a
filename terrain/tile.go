package terrain

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"slices"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	"github.com/maypok86/otter/v2"
	"golang.org/x/image/tiff/lzw"
)

const noDataBits = 0xff7fffff

var (
	errShortRead = errors.New("short read")
	noData       = math.Float32frombits(noDataBits)
)

// An ErrCRSMismatch is returned when a tile's CRS is not the expected one.
type ErrCRSMismatch struct {
	Filename string
	Expected int
	Actual   int
}

func (e *ErrCRSMismatch) Error() string {
	return fmt.Sprintf("%s: EPSG:%d, expected EPSG:%d", e.Filename, e.Actual, e.Expected)
}

type tileFile interface {
	io.ReaderAt
	io.ReadSeeker
	io.Closer
}

// A Tile is an open single-image GeoTIFF with float32 samples stored in
// LZW-compressed tiles.
type Tile struct {
	file                      tileFile
	geoKeys                   *GeoKeys
	srid                      int
	imageWidth                int
	imageLength               int
	tileWidth                 int
	tileLength                int
	tilesAcross               int
	tilesDown                 int
	tileOffsets               []uint64
	tileByteCounts            []uint64
	smallestTileByteCount     uint64
	tileSampleCount           int
	tileByteCountUncompressed int
	tileCacheSizeBytes        int
	tileSamplesCache          *otter.Cache[TileCoord, []float32]
	emptyTileBytes            []byte
	scaleX                    int
	scaleY                    int
	translateX                int
	translateY                int
}

// A TileOption sets an option on a Tile.
type TileOption func(*Tile)

// geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint16    `tiff:"field,tag=256"`
	ImageLength               uint16    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint16    `tiff:"field,tag=322"`
	TileLength                uint16    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag        []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag         string    `tiff:"field,tag=34737"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

// supported returns whether ifd describes the only layout that Tile can
// decode.
func (ifd *geoTIFFIFD) supported() bool {
	return ifd.BitsPerSample == 32 &&
		ifd.Compression == 5 && // LZW.
		ifd.PhotometricInterpretation == 1 &&
		ifd.SamplesPerPixel == 1 &&
		ifd.PlanarConfiguration == 1 &&
		ifd.Predictor == 1 &&
		ifd.SampleFormat == 3 && // IEEE floating point.
		len(ifd.ModelPixelScaleTag) == 3 &&
		len(ifd.ModelTiepointTag) == 6 &&
		ifd.GDALNoData == "-3.4028234663852886e+038"
}

// OpenTile opens the GeoTIFF filename in fsys.
func OpenTile(fsys fs.FS, filename string, options ...TileOption) (*Tile, error) {
	t := &Tile{
		tileCacheSizeBytes: 128 << 20,
	}
	for _, option := range options {
		option(t)
	}

	file, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	var ok bool
	t.file, ok = file.(tileFile)
	if !ok {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", filename, errors.ErrUnsupported)
	}
	if err := t.init(filename); err != nil {
		_ = t.file.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tile) init(filename string) error {
	tiffTIFF, err := tiff.Parse(t.file, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	if n := len(tiffTIFF.IFDs()); n != 1 {
		return fmt.Errorf("%s: found %d IFDs, expected 1", filename, n)
	}

	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	if !ifd.supported() {
		return fmt.Errorf("%s: %w", filename, errors.ErrUnsupported)
	}

	t.geoKeys, err = ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, []byte(ifd.GeoASCIIParamsTag))
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	if epsg, ok := t.geoKeys.EPSG(); ok && t.srid != 0 && epsg != t.srid {
		return &ErrCRSMismatch{Filename: filename, Expected: t.srid, Actual: epsg}
	}

	t.imageWidth = int(ifd.ImageWidth)
	t.imageLength = int(ifd.ImageLength)
	t.tileWidth = int(ifd.TileWidth)
	t.tileLength = int(ifd.TileLength)
	t.tilesAcross = (t.imageWidth + t.tileWidth - 1) / t.tileWidth
	t.tilesDown = (t.imageLength + t.tileLength - 1) / t.tileLength
	tilesPerImage := t.tilesAcross * t.tilesDown
	if len(ifd.TileByteCounts) != tilesPerImage || len(ifd.TileOffsets) != tilesPerImage {
		return fmt.Errorf("%s: incorrect number of tile byte counts or offsets", filename)
	}
	t.tileOffsets = ifd.TileOffsets
	t.tileByteCounts = ifd.TileByteCounts
	t.smallestTileByteCount = slices.Min(ifd.TileByteCounts)
	t.tileSampleCount = t.tileWidth * t.tileLength
	t.tileByteCountUncompressed = t.tileSampleCount * int(ifd.BitsPerSample) / 8

	t.tileSamplesCache, err = otter.New(&otter.Options[TileCoord, []float32]{
		MaximumSize: max(t.tileCacheSizeBytes/t.tileByteCountUncompressed, 1),
	})
	if err != nil {
		return err
	}

	scaleX, scaleY, scaleZ := ifd.ModelPixelScaleTag[0], ifd.ModelPixelScaleTag[1], ifd.ModelPixelScaleTag[2]
	i, j, k := ifd.ModelTiepointTag[0], ifd.ModelTiepointTag[1], ifd.ModelTiepointTag[2]
	x, y, z := ifd.ModelTiepointTag[3], ifd.ModelTiepointTag[4], ifd.ModelTiepointTag[5]
	switch {
	case !isInt(scaleX) || !isInt(scaleY) || scaleZ != 0:
		return fmt.Errorf("%s: non-integer pixel scale: %w", filename, errors.ErrUnsupported)
	case i != 0 || j != 0 || k != 0:
		return fmt.Errorf("%s: tie point not at origin: %w", filename, errors.ErrUnsupported)
	case !isInt(x) || !isInt(y) || z != 0:
		return fmt.Errorf("%s: non-integer tie point: %w", filename, errors.ErrUnsupported)
	}
	t.scaleX = int(scaleX)
	t.scaleY = int(scaleY)
	t.translateX = int(x)
	t.translateY = int(y)
	return nil
}

// WithTileCacheSize sets the number of bytes of decoded samples cached per
// tile.
func WithTileCacheSize(tileCacheSize int) TileOption {
	return func(t *Tile) {
		t.tileCacheSizeBytes = tileCacheSize
	}
}

// WithExpectedSRID rejects tiles whose GeoKeys name a CRS other than srid.
func WithExpectedSRID(srid int) TileOption {
	return func(t *Tile) {
		t.srid = srid
	}
}

// Close closes t's file.
func (t *Tile) Close() error {
	return t.file.Close()
}

// GeoKeys returns t's GeoKeys.
func (t *Tile) GeoKeys() *GeoKeys {
	return t.geoKeys
}

// Scale implements Raster.Scale.
func (t *Tile) Scale() (int, int) {
	return t.scaleX, t.scaleY
}

// Sample returns a single sample from t.
func (t *Tile) Sample(ctx context.Context, coord Coord) (float64, error) {
	localCoord := t.localCoord(coord)
	localTileCoord, ok := t.localTileCoord(localCoord)
	if !ok {
		return math.NaN(), nil
	}
	switch tileSamples, err := t.getTileSamplesCached(ctx, localTileCoord); {
	case errors.Is(err, otter.ErrNotFound):
		return math.NaN(), nil
	case err != nil:
		return 0, err
	default:
		return t.tileSample(tileSamples, localCoord), nil
	}
}

// Samples implements Raster.Samples. It decodes each internal tile at most
// once per call.
func (t *Tile) Samples(ctx context.Context, coords []Coord) ([]float64, error) {
	samples := make([]float64, len(coords))
	localCoords := make([]Coord, len(coords))
	indexesByLocalTileCoord := make(map[TileCoord][]int)
	for index, coord := range coords {
		localCoords[index] = t.localCoord(coord)
		localTileCoord, ok := t.localTileCoord(localCoords[index])
		if !ok {
			samples[index] = math.NaN()
			continue
		}
		indexesByLocalTileCoord[localTileCoord] = append(indexesByLocalTileCoord[localTileCoord], index)
	}

	for localTileCoord, indexes := range indexesByLocalTileCoord {
		switch tileSamples, err := t.getTileSamplesCached(ctx, localTileCoord); {
		case errors.Is(err, otter.ErrNotFound):
			for _, index := range indexes {
				samples[index] = math.NaN()
			}
		case err != nil:
			return nil, err
		default:
			for _, index := range indexes {
				samples[index] = t.tileSample(tileSamples, localCoords[index])
			}
		}
	}

	return samples, nil
}

// compressedTileData returns the compressed data of the tile at
// localTileCoord. It returns otter.ErrNotFound if the tile is known to be
// empty.
func (t *Tile) compressedTileData(localTileCoord TileCoord) ([]byte, error) {
	tileIndex := localTileCoord.C + t.tilesAcross*localTileCoord.R
	tileByteCount := t.tileByteCounts[tileIndex]
	compressedData := make([]byte, tileByteCount)
	switch n, err := t.file.ReadAt(compressedData, int64(t.tileOffsets[tileIndex])); {
	case err != nil && !(errors.Is(err, io.EOF) && n == int(tileByteCount)):
		return nil, err
	case n != int(tileByteCount):
		return nil, errShortRead
	case t.emptyTileBytes != nil && bytes.Equal(compressedData, t.emptyTileBytes):
		return nil, otter.ErrNotFound
	default:
		return compressedData, nil
	}
}

func (t *Tile) decodeTileData(compressedData []byte) ([]float32, error) {
	tileData := make([]byte, t.tileByteCountUncompressed)
	r := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
	defer r.Close()
	if _, err := io.ReadFull(r, tileData); err != nil {
		return nil, err
	}
	tileSamples := make([]float32, t.tileSampleCount)
	for i := range tileSamples {
		tileSamples[i] = math.Float32frombits(binary.LittleEndian.Uint32(tileData[4*i : 4*i+4]))
	}
	return tileSamples, nil
}

func (t *Tile) localCoord(coord Coord) Coord {
	return Coord{
		X: (coord.X - t.translateX) / t.scaleX,
		Y: -(coord.Y - t.translateY) / t.scaleY,
	}
}

// getTileSamples loads the samples of the tile at localTileCoord.
func (t *Tile) getTileSamples(ctx context.Context, localTileCoord TileCoord) ([]float32, error) {
	compressedData, err := t.compressedTileData(localTileCoord)
	if err != nil {
		return nil, err
	}
	tileSamples, err := t.decodeTileData(compressedData)
	if err != nil {
		return nil, err
	}

	// The first smallest tile consisting only of no data values is remembered
	// so later empty tiles are recognized before decompression.
	if t.emptyTileBytes == nil && len(compressedData) == int(t.smallestTileByteCount) {
		if !slices.ContainsFunc(tileSamples, func(sample float32) bool {
			return sample != noData
		}) {
			t.emptyTileBytes = compressedData
			return nil, otter.ErrNotFound
		}
	}

	return tileSamples, nil
}

func (t *Tile) getTileSamplesCached(ctx context.Context, localTileCoord TileCoord) ([]float32, error) {
	return t.tileSamplesCache.Get(ctx, localTileCoord, otter.LoaderFunc[TileCoord, []float32](t.getTileSamples))
}

func (t *Tile) localTileCoord(localCoord Coord) (TileCoord, bool) {
	if localCoord.X < 0 || t.imageWidth <= localCoord.X || localCoord.Y < 0 || t.imageLength <= localCoord.Y {
		return TileCoord{}, false
	}
	return TileCoord{
		C: localCoord.X / t.tileWidth,
		R: localCoord.Y / t.tileLength,
	}, true
}

func (t *Tile) tileSample(tileSamples []float32, localCoord Coord) float64 {
	sample := tileSamples[localCoord.X%t.tileWidth+(localCoord.Y%t.tileLength)*t.tileWidth]
	if sample == noData {
		return math.NaN()
	}
	return float64(sample)
}

func isInt(x float64) bool {
	return x == math.Trunc(x)
}
