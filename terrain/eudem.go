package terrain

import (
	"fmt"
	"io/fs"
	"slices"
)

// EUDEMSRID is the EPSG code of the EU-DEM CRS, ETRS89-extended / LAEA
// Europe.
const EUDEMSRID = 3035

// NewEUDEM returns a TileSet for the EU-DEM v1.1 tiles in fsys.
func NewEUDEM(fsys fs.FS, options ...TileSetOption) (*TileSet, error) {
	return NewTileSet(slices.Concat(
		[]TileSetOption{
			WithFS(fsys),
			WithSRID(EUDEMSRID),
			WithScale(25, 25),
			WithTileCoordFunc(func(coord Coord) (TileCoord, bool) {
				if coord.X < 0 || coord.Y < 0 {
					return TileCoord{}, false
				}
				return TileCoord{
					C: 10 * (coord.X / 1000000),
					R: 10 * (coord.Y / 1000000),
				}, true
			}),
			WithTileFilenameFunc(func(tileCoord TileCoord) string {
				return fmt.Sprintf("eu_dem_v11_E%02dN%02d.TIF", tileCoord.C, tileCoord.R)
			}),
		},
		options,
	)...)
}
