package terrain_test

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/terrain"
)

type testElevationService map[geo.GeoPoint]float64

func (s testElevationService) Elevations(ctx context.Context, points []geo.GeoPoint) ([]float64, error) {
	elevations := make([]float64, len(points))
	for i, p := range points {
		if elevation, ok := s[p]; ok {
			elevations[i] = elevation
		} else {
			elevations[i] = math.NaN()
		}
	}
	return elevations, nil
}

func TestGridHeightSource(t *testing.T) {
	anchor := geo.Anchor{
		Geo:  geo.GeoPoint{Lat: 45.5, Long: 6.7},
		Cell: geo.GridCell{X: 100, Z: 100},
	}
	converter, err := geo.NewConverter([]geo.Anchor{anchor})
	assert.NoError(t, err)

	heightSource := terrain.NewGridHeightSource(converter, testElevationService{
		anchor.Geo: 1985.5,
	},
		terrain.WithSeaLevel(60),
		terrain.WithBaseElevation(1900),
		terrain.WithVerticalScale(0.5),
	)

	height, err := heightSource.Height(t.Context(), anchor.Cell)
	assert.NoError(t, err)
	assert.Equal(t, 60+43, height)

	height, err = heightSource.Height(t.Context(), geo.GridCell{X: 5000, Z: 100})
	assert.NoError(t, err)
	assert.Equal(t, 60, height)
}

func TestEUDEMElevationService_Elevations(t *testing.T) {
	fsys := os.DirFS("testdata/eu_dem")
	service, err := terrain.NewEUDEMElevationService(fsys)
	assert.NoError(t, err)

	for _, tc := range []struct {
		name     string
		filename string
		point    geo.GeoPoint
		expected float64
	}{
		{
			name:     "azores",
			filename: "eu_dem_v11_E00N20.TIF",
			point:    geo.GeoPoint{Lat: 39.466667, Long: -31.216667},
			expected: 836.8908398692249,
		},
		{
			name:     "la_plagne",
			filename: "eu_dem_v11_E40N20.TIF",
			point:    geo.GeoPoint{Lat: 45.505288300000004, Long: 6.6771972},
			expected: 1985.4962777956653,
		},
		{
			name:     "null_island",
			point:    geo.GeoPoint{},
			expected: math.NaN(),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if tc.filename != "" {
				if _, err := fs.Stat(fsys, tc.filename); errors.Is(err, fs.ErrNotExist) {
					t.Skip(err)
				} else {
					assert.NoError(t, err)
				}
			}
			actual, err := service.Elevations(t.Context(), []geo.GeoPoint{tc.point})
			assert.NoError(t, err)
			assert.Equal(t, 1, len(actual))
			if math.IsNaN(tc.expected) {
				assert.True(t, math.IsNaN(actual[0]))
			} else {
				assert.Equal(t, tc.expected, actual[0])
			}
		})
	}
}
