package terrain_test

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-voxelize/terrain"
)

func TestParseGeoKeys_EUDEM(t *testing.T) {
	directory := []uint16{
		1, 1, 0, 22,
		1024, 0, 1, 1,
		1025, 0, 1, 1,
		1026, 34737, 28, 0,
		2048, 0, 1, 4258,
		2049, 34737, 86, 28,
		2050, 0, 1, 6258,
		2051, 0, 1, 8901,
		2054, 0, 1, 9102,
		2055, 34736, 1, 4,
		2056, 0, 1, 7019,
		2057, 34736, 1, 5,
		2059, 34736, 1, 6,
		2061, 34736, 1, 7,
		3072, 0, 1, 32767,
		3073, 34737, 10, 114,
		3074, 0, 1, 32767,
		3075, 0, 1, 10,
		3076, 0, 1, 9001,
		3082, 34736, 1, 2,
		3083, 34736, 1, 3,
		3088, 34736, 1, 1,
		3089, 34736, 1, 0,
	}
	doubleParams := []float64{
		52,
		10,
		4321000,
		3210000,
		0.0174532925199433,
		6378137, 298.257222101,
		0,
	}
	asciiParams := []byte("" +
		"PCS Name = ETRS89_ETRS_LAEA|" +
		"GCS Name = GCS_ETRS_1989|Datum = D_ETRS_1989|Ellipsoid = GRS_1980|Primem = Greenwich||" +
		"LAEA Europ|",
	)

	actual, err := terrain.ParseGeoKeys(directory, doubleParams, asciiParams)
	assert.NoError(t, err)

	assert.Equal(t, map[terrain.GeoKey]int{
		terrain.GeoKeyGTModelType:     1,
		terrain.GeoKeyGTRasterType:    1,
		terrain.GeoKeyGeodeticCRS:     4258,
		terrain.GeoKeyGeodeticDatum:   6258,
		terrain.GeoKeyPrimeMeridian:   8901,
		terrain.GeoKeyAngularUnits:    9102,
		terrain.GeoKeyEllipsoid:       7019,
		terrain.GeoKeyProjectedCRS:    32767,
		terrain.GeoKeyProjection:      32767,
		terrain.GeoKeyProjMethod:      10,
		terrain.GeoKeyProjLinearUnits: 9001,
	}, actual.Params)
	assert.Equal(t, map[terrain.GeoKey]float64{
		terrain.GeoKeyGeogAngularUnitSize:    0.0174532925199433,
		terrain.GeoKeyEllipsoidSemiMajorAxis: 6378137,
		terrain.GeoKeyEllipsoidInvFlattening: 298.257222101,
		terrain.GeoKeyPrimeMeridianLongitude: 0,
		terrain.GeoKeyFalseEasting:           4321000,
		terrain.GeoKeyFalseNorthing:          3210000,
		terrain.GeoKeyCenterLongitude:        10,
		terrain.GeoKeyCenterLatitude:         52,
	}, actual.DoubleParams)
	assert.Equal(t, "PCS Name = ETRS89_ETRS_LAEA|", actual.ASCIIParams[terrain.GeoKeyGTCitation])
	assert.Equal(t, "LAEA Europ", actual.ASCIIParams[terrain.GeoKeyPCSCitation])

	// The CRS is user-defined, so it has no EPSG code.
	_, ok := actual.EPSG()
	assert.False(t, ok)
}

func TestGeoKeys_EPSG(t *testing.T) {
	for _, tc := range []struct {
		name      string
		directory []uint16
		expected  int
		ok        bool
	}{
		{
			name: "projected",
			directory: []uint16{
				1, 1, 0, 2,
				1024, 0, 1, 1,
				3072, 0, 1, 3035,
			},
			expected: 3035,
			ok:       true,
		},
		{
			name: "geographic",
			directory: []uint16{
				1, 1, 1, 2,
				1024, 0, 1, 2,
				2048, 0, 1, 4326,
			},
			expected: 4326,
			ok:       true,
		},
		{
			name: "no_model_type",
			directory: []uint16{
				1, 1, 0, 1,
				3072, 0, 1, 3035,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			geoKeys, err := terrain.ParseGeoKeys(tc.directory, nil, nil)
			assert.NoError(t, err)
			actual, ok := geoKeys.EPSG()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestParseGeoKeys_Errors(t *testing.T) {
	for _, tc := range []struct {
		name         string
		directory    []uint16
		doubleParams []float64
		unsupported  bool
	}{
		{
			name:      "short",
			directory: []uint16{1, 1, 0},
		},
		{
			name:      "version",
			directory: []uint16{2, 1, 0, 0},
		},
		{
			name:      "count",
			directory: []uint16{1, 1, 0, 2, 1024, 0, 1, 1},
		},
		{
			name:      "double_index",
			directory: []uint16{1, 1, 0, 1, 2057, 34736, 1, 3},
		},
		{
			name:        "unknown_location",
			directory:   []uint16{1, 1, 0, 1, 1024, 12345, 1, 0},
			unsupported: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := terrain.ParseGeoKeys(tc.directory, tc.doubleParams, nil)
			assert.Error(t, err)
			assert.Equal(t, tc.unsupported, errors.Is(err, errors.ErrUnsupported))
		})
	}
}
