package terrain

import (
	"errors"
	"fmt"
)

var errParse = errors.New("geokeys: parse error")

// userDefined is the GeoKey value for a user-defined CRS.
const userDefined = 32767

// A GeoKey is a GeoTIFF key.
type GeoKey uint16

// GeoKeys.
const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyGTRasterType GeoKey = 1025
	GeoKeyGTCitation   GeoKey = 1026

	GeoKeyGeodeticCRS            GeoKey = 2048
	GeoKeyGeogCitation           GeoKey = 2049
	GeoKeyGeodeticDatum          GeoKey = 2050
	GeoKeyPrimeMeridian          GeoKey = 2051
	GeoKeyAngularUnits           GeoKey = 2054
	GeoKeyGeogAngularUnitSize    GeoKey = 2055
	GeoKeyEllipsoid              GeoKey = 2056
	GeoKeyEllipsoidSemiMajorAxis GeoKey = 2057
	GeoKeyEllipsoidInvFlattening GeoKey = 2059
	GeoKeyPrimeMeridianLongitude GeoKey = 2061

	GeoKeyProjectedCRS    GeoKey = 3072
	GeoKeyPCSCitation     GeoKey = 3073
	GeoKeyProjection      GeoKey = 3074
	GeoKeyProjMethod      GeoKey = 3075
	GeoKeyProjLinearUnits GeoKey = 3076
	GeoKeyFalseEasting    GeoKey = 3082
	GeoKeyFalseNorthing   GeoKey = 3083
	GeoKeyCenterLongitude GeoKey = 3088
	GeoKeyCenterLatitude  GeoKey = 3089

	GeoKeyVertical         GeoKey = 4096
	GeoKeyVerticalCitation GeoKey = 4097
	GeoKeyVerticalDatum    GeoKey = 4098
	GeoKeyVerticalUnits    GeoKey = 4099
)

const (
	tiffTagGeoDoubleParams = 34736
	tiffTagGeoASCIIParams  = 34737
)

// Model types.
const (
	ModelTypeProjected  = 1
	ModelTypeGeographic = 2
)

// GeoKeys are the parsed contents of a GeoTIFF key directory.
type GeoKeys struct {
	Params       map[GeoKey]int
	DoubleParams map[GeoKey]float64
	ASCIIParams  map[GeoKey]string
}

// ParseGeoKeys parses a GeoKeyDirectoryTag and its parameter tags.
func ParseGeoKeys(directory []uint16, doubleParams []float64, asciiParams []byte) (*GeoKeys, error) {
	if len(directory) < 4 {
		return nil, errParse
	}

	if keyDirectoryVersion := int(directory[0]); keyDirectoryVersion != 1 {
		return nil, errParse
	}
	if keyRevision := int(directory[1]); keyRevision != 1 {
		return nil, errParse
	}
	if minorRevision := int(directory[2]); minorRevision != 0 && minorRevision != 1 {
		return nil, errParse
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, errParse
	}

	geoKeys := &GeoKeys{
		Params:       make(map[GeoKey]int),
		DoubleParams: make(map[GeoKey]float64),
		ASCIIParams:  make(map[GeoKey]string),
	}
	for i := range numberOfKeys {
		entry := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(entry[0])
		location, count, value := int(entry[1]), int(entry[2]), int(entry[3])
		switch location {
		case 0:
			if count != 1 {
				return nil, fmt.Errorf("geokey %d: %w", key, errParse)
			}
			geoKeys.Params[key] = value
		case tiffTagGeoDoubleParams:
			if count != 1 {
				return nil, fmt.Errorf("geokey %d: %w", key, errors.ErrUnsupported)
			}
			if value >= len(doubleParams) {
				return nil, fmt.Errorf("geokey %d: %w", key, errParse)
			}
			geoKeys.DoubleParams[key] = doubleParams[value]
		case tiffTagGeoASCIIParams:
			if value+count > len(asciiParams) {
				return nil, fmt.Errorf("geokey %d: %w", key, errParse)
			}
			geoKeys.ASCIIParams[key] = string(asciiParams[value : value+count])
		default:
			return nil, fmt.Errorf("geokey %d: %w", key, errors.ErrUnsupported)
		}
	}
	return geoKeys, nil
}

// EPSG returns the EPSG code of k's CRS, if k names one. User-defined CRSs
// have no code.
func (k *GeoKeys) EPSG() (int, bool) {
	var key GeoKey
	switch k.Params[GeoKeyGTModelType] {
	case ModelTypeProjected:
		key = GeoKeyProjectedCRS
	case ModelTypeGeographic:
		key = GeoKeyGeodeticCRS
	default:
		return 0, false
	}
	code, ok := k.Params[key]
	if !ok || code == userDefined {
		return 0, false
	}
	return code, true
}
