// Package placement chooses where street furniture goes around intersections
// and which way it faces.
package placement

import (
	"math"

	"github.com/twpayne/go-voxelize/geo"
)

// acrossTolerance is the maximum deviation from 180°, in degrees, for two
// approaches to be across the street from each other.
const acrossTolerance = 45

// BearingFromIntersection returns the bearing, in integer degrees from 0 to
// 359, from center to whichever of from and to is farther from center.
// Bearings start at east and increase toward +Z, so 90 is south.
func BearingFromIntersection(center, from, to geo.GridCell) int {
	far := to
	if distance2(center, from) > distance2(center, to) {
		far = from
	}
	return Bearing(center, far)
}

// Bearing returns the bearing from a to b in integer degrees from 0 to 359.
func Bearing(a, b geo.GridCell) int {
	degrees := math.Atan2(float64(b.Z-a.Z), float64(b.X-a.X)) * 180 / math.Pi
	return normalize(int(math.Round(degrees)))
}

// QuantizeBearing returns the 16-point compass direction nearest to bearing.
func QuantizeBearing(bearing int) geo.Direction {
	return geo.Direction(int(math.Floor((float64(normalize(bearing))+11.25)/22.5)) % 16)
}

// AngleBetween returns the smallest angle between bearings a and b, from 0 to
// 180.
func AngleBetween(a, b int) int {
	d := normalize(a - b)
	return min(d, 360-d)
}

// AcrossTheStreet returns whether bearings a and b point in roughly opposite
// directions.
func AcrossTheStreet(a, b int) bool {
	return AngleBetween(a, b) >= 180-acrossTolerance
}

// snapCardinal returns the cardinal direction nearest to d.
func snapCardinal(d geo.Direction) geo.Direction {
	return geo.Direction((int(d) + 2) / 4 * 4 % 16)
}

func normalize(bearing int) int {
	return (bearing%360 + 360) % 360
}

func distance2(a, b geo.GridCell) int {
	dx, dz := b.X-a.X, b.Z-a.Z
	return dx*dx + dz*dz
}
