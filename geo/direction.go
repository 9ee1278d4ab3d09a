package geo

// A Direction is one of the 16 compass points. Directions are numbered from
// east, increasing toward south, so that Direction(i) is centered on the
// bearing i×22.5°.
type Direction int

// Directions.
const (
	East Direction = iota
	EastSouthEast
	SouthEast
	SouthSouthEast
	South
	SouthSouthWest
	SouthWest
	WestSouthWest
	West
	WestNorthWest
	NorthWest
	NorthNorthWest
	North
	NorthNorthEast
	NorthEast
	EastNorthEast
)

var directionNames = [...]string{
	"E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW",
	"W", "WNW", "NW", "NNW", "N", "NNE", "NE", "ENE",
}

// IsCardinal returns whether d is one of north, east, south or west.
func (d Direction) IsCardinal() bool {
	return d.normalize()%4 == 0
}

// Delta returns the unit grid step of a cardinal direction, and the sign of
// each axis for other directions.
func (d Direction) Delta() (dx, dz int) {
	switch d := d.normalize(); {
	case d == North:
		return 0, -1
	case d == South:
		return 0, 1
	case d == East:
		return 1, 0
	case d == West:
		return -1, 0
	case d < South:
		dx, dz = 1, 1
	case d < West:
		dx, dz = -1, 1
	case d < North:
		dx, dz = -1, -1
	default:
		dx, dz = 1, -1
	}
	return dx, dz
}

func (d Direction) String() string {
	return directionNames[d.normalize()]
}

func (d Direction) normalize() Direction {
	return ((d % 16) + 16) % 16
}
