package feature

import (
	"fmt"
	"slices"
)

// Enumerations are encoded as lower case strings in JSON.

func enumString(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func parseEnum(kind string, names []string, text []byte) (int, error) {
	if len(text) == 0 {
		return 0, nil
	}
	if i := slices.Index(names, string(text)); i >= 0 {
		return i, nil
	}
	return 0, fmt.Errorf("%s: unknown value %q", kind, text)
}

// A Surface is a road surface.
type Surface int

const (
	SurfaceAsphalt Surface = iota
	SurfaceConcrete
	SurfacePaving
	SurfaceGravel
	SurfaceDirt
	SurfaceWood
)

var surfaceNames = []string{"asphalt", "concrete", "paving", "gravel", "dirt", "wood"}

func (s Surface) String() string {
	return enumString(surfaceNames, int(s))
}

func (s Surface) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Surface) UnmarshalText(text []byte) error {
	i, err := parseEnum("surface", surfaceNames, text)
	*s = Surface(i)
	return err
}

// SidewalkSides records on which sides of a road a sidewalk is drawn. Left
// and right are relative to the direction of the road's geometry.
type SidewalkSides int

const (
	SidewalkNone SidewalkSides = iota
	SidewalkLeft
	SidewalkRight
	SidewalkBoth
)

var sidewalkNames = []string{"none", "left", "right", "both"}

func (s SidewalkSides) String() string {
	return enumString(sidewalkNames, int(s))
}

func (s SidewalkSides) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SidewalkSides) UnmarshalText(text []byte) error {
	i, err := parseEnum("sidewalk", sidewalkNames, text)
	*s = SidewalkSides(i)
	return err
}

// Left returns whether s includes the left side.
func (s SidewalkSides) Left() bool {
	return s == SidewalkLeft || s == SidewalkBoth
}

// Right returns whether s includes the right side.
func (s SidewalkSides) Right() bool {
	return s == SidewalkRight || s == SidewalkBoth
}

// Count returns the number of sides with a sidewalk.
func (s SidewalkSides) Count() int {
	switch s {
	case SidewalkBoth:
		return 2
	case SidewalkLeft, SidewalkRight:
		return 1
	default:
		return 0
	}
}

// A CrossingKind describes a pedestrian crossing way.
type CrossingKind int

const (
	CrossingNone CrossingKind = iota
	CrossingZebra
	CrossingSignals
	CrossingUnmarked
)

var crossingNames = []string{"none", "zebra", "signals", "unmarked"}

func (c CrossingKind) String() string {
	return enumString(crossingNames, int(c))
}

func (c CrossingKind) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CrossingKind) UnmarshalText(text []byte) error {
	i, err := parseEnum("crossing", crossingNames, text)
	*c = CrossingKind(i)
	return err
}

// A SignKind is the kind of a point sign.
type SignKind int

const (
	SignStop SignKind = iota
	SignGiveWay
	SignTrafficSignals
	SignBusStop
	SignStreetLamp
)

var signNames = []string{"stop", "give_way", "traffic_signals", "bus_stop", "street_lamp"}

func (k SignKind) String() string {
	return enumString(signNames, int(k))
}

func (k SignKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SignKind) UnmarshalText(text []byte) error {
	i, err := parseEnum("sign", signNames, text)
	*k = SignKind(i)
	return err
}

// A BarrierKind is the kind of a linear barrier.
type BarrierKind int

const (
	BarrierFence BarrierKind = iota
	BarrierWall
	BarrierHedge
)

var barrierNames = []string{"fence", "wall", "hedge"}

func (k BarrierKind) String() string {
	return enumString(barrierNames, int(k))
}

func (k BarrierKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *BarrierKind) UnmarshalText(text []byte) error {
	i, err := parseEnum("barrier", barrierNames, text)
	*k = BarrierKind(i)
	return err
}
