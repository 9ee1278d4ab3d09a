package world

import (
	"fmt"

	"github.com/twpayne/go-voxelize/geo"
)

// A Material is the kind of a block.
type Material uint8

// Materials.
const (
	Air Material = iota
	Stone
	Dirt
	Grass
	Asphalt
	Concrete
	Paving
	Gravel
	Planks
	Sidewalk
	CrossingWhite
	CrossingBlack
	Brick
	Sandstone
	Quartz
	Glass
	Fence
	Wall
	Hedge
	Post
)

var materialNames = [...]string{
	Air:           "air",
	Stone:         "stone",
	Dirt:          "dirt",
	Grass:         "grass",
	Asphalt:       "asphalt",
	Concrete:      "concrete",
	Paving:        "paving",
	Gravel:        "gravel",
	Planks:        "planks",
	Sidewalk:      "sidewalk",
	CrossingWhite: "crossing_white",
	CrossingBlack: "crossing_black",
	Brick:         "brick",
	Sandstone:     "sandstone",
	Quartz:        "quartz",
	Glass:         "glass",
	Fence:         "fence",
	Wall:          "wall",
	Hedge:         "hedge",
	Post:          "post",
}

func (m Material) String() string {
	if int(m) < len(materialNames) {
		return materialNames[m]
	}
	return fmt.Sprintf("material(%d)", m)
}

// ParseMaterial returns the material called name.
func ParseMaterial(name string) (Material, error) {
	for m, materialName := range materialNames {
		if materialName == name {
			return Material(m), nil
		}
	}
	return Air, fmt.Errorf("%s: unknown material", name)
}

// Solid returns whether m is anything other than air.
func (m Material) Solid() bool {
	return m != Air
}

// A Block is a material with auxiliary data, for example an orientation.
type Block struct {
	Material Material `json:"m"`
	Aux      uint8    `json:"a,omitempty"`
}

// An AttachmentKind is a kind of decorative attachment.
type AttachmentKind string

// Attachment kinds.
const (
	StreetNameSign AttachmentKind = "street_name_sign"
	AddressSign    AttachmentKind = "address_sign"
	TrafficLight   AttachmentKind = "traffic_light"
	StopSign       AttachmentKind = "stop_sign"
	GiveWaySign    AttachmentKind = "give_way_sign"
	BusStopSign    AttachmentKind = "bus_stop_sign"
	StreetLamp     AttachmentKind = "street_lamp"
)

// An Attachment is a decorative record attached to a placed block, for
// example the text of a sign.
type Attachment struct {
	Kind        AttachmentKind `json:"kind"`
	Orientation geo.Direction  `json:"orientation"`
	Payload     string         `json:"payload,omitempty"`
}

// A Pos is the position of a block.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p Pos) String() string {
	return fmt.Sprintf("[%d, %d, %d]", p.X, p.Y, p.Z)
}
