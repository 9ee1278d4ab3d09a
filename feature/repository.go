package feature

import (
	"encoding/json"
	"fmt"
	"io"
)

// A Repository holds the classified features of one batch. It is built once
// during ingestion and is read-only afterwards, except for the documented
// augmentation steps that run before rendering.
type Repository struct {
	Roads     []*RoadFeature     `json:"roads"`
	Buildings []*BuildingFeature `json:"buildings"`
	Signs     []*SignFeature     `json:"signs"`
	Barriers  []*BarrierFeature  `json:"barriers"`
	Addresses []AddressPoint     `json:"addresses"`

	roadsByID         map[int64]*RoadFeature
	roadsByName       map[string][]*RoadFeature
	buildingByAddress map[string]*BuildingFeature
}

// NewRepository returns a new Repository over the given features.
func NewRepository(roads []*RoadFeature, buildings []*BuildingFeature, signs []*SignFeature, barriers []*BarrierFeature, addresses []AddressPoint) *Repository {
	r := &Repository{
		Roads:     roads,
		Buildings: buildings,
		Signs:     signs,
		Barriers:  barriers,
		Addresses: addresses,
	}
	r.Reindex()
	return r
}

// LoadRepository decodes a JSON repository from r.
func LoadRepository(r io.Reader) (*Repository, error) {
	var repository Repository
	if err := json.NewDecoder(r).Decode(&repository); err != nil {
		return nil, fmt.Errorf("decode repository: %w", err)
	}
	repository.Reindex()
	return &repository, nil
}

// Reindex rebuilds r's lookup tables. It must be called after the exported
// slices or building addresses change.
func (r *Repository) Reindex() {
	r.roadsByID = make(map[int64]*RoadFeature, len(r.Roads))
	r.roadsByName = make(map[string][]*RoadFeature)
	for _, road := range r.Roads {
		r.roadsByID[road.ID] = road
		if road.Name != "" {
			r.roadsByName[road.Name] = append(r.roadsByName[road.Name], road)
		}
	}
	r.buildingByAddress = make(map[string]*BuildingFeature)
	for _, building := range r.Buildings {
		if !building.HasAddress() {
			continue
		}
		key := AddressKey(building.HouseNumber, building.Street)
		if _, ok := r.buildingByAddress[key]; !ok {
			r.buildingByAddress[key] = building
		}
	}
}

// Road returns the road with the given ID.
func (r *Repository) Road(id int64) (*RoadFeature, bool) {
	road, ok := r.roadsByID[id]
	return road, ok
}

// RoadsNamed returns the roads called name.
func (r *Repository) RoadsNamed(name string) []*RoadFeature {
	return r.roadsByName[name]
}

// RoadsByName groups roads by name. Unnamed roads form one group each, keyed
// by their identity.
func (r *Repository) RoadsByName() map[string][]*RoadFeature {
	groups := make(map[string][]*RoadFeature, len(r.roadsByName))
	for _, road := range r.Roads {
		groups[road.Identity()] = append(groups[road.Identity()], road)
	}
	return groups
}

// BuildingByAddress returns the first building with the given address.
func (r *Repository) BuildingByAddress(houseNumber, street string) (*BuildingFeature, bool) {
	building, ok := r.buildingByAddress[AddressKey(houseNumber, street)]
	return building, ok
}
