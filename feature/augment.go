package feature

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/twpayne/go-voxelize/spatialindex"
)

// A StoryAugmenter updates building story counts from auxiliary data. It must
// run before rendering.
type StoryAugmenter interface {
	Augment(r *Repository) (int, error)
}

// A StoryTable is a StoryAugmenter keyed by AddressKey.
type StoryTable map[string]int

// Augment implements StoryAugmenter. It returns the number of buildings
// updated.
func (t StoryTable) Augment(r *Repository) (int, error) {
	updated := 0
	for _, building := range r.Buildings {
		if !building.HasAddress() {
			continue
		}
		if stories, ok := t[AddressKey(building.HouseNumber, building.Street)]; ok && stories > 0 {
			building.Stories = stories
			updated++
		}
	}
	return updated, nil
}

// CorrelateAddresses copies the first address point found inside each
// unaddressed building footprint onto the building and records the point as
// the building's primary coordinate. It returns the number of buildings
// updated. r is reindexed if anything changed.
func CorrelateAddresses(r *Repository) int {
	if len(r.Addresses) == 0 {
		return 0
	}
	idx := spatialindex.NewRangeIndex[int]()
	for i, address := range r.Addresses {
		idx.Insert(address.Point, i)
	}

	used := make(map[int]bool)
	updated := 0
	for _, building := range r.Buildings {
		if building.HasAddress() || len(building.Footprint) < 3 {
			continue
		}
		ring := building.Ring()
		bound := ring.Bound()
		for p, i := range idx.RangeQuery(bound.Min.Lat(), bound.Max.Lat(), bound.Min.Lon(), bound.Max.Lon()) {
			if used[i] || !planar.RingContains(ring, orb.Point{p.Long, p.Lat}) {
				continue
			}
			address := r.Addresses[i]
			building.Street = address.Street
			building.HouseNumber = address.HouseNumber
			primary := address.Point
			building.Primary = &primary
			used[i] = true
			updated++
			break
		}
	}
	if updated > 0 {
		r.Reindex()
	}
	return updated
}
