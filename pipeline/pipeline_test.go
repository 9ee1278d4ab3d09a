package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/google/uuid"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/internal/monitoring"
	"github.com/twpayne/go-voxelize/pipeline"
	"github.com/twpayne/go-voxelize/world"
)

var origin = geo.GeoPoint{Lat: 51.508, Long: -0.128}

func cell(x, z int) geo.GridCell {
	return geo.GridCell{X: x, Z: z}
}

// newConverter returns a converter calibrated with three consistent anchors
// and a function that returns the geographic coordinates of grid cells.
func newConverter(t *testing.T) (*geo.Converter, func(...geo.GridCell) []geo.GeoPoint) {
	t.Helper()
	single, err := geo.NewConverter([]geo.Anchor{{Geo: origin}})
	assert.NoError(t, err)
	toGeo := func(cells ...geo.GridCell) []geo.GeoPoint {
		points := make([]geo.GeoPoint, len(cells))
		for i, c := range cells {
			p, err := single.ToGeo(c)
			assert.NoError(t, err)
			points[i] = p
		}
		return points
	}
	anchors := []geo.Anchor{{Geo: origin}}
	for _, c := range []geo.GridCell{cell(200, 0), cell(0, 200)} {
		anchors = append(anchors, geo.Anchor{Geo: toGeo(c)[0], Cell: c})
	}
	converter, err := geo.NewConverter(anchors)
	assert.NoError(t, err)
	return converter, toGeo
}

func muteLogger(t *testing.T) {
	t.Helper()
	saved := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = saved })
}

func TestRun(t *testing.T) {
	muteLogger(t)
	ctx := context.Background()
	converter, toGeo := newConverter(t)
	repository := feature.NewRepository([]*feature.RoadFeature{
		{ID: 1, Name: "Mill Road", Geometry: toGeo(cell(-40, 0), cell(0, 0), cell(40, 0))},
		{ID: 2, Name: "Church Street", Geometry: toGeo(cell(0, -40), cell(0, 0), cell(0, 40))},
	}, nil, nil, nil, nil)
	store := world.NewMemoryStore(world.Flat(64))
	runID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	report, err := pipeline.Run(ctx, repository, converter, store, pipeline.WithRunID(runID))
	assert.NoError(t, err)
	assert.Equal(t, runID, report.RunID)
	assert.Equal(t, 2, report.Roads)
	assert.Equal(t, 1, report.Intersections)
	assert.Equal(t, 4, report.StreetNameSigns)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 1, store.Saves())

	// Both roads are gapless.
	for i := -40; i <= 40; i++ {
		for j := -2; j <= 1; j++ {
			block, err := store.Block(ctx, i, 64, j)
			assert.NoError(t, err)
			assert.Equal(t, world.Asphalt, block.Material, "Mill Road at %d, %d", i, j)
			block, err = store.Block(ctx, j, 64, i)
			assert.NoError(t, err)
			assert.Equal(t, world.Asphalt, block.Material, "Church Street at %d, %d", j, i)
		}
	}

	// Each approach names only the cross street.
	attachments := store.Attachments()
	assert.Equal(t, 4, len(attachments))
	orientations := make(map[geo.Direction]string)
	for _, attachment := range attachments {
		assert.Equal(t, world.StreetNameSign, attachment.Kind)
		orientations[attachment.Orientation] = attachment.Payload
	}
	assert.Equal(t, map[geo.Direction]string{
		geo.East:  "Church Street",
		geo.West:  "Church Street",
		geo.North: "Mill Road",
		geo.South: "Mill Road",
	}, orientations)
}

func TestRun_AddressSignAtIntersectionCorner(t *testing.T) {
	muteLogger(t)
	ctx := context.Background()
	converter, toGeo := newConverter(t)
	repository := feature.NewRepository(
		[]*feature.RoadFeature{
			{ID: 1, Name: "Mill Road", Geometry: toGeo(cell(-40, 0), cell(0, 0), cell(40, 0))},
			{ID: 2, Name: "Church Street", Geometry: toGeo(cell(0, -40), cell(0, 0), cell(0, 40))},
		},
		[]*feature.BuildingFeature{
			{
				ID:          3,
				Footprint:   toGeo(cell(2, 3), cell(6, 3), cell(6, 7), cell(2, 7), cell(2, 3)),
				Street:      "Mill Road",
				HouseNumber: "7",
			},
		},
		nil,
		nil,
		nil,
	)
	store := world.NewMemoryStore(world.Flat(64))

	report, err := pipeline.Run(ctx, repository, converter, store)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.AddressSigns)
	assert.Equal(t, 1, report.Intersections)
	assert.Equal(t, 4, report.StreetNameSigns)

	// The street name posts are mounted around the address sign, not on it.
	attachments := store.Attachments()
	assert.Equal(t, 5, len(attachments))
	assert.Equal(t, world.Attachment{
		Kind:        world.AddressSign,
		Orientation: geo.North,
		Payload:     "7 Mill Road",
	}, attachments[world.Pos{X: 2, Y: 66, Z: 2}])
	streetNameSigns := 0
	for _, attachment := range attachments {
		if attachment.Kind == world.StreetNameSign {
			streetNameSigns++
		}
	}
	assert.Equal(t, 4, streetNameSigns)
}

func TestRun_AddressSignsAndStories(t *testing.T) {
	muteLogger(t)
	ctx := context.Background()
	converter, toGeo := newConverter(t)
	footprint := toGeo(cell(-2, 5), cell(2, 5), cell(2, 9), cell(-2, 9), cell(-2, 5))
	repository := feature.NewRepository(
		[]*feature.RoadFeature{
			{ID: 1, Name: "High Street", Geometry: toGeo(cell(-20, 0), cell(20, 0))},
		},
		[]*feature.BuildingFeature{
			{ID: 2, Footprint: footprint},
		},
		nil,
		nil,
		[]feature.AddressPoint{
			{Point: toGeo(cell(0, 7))[0], Street: "High Street", HouseNumber: "1"},
		},
	)
	store := world.NewMemoryStore(world.Flat(64))

	report, err := pipeline.Run(ctx, repository, converter, store,
		pipeline.WithStoryAugmenter(feature.StoryTable{"1 high street": 3}),
	)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.AddressesCorrelated)
	assert.Equal(t, 1, report.Buildings)
	assert.Equal(t, 1, report.AddressSigns)
	assert.Equal(t, 0, report.Intersections)

	// Correlation gives the building an address, so the story table
	// applies: 3 stories are 14 blocks.
	assert.Equal(t, 1, report.StoriesAugmented)
	block, err := store.Block(ctx, -2, 78, 9)
	assert.NoError(t, err)
	assert.Equal(t, world.Brick, block.Material)
	block, err = store.Block(ctx, -2, 79, 9)
	assert.NoError(t, err)
	assert.Equal(t, world.Air, block.Material)

	// The address point inside the footprint is the reference, so the sign
	// is outside the north wall opposite it.
	assert.Equal(t, map[world.Pos]world.Attachment{
		{X: 0, Y: 66, Z: 4}: {Kind: world.AddressSign, Orientation: geo.North, Payload: "1 High Street"},
	}, store.Attachments())
}

func TestRun_SkipsRecoverableErrors(t *testing.T) {
	muteLogger(t)
	converter, toGeo := newConverter(t)
	repository := feature.NewRepository(
		[]*feature.RoadFeature{
			{ID: 1, Name: "Stub", Geometry: toGeo(cell(0, 0))},
			{ID: 2, Name: "Nowhere", Geometry: []geo.GeoPoint{origin, {Lat: 95}}},
			{ID: 3, Name: "Good Road", Geometry: toGeo(cell(0, 10), cell(10, 10))},
		},
		[]*feature.BuildingFeature{{ID: 4}},
		[]*feature.SignFeature{{ID: 5, Point: geo.GeoPoint{Lat: -90}, Kind: feature.SignTrafficSignals}},
		nil,
		nil,
	)
	store := world.NewMemoryStore(world.Flat(64))
	report, err := pipeline.Run(context.Background(), repository, converter, store)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Roads)
	assert.Equal(t, 4, report.Skipped)
	assert.Equal(t, 1, store.Saves())
}

type panickingStore struct {
	*world.MemoryStore
	panicX int
}

func (s *panickingStore) SetBlock(ctx context.Context, x, y, z int, block world.Block) error {
	if x == s.panicX {
		panic("corrupt column")
	}
	return s.MemoryStore.SetBlock(ctx, x, y, z, block)
}

func TestRun_RecoversPanics(t *testing.T) {
	muteLogger(t)
	converter, toGeo := newConverter(t)
	repository := feature.NewRepository([]*feature.RoadFeature{
		{ID: 1, Name: "Cursed Road", Geometry: toGeo(cell(90, 0), cell(110, 0))},
		{ID: 2, Name: "Good Road", Geometry: toGeo(cell(0, 10), cell(10, 10))},
	}, nil, nil, nil, nil)
	store := &panickingStore{MemoryStore: world.NewMemoryStore(world.Flat(64)), panicX: 100}
	report, err := pipeline.Run(context.Background(), repository, converter, store)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Roads)
	assert.Equal(t, 1, report.Skipped)
}

type failingStore struct {
	*world.MemoryStore
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) SetBlock(context.Context, int, int, int, world.Block) error {
	return errDiskFull
}

func TestRun_Fatal(t *testing.T) {
	muteLogger(t)
	converter, toGeo := newConverter(t)
	repository := feature.NewRepository([]*feature.RoadFeature{
		{ID: 1, Name: "Mill Road", Geometry: toGeo(cell(0, 0), cell(10, 0))},
	}, nil, nil, nil, nil)
	store := &failingStore{MemoryStore: world.NewMemoryStore(world.Flat(64))}
	report, err := pipeline.Run(context.Background(), repository, converter, store)
	assert.IsError(t, err, pipeline.ErrFatal)
	assert.IsError(t, err, errDiskFull)
	assert.Equal(t, 0, report.Roads)
	assert.Equal(t, 1, store.Flushes())
	assert.Equal(t, 0, store.Saves())
}

func TestRun_Canceled(t *testing.T) {
	muteLogger(t)
	converter, toGeo := newConverter(t)
	repository := feature.NewRepository([]*feature.RoadFeature{
		{ID: 1, Name: "Mill Road", Geometry: toGeo(cell(0, 0), cell(10, 0))},
	}, nil, nil, nil, nil)
	store := world.NewMemoryStore(world.Flat(64))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pipeline.Run(ctx, repository, converter, store)
	assert.IsError(t, err, context.Canceled)
	assert.Equal(t, 1, store.Flushes())
	assert.Equal(t, 0, store.Saves())
}
