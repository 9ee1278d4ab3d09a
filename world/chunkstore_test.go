package world_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/google/uuid"

	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/world"
)

func TestChunkCoordOf(t *testing.T) {
	for _, tc := range []struct {
		x, z     int
		expected world.ChunkCoord
	}{
		{x: 0, z: 0, expected: world.ChunkCoord{CX: 0, CZ: 0}},
		{x: 15, z: 16, expected: world.ChunkCoord{CX: 0, CZ: 1}},
		{x: -1, z: -16, expected: world.ChunkCoord{CX: -1, CZ: -1}},
		{x: -17, z: 33, expected: world.ChunkCoord{CX: -2, CZ: 2}},
	} {
		assert.Equal(t, tc.expected, world.ChunkCoordOf(tc.x, tc.z))
	}
}

func TestChunkStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "world.db")

	s, err := world.NewChunkStore(ctx, path,
		world.WithChunkCacheSize(2),
		world.WithHeightSource(world.Flat(40)),
	)
	assert.NoError(t, err)

	// Touch more chunks than the cache holds so that some are evicted and
	// written before the explicit save.
	attachment := world.Attachment{Kind: world.AddressSign, Orientation: geo.West, Payload: "12 High Street"}
	for i := range 8 {
		x, z := i*world.ChunkSize-3, i
		assert.NoError(t, s.SetBlock(ctx, x, 41, z, world.Block{Material: world.Asphalt, Aux: uint8(i)}))
	}
	assert.NoError(t, s.Attach(ctx, -5, 42, -5, attachment))
	assert.NoError(t, s.Save(ctx))
	assert.NotEqual(t, uuid.Nil, s.LastSaveID())
	assert.NoError(t, s.Close())

	// A height source that would disagree proves columns are read back from
	// the database rather than regenerated.
	s, err = world.NewChunkStore(ctx, path, world.WithHeightSource(world.Flat(90)))
	assert.NoError(t, err)
	defer s.Close()
	for i := range 8 {
		x, z := i*world.ChunkSize-3, i
		block, err := s.Block(ctx, x, 41, z)
		assert.NoError(t, err)
		assert.Equal(t, world.Block{Material: world.Asphalt, Aux: uint8(i)}, block)
		height, err := s.ColumnHeight(ctx, x, z)
		assert.NoError(t, err)
		assert.Equal(t, 41, height)
	}
	actual, ok, err := s.Attachment(ctx, -5, 42, -5)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, attachment, actual)

	height, err := s.ColumnHeight(ctx, 1000, 1000)
	assert.NoError(t, err)
	assert.Equal(t, 90, height)
}

func TestChunkStore_Closed(t *testing.T) {
	ctx := context.Background()
	s, err := world.NewChunkStore(ctx, filepath.Join(t.TempDir(), "world.db"))
	assert.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	_, err = s.ColumnHeight(ctx, 0, 0)
	assert.IsError(t, err, world.ErrClosed)
	assert.IsError(t, s.Flush(ctx), world.ErrClosed)
}
