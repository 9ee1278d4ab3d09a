// Package world contains the voxel world store that features are rendered
// into.
package world

import (
	"context"
	"errors"
	"fmt"

	"github.com/twpayne/go-voxelize/geo"
)

// Vertical extent of the world.
const (
	MinHeight = 0
	MaxHeight = 255
)

// ErrClosed is returned by a store that has been closed.
var ErrClosed = errors.New("world: store closed")

// An ErrOutOfBounds is returned when a block position is outside the world.
type ErrOutOfBounds struct {
	Pos Pos
}

func (e *ErrOutOfBounds) Error() string {
	return fmt.Sprintf("%s: out of bounds", e.Pos)
}

// A Store is a voxel world.
type Store interface {
	// ColumnHeight returns the y coordinate of the highest solid block in the
	// column at x, z.
	ColumnHeight(ctx context.Context, x, z int) (int, error)
	SetBlock(ctx context.Context, x, y, z int, block Block) error
	Block(ctx context.Context, x, y, z int) (Block, error)
	// Attach records a decorative attachment on the block at x, y, z.
	Attach(ctx context.Context, x, y, z int, attachment Attachment) error
	// Flush writes pending changes. It is called frequently.
	Flush(ctx context.Context) error
	// Save makes all changes durable. It is called once at the end of a run.
	Save(ctx context.Context) error
}

// A HeightSource returns the terrain height of a column that has not been
// generated yet.
type HeightSource interface {
	Height(ctx context.Context, cell geo.GridCell) (int, error)
}

// A HeightFunc is a function that implements HeightSource.
type HeightFunc func(ctx context.Context, cell geo.GridCell) (int, error)

// Height implements HeightSource.
func (f HeightFunc) Height(ctx context.Context, cell geo.GridCell) (int, error) {
	return f(ctx, cell)
}

// Flat returns a HeightSource with the same height everywhere.
func Flat(height int) HeightSource {
	return HeightFunc(func(context.Context, geo.GridCell) (int, error) {
		return height, nil
	})
}

func checkPos(x, y, z int) error {
	if y < MinHeight || y > MaxHeight {
		return &ErrOutOfBounds{Pos: Pos{X: x, Y: y, Z: z}}
	}
	return nil
}

func clampHeight(height int) int {
	return min(max(height, MinHeight), MaxHeight)
}

// A column is a generated terrain column with sparse block overrides.
type column struct {
	Terrain     int                `json:"t"`
	Blocks      map[int]Block      `json:"b,omitempty"`
	Attachments map[int]Attachment `json:"a,omitempty"`
}

func newColumn(terrain int) *column {
	return &column{
		Terrain: clampHeight(terrain),
	}
}

func (c *column) block(y int) Block {
	if block, ok := c.Blocks[y]; ok {
		return block
	}
	switch {
	case y > c.Terrain:
		return Block{Material: Air}
	case y == c.Terrain:
		return Block{Material: Grass}
	case y > c.Terrain-4:
		return Block{Material: Dirt}
	default:
		return Block{Material: Stone}
	}
}

func (c *column) setBlock(y int, block Block) {
	if c.Blocks == nil {
		c.Blocks = make(map[int]Block)
	}
	c.Blocks[y] = block
}

func (c *column) attach(y int, attachment Attachment) {
	if c.Attachments == nil {
		c.Attachments = make(map[int]Attachment)
	}
	c.Attachments[y] = attachment
}

func (c *column) height() int {
	top := MinHeight - 1
	for y, block := range c.Blocks {
		if block.Material.Solid() && y > top {
			top = y
		}
	}
	for y := c.Terrain; y > top; y-- {
		if c.block(y).Material.Solid() {
			return y
		}
	}
	return top
}
