package world

import (
	"context"
	"sync"

	"github.com/twpayne/go-voxelize/geo"
)

// A MemoryStore is a Store that keeps every column in memory.
type MemoryStore struct {
	mutex        sync.Mutex
	heightSource HeightSource
	columns      map[geo.GridCell]*column
	flushes      int
	saves        int
}

// NewMemoryStore returns a new MemoryStore whose columns are generated from
// heightSource.
func NewMemoryStore(heightSource HeightSource) *MemoryStore {
	return &MemoryStore{
		heightSource: heightSource,
		columns:      make(map[geo.GridCell]*column),
	}
}

// ColumnHeight implements Store.ColumnHeight.
func (s *MemoryStore) ColumnHeight(ctx context.Context, x, z int) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c, err := s.column(ctx, geo.GridCell{X: x, Z: z})
	if err != nil {
		return 0, err
	}
	return c.height(), nil
}

// SetBlock implements Store.SetBlock.
func (s *MemoryStore) SetBlock(ctx context.Context, x, y, z int, block Block) error {
	if err := checkPos(x, y, z); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c, err := s.column(ctx, geo.GridCell{X: x, Z: z})
	if err != nil {
		return err
	}
	c.setBlock(y, block)
	return nil
}

// Block implements Store.Block.
func (s *MemoryStore) Block(ctx context.Context, x, y, z int) (Block, error) {
	if err := checkPos(x, y, z); err != nil {
		return Block{}, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c, err := s.column(ctx, geo.GridCell{X: x, Z: z})
	if err != nil {
		return Block{}, err
	}
	return c.block(y), nil
}

// Attach implements Store.Attach.
func (s *MemoryStore) Attach(ctx context.Context, x, y, z int, attachment Attachment) error {
	if err := checkPos(x, y, z); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c, err := s.column(ctx, geo.GridCell{X: x, Z: z})
	if err != nil {
		return err
	}
	c.attach(y, attachment)
	return nil
}

// Flush implements Store.Flush.
func (s *MemoryStore) Flush(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.flushes++
	return nil
}

// Save implements Store.Save.
func (s *MemoryStore) Save(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.saves++
	return nil
}

// Attachments returns all attachments in s.
func (s *MemoryStore) Attachments() map[Pos]Attachment {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	attachments := make(map[Pos]Attachment)
	for cell, c := range s.columns {
		for y, attachment := range c.Attachments {
			attachments[Pos{X: cell.X, Y: y, Z: cell.Z}] = attachment
		}
	}
	return attachments
}

// Flushes returns the number of times s has been flushed.
func (s *MemoryStore) Flushes() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.flushes
}

// Saves returns the number of times s has been saved.
func (s *MemoryStore) Saves() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.saves
}

func (s *MemoryStore) column(ctx context.Context, cell geo.GridCell) (*column, error) {
	if c, ok := s.columns[cell]; ok {
		return c, nil
	}
	terrain, err := s.heightSource.Height(ctx, cell)
	if err != nil {
		return nil, err
	}
	c := newColumn(terrain)
	s.columns[cell] = c
	return c, nil
}
