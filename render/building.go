package render

import (
	"context"
	"fmt"
	"iter"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/raster"
	"github.com/twpayne/go-voxelize/world"
)

// RenderBuilding draws the walls of building.
func (r *Renderer) RenderBuilding(ctx context.Context, building *feature.BuildingFeature) error {
	if err := building.Validate(); err != nil {
		return err
	}
	footprint, err := r.convertPath(building.Footprint)
	if err != nil {
		return fmt.Errorf("building %d: %w", building.ID, err)
	}
	return r.RenderBuildingPath(ctx, building, footprint)
}

// RenderBuildingPath draws the walls of building along footprint, which has
// already been converted to grid cells. Cells already painted by any building
// or claimed by a road are skipped. Every wall column reaches the same roof
// height so that roofs stay level on sloping terrain.
func (r *Renderer) RenderBuildingPath(ctx context.Context, building *feature.BuildingFeature, footprint []geo.GridCell) error {
	type wallColumn struct {
		cell geo.GridCell
		base int
	}

	height := max(minBuildingHeight, building.Stories*storyHeight+2)
	var columns []wallColumn
	top := world.MinHeight
	for cell := range outline(footprint) {
		if !r.converter.IsValidCell(cell) {
			cellsDropped.Inc()
			continue
		}
		if _, ok := r.occupancy.buildings[cell]; ok {
			cellsSkipped.Inc()
			continue
		}
		if r.occupancy.IsRoad(cell) {
			cellsSkipped.Inc()
			continue
		}
		base, err := r.store.ColumnHeight(ctx, cell.X, cell.Z)
		if err != nil {
			return fmt.Errorf("building %d: %w", building.ID, err)
		}
		columns = append(columns, wallColumn{cell: cell, base: base})
		top = max(top, base+height)
	}
	top = min(top, r.maxBuildHeight, world.MaxHeight)

	block := world.Block{Material: r.wallMaterial(building.Amenity)}
	for _, column := range columns {
		r.occupancy.buildings[column.cell] = building.ID
		for y := max(column.base+1, world.MinHeight); y <= top; y++ {
			if err := r.store.SetBlock(ctx, column.cell.X, y, column.cell.Z, block); err != nil {
				return fmt.Errorf("building %d: %w", building.ID, err)
			}
		}
	}
	return r.featureDone(ctx)
}

// RenderBarrier draws barrier as a wall one cell thick.
func (r *Renderer) RenderBarrier(ctx context.Context, barrier *feature.BarrierFeature) error {
	if err := barrier.Validate(); err != nil {
		return err
	}
	path, err := r.convertPath(barrier.Geometry)
	if err != nil {
		return fmt.Errorf("barrier %d: %w", barrier.ID, err)
	}

	var block world.Block
	var height int
	switch barrier.Kind {
	case feature.BarrierWall:
		block, height = world.Block{Material: world.Wall}, 2
	case feature.BarrierHedge:
		block, height = world.Block{Material: world.Hedge}, 2
	default:
		block, height = world.Block{Material: world.Fence}, 1
	}

	for i := range len(path) - 1 {
		for span := range raster.Line(path[i], path[i+1], 1) {
			cell := span.Cell
			if !r.converter.IsValidCell(cell) {
				cellsDropped.Inc()
				continue
			}
			if _, ok := r.occupancy.barriers[cell]; ok || r.occupancy.IsRoad(cell) {
				continue
			}
			if _, ok := r.occupancy.buildings[cell]; ok {
				continue
			}
			base, err := r.store.ColumnHeight(ctx, cell.X, cell.Z)
			if err != nil {
				return fmt.Errorf("barrier %d: %w", barrier.ID, err)
			}
			r.occupancy.barriers[cell] = struct{}{}
			for y := base + 1; y <= min(base+height, world.MaxHeight); y++ {
				if err := r.store.SetBlock(ctx, cell.X, y, cell.Z, block); err != nil {
					return fmt.Errorf("barrier %d: %w", barrier.ID, err)
				}
			}
		}
	}
	return r.featureDone(ctx)
}

// outline returns the distinct cells of the closed ring through footprint in
// drawing order.
func outline(footprint []geo.GridCell) iter.Seq[geo.GridCell] {
	return func(yield func(geo.GridCell) bool) {
		seen := make(map[geo.GridCell]struct{})
		n := len(footprint)
		for i := range n {
			from, to := footprint[i], footprint[(i+1)%n]
			for span := range raster.Line(from, to, 1) {
				if _, ok := seen[span.Cell]; ok {
					continue
				}
				seen[span.Cell] = struct{}{}
				if !yield(span.Cell) {
					return
				}
			}
		}
	}
}
