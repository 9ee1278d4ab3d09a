package render

import (
	"context"
	"fmt"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/raster"
	"github.com/twpayne/go-voxelize/world"
)

// RenderRoad draws road.
func (r *Renderer) RenderRoad(ctx context.Context, road *feature.RoadFeature) error {
	if err := road.Validate(); err != nil {
		return err
	}
	path, err := r.convertPath(road.Geometry)
	if err != nil {
		return fmt.Errorf("road %d: %w", road.ID, err)
	}
	return r.RenderRoadPath(ctx, road, path)
}

// RenderRoadPath draws road along path, which has already been converted to
// grid cells. Edge i of path is segment i of road.
//
// A cell already owned by a road with the same identity on the same layer
// gains an owner and keeps its height. A cell owned by a road with a wider
// carriageway keeps its material and gains an owner. Otherwise road claims
// the cell. Sidewalk columns only claim free cells or join cells of the same
// road, and crossings paint over other roads' carriageways without owning
// them.
func (r *Renderer) RenderRoadPath(ctx context.Context, road *feature.RoadFeature, path []geo.GridCell) error {
	if len(path) < 2 {
		return fmt.Errorf("road %d: %d cells: %w", road.ID, len(path), feature.ErrDegenerateFeature)
	}
	carriageway := road.LaneCount() * r.laneWidth
	for segment := range len(path) - 1 {
		ref := feature.SegmentRef{Feature: road.ID, Segment: segment}
		if err := r.renderRoadSegment(ctx, road, ref, path[segment], path[segment+1], carriageway); err != nil {
			return fmt.Errorf("road %d: %w", road.ID, err)
		}
	}
	return r.featureDone(ctx)
}

func (r *Renderer) renderRoadSegment(ctx context.Context, road *feature.RoadFeature, ref feature.SegmentRef, from, to geo.GridCell, carriageway int) error {
	width := AdjustedWidth(carriageway, from, to)
	total := width + r.sidewalkWidth*road.Sidewalk.Count()

	// Column 0 is on the left or right of the direction of travel depending
	// on the direction of the segment.
	lowSidewalk, highSidewalk := road.Sidewalk.Left(), road.Sidewalk.Right()
	if !raster.LeftIsLow(from, to) {
		lowSidewalk, highSidewalk = highSidewalk, lowSidewalk
	}

	for span := range raster.Line(from, to, total) {
		if !r.converter.IsValidCell(span.Cell) {
			cellsDropped.Inc()
			continue
		}
		var err error
		switch {
		case lowSidewalk && span.Column < r.sidewalkWidth,
			highSidewalk && span.Column >= total-r.sidewalkWidth:
			err = r.paintSidewalk(ctx, road, ref, span)
		default:
			err = r.paintCarriageway(ctx, road, ref, width, total, span)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) paintCarriageway(ctx context.Context, road *feature.RoadFeature, ref feature.SegmentRef, width, total int, span raster.Span) error {
	record, ok := r.occupancy.records[span.Cell]
	switch {
	case !ok:
		return r.claim(ctx, road, ref, width, span.Cell, false)
	case record.Layer != road.LayerValue():
		cellsSkipped.Inc()
		return nil
	case record.Identity == road.Identity():
		record.addOwner(ref)
		if !record.Sidewalk {
			return nil
		}
		// The carriageway of a road wins over its own sidewalk at bends.
		return r.dominate(ctx, road, record, width, span.Cell)
	case road.Crossing != feature.CrossingNone:
		if record.Sidewalk {
			cellsSkipped.Inc()
			return nil
		}
		return r.paintCrossing(ctx, road.Crossing, record, total, span)
	case !record.Sidewalk && record.Width > width:
		record.addOwner(ref)
		cellsMerged.Inc()
		return nil
	default:
		record.addOwner(ref)
		cellsMerged.Inc()
		if record.Crossing {
			return nil
		}
		return r.dominate(ctx, road, record, width, span.Cell)
	}
}

func (r *Renderer) paintSidewalk(ctx context.Context, road *feature.RoadFeature, ref feature.SegmentRef, span raster.Span) error {
	record, ok := r.occupancy.records[span.Cell]
	switch {
	case !ok:
		return r.claim(ctx, road, ref, 0, span.Cell, true)
	case record.Identity == road.Identity() && record.Layer == road.LayerValue():
		record.addOwner(ref)
		return nil
	default:
		cellsSkipped.Inc()
		return nil
	}
}

// claim records cell as a new road cell, samples its height, draws its
// surface and clears the space above it.
func (r *Renderer) claim(ctx context.Context, road *feature.RoadFeature, ref feature.SegmentRef, width int, cell geo.GridCell, sidewalk bool) error {
	height, err := r.store.ColumnHeight(ctx, cell.X, cell.Z)
	if err != nil {
		return err
	}
	height = min(max(height, world.MinHeight), world.MaxHeight)
	record := &Record{
		Height:   height,
		Owners:   []feature.SegmentRef{ref},
		Sidewalk: sidewalk,
		Feature:  road.ID,
		Identity: road.Identity(),
		Width:    width,
		Layer:    road.LayerValue(),
	}
	r.occupancy.records[cell] = record
	cellsClaimed.Inc()

	material := world.Sidewalk
	if !sidewalk {
		material = surfaceMaterials[road.Surface]
	}
	if err := r.store.SetBlock(ctx, cell.X, height, cell.Z, world.Block{Material: material}); err != nil {
		return err
	}
	for y := height + 1; y <= min(height+r.clearance, world.MaxHeight); y++ {
		if err := r.store.SetBlock(ctx, cell.X, y, cell.Z, world.Block{Material: world.Air}); err != nil {
			return err
		}
	}
	return nil
}

// dominate makes road the feature whose material record shows, keeping the
// record's height.
func (r *Renderer) dominate(ctx context.Context, road *feature.RoadFeature, record *Record, width int, cell geo.GridCell) error {
	record.Sidewalk = false
	record.Feature = road.ID
	record.Identity = road.Identity()
	record.Width = width
	block := world.Block{Material: surfaceMaterials[road.Surface]}
	return r.store.SetBlock(ctx, cell.X, record.Height, cell.Z, block)
}

// paintCrossing paints crossing markings on another road's carriageway.
func (r *Renderer) paintCrossing(ctx context.Context, kind feature.CrossingKind, record *Record, total int, span raster.Span) error {
	var material world.Material
	switch {
	case kind == feature.CrossingZebra && span.Row%2 == 0:
		material = world.CrossingWhite
	case kind == feature.CrossingZebra:
		material = world.CrossingBlack
	case kind == feature.CrossingSignals && (span.Column == 0 || span.Column == total-1):
		material = world.CrossingWhite
	default:
		return nil
	}
	record.Crossing = true
	return r.store.SetBlock(ctx, span.Cell.X, record.Height, span.Cell.Z, world.Block{Material: material})
}
