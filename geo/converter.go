package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultScaleFactor is the empirical correction applied to planar deltas
// before they are added to an anchor's grid cell.
const DefaultScaleFactor = 1.10

// A Converter converts geographic coordinates to grid cells by blending the
// estimates of several calibrated anchors, weighted by inverse squared planar
// distance.
type Converter struct {
	projector   Projector
	anchors     []calibratedAnchor
	scaleFactor float64
	bounds      *Rect
}

type calibratedAnchor struct {
	Anchor
	planar r2.Vec
}

// A ConverterOption sets an option on a Converter.
type ConverterOption func(*Converter)

// WithProjector sets the projector. The default is MercatorProjector.
func WithProjector(projector Projector) ConverterOption {
	return func(c *Converter) {
		c.projector = projector
	}
}

// WithScaleFactor sets the planar delta scale factor.
func WithScaleFactor(scaleFactor float64) ConverterOption {
	return func(c *Converter) {
		c.scaleFactor = scaleFactor
	}
}

// WithBounds sets the world extents checked by IsValidCell.
func WithBounds(bounds Rect) ConverterOption {
	return func(c *Converter) {
		c.bounds = &bounds
	}
}

// NewConverter returns a new Converter calibrated with anchors.
func NewConverter(anchors []Anchor, options ...ConverterOption) (*Converter, error) {
	if len(anchors) == 0 {
		return nil, ErrNoAnchors
	}
	c := &Converter{
		projector:   MercatorProjector{},
		scaleFactor: DefaultScaleFactor,
	}
	for _, option := range options {
		option(c)
	}
	c.anchors = make([]calibratedAnchor, 0, len(anchors))
	for _, anchor := range anchors {
		planar, err := c.projector.Project(anchor.Geo)
		if err != nil {
			return nil, err
		}
		c.anchors = append(c.anchors, calibratedAnchor{
			Anchor: anchor,
			planar: planar,
		})
	}
	return c, nil
}

// ToGrid returns the grid cell of p. A point exactly at an anchor returns that
// anchor's cell.
func (c *Converter) ToGrid(p GeoPoint) (GridCell, error) {
	planar, err := c.projector.Project(p)
	if err != nil {
		return GridCell{}, err
	}
	var sumX, sumZ, sumWeight float64
	for _, anchor := range c.anchors {
		offset := r2.Sub(planar, anchor.planar)
		distance2 := r2.Norm2(offset)
		if distance2 == 0 {
			return anchor.Cell, nil
		}
		delta := r2.Scale(c.scaleFactor, offset)
		weight := 1 / distance2
		// Planar Y grows northward, grid Z grows southward.
		sumX += weight * (float64(anchor.Cell.X) + delta.X)
		sumZ += weight * (float64(anchor.Cell.Z) - delta.Y)
		sumWeight += weight
	}
	return GridCell{
		X: int(math.Round(sumX / sumWeight)),
		Z: int(math.Round(sumZ / sumWeight)),
	}, nil
}

// ToGeo returns the approximate geographic coordinate of the center of cell.
// It inverts the blend performed by ToGrid, weighting anchors by inverse
// squared grid distance.
func (c *Converter) ToGeo(cell GridCell) (GeoPoint, error) {
	var sum r2.Vec
	var sumWeight float64
	for _, anchor := range c.anchors {
		dx := float64(cell.X - anchor.Cell.X)
		dz := float64(cell.Z - anchor.Cell.Z)
		distance2 := dx*dx + dz*dz
		if distance2 == 0 {
			return anchor.Geo, nil
		}
		estimate := r2.Add(anchor.planar, r2.Scale(1/c.scaleFactor, r2.Vec{X: dx, Y: -dz}))
		weight := 1 / distance2
		sum = r2.Add(sum, r2.Scale(weight, estimate))
		sumWeight += weight
	}
	return c.projector.Unproject(r2.Scale(1/sumWeight, sum))
}

// IsValidCell returns whether cell lies within the configured world bounds.
// Without bounds every cell is valid.
func (c *Converter) IsValidCell(cell GridCell) bool {
	if c.bounds == nil {
		return true
	}
	return c.bounds.Contains(cell)
}
