// Package raster rasterizes thick lines between grid cells using integer
// arithmetic only.
package raster

import (
	"iter"

	"github.com/twpayne/go-voxelize/geo"
)

// A Span is one cell produced by Line.
type Span struct {
	Cell geo.GridCell
	// Column is the strip index, 0 to width-1, across the band. Columns 0 and
	// width-1 are the band's edges.
	Column int
	// Row is the step index along the dominant axis, 0 at the start cell.
	Row int
	// Overlap is set on extra cells emitted at diagonal steps to keep the
	// band's edge edge-connected.
	Overlap bool
}

// Line returns the cells of a band of the given width centered on the line
// from from to to. A width less than one is treated as one.
//
// The band is stepped along the dominant axis (x on ties) with a Bresenham
// error accumulator. Each row contains exactly width contiguous cells offset
// along the minor axis by column-width/2, so even widths lean toward the
// negative minor direction. For widths greater than one, every minor step also
// emits one Overlap cell at the new row on the trailing edge of the band. The
// seam cells of the other columns are covered by the next row.
//
// The sequence is finite and deterministic.
func Line(from, to geo.GridCell, width int) iter.Seq[Span] {
	width = max(width, 1)
	return func(yield func(Span) bool) {
		s := newStepper(from, to)
		first := -(width / 2)
		// The trailing edge column is the one whose corner cell is not covered
		// by the next row.
		trailing := 0
		if s.minorStep < 0 {
			trailing = width - 1
		}
		errorTerm := 2*s.minorDelta - s.majorDelta
		for row := 0; ; row++ {
			for column := range width {
				if !yield(Span{Cell: s.cell(s.major, s.minor+first+column), Column: column, Row: row}) {
					return
				}
			}
			if row == s.majorDelta {
				return
			}
			s.major += s.majorStep
			if errorTerm > 0 {
				if width > 1 {
					overlap := Span{
						Cell:    s.cell(s.major, s.minor+first+trailing),
						Column:  trailing,
						Row:     row + 1,
						Overlap: true,
					}
					if !yield(overlap) {
						return
					}
				}
				s.minor += s.minorStep
				errorTerm -= 2 * s.majorDelta
			}
			errorTerm += 2 * s.minorDelta
		}
	}
}

// A stepper maps the dominant and minor axes of a line onto x and z.
type stepper struct {
	xMajor     bool
	major      int
	minor      int
	majorDelta int
	minorDelta int
	majorStep  int
	minorStep  int
}

func newStepper(from, to geo.GridCell) stepper {
	dx, dz := to.X-from.X, to.Z-from.Z
	if abs(dx) >= abs(dz) {
		return stepper{
			xMajor:     true,
			major:      from.X,
			minor:      from.Z,
			majorDelta: abs(dx),
			minorDelta: abs(dz),
			majorStep:  sign(dx),
			minorStep:  sign(dz),
		}
	}
	return stepper{
		major:      from.Z,
		minor:      from.X,
		majorDelta: abs(dz),
		minorDelta: abs(dx),
		majorStep:  sign(dz),
		minorStep:  sign(dx),
	}
}

func (s *stepper) cell(major, minor int) geo.GridCell {
	if s.xMajor {
		return geo.GridCell{X: major, Z: minor}
	}
	return geo.GridCell{X: minor, Z: major}
}

// LeftIsLow returns whether column 0 of the band from from to to lies on the
// left of the direction of travel, with x growing east and z growing south.
func LeftIsLow(from, to geo.GridCell) bool {
	s := newStepper(from, to)
	if s.xMajor {
		return s.majorStep >= 0
	}
	return s.majorStep < 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	default:
		return 0
	}
}
