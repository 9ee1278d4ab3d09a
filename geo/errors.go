package geo

import (
	"errors"
	"fmt"
)

// ErrNoAnchors is returned when a Converter is created without anchors.
var ErrNoAnchors = errors.New("at least one anchor is required")

// ErrInvalidCoordinate indicates a coordinate that cannot be projected.
type ErrInvalidCoordinate struct {
	Lat, Long float64
}

func (e *ErrInvalidCoordinate) Error() string {
	return fmt.Sprintf("invalid coordinate: lat=%f long=%f (|lat| must be < 90, |long| <= 180)", e.Lat, e.Long)
}
