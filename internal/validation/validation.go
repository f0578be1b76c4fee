package validation

import (
	"errors"
	"math"
)

// ErrLatitudeOutOfRange is returned when latitude is outside [-90, 90].
var ErrLatitudeOutOfRange = errors.New("latitude out of range")

// ErrLongitudeOutOfRange is returned when longitude is outside [-180, 180].
var ErrLongitudeOutOfRange = errors.New("longitude out of range")

// ErrCoordinateNotANumber is returned when either component is NaN.
var ErrCoordinateNotANumber = errors.New("coordinate is not a number")

// ValidateCoordinate checks a latitude/longitude pair for NaN and range.
// Range bounds are inclusive. Invalid pairs are rejected outright; callers
// must never clamp or round them into validity.
func ValidateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return ErrCoordinateNotANumber
	}
	if lat < -90 || lat > 90 {
		return ErrLatitudeOutOfRange
	}
	if lon < -180 || lon > 180 {
		return ErrLongitudeOutOfRange
	}
	return nil
}

// IsValidCoordinate reports whether the pair passes ValidateCoordinate.
func IsValidCoordinate(lat, lon float64) bool {
	return ValidateCoordinate(lat, lon) == nil
}
