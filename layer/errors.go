package layer

import "errors"

var (
	// ErrShapeMismatch is returned when serialized parameters do not fit the
	// receiving layer.
	ErrShapeMismatch = errors.New("layer: shape mismatch")

	// ErrInvalidDimension is returned for non-positive layer dimensions.
	ErrInvalidDimension = errors.New("layer: dimensions must be positive")
)
