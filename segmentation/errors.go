package segmentation

import (
	"errors"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
)

var (
	// ErrInvalidInput is returned for malformed chromagrams and parameters.
	// It is the same value as chroma.ErrInvalidInput.
	ErrInvalidInput = chroma.ErrInvalidInput

	// ErrDependencyUnavailable is returned when no chromagram provider was
	// supplied
	ErrDependencyUnavailable = errors.New("chromagram provider unavailable")
)
