package platelbl

import (
	"errors"
	"fmt"
)

// Errors reported while converting annotations. Use errors.Is to test for them.
var (
	// ErrMalformedSource marks an annotation document that lacks required structure, e.g. the
	// image dimensions block. Nothing is emitted for such a document.
	ErrMalformedSource = errors.New("malformed annotation source")

	// ErrDegenerateDimensions marks a zero or negative image width or height. It is a kind of
	// ErrMalformedSource.
	ErrDegenerateDimensions = fmt.Errorf("%w: degenerate image dimensions", ErrMalformedSource)

	// ErrIncompleteBox marks an object of a known class without all four box coordinates. The
	// whole document is unusable.
	ErrIncompleteBox = fmt.Errorf("%w: incomplete bounding box", ErrMalformedSource)

	// ErrUnknownClass marks an object whose class is not in the vocabulary. Only that object is
	// skipped.
	ErrUnknownClass = errors.New("class not in vocabulary")

	// ErrBoxOutOfRange marks a box whose normalized coordinates leave [0,1], i.e. the corners
	// exceed the stated image dimensions. Only that object is skipped.
	ErrBoxOutOfRange = errors.New("bounding box exceeds the image dimensions")
)

// ErrUnreadableImage marks an image that is missing or cannot be decoded. It is a hard failure,
// distinct from an image in which no plate is found.
var ErrUnreadableImage = errors.New("unreadable image")
