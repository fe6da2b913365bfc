package classify

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrEmptyCrop is returned when the face crop has no pixels.
	ErrEmptyCrop = errors.New("classify: empty crop")

	// ErrBitDepth is returned for a source bit depth outside 1..MaxBitDepth.
	ErrBitDepth = errors.New("classify: unsupported bit depth")

	// ErrPrepare wraps an OpenCV failure while turning a crop into a blob.
	ErrPrepare = errors.New("classify: prepare input")

	// ErrOutputShape is returned when the network output has the wrong length.
	ErrOutputShape = errors.New("classify: unexpected output shape")

	// ErrModelMissing is returned when a model file does not exist.
	ErrModelMissing = errors.New("classify: model file not found")

	// ErrNoModel is returned when a classifier is built without a model.
	ErrNoModel = errors.New("classify: model required")
)

// ModelError reports a model that could not be loaded.
type ModelError struct {
	Arch    string
	Weights string
	Err     error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	return fmt.Sprintf("classify: load model %s (%s): %v", e.Weights, e.Arch, e.Err)
}

// Unwrap returns the underlying error.
func (e *ModelError) Unwrap() error {
	return e.Err
}
