package classify

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// InputSize is the square input edge of the age and gender networks.
const InputSize = 256

// MaxBitDepth is the deepest sample type a frame can carry (CV_64F).
const MaxBitDepth = 64

// NormFloor is the lower bound of the min-max normalisation range.
const NormFloor = -1.0

// NormCeiling returns the upper bound of the normalisation range for a
// source with the given bits per sample: 2^depth.
func NormCeiling(depth int) float64 {
	return math.Pow(2, float64(depth))
}

// Prepare turns a face crop into a network input blob: resize to size,
// convert to float32, min-max normalise into [NormFloor, 2^depth] and pack
// as a batch of one in NCHW order. depth is the bit depth of the frame the
// crop came from, not of the crop's own Mat type. The caller closes the blob.
func Prepare(crop gocv.Mat, depth int, size image.Point) (gocv.Mat, error) {
	if crop.Empty() {
		return gocv.NewMat(), ErrEmptyCrop
	}
	if depth < 1 || depth > MaxBitDepth {
		return gocv.NewMat(), fmt.Errorf("%w: %d", ErrBitDepth, depth)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(crop, &resized, size, 0, 0, gocv.InterpolationLinear); err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: resize: %w", ErrPrepare, err)
	}

	floats := gocv.NewMat()
	defer floats.Close()
	if err := resized.ConvertTo(&floats, gocv.MatTypeCV32F); err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: convert: %w", ErrPrepare, err)
	}

	normalized := gocv.NewMat()
	defer normalized.Close()
	if err := gocv.Normalize(floats, &normalized, NormFloor, NormCeiling(depth), gocv.NormMinMax); err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: normalize: %w", ErrPrepare, err)
	}

	blob := gocv.BlobFromImage(normalized, 1.0, size, gocv.NewScalar(0, 0, 0, 0), false, false)
	if blob.Empty() {
		blob.Close()
		return gocv.NewMat(), fmt.Errorf("%w: blob: %w", ErrPrepare, lastError("no data"))
	}
	return blob, nil
}

// lastError returns the pending OpenCV exception, or fallback when calls
// that report failures through an empty Mat left none behind.
func lastError(fallback string) error {
	if err := gocv.LastExceptionError(); err != nil {
		return err
	}
	return errors.New(fallback)
}
