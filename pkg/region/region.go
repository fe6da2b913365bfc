// Package region crops detected face rectangles out of a frame.
package region

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
	"go.uber.org/multierr"
)

var (
	// ErrEmptyFrame is returned when cropping from a Mat with no pixels.
	ErrEmptyFrame = errors.New("region: empty frame")

	// ErrOutOfBounds is returned when a rectangle does not overlap the frame.
	ErrOutOfBounds = errors.New("region: rectangle outside frame")
)

// Region is a face rectangle paired with its own copy of the pixels inside it.
// The crop does not share memory with the frame it came from.
type Region struct {
	Rect image.Rectangle
	Crop gocv.Mat
}

// Close releases the crop.
func (r Region) Close() error {
	return r.Crop.Close()
}

// Regions is an ordered list of regions, in detection order.
type Regions []Region

// Rects returns the rectangles in order.
func (rs Regions) Rects() []image.Rectangle {
	out := make([]image.Rectangle, len(rs))
	for i, r := range rs {
		out[i] = r.Rect
	}
	return out
}

// Close releases every crop.
func (rs Regions) Close() error {
	var err error
	for _, r := range rs {
		err = multierr.Append(err, r.Close())
	}
	return err
}

// Clamp limits r to bounds. Detectors near the frame edge can round outward
// by a pixel; the result is always inside bounds and may be empty.
func Clamp(r, bounds image.Rectangle) image.Rectangle {
	return r.Canon().Intersect(bounds)
}

// Extract copies the pixels of r out of m. r is clamped to the frame first;
// a rectangle with no overlap returns ErrOutOfBounds.
func Extract(m gocv.Mat, r image.Rectangle) (gocv.Mat, error) {
	if m.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}

	c := Clamp(r, image.Rect(0, 0, m.Cols(), m.Rows()))
	if c.Empty() {
		return gocv.NewMat(), ErrOutOfBounds
	}

	view := m.Region(c)
	defer view.Close()

	return view.Clone(), nil
}

// New crops r out of m and returns the pair, with Rect set to the clamped
// rectangle so crop and geometry always agree.
func New(m gocv.Mat, r image.Rectangle) (Region, error) {
	crop, err := Extract(m, r)
	if err != nil {
		crop.Close()
		return Region{}, err
	}
	return Region{Rect: Clamp(r, image.Rect(0, 0, m.Cols(), m.Rows())), Crop: crop}, nil
}
