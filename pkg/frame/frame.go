// Package frame defines the unit of work that flows through the pipeline.
package frame

import (
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Frame is one captured image. Pipeline stages treat Mat as read-only; the
// owner closes it once the tick that produced it has finished.
type Frame struct {
	Mat   gocv.Mat
	Depth int       // bits per sample (8 for CV_8U, 16 for CV_16U, ...)
	Seq   uint64    // capture sequence number, starting at 1
	At    time.Time // capture time
}

// New wraps a Mat, deriving the bit depth from its type.
func New(m gocv.Mat, seq uint64) Frame {
	return Frame{
		Mat:   m,
		Depth: DepthOf(m.Type()),
		Seq:   seq,
		At:    time.Now(),
	}
}

// DepthOf returns the bits per sample of a Mat type, or 0 if unknown.
func DepthOf(t gocv.MatType) int {
	switch gocv.MatType(int(t) & 7) {
	case gocv.MatTypeCV8U, gocv.MatTypeCV8S:
		return 8
	case gocv.MatTypeCV16U, gocv.MatTypeCV16S:
		return 16
	case gocv.MatTypeCV32S, gocv.MatTypeCV32F:
		return 32
	case gocv.MatTypeCV64F:
		return 64
	}
	return 0
}

// Bounds returns the frame rectangle in pixel coordinates.
func (f Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Mat.Cols(), f.Mat.Rows())
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Mat.Empty()
}

// Close releases the pixel buffer.
func (f Frame) Close() error {
	return f.Mat.Close()
}
