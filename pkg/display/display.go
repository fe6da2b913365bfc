// Package display presents annotated frames to the user.
//
// Sinks receive frames from the capture loop through Present, which copies
// the frame into a latest-wins Mailbox and returns at once. Painting happens
// on the sink's own goroutine, so a slow window or viewer only ever skips
// frames and never slows capture.
package display

import "gocv.io/x/gocv"

// Sink accepts annotated frames. Present must not block and must not keep
// a reference to img after it returns.
type Sink interface {
	Present(img gocv.Mat)
}

// Multi fans frames out to several sinks.
type Multi []Sink

// Present hands img to every sink in order.
func (m Multi) Present(img gocv.Mat) {
	for _, s := range m {
		s.Present(img)
	}
}

// Discard is a Sink that drops every frame.
type Discard struct{}

// Present does nothing.
func (Discard) Present(gocv.Mat) {}
