// Package annotate draws face boxes and captions onto a frame.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
	"go.uber.org/multierr"

	"github.com/teslashibe/go-facelabel/pkg/classify"
)

// CaptionOffset is how far above and to the left of a box its caption sits.
const CaptionOffset = 10

// Style controls how boxes and captions are drawn.
type Style struct {
	BoxColor      color.RGBA
	BoxThickness  int
	BoxLine       gocv.LineType
	TextColor     color.RGBA
	Font          gocv.HersheyFont
	FontScale     float64
	TextThickness int
}

// DefaultStyle returns a 2px anti-aliased red box with white plain text.
func DefaultStyle() Style {
	return Style{
		BoxColor:      color.RGBA{R: 255},
		BoxThickness:  2,
		BoxLine:       gocv.LineAA,
		TextColor:     color.RGBA{R: 255, G: 255, B: 255},
		Font:          gocv.FontHersheyPlain,
		FontScale:     1.0,
		TextThickness: 1,
	}
}

// Label is one face to draw.
type Label struct {
	Rect    image.Rectangle
	Caption string
}

// Caption formats a face caption, e.g. "FEMALE:[25-32]" or
// "NOT_RECOGNIZED:[null]".
func Caption(g classify.Gender, a classify.Age) string {
	return fmt.Sprintf("%s:[%s]", g, a)
}

// CaptionOrigin returns the text baseline origin for a box, kept inside
// the image.
func CaptionOrigin(r image.Rectangle) image.Point {
	return image.Pt(max(r.Min.X-CaptionOffset, 0), max(r.Min.Y-CaptionOffset, 0))
}

// Annotator draws labels with a fixed style.
type Annotator struct {
	style Style
}

// New returns an annotator using style.
func New(style Style) *Annotator {
	return &Annotator{style: style}
}

// Style returns the annotator's style.
func (a *Annotator) Style() Style {
	return a.style
}

// Annotate draws every label onto img in slice order. With no labels img is
// left untouched. A label that fails to draw does not stop the others; the
// failures are returned together.
func (a *Annotator) Annotate(img *gocv.Mat, labels []Label) error {
	var errs error
	for _, l := range labels {
		if err := gocv.RectangleWithParams(img, l.Rect, a.style.BoxColor, a.style.BoxThickness, a.style.BoxLine, 0); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("annotate: box %v: %w", l.Rect, err))
		}
		if err := gocv.PutText(img, l.Caption, CaptionOrigin(l.Rect), a.style.Font, a.style.FontScale, a.style.TextColor, a.style.TextThickness); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("annotate: caption %q: %w", l.Caption, err))
		}
	}
	return errs
}
