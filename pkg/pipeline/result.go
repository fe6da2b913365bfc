package pipeline

import (
	"image"
	"time"

	"github.com/teslashibe/go-facelabel/pkg/annotate"
	"github.com/teslashibe/go-facelabel/pkg/classify"
)

// Face is the outcome for one detected face.
type Face struct {
	Rect    image.Rectangle `json:"rect"`
	Gender  classify.Gender `json:"gender"`
	Age     classify.Age    `json:"age"`
	Caption string          `json:"caption"`

	AgeErr    error `json:"-"`
	GenderErr error `json:"-"`
}

// Timings are per-stage durations of one tick.
type Timings struct {
	Capture  time.Duration `json:"capture_ns"`
	Detect   time.Duration `json:"detect_ns"`
	Classify time.Duration `json:"classify_ns"`
	Annotate time.Duration `json:"annotate_ns"`
	Total    time.Duration `json:"total_ns"`
}

// TickResult is everything produced for one frame. Faces are in detection
// order.
type TickResult struct {
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Faces   []Face    `json:"faces"`
	Timings Timings   `json:"timings"`
}

// Labels returns the annotation for every face, in order.
func (r TickResult) Labels() []annotate.Label {
	labels := make([]annotate.Label, len(r.Faces))
	for i, f := range r.Faces {
		labels[i] = annotate.Label{Rect: f.Rect, Caption: f.Caption}
	}
	return labels
}
