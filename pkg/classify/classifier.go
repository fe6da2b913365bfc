// Package classify runs the age and gender networks over cropped faces.
//
// Both classifiers share one path: crop → Prepare → Model.Forward → label.
// Every failure on that path comes back as a failed Result instead of an
// error escaping to the frame loop. OpenCV reports its exceptions as errors;
// a panicking Model is recovered as well.
package classify

import (
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facelabel/internal/log"
)

// Classifier is the model-agnostic part of both classifiers.
type Classifier struct {
	name  string
	model Model
	size  image.Point
	log   *slog.Logger
}

// NewClassifier wraps a loaded model.
func NewClassifier(name string, model Model) (*Classifier, error) {
	if model == nil {
		return nil, ErrNoModel
	}
	return &Classifier{
		name:  name,
		model: model,
		size:  image.Pt(InputSize, InputSize),
		log:   log.Component("classify").With("model", name),
	}, nil
}

// Probabilities prepares the crop and runs one forward pass.
func (c *Classifier) Probabilities(crop gocv.Mat, depth int) (probs []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classify: %s: %v (inference panic)\nstack: %s", c.name, r, debug.Stack())
		}
	}()

	blob, err := Prepare(crop, depth, c.size)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	probs, err = c.model.Forward(blob)
	if err != nil {
		return nil, fmt.Errorf("classify: %s: forward: %w", c.name, err)
	}

	c.log.Debug("forward pass", "probs", probs)
	return probs, nil
}

// Close releases the model.
func (c *Classifier) Close() error {
	return c.model.Close()
}

// Argmax returns the index of the largest value; the first index wins ties.
// It returns -1 for an empty slice.
func Argmax(v []float32) int {
	best := -1
	for i, p := range v {
		if best < 0 || p > v[best] {
			best = i
		}
	}
	return best
}

// DecideGender returns Male only when pMale is strictly greater than
// pFemale; equal probabilities give Female.
func DecideGender(pMale, pFemale float32) Gender {
	if pMale > pFemale {
		return Male
	}
	return Female
}

// AgeClassifier maps a face to one of AgeLabels.
type AgeClassifier struct {
	*Classifier
}

// NewAge builds the age classifier around a loaded model.
func NewAge(model Model) (*AgeClassifier, error) {
	c, err := NewClassifier("age", model)
	if err != nil {
		return nil, err
	}
	return &AgeClassifier{Classifier: c}, nil
}

// Classify returns the age bucket of the face.
func (a *AgeClassifier) Classify(crop gocv.Mat, depth int) Result[Age] {
	probs, err := a.Probabilities(crop, depth)
	if err != nil {
		return Failed[Age](err)
	}
	if len(probs) != len(AgeLabels) {
		return Failed[Age](fmt.Errorf("%w: age vector has %d entries, want %d", ErrOutputShape, len(probs), len(AgeLabels)))
	}
	return Ok(AgeLabels[Argmax(probs)])
}

// GenderClassifier maps a face to Male or Female.
type GenderClassifier struct {
	*Classifier
}

// NewGender builds the gender classifier around a loaded model.
func NewGender(model Model) (*GenderClassifier, error) {
	c, err := NewClassifier("gender", model)
	if err != nil {
		return nil, err
	}
	return &GenderClassifier{Classifier: c}, nil
}

// Classify returns the gender of the face. The network output is
// [pMale, pFemale].
func (g *GenderClassifier) Classify(crop gocv.Mat, depth int) Result[Gender] {
	probs, err := g.Probabilities(crop, depth)
	if err != nil {
		return Failed[Gender](err)
	}
	if len(probs) < 2 {
		return Failed[Gender](fmt.Errorf("%w: gender vector has %d entries, want 2", ErrOutputShape, len(probs)))
	}
	return Ok(DecideGender(probs[0], probs[1]))
}
