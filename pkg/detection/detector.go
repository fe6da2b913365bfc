// Package detection finds face rectangles in a frame and crops them.
package detection

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facelabel/internal/log"
	"github.com/teslashibe/go-facelabel/pkg/frame"
	"github.com/teslashibe/go-facelabel/pkg/region"
)

// Backend names.
const (
	BackendCascade = "cascade"
	BackendYuNet   = "yunet"
)

// ErrUnknownBackend is returned by New for an unrecognised Config.Backend.
var ErrUnknownBackend = errors.New("detection: unknown backend")

// Detector is the interface for face detection backends.
type Detector interface {
	// Detect returns one region per face, in the order the backend reports
	// them. An empty frame gives an empty result.
	Detect(f frame.Frame) region.Regions

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	Backend string // "cascade" (default) or "yunet"

	// Cascade backend
	CascadePath  string      // Haar cascade XML
	ScaleFactor  float64     // image pyramid step (default 1.1)
	MinNeighbors int         // overlapping hits required (default 3)
	MinSize      image.Point // smallest face considered
	MaxSize      image.Point // largest face considered (zero = unbounded)

	// YuNet backend
	ModelPath        string  // ONNX model
	ConfidenceThresh float64 // minimum score (default 0.5)
	InputWidth       int     // initial input width
	InputHeight      int     // initial input height
}

// DefaultConfig returns the cascade backend with OpenCV's usual parameters.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendCascade,
		CascadePath:      "models/haarcascade_frontalface_alt.xml",
		ScaleFactor:      1.1,
		MinNeighbors:     3,
		MinSize:          image.Pt(30, 30),
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// LegacyConfig returns the coarser pyramid (scale 1.5) used by older
// desktop builds. It is faster and misses more small faces.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.ScaleFactor = 1.5
	cfg.MinSize = image.Point{}
	return cfg
}

// Validate returns a list of problems with the configuration.
func (c Config) Validate() []string {
	var errs []string
	switch c.Backend {
	case BackendCascade, "":
		if c.CascadePath == "" {
			errs = append(errs, "cascade path is required")
		}
		if c.ScaleFactor <= 1 {
			errs = append(errs, "scale factor must be greater than 1")
		}
		if c.MinNeighbors < 0 {
			errs = append(errs, "min neighbors must be non-negative")
		}
	case BackendYuNet:
		if c.ModelPath == "" {
			errs = append(errs, "yunet model path is required")
		}
		if c.ConfidenceThresh < 0 || c.ConfidenceThresh > 1 {
			errs = append(errs, "confidence threshold must be within 0..1")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown backend %q", c.Backend))
	}
	return errs
}

// New builds the detector selected by cfg.Backend.
func New(cfg Config) (Detector, error) {
	switch cfg.Backend {
	case BackendCascade, "":
		return NewCascade(cfg)
	case BackendYuNet:
		return NewYuNet(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// crop turns raw rectangles into regions. Rectangles that fall outside the
// frame are dropped.
func crop(logger *slog.Logger, m gocv.Mat, rects []image.Rectangle) region.Regions {
	regions := make(region.Regions, 0, len(rects))
	for _, r := range rects {
		reg, err := region.New(m, r)
		if err != nil {
			logger.Debug("dropping face rectangle", "rect", r, "error", err)
			continue
		}
		regions = append(regions, reg)
	}
	return regions
}

func componentLogger(backend string) *slog.Logger {
	return log.Component("detection").With("backend", backend)
}
