package detection

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facelabel/pkg/frame"
	"github.com/teslashibe/go-facelabel/pkg/region"
)

// Cascade detects frontal faces with a Haar cascade classifier.
type Cascade struct {
	classifier gocv.CascadeClassifier
	config     Config
	log        *slog.Logger
	mu         sync.Mutex // Protects the native classifier
}

// NewCascade loads the cascade file named by cfg.CascadePath.
func NewCascade(cfg Config) (*Cascade, error) {
	if _, err := os.Stat(cfg.CascadePath); err != nil {
		return nil, fmt.Errorf("detection: cascade file not found: %s", cfg.CascadePath)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("detection: failed to load cascade from %s", cfg.CascadePath)
	}

	if cfg.ScaleFactor <= 1 {
		cfg.ScaleFactor = DefaultConfig().ScaleFactor
	}

	return &Cascade{
		classifier: classifier,
		config:     cfg,
		log:        componentLogger(BackendCascade),
	}, nil
}

// Detect runs the cascade over a histogram-equalised grayscale copy of the frame.
func (d *Cascade) Detect(f frame.Frame) region.Regions {
	if f.Empty() {
		return region.Regions{}
	}

	gray, err := grayscale(f)
	defer gray.Close()
	if err != nil {
		d.log.Warn("preparing frame for detection", "seq", f.Seq, "error", err)
		return region.Regions{}
	}

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(
		gray,
		d.config.ScaleFactor,
		d.config.MinNeighbors,
		0,
		d.config.MinSize,
		d.config.MaxSize,
	)
	d.mu.Unlock()

	if len(rects) > 0 {
		d.log.Debug("faces found", "seq", f.Seq, "count", len(rects))
	}

	return crop(d.log, f.Mat, rects)
}

// Close releases the detector resources
func (d *Cascade) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

// grayscale returns an 8-bit, histogram-equalised single-channel copy of f.
// The returned Mat is always valid and must be closed, even on error.
func grayscale(f frame.Frame) (gocv.Mat, error) {
	gray := gocv.NewMat()

	var err error
	switch f.Mat.Channels() {
	case 1:
		err = f.Mat.CopyTo(&gray)
	case 4:
		err = gocv.CvtColor(f.Mat, &gray, gocv.ColorBGRAToGray)
	default:
		err = gocv.CvtColor(f.Mat, &gray, gocv.ColorBGRToGray)
	}
	if err != nil {
		return gray, fmt.Errorf("detection: grayscale: %w", err)
	}

	if f.Depth == 16 {
		scaled := gocv.NewMat()
		if err := gray.ConvertToWithParams(&scaled, gocv.MatTypeCV8U, 255.0/65535.0, 0); err != nil {
			scaled.Close()
			return gray, fmt.Errorf("detection: scale to 8 bit: %w", err)
		}
		gray.Close()
		gray = scaled
	}

	if err := gocv.EqualizeHist(gray, &gray); err != nil {
		return gray, fmt.Errorf("detection: equalize: %w", err)
	}
	return gray, nil
}
