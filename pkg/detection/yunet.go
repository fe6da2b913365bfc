package detection

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facelabel/pkg/frame"
	"github.com/teslashibe/go-facelabel/pkg/region"
)

// YuNet uses OpenCV's FaceDetectorYN for face detection
type YuNet struct {
	detector gocv.FaceDetectorYN
	config   Config
	log      *slog.Logger
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a YuNet face detector from cfg.ModelPath.
func NewYuNet(cfg Config) (*YuNet, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("detection: model file not found: %s", cfg.ModelPath)
	}

	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		cfg.InputWidth, cfg.InputHeight = 320, 320
	}

	// Input size is updated per frame.
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNet{
		detector: detector,
		config:   cfg,
		log:      componentLogger(BackendYuNet),
	}, nil
}

// Detect finds faces in the frame.
func (d *YuNet) Detect(f frame.Frame) region.Regions {
	if f.Empty() {
		return region.Regions{}
	}

	rects := d.rects(f.Mat)
	if len(rects) > 0 {
		d.log.Debug("faces found", "seq", f.Seq, "count", len(rects))
	}
	return crop(d.log, f.Mat, rects)
}

func (d *YuNet) rects(img gocv.Mat) []image.Rectangle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(img, &faces)

	// Each row: x, y, w, h, 5 landmark pairs, score.
	rects := make([]image.Rectangle, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		if float64(faces.GetFloatAt(r, 14)) < d.config.ConfidenceThresh {
			continue
		}
		rects = append(rects, image.Rect(x, y, x+w, y+h))
	}
	return rects
}

// Close releases the detector resources
func (d *YuNet) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
