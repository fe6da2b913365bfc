package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facelabel/internal/log"
	"github.com/teslashibe/go-facelabel/pkg/frame"
)

var (
	// ErrNoFrame is returned when a single read produced no image. The
	// device may recover on the next read.
	ErrNoFrame = errors.New("camera: no frame")

	// ErrUnusable is returned once the device is closed or has failed too
	// many reads in a row.
	ErrUnusable = errors.New("camera: source unusable")
)

// Source produces frames. Read is called from a single goroutine.
type Source interface {
	Read(ctx context.Context) (frame.Frame, error)
	Close() error
}

// Opener opens a Source for a configuration.
type Opener func(Config) (Source, error)

// OpenSource is the Opener for gocv capture devices.
func OpenSource(cfg Config) (Source, error) {
	return Open(cfg)
}

// Capture is a Source backed by an OpenCV VideoCapture.
type Capture struct {
	vc       *gocv.VideoCapture
	cfg      Config
	seq      uint64
	failures int
	closed   bool
	log      *slog.Logger
}

// Open opens the device and requests the configured format.
func Open(cfg Config) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}

	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		if vc != nil {
			vc.Close()
		}
		return nil, fmt.Errorf("camera: open %s: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera: open %s: %w", cfg.Device, ErrUnusable)
	}

	if cfg.Codec != "" {
		vc.Set(gocv.VideoCaptureFOURCC, vc.ToCodec(cfg.Codec))
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))

	c := &Capture{
		vc:  vc,
		cfg: cfg,
		log: log.Component("camera").With("device", cfg.Device),
	}

	c.log.Info("capture opened",
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
		"fps", vc.Get(gocv.VideoCaptureFPS),
		"codec", vc.CodecString())

	return c, nil
}

// Read grabs the next frame. The caller owns the returned frame.
func (c *Capture) Read(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	if c.closed || !c.vc.IsOpened() {
		return frame.Frame{}, ErrUnusable
	}

	m := gocv.NewMat()
	if ok := c.vc.Read(&m); !ok || m.Empty() {
		m.Close()
		c.failures++
		if !c.vc.IsOpened() {
			return frame.Frame{}, fmt.Errorf("%w: device closed", ErrUnusable)
		}
		if c.cfg.MaxReadFailures > 0 && c.failures >= c.cfg.MaxReadFailures {
			return frame.Frame{}, fmt.Errorf("%w: %d consecutive failed reads", ErrUnusable, c.failures)
		}
		return frame.Frame{}, ErrNoFrame
	}

	c.failures = 0
	c.seq++
	return frame.New(m, c.seq), nil
}

// Config returns the configuration the capture was opened with.
func (c *Capture) Config() Config {
	return c.cfg
}

// Close releases the device. It is safe to call more than once.
func (c *Capture) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.log.Info("capture closed", "frames", c.seq)
	return c.vc.Close()
}
