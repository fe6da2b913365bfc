// Package pipeline runs the per-frame loop: capture, detect, classify every
// face for age and gender, annotate and present.
//
// One goroutine (the caller of Start) owns the capture source and runs every
// tick. Stop may be called from any goroutine; it sets a one-way flag that
// the loop checks at the top of each tick, so the tick in progress always
// finishes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-facelabel/internal/log"
	"github.com/teslashibe/go-facelabel/pkg/annotate"
	"github.com/teslashibe/go-facelabel/pkg/camera"
	"github.com/teslashibe/go-facelabel/pkg/classify"
	"github.com/teslashibe/go-facelabel/pkg/display"
	"github.com/teslashibe/go-facelabel/pkg/frame"
	"github.com/teslashibe/go-facelabel/pkg/region"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is in progress.
	ErrAlreadyRunning = errors.New("pipeline: already running")

	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("pipeline: missing dependency")
)

// Detector finds faces in a frame.
type Detector interface {
	Detect(f frame.Frame) region.Regions
}

// AgeClassifier labels a face crop with an age bucket.
type AgeClassifier interface {
	Classify(crop gocv.Mat, depth int) classify.Result[classify.Age]
}

// GenderClassifier labels a face crop with a gender.
type GenderClassifier interface {
	Classify(crop gocv.Mat, depth int) classify.Result[classify.Gender]
}

// Annotator draws labels onto an image.
type Annotator interface {
	Annotate(img *gocv.Mat, labels []annotate.Label) error
}

// Deps are the orchestrator's collaborators. Open, Detector, Age and Gender
// are required. A nil Annotator uses annotate.DefaultStyle and a nil Sink
// discards frames.
type Deps struct {
	Open      camera.Opener
	Detector  Detector
	Age       AgeClassifier
	Gender    GenderClassifier
	Annotator Annotator
	Sink      display.Sink
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State   State   `json:"state"`
	RunID   string  `json:"run_id"`
	Metrics Metrics `json:"metrics"`
}

// Orchestrator drives the capture loop.
type Orchestrator struct {
	cfg  Config
	deps Deps

	state   atomic.Int32
	stop    atomic.Bool
	runID   atomic.Value // string
	metrics *MetricsCollector
	log     *slog.Logger

	mu        sync.Mutex
	observers []func(TickResult)
	last      TickResult
}

// New validates cfg and deps and returns a stopped orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("pipeline: invalid config: %v", errs)
	}

	switch {
	case deps.Open == nil:
		return nil, fmt.Errorf("%w: capture opener", ErrMissingDependency)
	case deps.Detector == nil:
		return nil, fmt.Errorf("%w: detector", ErrMissingDependency)
	case deps.Age == nil:
		return nil, fmt.Errorf("%w: age classifier", ErrMissingDependency)
	case deps.Gender == nil:
		return nil, fmt.Errorf("%w: gender classifier", ErrMissingDependency)
	}
	if deps.Annotator == nil {
		deps.Annotator = annotate.New(annotate.DefaultStyle())
	}
	if deps.Sink == nil {
		deps.Sink = display.Discard{}
	}

	o := &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		metrics: NewMetricsCollector(),
		log:     log.Component("pipeline"),
	}
	o.runID.Store("")
	return o, nil
}

// Start opens the capture source and runs the loop on the calling goroutine
// until Stop is called, ctx is cancelled or the source becomes unusable.
// It returns nil on a requested stop. Stop is permanent: once it has been
// called, Start opens and closes the source without processing any frame.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.state.CompareAndSwap(int32(Stopped), int32(Starting)) {
		return ErrAlreadyRunning
	}

	id := uuid.NewString()
	o.runID.Store(id)
	logger := o.log.With("run", id)
	o.metrics.Reset()

	src, err := o.deps.Open(o.cfg.Camera)
	if err != nil {
		o.state.Store(int32(Stopped))
		logger.Error("capture source unavailable", "device", o.cfg.Camera.Device, "error", err)
		return fmt.Errorf("pipeline: open capture: %w", err)
	}

	o.state.Store(int32(Running))
	logger.Info("pipeline running", "device", o.cfg.Camera.Device, "parallel", o.cfg.ParallelFaces)

	err = o.loop(ctx, src, logger)

	o.state.Store(int32(Stopping))
	if cerr := src.Close(); cerr != nil {
		logger.Warn("closing capture source", "error", cerr)
	}
	o.state.Store(int32(Stopped))

	s := o.metrics.Snapshot()
	logger.Info("pipeline stopped", "frames", s.Frames, "faces", s.Faces, "capture_errors", s.CaptureErrors)
	return err
}

// Stop asks the loop to exit at the next tick boundary. It never blocks and
// may be called any number of times from any goroutine.
func (o *Orchestrator) Stop() {
	o.stop.Store(true)
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// RunID returns the id of the current or most recent run.
func (o *Orchestrator) RunID() string {
	return o.runID.Load().(string)
}

// Metrics returns the metrics collector.
func (o *Orchestrator) Metrics() *MetricsCollector {
	return o.metrics
}

// Status returns state, run id and metrics.
func (o *Orchestrator) Status() Status {
	return Status{
		State:   o.State(),
		RunID:   o.RunID(),
		Metrics: o.metrics.Snapshot(),
	}
}

// Last returns the most recent tick result.
func (o *Orchestrator) Last() TickResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// OnTick registers fn to be called on the loop goroutine after every tick.
// fn must return quickly.
func (o *Orchestrator) OnTick(fn func(TickResult)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

func (o *Orchestrator) loop(ctx context.Context, src camera.Source, logger *slog.Logger) error {
	for {
		if o.stop.Load() {
			logger.Info("stop requested")
			return nil
		}
		if ctx.Err() != nil {
			logger.Info("context done", "reason", ctx.Err())
			return nil
		}

		start := time.Now()
		f, err := src.Read(ctx)
		if err != nil {
			switch {
			case errors.Is(err, camera.ErrUnusable):
				logger.Error("capture source unusable", "error", err)
				return fmt.Errorf("pipeline: %w", err)
			case ctx.Err() != nil:
				continue
			default:
				o.metrics.CaptureError()
				logger.Warn("capture failed", "error", err)
				o.wait(ctx)
				continue
			}
		}

		o.tick(f, time.Since(start), logger)
		f.Close()
	}
}

// wait sleeps for RetryDelay or until ctx is done.
func (o *Orchestrator) wait(ctx context.Context) {
	if o.cfg.RetryDelay <= 0 {
		return
	}
	t := time.NewTimer(o.cfg.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (o *Orchestrator) tick(f frame.Frame, capture time.Duration, logger *slog.Logger) {
	start := time.Now().Add(-capture)

	res := o.process(f, logger)
	res.Timings.Capture = capture

	t := time.Now()
	img := f.Mat.Clone()
	if err := o.deps.Annotator.Annotate(&img, res.Labels()); err != nil {
		logger.Debug("annotation incomplete", "seq", f.Seq, "error", err)
	}
	o.deps.Sink.Present(img)
	img.Close()
	res.Timings.Annotate = time.Since(t)
	res.Timings.Total = time.Since(start)

	o.metrics.Record(res)

	o.mu.Lock()
	o.last = res
	observers := append([]func(TickResult){}, o.observers...)
	o.mu.Unlock()

	for _, fn := range observers {
		fn(res)
	}
}

// Process runs detection and both classifiers over one frame and returns
// the faces in detection order. It does not annotate or present, and needs
// no capture source. f is not modified.
func (o *Orchestrator) Process(f frame.Frame) TickResult {
	return o.process(f, o.log.With("run", o.RunID()))
}

func (o *Orchestrator) process(f frame.Frame, logger *slog.Logger) TickResult {
	res := TickResult{Seq: f.Seq, At: f.At}
	if res.At.IsZero() {
		res.At = time.Now()
	}

	t := time.Now()
	regions := o.deps.Detector.Detect(f)
	defer regions.Close()
	res.Timings.Detect = time.Since(t)

	t = time.Now()
	res.Faces = o.classifyAll(f, regions, logger)
	res.Timings.Classify = time.Since(t)

	return res
}

func (o *Orchestrator) classifyAll(f frame.Frame, regions region.Regions, logger *slog.Logger) []Face {
	faces := make([]Face, len(regions))

	if !o.cfg.ParallelFaces || len(regions) < 2 {
		for i, r := range regions {
			faces[i] = o.classify(f, r, logger)
		}
		return faces
	}

	var g errgroup.Group
	g.SetLimit(o.cfg.MaxWorkers)
	for i, r := range regions {
		g.Go(func() error {
			faces[i] = o.classify(f, r, logger)
			return nil
		})
	}
	_ = g.Wait()
	return faces
}

// classify labels one face. A failure in either classifier only affects
// that attribute of that face.
func (o *Orchestrator) classify(f frame.Frame, r region.Region, logger *slog.Logger) Face {
	age := o.deps.Age.Classify(r.Crop, f.Depth)
	gender := o.deps.Gender.Classify(r.Crop, f.Depth)

	face := Face{
		Rect:      r.Rect,
		Age:       age.Or(classify.AgeUnknown),
		Gender:    gender.Or(classify.NotRecognized),
		AgeErr:    age.Err,
		GenderErr: gender.Err,
	}
	face.Caption = annotate.Caption(face.Gender, face.Age)

	if age.Err != nil {
		logger.Warn("age classification failed", "seq", f.Seq, "rect", r.Rect, "error", age.Err)
	}
	if gender.Err != nil {
		logger.Warn("gender classification failed", "seq", f.Seq, "rect", r.Rect, "error", gender.Err)
	}
	logger.Debug("face", "seq", f.Seq, "rect", r.Rect, "caption", face.Caption)

	return face
}
