package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facelabel/pkg/camera"
	"github.com/teslashibe/go-facelabel/pkg/classify"
	"github.com/teslashibe/go-facelabel/pkg/frame"
	"github.com/teslashibe/go-facelabel/pkg/region"
)

// fakeSource yields scripted errors, then frames until it runs out.
type fakeSource struct {
	mu     sync.Mutex
	errs   []error // returned before any frame, in order
	frames int     // frames to produce; negative means unlimited
	seq    uint64
	closed bool
}

func (s *fakeSource) Read(ctx context.Context) (frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return frame.Frame{}, err
	}
	if s.frames == 0 {
		return frame.Frame{}, camera.ErrUnusable
	}
	if s.frames > 0 {
		s.frames--
	}
	s.seq++
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 720, 1280, gocv.MatTypeCV8UC3)
	return frame.New(m, s.seq), nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func opener(src *fakeSource) camera.Opener {
	return func(camera.Config) (camera.Source, error) { return src, nil }
}

// fakeDetector crops a fixed list of rectangles out of every frame.
type fakeDetector struct {
	rects []image.Rectangle
}

func (d *fakeDetector) Detect(f frame.Frame) region.Regions {
	var out region.Regions
	for _, r := range d.rects {
		reg, err := region.New(f.Mat, r)
		if err == nil {
			out = append(out, reg)
		}
	}
	return out
}

// fakeAge answers by crop width so tests can tell faces apart.
type fakeAge struct {
	calls  atomic.Int32
	mu     sync.Mutex
	widths []int
	byW    map[int]classify.Result[classify.Age]
	delay  func(width int) time.Duration
}

func (a *fakeAge) Classify(crop gocv.Mat, depth int) classify.Result[classify.Age] {
	a.calls.Add(1)
	w := crop.Cols()
	a.mu.Lock()
	a.widths = append(a.widths, w)
	a.mu.Unlock()
	if a.delay != nil {
		time.Sleep(a.delay(w))
	}
	if r, ok := a.byW[w]; ok {
		return r
	}
	return classify.Ok[classify.Age]("25-32")
}

type fakeGender struct {
	calls  atomic.Int32
	mu     sync.Mutex
	widths []int
	byW    map[int]classify.Result[classify.Gender]
}

func (g *fakeGender) Classify(crop gocv.Mat, depth int) classify.Result[classify.Gender] {
	g.calls.Add(1)
	w := crop.Cols()
	g.mu.Lock()
	g.widths = append(g.widths, w)
	g.mu.Unlock()
	if r, ok := g.byW[w]; ok {
		return r
	}
	return classify.Ok(classify.Female)
}

// captureSink keeps a copy of the last presented frame.
type captureSink struct {
	mu   sync.Mutex
	last gocv.Mat
	n    int
}

func (s *captureSink) Present(img gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n > 0 {
		s.last.Close()
	}
	s.last = img.Clone()
	s.n++
}

func newTestConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func newOrchestrator(t *testing.T, cfg Config, deps Deps) *Orchestrator {
	t.Helper()
	o, err := New(cfg, deps)
	require.NoError(t, err)
	return o
}

func blankFrame(t *testing.T) frame.Frame {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 720, 1280, gocv.MatTypeCV8UC3)
	f := frame.New(m, 1)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestNew_MissingDependencies(t *testing.T) {
	full := Deps{
		Open:     opener(&fakeSource{}),
		Detector: &fakeDetector{},
		Age:      &fakeAge{},
		Gender:   &fakeGender{},
	}

	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"opener", func(d *Deps) { d.Open = nil }},
		{"detector", func(d *Deps) { d.Detector = nil }},
		{"age", func(d *Deps) { d.Age = nil }},
		{"gender", func(d *Deps) { d.Gender = nil }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := full
			tc.mutate(&deps)
			_, err := New(newTestConfig(), deps)
			assert.ErrorIs(t, err, ErrMissingDependency)
		})
	}

	o, err := New(newTestConfig(), full)
	require.NoError(t, err)
	assert.Equal(t, Stopped, o.State())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := newTestConfig()
	cfg.ParallelFaces = true
	cfg.MaxWorkers = 0

	_, err := New(cfg, Deps{
		Open:     opener(&fakeSource{}),
		Detector: &fakeDetector{},
		Age:      &fakeAge{},
		Gender:   &fakeGender{},
	})
	assert.Error(t, err)
}

func TestStart_StopBeforeFirstFrame(t *testing.T) {
	src := &fakeSource{frames: -1}
	age := &fakeAge{}
	gender := &fakeGender{}

	o := newOrchestrator(t, newTestConfig(), Deps{
		Open:     opener(src),
		Detector: &fakeDetector{rects: []image.Rectangle{image.Rect(100, 50, 180, 130)}},
		Age:      age,
		Gender:   gender,
	})

	o.Stop()
	o.Stop()
	require.NoError(t, o.Start(context.Background()))

	assert.Equal(t, Stopped, o.State())
	assert.Zero(t, age.calls.Load(), "age classifier must not run")
	assert.Zero(t, gender.calls.Load(), "gender classifier must not run")
	assert.True(t, src.isClosed(), "source must be released")
	assert.Zero(t, o.Metrics().Snapshot().Frames)
}

func TestStart_EndToEnd(t *testing.T) {
	src := &fakeSource{frames: -1}
	sink := &captureSink{}
	rect := image.Rect(100, 50, 180, 130)

	o := newOrchestrator(t, newTestConfig(), Deps{
		Open:     opener(src),
		Detector: &fakeDetector{rects: []image.Rectangle{rect}},
		Age:      &fakeAge{},
		Gender:   &fakeGender{},
		Sink:     sink,
	})

	var results []TickResult
	o.OnTick(func(r TickResult) {
		results = append(results, r)
		o.Stop()
	})

	require.NoError(t, o.Start(context.Background()))

	require.Len(t, results, 1)
	res := results[0]
	require.Len(t, res.Faces, 1)
	assert.Equal(t, rect, res.Faces[0].Rect)
	assert.Equal(t, "FEMALE:[25-32]", res.Faces[0].Caption)
	assert.Equal(t, uint64(1), res.Seq)
	assert.Equal(t, res, o.Last())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Equal(t, 1, sink.n)
	defer sink.last.Close()

	// Box corners at (100,50) and (180,130), red in BGR.
	for _, p := range []image.Point{{100, 50}, {180, 130}, {100, 90}} {
		px := sink.last.GetVecbAt(p.Y, p.X)
		assert.Greater(t, px[2], uint8(100), "box pixel at %v = %v", p, px)
	}
	// Interior untouched.
	assert.Equal(t, uint8(0), sink.last.GetVecbAt(90, 140)[2])

	s := o.Status()
	assert.Equal(t, Stopped, s.State)
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, uint64(1), s.Metrics.Frames)
	assert.Equal(t, uint64(1), s.Metrics.Faces)
}

func TestStart_NoFacesPresentsUntouchedFrame(t *testing.T) {
	src := &fakeSource{frames: -1}
	sink := &captureSink{}

	o := newOrchestrator(t, newTestConfig(), Deps{
		Open:     opener(src),
		Detector: &fakeDetector{},
		Age:      &fakeAge{},
		Gender:   &fakeGender{},
		Sink:     sink,
	})
	o.OnTick(func(TickResult) { o.Stop() })

	require.NoError(t, o.Start(context.Background()))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Equal(t, 1, sink.n)
	defer sink.last.Close()
	gray := grayOf(sink.last)
	defer gray.Close()
	assert.Equal(t, 0, gocv.CountNonZero(gray))
}

func grayOf(m gocv.Mat) gocv.Mat {
	g := gocv.NewMat()
	gocv.CvtColor(m, &g, gocv.ColorBGRToGray)
	return g
}

func TestProcess_FailureIsolation(t *testing.T) {
	rects := []image.Rectangle{
		image.Rect(10, 10, 50, 50),    // width 40: gender fails
		image.Rect(100, 100, 160, 160), // width 60: age fails
		image.Rect(300, 300, 380, 380), // width 80: both succeed
	}

	o := newOrchestrator(t, newTestConfig(), Deps{
		Open:     opener(&fakeSource{}),
		Detector: &fakeDetector{rects: rects},
		Age: &fakeAge{byW: map[int]classify.Result[classify.Age]{
			60: classify.Failed[classify.Age](errors.New("boom")),
		}},
		Gender: &fakeGender{byW: map[int]classify.Result[classify.Gender]{
			40: classify.Failed[classify.Gender](errors.New("boom")),
			80: classify.Ok(classify.Male),
		}},
	})

	res := o.Process(blankFrame(t))

	require.Len(t, res.Faces, 3)
	assert.Equal(t, "NOT_RECOGNIZED:[25-32]", res.Faces[0].Caption)
	assert.Equal(t, "FEMALE:[null]", res.Faces[1].Caption)
	assert.Equal(t, "MALE:[25-32]", res.Faces[2].Caption)
	assert.Error(t, res.Faces[0].GenderErr)
	assert.Error(t, res.Faces[1].AgeErr)
	assert.NoError(t, res.Faces[2].AgeErr)
}

func TestProcess_SameRegionsFeedBothClassifiers(t *testing.T) {
	rects := []image.Rectangle{
		image.Rect(0, 0, 30, 30),
		image.Rect(200, 200, 250, 250),
		image.Rect(600, 300, 670, 370),
	}
	age := &fakeAge{}
	gender := &fakeGender{}

	o := newOrchestrator(t, newTestConfig(), Deps{
		Open:     opener(&fakeSource{}),
		Detector: &fakeDetector{rects: rects},
		Age:      age,
		Gender:   gender,
	})

	res := o.Process(blankFrame(t))

	assert.Equal(t, []int{30, 50, 70}, age.widths)
	assert.Equal(t, age.widths, gender.widths)
	for i, f := range res.Faces {
		assert.Equal(t, rects[i], f.Rect)
	}
}

func TestProcess_ParallelKeepsDetectionOrder(t *testing.T) {
	var rects []image.Rectangle
	for i := 0; i < 6; i++ {
		w := 20 + 10*i
		rects = append(rects, image.Rect(i*150, 10, i*150+w, 10+w))
	}

	cfg := newTestConfig()
	cfg.ParallelFaces = true
	cfg.MaxWorkers = 3

	o := newOrchestrator(t, cfg, Deps{
		Open:     opener(&fakeSource{}),
		Detector: &fakeDetector{rects: rects},
		// Earlier faces finish last.
		Age:    &fakeAge{delay: func(w int) time.Duration { return time.Duration(100-w) * time.Millisecond / 10 }},
		Gender: &fakeGender{},
	})

	res := o.Process(blankFrame(t))

	require.Len(t, res.Faces, len(rects))
	for i, f := range res.Faces {
		assert.Equal(t, rects[i], f.Rect, "face %d out of order", i)
	}
}

func TestStart_RecoversFromMissingFrames(t *testing.T) {
	src := &fakeSource{
		errs:   []error{camera.ErrNoFrame, camera.ErrNoFrame},
		frames: 1,
	}

	o := newOrchestrator(t, newTestConfig(), Deps{
		Open:     opener(src),
		Detector: &fakeDetector{},
		Age:      &fakeAge{},
		Gender:   &fakeGender{},
	})

	err := o.Start(context.Background())
	assert.ErrorIs(t, err, camera.ErrUnusable)
	assert.Equal(t, Stopped, o.State())
	assert.True(t, src.isClosed())

	m := o.Metrics().Snapshot()
	assert.Equal(t, uint64(2), m.CaptureErrors)
	assert.Equal(t, uint64(1), m.Frames)
}

func TestStart_OpenFailure(t *testing.T) {
	o := newOrchestrator(t, newTestConfig(), Deps{
		Open: func(camera.Config) (camera.Source, error) {
			return nil, errors.New("no such device")
		},
		Detector: &fakeDetector{},
		Age:      &fakeAge{},
		Gender:   &fakeGender{},
	})

	err := o.Start(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Stopped, o.State())
}

func TestStart_AlreadyRunning(t *testing.T) {
	src := &fakeSource{frames: -1}
	o := newOrchestrator(t, newTestConfig(), Deps{
		Open:     opener(src),
		Detector: &fakeDetector{},
		Age:      &fakeAge{},
		Gender:   &fakeGender{},
	})

	done := make(chan error, 1)
	go func() { done <- o.Start(context.Background()) }()

	require.Eventually(t, func() bool { return o.State() == Running }, time.Second, time.Millisecond)
	assert.ErrorIs(t, o.Start(context.Background()), ErrAlreadyRunning)

	o.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, Stopped, o.State())
	assert.True(t, src.isClosed())
}

func TestStart_ContextCancel(t *testing.T) {
	src := &fakeSource{frames: -1}
	o := newOrchestrator(t, newTestConfig(), Deps{
		Open:     opener(src),
		Detector: &fakeDetector{},
		Age:      &fakeAge{},
		Gender:   &fakeGender{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Start(ctx) }()

	require.Eventually(t, func() bool { return o.State() == Running }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancel")
	}
	assert.True(t, src.isClosed())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "STOPPED", Stopped.String())
	assert.Equal(t, "STARTING", Starting.String())
	assert.Equal(t, "RUNNING", Running.String())
	assert.Equal(t, "STOPPING", Stopping.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
