package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-facelabel/internal/config"
	"github.com/teslashibe/go-facelabel/internal/log"
	"github.com/teslashibe/go-facelabel/pkg/camera"
	"github.com/teslashibe/go-facelabel/pkg/display"
	"github.com/teslashibe/go-facelabel/pkg/pipeline"
	"github.com/teslashibe/go-facelabel/pkg/web"
)

var (
	flagCamera   string
	flagPreset   string
	flagModels   string
	flagDetector string
	flagWindow   bool
	flagWeb      string
	flagParallel bool
	flagWorkers  int
	flagCUDA     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Caption faces from a camera until stopped",
	Long: `Run opens the camera, detects every face in each frame and captions it
with its estimated gender and age bucket. Frames are shown in a native
window and, when a port is set, streamed to a browser.

Press ESC or q in the window, POST /api/stop, or send SIGINT to stop.`,
	RunE: runPipeline,
}

func init() {
	addModelFlags(runCmd)

	f := runCmd.Flags()
	f.StringVar(&flagCamera, "camera", "", "Capture device index, path, file or URL")
	f.StringVar(&flagPreset, "preset", "", "Camera preset: "+strings.Join(camera.PresetNames(), ", "))
	f.BoolVar(&flagWindow, "window", true, "Show frames in a native window")
	f.StringVar(&flagWeb, "web", "", "Port for the web view; --web alone uses "+config.DefaultWebPort)
	f.Lookup("web").NoOptDefVal = config.DefaultWebPort
	f.BoolVar(&flagParallel, "parallel", false, "Classify the faces of a frame concurrently")
	f.IntVar(&flagWorkers, "workers", runtime.NumCPU(), "Concurrent classifications with --parallel")

	rootCmd.AddCommand(runCmd)
}

// addModelFlags registers the flags shared by every command that loads models.
func addModelFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagModels, "models", "", "Directory holding the detector and classifier models")
	f.StringVar(&flagDetector, "detector", "", "Face detector: cascade or yunet")
	f.BoolVar(&flagCUDA, "cuda", false, "Run the classifiers on CUDA")
}

// applyFlags copies explicitly set flags over the loaded settings.
func applyFlags(cmd *cobra.Command, f *config.File) {
	flags := cmd.Flags()
	if flags.Changed("models") {
		f.Models.Dir = flagModels
	}
	if flags.Changed("detector") {
		f.Detector.Backend = flagDetector
	}
	if flags.Lookup("camera") == nil {
		return
	}
	if flags.Changed("camera") {
		f.Camera.Device = flagCamera
	}
	if flags.Changed("preset") {
		f.Camera.Preset = flagPreset
	}
	if flags.Changed("window") {
		f.Display.Window = flagWindow
	}
	if flags.Changed("web") {
		f.Display.WebPort = flagWeb
	}
	if flags.Changed("parallel") {
		f.Pipeline.ParallelFaces = flagParallel
	}
	if flags.Changed("workers") {
		f.Pipeline.MaxWorkers = flagWorkers
	}
}

// cameraConfig resolves the preset and per-field overrides.
func cameraConfig(f config.File) (camera.Config, error) {
	cfg := camera.DefaultConfig()
	if f.Camera.Preset != "" {
		p := camera.GetPreset(f.Camera.Preset)
		if p == nil {
			return cfg, fmt.Errorf("unknown camera preset %q (available: %s)",
				f.Camera.Preset, strings.Join(camera.PresetNames(), ", "))
		}
		cfg = *p
	}
	if f.Camera.Device != "" {
		cfg.Device = f.Camera.Device
	}
	if f.Camera.Width > 0 {
		cfg.Width = f.Camera.Width
	}
	if f.Camera.Height > 0 {
		cfg.Height = f.Camera.Height
	}
	if f.Camera.FPS > 0 {
		cfg.FPS = f.Camera.FPS
	}
	return cfg, nil
}

func runPipeline(cmd *cobra.Command, args []string) (err error) {
	f := settings
	applyFlags(cmd, &f)
	logger := log.Component("main")

	camCfg, err := cameraConfig(f)
	if err != nil {
		return err
	}

	pcfg := pipeline.DefaultConfig()
	pcfg.Camera = camCfg
	pcfg.ParallelFaces = f.Pipeline.ParallelFaces
	if f.Pipeline.MaxWorkers > 0 {
		pcfg.MaxWorkers = f.Pipeline.MaxWorkers
	}
	if errs := pcfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	m, err := loadModels(f, flagCUDA)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, m.Close())
	}()
	logger.Info("models loaded", "dir", f.Models.Dir)

	var (
		sinks  display.Multi
		window *display.Window
		server *web.Server
		stream *display.Web
	)
	if f.Display.Window {
		window = display.NewWindow("facelabel")
		sinks = append(sinks, window)
	}
	if f.Display.WebPort != "" {
		server = web.NewServer(":"+f.Display.WebPort, nil)
		stream = display.NewWeb(server, camCfg.Quality)
		sinks = append(sinks, stream)
	}

	orch, err := pipeline.New(pcfg, pipeline.Deps{
		Open:     camera.OpenSource,
		Detector: m.detector,
		Age:      m.age,
		Gender:   m.gender,
		Sink:     sinks,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return orch.Start(gctx)
	})
	if server != nil {
		server.Attach(orch)
		orch.OnTick(server.PublishTick)
		g.Go(func() error { return server.Run(gctx) })
		g.Go(func() error { return stream.Run(gctx) })
	}

	if window != nil {
		window.OnClose = orch.Stop
		// The window must stay on the main goroutine.
		if werr := window.Run(gctx); werr != nil {
			logger.Warn("window closed with error", "error", werr)
		}
		orch.Stop()
	}

	err = g.Wait()
	s := orch.Metrics().Snapshot()
	logger.Info("done", "frames", s.Frames, "faces", s.Faces, "fps", fmt.Sprintf("%.1f", s.FPS))
	return err
}
