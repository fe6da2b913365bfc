package pipeline

import (
	"runtime"
	"time"

	"github.com/teslashibe/go-facelabel/pkg/camera"
)

// Config holds orchestrator settings.
type Config struct {
	// Camera is passed to Deps.Open on Start.
	Camera camera.Config

	// RetryDelay is the pause after a read that produced no frame.
	RetryDelay time.Duration

	// ParallelFaces classifies the faces of one frame concurrently.
	ParallelFaces bool

	// MaxWorkers bounds concurrent classifications when ParallelFaces is set.
	MaxWorkers int
}

// DefaultConfig returns sequential classification on the default camera.
func DefaultConfig() Config {
	return Config{
		Camera:     camera.DefaultConfig(),
		RetryDelay: 50 * time.Millisecond,
		MaxWorkers: runtime.NumCPU(),
	}
}

// Validate returns a list of problems with the configuration.
func (c Config) Validate() []string {
	var errs []string
	errs = append(errs, c.Camera.Validate()...)
	if c.RetryDelay < 0 {
		errs = append(errs, "retry delay must not be negative")
	}
	if c.ParallelFaces && c.MaxWorkers < 1 {
		errs = append(errs, "max workers must be at least 1 when faces are classified in parallel")
	}
	return errs
}
