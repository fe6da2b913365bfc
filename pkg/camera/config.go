// Package camera opens a capture device and reads frames from it.
package camera

import "fmt"

// Config holds capture settings.
type Config struct {
	// Device is a device index ("0"), a device path ("/dev/video0"), a
	// video file or a stream URL.
	Device string `json:"device" yaml:"device"`

	// === Resolution ===
	Width  int `json:"width" yaml:"width"`   // Frame width in pixels
	Height int `json:"height" yaml:"height"` // Frame height in pixels
	FPS    int `json:"fps" yaml:"fps"`       // Requested frame rate

	// Codec is the FOURCC requested from the device. Empty leaves the
	// driver default.
	Codec string `json:"codec" yaml:"codec"`

	// Quality is the JPEG quality (1-100) used when frames are re-encoded
	// for the web view.
	Quality int `json:"quality" yaml:"quality"`

	// MaxReadFailures is how many consecutive failed reads turn into
	// ErrUnusable. Zero means never.
	MaxReadFailures int `json:"max_read_failures" yaml:"max_read_failures"`
}

// Capture limits.
const (
	MaxWidth  = 4096
	MaxHeight = 2160
	MaxFPS    = 120
)

// DefaultConfig returns 720p MJPG capture from the first device.
func DefaultConfig() Config {
	return Config{
		Device:          "0",
		Width:           1280,
		Height:          720,
		FPS:             30,
		Codec:           "MJPG",
		Quality:         85,
		MaxReadFailures: 100,
	}
}

// LegacyConfig is a low-resolution 640x480 fallback that keeps the driver's
// default codec. Use this if the device rejects MJPG or 720p.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	cfg.Codec = ""
	return cfg
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device is required")
	}

	// Resolution
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.FPS < 1 || c.FPS > MaxFPS {
		errors = append(errors, fmt.Sprintf("fps must be between 1 and %d", MaxFPS))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	if c.Codec != "" && len(c.Codec) != 4 {
		errors = append(errors, "codec must be a four character code")
	}
	if c.MaxReadFailures < 0 {
		errors = append(errors, "max_read_failures must not be negative")
	}

	return errors
}
