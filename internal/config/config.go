// Package config provides configuration helpers for go-facelabel commands.
//
// Values come from three layers, lowest precedence first: built-in defaults,
// an optional YAML file, and environment variables. CLI flags are applied on
// top by the command itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultCamera   = "0"
	DefaultModelDir = "models"
	DefaultWebPort  = "8080"
	DefaultLogLevel = "info"
)

// File is the on-disk configuration. Zero values mean "keep the default".
type File struct {
	Camera struct {
		Device string `yaml:"device"`
		Preset string `yaml:"preset"`
		Width  int    `yaml:"width"`
		Height int    `yaml:"height"`
		FPS    int    `yaml:"fps"`
	} `yaml:"camera"`

	Detector struct {
		Backend      string  `yaml:"backend"`
		Cascade      string  `yaml:"cascade"`
		ScaleFactor  float64 `yaml:"scale_factor"`
		MinNeighbors int     `yaml:"min_neighbors"`
	} `yaml:"detector"`

	Models struct {
		Dir string `yaml:"dir"`

		// Sources maps a file name inside Dir to the URL it is fetched from.
		Sources map[string]string `yaml:"sources"`
	} `yaml:"models"`

	Pipeline struct {
		ParallelFaces bool `yaml:"parallel_faces"`
		MaxWorkers    int  `yaml:"max_workers"`
	} `yaml:"pipeline"`

	Display struct {
		Window  bool   `yaml:"window"`
		WebPort string `yaml:"web_port"`
	} `yaml:"display"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() File {
	var f File
	f.Camera.Device = DefaultCamera
	f.Models.Dir = DefaultModelDir
	f.Display.Window = true
	f.Log.Level = DefaultLogLevel
	return f
}

// Load reads a YAML file over the defaults and then applies the environment.
// An empty path skips the file.
func Load(path string) (File, error) {
	f := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return f, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return f, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	f.Camera.Device = Camera(f.Camera.Device)
	f.Models.Dir = ModelDir(f.Models.Dir)
	f.Display.WebPort = WebPort(f.Display.WebPort)
	f.Log.Level = LogLevel(f.Log.Level)

	return f, nil
}

// Camera returns the capture device from FACELABEL_CAMERA.
// Falls back to the provided default if not set.
func Camera(def string) string {
	if v := os.Getenv("FACELABEL_CAMERA"); v != "" {
		return v
	}
	return def
}

// ModelDir returns the model directory from FACELABEL_MODELS or the default.
func ModelDir(def string) string {
	if v := os.Getenv("FACELABEL_MODELS"); v != "" {
		return v
	}
	return def
}

// WebPort returns the web view port from FACELABEL_PORT or the default.
// An empty result disables the web view.
func WebPort(def string) string {
	if v := os.Getenv("FACELABEL_PORT"); v != "" {
		return v
	}
	return def
}

// LogLevel returns the log level from FACELABEL_LOG_LEVEL or the default.
func LogLevel(def string) string {
	if v := os.Getenv("FACELABEL_LOG_LEVEL"); v != "" {
		return v
	}
	return def
}

// ModelPaths are the files the pipeline loads at startup.
type ModelPaths struct {
	Cascade       string
	YuNet         string
	AgeProto      string
	AgeWeights    string
	GenderProto   string
	GenderWeights string
}

// DefaultSources are the public URLs of the detector models. The age and
// gender networks have no canonical location and must be listed under
// models.sources.
func DefaultSources() map[string]string {
	return map[string]string{
		"haarcascade_frontalface_alt.xml": "https://raw.githubusercontent.com/opencv/opencv/4.x/data/haarcascades/haarcascade_frontalface_alt.xml",
		"face_detection_yunet.onnx":       "https://github.com/opencv/opencv_zoo/raw/main/models/face_detection_yunet/face_detection_yunet_2023mar.onnx",
	}
}

// Models resolves the standard file names inside dir.
func Models(dir string) ModelPaths {
	return ModelPaths{
		Cascade:       filepath.Join(dir, "haarcascade_frontalface_alt.xml"),
		YuNet:         filepath.Join(dir, "face_detection_yunet.onnx"),
		AgeProto:      filepath.Join(dir, "deploy_agenet.prototxt"),
		AgeWeights:    filepath.Join(dir, "age_net.caffemodel"),
		GenderProto:   filepath.Join(dir, "deploy_gendernet.prototxt"),
		GenderWeights: filepath.Join(dir, "gender_net.caffemodel"),
	}
}
