package classify

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Model maps an input blob to a probability vector.
type Model interface {
	Forward(blob gocv.Mat) ([]float32, error)
	Close() error
}

// NetConfig holds dnn settings for LoadModel.
type NetConfig struct {
	InputName  string // input layer (default "data")
	OutputName string // output layer (default "prob")
	Backend    gocv.NetBackendType
	Target     gocv.NetTargetType
}

// NetOption is a functional option for LoadModel.
type NetOption func(*NetConfig)

// WithLayers sets the input and output layer names.
func WithLayers(input, output string) NetOption {
	return func(c *NetConfig) {
		c.InputName = input
		c.OutputName = output
	}
}

// WithCUDA runs inference on the CUDA backend.
func WithCUDA() NetOption {
	return func(c *NetConfig) {
		c.Backend = gocv.NetBackendCUDA
		c.Target = gocv.NetTargetCUDA
	}
}

func defaultNetConfig() NetConfig {
	return NetConfig{
		InputName:  "data",
		OutputName: "prob",
		Backend:    gocv.NetBackendDefault,
		Target:     gocv.NetTargetCPU,
	}
}

// Net is a Model backed by an OpenCV dnn network. It is immutable after
// LoadModel returns; Forward serialises access to the native network.
type Net struct {
	net  gocv.Net
	cfg  NetConfig
	name string
	mu   sync.Mutex
}

// LoadModel reads a network from its architecture file (e.g. a Caffe
// prototxt, may be empty for single-file formats) and its weights file.
// A missing or unreadable pair is an error; there is no lazy loading.
func LoadModel(arch, weights string, opts ...NetOption) (*Net, error) {
	cfg := defaultNetConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	for _, p := range []string{arch, weights} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				err = fmt.Errorf("%w: %s", ErrModelMissing, p)
			}
			return nil, &ModelError{Arch: arch, Weights: weights, Err: err}
		}
	}

	n := gocv.ReadNet(weights, arch)
	if n.Empty() {
		n.Close()
		return nil, &ModelError{Arch: arch, Weights: weights, Err: lastError("network is empty")}
	}

	if err := n.SetPreferableBackend(cfg.Backend); err != nil {
		n.Close()
		return nil, &ModelError{Arch: arch, Weights: weights, Err: fmt.Errorf("set backend: %w", err)}
	}
	if err := n.SetPreferableTarget(cfg.Target); err != nil {
		n.Close()
		return nil, &ModelError{Arch: arch, Weights: weights, Err: fmt.Errorf("set target: %w", err)}
	}

	return &Net{net: n, cfg: cfg, name: weights}, nil
}

// Forward runs one inference and copies the output vector.
func (m *Net) Forward(blob gocv.Mat) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.net.SetInput(blob, m.cfg.InputName)

	prob := m.net.Forward(m.cfg.OutputName)
	defer prob.Close()

	if prob.Empty() {
		return nil, fmt.Errorf("classify: %s: forward: %w", m.name, lastError("empty output"))
	}

	data, err := prob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("classify: %s: read output: %w", m.name, err)
	}

	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// Close releases the network.
func (m *Net) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}
