package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facelabel/internal/config"
	"github.com/teslashibe/go-facelabel/pkg/camera"
)

func TestCameraConfig_Preset(t *testing.T) {
	f := config.Default()
	f.Camera.Preset = camera.PresetVGA
	f.Camera.Device = "/dev/video2"
	f.Camera.FPS = 15

	cfg, err := cameraConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "/dev/video2", cfg.Device)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
	assert.Equal(t, 15, cfg.FPS)
}

func TestCameraConfig_UnknownPreset(t *testing.T) {
	f := config.Default()
	f.Camera.Preset = "8k"

	_, err := cameraConfig(f)
	assert.ErrorContains(t, err, "unknown camera preset")
}

func TestApplyFlags_OnlyChanged(t *testing.T) {
	f := config.Default()
	f.Display.WebPort = "9000"

	require.NoError(t, runCmd.Flags().Set("camera", "video.mp4"))
	require.NoError(t, runCmd.Flags().Set("parallel", "true"))
	t.Cleanup(func() {
		runCmd.Flags().Lookup("camera").Changed = false
		runCmd.Flags().Lookup("parallel").Changed = false
		flagCamera, flagParallel = "", false
	})

	applyFlags(runCmd, &f)

	assert.Equal(t, "video.mp4", f.Camera.Device)
	assert.True(t, f.Pipeline.ParallelFaces)
	assert.Equal(t, "9000", f.Display.WebPort)
	assert.True(t, f.Display.Window)
}

func TestWebFlag_DefaultsPortWhenBare(t *testing.T) {
	t.Cleanup(func() {
		runCmd.Flags().Lookup("web").Changed = false
		flagWeb = ""
	})

	require.NoError(t, runCmd.Flags().Parse([]string{"--web"}))

	f := config.Default()
	applyFlags(runCmd, &f)
	assert.Equal(t, config.DefaultWebPort, f.Display.WebPort)
}
