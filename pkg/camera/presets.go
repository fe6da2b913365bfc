package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLegacy  = "legacy"
	PresetVGA     = "vga"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetLegacy:  LegacyConfig(),
		PresetVGA:     VGAConfig(),
		Preset720p:    HD720Config(),
		Preset1080p:   HD1080Config(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLegacy,
		PresetVGA,
		Preset720p,
		Preset1080p,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// VGAConfig returns 640x480 MJPG capture.
// Fastest detection, misses small faces.
func VGAConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// HD720Config returns 720p HD configuration.
func HD720Config() Config {
	return DefaultConfig()
}

// HD1080Config returns 1080p Full HD configuration.
// Better for faces far from the camera, higher CPU usage.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}
