package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	View     ViewConfig     `yaml:"view"`
	Detector DetectorConfig `yaml:"detector"`
	Export   ExportConfig   `yaml:"export"`
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// DatabaseConfig holds the project library location
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ViewConfig bounds interactive zoom
type ViewConfig struct {
	MinZoom  float64 `yaml:"min_zoom"`
	MaxZoom  float64 `yaml:"max_zoom"`
	ZoomStep float64 `yaml:"zoom_step"`
}

// DetectorConfig holds values applied to newly placed devices
type DetectorConfig struct {
	DefaultRangeM float64 `yaml:"default_range_m"`
	DefaultType   string  `yaml:"default_type"`
}

// ExportConfig holds PDF export defaults
type ExportConfig struct {
	Paper             string  `yaml:"paper"`
	Orientation       string  `yaml:"orientation"`
	MarginMM          float64 `yaml:"margin_mm"`
	ShowRangeCircles  bool    `yaml:"show_range_circles"`
	ShowAddressLabels bool    `yaml:"show_address_labels"`
	IncludeSchedule   bool    `yaml:"include_schedule"`
	Footer            string  `yaml:"footer,omitempty"`
	MaxImagePixels    int     `yaml:"max_image_pixels"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// WatchConfig holds file watcher settings
type WatchConfig struct {
	Debounce Duration `yaml:"debounce"`
}

// LoggingConfig selects log level and output format
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig enables span export around layout and rendering
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
