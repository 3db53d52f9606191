// Package config provides configuration management for smokeplan.
//
// Config file locations (priority order):
//  1. $SMOKEPLAN_CONFIG
//  2. ./smokeplan.yaml
//  3. $XDG_CONFIG_HOME/smokeplan/config.yaml
//  4. ~/.config/smokeplan/config.yaml
//  5. /etc/smokeplan/config.yaml
//
// Missing keys take their default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		Database: DatabaseConfig{Path: "./smokeplan.db"},
		View: ViewConfig{
			MinZoom:  geometry.DefaultMinZoom,
			MaxZoom:  geometry.DefaultMaxZoom,
			ZoomStep: geometry.DefaultZoomStep,
		},
		Detector: DetectorConfig{
			DefaultRangeM: domain.DefaultRangeM,
			DefaultType:   string(domain.DeviceDetector),
		},
		Export: ExportConfig{
			Paper:             geometry.A4.Name,
			Orientation:       string(geometry.Landscape),
			MarginMM:          10,
			ShowRangeCircles:  true,
			ShowAddressLabels: true,
			MaxImagePixels:    4_000_000,
		},
		Server: ServerConfig{
			Addr:         ":3000",
			ReadTimeout:  Duration(15 * time.Second),
			WriteTimeout: Duration(60 * time.Second),
		},
		Watch:   WatchConfig{Debounce: Duration(500 * time.Millisecond)},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{SampleRatio: 1},
	}
}

// applyDefaults fills in values that were explicitly zeroed
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.View.MinZoom == 0 {
		c.View.MinZoom = def.View.MinZoom
	}
	if c.View.MaxZoom == 0 {
		c.View.MaxZoom = def.View.MaxZoom
	}
	if c.View.ZoomStep == 0 {
		c.View.ZoomStep = def.View.ZoomStep
	}
	if c.Detector.DefaultRangeM == 0 {
		c.Detector.DefaultRangeM = def.Detector.DefaultRangeM
	}
	if c.Detector.DefaultType == "" {
		c.Detector.DefaultType = def.Detector.DefaultType
	}
	if c.Export.Paper == "" {
		c.Export.Paper = def.Export.Paper
	}
	if c.Export.Orientation == "" {
		c.Export.Orientation = def.Export.Orientation
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = def.Watch.Debounce
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = def.Tracing.SampleRatio
	}
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.View.MinZoom <= 0 || c.View.MaxZoom <= c.View.MinZoom {
		bad("view: zoom bounds must satisfy 0 < min_zoom < max_zoom (got %g, %g)", c.View.MinZoom, c.View.MaxZoom)
	}
	if c.View.ZoomStep <= 1 {
		bad("view.zoom_step must be greater than 1 (got %g)", c.View.ZoomStep)
	}
	if c.Detector.DefaultRangeM <= 0 || c.Detector.DefaultRangeM > domain.MaxRangeM {
		bad("detector.default_range_m must be in (0, %g] (got %g)", domain.MaxRangeM, c.Detector.DefaultRangeM)
	}
	if t := domain.DeviceType(strings.ToLower(c.Detector.DefaultType)); !t.Valid() {
		bad("detector.default_type %q is not one of detector, io, call_point", c.Detector.DefaultType)
	}
	if _, ok := geometry.LookupPaper(c.Export.Paper); !ok {
		bad("export.paper %q is not one of %s", c.Export.Paper, strings.Join(geometry.PaperNames(), ", "))
	}
	switch strings.ToLower(c.Export.Orientation) {
	case "landscape", "portrait":
	default:
		bad("export.orientation %q must be landscape or portrait", c.Export.Orientation)
	}
	if c.Export.MarginMM < 0 || c.Export.MarginMM >= 100 {
		bad("export.margin_mm must be in [0, 100) (got %g)", c.Export.MarginMM)
	}
	if c.Export.MaxImagePixels < 0 {
		bad("export.max_image_pixels must not be negative")
	}
	if c.Server.Addr == "" {
		bad("server.addr must not be empty")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		bad("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		bad("logging.format %q must be text or json", c.Logging.Format)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		bad("tracing.sample_ratio must be in [0, 1] (got %g)", c.Tracing.SampleRatio)
	}

	return errors.Join(errs...)
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Database: %s\n", c.Database.Path)
	summary += fmt.Sprintf("Export: %s %s, margin %gmm, circles %t, labels %t, schedule %t\n",
		c.Export.Paper, c.Export.Orientation, c.Export.MarginMM,
		c.Export.ShowRangeCircles, c.Export.ShowAddressLabels, c.Export.IncludeSchedule)
	summary += fmt.Sprintf("Server: %s, Logging: %s/%s", c.Server.Addr, c.Logging.Level, c.Logging.Format)
	return summary
}
