package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Export.Paper != "A4" || cfg.Export.Orientation != "landscape" {
		t.Errorf("Export = %+v, want A4 landscape", cfg.Export)
	}
	if !cfg.Export.ShowRangeCircles || !cfg.Export.ShowAddressLabels {
		t.Error("circles and labels should be on by default")
	}
	if cfg.Detector.DefaultRangeM != domain.DefaultRangeM {
		t.Errorf("DefaultRangeM = %g, want %g", cfg.Detector.DefaultRangeM, domain.DefaultRangeM)
	}
	if cfg.View.ZoomStep != 1.2 {
		t.Errorf("ZoomStep = %g, want 1.2", cfg.View.ZoomStep)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
export:
  paper: a3
  show_range_circles: false
server:
  read_timeout: 5s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.Export.ShowRangeCircles {
		t.Error("show_range_circles should be off")
	}
	if !cfg.Export.ShowAddressLabels {
		t.Error("show_address_labels should keep its default")
	}
	if cfg.Export.PaperSize().Name != "A3" {
		t.Errorf("PaperSize() = %s, want A3", cfg.Export.PaperSize().Name)
	}
	if cfg.Server.ReadTimeout.Duration() != 5*time.Second {
		t.Errorf("ReadTimeout = %s, want 5s", cfg.Server.ReadTimeout.Duration())
	}
	if cfg.Server.WriteTimeout.Duration() != time.Minute {
		t.Errorf("WriteTimeout = %s, want default 1m", cfg.Server.WriteTimeout.Duration())
	}
	if cfg.Database.Path != "./smokeplan.db" {
		t.Errorf("Database.Path = %s, want default", cfg.Database.Path)
	}
}

func TestLoadFromPathErrors(t *testing.T) {
	if _, _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("server:\n  read_timeout: soon\n"), 0644)
	if _, _, err := LoadFromPath(path); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zoom bounds", func(c *Config) { c.View.MaxZoom = c.View.MinZoom }, "zoom bounds"},
		{"zoom step", func(c *Config) { c.View.ZoomStep = 1 }, "zoom_step"},
		{"range", func(c *Config) { c.Detector.DefaultRangeM = 30 }, "default_range_m"},
		{"type", func(c *Config) { c.Detector.DefaultType = "sprinkler" }, "default_type"},
		{"paper", func(c *Config) { c.Export.Paper = "letter" }, "export.paper"},
		{"orientation", func(c *Config) { c.Export.Orientation = "sideways" }, "export.orientation"},
		{"margin", func(c *Config) { c.Export.MarginMM = -1 }, "margin_mm"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"sample ratio", func(c *Config) { c.Tracing.SampleRatio = 2 }, "tracing.sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Export.Paper = "B5"
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "export.paper") || !strings.Contains(err.Error(), "logging.format") {
		t.Errorf("Validate() should report every problem, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Export.IncludeSchedule = true
	cfg.Export.Footer = "Installer: ACME"
	cfg.Watch.Debounce = Duration(2 * time.Second)

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}
	if !loaded.Export.IncludeSchedule || loaded.Export.Footer != "Installer: ACME" {
		t.Errorf("Export = %+v", loaded.Export)
	}
	if loaded.Watch.Debounce.Duration() != 2*time.Second {
		t.Errorf("Debounce = %s, want 2s", loaded.Watch.Debounce.Duration())
	}
}

func TestFindConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := DefaultConfig().Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	if found := FindConfigPath(); found == "" {
		t.Error("FindConfigPath() should find config in working directory")
	}

	// Explicit path doesn't exist, should fall back
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	if found := FindConfigPath(); found == "" {
		t.Error("FindConfigPath() should fall back when env path doesn't exist")
	}

	explicit := filepath.Join(t.TempDir(), "explicit.yaml")
	DefaultConfig().Save(explicit)
	t.Setenv(EnvConfigPath, explicit)
	if found := FindConfigPath(); found != explicit {
		t.Errorf("FindConfigPath() = %s, want %s", found, explicit)
	}
}

func TestFindConfigPathForProjectDir(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	projectDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Export.Paper = "A2"
	if err := cfg.Save(filepath.Join(projectDir, ConfigFileName)); err != nil {
		t.Fatal(err)
	}

	loaded, path, err := LoadFor(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != projectDir {
		t.Errorf("expected config from project dir, got %s", path)
	}
	if loaded.Export.Paper != "A2" {
		t.Errorf("Paper = %s, want A2", loaded.Export.Paper)
	}
}

func TestExportConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Export.Orientation = "portrait"
	cfg.Export.MarginMM = 25.4
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	page := cfg.Export.Page()
	if page.Margin != 72 {
		t.Errorf("Margin = %g, want 72pt", page.Margin)
	}
	opts := cfg.Export.LayoutOptions(now)
	if opts.Orientation != geometry.Portrait || !opts.GeneratedAt.Equal(now) {
		t.Errorf("LayoutOptions() = %+v", opts)
	}
	if cfg.Export.PDFOptions().MaxImagePixels != cfg.Export.MaxImagePixels {
		t.Error("PDFOptions() should carry max_image_pixels")
	}

	cfg.Export.Paper = "unknown"
	if cfg.Export.PaperSize() != geometry.A4 {
		t.Error("unknown paper should fall back to A4")
	}

	cfg.Detector.DefaultType = "IO"
	if d := cfg.Detector.Defaults(); d.Type != domain.DeviceIO || d.RangeM != domain.DefaultRangeM {
		t.Errorf("Defaults() = %+v", d)
	}

	vt := cfg.View.Transform()
	if vt.MinZoom != cfg.View.MinZoom || vt.MaxZoom != cfg.View.MaxZoom || vt.Zoom != 1 {
		t.Errorf("Transform() = %+v", vt)
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}
