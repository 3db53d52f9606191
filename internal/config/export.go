package config

import (
	"io"
	"time"

	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
	"smokeplan/internal/layout"
	"smokeplan/internal/logging"
	"smokeplan/internal/observability"
	"smokeplan/internal/pdf"
)

// PaperSize returns the configured paper, defaulting to A4 for unknown names
func (e ExportConfig) PaperSize() geometry.Paper {
	if p, ok := geometry.LookupPaper(e.Paper); ok {
		return p
	}
	return geometry.A4
}

// Page returns the layout page for the configured paper and margin
func (e ExportConfig) Page() layout.Page {
	return layout.Page{
		Paper:  e.PaperSize(),
		Margin: geometry.MillimetersToPoints(e.MarginMM),
	}
}

// LayoutOptions converts the export section to layout options stamped with now
func (e ExportConfig) LayoutOptions(now time.Time) layout.Options {
	return layout.Options{
		ShowRangeCircles:  e.ShowRangeCircles,
		ShowAddressLabels: e.ShowAddressLabels,
		Orientation:       geometry.ParseOrientation(e.Orientation),
		MetadataFooter:    e.Footer,
		IncludeSchedule:   e.IncludeSchedule,
		GeneratedAt:       now,
	}
}

// PDFOptions returns backend options with the configured image cap
func (e ExportConfig) PDFOptions() pdf.Options {
	opts := pdf.DefaultOptions()
	opts.MaxImagePixels = e.MaxImagePixels
	return opts
}

// Defaults returns the values applied to newly placed devices
func (d DetectorConfig) Defaults() domain.Defaults {
	return domain.Defaults{
		RangeM: d.DefaultRangeM,
		Type:   domain.ParseDeviceType(d.DefaultType),
	}
}

// Transform returns a fresh view transform bounded by the configured zoom range
func (v ViewConfig) Transform() geometry.ViewTransform {
	return geometry.NewViewTransform(v.MinZoom, v.MaxZoom)
}

// Logger builds the configured logger writing to out. Environment overrides
// are honoured.
func (l LoggingConfig) Logger(out io.Writer) logging.Logger {
	return logging.NewFromEnv(logging.Config{Level: l.Level, Format: l.Format, Output: out})
}

// Observability converts the tracing section, applying environment overrides
func (t TracingConfig) Observability(out io.Writer) observability.TracingConfig {
	return observability.TracingConfigFromEnv(observability.TracingConfig{
		Enabled:     t.Enabled,
		ServiceName: "smokeplan",
		SampleRatio: t.SampleRatio,
		Output:      out,
	})
}
