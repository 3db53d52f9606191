package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"smokeplan/internal/codec"
	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
	"smokeplan/internal/identity"
	"smokeplan/internal/observability"
	"smokeplan/internal/service"
)

// exportFlags override the export section of the config
type exportFlags struct {
	output    string
	paper     string
	portrait  bool
	noCircles bool
	noLabels  bool
	schedule  bool
	strict    bool
	footer    string
}

func (f *exportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output PDF (default: project name with .pdf)")
	cmd.Flags().StringVar(&f.paper, "paper", "", "paper size, A0 to A5 (default from config)")
	cmd.Flags().BoolVar(&f.portrait, "portrait", false, "portrait orientation")
	cmd.Flags().BoolVar(&f.noCircles, "no-circles", false, "do not draw detector range circles")
	cmd.Flags().BoolVar(&f.noLabels, "no-labels", false, "do not draw address labels")
	cmd.Flags().BoolVar(&f.schedule, "schedule", false, "append bus schedule pages")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "refuse to export a project with validation errors")
	cmd.Flags().StringVar(&f.footer, "footer", "", "extra footer text")
}

func (f *exportFlags) apply(req *service.ExportRequest) error {
	if f.paper != "" {
		paper, ok := geometry.LookupPaper(f.paper)
		if !ok {
			return fmt.Errorf("unknown paper %q, expected one of %s", f.paper, strings.Join(geometry.PaperNames(), ", "))
		}
		req.Page.Paper = paper
	}
	if f.portrait {
		req.Options.Orientation = geometry.Portrait
	}
	if f.noCircles {
		req.Options.ShowRangeCircles = false
	}
	if f.noLabels {
		req.Options.ShowAddressLabels = false
	}
	if f.schedule {
		req.Options.IncludeSchedule = true
	}
	if f.footer != "" {
		req.Options.MetadataFooter = f.footer
	}
	req.Strict = f.strict
	return nil
}

// outputPath is the explicit output or the project path with a .pdf extension
func (f *exportFlags) outputPath(project string) string {
	if f.output != "" {
		return f.output
	}
	return strings.TrimSuffix(project, filepath.Ext(project)) + ".pdf"
}

// exportRequest builds the configured export defaults
func (a *app) exportRequest() service.ExportRequest {
	return service.ExportRequest{
		Page:    a.cfg.Export.Page(),
		Options: a.cfg.Export.LayoutOptions(time.Time{}),
		PDF:     a.cfg.Export.PDFOptions(),
	}
}

func (a *app) exporter(imageDir string, bus *service.EventBus, metrics *observability.Collector) *service.ExportService {
	return service.NewExportService(
		service.WithExportLogger(a.log),
		service.WithExportMetrics(metrics),
		service.WithEventBus(bus),
		service.WithImageDir(imageDir),
	)
}

// readProject loads a project file, reporting legacy import repairs on w
func readProject(w io.Writer, path string) (*domain.Scene, error) {
	scene, report, err := service.ImportProject(path)
	if err != nil {
		return nil, err
	}
	if report != nil {
		fmt.Fprintf(w, "%s imported legacy project: %d detectors, %d connections, %d lines skipped\n",
			styleWarn.Render("note:"), report.Detectors, report.Connections, report.SkippedLines)
		for _, warning := range report.Warnings {
			fmt.Fprintf(w, "  %s\n", styleDim.Render(warning))
		}
	}
	return scene, nil
}

func (a *app) exportCmd() *cobra.Command {
	var flags exportFlags
	cmd := &cobra.Command{
		Use:   "export <project>",
		Short: "Export a project to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			scene, err := readProject(cmd.ErrOrStderr(), path)
			if err != nil {
				return err
			}
			req := a.exportRequest()
			if err := flags.apply(&req); err != nil {
				return err
			}

			snap := scene.Snapshot()
			res, err := a.exporter(filepath.Dir(path), nil, nil).Export(cmd.Context(), snap, req)
			if err != nil {
				if errors.Is(err, service.ErrProjectInvalid) {
					renderReport(cmd.ErrOrStderr(), domain.Validate(snap))
				}
				return err
			}

			out := flags.outputPath(path)
			if err := os.WriteFile(out, res.PDF, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			if len(res.Report.Warnings) > 0 || len(res.Report.Errors) > 0 {
				renderReport(cmd.ErrOrStderr(), res.Report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d detectors, %d bytes, %s)\n",
				styleOK.Render("wrote"), out, len(snap.Detectors), len(res.PDF), res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	var showDetectors bool
	cmd := &cobra.Command{
		Use:   "validate <project>",
		Short: "Check a project for duplicate addresses, spacing and serial problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scene, err := readProject(cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			snap := scene.Snapshot()
			report := domain.Validate(snap)

			out := cmd.OutOrStdout()
			if showDetectors {
				fmt.Fprintln(out, styleTitle.Render("Detectors"))
				fmt.Fprintln(out, detectorTable(snap))
				fmt.Fprintln(out)
			}
			renderReport(out, report)
			if !report.OK() {
				return fmt.Errorf("%d validation error(s)", len(report.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showDetectors, "detectors", false, "list every detector before the report")
	return cmd
}

func (a *app) parseQRCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse-qr <payload>",
		Short: "Show the identity fields a detector QR payload would fill in",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := identity.DefaultParser().Parse(strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("could not auto-fill fields: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(fields)
			}
			rows := [][]string{
				{"serial", fields.Serial},
				{"model", fields.Model},
				{"brand", fields.Brand},
				{"bus", fields.Bus},
				{"group", fields.Group},
				{"address", fields.Address},
			}
			fmt.Fprintln(out, table([]string{"Field", "Value"}, rows))
			fmt.Fprintln(out, styleDim.Render("strategy: "+fields.Strategy))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the fields as JSON")
	return cmd
}

func (a *app) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert a project between .sdp, .yaml and the legacy format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := codec.ForPath(args[1]); err != nil {
				return err
			}
			scene, err := readProject(cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			if err := service.WriteProject(args[1], scene.Snapshot()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styleOK.Render("wrote"), args[1])
			return nil
		},
	}
}

// renderReport prints validation findings, errors first
func renderReport(w io.Writer, report domain.Report) {
	if report.OK() && len(report.Warnings) == 0 {
		fmt.Fprintln(w, styleOK.Render("ok")+" no problems found")
		return
	}
	for _, issue := range report.Errors {
		fmt.Fprintf(w, "%s %s %s\n", styleError.Render("error"), issue.Message, styleDim.Render("("+issue.Code+")"))
	}
	for _, issue := range report.Warnings {
		fmt.Fprintf(w, "%s %s %s\n", styleWarn.Render("warn "), issue.Message, styleDim.Render("("+issue.Code+")"))
	}
	fmt.Fprintf(w, "%d error(s), %d warning(s)\n", len(report.Errors), len(report.Warnings))
}

func detectorTable(snap *domain.Snapshot) string {
	rows := make([][]string, 0, len(snap.Detectors))
	for _, d := range snap.Detectors {
		rows = append(rows, []string{
			d.ID,
			d.AddressLabel(),
			d.Serial,
			d.RoomID,
			string(d.Type),
			fmt.Sprintf("%.0f, %.0f", d.Position.X, d.Position.Y),
		})
	}
	return table([]string{"ID", "Address", "Serial", "Room", "Type", "Position"}, rows)
}
