package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"smokeplan/internal/domain"
	"smokeplan/internal/logging"
	"smokeplan/internal/service"
	"smokeplan/internal/watcher"
)

func (a *app) watchCmd() *cobra.Command {
	var flags exportFlags
	cmd := &cobra.Command{
		Use:   "watch <project>",
		Short: "Re-export a project whenever it or its floor plan image changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			req := a.exportRequest()
			if err := flags.apply(&req); err != nil {
				return err
			}
			out := flags.outputPath(path)
			exporter := a.exporter(filepath.Dir(path), nil, nil)

			export := func(ctx context.Context) (*domain.Snapshot, error) {
				scene, err := service.ReadProject(path)
				if err != nil {
					return nil, err
				}
				snap := scene.Snapshot()
				res, err := exporter.Export(ctx, snap, req)
				if err != nil {
					return snap, err
				}
				if err := os.WriteFile(out, res.PDF, 0o644); err != nil {
					return snap, fmt.Errorf("failed to write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
					styleDim.Render(time.Now().Format("15:04:05")), styleOK.Render("wrote"), out)
				return snap, nil
			}

			ctx := cmd.Context()
			snap, err := export(ctx)
			if err != nil {
				return err
			}

			paths := []string{path}
			if p := planImagePath(path, snap.Plan); p != "" {
				paths = append(paths, p)
			}
			w := watcher.New(func(ctx context.Context, changed string) error {
				_, err := export(ctx)
				return err
			}, paths...).
				WithDebounce(a.cfg.Watch.Debounce.Duration()).
				WithLogger(a.log)

			a.log.Info(ctx, "watching project", logging.String("project", path), logging.String("output", out))
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// planImagePath resolves the plan image next to the project, or "" when the
// image is embedded or absent
func planImagePath(project string, plan domain.FloorPlan) string {
	if plan.Path == "" || len(plan.Data) > 0 {
		return ""
	}
	if filepath.IsAbs(plan.Path) {
		return plan.Path
	}
	return filepath.Join(filepath.Dir(project), plan.Path)
}
