package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"smokeplan/internal/domain"
	"smokeplan/internal/handler"
	"smokeplan/internal/hub"
	"smokeplan/internal/logging"
	"smokeplan/internal/observability"
	"smokeplan/internal/service"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		projectPath string
		addr        string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scene API for one project",
		Long: `serve opens a project and exposes it over HTTP: the scene and detector
API under /api, live scene events on /events and Prometheus metrics on
/metrics. POST /api/project/save writes the project back to --project.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			return a.serve(cmd.Context(), projectPath, addr)
		},
	}
	cmd.Flags().StringVar(&projectPath, "project", "", "project file to open; created on first save when missing")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default from config)")
	return cmd
}

// openProject reads path, or starts an empty scene when the file does not
// exist yet
func (a *app) openProject(ctx context.Context, path string) (*domain.Scene, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		a.log.Info(ctx, "starting new project", logging.String("path", path))
		return nil, nil
	}
	return readProject(os.Stderr, path)
}

func (a *app) serve(ctx context.Context, projectPath, addr string) error {
	scene, err := a.openProject(ctx, projectPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	eventBus := service.NewEventBus()
	project := service.NewProjectService(scene, eventBus,
		service.WithLogger(a.log),
		service.WithMetrics(metrics),
		service.WithDefaults(a.cfg.Detector.Defaults()),
		service.WithView(a.cfg.View.Transform(), a.cfg.View.ZoomStep),
	)
	imageDir := ""
	if projectPath != "" {
		imageDir = filepath.Dir(projectPath)
	}
	exporter := a.exporter(imageDir, eventBus, metrics)

	sseHub := hub.New(a.log)
	go sseHub.Run(ctx)

	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	defer eventBus.Unsubscribe(eventChan)
	go hub.Forward(ctx, sseHub, eventChan)

	sceneHandler := handler.NewSceneHandler(project, exporter, a.exportRequest())
	sceneHandler.SetLogger(a.log)
	sceneHandler.SetProjectPath(projectPath)

	mux := http.NewServeMux()
	sceneHandler.Register(mux)
	mux.Handle("GET /events", sseHub)
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{
		Addr: addr,
		Handler: handler.Chain(mux,
			handler.Recover(a.log),
			handler.CORS,
			handler.Logger(a.log, metrics),
		),
		ReadTimeout:  a.cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: a.cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "server listening", logging.String("addr", addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.log.Info(context.Background(), "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.log.Info(shutdownCtx, "server stopped")
	return nil
}
