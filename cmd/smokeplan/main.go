package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"smokeplan/internal/config"
	"smokeplan/internal/logging"
	"smokeplan/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed
type app struct {
	configPath string
	cfg        *config.Config
	cfgFile    string
	log        logging.Logger
	shutdown   func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "smokeplan",
		Short: "Place smoke detectors on a floor plan and export them to PDF",
		Long: `smokeplan keeps a floor plan with the smoke detectors placed on it,
their addresses, serial numbers and the wiring between them, and exports
the result as a printable PDF with optional bus schedules.

Projects are .sdp (JSON) or .yaml files. Older .sdp files are imported
automatically.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: search $SMOKEPLAN_CONFIG, ./smokeplan.yaml, ~/.config/smokeplan)")

	root.AddCommand(
		a.exportCmd(),
		a.validateCmd(),
		a.parseQRCmd(),
		a.serveCmd(),
		a.watchCmd(),
		a.libraryCmd(),
		a.convertCmd(),
		a.configCmd(),
	)
	return root
}

// setup loads the config that applies to the project named by the first
// argument, then builds the logger and tracer from it.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if a.configPath != "" {
		cfg, path, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, path, err = config.LoadFor(projectDir(args))
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	a.cfg, a.cfgFile = cfg, path
	a.log = cfg.Logging.Logger(cmd.ErrOrStderr())
	if path != "" {
		a.log.Debug(cmd.Context(), "config loaded", logging.String("path", path))
	}

	shutdown, err := observability.InitTracing(cmd.Context(), cfg.Tracing.Observability(cmd.ErrOrStderr()), a.log)
	if err != nil {
		return err
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	if a.shutdown != nil {
		observability.ShutdownWithTimeout(context.Background(), a.shutdown, a.log)
	}
	return nil
}

// projectDir returns the directory of the first argument when it names an
// existing file
func projectDir(args []string) string {
	if len(args) == 0 {
		return ""
	}
	info, err := os.Stat(args[0])
	if err != nil || info.IsDir() {
		return ""
	}
	return filepath.Dir(args[0])
}
