package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bnema/adblock-dashboard/internal/dashboard"
	"github.com/bnema/adblock-dashboard/internal/resources"
	"github.com/bnema/adblock-dashboard/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the interactive dashboard (default)",
	RunE:  runTUI,
}

func init() {
	addTUIFlags(rootCmd)
	addTUIFlags(tuiCmd)
}

func addTUIFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("list", "l", "", "filter list file to start with (default: enabled lists from config)")
	cmd.Flags().StringP("resources", "r", "", "resources.json to load and watch")
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("the dashboard needs a terminal; use the check or export commands instead")
	}

	listPath, _ := cmd.Flags().GetString("list")
	resourcesPath, _ := cmd.Flags().GetString("resources")
	if resourcesPath == "" {
		resourcesPath = cfg.Resources.Path
	}

	// the terminal belongs to the dashboard, so logs only go to a file
	logger, closeLog, err := newLogger(cfg.Log, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var opts []dashboard.Option
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, dashboard.WithMetrics(dashboard.NewMetrics(reg)))
		stop := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer stop()
	}

	store, err := newStore(logger, opts...)
	if err != nil {
		return err
	}
	defer store.Close()
	d := dashboard.NewDispatcher(store, logger)

	listText, err := loadListText(ctx, listPath, logger)
	if err != nil {
		return err
	}
	if listText != "" {
		store.Apply(dashboard.FilterListTextChanged{Text: listText})
		store.Flush()
	}
	if text, ok, err := loadResourcesText(ctx, resourcesPath, logger); err != nil {
		logger.Warn("resources not loaded", "error", err)
	} else if ok {
		store.Apply(dashboard.ResourcesLoaded{JSON: text})
	}

	var modelOpts []tui.Option
	if resourcesPath != "" {
		loader := resources.NewLoader(osFs)
		modelOpts = append(modelOpts, tui.WithResourceLoader(func() (string, error) {
			return loader.ReadText(resourcesPath)
		}))
		err := loader.Watch(ctx, resourcesPath, logger, func(text string) {
			d.Dispatch(dashboard.ResourcesLoaded{JSON: text})
		})
		if err != nil {
			logger.Warn("resources not watched", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	p := tea.NewProgram(tui.New(d, store.State(), modelOpts...), tea.WithAltScreen(), tea.WithContext(gctx))

	format := store.State().ExportFormat
	d.Subscribe(func(st dashboard.State) {
		if st.ExportFormat != format {
			format = st.ExportFormat
			persistExportFormat(logger, format)
		}
		p.Send(tui.StateMsg{State: st})
	})

	g.Go(func() error {
		if err := d.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("dispatcher: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// quitting the dashboard stops the dispatcher
		defer cancel()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && gctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// serveMetrics exposes reg on addr until the returned stop func is called
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
