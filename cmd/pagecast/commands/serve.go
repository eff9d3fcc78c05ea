package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagecast/pagecast/internal/config"
	"github.com/pagecast/pagecast/internal/console"
	"github.com/pagecast/pagecast/internal/display"
	"github.com/pagecast/pagecast/internal/logger"
	"github.com/pagecast/pagecast/internal/render"
	"github.com/pagecast/pagecast/internal/session"
	"github.com/pagecast/pagecast/internal/telemetry"
	"github.com/pagecast/pagecast/internal/video"
)

var autostart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pagecast server",
	Long: `Start the pagecast server: restore the surface store, expose the
console API and telemetry websocket, and emit network video for every
started surface.`,
	Example: `  # Start server on default port (8089)
  pagecast serve

  # Start server on custom port with the simulated engine
  pagecast serve --port 9090

  # Restore the store and start every surface immediately
  pagecast serve --autostart

  # Start with debug logging
  pagecast serve --log-level debug --pretty`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&autostart, "autostart", false, "start every restored surface immediately")
	serveCmd.Flags().String("engine", "", "rendering engine (sim or x11)")
	serveCmd.Flags().String("sink", "", "network video sink (mjpeg or gst)")

	viper.BindPFlag("engine", serveCmd.Flags().Lookup("engine"))
	viper.BindPFlag("sink", serveCmd.Flags().Lookup("sink"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	// Flag overrides
	cfg := configMgr.Get()
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			cfg.ServerPort = port
		}
	}
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			cfg.LogLevel = level
		}
	}
	if viper.IsSet("log_pretty") && viper.GetBool("log_pretty") {
		cfg.LogPretty = true
	}
	if viper.IsSet("engine") {
		if engine := viper.GetString("engine"); engine != "" {
			cfg.Engine = engine
		}
	}
	if viper.IsSet("sink") {
		if sink := viper.GetString("sink"); sink != "" {
			cfg.Sink = sink
		}
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log := logger.WithComponent("serve")
	log.Info().Str("config", configMgr.ConfigPath()).Msg("Configuration loaded")

	engine, provider, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	var streams *video.MJPEGHub
	var sinks session.SinkFactory
	switch cfg.Sink {
	case "mjpeg":
		streams = video.NewMJPEGHub()
		hub := streams
		sinks = func(sc config.SurfaceConfig, w, h int) (video.Sink, error) {
			return hub.CreateSink(sc.ID, sc.Title)
		}
	case "gst":
		ports := newPortAllocator(cfg.GstPort)
		sinks = func(sc config.SurfaceConfig, w, h int) (video.Sink, error) {
			return video.NewGstSink(sc.Title, ports.portFor(sc.ID), w, h, sc.TargetFPS*1000, 1000)
		}
	default:
		return fmt.Errorf("unknown sink %q (use mjpeg or gst)", cfg.Sink)
	}

	// The hub dispatches into the registry; the registry emits through
	// the hub. Break the cycle with a late-bound dispatch func.
	var registry *session.Registry
	hub := console.NewHub(func(act session.Action) error {
		return registry.Dispatch(act)
	})

	store := config.NewStore(configMgr.SurfacesPath())
	registry = session.NewRegistry(session.ControllerOptions{
		Engine:         engine,
		Provider:       provider,
		Sinks:          sinks,
		Emitter:        hub,
		PreviewWidth:   cfg.Preview.Width,
		PreviewHeight:  cfg.Preview.Height,
		StatsWindow:    cfg.Stats.Window,
		StatsEmitEvery: cfg.Stats.EmitEvery,
	}, store.Save)

	surfaces, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load surface store: %w", err)
	}
	registry.Restore(surfaces)

	usage, err := telemetry.NewUsageMonitor(hub, time.Duration(cfg.Usage.IntervalSeconds)*time.Second, 0, 0)
	if err != nil {
		log.Warn().Err(err).Msg("CPU usage monitor unavailable")
	} else {
		usage.Start()
		defer usage.Stop()
	}

	server := console.NewServer(console.ServerOptions{
		Registry: registry,
		Hub:      hub,
		Engine:   engine,
		Provider: provider,
		Streams:  streams,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.ServerPort)
	}()

	if autostart {
		if err := registry.Dispatch(session.Action{Op: session.OpStartAll}); err != nil {
			log.Warn().Err(err).Msg("Autostart failed")
		}
	}

	log.Info().
		Int("port", cfg.ServerPort).
		Str("engine", engine.Name()).
		Str("sink", cfg.Sink).
		Int("surfaces", len(surfaces)).
		Msg("Pagecast is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		registry.Shutdown()
		return err
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")
	}

	registry.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), console.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Console server shutdown failed")
	}
	return nil
}

// portAllocator hands out one stable transmit port per surface so a
// surface that stops and restarts rebinds the same port instead of
// walking up the range. Calls arrive serialized through the registry,
// so no locking is needed.
type portAllocator struct {
	base int
	byID map[string]int
}

func newPortAllocator(base int) *portAllocator {
	return &portAllocator{base: base, byID: make(map[string]int)}
}

func (a *portAllocator) portFor(id string) int {
	if port, ok := a.byID[id]; ok {
		return port
	}
	port := a.base + len(a.byID)
	a.byID[id] = port
	return port
}

// buildEngine selects the rendering engine and the matching display
// provider from the configuration.
func buildEngine(cfg *config.App) (render.Engine, display.Provider, error) {
	switch cfg.Engine {
	case "sim":
		provider := display.NewStaticProvider(
			cfg.Display.Width,
			cfg.Display.Height,
			cfg.Display.RefreshHz,
			cfg.Display.Scale,
		)
		return render.NewSimEngine(render.SimOptions{}), provider, nil
	case "x11":
		engine, err := render.NewX11Engine()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to X server: %w", err)
		}
		provider, err := display.NewX11Provider()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to query displays: %w", err)
		}
		return engine, provider, nil
	default:
		return nil, nil, fmt.Errorf("unknown engine %q (use sim or x11)", cfg.Engine)
	}
}
