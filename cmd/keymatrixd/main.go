package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"keymatrix/matrix"
	"keymatrix/pins"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("keymatrixd v%s\n", version)
	fmt.Println("Debounced key matrix daemon with accelerated auto-repeat")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  keymatrixd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Scans a GPIO key matrix (or a simulated one), debounces it and turns")
	fmt.Println("  presses, releases and accelerated repeats into axis changes and button")
	fmt.Println("  events. State is streamed over a websocket and controlled over a Unix")
	fmt.Println("  domain socket (see matrixctl).")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Simulated matrix with the built-in layout")
	fmt.Println("  keymatrixd -backend sim")
	fmt.Println()
	fmt.Println("  # Hardware matrix described in a config file")
	fmt.Println("  keymatrixd -config /etc/keymatrixd.yaml")
	fmt.Println()
}

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		backend      = flag.String("backend", defaultBackend, "Matrix backend: gpio|sim")
		invert       = flag.Bool("invert", false, "Treat a low column read as a closed switch")
		debounceMS   = flag.Int("debounce-ms", int(matrix.DefaultDebounce/time.Millisecond), "Debounce window in ms")
		scanPeriodMS = flag.Int("scan-period-ms", defaultScanPeriodMS, "Matrix scan period in ms")
		pollHz       = flag.Int("poll-hz", defaultPollHz, "Consumer loop frequency in Hz")
		socketPath   = flag.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		httpPort     = flag.Int("http-port", defaultHTTPPort, "HTTP port for the websocket state stream (0 disables)")
		logLevelStr  = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion  = flag.Bool("version", false, "Print version and exit")
	)
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the config file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			o.Backend = backend
		case "invert":
			o.Invert = invert
		case "debounce-ms":
			o.DebounceMS = debounceMS
		case "scan-period-ms":
			o.ScanPeriodMS = scanPeriodMS
		case "poll-hz":
			o.PollHz = pollHz
		case "ipc-socket":
			o.IPCSocketPath = socketPath
		case "http-port":
			o.HTTPPort = httpPort
		case "log-level":
			o.LogLevel = logLevelStr
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid config:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &cfg, logger); err != nil {
		logger.Error("keymatrixd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

// openLines returns the line driver for the configured backend. sim is
// non-nil only for the sim backend.
func openLines(cfg *Config) (lines matrix.Lines, sim *pins.Sim, err error) {
	switch cfg.Matrix.Backend {
	case backendSim:
		sim = pins.NewSim(cfg.Matrix.RowPins, cfg.Matrix.ColPins)
		return sim, sim, nil
	case backendGPIO:
		pull, err := pins.ParsePull(cfg.Matrix.Pull)
		if err != nil {
			return nil, nil, err
		}
		all := append(append([]int(nil), cfg.Matrix.RowPins...), cfg.Matrix.ColPins...)
		hw, err := pins.Open(pull, all...)
		if err != nil {
			return nil, nil, fmt.Errorf("open gpio: %w", err)
		}
		return hw, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Matrix.Backend)
	}
}

// newEngine configures an engine from cfg. Per-button repeat enables are
// applied after Configure, which resets them.
func newEngine(cfg *Config, opts matrix.EngineOptions) (*matrix.Engine, error) {
	eng := matrix.NewEngine(opts)
	eng.SetScanDelays(
		time.Duration(cfg.Matrix.SettleUS)*time.Microsecond,
		time.Duration(cfg.Matrix.BetweenRowsUS)*time.Microsecond,
	)
	eng.SetRepeatInitialDelay(time.Duration(cfg.Repeat.InitialDelayMS) * time.Millisecond)
	if err := eng.SetRepeatProfile(cfg.ToRepeatProfile()); err != nil {
		return nil, err
	}
	if err := eng.Configure(cfg.ToMatrixConfig()); err != nil {
		return nil, err
	}
	for id, b := range cfg.Buttons {
		eng.SetRepeatEnabled(id, b.Repeat)
	}
	return eng, nil
}

// run wires the engine, daemon loop, IPC and HTTP servers and blocks until
// ctx is canceled or one of them fails.
func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	lines, sim, err := openLines(cfg)
	if err != nil {
		return err
	}
	if hw, ok := lines.(*pins.Pins); ok {
		defer func() {
			if err := hw.Halt(); err != nil {
				logger.Warn("gpio halt failed", "error", err)
			}
		}()
	}

	eng, err := newEngine(cfg, matrix.EngineOptions{
		Lines:  lines,
		Logger: logger.With("component", "matrix"),
	})
	if err != nil {
		return fmt.Errorf("configure matrix: %w", err)
	}

	period := time.Duration(cfg.Matrix.ScanPeriodMS) * time.Millisecond
	if err := eng.StartTask(ctx, period); err != nil {
		return fmt.Errorf("start scan task: %w", err)
	}
	defer eng.StopTask()

	requests := make(chan daemonRequest, 16)
	broadcasts := make(chan StateBroadcast, 256)
	d := newDaemon(cfg, eng, sim, broadcasts, logger)
	state := NewStateServer(logger, requests, HubConfig{})

	logger.Info("listening",
		"backend", cfg.Matrix.Backend,
		"rows", len(cfg.Matrix.RowPins), "cols", len(cfg.Matrix.ColPins),
		"buttons", len(cfg.Buttons), "axes", len(cfg.Axes),
		"ipc", cfg.IPC.SocketPath, "http_port", cfg.HTTP.Port,
		"scan_period", period, "poll_hz", cfg.PollHz)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runDaemon(gctx, d, requests, cfg.PollHz)
		return nil
	})
	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, requests, logger)
	})
	if cfg.HTTP.Port > 0 {
		g.Go(func() error {
			state.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, state.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.Port, newHTTPMux(state), logger)
		})
	} else {
		g.Go(func() error {
			drainBroadcasts(gctx, broadcasts)
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// drainBroadcasts discards state changes when no websocket stream is served.
func drainBroadcasts(ctx context.Context, src <-chan StateBroadcast) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-src:
		}
	}
}
