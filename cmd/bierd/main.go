// Command bierd is the BIER forwarding daemon: an event loop binding a
// raw IPv6 endpoint and a local control-envelope endpoint to the
// forwarding engine, with one reader goroutine per endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/gobier/internal/bift"
	"github.com/dantte-lp/gobier/internal/config"
	biermetrics "github.com/dantte-lp/gobier/internal/metrics"
	"github.com/dantte-lp/gobier/internal/netio"
	appversion "github.com/dantte-lp/gobier/internal/version"
)

// shutdownTimeout bounds how long the metrics HTTP server is given to
// drain connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("bierd starting",
		slog.String("version", appversion.Version),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("state_file", cfg.Netio.StateFile),
	)

	state, err := loadState(cfg.Netio.StateFile)
	if err != nil {
		logger.Error("failed to load BFR state", slog.String("error", err.Error()))
		return 1
	}

	reg := prometheus.NewRegistry()
	collector := biermetrics.NewCollector(reg)

	if err := runDaemon(cfg, state, reg, collector, logger, *configPath, logLevel); err != nil {
		logger.Error("bierd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("bierd stopped")
	return 0
}

// reloadableState implements netio.StateSource over an atomic.Pointer so
// SIGHUP can swap in a freshly loaded BFR state without locking the
// dispatch path.
type reloadableState struct {
	p atomic.Pointer[bift.State]
}

func newReloadableState(initial bift.State) *reloadableState {
	r := &reloadableState{}
	r.p.Store(&initial)
	return r
}

func (r *reloadableState) Current() bift.State {
	return *r.p.Load()
}

func (r *reloadableState) Set(s bift.State) {
	r.p.Store(&s)
}

// runDaemon wires the netio.Shell to the raw IPv6 and control endpoints
// and runs it under an errgroup with signal-aware context, alongside the
// metrics HTTP server, SIGHUP reload, and systemd notifications.
func runDaemon(
	cfg *config.Config,
	initial bift.State,
	reg *prometheus.Registry,
	collector *biermetrics.Collector,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state := newReloadableState(initial)

	raw, err := netio.NewRawIPv6Conn(ctx, initial.Loopback, cfg.Netio.RawInterface, cfg.Netio.Protocol)
	if err != nil {
		return fmt.Errorf("open raw IPv6 endpoint: %w", err)
	}
	defer closeLogged(raw, "raw IPv6 endpoint", logger)

	control, err := netio.ListenControl(cfg.Netio.ControlSocket)
	if err != nil {
		return fmt.Errorf("open control endpoint: %w", err)
	}
	defer closeLogged(control, "control endpoint", logger)

	var delivery *netio.DeliveryEndpoint
	if cfg.Netio.DeliverySocket != "" {
		delivery, err = netio.DialDelivery(cfg.Netio.DeliverySocket)
		if err != nil {
			logger.Warn("failed to dial local delivery endpoint, local deliveries will be dropped",
				slog.String("path", cfg.Netio.DeliverySocket),
				slog.String("error", err.Error()),
			)
			delivery = nil
		} else {
			defer closeLogged(delivery, "delivery endpoint", logger)
		}
	}

	shell := &netio.Shell{
		Raw:      raw,
		Control:  control,
		Delivery: delivery,
		State:    state,
		Metrics:  collector,
		Logger:   logger,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return shell.Run(gCtx) })

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr))
		return listenAndServeMetrics(gCtx, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error { return runWatchdog(gCtx, logger) })

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(gCtx, sigHUP, configPath, logLevel, state, logger)
		return nil
	})

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, metricsSrv)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run daemon: %w", err)
	}
	return nil
}

// -------------------------------------------------------------------------
// Systemd Integration
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd at half the
// configured watchdog interval, exiting immediately if no watchdog is set.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// SIGHUP Reload — log level + BFR state
// -------------------------------------------------------------------------

func handleSIGHUP(
	ctx context.Context,
	sigHUP <-chan os.Signal,
	configPath string,
	logLevel *slog.LevelVar,
	state *reloadableState,
	logger *slog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading configuration and BFR state")
			reloadConfig(configPath, logLevel, state, logger)
		}
	}
}

// reloadConfig reloads the daemon's operational configuration (for the
// dynamic log level) and the BFR state file, swapping the latter into
// state without interrupting in-flight dispatch.
func reloadConfig(
	configPath string,
	logLevel *slog.LevelVar,
	state *reloadableState,
	logger *slog.Logger,
) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings", slog.String("error", err.Error()))
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)
	logger.Info("log level reloaded",
		slog.String("old_level", oldLevel.String()),
		slog.String("new_level", newLevel.String()),
	)

	newState, err := loadState(newCfg.Netio.StateFile)
	if err != nil {
		logger.Error("failed to reload BFR state, keeping current state",
			slog.String("path", newCfg.Netio.StateFile),
			slog.String("error", err.Error()),
		)
		return
	}
	state.Set(newState)
	logger.Info("BFR state reloaded", slog.String("path", newCfg.Netio.StateFile))
}

// -------------------------------------------------------------------------
// Graceful Shutdown
// -------------------------------------------------------------------------

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Setup helpers
// -------------------------------------------------------------------------

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func loadState(path string) (bift.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bift.State{}, fmt.Errorf("read BFR state file %s: %w", path, err)
	}
	state, err := bift.Unmarshal(data)
	if err != nil {
		return bift.State{}, fmt.Errorf("parse BFR state file %s: %w", path, err)
	}
	return state, nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServeMetrics(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func closeLogged(c interface{ Close() error }, name string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("failed to close endpoint", slog.String("endpoint", name), slog.String("error", err.Error()))
	}
}
