// Package main implements the entry point for the mayara server: it
// discovers marine radars from the four supported vendor families on
// the local network, keeps one session per radar, and exposes the
// vendor-neutral registry the external control API is built on.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MarineYachtRadar/mayara-server/capability"
	"github.com/MarineYachtRadar/mayara-server/component"
	"github.com/MarineYachtRadar/mayara-server/config"
	"github.com/MarineYachtRadar/mayara-server/discovery"
	"github.com/MarineYachtRadar/mayara-server/health"
	"github.com/MarineYachtRadar/mayara-server/metric"
	"github.com/MarineYachtRadar/mayara-server/nic"
	"github.com/MarineYachtRadar/mayara-server/registry"
	"github.com/MarineYachtRadar/mayara-server/socket"
	"github.com/MarineYachtRadar/mayara-server/wire/furuno"
	"github.com/MarineYachtRadar/mayara-server/wire/garmin"
	"github.com/MarineYachtRadar/mayara-server/wire/navico"
	"github.com/MarineYachtRadar/mayara-server/wire/raymarine"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "mayara"
)

// nicRefreshInterval bounds how stale the interface inventory may get;
// marine installations plug and unplug radar segments while underway.
const nicRefreshInterval = 30 * time.Second

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("mayara failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("starting mayara",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := config.NewLoader().LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	return runCore(cfg, cliCfg, logger)
}

func runCore(cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	nics := nic.New(nicRefreshInterval)
	ifaces, err := nics.List()
	if err != nil {
		return fmt.Errorf("enumerate interfaces: %w", err)
	}
	if len(ifaces) == 0 {
		return fmt.Errorf("no usable non-loopback IPv4 interfaces")
	}
	for _, ifc := range ifaces {
		logger.Info("discovery interface", "name", ifc.Name, "addr", ifc.Addr)
	}

	policy := socket.NewPolicy()
	caps := capability.New(signalCtx)
	healthMonitor := health.NewMonitor()

	metricsRegistry := metric.NewMetricsRegistry()
	coreMetrics := metricsRegistry.CoreMetrics()

	locator := discovery.New(vendorBeacons(), nics, policy, coreMetrics, logger)
	if conflicts := component.Conflicts(component.PortSet{Inputs: locator.InputPorts()}); len(conflicts) > 0 {
		return fmt.Errorf("beacon listener port conflicts: %v", conflicts)
	}

	reg := registry.New(registry.Deps{
		Config:  cfg,
		NICs:    nics,
		Policy:  policy,
		Caps:    caps,
		Metrics: coreMetrics,
		Health:  healthMonitor,
		Logger:  logger,
	})

	var metricsServer *metric.Server
	if cliCfg.MetricsPort > 0 {
		metricsServer = metric.NewServer(cliCfg.MetricsPort, "/metrics", metricsRegistry)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("metrics server listening", "addr", metricsServer.Address())
	}

	g, ctx := errgroup.WithContext(signalCtx)
	g.Go(func() error { return locator.Run(ctx) })
	g.Go(func() error { return reg.Run(ctx, locator) })
	g.Go(func() error { return logRegistryEvents(ctx, reg, logger) })
	g.Go(func() error { return watchHealth(ctx, locator, healthMonitor, logger) })

	logger.Info("mayara started, listening for radar beacons",
		"interfaces", len(ifaces),
		"allowed_vendors", cfg.AllowedVendors)

	<-signalCtx.Done()
	logger.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, exiting")
	}

	if metricsServer != nil {
		_ = metricsServer.Stop()
	}

	logger.Info("mayara shutdown complete")
	return nil
}

// vendorBeacons declares the four well-known beacon endpoints the
// Locator listens on.
func vendorBeacons() []discovery.Beacon {
	return []discovery.Beacon{
		{Vendor: navico.New(), Group: navico.BeaconGroup, Port: navico.BeaconPort},
		{Vendor: furuno.New(), Group: furuno.BeaconGroup, Port: furuno.BeaconPort},
		{Vendor: raymarine.New(), Group: raymarine.BeaconGroup, Port: raymarine.BeaconPort},
		{Vendor: garmin.New(), Group: garmin.BeaconGroup, Port: garmin.BeaconPort},
	}
}

// logRegistryEvents mirrors the registry's lifecycle stream into the
// structured log; the external control API drains the same stream.
func logRegistryEvents(ctx context.Context, reg *registry.Registry, logger *slog.Logger) error {
	events := reg.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch v := ev.(type) {
			case registry.Added:
				logger.Info("radar added", "radar_id", v.ID)
			case registry.Removed:
				logger.Info("radar removed", "radar_id", v.ID)
			case registry.StatusChanged:
				logger.Info("radar status changed", "radar_id", v.ID, "old", v.Old, "new", v.New)
			case registry.ControlChanged:
				logger.Debug("radar control changed", "radar_id", v.ID, "control", v.Control)
			}
		}
	}
}

// watchHealth folds the locator's component health and every session's
// status into the process-wide monitor and logs aggregate degradation.
func watchHealth(ctx context.Context, locator *discovery.Locator, monitor *health.Monitor, logger *slog.Logger) error {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			monitor.Update("locator", health.FromComponentHealth("locator", locator.Health()))
			aggregate := monitor.AggregateHealth("mayara")
			if !aggregate.IsHealthy() {
				logger.Warn("degraded components", "status", aggregate.Status, "message", aggregate.Message)
			}
		}
	}
}

func printHelp() {
	printDetailedHelp()
}
