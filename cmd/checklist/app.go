package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/checklist/config"
	"github.com/c360studio/checklist/host"
	"github.com/c360studio/checklist/host/hapbridge"
	"github.com/c360studio/checklist/platform/checklist"
)

// App is the main application that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *host.Registry
	metrics  *prometheus.Registry
	runtime  *host.Runtime

	metricsServer *http.Server
	metricsAddr   string
}

// NewApp creates the host runtime with every known platform registered.
// withBridge publishes accessories over HomeKit.
func NewApp(cfg *config.Config, logger *slog.Logger, withBridge bool) (*App, error) {
	registry := host.NewRegistry()
	if err := checklist.Register(registry); err != nil {
		return nil, fmt.Errorf("register checklist platform: %w", err)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rc := host.RuntimeConfig{
		StoragePath: cfg.StoragePath,
		Logger:      logger,
		Metrics:     metrics,
	}
	if withBridge {
		bridge, err := hapbridge.New(hapbridge.Config{
			Name:        cfg.Bridge.Name,
			Pin:         cfg.Bridge.Pin,
			Addr:        cfg.Bridge.Addr,
			StoragePath: cfg.StoragePath,
			Logger:      logger.With("component", "hap"),
		})
		if err != nil {
			return nil, fmt.Errorf("create HomeKit bridge: %w", err)
		}
		rc.Transport = bridge
	}

	rt, err := host.NewRuntime(registry, rc)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		runtime:  rt,
	}, nil
}

// PlatformConfigs converts the configured platform entries for the runtime.
func (a *App) PlatformConfigs() ([]host.PlatformConfig, error) {
	out := make([]host.PlatformConfig, 0, len(a.cfg.Platforms))
	for _, p := range a.cfg.Platforms {
		raw, err := p.JSON()
		if err != nil {
			return nil, err
		}
		out = append(out, host.PlatformConfig{Platform: p.Platform(), Raw: raw})
	}
	return out, nil
}

// Run serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	platforms, err := a.PlatformConfigs()
	if err != nil {
		return err
	}

	if a.cfg.MetricsAddr != "" {
		if err := a.startMetrics(); err != nil {
			return err
		}
		defer a.stopMetrics()
	}

	err = a.runtime.Run(ctx, platforms)
	if err != nil {
		return err
	}
	a.logger.Info("Shutdown complete")
	return nil
}

func (a *App) startMetrics() error {
	ln, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.MetricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	a.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.metricsAddr = ln.Addr().String()

	go func() {
		if err := a.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()
	a.logger.Info("Metrics listening", "addr", a.metricsAddr)
	return nil
}

func (a *App) stopMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		a.logger.Warn("Failed to stop metrics server", "error", err)
	}
}
