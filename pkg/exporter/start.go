package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MatteoMori/vaultmonitor/pkg/monitor"
	"github.com/MatteoMori/vaultmonitor/pkg/prometheus"
	"github.com/MatteoMori/vaultmonitor/pkg/shared"
	"github.com/MatteoMori/vaultmonitor/pkg/vault"
)

/*
Start runs the exporter until ctx is cancelled or a sweep fails.

  1. Validate the configuration, including the label schema, before talking to Vault
  2. Authenticate against Vault
  3. Build every monitor
  4. Serve /metrics and poll the monitors side by side
*/
func Start(ctx context.Context, config shared.Config) error {
	shared.SetupLogging(config.LogLevel)
	slog.Info("Starting vault monitor")
	slog.Debug("Loaded vault monitor config",
		slog.Int("port", config.Port),
		slog.Int("refresh_interval", config.RefreshInterval),
		slog.Int("services", len(config.ExpirationMonitoring.Services)))

	if err := config.Validate(); err != nil {
		return err
	}
	if err := monitor.CheckLabelSchema(config.ExpirationMonitoring); err != nil {
		return err
	}

	client, err := vault.NewClient(ctx, config.Vault)
	if err != nil {
		return fmt.Errorf("failed to set up the vault client: %w", err)
	}

	return run(ctx, config, client.Logical())
}

// run builds the monitors on reader and drives them together with the metrics endpoint.
func run(ctx context.Context, config shared.Config, reader monitor.Reader) error {
	registry := prometheus.NewRegistry()

	monitors, err := monitor.Build(ctx, config.ExpirationMonitoring, reader, registry)
	if err != nil {
		return fmt.Errorf("failed to build monitors: %w", err)
	}
	registry.SetConfiguredMonitors(len(monitors))
	slog.Info("Monitors configured", slog.Int("count", len(monitors)))

	poller := &Poller{
		Monitors: monitors,
		Interval: time.Duration(config.RefreshInterval) * time.Second,
		Observe:  registry.ObserveSweep,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return prometheus.Serve(gctx, config.Port, registry.Gatherer())
	})
	g.Go(func() error {
		return poller.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Vault monitor stopped")
	return nil
}
