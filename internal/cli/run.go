package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devrev/toypay/internal/csvio"
	"github.com/devrev/toypay/internal/engine"
	"github.com/devrev/toypay/internal/metrics"
	"github.com/devrev/toypay/internal/server"
	"github.com/devrev/toypay/internal/storage"
)

func runLedger(cmd *cobra.Command, opts *options, path string) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	store, err := storage.NewStore(&storage.Config{
		Partitions:          cfg.Partitions.Count,
		TransactionCapacity: cfg.Partitions.TransactionCapacity,
	}, logger, m)
	if err != nil {
		return fmt.Errorf("failed to allocate store: %w", err)
	}
	eng := engine.NewEngine(store, logger, m)

	if cfg.Metrics.Enabled {
		ms := server.NewMetricsServer(&server.MetricsServerConfig{
			Port:    cfg.Metrics.Port,
			Path:    cfg.Metrics.Path,
			Refresh: func() { store.Stats() },
		}, registry, logger)
		if err := ms.Start(); err != nil {
			return err
		}
		defer func() {
			if err := ms.Stop(); err != nil {
				logger.Error("Failed to stop metrics server", zap.Error(err))
			}
		}()
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	reader, err := csvio.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := eng.Run(ctx, reader, engine.RunOptions{
		Workers:     cfg.Engine.Workers,
		QueueSize:   cfg.Engine.QueueSize,
		StopTimeout: cfg.Engine.StopTimeout,
	}); err != nil {
		return err
	}

	return csvio.WriteSnapshots(cmd.OutOrStdout(), eng.Snapshot())
}
