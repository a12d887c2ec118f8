package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/SteelMorgan/log-forwarder/internal/clickhouse"
	"github.com/SteelMorgan/log-forwarder/internal/config"
	"github.com/SteelMorgan/log-forwarder/internal/filereader"
	"github.com/SteelMorgan/log-forwarder/internal/metrics"
	"github.com/SteelMorgan/log-forwarder/internal/observability"
	"github.com/SteelMorgan/log-forwarder/internal/offset"
	"github.com/SteelMorgan/log-forwarder/internal/service"
	"github.com/SteelMorgan/log-forwarder/internal/writer"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser := observability.InitLogger(cfg.LogLevel, cfg.LogFile)
	defer logCloser.Close()

	log.Info().
		Str("version", version).
		Str("host", cfg.Hostname).
		Str("output", cfg.Output).
		Msg("Starting log forwarder")

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("Log forwarder failed")
		logCloser.Close()
		os.Exit(1)
	}

	log.Info().Msg("Log forwarder stopped")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := observability.InitTracer(observability.TracerConfig{
		ServiceName:    "log-forwarder",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Protocol:       cfg.OTLPProtocol,
		SampleRatio:    cfg.TraceSampleRatio,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	} else {
		defer shutdownTracer(context.Background())
	}

	groups, err := config.LoadFileGroups(cfg.FilesConfigPath)
	if err != nil {
		return err
	}

	store, err := offset.NewBoltDBStore(cfg.OffsetDBPath)
	if err != nil {
		return fmt.Errorf("failed to open offset store: %w", err)
	}
	defer store.Close()

	adapter, closeOutput, err := newAdapter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeOutput()

	if cfg.MetricsPort > 0 {
		metricsServer := metrics.NewServer(cfg.MetricsPort)
		metricsServer.Start()
		defer func() {
			if err := metricsServer.Stop(); err != nil {
				log.Error().Err(err).Msg("Error stopping metrics server")
			}
		}()
	}

	reader := filereader.New(cfg.SpoolSize, cfg.Hostname, adapter)
	svc, err := service.NewForwarderService(afero.NewOsFs(), groups, reader, store, cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("failed to create forwarder service: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()

	log.Info().Msg("Forwarder service started successfully")

	var svcErr error
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		svcErr = <-done
	case svcErr = <-done:
	}

	log.Info().Msg("Shutting down gracefully...")
	if err := svc.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}

	if svcErr != nil && !errors.Is(svcErr, context.Canceled) {
		return svcErr
	}
	return nil
}

// newAdapter builds the configured output and a function releasing it
func newAdapter(ctx context.Context, cfg *config.Config) (writer.Adapter, func(), error) {
	retryCfg := cfg.RetryConfig()

	switch cfg.Output {
	case config.OutputClickHouse:
		client, err := clickhouse.NewClient(ctx, clickhouse.Options{
			Host:     cfg.ClickHouseHost,
			Port:     cfg.ClickHousePort,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		}, retryCfg)
		if err != nil {
			return nil, nil, err
		}
		w := writer.NewClickHouseWriter(client.Conn(), cfg.ClickHouseQualifiedTable(), retryCfg)
		if err := w.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to create events table: %w", err)
		}
		return w, func() {
			w.Close()
			client.Close()
		}, nil

	case config.OutputCloudWatch:
		w, err := writer.NewCloudWatchWriter(ctx, cfg.CloudWatchRegion, cfg.CloudWatchLogGroup, cfg.CloudWatchLogStream, retryCfg)
		if err != nil {
			return nil, nil, err
		}
		return w, func() { w.Close() }, nil

	default:
		w := writer.NewStdoutWriter(os.Stdout)
		return w, func() { w.Close() }, nil
	}
}
