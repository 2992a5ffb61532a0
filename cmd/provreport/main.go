// Package main implements the entry point for the provreport daemon.
// Provreport tails a data-flow engine's lineage event stream, classifies
// each event as Info or Error, and forwards the results to the enabled
// sinks: an Elasticsearch index, grouped email alerts, and a JetStream
// subject hierarchy.
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

	"github.com/c360/provreport/classify"
	"github.com/c360/provreport/config"
	"github.com/c360/provreport/metric"
	"github.com/c360/provreport/natsclient"
	"github.com/c360/provreport/normalize"
	"github.com/c360/provreport/pipeline"
	"github.com/c360/provreport/sink"
	"github.com/c360/provreport/sink/elastic"
	"github.com/c360/provreport/sink/email"
	"github.com/c360/provreport/sink/stream"
	"github.com/c360/provreport/source/file"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "provreport"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
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
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// CLI flags override the configured logging settings.
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	slog.Info("Starting provreport (lineage event reporting)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	ctx := context.Background()
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	registry := metric.NewMetricsRegistry()
	metrics := registry.CoreMetrics()

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		go func() {
			if serr := metricsServer.Start(); serr != nil {
				slog.Error("Metrics server failed", "error", serr)
			}
		}()
		slog.Info("Metrics server started", "address", metricsServer.Address())
	}

	sinks, natsClient, err := buildSinks(signalCtx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer func() { _ = natsClient.Close(ctx) }()
	}
	if len(sinks) == 0 {
		slog.Warn("No sinks enabled, events will be consumed but not delivered")
	}

	p, err := buildPipeline(cfg, sinks, logger, metrics)
	if err != nil {
		return err
	}

	if cliCfg.Once {
		err = p.Run(signalCtx)
	} else {
		p.RunEvery(signalCtx, cfg.Source.PollInterval.Std())
	}

	shutdown(metricsServer)

	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}
	slog.Info("provreport shutdown complete")
	return nil
}

// buildSinks constructs every enabled sink. The returned NATS client is
// non-nil only when the stream sink is enabled; the caller owns closing
// it.
func buildSinks(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	metrics *metric.Metrics,
) ([]sink.Sink, *natsclient.Client, error) {
	var sinks []sink.Sink

	if cfg.Sinks.Elastic.Enabled {
		s, err := elastic.NewSink(cfg.Sinks.Elastic.Config, logger, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("create elastic sink: %w", err)
		}
		sinks = append(sinks, s)
		slog.Info("Elastic sink enabled", "url", cfg.Sinks.Elastic.URL, "index", cfg.Sinks.Elastic.Index)
	}

	if cfg.Sinks.Email.Enabled {
		s, err := email.NewSink(cfg.Sinks.Email.Config, logger, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("create email sink: %w", err)
		}
		sinks = append(sinks, s)
		slog.Info("Email sink enabled", "host", cfg.Sinks.Email.Host, "port", cfg.Sinks.Email.Port)
	}

	var natsClient *natsclient.Client
	if cfg.Sinks.Stream.Enabled {
		var err error
		natsClient, err = natsclient.NewClient(cfg.Sinks.Stream.URL, natsclient.WithName(appName))
		if err != nil {
			return nil, nil, fmt.Errorf("create NATS client: %w", err)
		}
		if err := natsClient.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("connect to NATS: %w", err)
		}

		s, err := stream.NewSink(cfg.Sinks.Stream.Config, natsClient, logger, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("create stream sink: %w", err)
		}
		if err := s.EnsureStream(ctx, natsClient); err != nil {
			return nil, nil, fmt.Errorf("ensure stream: %w", err)
		}
		sinks = append(sinks, s)
		slog.Info("Stream sink enabled",
			"url", cfg.Sinks.Stream.URL,
			"stream", cfg.Sinks.Stream.StreamName,
			"subject_prefix", cfg.Sinks.Stream.SubjectPrefix)
	}

	return sinks, natsClient, nil
}

// buildPipeline wires the source, normalizer and classifier together.
func buildPipeline(
	cfg *config.Config,
	sinks []sink.Sink,
	logger *slog.Logger,
	metrics *metric.Metrics,
) (*pipeline.Pipeline, error) {
	uris, err := normalize.NewURIBuilder(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("build content URIs: %w", err)
	}

	src, err := file.NewSource(cfg.Source, cfg.Source.DirectoryPath, logger)
	if err != nil {
		return nil, fmt.Errorf("create file source: %w", err)
	}

	return pipeline.New(pipeline.Params{
		Source:     src,
		Normalizer: normalize.NewNormalizer(uris, time.Now),
		Classifier: classify.NewClassifier(cfg.Classify.ToClassifyConfig(), logger),
		Sinks:      sinks,
		BatchSize:  cfg.Source.BatchSize,
		Clustering: cfg.Clustering,
		Logger:     logger,
		Metrics:    metrics,
	})
}

// shutdown stops the auxiliary servers, tolerating partial failures.
func shutdown(metricsServer *metric.Server) {
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			slog.Error("Error stopping metrics server", "error", err)
		}
	}
}
