package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/hostwatch/internal/collector"
	"codeberg.org/mutker/hostwatch/internal/config"
	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/instances"
	"codeberg.org/mutker/hostwatch/internal/logger"
	"codeberg.org/mutker/hostwatch/internal/metadata"
	"codeberg.org/mutker/hostwatch/internal/metrics"
	"codeberg.org/mutker/hostwatch/internal/pid"
	"codeberg.org/mutker/hostwatch/internal/report"
	"codeberg.org/mutker/hostwatch/internal/sampler"
)

const shutdownTimeout = 5 * time.Second

// runFunc produces and writes one document.
type runFunc func(ctx context.Context) error

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		logger.FatalWithCode(errors.Coded(err, errors.ErrInitFailed)).Msg("failed to load config")
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().
		Str("mode", cfg.Mode).
		Int("interval", cfg.Interval).
		Str("output_dir", cfg.OutputDir).
		Msg("Config loaded")
}

func main() {
	if err := run(); err != nil {
		logger.FatalWithCode(errors.Coded(err, errors.ErrMainLoop)).Msg("hostwatch stopped")
	}
}

// run returns once every deferred cleanup has completed.
func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if cfg.Interval > 0 {
		if err := pid.Write(cfg.PIDFile); err != nil {
			return err
		}
		defer func() {
			if err := pid.Remove(cfg.PIDFile); err != nil {
				logger.Error().Err(err).Msg("failed to remove PID file")
			}
		}()
	}

	publisher, err := metrics.NewPublisher(ctx, metricsConfig(cfg))
	if err != nil {
		return errors.Coded(err, errors.ErrInitFailed)
	}
	defer cleanup(publisher)

	writer := report.NewWriter(cfg.OutputDir, os.Stdout)

	var cycle runFunc
	switch config.Mode(cfg.Mode) {
	case config.ModeMetadata:
		cycle = metadataCycle(writer)
	case config.ModeInstances:
		cycle = instancesCycle(writer)
	default:
		agg, err := collector.NewFromConfig(cfg, sampler.NewHost(), sampler.NewNetProber(), collector.PlaceholderPerformance{})
		if err != nil {
			return errors.Coded(err, errors.ErrInitFailed)
		}
		defer func() {
			if err := agg.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close collectors")
			}
		}()
		cycle = collectCycle(agg, writer, publisher)
	}

	return loop(ctx, cycle)
}

// loop runs cycle once, or every interval until ctx is cancelled. Failed
// cycles are logged and do not stop the interval loop.
func loop(ctx context.Context, cycle runFunc) error {
	if cfg.Interval <= 0 {
		return cycle(ctx)
	}

	interval := cfg.IntervalDuration()
	logger.Info().Dur("interval", interval).Str("mode", cfg.Mode).Msg("Starting collection loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.ErrorWithCode(errors.Coded(err, errors.ErrOperationFailed)).Msg("collection cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func collectCycle(agg *collector.Aggregator, writer *report.Writer, publisher metrics.Publisher) runFunc {
	return func(ctx context.Context) error {
		batch := agg.CollectAll(ctx)

		for domain, alert := range batch.Alerts() {
			if alert {
				logger.Warn().Str("domain", domain).Msg("Alert triggered")
			}
		}

		if err := publisher.Record(ctx, &batch); err != nil {
			logger.Error().Err(err).Msg("failed to publish metrics")
		}

		_, err := writer.Write(report.PrefixMonitoring, batch)
		return err
	}
}

func metadataCycle(writer *report.Writer) runFunc {
	client := metadata.NewClient(metadata.ClientOptions{
		Endpoint: cfg.Metadata.Endpoint,
		Timeout:  cfg.Metadata.Timeout,
		TokenTTL: cfg.Metadata.TokenTTL,
	})

	return func(ctx context.Context) error {
		doc := client.Collect(ctx, metadata.DefaultConcurrency)

		_, err := writer.Write(report.PrefixMetadata, doc)
		return err
	}
}

// instancesReport is the document written in instances mode.
type instancesReport struct {
	Regions  map[string][]instances.Record `json:"Regions"`
	LookupIP string                        `json:"LookupIP,omitempty"`
	Match    *instances.Record             `json:"Match,omitempty"`
}

func instancesCycle(writer *report.Writer) runFunc {
	directory := instances.NewDirectory(instances.NewEC2Enumerator(instances.Credentials{
		AccessKeyID:     cfg.Instances.AccessKeyID,
		SecretAccessKey: cfg.Instances.SecretAccessKey,
	}))

	return func(ctx context.Context) error {
		regions, err := instanceRegions(ctx)
		if err != nil {
			return err
		}

		doc := instancesReport{
			Regions:  make(map[string][]instances.Record, len(regions)),
			LookupIP: cfg.Instances.LookupIP,
		}
		for _, region := range regions {
			records, err := directory.List(ctx, region)
			if err != nil {
				return err
			}
			doc.Regions[region] = records
		}

		if doc.LookupIP != "" {
			record, err := directory.FindByIP(doc.LookupIP)
			switch {
			case err == nil:
				doc.Match = &record
			case errors.CodeOf(err) == errors.ErrNotFound:
				logger.Info().Str("ip", doc.LookupIP).Msg("No instance matches the lookup IP")
			default:
				return err
			}
		}

		_, err = writer.Write(report.PrefixInstances, doc)
		return err
	}
}

// instanceRegions falls back to the region of the running instance.
func instanceRegions(ctx context.Context) ([]string, error) {
	if len(cfg.Instances.Regions) > 0 {
		return cfg.Instances.Regions, nil
	}

	identity, err := instances.CurrentInstance(ctx, cfg.Metadata.Endpoint)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("instance_id", identity.InstanceID).Str("region", identity.Region).Msg("Using current region")

	return []string{identity.Region}, nil
}

func metricsConfig(c *config.Config) metrics.Config {
	return metrics.Config{
		Enabled:     c.Metrics.Enabled,
		Exporter:    c.Metrics.Exporter,
		Endpoint:    c.Metrics.Endpoint,
		Insecure:    c.Metrics.Insecure,
		ServiceName: c.Metrics.ServiceName,
		Interval:    c.Metrics.Interval,
		Attributes:  c.Metrics.Attributes,
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup(publisher metrics.Publisher) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := publisher.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down metrics publisher")
	}
	logger.Info().Msg("Exiting...")
}
