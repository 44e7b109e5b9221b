package metrics

import (
	"context"
	"sync"

	"codeberg.org/mutker/hostwatch/internal/collector"
	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var log = logger.Component("metrics")

// Option adjusts how a publisher is built.
type Option func(*options)

type options struct {
	reader sdkmetric.Reader
}

// WithReader replaces the exporter-backed periodic reader.
func WithReader(reader sdkmetric.Reader) Option {
	return func(o *options) {
		o.reader = reader
	}
}

type publisher struct {
	cfg      Config
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	mu     sync.RWMutex
	latest *collector.MonitoringBatch

	batches      metric.Int64Counter
	failures     metric.Int64Counter
	alerts       map[string]metric.Int64ObservableGauge
	readings     []metric.Float64ObservableGauge
	registration metric.Registration
}

// No-op implementation
type noopPublisher struct{}

func NewPublisher(ctx context.Context, cfg Config, opts ...Option) (Publisher, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If metrics is disabled, return a no-op publisher
	if !cfg.Enabled {
		log.Debug().Msg("Metrics publishing disabled, using no-op publisher")
		return &noopPublisher{}, nil
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	reader := o.reader
	if reader == nil {
		exporter, err := newExporter(ctx, cfg)
		if err != nil {
			return nil, errFactory.Wrap(ErrExporterInit, err)
		}

		var readerOpts []sdkmetric.PeriodicReaderOption
		if cfg.Interval > 0 {
			readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
		}
		reader = sdkmetric.NewPeriodicReader(exporter, readerOpts...)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, errFactory.Wrap(ErrResource, err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)

	p := &publisher{
		cfg:      cfg,
		provider: provider,
		meter:    provider.Meter(serviceName(cfg)),
		alerts:   make(map[string]metric.Int64ObservableGauge, len(domains)),
	}

	if err := p.registerInstruments(); err != nil {
		_ = provider.Shutdown(ctx)
		return nil, errFactory.Wrap(ErrInstruments, err)
	}

	log.Debug().
		Str("exporter", cfg.Exporter).
		Str("endpoint", cfg.Endpoint).
		Dur("interval", cfg.Interval).
		Msg("Metrics publisher initialized")

	return p, nil
}

func serviceName(cfg Config) string {
	if cfg.ServiceName == "" {
		return defaultServiceName
	}
	return cfg.ServiceName
}

func newExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	}

	return nil, errors.New().WithData(ErrInvalidExporter, cfg.Exporter)
}

func newResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName(cfg)),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attrs...),
	)
}

func (p *publisher) registerInstruments() error {
	var err error

	p.batches, err = p.meter.Int64Counter(
		"hostwatch.batches",
		metric.WithDescription("Collection cycles completed"),
	)
	if err != nil {
		return err
	}

	p.failures, err = p.meter.Int64Counter(
		"hostwatch.collection.errors",
		metric.WithDescription("Domain snapshots that carried an error, by domain"),
	)
	if err != nil {
		return err
	}

	observables := make([]metric.Observable, 0, len(domains)+len(readings))

	for _, domain := range domains {
		gauge, err := p.meter.Int64ObservableGauge(
			alertName(domain),
			metric.WithDescription("1 when the "+domain+" snapshot raised an alert"),
		)
		if err != nil {
			return err
		}
		p.alerts[domain] = gauge
		observables = append(observables, gauge)
	}

	for _, r := range readings {
		gauge, err := p.meter.Float64ObservableGauge(
			r.name,
			metric.WithDescription(r.description),
			metric.WithUnit(r.unit),
		)
		if err != nil {
			return err
		}
		p.readings = append(p.readings, gauge)
		observables = append(observables, gauge)
	}

	p.registration, err = p.meter.RegisterCallback(p.observe, observables...)

	return err
}

// observe reports the latest batch; nothing is reported before the first.
func (p *publisher) observe(_ context.Context, o metric.Observer) error {
	p.mu.RLock()
	batch := p.latest
	p.mu.RUnlock()

	if batch == nil {
		return nil
	}

	alerts := batch.Alerts()
	for domain, gauge := range p.alerts {
		o.ObserveInt64(gauge, boolToInt(alerts[domain]))
	}

	for i, r := range readings {
		gauge := p.readings[i]
		r.observe(batch, func(value float64, attrs ...attribute.KeyValue) {
			o.ObserveFloat64(gauge, value, metric.WithAttributes(attrs...))
		})
	}

	return nil
}

// Record makes batch the source of every gauge until the next call.
func (p *publisher) Record(ctx context.Context, batch *collector.MonitoringBatch) error {
	if batch == nil {
		return errors.New().New(ErrInvalidMetrics)
	}

	p.mu.Lock()
	p.latest = batch
	p.mu.Unlock()

	p.batches.Add(ctx, 1)
	for _, domain := range domainErrors(batch) {
		p.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("domain", domain)))
	}

	return nil
}

func (p *publisher) Shutdown(ctx context.Context) error {
	errFactory := errors.New()

	if p.registration != nil {
		if err := p.registration.Unregister(); err != nil {
			return errFactory.Wrap(ErrServiceShutdown, err)
		}
	}

	if err := p.provider.Shutdown(ctx); err != nil {
		return errFactory.Wrap(ErrServiceShutdown, err)
	}

	return nil
}

func (*publisher) Enabled() bool {
	return true
}

func (*noopPublisher) Record(_ context.Context, _ *collector.MonitoringBatch) error {
	return nil
}

func (*noopPublisher) Shutdown(_ context.Context) error {
	return nil
}

func (*noopPublisher) Enabled() bool {
	return false
}
