package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

// Metrics exposes application-level instruments for the metering pipeline.
type Metrics struct {
	checksAllowed metric.Int64Counter
	checksDenied  metric.Int64Counter
	records       metric.Int64Counter
	revokes       metric.Int64Counter
	syncRuns      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "metering"
	}
	meter := provider.Meter(name)

	checksAllowed, err := meter.Int64Counter("metering_checks_allowed_total")
	if err != nil {
		return nil, err
	}
	checksDenied, err := meter.Int64Counter("metering_checks_denied_total")
	if err != nil {
		return nil, err
	}
	records, err := meter.Int64Counter("metering_records_total")
	if err != nil {
		return nil, err
	}
	revokes, err := meter.Int64Counter("metering_revokes_total")
	if err != nil {
		return nil, err
	}
	syncRuns, err := meter.Int64Counter("metering_quota_sync_runs_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checksAllowed: checksAllowed,
		checksDenied:  checksDenied,
		records:       records,
		revokes:       revokes,
		syncRuns:      syncRuns,
	}, nil
}

func (m *Metrics) RecordCheck(ctx context.Context, code string, allowed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("metric_code", code))
	if allowed {
		m.checksAllowed.Add(ctx, 1, attrs)
		return
	}
	m.checksDenied.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordUsage(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.records.Add(ctx, 1, metric.WithAttributes(attribute.String("metric_code", code)))
}

func (m *Metrics) RecordRevoke(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.revokes.Add(ctx, 1, metric.WithAttributes(attribute.String("metric_code", code)))
}

func (m *Metrics) RecordSync(ctx context.Context, succeeded bool) {
	if m == nil {
		return
	}
	m.syncRuns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", succeeded)))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}
