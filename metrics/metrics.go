package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

// New 创建 Meter 实例。
//
// cfg.Enabled 为 false 时返回 noop Meter；
// cfg.Port 大于 0 时启动 Prometheus 指标暴露服务器。
func New(cfg *Config) (Meter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if !cfg.Enabled {
		return Discard(), nil
	}
	cfg.setDefaults()

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	if cfg.Port > 0 {
		go serveExposition(cfg)
	}

	return &meterImpl{
		meter:    mp.Meter("permitwatch"),
		provider: mp,
	}, nil
}

// serveExposition 启动 Prometheus 指标暴露的 HTTP 服务器
func serveExposition(cfg *Config) {
	addr := fmt.Sprintf(":%d", cfg.Port)
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	slog.Default().Info("starting prometheus metrics server", "addr", addr, "path", cfg.Path)
	server := &http.Server{Addr: addr, Handler: mux}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Default().Error("prometheus server error", "error", err)
	}
}

// meterImpl 实现 Meter 接口
type meterImpl struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
}

func (m *meterImpl) Counter(name string, desc string) (Counter, error) {
	c, err := m.meter.Float64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return nil, err
	}
	return &counterImpl{counter: c}, nil
}

func (m *meterImpl) Gauge(name string, desc string) (Gauge, error) {
	g, err := m.meter.Float64Gauge(name, metric.WithDescription(desc))
	if err != nil {
		return nil, err
	}
	return &gaugeImpl{gauge: g}, nil
}

func (m *meterImpl) Histogram(name string, desc string) (Histogram, error) {
	h, err := m.meter.Float64Histogram(name, metric.WithDescription(desc))
	if err != nil {
		return nil, err
	}
	return &histogramImpl{histogram: h}, nil
}

func (m *meterImpl) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

type counterImpl struct {
	counter metric.Float64Counter
}

func (c *counterImpl) Inc(ctx context.Context, labels ...Label) {
	c.counter.Add(ctx, 1, metric.WithAttributes(labels...))
}

func (c *counterImpl) Add(ctx context.Context, val float64, labels ...Label) {
	c.counter.Add(ctx, val, metric.WithAttributes(labels...))
}

type gaugeImpl struct {
	gauge metric.Float64Gauge
}

func (g *gaugeImpl) Set(ctx context.Context, val float64, labels ...Label) {
	g.gauge.Record(ctx, val, metric.WithAttributes(labels...))
}

type histogramImpl struct {
	histogram metric.Float64Histogram
}

func (h *histogramImpl) Record(ctx context.Context, val float64, labels ...Label) {
	h.histogram.Record(ctx, val, metric.WithAttributes(labels...))
}
