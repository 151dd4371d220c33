// Package metrics 提供统一的指标收集能力。
// 基于 OpenTelemetry 标准构建，通过 Prometheus Exporter 暴露指标。
//
// 快速开始：
//
//	meter, err := metrics.New(&metrics.Config{
//	    Enabled:     true,
//	    ServiceName: "permitwatch",
//	    Port:        9090,
//	    Path:        "/metrics",
//	})
//	defer meter.Shutdown(context.Background())
//
//	counter, _ := meter.Counter("checkouts_total", "连接检出总数")
//	counter.Inc(ctx, metrics.L("backend", "postgres"))
package metrics

import "context"

// Counter 计数器接口
// 用于记录只能增加的累计值，例如检出次数、熔断次数等。
type Counter interface {
	// Inc 将计数器增加 1
	Inc(ctx context.Context, labels ...Label)
	// Add 将计数器增加给定的值
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 仪表盘接口
// 用于记录可增可减的瞬时值，例如在用连接数、空闲连接数。
type Gauge interface {
	// Set 将仪表盘设置为给定的值
	Set(ctx context.Context, val float64, labels ...Label)
}

// Histogram 直方图接口
// 用于记录值的分布，例如检出耗时。
type Histogram interface {
	// Record 记录一次观测值
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标入口接口
type Meter interface {
	Counter(name string, desc string) (Counter, error)
	Gauge(name string, desc string) (Gauge, error)
	Histogram(name string, desc string) (Histogram, error)

	// Shutdown 关闭底层 MeterProvider，flush 未导出的指标
	Shutdown(ctx context.Context) error
}
