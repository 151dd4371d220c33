package metrics

import "context"

// Discard 返回一个丢弃所有指标的 Meter。
// 用于测试或禁用指标收集的场景。
func Discard() Meter {
	return noopMeter{}
}

type noopMeter struct{}

func (noopMeter) Counter(string, string) (Counter, error)     { return noopCounter{}, nil }
func (noopMeter) Gauge(string, string) (Gauge, error)         { return noopGauge{}, nil }
func (noopMeter) Histogram(string, string) (Histogram, error) { return noopHistogram{}, nil }
func (noopMeter) Shutdown(context.Context) error              { return nil }

type noopCounter struct{}

func (noopCounter) Inc(context.Context, ...Label)          {}
func (noopCounter) Add(context.Context, float64, ...Label) {}

type noopGauge struct{}

func (noopGauge) Set(context.Context, float64, ...Label) {}

type noopHistogram struct{}

func (noopHistogram) Record(context.Context, float64, ...Label) {}
