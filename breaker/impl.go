package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/opencivic/permitwatch/clog"
	"github.com/opencivic/permitwatch/metrics"
)

// categoryState 单个类别的失败记录。
// failures 按时间升序保存窗口内的失败时间戳，惰性剔除；
// openUntil 非零且在未来时该类别处于打开状态。
type categoryState struct {
	failures  []time.Time
	openUntil time.Time
}

// circuitBreaker 熔断器实现（非导出）
type circuitBreaker struct {
	cfg    *Config
	logger clog.Logger
	meter  metrics.Meter

	mu     sync.Mutex
	states map[string]*categoryState

	// now 可注入的时钟，测试用
	now func() time.Time
}

func newBreaker(cfg *Config, logger clog.Logger, meter metrics.Meter) *circuitBreaker {
	return &circuitBreaker{
		cfg:    cfg,
		logger: logger,
		meter:  meter,
		states: make(map[string]*categoryState),
		now:    time.Now,
	}
}

// IsOpen 返回该类别当前是否处于打开状态
func (cb *circuitBreaker) IsOpen(category string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	st, ok := cb.states[category]
	if !ok {
		return false
	}

	now := cb.now()
	cb.prune(st, now)

	// 冷却期结束即视为闭合，但失败历史保留，
	// 新的失败可以立刻再次触发熔断
	return st.openUntil.After(now)
}

// RecordFailure 上报一次失败，达到阈值时打开该类别
func (cb *circuitBreaker) RecordFailure(category string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	st, ok := cb.states[category]
	if !ok {
		st = &categoryState{}
		cb.states[category] = st
	}

	now := cb.now()
	cb.prune(st, now)
	st.failures = append(st.failures, now)

	cb.recordCounter(MetricFailuresTotal, "Recorded category failures", category)

	if len(st.failures) >= cb.cfg.MaxFailures && !st.openUntil.After(now) {
		st.openUntil = now.Add(cb.cfg.Cooldown)
		cb.logger.Warn("circuit breaker opened",
			clog.String("category", category),
			clog.Int("failures", len(st.failures)),
			clog.Time("open_until", st.openUntil))
		cb.recordCounter(MetricTripsTotal, "Circuit breaker trips", category)
	}
}

// RecordSuccess 上报一次成功，整体清空该类别
func (cb *circuitBreaker) RecordSuccess(category string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	st, ok := cb.states[category]
	if !ok {
		return
	}

	if st.openUntil.After(cb.now()) {
		cb.logger.Info("circuit breaker closed by success",
			clog.String("category", category))
	}
	delete(cb.states, category)
}

// GetStatus 返回所有仍被跟踪的类别状态
func (cb *circuitBreaker) GetStatus() map[string]CategoryStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	status := make(map[string]CategoryStatus, len(cb.states))
	for category, st := range cb.states {
		cb.prune(st, now)
		open := st.openUntil.After(now)
		if len(st.failures) == 0 && !open {
			delete(cb.states, category)
			continue
		}
		status[category] = CategoryStatus{
			Open:     open,
			Failures: len(st.failures),
		}
	}
	return status
}

// prune 剔除滑动窗口之外的失败记录，调用方须持有锁
func (cb *circuitBreaker) prune(st *categoryState, now time.Time) {
	cutoff := now.Add(-cb.cfg.Window)
	idx := 0
	for idx < len(st.failures) && !st.failures[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		st.failures = append(st.failures[:0], st.failures[idx:]...)
	}
}

func (cb *circuitBreaker) recordCounter(name, desc, category string) {
	if cb.meter == nil {
		return
	}
	if counter, err := cb.meter.Counter(name, desc); err == nil && counter != nil {
		counter.Inc(context.Background(), metrics.L(LabelCategory, category))
	}
}
