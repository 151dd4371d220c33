// Package breaker 提供按类别隔离的熔断器组件。
//
// 每个逻辑查询类别（如某个可选的富化 join）独立跟踪失败记录：
// 滑动窗口内的失败数达到阈值后该类别进入打开状态，冷却期内
// 对应的查询应被跳过；冷却期结束后自动恢复为闭合，一次成功上报
// 则无条件清空该类别的全部状态。
//
// 熔断器自身从不返回业务错误，它只维护状态；调用方在尝试高风险
// 查询前通过 IsOpen 判断，并在事后上报结果：
//
//	brk, _ := breaker.New(&breaker.Config{
//	    MaxFailures: 3,
//	    Window:      60 * time.Second,
//	    Cooldown:    30 * time.Second,
//	}, breaker.WithLogger(logger))
//
//	if !brk.IsOpen("inspections-join") {
//	    if err := runJoin(ctx); err != nil {
//	        brk.RecordFailure("inspections-join")
//	    } else {
//	        brk.RecordSuccess("inspections-join")
//	    }
//	}
//
// 类别打开时调用方降级（跳过可选数据），而不是返回错误。
package breaker

import (
	"time"

	"github.com/opencivic/permitwatch/clog"
)

// Breaker 熔断器核心接口。
//
// 进程内共享单个实例；类别是调用方自由选择的字符串，
// 不同类别之间完全独立。所有方法均为并发安全。
type Breaker interface {
	// IsOpen 返回该类别当前是否处于打开状态。
	// 作为副作用，会剔除滑动窗口之外的过期失败记录。
	IsOpen(category string) bool

	// RecordFailure 上报一次失败。
	// 窗口内失败数达到阈值时该类别进入打开状态。
	RecordFailure(category string)

	// RecordSuccess 上报一次成功，无条件清空该类别的
	// 失败历史和打开状态。
	RecordSuccess(category string)

	// GetStatus 返回当前有失败历史的类别及其状态，
	// 供运维面板展示。没有历史（或已被成功清空）的类别不出现。
	GetStatus() map[string]CategoryStatus
}

// CategoryStatus 单个类别的对外状态快照
type CategoryStatus struct {
	// Open 是否处于打开状态
	Open bool `json:"open"`
	// Failures 窗口内的失败次数
	Failures int `json:"failures"`
}

// Config 熔断器配置。
// 阈值是构造期常量，不接入外部配置。
type Config struct {
	// MaxFailures 触发熔断的失败次数阈值（默认 3）
	MaxFailures int `json:"max_failures" yaml:"max_failures"`

	// Window 统计失败的滑动窗口（默认 60s）
	Window time.Duration `json:"window" yaml:"window"`

	// Cooldown 打开状态的持续时间，超时后自动恢复（默认 30s）
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown"`
}

// setDefaults 填充默认值（内部使用）
func (c *Config) setDefaults() {
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.Window == 0 {
		c.Window = 60 * time.Second
	}
	if c.Cooldown == 0 {
		c.Cooldown = 30 * time.Second
	}
}

// New 创建熔断器实例。
//
// 参数:
//   - cfg: 熔断器配置，nil 时返回 ErrConfigNil
//   - opts: 可选参数 (Logger, Meter)
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	cfg.setDefaults()

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	if opt.logger == nil {
		opt.logger = clog.Discard()
	}

	opt.logger.Info("circuit breaker created",
		clog.Int("max_failures", cfg.MaxFailures),
		clog.Duration("window", cfg.Window),
		clog.Duration("cooldown", cfg.Cooldown))

	return newBreaker(cfg, opt.logger, opt.meter), nil
}
