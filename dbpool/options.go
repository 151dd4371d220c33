package dbpool

import (
	"github.com/opencivic/permitwatch/clog"
	"github.com/opencivic/permitwatch/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用）
type options struct {
	logger   clog.Logger
	meter    metrics.Meter
	driver   string
	setup    SetupFunc
	setupSet bool
}

// WithLogger 设置 Logger，传入 nil 时使用 clog.Discard()
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = clog.Discard()
		} else {
			o.logger = logger
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithDriver 覆盖后端默认的 database/sql 驱动名。
// 用于测试或需要替代驱动的部署。
func WithDriver(driver string) Option {
	return func(o *options) {
		o.driver = driver
	}
}

// WithSetup 覆盖默认的会话初始化函数（语句超时安装）。
// 传入 nil 表示跳过会话初始化。
func WithSetup(setup SetupFunc) Option {
	return func(o *options) {
		o.setup = setup
		o.setupSet = true
	}
}
