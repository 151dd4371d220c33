// Package clog 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，不暴露底层实现（slog）
//   - 支持层级命名空间，便于区分组件来源
//   - 零外部依赖（仅依赖 Go 标准库）
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger.Info("pool created", clog.Int("max", 50))
//
// 派生子 Logger：
//
//	poolLogger := logger.WithNamespace("dbpool")
//	poolLogger.Warn("pool exhausted", clog.Int("in_use", 50))
package clog

import "context"

// Logger 日志接口，提供结构化日志记录功能。
//
// 支持 Debug、Info、Warn、Error 四个级别，
// 每个级别都有带 Context 和不带 Context 的版本。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger。
	With(fields ...Field) Logger

	// WithNamespace 创建一个扩展命名空间的子 Logger。
	// 命名空间会追加到现有命名空间之后，以 "." 连接。
	WithNamespace(parts ...string) Logger
}

// New 创建一个新的 Logger 实例。
//
// config 为 nil 时使用默认配置（info 级别、console 格式、stdout 输出）。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = &Config{}
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	return newLogger(config, o)
}

// Option 配置 Logger 实例的选项。
type Option func(*options)

type options struct {
	namespace []string
}

// WithNamespace 在创建时指定初始命名空间。
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespace = append(o.namespace, parts...)
	}
}
