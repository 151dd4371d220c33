package clog

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

var nowFunc = time.Now

// loggerImpl 是 Logger 接口的具体实现
type loggerImpl struct {
	handler   slog.Handler
	namespace []string
	baseAttrs []slog.Attr
}

// newLogger 创建 Logger 实例（内部使用）
func newLogger(config *Config, opts *options) (Logger, error) {
	handler, err := newHandler(config)
	if err != nil {
		return nil, err
	}

	return &loggerImpl{
		handler:   handler,
		namespace: opts.namespace,
	}, nil
}

// newHandler 根据配置构造 slog.Handler
func newHandler(config *Config) (slog.Handler, error) {
	level, err := parseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	var w *os.File
	switch config.Output {
	case "stdout", "":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	if strings.ToLower(config.Format) == "json" {
		return slog.NewJSONHandler(w, handlerOpts), nil
	}
	return slog.NewTextHandler(w, handlerOpts), nil
}

func (l *loggerImpl) Debug(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelDebug, msg, fields...)
}

func (l *loggerImpl) Info(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelInfo, msg, fields...)
}

func (l *loggerImpl) Warn(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelWarn, msg, fields...)
}

func (l *loggerImpl) Error(msg string, fields ...Field) {
	l.log(context.Background(), slog.LevelError, msg, fields...)
}

func (l *loggerImpl) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelDebug, msg, fields...)
}

func (l *loggerImpl) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelInfo, msg, fields...)
}

func (l *loggerImpl) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelWarn, msg, fields...)
}

func (l *loggerImpl) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelError, msg, fields...)
}

func (l *loggerImpl) With(fields ...Field) Logger {
	return &loggerImpl{
		handler:   l.handler,
		namespace: l.namespace,
		baseAttrs: append(append([]slog.Attr{}, l.baseAttrs...), fields...),
	}
}

func (l *loggerImpl) WithNamespace(parts ...string) Logger {
	return &loggerImpl{
		handler:   l.handler,
		namespace: append(append([]string{}, l.namespace...), parts...),
		baseAttrs: l.baseAttrs,
	}
}

func (l *loggerImpl) log(ctx context.Context, level slog.Level, msg string, fields ...Field) {
	if !l.handler.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(l.baseAttrs)+len(fields)+1)
	if len(l.namespace) > 0 {
		attrs = append(attrs, slog.String("namespace", strings.Join(l.namespace, ".")))
	}
	attrs = append(attrs, l.baseAttrs...)
	attrs = append(attrs, fields...)

	record := slog.NewRecord(nowFunc(), level, msg, 0)
	record.AddAttrs(attrs...)
	_ = l.handler.Handle(ctx, record)
}
