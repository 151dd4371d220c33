package clog

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config 日志配置结构，定义日志的基本行为。
//
//	Level: 日志级别 (debug|info|warn|error)
//	Format: 输出格式 (json|console)
//	Output: 输出目标 (stdout|stderr|文件路径)
//	AddSource: 是否显示调用位置信息
type Config struct {
	Level     string `json:"level" yaml:"level" mapstructure:"level"`
	Format    string `json:"format" yaml:"format" mapstructure:"format"`
	Output    string `json:"output" yaml:"output" mapstructure:"output"`
	AddSource bool   `json:"add_source" yaml:"add_source" mapstructure:"add_source"`
}

// validate 验证配置的有效性并填充默认值（内部使用）。
func (c *Config) validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}

	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	format := strings.ToLower(c.Format)
	if format != "json" && format != "console" {
		return fmt.Errorf("invalid format: %s, must be json or console", c.Format)
	}
	return nil
}

// parseLevel 将字符串级别映射为 slog.Level。
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}
