// Package xerrors 提供标准化错误处理工具。
//
// 各组件在 errors.go 中通过 xerrors.New 定义哨兵错误，
// 业务代码通过 Wrap/Wrapf 附加上下文并保留错误链，
// 调用方通过 Is/As 判断错误类型。
package xerrors

import (
	"errors"
	"fmt"
)

// New 创建一个新的哨兵错误。
func New(msg string) error {
	return errors.New(msg)
}

// Is 判断 err 的错误链中是否包含 target。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 在 err 的错误链中查找匹配 target 类型的错误。
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Wrap 用上下文信息包装错误，保留错误链。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 用格式化的上下文信息包装错误。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Must 如果 err 不为 nil，则 panic。仅用于初始化阶段。
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}

// Combine 将多个错误合并为一个，忽略 nil。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return errors.Join(nonNil...)
	}
}
