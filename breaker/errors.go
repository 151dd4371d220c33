package breaker

import "github.com/opencivic/permitwatch/xerrors"

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("breaker: config is nil")
)
