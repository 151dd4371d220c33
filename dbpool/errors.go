package dbpool

import "github.com/opencivic/permitwatch/xerrors"

// 错误定义
var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.New("dbpool: invalid config")

	// ErrPoolExhausted 池已达连接数上限，检出失败
	ErrPoolExhausted = xerrors.New("dbpool: pool exhausted")

	// ErrPoolClosed 池已关闭，不再接受检出
	ErrPoolClosed = xerrors.New("dbpool: pool is closed")

	// ErrConnect 无法建立新的物理连接
	ErrConnect = xerrors.New("dbpool: failed to establish connection")

	// ErrSetupFailed 会话初始化（语句超时安装）失败，
	// 该连接不会交给调用方
	ErrSetupFailed = xerrors.New("dbpool: connection setup failed")
)
