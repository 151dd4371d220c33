package dbpool

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/opencivic/permitwatch/clog"
)

// Conn 是调用方看到的连接接口。
//
// 原始连接 *sql.Conn 与池化包装 *PooledConn 都实现此接口，
// 除释放语义外，调用方无法区分自己持有的是哪一种。
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PingContext(ctx context.Context) error
}

// 编译期契约：包装必须与原始连接保持同一接口
var (
	_ Conn = (*sql.Conn)(nil)
	_ Conn = (*PooledConn)(nil)
)

// PooledConn 池化连接包装。
//
// 独占持有一个物理连接，所有操作透明转发；Release 不关闭连接，
// 而是回滚未提交事务后将物理连接归还空闲集。
// 二次 Release 是安全的空操作。
type PooledConn struct {
	raw    *sql.Conn
	pool   *pool // 为 nil 表示直连（嵌入式引擎），Release 时直接关闭
	logger clog.Logger

	released atomic.Bool
}

func (c *PooledConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.raw.ExecContext(ctx, query, args...)
}

func (c *PooledConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.raw.QueryContext(ctx, query, args...)
}

func (c *PooledConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.raw.QueryRowContext(ctx, query, args...)
}

func (c *PooledConn) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return c.raw.PrepareContext(ctx, query)
}

func (c *PooledConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.raw.BeginTx(ctx, opts)
}

func (c *PooledConn) PingContext(ctx context.Context) error {
	return c.raw.PingContext(ctx)
}

// Release 归还连接。
//
// 先尝试回滚未提交事务，再把物理连接放回空闲集；
// 回滚失败只记日志，不阻止归还。
// 对同一包装重复调用只有第一次生效。
func (c *PooledConn) Release() {
	if !c.released.CompareAndSwap(false, true) {
		return
	}

	if _, err := c.raw.ExecContext(context.Background(), "ROLLBACK"); err != nil {
		c.logger.Debug("rollback on release failed", clog.Error(err))
	}

	if c.pool != nil {
		c.pool.put(c.raw)
		return
	}
	// 直连模式：归还给 database/sql 自身的空闲管理
	if err := c.raw.Close(); err != nil {
		c.logger.Debug("failed to close direct connection", clog.Error(err))
	}
}
