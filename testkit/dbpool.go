package testkit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opencivic/permitwatch/breaker"
	"github.com/opencivic/permitwatch/clog"
	"github.com/opencivic/permitwatch/dbpool"
)

// NewEmbeddedManager 返回走嵌入式引擎直连路径的连接池管理器。
// 数据库文件在 t.TempDir() 中，生命周期由 t.Cleanup 管理
func NewEmbeddedManager(t *testing.T) *dbpool.Manager {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	mgr, err := dbpool.New(&dbpool.Config{DSN: dsn}, dbpool.WithLogger(clog.Discard()))
	require.NoError(t, err, "failed to create embedded manager")

	t.Cleanup(func() {
		_ = mgr.CloseAll()
	})
	return mgr
}

// NewPooledManager 返回走池化路径、但由嵌入式引擎承载的管理器。
// 用于在没有外部数据库的测试环境里覆盖池的检出/耗尽分支
func NewPooledManager(t *testing.T, min, max int) *dbpool.Manager {
	t.Helper()

	mgr, err := dbpool.New(&dbpool.Config{
		DSN:            filepath.Join(t.TempDir(), "test.db"),
		Backend:        dbpool.BackendPostgres,
		MinConnections: min,
		MaxConnections: max,
	}, dbpool.WithDriver("sqlite3"), dbpool.WithSetup(nil), dbpool.WithLogger(clog.Discard()))
	require.NoError(t, err, "failed to create pooled manager")

	t.Cleanup(func() {
		_ = mgr.CloseAll()
	})
	return mgr
}

// NewBreaker 返回默认阈值的熔断器
func NewBreaker(t *testing.T) breaker.Breaker {
	t.Helper()

	brk, err := breaker.New(&breaker.Config{})
	require.NoError(t, err, "failed to create breaker")
	return brk
}
