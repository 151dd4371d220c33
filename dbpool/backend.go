package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// 注册两种引擎的 database/sql 驱动：
	// 生产环境的 PostgreSQL（pgx）与开发环境的嵌入式 SQLite。
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Backend 数据库后端类型
type Backend string

const (
	// BackendPostgres 客户端/服务器引擎，生产环境使用，走连接池
	BackendPostgres Backend = "postgres"

	// BackendSQLite 嵌入式单文件引擎，开发环境使用，
	// 直接打开连接，不经过连接池
	BackendSQLite Backend = "sqlite"
)

// DetectBackend 根据连接串判断后端类型。
// postgres:// / postgresql:// 以及 key=value 形式的 DSN 视为
// PostgreSQL，其余一律按 SQLite 文件路径处理。
func DetectBackend(dsn string) Backend {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return BackendPostgres
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return BackendPostgres
	}
	return BackendSQLite
}

// driverName 返回后端对应的 database/sql 驱动名
func (b Backend) driverName() string {
	if b == BackendPostgres {
		return "pgx"
	}
	return "sqlite3"
}

// SetupFunc 在新检出的物理连接上执行一次的会话初始化函数。
// 默认实现安装语句级执行上限。
type SetupFunc func(ctx context.Context, conn *sql.Conn) error

// statementTimeoutSetup 构造按后端安装语句超时的 SetupFunc。
// 嵌入式引擎没有服务端语句上限，返回 nil（跳过安装）。
func statementTimeoutSetup(backend Backend, timeout string) SetupFunc {
	if backend != BackendPostgres || timeout == "" {
		return nil
	}
	stmt := fmt.Sprintf("SET statement_timeout = '%s'", timeout)
	return func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, stmt)
		return err
	}
}
