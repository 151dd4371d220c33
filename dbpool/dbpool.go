// Package dbpool 提供带按类别熔断配套的数据库连接池管理。
//
// 这是整个服务的地基组件：请求处理协程和批处理任务都通过唯一的
// 入口 Acquire 检出连接，用完即还。生产环境的客户端/服务器引擎
// （PostgreSQL）走有界连接池；开发环境的嵌入式引擎（SQLite）
// 直接打开连接，完全绕过池。
//
// ## 基本使用
//
//	mgr, _ := dbpool.New(&dbpool.Config{
//	    DSN: os.Getenv("DATABASE_URL"),
//	}, dbpool.WithLogger(logger))
//	defer mgr.CloseAll()
//
//	conn, err := mgr.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer conn.Release()
//	rows, err := conn.QueryContext(ctx, "SELECT ...")
//
// ## 作用域用法
//
//	err := mgr.WithConn(ctx, func(conn dbpool.Conn) error {
//	    return conn.PingContext(ctx)
//	})
//
// ## 设计原则
//
//   - 显式构造、显式注入：Manager 由组合根持有，一个进程一个实例，
//     不依赖包级全局状态，测试可以为每个用例构造独立实例
//   - 懒构造：首次 Acquire 时才建池；CloseAll 之后再次 Acquire
//     会重建新池
//   - 快速失败：达到连接数上限时立即报 ErrPoolExhausted，
//     不无限排队
package dbpool

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/opencivic/permitwatch/clog"
	"github.com/opencivic/permitwatch/metrics"
	"github.com/opencivic/permitwatch/xerrors"
)

// Config 连接池配置
type Config struct {
	// DSN 数据库连接串，后端类型由 DetectBackend 自动判断
	DSN string `mapstructure:"dsn" json:"dsn" yaml:"dsn"`

	// Backend 显式指定后端类型，为空时根据 DSN 自动探测
	Backend Backend `mapstructure:"backend" json:"backend" yaml:"backend"`

	// MinConnections 建池时预热的最小连接数（默认 5）
	MinConnections int `mapstructure:"min_connections" json:"min_connections" yaml:"min_connections"`

	// MaxConnections 连接数上限（默认 50）
	MaxConnections int `mapstructure:"max_connections" json:"max_connections" yaml:"max_connections"`

	// ConnectTimeout 建立新物理连接的超时（默认 10s）
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout" yaml:"connect_timeout"`

	// StatementTimeout 单条语句的执行上限，按 PostgreSQL 区间
	// 字面量书写（默认 "30s"）
	StatementTimeout string `mapstructure:"statement_timeout" json:"statement_timeout" yaml:"statement_timeout"`

	// CronJob 批处理/定时任务执行模式。
	// 为 true 时不安装语句超时，长任务不会被截断
	CronJob bool `mapstructure:"cron_job" json:"cron_job" yaml:"cron_job"`
}

// setDefaults 填充默认值（内部使用）
func (c *Config) setDefaults() {
	if c.Backend == "" {
		c.Backend = DetectBackend(c.DSN)
	}
	if c.MinConnections == 0 {
		c.MinConnections = 5
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 50
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.StatementTimeout == "" {
		c.StatementTimeout = "30s"
	}
}

// validate 验证配置的有效性（内部使用）
func (c *Config) validate() error {
	if c.DSN == "" {
		return xerrors.Wrap(ErrInvalidConfig, "dsn is required")
	}
	if c.MinConnections < 0 || c.MaxConnections < 1 {
		return xerrors.Wrap(ErrInvalidConfig, "connection bounds must be positive")
	}
	if c.MinConnections > c.MaxConnections {
		return xerrors.Wrapf(ErrInvalidConfig, "min connections %d exceeds max %d",
			c.MinConnections, c.MaxConnections)
	}
	return nil
}

// Manager 连接池管理器。
//
// 进程内共享单个实例，由组合根显式构造并注入各使用方。
// 所有方法均为并发安全。
type Manager struct {
	cfg    *Config
	driver string
	setup  SetupFunc
	logger clog.Logger
	meter  metrics.Meter

	mu     sync.Mutex
	pool   *pool   // 客户端/服务器引擎的连接池，懒构造
	direct *sql.DB // 嵌入式引擎的直连句柄，懒打开
}

// New 创建连接池管理器。
// 实际的池在首次 Acquire 时才构造。
func New(cfg *Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	if opt.logger == nil {
		opt.logger = clog.Discard()
	}

	driver := opt.driver
	if driver == "" {
		driver = cfg.Backend.driverName()
	}

	setup := opt.setup
	if !opt.setupSet {
		setup = statementTimeoutSetup(cfg.Backend, cfg.StatementTimeout)
	}

	return &Manager{
		cfg:    cfg,
		driver: driver,
		setup:  setup,
		logger: opt.logger,
		meter:  opt.meter,
	}, nil
}

// Backend 返回当前后端类型
func (m *Manager) Backend() Backend {
	return m.cfg.Backend
}

// Acquire 检出一个连接。
//
// 客户端/服务器引擎：首次调用时懒构造连接池；返回的包装
// 在 Release 时把物理连接归还空闲集。池达到上限时立即返回
// ErrPoolExhausted（日志中带完整利用率统计）。
//
// 嵌入式引擎：直接打开连接，不经过池。
//
// 除批处理模式（CronJob）外，每个新检出的连接都会先安装
// 语句超时；安装失败时该连接被丢弃，错误向上传播。
func (m *Manager) Acquire(ctx context.Context) (*PooledConn, error) {
	if m.cfg.Backend != BackendPostgres {
		return m.acquireDirect(ctx)
	}

	p, err := m.getPool(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := p.checkout(ctx)
	if err != nil {
		return nil, err
	}

	if m.setup != nil && !m.cfg.CronJob {
		if err := m.installSetup(ctx, raw); err != nil {
			p.discard(raw)
			return nil, err
		}
	}

	return &PooledConn{raw: raw, pool: p, logger: m.logger}, nil
}

// installSetup 在新检出的连接上执行会话初始化
func (m *Manager) installSetup(ctx context.Context, raw *sql.Conn) error {
	if err := m.setup(ctx, raw); err != nil {
		m.logger.Error("failed to install statement timeout", clog.Error(err))
		return xerrors.Wrapf(ErrSetupFailed, "%v", err)
	}
	return nil
}

// acquireDirect 嵌入式引擎的直连路径
func (m *Manager) acquireDirect(ctx context.Context) (*PooledConn, error) {
	m.mu.Lock()
	if m.direct == nil {
		db, err := sql.Open(m.driver, m.cfg.DSN)
		if err != nil {
			m.mu.Unlock()
			return nil, xerrors.Wrapf(ErrConnect, "open %s: %v", m.driver, err)
		}
		m.direct = db
		m.logger.Info("opened direct database handle",
			clog.String("backend", string(m.cfg.Backend)))
	}
	db := m.direct
	m.mu.Unlock()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, xerrors.Wrapf(ErrConnect, "%v", err)
	}
	return &PooledConn{raw: conn, logger: m.logger}, nil
}

// getPool 懒构造连接池。
// 已存在的池直接复用，不会重建或丢失空闲连接。
func (m *Manager) getPool(ctx context.Context) (*pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil && !m.pool.isClosed() {
		return m.pool, nil
	}

	p, err := newPool(ctx, m.cfg, m.driver, m.logger.WithNamespace("dbpool"), m.meter)
	if err != nil {
		return nil, err
	}
	m.pool = p
	return p, nil
}

// WithConn 以作用域方式使用连接：fn 返回（包括 panic 路径）
// 时连接恰好被释放一次。
func (m *Manager) WithConn(ctx context.Context, fn func(conn Conn) error) error {
	conn, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}

// CloseAll 关闭所有连接并重置管理器。
//
// 之后的 Acquire 会重建全新的池。没有池时是安全的空操作。
// 组合根应把它注册为进程退出钩子。
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	p := m.pool
	m.pool = nil
	direct := m.direct
	m.direct = nil
	m.mu.Unlock()

	if p != nil {
		p.closeAll()
	}
	if direct != nil {
		return direct.Close()
	}
	return nil
}
