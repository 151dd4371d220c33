package dbpool

import (
	"context"
	"database/sql"
	"sync"

	"github.com/opencivic/permitwatch/clog"
	"github.com/opencivic/permitwatch/metrics"
	"github.com/opencivic/permitwatch/xerrors"
)

// pool 有界连接池（非导出）。
//
// 物理连接是从 *sql.DB 独占检出的 *sql.Conn；*sql.DB 只充当
// 连接工厂，其自身的 MaxOpenConns 上限作为底层兜底，空闲/在用
// 记账由这里的互斥锁保护，是唯一的共享可变资源。
type pool struct {
	cfg    *Config
	db     *sql.DB
	logger clog.Logger
	meter  metrics.Meter

	mu      sync.Mutex
	idle    []*sql.Conn
	inUse   map[*sql.Conn]struct{}
	pending int // 正在建立中的连接数，计入容量
	closed  bool
}

// newPool 构造连接池并预热最小连接数。
// 预热失败视为连接失败，直接向上传播。
func newPool(ctx context.Context, cfg *Config, driver string, logger clog.Logger, meter metrics.Meter) (*pool, error) {
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, xerrors.Wrapf(ErrConnect, "open %s: %v", driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	p := &pool{
		cfg:    cfg,
		db:     db,
		logger: logger,
		meter:  meter,
		inUse:  make(map[*sql.Conn]struct{}),
	}

	for i := 0; i < cfg.MinConnections; i++ {
		conn, err := p.dial(ctx)
		if err != nil {
			p.closeAll()
			return nil, err
		}
		p.mu.Lock()
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
	}

	logger.Info("connection pool created",
		clog.Int("min", cfg.MinConnections),
		clog.Int("max", cfg.MaxConnections),
		clog.Duration("connect_timeout", cfg.ConnectTimeout))

	return p, nil
}

// dial 在连接超时内建立一个新的独占物理连接
func (p *pool) dial(ctx context.Context) (*sql.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	conn, err := p.db.Conn(dialCtx)
	if err != nil {
		return nil, xerrors.Wrapf(ErrConnect, "%v", err)
	}
	return conn, nil
}

// checkout 检出一个物理连接。
// 有空闲连接则直接复用；否则在未达上限时新建；
// 达到上限立即失败，不排队等待。
func (p *pool) checkout(ctx context.Context) (*sql.Conn, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.inUse[conn] = struct{}{}
		p.mu.Unlock()
		p.publishGauges()
		return conn, nil
	}

	inUse := len(p.inUse) + p.pending
	if inUse >= p.cfg.MaxConnections {
		max := p.cfg.MaxConnections
		p.mu.Unlock()
		// 先带完整统计写日志再上抛，让运维能从日志里直接定位
		p.logger.Error("connection pool exhausted",
			clog.Int("in_use", inUse),
			clog.Int("max", max),
			clog.Float64("utilization_pct", 100*float64(inUse)/float64(max)))
		p.countExhausted()
		return nil, xerrors.Wrapf(ErrPoolExhausted, "in_use=%d, max=%d", inUse, max)
	}

	// 预占名额后放锁建连，避免在持锁状态下拨号
	p.pending++
	p.mu.Unlock()

	conn, err := p.dial(ctx)

	p.mu.Lock()
	p.pending--
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		return nil, ErrPoolClosed
	}
	p.inUse[conn] = struct{}{}
	p.mu.Unlock()
	p.publishGauges()
	return conn, nil
}

// put 归还物理连接到空闲集。
// 池已关闭或连接并非本池检出时直接关闭连接。
func (p *pool) put(conn *sql.Conn) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		return
	}
	if _, ok := p.inUse[conn]; !ok {
		p.mu.Unlock()
		_ = conn.Close()
		return
	}
	delete(p.inUse, conn)
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
	p.publishGauges()
}

// discard 丢弃一个在用连接（会话初始化失败时使用）
func (p *pool) discard(conn *sql.Conn) {
	p.mu.Lock()
	delete(p.inUse, conn)
	p.mu.Unlock()
	_ = conn.Close()
	p.publishGauges()
}

// closeAll 关闭全部连接（空闲及在用）并标记池为已关闭
func (p *pool) closeAll() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	inUse := make([]*sql.Conn, 0, len(p.inUse))
	for conn := range p.inUse {
		inUse = append(inUse, conn)
	}
	p.inUse = make(map[*sql.Conn]struct{})
	p.mu.Unlock()

	for _, conn := range idle {
		_ = conn.Close()
	}
	for _, conn := range inUse {
		_ = conn.Close()
	}
	_ = p.db.Close()

	p.logger.Info("connection pool closed",
		clog.Int("idle_closed", len(idle)),
		clog.Int("in_use_closed", len(inUse)))
}

// counts 返回 (在用, 空闲) 的实时计数
func (p *pool) counts() (inUse, available int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse) + p.pending, len(p.idle)
}

func (p *pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// publishGauges 导出在用/空闲连接数指标
func (p *pool) publishGauges() {
	if p.meter == nil {
		return
	}
	inUse, available := p.counts()
	ctx := context.Background()
	if g, err := p.meter.Gauge(MetricPoolInUse, "Connections currently checked out"); err == nil {
		g.Set(ctx, float64(inUse))
	}
	if g, err := p.meter.Gauge(MetricPoolIdle, "Connections currently idle"); err == nil {
		g.Set(ctx, float64(available))
	}
}

func (p *pool) countExhausted() {
	if p.meter == nil {
		return
	}
	if c, err := p.meter.Counter(MetricExhaustedTotal, "Checkout failures due to pool exhaustion"); err == nil {
		c.Inc(context.Background())
	}
}
