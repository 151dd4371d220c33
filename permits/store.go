// Package permits 提供建筑许可记录的数据访问层。
//
// Store 借用连接池管理器（不拥有其生命周期），主路径查询许可
// 主表；验收记录 join 是可选的富化步骤，由熔断器的
// "inspections-join" 类别保护：该类别打开时直接跳过 join，
// 返回不带验收数据的许可，请求本身不受影响。
package permits

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/opencivic/permitwatch/breaker"
	"github.com/opencivic/permitwatch/clog"
	"github.com/opencivic/permitwatch/dbpool"
	"github.com/opencivic/permitwatch/xerrors"
)

// CategoryInspectionsJoin 验收记录富化 join 的熔断类别
const CategoryInspectionsJoin = "inspections-join"

// ErrNotFound 许可不存在
var ErrNotFound = xerrors.New("permits: permit not found")

// Store 许可记录存取
type Store struct {
	mgr    *dbpool.Manager
	brk    breaker.Breaker
	logger clog.Logger
}

// NewStore 创建许可记录存取实例。
// mgr 和 brk 由组合根注入，Store 只借用，不负责关闭。
func NewStore(mgr *dbpool.Manager, brk breaker.Breaker, logger clog.Logger) *Store {
	if logger == nil {
		logger = clog.Discard()
	}
	return &Store{mgr: mgr, brk: brk, logger: logger.WithNamespace("permits")}
}

// EnsureSchema 建表（开发环境用；生产的迁移由部署流程负责）
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.mgr.WithConn(ctx, func(conn dbpool.Conn) error {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS permits (
				id INTEGER PRIMARY KEY,
				number TEXT NOT NULL UNIQUE,
				address TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'filed',
				issued_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS inspections (
				id INTEGER PRIMARY KEY,
				permit_id INTEGER NOT NULL REFERENCES permits(id),
				result TEXT NOT NULL,
				inspected_at TIMESTAMP NOT NULL
			)`,
		}
		for _, stmt := range stmts {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return xerrors.Wrap(err, "failed to ensure schema")
			}
		}
		return nil
	})
}

// Insert 写入一条许可记录
func (s *Store) Insert(ctx context.Context, p *Permit) error {
	return s.mgr.WithConn(ctx, func(conn dbpool.Conn) error {
		_, err := conn.ExecContext(ctx,
			s.rebind(`INSERT INTO permits (number, address, description, status, issued_at) VALUES (?, ?, ?, ?, ?)`),
			p.Number, p.Address, p.Description, p.Status, p.IssuedAt)
		return xerrors.Wrap(err, "failed to insert permit")
	})
}

// ListRecent 按签发时间倒序返回最近的许可。
// 验收记录富化失败或熔断打开时，返回的许可不带验收数据。
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Permit, error) {
	if limit <= 0 {
		limit = 50
	}

	var result []Permit
	err := s.mgr.WithConn(ctx, func(conn dbpool.Conn) error {
		rows, err := conn.QueryContext(ctx,
			s.rebind(`SELECT id, number, address, description, status, issued_at FROM permits ORDER BY issued_at DESC LIMIT ?`),
			limit)
		if err != nil {
			return xerrors.Wrap(err, "failed to list permits")
		}
		defer rows.Close()

		for rows.Next() {
			var p Permit
			if err := rows.Scan(&p.ID, &p.Number, &p.Address, &p.Description, &p.Status, &p.IssuedAt); err != nil {
				return xerrors.Wrap(err, "failed to scan permit")
			}
			result = append(result, p)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		s.enrich(ctx, conn, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetByNumber 按许可编号查询单条记录
func (s *Store) GetByNumber(ctx context.Context, number string) (*Permit, error) {
	var p Permit
	err := s.mgr.WithConn(ctx, func(conn dbpool.Conn) error {
		row := conn.QueryRowContext(ctx,
			s.rebind(`SELECT id, number, address, description, status, issued_at FROM permits WHERE number = ?`),
			number)
		if err := row.Scan(&p.ID, &p.Number, &p.Address, &p.Description, &p.Status, &p.IssuedAt); err != nil {
			if xerrors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return xerrors.Wrap(err, "failed to get permit")
		}

		single := []Permit{p}
		s.enrich(ctx, conn, single)
		p = single[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// enrich 为许可附加验收记录。
// 熔断类别打开时整体跳过；join 失败只上报熔断器并降级，
// 不影响主查询结果。
func (s *Store) enrich(ctx context.Context, conn dbpool.Conn, ps []Permit) {
	if len(ps) == 0 || s.brk == nil {
		return
	}
	if s.brk.IsOpen(CategoryInspectionsJoin) {
		s.logger.Debug("inspections join skipped, circuit open")
		return
	}

	if err := s.attachInspections(ctx, conn, ps); err != nil {
		s.brk.RecordFailure(CategoryInspectionsJoin)
		s.logger.Warn("inspections join failed, serving permits without enrichment",
			clog.Error(err))
		return
	}
	s.brk.RecordSuccess(CategoryInspectionsJoin)
}

// attachInspections 执行验收记录 join 并挂到对应许可上
func (s *Store) attachInspections(ctx context.Context, conn dbpool.Conn, ps []Permit) error {
	ids := make([]string, len(ps))
	index := make(map[int64]*Permit, len(ps))
	for i := range ps {
		ids[i] = strconv.FormatInt(ps[i].ID, 10)
		index[ps[i].ID] = &ps[i]
	}

	// id 来自主查询结果而非用户输入，内联是安全的
	query := `SELECT id, permit_id, result, inspected_at FROM inspections WHERE permit_id IN (` +
		strings.Join(ids, ", ") + `) ORDER BY inspected_at`

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ins Inspection
		if err := rows.Scan(&ins.ID, &ins.PermitID, &ins.Result, &ins.InspectedAt); err != nil {
			return err
		}
		if p, ok := index[ins.PermitID]; ok {
			p.Inspections = append(p.Inspections, ins)
		}
	}
	return rows.Err()
}

// rebind 把 ? 占位符改写为 PostgreSQL 的 $N 形式。
// 嵌入式引擎直接使用 ? 。
func (s *Store) rebind(query string) string {
	if s.mgr.Backend() != dbpool.BackendPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
