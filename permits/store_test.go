package permits

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/permitwatch/breaker"
	"github.com/opencivic/permitwatch/clog"
	"github.com/opencivic/permitwatch/dbpool"
	"github.com/opencivic/permitwatch/testkit"
)

func newTestStore(t *testing.T, brkCfg *breaker.Config) (*Store, *dbpool.Manager, breaker.Breaker) {
	t.Helper()

	mgr := testkit.NewEmbeddedManager(t)
	if brkCfg == nil {
		brkCfg = &breaker.Config{}
	}
	brk, err := breaker.New(brkCfg)
	require.NoError(t, err)

	store := NewStore(mgr, brk, clog.Discard())
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store, mgr, brk
}

func seedPermit(t *testing.T, store *Store, number string, issuedAt time.Time) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), &Permit{
		Number:   number,
		Address:  "100 Main St",
		Status:   "issued",
		IssuedAt: issuedAt,
	}))
}

func TestListRecentOrdersByIssuedAtDesc(t *testing.T) {
	store, _, _ := newTestStore(t, nil)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	seedPermit(t, store, "BP-2025-001", base)
	seedPermit(t, store, "BP-2025-002", base.Add(48*time.Hour))
	seedPermit(t, store, "BP-2025-003", base.Add(24*time.Hour))

	ps, err := store.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "BP-2025-002", ps[0].Number)
	assert.Equal(t, "BP-2025-003", ps[1].Number)
}

func TestGetByNumber(t *testing.T) {
	store, _, _ := newTestStore(t, nil)
	seedPermit(t, store, "BP-2025-042", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))

	p, err := store.GetByNumber(context.Background(), "BP-2025-042")
	require.NoError(t, err)
	assert.Equal(t, "BP-2025-042", p.Number)
	assert.Equal(t, "100 Main St", p.Address)

	_, err = store.GetByNumber(context.Background(), "BP-0000-000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnrichmentAttachesInspections(t *testing.T) {
	store, mgr, brk := newTestStore(t, nil)
	ctx := context.Background()
	seedPermit(t, store, "BP-2025-100", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))

	err := mgr.WithConn(ctx, func(conn dbpool.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO inspections (permit_id, result, inspected_at)
			 SELECT id, 'passed', ? FROM permits WHERE number = 'BP-2025-100'`,
			time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC))
		return err
	})
	require.NoError(t, err)

	p, err := store.GetByNumber(ctx, "BP-2025-100")
	require.NoError(t, err)
	require.Len(t, p.Inspections, 1)
	assert.Equal(t, "passed", p.Inspections[0].Result)

	// 成功的富化把类别从状态表里清掉
	assert.Empty(t, brk.GetStatus())
}

func TestJoinFailureDegradesWithoutError(t *testing.T) {
	store, mgr, brk := newTestStore(t, &breaker.Config{MaxFailures: 1})
	ctx := context.Background()
	seedPermit(t, store, "BP-2025-200", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))

	// 人为破坏富化查询的依赖表
	err := mgr.WithConn(ctx, func(conn dbpool.Conn) error {
		_, err := conn.ExecContext(ctx, "DROP TABLE inspections")
		return err
	})
	require.NoError(t, err)

	ps, err := store.ListRecent(ctx, 10)
	require.NoError(t, err, "join failure must not fail the request")
	require.Len(t, ps, 1)
	assert.Empty(t, ps[0].Inspections)

	assert.True(t, brk.IsOpen(CategoryInspectionsJoin))
	status := brk.GetStatus()
	require.Contains(t, status, CategoryInspectionsJoin)
	assert.True(t, status[CategoryInspectionsJoin].Open)
}

func TestOpenCircuitSkipsJoinEntirely(t *testing.T) {
	store, mgr, brk := newTestStore(t, &breaker.Config{MaxFailures: 1})
	ctx := context.Background()
	seedPermit(t, store, "BP-2025-300", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))

	err := mgr.WithConn(ctx, func(conn dbpool.Conn) error {
		if _, err := conn.ExecContext(ctx, "DROP TABLE inspections"); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)

	_, err = store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.True(t, brk.IsOpen(CategoryInspectionsJoin))

	// 修好表并写入数据：熔断仍打开，富化必须被整体跳过
	require.NoError(t, store.EnsureSchema(ctx))
	err = mgr.WithConn(ctx, func(conn dbpool.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO inspections (permit_id, result, inspected_at)
			 SELECT id, 'passed', ? FROM permits`,
			time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC))
		return err
	})
	require.NoError(t, err)

	ps, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Empty(t, ps[0].Inspections, "open circuit must skip enrichment even when the join would succeed")
}

func TestRebindForPostgresBackend(t *testing.T) {
	mgr, err := dbpool.New(&dbpool.Config{DSN: "postgres://app@db/permits"},
		dbpool.WithLogger(clog.Discard()))
	require.NoError(t, err)

	store := NewStore(mgr, nil, clog.Discard())
	got := store.rebind("SELECT * FROM permits WHERE number = ? AND status = ?")
	assert.Equal(t, "SELECT * FROM permits WHERE number = $1 AND status = $2", got)
}

func TestRebindPassthroughForEmbeddedBackend(t *testing.T) {
	store, _, _ := newTestStore(t, nil)
	q := "SELECT * FROM permits WHERE number = ?"
	assert.Equal(t, q, store.rebind(q))
}
