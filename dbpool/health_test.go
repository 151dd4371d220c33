package dbpool

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/permitwatch/clog"
)

func TestHealthNoPool(t *testing.T) {
	mgr := newTestManager(t, &Config{MinConnections: 2, MaxConnections: 7})

	h := mgr.Health()
	assert.False(t, h.Healthy)
	assert.Equal(t, 2, h.Min)
	assert.Equal(t, 7, h.Max)
	assert.Zero(t, h.InUse)
	assert.Zero(t, h.Available)
}

func TestHealthClosedPool(t *testing.T) {
	mgr := newTestManager(t, &Config{MinConnections: 1, MaxConnections: 5})
	ctx := context.Background()

	conn, err := mgr.Acquire(ctx)
	require.NoError(t, err)
	conn.Release()

	// 池存在但被标记关闭时也必须报不健康
	mgr.pool.closeAll()
	assert.False(t, mgr.Health().Healthy)
}

func TestHealthLiveCounts(t *testing.T) {
	mgr := newTestManager(t, &Config{MinConnections: 2, MaxConnections: 5})
	ctx := context.Background()

	c1, err := mgr.Acquire(ctx)
	require.NoError(t, err)
	c2, err := mgr.Acquire(ctx)
	require.NoError(t, err)

	h := mgr.Health()
	assert.True(t, h.Healthy)
	assert.Equal(t, 2, h.InUse)
	assert.Equal(t, 0, h.Available)

	c1.Release()
	c2.Release()

	h = mgr.Health()
	assert.Equal(t, 0, h.InUse)
	assert.Equal(t, 2, h.Available)
}

func TestStatsNoPoolBeforeFirstAcquire(t *testing.T) {
	mgr := newTestManager(t, &Config{MinConnections: 1, MaxConnections: 5})

	stats := mgr.Stats()
	assert.Equal(t, "no_pool", stats.Status)
	assert.Equal(t, BackendPostgres, stats.Backend)
	assert.Nil(t, stats.Health)
}

func TestStatsEmbeddedBackendAlwaysNoPool(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "dev.db")
	mgr, err := New(&Config{DSN: dsn}, WithLogger(clog.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.CloseAll() })
	require.Equal(t, BackendSQLite, mgr.Backend())

	conn, err := mgr.Acquire(context.Background())
	require.NoError(t, err)
	conn.Release()

	stats := mgr.Stats()
	assert.Equal(t, "no_pool", stats.Status)
	assert.Equal(t, BackendSQLite, stats.Backend)
}

func TestStatsOKWithHealth(t *testing.T) {
	mgr := newTestManager(t, &Config{MinConnections: 1, MaxConnections: 5})
	ctx := context.Background()

	conn, err := mgr.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	stats := mgr.Stats()
	require.Equal(t, "ok", stats.Status)
	require.NotNil(t, stats.Health)
	assert.True(t, stats.Health.Healthy)
	assert.Equal(t, 1, stats.Health.InUse)
}

func TestEmbeddedDirectConnUsable(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "dev.db")
	mgr, err := New(&Config{DSN: dsn}, WithLogger(clog.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.CloseAll() })

	ctx := context.Background()
	conn, err := mgr.Acquire(ctx)
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)
	conn.Release()
	conn.Release() // 直连包装的二次释放同样是空操作
}
