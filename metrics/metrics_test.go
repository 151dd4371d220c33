package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNewDisabledReturnsNoop(t *testing.T) {
	meter, err := New(&Config{Enabled: false})
	require.NoError(t, err)

	// noop Meter 的所有操作都应是安全的空操作
	counter, err := meter.Counter("test_total", "test counter")
	require.NoError(t, err)
	counter.Inc(context.Background(), L("k", "v"))
	counter.Add(context.Background(), 3)

	gauge, err := meter.Gauge("test_gauge", "test gauge")
	require.NoError(t, err)
	gauge.Set(context.Background(), 7)

	require.NoError(t, meter.Shutdown(context.Background()))
}

func TestNewEnabled(t *testing.T) {
	// Port=0 不启动暴露服务器，避免测试占用端口
	meter, err := New(&Config{Enabled: true, ServiceName: "test"})
	require.NoError(t, err)
	defer meter.Shutdown(context.Background())

	counter, err := meter.Counter("checkouts_total", "连接检出总数")
	require.NoError(t, err)
	counter.Inc(context.Background(), L("backend", "sqlite"))

	gauge, err := meter.Gauge("pool_in_use", "在用连接数")
	require.NoError(t, err)
	gauge.Set(context.Background(), 2)

	hist, err := meter.Histogram("checkout_seconds", "检出耗时")
	require.NoError(t, err)
	hist.Record(context.Background(), 0.01)
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{Enabled: true}
	cfg.setDefaults()
	assert.Equal(t, "permitwatch", cfg.ServiceName)
	assert.Equal(t, "/metrics", cfg.Path)
}
