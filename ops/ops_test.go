package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/permitwatch/breaker"
	"github.com/opencivic/permitwatch/clog"
	"github.com/opencivic/permitwatch/dbpool"
	"github.com/opencivic/permitwatch/permits"
	"github.com/opencivic/permitwatch/testkit"
)

func newTestRouter(t *testing.T, mgr *dbpool.Manager) (*gin.Engine, breaker.Breaker) {
	t.Helper()

	brk := testkit.NewBreaker(t)
	store := permits.NewStore(mgr, brk, clog.Discard())
	require.NoError(t, store.EnsureSchema(context.Background()))

	return NewRouter(mgr, brk, store, clog.Discard()), brk
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealthzEmbeddedReportsNoPool(t *testing.T) {
	r, _ := newTestRouter(t, testkit.NewEmbeddedManager(t))

	w := doRequest(r, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "no_pool", body["status"])
	assert.Equal(t, "sqlite", body["backend"])
}

func TestReadyzOK(t *testing.T) {
	r, _ := newTestRouter(t, testkit.NewEmbeddedManager(t))

	w := doRequest(r, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready":true`)
}

func TestReadyzExhaustedPoolReturns503(t *testing.T) {
	mgr := testkit.NewPooledManager(t, 1, 1)
	r, _ := newTestRouter(t, mgr)

	// 占住唯一的连接，探针必须失败而不是排队
	conn, err := mgr.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	w := doRequest(r, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"ready":false`)
}

func TestStatsExposesBreakerCategories(t *testing.T) {
	r, brk := newTestRouter(t, testkit.NewEmbeddedManager(t))

	brk.RecordFailure("inspections-join")

	w := doRequest(r, http.MethodGet, "/ops/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Backend  string                             `json:"backend"`
		Breakers map[string]breaker.CategoryStatus `json:"breakers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "sqlite", body.Backend)
	require.Contains(t, body.Breakers, "inspections-join")
	assert.Equal(t, 1, body.Breakers["inspections-join"].Failures)
}

func TestListAndGetPermits(t *testing.T) {
	mgr := testkit.NewEmbeddedManager(t)
	r, brk := newTestRouter(t, mgr)

	store := permits.NewStore(mgr, brk, clog.Discard())
	require.NoError(t, store.Insert(context.Background(), &permits.Permit{
		Number:   "BP-2025-007",
		Address:  "7 Oak Ave",
		Status:   "issued",
		IssuedAt: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	}))

	w := doRequest(r, http.MethodGet, "/api/permits?limit=10")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "BP-2025-007")

	w = doRequest(r, http.MethodGet, "/api/permits/BP-2025-007")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "7 Oak Ave")

	w = doRequest(r, http.MethodGet, "/api/permits/BP-9999-999")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPermitsEmptyBodyIsArray(t *testing.T) {
	r, _ := newTestRouter(t, testkit.NewEmbeddedManager(t))

	w := doRequest(r, http.MethodGet, "/api/permits")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"permits":[]`)
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	r, _ := newTestRouter(t, testkit.NewEmbeddedManager(t))

	w := doRequest(r, http.MethodGet, "/healthz")
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	// 上游带了标识时原样透传
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "trace-abc-123")
	r.ServeHTTP(w2, req)
	assert.Equal(t, "trace-abc-123", w2.Header().Get(HeaderRequestID))
}
