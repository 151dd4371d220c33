// Package ops 提供服务的 HTTP 层：许可浏览 API 和运维端点。
//
// 运维端点对外暴露连接池与熔断器的实时状态：
//
//	GET /healthz      连接池健康快照（嵌入式后端报 no_pool）
//	GET /readyz       真实检出一个连接做探活，失败返回 503
//	GET /ops/stats    池利用率 + 各熔断类别状态
package ops

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencivic/permitwatch/breaker"
	"github.com/opencivic/permitwatch/clog"
	"github.com/opencivic/permitwatch/dbpool"
	"github.com/opencivic/permitwatch/permits"
	"github.com/opencivic/permitwatch/xerrors"
)

// Server HTTP 层依赖集合
type Server struct {
	mgr    *dbpool.Manager
	brk    breaker.Breaker
	store  *permits.Store
	logger clog.Logger
}

// NewRouter 组装路由。
// 依赖全部由组合根注入，Server 不拥有它们的生命周期。
func NewRouter(mgr *dbpool.Manager, brk breaker.Breaker, store *permits.Store, logger clog.Logger) *gin.Engine {
	if logger == nil {
		logger = clog.Discard()
	}
	s := &Server{mgr: mgr, brk: brk, store: store, logger: logger.WithNamespace("ops")}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/readyz", s.handleReadyz)
	r.GET("/ops/stats", s.handleStats)

	api := r.Group("/api")
	{
		api.GET("/permits", s.handleListPermits)
		api.GET("/permits/:number", s.handleGetPermit)
	}
	return r
}

// handleHealthz 连接池健康快照。
// 总是 200：没有池（嵌入式后端或尚未建池）不算失败，
// 状态放在响应体里由监控侧判断。
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, s.mgr.Stats())
}

// handleReadyz 就绪探针：真实检出一个连接并 ping。
// 池耗尽或后端不可达时返回 503，让负载均衡摘掉本实例。
func (s *Server) handleReadyz(c *gin.Context) {
	ctx := c.Request.Context()
	err := s.mgr.WithConn(ctx, func(conn dbpool.Conn) error {
		return conn.PingContext(ctx)
	})
	if err != nil {
		s.logger.Warn("readiness probe failed", clog.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// handleStats 运维面板数据源：池利用率 + 熔断类别状态
func (s *Server) handleStats(c *gin.Context) {
	stats := s.mgr.Stats()
	c.JSON(http.StatusOK, gin.H{
		"backend":  stats.Backend,
		"pool":     stats,
		"breakers": s.brk.GetStatus(),
	})
}

func (s *Server) handleListPermits(c *gin.Context) {
	var q struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	ps, err := s.store.ListRecent(c.Request.Context(), q.Limit)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	if ps == nil {
		ps = []permits.Permit{}
	}
	c.JSON(http.StatusOK, gin.H{"permits": ps})
}

func (s *Server) handleGetPermit(c *gin.Context) {
	p, err := s.store.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		if xerrors.Is(err, permits.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "permit not found"})
			return
		}
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// respondStoreError 区分池耗尽（过载，503）和其余数据层错误（500）
func (s *Server) respondStoreError(c *gin.Context, err error) {
	if xerrors.Is(err, dbpool.ErrPoolExhausted) {
		s.logger.Warn("request rejected, pool exhausted", clog.String("path", c.FullPath()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server busy, try again"})
		return
	}
	s.logger.Error("store query failed",
		clog.String("path", c.FullPath()), clog.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
