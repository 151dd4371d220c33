package ops

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opencivic/permitwatch/clog"
)

// HeaderRequestID 请求标识头，上游没带时由本服务生成
const HeaderRequestID = "X-Request-ID"

// requestID 确保每个请求都有标识，透传给日志和响应头
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("request_id", rid)
		c.Header(HeaderRequestID, rid)
		c.Next()
	}
}

// accessLog 访问日志，慢请求（>1s）升级为 Warn
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		fields := []clog.Field{
			clog.String("method", c.Request.Method),
			clog.String("path", c.Request.URL.Path),
			clog.Int("status", c.Writer.Status()),
			clog.Duration("elapsed", elapsed),
			clog.String("request_id", c.GetString("request_id")),
		}
		if elapsed > time.Second {
			s.logger.Warn("slow request", fields...)
			return
		}
		s.logger.Info("request handled", fields...)
	}
}
