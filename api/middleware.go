package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request once it completes.
func (s *Server) RequestLogger(c *gin.Context) {
	start := time.Now()

	c.Next()

	s.logger.Info("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("latency", time.Since(start)),
		zap.String("ip", c.ClientIP()),
	)
}

// Recovery turns a panicking handler into a 500 instead of a dropped
// connection.
func (s *Server) Recovery(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panicked",
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", r),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse(ErrorMessage500))
		}
	}()

	c.Next()
}
