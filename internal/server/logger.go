package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger: 요청 1건을 slog로 기록하는 gin 미들웨어를 반환합니다.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("elapsed", time.Since(start)),
		}
		switch {
		case status >= 500:
			logger.Error("HTTP_REQUEST", attrs...)
		case status >= 400:
			logger.Warn("HTTP_REQUEST", attrs...)
		default:
			logger.Debug("HTTP_REQUEST", attrs...)
		}
	}
}
