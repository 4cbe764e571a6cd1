package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health: 프로세스 생존 여부와 버전을 반환합니다.
func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.cfg.Version,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}
