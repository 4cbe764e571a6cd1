package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Login: OAuth 로그인 리다이렉트 URL을 반환합니다.
func (h *APIHandler) Login(c *gin.Context) {
	state := uuid.NewString()
	c.JSON(http.StatusOK, gin.H{
		"auth_url": h.identity.AuthURL(state),
		"state":    state,
	})
}

// Callback: OAuth 콜백. 인가 코드를 세션 토큰으로 교환합니다.
func (h *APIHandler) Callback(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, err := h.identity.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		h.logger.Warn("OAuth exchange failed", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "oauth exchange failed"})
		return
	}

	token, err := h.sessions.Issue(c.Request.Context(), identity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Me: 호출자의 신원과 길드 멤버십을 반환합니다.
func (h *APIHandler) Me(c *gin.Context) {
	identity, apiKeyCaller := callerIdentity(c)
	if apiKeyCaller {
		c.JSON(http.StatusOK, gin.H{"user_id": 0, "guilds": gin.H{}, "api_key": true})
		return
	}
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": identity.UserID,
		"guilds":  identity.Guilds,
	})
}

// Guilds: 호출자가 속한 길드 설정 목록을 반환합니다.
func (h *APIHandler) Guilds(c *gin.Context) {
	identity, apiKeyCaller := callerIdentity(c)
	if identity == nil && !apiKeyCaller {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var guildIDs []int64
	if identity != nil {
		for idStr := range identity.Guilds {
			if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
				guildIDs = append(guildIDs, id)
			}
		}
	}

	configs, err := h.guilds.GetMany(c.Request.Context(), guildIDs)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	out := make([]gin.H, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, gin.H{
			"guild_id":   cfg.GuildID,
			"guild_name": cfg.GuildName,
			"is_active":  cfg.IsActive,
		})
	}
	c.JSON(http.StatusOK, gin.H{"guilds": out})
}
