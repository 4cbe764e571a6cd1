package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kapu/mkw-stats-bot-go/internal/service/stats"
)

// StatsOverview: 길드 전적 개요를 반환합니다.
func (h *APIHandler) StatsOverview(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	if !requireGuild(c, guildID, false) {
		return
	}

	overview, err := h.stats.GuildOverview(c.Request.Context(), guildID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Leaderboard: 리더보드를 반환합니다. sort, limit, lastxwars 쿼리 지원.
func (h *APIHandler) Leaderboard(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	if !requireGuild(c, guildID, false) {
		return
	}

	sortKey, err := stats.ParseSortKey(c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sort key"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	lastXWars, _ := strconv.Atoi(c.DefaultQuery("lastxwars", "0"))

	entries, err := h.stats.Leaderboard(c.Request.Context(), guildID, sortKey, limit, lastXWars)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"leaderboard": entries,
		"sort":        sortKey,
		"total":       len(entries),
	})
}

// PlayerStats: 플레이어 1명의 통계를 반환합니다.
func (h *APIHandler) PlayerStats(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	if !requireGuild(c, guildID, false) {
		return
	}

	lastXWars, _ := strconv.Atoi(c.DefaultQuery("lastxwars", "0"))
	entry, err := h.stats.PlayerStats(c.Request.Context(), guildID, c.Param("name"), lastXWars)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
