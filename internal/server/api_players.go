package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

// playerResponse: 플레이어 1명의 API 표현.
func playerResponse(p *domain.Player) gin.H {
	out := gin.H{
		"name":                    p.Name,
		"nicknames":               p.Nicknames,
		"team":                    p.Team,
		"member_status":           p.MemberStatus,
		"is_active":               p.IsActive,
		"total_score":             p.TotalScore,
		"total_races":             p.TotalRaces,
		"war_count":               p.WarCount,
		"average_score":           p.AverageScore,
		"total_team_differential": p.TotalTeamDifferential,
	}
	if p.LastWarDate != nil {
		out["last_war_date"] = p.LastWarDate.Format("2006-01-02")
	}
	return out
}

// ListPlayers: 길드 로스터를 반환합니다. include_inactive로 비활성 포함.
func (h *APIHandler) ListPlayers(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	if !requireGuild(c, guildID, false) {
		return
	}

	includeInactive := c.Query("include_inactive") == "true"
	players, err := h.roster.List(c.Request.Context(), guildID, includeInactive)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	out := make([]gin.H, 0, len(players))
	for _, p := range players {
		out = append(out, playerResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"players": out, "total": len(out)})
}

// CreatePlayer: 플레이어를 생성합니다. manage 권한 필요.
func (h *APIHandler) CreatePlayer(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	if !requireGuild(c, guildID, true) {
		return
	}

	var req struct {
		Name         string `json:"name" binding:"required,min=1"`
		MemberStatus string `json:"member_status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, err := h.roster.Create(c.Request.Context(), guildID, req.Name, domain.MemberStatus(req.MemberStatus))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.rosterCache.Invalidate(c.Request.Context(), guildID)

	c.JSON(http.StatusOK, gin.H{"status": "ok", "player": playerResponse(player)})
}

// SetPlayerStatus: 멤버 상태를 변경합니다. manage 권한 필요.
func (h *APIHandler) SetPlayerStatus(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	if !requireGuild(c, guildID, true) {
		return
	}

	var req struct {
		MemberStatus string `json:"member_status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := c.Param("name")
	if err := h.roster.SetMemberStatus(c.Request.Context(), guildID, name, domain.MemberStatus(req.MemberStatus)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.rosterCache.Invalidate(c.Request.Context(), guildID)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AddPlayerNickname: 플레이어에게 닉네임을 추가합니다. manage 권한 필요.
func (h *APIHandler) AddPlayerNickname(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	if !requireGuild(c, guildID, true) {
		return
	}

	var req struct {
		Nickname string `json:"nickname" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := c.Param("name")
	if err := h.roster.AddNickname(c.Request.Context(), guildID, name, req.Nickname); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.rosterCache.Invalidate(c.Request.Context(), guildID)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
