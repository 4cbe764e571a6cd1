package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

func warResponse(w *domain.War) gin.H {
	players := make([]gin.H, len(w.Players))
	for i, p := range w.Players {
		players[i] = gin.H{
			"name":         p.Name,
			"score":        p.Score,
			"races_played": p.RacesPlayed,
		}
	}
	return gin.H{
		"war_id":            w.ID,
		"race_count":        w.RaceCount,
		"team_score":        w.TeamScore,
		"team_differential": w.TeamDifferential,
		"outcome":           domain.OutcomeOf(w.TeamDifferential),
		"war_date":          w.WarDate.Format("2006-01-02"),
		"created_at":        w.CreatedAt,
		"players":           players,
	}
}

// ListWars: 전적 목록을 페이지네이션해 반환합니다.
func (h *APIHandler) ListWars(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	if !requireGuild(c, guildID, false) {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(constants.PaginationConfig.DefaultLimit)))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > constants.PaginationConfig.MaxLimit {
		limit = constants.PaginationConfig.DefaultLimit
	}

	wars, total, err := h.wars.List(c.Request.Context(), guildID, (page-1)*limit, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	out := make([]gin.H, len(wars))
	for i, w := range wars {
		out[i] = warResponse(w)
	}
	c.JSON(http.StatusOK, gin.H{
		"wars":  out,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// GetWar: 전적 1건을 반환합니다.
func (h *APIHandler) GetWar(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	if !requireGuild(c, guildID, false) {
		return
	}

	warID, err := strconv.ParseInt(c.Param("war_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid war id"})
		return
	}

	w, err := h.wars.GetByID(c.Request.Context(), guildID, warID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if w == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "war not found"})
		return
	}
	c.JSON(http.StatusOK, warResponse(w))
}
