package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/util"
)

// CreationNonceHeader: 세션 생성 멱등성 헤더.
const CreationNonceHeader = "X-Creation-Nonce"

type detectedPlayerPayload struct {
	Name           string `json:"name" binding:"required"`
	Score          int    `json:"score" binding:"min=0,max=999"`
	RawName        string `json:"raw_name"`
	IsRosterMember bool   `json:"is_roster_member"`
	RacesPlayed    int    `json:"races_played"`
}

func toDetectedPlayers(payload []detectedPlayerPayload) []domain.DetectedPlayer {
	out := make([]domain.DetectedPlayer, len(payload))
	for i, p := range payload {
		out[i] = domain.DetectedPlayer{
			Name:           p.Name,
			Score:          p.Score,
			RawName:        p.RawName,
			IsRosterMember: p.IsRosterMember,
			RacesPlayed:    p.RacesPlayed,
		}
	}
	return out
}

func sessionResponse(s *domain.BulkSession) gin.H {
	return gin.H{
		"session_token": s.Token,
		"guild_id":      s.GuildID,
		"created_by":    s.CreatedByUserID,
		"status":        s.Status,
		"total_images":  s.TotalImages,
		"created_at":    s.CreatedAt,
		"expires_at":    s.ExpiresAt,
	}
}

func resultResponse(r *domain.BulkResult) gin.H {
	out := gin.H{
		"result_id":        r.ID,
		"image_filename":   r.ImageFilename,
		"image_url":        r.ImageURL,
		"detected_players": r.DetectedPlayers,
		"review_status":    r.ReviewStatus,
		"race_count":       r.RaceCount,
		"created_at":       r.CreatedAt,
	}
	if r.CorrectedPlayers != nil {
		out["corrected_players"] = r.CorrectedPlayers
	}
	if r.MessageTimestamp != nil {
		out["message_timestamp"] = r.MessageTimestamp
	}
	return out
}

func failureResponse(f *domain.BulkFailure) gin.H {
	out := gin.H{
		"failure_id":     f.ID,
		"image_filename": f.ImageFilename,
		"image_url":      f.ImageURL,
		"error_message":  f.ErrorMessage,
		"created_at":     f.CreatedAt,
	}
	if f.MessageTimestamp != nil {
		out["message_timestamp"] = f.MessageTimestamp
	}
	return out
}

// loadSession: 토큰으로 세션을 찾고 호출자의 길드 멤버십을 검사한다.
// 만료된 세션은 요청 종류와 무관하게 410으로 끝낸다 (cancel 제외).
func (h *APIHandler) loadSession(c *gin.Context, rejectExpired bool) *domain.BulkSession {
	session, err := h.bulk.GetSession(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, h.logger, err)
		return nil
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil
	}
	if !requireGuild(c, session.GuildID, false) {
		return nil
	}
	if rejectExpired {
		expired := session.Status == domain.SessionExpired ||
			(session.Status == domain.SessionOpen && session.IsExpired(time.Now().UTC()))
		if expired {
			c.JSON(http.StatusGone, gin.H{"error": "session has expired"})
			return nil
		}
	}
	return session
}

// CreateBulkSession: 벌크 세션을 생성합니다. (API Key 전용)
func (h *APIHandler) CreateBulkSession(c *gin.Context) {
	var req struct {
		GuildID         int64 `json:"guild_id" binding:"required"`
		CreatedByUserID int64 `json:"created_by_user_id" binding:"required"`
		TotalImages     int   `json:"total_images" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.bulk.CreateSession(c.Request.Context(),
		req.GuildID, req.CreatedByUserID, req.TotalImages, c.GetHeader(CreationNonceHeader))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_token": session.Token})
}

// AppendBulkResult: 세션에 OCR 결과를 추가합니다. (API Key 전용)
func (h *APIHandler) AppendBulkResult(c *gin.Context) {
	session := h.loadSession(c, true)
	if session == nil {
		return
	}

	var req struct {
		ImageFilename    string                  `json:"image_filename"`
		ImageURL         string                  `json:"image_url"`
		DetectedPlayers  []detectedPlayerPayload `json:"detected_players" binding:"required"`
		RaceCount        int                     `json:"race_count"`
		MessageTimestamp string                  `json:"message_timestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := &domain.BulkResult{
		ImageFilename:   req.ImageFilename,
		ImageURL:        req.ImageURL,
		DetectedPlayers: toDetectedPlayers(req.DetectedPlayers),
		RaceCount:       req.RaceCount,
	}
	if ts, err := util.ParseTimestamp(req.MessageTimestamp); err == nil && !ts.IsZero() {
		result.MessageTimestamp = &ts
	}

	id, err := h.bulk.AppendResult(c.Request.Context(), session.Token, result)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result_id": id})
}

// AppendBulkFailure: 세션에 OCR 실패를 추가합니다. (API Key 전용)
func (h *APIHandler) AppendBulkFailure(c *gin.Context) {
	session := h.loadSession(c, true)
	if session == nil {
		return
	}

	var req struct {
		ImageFilename    string `json:"image_filename"`
		ImageURL         string `json:"image_url"`
		ErrorMessage     string `json:"error_message" binding:"required"`
		MessageTimestamp string `json:"message_timestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	failure := &domain.BulkFailure{
		ImageFilename: req.ImageFilename,
		ImageURL:      req.ImageURL,
		ErrorMessage:  req.ErrorMessage,
	}
	if ts, err := util.ParseTimestamp(req.MessageTimestamp); err == nil && !ts.IsZero() {
		failure.MessageTimestamp = &ts
	}

	id, err := h.bulk.AppendFailure(c.Request.Context(), session.Token, failure)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"failure_id": id})
}

// GetBulkSession: 세션 메타데이터를 반환합니다.
func (h *APIHandler) GetBulkSession(c *gin.Context) {
	session := h.loadSession(c, true)
	if session == nil {
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

// GetBulkResults: 세션의 결과/실패 목록을 반환합니다.
func (h *APIHandler) GetBulkResults(c *gin.Context) {
	session := h.loadSession(c, true)
	if session == nil {
		return
	}

	results, err := h.bulk.Results(c.Request.Context(), session.Token)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	failures, err := h.bulk.Failures(c.Request.Context(), session.Token)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	resultsOut := make([]gin.H, len(results))
	for i, r := range results {
		resultsOut[i] = resultResponse(r)
	}
	failuresOut := make([]gin.H, len(failures))
	for i, f := range failures {
		failuresOut[i] = failureResponse(f)
	}

	c.JSON(http.StatusOK, gin.H{
		"session":  sessionResponse(session),
		"results":  resultsOut,
		"failures": failuresOut,
		"total":    len(resultsOut),
	})
}

// UpdateBulkResult: 결과 1건의 리뷰 상태/수정본을 갱신합니다.
func (h *APIHandler) UpdateBulkResult(c *gin.Context) {
	session := h.loadSession(c, true)
	if session == nil {
		return
	}

	resultID, err := strconv.ParseInt(c.Param("result_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid result id"})
		return
	}

	var req struct {
		ReviewStatus     string                  `json:"review_status" binding:"required"`
		CorrectedPlayers []detectedPlayerPayload `json:"corrected_players"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var corrected []domain.DetectedPlayer
	if req.CorrectedPlayers != nil {
		corrected = toDetectedPlayers(req.CorrectedPlayers)
	}

	if err := h.bulk.UpdateResult(c.Request.Context(), session.Token, resultID,
		domain.ReviewStatus(req.ReviewStatus), corrected); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ConvertBulkFailure: 실패를 수동 입력 결과로 전환합니다.
func (h *APIHandler) ConvertBulkFailure(c *gin.Context) {
	session := h.loadSession(c, true)
	if session == nil {
		return
	}

	failureID, err := strconv.ParseInt(c.Param("failure_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid failure id"})
		return
	}

	var req struct {
		Players      []detectedPlayerPayload `json:"players"`
		ReviewStatus string                  `json:"review_status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resultID, err := h.bulk.ConvertFailure(c.Request.Context(), session.Token, failureID,
		toDetectedPlayers(req.Players), domain.ReviewStatus(req.ReviewStatus))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result_id": resultID})
}

// ConfirmBulkSession: 승인된 결과들을 전적으로 물질화합니다.
func (h *APIHandler) ConfirmBulkSession(c *gin.Context) {
	session := h.loadSession(c, true)
	if session == nil {
		return
	}

	outcome, err := h.bulk.Confirm(c.Request.Context(), session.Token)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"wars_created": outcome.WarsCreated,
		"war_ids":      outcome.WarIDs,
	})
}

// CancelBulkSession: 세션을 취소합니다. 이미 만료/취소된 세션에 대해서는 멱등하며,
// 승인(confirmed)된 세션은 409로 거부한다.
func (h *APIHandler) CancelBulkSession(c *gin.Context) {
	session := h.loadSession(c, false)
	if session == nil {
		return
	}

	if err := h.bulk.Cancel(c.Request.Context(), session.Token); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
