package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// APIKeyHeader: 봇 → API 인증에 사용되는 HTTP 헤더 이름
	APIKeyHeader = "X-API-Key" //nolint:gosec // G101: 헤더 이름일 뿐 실제 credentials가 아님

	ctxKeyIdentity = "identity"
	ctxKeyAPIKey   = "api_key_caller"
)

// APIKeyAuthMiddleware: X-API-Key 헤더를 검증하는 인증 미들웨어를 반환합니다.
// API Key 호출자는 모든 guild_id에 대해 신뢰된다.
func APIKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader(APIKeyHeader)
		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required",
			})
			return
		}

		// 타이밍 공격 방지를 위해 constant-time 비교 사용
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "invalid API key",
			})
			return
		}

		c.Set(ctxKeyAPIKey, true)
		c.Next()
	}
}

// BearerAuthMiddleware: Authorization 헤더의 세션 토큰을 검증하고
// 호출자 신원을 컨텍스트에 싣는다. API Key가 있으면 그쪽을 우선한다.
func BearerAuthMiddleware(sessions *SessionService, apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if providedKey := c.GetHeader(APIKeyHeader); providedKey != "" {
			if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) == 1 {
				c.Set(ctxKeyAPIKey, true)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "invalid API key",
			})
			return
		}

		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "bearer token required",
			})
			return
		}

		identity, err := sessions.Verify(c.Request.Context(), header[len(prefix):])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid or expired token",
			})
			return
		}

		c.Set(ctxKeyIdentity, identity)
		c.Next()
	}
}

// callerIdentity: 컨텍스트에서 호출자 신원을 꺼낸다. API Key 호출자는 (nil, true).
func callerIdentity(c *gin.Context) (*Identity, bool) {
	if c.GetBool(ctxKeyAPIKey) {
		return nil, true
	}
	if v, ok := c.Get(ctxKeyIdentity); ok {
		if identity, ok := v.(*Identity); ok {
			return identity, false
		}
	}
	return nil, false
}

// requireGuild: 호출자가 guild_id 멤버인지 (needManage면 manage 권한까지) 확인한다.
// 통과하지 못하면 응답을 이미 쓴 상태로 false를 반환한다.
func requireGuild(c *gin.Context, guildID int64, needManage bool) bool {
	identity, apiKeyCaller := callerIdentity(c)
	if apiKeyCaller {
		return true
	}
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}

	perm, ok := identity.Guilds[strconv.FormatInt(guildID, 10)]
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this guild"})
		return false
	}
	if needManage && !perm.CanManage && !perm.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "manage permission required"})
		return false
	}
	return true
}

// guildParam: 경로의 guild_id 파라미터를 파싱한다.
func guildParam(c *gin.Context) (int64, bool) {
	guildID, err := strconv.ParseInt(c.Param("guild_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guild id"})
		return 0, false
	}
	return guildID, true
}
