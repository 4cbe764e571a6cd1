package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/goccy/go-json"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/service/database"
	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// GuildPermission: 길드 1개에 대한 호출자 권한.
type GuildPermission struct {
	IsAdmin   bool   `json:"is_admin"`
	CanManage bool   `json:"can_manage"`
	GuildName string `json:"guild_name,omitempty"`
}

// Identity: 세션 토큰이 운반하는 호출자 신원. 키는 guild_id 문자열이다.
type Identity struct {
	UserID int64                      `json:"user_id"`
	Guilds map[string]GuildPermission `json:"guilds"`
}

// UserSessionModel: user_sessions 테이블과 매핑되는 GORM 모델입니다.
// JWT 자체가 신원을 운반하고, 이 행은 폐기(revocation) 근거로 쓰인다.
type UserSessionModel struct {
	ID        int64          `gorm:"primaryKey;column:id"`
	UserID    int64          `gorm:"column:user_id;index"`
	TokenID   string         `gorm:"column:token_id;uniqueIndex"`
	Guilds    datatypes.JSON `gorm:"column:guilds;type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	ExpiresAt time.Time      `gorm:"column:expires_at;index"`
}

// TableName: GORM 모델이 매핑될 테이블 이름을 반환한다. ("user_sessions")
func (UserSessionModel) TableName() string {
	return "user_sessions"
}

type sessionClaims struct {
	Guilds map[string]GuildPermission `json:"guilds"`
	jwt.RegisteredClaims
}

// SessionService: OAuth로 검증된 신원을 서명된 세션 토큰으로 교환하고 검증한다.
type SessionService struct {
	db     *sql.DB
	secret []byte
	logger *slog.Logger
}

// NewSessionService: 새로운 세션 서비스를 생성합니다.
func NewSessionService(postgres *database.PostgresService, jwtSecret string, logger *slog.Logger) *SessionService {
	return &SessionService{
		db:     postgres.GetDB(),
		secret: []byte(jwtSecret),
		logger: logger,
	}
}

// Issue: 신원으로 세션 토큰을 발급하고 user_sessions에 기록한다.
func (s *SessionService) Issue(ctx context.Context, identity *Identity) (string, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(constants.SessionTokenConfig.UserSessionTTL)
	tokenID := uuid.NewString()

	claims := sessionClaims{
		Guilds: identity.Guilds,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", identity.UserID),
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperrors.NewFatalError("sign session token", err)
	}

	guildsJSON, err := json.Marshal(identity.Guilds)
	if err != nil {
		return "", apperrors.NewStorageError("marshal_session_guilds", false, err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO user_sessions (user_id, token_id, guilds, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, identity.UserID, tokenID, guildsJSON, now, expiresAt); err != nil {
		return "", apperrors.NewStorageError("insert_user_session", false, err)
	}

	return signed, nil
}

// Verify: 세션 토큰을 검증하고 신원을 복원한다. 폐기된 토큰은 거부한다.
func (s *SessionService) Verify(ctx context.Context, token string) (*Identity, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperrors.NewPermissionError("invalid session token", 0)
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return nil, apperrors.NewPermissionError("malformed session subject", 0)
	}

	// 폐기 확인: token_id가 user_sessions에 남아 있어야 한다.
	var one int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM user_sessions WHERE token_id = $1 AND expires_at > NOW() LIMIT 1`,
		claims.ID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewPermissionError("session revoked or expired", 0)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("verify_session", true, err)
	}

	return &Identity{
		UserID: userID,
		Guilds: claims.Guilds,
	}, nil
}

// Revoke: 사용자 세션을 폐기합니다.
func (s *SessionService) Revoke(ctx context.Context, tokenID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE token_id = $1`, tokenID,
	); err != nil {
		return apperrors.NewStorageError("revoke_session", false, err)
	}
	return nil
}
