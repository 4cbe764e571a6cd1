package bulk

import (
	"time"

	"gorm.io/datatypes"
)

// SessionModel: bulk_scan_sessions 테이블과 매핑되는 GORM 모델입니다.
type SessionModel struct {
	Token           string    `gorm:"primaryKey;column:token"`
	GuildID         int64     `gorm:"column:guild_id;index"`
	CreatedByUserID int64     `gorm:"column:created_by_user_id"`
	Status          string    `gorm:"column:status;default:open"`
	TotalImages     int       `gorm:"column:total_images"`
	// 멱등성은 (guild, user, nonce, status=open) 조회로 보장한다.
	// confirmed 이력이 같은 nonce를 점유하면 안 되므로 유니크 제약은 걸지 않는다.
	CreationNonce *string `gorm:"column:creation_nonce;index"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	ExpiresAt       time.Time `gorm:"column:expires_at;index"`

	Results  []ResultModel  `gorm:"foreignKey:SessionToken;references:Token;constraint:OnDelete:CASCADE"`
	Failures []FailureModel `gorm:"foreignKey:SessionToken;references:Token;constraint:OnDelete:CASCADE"`
}

// TableName: GORM 모델이 매핑될 테이블 이름을 반환한다. ("bulk_scan_sessions")
func (SessionModel) TableName() string {
	return "bulk_scan_sessions"
}

// ResultModel: bulk_scan_results 테이블과 매핑되는 GORM 모델입니다.
type ResultModel struct {
	ID               int64          `gorm:"primaryKey;column:id"`
	SessionToken     string         `gorm:"column:session_token;index"`
	ImageFilename    string         `gorm:"column:image_filename"`
	ImageURL         string         `gorm:"column:image_url"`
	DetectedPlayers  datatypes.JSON `gorm:"column:detected_players;type:jsonb"`
	CorrectedPlayers datatypes.JSON `gorm:"column:corrected_players;type:jsonb"`
	ReviewStatus     string         `gorm:"column:review_status;default:pending"`
	RaceCount        int            `gorm:"column:race_count;default:12"`
	MessageTimestamp *time.Time     `gorm:"column:message_timestamp"`
	CreatedAt        time.Time      `gorm:"column:created_at"`
}

// TableName: GORM 모델이 매핑될 테이블 이름을 반환한다. ("bulk_scan_results")
func (ResultModel) TableName() string {
	return "bulk_scan_results"
}

// FailureModel: bulk_scan_failures 테이블과 매핑되는 GORM 모델입니다.
type FailureModel struct {
	ID               int64      `gorm:"primaryKey;column:id"`
	SessionToken     string     `gorm:"column:session_token;index"`
	ImageFilename    string     `gorm:"column:image_filename"`
	ImageURL         string     `gorm:"column:image_url"`
	ErrorMessage     string     `gorm:"column:error_message"`
	MessageTimestamp *time.Time `gorm:"column:message_timestamp"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
}

// TableName: GORM 모델이 매핑될 테이블 이름을 반환한다. ("bulk_scan_failures")
func (FailureModel) TableName() string {
	return "bulk_scan_failures"
}
