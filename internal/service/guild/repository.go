// Package guild: 테넌트(길드) 설정 저장소. 모든 다른 테이블의 행은
// 여기 등록된 guild_id에 속하며, 질의는 절대 길드 경계를 넘지 않는다.
package guild

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/service/database"
	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// Model: guild_configs 테이블과 매핑되는 GORM 모델입니다.
type Model struct {
	GuildID      int64          `gorm:"primaryKey;column:guild_id;autoIncrement:false"`
	GuildName    string         `gorm:"column:guild_name"`
	OCRChannelID string         `gorm:"column:ocr_channel_id"`
	TeamNames    datatypes.JSON `gorm:"column:team_names;type:jsonb"`
	IsActive     bool           `gorm:"column:is_active;default:true"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

// TableName: GORM 모델이 매핑될 테이블 이름을 반환한다. ("guild_configs")
func (Model) TableName() string {
	return "guild_configs"
}

// Repository: 길드 설정에 대한 데이터베이스 접근을 담당하는 저장소
type Repository struct {
	db     *sql.DB
	gormDB *gorm.DB
	logger *slog.Logger
}

// NewRepository: 새로운 길드 저장소 인스턴스를 생성합니다.
func NewRepository(postgres *database.PostgresService, logger *slog.Logger) *Repository {
	return &Repository{
		db:     postgres.GetDB(),
		gormDB: postgres.GetGormDB(),
		logger: logger,
	}
}

// Setup: 최초 /setup 시 길드 설정을 생성하거나 갱신한다.
// 길드는 사용자 조작으로 삭제되지 않는다.
func (r *Repository) Setup(ctx context.Context, guildID int64, guildName, teamName, channelID string) error {
	existing, err := r.Get(ctx, guildID)
	if err != nil {
		return err
	}

	teams := []string{}
	if existing != nil {
		teams = existing.TeamNames
	}
	if teamName != "" && !containsTeam(teams, teamName) {
		teams = append(teams, teamName)
	}

	teamsJSON, err := json.Marshal(teams)
	if err != nil {
		return apperrors.NewStorageError("setup_marshal_teams", false, err)
	}

	query := `
		INSERT INTO guild_configs (guild_id, guild_name, ocr_channel_id, team_names, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT (guild_id) DO UPDATE
		SET guild_name = EXCLUDED.guild_name,
		    ocr_channel_id = EXCLUDED.ocr_channel_id,
		    team_names = EXCLUDED.team_names,
		    is_active = TRUE,
		    updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, guildID, guildName, channelID, teamsJSON); err != nil {
		return apperrors.NewStorageError("setup_guild", false, err)
	}

	r.logger.Info("Guild configured",
		slog.Int64("guild_id", guildID),
		slog.String("channel", channelID),
	)
	return nil
}

// Get: 길드 설정을 조회합니다. 없으면 (nil, nil)을 반환한다.
func (r *Repository) Get(ctx context.Context, guildID int64) (*domain.GuildConfig, error) {
	query := `
		SELECT guild_id, guild_name, ocr_channel_id, team_names, is_active, created_at, updated_at
		FROM guild_configs
		WHERE guild_id = $1
		LIMIT 1
	`

	var (
		cfg       domain.GuildConfig
		teamsJSON []byte
	)
	err := r.db.QueryRowContext(ctx, query, guildID).Scan(
		&cfg.GuildID, &cfg.GuildName, &cfg.OCRChannelID, &teamsJSON,
		&cfg.IsActive, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get_guild", false, err)
	}

	if len(teamsJSON) > 0 {
		if err := json.Unmarshal(teamsJSON, &cfg.TeamNames); err != nil {
			return nil, apperrors.NewFatalError(fmt.Sprintf("corrupt team_names guild=%d", guildID), err)
		}
	}
	return &cfg, nil
}

// GetMany: 여러 길드 설정을 한 번에 조회합니다. (/guilds 응답용)
func (r *Repository) GetMany(ctx context.Context, guildIDs []int64) ([]*domain.GuildConfig, error) {
	out := make([]*domain.GuildConfig, 0, len(guildIDs))
	for _, id := range guildIDs {
		cfg, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			out = append(out, cfg)
		}
	}
	return out, nil
}

// SetOCRChannel: 자동 스캔 대상 채널을 변경합니다.
func (r *Repository) SetOCRChannel(ctx context.Context, guildID int64, channelID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE guild_configs SET ocr_channel_id = $1, updated_at = NOW() WHERE guild_id = $2`,
		channelID, guildID,
	)
	if err != nil {
		return apperrors.NewStorageError("set_ocr_channel", false, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NewValidationError("guild is not set up", "guild_id")
	}
	return nil
}

// AddTeam: 팀 이름을 추가합니다. 이미 있으면 Validation 에러.
func (r *Repository) AddTeam(ctx context.Context, guildID int64, team string) error {
	return r.mutateTeams(ctx, guildID, func(teams []string) ([]string, error) {
		if containsTeam(teams, team) {
			return nil, apperrors.NewValidationError("team already exists", "team")
		}
		return append(teams, team), nil
	})
}

// RemoveTeam: 팀 이름을 제거합니다. 없으면 Validation 에러.
func (r *Repository) RemoveTeam(ctx context.Context, guildID int64, team string) error {
	return r.mutateTeams(ctx, guildID, func(teams []string) ([]string, error) {
		if !containsTeam(teams, team) {
			return nil, apperrors.NewValidationError("team does not exist", "team")
		}
		out := make([]string, 0, len(teams)-1)
		for _, t := range teams {
			if t != team {
				out = append(out, t)
			}
		}
		return out, nil
	})
}

// RenameTeam: 팀 이름을 변경합니다.
func (r *Repository) RenameTeam(ctx context.Context, guildID int64, oldName, newName string) error {
	return r.mutateTeams(ctx, guildID, func(teams []string) ([]string, error) {
		if !containsTeam(teams, oldName) {
			return nil, apperrors.NewValidationError("team does not exist", "team")
		}
		if containsTeam(teams, newName) {
			return nil, apperrors.NewValidationError("team already exists", "team")
		}
		out := make([]string, len(teams))
		for i, t := range teams {
			if t == oldName {
				out[i] = newName
			} else {
				out[i] = t
			}
		}
		return out, nil
	})
}

func (r *Repository) mutateTeams(ctx context.Context, guildID int64, mutate func([]string) ([]string, error)) error {
	cfg, err := r.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return apperrors.NewValidationError("guild is not set up", "guild_id")
	}

	teams, err := mutate(cfg.TeamNames)
	if err != nil {
		return err
	}

	teamsJSON, err := json.Marshal(teams)
	if err != nil {
		return apperrors.NewStorageError("marshal_teams", false, err)
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE guild_configs SET team_names = $1, updated_at = NOW() WHERE guild_id = $2`,
		teamsJSON, guildID,
	); err != nil {
		return apperrors.NewStorageError("update_teams", false, err)
	}
	return nil
}

func containsTeam(teams []string, team string) bool {
	for _, t := range teams {
		if t == team {
			return true
		}
	}
	return false
}
