// Package roster: 길드 로스터(플레이어, 닉네임, 팀 배정) 저장소.
// 파생 집계(total_score, war_count 등)는 war 서비스의 트랜잭션이 갱신하며,
// 이 패키지는 로스터 구성만 다룬다.
package roster

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/service/database"
	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// Model: players 테이블과 매핑되는 GORM 모델입니다.
type Model struct {
	ID                    int64          `gorm:"primaryKey;column:id"`
	GuildID               int64          `gorm:"column:guild_id;index;uniqueIndex:idx_guild_player_name"`
	Name                  string         `gorm:"column:name;uniqueIndex:idx_guild_player_name"`
	Nicknames             datatypes.JSON `gorm:"column:nicknames;type:jsonb"`
	Team                  string         `gorm:"column:team;default:Unassigned"`
	MemberStatus          string         `gorm:"column:member_status;default:Member"`
	IsActive              bool           `gorm:"column:is_active;default:true"`
	TotalScore            int            `gorm:"column:total_score;default:0"`
	TotalRaces            int            `gorm:"column:total_races;default:0"`
	WarCount              float64        `gorm:"column:war_count;type:numeric(8,2);default:0"`
	AverageScore          float64        `gorm:"column:average_score;default:0"`
	TotalTeamDifferential int            `gorm:"column:total_team_differential;default:0"`
	LastWarDate           *time.Time     `gorm:"column:last_war_date"`
	CreatedAt             time.Time      `gorm:"column:created_at"`
	UpdatedAt             time.Time      `gorm:"column:updated_at"`
}

// TableName: GORM 모델이 매핑될 테이블 이름을 반환한다. ("players")
func (Model) TableName() string {
	return "players"
}

const playerColumns = `
	id, guild_id, name, nicknames, team, member_status, is_active,
	total_score, total_races, war_count, average_score,
	total_team_differential, last_war_date, created_at, updated_at
`

// Repository: 플레이어 정보에 대한 데이터베이스 접근을 담당하는 저장소
type Repository struct {
	db     *sql.DB
	gormDB *gorm.DB
	logger *slog.Logger
}

// NewRepository: 새로운 로스터 저장소 인스턴스를 생성합니다.
func NewRepository(postgres *database.PostgresService, logger *slog.Logger) *Repository {
	return &Repository{
		db:     postgres.GetDB(),
		gormDB: postgres.GetGormDB(),
		logger: logger,
	}
}

func scanPlayer(row interface{ Scan(...any) error }) (*domain.Player, error) {
	var (
		p             domain.Player
		status        string
		nicknamesJSON []byte
		lastWar       sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.GuildID, &p.Name, &nicknamesJSON, &p.Team, &status, &p.IsActive,
		&p.TotalScore, &p.TotalRaces, &p.WarCount, &p.AverageScore,
		&p.TotalTeamDifferential, &lastWar, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.MemberStatus = domain.MemberStatus(status)
	if lastWar.Valid {
		t := lastWar.Time
		p.LastWarDate = &t
	}
	if len(nicknamesJSON) > 0 {
		if err := json.Unmarshal(nicknamesJSON, &p.Nicknames); err != nil {
			return nil, apperrors.NewFatalError(fmt.Sprintf("corrupt nicknames player=%s", p.Name), err)
		}
	}
	return &p, nil
}

// Create: 새 플레이어를 로스터에 추가합니다. 같은 이름이 이미 있으면 Validation 에러.
func (r *Repository) Create(ctx context.Context, guildID int64, name string, status domain.MemberStatus) (*domain.Player, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("player name must not be empty", "name")
	}
	if status == "" {
		status = domain.StatusMember
	}
	if !domain.ValidMemberStatus(string(status)) {
		return nil, apperrors.NewValidationError("unknown member status", "member_status")
	}

	// 닉네임 충돌(길드 전역, 대소문자 무시)은 해석 결정성을 깨뜨리므로 함께 막는다.
	if owner, err := r.findNicknameOwner(ctx, guildID, name); err != nil {
		return nil, err
	} else if owner != "" {
		return nil, apperrors.NewStateError(apperrors.ReasonDuplicateNickname,
			fmt.Sprintf("%q is already a nickname of %s", name, owner))
	}

	query := `
		INSERT INTO players (guild_id, name, nicknames, team, member_status, is_active, created_at, updated_at)
		VALUES ($1, $2, '[]'::jsonb, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT (guild_id, name) DO NOTHING
		RETURNING ` + playerColumns

	row := r.db.QueryRowContext(ctx, query, guildID, name, domain.UnassignedTeam, string(status))
	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewValidationError("player already exists", "name")
	}
	if err != nil {
		return nil, apperrors.NewStorageError("create_player", false, err)
	}

	r.logger.Info("Player added",
		slog.Int64("guild_id", guildID),
		slog.String("name", name),
		slog.String("status", string(status)),
	)
	return p, nil
}

// GetByName: 정식 이름(대소문자 구분)으로 플레이어를 조회합니다. 없으면 (nil, nil).
func (r *Repository) GetByName(ctx context.Context, guildID int64, name string) (*domain.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE guild_id = $1 AND name = $2 LIMIT 1`
	p, err := scanPlayer(r.db.QueryRowContext(ctx, query, guildID, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get_player", false, err)
	}
	return p, nil
}

// List: 길드의 플레이어 목록을 이름순으로 반환합니다.
func (r *Repository) List(ctx context.Context, guildID int64, includeInactive bool) ([]*domain.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE guild_id = $1`
	if !includeInactive {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, guildID)
	if err != nil {
		return nil, apperrors.NewStorageError("list_players", true, err)
	}
	defer rows.Close()

	var players []*domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan_player", false, err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// ListByStatus: 특정 멤버 상태의 플레이어 목록을 반환합니다. (showtrials, showkicked)
func (r *Repository) ListByStatus(ctx context.Context, guildID int64, status domain.MemberStatus) ([]*domain.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE guild_id = $1 AND member_status = $2 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, guildID, string(status))
	if err != nil {
		return nil, apperrors.NewStorageError("list_players_by_status", true, err)
	}
	defer rows.Close()

	var players []*domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan_player", false, err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// ListByTeam: 특정 팀 소속 플레이어 목록을 반환합니다.
func (r *Repository) ListByTeam(ctx context.Context, guildID int64, team string) ([]*domain.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE guild_id = $1 AND team = $2 AND is_active = TRUE ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, guildID, team)
	if err != nil {
		return nil, apperrors.NewStorageError("list_players_by_team", true, err)
	}
	defer rows.Close()

	var players []*domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan_player", false, err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// SetMemberStatus: 멤버 상태를 변경한다. Kicked는 is_active=false를 함께 유도한다.
func (r *Repository) SetMemberStatus(ctx context.Context, guildID int64, name string, status domain.MemberStatus) error {
	if !domain.ValidMemberStatus(string(status)) {
		return apperrors.NewValidationError("unknown member status", "member_status")
	}

	active := status != domain.StatusKicked
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET member_status = $1, is_active = $2, updated_at = NOW()
		 WHERE guild_id = $3 AND name = $4`,
		string(status), active, guildID, name,
	)
	if err != nil {
		return apperrors.NewStorageError("set_member_status", false, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NewValidationError("unknown player", "name")
	}
	return nil
}

// Deactivate: 플레이어를 로스터에서 제외한다 (행은 유지, is_active=false).
// 과거 전적의 통계 기여는 그대로 남는다.
func (r *Repository) Deactivate(ctx context.Context, guildID int64, name string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET is_active = FALSE, updated_at = NOW() WHERE guild_id = $1 AND name = $2`,
		guildID, name,
	)
	if err != nil {
		return apperrors.NewStorageError("deactivate_player", false, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NewValidationError("unknown player", "name")
	}
	return nil
}

// AddNickname: 닉네임을 추가한다. 길드 전역에서 대소문자 무시 유일해야 한다.
func (r *Repository) AddNickname(ctx context.Context, guildID int64, name, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return apperrors.NewValidationError("nickname must not be empty", "nickname")
	}

	owner, err := r.findNicknameOwner(ctx, guildID, nickname)
	if err != nil {
		return err
	}
	if owner != "" {
		return apperrors.NewStateError(apperrors.ReasonDuplicateNickname,
			fmt.Sprintf("nickname %q already belongs to %s", nickname, owner))
	}

	p, err := r.GetByName(ctx, guildID, name)
	if err != nil {
		return err
	}
	if p == nil {
		return apperrors.NewValidationError("unknown player", "name")
	}
	if p.HasNickname(nickname) || strings.EqualFold(p.Name, nickname) {
		return apperrors.NewStateError(apperrors.ReasonDuplicateNickname, "nickname already set")
	}

	return r.writeNicknames(ctx, guildID, name, append(p.Nicknames, nickname))
}

// RemoveNickname: 닉네임을 제거합니다.
func (r *Repository) RemoveNickname(ctx context.Context, guildID int64, name, nickname string) error {
	p, err := r.GetByName(ctx, guildID, name)
	if err != nil {
		return err
	}
	if p == nil {
		return apperrors.NewValidationError("unknown player", "name")
	}

	kept := make([]string, 0, len(p.Nicknames))
	removed := false
	for _, n := range p.Nicknames {
		if strings.EqualFold(n, nickname) {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	if !removed {
		return apperrors.NewValidationError("nickname not found", "nickname")
	}

	return r.writeNicknames(ctx, guildID, name, kept)
}

func (r *Repository) writeNicknames(ctx context.Context, guildID int64, name string, nicknames []string) error {
	payload, err := json.Marshal(nicknames)
	if err != nil {
		return apperrors.NewStorageError("marshal_nicknames", false, err)
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE players SET nicknames = $1, updated_at = NOW() WHERE guild_id = $2 AND name = $3`,
		payload, guildID, name,
	); err != nil {
		return apperrors.NewStorageError("write_nicknames", false, err)
	}
	return nil
}

// findNicknameOwner: 닉네임(대소문자 무시)을 이미 보유한 플레이어의 이름을 찾는다.
func (r *Repository) findNicknameOwner(ctx context.Context, guildID int64, nickname string) (string, error) {
	players, err := r.List(ctx, guildID, true)
	if err != nil {
		return "", err
	}
	for _, p := range players {
		if p.HasNickname(nickname) {
			return p.Name, nil
		}
	}
	return "", nil
}

// AssignTeam: 플레이어들을 팀에 배정합니다.
func (r *Repository) AssignTeam(ctx context.Context, guildID int64, names []string, team string) error {
	for _, name := range names {
		result, err := r.db.ExecContext(ctx,
			`UPDATE players SET team = $1, updated_at = NOW() WHERE guild_id = $2 AND name = $3`,
			team, guildID, name,
		)
		if err != nil {
			return apperrors.NewStorageError("assign_team", false, err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return apperrors.NewValidationError(fmt.Sprintf("unknown player %q", name), "players")
		}
	}
	return nil
}

// UnassignTeam: 플레이어의 팀 배정을 해제합니다.
func (r *Repository) UnassignTeam(ctx context.Context, guildID int64, name string) error {
	return r.AssignTeam(ctx, guildID, []string{name}, domain.UnassignedTeam)
}

// RenameTeamMembers: 팀 이름 변경 시 소속 플레이어들의 team 값을 일괄 갱신한다.
func (r *Repository) RenameTeamMembers(ctx context.Context, guildID int64, oldName, newName string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE players SET team = $1, updated_at = NOW() WHERE guild_id = $2 AND team = $3`,
		newName, guildID, oldName,
	); err != nil {
		return apperrors.NewStorageError("rename_team_members", false, err)
	}
	return nil
}

// UnassignTeamMembers: 팀 삭제 시 소속 플레이어들을 Unassigned로 되돌린다.
func (r *Repository) UnassignTeamMembers(ctx context.Context, guildID int64, team string) error {
	return r.RenameTeamMembers(ctx, guildID, team, domain.UnassignedTeam)
}
