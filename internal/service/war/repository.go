// Package war: 전적(war) 저장소와 제출/삭제 서비스.
// 전적 1건의 쓰기(war 행 + war_players + 플레이어 집계 갱신)는 반드시
// 하나의 SERIALIZABLE 트랜잭션으로 실행된다.
package war

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/service/database"
	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// Model: wars 테이블과 매핑되는 GORM 모델입니다.
type Model struct {
	ID               int64     `gorm:"primaryKey;column:id"`
	GuildID          int64     `gorm:"column:guild_id;index"`
	RaceCount        int       `gorm:"column:race_count;default:12"`
	TeamScore        int       `gorm:"column:team_score"`
	TeamDifferential int       `gorm:"column:team_differential"`
	WarDate          time.Time `gorm:"column:war_date"`
	CreatedAt        time.Time `gorm:"column:created_at"`

	Players []PlayerModel `gorm:"foreignKey:WarID;constraint:OnDelete:CASCADE"`
}

// TableName: GORM 모델이 매핑될 테이블 이름을 반환한다. ("wars")
func (Model) TableName() string {
	return "wars"
}

// PlayerModel: war_players 테이블과 매핑되는 GORM 모델입니다.
type PlayerModel struct {
	ID          int64  `gorm:"primaryKey;column:id"`
	WarID       int64  `gorm:"column:war_id;index;uniqueIndex:idx_war_player"`
	GuildID     int64  `gorm:"column:guild_id;index"`
	PlayerName  string `gorm:"column:player_name;uniqueIndex:idx_war_player"`
	Score       int    `gorm:"column:score"`
	RacesPlayed int    `gorm:"column:races_played"`
}

// TableName: GORM 모델이 매핑될 테이블 이름을 반환한다. ("war_players")
func (PlayerModel) TableName() string {
	return "war_players"
}

// Repository: 전적 조회 및 트랜잭션 내 쓰기를 담당하는 저장소
type Repository struct {
	db     *sql.DB
	gormDB *gorm.DB
	logger *slog.Logger
}

// NewRepository: 새로운 전적 저장소 인스턴스를 생성합니다.
func NewRepository(postgres *database.PostgresService, logger *slog.Logger) *Repository {
	return &Repository{
		db:     postgres.GetDB(),
		gormDB: postgres.GetGormDB(),
		logger: logger,
	}
}

// GetByID: 전적 1건을 플레이어 목록과 함께 조회합니다. 없으면 (nil, nil).
func (r *Repository) GetByID(ctx context.Context, guildID, warID int64) (*domain.War, error) {
	query := `
		SELECT id, guild_id, race_count, team_score, team_differential, war_date, created_at
		FROM wars
		WHERE id = $1 AND guild_id = $2
		LIMIT 1
	`
	var w domain.War
	err := r.db.QueryRowContext(ctx, query, warID, guildID).Scan(
		&w.ID, &w.GuildID, &w.RaceCount, &w.TeamScore, &w.TeamDifferential, &w.WarDate, &w.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get_war", true, err)
	}

	players, err := r.playersOf(ctx, warID)
	if err != nil {
		return nil, err
	}
	w.Players = players
	return &w, nil
}

func (r *Repository) playersOf(ctx context.Context, warID int64) ([]domain.WarPlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT player_name, score, races_played FROM war_players WHERE war_id = $1 ORDER BY score DESC, player_name`,
		warID,
	)
	if err != nil {
		return nil, apperrors.NewStorageError("war_players", true, err)
	}
	defer rows.Close()

	var players []domain.WarPlayer
	for rows.Next() {
		var p domain.WarPlayer
		if err := rows.Scan(&p.Name, &p.Score, &p.RacesPlayed); err != nil {
			return nil, apperrors.NewStorageError("scan_war_player", false, err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// List: 전적 목록을 최신순으로 페이지네이션해 반환합니다.
func (r *Repository) List(ctx context.Context, guildID int64, offset, limit int) ([]*domain.War, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wars WHERE guild_id = $1`, guildID,
	).Scan(&total); err != nil {
		return nil, 0, apperrors.NewStorageError("count_wars", true, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, guild_id, race_count, team_score, team_differential, war_date, created_at
		FROM wars
		WHERE guild_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`, guildID, offset, limit)
	if err != nil {
		return nil, 0, apperrors.NewStorageError("list_wars", true, err)
	}
	defer rows.Close()

	var wars []*domain.War
	for rows.Next() {
		var w domain.War
		if err := rows.Scan(&w.ID, &w.GuildID, &w.RaceCount, &w.TeamScore, &w.TeamDifferential, &w.WarDate, &w.CreatedAt); err != nil {
			return nil, 0, apperrors.NewStorageError("scan_war", false, err)
		}
		wars = append(wars, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.NewStorageError("list_wars", true, err)
	}

	for _, w := range wars {
		players, err := r.playersOf(ctx, w.ID)
		if err != nil {
			return nil, 0, err
		}
		w.Players = players
	}
	return wars, total, nil
}

// Latest: 길드의 가장 최근 전적을 반환합니다. 중복 제출 검사용. 없으면 (nil, nil).
func (r *Repository) Latest(ctx context.Context, guildID int64) (*domain.War, error) {
	var warID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM wars WHERE guild_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		guildID,
	).Scan(&warID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("latest_war", true, err)
	}
	return r.GetByID(ctx, guildID, warID)
}

// InsertTx: 트랜잭션 안에서 전적 행과 참가자 행을 삽입하고 war_id를 반환한다.
// 플레이어 집계 갱신은 호출측(Service)이 같은 트랜잭션에서 수행한다.
func InsertTx(ctx context.Context, tx *sql.Tx, guildID int64, players []domain.WarPlayer, raceCount, teamScore, teamDifferential int, warDate time.Time) (int64, error) {
	var warID int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO wars (guild_id, race_count, team_score, team_differential, war_date, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`, guildID, raceCount, teamScore, teamDifferential, warDate).Scan(&warID)
	if err != nil {
		return 0, err
	}

	for _, p := range players {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO war_players (war_id, guild_id, player_name, score, races_played)
			VALUES ($1, $2, $3, $4, $5)
		`, warID, guildID, p.Name, p.Score, p.RacesPlayed); err != nil {
			return 0, err
		}
	}
	return warID, nil
}

// DeleteTx: 트랜잭션 안에서 전적 행을 삭제한다. war_players는 FK cascade로 함께 지워진다.
func DeleteTx(ctx context.Context, tx *sql.Tx, guildID, warID int64) error {
	result, err := tx.ExecContext(ctx,
		`DELETE FROM wars WHERE id = $1 AND guild_id = $2`, warID, guildID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NewValidationError("unknown war id", "war_id")
	}
	return nil
}
