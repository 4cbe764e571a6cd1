package war

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/service/database"
	"github.com/kapu/mkw-stats-bot-go/internal/service/roster"
	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// SubmissionResult: 전적 제출 1건의 결과.
type SubmissionResult struct {
	WarID            int64
	TeamScore        int
	TeamDifferential int
	PlayersCreated   []string // confirm 안전망으로 자동 생성된 로스터 이름
}

// SubmitOptions: 전적 제출 동작 옵션.
type SubmitOptions struct {
	// AutoCreateMissing: 로스터에 없는 이름을 Member/Unassigned로 자동 생성한다.
	// 벌크 confirm의 안전망 전용이며, 명령어 경로에서는 꺼져 있다.
	AutoCreateMissing bool
	// Force: 직전 전적과 동일한 (이름, 점수) 구성이어도 제출을 허용한다.
	Force bool
	// WarDate: 기록할 전적 날짜. 제로값이면 현재 시각.
	WarDate time.Time
}

// Service: 전적 제출/삭제/추가의 단일 진입점.
// 모든 호출 경로(명령어, 단건 OCR 승인, 벌크 confirm)가 이 서비스를 거쳐
// 플레이어 집계가 같은 트랜잭션에서 갱신되도록 보장한다.
type Service struct {
	postgres    *database.PostgresService
	repo        *Repository
	rosterCache *roster.Cache
	logger      *slog.Logger
}

// NewService: 새로운 전적 서비스를 생성합니다.
func NewService(
	postgres *database.PostgresService,
	repo *Repository,
	rosterCache *roster.Cache,
	logger *slog.Logger,
) *Service {
	return &Service{
		postgres:    postgres,
		repo:        repo,
		rosterCache: rosterCache,
		logger:      logger,
	}
}

// ValidateRaceCount: 레이스 수가 1..24 범위인지 검증합니다.
func ValidateRaceCount(raceCount int) error {
	if raceCount < constants.ScoringConfig.MinRaceCount || raceCount > constants.ScoringConfig.MaxRaceCount {
		return apperrors.NewValidationError(
			fmt.Sprintf("race count must be between %d and %d",
				constants.ScoringConfig.MinRaceCount, constants.ScoringConfig.MaxRaceCount),
			"race_count",
		)
	}
	return nil
}

func validatePlayers(players []domain.WarPlayer, raceCount int) error {
	if len(players) == 0 {
		return apperrors.NewValidationError("a war needs at least one player", "players")
	}
	seen := make(map[string]struct{}, len(players))
	for _, p := range players {
		if strings.TrimSpace(p.Name) == "" {
			return apperrors.NewValidationError("player name must not be empty", "players")
		}
		key := strings.ToLower(p.Name)
		if _, dup := seen[key]; dup {
			return apperrors.NewValidationError(fmt.Sprintf("duplicate player %q", p.Name), "players")
		}
		seen[key] = struct{}{}
		if p.Score < constants.ScoringConfig.MinScore || p.Score > constants.ScoringConfig.MaxScore {
			return apperrors.NewValidationError(fmt.Sprintf("score out of range for %q", p.Name), "players")
		}
		if p.RacesPlayed <= 0 || p.RacesPlayed > raceCount {
			return apperrors.NewValidationError(
				fmt.Sprintf("races played for %q must be in 1..%d", p.Name, raceCount), "players")
		}
	}
	return nil
}

// normalizeRaces: races_played가 비어 있으면 race_count 전체 참가로 간주한다.
func normalizeRaces(players []domain.WarPlayer, raceCount int) []domain.WarPlayer {
	out := make([]domain.WarPlayer, len(players))
	for i, p := range players {
		if p.RacesPlayed == 0 {
			p.RacesPlayed = raceCount
		}
		out[i] = p
	}
	return out
}

// Submit: 전적 1건을 제출한다. 전적 행, 참가자 행, 플레이어 집계 갱신이
// 하나의 SERIALIZABLE 트랜잭션으로 커밋된다.
func (s *Service) Submit(ctx context.Context, guildID int64, players []domain.WarPlayer, raceCount int, opts SubmitOptions) (*SubmissionResult, error) {
	if raceCount == 0 {
		raceCount = constants.ScoringConfig.DefaultRaceCount
	}
	if err := ValidateRaceCount(raceCount); err != nil {
		return nil, err
	}
	players = normalizeRaces(players, raceCount)
	if err := validatePlayers(players, raceCount); err != nil {
		return nil, err
	}

	if !opts.Force {
		last, err := s.repo.Latest(ctx, guildID)
		if err != nil {
			return nil, err
		}
		if last != nil && isDuplicateWar(players, last.Players) {
			return nil, apperrors.NewStateError(apperrors.ReasonDuplicateWar,
				"identical to the most recent war; resubmit with force to override")
		}
	}

	warDate := opts.WarDate
	if warDate.IsZero() {
		warDate = time.Now().UTC()
	}

	teamScore := domain.TeamScoreOf(players)
	teamDifferential := domain.TeamDifferentialOf(players, raceCount, constants.ScoringConfig.BreakevenPerRace)

	result := &SubmissionResult{
		TeamScore:        teamScore,
		TeamDifferential: teamDifferential,
	}

	err := s.postgres.RunSerializable(ctx, func(tx *sql.Tx) error {
		result.PlayersCreated = result.PlayersCreated[:0]

		for _, p := range players {
			known, err := playerExistsTx(ctx, tx, guildID, p.Name)
			if err != nil {
				return err
			}
			if !known {
				if !opts.AutoCreateMissing {
					return apperrors.NewValidationError(fmt.Sprintf("unknown player %q", p.Name), "players")
				}
				if err := createPlayerTx(ctx, tx, guildID, p.Name); err != nil {
					return err
				}
				result.PlayersCreated = append(result.PlayersCreated, p.Name)
			}
		}

		warID, err := InsertTx(ctx, tx, guildID, players, raceCount, teamScore, teamDifferential, warDate)
		if err != nil {
			return err
		}
		result.WarID = warID

		for _, p := range players {
			if err := applyPlayerDeltaTx(ctx, tx, guildID, p.Name, playerDelta{
				score:        p.Score,
				races:        p.RacesPlayed,
				warFraction:  float64(p.RacesPlayed) / float64(raceCount),
				differential: teamDifferential,
				warDate:      &warDate,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.PlayersCreated) > 0 {
		s.rosterCache.Invalidate(ctx, guildID)
	}

	s.logger.Info("War submitted",
		slog.Int64("guild_id", guildID),
		slog.Int64("war_id", result.WarID),
		slog.Int("players", len(players)),
		slog.Int("differential", teamDifferential),
	)
	return result, nil
}

// Remove: 전적을 삭제하고 참가자들의 집계 기여를 같은 트랜잭션에서 되돌린다.
// last_war_date는 남은 전적에 대한 질의로 재계산된다.
func (s *Service) Remove(ctx context.Context, guildID, warID int64) (*domain.War, error) {
	var removed *domain.War

	err := s.postgres.RunSerializable(ctx, func(tx *sql.Tx) error {
		w, err := getWarTx(ctx, tx, guildID, warID)
		if err != nil {
			return err
		}
		if w == nil {
			return apperrors.NewValidationError("unknown war id", "war_id")
		}
		removed = w

		for _, p := range w.Players {
			if err := applyPlayerDeltaTx(ctx, tx, guildID, p.Name, playerDelta{
				score:        -p.Score,
				races:        -p.RacesPlayed,
				warFraction:  -float64(p.RacesPlayed) / float64(w.RaceCount),
				differential: -w.TeamDifferential,
			}); err != nil {
				return err
			}
		}

		if err := DeleteTx(ctx, tx, guildID, warID); err != nil {
			return err
		}

		// 삭제 후 남은 전적 기준으로 last_war_date를 재계산한다.
		for _, p := range w.Players {
			if err := recomputeLastWarDateTx(ctx, tx, guildID, p.Name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("War removed",
		slog.Int64("guild_id", guildID),
		slog.Int64("war_id", warID),
		slog.Int("players", len(removed.Players)),
	)
	return removed, nil
}

// AppendPlayers: 기존 전적에 플레이어를 추가한다. 이미 참가한 이름은 거부하며,
// 전적의 점수/차이와 추가 인원의 집계가 같은 트랜잭션에서 갱신된다.
func (s *Service) AppendPlayers(ctx context.Context, guildID, warID int64, newPlayers []domain.WarPlayer) (*domain.War, error) {
	var updated *domain.War

	err := s.postgres.RunSerializable(ctx, func(tx *sql.Tx) error {
		w, err := getWarTx(ctx, tx, guildID, warID)
		if err != nil {
			return err
		}
		if w == nil {
			return apperrors.NewValidationError("unknown war id", "war_id")
		}

		players := normalizeRaces(newPlayers, w.RaceCount)
		if err := validatePlayers(players, w.RaceCount); err != nil {
			return err
		}
		for _, p := range players {
			for _, existing := range w.Players {
				if strings.EqualFold(existing.Name, p.Name) {
					return apperrors.NewValidationError(
						fmt.Sprintf("player %q is already in war %d", p.Name, warID), "players")
				}
			}
			known, err := playerExistsTx(ctx, tx, guildID, p.Name)
			if err != nil {
				return err
			}
			if !known {
				return apperrors.NewValidationError(fmt.Sprintf("unknown player %q", p.Name), "players")
			}
		}

		combined := append(append([]domain.WarPlayer{}, w.Players...), players...)
		newScore := domain.TeamScoreOf(combined)
		newDifferential := domain.TeamDifferentialOf(combined, w.RaceCount, constants.ScoringConfig.BreakevenPerRace)
		differentialShift := newDifferential - w.TeamDifferential

		for _, p := range players {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO war_players (war_id, guild_id, player_name, score, races_played)
				VALUES ($1, $2, $3, $4, $5)
			`, warID, guildID, p.Name, p.Score, p.RacesPlayed); err != nil {
				return err
			}
			if err := applyPlayerDeltaTx(ctx, tx, guildID, p.Name, playerDelta{
				score:        p.Score,
				races:        p.RacesPlayed,
				warFraction:  float64(p.RacesPlayed) / float64(w.RaceCount),
				differential: newDifferential,
				warDate:      &w.WarDate,
			}); err != nil {
				return err
			}
		}

		// 기존 참가자들의 누적 팀 차이는 새 차이와의 격차만큼 보정한다.
		for _, p := range w.Players {
			if err := applyPlayerDeltaTx(ctx, tx, guildID, p.Name, playerDelta{
				differential: differentialShift,
			}); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE wars SET team_score = $1, team_differential = $2 WHERE id = $3 AND guild_id = $4
		`, newScore, newDifferential, warID, guildID); err != nil {
			return err
		}

		w.Players = combined
		w.TeamScore = newScore
		w.TeamDifferential = newDifferential
		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// BatchEntry: 일괄 제출할 전적 1건.
type BatchEntry struct {
	Players   []domain.WarPlayer
	RaceCount int
	WarDate   time.Time
}

// ValidateBatch: 일괄 제출 항목들을 검증하고 기본값을 채운다. 트랜잭션 밖에서 호출한다.
func ValidateBatch(entries []BatchEntry) ([]BatchEntry, error) {
	out := make([]BatchEntry, len(entries))
	for i, entry := range entries {
		if entry.RaceCount == 0 {
			entry.RaceCount = constants.ScoringConfig.DefaultRaceCount
		}
		if err := ValidateRaceCount(entry.RaceCount); err != nil {
			return nil, err
		}
		entry.Players = normalizeRaces(entry.Players, entry.RaceCount)
		if err := validatePlayers(entry.Players, entry.RaceCount); err != nil {
			return nil, err
		}
		if entry.WarDate.IsZero() {
			entry.WarDate = time.Now().UTC()
		}
		out[i] = entry
	}
	return out, nil
}

// SubmitBatchTx: 호출측 트랜잭션 안에서 여러 전적을 제출한다.
// 벌크 confirm 전용: 로스터에 없는 이름은 안전망으로 자동 생성되며,
// 생성된 war_id들을 입력 순서대로 반환한다. entries는 ValidateBatch를 거친 값이어야 한다.
func (s *Service) SubmitBatchTx(ctx context.Context, tx *sql.Tx, guildID int64, entries []BatchEntry) (warIDs []int64, created []string, err error) {
	createdSet := make(map[string]struct{})

	for _, entry := range entries {
		for _, p := range entry.Players {
			known, err := playerExistsTx(ctx, tx, guildID, p.Name)
			if err != nil {
				return nil, nil, err
			}
			if _, justCreated := createdSet[p.Name]; known || justCreated {
				continue
			}
			if err := createPlayerTx(ctx, tx, guildID, p.Name); err != nil {
				return nil, nil, err
			}
			createdSet[p.Name] = struct{}{}
			created = append(created, p.Name)
		}

		teamScore := domain.TeamScoreOf(entry.Players)
		teamDifferential := domain.TeamDifferentialOf(entry.Players, entry.RaceCount, constants.ScoringConfig.BreakevenPerRace)

		warID, err := InsertTx(ctx, tx, guildID, entry.Players, entry.RaceCount, teamScore, teamDifferential, entry.WarDate)
		if err != nil {
			return nil, nil, err
		}
		warIDs = append(warIDs, warID)

		for _, p := range entry.Players {
			warDate := entry.WarDate
			if err := applyPlayerDeltaTx(ctx, tx, guildID, p.Name, playerDelta{
				score:        p.Score,
				races:        p.RacesPlayed,
				warFraction:  float64(p.RacesPlayed) / float64(entry.RaceCount),
				differential: teamDifferential,
				warDate:      &warDate,
			}); err != nil {
				return nil, nil, err
			}
		}
	}
	return warIDs, created, nil
}

// InvalidateRoster: confirm이 안전망으로 로스터를 변이했을 때 캐시를 무효화한다.
func (s *Service) InvalidateRoster(ctx context.Context, guildID int64) {
	s.rosterCache.Invalidate(ctx, guildID)
}

// playerDelta: 플레이어 집계에 적용할 증감. 제거 경로에서는 부호가 반전된다.
type playerDelta struct {
	score        int
	races        int
	warFraction  float64
	differential int
	warDate      *time.Time
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// applyPlayerDeltaTx: 대상 플레이어 행만 잠그고(FOR UPDATE) 집계를 갱신한다.
func applyPlayerDeltaTx(ctx context.Context, tx *sql.Tx, guildID int64, name string, d playerDelta) error {
	var (
		totalScore int
		totalRaces int
		warCount   float64
		totalDiff  int
		lastWar    sql.NullTime
	)
	err := tx.QueryRowContext(ctx, `
		SELECT total_score, total_races, war_count, total_team_differential, last_war_date
		FROM players
		WHERE guild_id = $1 AND name = $2
		FOR UPDATE
	`, guildID, name).Scan(&totalScore, &totalRaces, &warCount, &totalDiff, &lastWar)
	if err == sql.ErrNoRows {
		return apperrors.NewValidationError(fmt.Sprintf("unknown player %q", name), "players")
	}
	if err != nil {
		return err
	}

	totalScore += d.score
	totalRaces += d.races
	warCount = round2(warCount + d.warFraction)
	if warCount < 0 {
		warCount = 0
	}
	totalDiff += d.differential

	averageScore := 0.0
	if warCount > 0 {
		averageScore = float64(totalScore) / warCount
	}

	newLastWar := lastWar
	if d.warDate != nil && (!lastWar.Valid || d.warDate.After(lastWar.Time)) {
		newLastWar = sql.NullTime{Time: *d.warDate, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE players
		SET total_score = $1, total_races = $2, war_count = $3, average_score = $4,
		    total_team_differential = $5, last_war_date = $6, updated_at = NOW()
		WHERE guild_id = $7 AND name = $8
	`, totalScore, totalRaces, warCount, averageScore, totalDiff, newLastWar, guildID, name)
	return err
}

func recomputeLastWarDateTx(ctx context.Context, tx *sql.Tx, guildID int64, name string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE players
		SET last_war_date = (
			SELECT MAX(w.war_date)
			FROM wars w
			JOIN war_players wp ON wp.war_id = w.id
			WHERE w.guild_id = $1 AND wp.player_name = $2
		), updated_at = NOW()
		WHERE guild_id = $1 AND name = $2
	`, guildID, name)
	return err
}

func playerExistsTx(ctx context.Context, tx *sql.Tx, guildID int64, name string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM players WHERE guild_id = $1 AND name = $2 AND is_active = TRUE LIMIT 1`,
		guildID, name,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// createPlayerTx: confirm 안전망. Member/Unassigned/빈 닉네임으로 생성한다.
func createPlayerTx(ctx context.Context, tx *sql.Tx, guildID int64, name string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO players (guild_id, name, nicknames, team, member_status, is_active, created_at, updated_at)
		VALUES ($1, $2, '[]'::jsonb, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT (guild_id, name) DO NOTHING
	`, guildID, name, domain.UnassignedTeam, string(domain.StatusMember))
	return err
}

func getWarTx(ctx context.Context, tx *sql.Tx, guildID, warID int64) (*domain.War, error) {
	var w domain.War
	err := tx.QueryRowContext(ctx, `
		SELECT id, guild_id, race_count, team_score, team_differential, war_date, created_at
		FROM wars
		WHERE id = $1 AND guild_id = $2
		FOR UPDATE
	`, warID, guildID).Scan(
		&w.ID, &w.GuildID, &w.RaceCount, &w.TeamScore, &w.TeamDifferential, &w.WarDate, &w.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT player_name, score, races_played FROM war_players WHERE war_id = $1 ORDER BY id`,
		warID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.WarPlayer
		if err := rows.Scan(&p.Name, &p.Score, &p.RacesPlayed); err != nil {
			return nil, err
		}
		w.Players = append(w.Players, p)
	}
	return &w, rows.Err()
}

// isDuplicateWar: 정규화된 (이름 소문자, 점수) 다중집합이 직전 전적과 같은지 비교한다.
func isDuplicateWar(next, last []domain.WarPlayer) bool {
	if len(next) == 0 || len(next) != len(last) {
		return false
	}
	normalize := func(players []domain.WarPlayer) []string {
		out := make([]string, len(players))
		for i, p := range players {
			out[i] = fmt.Sprintf("%s:%d", strings.ToLower(strings.TrimSpace(p.Name)), p.Score)
		}
		sort.Strings(out)
		return out
	}
	a, b := normalize(next), normalize(last)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
