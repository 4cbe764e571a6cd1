// Package bulk: 벌크 스캔 리뷰 세션 저장소.
// OCR 출력/실패와 이미지별 리뷰 상태를 24시간 TTL로 보관하고,
// confirm 시 승인된 결과 전부를 하나의 트랜잭션으로 전적에 반영한다.
package bulk

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/service/database"
	"github.com/kapu/mkw-stats-bot-go/internal/service/war"
	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// Store: 벌크 세션/결과/실패 저장소 겸 confirm 실행기.
type Store struct {
	db         *sql.DB
	postgres   *database.PostgresService
	warService *war.Service
	logger     *slog.Logger
}

// NewStore: 새로운 벌크 세션 저장소를 생성합니다.
func NewStore(postgres *database.PostgresService, warService *war.Service, logger *slog.Logger) *Store {
	return &Store{
		db:         postgres.GetDB(),
		postgres:   postgres,
		warService: warService,
		logger:     logger,
	}
}

// newSessionToken: URL-safe 무작위 토큰(192비트)을 생성한다.
func newSessionToken() (string, error) {
	buf := make([]byte, constants.SessionTokenConfig.TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", apperrors.NewFatalError("session token entropy", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateSession: open 상태의 세션을 24시간 TTL로 생성하고 토큰을 반환한다.
// creationNonce가 주어지면 (guild, user, nonce)가 같은 기존 open 세션을 재사용한다.
func (s *Store) CreateSession(ctx context.Context, guildID, userID int64, totalImages int, creationNonce string) (*domain.BulkSession, error) {
	if creationNonce != "" {
		existing, err := s.findByNonce(ctx, guildID, userID, creationNonce)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &domain.BulkSession{
		Token:           token,
		GuildID:         guildID,
		CreatedByUserID: userID,
		Status:          domain.SessionOpen,
		TotalImages:     totalImages,
		CreatedAt:       now,
		ExpiresAt:       now.Add(constants.BulkConfig.SessionTTL),
	}

	var nonce *string
	if creationNonce != "" {
		nonce = &creationNonce
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO bulk_scan_sessions (token, guild_id, created_by_user_id, status, total_images, creation_nonce, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, token, guildID, userID, string(domain.SessionOpen), totalImages, nonce, now, session.ExpiresAt); err != nil {
		return nil, apperrors.NewStorageError("create_session", false, err)
	}

	s.logger.Info("Bulk session created",
		slog.Int64("guild_id", guildID),
		slog.Int("total_images", totalImages),
	)
	return session, nil
}

func (s *Store) findByNonce(ctx context.Context, guildID, userID int64, nonce string) (*domain.BulkSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, guild_id, created_by_user_id, status, total_images, created_at, expires_at
		FROM bulk_scan_sessions
		WHERE guild_id = $1 AND created_by_user_id = $2 AND creation_nonce = $3 AND status = 'open'
		LIMIT 1
	`, guildID, userID, nonce)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("find_session_by_nonce", true, err)
	}
	return session, nil
}

func scanSession(row interface{ Scan(...any) error }) (*domain.BulkSession, error) {
	var (
		session domain.BulkSession
		status  string
	)
	err := row.Scan(
		&session.Token, &session.GuildID, &session.CreatedByUserID, &status,
		&session.TotalImages, &session.CreatedAt, &session.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	session.Status = domain.SessionStatus(status)
	return &session, nil
}

// GetSession: 세션 메타데이터를 조회합니다. 없으면 (nil, nil).
func (s *Store) GetSession(ctx context.Context, token string) (*domain.BulkSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, guild_id, created_by_user_id, status, total_images, created_at, expires_at
		FROM bulk_scan_sessions
		WHERE token = $1
		LIMIT 1
	`, token)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get_session", true, err)
	}
	return session, nil
}

// requireOpen: 세션이 존재하고 open이며 만료되지 않았는지 확인한다.
// 만료된 open 세션은 그 자리에서 expired로 전환한다 (게으른 sweep).
func (s *Store) requireOpen(ctx context.Context, token string) (*domain.BulkSession, error) {
	session, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NewValidationError("session not found", "session_token")
	}
	if session.Status == domain.SessionOpen && session.IsExpired(time.Now().UTC()) {
		if err := s.setStatus(ctx, token, domain.SessionExpired); err != nil {
			return nil, err
		}
		session.Status = domain.SessionExpired
	}
	switch session.Status {
	case domain.SessionOpen:
		return session, nil
	case domain.SessionExpired:
		return nil, apperrors.NewStateError(apperrors.ReasonSessionExpired, "session has expired")
	default:
		return nil, apperrors.NewStateError(apperrors.ReasonSessionNotOpen,
			fmt.Sprintf("session is %s", session.Status))
	}
}

// AppendResult: open 세션에 OCR 결과 1건을 pending 상태로 추가합니다.
func (s *Store) AppendResult(ctx context.Context, token string, result *domain.BulkResult) (int64, error) {
	if _, err := s.requireOpen(ctx, token); err != nil {
		return 0, err
	}
	return s.insertResult(ctx, s.db, token, result)
}

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertResult(ctx context.Context, q execQuerier, token string, result *domain.BulkResult) (int64, error) {
	if result.RaceCount == 0 {
		result.RaceCount = constants.ScoringConfig.DefaultRaceCount
	}
	if err := war.ValidateRaceCount(result.RaceCount); err != nil {
		return 0, err
	}
	if result.ReviewStatus == "" {
		result.ReviewStatus = domain.ReviewPending
	}

	detected, err := json.Marshal(result.DetectedPlayers)
	if err != nil {
		return 0, apperrors.NewStorageError("marshal_detected", false, err)
	}
	var corrected []byte
	if len(result.CorrectedPlayers) > 0 {
		if corrected, err = json.Marshal(result.CorrectedPlayers); err != nil {
			return 0, apperrors.NewStorageError("marshal_corrected", false, err)
		}
	}

	var id int64
	err = q.QueryRowContext(ctx, `
		INSERT INTO bulk_scan_results
			(session_token, image_filename, image_url, detected_players, corrected_players, review_status, race_count, message_timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id
	`, token, result.ImageFilename, result.ImageURL, detected, nullableJSON(corrected),
		string(result.ReviewStatus), result.RaceCount, result.MessageTimestamp).Scan(&id)
	if err != nil {
		return 0, apperrors.NewStorageError("append_result", false, err)
	}
	return id, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// AppendFailure: open 세션에 OCR 실패 1건을 추가합니다.
func (s *Store) AppendFailure(ctx context.Context, token string, failure *domain.BulkFailure) (int64, error) {
	if _, err := s.requireOpen(ctx, token); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bulk_scan_failures
			(session_token, image_filename, image_url, error_message, message_timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`, token, failure.ImageFilename, failure.ImageURL, failure.ErrorMessage, failure.MessageTimestamp).Scan(&id)
	if err != nil {
		return 0, apperrors.NewStorageError("append_failure", false, err)
	}
	return id, nil
}

// Results: 세션의 결과 목록을 result_id 오름차순(추가 순서)으로 반환합니다.
func (s *Store) Results(ctx context.Context, token string) ([]*domain.BulkResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_token, image_filename, image_url, detected_players, corrected_players,
		       review_status, race_count, message_timestamp, created_at
		FROM bulk_scan_results
		WHERE session_token = $1
		ORDER BY id
	`, token)
	if err != nil {
		return nil, apperrors.NewStorageError("list_results", true, err)
	}
	defer rows.Close()

	var results []*domain.BulkResult
	for rows.Next() {
		var (
			r             domain.BulkResult
			status        string
			detectedJSON  []byte
			correctedJSON []byte
			msgTS         sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.SessionToken, &r.ImageFilename, &r.ImageURL,
			&detectedJSON, &correctedJSON, &status, &r.RaceCount, &msgTS, &r.CreatedAt); err != nil {
			return nil, apperrors.NewStorageError("scan_result", false, err)
		}
		r.ReviewStatus = domain.ReviewStatus(status)
		if msgTS.Valid {
			t := msgTS.Time
			r.MessageTimestamp = &t
		}
		if len(detectedJSON) > 0 {
			if err := json.Unmarshal(detectedJSON, &r.DetectedPlayers); err != nil {
				return nil, apperrors.NewFatalError(fmt.Sprintf("corrupt detected_players result=%d", r.ID), err)
			}
		}
		if len(correctedJSON) > 0 {
			if err := json.Unmarshal(correctedJSON, &r.CorrectedPlayers); err != nil {
				return nil, apperrors.NewFatalError(fmt.Sprintf("corrupt corrected_players result=%d", r.ID), err)
			}
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// Failures: 세션의 실패 목록을 추가 순서로 반환합니다.
func (s *Store) Failures(ctx context.Context, token string) ([]*domain.BulkFailure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_token, image_filename, image_url, error_message, message_timestamp, created_at
		FROM bulk_scan_failures
		WHERE session_token = $1
		ORDER BY id
	`, token)
	if err != nil {
		return nil, apperrors.NewStorageError("list_failures", true, err)
	}
	defer rows.Close()

	var failures []*domain.BulkFailure
	for rows.Next() {
		var (
			f     domain.BulkFailure
			msgTS sql.NullTime
		)
		if err := rows.Scan(&f.ID, &f.SessionToken, &f.ImageFilename, &f.ImageURL,
			&f.ErrorMessage, &msgTS, &f.CreatedAt); err != nil {
			return nil, apperrors.NewStorageError("scan_failure", false, err)
		}
		if msgTS.Valid {
			t := msgTS.Time
			f.MessageTimestamp = &t
		}
		failures = append(failures, &f)
	}
	return failures, rows.Err()
}

// UpdateResult: 리뷰 상태를 갱신한다. corrected가 주어지면 기존 수정본을
// 원자적으로 덮어쓴다. approved/rejected에서 pending으로 되돌리는 것도 허용된다.
func (s *Store) UpdateResult(ctx context.Context, token string, resultID int64, status domain.ReviewStatus, corrected []domain.DetectedPlayer) error {
	if _, err := s.requireOpen(ctx, token); err != nil {
		return err
	}
	if !domain.ValidReviewStatus(string(status)) {
		return apperrors.NewValidationError("invalid review status", "review_status")
	}

	var (
		result sql.Result
		err    error
	)
	if corrected != nil {
		payload, mErr := json.Marshal(corrected)
		if mErr != nil {
			return apperrors.NewStorageError("marshal_corrected", false, mErr)
		}
		result, err = s.db.ExecContext(ctx, `
			UPDATE bulk_scan_results SET review_status = $1, corrected_players = $2
			WHERE id = $3 AND session_token = $4
		`, string(status), payload, resultID, token)
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE bulk_scan_results SET review_status = $1
			WHERE id = $2 AND session_token = $3
		`, string(status), resultID, token)
	}
	if err != nil {
		return apperrors.NewStorageError("update_result", false, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NewValidationError("result not found", "result_id")
	}
	return nil
}

// ConvertFailure: 실패 행을 삭제하고 수동 입력된 플레이어로 결과 행을 만든다.
// 두 작업은 하나의 트랜잭션으로 실행된다.
func (s *Store) ConvertFailure(ctx context.Context, token string, failureID int64, players []domain.DetectedPlayer, initialStatus domain.ReviewStatus) (int64, error) {
	if _, err := s.requireOpen(ctx, token); err != nil {
		return 0, err
	}
	if !domain.ValidReviewStatus(string(initialStatus)) {
		return 0, apperrors.NewValidationError("invalid review status", "review_status")
	}
	if len(players) == 0 && initialStatus != domain.ReviewRejected {
		return 0, apperrors.NewValidationError("players required unless rejecting", "players")
	}

	var resultID int64
	err := s.postgres.RunSerializable(ctx, func(tx *sql.Tx) error {
		var (
			filename string
			imageURL string
			msgTS    sql.NullTime
		)
		err := tx.QueryRowContext(ctx, `
			SELECT image_filename, image_url, message_timestamp
			FROM bulk_scan_failures
			WHERE id = $1 AND session_token = $2
			FOR UPDATE
		`, failureID, token).Scan(&filename, &imageURL, &msgTS)
		if err == sql.ErrNoRows {
			return apperrors.NewValidationError("failure not found", "failure_id")
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM bulk_scan_failures WHERE id = $1 AND session_token = $2`,
			failureID, token,
		); err != nil {
			return err
		}

		result := &domain.BulkResult{
			ImageFilename:   filename,
			ImageURL:        imageURL,
			DetectedPlayers: players,
			ReviewStatus:    initialStatus,
		}
		if msgTS.Valid {
			t := msgTS.Time
			result.MessageTimestamp = &t
		}
		resultID, err = s.insertResult(ctx, tx, token, result)
		return err
	})
	if err != nil {
		return 0, err
	}
	return resultID, nil
}

// ConfirmOutcome: confirm_session의 결과.
type ConfirmOutcome struct {
	WarsCreated    int      `json:"wars_created"`
	WarIDs         []int64  `json:"war_ids"`
	PlayersCreated []string `json:"players_created,omitempty"`
}

// Confirm: 승인된 결과 전부를 전적으로 물질화한다.
// 세션 상태 검사, 전적 삽입, 집계 갱신, confirmed 전환이 모두 하나의
// SERIALIZABLE 트랜잭션으로 실행되어, 하나라도 실패하면 전적은 하나도
// 생기지 않는다. 상태 검사 덕분에 재시도에 대해 멱등하다.
func (s *Store) Confirm(ctx context.Context, token string) (*ConfirmOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.BulkConfig.ConfirmTimeout)
	defer cancel()

	// 만료/비-open 검사를 먼저 끝내 410/409를 트랜잭션 밖에서 확정한다.
	session, err := s.requireOpen(ctx, token)
	if err != nil {
		return nil, err
	}

	results, err := s.Results(ctx, token)
	if err != nil {
		return nil, err
	}

	var entries []war.BatchEntry
	for _, r := range results {
		if r.ReviewStatus != domain.ReviewApproved {
			continue
		}
		players := r.EffectivePlayers()
		if len(players) == 0 {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("approved result %d has no players", r.ID), "results")
		}
		warPlayers := make([]domain.WarPlayer, len(players))
		for i, dp := range players {
			warPlayers[i] = domain.WarPlayer{
				Name:        dp.Name,
				Score:       dp.Score,
				RacesPlayed: dp.RacesPlayed,
			}
		}
		warDate := session.CreatedAt
		if r.MessageTimestamp != nil {
			warDate = *r.MessageTimestamp
		}
		entries = append(entries, war.BatchEntry{
			Players:   warPlayers,
			RaceCount: r.RaceCount,
			WarDate:   warDate,
		})
	}
	if entries, err = war.ValidateBatch(entries); err != nil {
		return nil, err
	}

	outcome := &ConfirmOutcome{WarIDs: []int64{}}
	err = s.postgres.RunSerializable(ctx, func(tx *sql.Tx) error {
		// 재시도/동시 confirm 대비: 세션 행을 잠그고 상태를 다시 확인한다.
		var status string
		if err := tx.QueryRowContext(ctx,
			`SELECT status FROM bulk_scan_sessions WHERE token = $1 FOR UPDATE`, token,
		).Scan(&status); err != nil {
			return err
		}
		if domain.SessionStatus(status) != domain.SessionOpen {
			return apperrors.NewStateError(apperrors.ReasonSessionNotOpen,
				fmt.Sprintf("session is %s", status))
		}

		warIDs, created, err := s.warService.SubmitBatchTx(ctx, tx, session.GuildID, entries)
		if err != nil {
			return err
		}
		outcome.WarIDs = warIDs
		outcome.WarsCreated = len(warIDs)
		outcome.PlayersCreated = created

		_, err = tx.ExecContext(ctx,
			`UPDATE bulk_scan_sessions SET status = $1 WHERE token = $2`,
			string(domain.SessionConfirmed), token)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(outcome.PlayersCreated) > 0 {
		s.warService.InvalidateRoster(ctx, session.GuildID)
	}

	s.logger.Info("Bulk session confirmed",
		slog.Int64("guild_id", session.GuildID),
		slog.Int("wars_created", outcome.WarsCreated),
	)
	return outcome, nil
}

// Cancel: 세션을 취소한다. 이력은 유지되며 전적은 생성되지 않는다.
// 이미 expired/cancelled인 세션에 대해서는 멱등하게 성공한다.
func (s *Store) Cancel(ctx context.Context, token string) error {
	session, err := s.GetSession(ctx, token)
	if err != nil {
		return err
	}
	if session == nil {
		return apperrors.NewValidationError("session not found", "session_token")
	}
	switch session.Status {
	case domain.SessionCancelled, domain.SessionExpired:
		return nil // 말기 상태 간 취소는 멱등
	case domain.SessionConfirmed:
		return apperrors.NewStateError(apperrors.ReasonSessionNotOpen, "session is confirmed")
	}
	return s.setStatus(ctx, token, domain.SessionCancelled)
}

func (s *Store) setStatus(ctx context.Context, token string, status domain.SessionStatus) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE bulk_scan_sessions SET status = $1 WHERE token = $2`,
		string(status), token,
	); err != nil {
		return apperrors.NewStorageError("set_session_status", false, err)
	}
	return nil
}

// SweepExpired: expires_at이 지난 open 세션들을 expired로 전환하고 개수를 반환한다.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE bulk_scan_sessions SET status = 'expired'
		WHERE status = 'open' AND expires_at < NOW()
	`)
	if err != nil {
		return 0, apperrors.NewStorageError("sweep_expired", true, err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
