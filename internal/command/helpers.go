package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// ParsePlayerScores: "Name:Score[,Name:Score]*" 문법을 파싱한다.
// 쉼표 주변 공백은 무시되고, 콜론은 필수이며, 점수는 0..999 정수다.
func ParsePlayerScores(raw string) ([]domain.WarPlayer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.NewValidationError("expected Name:Score[,Name:Score]", "player_scores")
	}

	parts := strings.Split(raw, ",")
	players := make([]domain.WarPlayer, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idx := strings.LastIndex(part, ":")
		if idx <= 0 || idx == len(part)-1 {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("invalid entry %q, expected Name:Score", part), "player_scores")
		}

		name := strings.TrimSpace(part[:idx])
		scoreStr := strings.TrimSpace(part[idx+1:])
		score, err := strconv.Atoi(scoreStr)
		if err != nil {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("invalid score %q for %q", scoreStr, name), "player_scores")
		}
		if score < constants.ScoringConfig.MinScore || score > constants.ScoringConfig.MaxScore {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("score for %q must be in %d..%d", name,
					constants.ScoringConfig.MinScore, constants.ScoringConfig.MaxScore), "player_scores")
		}

		players = append(players, domain.WarPlayer{Name: name, Score: score})
	}

	if len(players) == 0 {
		return nil, apperrors.NewValidationError("expected Name:Score[,Name:Score]", "player_scores")
	}
	return players, nil
}

// RenderPlayerScores: 플레이어 목록을 입력 문법으로 되돌린다.
// 파싱과 렌더링은 공백을 제외하면 항등이다.
func RenderPlayerScores(players []domain.WarPlayer) string {
	parts := make([]string, len(players))
	for i, p := range players {
		parts[i] = fmt.Sprintf("%s:%d", p.Name, p.Score)
	}
	return strings.Join(parts, ",")
}

// splitArgs: 인자 원문을 공백으로 나눈다.
func splitArgs(raw string) []string {
	return strings.Fields(raw)
}

// argInt: 문자열 인자를 정수로 변환한다.
func argInt(s, field string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("%s must be a number", field), field)
	}
	return v, nil
}

// userMessage: 에러를 사용자에게 보여줄 짧은 메시지로 변환한다.
// Validation/State/Permission은 그대로 노출하고, 그 외에는 일반 메시지를 쓴다.
func userMessage(err error) string {
	var (
		validation *apperrors.ValidationError
		state      *apperrors.StateError
		permission *apperrors.PermissionError
		ocrErr     *apperrors.OCRError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &state):
		return state.Message
	case errors.As(err, &permission):
		return "You don't have permission to do that here."
	case errors.As(err, &ocrErr):
		return "Couldn't read this image. Try again or enter the results manually."
	default:
		return "Something went wrong. Please try again."
	}
}
