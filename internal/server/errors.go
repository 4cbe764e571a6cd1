package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// writeError: 구조화된 에러를 HTTP 상태 코드와 사용자 메시지로 변환한다.
// 원시 스택/내부 메시지는 밖으로 내보내지 않는다.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		validation *apperrors.ValidationError
		permission *apperrors.PermissionError
		state      *apperrors.StateError
		fatal      *apperrors.FatalError
	)

	switch {
	case errors.As(err, &validation):
		status := http.StatusBadRequest
		if validation.Message == "session not found" || validation.Message == "result not found" ||
			validation.Message == "failure not found" || validation.Message == "unknown player" ||
			validation.Message == "unknown war id" {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": validation.Message})

	case errors.As(err, &permission):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permission"})

	case errors.As(err, &state):
		status := http.StatusConflict
		if state.Reason == apperrors.ReasonSessionExpired {
			status = http.StatusGone
		}
		c.JSON(status, gin.H{"error": state.Message, "reason": state.Reason})

	case errors.As(err, &fatal):
		logger.Error("FATAL_REQUEST_ERROR",
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})

	default:
		logger.Error("Request failed",
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
