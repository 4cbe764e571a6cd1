package server

import (
	"log/slog"
	"time"

	"github.com/kapu/mkw-stats-bot-go/internal/config"
	"github.com/kapu/mkw-stats-bot-go/internal/service/bulk"
	"github.com/kapu/mkw-stats-bot-go/internal/service/guild"
	"github.com/kapu/mkw-stats-bot-go/internal/service/roster"
	"github.com/kapu/mkw-stats-bot-go/internal/service/stats"
	"github.com/kapu/mkw-stats-bot-go/internal/service/war"
)

// APIHandler: 리뷰 API 요청을 처리하는 핸들러입니다.
// 웹 프런트엔드와 봇(세션 생성) 모두가 사용한다.
// 핸들러 메서드는 도메인별 파일로 분리됨:
//   - api_auth.go: OAuth 로그인/신원
//   - api_players.go: 로스터 관리
//   - api_wars.go: 전적 조회
//   - api_stats.go: 개요/리더보드/플레이어 통계
//   - api_bulk.go: 벌크 스캔 세션 리뷰
type APIHandler struct {
	cfg         *config.Config
	guilds      *guild.Repository
	roster      *roster.Repository
	rosterCache *roster.Cache
	wars        *war.Repository
	stats       *stats.Service
	bulk        *bulk.Store
	sessions    *SessionService
	identity    IdentityProvider
	logger      *slog.Logger
	startTime   time.Time
}

// NewAPIHandler: 새로운 API 핸들러를 생성합니다.
func NewAPIHandler(
	cfg *config.Config,
	guilds *guild.Repository,
	rosterRepo *roster.Repository,
	rosterCache *roster.Cache,
	wars *war.Repository,
	statsSvc *stats.Service,
	bulkStore *bulk.Store,
	sessions *SessionService,
	identity IdentityProvider,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		cfg:         cfg,
		guilds:      guilds,
		roster:      rosterRepo,
		rosterCache: rosterCache,
		wars:        wars,
		stats:       statsSvc,
		bulk:        bulkStore,
		sessions:    sessions,
		identity:    identity,
		logger:      logger,
		startTime:   time.Now(),
	}
}
