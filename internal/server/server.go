package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kapu/mkw-stats-bot-go/internal/config"
	"github.com/kapu/mkw-stats-bot-go/internal/constants"
)

// Server: 리뷰 API HTTP 서버.
type Server struct {
	cfg      *config.Config
	handler  *APIHandler
	sessions *SessionService
	registry *prometheus.Registry
	logger   *slog.Logger

	httpServer *http.Server
}

// NewServer: gin 엔진과 라우트를 구성해 서버를 생성합니다.
func NewServer(
	cfg *config.Config,
	handler *APIHandler,
	sessions *SessionService,
	metricsRegistry *prometheus.Registry,
	logger *slog.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		handler:  handler,
		sessions: sessions,
		registry: metricsRegistry,
		logger:   logger,
	}
}

// buildRouter: 전체 라우트 테이블을 구성한다.
func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.logger))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	if len(s.cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = s.cfg.Server.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", APIKeyHeader, CreationNonceHeader)
	router.Use(cors.New(corsConfig))

	router.GET("/health", s.handler.Health)

	// Prometheus 지표는 봇/운영자 전용이다.
	metricsHandler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	router.GET("/metrics", APIKeyAuthMiddleware(s.cfg.Server.APIKey), gin.WrapH(metricsHandler))

	// OAuth 로그인 플로우는 토큰 없이 접근한다.
	router.GET("/auth/login", s.handler.Login)
	router.POST("/auth/callback", s.handler.Callback)

	// 봇 전용: 세션 생성과 결과/실패 적재는 API Key를 요구한다.
	botOnly := router.Group("/bulk", APIKeyAuthMiddleware(s.cfg.Server.APIKey))
	{
		botOnly.POST("/sessions", s.handler.CreateBulkSession)
		botOnly.POST("/sessions/:token/results", s.handler.AppendBulkResult)
		botOnly.POST("/sessions/:token/failures", s.handler.AppendBulkFailure)
	}

	// 그 외 엔드포인트는 사용자 세션 토큰 또는 API Key로 접근한다.
	authed := router.Group("/", BearerAuthMiddleware(s.sessions, s.cfg.Server.APIKey))
	{
		authed.GET("/auth/me", s.handler.Me)
		authed.GET("/guilds", s.handler.Guilds)

		guilds := authed.Group("/guilds/:guild_id")
		{
			guilds.GET("/players", s.handler.ListPlayers)
			guilds.POST("/players", s.handler.CreatePlayer)
			guilds.PUT("/players/:name/status", s.handler.SetPlayerStatus)
			guilds.POST("/players/:name/nicknames", s.handler.AddPlayerNickname)

			guilds.GET("/wars", s.handler.ListWars)
			guilds.GET("/wars/:war_id", s.handler.GetWar)

			guilds.GET("/stats/overview", s.handler.StatsOverview)
			guilds.GET("/stats/leaderboard", s.handler.Leaderboard)
			guilds.GET("/stats/player/:name", s.handler.PlayerStats)
		}

		sessions := authed.Group("/bulk/sessions/:token")
		{
			sessions.GET("", s.handler.GetBulkSession)
			sessions.GET("/results", s.handler.GetBulkResults)
			sessions.PUT("/results/:result_id", s.handler.UpdateBulkResult)
			sessions.POST("/failures/:failure_id/convert", s.handler.ConvertBulkFailure)
			sessions.POST("/confirm", s.handler.ConfirmBulkSession)
			sessions.POST("/cancel", s.handler.CancelBulkSession)
		}
	}

	return router
}

// Start: HTTP 서버를 기동합니다. 블로킹 호출이다.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       constants.RequestTimeout.APIRequest,
		// confirm은 전용 타임아웃(60초)을 가지므로 쓰기 제한은 그보다 여유를 둔다.
		WriteTimeout: constants.BulkConfig.ConfirmTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("Review API listening", slog.Int("port", s.cfg.Server.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown: 서버를 정상 종료합니다.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
