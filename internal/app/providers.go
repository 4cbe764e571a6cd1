// Package app: 애플리케이션 조립. Wire 프로바이더와 런타임 수명주기를 담당한다.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kapu/mkw-stats-bot-go/internal/adapter"
	"github.com/kapu/mkw-stats-bot-go/internal/bot"
	"github.com/kapu/mkw-stats-bot-go/internal/command"
	"github.com/kapu/mkw-stats-bot-go/internal/config"
	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/mq"
	"github.com/kapu/mkw-stats-bot-go/internal/ocr"
	"github.com/kapu/mkw-stats-bot-go/internal/server"
	"github.com/kapu/mkw-stats-bot-go/internal/service/bulk"
	"github.com/kapu/mkw-stats-bot-go/internal/service/cache"
	"github.com/kapu/mkw-stats-bot-go/internal/service/database"
	"github.com/kapu/mkw-stats-bot-go/internal/service/guild"
	"github.com/kapu/mkw-stats-bot-go/internal/service/resolver"
	"github.com/kapu/mkw-stats-bot-go/internal/service/roster"
	"github.com/kapu/mkw-stats-bot-go/internal/service/stats"
	"github.com/kapu/mkw-stats-bot-go/internal/service/war"
)

// ProvidePostgres: PostgreSQL 연결을 수립하고 스키마를 마이그레이션한다.
func ProvidePostgres(cfg *config.Config, logger *slog.Logger) (*database.PostgresService, func(), error) {
	postgres, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		MaxConns: cfg.Postgres.MaxConns,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres init failed: %w", err)
	}

	if err := postgres.Migrate(
		&guild.Model{},
		&roster.Model{},
		&war.Model{},
		&war.PlayerModel{},
		&bulk.SessionModel{},
		&bulk.ResultModel{},
		&bulk.FailureModel{},
		&server.UserSessionModel{},
	); err != nil {
		postgres.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := postgres.Close(); err != nil {
			logger.Warn("Postgres close failed", slog.Any("error", err))
		}
	}
	return postgres, cleanup, nil
}

// ProvideCache: Valkey 캐시 연결을 수립한다.
func ProvideCache(cfg *config.Config, logger *slog.Logger) (*cache.Service, func(), error) {
	svc, err := cache.NewCacheService(cache.Config{
		Host:     cfg.Valkey.Host,
		Port:     cfg.Valkey.Port,
		Password: cfg.Valkey.Password,
		DB:       cfg.Valkey.DB,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("cache init failed: %w", err)
	}
	return svc, svc.Close, nil
}

// ProvideMetricsRegistry: Prometheus 레지스트리를 생성한다.
func ProvideMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// ProvideOCRMetrics: OCR 메트릭 레코더를 생성한다.
func ProvideOCRMetrics(registry *prometheus.Registry) *ocr.MetricsRecorder {
	return ocr.NewMetricsRecorder(constants.OCRConfig.SampleRingSize, registry)
}

// ProvideEngine: OCR 실행 엔진을 생성한다.
func ProvideEngine(cfg *config.Config, ocrFunc ocr.Func, metrics *ocr.MetricsRecorder, logger *slog.Logger) *ocr.Engine {
	return ocr.NewEngine(ocrFunc, cfg.OCR, metrics, logger)
}

// ProvideMonitor: 적응형 모드 모니터를 생성한다.
func ProvideMonitor(engine *ocr.Engine, metrics *ocr.MetricsRecorder, cfg *config.Config, logger *slog.Logger) *ocr.Monitor {
	return ocr.NewMonitor(engine, metrics, cfg.OCR, logger)
}

// ProvideGuildRepo: 길드 저장소를 생성한다.
func ProvideGuildRepo(postgres *database.PostgresService, logger *slog.Logger) *guild.Repository {
	return guild.NewRepository(postgres, logger)
}

// ProvideRosterRepo: 로스터 저장소를 생성한다.
func ProvideRosterRepo(postgres *database.PostgresService, logger *slog.Logger) *roster.Repository {
	return roster.NewRepository(postgres, logger)
}

// ProvideRosterCache: 로스터 read-through 캐시를 생성한다.
func ProvideRosterCache(repo *roster.Repository, valkey *cache.Service, logger *slog.Logger) *roster.Cache {
	return roster.NewCache(repo, valkey, logger)
}

// ProvideResolver: 이름 해석 서비스를 생성한다.
func ProvideResolver(rosterCache *roster.Cache, logger *slog.Logger) *resolver.Service {
	return resolver.NewService(rosterCache, logger)
}

// ProvideWarRepo: 전적 저장소를 생성한다.
func ProvideWarRepo(postgres *database.PostgresService, logger *slog.Logger) *war.Repository {
	return war.NewRepository(postgres, logger)
}

// ProvideWarService: 전적 제출 서비스를 생성한다.
func ProvideWarService(postgres *database.PostgresService, repo *war.Repository, rosterCache *roster.Cache, logger *slog.Logger) *war.Service {
	return war.NewService(postgres, repo, rosterCache, logger)
}

// ProvideStatsService: 통계 서비스를 생성한다.
func ProvideStatsService(rosterRepo *roster.Repository, warRepo *war.Repository, logger *slog.Logger) *stats.Service {
	return stats.NewService(rosterRepo, warRepo, logger)
}

// ProvideBulkStore: 벌크 세션 저장소를 생성한다.
func ProvideBulkStore(postgres *database.PostgresService, warService *war.Service, logger *slog.Logger) *bulk.Store {
	return bulk.NewStore(postgres, warService, logger)
}

// ProvideSweeper: 만료 세션 스위퍼를 생성한다.
func ProvideSweeper(store *bulk.Store, logger *slog.Logger) *bulk.Sweeper {
	return bulk.NewSweeper(store, constants.BulkConfig.SweepInterval, logger)
}

// ProvideMQClient: 응답 발행용 MQ 클라이언트를 생성한다.
func ProvideMQClient(cfg *config.Config, logger *slog.Logger) (*mq.Client, func(), error) {
	client, err := mq.NewClient(mqConfig(cfg), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("mq client init failed: %w", err)
	}
	return client, client.Close, nil
}

func mqConfig(cfg *config.Config) mq.Config {
	return mq.Config{
		Host:          cfg.ValkeyMQ.Host,
		Port:          cfg.ValkeyMQ.Port,
		Password:      cfg.ValkeyMQ.Password,
		StreamKey:     cfg.ValkeyMQ.StreamKey,
		ConsumerGroup: cfg.ValkeyMQ.ConsumerGroup,
		ConsumerName:  cfg.ValkeyMQ.ConsumerName,
		ReadCount:     int64(cfg.ValkeyMQ.ReadCount),
		BlockTimeout:  cfg.ValkeyMQ.BlockTimeout,
		WorkerCount:   cfg.ValkeyMQ.WorkerCount,
	}
}

// ProvideCommandDeps: 명령어 핸들러 의존성을 조립한다.
// Images/Confirms/SendMessage는 bot.New가 채운다.
func ProvideCommandDeps(
	cfg *config.Config,
	guilds *guild.Repository,
	rosterRepo *roster.Repository,
	rosterCache *roster.Cache,
	resolverSvc *resolver.Service,
	warService *war.Service,
	warRepo *war.Repository,
	statsSvc *stats.Service,
	bulkStore *bulk.Store,
	engine *ocr.Engine,
	logger *slog.Logger,
) *command.Dependencies {
	return &command.Dependencies{
		Config:      cfg,
		Guilds:      guilds,
		Roster:      rosterRepo,
		RosterCache: rosterCache,
		Resolver:    resolverSvc,
		Wars:        warService,
		WarRepo:     warRepo,
		Stats:       statsSvc,
		Bulk:        bulkStore,
		Engine:      engine,
		Formatter:   adapter.NewFormatter(),
		Logger:      logger,
	}
}

// ProvideBot: 봇 워커를 생성한다.
func ProvideBot(cfg *config.Config, client *mq.Client, deps *command.Dependencies, logger *slog.Logger) (*bot.Bot, error) {
	return bot.New(cfg, client, deps,
		bot.NewImageBuffer(constants.BulkConfig.MaxImagesPerScan),
		bot.NewConfirmations(),
		logger,
	)
}

// ProvideConsumer: 게이트웨이 이벤트 소비자를 생성한다.
func ProvideConsumer(ctx context.Context, cfg *config.Config, b *bot.Bot, logger *slog.Logger) (*mq.Consumer, func(), error) {
	consumer, err := mq.NewConsumer(ctx, mqConfig(cfg), b, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("mq consumer init failed: %w", err)
	}
	return consumer, consumer.Stop, nil
}

// ProvideSessionService: 사용자 세션 서비스를 생성한다.
func ProvideSessionService(postgres *database.PostgresService, cfg *config.Config, logger *slog.Logger) *server.SessionService {
	return server.NewSessionService(postgres, cfg.Server.JWTSecret, logger)
}

// ProvideIdentityProvider: OAuth 신원 검증기를 생성한다.
func ProvideIdentityProvider(cfg *config.Config) server.IdentityProvider {
	return server.NewOAuthProvider(cfg.OAuth)
}

// ProvideAPIHandler: API 핸들러를 생성한다.
func ProvideAPIHandler(
	cfg *config.Config,
	guilds *guild.Repository,
	rosterRepo *roster.Repository,
	rosterCache *roster.Cache,
	warRepo *war.Repository,
	statsSvc *stats.Service,
	bulkStore *bulk.Store,
	sessions *server.SessionService,
	identity server.IdentityProvider,
	logger *slog.Logger,
) *server.APIHandler {
	return server.NewAPIHandler(cfg, guilds, rosterRepo, rosterCache, warRepo, statsSvc, bulkStore, sessions, identity, logger)
}

// ProvideServer: 리뷰 API 서버를 생성한다.
func ProvideServer(
	cfg *config.Config,
	handler *server.APIHandler,
	sessions *server.SessionService,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *server.Server {
	return server.NewServer(cfg, handler, sessions, registry, logger)
}
