//go:build wireinject

package app

import (
	"github.com/google/wire"
)

// RuntimeSet: cmd/bot 런타임 전체의 프로바이더 집합.
var RuntimeSet = wire.NewSet(
	ProvidePostgres,
	ProvideCache,
	ProvideMetricsRegistry,
	ProvideOCRMetrics,
	ProvideEngine,
	ProvideMonitor,
	ProvideGuildRepo,
	ProvideRosterRepo,
	ProvideRosterCache,
	ProvideResolver,
	ProvideWarRepo,
	ProvideWarService,
	ProvideStatsService,
	ProvideBulkStore,
	ProvideSweeper,
	ProvideMQClient,
	ProvideCommandDeps,
	ProvideBot,
	ProvideConsumer,
	ProvideSessionService,
	ProvideIdentityProvider,
	ProvideAPIHandler,
	ProvideServer,
	NewBotRuntime,
)
