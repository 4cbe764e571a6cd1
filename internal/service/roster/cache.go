package roster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/service/cache"
)

// Cache: (guild_id, version) 키의 짧은 read-through 로스터 캐시.
// 길드의 로스터 변이는 버전 카운터를 올려 이전 스냅샷을 무효화한다.
// 캐시 장애 시에는 DB 직접 읽기로 폴백한다.
type Cache struct {
	repo   *Repository
	valkey *cache.Service
	logger *slog.Logger
}

// NewCache: 새로운 로스터 캐시를 생성합니다.
func NewCache(repo *Repository, valkey *cache.Service, logger *slog.Logger) *Cache {
	return &Cache{
		repo:   repo,
		valkey: valkey,
		logger: logger,
	}
}

func versionKey(guildID int64) string {
	return fmt.Sprintf("roster:ver:%d", guildID)
}

func snapshotKey(guildID, version int64) string {
	return fmt.Sprintf("roster:%d:v%d", guildID, version)
}

// Snapshot: 활성 플레이어 스냅샷을 반환한다. 이름 해석에 쓰이는 뷰다.
func (c *Cache) Snapshot(ctx context.Context, guildID int64) ([]*domain.Player, error) {
	if c.valkey == nil {
		return c.repo.List(ctx, guildID, false)
	}

	version, _, err := c.valkey.GetInt(ctx, versionKey(guildID))
	if err != nil {
		c.logger.Warn("Roster version read failed, falling back to DB", slog.Any("error", err))
		return c.repo.List(ctx, guildID, false)
	}

	key := snapshotKey(guildID, version)
	var cached []*domain.Player
	if hit, err := c.valkey.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	} else if err != nil {
		c.logger.Warn("Roster cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	players, err := c.repo.List(ctx, guildID, false)
	if err != nil {
		return nil, err
	}

	if err := c.valkey.Set(ctx, key, players, constants.RosterCacheConfig.TTL); err != nil {
		c.logger.Warn("Roster cache write failed", slog.String("key", key), slog.Any("error", err))
	}
	return players, nil
}

// Invalidate: 길드 로스터 버전을 올려 기존 스냅샷을 무효화합니다.
// 로스터를 변이하는 모든 경로(명령어, API, confirm의 auto-create)가 호출한다.
func (c *Cache) Invalidate(ctx context.Context, guildID int64) {
	if c.valkey == nil {
		return
	}
	if _, err := c.valkey.Incr(ctx, versionKey(guildID)); err != nil {
		c.logger.Warn("Roster cache invalidation failed",
			slog.Int64("guild_id", guildID),
			slog.Any("error", err),
		)
	}
}
