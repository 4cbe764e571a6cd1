package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/valkey-io/valkey-go"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// Service: Valkey(Redis) 클라이언트를 래핑하여 캐싱 기능을 제공하는 서비스.
// 로스터 read-through 캐시와 길드별 로스터 버전 카운터에 사용된다.
type Service struct {
	client    valkey.Client
	logger    *slog.Logger
	closeOnce sync.Once
}

// Config: Valkey 연결 설정을 담는 구조체
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewCacheService: 새로운 Valkey 캐시 서비스 인스턴스를 생성하고 연결을 수립한다.
func NewCacheService(cfg Config, logger *slog.Logger) (*Service, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		ConnWriteTimeout:  constants.MQConfig.ConnWriteTimeout,
		BlockingPoolSize:  constants.ValkeyConfig.BlockingPoolSize,
		PipelineMultiplex: constants.ValkeyConfig.PipelineMultiplex,
		Dialer:            net.Dialer{Timeout: constants.MQConfig.DialTimeout},
	})
	if err != nil {
		return nil, apperrors.NewCacheError("init", "", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.ValkeyConfig.ReadyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, apperrors.NewCacheError("ping", "", err)
	}

	logger.Info("Cache store connected",
		slog.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		slog.Int("db", cfg.DB),
	)

	return &Service{
		client: client,
		logger: logger,
	}, nil
}

// Get: 키에 해당하는 값을 조회하고, 결과를 dest 인터페이스에 언마샬링한다.
// 키가 없으면 (false, nil)을 반환한다.
func (c *Service) Get(ctx context.Context, key string, dest any) (bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if valkey.IsValkeyNil(resp.Error()) {
		return false, nil
	}
	if resp.Error() != nil {
		return false, apperrors.NewCacheError("get", key, resp.Error())
	}

	value, err := resp.AsBytes()
	if err != nil {
		return false, apperrors.NewCacheError("get", key, err)
	}

	if dest != nil {
		if err := json.Unmarshal(value, dest); err != nil {
			return false, apperrors.NewCacheError("unmarshal", key, err)
		}
	}
	return true, nil
}

// Set: 값을 JSON으로 직렬화해 TTL과 함께 저장한다.
func (c *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return apperrors.NewCacheError("marshal", key, err)
	}

	builder := c.client.B().Set().Key(key).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}

	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return apperrors.NewCacheError("set", key, err)
	}
	return nil
}

// Delete: 키들을 삭제합니다.
func (c *Service) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Do(ctx, c.client.B().Del().Key(keys...).Build()).Error(); err != nil {
		return apperrors.NewCacheError("del", keys[0], err)
	}
	return nil
}

// Incr: 카운터 키를 1 증가시키고 증가된 값을 반환한다. (로스터 버전 증가용)
func (c *Service) Incr(ctx context.Context, key string) (int64, error) {
	resp := c.client.Do(ctx, c.client.B().Incr().Key(key).Build())
	if resp.Error() != nil {
		return 0, apperrors.NewCacheError("incr", key, resp.Error())
	}
	v, err := resp.AsInt64()
	if err != nil {
		return 0, apperrors.NewCacheError("incr", key, err)
	}
	return v, nil
}

// GetInt: 정수 키를 조회한다. 키가 없으면 (0, false, nil).
func (c *Service) GetInt(ctx context.Context, key string) (int64, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if valkey.IsValkeyNil(resp.Error()) {
		return 0, false, nil
	}
	if resp.Error() != nil {
		return 0, false, apperrors.NewCacheError("get", key, resp.Error())
	}
	v, err := resp.AsInt64()
	if err != nil {
		return 0, false, apperrors.NewCacheError("get", key, err)
	}
	return v, true, nil
}

// Ping: 캐시 서버 연결 상태를 점검합니다.
func (c *Service) Ping(ctx context.Context) error {
	if err := c.client.Do(ctx, c.client.B().Ping().Build()).Error(); err != nil {
		return apperrors.NewCacheError("ping", "", err)
	}
	return nil
}

// Close: 클라이언트 연결을 종료합니다.
func (c *Service) Close() {
	c.closeOnce.Do(func() {
		c.client.Close()
	})
}
