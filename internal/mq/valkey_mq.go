// Package mq: Valkey 스트림 기반 이벤트 큐.
// 채팅 게이트웨이가 적재한 명령/이미지 이벤트를 consumer group으로 소비하고,
// 봇의 응답 메시지를 reply 스트림으로 발행한다.
package mq

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/valkey-io/valkey-go"

	"github.com/kapu/mkw-stats-bot-go/internal/chat"
	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/util"
)

// Config: Valkey 스트림 연결/소비 설정.
type Config struct {
	Host          string
	Port          int
	Password      string
	StreamKey     string
	ConsumerGroup string
	ConsumerName  string
	ReadCount     int64
	BlockTimeout  time.Duration
	WorkerCount   int
}

// newValkeyClient: 공통 Valkey 클라이언트 생성 로직. 초기화 단계에서 재시도한다.
func newValkeyClient(host string, port int, password string, logger *slog.Logger) (valkey.Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	maxAttempts := constants.MQConfig.InitRetryCount
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := valkey.NewClient(valkey.ClientOption{
			InitAddress:       []string{addr},
			Password:          password,
			SelectDB:          0,
			ConnWriteTimeout:  constants.MQConfig.ConnWriteTimeout,
			BlockingPoolSize:  constants.MQConfig.BlockingPoolSize,
			PipelineMultiplex: constants.MQConfig.PipelineMultiplex,
			Dialer:            net.Dialer{Timeout: constants.MQConfig.DialTimeout},
		})
		if err == nil {
			return client, nil
		}

		lastErr = err
		if logger != nil {
			logger.Warn("MQ_CLIENT_INIT_RETRY",
				slog.String("addr", addr),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", maxAttempts),
				slog.Any("error", err),
			)
		}

		if attempt < maxAttempts {
			time.Sleep(constants.MQConfig.RetryDelay)
		}
	}

	return nil, fmt.Errorf("failed to create valkey client after retries: %w", lastErr)
}

// Client: 응답 메시지를 reply 스트림으로 발행하는 chat.Client 구현체.
type Client struct {
	cfg    Config
	client valkey.Client
	logger *slog.Logger
}

// NewClient: 새로운 MQ 발행 클라이언트를 생성하고 연결을 초기화합니다.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	client, err := newValkeyClient(cfg.Host, cfg.Port, cfg.Password, logger)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:    cfg,
		client: client,
		logger: logger,
	}, nil
}

// SendMessage: 지정된 채널로 보낼 텍스트 메시지를 reply 스트림에 발행합니다.
func (c *Client) SendMessage(ctx context.Context, channelID, message string) error {
	cmd := c.client.B().Xadd().
		Key(constants.MQConfig.ReplyStreamKey).
		Id("*").
		FieldValue().
		FieldValue("channelId", channelID).
		FieldValue("text", message).
		Build()

	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		c.logger.Error("MQ_REPLY_ERROR",
			slog.String("channel", channelID),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish reply to message queue: %w", err)
	}
	return nil
}

// Ping: 게이트웨이 스트림 연결 상태를 점검합니다.
func (c *Client) Ping(ctx context.Context) bool {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error() == nil
}

// Close: 클라이언트 연결을 종료합니다.
func (c *Client) Close() {
	c.client.Close()
}

var _ chat.Client = (*Client)(nil)

// Consumer: 게이트웨이 이벤트 스트림의 consumer group 소비자.
// 수신한 엔트리를 워커 풀로 핸들러에 전달하고 ACK한다.
type Consumer struct {
	cfg     Config
	client  valkey.Client
	handler chat.EventHandler
	logger  *slog.Logger

	started  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewConsumer: 새로운 스트림 소비자를 생성하고 consumer group을 보장한다.
func NewConsumer(ctx context.Context, cfg Config, handler chat.EventHandler, logger *slog.Logger) (*Consumer, error) {
	client, err := newValkeyClient(cfg.Host, cfg.Port, cfg.Password, logger)
	if err != nil {
		return nil, err
	}

	// 그룹이 이미 있으면 BUSYGROUP 에러가 나며, 정상 상황이다.
	createCmd := client.B().XgroupCreate().
		Key(cfg.StreamKey).Group(cfg.ConsumerGroup).Id("$").Mkstream().Build()
	if err := client.Do(ctx, createCmd).Error(); err != nil && !isBusyGroup(err) {
		client.Close()
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Consumer{
		cfg:     cfg,
		client:  client,
		handler: handler,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

// Start: 소비 루프를 시작합니다.
func (c *Consumer) Start(ctx context.Context) {
	c.started = true
	go c.loop(ctx)
}

// Stop: 소비 루프를 중지하고 종료를 대기합니다. 시작 전이면 연결만 닫는다.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.started {
		<-c.doneCh
		return
	}
	c.client.Close()
}

func (c *Consumer) loop(ctx context.Context) {
	defer close(c.doneCh)
	defer c.client.Close()

	workerCount := c.cfg.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}
	workers := pool.New().WithMaxGoroutines(workerCount)
	defer workers.Wait()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		readCmd := c.client.B().Xreadgroup().
			Group(c.cfg.ConsumerGroup, c.cfg.ConsumerName).
			Count(c.cfg.ReadCount).
			Block(c.cfg.BlockTimeout.Milliseconds()).
			Streams().Key(c.cfg.StreamKey).Id(">").Build()

		resp := c.client.Do(ctx, readCmd)
		if err := resp.Error(); err != nil {
			if valkey.IsValkeyNil(err) {
				continue // block timeout, 새 엔트리 없음
			}
			c.logger.Error("MQ_READ_ERROR", slog.Any("error", err))
			time.Sleep(constants.MQConfig.RetryDelay)
			continue
		}

		streams, err := resp.AsXRead()
		if err != nil {
			c.logger.Error("MQ_PARSE_ERROR", slog.Any("error", err))
			continue
		}

		for _, entries := range streams {
			for _, entry := range entries {
				entry := entry
				workers.Go(func() {
					c.dispatch(ctx, entry.FieldValues)
					c.ack(ctx, entry.ID)
				})
			}
		}
	}
}

func (c *Consumer) ack(ctx context.Context, id string) {
	ackCmd := c.client.B().Xack().
		Key(c.cfg.StreamKey).Group(c.cfg.ConsumerGroup).Id(id).Build()
	if err := c.client.Do(ctx, ackCmd).Error(); err != nil {
		c.logger.Warn("MQ_ACK_FAILED", slog.String("id", id), slog.Any("error", err))
	}
}

// dispatch: 엔트리 필드를 이벤트로 해석해 핸들러에 전달한다.
func (c *Consumer) dispatch(ctx context.Context, fields map[string]string) {
	guildID, err := strconv.ParseInt(fields["guildId"], 10, 64)
	if err != nil {
		c.logger.Warn("MQ_EVENT_BAD_GUILD", slog.String("guild", fields["guildId"]))
		return
	}
	userID, _ := strconv.ParseInt(fields["userId"], 10, 64)

	timestamp := time.Now().UTC()
	if ts, err := util.ParseTimestamp(fields["timestamp"]); err == nil && !ts.IsZero() {
		timestamp = ts
	}

	switch fields["type"] {
	case "command":
		cmdCtx := &domain.CommandContext{
			GuildID:   guildID,
			ChannelID: fields["channelId"],
			UserID:    userID,
			Timestamp: timestamp,
		}
		c.handler.HandleCommand(ctx, cmdCtx, fields["name"], fields["args"])

	case "image":
		imageBytes, err := base64.StdEncoding.DecodeString(fields["image"])
		if err != nil {
			c.logger.Warn("MQ_EVENT_BAD_IMAGE",
				slog.String("filename", fields["filename"]),
				slog.Any("error", err),
			)
			return
		}
		c.handler.HandleImage(ctx, &domain.ImageEvent{
			GuildID:   guildID,
			ChannelID: fields["channelId"],
			UserID:    userID,
			Filename:  fields["filename"],
			URL:       fields["url"],
			Bytes:     imageBytes,
			Timestamp: timestamp,
		})

	default:
		c.logger.Debug("MQ_EVENT_IGNORED", slog.String("type", fields["type"]))
	}
}
