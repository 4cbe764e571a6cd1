package bulk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
)

// Sweeper: 만료된 open 세션을 주기적으로 expired로 전환하는 백그라운드 루프.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger

	started  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewSweeper: 새로운 세션 스위퍼를 생성합니다. interval이 0이면 기본 15분.
func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = constants.BulkConfig.SweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start: 스위프 루프를 시작합니다.
func (s *Sweeper) Start(ctx context.Context) {
	s.started = true
	go s.loop(ctx)
}

// Stop: 스위프 루프를 중지하고 종료를 대기합니다.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.started {
		<-s.doneCh
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.store.SweepExpired(ctx)
			if err != nil {
				s.logger.Error("Session sweep failed", slog.Any("error", err))
				continue
			}
			if swept > 0 {
				s.logger.Info("SESSIONS_EXPIRED", slog.Int64("count", swept))
			}
		}
	}
}
