package ocr

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kapu/mkw-stats-bot-go/internal/config"
)

// windowStats: 사용 윈도 1개의 요약.
type windowStats struct {
	express     int
	batch       int // standard + background
	expressWait time.Duration
	batchWait   time.Duration
}

func (w windowStats) total() int { return w.express + w.batch }

func (w windowStats) expressRatio() float64 {
	if w.total() == 0 {
		return 0
	}
	return float64(w.express) / float64(w.total())
}

func (w windowStats) bulkRatio() float64 {
	if w.total() == 0 {
		return 0
	}
	return float64(w.batch) / float64(w.total())
}

// Monitor: 사용 패턴을 관찰해 엔진 운영 모드를 전환하는 적응형 모니터.
// 같은 전환 조건이 두 윈도 연속 관찰될 때만 모드를 바꾼다 (히스테리시스).
type Monitor struct {
	engine  *Engine
	metrics *MetricsRecorder
	cfg     config.OCRConfig
	logger  *slog.Logger

	mu           sync.Mutex
	mode         config.OCRMode
	lastProposal config.OCRMode
	streak       int

	started  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// 모드 전환 판단 기준. 요청의 7할 이상이 한쪽으로 쏠리고
// 해당 쪽 평균 대기가 길어질 때 전환을 제안한다.
const (
	modeSwitchMinRequests = 10
	modeSwitchRatio       = 0.7
	modeSwitchWaitFloor   = 2 * time.Second
	requiredStreak        = 2
)

// NewMonitor: 엔진과 메트릭 레코더를 관찰하는 모니터를 생성한다.
func NewMonitor(engine *Engine, metrics *MetricsRecorder, cfg config.OCRConfig, logger *slog.Logger) *Monitor {
	return &Monitor{
		engine:  engine,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		mode:    cfg.Mode,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Mode: 현재 운영 모드를 반환합니다.
func (m *Monitor) Mode() config.OCRMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Start: 윈도 주기로 사용 패턴을 평가하는 루프를 시작한다.
// usage_adaptation이 꺼져 있으면 아무것도 하지 않는다.
func (m *Monitor) Start() {
	m.started = true
	if !m.cfg.UsageAdaptation {
		close(m.doneCh)
		return
	}
	go m.loop()
}

// Stop: 평가 루프를 중지합니다.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if m.started {
		<-m.doneCh
	}
}

func (m *Monitor) loop() {
	defer close(m.doneCh)

	window := m.cfg.UsageWindow
	if window <= 0 {
		window = time.Hour
	}
	ticker := time.NewTicker(window)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.evaluate(time.Now(), window)
		}
	}
}

// evaluate: 직전 윈도의 샘플을 요약하고 모드 전환 여부를 결정한다.
func (m *Monitor) evaluate(now time.Time, window time.Duration) {
	stats := summarize(m.metrics.SamplesSince(now.Add(-window)))

	proposal := m.propose(stats)

	m.mu.Lock()
	defer m.mu.Unlock()

	if proposal == m.lastProposal {
		m.streak++
	} else {
		m.lastProposal = proposal
		m.streak = 1
	}

	// 두 윈도 연속 같은 제안일 때만 전환한다.
	if m.streak < requiredStreak || proposal == m.mode {
		return
	}

	m.mode = proposal
	m.streak = 0
	m.applyLocked(proposal)
	m.logger.Info("OCR_MODE_SWITCH",
		slog.String("mode", string(proposal)),
		slog.Int("window_requests", stats.total()),
		slog.String("express_ratio", percent(stats.expressRatio())),
	)
}

// propose: 윈도 통계로부터 운영 모드를 제안한다. 데이터가 부족하면 balanced.
func (m *Monitor) propose(stats windowStats) config.OCRMode {
	if stats.total() < modeSwitchMinRequests {
		return config.ModeBalanced
	}

	avgExpressWait := time.Duration(0)
	if stats.express > 0 {
		avgExpressWait = stats.expressWait / time.Duration(stats.express)
	}
	avgBatchWait := time.Duration(0)
	if stats.batch > 0 {
		avgBatchWait = stats.batchWait / time.Duration(stats.batch)
	}

	switch {
	case stats.expressRatio() >= modeSwitchRatio && avgExpressWait >= modeSwitchWaitFloor:
		return config.ModeSingleFocused
	case stats.bulkRatio() >= modeSwitchRatio && avgBatchWait >= modeSwitchWaitFloor:
		return config.ModeBulkHeavy
	default:
		return config.ModeBalanced
	}
}

// applyLocked: 모드에 따른 티어별 병렬도를 엔진에 적용한다.
func (m *Monitor) applyLocked(mode config.OCRMode) {
	express := m.cfg.ExpressConcurrency
	standard := m.cfg.StandardConcurrency
	background := m.cfg.BackgroundConcurrency

	switch mode {
	case config.ModeSingleFocused:
		express++
		if background > 1 {
			background--
		}
	case config.ModeBulkHeavy:
		background++
	}

	m.engine.ApplyLimits(express, standard, background)
}

func summarize(samples []Sample) windowStats {
	var stats windowStats
	for _, s := range samples {
		if s.Tier == TierExpress {
			stats.express++
			stats.expressWait += s.WaitTime
		} else {
			stats.batch++
			stats.batchWait += s.WaitTime
		}
	}
	return stats
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}
