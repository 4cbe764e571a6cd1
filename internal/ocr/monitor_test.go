package ocr

import (
	"testing"
	"time"

	"github.com/kapu/mkw-stats-bot-go/internal/config"
)

func monitorFixture(t *testing.T) (*Monitor, *MetricsRecorder, *Engine) {
	t.Helper()
	cfg := testEngineConfig()
	cfg.UsageAdaptation = true
	metrics := NewMetricsRecorder(256, nil)
	engine := NewEngine(nil, cfg, metrics, testLogger())
	return NewMonitor(engine, metrics, cfg, testLogger()), metrics, engine
}

func recordExpressHeavy(metrics *MetricsRecorder, n int, wait time.Duration) {
	now := time.Now()
	for i := 0; i < n; i++ {
		metrics.RecordSample(Sample{
			Tier:     TierExpress,
			WaitTime: wait,
			Status:   StatusOK,
			At:       now,
		})
	}
}

func TestMonitorSwitchRequiresTwoConsecutiveWindows(t *testing.T) {
	monitor, metrics, _ := monitorFixture(t)
	window := time.Hour

	recordExpressHeavy(metrics, 20, 5*time.Second)
	monitor.evaluate(time.Now(), window)
	if mode := monitor.Mode(); mode != config.ModeBalanced {
		t.Fatalf("mode switched after one window: %s", mode)
	}

	recordExpressHeavy(metrics, 20, 5*time.Second)
	monitor.evaluate(time.Now(), window)
	if mode := monitor.Mode(); mode != config.ModeSingleFocused {
		t.Fatalf("expected single_focused after two windows, got %s", mode)
	}
}

func TestMonitorIgnoresSparseWindows(t *testing.T) {
	monitor, metrics, _ := monitorFixture(t)
	window := time.Hour

	// 표본이 적으면 balanced 제안으로 남는다.
	recordExpressHeavy(metrics, 3, 10*time.Second)
	monitor.evaluate(time.Now(), window)
	monitor.evaluate(time.Now(), window)
	if mode := monitor.Mode(); mode != config.ModeBalanced {
		t.Fatalf("sparse data must not switch mode, got %s", mode)
	}
}

func TestMonitorAppliesLimitsOnSwitch(t *testing.T) {
	monitor, metrics, engine := monitorFixture(t)
	window := time.Hour

	recordExpressHeavy(metrics, 20, 5*time.Second)
	monitor.evaluate(time.Now(), window)
	recordExpressHeavy(metrics, 20, 5*time.Second)
	monitor.evaluate(time.Now(), window)

	// single_focused: EXPRESS 병렬도 상승.
	if got := engine.tierLimit(TierExpress); got != 2 {
		t.Fatalf("expected express limit 2 after switch, got %d", got)
	}
}
