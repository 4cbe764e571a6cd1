package ocr

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kapu/mkw-stats-bot-go/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngineConfig() config.OCRConfig {
	return config.OCRConfig{
		Mode:                  config.ModeBalanced,
		ExpressConcurrency:    1,
		StandardConcurrency:   1,
		BackgroundConcurrency: 1,
		BulkThreshold:         10,
		PriorityBorrowing:     true,
		BorrowingThreshold:    0.8,
		UsageAdaptation:       false,
		SubmitBudget:          2 * time.Second,
	}
}

// blockingOCR: release 채널이 닫힐 때까지 대기하는 OCR 함수.
func blockingOCR(release <-chan struct{}) Func {
	return func(ctx context.Context, image []byte) ([]TextBox, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return []TextBox{{Text: "done", Confidence: 1}}, nil
	}
}

func TestTierFor(t *testing.T) {
	e := NewEngine(nil, testEngineConfig(), NewMetricsRecorder(16, nil), testLogger())

	if tier := e.TierFor(1); tier != TierExpress {
		t.Fatalf("1 image should be express, got %s", tier)
	}
	if tier := e.TierFor(5); tier != TierStandard {
		t.Fatalf("5 images should be standard, got %s", tier)
	}
	if tier := e.TierFor(10); tier != TierBackground {
		t.Fatalf("10 images should be background, got %s", tier)
	}
}

func TestProcessReturnsStatuses(t *testing.T) {
	cfg := testEngineConfig()

	t.Run("ok", func(t *testing.T) {
		e := NewEngine(func(ctx context.Context, image []byte) ([]TextBox, error) {
			return []TextBox{{Text: "Alpha 95"}}, nil
		}, cfg, NewMetricsRecorder(16, nil), testLogger())

		out, err := e.Process(context.Background(), TierExpress, nil)
		if err != nil || out.Status != StatusOK {
			t.Fatalf("expected ok, got %+v err=%v", out, err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		e := NewEngine(func(ctx context.Context, image []byte) ([]TextBox, error) {
			return nil, nil
		}, cfg, NewMetricsRecorder(16, nil), testLogger())

		out, err := e.Process(context.Background(), TierExpress, nil)
		if err != nil || out.Status != StatusEmpty {
			t.Fatalf("expected empty, got %+v err=%v", out, err)
		}
	})

	t.Run("error", func(t *testing.T) {
		e := NewEngine(func(ctx context.Context, image []byte) ([]TextBox, error) {
			return nil, context.DeadlineExceeded
		}, cfg, NewMetricsRecorder(16, nil), testLogger())

		// OCR 자체 에러는 엔진 에러가 아니라 상태 태그로 전달된다.
		out, err := e.Process(context.Background(), TierExpress, nil)
		if err != nil || out.Status != StatusError {
			t.Fatalf("expected error status, got %+v err=%v", out, err)
		}
	})
}

func TestExpressBorrowsFromIdleStandard(t *testing.T) {
	release := make(chan struct{})
	e := NewEngine(blockingOCR(release), testEngineConfig(), NewMetricsRecorder(64, nil), testLogger())

	ctx := context.Background()
	var wg sync.WaitGroup

	// EXPRESS 퍼밋(1개)을 점유한다.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := e.Process(ctx, TierExpress, nil); err != nil {
			t.Errorf("first express failed: %v", err)
		}
	}()

	waitUntil(t, func() bool { return e.Utilization()[TierExpress] >= 1.0 })

	// 두 번째 EXPRESS는 유휴 STANDARD(사용률 0.0)에서 빌려 즉시 실행되어야 한다.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := e.Process(ctx, TierExpress, nil); err != nil {
			t.Errorf("borrowing express failed: %v", err)
		}
	}()

	waitUntil(t, func() bool { return e.Utilization()[TierStandard] >= 1.0 })

	close(release)
	wg.Wait()

	// 대여 퍼밋은 donor에게 반환된다.
	util := e.Utilization()
	if util[TierStandard] != 0 || util[TierExpress] != 0 {
		t.Fatalf("permits not returned: %+v", util)
	}
}

func TestStrictTiersBlockWhenBorrowingDisabled(t *testing.T) {
	cfg := testEngineConfig()
	cfg.PriorityBorrowing = false
	cfg.SubmitBudget = 200 * time.Millisecond

	release := make(chan struct{})
	defer close(release)
	e := NewEngine(blockingOCR(release), cfg, NewMetricsRecorder(64, nil), testLogger())

	ctx := context.Background()
	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = e.Process(ctx, TierExpress, nil)
	}()
	<-started
	waitUntil(t, func() bool { return e.Utilization()[TierExpress] >= 1.0 })

	// 대여 금지면 두 번째 EXPRESS는 예산 소진까지 대기하다 timeout 에러를 받는다.
	// 점유 중인 첫 호출의 OCR도 자기 200ms 예산에서 끝나 퍼밋을 돌려주므로,
	// 두 번째 호출은 그보다 먼저 끝나는 기한으로 기다린다.
	shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	out, err := e.Process(shortCtx, TierExpress, nil)
	if err == nil {
		t.Fatalf("expected timeout error, got %+v", out)
	}
	if out.ErrorMsg != "timeout" {
		t.Fatalf("expected timeout tag, got %q", out.ErrorMsg)
	}

	// STANDARD 퍼밋은 손대지 않았어야 한다.
	if e.Utilization()[TierStandard] != 0 {
		t.Fatalf("standard permit was consumed in strict mode")
	}
}

func TestBackgroundNeverBorrows(t *testing.T) {
	cfg := testEngineConfig()
	cfg.SubmitBudget = 200 * time.Millisecond

	release := make(chan struct{})
	defer close(release)
	e := NewEngine(blockingOCR(release), cfg, NewMetricsRecorder(64, nil), testLogger())

	ctx := context.Background()
	go func() { _, _ = e.Process(ctx, TierBackground, nil) }()
	waitUntil(t, func() bool { return e.Utilization()[TierBackground] >= 1.0 })

	// EXPRESS/STANDARD가 비어 있어도 BACKGROUND는 빌리지 않는다.
	// 점유 중인 첫 호출의 OCR도 자기 200ms 예산에서 끝나 퍼밋을 돌려주므로,
	// 두 번째 호출은 그보다 먼저 끝나는 기한으로 기다린다.
	shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err := e.Process(shortCtx, TierBackground, nil)
	if err == nil {
		t.Fatalf("expected timeout for second background submission")
	}
	if e.Utilization()[TierExpress] != 0 || e.Utilization()[TierStandard] != 0 {
		t.Fatalf("background borrowed a permit")
	}
}

func TestSubmitCancelWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	e := NewEngine(blockingOCR(release), testEngineConfig(), NewMetricsRecorder(64, nil), testLogger())

	ctx := context.Background()
	go func() { _, _ = e.Process(ctx, TierBackground, nil) }()
	waitUntil(t, func() bool { return e.Utilization()[TierBackground] >= 1.0 })

	pending := e.Submit(ctx, TierBackground, nil)
	pending.Cancel()

	out, err := pending.Wait(context.Background())
	if err == nil {
		t.Fatalf("expected cancellation error, got %+v", out)
	}
}

func TestApplyLimitsDeferredWhileBusy(t *testing.T) {
	release := make(chan struct{})
	e := NewEngine(blockingOCR(release), testEngineConfig(), NewMetricsRecorder(64, nil), testLogger())

	ctx := context.Background()
	go func() { _, _ = e.Process(ctx, TierExpress, nil) }()
	waitUntil(t, func() bool { return e.Utilization()[TierExpress] >= 1.0 })

	// 실행 중에는 리사이즈가 보류된다.
	e.ApplyLimits(2, 1, 1)
	if got := e.tierLimit(TierExpress); got != 1 {
		t.Fatalf("resize applied while busy: limit=%d", got)
	}

	close(release)
	waitUntil(t, func() bool { return e.Utilization()[TierExpress] == 0 })

	// 유휴 상태에서 재시도하면 적용된다.
	e.ApplyLimits(2, 1, 1)
	if got := e.tierLimit(TierExpress); got != 2 {
		t.Fatalf("resize not applied when idle: limit=%d", got)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}
