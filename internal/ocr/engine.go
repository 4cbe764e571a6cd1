package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sync/semaphore"

	"github.com/kapu/mkw-stats-bot-go/internal/config"
	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// tierState: 티어 1개의 퍼밋 상태. sem 교체(적응형 리사이즈)는 활성 퍼밋이
// 전혀 없을 때만 일어난다.
type tierState struct {
	sem    *semaphore.Weighted
	limit  int64
	active int64 // 자기 티어 퍼밋으로 실행 중인 수
	lent   int64 // 상위 티어에 빌려준 퍼밋 수
}

func (ts *tierState) utilization() float64 {
	if ts.limit <= 0 {
		return 1.0
	}
	return float64(ts.active+ts.lent) / float64(ts.limit)
}

// Engine: 우선순위 세마포어 기반 OCR 실행 엔진.
// 티어별 카운팅 세마포어를 소유하고, EXPRESS/STANDARD가 포화되면
// 하위 티어의 유휴 퍼밋을 빌려 즉시 실행한다.
type Engine struct {
	ocrFunc Func
	cfg     config.OCRConfig
	logger  *slog.Logger
	metrics *MetricsRecorder

	mu    sync.Mutex
	tiers map[Tier]*tierState

	pendingLimits *tierLimits // 적응형 모드가 예약한 리사이즈 (티어 유휴 시 적용)

	started  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

type tierLimits struct {
	express    int64
	standard   int64
	background int64
}

// NewEngine: OCR 함수와 설정으로 엔진을 생성한다. Start 전에는 모니터링이 돌지 않는다.
func NewEngine(ocrFunc Func, cfg config.OCRConfig, metrics *MetricsRecorder, logger *slog.Logger) *Engine {
	e := &Engine{
		ocrFunc: ocrFunc,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		tiers: map[Tier]*tierState{
			TierExpress: {
				sem:   semaphore.NewWeighted(int64(cfg.ExpressConcurrency)),
				limit: int64(cfg.ExpressConcurrency),
			},
			TierStandard: {
				sem:   semaphore.NewWeighted(int64(cfg.StandardConcurrency)),
				limit: int64(cfg.StandardConcurrency),
			},
			TierBackground: {
				sem:   semaphore.NewWeighted(int64(cfg.BackgroundConcurrency)),
				limit: int64(cfg.BackgroundConcurrency),
			},
		},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	logger.Info("OCR engine initialized",
		slog.Int("express", cfg.ExpressConcurrency),
		slog.Int("standard", cfg.StandardConcurrency),
		slog.Int("background", cfg.BackgroundConcurrency),
		slog.Bool("borrowing", cfg.PriorityBorrowing),
		slog.Bool("adaptation", cfg.UsageAdaptation),
	)

	return e
}

// TierFor: 이미지 개수에 따른 우선순위 티어를 결정합니다.
func (e *Engine) TierFor(imageCount int) Tier {
	switch {
	case imageCount <= 1:
		return TierExpress
	case imageCount < e.cfg.BulkThreshold:
		return TierStandard
	default:
		return TierBackground
	}
}

// Process: 이미지 1장을 해당 티어에서 처리한다. 퍼밋 획득 대기를 포함해
// SubmitBudget(기본 60초)을 넘기면 timeout 에러로 종료하며, 대기 중에는
// ctx 취소로 즉시 중단할 수 있다. OCR 시작 이후의 취소는 best-effort다.
func (e *Engine) Process(ctx context.Context, tier Tier, image []byte) (Output, error) {
	budget := e.cfg.SubmitBudget
	if budget <= 0 {
		budget = constants.OCRConfig.SubmitBudget
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	waitStart := time.Now()
	holder, err := e.acquire(ctx, tier)
	waitTime := time.Since(waitStart)
	if err != nil {
		e.metrics.RecordTimeout(tier)
		if ctx.Err() == context.DeadlineExceeded {
			return Output{Status: StatusError, ErrorMsg: "timeout", WaitTime: waitTime},
				apperrors.NewOCRError("timeout", ctx.Err())
		}
		return Output{Status: StatusError, ErrorMsg: "cancelled", WaitTime: waitTime},
			apperrors.NewOCRError("submit", err)
	}
	defer e.release(holder)

	procStart := time.Now()
	boxes, runErr := e.ocrFunc(ctx, image)
	procTime := time.Since(procStart)

	out := Output{
		Boxes:       boxes,
		WaitTime:    waitTime,
		ProcessTime: procTime,
	}
	switch {
	case runErr != nil:
		out.Status = StatusError
		out.ErrorMsg = runErr.Error()
	case len(boxes) == 0:
		out.Status = StatusEmpty
	default:
		out.Status = StatusOK
	}

	e.metrics.RecordSample(Sample{
		Tier:         tier,
		WaitTime:     waitTime,
		ProcessTime:  procTime,
		Status:       out.Status,
		BorrowedFrom: holder.donor,
		At:           time.Now(),
	})

	return out, nil
}

// Pending: 제출된 OCR 작업의 future. 퍼밋 대기 중에는 Cancel로 취소되며,
// 실행 시작 이후의 취소는 OCR 함수에 넘긴 ctx로만 전달되며(best-effort),
// Wait는 Process가 반환한 결과를 그대로 돌려준다.
type Pending struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	out Output
	err error
}

// Wait: 작업 완료까지 대기하고 결과를 반환합니다.
func (p *Pending) Wait(ctx context.Context) (Output, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.out, p.err
	case <-ctx.Done():
		return Output{Status: StatusError, ErrorMsg: "cancelled"}, ctx.Err()
	}
}

// Cancel: 대기 중인 작업을 취소합니다.
func (p *Pending) Cancel() {
	p.cancel()
}

// Submit: 이미지 1장을 비동기 제출하고 future를 반환한다.
func (e *Engine) Submit(ctx context.Context, tier Tier, image []byte) *Pending {
	runCtx, cancel := context.WithCancel(ctx)
	p := &Pending{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(p.done)
		out, err := e.Process(runCtx, tier, image)
		p.mu.Lock()
		p.out, p.err = out, err
		p.mu.Unlock()
	}()

	return p
}

// permitHolder: 획득한 퍼밋의 출처. 리사이즈로 세마포어가 교체되어도
// 획득했던 인스턴스로 정확히 반환하도록 sem을 함께 들고 다닌다.
type permitHolder struct {
	tier  Tier
	donor Tier // 빌린 경우 donor 티어, 아니면 noDonor
	sem   *semaphore.Weighted
}

const noDonor = Tier(-1)

// acquire: 티어 퍼밋을 획득한다. 자기 티어 → (포화 시) 하위 티어 borrow →
// 자기 티어 블로킹 대기 순서. 퍼밋 보유 중 다른 티어 퍼밋을 기다리는 일은 없다.
func (e *Engine) acquire(ctx context.Context, tier Tier) (permitHolder, error) {
	e.mu.Lock()
	ts := e.tiers[tier]
	if ts.sem.TryAcquire(1) {
		ts.active++
		h := permitHolder{tier: tier, donor: noDonor, sem: ts.sem}
		e.mu.Unlock()
		return h, nil
	}

	// 자기 티어 포화: 하위 티어에서 빌리기를 시도한다. BACKGROUND는 빌리지 않는다.
	if e.cfg.PriorityBorrowing {
		for donor := tier + 1; donor <= TierBackground; donor++ {
			ds := e.tiers[donor]
			if ds.utilization() > e.cfg.BorrowingThreshold {
				continue
			}
			if ds.sem.TryAcquire(1) {
				ds.lent++
				h := permitHolder{tier: tier, donor: donor, sem: ds.sem}
				e.mu.Unlock()
				e.metrics.RecordBorrow(tier, donor)
				e.logger.Debug("OCR permit borrowed",
					slog.String("tier", tier.String()),
					slog.String("donor", donor.String()),
				)
				return h, nil
			}
		}
	}
	blockSem := ts.sem
	e.mu.Unlock()

	// 빌릴 곳이 없으면 자기 티어 세마포어에서 대기한다.
	if err := blockSem.Acquire(ctx, 1); err != nil {
		return permitHolder{}, err
	}
	e.mu.Lock()
	ts.active++
	e.mu.Unlock()
	return permitHolder{tier: tier, donor: noDonor, sem: blockSem}, nil
}

// release: 퍼밋을 반환한다. 빌린 퍼밋은 donor 티어로 되돌아간다.
func (e *Engine) release(h permitHolder) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h.donor != noDonor {
		e.tiers[h.donor].lent--
	} else {
		e.tiers[h.tier].active--
	}
	h.sem.Release(1)
}

// tierLimit: 현재 티어 병렬도를 반환한다. 테스트 관찰용.
func (e *Engine) tierLimit(tier Tier) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tiers[tier].limit
}

// Utilization: 티어별 순간 사용률 스냅샷을 반환합니다.
func (e *Engine) Utilization() map[Tier]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := make(map[Tier]float64, len(e.tiers))
	for tier, ts := range e.tiers {
		snap[tier] = ts.utilization()
	}
	return snap
}

// ApplyLimits: 적응형 모드가 계산한 티어별 병렬도를 적용한다.
// 활성/대여 퍼밋이 남아 있는 티어는 리사이즈를 보류하고 다음 틱에 재시도한다.
func (e *Engine) ApplyLimits(express, standard, background int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingLimits = &tierLimits{
		express:    int64(express),
		standard:   int64(standard),
		background: int64(background),
	}
	e.tryApplyPendingLocked()
}

func (e *Engine) tryApplyPendingLocked() {
	if e.pendingLimits == nil {
		return
	}
	want := map[Tier]int64{
		TierExpress:    e.pendingLimits.express,
		TierStandard:   e.pendingLimits.standard,
		TierBackground: e.pendingLimits.background,
	}
	for tier, ts := range e.tiers {
		if ts.limit == want[tier] {
			continue
		}
		if ts.active > 0 || ts.lent > 0 {
			return // 티어가 바쁘면 전체 적용을 다음 틱으로 미룬다
		}
	}
	for tier, ts := range e.tiers {
		if ts.limit == want[tier] {
			continue
		}
		ts.sem = semaphore.NewWeighted(want[tier])
		ts.limit = want[tier]
	}
	e.logger.Info("OCR_LIMITS_APPLIED",
		slog.Int64("express", want[TierExpress]),
		slog.Int64("standard", want[TierStandard]),
		slog.Int64("background", want[TierBackground]),
	)
	e.pendingLimits = nil
}

// Start: 메트릭/메모리 모니터링 루프를 시작한다.
func (e *Engine) Start() {
	e.started = true
	go e.monitorLoop()
}

// Stop: 모니터링 루프를 중지하고 종료를 대기한다.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	if e.started {
		<-e.doneCh
	}
}

func (e *Engine) monitorLoop() {
	defer close(e.doneCh)

	interval := e.cfg.MetricsInterval
	if interval <= 0 {
		interval = constants.OCRConfig.MetricsInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	proc, procErr := process.NewProcess(int32(os.Getpid()))
	if procErr != nil {
		e.logger.Warn("Failed to open process handle for memory monitoring", slog.Any("error", procErr))
	}

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.mu.Lock()
			e.tryApplyPendingLocked()
			util := make(map[Tier]float64, len(e.tiers))
			for tier, ts := range e.tiers {
				util[tier] = ts.utilization()
			}
			e.mu.Unlock()

			e.metrics.PublishUtilization(util)
			e.logger.Debug("OCR_UTILIZATION",
				slog.String("express", fmt.Sprintf("%.0f%%", util[TierExpress]*100)),
				slog.String("standard", fmt.Sprintf("%.0f%%", util[TierStandard]*100)),
				slog.String("background", fmt.Sprintf("%.0f%%", util[TierBackground]*100)),
			)

			if proc != nil {
				if memPercent, err := proc.MemoryPercent(); err == nil &&
					float64(memPercent) > constants.OCRConfig.MemoryCleanupPercent {
					e.logger.Warn("OCR_MEMORY_PRESSURE",
						slog.String("memory", fmt.Sprintf("%.1f%%", memPercent)),
					)
				}
			}
		}
	}
}
