package ocr

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sample: OCR 실행 1건의 성능 기록.
type Sample struct {
	Tier         Tier
	WaitTime     time.Duration
	ProcessTime  time.Duration
	Status       Status
	BorrowedFrom Tier // noDonor면 자기 티어 퍼밋
	At           time.Time
}

// MetricsRecorder: append 전용 링 버퍼 + Prometheus 지표.
// 소비자는 적응형 모니터 하나뿐이며, 링이 넘치면 오래된 샘플부터 덮어쓴다
// (lossy read 허용).
type MetricsRecorder struct {
	mu      sync.Mutex
	ring    []Sample
	next    int
	written int

	submissions *prometheus.CounterVec
	borrows     *prometheus.CounterVec
	timeouts    *prometheus.CounterVec
	waitSeconds *prometheus.HistogramVec
	utilization *prometheus.GaugeVec
}

// NewMetricsRecorder: 링 버퍼 크기를 지정해 레코더를 생성하고 Prometheus 지표를 등록한다.
func NewMetricsRecorder(ringSize int, reg prometheus.Registerer) *MetricsRecorder {
	if ringSize <= 0 {
		ringSize = 1024
	}
	m := &MetricsRecorder{
		ring: make([]Sample, ringSize),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mkw_ocr_submissions_total",
			Help: "Completed OCR submissions by tier and status.",
		}, []string{"tier", "status"}),
		borrows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mkw_ocr_borrow_events_total",
			Help: "Permit borrow events by borrower and donor tier.",
		}, []string{"tier", "donor"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mkw_ocr_timeouts_total",
			Help: "OCR submissions that expired before acquiring a permit.",
		}, []string{"tier"}),
		waitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mkw_ocr_wait_seconds",
			Help:    "Permit wait time by tier.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"tier"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mkw_ocr_tier_utilization",
			Help: "Instantaneous permit utilization by tier.",
		}, []string{"tier"}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.borrows, m.timeouts, m.waitSeconds, m.utilization)
	}
	return m
}

// RecordSample: 완료된 실행 샘플을 링 버퍼와 Prometheus에 기록합니다.
func (m *MetricsRecorder) RecordSample(s Sample) {
	m.mu.Lock()
	m.ring[m.next] = s
	m.next = (m.next + 1) % len(m.ring)
	m.written++
	m.mu.Unlock()

	m.submissions.WithLabelValues(s.Tier.String(), string(s.Status)).Inc()
	m.waitSeconds.WithLabelValues(s.Tier.String()).Observe(s.WaitTime.Seconds())
}

// RecordBorrow: 퍼밋 대여 이벤트를 기록합니다.
func (m *MetricsRecorder) RecordBorrow(tier, donor Tier) {
	m.borrows.WithLabelValues(tier.String(), donor.String()).Inc()
}

// RecordTimeout: 퍼밋 획득 전에 예산이 소진된 제출을 기록합니다.
func (m *MetricsRecorder) RecordTimeout(tier Tier) {
	m.timeouts.WithLabelValues(tier.String()).Inc()
}

// PublishUtilization: 티어별 사용률 게이지를 갱신합니다.
func (m *MetricsRecorder) PublishUtilization(util map[Tier]float64) {
	for tier, v := range util {
		m.utilization.WithLabelValues(tier.String()).Set(v)
	}
}

// SamplesSince: 주어진 시각 이후의 샘플을 반환한다. 적응형 모니터 전용.
func (m *MetricsRecorder) SamplesSince(cutoff time.Time) []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.written
	if n > len(m.ring) {
		n = len(m.ring)
	}
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		idx := (m.next - 1 - i + len(m.ring)*2) % len(m.ring)
		s := m.ring[idx]
		if s.At.Before(cutoff) {
			break // 링은 시간 순서로 기록되므로 더 볼 필요가 없다
		}
		out = append(out, s)
	}
	return out
}
