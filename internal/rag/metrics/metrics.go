// Package metrics 提供 Agent 服务的业务指标收集。
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "agentic_rag"

// AgentMetrics Agent 服务业务指标。
// 所有方法对 nil 接收者安全，未注入指标时调用方无需判断。
type AgentMetrics struct {
	// 会话指标
	sessions        *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	sessionSteps    prometheus.Histogram
	activeSessions  prometheus.Gauge

	// 控制循环指标
	transitions    *prometheus.CounterVec
	parseFailures  *prometheus.CounterVec
	unknownActions prometheus.Counter
	grades         *prometheus.CounterVec
	rewrites       prometheus.Counter
	retrievalSize  prometheus.Histogram

	// 缓存指标
	cacheRequests *prometheus.CounterVec

	// 外部调用指标
	callDuration *prometheus.HistogramVec
	callErrors   *prometheus.CounterVec

	// 快照计数，用于 stats 接口
	total     atomic.Uint64
	done      atomic.Uint64
	fallback  atomic.Uint64
	failed    atomic.Uint64
	steps     atomic.Uint64
	cacheHit  atomic.Uint64
	cacheMiss atomic.Uint64
	startTime time.Time
}

var (
	globalMetrics *AgentMetrics
	metricsOnce   sync.Once
)

// GetAgentMetrics 获取注册在默认 Registerer 上的全局指标实例。
func GetAgentMetrics() *AgentMetrics {
	metricsOnce.Do(func() {
		globalMetrics = New(prometheus.DefaultRegisterer)
	})
	return globalMetrics
}

// New 在 reg 上注册并返回一组新的指标。
func New(reg prometheus.Registerer) *AgentMetrics {
	f := promauto.With(reg)
	return &AgentMetrics{
		sessions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of agent sessions by outcome",
			},
			[]string{"outcome"},
		),
		sessionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Agent session duration in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		sessionSteps: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_steps",
				Help:      "Steps consumed per session",
				Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
			},
		),
		activeSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Current number of running sessions",
			},
		),
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "State transitions of the control loop",
			},
			[]string{"from", "event", "to"},
		),
		parseFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_failures_total",
				Help:      "Model outputs rejected by the parser or grader",
			},
			[]string{"stage"},
		),
		unknownActions: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unknown_actions_total",
				Help:      "Decisions naming an unknown action",
			},
		),
		grades: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grades_total",
				Help:      "Relevance grades by decision",
			},
			[]string{"decision"},
		),
		rewrites: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rewrites_total",
				Help:      "Query rewrites",
			},
		),
		retrievalSize: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_snippets",
				Help:      "Snippets returned per retrieval",
				Buckets:   []float64{0, 1, 2, 3, 5, 10},
			},
		),
		cacheRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieval_cache_requests_total",
				Help:      "Retrieval cache lookups by result",
			},
			[]string{"result"},
		),
		callDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "external_call_duration_seconds",
				Help:      "External call latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		callErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_call_errors_total",
				Help:      "External call errors",
			},
			[]string{"operation"},
		),
		startTime: time.Now(),
	}
}

// SessionStarted 记录会话开始。
func (m *AgentMetrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionFinished 记录会话结束。outcome 取值 done、fallback、failed。
func (m *AgentMetrics) SessionFinished(outcome string, steps int, d time.Duration) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	m.sessions.WithLabelValues(outcome).Inc()
	m.sessionDuration.WithLabelValues(outcome).Observe(d.Seconds())
	m.sessionSteps.Observe(float64(steps))

	m.total.Add(1)
	m.steps.Add(uint64(steps))
	switch outcome {
	case OutcomeDone:
		m.done.Add(1)
	case OutcomeFallback:
		m.fallback.Add(1)
	case OutcomeFailed:
		m.failed.Add(1)
	}
}

// 会话结果标签。
const (
	OutcomeDone     = "done"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
)

// RecordTransition 记录一次状态迁移。
func (m *AgentMetrics) RecordTransition(from, event, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, event, to).Inc()
}

// RecordParseFailure 记录一次被拒绝的模型输出，stage 为 decide 或 grade。
func (m *AgentMetrics) RecordParseFailure(stage string) {
	if m == nil {
		return
	}
	m.parseFailures.WithLabelValues(stage).Inc()
}

// RecordUnknownAction 记录未知动作。
func (m *AgentMetrics) RecordUnknownAction() {
	if m == nil {
		return
	}
	m.unknownActions.Inc()
}

// RecordGrade 记录评分结果。
func (m *AgentMetrics) RecordGrade(decision string) {
	if m == nil {
		return
	}
	m.grades.WithLabelValues(decision).Inc()
}

// RecordRewrite 记录一次改写。
func (m *AgentMetrics) RecordRewrite() {
	if m == nil {
		return
	}
	m.rewrites.Inc()
}

// RecordRetrieval 记录检索返回的片段数。
func (m *AgentMetrics) RecordRetrieval(snippets int) {
	if m == nil {
		return
	}
	m.retrievalSize.Observe(float64(snippets))
}

// RecordCache 记录缓存查询结果。
func (m *AgentMetrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHit.Add(1)
		m.cacheRequests.WithLabelValues("hit").Inc()
		return
	}
	m.cacheMiss.Add(1)
	m.cacheRequests.WithLabelValues("miss").Inc()
}

// RecordCall 记录一次外部调用，operation 如 decide、retrieve、grade、rewrite、answer。
func (m *AgentMetrics) RecordCall(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.callDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		m.callErrors.WithLabelValues(operation).Inc()
	}
}

// Stats 是指标快照。
type Stats struct {
	Sessions      uint64  `json:"sessions"`
	Done          uint64  `json:"done"`
	Fallback      uint64  `json:"fallback"`
	Failed        uint64  `json:"failed"`
	AvgSteps      float64 `json:"avg_steps"`
	CacheHits     uint64  `json:"cache_hits"`
	CacheMisses   uint64  `json:"cache_misses"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Snapshot 返回当前统计信息（用于 API）。
func (m *AgentMetrics) Snapshot() Stats {
	if m == nil {
		return Stats{}
	}
	s := Stats{
		Sessions:      m.total.Load(),
		Done:          m.done.Load(),
		Fallback:      m.fallback.Load(),
		Failed:        m.failed.Load(),
		CacheHits:     m.cacheHit.Load(),
		CacheMisses:   m.cacheMiss.Load(),
		UptimeSeconds: time.Since(m.startTime).Seconds(),
	}
	if s.Sessions > 0 {
		s.AvgSteps = float64(m.steps.Load()) / float64(s.Sessions)
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}
	return s
}
